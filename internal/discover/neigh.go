/*
PURPOSE:
  Reads the local ARP/neighbor table as a source of discovery candidates.
  Best-effort: an unreadable table is just an empty one.

REQUIREMENTS:
  User-specified:
  - Neighbor table is an external, possibly-empty data source.

  Implementation-discovered:
  - `ip -4 neigh` (iproute2) covers modern Linux; `arp -a` covers macOS/BSD
    and also carries resolved hostnames, which `ip neigh` does not.

ARCHITECTURE INTEGRATION:
  - Called by: internal/discover/resolver.go

ERROR HANDLING:
  - All failures degrade to an empty result; discovery then rests on the
    well-known mDNS name alone.

IMPLEMENTATION RULES:
  - Preserve table encounter order; the resolver depends on it.
  - Skip incomplete/failed entries.

USAGE:
  neighbors := discover.SystemNeighbors()

SELF-HEALING INSTRUCTIONS:
  - If a platform formats `arp -a` differently, extend parseArpLine.

RELATED FILES:
  - internal/discover/resolver.go

MAINTENANCE:
  - Update if a netlink-based source replaces the exec calls.
*/

package discover

import (
	"os/exec"
	"regexp"
	"strings"
)

// Neighbor is one neighbor-table entry. Name may be empty (ip neigh has no
// hostnames); IP may be empty for name-only sources.
type Neighbor struct {
	Name string
	IP   string
}

// NeighborSource returns neighbor-table entries in encounter order.
type NeighborSource func() []Neighbor

var (
	ipv4Re    = regexp.MustCompile(`^\d+\.\d+\.\d+\.\d+$`)
	arpLineRe = regexp.MustCompile(`^(\S+)\s+\((\d+\.\d+\.\d+\.\d+)\)`)
)

// SystemNeighbors reads the local neighbor table, preferring iproute2 and
// falling back to arp.
func SystemNeighbors() []Neighbor {
	if out, err := exec.Command("ip", "-4", "neigh", "show").Output(); err == nil {
		if neighbors := parseIPNeigh(string(out)); len(neighbors) > 0 {
			return neighbors
		}
	}
	if out, err := exec.Command("arp", "-a").Output(); err == nil {
		return parseArp(string(out))
	}
	return nil
}

// parseIPNeigh parses `ip -4 neigh show` output.
// Example: "169.254.9.30 dev enx0c37 lladdr 0c:37:96:2a STALE"
func parseIPNeigh(out string) []Neighbor {
	var neighbors []Neighbor
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if strings.Contains(line, "FAILED") || strings.Contains(line, "INCOMPLETE") {
			continue
		}
		if ipv4Re.MatchString(fields[0]) {
			neighbors = append(neighbors, Neighbor{IP: fields[0]})
		}
	}
	return neighbors
}

// parseArp parses `arp -a` output.
// Example: "opentrons.local (169.254.9.30) at 0c:37:96:2a on enx0c37"
func parseArp(out string) []Neighbor {
	var neighbors []Neighbor
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(strings.ToLower(line), "incomplete") {
			continue
		}
		m := arpLineRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		name := m[1]
		if name == "?" {
			name = ""
		}
		neighbors = append(neighbors, Neighbor{Name: name, IP: m[2]})
	}
	return neighbors
}
