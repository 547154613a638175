/*
PURPOSE:
  Resolves the reachable OT-2 robot-server host for a USB-connected OT-2.
  One live endpoint in, deterministic priority order out.

REQUIREMENTS:
  User-specified:
  - An explicit host is the sole candidate; no fallback if it is dead.
  - Otherwise probe opentrons.local, then neighbor-table .local names, then
    link-local neighbor addresses, in encounter order.
  - Probe every candidate exactly once; warn (not fail) when several robots
    are visible and pick the highest-priority live one.

  Implementation-discovered:
  - "Live" means the /health request completed; the status code is not
    inspected. A robot mid-boot still counts as present.
  - Probes must be short (~2s) or discovery on an empty desk feels hung.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli
  - Uses: internal/config, internal/model, internal/output

ERROR HANDLING:
  - UnreachableError carries every candidate that was probed.

IMPLEMENTATION RULES:
  - Sequential probing: "highest-priority live candidate wins", never
    "first responder wins".
  - Dedupe candidates by exact string, first-seen order preserved.

USAGE:
  r := discover.New(cfg)
  ep, err := r.Resolve(hostFlag)

SELF-HEALING INSTRUCTIONS:
  - If discovery finds nothing with a robot attached, check `ip -4 neigh`
    output by hand; the table may be empty until the OS talks to the robot.

RELATED FILES:
  - internal/discover/neigh.go
  - internal/api/client.go

MAINTENANCE:
  - Update candidate sources if robots appear on non-link-local subnets.
*/

package discover

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/daryltucker/ot2-runner/internal/config"
	"github.com/daryltucker/ot2-runner/internal/model"
	"github.com/daryltucker/ot2-runner/internal/output"
)

const (
	// WellKnownHost is the mDNS name every OT-2 advertises by default.
	WellKnownHost = "opentrons.local"
	// linkLocalSuffix marks mDNS names in the neighbor table.
	linkLocalSuffix = ".local"
	// linkLocalPrefix is the self-assigned IPv4 subnet used for direct USB links.
	linkLocalPrefix = "169.254."
	// healthPath is the probe target on the robot-server.
	healthPath = "/health"
)

// UnreachableError reports that no candidate host answered a health probe.
type UnreachableError struct {
	Candidates []string
}

func (e *UnreachableError) Error() string {
	if len(e.Candidates) == 0 {
		return "no OT-2 candidates found; connect via USB or pass --host"
	}
	return fmt.Sprintf("no reachable OT-2 robot-server among candidates: %s",
		strings.Join(e.Candidates, ", "))
}

// Resolver produces one live robot endpoint.
type Resolver struct {
	Port         int
	APIVersion   string
	ProbeTimeout time.Duration

	// Neighbors supplies neighbor-table entries. Defaults to the local
	// ip/arp tables; tests inject their own.
	Neighbors NeighborSource

	// Probe reports whether a single host answers /health. Defaults to a
	// real HTTP probe; tests inject their own.
	Probe func(host string) bool
}

// New creates a Resolver from config.
func New(cfg *config.Config) *Resolver {
	r := &Resolver{
		Port:         cfg.Port,
		APIVersion:   cfg.APIVersion,
		ProbeTimeout: cfg.ProbeTimeout,
		Neighbors:    SystemNeighbors,
	}
	r.Probe = r.probeHealth
	return r
}

// Resolve returns the endpoint for the first live candidate in priority
// order. With a non-empty hint, the hint is the only candidate considered.
func (r *Resolver) Resolve(hint string) (model.Endpoint, error) {
	hint = strings.TrimSpace(hint)
	if hint != "" {
		if r.Probe(hint) {
			return model.Endpoint{Host: hint, Port: r.Port}, nil
		}
		return model.Endpoint{}, &UnreachableError{Candidates: []string{hint}}
	}

	candidates := r.candidates()

	var live []string
	for _, candidate := range candidates {
		output.Logger.Info("Probing candidate", "host", candidate, "port", r.Port)
		if r.Probe(candidate) {
			live = append(live, candidate)
		}
	}

	if len(live) == 0 {
		return model.Endpoint{}, &UnreachableError{Candidates: candidates}
	}
	if len(live) > 1 {
		output.Logger.Warn("Multiple reachable OT-2 hosts; using the first",
			"selected", live[0], "reachable", strings.Join(live, ", "))
	}
	return model.Endpoint{Host: live[0], Port: r.Port}, nil
}

// candidates builds the ordered, deduplicated discovery list:
// well-known name, neighbor .local names, link-local neighbor addresses.
func (r *Resolver) candidates() []string {
	neighbors := []Neighbor(nil)
	if r.Neighbors != nil {
		neighbors = r.Neighbors()
	}

	ordered := []string{WellKnownHost}
	for _, n := range neighbors {
		if n.Name != "" && strings.HasSuffix(n.Name, linkLocalSuffix) {
			ordered = append(ordered, n.Name)
		}
	}
	for _, n := range neighbors {
		if strings.HasPrefix(n.IP, linkLocalPrefix) {
			ordered = append(ordered, n.IP)
		}
	}

	seen := make(map[string]bool, len(ordered))
	var out []string
	for _, c := range ordered {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// probeHealth is the default probe: one GET /health with a short timeout.
// Any completed request counts as live.
func (r *Resolver) probeHealth(host string) bool {
	client := &http.Client{Timeout: r.ProbeTimeout}
	url := fmt.Sprintf("http://%s:%d%s", host, r.Port, healthPath)

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Opentrons-Version", r.APIVersion)

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}
