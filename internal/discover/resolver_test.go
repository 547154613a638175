package discover

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func newTestResolver(neighbors []Neighbor, live map[string]bool, probed *[]string) *Resolver {
	r := &Resolver{
		Port:         31950,
		APIVersion:   "2",
		ProbeTimeout: time.Second,
		Neighbors:    func() []Neighbor { return neighbors },
	}
	r.Probe = func(host string) bool {
		*probed = append(*probed, host)
		return live[host]
	}
	return r
}

func TestResolve_NoLiveCandidates(t *testing.T) {
	neighbors := []Neighbor{
		{Name: "dev-ot2.local", IP: "169.254.9.30"},
		{IP: "169.254.12.4"},
	}
	var probed []string
	r := newTestResolver(neighbors, nil, &probed)

	_, err := r.Resolve("")
	if err == nil {
		t.Fatal("expected error with no live candidates")
	}

	var unreachable *UnreachableError
	if !errors.As(err, &unreachable) {
		t.Fatalf("expected UnreachableError, got %T: %v", err, err)
	}

	want := []string{WellKnownHost, "dev-ot2.local", "169.254.9.30", "169.254.12.4"}
	if !reflect.DeepEqual(probed, want) {
		t.Errorf("probe order = %v, want %v", probed, want)
	}
	if !reflect.DeepEqual(unreachable.Candidates, want) {
		t.Errorf("error candidates = %v, want %v", unreachable.Candidates, want)
	}
}

func TestResolve_FirstLiveWinsEvenWhenOthersAreLive(t *testing.T) {
	neighbors := []Neighbor{
		{Name: "dev-ot2.local", IP: "169.254.9.30"},
		{IP: "169.254.12.4"},
	}
	live := map[string]bool{
		"dev-ot2.local": true,
		"169.254.12.4":  true,
	}
	var probed []string
	r := newTestResolver(neighbors, live, &probed)

	ep, err := r.Resolve("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.Host != "dev-ot2.local" {
		t.Errorf("resolved host = %q, want dev-ot2.local", ep.Host)
	}
	if ep.Port != 31950 {
		t.Errorf("resolved port = %d, want 31950", ep.Port)
	}

	// All candidates are probed exactly once even after a live hit.
	want := []string{WellKnownHost, "dev-ot2.local", "169.254.9.30", "169.254.12.4"}
	if !reflect.DeepEqual(probed, want) {
		t.Errorf("probe order = %v, want %v", probed, want)
	}
}

func TestResolve_WellKnownHostHasTopPriority(t *testing.T) {
	neighbors := []Neighbor{{IP: "169.254.12.4"}}
	live := map[string]bool{
		WellKnownHost:  true,
		"169.254.12.4": true,
	}
	var probed []string
	r := newTestResolver(neighbors, live, &probed)

	ep, err := r.Resolve("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.Host != WellKnownHost {
		t.Errorf("resolved host = %q, want %q", ep.Host, WellKnownHost)
	}
}

func TestResolve_ExplicitHintProbesOnlyThatHost(t *testing.T) {
	neighbors := []Neighbor{{IP: "169.254.12.4"}}
	var probed []string
	r := newTestResolver(neighbors, nil, &probed)

	_, err := r.Resolve("10.0.0.5")

	var unreachable *UnreachableError
	if !errors.As(err, &unreachable) {
		t.Fatalf("expected UnreachableError, got %T: %v", err, err)
	}
	if !reflect.DeepEqual(probed, []string{"10.0.0.5"}) {
		t.Errorf("probed = %v, want only the hint", probed)
	}
	if !reflect.DeepEqual(unreachable.Candidates, []string{"10.0.0.5"}) {
		t.Errorf("error candidates = %v, want only the hint", unreachable.Candidates)
	}
}

func TestResolve_LiveHint(t *testing.T) {
	var probed []string
	r := newTestResolver(nil, map[string]bool{"10.0.0.5": true}, &probed)

	ep, err := r.Resolve(" 10.0.0.5 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.Host != "10.0.0.5" {
		t.Errorf("resolved host = %q, want 10.0.0.5", ep.Host)
	}
	if len(probed) != 1 {
		t.Errorf("probe count = %d, want 1", len(probed))
	}
}

func TestCandidates_DedupePreservesFirstSeenOrder(t *testing.T) {
	neighbors := []Neighbor{
		{Name: "opentrons.local", IP: "169.254.9.30"},
		{Name: "dev-ot2.local", IP: "169.254.9.30"},
		{IP: "169.254.12.4"},
		{IP: "169.254.12.4"},
		{Name: "printer.corp", IP: "10.1.2.3"},
	}
	r := &Resolver{Neighbors: func() []Neighbor { return neighbors }}

	got := r.candidates()
	want := []string{"opentrons.local", "dev-ot2.local", "169.254.9.30", "169.254.12.4"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("candidates = %v, want %v", got, want)
	}
}

func TestParseIPNeigh(t *testing.T) {
	out := "169.254.9.30 dev enx0c37 lladdr 0c:37:96:2a:aa:bb STALE\n" +
		"169.254.12.4 dev enx0c37 FAILED\n" +
		"fe80::1 dev eth0 lladdr 00:11:22:33:44:55 REACHABLE\n" +
		"192.168.1.10 dev eth0 lladdr 66:77:88:99:aa:bb REACHABLE\n"

	got := parseIPNeigh(out)
	want := []Neighbor{{IP: "169.254.9.30"}, {IP: "192.168.1.10"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseIPNeigh = %v, want %v", got, want)
	}
}

func TestParseArp(t *testing.T) {
	out := "opentrons.local (169.254.9.30) at 0c:37:96:2a:aa:bb on enx0c37 ifscope [ethernet]\n" +
		"? (169.254.12.4) at (incomplete) on enx0c37 ifscope [ethernet]\n" +
		"? (192.168.1.1) at 66:77:88:99:aa:bb on en0 ifscope [ethernet]\n"

	got := parseArp(out)
	want := []Neighbor{
		{Name: "opentrons.local", IP: "169.254.9.30"},
		{Name: "", IP: "192.168.1.1"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseArp = %v, want %v", got, want)
	}
}
