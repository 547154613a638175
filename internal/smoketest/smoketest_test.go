package smoketest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/daryltucker/ot2-runner/internal/api"
	"github.com/daryltucker/ot2-runner/internal/config"
	"github.com/daryltucker/ot2-runner/internal/model"
)

func TestSelectMounts(t *testing.T) {
	cases := []struct {
		raw     string
		want    []string
		wantErr bool
	}{
		{"", []string{"left", "right"}, false},
		{"both", []string{"left", "right"}, false},
		{"left", []string{"left"}, false},
		{"right", []string{"right"}, false},
		{"middle", nil, true},
		{"LEFT", nil, true},
	}
	for _, tc := range cases {
		got, err := SelectMounts(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Errorf("SelectMounts(%q): expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("SelectMounts(%q): unexpected error: %v", tc.raw, err)
			continue
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("SelectMounts(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestOrderMounts(t *testing.T) {
	both := map[string]model.Instrument{
		"left":  {Mount: "left", Name: "p300_single", MaxVolume: 300},
		"right": {Mount: "right", Name: "p20_single", MaxVolume: 20},
	}
	leftOnly := map[string]model.Instrument{
		"left": {Mount: "left", Name: "p300_single", MaxVolume: 300},
	}

	cases := []struct {
		name     string
		selected []string
		attached map[string]model.Instrument
		want     []string
	}{
		{"both selected, both attached", []string{"left", "right"}, both, []string{"left", "right"}},
		{"right selected goes first, other follows", []string{"right"}, both, []string{"right", "left"}},
		{"left selected goes first, other follows", []string{"left"}, both, []string{"left", "right"}},
		{"selection not attached falls through to other", []string{"right"}, leftOnly, []string{"left"}},
		{"both selected, one attached", []string{"left", "right"}, leftOnly, []string{"left"}},
		{"nothing attached", []string{"left", "right"}, nil, nil},
	}
	for _, tc := range cases {
		got := OrderMounts(tc.selected, tc.attached)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("%s: OrderMounts = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestVolumeSettings(t *testing.T) {
	volume, aspirate, dispense := volumeSettings(300)
	if volume != 30 {
		t.Errorf("volume = %v, want 30", volume)
	}
	if aspirate != 5 {
		t.Errorf("aspirate flow = %v, want 5", aspirate)
	}
	if dispense != 10 {
		t.Errorf("dispense flow = %v, want 10", dispense)
	}

	// Small pipette hits the lower clamps.
	volume, aspirate, dispense = volumeSettings(20)
	if volume != 2 {
		t.Errorf("volume = %v, want 2", volume)
	}
	if aspirate != 2 {
		t.Errorf("aspirate flow = %v, want clamp floor 2", aspirate)
	}
	if dispense != 4 {
		t.Errorf("dispense flow = %v, want clamp floor 4", dispense)
	}
}

func TestSlotCenter(t *testing.T) {
	p, err := slotCenter("5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.X != 196.5 || p.Y != 133.5 || p.Z != 0 {
		t.Errorf("slot 5 center = %+v, want (196.5, 133.5, 0)", p)
	}

	if _, err := slotCenter("13"); err == nil {
		t.Error("expected error for slot 13")
	}
}

func TestPrompter(t *testing.T) {
	p := NewPrompter(strings.NewReader("x\nr\n"), io.Discard, true)
	ok, err := p.ConfirmTip("left", "p300_single")
	if err != nil || !ok {
		t.Errorf("ConfirmTip = (%v, %v), want (true, nil)", ok, err)
	}

	p = NewPrompter(strings.NewReader("k\n"), io.Discard, true)
	ok, err = p.ConfirmTip("left", "p300_single")
	if err != nil || ok {
		t.Errorf("ConfirmTip = (%v, %v), want (false, nil)", ok, err)
	}

	p = NewPrompter(strings.NewReader("\n"), io.Discard, true)
	again, err := p.ContinueCycles()
	if err != nil || !again {
		t.Errorf("ContinueCycles on Enter = (%v, %v), want (true, nil)", again, err)
	}

	p = NewPrompter(strings.NewReader("s\n"), io.Discard, true)
	again, err = p.ContinueCycles()
	if err != nil || again {
		t.Errorf("ContinueCycles on 's' = (%v, %v), want (false, nil)", again, err)
	}

	p = NewPrompter(strings.NewReader(""), io.Discard, false)
	if err := p.RequireInteractive(); err == nil {
		t.Error("RequireInteractive should fail when not interactive")
	}
}

// fakeMaintenanceRobot implements the maintenance-run endpoints used by
// the smoke test; every command succeeds immediately.
type fakeMaintenanceRobot struct {
	mu       sync.Mutex
	commands []string          // commandType in post order
	cmdTypes map[string]string // command id -> type
	nextCmd  int
}

func (f *fakeMaintenanceRobot) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch {
		case r.URL.Path == "/health":
			json.NewEncoder(w).Encode(map[string]any{
				"name": "OT2TEST", "robot_model": "OT-2 Standard", "api_version": "2",
			})

		case r.URL.Path == "/instruments":
			json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{
				{"instrumentType": "pipette", "instrumentName": "p300_single", "mount": "left",
					"ok": true, "data": map[string]any{"max_volume": 300.0}},
			}})

		case r.URL.Path == "/maintenance_runs/current_run":
			http.NotFound(w, r)

		case r.Method == http.MethodPost && r.URL.Path == "/maintenance_runs":
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"id": "m1"}})

		case r.Method == http.MethodPost && r.URL.Path == "/maintenance_runs/m1/commands":
			var body struct {
				Data struct {
					CommandType string `json:"commandType"`
				} `json:"data"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			f.nextCmd++
			id := fmt.Sprintf("cmd-%d", f.nextCmd)
			if f.cmdTypes == nil {
				f.cmdTypes = map[string]string{}
			}
			f.cmdTypes[id] = body.Data.CommandType
			f.commands = append(f.commands, body.Data.CommandType)
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"id": id}})

		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/maintenance_runs/m1/commands/"):
			id := strings.TrimPrefix(r.URL.Path, "/maintenance_runs/m1/commands/")
			result := map[string]any{}
			switch f.cmdTypes[id] {
			case "loadPipette":
				result["pipetteId"] = "pip-1"
			case "loadLabware":
				result["labwareId"] = "lw-" + id
			}
			json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
				"status": "succeeded", "result": result,
			}})

		case r.Method == http.MethodGet && r.URL.Path == "/maintenance_runs/m1":
			json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"status": "idle"}})

		case r.Method == http.MethodDelete && r.URL.Path == "/maintenance_runs/m1":
			json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"id": "m1"}})

		default:
			http.NotFound(w, r)
		}
	})
}

func TestRun_SingleMountSingleCycle(t *testing.T) {
	robot := &fakeMaintenanceRobot{}
	server := httptest.NewServer(robot.handler())
	defer server.Close()

	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("failed to parse test server URL: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("failed to parse test server port: %v", err)
	}

	client := api.NewClient(model.Endpoint{Host: u.Hostname(), Port: port}, config.DefaultConfig())

	// Operator: confirm tip, then stop after one cycle.
	prompt := NewPrompter(strings.NewReader("r\ns\n"), io.Discard, true)
	tester := New(client, []string{"left", "right"}, prompt)

	if err := tester.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"home",
		"loadPipette", "moveToCoordinates", "moveRelative",
		"loadLabware", "loadLabware", "pickUpTip",
		"moveToCoordinates", "moveRelative",
		"prepareToAspirate", "aspirateInPlace", "dispenseInPlace",
		"dropTip",
		"home",
	}
	if !reflect.DeepEqual(robot.commands, want) {
		t.Errorf("command sequence =\n%v\nwant\n%v", robot.commands, want)
	}
}
