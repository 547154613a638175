/*
PURPOSE:
  Pipette smoke test over the robot-server maintenance-run API (no SSH).
  Detects attached pipettes, moves each selected mount over the deck,
  and runs operator-paced aspirate/dispense cycles.

REQUIREMENTS:
  User-specified:
  - Mount selection: left, right, or both (default both).
  - Flow per mount: move to slot 5, lower, operator tip confirm, register
    tip, aspirate/dispense at 10% max volume until the operator stops,
    drop tip in trash.
  - Home before the sequence and after each mount.

  Implementation-discovered:
  - Tip state lives on the robot: pickUpTip against a virtual tiprack
    registers it; TipAttachedError there just means it already is.
  - TipNotAttachedError mid-cycle means tracking was lost; re-register
    and retry the aspirate once.
  - A stale maintenance run blocks creating ours; wait for idle, delete it.
  - Always try to delete our maintenance run on the way out, even after
    a failure, so the robot is usable afterwards.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli (smoke-test command)
  - Uses: internal/api, internal/model, internal/output

ERROR HANDLING:
  - Any unexpected command failure aborts the test; cleanup still runs.

IMPLEMENTATION RULES:
  - The resolved endpoint and mount selection are handed in; no discovery
    or config reads in here.

USAGE:
  tester := smoketest.New(client, mounts, prompter)
  err := tester.Run()

SELF-HEALING INSTRUCTIONS:
  - If commands hang, check for an abandoned maintenance run on the robot
    (GET /maintenance_runs/current_run) and delete it.

RELATED FILES:
  - internal/api/client.go
  - internal/smoketest/deck.go
  - internal/smoketest/prompt.go

MAINTENANCE:
  - Keep labware load names in sync with what the lab actually racks.
*/

package smoketest

import (
	"errors"
	"fmt"
	"time"

	"github.com/daryltucker/ot2-runner/internal/api"
	"github.com/daryltucker/ot2-runner/internal/model"
	"github.com/daryltucker/ot2-runner/internal/output"
)

const (
	// testFraction of a pipette's max volume is exercised per cycle.
	testFraction = 0.10

	targetSlot      = "5"
	tiprackSlot     = "5"
	trashSlot       = "11"
	approachZ       = 120.0
	lowerDistanceMM = 40.0

	tiprackLoadName  = "opentrons_96_tiprack_300ul"
	tiprackNamespace = "opentrons"
	tiprackVersion   = 1

	trashLoadName  = "opentrons_1_trash_1100ml_fixed"
	trashNamespace = "opentrons"
	trashVersion   = 1
	trashWell      = "A1"

	idleWait = 60 * time.Second
)

// tipWellByMount keeps the two mounts on separate virtual tiprack wells so
// the robot does not complain about a well being used twice.
var tipWellByMount = map[string]string{
	"left":  "A1",
	"right": "B1",
}

// SelectMounts validates a mount selector and expands it to mount names.
func SelectMounts(raw string) ([]string, error) {
	switch raw {
	case "", "both":
		return []string{"left", "right"}, nil
	case "left", "right":
		return []string{raw}, nil
	}
	return nil, fmt.Errorf("invalid mount %q: use left, right, or both", raw)
}

// OrderMounts returns the attached mounts to test, in order. A single
// selection is tested first, then the other mount if attached; "both"
// always goes left then right.
func OrderMounts(selected []string, attached map[string]model.Instrument) []string {
	var ordered []string
	if len(selected) == 1 {
		first := selected[0]
		other := "right"
		if first == "right" {
			other = "left"
		}
		ordered = []string{first, other}
	} else {
		ordered = []string{"left", "right"}
	}

	var out []string
	for _, mount := range ordered {
		if _, ok := attached[mount]; ok {
			out = append(out, mount)
		}
	}
	return out
}

// volumeSettings derives the test volume and flow rates for a pipette.
func volumeSettings(maxVolume float64) (volume, aspirateFlow, dispenseFlow float64) {
	volume = round2(maxVolume * testFraction)
	aspirateFlow = clamp(round2(volume/6), 2, 50)
	dispenseFlow = clamp(round2(volume/3), 4, 100)
	return volume, aspirateFlow, dispenseFlow
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Tester runs the smoke test against one robot.
type Tester struct {
	Client *api.Client
	Mounts []string
	Prompt *Prompter
}

// New creates a Tester for an already-resolved robot endpoint.
func New(client *api.Client, mounts []string, prompt *Prompter) *Tester {
	return &Tester{Client: client, Mounts: mounts, Prompt: prompt}
}

// Run executes the full smoke test.
func (t *Tester) Run() error {
	if err := t.Prompt.RequireInteractive(); err != nil {
		return err
	}

	health, err := t.Client.Health()
	if err != nil {
		return err
	}
	output.Logger.Info("Connected to robot-server",
		"name", health.Name, "model", health.RobotModel, "api_version", health.APIVersion)

	instruments, err := t.Client.Instruments()
	if err != nil {
		return err
	}
	attached := make(map[string]model.Instrument, len(instruments))
	for _, inst := range instruments {
		attached[inst.Mount] = inst
	}
	if len(attached) == 0 {
		return fmt.Errorf("no attached pipettes detected; install a pipette and retry")
	}

	mounts := OrderMounts(t.Mounts, attached)
	if len(mounts) == 0 {
		return fmt.Errorf("no attached pipettes matched selected mount(s): %v", t.Mounts)
	}
	for _, mount := range mounts {
		output.Logger.Info("Will test pipette", "pipette", attached[mount].Name, "mount", mount)
	}

	if err := t.ensureNoCurrentRun(); err != nil {
		return err
	}

	runID, err := t.Client.CreateMaintenanceRun()
	if err != nil {
		return err
	}
	output.Logger.Info("Created maintenance run", "run_id", runID)
	defer t.cleanup(runID)

	output.Logger.Info("Homing robot before test sequence")
	if _, err := t.Client.PostCommand(runID, "home", map[string]any{}); err != nil {
		return err
	}

	labware := map[string]string{}
	for _, mount := range mounts {
		output.Logger.Info("Starting mount test", "mount", mount)
		if err := t.exerciseMount(runID, mount, attached[mount], labware); err != nil {
			return err
		}
		output.Logger.Info("Homing robot after mount test", "mount", mount)
		if _, err := t.Client.PostCommand(runID, "home", map[string]any{}); err != nil {
			return err
		}
	}

	output.Logger.Info("Pipette smoke test complete")
	return nil
}

func (t *Tester) ensureNoCurrentRun() error {
	runID, err := t.Client.CurrentMaintenanceRun()
	if err != nil {
		return err
	}
	if runID == "" {
		return nil
	}
	output.Logger.Warn("Found existing maintenance run; waiting for idle then deleting it",
		"run_id", runID)
	if err := t.Client.WaitUntilIdle(runID, idleWait); err != nil {
		return err
	}
	return t.Client.DeleteMaintenanceRun(runID)
}

func (t *Tester) cleanup(runID string) {
	if err := t.Client.WaitUntilIdle(runID, idleWait); err != nil {
		output.Logger.Warn("Maintenance run did not become idle before cleanup",
			"run_id", runID, "error", err)
	}
	if err := t.Client.DeleteMaintenanceRun(runID); err != nil {
		output.Logger.Warn("Failed to delete maintenance run", "run_id", runID, "error", err)
		return
	}
	output.Logger.Info("Deleted maintenance run", "run_id", runID)
}

func (t *Tester) exerciseMount(runID, mount string, instrument model.Instrument, labware map[string]string) error {
	volume, aspirateFlow, dispenseFlow := volumeSettings(instrument.MaxVolume)
	if volume <= 0 {
		return fmt.Errorf("non-positive test volume for %s@%s", instrument.Name, mount)
	}

	pipetteID, err := t.loadPipette(runID, mount, instrument.Name)
	if err != nil {
		return err
	}
	output.Logger.Info("Loaded pipette", "pipette", instrument.Name, "mount", mount, "pipette_id", pipetteID)

	if err := t.moveToSlotAndLower(runID, pipetteID, mount); err != nil {
		return err
	}

	proceed, err := t.Prompt.ConfirmTip(mount, instrument.Name)
	if err != nil {
		return err
	}
	if !proceed {
		output.Logger.Warn("Skipping mount at operator request", "pipette", instrument.Name, "mount", mount)
		return nil
	}

	tiprackID, err := t.ensureLabware(runID, labware, "tiprack", tiprackLoadName, tiprackNamespace, tiprackVersion, tiprackSlot)
	if err != nil {
		return err
	}
	trashID, err := t.ensureLabware(runID, labware, "trash", trashLoadName, trashNamespace, trashVersion, trashSlot)
	if err != nil {
		return err
	}
	tipWell := tipWellByMount[mount]

	if err := t.registerTip(runID, pipetteID, tiprackID, tipWell, mount, instrument.Name); err != nil {
		return err
	}
	if err := t.moveToSlotAndLower(runID, pipetteID, mount); err != nil {
		return err
	}

	output.Logger.Info("Starting cycle loop",
		"pipette", instrument.Name, "mount", mount,
		"volume_ul", volume, "aspirate_flow", aspirateFlow, "dispense_flow", dispenseFlow)

	for cycle := 1; ; cycle++ {
		if _, err := t.Client.PostCommand(runID, "prepareToAspirate",
			map[string]any{"pipetteId": pipetteID}); err != nil {
			return err
		}

		output.Logger.Info("Aspirating", "mount", mount, "cycle", cycle)
		if err := t.aspirate(runID, pipetteID, tiprackID, tipWell, mount, instrument.Name, volume, aspirateFlow); err != nil {
			return err
		}

		output.Logger.Info("Dispensing", "mount", mount, "cycle", cycle)
		if _, err := t.Client.PostCommand(runID, "dispenseInPlace", map[string]any{
			"pipetteId": pipetteID,
			"volume":    volume,
			"flowRate":  dispenseFlow,
			"pushOut":   0.0,
		}); err != nil {
			return err
		}

		again, err := t.Prompt.ContinueCycles()
		if err != nil {
			return err
		}
		if !again {
			output.Logger.Info("Stopping cycle loop", "mount", mount, "cycles", cycle)
			break
		}
	}

	return t.discardTip(runID, pipetteID, mount, instrument.Name, tiprackID, tipWell, trashID)
}

func (t *Tester) loadPipette(runID, mount, pipetteName string) (string, error) {
	result, err := t.Client.PostCommand(runID, "loadPipette", map[string]any{
		"pipetteName": pipetteName,
		"mount":       mount,
	})
	if err != nil {
		return "", err
	}
	id, _ := result["pipetteId"].(string)
	if id == "" {
		return "", fmt.Errorf("loadPipette returned no pipetteId for %s@%s", pipetteName, mount)
	}
	return id, nil
}

func (t *Tester) moveToSlotAndLower(runID, pipetteID, mount string) error {
	center, err := slotCenter(targetSlot)
	if err != nil {
		return err
	}

	output.Logger.Info("Moving mount to slot", "mount", mount, "slot", targetSlot, "z_mm", approachZ)
	if _, err := t.Client.PostCommand(runID, "moveToCoordinates", map[string]any{
		"pipetteId":   pipetteID,
		"coordinates": map[string]any{"x": center.X, "y": center.Y, "z": approachZ},
	}); err != nil {
		return err
	}

	output.Logger.Info("Lowering mount", "mount", mount, "distance_mm", lowerDistanceMM)
	_, err = t.Client.PostCommand(runID, "moveRelative", map[string]any{
		"pipetteId": pipetteID,
		"axis":      "z",
		"distance":  -lowerDistanceMM,
	})
	return err
}

func (t *Tester) ensureLabware(runID string, cache map[string]string, key, loadName, namespace string, version int, slot string) (string, error) {
	if id := cache[key]; id != "" {
		return id, nil
	}
	result, err := t.Client.PostCommand(runID, "loadLabware", map[string]any{
		"location":  map[string]any{"slotName": slot},
		"loadName":  loadName,
		"namespace": namespace,
		"version":   version,
	})
	if err != nil {
		return "", err
	}
	id, _ := result["labwareId"].(string)
	if id == "" {
		return "", fmt.Errorf("loadLabware for %s returned no labwareId", key)
	}
	cache[key] = id
	return id, nil
}

// registerTip tells the robot a tip is attached via pickUpTip against the
// virtual tiprack. An already-attached tip is fine.
func (t *Tester) registerTip(runID, pipetteID, tiprackID, tipWell, mount, pipetteName string) error {
	output.Logger.Info("Registering tip state", "mount", mount, "well", tipWell)
	_, err := t.Client.PostCommand(runID, "pickUpTip", map[string]any{
		"pipetteId": pipetteID,
		"labwareId": tiprackID,
		"wellName":  tipWell,
	})
	var cmdErr *api.CommandError
	if errors.As(err, &cmdErr) && cmdErr.ErrorType == "TipAttachedError" {
		output.Logger.Warn("Robot already reports a tip attached; continuing",
			"pipette", pipetteName, "mount", mount)
		return nil
	}
	return err
}

// aspirate runs aspirateInPlace, re-registering the tip and retrying once
// if the robot lost tip tracking.
func (t *Tester) aspirate(runID, pipetteID, tiprackID, tipWell, mount, pipetteName string, volume, flowRate float64) error {
	params := map[string]any{
		"pipetteId": pipetteID,
		"volume":    volume,
		"flowRate":  flowRate,
	}
	_, err := t.Client.PostCommand(runID, "aspirateInPlace", params)
	var cmdErr *api.CommandError
	if errors.As(err, &cmdErr) && cmdErr.ErrorType == "TipNotAttachedError" {
		output.Logger.Warn("Tip tracking lost; re-registering tip", "pipette", pipetteName, "mount", mount)
		if err := t.registerTip(runID, pipetteID, tiprackID, tipWell, mount, pipetteName); err != nil {
			return err
		}
		_, err = t.Client.PostCommand(runID, "aspirateInPlace", params)
		return err
	}
	return err
}

// discardTip drops the tip into the trash labware, falling back to the
// tiprack location, then to a manual discard prompt.
func (t *Tester) discardTip(runID, pipetteID, mount, pipetteName, tiprackID, tipWell, trashID string) error {
	output.Logger.Info("Dropping tip into trash", "pipette", pipetteName, "mount", mount)
	_, err := t.Client.PostCommand(runID, "dropTip", map[string]any{
		"pipetteId": pipetteID,
		"labwareId": trashID,
		"wellName":  trashWell,
		"homeAfter": false,
	})
	if err == nil {
		return nil
	}
	output.Logger.Warn("dropTip to trash failed", "error", err)

	output.Logger.Warn("Falling back to dropTip in tiprack location to clear tip state")
	_, err = t.Client.PostCommand(runID, "dropTip", map[string]any{
		"pipetteId": pipetteID,
		"labwareId": tiprackID,
		"wellName":  tipWell,
		"homeAfter": false,
	})
	if err == nil {
		return nil
	}
	output.Logger.Warn("Fallback dropTip failed", "error", err)

	return t.Prompt.ManualDiscard(mount, pipetteName)
}
