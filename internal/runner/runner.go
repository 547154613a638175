/*
PURPOSE:
  Drives one protocol run through its lifecycle on the robot:
  upload -> create run -> play -> poll to a terminal outcome.

REQUIREMENTS:
  User-specified:
  - Single-shot: one upload, one run, one outcome. Never retry the
    side-effecting steps; a duplicate run on a live robot moves hardware.
  - Timeout is wall-clock from loop start, checked after each poll.
  - paused/pause-requested are terminal failures. This tool cannot resume
    a run, so a paused run can never finish under it. Preserve this; do
    not add resume logic.

  Implementation-discovered:
  - Unknown statuses are logged verbatim and treated as still pending.
  - A timed-out run keeps playing on the robot; the outcome carries the
    run id so the operator can find it.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli
  - Uses: internal/api, internal/model, internal/output

ERROR HANDLING:
  - Infra failures (upload/create/play/poll transport) return an error.
  - Terminal run outcomes return an Outcome; Outcome.Err() converts the
    failure variants to typed errors for exit-status mapping.

IMPLEMENTATION RULES:
  - Enumerated outcome kind with per-variant payload, not nested string
    conditionals: the failure set must be reviewable in one place.
  - Polls strictly sequential; the sleep is the only suspension point.

USAGE:
  ctrl := runner.New(client, cfg)
  outcome, err := ctrl.Run("protocol.py")

SELF-HEALING INSTRUCTIONS:
  - If the robot-server grows new terminal statuses, extend
    terminalFailures; anything unlisted is treated as pending.

RELATED FILES:
  - internal/api/client.go
  - internal/cli/run.go

MAINTENANCE:
  - Keep the failure set in sync with the robot-server run status vocabulary.
*/

package runner

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/daryltucker/ot2-runner/internal/api"
	"github.com/daryltucker/ot2-runner/internal/config"
	"github.com/daryltucker/ot2-runner/internal/model"
	"github.com/daryltucker/ot2-runner/internal/output"
)

// StatusSucceeded is the only terminal success status.
const StatusSucceeded = "succeeded"

// terminalFailures is the full terminal-failure status set. paused and
// pause-requested belong here: with no resume capability a paused run is
// dead to this orchestrator.
var terminalFailures = map[string]bool{
	"failed":               true,
	"stopped":              true,
	"blocked-by-open-door": true,
	"paused":               true,
	"pause-requested":      true,
}

// OutcomeKind enumerates terminal results of one orchestration.
type OutcomeKind int

const (
	// OutcomeSucceeded: the run reported status "succeeded".
	OutcomeSucceeded OutcomeKind = iota
	// OutcomeRunFailed: the run reached a terminal failure status.
	OutcomeRunFailed
	// OutcomeTimedOut: no terminal status within the configured budget.
	OutcomeTimedOut
)

// Outcome is the single, final result of a lifecycle run.
type Outcome struct {
	Kind   OutcomeKind
	RunID  string
	Status string
	Errors []model.RunError
}

// Err returns nil for success and a typed error for the failure variants.
func (o Outcome) Err() error {
	switch o.Kind {
	case OutcomeRunFailed:
		return &RunFailedError{RunID: o.RunID, Status: o.Status, Errors: o.Errors}
	case OutcomeTimedOut:
		return &TimeoutError{RunID: o.RunID}
	default:
		return nil
	}
}

// RunFailedError reports a run that ended in a terminal non-success status.
type RunFailedError struct {
	RunID  string
	Status string
	Errors []model.RunError
}

func (e *RunFailedError) Error() string {
	msg := fmt.Sprintf("run %s ended with status %q", e.RunID, e.Status)
	if len(e.Errors) > 0 {
		var details []string
		for _, re := range e.Errors {
			d := re.Detail
			if d == "" {
				d = re.ErrorType
			}
			if d != "" {
				details = append(details, d)
			}
		}
		if len(details) > 0 {
			msg += ": " + strings.Join(details, "; ")
		}
	}
	return msg
}

// TimeoutError reports that the run did not reach a terminal status in
// time. The run is still playing on the robot.
type TimeoutError struct {
	RunID string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("run %s did not finish within the configured timeout; it is still running on the robot", e.RunID)
}

// Controller owns the upload/create/play/poll sequence for one run.
type Controller struct {
	Client       *api.Client
	Timeout      time.Duration
	PollInterval time.Duration

	// Session is a client-side correlation id attached to every log line
	// so operator logs can be tied back to one orchestration.
	Session string

	now   func() time.Time
	sleep func(time.Duration)
}

// New creates a Controller from config.
func New(client *api.Client, cfg *config.Config) *Controller {
	return &Controller{
		Client:       client,
		Timeout:      cfg.RunTimeout,
		PollInterval: cfg.PollInterval,
		Session:      uuid.NewString(),
		now:          time.Now,
		sleep:        time.Sleep,
	}
}

// Run executes the full lifecycle for one protocol file and returns the
// terminal outcome. Errors are infrastructure failures; terminal run
// results (including timeout) come back as an Outcome.
func (c *Controller) Run(protocolPath string) (Outcome, error) {
	log := output.Logger.With("session", c.Session)

	log.Info("Uploading protocol", "file", protocolPath, "robot", c.Client.Endpoint.String())
	uploadID, err := c.Client.UploadProtocol(protocolPath)
	if err != nil {
		return Outcome{}, err
	}
	log.Info("Protocol uploaded", "upload_id", uploadID)

	runID, err := c.Client.CreateRun(uploadID)
	if err != nil {
		return Outcome{}, err
	}
	log.Info("Run created", "run_id", runID)

	if err := c.Client.PostAction(runID, "play"); err != nil {
		return Outcome{}, err
	}
	log.Info("Play acknowledged", "run_id", runID)

	start := c.now()
	for {
		status, runErrs, err := c.Client.GetRunStatus(runID)
		if err != nil {
			return Outcome{}, err
		}

		if status == StatusSucceeded {
			log.Info("Run succeeded", "run_id", runID)
			return Outcome{Kind: OutcomeSucceeded, RunID: runID, Status: status}, nil
		}
		if terminalFailures[status] {
			log.Error("Run ended in terminal failure",
				"run_id", runID, "status", status, "errors", len(runErrs))
			return Outcome{
				Kind:   OutcomeRunFailed,
				RunID:  runID,
				Status: status,
				Errors: runErrs,
			}, nil
		}

		logged := status
		if logged == "" {
			logged = "unknown"
		}
		log.Info("Run still pending", "run_id", runID, "status", logged)

		// Timeout check happens after a completed poll, never preempting one.
		if c.now().Sub(start) > c.Timeout {
			log.Error("Run timed out", "run_id", runID, "timeout", c.Timeout)
			return Outcome{Kind: OutcomeTimedOut, RunID: runID, Status: status}, nil
		}

		c.sleep(c.PollInterval)
	}
}
