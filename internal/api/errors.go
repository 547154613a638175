/*
PURPOSE:
  Typed errors for robot-server API failures.
  Callers branch on the failure kind, not on message text.

REQUIREMENTS:
  User-specified:
  - Upload, run-creation, and action failures are distinct, fatal, and
    never retried (a retry of an ambiguous side-effecting call risks a
    duplicate run on the robot).

  Implementation-discovered:
  - The smoke test needs the robot's errorType (e.g. TipAttachedError) to
    decide whether a failed command is tolerable.

ARCHITECTURE INTEGRATION:
  - Produced by: internal/api/client.go
  - Matched by: internal/runner, internal/smoketest, internal/cli

ERROR HANDLING:
  - All types support errors.As; wrapped causes support errors.Unwrap.

IMPLEMENTATION RULES:
  - Keep messages operator-facing; include ids where known.

USAGE:
  var uploadErr *api.UploadError
  if errors.As(err, &uploadErr) { ... }

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/api/client.go

MAINTENANCE:
  - Add a type when a caller needs to branch on a new failure kind.
*/

package api

import "fmt"

// RequestError reports a transport failure or an unexpected HTTP status.
type RequestError struct {
	Method string
	Path   string
	Status int
	Err    error
}

func (e *RequestError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s returned HTTP %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Method, e.Path, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// UploadError reports a failed or malformed protocol upload.
type UploadError struct {
	Detail string
	Err    error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("protocol upload failed: %s", e.Detail)
}

func (e *UploadError) Unwrap() error { return e.Err }

// RunCreateError reports a failed or malformed run creation.
type RunCreateError struct {
	Detail string
	Err    error
}

func (e *RunCreateError) Error() string {
	return fmt.Sprintf("run creation failed: %s", e.Detail)
}

func (e *RunCreateError) Unwrap() error { return e.Err }

// ActionError reports a run action that the robot did not acknowledge.
type ActionError struct {
	Action string
	Detail string
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %q not acknowledged: %s", e.Action, e.Detail)
}

func (e *ActionError) Unwrap() error { return e.Err }

// CommandError reports a maintenance-run command the robot executed and
// rejected. ErrorType carries the robot-side classification.
type CommandError struct {
	CommandType string
	ErrorType   string
	ErrorCode   string
	Detail      string
}

func (e *CommandError) Error() string {
	detail := e.Detail
	if detail == "" {
		detail = "unknown command failure"
	}
	return fmt.Sprintf("%s failed: %s", e.CommandType, detail)
}
