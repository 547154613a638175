/*
PURPOSE:
  Defines the core data structures used throughout the OT-2 Runner.
  These models represent the robot endpoint, run outcomes, and instruments.

REQUIREMENTS:
  User-specified:
  - Carry run status and structured run errors end to end.
  - Identify the robot by (host, port).

  Implementation-discovered:
  - Need JSON tags matching the robot-server response shapes.

ARCHITECTURE INTEGRATION:
  - Used by: internal/discover, internal/api, internal/runner, internal/smoketest
  - Shared across boundaries.

ERROR HANDLING:
  - None (pure data structs).

IMPLEMENTATION RULES:
  - Keep structs simple and public.
  - Endpoint is immutable once resolved; treat it as a value.

USAGE:
  ep := model.Endpoint{Host: "169.254.9.30", Port: 31950}

SELF-HEALING INSTRUCTIONS:
  - If the robot-server adds fields we care about, extend the structs here.

RELATED FILES:
  - internal/api/client.go
  - internal/runner/runner.go

MAINTENANCE:
  - Update when new robot-server response fields are consumed.
*/

package model

import "fmt"

// Endpoint is a reachable (host, port) pair for the robot's control service.
type Endpoint struct {
	Host string
	Port int
}

// BaseURL returns the http base URL for the endpoint.
func (e Endpoint) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", e.Host, e.Port)
}

// String implements fmt.Stringer.
func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// RunError is a structured error entry reported by the robot-server for a run.
type RunError struct {
	ID        string `json:"id,omitempty"`
	ErrorType string `json:"errorType,omitempty"`
	ErrorCode string `json:"errorCode,omitempty"`
	Detail    string `json:"detail,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// HealthInfo is the subset of GET /health we report to the operator.
type HealthInfo struct {
	Name       string `json:"name"`
	RobotModel string `json:"robot_model"`
	APIVersion string `json:"api_version"`
}

// Instrument describes one attached pipette as reported by GET /instruments.
type Instrument struct {
	Mount     string
	Name      string
	MaxVolume float64
}
