/*
PURPOSE:
  HTTP client for the OT-2 robot-server REST API.
  Stateless request helpers: upload, runs, actions, instruments,
  maintenance runs, calibration snapshots.

REQUIREMENTS:
  User-specified:
  - Every request carries the fixed Opentrons-Version header.
  - No retries here: a non-2xx or malformed response is a hard failure
    surfaced to the caller. Polling policy lives in the lifecycle layer.

  Implementation-discovered:
  - The robot-server wraps most payloads in a {data: ...} envelope.
  - /health is flat (no envelope).
  - Maintenance-run commands are create-then-poll; the poll is part of the
    command contract, so PostCommand owns it.

ARCHITECTURE INTEGRATION:
  - Called by: internal/runner, internal/smoketest, internal/cli
  - Uses: internal/model

ERROR HANDLING:
  - Typed errors from errors.go; transport problems wrapped in RequestError.

IMPLEMENTATION RULES:
  - Use net/http with a bounded client timeout.
  - Decode into anonymous structs per call; no shared DTO sprawl.
  - Multipart field name for protocol files is `files`.

USAGE:
  c := api.NewClient(endpoint, cfg)
  uploadID, err := c.UploadProtocol("protocol.py")

SELF-HEALING INSTRUCTIONS:
  - If the robot-server API version changes shape, update the per-call
    anonymous structs here; nothing else parses robot JSON.

RELATED FILES:
  - internal/api/errors.go
  - internal/model/types.go

MAINTENANCE:
  - Update for new robot-server endpoints.
*/

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/daryltucker/ot2-runner/internal/config"
	"github.com/daryltucker/ot2-runner/internal/model"
)

// Client talks to one robot-server endpoint.
type Client struct {
	Endpoint   model.Endpoint
	APIVersion string
	HTTP       *http.Client

	// CommandTimeout bounds one maintenance-run command execution.
	CommandTimeout time.Duration
	// CommandPoll is the sleep between command status polls.
	CommandPoll time.Duration
}

// NewClient creates a Client for the resolved endpoint.
func NewClient(endpoint model.Endpoint, cfg *config.Config) *Client {
	return &Client{
		Endpoint:       endpoint,
		APIVersion:     cfg.APIVersion,
		HTTP:           &http.Client{Timeout: cfg.HTTPTimeout},
		CommandTimeout: 180 * time.Second,
		CommandPoll:    200 * time.Millisecond,
	}
}

// --- Protocol run API ---

// UploadProtocol uploads the protocol file and returns the assigned id.
func (c *Client) UploadProtocol(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", &UploadError{Detail: err.Error(), Err: err}
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("files", filepath.Base(filePath))
	if err != nil {
		return "", &UploadError{Detail: err.Error(), Err: err}
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", &UploadError{Detail: err.Error(), Err: err}
	}
	if err := mw.Close(); err != nil {
		return "", &UploadError{Detail: err.Error(), Err: err}
	}

	req, err := http.NewRequest(http.MethodPost, c.url("/protocols"), &body)
	if err != nil {
		return "", &UploadError{Detail: err.Error(), Err: err}
	}
	req.Header.Set("Opentrons-Version", c.APIVersion)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	raw, err := c.send(req, "/protocols")
	if err != nil {
		return "", &UploadError{Detail: err.Error(), Err: err}
	}

	var payload struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", &UploadError{Detail: "invalid JSON response", Err: err}
	}
	if payload.Data.ID == "" {
		return "", &UploadError{Detail: "response missing data.id"}
	}
	return payload.Data.ID, nil
}

// CreateRun creates a run for an uploaded protocol and returns the run id.
func (c *Client) CreateRun(uploadID string) (string, error) {
	body := map[string]any{"data": map[string]any{"protocolId": uploadID}}

	raw, err := c.doJSON(http.MethodPost, "/runs", body)
	if err != nil {
		return "", &RunCreateError{Detail: err.Error(), Err: err}
	}

	var payload struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", &RunCreateError{Detail: "invalid JSON response", Err: err}
	}
	if payload.Data.ID == "" {
		return "", &RunCreateError{Detail: "response missing data.id"}
	}
	return payload.Data.ID, nil
}

// PostAction posts an action (e.g. "play") against a run and verifies the
// robot echoed it back.
func (c *Client) PostAction(runID, actionType string) error {
	body := map[string]any{"data": map[string]any{"actionType": actionType}}

	raw, err := c.doJSON(http.MethodPost, "/runs/"+runID+"/actions", body)
	if err != nil {
		return &ActionError{Action: actionType, Detail: err.Error(), Err: err}
	}

	var payload struct {
		Data struct {
			ActionType string `json:"actionType"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return &ActionError{Action: actionType, Detail: "invalid JSON response", Err: err}
	}
	if payload.Data.ActionType != actionType {
		return &ActionError{
			Action: actionType,
			Detail: fmt.Sprintf("robot echoed actionType %q", payload.Data.ActionType),
		}
	}
	return nil
}

// GetRunStatus fetches the current status and error list for a run.
func (c *Client) GetRunStatus(runID string) (string, []model.RunError, error) {
	raw, err := c.doJSON(http.MethodGet, "/runs/"+runID, nil)
	if err != nil {
		return "", nil, err
	}

	var payload struct {
		Data struct {
			Status string           `json:"status"`
			Errors []model.RunError `json:"errors"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", nil, &RequestError{Method: http.MethodGet, Path: "/runs/" + runID, Err: err}
	}
	return payload.Data.Status, payload.Data.Errors, nil
}

// --- Robot info API ---

// Health returns the robot-server health banner.
func (c *Client) Health() (model.HealthInfo, error) {
	raw, err := c.doJSON(http.MethodGet, "/health", nil)
	if err != nil {
		return model.HealthInfo{}, err
	}

	var info model.HealthInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return model.HealthInfo{}, &RequestError{Method: http.MethodGet, Path: "/health", Err: err}
	}
	return info, nil
}

// Instruments returns the attached, usable pipettes.
func (c *Client) Instruments() ([]model.Instrument, error) {
	raw, err := c.doJSON(http.MethodGet, "/instruments", nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Data []struct {
			InstrumentType string `json:"instrumentType"`
			InstrumentName string `json:"instrumentName"`
			Mount          string `json:"mount"`
			OK             bool   `json:"ok"`
			Data           struct {
				MaxVolume float64 `json:"max_volume"`
			} `json:"data"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &RequestError{Method: http.MethodGet, Path: "/instruments", Err: err}
	}

	var instruments []model.Instrument
	for _, row := range payload.Data {
		if row.InstrumentType != "pipette" || !row.OK {
			continue
		}
		if row.Mount != "left" && row.Mount != "right" {
			continue
		}
		if row.InstrumentName == "" || row.Data.MaxVolume <= 0 {
			continue
		}
		instruments = append(instruments, model.Instrument{
			Mount:     row.Mount,
			Name:      row.InstrumentName,
			MaxVolume: row.Data.MaxVolume,
		})
	}
	return instruments, nil
}

// Snapshot fetches one API path and returns the raw JSON body.
func (c *Client) Snapshot(path string) (json.RawMessage, error) {
	return c.doJSON(http.MethodGet, path, nil)
}

// --- Maintenance run API (smoke test) ---

// CurrentMaintenanceRun returns the active maintenance run id, or "" if none.
func (c *Client) CurrentMaintenanceRun() (string, error) {
	raw, err := c.doJSONStatuses(http.MethodGet, "/maintenance_runs/current_run", nil,
		http.StatusOK, http.StatusNotFound)
	if err != nil {
		return "", err
	}

	var payload struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", nil // 404 bodies are not the envelope; treat as no run
	}
	return payload.Data.ID, nil
}

// CreateMaintenanceRun creates a maintenance run and returns its id.
func (c *Client) CreateMaintenanceRun() (string, error) {
	raw, err := c.doJSONStatuses(http.MethodPost, "/maintenance_runs",
		map[string]any{"data": map[string]any{}}, http.StatusCreated)
	if err != nil {
		return "", err
	}

	var payload struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", &RequestError{Method: http.MethodPost, Path: "/maintenance_runs", Err: err}
	}
	if payload.Data.ID == "" {
		return "", &RequestError{
			Method: http.MethodPost,
			Path:   "/maintenance_runs",
			Err:    fmt.Errorf("maintenance run created without run id"),
		}
	}
	return payload.Data.ID, nil
}

// MaintenanceRunStatus returns the run status, or "" if the run is gone.
func (c *Client) MaintenanceRunStatus(runID string) (string, error) {
	raw, err := c.doJSONStatuses(http.MethodGet, "/maintenance_runs/"+runID, nil,
		http.StatusOK, http.StatusNotFound)
	if err != nil {
		return "", err
	}

	var payload struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", nil
	}
	return payload.Data.Status, nil
}

// WaitUntilIdle polls a maintenance run until it is idle or gone.
func (c *Client) WaitUntilIdle(runID string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		status, err := c.MaintenanceRunStatus(runID)
		if err != nil {
			return err
		}
		if status == "" || status == "idle" {
			return nil
		}
		time.Sleep(c.CommandPoll)
	}
	return fmt.Errorf("maintenance run %s did not become idle within %s", runID, timeout)
}

// DeleteMaintenanceRun deletes a maintenance run. A missing run is fine.
func (c *Client) DeleteMaintenanceRun(runID string) error {
	_, err := c.doJSONStatuses(http.MethodDelete, "/maintenance_runs/"+runID, nil,
		http.StatusOK, http.StatusNotFound)
	return err
}

// PostCommand creates one maintenance-run command and waits for it to
// finish. Returns the command's result payload on success.
func (c *Client) PostCommand(runID, commandType string, params map[string]any) (map[string]any, error) {
	body := map[string]any{"data": map[string]any{
		"commandType": commandType,
		"params":      params,
	}}

	raw, err := c.doJSONStatuses(http.MethodPost, "/maintenance_runs/"+runID+"/commands",
		body, http.StatusCreated)
	if err != nil {
		return nil, err
	}

	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &created); err != nil || created.Data.ID == "" {
		return nil, &RequestError{
			Method: http.MethodPost,
			Path:   "/maintenance_runs/" + runID + "/commands",
			Err:    fmt.Errorf("%s: missing command id from create response", commandType),
		}
	}

	return c.waitForCommand(runID, created.Data.ID, commandType)
}

func (c *Client) waitForCommand(runID, commandID, commandType string) (map[string]any, error) {
	path := "/maintenance_runs/" + runID + "/commands/" + commandID
	deadline := time.Now().Add(c.CommandTimeout)

	for time.Now().Before(deadline) {
		raw, err := c.doJSON(http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}

		var payload struct {
			Data struct {
				Status string         `json:"status"`
				Result map[string]any `json:"result"`
				Error  struct {
					ErrorType lenientString `json:"errorType"`
					ErrorCode lenientString `json:"errorCode"`
					Detail    lenientString `json:"detail"`
				} `json:"error"`
			} `json:"data"`
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, &RequestError{Method: http.MethodGet, Path: path, Err: err}
		}

		switch payload.Data.Status {
		case "succeeded":
			return payload.Data.Result, nil
		case "failed":
			return nil, &CommandError{
				CommandType: commandType,
				ErrorType:   string(payload.Data.Error.ErrorType),
				ErrorCode:   string(payload.Data.Error.ErrorCode),
				Detail:      string(payload.Data.Error.Detail),
			}
		}
		time.Sleep(c.CommandPoll)
	}
	return nil, fmt.Errorf("%s command %s timed out after %s", commandType, commandID, c.CommandTimeout)
}

// --- HTTP helpers ---

func (c *Client) url(path string) string {
	return c.Endpoint.BaseURL() + path
}

func (c *Client) doJSON(method, path string, body any) ([]byte, error) {
	return c.doJSONStatuses(method, path, body, http.StatusOK, http.StatusCreated)
}

func (c *Client) doJSONStatuses(method, path string, body any, expected ...int) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &RequestError{Method: method, Path: path, Err: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.url(path), reader)
	if err != nil {
		return nil, &RequestError{Method: method, Path: path, Err: err}
	}
	req.Header.Set("Opentrons-Version", c.APIVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.send(req, path, expected...)
}

func (c *Client) send(req *http.Request, path string, expected ...int) ([]byte, error) {
	if len(expected) == 0 {
		expected = []int{http.StatusOK, http.StatusCreated}
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &RequestError{Method: req.Method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{Method: req.Method, Path: path, Err: err}
	}

	for _, status := range expected {
		if resp.StatusCode == status {
			return raw, nil
		}
	}
	return nil, &RequestError{Method: req.Method, Path: path, Status: resp.StatusCode}
}

// lenientString tolerates robot error fields that arrive as non-strings.
type lenientString string

func (s *lenientString) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = lenientString(str)
		return nil
	}
	*s = lenientString(bytes.TrimSpace(data))
	return nil
}
