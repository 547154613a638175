package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSnapshotWriter_VersionsInsteadOfOverwriting(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pull")
	w := NewSnapshotWriter(dir)

	first, err := w.Write("health", json.RawMessage(`{"name":"OT2A"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(first) != "health.json" {
		t.Errorf("first path = %s, want health.json", first)
	}

	second, err := w.Write("health", json.RawMessage(`{"name":"OT2B"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(second) != "health.json.1" {
		t.Errorf("second path = %s, want health.json.1", second)
	}

	third, err := w.Write("health", json.RawMessage(`{"name":"OT2C"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(third) != "health.json.2" {
		t.Errorf("third path = %s, want health.json.2", third)
	}

	// First file kept its original content.
	data, err := os.ReadFile(first)
	if err != nil {
		t.Fatalf("failed to read snapshot: %v", err)
	}
	if !strings.Contains(string(data), "OT2A") {
		t.Errorf("first snapshot rewritten: %s", data)
	}
}

func TestSnapshotWriter_PrettyPrintsJSON(t *testing.T) {
	w := NewSnapshotWriter(t.TempDir())

	path, err := w.Write("instruments", json.RawMessage(`{"data":[{"mount":"left"}]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read snapshot: %v", err)
	}
	if !strings.Contains(string(data), "\n  \"data\"") {
		t.Errorf("snapshot not indented:\n%s", data)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Errorf("snapshot is not valid JSON: %v", err)
	}
}
