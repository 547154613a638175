/*
PURPOSE:
  Writes calibration snapshot documents to disk as JSON files.
  Never overwrites existing data.

REQUIREMENTS:
  User-specified:
  - Pulled calibration data must survive repeated pulls (no clobbering).

  Implementation-discovered:
  - Versioned filenames (snapshot.json, snapshot.json.1, ...) are simpler
    and safer than prompting.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli (pull-calibrations)
  - Consumes: raw JSON documents from internal/api

ERROR HANDLING:
  - Returns error on directory creation or write failure.

IMPLEMENTATION RULES:
  - Indent output; these files are for humans comparing calibrations.
  - Keep the versioning loop bounded.

USAGE:
  w := output.NewSnapshotWriter(dir)
  path, err := w.Write("health", payload)

SELF-HEALING INSTRUCTIONS:
  - If files stop appearing, check directory permissions on the output dir.

RELATED FILES:
  - internal/cli/calibrations.go

MAINTENANCE:
  - Update if snapshot documents grow beyond single JSON bodies.
*/

package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SnapshotWriter writes JSON documents into a target directory with
// overwrite-safe, versioned filenames.
type SnapshotWriter struct {
	dir string
}

// NewSnapshotWriter creates a writer rooted at dir. The directory is
// created on the first Write.
func NewSnapshotWriter(dir string) *SnapshotWriter {
	return &SnapshotWriter{dir: dir}
}

// Dir returns the target directory.
func (sw *SnapshotWriter) Dir() string {
	return sw.dir
}

// Write stores doc as <name>.json inside the writer's directory. If that
// file already exists it falls back to <name>.json.1, <name>.json.2, etc.
// Returns the path actually written.
func (sw *SnapshotWriter) Write(name string, doc json.RawMessage) (string, error) {
	if err := os.MkdirAll(sw.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory %s: %w", sw.dir, err)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, doc, "", "  "); err != nil {
		// Not valid JSON? Store it raw rather than losing it.
		pretty.Reset()
		pretty.Write(doc)
	}
	pretty.WriteByte('\n')

	path, err := sw.versionedPath(name + ".json")
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, pretty.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to write snapshot %s: %w", path, err)
	}
	return path, nil
}

// versionedPath finds the first non-existing path for the base filename.
func (sw *SnapshotWriter) versionedPath(base string) (string, error) {
	path := filepath.Join(sw.dir, base)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path, nil
	}
	for i := 1; i <= 1000; i++ {
		candidate := fmt.Sprintf("%s.%d", path, i)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("too many versions of %s in %s", base, sw.dir)
}
