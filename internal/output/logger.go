/*
PURPOSE:
  Provides a structured logger for the OT-2 Runner.
  Wraps slog for consistent output.

REQUIREMENTS:
  User-specified:
  - Timestamped, leveled diagnostics on the error stream.

  Implementation-discovered:
  - stdout must stay clean: `resolve-host` prints the bare host there
    so other tools can capture it.

ARCHITECTURE INTEGRATION:
  - Used everywhere.

ERROR HANDLING:
  - N/A

IMPLEMENTATION RULES:
  - Use `log/slog` (Go 1.21+).
  - Handler writes to stderr.

USAGE:
  output.Logger.Info("message", "key", "value")

SELF-HEALING INSTRUCTIONS:
  - Ensure Go 1.21+ is used.

RELATED FILES:
  - All.

MAINTENANCE:
  - Configurable log levels?
*/

package output

import (
	"log/slog"
	"os"
)

var Logger *slog.Logger

func init() {
	// Diagnostics go to stderr; stdout is reserved for machine-readable output.
	Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
}

// SetLogger allows overriding the default logger (e.g. for testing)
func SetLogger(l *slog.Logger) {
	Logger = l
}
