/*
PURPOSE:
  Entry point for the OT-2 Runner application.
  Initializes the CLI root command and executes it.

REQUIREMENTS:
  User-specified:
  - Must serve as the single binary entry point.
  - Exit 0 on full success; non-zero on any failure, with a timestamped,
    leveled diagnostic on the error stream first.

  Implementation-discovered:
  - Uses cobra for CLI command management.

ARCHITECTURE INTEGRATION:
  - Calls: internal/cli.Execute()
  - Depends on: internal/cli, internal/output

ERROR HANDLING:
  - Explicit error check on Execute(); exit code 1 on failure.

IMPLEMENTATION RULES:
  - Critical: Keep main() minimal. All logic belongs in internal/ packages.
  - Do not put business logic here.

USAGE:
  go build -o ot2-runner ./cmd/ot2-runner
  ./ot2-runner [command] [flags]

SELF-HEALING INSTRUCTIONS:
  - If CLI fails to start, check internal/cli/root.go definition.
  - If imports fail, run `go mod tidy`.

RELATED FILES:
  - internal/cli/root.go - The actual root command definition.

MAINTENANCE:
  - Update when changing the CLI framework or high-level signal handling.
*/

package main

import (
	"os"

	"github.com/daryltucker/ot2-runner/internal/cli"
	"github.com/daryltucker/ot2-runner/internal/output"
)

func main() {
	if err := cli.Execute(); err != nil {
		output.Logger.Error("Command failed", "error", err)
		os.Exit(1)
	}
}
