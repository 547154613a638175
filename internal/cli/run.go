/*
PURPOSE:
  Defines the 'run' subcommand.
  Uploads one protocol, starts it, and polls the run to its outcome.

REQUIREMENTS:
  User-specified:
  - Required protocol-file argument, validated to exist before any
    network traffic.
  - Optional --timeout in whole seconds (default 600).
  - Exit 0 only when the run reports succeeded.

  Implementation-discovered:
  - Host resolution happens before the lifecycle so every API call in
    one orchestration hits the same endpoint.

ARCHITECTURE INTEGRATION:
  - Calls: internal/discover, internal/runner
  - Uses: internal/config, internal/api

ERROR HANDLING:
  - Returns error; main logs it and exits non-zero.
  - Run-terminal-failure and timeout surface as typed errors through
    Outcome.Err().

IMPLEMENTATION RULES:
  - Setup flags in init().
  - Logic: Load Config -> Override -> Resolve -> Run.

USAGE:
  ot2-runner run transfer_test.py --timeout 900

SELF-HEALING INSTRUCTIONS:
  - "no reachable OT-2" usually means the USB link is down; check
    `ot2-runner resolve-host` by hand.

RELATED FILES:
  - internal/runner/runner.go

MAINTENANCE:
  - Update when adding new CLI overrides.
*/

package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/daryltucker/ot2-runner/internal/api"
	"github.com/daryltucker/ot2-runner/internal/config"
	"github.com/daryltucker/ot2-runner/internal/discover"
	"github.com/daryltucker/ot2-runner/internal/output"
	"github.com/daryltucker/ot2-runner/internal/runner"
)

var timeoutSeconds int

var runCmd = &cobra.Command{
	Use:   "run PROTOCOL_FILE",
	Short: "Upload and execute a protocol, polling until it finishes",
	Long: `Uploads a protocol file to the robot, creates a run, issues the play
action, and polls run status until it succeeds, fails, or the timeout
expires. A timed-out run is left running on the robot and reported with
its run id so it can be inspected out-of-band.`,
	Example: `  # Auto-discover the robot and run a protocol
  ot2-runner run transfer_test.py

  # Explicit host, 15 minute budget
  ot2-runner run transfer_test.py --host 169.254.9.30 --timeout 900`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		protocolPath := args[0]
		if _, err := os.Stat(protocolPath); err != nil {
			return &config.ConfigError{
				Detail: fmt.Sprintf("protocol file %s: %v", protocolPath, err),
				Err:    err,
			}
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("timeout") {
			if timeoutSeconds <= 0 {
				return &config.ConfigError{Detail: "--timeout must be a positive number of seconds"}
			}
			cfg.RunTimeout = time.Duration(timeoutSeconds) * time.Second
		}

		endpoint, err := discover.New(cfg).Resolve(cfg.Host)
		if err != nil {
			return err
		}
		output.Logger.Info("Using robot-server", "endpoint", endpoint.String())

		client := api.NewClient(endpoint, cfg)
		outcome, err := runner.New(client, cfg).Run(protocolPath)
		if err != nil {
			return err
		}
		if err := outcome.Err(); err != nil {
			return err
		}

		output.Logger.Info("Protocol run finished", "run_id", outcome.RunID, "status", outcome.Status)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntVar(&timeoutSeconds, "timeout", 600, "run timeout in seconds")
}
