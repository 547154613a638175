/*
PURPOSE:
  Defines the 'smoke-test' subcommand.
  Hands the resolved robot endpoint and mount selection to the pipette
  smoke test.

REQUIREMENTS:
  User-specified:
  - Optional --mount selector: left, right, or both (default both).
  - Unrecognized mount fails immediately, before discovery.

  Implementation-discovered:
  - Interactivity is detected here (stdin char device) and passed down;
    the smoke test itself never touches os.Stdin directly.

ARCHITECTURE INTEGRATION:
  - Calls: internal/discover, internal/smoketest
  - Uses: internal/config, internal/api

ERROR HANDLING:
  - Returns error; main logs it and exits non-zero.

IMPLEMENTATION RULES:
  - Validate cheap things (mount string) before expensive ones (probes).

USAGE:
  ot2-runner smoke-test --mount left

SELF-HEALING INSTRUCTIONS:
  - If prompts never appear, stdin is probably not a terminal.

RELATED FILES:
  - internal/smoketest/smoketest.go

MAINTENANCE:
  - Update if mounts beyond left/right ever exist.
*/

package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/daryltucker/ot2-runner/internal/api"
	"github.com/daryltucker/ot2-runner/internal/config"
	"github.com/daryltucker/ot2-runner/internal/discover"
	"github.com/daryltucker/ot2-runner/internal/output"
	"github.com/daryltucker/ot2-runner/internal/smoketest"
)

var mountFlag string

var smokeCmd = &cobra.Command{
	Use:   "smoke-test",
	Short: "Exercise attached pipettes with operator-paced aspirate/dispense cycles",
	Long: `Connects to the robot, detects attached pipettes, and walks each
selected mount through move / tip-confirm / aspirate / dispense cycles
under operator control. Requires an interactive terminal.`,
	Example: `  # Test both mounts (default)
  ot2-runner smoke-test

  # Test only the left mount on a known host
  ot2-runner smoke-test --mount left --host 169.254.9.30`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("mount") {
			cfg.Mount = mountFlag
		}

		mounts, err := smoketest.SelectMounts(cfg.Mount)
		if err != nil {
			return &config.ConfigError{Detail: err.Error(), Err: err}
		}
		output.Logger.Info("Requested mount selection", "mounts", mounts)

		endpoint, err := discover.New(cfg).Resolve(cfg.Host)
		if err != nil {
			return err
		}
		output.Logger.Info("Using robot-server", "endpoint", endpoint.String())

		client := api.NewClient(endpoint, cfg)
		prompt := smoketest.NewPrompter(os.Stdin, os.Stderr, stdinIsTerminal())
		return smoketest.New(client, mounts, prompt).Run()
	},
}

// stdinIsTerminal reports whether stdin is an interactive terminal.
func stdinIsTerminal() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func init() {
	rootCmd.AddCommand(smokeCmd)

	smokeCmd.Flags().StringVar(&mountFlag, "mount", "both", "pipette mount(s) to test: left, right, or both")
}
