/*
PURPOSE:
  Defines the root Cobra command for the OT-2 Runner CLI.
  Handles global flags and command initialization.

REQUIREMENTS:
  User-specified:
  - Provide a CLI interface.
  - Support global flags: --config, --host.
  - OT2_HOST environment variable as a host default when --host is absent.

  Implementation-discovered:
  - Needs to expose an Execute() function for main.go.
  - Errors are logged once, by main; cobra's own printing is silenced.

ARCHITECTURE INTEGRATION:
  - Called by: cmd/ot2-runner/main.go
  - Calls: Child commands (run, smoke-test, pull-calibrations, resolve-host)

ERROR HANDLING:
  - Returns error to main.go for exit code handling.

IMPLEMENTATION RULES:
  - Use `PersistentFlags()` for flags available to all subcommands.
  - Keep Run logic in subcommands.

USAGE:
  Called by main.go.

SELF-HEALING INSTRUCTIONS:
  - If adding new global flags, add them to init().

RELATED FILES:
  - cmd/ot2-runner/main.go

MAINTENANCE:
  - Update when adding new global configuration options.
*/

package cli

import (
	"github.com/spf13/cobra"

	"github.com/daryltucker/ot2-runner/internal/config"
)

var (
	// cfgFile stores the path to the config file (if specified via flag)
	cfgFile string
	// hostFlag is an explicit robot host; it wins over config and OT2_HOST.
	hostFlag string

	rootCmd = &cobra.Command{
		Use:   "ot2-runner",
		Short: "Run protocols and smoke tests on a USB-connected OT-2",
		Long: `Operates an Opentrons OT-2 over its local robot-server HTTP API:
discovers the robot on the USB/link-local network, uploads a protocol,
starts execution, and polls run status to completion.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig loads the config file and applies the global host override.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if hostFlag != "" {
		cfg.Host = hostFlag
	}
	return cfg, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./ot2_runner.yaml)")
	rootCmd.PersistentFlags().StringVar(&hostFlag, "host", "", "explicit robot host/IP (skips discovery; default from OT2_HOST)")
}
