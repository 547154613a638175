/*
PURPOSE:
  Defines the 'resolve-host' subcommand.
  Prints the resolved robot host so other tools and scripts can reuse
  the same discovery logic.

REQUIREMENTS:
  User-specified:
  - Print exactly the host to stdout, nothing else there.

  Implementation-discovered:
  - All diagnostics stay on stderr via the logger, so
    `HOST=$(ot2-runner resolve-host)` works.

ARCHITECTURE INTEGRATION:
  - Calls: internal/discover

ERROR HANDLING:
  - Returns error; main logs it and exits non-zero, stdout stays empty.

IMPLEMENTATION RULES:
  - Keep it tiny; this command is plumbing.

USAGE:
  OT2_HOST=$(ot2-runner resolve-host)

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/discover/resolver.go

MAINTENANCE:
  - None expected.
*/

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daryltucker/ot2-runner/internal/discover"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve-host",
	Short: "Discover the robot and print its host to stdout",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		endpoint, err := discover.New(cfg).Resolve(cfg.Host)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), endpoint.Host)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}
