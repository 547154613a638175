/*
PURPOSE:
  Defines the 'pull-calibrations' subcommand.
  Snapshots the robot's calibration-related API documents to disk.

REQUIREMENTS:
  User-specified:
  - Save /health, /instruments, and the calibration endpoints as JSON
    files under an output directory, one subdirectory per pull.

  Implementation-discovered:
  - Directory name is <robot-name-slug>_<utc-timestamp> so pulls from
    several robots can live side by side and sort chronologically.

ARCHITECTURE INTEGRATION:
  - Calls: internal/discover, internal/api, internal/output (SnapshotWriter)
  - Uses: internal/config

ERROR HANDLING:
  - A single failed endpoint aborts the pull; partial snapshots already
    written stay on disk.

IMPLEMENTATION RULES:
  - Snapshot files are raw robot-server responses, pretty-printed; never
    reshape them.

USAGE:
  ot2-runner pull-calibrations -o ./offsets/pulled

SELF-HEALING INSTRUCTIONS:
  - 404 on a calibration endpoint usually means an old robot-server
    version; check /health api_version in the partial snapshot.

RELATED FILES:
  - internal/output/snapshot.go

MAINTENANCE:
  - Extend snapshotPaths when new calibration endpoints appear.
*/

package cli

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/daryltucker/ot2-runner/internal/api"
	"github.com/daryltucker/ot2-runner/internal/discover"
	"github.com/daryltucker/ot2-runner/internal/output"
)

// snapshotPaths maps snapshot file names to robot-server API paths.
var snapshotPaths = []struct {
	Name string
	Path string
}{
	{"health", "/health"},
	{"instruments", "/instruments"},
	{"pipette_offset", "/calibration/pipette_offset"},
	{"tip_length", "/calibration/tip_length"},
	{"calibration_status", "/calibration/status"},
	{"labware_calibrations", "/labware/calibrations"},
}

var outputDirFlag string

var calibrationsCmd = &cobra.Command{
	Use:   "pull-calibrations",
	Short: "Download calibration API snapshots from the robot",
	Example: `  # Snapshot calibrations from an auto-discovered robot
  ot2-runner pull-calibrations

  # Explicit host and destination
  ot2-runner pull-calibrations --host 169.254.9.30 -o ./backups`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if outputDirFlag != "" {
			cfg.OutputDir = outputDirFlag
		}

		endpoint, err := discover.New(cfg).Resolve(cfg.Host)
		if err != nil {
			return err
		}
		output.Logger.Info("Using robot-server", "endpoint", endpoint.String())

		client := api.NewClient(endpoint, cfg)

		health, err := client.Health()
		if err != nil {
			return err
		}
		stamp := time.Now().UTC().Format("20060102T150405Z")
		dir := filepath.Join(cfg.OutputDir, slug(health.Name)+"_"+stamp)
		writer := output.NewSnapshotWriter(dir)
		output.Logger.Info("Pulling calibration snapshots", "robot", health.Name, "dir", dir)

		for _, s := range snapshotPaths {
			doc, err := client.Snapshot(s.Path)
			if err != nil {
				return err
			}
			path, err := writer.Write(s.Name, doc)
			if err != nil {
				return err
			}
			output.Logger.Info("Saved snapshot", "endpoint", s.Path, "file", path)
		}

		output.Logger.Info("Calibration pull complete", "dir", dir, "files", len(snapshotPaths))
		return nil
	},
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9._-]+`)

// slug makes a robot name safe for a directory name.
func slug(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = slugUnsafe.ReplaceAllString(value, "-")
	value = strings.Trim(value, "-")
	if value == "" {
		return "ot2"
	}
	return value
}

func init() {
	rootCmd.AddCommand(calibrationsCmd)

	calibrationsCmd.Flags().StringVarP(&outputDirFlag, "output-dir", "o", "", "directory for snapshot subdirectories")
}
