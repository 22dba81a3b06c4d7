// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// rootFlags are the persistent flags shared by every command.
type rootFlags struct {
	configPath string
	verbose    bool
	reboot     string
}

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "sensorprep",
		Short: "Prepare a Raspberry Pi for the sensor monitoring application",
		Long: TitleStyle.Render("sensorprep") + SubtitleStyle.Render(" - Prepare a Raspberry Pi for the sensor monitoring application") + `

Running sensorprep without arguments brings the board to a state where the
sensor application can run: system packages, SPI/I2C/1-Wire interfaces,
a Python virtual environment with the application's libraries, hardware
access groups, an optional systemd service and a launcher script.

Every step checks first and only changes what is missing, so sensorprep
can be re-run at any time. Run it as your normal user; it uses sudo where
it has to.

` + SubtitleStyle.Render("Examples:") + `
  sensorprep                    Provision this board
  sensorprep --reboot=no        Provision without asking to reboot
  sensorprep doctor             Check the board and sensors
  sensorprep render launcher    Print the generated launcher script
  sensorprep history            Show recent runs`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(app.stderr, flags.verbose)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProvision(cmd.Context(), app, flags)
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default is $HOME/.config/sensorprep/config.cue)")
	rootCmd.Flags().StringVar(&flags.reboot, "reboot", "", "reboot policy after changes: ask, yes or no (default from ui.reboot)")

	rootCmd.AddCommand(newConfigCommand(app, flags))
	rootCmd.AddCommand(newHistoryCommand(app, flags))
	rootCmd.AddCommand(newDoctorCommand(app, flags))
	rootCmd.AddCommand(newRenderCommand(app, flags))

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits with the status of the failed command, if any.
func Execute() {
	app := NewApp(Dependencies{})
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(1)
	}
}
