// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"sensorprep/internal/provision"
)

// newRenderCommand creates `sensorprep render`, which prints generated files
// without writing them.
func newRenderCommand(app *App, flags *rootFlags) *cobra.Command {
	renderCmd := &cobra.Command{
		Use:   "render",
		Short: "Print a generated file without writing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	renderCmd.AddCommand(&cobra.Command{
		Use:   "launcher",
		Short: "Print the launcher script",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return renderFile(cmd.Context(), app, flags, func(s provision.Settings) ([]byte, error) {
				return provision.LauncherScript(s).Render()
			})
		},
	})

	renderCmd.AddCommand(&cobra.Command{
		Use:   "unit",
		Short: "Print the systemd service unit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return renderFile(cmd.Context(), app, flags, func(s provision.Settings) ([]byte, error) {
				return s.Unit.Render()
			})
		},
	})

	return renderCmd
}

func renderFile(ctx context.Context, app *App, flags *rootFlags, render func(provision.Settings) ([]byte, error)) error {
	cfg, _, err := app.loadConfig(ctx, flags)
	if err != nil {
		return err
	}
	m, err := app.NewMachine(app.stdout, app.stderr)
	if err != nil {
		return &ExitError{Code: 1, Err: fmt.Errorf("initialize machine backend: %w", err)}
	}
	content, err := render(provision.NewSettings(cfg, m))
	if err != nil {
		return err
	}
	_, err = app.stdout.Write(content)
	return err
}
