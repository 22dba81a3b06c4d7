// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"sensorprep/internal/config"

	"github.com/spf13/cobra"
)

// newConfigCommand creates the `sensorprep config` command tree.
func newConfigCommand(app *App, flags *rootFlags) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage sensorprep configuration",
		Long: `Manage sensorprep configuration.

Configuration is stored in ~/.config/sensorprep/config.cue ($XDG_CONFIG_HOME is
honored). SENSORPREP_* environment variables override file values, e.g.
SENSORPREP_PROJECT_DIR=/opt/sensor-monitor.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd.Context(), app, flags)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(app.stdout)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfigPath(app.stdout)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := app.loadConfig(cmd.Context(), flags)
			if err != nil {
				return err
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(ctx context.Context, app *App, flags *rootFlags) error {
	cfg, source, err := app.loadConfig(ctx, flags)
	if err != nil {
		return err
	}

	w := app.stdout
	keyStyle := CmdStyle
	valueStyle := SuccessStyle

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)
	if source == "defaults" {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	} else {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), source)
	}

	section := func(name string, pairs ...string) {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s:\n", keyStyle.Render(name))
		for i := 0; i+1 < len(pairs); i += 2 {
			fmt.Fprintf(w, "  %s: %s\n", pairs[i], valueStyle.Render(pairs[i+1]))
		}
	}

	section("project",
		"dir", cfg.Project.Dir.String(),
		"venv", cfg.Project.Venv,
		"manifest", cfg.Project.Manifest,
		"entrypoint", cfg.Project.Entrypoint,
		"layout", list(cfg.Project.Layout))
	section("packages",
		"upgrade", fmt.Sprint(cfg.Packages.Upgrade),
		"required", list(cfg.Packages.Required))
	section("hardware",
		"boot_config_paths", list(cfg.Hardware.BootConfigPaths),
		"directives", list(cfg.Hardware.Directives),
		"modules", list(cfg.Hardware.Modules),
		"groups", list(cfg.Hardware.Groups),
		"require_board", fmt.Sprint(cfg.Hardware.RequireBoard))
	section("python",
		"interpreter", cfg.Python.Interpreter,
		"fallback_packages", list(cfg.Python.FallbackPackages))
	section("service",
		"install", fmt.Sprint(cfg.Service.Install),
		"name", cfg.Service.Name.String(),
		"description", cfg.Service.Description,
		"restart_sec", fmt.Sprint(cfg.Service.RestartSec))
	section("launcher",
		"name", cfg.Launcher.Name,
		"dashboard_port", fmt.Sprint(cfg.Launcher.DashboardPort))
	section("history",
		"enabled", fmt.Sprint(cfg.History.Enabled),
		"path", orDefault(cfg.History.Path))
	section("metrics",
		"textfile", orDefault(cfg.Metrics.Textfile))
	section("ui",
		"color_scheme", cfg.UI.ColorScheme.String(),
		"verbose", fmt.Sprint(cfg.UI.Verbose),
		"reboot", cfg.UI.Reboot.String())

	return nil
}

func initConfig(w io.Writer) error {
	path, created, err := config.CreateDefaultConfig()
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}
	if !created {
		fmt.Fprintf(w, "%s Configuration already exists at %s\n", InfoStyle.Render(GlyphInfo), path)
		return nil
	}
	fmt.Fprintf(w, "%s Created default configuration at %s\n", SuccessStyle.Render(GlyphSuccess), path)
	return nil
}

func showConfigPath(w io.Writer) error {
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	cfgPath, err := config.FilePath()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Config directory: %s\n", cfgDir)
	fmt.Fprintf(w, "Config file: %s\n", cfgPath)
	if stateDir, err := config.StateDir(); err == nil {
		fmt.Fprintf(w, "State directory: %s\n", stateDir)
	}
	return nil
}

func list(values []string) string {
	if len(values) == 0 {
		return "(none)"
	}
	return strings.Join(values, ", ")
}

func orDefault(value string) string {
	if value == "" {
		return "(default)"
	}
	return value
}
