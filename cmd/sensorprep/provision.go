// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sensorprep/internal/config"
	"sensorprep/internal/history"
	"sensorprep/internal/issue"
	"sensorprep/internal/metrics"
	"sensorprep/internal/provision"
	"sensorprep/internal/tui"
)

// historyKeep is the number of runs retained in the history database.
const historyKeep = 100

// loadConfig loads the configuration selected by the persistent flags. Failures
// are rendered with the catalog entry and returned as an ExitError.
func (a *App) loadConfig(ctx context.Context, flags *rootFlags) (*config.Config, string, error) {
	cfg, source, err := a.Config.LoadWithSource(ctx, config.LoadOptions{ConfigFilePath: flags.configPath})
	if err != nil {
		svcErr := newServiceError(err, issue.ConfigLoadFailedId, ErrorStyle.Render(GlyphError+" Could not load the configuration")+"\n")
		renderServiceError(a.stderr, svcErr, config.ColorSchemeAuto, flags.verbose)
		return nil, "", &ExitError{Code: provision.ExitConfiguration, Err: svcErr}
	}
	if cfg.UI.Verbose && !flags.verbose {
		flags.verbose = true
		setupLogging(a.stderr, true)
	}
	if source == "" {
		source = "defaults"
	}
	slog.Debug("configuration loaded", "source", source)
	return cfg, source, nil
}

// rebootPolicy resolves the --reboot flag against the configured policy.
func rebootPolicy(flag string, cfg *config.Config) (config.RebootPolicy, error) {
	if flag == "" {
		return cfg.UI.Reboot, nil
	}
	policy := config.RebootPolicy(strings.ToLower(flag))
	if ok, errs := policy.IsValid(); !ok {
		return "", &ExitError{Code: provision.ExitConfiguration, Err: errs[0]}
	}
	return policy, nil
}

func runProvision(ctx context.Context, app *App, flags *rootFlags) error {
	cfg, _, err := app.loadConfig(ctx, flags)
	if err != nil {
		return err
	}
	policy, err := rebootPolicy(flags.reboot, cfg)
	if err != nil {
		return err
	}

	m, err := app.NewMachine(app.stdout, app.stderr)
	if err != nil {
		return &ExitError{Code: 1, Err: fmt.Errorf("initialize machine backend: %w", err)}
	}
	settings := provision.NewSettings(cfg, m)
	reporter := newStatusReporter(app.stdout)

	fmt.Fprintln(app.stdout, TitleStyle.Render("sensorprep")+SubtitleStyle.Render(" preparing "+settings.ProjectDir))

	p := provision.New(m, settings,
		provision.WithReporter(reporter),
		provision.WithRebootDecider(app.rebootDecider(policy, cfg.UI.ColorScheme, reporter)),
		provision.WithClock(app.Now),
		provision.WithGetenv(app.Getenv),
		provision.WithLogger(slog.Default()),
	)
	report := p.Run(ctx)

	app.recordRun(ctx, cfg, settings.Home, report)
	printSummary(app.stdout, report)

	if report.Err != nil {
		renderServiceError(app.stderr, report.Err, cfg.UI.ColorScheme, flags.verbose)
		return &ExitError{Code: report.ExitCode(), Err: report.Err}
	}
	return nil
}

// rebootDecider turns the reboot policy into a provision.RebootDecider. The
// "ask" policy declines without prompting when stdin is not a terminal.
func (a *App) rebootDecider(policy config.RebootPolicy, scheme config.ColorScheme, r provision.Reporter) provision.RebootDecider {
	return func(ctx context.Context, reasons []string) (bool, error) {
		switch policy {
		case config.RebootYes:
			return true, nil
		case config.RebootNo:
			return false, nil
		}
		if !a.Interactive() {
			r.Info("Not running in a terminal; not asking to reboot")
			return false, nil
		}

		tuiCfg := tui.DefaultConfig()
		tuiCfg.Theme = tui.ThemeFor(scheme)
		return a.Confirm(ctx, tui.ConfirmOptions{
			Title:       "Reboot now?",
			Description: "Changes waiting for a reboot:\n  " + strings.Join(reasons, "\n  "),
			Affirmative: "Reboot",
			Negative:    "Later",
			Config:      tuiCfg,
		})
	}
}

// recordRun stores the report in the history database and exports the metrics
// textfile. Failures are logged and never change the run's outcome.
func (a *App) recordRun(ctx context.Context, cfg *config.Config, home string, report *provision.Report) {
	if cfg.History.Enabled {
		if err := recordHistory(ctx, cfg, home, report); err != nil {
			slog.Warn("failed to record run history", "error", err)
		}
	}
	if cfg.Metrics.Textfile != "" {
		path := config.ExpandHome(cfg.Metrics.Textfile, home)
		if err := metrics.Export(path, report); err != nil {
			slog.Warn("failed to export metrics", "path", path, "error", err)
		}
	}
}

func recordHistory(ctx context.Context, cfg *config.Config, home string, report *provision.Report) error {
	path, err := historyPath(cfg, home)
	if err != nil {
		return err
	}
	store, err := history.Open(ctx, path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	id, err := store.Record(ctx, report)
	if err != nil {
		return err
	}
	slog.Debug("run recorded", "id", id, "path", path)
	_, err = store.Prune(ctx, historyKeep)
	return err
}

// historyPath returns the configured history database, defaulting to the state directory.
func historyPath(cfg *config.Config, home string) (string, error) {
	if cfg.History.Path != "" {
		return config.ExpandHome(cfg.History.Path, home), nil
	}
	dir, err := config.StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, history.FileName), nil
}

func userHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}

func printSummary(w io.Writer, report *provision.Report) {
	counts := fmt.Sprintf("%d applied, %d already in place", report.Count(provision.OutcomeApplied), report.Count(provision.OutcomeSkipped))
	duration := report.Duration().Round(100 * time.Millisecond)

	fmt.Fprintln(w)
	if report.Err != nil {
		failed := ""
		if n := len(report.Steps); n > 0 {
			failed = string(report.Steps[n-1].Step)
		}
		fmt.Fprintln(w, ErrorStyle.Render(fmt.Sprintf("Provisioning stopped at %s after %s", failed, duration))+SubtitleStyle.Render(" ("+counts+")"))
		fmt.Fprintln(w, SubtitleStyle.Render("Fix the problem above and run sensorprep again."))
		return
	}
	fmt.Fprintln(w, SuccessStyle.Render(fmt.Sprintf("Provisioning finished in %s", duration))+SubtitleStyle.Render(" ("+counts+")"))
	if warnings := report.Warnings(); len(warnings) > 0 {
		fmt.Fprintln(w, WarningStyle.Render(fmt.Sprintf("%d warning(s); see above.", len(warnings))))
	}
}
