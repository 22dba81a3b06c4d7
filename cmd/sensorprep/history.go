// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"sensorprep/internal/history"
	"sensorprep/internal/provision"
)

const defaultHistoryLimit = 10

// newHistoryCommand creates `sensorprep history`.
func newHistoryCommand(app *App, flags *rootFlags) *cobra.Command {
	var limit int

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent provisioning runs",
		Long: `Show recent provisioning runs recorded in the history database.

Examples:
  sensorprep history             List the last runs
  sensorprep history --limit 50  List more runs
  sensorprep history show 12     Show the steps of run 12`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cmd.Context(), app, flags, func(store *history.Store) error {
				runs, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				printRuns(app.stdout, runs)
				return nil
			})
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "n", defaultHistoryLimit, "number of runs to show")

	historyCmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show the steps of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q", args[0])
			}
			return withHistory(cmd.Context(), app, flags, func(store *history.Store) error {
				run, err := store.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				printRun(app.stdout, run)
				return nil
			})
		},
	})

	return historyCmd
}

func withHistory(ctx context.Context, app *App, flags *rootFlags, fn func(*history.Store) error) error {
	cfg, _, err := app.loadConfig(ctx, flags)
	if err != nil {
		return err
	}
	if !cfg.History.Enabled {
		fmt.Fprintf(app.stdout, "%s Run history is disabled (history.enabled = false)\n", InfoStyle.Render(GlyphInfo))
		return nil
	}
	path, err := historyPath(cfg, userHome())
	if err != nil {
		return err
	}
	store, err := history.Open(ctx, path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := fn(store); err != nil {
		if errors.Is(err, history.ErrRunNotFound) {
			return &ExitError{Code: 1, Err: err}
		}
		return err
	}
	return nil
}

func printRuns(w io.Writer, runs []history.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, SubtitleStyle.Render("No runs recorded yet."))
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(SubtitleStyle).
		Headers("ID", "STARTED", "DURATION", "STATE", "EXIT", "REBOOT").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return TitleStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for _, r := range runs {
		t.Row(
			strconv.FormatInt(r.ID, 10),
			r.Started.Local().Format(time.DateTime),
			r.Duration().Round(time.Second).String(),
			stateLabel(r),
			strconv.Itoa(r.ExitCode),
			rebootLabel(r),
		)
	}
	fmt.Fprintln(w, t.String())
}

func printRun(w io.Writer, run *history.Run) {
	fmt.Fprintf(w, "%s %s\n", TitleStyle.Render(fmt.Sprintf("Run %d", run.ID)), SubtitleStyle.Render(run.Started.Local().Format(time.DateTime)))
	fmt.Fprintf(w, "%s: %s (exit %d) in %s\n", CmdStyle.Render("state"), stateLabel(*run), run.ExitCode, run.Duration().Round(time.Millisecond))
	if run.Error != "" {
		fmt.Fprintf(w, "%s: %s\n", CmdStyle.Render("error"), ErrorStyle.Render(run.Error))
	}
	fmt.Fprintln(w)

	for _, s := range run.Steps {
		style, glyph := InfoStyle, GlyphInfo
		switch s.Outcome {
		case provision.OutcomeApplied:
			style, glyph = SuccessStyle, GlyphSuccess
		case provision.OutcomeFailed:
			style, glyph = ErrorStyle, GlyphError
		}
		fmt.Fprintf(w, "%s %-15s %-8s %s\n", style.Render(glyph), s.Name, s.Outcome, VerboseStyle.Render(s.Duration.Round(time.Millisecond).String()))
		for _, warn := range s.Warnings {
			fmt.Fprintf(w, "    %s %s\n", WarningStyle.Render(GlyphWarning), warn)
		}
		if s.Error != "" {
			fmt.Fprintf(w, "    %s\n", ErrorStyle.Render(s.Error))
		}
	}

	if len(run.Reasons) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s:\n", CmdStyle.Render("reboot required for"))
		for _, reason := range run.Reasons {
			fmt.Fprintf(w, "  - %s\n", reason)
		}
	}
}

func stateLabel(r history.Run) string {
	if r.State == provision.StateCompleted {
		return SuccessStyle.Render(string(r.State))
	}
	return ErrorStyle.Render(string(r.State))
}

func rebootLabel(r history.Run) string {
	switch {
	case r.Rebooted:
		return "rebooted"
	case len(r.Reasons) > 0:
		return "pending"
	default:
		return "-"
	}
}
