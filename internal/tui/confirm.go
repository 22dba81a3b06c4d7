// SPDX-License-Identifier: MPL-2.0

package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
)

// ErrCancelled is returned when the user aborts a prompt.
var ErrCancelled = errors.New("prompt cancelled")

// ConfirmOptions configures the Confirm component.
type ConfirmOptions struct {
	// Title is the question/prompt to display.
	Title string
	// Description provides additional context below the title.
	Description string
	// Affirmative is the text for the affirmative option (default: "Yes").
	Affirmative string
	// Negative is the text for the negative option (default: "No").
	Negative string
	// Default is the preselected answer.
	Default bool
	// Config holds common TUI configuration.
	Config Config
}

// Confirm asks a yes/no question.
// It returns ErrCancelled if the user aborts with ctrl+c or esc.
func Confirm(ctx context.Context, opts ConfirmOptions) (bool, error) {
	form := newConfirmForm(&opts)
	result := opts.Default
	form.confirm.Value(&result)

	if err := form.form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, ErrCancelled
		}
		return false, fmt.Errorf("confirm: %w", err)
	}
	return result, nil
}

type confirmForm struct {
	form    *huh.Form
	confirm *huh.Confirm
}

func newConfirmForm(opts *ConfirmOptions) confirmForm {
	if opts.Affirmative == "" {
		opts.Affirmative = "Yes"
	}
	if opts.Negative == "" {
		opts.Negative = "No"
	}

	c := huh.NewConfirm().
		Title(opts.Title).
		Description(opts.Description).
		Affirmative(opts.Affirmative).
		Negative(opts.Negative)

	form := huh.NewForm(huh.NewGroup(c)).
		WithTheme(getHuhTheme(opts.Config.Theme)).
		WithAccessible(opts.Config.Accessible).
		WithShowHelp(false)
	if opts.Config.Input != nil {
		form = form.WithInput(opts.Config.Input)
	}
	if opts.Config.Output != nil {
		form = form.WithOutput(opts.Config.Output)
	}
	return confirmForm{form: form, confirm: c}
}
