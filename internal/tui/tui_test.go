// SPDX-License-Identifier: MPL-2.0

package tui

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sensorprep/internal/config"
)

func TestThemeFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		scheme config.ColorScheme
		want   Theme
	}{
		{config.ColorSchemeAuto, ThemeDefault},
		{config.ColorSchemeDark, ThemeCharm},
		{config.ColorSchemeLight, ThemeBase16},
	}
	for _, tt := range tests {
		t.Run(string(tt.scheme), func(t *testing.T) {
			t.Parallel()
			if got := ThemeFor(tt.scheme); got != tt.want {
				t.Errorf("ThemeFor(%q) = %q, want %q", tt.scheme, got, tt.want)
			}
		})
	}
}

func TestGetHuhTheme(t *testing.T) {
	t.Parallel()

	for _, theme := range []Theme{ThemeDefault, ThemeCharm, ThemeDracula, ThemeCatppuccin, ThemeBase16, "unknown"} {
		if getHuhTheme(theme) == nil {
			t.Errorf("getHuhTheme(%q) = nil", theme)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	t.Parallel()

	f, err := os.Create(filepath.Join(t.TempDir(), "answers"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	if IsTerminal(f) {
		t.Error("IsTerminal(regular file) = true")
	}
	if IsTerminal(strings.NewReader("y\n")) {
		t.Error("IsTerminal(strings.Reader) = true")
	}
}

func TestNewConfirmFormDefaults(t *testing.T) {
	t.Parallel()

	opts := ConfirmOptions{
		Title:  "Reboot now?",
		Config: Config{Accessible: true, Input: strings.NewReader("n\n"), Output: &bytes.Buffer{}},
	}
	form := newConfirmForm(&opts)
	if form.form == nil || form.confirm == nil {
		t.Fatal("newConfirmForm() returned an incomplete form")
	}
	if opts.Affirmative != "Yes" || opts.Negative != "No" {
		t.Errorf("labels = %q/%q, want Yes/No", opts.Affirmative, opts.Negative)
	}
}
