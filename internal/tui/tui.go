// SPDX-License-Identifier: MPL-2.0

// Package tui provides the interactive prompts of sensorprep.
// It wraps charmbracelet/huh and falls back to accessible line-based
// prompts when stdin is not a terminal.
package tui

import (
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"sensorprep/internal/config"
)

// Theme represents the visual theme for TUI components.
type Theme string

const (
	// ThemeDefault uses the default huh theme.
	ThemeDefault Theme = "default"
	// ThemeCharm uses the Charm theme.
	ThemeCharm Theme = "charm"
	// ThemeDracula uses the Dracula theme.
	ThemeDracula Theme = "dracula"
	// ThemeCatppuccin uses the Catppuccin theme.
	ThemeCatppuccin Theme = "catppuccin"
	// ThemeBase16 uses the Base16 theme.
	ThemeBase16 Theme = "base16"
)

// Config holds common configuration for TUI components.
type Config struct {
	// Theme specifies the visual theme to use.
	Theme Theme
	// Accessible enables accessible mode for screen readers and pipes.
	Accessible bool
	// Input is where answers are read from.
	Input io.Reader
	// Output specifies where to write the component output.
	Output io.Writer
}

// DefaultConfig returns the configuration for the current process.
// Accessible mode is enabled when stdin is not a terminal or ACCESSIBLE is set;
// prompts then go to stderr so they survive stdout redirection.
func DefaultConfig() Config {
	accessible := !IsTerminal(os.Stdin) || os.Getenv("ACCESSIBLE") != ""

	var output io.Writer = os.Stdout
	if accessible {
		output = os.Stderr
	}
	return Config{
		Theme:      ThemeDefault,
		Accessible: accessible,
		Input:      os.Stdin,
		Output:     output,
	}
}

// ThemeFor maps the configured color scheme to a prompt theme.
func ThemeFor(scheme config.ColorScheme) Theme {
	switch scheme {
	case config.ColorSchemeLight:
		return ThemeBase16
	case config.ColorSchemeDark:
		return ThemeCharm
	default:
		return ThemeDefault
	}
}

// IsTerminal reports whether r is a terminal.
func IsTerminal(r io.Reader) bool {
	f, ok := r.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

// getHuhTheme converts a Theme to a huh.Theme.
func getHuhTheme(t Theme) *huh.Theme {
	switch t {
	case ThemeCharm:
		return huh.ThemeCharm()
	case ThemeDracula:
		return huh.ThemeDracula()
	case ThemeCatppuccin:
		return huh.ThemeCatppuccin()
	case ThemeBase16:
		return huh.ThemeBase16()
	default:
		return huh.ThemeBase()
	}
}
