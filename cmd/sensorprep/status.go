// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"sensorprep/internal/provision"
)

// Compile-time check.
var _ provision.Reporter = (*statusReporter)(nil)

// statusReporter prints one glyph-prefixed line per status message.
type statusReporter struct {
	mu sync.Mutex
	w  io.Writer
}

func newStatusReporter(w io.Writer) *statusReporter {
	return &statusReporter{w: w}
}

func (r *statusReporter) Info(msg string)    { r.line(InfoStyle, GlyphInfo, msg) }
func (r *statusReporter) Success(msg string) { r.line(SuccessStyle, GlyphSuccess, msg) }
func (r *statusReporter) Warn(msg string)    { r.line(WarningStyle, GlyphWarning, msg) }
func (r *statusReporter) Error(msg string)   { r.line(ErrorStyle, GlyphError, msg) }

func (r *statusReporter) line(style lipgloss.Style, glyph, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "%s %s\n", style.Render(glyph), msg)
}
