// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"strings"
	"testing"

	"sensorprep/internal/history"
)

func TestHistoryCommand(t *testing.T) {
	h := newHarness(t, freshBoard())
	if err := h.run("--reboot=no"); err != nil {
		t.Fatalf("provision error = %v", err)
	}
	if err := h.run("--reboot=no"); err != nil {
		t.Fatalf("second provision error = %v", err)
	}

	h.stdout.Reset()
	if err := h.run("history", "--limit", "1"); err != nil {
		t.Fatalf("history error = %v", err)
	}
	out := h.stdout.String()
	if !strings.Contains(out, "completed") || !strings.Contains(out, "STARTED") {
		t.Errorf("history output:\n%s", out)
	}
	if strings.Count(out, "completed") != 1 {
		t.Errorf("history --limit 1 listed more than one run:\n%s", out)
	}

	h.stdout.Reset()
	if err := h.run("history", "show", "1"); err != nil {
		t.Fatalf("history show error = %v", err)
	}
	out = h.stdout.String()
	for _, want := range []string{"Run 1", "package-index", "interfaces", "reboot required for"} {
		if !strings.Contains(out, want) {
			t.Errorf("history show missing %q:\n%s", want, out)
		}
	}
}

func TestHistoryShowUnknownRun(t *testing.T) {
	h := newHarness(t, freshBoard())

	err := h.run("history", "show", "42")
	if !errors.Is(err, history.ErrRunNotFound) {
		t.Fatalf("error = %v, want %v", err, history.ErrRunNotFound)
	}
	if got := exitCode(err); got != 1 {
		t.Errorf("exit code = %d, want 1", got)
	}
}

func TestHistoryEmptyAndDisabled(t *testing.T) {
	h := newHarness(t, freshBoard())
	if err := h.run("history"); err != nil {
		t.Fatalf("history error = %v", err)
	}
	if !strings.Contains(h.stdout.String(), "No runs recorded yet.") {
		t.Errorf("stdout = %q", h.stdout)
	}

	h.stdout.Reset()
	h.cfg.History.Enabled = false
	if err := h.run("history"); err != nil {
		t.Fatalf("history error = %v", err)
	}
	if !strings.Contains(h.stdout.String(), "history.enabled = false") {
		t.Errorf("stdout = %q", h.stdout)
	}
}
