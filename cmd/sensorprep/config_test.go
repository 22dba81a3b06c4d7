// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigShowAndDump(t *testing.T) {
	h := newHarness(t, freshBoard())

	if err := h.run("config", "show"); err != nil {
		t.Fatalf("config show error = %v", err)
	}
	out := h.stdout.String()
	for _, want := range []string{"(using defaults)", "~/sensor-monitor", "dtparam=spi=on", "sensor-monitor"} {
		if !strings.Contains(out, want) {
			t.Errorf("config show missing %q:\n%s", want, out)
		}
	}

	h.stdout.Reset()
	if err := h.run("config", "dump"); err != nil {
		t.Fatalf("config dump error = %v", err)
	}
	if out := h.stdout.String(); !strings.Contains(out, "project:") || !strings.Contains(out, "service:") {
		t.Errorf("config dump output:\n%s", out)
	}
}

func TestConfigInitAndPath(t *testing.T) {
	cfgHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", cfgHome)
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	want := filepath.Join(cfgHome, "sensorprep", "config.cue")

	h := newHarness(t, freshBoard())
	if err := h.run("config", "path"); err != nil {
		t.Fatalf("config path error = %v", err)
	}
	if !strings.Contains(h.stdout.String(), "Config file: "+want) {
		t.Errorf("config path output = %q, want %s", h.stdout, want)
	}

	h.stdout.Reset()
	if err := h.run("config", "init"); err != nil {
		t.Fatalf("config init error = %v", err)
	}
	if !strings.Contains(h.stdout.String(), "Created default configuration at "+want) {
		t.Errorf("config init output = %q", h.stdout)
	}

	h.stdout.Reset()
	if err := h.run("config", "init"); err != nil {
		t.Fatalf("second config init error = %v", err)
	}
	if !strings.Contains(h.stdout.String(), "already exists") {
		t.Errorf("second config init output = %q", h.stdout)
	}
}
