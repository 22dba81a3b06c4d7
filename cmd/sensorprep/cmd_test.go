// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"sensorprep/internal/board"
	"sensorprep/internal/config"
	"sensorprep/internal/history"
	"sensorprep/internal/machine"
	"sensorprep/internal/machine/machinetest"
	"sensorprep/internal/runtime"
	"sensorprep/internal/testutil"
	"sensorprep/internal/tui"
)

const (
	testUser    = "pi"
	testHome    = "/home/pi"
	testProject = "/home/pi/sensor-monitor"
	testBoot    = "/boot/firmware/config.txt"
)

type (
	staticProvider struct {
		cfg    *config.Config
		source string
		err    error
	}

	// harness runs the command tree against a fake machine. Commands install the
	// process-wide slog logger, so tests using it do not run in parallel.
	harness struct {
		t           *testing.T
		app         *App
		machine     *machinetest.Fake
		cfg         *config.Config
		stdout      *bytes.Buffer
		stderr      *bytes.Buffer
		prompts     []tui.ConfirmOptions
		answer      bool
		interactive bool
		env         map[string]string
	}
)

func (p staticProvider) Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error) {
	cfg, _, err := p.LoadWithSource(ctx, opts)
	return cfg, err
}

func (p staticProvider) LoadWithSource(context.Context, config.LoadOptions) (*config.Config, string, error) {
	if p.err != nil {
		return nil, "", p.err
	}
	return p.cfg, p.source, nil
}

// freshBoard is a freshly imaged board with the application sources checked out.
func freshBoard() *machinetest.Fake {
	return freshBoardWithoutManifest().
		AddFile(testProject+"/requirements.txt", "fastapi\nw1thermsensor\n", 0o644)
}

// freshBoardWithoutManifest is freshBoard with sources that ship no requirements.txt.
func freshBoardWithoutManifest() *machinetest.Fake {
	return machinetest.New(testUser, testHome).
		AddFile(board.ModelPath, "Raspberry Pi 4 Model B Rev 1.4\x00", 0o444).
		AddFile(testBoot, "# For more options see config.txt(5)\n[all]\n", 0o755).
		AddDir("/etc/systemd/system").
		AddDir(testProject).
		AddFile(testProject+"/main.py", "print('sensor')\n", 0o644).
		AddGroup("gpio").
		AddGroup("i2c").
		AddGroup("spi")
}

func newHarness(t *testing.T, m *machinetest.Fake) *harness {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.History.Path = filepath.Join(t.TempDir(), history.FileName)

	h := &harness{
		t:       t,
		machine: m,
		cfg:     cfg,
		stdout:  &bytes.Buffer{},
		stderr:  &bytes.Buffer{},
		env:     map[string]string{},
	}
	clock := testutil.NewFakeClock(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	clock.Step = time.Second

	h.app = NewApp(Dependencies{
		Config: staticProvider{cfg: cfg},
		NewMachine: func(io.Writer, io.Writer) (machine.Machine, error) {
			return m, nil
		},
		Confirm: func(_ context.Context, opts tui.ConfirmOptions) (bool, error) {
			h.prompts = append(h.prompts, opts)
			return h.answer, nil
		},
		Interactive: func() bool { return h.interactive },
		Getenv:      func(key string) string { return h.env[key] },
		Now:         clock.Now,
		Stdout:      h.stdout,
		Stderr:      h.stderr,
	})
	return h
}

func (h *harness) run(args ...string) error {
	h.t.Helper()
	root := NewRootCommand(h.app)
	root.SetArgs(args)
	root.SetOut(h.stdout)
	root.SetErr(h.stderr)
	return root.ExecuteContext(h.t.Context())
}

func (h *harness) history() []history.Run {
	h.t.Helper()
	store, err := history.Open(h.t.Context(), h.cfg.History.Path)
	if err != nil {
		h.t.Fatalf("history.Open() error = %v", err)
	}
	defer func() { _ = store.Close() }()
	runs, err := store.List(h.t.Context(), 0)
	if err != nil {
		h.t.Fatalf("List() error = %v", err)
	}
	return runs
}

// exitCode maps a command error to the process exit status Execute would use.
func exitCode(err error) runtime.ExitCode {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}
