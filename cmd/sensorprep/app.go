// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"
	"time"

	"sensorprep/internal/config"
	"sensorprep/internal/machine"
	"sensorprep/internal/runtime"
	"sensorprep/internal/tui"
)

type (
	// App wires CLI services and shared dependencies. It is the composition root for
	// the CLI layer; every Cobra handler receives an App and reaches the machine,
	// the configuration and the prompts through it.
	App struct {
		Config      config.Provider
		NewMachine  MachineFactory
		Confirm     ConfirmFunc
		Interactive func() bool
		Getenv      func(string) string
		Now         func() time.Time
		stdout      io.Writer
		stderr      io.Writer
	}

	// Dependencies defines the injection points for building an App. Nil fields are
	// replaced with production defaults by NewApp.
	Dependencies struct {
		Config      config.Provider
		NewMachine  MachineFactory
		Confirm     ConfirmFunc
		Interactive func() bool
		Getenv      func(string) string
		Now         func() time.Time
		Stdout      io.Writer
		Stderr      io.Writer
	}

	// MachineFactory builds the machine backend. Command output is streamed to stdout
	// and stderr.
	MachineFactory func(stdout, stderr io.Writer) (machine.Machine, error)

	// ConfirmFunc asks a yes/no question.
	ConfirmFunc func(ctx context.Context, opts tui.ConfirmOptions) (bool, error)
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.NewMachine == nil {
		deps.NewMachine = newHostMachine
	}
	if deps.Confirm == nil {
		deps.Confirm = tui.Confirm
	}
	if deps.Interactive == nil {
		deps.Interactive = func() bool { return tui.IsTerminal(os.Stdin) }
	}
	if deps.Getenv == nil {
		deps.Getenv = os.Getenv
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &App{
		Config:      deps.Config,
		NewMachine:  deps.NewMachine,
		Confirm:     deps.Confirm,
		Interactive: deps.Interactive,
		Getenv:      deps.Getenv,
		Now:         deps.Now,
		stdout:      deps.Stdout,
		stderr:      deps.Stderr,
	}
}

func newHostMachine(stdout, stderr io.Writer) (machine.Machine, error) {
	host, err := machine.NewHost(runtime.NewNativeRunner(stdout, stderr))
	if err != nil {
		return nil, err
	}
	return host, nil
}
