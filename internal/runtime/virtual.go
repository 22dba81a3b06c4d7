// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

type (
	// ExecFunc intercepts an external command invoked by an interpreted script.
	// The interpreter's handler context (stdio, dir, env) is reachable through
	// interp.HandlerCtx(ctx).
	ExecFunc func(ctx context.Context, args []string) error

	// ScriptOptions configures a single VirtualRunner execution.
	ScriptOptions struct {
		// Name labels the script in parse errors.
		Name string
		// Dir is the initial working directory.
		Dir string
		// Env is the complete KEY=VALUE environment of the script.
		Env []string
		// Stdin, Stdout and Stderr are the script's standard streams. Nil writers capture.
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
		// Exec replaces the default exec handler when set.
		Exec ExecFunc
	}

	// VirtualRunner interprets shell scripts with mvdan/sh.
	VirtualRunner struct {
		// KillTimeout is how long the default exec handler waits after an interrupt.
		KillTimeout time.Duration
	}
)

// NewVirtualRunner creates a new virtual runner
func NewVirtualRunner() *VirtualRunner {
	return &VirtualRunner{KillTimeout: 2 * time.Second}
}

// Name returns the runner name
func (r *VirtualRunner) Name() string {
	return "virtual"
}

// Parse checks a script for syntax errors without running it.
func (r *VirtualRunner) Parse(name, script string) (*syntax.File, error) {
	prog, err := syntax.NewParser().Parse(strings.NewReader(script), name)
	if err != nil {
		return nil, fmt.Errorf("script syntax error: %w", err)
	}
	return prog, nil
}

// RunScript interprets the script. Output written to nil writers is captured in the
// Result; a non-zero exit maps to Result.ExitCode without setting Result.Error.
func (r *VirtualRunner) RunScript(ctx context.Context, script string, opts ScriptOptions) *Result {
	name := opts.Name
	if name == "" {
		name = "script"
	}

	prog, err := r.Parse(name, script)
	if err != nil {
		return &Result{ExitCode: ExitFailure, Error: err}
	}

	var stdout, stderr bytes.Buffer
	outW, errW := opts.Stdout, opts.Stderr
	if outW == nil {
		outW = &stdout
	}
	if errW == nil {
		errW = &stderr
	}

	runnerOpts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(opts.Env...)),
		interp.StdIO(opts.Stdin, outW, errW),
	}
	if opts.Dir != "" {
		runnerOpts = append(runnerOpts, interp.Dir(opts.Dir))
	}
	if opts.Exec != nil {
		runnerOpts = append(runnerOpts, interp.ExecHandlers(func(interp.ExecHandlerFunc) interp.ExecHandlerFunc {
			return interp.ExecHandlerFunc(opts.Exec)
		}))
	} else {
		runnerOpts = append(runnerOpts, interp.ExecHandlers(func(interp.ExecHandlerFunc) interp.ExecHandlerFunc {
			return interp.DefaultExecHandler(r.KillTimeout)
		}))
	}

	runner, err := interp.New(runnerOpts...)
	if err != nil {
		return &Result{ExitCode: ExitFailure, Error: fmt.Errorf("failed to create interpreter: %w", err)}
	}

	result := &Result{}
	if runErr := runner.Run(ctx, prog); runErr != nil {
		var status interp.ExitStatus
		if errors.As(runErr, &status) {
			result.ExitCode = ExitCode(status)
		} else {
			result.ExitCode = ExitFailure
			result.Error = fmt.Errorf("script execution failed: %w", runErr)
		}
	}

	result.Output = stdout.String()
	result.ErrOutput = stderr.String()
	return result
}
