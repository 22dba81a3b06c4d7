// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrCommandFailed is the sentinel error wrapped by CommandError.
var ErrCommandFailed = errors.New("command failed")

type (
	// Command describes a single external command invocation.
	Command struct {
		// Name is the executable to run (looked up in PATH).
		Name string
		// Args are the arguments passed to the executable.
		Args []string
		// Dir is the working directory. Empty means the current directory.
		Dir string
		// Env holds extra KEY=VALUE pairs appended to the inherited environment.
		Env []string
		// Stdin is fed to the command when set.
		Stdin io.Reader
		// Privileged runs the command through the configured escalation prefix (sudo).
		Privileged bool
	}

	// Result contains the outcome of a command execution.
	Result struct {
		// ExitCode is the process exit status.
		ExitCode ExitCode
		// Error is set for infrastructure failures (command not found, context canceled).
		Error error
		// Output is the captured stdout (capture mode only).
		Output string
		// ErrOutput is the captured stderr (capture mode only).
		ErrOutput string
	}

	// Runner executes commands against the host.
	Runner interface {
		// Run executes the command streaming its output to the runner's writers.
		Run(ctx context.Context, cmd Command) *Result
		// Capture executes the command and returns its output in the Result.
		Capture(ctx context.Context, cmd Command) *Result
	}

	// CommandError reports a failed external command. It carries the command's exit
	// status so the CLI can propagate it as the process exit code.
	CommandError struct {
		Command  string
		ExitCode ExitCode
		Stderr   string
		Err      error
	}
)

// String renders the command line for logs and error messages.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+2)
	if c.Privileged {
		parts = append(parts, "sudo")
	}
	parts = append(parts, c.Name)
	parts = append(parts, c.Args...)
	return strings.Join(parts, " ")
}

// Success reports whether the command ran and exited with status 0.
func (r *Result) Success() bool {
	return r != nil && r.Error == nil && r.ExitCode.IsSuccess()
}

// Err converts a Result into an error, returning nil on success.
func (r *Result) Err(cmd Command) error {
	if r.Success() {
		return nil
	}
	if r == nil {
		return &CommandError{Command: cmd.String(), ExitCode: ExitFailure}
	}
	code := r.ExitCode
	if code.IsSuccess() {
		code = ExitFailure
	}
	return &CommandError{
		Command:  cmd.String(),
		ExitCode: code,
		Stderr:   strings.TrimSpace(r.ErrOutput),
		Err:      r.Error,
	}
}

// Error implements the error interface for CommandError.
func (e *CommandError) Error() string {
	var msg strings.Builder
	fmt.Fprintf(&msg, "%s: exit status %d", e.Command, e.ExitCode)
	if e.Err != nil {
		msg.WriteString(": ")
		msg.WriteString(e.Err.Error())
	}
	if e.Stderr != "" {
		msg.WriteString(": ")
		msg.WriteString(e.Stderr)
	}
	return msg.String()
}

// Unwrap returns ErrCommandFailed and the underlying cause, so errors.Is matches
// both the sentinel and e.g. context.Canceled.
func (e *CommandError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrCommandFailed}
	}
	return []error{ErrCommandFailed, e.Err}
}

// Interrupted reports whether the command was stopped by Ctrl-C or by the
// cancellation of its context.
func (e *CommandError) Interrupted() bool {
	return e.ExitCode.IsInterrupted() || errors.Is(e.Err, context.Canceled)
}
