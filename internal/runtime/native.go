// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
)

// DefaultEscalation is the prefix used for privileged commands.
var DefaultEscalation = []string{"sudo"}

// NativeRunner executes commands on the host with os/exec.
type NativeRunner struct {
	// Stdout receives streamed command output.
	Stdout io.Writer
	// Stderr receives streamed command diagnostics.
	Stderr io.Writer
	// Escalation is prepended to privileged commands when not already running as root.
	Escalation []string
	// euid reports the effective user id; replaced in tests.
	euid func() int
}

// NewNativeRunner creates a runner streaming to the given writers.
// Nil writers default to the process stdout/stderr.
func NewNativeRunner(stdout, stderr io.Writer) *NativeRunner {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return &NativeRunner{
		Stdout:     stdout,
		Stderr:     stderr,
		Escalation: DefaultEscalation,
		euid:       os.Geteuid,
	}
}

// Run executes the command, streaming output to the runner's writers.
func (r *NativeRunner) Run(ctx context.Context, cmd Command) *Result {
	out, captured := newStreamingOutput(r.Stdout, r.Stderr)
	return r.execute(ctx, cmd, out, captured, false)
}

// Capture executes the command and returns its stdout and stderr in the Result.
func (r *NativeRunner) Capture(ctx context.Context, cmd Command) *Result {
	out, captured := newCapturingOutput()
	return r.execute(ctx, cmd, out, captured, true)
}

func (r *NativeRunner) execute(ctx context.Context, cmd Command, out *executeOutput, captured *capturedOutput, capture bool) *Result {
	name, args := r.argv(cmd)

	slog.Debug("exec", "cmd", cmd.String(), "dir", cmd.Dir)

	c := exec.CommandContext(ctx, name, args...)
	if cmd.Dir != "" {
		c.Dir = cmd.Dir
	}
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	c.Stdin = cmd.Stdin
	c.Stdout = out.stdout
	c.Stderr = out.stderr

	res := newResult(c.Run(), captured, capture)
	if err := ctx.Err(); err != nil && !res.Success() {
		// The process was killed by CommandContext.
		res.ExitCode = ExitInterrupted
		res.Error = err
	}
	return res
}

// argv resolves the executable and arguments, applying the escalation prefix for
// privileged commands unless the process already runs as root.
func (r *NativeRunner) argv(cmd Command) (string, []string) {
	euid := r.euid
	if euid == nil {
		euid = os.Geteuid
	}
	if !cmd.Privileged || len(r.Escalation) == 0 || euid() == 0 {
		return cmd.Name, cmd.Args
	}
	args := make([]string, 0, len(r.Escalation)+len(cmd.Args))
	args = append(args, r.Escalation[1:]...)
	args = append(args, cmd.Name)
	args = append(args, cmd.Args...)
	return r.Escalation[0], args
}
