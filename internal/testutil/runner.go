// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"context"
	"strings"
	"sync"

	"sensorprep/internal/runtime"
)

type (
	// Runner is a scripted runtime.Runner. Responses are matched by command-line
	// prefix (as rendered by runtime.Command.String); unmatched commands succeed
	// with empty output.
	Runner struct {
		mu        sync.Mutex
		responses []response
		calls     []runtime.Command
	}

	response struct {
		prefix string
		result runtime.Result
	}
)

// NewRunner creates an empty scripted runner.
func NewRunner() *Runner {
	return &Runner{}
}

// On registers the result returned for commands whose rendered line starts with prefix.
// Later registrations win over earlier ones.
func (r *Runner) On(prefix string, result runtime.Result) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, response{prefix: prefix, result: result})
	return r
}

// OnOutput registers a successful result with the given stdout.
func (r *Runner) OnOutput(prefix, output string) *Runner {
	return r.On(prefix, runtime.Result{Output: output})
}

// OnExit registers a result with the given exit code and stderr.
func (r *Runner) OnExit(prefix string, code runtime.ExitCode, stderr string) *Runner {
	return r.On(prefix, runtime.Result{ExitCode: code, ErrOutput: stderr})
}

// Run records the command and returns its scripted result.
func (r *Runner) Run(_ context.Context, cmd runtime.Command) *runtime.Result {
	return r.respond(cmd)
}

// Capture records the command and returns its scripted result.
func (r *Runner) Capture(_ context.Context, cmd runtime.Command) *runtime.Result {
	return r.respond(cmd)
}

func (r *Runner) respond(cmd runtime.Command) *runtime.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, cmd)

	line := cmd.String()
	for i := len(r.responses) - 1; i >= 0; i-- {
		if strings.HasPrefix(line, r.responses[i].prefix) {
			res := r.responses[i].result
			return &res
		}
	}
	return &runtime.Result{}
}

// Calls returns the recorded commands in order.
func (r *Runner) Calls() []runtime.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]runtime.Command(nil), r.calls...)
}

// Lines returns the recorded commands rendered as command lines.
func (r *Runner) Lines() []string {
	calls := r.Calls()
	lines := make([]string, 0, len(calls))
	for _, c := range calls {
		lines = append(lines, c.String())
	}
	return lines
}
