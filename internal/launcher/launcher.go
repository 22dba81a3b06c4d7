// SPDX-License-Identifier: MPL-2.0

// Package launcher generates the script that starts the sensor application by hand.
package launcher

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"text/template"

	"sensorprep/internal/runtime"

	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// Mode is the launcher's permission bits.
const Mode fs.FileMode = 0o755

const scriptTemplate = `#!/bin/bash
# Starts the sensor monitoring application in the foreground.
# Generated by sensorprep; re-running sensorprep replaces local edits.
set -e

cd {{ quote .ProjectDir }}
source {{ quote .Activate }}

echo "Starting sensor monitor"
echo "Working directory: $(pwd)"
echo "Python: $(python --version 2>&1)"

set -- $(hostname -I 2>/dev/null || true) localhost
echo "Dashboard: http://$1:{{ .DashboardPort }}"
echo "FORCE_RASPBERRY_PI=${FORCE_RASPBERRY_PI:-false}"

exec python {{ quote .Entrypoint }}
`

var tmpl = template.Must(template.New("launcher").Funcs(template.FuncMap{"quote": shellQuote}).Parse(scriptTemplate))

type (
	// Script describes the launcher.
	Script struct {
		// ProjectDir is the directory the application runs in.
		ProjectDir string
		// VenvDir is the virtual environment, absolute or relative to ProjectDir.
		VenvDir string
		// Entrypoint is the application script.
		Entrypoint string
		// DashboardPort is printed in the dashboard URL.
		DashboardPort int
	}

	// Call is an external command the launcher invoked during a trace.
	Call struct {
		Args []string
		Dir  string
	}

	// Trace is the outcome of interpreting the launcher with stubbed commands.
	Trace struct {
		Calls    []Call
		Output   string
		ExitCode runtime.ExitCode
	}

	// Stub answers an external command during a trace. It returns the command's stdout.
	Stub func(args []string) (string, error)
)

func shellQuote(s string) (string, error) {
	return syntax.Quote(s, syntax.LangBash)
}

// Activate returns the venv activation script path.
func (s Script) Activate() string {
	return filepath.Join(s.VenvDir, "bin", "activate")
}

// Render produces the launcher. The output is parsed as bash before it is returned.
func (s Script) Render() ([]byte, error) {
	if s.ProjectDir == "" || s.VenvDir == "" || s.Entrypoint == "" {
		return nil, fmt.Errorf("launcher: project dir, venv dir and entrypoint are required")
	}
	if s.DashboardPort <= 0 {
		s.DashboardPort = 8000
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, s); err != nil {
		return nil, fmt.Errorf("render launcher: %w", err)
	}
	if _, err := runtime.NewVirtualRunner().Parse("launcher", buf.String()); err != nil {
		return nil, fmt.Errorf("render launcher: %w", err)
	}
	return buf.Bytes(), nil
}

// Run interprets the launcher without touching the machine: every external
// command is recorded and answered by stub. env is the complete environment.
func Run(ctx context.Context, script []byte, env []string, stub Stub) *Trace {
	trace := &Trace{}
	var out bytes.Buffer

	res := runtime.NewVirtualRunner().RunScript(ctx, string(script), runtime.ScriptOptions{
		Name:   "launcher",
		Env:    env,
		Stdout: &out,
		Stderr: &out,
		Exec: func(ctx context.Context, args []string) error {
			hc := interp.HandlerCtx(ctx)
			trace.Calls = append(trace.Calls, Call{Args: slices.Clone(args), Dir: hc.Dir})
			if stub == nil {
				return nil
			}
			stdout, err := stub(args)
			if stdout != "" {
				_, _ = fmt.Fprint(hc.Stdout, stdout)
			}
			return err
		},
	})

	trace.Output = out.String()
	trace.ExitCode = res.ExitCode
	if res.Error != nil && trace.ExitCode.IsSuccess() {
		trace.ExitCode = 1
	}
	return trace
}

// Commands returns the traced command names in order.
func (t *Trace) Commands() []string {
	names := make([]string, 0, len(t.Calls))
	for _, c := range t.Calls {
		names = append(names, strings.Join(c.Args, " "))
	}
	return names
}
