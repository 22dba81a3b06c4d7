// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"errors"
	"strings"
	"testing"
)

func TestCommandString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cmd  Command
		want string
	}{
		{name: "plain", cmd: Command{Name: "id", Args: []string{"-nG", "pi"}}, want: "id -nG pi"},
		{name: "privileged", cmd: Command{Name: "apt-get", Args: []string{"update"}, Privileged: true}, want: "sudo apt-get update"},
		{name: "no args", cmd: Command{Name: "hostname"}, want: "hostname"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.cmd.String(); got != tt.want {
				t.Errorf("Command.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResultErr(t *testing.T) {
	t.Parallel()

	cmd := Command{Name: "apt-get", Args: []string{"install", "-y", "git"}, Privileged: true}

	if err := (&Result{}).Err(cmd); err != nil {
		t.Fatalf("success result Err() = %v, want nil", err)
	}

	err := (&Result{ExitCode: 100, ErrOutput: "E: Unable to locate package git\n"}).Err(cmd)
	if err == nil {
		t.Fatal("failed result Err() = nil, want error")
	}
	if !errors.Is(err, ErrCommandFailed) {
		t.Errorf("error does not wrap ErrCommandFailed: %v", err)
	}
	if got := ExitCodeOf(err); got != 100 {
		t.Errorf("ExitCodeOf() = %d, want 100", got)
	}
	if !strings.Contains(err.Error(), "Unable to locate package") {
		t.Errorf("error should quote stderr, got %q", err.Error())
	}

	// Infrastructure errors with a zero exit code still report failure.
	err = (&Result{Error: errors.New("executable file not found")}).Err(cmd)
	if got := ExitCodeOf(err); got != 1 {
		t.Errorf("ExitCodeOf(infrastructure error) = %d, want 1", got)
	}
}
