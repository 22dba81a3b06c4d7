// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
)

func TestExitCodeIsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value     ExitCode
		wantValid bool
	}{
		{0, true},
		{1, true},
		{100, true},
		{ExitInterrupted, true},
		{255, true},
		{-1, false},
		{256, false},
	}

	for _, tt := range tests {
		t.Run(tt.value.String(), func(t *testing.T) {
			t.Parallel()

			isValid, errs := tt.value.IsValid()
			if isValid != tt.wantValid {
				t.Fatalf("ExitCode(%d).IsValid() = %v, want %v", tt.value, isValid, tt.wantValid)
			}
			if tt.wantValid && len(errs) != 0 {
				t.Errorf("ExitCode(%d).IsValid() returned errors for valid value: %v", tt.value, errs)
			}
			if !tt.wantValid && (len(errs) == 0 || !errors.Is(errs[0], ErrInvalidExitCode)) {
				t.Errorf("ExitCode(%d).IsValid() errors = %v, want ErrInvalidExitCode", tt.value, errs)
			}
		})
	}
}

func TestExitCodePredicates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code            ExitCode
		wantSuccess     bool
		wantInterrupted bool
	}{
		{ExitSuccess, true, false},
		{ExitFailure, false, false},
		{100, false, false},
		{ExitInterrupted, false, true},
		{143, false, false},
	}

	for _, tt := range tests {
		if got := tt.code.IsSuccess(); got != tt.wantSuccess {
			t.Errorf("ExitCode(%d).IsSuccess() = %v, want %v", tt.code, got, tt.wantSuccess)
		}
		if got := tt.code.IsInterrupted(); got != tt.wantInterrupted {
			t.Errorf("ExitCode(%d).IsInterrupted() = %v, want %v", tt.code, got, tt.wantInterrupted)
		}
	}
}

func TestExitCodeOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want ExitCode
	}{
		{name: "nil", err: nil, want: ExitSuccess},
		{name: "plain error", err: errors.New("boom"), want: ExitFailure},
		{name: "wrapped command error", err: fmt.Errorf("step packages: %w", &CommandError{Command: "apt-get", ExitCode: 42}), want: 42},
		{name: "command error without status", err: &CommandError{Command: "apt-get"}, want: ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ExitCodeOf(tt.err); got != tt.want {
				t.Errorf("ExitCodeOf() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExitStatus(t *testing.T) {
	t.Parallel()

	if code, err := exitStatus(nil); code != ExitSuccess || err != nil {
		t.Errorf("exitStatus(nil) = %d, %v", code, err)
	}

	notStarted := errors.New("exec: \"apt-get\": executable file not found in $PATH")
	if code, err := exitStatus(notStarted); code != ExitFailure || !errors.Is(err, notStarted) {
		t.Errorf("exitStatus(not started) = %d, %v", code, err)
	}

	if code, err := exitStatus(context.Canceled); code != ExitFailure || !errors.Is(err, context.Canceled) {
		t.Errorf("exitStatus(canceled) = %d, %v", code, err)
	}
}

func TestSignalStatus(t *testing.T) {
	t.Parallel()

	if got := signalStatus(syscall.SIGINT); !got.IsInterrupted() {
		t.Errorf("signalStatus(SIGINT) = %d, want %d", got, ExitInterrupted)
	}
	if got := signalStatus(syscall.SIGTERM); got != 143 {
		t.Errorf("signalStatus(SIGTERM) = %d, want 143", got)
	}
}
