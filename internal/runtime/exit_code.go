// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"syscall"
)

// Exit statuses with a fixed meaning for sensorprep.
const (
	ExitSuccess ExitCode = 0
	// ExitFailure is reported for failures that carry no process status.
	ExitFailure ExitCode = 1
	// ExitInterrupted is 128+SIGINT.
	ExitInterrupted ExitCode = 130
)

// ErrInvalidExitCode is the sentinel error wrapped by InvalidExitCodeError.
var ErrInvalidExitCode = errors.New("invalid exit code")

type (
	// ExitCode is a process exit status in the POSIX range 0-255.
	ExitCode int

	// InvalidExitCodeError is returned when an ExitCode is outside 0-255.
	InvalidExitCodeError struct {
		Value ExitCode
	}
)

// Error implements the error interface.
func (e *InvalidExitCodeError) Error() string {
	return fmt.Sprintf("invalid exit code %d (must be in range 0-255)", e.Value)
}

// Unwrap returns ErrInvalidExitCode so callers can use errors.Is for programmatic detection.
func (e *InvalidExitCodeError) Unwrap() error { return ErrInvalidExitCode }

// IsValid returns whether the ExitCode is in the valid range (0-255),
// and a list of validation errors if it is not.
func (c ExitCode) IsValid() (bool, []error) {
	if c < 0 || c > 255 {
		return false, []error{&InvalidExitCodeError{Value: c}}
	}
	return true, nil
}

// IsSuccess reports a zero status.
func (c ExitCode) IsSuccess() bool { return c == ExitSuccess }

// IsInterrupted reports the status of a command stopped by Ctrl-C, e.g. an
// apt-get the operator interrupted.
func (c ExitCode) IsInterrupted() bool { return c == ExitInterrupted }

// String returns the decimal string representation of the ExitCode.
func (c ExitCode) String() string { return strconv.Itoa(int(c)) }

// ExitCodeOf returns the exit status carried by err, or ExitFailure for any
// other non-nil error.
func ExitCodeOf(err error) ExitCode {
	if err == nil {
		return ExitSuccess
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) && !cmdErr.ExitCode.IsSuccess() {
		return cmdErr.ExitCode
	}
	return ExitFailure
}

// exitStatus converts the error of exec.Cmd.Run into a status. A non-nil error
// is returned when the command did not exit normally.
func exitStatus(err error) (ExitCode, error) {
	if err == nil {
		return ExitSuccess, nil
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		// Not started: command not found, permission denied, context canceled.
		return ExitFailure, err
	}
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return signalStatus(ws.Signal()), nil
	}
	code := ExitCode(exitErr.ExitCode())
	if ok, errs := code.IsValid(); !ok {
		return ExitFailure, errs[0]
	}
	return code, nil
}

// signalStatus is the shell convention for a process killed by sig: 128+sig.
func signalStatus(sig syscall.Signal) ExitCode {
	return ExitCode(128 + int(sig))
}
