// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sensorprep/internal/issue"
	"sensorprep/internal/runtime"
)

const (
	// OutcomeSkipped means the step's fact already held.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeApplied means the step changed the machine.
	OutcomeApplied Outcome = "applied"
	// OutcomeFailed means the step could not complete.
	OutcomeFailed Outcome = "failed"

	// StateCompleted means every step was reached.
	StateCompleted RunState = "completed"
	// StateAborted means a step failed and the run stopped.
	StateAborted RunState = "aborted"

	// ExitConfiguration is the exit code for configuration errors.
	ExitConfiguration runtime.ExitCode = 2
	// ExitInterrupted is the exit code when the operator interrupts the run.
	ExitInterrupted = runtime.ExitInterrupted
)

var (
	// ErrConfiguration is the sentinel error wrapped by ConfigurationError.
	ErrConfiguration = errors.New("configuration error")
	// ErrInvalidOutcome is returned when an Outcome value is not recognized.
	ErrInvalidOutcome = errors.New("invalid outcome")
)

type (
	// StepName identifies a step in reports, history and metrics.
	StepName string

	// Outcome is the result of evaluating one step.
	Outcome string

	// InvalidOutcomeError is returned when an Outcome value is not recognized.
	InvalidOutcomeError struct {
		Value Outcome
	}

	// RunState is the terminal state of a run.
	RunState string

	// Step is one named, idempotent unit of provisioning.
	Step interface {
		Name() StepName
		// Description is the operator-facing label of the step.
		Description() string
		// Check reports whether the step's fact already holds.
		Check(ctx context.Context, rc *RunContext) (bool, error)
		// Apply makes the fact hold.
		Apply(ctx context.Context, rc *RunContext) error
	}

	// StepResult records how one step went.
	StepResult struct {
		Step     StepName
		Outcome  Outcome
		Err      error
		Duration time.Duration
		Warnings []string
	}

	// RebootResult records the end-of-run reboot decision.
	RebootResult struct {
		// Reasons lists the changes that need a reboot or a new login.
		Reasons []string
		// Asked is true when the decider was consulted.
		Asked bool
		// Accepted is true when the decider agreed to reboot.
		Accepted bool
	}

	// Report is the outcome of a whole run.
	Report struct {
		Started  time.Time
		Finished time.Time
		State    RunState
		Steps    []StepResult
		// Err is the error that aborted the run, or a reboot failure.
		Err    error
		Reboot RebootResult
	}

	// ConfigurationError reports a fatal problem detected before the machine was changed.
	ConfigurationError struct {
		Op       string
		Resource string
		IssueID  issue.Id
		Err      error
	}
)

// String returns the string representation of the Outcome.
func (o Outcome) String() string { return string(o) }

// IsValid returns whether the Outcome is one of the defined outcomes.
func (o Outcome) IsValid() (bool, []error) {
	switch o {
	case OutcomeSkipped, OutcomeApplied, OutcomeFailed:
		return true, nil
	default:
		return false, []error{&InvalidOutcomeError{Value: o}}
	}
}

// Error implements the error interface for InvalidOutcomeError.
func (e *InvalidOutcomeError) Error() string {
	return fmt.Sprintf("invalid outcome %q (valid: skipped, applied, failed)", e.Value)
}

// Unwrap returns ErrInvalidOutcome for errors.Is() compatibility.
func (e *InvalidOutcomeError) Unwrap() error { return ErrInvalidOutcome }

// String returns the string representation of the RunState.
func (s RunState) String() string { return string(s) }

// Error implements the error interface for ConfigurationError.
func (e *ConfigurationError) Error() string {
	msg := e.Op
	if e.Resource != "" {
		msg += ": " + e.Resource
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns ErrConfiguration for errors.Is() compatibility.
func (e *ConfigurationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConfiguration}
	}
	return []error{ErrConfiguration, e.Err}
}

// Result returns the result of the named step.
func (r *Report) Result(name StepName) (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Step == name {
			return s, true
		}
	}
	return StepResult{}, false
}

// Count returns how many steps ended with outcome.
func (r *Report) Count(outcome Outcome) int {
	n := 0
	for _, s := range r.Steps {
		if s.Outcome == outcome {
			n++
		}
	}
	return n
}

// Warnings returns every warning raised during the run.
func (r *Report) Warnings() []string {
	var out []string
	for _, s := range r.Steps {
		out = append(out, s.Warnings...)
	}
	return out
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// ExitCode maps the report to the process exit status: 0 on success, 2 for
// configuration errors, 130 when interrupted, and the failing command's status otherwise.
func (r *Report) ExitCode() runtime.ExitCode {
	switch {
	case r.Err == nil:
		return 0
	case errors.Is(r.Err, ErrConfiguration):
		return ExitConfiguration
	case errors.Is(r.Err, context.Canceled), interrupted(r.Err):
		return ExitInterrupted
	default:
		return runtime.ExitCodeOf(r.Err)
	}
}

func interrupted(err error) bool {
	var cmdErr *runtime.CommandError
	return errors.As(err, &cmdErr) && cmdErr.Interrupted()
}
