// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"sensorprep/internal/machine"
)

type (
	// RebootDecider is asked whether to reboot once a run completed with changes
	// that only take effect after a reboot or a new login.
	RebootDecider func(ctx context.Context, reasons []string) (bool, error)

	// Provisioner runs the ordered provisioning steps against a machine.
	Provisioner struct {
		machine  machine.Machine
		settings Settings
		steps    []Step
		reporter Reporter
		decide   RebootDecider
		now      func() time.Time
		getenv   func(string) string
		logger   *slog.Logger
	}

	// Option configures a Provisioner.
	Option func(*Provisioner)

	// RunContext is the state shared by the steps of one run.
	RunContext struct {
		Machine  machine.Machine
		Settings Settings
		Getenv   func(string) string

		reporter Reporter
		warnings []string
		reasons  []string
	}
)

// WithReporter sets the status line sink.
func WithReporter(r Reporter) Option {
	return func(p *Provisioner) { p.reporter = r }
}

// WithRebootDecider sets the reboot decision. The default declines.
func WithRebootDecider(d RebootDecider) Option {
	return func(p *Provisioner) { p.decide = d }
}

// WithClock overrides the time source used for durations.
func WithClock(now func() time.Time) Option {
	return func(p *Provisioner) { p.now = now }
}

// WithGetenv overrides environment lookups (FORCE_RASPBERRY_PI).
func WithGetenv(getenv func(string) string) Option {
	return func(p *Provisioner) { p.getenv = getenv }
}

// WithLogger sets the debug logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provisioner) { p.logger = l }
}

// DeclineReboot is the default RebootDecider.
func DeclineReboot(context.Context, []string) (bool, error) { return false, nil }

// New creates a Provisioner for m.
func New(m machine.Machine, settings Settings, opts ...Option) *Provisioner {
	p := &Provisioner{
		machine:  m,
		settings: settings,
		steps:    DefaultSteps(),
		reporter: NopReporter(),
		decide:   DeclineReboot,
		now:      time.Now,
		getenv:   os.Getenv,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run evaluates every step in order. The first failure aborts the run; the
// reboot decision is only made after a completed run.
func (p *Provisioner) Run(ctx context.Context) *Report {
	rc := &RunContext{
		Machine:  p.machine,
		Settings: p.settings,
		Getenv:   p.getenv,
		reporter: p.reporter,
	}
	report := &Report{Started: p.now(), State: StateCompleted}

	for _, step := range p.steps {
		res := p.runStep(ctx, rc, step)
		report.Steps = append(report.Steps, res)
		if res.Err != nil {
			report.State = StateAborted
			report.Err = res.Err
			report.Finished = p.now()
			return report
		}
	}

	report.Reboot.Reasons = rc.reasons
	report.Steps = append(report.Steps, p.finalizeReboot(ctx, report))
	report.Finished = p.now()
	return report
}

func (p *Provisioner) runStep(ctx context.Context, rc *RunContext, step Step) StepResult {
	start := p.now()
	res := StepResult{Step: step.Name()}

	err := ctx.Err()
	done := false
	if err == nil {
		done, err = step.Check(ctx, rc)
	}
	switch {
	case err != nil:
		res.Outcome = OutcomeFailed
	case done:
		res.Outcome = OutcomeSkipped
	default:
		if err = step.Apply(ctx, rc); err != nil {
			res.Outcome = OutcomeFailed
		} else {
			res.Outcome = OutcomeApplied
		}
	}

	res.Err = err
	res.Duration = p.now().Sub(start)
	res.Warnings = rc.warnings
	rc.warnings = nil

	p.logger.Debug("step finished", "step", res.Step, "outcome", res.Outcome, "duration", res.Duration)
	switch res.Outcome {
	case OutcomeSkipped:
		p.reporter.Info(step.Description() + ": already in place")
	case OutcomeApplied:
		p.reporter.Success(step.Description())
	case OutcomeFailed:
		p.reporter.Error(fmt.Sprintf("%s: %v", step.Description(), err))
	}
	return res
}

func (p *Provisioner) finalizeReboot(ctx context.Context, report *Report) (res StepResult) {
	res = StepResult{Step: StepReboot, Outcome: OutcomeSkipped}
	reasons := report.Reboot.Reasons
	if len(reasons) == 0 {
		p.reporter.Info("No reboot needed")
		return res
	}

	start := p.now()
	defer func() { res.Duration = p.now().Sub(start) }()

	report.Reboot.Asked = true
	accepted, err := p.decide(ctx, reasons)
	if err != nil {
		p.reporter.Warn(fmt.Sprintf("Could not ask about rebooting: %v", err))
		accepted = false
	}
	report.Reboot.Accepted = accepted
	if !accepted {
		p.reporter.Info(fmt.Sprintf("Reboot required for: %s. Run 'sudo reboot' when ready.", strings.Join(reasons, "; ")))
		return res
	}

	p.reporter.Info("Rebooting")
	if err := p.machine.Reboot(ctx); err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		report.Err = err
		p.reporter.Error(fmt.Sprintf("Reboot: %v", err))
		return res
	}
	res.Outcome = OutcomeApplied
	return res
}

// Warn records a non-fatal problem on the running step and reports it immediately.
func (rc *RunContext) Warn(msg string) {
	rc.warnings = append(rc.warnings, msg)
	rc.reporter.Warn(msg)
}

// RequireReboot records a change that needs a reboot or a new login to take effect.
func (rc *RunContext) RequireReboot(reason string) {
	rc.reasons = append(rc.reasons, reason)
}
