// SPDX-License-Identifier: MPL-2.0

// Package metrics exports the last provisioning run for the node_exporter textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"sensorprep/internal/provision"
)

const namespace = "sensorprep"

// Collectors holds the gauges describing one run.
type Collectors struct {
	registry *prometheus.Registry

	lastRun      prometheus.Gauge
	duration     prometheus.Gauge
	success      prometheus.Gauge
	exitCode     prometheus.Gauge
	rebootNeeded prometheus.Gauge
	stepOutcome  *prometheus.GaugeVec
	stepDuration *prometheus.GaugeVec
}

// NewCollectors registers the run gauges on a fresh registry.
func NewCollectors() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last provisioning run finished.",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the last provisioning run.",
		}),
		success: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 if the last run completed without error.",
		}),
		exitCode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_exit_code",
			Help:      "Exit code of the last run.",
		}),
		rebootNeeded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reboot_required",
			Help:      "1 if the last run made changes that need a reboot that has not happened.",
		}),
		stepOutcome: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "step_outcome",
			Help:      "1 for the outcome each step had in the last run.",
		}, []string{"step", "outcome"}),
		stepDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Time spent in each step of the last run.",
		}, []string{"step"}),
	}
	c.registry.MustRegister(c.lastRun, c.duration, c.success, c.exitCode, c.rebootNeeded, c.stepOutcome, c.stepDuration)
	return c
}

// Observe sets the gauges from r.
func (c *Collectors) Observe(r *provision.Report) {
	c.lastRun.Set(float64(r.Finished.Unix()))
	c.duration.Set(r.Duration().Seconds())
	c.exitCode.Set(float64(r.ExitCode()))
	c.success.Set(boolValue(r.Err == nil))
	c.rebootNeeded.Set(boolValue(len(r.Reboot.Reasons) > 0 && !r.Reboot.Accepted))

	c.stepOutcome.Reset()
	c.stepDuration.Reset()
	for _, s := range r.Steps {
		c.stepOutcome.WithLabelValues(string(s.Step), string(s.Outcome)).Set(1)
		c.stepDuration.WithLabelValues(string(s.Step)).Set(s.Duration.Seconds())
	}
}

// Gatherer exposes the registry.
func (c *Collectors) Gatherer() prometheus.Gatherer { return c.registry }

// WriteTextfile writes the gauges to path atomically. The directory is created if needed.
func (c *Collectors) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Export observes r and writes it to path.
func Export(path string, r *provision.Report) error {
	c := NewCollectors()
	c.Observe(r)
	return c.WriteTextfile(path)
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
