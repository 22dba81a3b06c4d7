// SPDX-License-Identifier: MPL-2.0

package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sensorprep/internal/provision"
)

func report(err error) *provision.Report {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	r := &provision.Report{
		Started:  start,
		Finished: start.Add(30 * time.Second),
		State:    provision.StateCompleted,
		Steps: []provision.StepResult{
			{Step: provision.StepPreflight, Outcome: provision.OutcomeSkipped},
			{Step: provision.StepPackages, Outcome: provision.OutcomeApplied, Duration: 2 * time.Second},
		},
		Reboot: provision.RebootResult{Reasons: []string{"boot configuration changed"}, Asked: true},
	}
	if err != nil {
		r.Err = err
		r.State = provision.StateAborted
		r.Steps[1].Outcome = provision.OutcomeFailed
	}
	return r
}

func TestExport(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want []string
	}{
		{
			name: "completed",
			want: []string{
				"sensorprep_last_run_success 1",
				"sensorprep_last_run_exit_code 0",
				"sensorprep_last_run_duration_seconds 30",
				"sensorprep_reboot_required 1",
				`sensorprep_step_outcome{outcome="applied",step="packages"} 1`,
				`sensorprep_step_duration_seconds{step="packages"} 2`,
			},
		},
		{
			name: "failed",
			err:  errors.New("boom"),
			want: []string{
				"sensorprep_last_run_success 0",
				"sensorprep_last_run_exit_code 1",
				`sensorprep_step_outcome{outcome="failed",step="packages"} 1`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "textfile", "sensorprep.prom")
			if err := Export(path, report(tt.err)); err != nil {
				t.Fatalf("Export() error = %v", err)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("read textfile: %v", err)
			}
			out := string(data)
			for _, line := range tt.want {
				if !strings.Contains(out, line+"\n") {
					t.Errorf("textfile missing %q:\n%s", line, out)
				}
			}
		})
	}
}

func TestCollectors_ObserveResetsSteps(t *testing.T) {
	t.Parallel()

	c := NewCollectors()
	c.Observe(report(errors.New("boom")))
	c.Observe(report(nil))

	families, err := c.Gatherer().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() != "sensorprep_step_outcome" {
			continue
		}
		if n := len(f.GetMetric()); n != 2 {
			t.Errorf("step_outcome series = %d, want 2 after a second Observe", n)
		}
	}
}
