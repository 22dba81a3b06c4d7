// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"slices"
	"strings"
	"testing"

	"sensorprep/internal/config"
	"sensorprep/internal/machine/machinetest"
)

func TestPlanInstall(t *testing.T) {
	t.Parallel()

	fallback := config.DefaultConfig().Python.FallbackPackages
	tests := []struct {
		name       string
		files      map[string]string
		wantSource ManifestSource
		wantFirst  []string
		wantCount  int
	}{
		{
			name:       "requirements",
			files:      map[string]string{"requirements.txt": "fastapi\n", "pyproject.toml": "[project]\ndependencies = [\"numpy\"]\n"},
			wantSource: SourceRequirements,
			wantFirst:  []string{"-r", testProject + "/requirements.txt"},
			wantCount:  1,
		},
		{
			name:       "pyproject",
			files:      map[string]string{"pyproject.toml": "[project]\nname = \"sensor\"\ndependencies = [\"numpy>=1.24\", \" smbus2 \"]\n"},
			wantSource: SourcePyproject,
			wantFirst:  []string{"numpy>=1.24", "smbus2"},
			wantCount:  1,
		},
		{
			name:       "pyproject without dependencies",
			files:      map[string]string{"pyproject.toml": "[tool.black]\nline-length = 100\n"},
			wantSource: SourceFallback,
			wantFirst:  []string{fallback[0]},
			wantCount:  len(fallback),
		},
		{
			name:       "fallback",
			wantSource: SourceFallback,
			wantFirst:  []string{fallback[0]},
			wantCount:  len(fallback),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := machinetest.New(testUser, testHome).AddDir(testProject)
			for name, content := range tt.files {
				m.AddFile(testProject+"/"+name, content, 0o644)
			}
			plan, err := PlanInstall(m, NewSettings(config.DefaultConfig(), m))
			if err != nil {
				t.Fatalf("PlanInstall() error = %v", err)
			}
			if plan.Source != tt.wantSource {
				t.Errorf("Source = %s, want %s", plan.Source, tt.wantSource)
			}
			if len(plan.Installs) != tt.wantCount {
				t.Fatalf("len(Installs) = %d, want %d", len(plan.Installs), tt.wantCount)
			}
			if !slices.Equal(plan.Installs[0], tt.wantFirst) {
				t.Errorf("Installs[0] = %q, want %q", plan.Installs[0], tt.wantFirst)
			}
			if len(plan.Digest) != 64 {
				t.Errorf("Digest = %q, want a sha256 hex digest", plan.Digest)
			}
		})
	}
}

func TestPlanInstall_DigestTracksManifest(t *testing.T) {
	t.Parallel()

	m := machinetest.New(testUser, testHome).
		AddFile(testProject+"/requirements.txt", "fastapi\n", 0o644)
	settings := NewSettings(config.DefaultConfig(), m)

	first, err := PlanInstall(m, settings)
	if err != nil {
		t.Fatalf("PlanInstall() error = %v", err)
	}
	again, _ := PlanInstall(m, settings)
	if first.Digest != again.Digest {
		t.Error("digest differs for an unchanged manifest")
	}

	m.AddFile(testProject+"/requirements.txt", "fastapi\nuvicorn\n", 0o644)
	changed, _ := PlanInstall(m, settings)
	if changed.Digest == first.Digest {
		t.Error("digest unchanged after editing the manifest")
	}
}

func TestPlanInstall_InvalidPyproject(t *testing.T) {
	t.Parallel()

	m := machinetest.New(testUser, testHome).
		AddFile(testProject+"/pyproject.toml", "[project\ndependencies = ", 0o644)

	_, err := PlanInstall(m, NewSettings(config.DefaultConfig(), m))
	if err == nil || !strings.Contains(err.Error(), "pyproject.toml") {
		t.Errorf("PlanInstall() error = %v, want a parse error naming pyproject.toml", err)
	}
}

func TestRunDependencies_FallbackWarns(t *testing.T) {
	t.Parallel()

	m := machinetest.New(testUser, testHome).
		AddFile("/proc/device-tree/model", "Raspberry Pi 4 Model B\x00", 0o444).
		AddFile(testBoot, "", 0o644).
		AddDir("/etc/systemd/system").
		AddDir(testProject)

	report := newTestProvisioner(m, nil).Run(t.Context())
	if report.Err != nil {
		t.Fatalf("Run() error = %v", report.Err)
	}

	res, _ := report.Result(StepDependencies)
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "requirements.txt") {
		t.Errorf("dependencies warnings = %q, want a missing requirements.txt warning", res.Warnings)
	}

	installs := m.PipInstalls(testProject + "/venv")
	fallback := config.DefaultConfig().Python.FallbackPackages
	if len(installs) != len(fallback)+1 {
		t.Fatalf("pip installs = %d, want upgrade plus %d packages", len(installs), len(fallback))
	}
	if !slices.Equal(installs[0], PipUpgrade) {
		t.Errorf("first pip install = %q, want %q", installs[0], PipUpgrade)
	}
	for i, pkg := range fallback {
		if !slices.Equal(installs[i+1], []string{pkg}) {
			t.Errorf("install %d = %q, want [%s]", i+1, installs[i+1], pkg)
		}
	}

	// Adding a manifest changes the digest and reinstalls from it.
	m.AddFile(testProject+"/requirements.txt", "w1thermsensor\n", 0o644)
	report = newTestProvisioner(m, nil).Run(t.Context())
	res, _ = report.Result(StepDependencies)
	if res.Outcome != OutcomeApplied || len(res.Warnings) != 0 {
		t.Errorf("dependencies = %s %q, want applied without warnings", res.Outcome, res.Warnings)
	}
	installs = m.PipInstalls(testProject + "/venv")
	if last := installs[len(installs)-1]; !slices.Equal(last, []string{"-r", testProject + "/requirements.txt"}) {
		t.Errorf("last pip install = %q, want the requirements file", last)
	}
}
