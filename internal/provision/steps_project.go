// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"sensorprep/internal/issue"
	"sensorprep/internal/launcher"
)

type (
	projectDirStep struct{}
	venvStep       struct{}

	projectLayoutStep struct {
		dirs         []string
		needSettings bool
	}

	dependenciesStep struct{ plan *InstallPlan }

	serviceStep struct {
		content []byte
		write   bool
	}

	launcherStep struct{ content []byte }

	// appSettings is the default config/settings.json of the sensor application.
	appSettings struct {
		SensorID          *string `json:"SENSOR_ID"`
		ReadInterval      float64 `json:"READ_INTERVAL"`
		DataFilePath      string  `json:"DATA_FILE_PATH"`
		EnableAlerts      bool    `json:"ENABLE_ALERTS"`
		HighTempThreshold float64 `json:"HIGH_TEMP_THRESHOLD"`
		LowTempThreshold  float64 `json:"LOW_TEMP_THRESHOLD"`
		LogLevel          string  `json:"LOG_LEVEL"`
		DataRetentionDays int     `json:"DATA_RETENTION_DAYS"`
		EnableWebServer   bool    `json:"ENABLE_WEB_SERVER"`
		WebServerPort     int     `json:"WEB_SERVER_PORT"`
		EnableMockSensor  bool    `json:"ENABLE_MOCK_SENSOR"`
	}
)

// DefaultSettingsJSON renders the application settings written on first provisioning.
func DefaultSettingsJSON(port int) ([]byte, error) {
	data, err := json.MarshalIndent(appSettings{
		ReadInterval:      2.0,
		DataFilePath:      "data/temperature_data.json",
		EnableAlerts:      true,
		HighTempThreshold: 30.0,
		LowTempThreshold:  0.0,
		LogLevel:          "INFO",
		DataRetentionDays: 30,
		EnableWebServer:   true,
		WebServerPort:     port,
	}, "", "    ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func (*projectDirStep) Name() StepName      { return StepProjectDir }
func (*projectDirStep) Description() string { return "Project directory" }

// Check fails when the project directory is absent. sensorprep never creates it.
func (*projectDirStep) Check(_ context.Context, rc *RunContext) (bool, error) {
	dir := rc.Settings.ProjectDir
	if rc.Machine.IsDir(dir) {
		return true, nil
	}
	return false, &ConfigurationError{
		Op:       "project directory not found",
		Resource: dir,
		IssueID:  issue.ProjectDirMissingId,
		Err:      errors.New("clone or copy the sensor application there, or set project.dir"),
	}
}

func (*projectDirStep) Apply(context.Context, *RunContext) error { return nil }

func (*projectLayoutStep) Name() StepName      { return StepProjectLayout }
func (*projectLayoutStep) Description() string { return "Project layout" }

func (s *projectLayoutStep) Check(_ context.Context, rc *RunContext) (bool, error) {
	s.dirs = nil
	for _, d := range rc.Settings.Layout {
		p := filepath.Join(rc.Settings.ProjectDir, d)
		if !rc.Machine.IsDir(p) {
			s.dirs = append(s.dirs, p)
		}
	}
	s.needSettings = !rc.Machine.Exists(rc.Settings.SettingsPath())
	return len(s.dirs) == 0 && !s.needSettings, nil
}

func (s *projectLayoutStep) Apply(ctx context.Context, rc *RunContext) error {
	for _, d := range s.dirs {
		if err := rc.Machine.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}
	if !s.needSettings {
		return nil
	}
	path := rc.Settings.SettingsPath()
	if dir := filepath.Dir(path); !rc.Machine.IsDir(dir) {
		if err := rc.Machine.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := DefaultSettingsJSON(rc.Settings.DashboardPort)
	if err != nil {
		return err
	}
	return rc.Machine.WriteFile(ctx, path, data, 0o644)
}

func (*venvStep) Name() StepName      { return StepVenv }
func (*venvStep) Description() string { return "Python virtual environment" }

func (*venvStep) Check(_ context.Context, rc *RunContext) (bool, error) {
	return rc.Machine.VenvExists(rc.Settings.VenvDir), nil
}

func (*venvStep) Apply(ctx context.Context, rc *RunContext) error {
	return rc.Machine.CreateVenv(ctx, rc.Settings.Interpreter, rc.Settings.VenvDir)
}

func (*dependenciesStep) Name() StepName      { return StepDependencies }
func (*dependenciesStep) Description() string { return "Python libraries" }

// Check compares the plan's digest with the stamp left by the last install.
func (s *dependenciesStep) Check(_ context.Context, rc *RunContext) (bool, error) {
	plan, err := PlanInstall(rc.Machine, rc.Settings)
	if err != nil {
		return false, err
	}
	s.plan = plan

	stamp, err := rc.Machine.ReadFile(rc.Settings.StampPath())
	if err != nil {
		return false, nil
	}
	return strings.TrimSpace(string(stamp)) == plan.Digest, nil
}

func (s *dependenciesStep) Apply(ctx context.Context, rc *RunContext) error {
	venv := rc.Settings.VenvDir
	if err := rc.Machine.PipInstall(ctx, venv, PipUpgrade...); err != nil {
		return err
	}
	if s.plan.Source == SourceFallback {
		rc.Warn(fmt.Sprintf("No %s found; installing the default sensor libraries", filepath.Base(rc.Settings.Manifest)))
	}
	for _, args := range s.plan.Installs {
		if err := rc.Machine.PipInstall(ctx, venv, args...); err != nil {
			return err
		}
	}
	return rc.Machine.WriteFile(ctx, rc.Settings.StampPath(), []byte(s.plan.Digest+"\n"), 0o644)
}

func (*serviceStep) Name() StepName      { return StepService }
func (*serviceStep) Description() string { return "systemd service" }

// Check holds when the service is disabled in the configuration, or when the unit
// file matches and is enabled.
func (s *serviceStep) Check(ctx context.Context, rc *RunContext) (bool, error) {
	if !rc.Settings.InstallService {
		return true, nil
	}
	unit := rc.Settings.Unit
	content, err := unit.Render()
	if err != nil {
		return false, err
	}
	s.content = content

	current, err := rc.Machine.ReadFile(unit.Path())
	s.write = err != nil || !bytes.Equal(current, content)
	if s.write {
		return false, nil
	}
	return rc.Machine.Enabled(ctx, unit.FileName())
}

// Apply writes the unit and enables it. The service is not started.
func (s *serviceStep) Apply(ctx context.Context, rc *RunContext) error {
	unit := rc.Settings.Unit
	if s.write {
		if err := rc.Machine.WriteFile(ctx, unit.Path(), s.content, 0o644); err != nil {
			return issue.NewErrorContext().
				WithOperation("write service unit").
				WithResource(unit.Path()).
				WithIssue(issue.ServiceUnitFailedId).
				Wrap(err).
				BuildError()
		}
	}
	return rc.Machine.Enable(ctx, unit.FileName())
}

func (*launcherStep) Name() StepName      { return StepLauncher }
func (*launcherStep) Description() string { return "Launcher script" }

func (s *launcherStep) Check(_ context.Context, rc *RunContext) (bool, error) {
	content, err := LauncherScript(rc.Settings).Render()
	if err != nil {
		return false, err
	}
	s.content = content

	path := rc.Settings.LauncherPath
	current, err := rc.Machine.ReadFile(path)
	if err != nil || !bytes.Equal(current, content) {
		return false, nil
	}
	mode, err := rc.Machine.Mode(path)
	if err != nil {
		return false, nil
	}
	return mode.Perm() == launcher.Mode, nil
}

func (s *launcherStep) Apply(ctx context.Context, rc *RunContext) error {
	return rc.Machine.WriteFile(ctx, rc.Settings.LauncherPath, s.content, launcher.Mode)
}

// LauncherScript describes the launcher for s.
func LauncherScript(s Settings) launcher.Script {
	return launcher.Script{
		ProjectDir:    s.ProjectDir,
		VenvDir:       s.VenvDir,
		Entrypoint:    s.Entrypoint,
		DashboardPort: s.DashboardPort,
	}
}
