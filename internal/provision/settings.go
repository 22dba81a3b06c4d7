// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"path/filepath"

	"sensorprep/internal/config"
	"sensorprep/internal/machine"
	"sensorprep/internal/systemd"
)

const (
	// SettingsFile is the application settings file created inside the project's config dir.
	SettingsFile = "config/settings.json"
	// PyprojectFile is the secondary dependency manifest.
	PyprojectFile = "pyproject.toml"
	// StampFile records the digest of the last dependency install inside the venv.
	StampFile = ".sensorprep-deps"
)

// Settings is the resolved, absolute view of a config.Config for one operator.
type Settings struct {
	User string
	Home string

	ProjectDir string
	VenvDir    string
	Manifest   string
	Pyproject  string
	Entrypoint string
	Layout     []string

	Upgrade  bool
	Packages []string

	BootConfigPaths []string
	Directives      []string
	KernelModules   []string
	Groups          []string
	RequireBoard    bool

	Interpreter      string
	FallbackPackages []string

	InstallService bool
	Unit           systemd.Unit

	LauncherPath  string
	DashboardPort int
}

// NewSettings resolves cfg against the operator's identity.
func NewSettings(cfg *config.Config, id machine.Identity) Settings {
	home := id.HomeDir()
	projectDir := cfg.Project.Dir.Expand(home)
	venvDir := within(projectDir, config.ExpandHome(cfg.Project.Venv, home))

	return Settings{
		User:             id.Username(),
		Home:             home,
		ProjectDir:       projectDir,
		VenvDir:          venvDir,
		Manifest:         within(projectDir, config.ExpandHome(cfg.Project.Manifest, home)),
		Pyproject:        filepath.Join(projectDir, PyprojectFile),
		Entrypoint:       cfg.Project.Entrypoint,
		Layout:           cfg.Project.Layout,
		Upgrade:          cfg.Packages.Upgrade,
		Packages:         cfg.Packages.Required,
		BootConfigPaths:  cfg.Hardware.BootConfigPaths,
		Directives:       cfg.Hardware.Directives,
		KernelModules:    cfg.Hardware.Modules,
		Groups:           cfg.Hardware.Groups,
		RequireBoard:     cfg.Hardware.RequireBoard,
		Interpreter:      cfg.Python.Interpreter,
		FallbackPackages: cfg.Python.FallbackPackages,
		InstallService:   cfg.Service.Install,
		Unit: systemd.Unit{
			Name:             cfg.Service.Name.String(),
			Description:      cfg.Service.Description,
			User:             id.Username(),
			WorkingDirectory: projectDir,
			VenvDir:          venvDir,
			Entrypoint:       cfg.Project.Entrypoint,
			RestartSec:       int(cfg.Service.RestartSec),
		},
		LauncherPath:  filepath.Join(projectDir, cfg.Launcher.Name),
		DashboardPort: int(cfg.Launcher.DashboardPort),
	}
}

// SettingsPath is the application settings file.
func (s Settings) SettingsPath() string {
	return filepath.Join(s.ProjectDir, SettingsFile)
}

// StampPath is the dependency stamp file.
func (s Settings) StampPath() string {
	return filepath.Join(s.VenvDir, StampFile)
}

func within(dir, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(dir, p)
}
