// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"

	// RebootAsk prompts the operator at the end of a completed run.
	RebootAsk RebootPolicy = "ask"
	// RebootYes reboots without asking.
	RebootYes RebootPolicy = "yes"
	// RebootNo never reboots and never asks.
	RebootNo RebootPolicy = "no"

	homePrefix = "~/"
)

var (
	// ErrInvalidProjectDir is returned when a ProjectDir value is empty or whitespace-only.
	ErrInvalidProjectDir = errors.New("invalid project dir")
	// ErrInvalidServiceName is returned when a ServiceName is not a valid systemd unit name.
	ErrInvalidServiceName = errors.New("invalid service name")
	// ErrInvalidPort is returned when a Port is outside 1-65535.
	ErrInvalidPort = errors.New("invalid port")
	// ErrInvalidRestartDelay is returned when a RestartDelay is outside 0-3600 seconds.
	ErrInvalidRestartDelay = errors.New("invalid restart delay")
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidRebootPolicy is returned when a RebootPolicy value is not recognized.
	ErrInvalidRebootPolicy = errors.New("invalid reboot policy")
	// ErrInvalidListEntry is returned when a list setting contains a blank entry.
	ErrInvalidListEntry = errors.New("invalid list entry")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")

	serviceNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.@-]+$`)
)

type (
	// ProjectDir is the directory holding the sensor application sources.
	// A leading "~/" is expanded against the operator's home directory.
	ProjectDir string

	// InvalidProjectDirError is returned when a ProjectDir value is empty or whitespace-only.
	InvalidProjectDirError struct {
		Value ProjectDir
	}

	// ServiceName is the systemd unit name without the ".service" suffix.
	ServiceName string

	// InvalidServiceNameError is returned when a ServiceName contains characters systemd rejects.
	InvalidServiceNameError struct {
		Value ServiceName
	}

	// Port is a TCP port number.
	Port int

	// InvalidPortError is returned when a Port is outside 1-65535.
	InvalidPortError struct {
		Value Port
	}

	// RestartDelay is the systemd RestartSec value in seconds.
	RestartDelay int

	// InvalidRestartDelayError is returned when a RestartDelay is outside 0-3600.
	InvalidRestartDelayError struct {
		Value RestartDelay
	}

	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not recognized.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// RebootPolicy decides what happens after a completed run.
	RebootPolicy string

	// InvalidRebootPolicyError is returned when a RebootPolicy value is not recognized.
	InvalidRebootPolicyError struct {
		Value RebootPolicy
	}

	// InvalidListEntryError is returned when a list setting contains a blank entry.
	InvalidListEntryError struct {
		Field string
		Index int
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the provisioning configuration.
	Config struct {
		// Project locates the sensor application on disk.
		Project ProjectConfig `json:"project" mapstructure:"project"`
		// Packages configures OS package synchronization.
		Packages PackagesConfig `json:"packages" mapstructure:"packages"`
		// Hardware configures bus interfaces, kernel modules and access groups.
		Hardware HardwareConfig `json:"hardware" mapstructure:"hardware"`
		// Python configures the virtual environment and its libraries.
		Python PythonConfig `json:"python" mapstructure:"python"`
		// Service configures the optional systemd unit.
		Service ServiceConfig `json:"service" mapstructure:"service"`
		// Launcher configures the generated start script.
		Launcher LauncherConfig `json:"launcher" mapstructure:"launcher"`
		// History configures the local run history database.
		History HistoryConfig `json:"history" mapstructure:"history"`
		// Metrics configures the node_exporter textfile export.
		Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`
		// UI configures the user interface
		UI UIConfig `json:"ui" mapstructure:"ui"`
	}

	// ProjectConfig locates the sensor application.
	ProjectConfig struct {
		// Dir is the project directory; it must exist before provisioning.
		Dir ProjectDir `json:"dir" mapstructure:"dir"`
		// Venv is the virtual environment directory, relative to Dir unless absolute.
		Venv string `json:"venv" mapstructure:"venv"`
		// Manifest is the pip requirements file, relative to Dir unless absolute.
		Manifest string `json:"manifest" mapstructure:"manifest"`
		// Entrypoint is the application script started by the launcher and the service.
		Entrypoint string `json:"entrypoint" mapstructure:"entrypoint"`
		// Layout lists directories created inside Dir for application data.
		Layout []string `json:"layout" mapstructure:"layout"`
	}

	// PackagesConfig configures OS package synchronization.
	PackagesConfig struct {
		// Upgrade runs a full package upgrade after refreshing the index.
		Upgrade bool `json:"upgrade" mapstructure:"upgrade"`
		// Required lists the OS packages that must be installed.
		Required []string `json:"required" mapstructure:"required"`
	}

	// HardwareConfig configures the hardware interfaces.
	HardwareConfig struct {
		// BootConfigPaths are boot configuration candidates in lookup order.
		BootConfigPaths []string `json:"boot_config_paths" mapstructure:"boot_config_paths"`
		// Directives are the interface directives ensured in the boot configuration.
		Directives []string `json:"directives" mapstructure:"directives"`
		// Modules are the kernel modules ensured in /etc/modules.
		Modules []string `json:"modules" mapstructure:"modules"`
		// Groups are the hardware-access groups granted to the operator.
		Groups []string `json:"groups" mapstructure:"groups"`
		// RequireBoard aborts provisioning when no Raspberry Pi is detected.
		RequireBoard bool `json:"require_board" mapstructure:"require_board"`
	}

	// PythonConfig configures the isolated environment.
	PythonConfig struct {
		// Interpreter creates the virtual environment.
		Interpreter string `json:"interpreter" mapstructure:"interpreter"`
		// FallbackPackages are installed one by one when no manifest exists.
		FallbackPackages []string `json:"fallback_packages" mapstructure:"fallback_packages"`
	}

	// ServiceConfig configures the optional systemd unit.
	ServiceConfig struct {
		// Install registers and enables the unit.
		Install bool `json:"install" mapstructure:"install"`
		// Name is the unit name without suffix.
		Name ServiceName `json:"name" mapstructure:"name"`
		// Description is the unit's Description= field.
		Description string `json:"description" mapstructure:"description"`
		// RestartSec is the fixed restart backoff.
		RestartSec RestartDelay `json:"restart_sec" mapstructure:"restart_sec"`
	}

	// LauncherConfig configures the generated start script.
	LauncherConfig struct {
		// Name is the script file name inside the project directory.
		Name string `json:"name" mapstructure:"name"`
		// DashboardPort is the port printed in the dashboard URL.
		DashboardPort Port `json:"dashboard_port" mapstructure:"dashboard_port"`
	}

	// HistoryConfig configures the run history database.
	HistoryConfig struct {
		// Enabled records every run.
		Enabled bool `json:"enabled" mapstructure:"enabled"`
		// Path overrides the database location.
		Path string `json:"path" mapstructure:"path"`
	}

	// MetricsConfig configures the textfile export.
	MetricsConfig struct {
		// Textfile is the .prom file written after each run. Empty disables the export.
		Textfile string `json:"textfile" mapstructure:"textfile"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// ColorScheme sets the color scheme
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
		// Verbose enables verbose output
		Verbose bool `json:"verbose" mapstructure:"verbose"`
		// Reboot decides what happens after a completed run.
		Reboot RebootPolicy `json:"reboot" mapstructure:"reboot"`
	}
)

// String returns the string representation of the ProjectDir.
func (d ProjectDir) String() string { return string(d) }

// IsValid returns whether the ProjectDir is non-empty and not whitespace-only.
func (d ProjectDir) IsValid() (bool, []error) {
	if strings.TrimSpace(string(d)) == "" {
		return false, []error{&InvalidProjectDirError{Value: d}}
	}
	return true, nil
}

// Expand resolves a leading "~/" against home and cleans the result.
func (d ProjectDir) Expand(home string) string {
	s := string(d)
	if s == "~" {
		return filepath.Clean(home)
	}
	if strings.HasPrefix(s, homePrefix) {
		return filepath.Join(home, strings.TrimPrefix(s, homePrefix))
	}
	return filepath.Clean(s)
}

// Error implements the error interface for InvalidProjectDirError.
func (e *InvalidProjectDirError) Error() string {
	return fmt.Sprintf("invalid project dir %q: must be non-empty", e.Value)
}

// Unwrap returns ErrInvalidProjectDir for errors.Is() compatibility.
func (e *InvalidProjectDirError) Unwrap() error { return ErrInvalidProjectDir }

// String returns the string representation of the ServiceName.
func (n ServiceName) String() string { return string(n) }

// UnitName returns the unit file name, e.g. "sensor-monitor.service".
func (n ServiceName) UnitName() string { return string(n) + ".service" }

// IsValid returns whether the ServiceName is a valid systemd unit name.
func (n ServiceName) IsValid() (bool, []error) {
	if !serviceNamePattern.MatchString(string(n)) {
		return false, []error{&InvalidServiceNameError{Value: n}}
	}
	return true, nil
}

// Error implements the error interface for InvalidServiceNameError.
func (e *InvalidServiceNameError) Error() string {
	return fmt.Sprintf("invalid service name %q (allowed: letters, digits, _ . @ -)", e.Value)
}

// Unwrap returns ErrInvalidServiceName for errors.Is() compatibility.
func (e *InvalidServiceNameError) Unwrap() error { return ErrInvalidServiceName }

// IsValid returns whether the Port is in the range 1-65535.
func (p Port) IsValid() (bool, []error) {
	if p < 1 || p > 65535 {
		return false, []error{&InvalidPortError{Value: p}}
	}
	return true, nil
}

// Error implements the error interface for InvalidPortError.
func (e *InvalidPortError) Error() string {
	return fmt.Sprintf("invalid port %d (must be in range 1-65535)", e.Value)
}

// Unwrap returns ErrInvalidPort for errors.Is() compatibility.
func (e *InvalidPortError) Unwrap() error { return ErrInvalidPort }

// IsValid returns whether the RestartDelay is in the range 0-3600 seconds.
func (d RestartDelay) IsValid() (bool, []error) {
	if d < 0 || d > 3600 {
		return false, []error{&InvalidRestartDelayError{Value: d}}
	}
	return true, nil
}

// Error implements the error interface for InvalidRestartDelayError.
func (e *InvalidRestartDelayError) Error() string {
	return fmt.Sprintf("invalid restart delay %d (must be in range 0-3600 seconds)", e.Value)
}

// Unwrap returns ErrInvalidRestartDelay for errors.Is() compatibility.
func (e *InvalidRestartDelayError) Unwrap() error { return ErrInvalidRestartDelay }

// Error implements the error interface for InvalidColorSchemeError.
func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidColorSchemeError) Unwrap() error {
	return ErrInvalidColorScheme
}

// String returns the string representation of the ColorScheme.
func (cs ColorScheme) String() string { return string(cs) }

// IsValid returns whether the ColorScheme is one of the defined color schemes,
// and a list of validation errors if it is not.
func (cs ColorScheme) IsValid() (bool, []error) {
	switch cs {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{&InvalidColorSchemeError{Value: cs}}
	}
}

// String returns the string representation of the RebootPolicy.
func (p RebootPolicy) String() string { return string(p) }

// IsValid returns whether the RebootPolicy is one of ask, yes, no.
func (p RebootPolicy) IsValid() (bool, []error) {
	switch p {
	case RebootAsk, RebootYes, RebootNo:
		return true, nil
	default:
		return false, []error{&InvalidRebootPolicyError{Value: p}}
	}
}

// Error implements the error interface for InvalidRebootPolicyError.
func (e *InvalidRebootPolicyError) Error() string {
	return fmt.Sprintf("invalid reboot policy %q (valid: ask, yes, no)", e.Value)
}

// Unwrap returns ErrInvalidRebootPolicy for errors.Is() compatibility.
func (e *InvalidRebootPolicyError) Unwrap() error { return ErrInvalidRebootPolicy }

// Error implements the error interface for InvalidListEntryError.
func (e *InvalidListEntryError) Error() string {
	return fmt.Sprintf("%s[%d]: entry must be non-empty", e.Field, e.Index)
}

// Unwrap returns ErrInvalidListEntry for errors.Is() compatibility.
func (e *InvalidListEntryError) Unwrap() error { return ErrInvalidListEntry }

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, 0, len(e.FieldErrors))
	for _, err := range e.FieldErrors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// IsValid returns whether the Config has valid fields.
// It delegates to the typed values and checks every list for blank entries.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	collect := func(valid bool, fieldErrs []error) {
		if !valid {
			errs = append(errs, fieldErrs...)
		}
	}

	collect(c.Project.Dir.IsValid())
	collect(c.Service.Name.IsValid())
	collect(c.Service.RestartSec.IsValid())
	collect(c.Launcher.DashboardPort.IsValid())
	collect(c.UI.ColorScheme.IsValid())
	collect(c.UI.Reboot.IsValid())

	lists := []struct {
		field   string
		entries []string
	}{
		{"project.layout", c.Project.Layout},
		{"packages.required", c.Packages.Required},
		{"hardware.boot_config_paths", c.Hardware.BootConfigPaths},
		{"hardware.directives", c.Hardware.Directives},
		{"hardware.modules", c.Hardware.Modules},
		{"hardware.groups", c.Hardware.Groups},
		{"python.fallback_packages", c.Python.FallbackPackages},
	}
	for _, list := range lists {
		for i, entry := range list.entries {
			if strings.TrimSpace(entry) == "" {
				errs = append(errs, &InvalidListEntryError{Field: list.field, Index: i})
			}
		}
	}

	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Project: ProjectConfig{
			Dir:        "~/sensor-monitor",
			Venv:       "venv",
			Manifest:   "requirements.txt",
			Entrypoint: "main.py",
			Layout:     []string{"data", "logs", "config"},
		},
		Packages: PackagesConfig{
			Upgrade: true,
			Required: []string{
				"python3",
				"python3-pip",
				"python3-venv",
				"python3-dev",
				"build-essential",
				"git",
				"i2c-tools",
			},
		},
		Hardware: HardwareConfig{
			BootConfigPaths: []string{"/boot/firmware/config.txt", "/boot/config.txt"},
			Directives:      []string{"dtparam=spi=on", "dtparam=i2c_arm=on", "dtoverlay=w1-gpio"},
			Modules:         []string{"w1_gpio", "w1_therm"},
			Groups:          []string{"gpio", "i2c", "spi"},
			RequireBoard:    false,
		},
		Python: PythonConfig{
			Interpreter: "python3",
			FallbackPackages: []string{
				// sensor access
				"RPi.GPIO",
				"w1thermsensor",
				"adafruit-circuitpython-dht",
				"smbus2",
				"spidev",
				// web serving
				"fastapi",
				"uvicorn",
				"websockets",
				// data analysis
				"numpy",
				"pandas",
				"matplotlib",
				"scikit-learn",
			},
		},
		Service: ServiceConfig{
			Install:     true,
			Name:        "sensor-monitor",
			Description: "Sensor Monitoring Service",
			RestartSec:  10,
		},
		Launcher: LauncherConfig{
			Name:          "start.sh",
			DashboardPort: 8000,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    "", // Will use the state directory if empty
		},
		Metrics: MetricsConfig{
			Textfile: "",
		},
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
			Verbose:     false,
			Reboot:      RebootAsk,
		},
	}
}
