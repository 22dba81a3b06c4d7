// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sensorprep/internal/issue"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "sensorprep"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes every environment override, e.g. SENSORPREP_PROJECT_DIR.
	EnvPrefix = "SENSORPREP"

	// maxConfigFileSize bounds the config file read into memory.
	maxConfigFileSize = 1 << 20
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the sensorprep configuration directory:
// $XDG_CONFIG_HOME/sensorprep, defaulting to ~/.config/sensorprep.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	// Allow tests to override the config directory
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config")
	}

	return filepath.Join(configDir, AppName), nil
}

// StateDir returns the directory holding run history:
// $XDG_STATE_HOME/sensorprep, defaulting to ~/.local/state/sensorprep.
func StateDir() (string, error) {
	if stateDirOverride != "" {
		return stateDirOverride, nil
	}

	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		stateDir = filepath.Join(home, ".local", "state")
	}

	return filepath.Join(stateDir, AppName), nil
}

// ExpandHome resolves a leading "~/" against home. Other paths are returned unchanged.
func ExpandHome(path, home string) string {
	return ProjectDir(path).Expand(home)
}

// setDefaults registers every key so that environment overrides and
// Unmarshal see the full key set even without a config file.
func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()
	v.SetDefault("project.dir", defaults.Project.Dir)
	v.SetDefault("project.venv", defaults.Project.Venv)
	v.SetDefault("project.manifest", defaults.Project.Manifest)
	v.SetDefault("project.entrypoint", defaults.Project.Entrypoint)
	v.SetDefault("project.layout", defaults.Project.Layout)
	v.SetDefault("packages.upgrade", defaults.Packages.Upgrade)
	v.SetDefault("packages.required", defaults.Packages.Required)
	v.SetDefault("hardware.boot_config_paths", defaults.Hardware.BootConfigPaths)
	v.SetDefault("hardware.directives", defaults.Hardware.Directives)
	v.SetDefault("hardware.modules", defaults.Hardware.Modules)
	v.SetDefault("hardware.groups", defaults.Hardware.Groups)
	v.SetDefault("hardware.require_board", defaults.Hardware.RequireBoard)
	v.SetDefault("python.interpreter", defaults.Python.Interpreter)
	v.SetDefault("python.fallback_packages", defaults.Python.FallbackPackages)
	v.SetDefault("service.install", defaults.Service.Install)
	v.SetDefault("service.name", defaults.Service.Name)
	v.SetDefault("service.description", defaults.Service.Description)
	v.SetDefault("service.restart_sec", defaults.Service.RestartSec)
	v.SetDefault("launcher.name", defaults.Launcher.Name)
	v.SetDefault("launcher.dashboard_port", defaults.Launcher.DashboardPort)
	v.SetDefault("history.enabled", defaults.History.Enabled)
	v.SetDefault("history.path", defaults.History.Path)
	v.SetDefault("metrics.textfile", defaults.Metrics.Textfile)
	v.SetDefault("ui.color_scheme", defaults.UI.ColorScheme)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)
	v.SetDefault("ui.reboot", defaults.UI.Reboot)
}

// loadWithOptions performs option-driven config loading without mutating
// package-level cache state. Callers that want caching can wrap this function.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath, err := resolveConfigPath(opts)
	if err != nil {
		return nil, "", err
	}

	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("Use 'sensorprep config show' to see the effective configuration").
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	// Environment overrides bypass the CUE schema, so the typed values are checked here.
	if valid, errs := cfg.IsValid(); !valid {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Check SENSORPREP_* environment variables for typos").
			WithSuggestion("Run 'sensorprep config init' to write a valid default file").
			Wrap(errs[0]).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// resolveConfigPath picks the config file to load: the explicit path when set
// (it must exist), then the config directory, then the current directory.
// An empty result means defaults only.
func resolveConfigPath(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Check that the file exists and is readable").
				WithSuggestion("Use 'sensorprep config init' to create a default configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
	if err != nil {
		return "", err
	}

	cuePath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
	if fileExists(cuePath) {
		return cuePath, nil
	}

	localCuePath := ConfigFileName + "." + ConfigFileExt
	if !opts.SkipLocal && fileExists(localCuePath) {
		return localCuePath, nil
	}

	return "", nil
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}

	return ConfigDir()
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
//
// Concrete(false) is used because every field is optional.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if len(data) > maxConfigFileSize {
		return fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes", path, len(data), maxConfigFileSize)
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return formatCUEError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return formatCUEError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return formatCUEError(err, path)
	}

	// Merge into Viper (preserves defaults, allows env overrides)
	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// formatCUEError flattens CUE errors into "<file>: <path>: <message>" lines.
func formatCUEError(err error, path string) error {
	all := cueerrors.Errors(err)
	if len(all) == 0 {
		return fmt.Errorf("%s: %w", path, err)
	}

	lines := make([]string, 0, len(all))
	for _, e := range all {
		field := strings.Join(cueerrors.Path(e), ".")
		msg := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(e.Error(), field), ":"))
		if field != "" {
			msg = field + ": " + msg
		}
		lines = append(lines, msg)
	}

	if len(lines) == 1 {
		return fmt.Errorf("%s: %s", path, lines[0])
	}
	return fmt.Errorf("%s: validation failed:\n  %s", path, strings.Join(lines, "\n  "))
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// FilePath returns the default config file location inside ConfigDir.
func FilePath() (string, error) {
	cfgDir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt), nil
}

// CreateDefaultConfig writes the default config file if it doesn't exist.
// It reports whether a file was written.
func CreateDefaultConfig() (string, bool, error) {
	cfgPath, err := FilePath()
	if err != nil {
		return "", false, err
	}

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(cfgPath); err == nil {
		return cfgPath, false, nil
	}

	if err := os.WriteFile(cfgPath, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", false, fmt.Errorf("failed to write config file: %w", err)
	}

	return cfgPath, true, nil
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// sensorprep configuration file.\n")
	sb.WriteString("// Every field is optional; omitted fields keep their defaults.\n")

	writeSection(&sb, "project", func() {
		writeString(&sb, "dir", cfg.Project.Dir.String())
		writeString(&sb, "venv", cfg.Project.Venv)
		writeString(&sb, "manifest", cfg.Project.Manifest)
		writeString(&sb, "entrypoint", cfg.Project.Entrypoint)
		writeList(&sb, "layout", cfg.Project.Layout)
	})
	writeSection(&sb, "packages", func() {
		writeBool(&sb, "upgrade", cfg.Packages.Upgrade)
		writeList(&sb, "required", cfg.Packages.Required)
	})
	writeSection(&sb, "hardware", func() {
		writeList(&sb, "boot_config_paths", cfg.Hardware.BootConfigPaths)
		writeList(&sb, "directives", cfg.Hardware.Directives)
		writeList(&sb, "modules", cfg.Hardware.Modules)
		writeList(&sb, "groups", cfg.Hardware.Groups)
		writeBool(&sb, "require_board", cfg.Hardware.RequireBoard)
	})
	writeSection(&sb, "python", func() {
		writeString(&sb, "interpreter", cfg.Python.Interpreter)
		writeList(&sb, "fallback_packages", cfg.Python.FallbackPackages)
	})
	writeSection(&sb, "service", func() {
		writeBool(&sb, "install", cfg.Service.Install)
		writeString(&sb, "name", cfg.Service.Name.String())
		writeString(&sb, "description", cfg.Service.Description)
		fmt.Fprintf(&sb, "\trestart_sec: %d\n", cfg.Service.RestartSec)
	})
	writeSection(&sb, "launcher", func() {
		writeString(&sb, "name", cfg.Launcher.Name)
		fmt.Fprintf(&sb, "\tdashboard_port: %d\n", cfg.Launcher.DashboardPort)
	})
	writeSection(&sb, "history", func() {
		writeBool(&sb, "enabled", cfg.History.Enabled)
		if cfg.History.Path != "" {
			writeString(&sb, "path", cfg.History.Path)
		}
	})
	if cfg.Metrics.Textfile != "" {
		writeSection(&sb, "metrics", func() {
			writeString(&sb, "textfile", cfg.Metrics.Textfile)
		})
	}
	writeSection(&sb, "ui", func() {
		writeString(&sb, "color_scheme", cfg.UI.ColorScheme.String())
		writeBool(&sb, "verbose", cfg.UI.Verbose)
		writeString(&sb, "reboot", cfg.UI.Reboot.String())
	})

	return sb.String()
}

func writeSection(sb *strings.Builder, name string, body func()) {
	fmt.Fprintf(sb, "\n%s: {\n", name)
	body()
	sb.WriteString("}\n")
}

func writeString(sb *strings.Builder, key, value string) {
	fmt.Fprintf(sb, "\t%s: %q\n", key, value)
}

func writeBool(sb *strings.Builder, key string, value bool) {
	fmt.Fprintf(sb, "\t%s: %v\n", key, value)
}

func writeList(sb *strings.Builder, key string, values []string) {
	if len(values) == 0 {
		fmt.Fprintf(sb, "\t%s: []\n", key)
		return
	}
	fmt.Fprintf(sb, "\t%s: [\n", key)
	for _, value := range values {
		fmt.Fprintf(sb, "\t\t%q,\n", value)
	}
	sb.WriteString("\t]\n")
}
