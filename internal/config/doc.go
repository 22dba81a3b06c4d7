// SPDX-License-Identifier: MPL-2.0

// Package config handles sensorprep configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/sensorprep/config.cue (or $XDG_CONFIG_HOME) and
// falls back to ./config.cue. Every key has a default, so a machine can be provisioned
// without any configuration file. SENSORPREP_* environment variables override file values
// (for example SENSORPREP_PROJECT_DIR or SENSORPREP_SERVICE_INSTALL).
//
// Files are validated against the embedded CUE schema (config_schema.cue) before they are
// merged into Viper, so typos in keys are reported instead of silently ignored.
package config
