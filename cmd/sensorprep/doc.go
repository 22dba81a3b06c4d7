// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for sensorprep.
//
// Running sensorprep with no arguments provisions the board. The config,
// history, doctor and render subcommands inspect the configuration and the
// provisioned state without changing the machine.
//
// Every command reaches the machine, the configuration and the prompts
// through App, so tests drive the full command tree against
// machinetest.Fake.
package cmd
