// SPDX-License-Identifier: MPL-2.0

// Package machine models the state of the board being provisioned.
//
// Provisioning steps only see the Machine interface, so they can be exercised
// against machinetest.Fake in tests and against Host on a real board.
package machine

import (
	"context"
	"io/fs"
)

type (
	// Identity describes the account running the provisioner.
	Identity interface {
		// Privileged reports whether the process runs with effective uid 0.
		Privileged() bool
		// Username is the login name of the operator.
		Username() string
		// HomeDir is the operator's home directory.
		HomeDir() string
	}

	// Filesystem reads and writes files. Writes escalate when the target is not
	// writable by the operator.
	Filesystem interface {
		Exists(path string) bool
		IsDir(path string) bool
		ReadFile(path string) ([]byte, error)
		// WriteFile replaces path with data and sets its permission bits to mode.
		WriteFile(ctx context.Context, path string, data []byte, mode fs.FileMode) error
		// AppendFile appends data to path, creating it if needed.
		AppendFile(ctx context.Context, path string, data []byte) error
		MkdirAll(path string, mode fs.FileMode) error
		// Mode returns the permission bits of path.
		Mode(path string) (fs.FileMode, error)
		Glob(pattern string) ([]string, error)
	}

	// Packages is the OS package database.
	Packages interface {
		Installed(ctx context.Context, name string) (bool, error)
		// Refresh updates the package index.
		Refresh(ctx context.Context) error
		// Upgrade upgrades every installed package.
		Upgrade(ctx context.Context) error
		Install(ctx context.Context, names ...string) error
	}

	// Groups is the user group database.
	Groups interface {
		GroupExists(ctx context.Context, group string) (bool, error)
		IsMember(ctx context.Context, user, group string) (bool, error)
		AddToGroup(ctx context.Context, user, group string) error
	}

	// Python manages virtual environments.
	Python interface {
		VenvExists(dir string) bool
		CreateVenv(ctx context.Context, interpreter, dir string) error
		// PipInstall runs the venv's pip install with args.
		PipInstall(ctx context.Context, venvDir string, args ...string) error
	}

	// Services is the service manager.
	Services interface {
		// Enabled reports whether the unit (e.g. "sensor-monitor.service") is enabled.
		Enabled(ctx context.Context, unit string) (bool, error)
		// Enable reloads unit files and enables unit without starting it.
		Enable(ctx context.Context, unit string) error
	}

	// Power controls the machine's power state.
	Power interface {
		Reboot(ctx context.Context) error
	}

	// Machine is the full machine-state backend.
	Machine interface {
		Identity
		Filesystem
		Packages
		Groups
		Python
		Services
		Power
	}
)
