// SPDX-License-Identifier: MPL-2.0

package systemd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"sensorprep/internal/runtime"

	"github.com/coreos/go-systemd/v22/dbus"
	godbus "github.com/godbus/dbus/v5"
)

const (
	enabledState = "enabled"

	logindDest   = "org.freedesktop.login1"
	logindPath   = godbus.ObjectPath("/org/freedesktop/login1")
	logindReboot = "org.freedesktop.login1.Manager.Reboot"
)

type (
	// unitFileLister is the subset of the D-Bus connection used for queries.
	unitFileLister interface {
		ListUnitFilesByPatternsContext(ctx context.Context, states []string, patterns []string) ([]dbus.UnitFile, error)
		Close()
	}

	// methodCaller is the subset of a D-Bus object used to request a reboot.
	methodCaller interface {
		CallWithContext(ctx context.Context, method string, flags godbus.Flags, args ...any) *godbus.Call
	}

	// Manager queries and changes service registration.
	Manager struct {
		runner runtime.Runner
		// dial opens the system bus; replaced in tests.
		dial func(ctx context.Context) (unitFileLister, error)
		// reboot asks logind to reboot; replaced in tests.
		reboot func(ctx context.Context) error
	}
)

// NewManager creates a Manager that falls back to systemctl through runner.
func NewManager(runner runtime.Runner) *Manager {
	return &Manager{
		runner: runner,
		dial:   dialSystemBus,
		reboot: rebootOverBus,
	}
}

func dialSystemBus(ctx context.Context) (unitFileLister, error) {
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("dbus.NewSystemConnection: %w", err)
	}
	return conn, nil
}

func rebootOverBus(ctx context.Context) error {
	conn, err := godbus.ConnectSystemBus(godbus.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("godbus.ConnectSystemBus: %w", err)
	}
	defer func() { _ = conn.Close() }()
	return requestReboot(ctx, conn.Object(logindDest, logindPath))
}

// requestReboot calls logind's Reboot without interactive authorization, so a
// polkit denial is returned instead of waiting for a password agent.
func requestReboot(ctx context.Context, logind methodCaller) error {
	if err := logind.CallWithContext(ctx, logindReboot, 0, false).Err; err != nil {
		return fmt.Errorf("%s: %w", logindReboot, err)
	}
	return nil
}

// Enabled reports whether the unit file is enabled.
func (m *Manager) Enabled(ctx context.Context, unitName string) (bool, error) {
	enabled, err := m.enabledOverBus(ctx, unitName)
	if err == nil {
		return enabled, nil
	}
	slog.Debug("unit query over D-Bus failed, using systemctl", "unit", unitName, "error", err)

	cmd := runtime.Command{Name: "systemctl", Args: []string{"is-enabled", unitName}}
	res := m.runner.Capture(ctx, cmd)
	if res.Error != nil {
		return false, res.Err(cmd)
	}
	// is-enabled exits non-zero for disabled and unknown units.
	return strings.TrimSpace(res.Output) == enabledState, nil
}

func (m *Manager) enabledOverBus(ctx context.Context, unitName string) (bool, error) {
	conn, err := m.dial(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	files, err := conn.ListUnitFilesByPatternsContext(ctx, []string{enabledState}, []string{unitName})
	if err != nil {
		return false, fmt.Errorf("dbus.ListUnitFilesByPatterns: %w", err)
	}
	for _, f := range files {
		if strings.HasSuffix(f.Path, "/"+unitName) && f.Type == enabledState {
			return true, nil
		}
	}
	return false, nil
}

// Enable reloads the manager configuration and enables the unit. It never starts it.
func (m *Manager) Enable(ctx context.Context, unitName string) error {
	for _, cmd := range []runtime.Command{
		{Name: "systemctl", Args: []string{"daemon-reload"}, Privileged: true},
		{Name: "systemctl", Args: []string{"enable", unitName}, Privileged: true},
	} {
		if err := m.runner.Run(ctx, cmd).Err(cmd); err != nil {
			return err
		}
	}
	return nil
}

// Reboot restarts the machine through logind, falling back to systemctl.
func (m *Manager) Reboot(ctx context.Context) error {
	err := m.reboot(ctx)
	if err == nil {
		return nil
	}
	slog.Debug("logind reboot refused or unavailable, using systemctl", "error", err)

	cmd := runtime.Command{Name: "systemctl", Args: []string{"reboot"}, Privileged: true}
	return m.runner.Run(ctx, cmd).Err(cmd)
}
