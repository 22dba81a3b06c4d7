// SPDX-License-Identifier: MPL-2.0

package machine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"sensorprep/internal/runtime"
	"sensorprep/internal/systemd"
)

const (
	// dpkgInstalled is the dpkg-query status of an installed package.
	dpkgInstalled = "install ok installed"
	// getentNotFound is getent's exit status for a missing key.
	getentNotFound = 2
	// venvMarker identifies a virtual environment directory.
	venvMarker = "pyvenv.cfg"
)

var aptEnv = []string{"DEBIAN_FRONTEND=noninteractive"}

// Host is the Machine backed by the local operating system. Reads use the OS
// directly; system changes run through the runner, escalated with sudo.
type Host struct {
	runner   runtime.Runner
	services *systemd.Manager
	username string
	home     string
	euid     func() int
}

// Compile-time check.
var _ Machine = (*Host)(nil)

// NewHost creates a Host for the current user.
func NewHost(runner runtime.Runner) (*Host, error) {
	u, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("failed to look up current user: %w", err)
	}
	return &Host{
		runner:   runner,
		services: systemd.NewManager(runner),
		username: u.Username,
		home:     u.HomeDir,
		euid:     os.Geteuid,
	}, nil
}

// Privileged reports whether the process runs as root.
func (h *Host) Privileged() bool { return h.euid() == 0 }

// Username returns the operator's login name.
func (h *Host) Username() string { return h.username }

// HomeDir returns the operator's home directory.
func (h *Host) HomeDir() string { return h.home }

func (h *Host) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (h *Host) IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (h *Host) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (h *Host) Mode(path string) (fs.FileMode, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Mode().Perm(), nil
}

func (h *Host) MkdirAll(path string, mode fs.FileMode) error {
	return os.MkdirAll(path, mode)
}

func (h *Host) Glob(pattern string) ([]string, error) {
	return filepath.Glob(pattern)
}

// WriteFile writes through a temporary file and rename. When the directory is
// not writable the content is piped through sudo tee instead.
func (h *Host) WriteFile(ctx context.Context, path string, data []byte, mode fs.FileMode) error {
	err := writeAtomic(path, data, mode)
	if err == nil || !errors.Is(err, fs.ErrPermission) {
		return err
	}

	tee := runtime.Command{Name: "tee", Args: []string{path}, Stdin: bytes.NewReader(data), Privileged: true}
	if err := h.runner.Capture(ctx, tee).Err(tee); err != nil {
		return err
	}
	chmod := runtime.Command{Name: "chmod", Args: []string{strconv.FormatUint(uint64(mode.Perm()), 8), path}, Privileged: true}
	return h.runner.Run(ctx, chmod).Err(chmod)
}

func writeAtomic(path string, data []byte, mode fs.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, mode); err != nil {
		return err
	}
	if err := os.Chmod(tmp, mode); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// AppendFile appends directly when possible, else through sudo tee -a.
func (h *Host) AppendFile(ctx context.Context, path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err == nil {
		if _, err := f.Write(data); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	}
	if !errors.Is(err, fs.ErrPermission) {
		return err
	}

	tee := runtime.Command{Name: "tee", Args: []string{"-a", path}, Stdin: bytes.NewReader(data), Privileged: true}
	return h.runner.Capture(ctx, tee).Err(tee)
}

// Installed queries dpkg; unknown packages are reported as not installed.
func (h *Host) Installed(ctx context.Context, name string) (bool, error) {
	cmd := runtime.Command{Name: "dpkg-query", Args: []string{"-W", "-f=${Status}", name}}
	res := h.runner.Capture(ctx, cmd)
	if res.Error != nil {
		return false, res.Err(cmd)
	}
	return res.ExitCode.IsSuccess() && strings.TrimSpace(res.Output) == dpkgInstalled, nil
}

func (h *Host) Refresh(ctx context.Context) error {
	return h.apt(ctx, "update")
}

func (h *Host) Upgrade(ctx context.Context) error {
	return h.apt(ctx, "upgrade", "-y")
}

func (h *Host) Install(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	return h.apt(ctx, append([]string{"install", "-y"}, names...)...)
}

func (h *Host) apt(ctx context.Context, args ...string) error {
	cmd := runtime.Command{Name: "apt-get", Args: args, Env: aptEnv, Privileged: true}
	return h.runner.Run(ctx, cmd).Err(cmd)
}

func (h *Host) GroupExists(ctx context.Context, group string) (bool, error) {
	cmd := runtime.Command{Name: "getent", Args: []string{"group", group}}
	res := h.runner.Capture(ctx, cmd)
	switch {
	case res.Success():
		return true, nil
	case res.Error == nil && res.ExitCode == getentNotFound:
		return false, nil
	default:
		return false, res.Err(cmd)
	}
}

// IsMember reads the group database, not the current session, so a grant made
// earlier in the same run is visible.
func (h *Host) IsMember(ctx context.Context, user, group string) (bool, error) {
	cmd := runtime.Command{Name: "id", Args: []string{"-nG", user}}
	res := h.runner.Capture(ctx, cmd)
	if err := res.Err(cmd); err != nil {
		return false, err
	}
	return slices.Contains(strings.Fields(res.Output), group), nil
}

func (h *Host) AddToGroup(ctx context.Context, user, group string) error {
	cmd := runtime.Command{Name: "usermod", Args: []string{"-aG", group, user}, Privileged: true}
	return h.runner.Run(ctx, cmd).Err(cmd)
}

func (h *Host) VenvExists(dir string) bool {
	return h.Exists(filepath.Join(dir, venvMarker))
}

func (h *Host) CreateVenv(ctx context.Context, interpreter, dir string) error {
	cmd := runtime.Command{Name: interpreter, Args: []string{"-m", "venv", dir}}
	return h.runner.Run(ctx, cmd).Err(cmd)
}

func (h *Host) PipInstall(ctx context.Context, venvDir string, args ...string) error {
	cmd := runtime.Command{
		Name: filepath.Join(venvDir, "bin", "pip"),
		Args: append([]string{"install"}, args...),
		Env:  []string{"PIP_DISABLE_PIP_VERSION_CHECK=1"},
	}
	return h.runner.Run(ctx, cmd).Err(cmd)
}

func (h *Host) Enabled(ctx context.Context, unit string) (bool, error) {
	return h.services.Enabled(ctx, unit)
}

func (h *Host) Enable(ctx context.Context, unit string) error {
	return h.services.Enable(ctx, unit)
}

func (h *Host) Reboot(ctx context.Context) error {
	return h.services.Reboot(ctx)
}
