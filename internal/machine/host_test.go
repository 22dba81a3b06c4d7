// SPDX-License-Identifier: MPL-2.0

package machine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"sensorprep/internal/runtime"
	"sensorprep/internal/systemd"
	"sensorprep/internal/testutil"
)

func newTestHost(r *testutil.Runner, euid int) *Host {
	return &Host{
		runner:   r,
		services: systemd.NewManager(r),
		username: "pi",
		home:     "/home/pi",
		euid:     func() int { return euid },
	}
}

func TestHost_Identity(t *testing.T) {
	t.Parallel()

	if newTestHost(testutil.NewRunner(), 1000).Privileged() {
		t.Error("uid 1000 should not be privileged")
	}
	h := newTestHost(testutil.NewRunner(), 0)
	if !h.Privileged() {
		t.Error("uid 0 should be privileged")
	}
	if h.Username() != "pi" || h.HomeDir() != "/home/pi" {
		t.Errorf("identity = %s %s", h.Username(), h.HomeDir())
	}
}

func TestHost_Installed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		result runtime.Result
		want   bool
	}{
		{"installed", runtime.Result{Output: "install ok installed"}, true},
		{"removed config remains", runtime.Result{Output: "deinstall ok config-files"}, false},
		{"unknown package", runtime.Result{ExitCode: 1, ErrOutput: "dpkg-query: no packages found"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := testutil.NewRunner().On("dpkg-query", tt.result)
			got, err := newTestHost(r, 1000).Installed(context.Background(), "i2c-tools")
			if err != nil {
				t.Fatalf("Installed() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Installed() = %v, want %v", got, tt.want)
			}
			if lines := r.Lines(); lines[0] != "dpkg-query -W -f=${Status} i2c-tools" {
				t.Errorf("command = %s", lines[0])
			}
		})
	}
}

func TestHost_PackageCommands(t *testing.T) {
	t.Parallel()

	r := testutil.NewRunner()
	h := newTestHost(r, 1000)
	ctx := context.Background()

	if err := h.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if err := h.Upgrade(ctx); err != nil {
		t.Fatal(err)
	}
	if err := h.Install(ctx, "git", "i2c-tools"); err != nil {
		t.Fatal(err)
	}
	if err := h.Install(ctx); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"sudo apt-get update",
		"sudo apt-get upgrade -y",
		"sudo apt-get install -y git i2c-tools",
	}
	if !slices.Equal(r.Lines(), want) {
		t.Errorf("commands = %v, want %v", r.Lines(), want)
	}
	for _, c := range r.Calls() {
		if !slices.Contains(c.Env, "DEBIAN_FRONTEND=noninteractive") {
			t.Errorf("%s should run non-interactively", c)
		}
	}
}

func TestHost_InstallPropagatesExitCode(t *testing.T) {
	t.Parallel()

	r := testutil.NewRunner().OnExit("sudo apt-get install", 100, "E: Unable to locate package")
	err := newTestHost(r, 1000).Install(context.Background(), "nope")
	if got := runtime.ExitCodeOf(err); got != 100 {
		t.Errorf("exit code = %d, want 100", got)
	}
}

func TestHost_Groups(t *testing.T) {
	t.Parallel()

	r := testutil.NewRunner().
		OnOutput("getent group gpio", "gpio:x:997:pi").
		OnExit("getent group spi", 2, "").
		OnOutput("id -nG pi", "pi adm dialout gpio")
	h := newTestHost(r, 1000)
	ctx := context.Background()

	if ok, err := h.GroupExists(ctx, "gpio"); err != nil || !ok {
		t.Errorf("GroupExists(gpio) = %v, %v", ok, err)
	}
	if ok, err := h.GroupExists(ctx, "spi"); err != nil || ok {
		t.Errorf("GroupExists(spi) = %v, %v", ok, err)
	}
	if ok, err := h.IsMember(ctx, "pi", "gpio"); err != nil || !ok {
		t.Errorf("IsMember(gpio) = %v, %v", ok, err)
	}
	if ok, err := h.IsMember(ctx, "pi", "i2c"); err != nil || ok {
		t.Errorf("IsMember(i2c) = %v, %v", ok, err)
	}
	if err := h.AddToGroup(ctx, "pi", "i2c"); err != nil {
		t.Fatal(err)
	}
	if last := r.Lines()[len(r.Lines())-1]; last != "sudo usermod -aG i2c pi" {
		t.Errorf("last command = %s", last)
	}
}

func TestHost_GroupExists_Error(t *testing.T) {
	t.Parallel()

	r := testutil.NewRunner().OnExit("getent", 1, "")
	if _, err := newTestHost(r, 1000).GroupExists(context.Background(), "gpio"); !errors.Is(err, runtime.ErrCommandFailed) {
		t.Errorf("expected ErrCommandFailed, got %v", err)
	}
}

func TestHost_Python(t *testing.T) {
	t.Parallel()

	venv := filepath.Join(t.TempDir(), "venv")
	r := testutil.NewRunner()
	h := newTestHost(r, 1000)
	ctx := context.Background()

	if h.VenvExists(venv) {
		t.Error("venv should not exist yet")
	}
	testutil.MustWriteFile(t, filepath.Join(venv, "pyvenv.cfg"), "home = /usr/bin\n", 0o644)
	if !h.VenvExists(venv) {
		t.Error("venv with pyvenv.cfg should exist")
	}

	if err := h.CreateVenv(ctx, "python3", venv); err != nil {
		t.Fatal(err)
	}
	if err := h.PipInstall(ctx, venv, "-r", "requirements.txt"); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"python3 -m venv " + venv,
		filepath.Join(venv, "bin", "pip") + " install -r requirements.txt",
	}
	if !slices.Equal(r.Lines(), want) {
		t.Errorf("commands = %v, want %v", r.Lines(), want)
	}
	for _, c := range r.Calls() {
		if c.Privileged {
			t.Errorf("%s must not escalate", c)
		}
	}
}

func TestHost_WriteFile_Direct(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "start.sh")
	r := testutil.NewRunner()
	h := newTestHost(r, 1000)

	if err := h.WriteFile(context.Background(), path, []byte("#!/bin/bash\n"), 0o755); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	if got := testutil.MustReadFile(t, path); got != "#!/bin/bash\n" {
		t.Errorf("content = %q", got)
	}
	mode, err := h.Mode(path)
	if err != nil {
		t.Fatal(err)
	}
	if mode != 0o755 {
		t.Errorf("mode = %o, want 755", mode)
	}
	if h.Exists(path + ".tmp") {
		t.Error("temporary file left behind")
	}
	if len(r.Calls()) != 0 {
		t.Errorf("direct write should not run commands: %v", r.Lines())
	}
}

func TestHost_WriteFile_EscalatesOnPermission(t *testing.T) {
	t.Parallel()
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}

	dir := filepath.Join(t.TempDir(), "system")
	testutil.MustWriteFile(t, filepath.Join(dir, ".keep"), "", 0o644)
	if err := os.Chmod(dir, 0o555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	path := filepath.Join(dir, "sensor-monitor.service")
	r := testutil.NewRunner()
	if err := newTestHost(r, 1000).WriteFile(context.Background(), path, []byte("[Unit]\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	want := []string{"sudo tee " + path, "sudo chmod 644 " + path}
	if !slices.Equal(r.Lines(), want) {
		t.Errorf("commands = %v, want %v", r.Lines(), want)
	}
	if r.Calls()[0].Stdin == nil {
		t.Error("tee should receive the content on stdin")
	}
}

func TestHost_AppendFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.txt")
	testutil.MustWriteFile(t, path, "dtparam=audio=on\n", 0o644)

	h := newTestHost(testutil.NewRunner(), 1000)
	if err := h.AppendFile(context.Background(), path, []byte("dtparam=spi=on\n")); err != nil {
		t.Fatal(err)
	}
	if got := testutil.MustReadFile(t, path); got != "dtparam=audio=on\ndtparam=spi=on\n" {
		t.Errorf("content = %q", got)
	}
}

func TestHost_Glob(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(dir, "28-0000075565ab", "w1_slave"), "", 0o644)
	testutil.MustWriteFile(t, filepath.Join(dir, "w1_bus_master1", "x"), "", 0o644)

	h := newTestHost(testutil.NewRunner(), 1000)
	matches, err := h.Glob(filepath.Join(dir, "28-*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || filepath.Base(matches[0]) != "28-0000075565ab" {
		t.Errorf("Glob() = %v", matches)
	}
	if !h.IsDir(matches[0]) {
		t.Error("sensor entry should be a directory")
	}
}
