// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"path/filepath"
	"strings"
	"testing"

	"sensorprep/internal/config"
	"sensorprep/internal/testutil"
)

func TestDoctorProvisionedBoard(t *testing.T) {
	// The launcher dry run reads the activate script and changes into the
	// project directory on the real filesystem.
	project := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(project, "venv", "bin", "activate"), "export VIRTUAL_ENV="+filepath.Join(project, "venv")+"\n", 0o644)

	m := freshBoard().
		AddDir(project).
		AddFile(filepath.Join(project, "main.py"), "print('sensor')\n", 0o644).
		AddFile("/sys/bus/w1/devices/28-0000075565ab/w1_slave",
			"58 01 4b 46 7f ff 08 10 8c : crc=8c YES\n58 01 4b 46 7f ff 08 10 8c t=21500\n", 0o444)
	h := newHarness(t, m)
	h.cfg.Project.Dir = config.ProjectDir(project)

	if err := h.run("--reboot=no"); err != nil {
		t.Fatalf("provision error = %v\nstdout:\n%s", err, h.stdout)
	}
	before := len(m.Mutations())

	h.stdout.Reset()
	if err := h.run("doctor"); err != nil {
		t.Fatalf("doctor error = %v\nstdout:\n%s", err, h.stdout)
	}
	out := h.stdout.String()
	for _, want := range []string{
		"Raspberry Pi 4 Model B Rev 1.4",
		"28-0000075565ab: 21.50°C",
		"enables SPI, I2C and 1-Wire",
		"w1_gpio, w1_therm",
		"installed from fallback",
		"sensor-monitor.service is enabled",
		"starts main.py",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("doctor output missing %q:\n%s", want, out)
		}
	}
	if after := m.Mutations(); len(after) != before {
		t.Errorf("doctor mutated the machine: %q", after[before:])
	}
}

func TestDoctorUnprovisionedBoard(t *testing.T) {
	h := newHarness(t, freshBoard())

	err := h.run("doctor")
	if got := exitCode(err); got != 1 {
		t.Fatalf("exit code = %d, want 1 (err = %v)", got, err)
	}
	out := h.stdout.String()
	for _, want := range []string{
		"no DS18B20 sensors",
		"is missing dtparam=spi=on",
		"pi is not in gpio, i2c, spi",
		"venv does not exist",
		"start.sh does not exist",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("doctor output missing %q:\n%s", want, out)
		}
	}
	if muts := h.machine.Mutations(); len(muts) != 0 {
		t.Errorf("mutations = %q, want none", muts)
	}
}
