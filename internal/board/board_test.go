// SPDX-License-Identifier: MPL-2.0

package board

import (
	"errors"
	"testing"

	"sensorprep/internal/machine/machinetest"
)

func env(values map[string]string) func(string) string {
	return func(k string) string { return values[k] }
}

func TestDetect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		model      string
		cpuinfo    string
		env        map[string]string
		wantPi     bool
		wantSource Source
	}{
		{"device tree", "Raspberry Pi 4 Model B Rev 1.4\x00", "", nil, true, SourceDeviceTree},
		{"cpuinfo BCM", "", "Hardware\t: BCM2835\n", nil, true, SourceCPUInfo},
		{"cpuinfo model line", "", "Model\t\t: Raspberry Pi Zero 2 W Rev 1.0\n", nil, true, SourceCPUInfo},
		{"generic x86", "", "model name\t: Intel(R) Core(TM) i7\n", nil, false, SourceNone},
		{"forced", "", "", map[string]string{ForceEnv: "TRUE"}, true, SourceForced},
		{"force false", "", "", map[string]string{ForceEnv: "false"}, false, SourceNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fs := machinetest.New("pi", "/home/pi")
			if tt.model != "" {
				fs.AddFile(ModelPath, tt.model, 0o444)
			}
			if tt.cpuinfo != "" {
				fs.AddFile(CPUInfoPath, tt.cpuinfo, 0o444)
			}

			info := Detect(fs, env(tt.env))
			if info.RaspberryPi != tt.wantPi || info.Source != tt.wantSource {
				t.Errorf("Detect() = %+v, want pi=%v source=%s", info, tt.wantPi, tt.wantSource)
			}
		})
	}
}

func TestDetect_ModelTrimsNul(t *testing.T) {
	t.Parallel()

	fs := machinetest.New("pi", "/home/pi").AddFile(ModelPath, "Raspberry Pi 3 Model B Plus Rev 1.3\x00", 0o444)
	if got := Detect(fs, nil).Model; got != "Raspberry Pi 3 Model B Plus Rev 1.3" {
		t.Errorf("Model = %q", got)
	}
}

func TestSensors(t *testing.T) {
	t.Parallel()

	fs := machinetest.New("pi", "/home/pi").
		AddFile(W1DevicesDir+"/28-0000075565ab/w1_slave", "72 01 4b 46 7f ff 0e 10 57 : crc=57 YES\n72 01 4b 46 7f ff 0e 10 57 t=23125\n", 0o444).
		AddDir(W1DevicesDir + "/w1_bus_master1")

	sensors, err := Sensors(fs)
	if err != nil {
		t.Fatal(err)
	}
	if len(sensors) != 1 || sensors[0].ID != "28-0000075565ab" {
		t.Fatalf("Sensors() = %+v", sensors)
	}

	c, err := sensors[0].ReadCelsius(fs)
	if err != nil {
		t.Fatalf("ReadCelsius() error: %v", err)
	}
	if c != 23.125 {
		t.Errorf("ReadCelsius() = %v, want 23.125", c)
	}
}

func TestParseReading_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
		want error
	}{
		{"crc failure", "72 01 4b 46 7f ff 0e 10 57 : crc=57 NO\n72 01 t=23125\n", ErrCRC},
		{"single line", "72 01 4b 46 7f ff 0e 10 57 : crc=57 YES\n", ErrMalformedReading},
		{"no value", "crc=57 YES\n72 01 4b 46\n", ErrMalformedReading},
		{"bad number", "crc=57 YES\n72 01 t=abc\n", ErrMalformedReading},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := ParseReading([]byte(tt.data)); !errors.Is(err, tt.want) {
				t.Errorf("ParseReading() error = %v, want %v", err, tt.want)
			}
		})
	}
}
