// SPDX-License-Identifier: MPL-2.0

// Package board detects Raspberry Pi hardware and 1-Wire temperature sensors.
package board

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
)

const (
	// ForceEnv overrides detection when set to "true" (case-insensitive).
	ForceEnv = "FORCE_RASPBERRY_PI"

	// ModelPath is the device-tree model string.
	ModelPath = "/proc/device-tree/model"
	// CPUInfoPath is the kernel CPU description.
	CPUInfoPath = "/proc/cpuinfo"
	// W1DevicesDir lists 1-Wire slaves.
	W1DevicesDir = "/sys/bus/w1/devices"

	// ds18b20Family is the 1-Wire family code of DS18B20 thermometers.
	ds18b20Family = "28"
)

// Detection sources.
const (
	SourceForced     Source = "env"
	SourceDeviceTree Source = "device-tree"
	SourceCPUInfo    Source = "cpuinfo"
	SourceNone       Source = "none"
)

var (
	// ErrCRC is returned when a sensor reading fails its CRC check.
	ErrCRC = errors.New("sensor CRC check failed")
	// ErrMalformedReading is returned when a w1_slave file cannot be parsed.
	ErrMalformedReading = errors.New("malformed sensor reading")
)

type (
	// Source names how a board was identified.
	Source string

	// Reader is the read-only filesystem view detection needs.
	Reader interface {
		ReadFile(path string) ([]byte, error)
		Glob(pattern string) ([]string, error)
	}

	// Info is the detection result.
	Info struct {
		// RaspberryPi is true when the machine is (or is forced to be) a Pi.
		RaspberryPi bool
		// Model is the device-tree model string when available.
		Model string
		// Source tells which check decided.
		Source Source
	}

	// Sensor is a DS18B20 1-Wire thermometer.
	Sensor struct {
		// ID is the 1-Wire slave id, e.g. "28-0000075565ab".
		ID string
		// Path is the slave's sysfs directory.
		Path string
	}
)

// Forced reports whether the FORCE_RASPBERRY_PI value enables Pi mode.
func Forced(value string) bool {
	return strings.EqualFold(strings.TrimSpace(value), "true")
}

// Detect identifies the board. getenv is consulted for FORCE_RASPBERRY_PI first,
// then the device-tree model, then /proc/cpuinfo.
func Detect(r Reader, getenv func(string) string) Info {
	model := ""
	if data, err := r.ReadFile(ModelPath); err == nil {
		// Device-tree strings are NUL-terminated.
		model = strings.TrimSpace(string(bytes.TrimRight(data, "\x00")))
	}

	if getenv != nil && Forced(getenv(ForceEnv)) {
		return Info{RaspberryPi: true, Model: model, Source: SourceForced}
	}
	if strings.Contains(model, "Raspberry Pi") {
		return Info{RaspberryPi: true, Model: model, Source: SourceDeviceTree}
	}
	if data, err := r.ReadFile(CPUInfoPath); err == nil {
		cpuinfo := string(data)
		if strings.Contains(cpuinfo, "Raspberry Pi") || strings.Contains(cpuinfo, "BCM") {
			return Info{RaspberryPi: true, Model: model, Source: SourceCPUInfo}
		}
	}
	return Info{Model: model, Source: SourceNone}
}

// Sensors lists the DS18B20 thermometers on the 1-Wire bus.
func Sensors(r Reader) ([]Sensor, error) {
	matches, err := r.Glob(path.Join(W1DevicesDir, ds18b20Family+"-*"))
	if err != nil {
		return nil, fmt.Errorf("list 1-Wire devices: %w", err)
	}
	sensors := make([]Sensor, 0, len(matches))
	for _, m := range matches {
		sensors = append(sensors, Sensor{ID: path.Base(m), Path: m})
	}
	return sensors, nil
}

// ReadCelsius reads the sensor's current temperature.
func (s Sensor) ReadCelsius(r Reader) (float64, error) {
	data, err := r.ReadFile(path.Join(s.Path, "w1_slave"))
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", s.ID, err)
	}
	return ParseReading(data)
}

// ParseReading parses the two-line w1_slave format:
//
//	72 01 4b 46 7f ff 0e 10 57 : crc=57 YES
//	72 01 4b 46 7f ff 0e 10 57 t=23125
func ParseReading(data []byte) (float64, error) {
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) < 2 {
		return 0, ErrMalformedReading
	}
	if !strings.HasSuffix(strings.TrimSpace(lines[0]), "YES") {
		return 0, ErrCRC
	}
	_, raw, ok := strings.Cut(lines[1], "t=")
	if !ok {
		return 0, ErrMalformedReading
	}
	milli, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrMalformedReading, err)
	}
	return float64(milli) / 1000, nil
}
