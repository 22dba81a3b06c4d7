// SPDX-License-Identifier: MPL-2.0

package systemd

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/coreos/go-systemd/v22/unit"
)

const (
	// UnitDir is where administrator-managed units live.
	UnitDir = "/etc/systemd/system"

	// systemPath is appended after the venv bin dir in the unit's PATH.
	systemPath = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"
)

// ErrInvalidUnit is returned when a Unit is missing a required field.
var ErrInvalidUnit = errors.New("invalid service unit")

type (
	// Unit describes the sensor application service.
	Unit struct {
		// Name is the unit name without the ".service" suffix.
		Name string
		// Description is the [Unit] Description= value.
		Description string
		// User runs the service.
		User string
		// WorkingDirectory is the project directory.
		WorkingDirectory string
		// VenvDir is the virtual environment whose interpreter starts the application.
		VenvDir string
		// Entrypoint is the application script, relative to WorkingDirectory.
		Entrypoint string
		// RestartSec is the fixed delay before systemd restarts the service.
		RestartSec int
	}

	// InvalidUnitError names the missing field.
	InvalidUnitError struct {
		Field string
	}
)

// Error implements the error interface for InvalidUnitError.
func (e *InvalidUnitError) Error() string {
	return fmt.Sprintf("invalid service unit: %s is required", e.Field)
}

// Unwrap returns ErrInvalidUnit for errors.Is() compatibility.
func (e *InvalidUnitError) Unwrap() error { return ErrInvalidUnit }

// FileName returns the unit file name, e.g. "sensor-monitor.service".
func (u Unit) FileName() string {
	return u.Name + ".service"
}

// Path returns the absolute unit file path under UnitDir.
func (u Unit) Path() string {
	return filepath.Join(UnitDir, u.FileName())
}

// Validate reports the first missing required field.
func (u Unit) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"Name", u.Name},
		{"User", u.User},
		{"WorkingDirectory", u.WorkingDirectory},
		{"VenvDir", u.VenvDir},
		{"Entrypoint", u.Entrypoint},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &InvalidUnitError{Field: r.field}
		}
	}
	return nil
}

// Options returns the unit as ordered go-systemd options.
func (u Unit) Options() []*unit.UnitOption {
	description := u.Description
	if description == "" {
		description = u.Name
	}
	bin := filepath.Join(u.VenvDir, "bin")

	return []*unit.UnitOption{
		unit.NewUnitOption("Unit", "Description", description),
		unit.NewUnitOption("Unit", "After", "network.target"),

		unit.NewUnitOption("Service", "Type", "simple"),
		unit.NewUnitOption("Service", "User", u.User),
		unit.NewUnitOption("Service", "WorkingDirectory", u.WorkingDirectory),
		unit.NewUnitOption("Service", "Environment", "PATH="+bin+":"+systemPath),
		unit.NewUnitOption("Service", "ExecStart", filepath.Join(bin, "python")+" "+u.Entrypoint),
		unit.NewUnitOption("Service", "Restart", "always"),
		unit.NewUnitOption("Service", "RestartSec", strconv.Itoa(u.RestartSec)),

		unit.NewUnitOption("Install", "WantedBy", "multi-user.target"),
	}
}

// Render serializes the unit file contents.
func (u Unit) Render() ([]byte, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(unit.Serialize(u.Options()))
	if err != nil {
		return nil, fmt.Errorf("serialize %s: %w", u.FileName(), err)
	}
	return data, nil
}
