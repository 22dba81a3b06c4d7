// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"sensorprep/internal/machine"
)

const (
	// SourceRequirements installs from the requirements file.
	SourceRequirements ManifestSource = "requirements"
	// SourcePyproject installs the [project].dependencies of pyproject.toml.
	SourcePyproject ManifestSource = "pyproject"
	// SourceFallback installs the fixed fallback list one package at a time.
	SourceFallback ManifestSource = "fallback"
)

type (
	// ManifestSource names where the dependency list came from.
	ManifestSource string

	// InstallPlan is the set of pip invocations for the dependencies step.
	InstallPlan struct {
		Source ManifestSource
		// Path is the manifest file; empty for the fallback list.
		Path string
		// Installs are the argument lists passed to pip install, in order.
		Installs [][]string
		// Digest identifies the plan and the manifest content it was built from.
		Digest string
	}

	pyproject struct {
		Project struct {
			Dependencies []string `toml:"dependencies"`
		} `toml:"project"`
	}
)

// PipUpgrade is the first pip invocation of every install.
var PipUpgrade = []string{"--upgrade", "pip"}

// PlanInstall picks the dependency manifest: the requirements file when present, then a
// pyproject.toml with dependencies, then the fallback packages.
func PlanInstall(fsys machine.Filesystem, s Settings) (*InstallPlan, error) {
	h := sha256.New()
	fmt.Fprintf(h, "interpreter=%s\n", s.Interpreter)

	plan := &InstallPlan{}
	switch {
	case fsys.Exists(s.Manifest):
		data, err := fsys.ReadFile(s.Manifest)
		if err != nil {
			return nil, err
		}
		plan.Source = SourceRequirements
		plan.Path = s.Manifest
		plan.Installs = [][]string{{"-r", s.Manifest}}
		h.Write(data)
	case fsys.Exists(s.Pyproject):
		deps, data, err := readPyproject(fsys, s.Pyproject)
		if err != nil {
			return nil, err
		}
		if len(deps) == 0 {
			return fallbackPlan(h, s), nil
		}
		plan.Source = SourcePyproject
		plan.Path = s.Pyproject
		plan.Installs = [][]string{deps}
		h.Write(data)
	default:
		return fallbackPlan(h, s), nil
	}

	fmt.Fprintf(h, "source=%s\n", plan.Source)
	plan.Digest = hex.EncodeToString(h.Sum(nil))
	return plan, nil
}

func fallbackPlan(h hash.Hash, s Settings) *InstallPlan {
	plan := &InstallPlan{Source: SourceFallback}
	for _, pkg := range s.FallbackPackages {
		plan.Installs = append(plan.Installs, []string{pkg})
	}
	fmt.Fprintf(h, "fallback=%s\nsource=%s\n", strings.Join(s.FallbackPackages, ","), plan.Source)
	plan.Digest = hex.EncodeToString(h.Sum(nil))
	return plan
}

func readPyproject(fsys machine.Filesystem, path string) ([]string, []byte, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	var doc pyproject
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	var deps []string
	for _, d := range doc.Project.Dependencies {
		if d = strings.TrimSpace(d); d != "" {
			deps = append(deps, d)
		}
	}
	return deps, data, nil
}
