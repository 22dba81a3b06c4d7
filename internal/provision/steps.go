// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sensorprep/internal/board"
	"sensorprep/internal/bootcfg"
	"sensorprep/internal/issue"
)

// Step names, in execution order.
const (
	StepPreflight     StepName = "preflight"
	StepPackageIndex  StepName = "package-index"
	StepPackages      StepName = "packages"
	StepInterfaces    StepName = "interfaces"
	StepKernelModules StepName = "kernel-modules"
	StepProjectDir    StepName = "project-dir"
	StepProjectLayout StepName = "project-layout"
	StepVenv          StepName = "venv"
	StepDependencies  StepName = "dependencies"
	StepGroups        StepName = "groups"
	StepService       StepName = "service"
	StepLauncher      StepName = "launcher"
	StepReboot        StepName = "reboot"

	bootBlockComment   = "Sensor interfaces enabled by sensorprep"
	moduleBlockComment = "1-Wire temperature sensor modules added by sensorprep"
)

type (
	preflightStep     struct{}
	packageIndexStep  struct{}
	packagesStep      struct{ missing []string }
	groupsStep        struct{ missing []string }

	interfacesStep struct {
		path    string
		content string
		missing []string
	}

	kernelModulesStep struct {
		content string
		missing []string
	}
)

// DefaultSteps returns the provisioning sequence.
func DefaultSteps() []Step {
	return []Step{
		&preflightStep{},
		&packageIndexStep{},
		&packagesStep{},
		&interfacesStep{},
		&kernelModulesStep{},
		&projectDirStep{},
		&projectLayoutStep{},
		&venvStep{},
		&dependenciesStep{},
		&groupsStep{},
		&serviceStep{},
		&launcherStep{},
	}
}

// StepNames lists every step name including the final reboot decision.
func StepNames() []StepName {
	names := make([]StepName, 0, 13)
	for _, s := range DefaultSteps() {
		names = append(names, s.Name())
	}
	return append(names, StepReboot)
}

func (*preflightStep) Name() StepName      { return StepPreflight }
func (*preflightStep) Description() string { return "Preflight checks" }

// Check refuses to run as root and looks for a Raspberry Pi. It never mutates.
func (*preflightStep) Check(_ context.Context, rc *RunContext) (bool, error) {
	if rc.Machine.Privileged() {
		return false, &ConfigurationError{
			Op:      "refusing to run as root",
			IssueID: issue.RunningAsRootId,
			Err:     errors.New("run sensorprep as the operator account; it escalates with sudo where needed"),
		}
	}

	info := board.Detect(rc.Machine, rc.Getenv)
	if !info.RaspberryPi {
		if rc.Settings.RequireBoard {
			return false, &ConfigurationError{
				Op:      "no Raspberry Pi detected",
				IssueID: issue.BoardNotDetectedId,
				Err:     fmt.Errorf("set %s=true to override", board.ForceEnv),
			}
		}
		rc.Warn("This does not look like a Raspberry Pi; sensor interfaces may not work")
	}
	return true, nil
}

func (*preflightStep) Apply(context.Context, *RunContext) error { return nil }

func (*packageIndexStep) Name() StepName      { return StepPackageIndex }
func (*packageIndexStep) Description() string { return "Refresh package index" }

// Check never holds: the index is refreshed on every run.
func (*packageIndexStep) Check(context.Context, *RunContext) (bool, error) { return false, nil }

func (*packageIndexStep) Apply(ctx context.Context, rc *RunContext) error {
	if err := rc.Machine.Refresh(ctx); err != nil {
		return err
	}
	if !rc.Settings.Upgrade {
		return nil
	}
	return rc.Machine.Upgrade(ctx)
}

func (*packagesStep) Name() StepName      { return StepPackages }
func (*packagesStep) Description() string { return "Install system packages" }

func (s *packagesStep) Check(ctx context.Context, rc *RunContext) (bool, error) {
	s.missing = nil
	for _, name := range rc.Settings.Packages {
		ok, err := rc.Machine.Installed(ctx, name)
		if err != nil {
			return false, err
		}
		if !ok {
			s.missing = append(s.missing, name)
		}
	}
	return len(s.missing) == 0, nil
}

func (s *packagesStep) Apply(ctx context.Context, rc *RunContext) error {
	return rc.Machine.Install(ctx, s.missing...)
}

func (*interfacesStep) Name() StepName      { return StepInterfaces }
func (*interfacesStep) Description() string { return "Enable SPI, I2C and 1-Wire" }

func (s *interfacesStep) Check(_ context.Context, rc *RunContext) (bool, error) {
	path, err := bootcfg.Locate(rc.Machine, rc.Settings.BootConfigPaths)
	if err != nil {
		return false, issue.NewErrorContext().
			WithOperation("locate boot configuration").
			WithResource(strings.Join(rc.Settings.BootConfigPaths, ", ")).
			WithIssue(issue.BootConfigNotFoundId).
			WithSuggestion("Check that the boot partition is mounted").
			Wrap(err).
			BuildError()
	}
	data, err := rc.Machine.ReadFile(path)
	if err != nil {
		return false, err
	}
	s.path = path
	s.content = string(data)
	s.missing = bootcfg.Parse(s.content).Missing(rc.Settings.Directives)
	return len(s.missing) == 0, nil
}

func (s *interfacesStep) Apply(ctx context.Context, rc *RunContext) error {
	block := bootcfg.AppendBlock(s.content, bootBlockComment, s.missing)
	if err := rc.Machine.AppendFile(ctx, s.path, []byte(block)); err != nil {
		return err
	}
	rc.RequireReboot(fmt.Sprintf("boot configuration %s changed (%s)", s.path, strings.Join(s.missing, ", ")))
	return nil
}

func (*kernelModulesStep) Name() StepName      { return StepKernelModules }
func (*kernelModulesStep) Description() string { return "Register 1-Wire kernel modules" }

func (s *kernelModulesStep) Check(_ context.Context, rc *RunContext) (bool, error) {
	s.content = ""
	if rc.Machine.Exists(bootcfg.ModulesPath) {
		data, err := rc.Machine.ReadFile(bootcfg.ModulesPath)
		if err != nil {
			return false, err
		}
		s.content = string(data)
	}
	s.missing = bootcfg.Parse(s.content).MissingModules(rc.Settings.KernelModules)
	return len(s.missing) == 0, nil
}

func (s *kernelModulesStep) Apply(ctx context.Context, rc *RunContext) error {
	block := bootcfg.AppendBlock(s.content, moduleBlockComment, s.missing)
	if err := rc.Machine.AppendFile(ctx, bootcfg.ModulesPath, []byte(block)); err != nil {
		return err
	}
	rc.RequireReboot("kernel modules registered (" + strings.Join(s.missing, ", ") + ")")
	return nil
}

func (*groupsStep) Name() StepName      { return StepGroups }
func (*groupsStep) Description() string { return "Grant hardware access groups" }

// Check warns about groups the machine does not have; they are never created.
func (s *groupsStep) Check(ctx context.Context, rc *RunContext) (bool, error) {
	s.missing = nil
	user := rc.Settings.User
	for _, group := range rc.Settings.Groups {
		exists, err := rc.Machine.GroupExists(ctx, group)
		if err != nil {
			return false, err
		}
		if !exists {
			rc.Warn(fmt.Sprintf("Group %s does not exist on this machine; skipping", group))
			continue
		}
		member, err := rc.Machine.IsMember(ctx, user, group)
		if err != nil {
			return false, err
		}
		if !member {
			s.missing = append(s.missing, group)
		}
	}
	return len(s.missing) == 0, nil
}

func (s *groupsStep) Apply(ctx context.Context, rc *RunContext) error {
	for _, group := range s.missing {
		if err := rc.Machine.AddToGroup(ctx, rc.Settings.User, group); err != nil {
			return err
		}
	}
	rc.RequireReboot(fmt.Sprintf("%s added to groups %s", rc.Settings.User, strings.Join(s.missing, ", ")))
	return nil
}
