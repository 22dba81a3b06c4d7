// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"sensorprep/internal/board"
	"sensorprep/internal/bootcfg"
	"sensorprep/internal/launcher"
	"sensorprep/internal/machine"
	"sensorprep/internal/provision"
)

// Doctor check statuses.
const (
	checkPass checkStatus = iota
	checkWarn
	checkFail
)

type (
	checkStatus int

	// doctorCheck is one line of the doctor report.
	doctorCheck struct {
		name   string
		status checkStatus
		detail string
	}

	doctor struct {
		machine  machine.Machine
		settings provision.Settings
		getenv   func(string) string
		checks   []doctorCheck
	}
)

// newDoctorCommand creates `sensorprep doctor`.
func newDoctorCommand(app *App, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the board, the sensors and the provisioned state",
		Long: `Check the board, the sensors and the provisioned state without changing anything.

doctor detects the board, reads every DS18B20 1-Wire sensor, verifies the boot
configuration, kernel modules, group membership, virtual environment and
service, and dry-runs the launcher with stubbed commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd.Context(), app, flags)
		},
	}
}

func runDoctor(ctx context.Context, app *App, flags *rootFlags) error {
	cfg, _, err := app.loadConfig(ctx, flags)
	if err != nil {
		return err
	}
	m, err := app.NewMachine(app.stdout, app.stderr)
	if err != nil {
		return &ExitError{Code: 1, Err: fmt.Errorf("initialize machine backend: %w", err)}
	}

	d := &doctor{machine: m, settings: provision.NewSettings(cfg, m), getenv: app.Getenv}
	d.checkBoard()
	d.checkSensors()
	d.checkBootConfig()
	d.checkKernelModules()
	d.checkGroups(ctx)
	d.checkVenv()
	d.checkDependencies()
	d.checkService(ctx)
	d.checkLauncher(ctx)

	fmt.Fprintln(app.stdout, TitleStyle.Render("sensorprep doctor"))
	failed := d.print(app.stdout)
	if failed > 0 {
		return &ExitError{Code: 1, Err: fmt.Errorf("%d check(s) failed", failed)}
	}
	return nil
}

func (d *doctor) add(name string, status checkStatus, format string, args ...any) {
	d.checks = append(d.checks, doctorCheck{name: name, status: status, detail: fmt.Sprintf(format, args...)})
}

func (d *doctor) print(w io.Writer) (failed int) {
	for _, c := range d.checks {
		style, glyph := SuccessStyle, GlyphSuccess
		switch c.status {
		case checkWarn:
			style, glyph = WarningStyle, GlyphWarning
		case checkFail:
			style, glyph = ErrorStyle, GlyphError
			failed++
		}
		fmt.Fprintf(w, "%s %s %s\n", style.Render(glyph), CmdStyle.Render(fmt.Sprintf("%-15s", c.name)), c.detail)
	}
	return failed
}

func (d *doctor) checkBoard() {
	info := board.Detect(d.machine, d.getenv)
	switch {
	case info.Source == board.SourceForced:
		d.add("board", checkWarn, "forced by %s", board.ForceEnv)
	case info.RaspberryPi && info.Model != "":
		d.add("board", checkPass, "%s", info.Model)
	case info.RaspberryPi:
		d.add("board", checkPass, "Raspberry Pi (from %s)", info.Source)
	default:
		d.add("board", checkWarn, "not a Raspberry Pi")
	}
}

func (d *doctor) checkSensors() {
	sensors, err := board.Sensors(d.machine)
	if err != nil {
		d.add("sensors", checkFail, "%v", err)
		return
	}
	if len(sensors) == 0 {
		d.add("sensors", checkWarn, "no DS18B20 sensors on the 1-Wire bus")
		return
	}
	for _, s := range sensors {
		celsius, err := s.ReadCelsius(d.machine)
		if err != nil {
			d.add("sensor", checkFail, "%s: %v", s.ID, err)
			continue
		}
		d.add("sensor", checkPass, "%s: %.2f°C", s.ID, celsius)
	}
}

func (d *doctor) checkBootConfig() {
	path, err := bootcfg.Locate(d.machine, d.settings.BootConfigPaths)
	if err != nil {
		d.add("boot config", checkFail, "%v", err)
		return
	}
	data, err := d.machine.ReadFile(path)
	if err != nil {
		d.add("boot config", checkFail, "%v", err)
		return
	}
	if missing := bootcfg.Parse(string(data)).Missing(d.settings.Directives); len(missing) > 0 {
		d.add("boot config", checkFail, "%s is missing %s", path, strings.Join(missing, ", "))
		return
	}
	d.add("boot config", checkPass, "%s enables SPI, I2C and 1-Wire", path)
}

func (d *doctor) checkKernelModules() {
	// A missing file lists no modules.
	data, _ := d.machine.ReadFile(bootcfg.ModulesPath)
	if missing := bootcfg.Parse(string(data)).MissingModules(d.settings.KernelModules); len(missing) > 0 {
		d.add("kernel modules", checkFail, "%s is missing %s", bootcfg.ModulesPath, strings.Join(missing, ", "))
		return
	}
	d.add("kernel modules", checkPass, "%s", strings.Join(d.settings.KernelModules, ", "))
}

func (d *doctor) checkGroups(ctx context.Context) {
	var missing, absent []string
	for _, group := range d.settings.Groups {
		exists, err := d.machine.GroupExists(ctx, group)
		if err != nil {
			d.add("groups", checkFail, "%v", err)
			return
		}
		if !exists {
			absent = append(absent, group)
			continue
		}
		member, err := d.machine.IsMember(ctx, d.settings.User, group)
		if err != nil {
			d.add("groups", checkFail, "%v", err)
			return
		}
		if !member {
			missing = append(missing, group)
		}
	}
	switch {
	case len(missing) > 0:
		d.add("groups", checkFail, "%s is not in %s", d.settings.User, strings.Join(missing, ", "))
	case len(absent) > 0:
		d.add("groups", checkWarn, "groups not on this machine: %s", strings.Join(absent, ", "))
	default:
		d.add("groups", checkPass, "%s is in %s", d.settings.User, strings.Join(d.settings.Groups, ", "))
	}
}

func (d *doctor) checkVenv() {
	if !d.machine.VenvExists(d.settings.VenvDir) {
		d.add("venv", checkFail, "%s does not exist", d.settings.VenvDir)
		return
	}
	d.add("venv", checkPass, "%s", d.settings.VenvDir)
}

func (d *doctor) checkDependencies() {
	plan, err := provision.PlanInstall(d.machine, d.settings)
	if err != nil {
		d.add("dependencies", checkFail, "%v", err)
		return
	}
	stamp, err := d.machine.ReadFile(d.settings.StampPath())
	if err != nil || strings.TrimSpace(string(stamp)) != plan.Digest {
		d.add("dependencies", checkFail, "libraries from %s are not installed", plan.Source)
		return
	}
	d.add("dependencies", checkPass, "installed from %s", plan.Source)
}

func (d *doctor) checkService(ctx context.Context) {
	if !d.settings.InstallService {
		d.add("service", checkPass, "not managed (service.install = false)")
		return
	}
	name := d.settings.Unit.FileName()
	enabled, err := d.machine.Enabled(ctx, name)
	switch {
	case err != nil:
		d.add("service", checkFail, "%v", err)
	case !enabled:
		d.add("service", checkFail, "%s is not enabled", name)
	default:
		d.add("service", checkPass, "%s is enabled", name)
	}
}

// checkLauncher interprets the launcher with every external command stubbed.
func (d *doctor) checkLauncher(ctx context.Context) {
	path := d.settings.LauncherPath
	script, err := d.machine.ReadFile(path)
	if err != nil {
		d.add("launcher", checkFail, "%s does not exist", path)
		return
	}
	mode, err := d.machine.Mode(path)
	if err != nil || mode.Perm() != launcher.Mode {
		d.add("launcher", checkFail, "%s is not executable", path)
		return
	}

	env := []string{
		"HOME=" + d.settings.Home,
		"PATH=" + d.getenv("PATH"),
		board.ForceEnv + "=" + d.getenv(board.ForceEnv),
	}
	trace := launcher.Run(ctx, script, env, func(args []string) (string, error) {
		if len(args) > 1 && args[0] == "python" && args[1] == "--version" {
			return "Python (dry run)\n", nil
		}
		return "", nil
	})
	if !trace.ExitCode.IsSuccess() {
		d.add("launcher", checkFail, "dry run exited with %d", trace.ExitCode)
		return
	}
	want := []string{"python", d.settings.Entrypoint}
	if n := len(trace.Calls); n == 0 || !slices.Equal(trace.Calls[n-1].Args, want) {
		d.add("launcher", checkFail, "dry run did not start %s", d.settings.Entrypoint)
		return
	}
	d.add("launcher", checkPass, "%s starts %s", path, d.settings.Entrypoint)
}
