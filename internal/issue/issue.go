// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

type Id int

const (
	RunningAsRootId Id = iota + 1
	ProjectDirMissingId
	BootConfigNotFoundId
	ConfigLoadFailedId
	CommandFailedId
	BoardNotDetectedId
	PackageManagerBusyId
	ServiceUnitFailedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	extLinks []HttpLink  // external links that might be useful for the operator
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the issue Markdown with the given glamour style ("dark", "light", "notty", ...).
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range i.extLinks {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	runningAsRootIssue = &Issue{
		id: RunningAsRootId,
		mdMsg: `
# Do not run sensorprep as root!

sensorprep must run as the operator account that will own the sensor application.
It escalates with sudo for the steps that need it, and it grants *your* account
access to the gpio, i2c and spi groups.

## Things you can try:
- Log in as the regular user (usually ` + "`pi`" + `) and run it again:
~~~
$ sensorprep
~~~
- If you used sudo, drop it; sensorprep will ask for the password when needed.`,
	}

	projectDirMissingIssue = &Issue{
		id: ProjectDirMissingId,
		mdMsg: `
# Project directory not found!

The sensor application must be present before its environment can be built.
Nothing after this check was changed on the machine.

## Things you can try:
- Copy or clone the application into the expected location:
~~~
$ git clone <repository> ~/sensor-monitor
~~~
- Or point sensorprep at the existing checkout:
~~~
$ SENSORPREP_PROJECT_DIR=/path/to/app sensorprep
~~~`,
	}

	bootConfigNotFoundIssue = &Issue{
		id: BootConfigNotFoundId,
		mdMsg: `
# Boot configuration not found!

None of the configured boot configuration files exist. Raspberry Pi OS keeps
the file at /boot/firmware/config.txt (Bookworm and later) or /boot/config.txt.

## Things you can try:
- Check that the boot partition is mounted
- Set ` + "`hardware.boot_config_paths`" + ` in your config file to the right location`,
		extLinks: []HttpLink{"https://www.raspberrypi.com/documentation/computers/config_txt.html"},
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

The configuration file could not be parsed or failed validation.

## Things you can try:
- Show the effective configuration:
~~~
$ sensorprep config show
~~~
- Write a fresh default file and edit from there:
~~~
$ sensorprep config init
~~~`,
		extLinks: []HttpLink{"https://cuelang.org/docs/"},
	}

	commandFailedIssue = &Issue{
		id: CommandFailedId,
		mdMsg: `
# A system command failed!

A command run on your behalf exited with a non-zero status. The run stopped at
that step; earlier steps are kept, and running sensorprep again resumes from
where it stopped.

## Things you can try:
- Re-run with --verbose to see every command and its output
- Check network connectivity if the failure came from apt-get or pip`,
	}

	boardNotDetectedIssue = &Issue{
		id: BoardNotDetectedId,
		mdMsg: `
# No Raspberry Pi detected!

` + "`hardware.require_board`" + ` is enabled, but neither /proc/device-tree/model nor
/proc/cpuinfo identify a Raspberry Pi.

## Things you can try:
- Set FORCE_RASPBERRY_PI=true to treat this machine as a board
- Disable ` + "`hardware.require_board`" + ` for development machines`,
	}

	packageManagerBusyIssue = &Issue{
		id: PackageManagerBusyId,
		mdMsg: `
# The package manager is busy!

Another process holds the dpkg lock, usually an unattended upgrade on first boot.

## Things you can try:
- Wait a few minutes and run sensorprep again
- Check what holds the lock:
~~~
$ sudo fuser -v /var/lib/dpkg/lock-frontend
~~~`,
	}

	serviceUnitFailedIssue = &Issue{
		id: ServiceUnitFailedId,
		mdMsg: `
# Failed to register the service unit!

The unit file was written but systemd refused to enable it.

## Things you can try:
- Inspect the unit:
~~~
$ systemctl cat sensor-monitor
$ sudo systemd-analyze verify /etc/systemd/system/sensor-monitor.service
~~~
- Set ` + "`service.install: false`" + ` to skip the service and use the launcher only`,
		extLinks: []HttpLink{"https://www.freedesktop.org/software/systemd/man/systemd.service.html"},
	}

	issues = map[Id]*Issue{
		runningAsRootIssue.Id():      runningAsRootIssue,
		projectDirMissingIssue.Id():  projectDirMissingIssue,
		bootConfigNotFoundIssue.Id(): bootConfigNotFoundIssue,
		configLoadFailedIssue.Id():   configLoadFailedIssue,
		commandFailedIssue.Id():      commandFailedIssue,
		boardNotDetectedIssue.Id():   boardNotDetectedIssue,
		packageManagerBusyIssue.Id(): packageManagerBusyIssue,
		serviceUnitFailedIssue.Id():  serviceUnitFailedIssue,
	}
)

// Values returns every catalog entry ordered by id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		out = append(out, i)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
