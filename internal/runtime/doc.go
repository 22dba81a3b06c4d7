// SPDX-License-Identifier: MPL-2.0

// Package runtime provides command execution for sensorprep.
//
// Two runners are available:
//   - native: executes external commands with os/exec, optionally escalated through sudo
//   - virtual: interprets shell scripts with the embedded mvdan/sh interpreter
//
// The native runner is what the machine backend uses to drive apt-get, usermod, pip and
// systemctl. The virtual runner is used to dry-run generated shell scripts with
// intercepted exec handlers, so a script can be exercised without touching the host.
//
// Every failure of an external command is reported as a *CommandError carrying the
// command's own exit status, which the CLI propagates unchanged.
package runtime
