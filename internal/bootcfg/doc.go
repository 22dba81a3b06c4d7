// SPDX-License-Identifier: MPL-2.0

// Package bootcfg reads line-oriented configuration files such as the firmware boot
// configuration (config.txt) and /etc/modules.
//
// The files are only ever appended to. Presence checks compare trimmed, non-comment
// lines, so a directive that an operator already added by hand is never duplicated.
package bootcfg
