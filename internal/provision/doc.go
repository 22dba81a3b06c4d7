// SPDX-License-Identifier: MPL-2.0

// Package provision brings a board to the state the sensor application needs.
//
// A Provisioner runs an ordered list of Steps against a machine.Machine. Each step
// checks whether its fact already holds and only mutates the machine when it does
// not, so running the whole sequence again is always safe. The first failing step
// stops the run; nothing is rolled back and re-running resumes the work.
package provision
