// SPDX-License-Identifier: MPL-2.0

// Package testutil provides shared test doubles and helpers: a scripted command
// Runner, a FakeClock, working-directory helpers, and a semaphore that bounds
// concurrent container tests.
package testutil
