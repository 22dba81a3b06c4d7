// SPDX-License-Identifier: MPL-2.0

package provision

type (
	// Reporter receives the operator-facing status lines of a run.
	Reporter interface {
		Info(msg string)
		Success(msg string)
		Warn(msg string)
		Error(msg string)
	}

	nopReporter struct{}
)

// NopReporter discards every status line.
func NopReporter() Reporter { return nopReporter{} }

func (nopReporter) Info(string)    {}
func (nopReporter) Success(string) {}
func (nopReporter) Warn(string)    {}
func (nopReporter) Error(string)   {}
