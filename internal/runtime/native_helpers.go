// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"bytes"
	"io"
)

type (
	// executeOutput configures where command output is directed during execution.
	// It abstracts the difference between streaming (to the runner's writers) and
	// capturing (to bytes.Buffer) execution modes.
	executeOutput struct {
		stdout io.Writer
		stderr io.Writer
	}

	// capturedOutput holds the captured stdout and stderr buffers when capture mode is used.
	capturedOutput struct {
		stdout bytes.Buffer
		stderr bytes.Buffer
	}
)

// newStreamingOutput creates an output configuration that streams to the provided writers.
// Stderr is additionally teed into a small buffer so failures can quote it.
func newStreamingOutput(stdout, stderr io.Writer) (*executeOutput, *capturedOutput) {
	captured := &capturedOutput{}
	return &executeOutput{
		stdout: stdout,
		stderr: io.MultiWriter(stderr, &captured.stderr),
	}, captured
}

// newCapturingOutput creates an output configuration that captures to internal buffers.
// Returns the output configuration and the buffer holder to retrieve results from.
func newCapturingOutput() (*executeOutput, *capturedOutput) {
	captured := &capturedOutput{}
	return &executeOutput{
		stdout: &captured.stdout,
		stderr: &captured.stderr,
	}, captured
}

// newResult builds the Result of a finished command from the error of exec.Cmd.Run.
func newResult(err error, captured *capturedOutput, capture bool) *Result {
	result := &Result{}
	if captured != nil {
		if capture {
			result.Output = captured.stdout.String()
		}
		result.ErrOutput = captured.stderr.String()
	}
	result.ExitCode, result.Error = exitStatus(err)
	return result
}
