// SPDX-License-Identifier: MPL-2.0

// Command sensorprep prepares a Raspberry Pi to run the sensor monitoring application.
package main

import cmd "sensorprep/cmd/sensorprep"

func main() {
	cmd.Execute()
}
