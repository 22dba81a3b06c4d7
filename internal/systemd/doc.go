// SPDX-License-Identifier: MPL-2.0

// Package systemd renders the sensor service unit and talks to the service manager.
//
// Unit files are produced with go-systemd's unit serializer. Read-only queries go over
// D-Bus when the system bus is reachable and fall back to systemctl otherwise; changes
// (daemon-reload, enable, reboot fallback) go through sudo systemctl.
package systemd
