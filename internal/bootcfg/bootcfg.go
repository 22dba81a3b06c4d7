// SPDX-License-Identifier: MPL-2.0

package bootcfg

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrNotFound is returned by Locate when none of the candidate paths exist.
	ErrNotFound = errors.New("boot configuration not found")

	// DefaultBootConfigPaths lists boot configuration locations in lookup order.
	// Newer Raspberry Pi OS images moved the file under /boot/firmware.
	DefaultBootConfigPaths = []string{"/boot/firmware/config.txt", "/boot/config.txt"}
)

const (
	// ModulesPath is the kernel modules list loaded at boot.
	ModulesPath = "/etc/modules"

	commentPrefix = "#"
	overlayKey    = "dtoverlay"
)

type (
	// File is a parsed line-oriented configuration file.
	File struct {
		lines []string
	}

	// Stater reports whether a path exists.
	Stater interface {
		Exists(path string) bool
	}

	// NotFoundError lists the candidate paths that were searched.
	NotFoundError struct {
		Candidates []string
	}
)

// Parse splits raw file content into lines.
func Parse(content string) *File {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.TrimSuffix(content, "\n")
	if content == "" {
		return &File{}
	}
	return &File{lines: strings.Split(content, "\n")}
}

// Lines returns a copy of the file's lines.
func (f *File) Lines() []string {
	return append([]string(nil), f.lines...)
}

// Has reports whether an active (non-comment) line enables directive. A line
// enables it when a whitespace-separated entry equals it, or when the entry sets the
// same key and its comma-separated values include the directive's value. Overlay
// parameters follow the overlay name, so dtoverlay=w1-gpio,gpiopin=4 enables
// dtoverlay=w1-gpio, and dtparam=audio=on,spi=on enables dtparam=spi=on.
func (f *File) Has(directive string) bool {
	want := strings.TrimSpace(directive)
	if want == "" {
		return true
	}
	return f.anyEntry(func(entry string) bool { return enables(entry, want) })
}

// HasModule reports whether a kernel module is listed. The kernel treats '-' and
// '_' in module names as the same character, so w1_gpio lists w1-gpio.
func (f *File) HasModule(name string) bool {
	want := moduleName(name)
	if want == "" {
		return true
	}
	return f.anyEntry(func(entry string) bool { return moduleName(entry) == want })
}

// Missing returns the directives that are not present, preserving their order and
// dropping duplicates within the input.
func (f *File) Missing(directives []string) []string {
	return missing(directives, strings.TrimSpace, f.Has)
}

// MissingModules is Missing for kernel module names.
func (f *File) MissingModules(names []string) []string {
	return missing(names, moduleName, f.HasModule)
}

func (f *File) anyEntry(match func(entry string) bool) bool {
	for _, line := range f.lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, commentPrefix) {
			continue
		}
		for _, entry := range strings.Fields(line) {
			if match(entry) {
				return true
			}
		}
	}
	return false
}

func enables(entry, want string) bool {
	if entry == want {
		return true
	}
	key, value, ok := strings.Cut(want, "=")
	if !ok {
		return false
	}
	entryKey, entryValue, ok := strings.Cut(entry, "=")
	if !ok || entryKey != key {
		return false
	}
	values := strings.Split(entryValue, ",")
	if key == overlayKey {
		return values[0] == value
	}
	return slices.Contains(values, value)
}

func moduleName(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), "-", "_")
}

func missing(entries []string, key func(string) string, has func(string) bool) []string {
	var out []string
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		k := key(e)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		if !has(e) {
			out = append(out, strings.TrimSpace(e))
		}
	}
	return out
}

// AppendBlock renders the text to append to a file whose current content is existing:
// a separating newline when needed, an optional comment line, then one line per entry.
func AppendBlock(existing, comment string, lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	var sb strings.Builder
	if existing != "" && !strings.HasSuffix(existing, "\n") {
		sb.WriteString("\n")
	}
	if comment != "" {
		sb.WriteString("\n")
		sb.WriteString(commentPrefix)
		sb.WriteString(" ")
		sb.WriteString(comment)
		sb.WriteString("\n")
	}
	for _, line := range lines {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

// Locate returns the first candidate path that exists.
func Locate(fs Stater, candidates []string) (string, error) {
	for _, path := range candidates {
		if fs.Exists(path) {
			return path, nil
		}
	}
	return "", &NotFoundError{Candidates: append([]string(nil), candidates...)}
}

// Error implements the error interface for NotFoundError.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("boot configuration not found (searched: %s)", strings.Join(e.Candidates, ", "))
}

// Unwrap returns ErrNotFound for errors.Is() compatibility.
func (e *NotFoundError) Unwrap() error { return ErrNotFound }
