// SPDX-License-Identifier: MPL-2.0

// Package machinetest provides an in-memory machine.Machine for tests.
package machinetest

import (
	"context"
	"fmt"
	"io/fs"
	"maps"
	"path"
	"slices"
	"sort"
	"strings"
	"sync"

	"sensorprep/internal/machine"
)

// Compile-time check.
var _ machine.Machine = (*Fake)(nil)

type (
	// Fake is an in-memory machine. Every mutation is appended to a log that
	// tests inspect with Mutations; FailOn injects errors by operation prefix.
	Fake struct {
		mu sync.Mutex

		root     bool
		user     string
		home     string
		files    map[string]file
		dirs     map[string]bool
		packages map[string]bool
		groups   map[string]map[string]bool
		units    map[string]bool
		pip      map[string][][]string
		rebooted bool

		mutations []string
		failures  []failure
	}

	file struct {
		data []byte
		mode fs.FileMode
	}

	failure struct {
		prefix string
		err    error
	}
)

// New creates a fake machine for an unprivileged operator named user.
// The home directory exists; nothing else does.
func New(user, home string) *Fake {
	f := &Fake{
		user:     user,
		home:     home,
		files:    map[string]file{},
		dirs:     map[string]bool{"/": true},
		packages: map[string]bool{},
		groups:   map[string]map[string]bool{},
		units:    map[string]bool{},
		pip:      map[string][][]string{},
	}
	f.mkdirs(home)
	return f
}

// SetRoot makes the fake report effective uid 0.
func (f *Fake) SetRoot(root bool) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.root = root
	return f
}

// AddFile seeds a file without recording a mutation.
func (f *Fake) AddFile(p, content string, mode fs.FileMode) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mkdirs(path.Dir(p))
	f.files[p] = file{data: []byte(content), mode: mode}
	return f
}

// AddDir seeds a directory without recording a mutation.
func (f *Fake) AddDir(p string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mkdirs(p)
	return f
}

// AddPackages marks packages as installed.
func (f *Fake) AddPackages(names ...string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range names {
		f.packages[n] = true
	}
	return f
}

// AddGroup creates a group with the given members.
func (f *Fake) AddGroup(group string, members ...string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := map[string]bool{}
	for _, u := range members {
		m[u] = true
	}
	f.groups[group] = m
	return f
}

// FailOn makes every operation whose mutation entry starts with prefix fail with err.
func (f *Fake) FailOn(prefix string, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, failure{prefix: prefix, err: err})
	return f
}

// Mutations returns the mutation log, e.g. "apt-get install git", "append /boot/config.txt".
func (f *Fake) Mutations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.mutations)
}

// File returns the content of p and whether it exists.
func (f *Fake) File(p string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fl, ok := f.files[p]
	return string(fl.data), ok
}

// PipInstalls returns the argument lists passed to pip install for venvDir.
func (f *Fake) PipInstalls(venvDir string) [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.pip[venvDir])
}

// InstalledPackages returns the installed packages sorted by name.
func (f *Fake) InstalledPackages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Sorted(maps.Keys(f.packages))
}

// Members returns the members of group sorted by name.
func (f *Fake) Members(group string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Sorted(maps.Keys(f.groups[group]))
}

// UnitEnabled reports whether unit was enabled.
func (f *Fake) UnitEnabled(unit string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.units[unit]
}

// Rebooted reports whether Reboot was called successfully.
func (f *Fake) Rebooted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rebooted
}

// mutate records op and returns the injected failure, if any. Must be called with mu held.
func (f *Fake) mutate(op string) error {
	f.mutations = append(f.mutations, op)
	for _, fl := range f.failures {
		if strings.HasPrefix(op, fl.prefix) {
			return fl.err
		}
	}
	return nil
}

// query returns the injected failure for a read-only op. Must be called with mu held.
func (f *Fake) query(op string) error {
	for _, fl := range f.failures {
		if strings.HasPrefix(op, fl.prefix) {
			return fl.err
		}
	}
	return nil
}

// mkdirs creates p and its parents. Must be called with mu held.
func (f *Fake) mkdirs(p string) {
	for p = path.Clean(p); ; p = path.Dir(p) {
		f.dirs[p] = true
		if p == "/" || p == "." {
			return
		}
	}
}

func (f *Fake) Privileged() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.root
}

func (f *Fake) Username() string { return f.user }

func (f *Fake) HomeDir() string { return f.home }

func (f *Fake) Exists(p string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = path.Clean(p)
	_, isFile := f.files[p]
	return isFile || f.dirs[p]
}

func (f *Fake) IsDir(p string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dirs[path.Clean(p)]
}

func (f *Fake) ReadFile(p string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fl, ok := f.files[path.Clean(p)]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: p, Err: fs.ErrNotExist}
	}
	return slices.Clone(fl.data), nil
}

func (f *Fake) WriteFile(_ context.Context, p string, data []byte, mode fs.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = path.Clean(p)
	if err := f.mutate("write " + p); err != nil {
		return err
	}
	if !f.dirs[path.Dir(p)] {
		return &fs.PathError{Op: "open", Path: p, Err: fs.ErrNotExist}
	}
	f.files[p] = file{data: slices.Clone(data), mode: mode.Perm()}
	return nil
}

func (f *Fake) AppendFile(_ context.Context, p string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = path.Clean(p)
	if err := f.mutate("append " + p); err != nil {
		return err
	}
	fl, ok := f.files[p]
	if !ok {
		if !f.dirs[path.Dir(p)] {
			return &fs.PathError{Op: "open", Path: p, Err: fs.ErrNotExist}
		}
		fl.mode = 0o644
	}
	fl.data = append(fl.data, data...)
	f.files[p] = fl
	return nil
}

func (f *Fake) MkdirAll(p string, _ fs.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = path.Clean(p)
	if err := f.mutate("mkdir " + p); err != nil {
		return err
	}
	f.mkdirs(p)
	return nil
}

func (f *Fake) Mode(p string) (fs.FileMode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = path.Clean(p)
	if fl, ok := f.files[p]; ok {
		return fl.mode, nil
	}
	if f.dirs[p] {
		return fs.ModeDir | 0o755, nil
	}
	return 0, &fs.PathError{Op: "stat", Path: p, Err: fs.ErrNotExist}
}

func (f *Fake) Glob(pattern string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matches []string
	candidates := slices.Collect(maps.Keys(f.dirs))
	candidates = append(candidates, slices.Collect(maps.Keys(f.files))...)
	for _, c := range candidates {
		ok, err := path.Match(pattern, c)
		if err != nil {
			return nil, err
		}
		if ok {
			matches = append(matches, c)
		}
	}
	sort.Strings(matches)
	return matches, nil
}

func (f *Fake) Installed(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.query("dpkg-query " + name); err != nil {
		return false, err
	}
	return f.packages[name], nil
}

func (f *Fake) Refresh(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mutate("apt-get update")
}

func (f *Fake) Upgrade(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mutate("apt-get upgrade")
}

func (f *Fake) Install(_ context.Context, names ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.mutate("apt-get install " + strings.Join(names, " ")); err != nil {
		return err
	}
	for _, n := range names {
		f.packages[n] = true
	}
	return nil
}

func (f *Fake) GroupExists(_ context.Context, group string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.query("getent " + group); err != nil {
		return false, err
	}
	_, ok := f.groups[group]
	return ok, nil
}

func (f *Fake) IsMember(_ context.Context, user, group string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.groups[group][user], nil
}

func (f *Fake) AddToGroup(_ context.Context, user, group string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.mutate(fmt.Sprintf("usermod %s %s", group, user)); err != nil {
		return err
	}
	members, ok := f.groups[group]
	if !ok {
		return fmt.Errorf("usermod: group '%s' does not exist", group)
	}
	members[user] = true
	return nil
}

func (f *Fake) VenvExists(dir string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[path.Join(path.Clean(dir), "pyvenv.cfg")]
	return ok
}

// CreateVenv lays out pyvenv.cfg and bin/ like python -m venv.
func (f *Fake) CreateVenv(_ context.Context, interpreter, dir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	dir = path.Clean(dir)
	if err := f.mutate("venv " + dir); err != nil {
		return err
	}
	f.mkdirs(path.Join(dir, "bin"))
	f.files[path.Join(dir, "pyvenv.cfg")] = file{data: []byte("home = /usr/bin\ncommand = " + interpreter + " -m venv " + dir + "\n"), mode: 0o644}
	f.files[path.Join(dir, "bin", "activate")] = file{data: []byte("# activate\n"), mode: 0o644}
	f.files[path.Join(dir, "bin", "python")] = file{mode: 0o755}
	return nil
}

func (f *Fake) PipInstall(_ context.Context, venvDir string, args ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	venvDir = path.Clean(venvDir)
	if err := f.mutate("pip install " + strings.Join(args, " ")); err != nil {
		return err
	}
	if _, ok := f.files[path.Join(venvDir, "pyvenv.cfg")]; !ok {
		return fmt.Errorf("%s: no such virtual environment", venvDir)
	}
	f.pip[venvDir] = append(f.pip[venvDir], slices.Clone(args))
	return nil
}

func (f *Fake) Enabled(_ context.Context, unit string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.query("is-enabled " + unit); err != nil {
		return false, err
	}
	return f.units[unit], nil
}

func (f *Fake) Enable(_ context.Context, unit string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.mutate("systemctl enable " + unit); err != nil {
		return err
	}
	f.units[unit] = true
	return nil
}

func (f *Fake) Reboot(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.mutate("reboot"); err != nil {
		return err
	}
	f.rebooted = true
	return nil
}
