package fixtures

import (
	"context"
	"errors"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/eliteGoblin/focusd/focusmode/internal/domain"
)

// FakeDesktop is an in-memory set of running apps. Quit removes the app,
// like a real app honoring the request.
type FakeDesktop struct {
	mu      sync.Mutex
	running map[string]bool
	quits   []string
	sticky  map[string]bool
}

// NewFakeDesktop starts with apps running.
func NewFakeDesktop(apps ...string) *FakeDesktop {
	d := &FakeDesktop{running: make(map[string]bool), sticky: make(map[string]bool)}
	for _, a := range apps {
		d.running[a] = true
	}
	return d
}

// Launch starts an app (again).
func (d *FakeDesktop) Launch(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running[name] = true
}

// Ignore makes an app refuse quit requests.
func (d *FakeDesktop) Ignore(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sticky[strings.ToLower(name)] = true
}

// ListForeground implements domain.AppManager.
func (d *FakeDesktop) ListForeground(ctx context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := make([]string, 0, len(d.running))
	for name := range d.running {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Quit implements domain.AppManager.
func (d *FakeDesktop) Quit(ctx context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.quits = append(d.quits, name)
	if d.sticky[strings.ToLower(name)] {
		return errors.New("app refused to quit")
	}
	for running := range d.running {
		if strings.EqualFold(running, name) {
			delete(d.running, running)
		}
	}
	return nil
}

// Running reports whether an app is still running.
func (d *FakeDesktop) Running(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running[name]
}

// Quits returns every quit request received so far.
func (d *FakeDesktop) Quits() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.quits...)
}

// FileRunner is a PrivilegedRunner that performs "tee <path>" directly and
// accepts every other command, so hosts file blocking can run unprivileged.
// Denied makes every call fail with ErrInsufficientPrivilege.
type FileRunner struct {
	mu     sync.Mutex
	Denied bool
	calls  []string
}

// Run implements domain.PrivilegedRunner.
func (r *FileRunner) Run(ctx context.Context, stdin []byte, name string, args ...string) error {
	r.mu.Lock()
	r.calls = append(r.calls, strings.Join(append([]string{name}, args...), " "))
	denied := r.Denied
	r.mu.Unlock()

	if denied {
		return domain.ErrInsufficientPrivilege
	}
	if name == "tee" && len(args) == 1 {
		return os.WriteFile(args[0], stdin, 0644)
	}
	return nil
}

// IsElevated implements domain.PrivilegedRunner.
func (r *FileRunner) IsElevated() bool { return false }

// Calls returns the command lines run so far.
func (r *FileRunner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

var (
	_ domain.AppManager       = (*FakeDesktop)(nil)
	_ domain.PrivilegedRunner = (*FileRunner)(nil)
)
