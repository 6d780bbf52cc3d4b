package infra

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/eliteGoblin/focusd/focusmode/internal/domain"
)

var foregroundAppsScript = asLines(
	`tell application "System Events" to set appNames to name of every application process whose background only is false`,
	"appNames")

// NewAppManager returns the foreground app manager for this OS.
func NewAppManager() domain.AppManager {
	if runtime.GOOS == "darwin" {
		return NewOsascriptAppManager(&RealCommandRunner{})
	}
	return NewDesktopAppManager()
}

// OsascriptAppManager lists and quits macOS applications through System Events.
type OsascriptAppManager struct {
	cmd CommandRunner
}

// NewOsascriptAppManager creates an app manager driving osascript through cmd.
func NewOsascriptAppManager(cmd CommandRunner) *OsascriptAppManager {
	return &OsascriptAppManager{cmd: cmd}
}

// ListForeground returns display names of running foreground apps.
func (m *OsascriptAppManager) ListForeground(ctx context.Context) ([]string, error) {
	out, err := m.cmd.Output(ctx, "osascript", "-e", foregroundAppsScript)
	if err != nil {
		return nil, fmt.Errorf("failed to list foreground apps: %w", err)
	}
	return parseAppleScriptLines(string(out)), nil
}

// Quit asks the app to quit; the app may prompt the user or refuse.
func (m *OsascriptAppManager) Quit(ctx context.Context, name string) error {
	script := fmt.Sprintf(`tell application "%s" to quit`, escapeAppleScript(name))
	if err := m.cmd.Run(ctx, nil, "osascript", "-e", script); err != nil {
		return fmt.Errorf("failed to quit %s: %w", name, err)
	}
	return nil
}

// asLines appends the statements that return list variable v one item per
// line. AppleScript's default list rendering joins with ", ", which is
// ambiguous for names and titles containing commas.
func asLines(script, v string) string {
	return script + "\nset AppleScript's text item delimiters to linefeed\nreturn " + v + " as text"
}

// parseAppleScriptLines splits the output of an asLines script.
func parseAppleScriptLines(out string) []string {
	var names []string
	for _, part := range strings.Split(out, "\n") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// escapeAppleScript escapes a string for use inside an AppleScript double-quoted string.
func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	return s
}

// DesktopAppManager treats the current user's clients of the window manager
// (the _NET_CLIENT_LIST reported by wmctrl) as foreground apps. Background
// processes that merely inherit DISPLAY own no window and are never touched.
type DesktopAppManager struct {
	cmd       CommandRunner
	uid       int32
	lookup    func(ctx context.Context, pid int32) (name string, uid int32, err error)
	terminate func(ctx context.Context, pid int32) error
}

// NewDesktopAppManager creates an app manager for X11/Wayland desktops.
func NewDesktopAppManager() *DesktopAppManager {
	return NewDesktopAppManagerWithDeps(&RealCommandRunner{}, int32(os.Getuid()), lookupProcess, terminateProcess)
}

// NewDesktopAppManagerWithDeps creates an app manager with injected dependencies.
func NewDesktopAppManagerWithDeps(
	cmd CommandRunner,
	uid int32,
	lookup func(ctx context.Context, pid int32) (string, int32, error),
	terminate func(ctx context.Context, pid int32) error,
) *DesktopAppManager {
	return &DesktopAppManager{cmd: cmd, uid: uid, lookup: lookup, terminate: terminate}
}

// desktopWindow is a window-owning process of the current user.
type desktopWindow struct {
	pid  int32
	name string
}

// ListForeground returns distinct names of processes owning a window.
func (m *DesktopAppManager) ListForeground(ctx context.Context) ([]string, error) {
	windows, err := m.windows(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var names []string
	for _, w := range windows {
		if _, ok := seen[w.name]; ok {
			continue
		}
		seen[w.name] = struct{}{}
		names = append(names, w.name)
	}
	return names, nil
}

// Quit sends SIGTERM to every window-owning process whose name equals name
// (case-insensitive).
func (m *DesktopAppManager) Quit(ctx context.Context, name string) error {
	windows, err := m.windows(ctx)
	if err != nil {
		return err
	}

	var lastErr error
	for _, w := range windows {
		if !strings.EqualFold(w.name, name) {
			continue
		}
		if err := m.terminate(ctx, w.pid); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// windows resolves the PIDs of managed windows to the current user's processes,
// one entry per PID.
func (m *DesktopAppManager) windows(ctx context.Context) ([]desktopWindow, error) {
	out, err := m.cmd.Output(ctx, "wmctrl", "-lp")
	if err != nil {
		return nil, fmt.Errorf("failed to list windows: %w", err)
	}

	seen := make(map[int32]struct{})
	var windows []desktopWindow
	for _, pid := range parseWmctrlPIDs(string(out)) {
		if _, ok := seen[pid]; ok {
			continue
		}
		seen[pid] = struct{}{}

		name, uid, err := m.lookup(ctx, pid)
		if err != nil || name == "" || uid != m.uid {
			continue
		}
		windows = append(windows, desktopWindow{pid: pid, name: name})
	}
	return windows, nil
}

// parseWmctrlPIDs reads the PID column of `wmctrl -lp` output:
//
//	0x03a00003  0 12345  host Title
//
// Windows without _NET_WM_PID report 0 and are skipped.
func parseWmctrlPIDs(out string) []int32 {
	var pids []int32
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		pid, err := strconv.ParseInt(fields[2], 10, 32)
		if err != nil || pid <= 0 {
			continue
		}
		pids = append(pids, int32(pid))
	}
	return pids
}

func lookupProcess(ctx context.Context, pid int32) (string, int32, error) {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return "", 0, err
	}
	uids, err := p.UidsWithContext(ctx)
	if err != nil {
		return "", 0, err
	}
	if len(uids) == 0 {
		return "", 0, fmt.Errorf("no uid for pid %d", pid)
	}
	name, err := p.NameWithContext(ctx)
	if err != nil {
		return "", 0, err
	}
	return name, uids[0], nil
}

func terminateProcess(ctx context.Context, pid int32) error {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return err
	}
	return p.TerminateWithContext(ctx)
}

var (
	_ domain.AppManager = (*OsascriptAppManager)(nil)
	_ domain.AppManager = (*DesktopAppManager)(nil)
)
