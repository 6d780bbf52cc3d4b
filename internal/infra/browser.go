package infra

import (
	"context"
	"fmt"
	"runtime"

	"github.com/eliteGoblin/focusd/focusmode/internal/domain"
)

// tabScripts holds the AppleScript used to list tab titles per browser.
var tabScripts = map[string]string{
	"Safari":        asLines(`tell application "Safari" to set tabTitles to name of every tab of every window`, "tabTitles"),
	"Google Chrome": asLines(`tell application "Google Chrome" to set tabTitles to title of every tab of every window`, "tabTitles"),
}

// AppleScriptTabSource lists tab titles of a scriptable browser.
type AppleScriptTabSource struct {
	browser string
	script  string
	cmd     CommandRunner
	apps    domain.AppManager
}

// NewTabSources returns a source for each configured browser this OS can query.
// Unknown browsers and non-darwin systems yield no sources.
func NewTabSources(browsers []string, apps domain.AppManager) []domain.TabSource {
	if runtime.GOOS != "darwin" {
		return nil
	}
	return newTabSourcesWithRunner(browsers, &RealCommandRunner{}, apps)
}

func newTabSourcesWithRunner(browsers []string, cmd CommandRunner, apps domain.AppManager) []domain.TabSource {
	var sources []domain.TabSource
	for _, b := range browsers {
		script, ok := tabScripts[b]
		if !ok {
			continue
		}
		sources = append(sources, &AppleScriptTabSource{browser: b, script: script, cmd: cmd, apps: apps})
	}
	return sources
}

// Browser returns the browser's display name.
func (s *AppleScriptTabSource) Browser() string {
	return s.browser
}

// Titles returns open tab titles. A browser that is not running has no tabs;
// asking it would launch it.
func (s *AppleScriptTabSource) Titles(ctx context.Context) ([]string, error) {
	if !s.isRunning(ctx) {
		return nil, nil
	}
	out, err := s.cmd.Output(ctx, "osascript", "-e", s.script)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s tabs: %w", s.browser, err)
	}
	return parseAppleScriptLines(string(out)), nil
}

func (s *AppleScriptTabSource) isRunning(ctx context.Context) bool {
	names, err := s.apps.ListForeground(ctx)
	if err != nil {
		return false
	}
	for _, n := range names {
		if n == s.browser {
			return true
		}
	}
	return false
}

var _ domain.TabSource = (*AppleScriptTabSource)(nil)
