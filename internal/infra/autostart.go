package infra

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

// AutostartLabel identifies the focusmode supervisor service.
const AutostartLabel = "io.focusmode.supervisor"

// LaunchAgent plist (runs as user). KeepAlive on crash keeps the supervisor
// the durable authority; a clean exit after deactivate is not restarted.
const launchAgentTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>

    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
        <string>daemon</string>
        <string>--data-dir</string>
        <string>{{.DataDir}}</string>
    </array>

    <key>RunAtLoad</key>
    <true/>

    <key>KeepAlive</key>
    <dict>
        <key>SuccessfulExit</key>
        <false/>
    </dict>

    <key>StandardErrorPath</key>
    <string>{{.ErrorLogPath}}</string>

    <key>ProcessType</key>
    <string>Background</string>

    <key>ThrottleInterval</key>
    <integer>10</integer>
</dict>
</plist>
`

// systemd user unit.
const systemdUnitTemplate = `[Unit]
Description=focusmode supervisor
After=default.target

[Service]
Type=simple
ExecStart="{{.ExecutablePath}}" daemon --data-dir "{{.DataDir}}"
Restart=on-failure
RestartSec=10

[Install]
WantedBy=default.target
`

type serviceConfig struct {
	Label          string
	ExecutablePath string
	DataDir        string
	ErrorLogPath   string
}

// AutostartManager installs the supervisor as a login service: a LaunchAgent
// on macOS, a systemd user unit elsewhere. A supervisor started at login
// resumes whatever mode was active.
type AutostartManager struct {
	goos        string
	dataDir     string
	servicePath string
	cmd         CommandRunner
}

// NewAutostartManager creates a manager for the current platform and user.
func NewAutostartManager(paths *ExecModeConfig, goos string) *AutostartManager {
	return NewAutostartManagerWithHome(paths, goos, GetRealUserHome(), &RealCommandRunner{})
}

// NewAutostartManagerWithHome creates a manager with a custom home directory (for testing).
func NewAutostartManagerWithHome(paths *ExecModeConfig, goos, home string, cmd CommandRunner) *AutostartManager {
	servicePath := filepath.Join(home, ".config/systemd/user", "focusmode.service")
	if goos == "darwin" {
		servicePath = filepath.Join(home, "Library/LaunchAgents", AutostartLabel+".plist")
	}
	return &AutostartManager{
		goos:        goos,
		dataDir:     paths.DataDir,
		servicePath: servicePath,
		cmd:         cmd,
	}
}

// Path returns the service definition file path.
func (m *AutostartManager) Path() string {
	return m.servicePath
}

func (m *AutostartManager) render(execPath string) ([]byte, error) {
	tmplStr := systemdUnitTemplate
	if m.goos == "darwin" {
		tmplStr = launchAgentTemplate
	}

	tmpl, err := template.New("service").Parse(tmplStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, serviceConfig{
		Label:          AutostartLabel,
		ExecutablePath: execPath,
		DataDir:        m.dataDir,
		ErrorLogPath:   filepath.Join(m.dataDir, logsDirName, "supervisor.stderr.log"),
	}); err != nil {
		return nil, fmt.Errorf("failed to execute service template: %w", err)
	}
	return buf.Bytes(), nil
}

// Install writes the service definition and registers it with the service manager.
func (m *AutostartManager) Install(ctx context.Context, execPath string) error {
	content, err := m.render(execPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.servicePath), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(m.servicePath, content, 0644); err != nil {
		return err
	}
	return m.load(ctx)
}

// Uninstall unregisters and removes the service definition.
func (m *AutostartManager) Uninstall(ctx context.Context) error {
	// Not loaded is fine.
	_ = m.unload(ctx)

	if err := os.Remove(m.servicePath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// IsInstalled checks if the service definition exists.
func (m *AutostartManager) IsInstalled() bool {
	_, err := os.Stat(m.servicePath)
	return err == nil
}

// NeedsUpdate reports whether an installed definition differs from what
// Install would write for execPath (e.g. the binary moved).
func (m *AutostartManager) NeedsUpdate(execPath string) bool {
	if !m.IsInstalled() {
		return false
	}
	current, err := os.ReadFile(m.servicePath)
	if err != nil {
		return true
	}
	expected, err := m.render(execPath)
	if err != nil {
		return true
	}
	return !bytes.Equal(current, expected)
}

func (m *AutostartManager) load(ctx context.Context) error {
	if m.goos == "darwin" {
		return m.cmd.Run(ctx, nil, "launchctl", "load", m.servicePath)
	}
	if err := m.cmd.Run(ctx, nil, "systemctl", "--user", "daemon-reload"); err != nil {
		return err
	}
	return m.cmd.Run(ctx, nil, "systemctl", "--user", "enable", filepath.Base(m.servicePath))
}

func (m *AutostartManager) unload(ctx context.Context) error {
	if m.goos == "darwin" {
		return m.cmd.Run(ctx, nil, "launchctl", "unload", m.servicePath)
	}
	return m.cmd.Run(ctx, nil, "systemctl", "--user", "disable", filepath.Base(m.servicePath))
}
