package infra

import (
	"os"
	"os/user"
	"path/filepath"
)

// ExecMode represents the execution mode of the application.
type ExecMode string

const (
	// ExecModeUser runs as the logged-in user (hosts edits need sudo)
	ExecModeUser ExecMode = "user"
	// ExecModeSystem runs as root
	ExecModeSystem ExecMode = "system"
)

// File and directory names inside the data directory.
const (
	StateFileName       = "current_mode"
	RegistryFileName    = "supervisor.json"
	SocketFileName      = "focusmode.sock"
	ActivityDBName      = "activity.db"
	DaemonLogName       = "focusmode.log"
	ProcessActivityName = "process_activity.log"
	TabActivityName     = "tab_activity.log"
	modesDirName        = "modes"
	hostsDirName        = "hosts"
	logsDirName         = "logs"
	customDirName       = "custom"
)

// ExecModeConfig holds paths and settings based on execution mode.
type ExecModeConfig struct {
	Mode    ExecMode
	DataDir string // Root of all focusmode state
	IsRoot  bool   // Whether running as root
}

// DetectExecMode determines the execution mode based on effective UID.
// Under sudo the invoking user's home is used so state stays with that user.
func DetectExecMode() *ExecModeConfig {
	isRoot := os.Geteuid() == 0

	if isRoot && os.Getenv("SUDO_USER") == "" {
		return &ExecModeConfig{
			Mode:    ExecModeSystem,
			DataDir: "/var/lib/focusmode",
			IsRoot:  true,
		}
	}

	return &ExecModeConfig{
		Mode:    ExecModeUser,
		DataDir: filepath.Join(GetRealUserHome(), ".focusmode"),
		IsRoot:  isRoot,
	}
}

// NewExecModeConfigWithDataDir builds a config rooted at dataDir (for tests and --data-dir).
func NewExecModeConfigWithDataDir(dataDir string) *ExecModeConfig {
	cfg := DetectExecMode()
	cfg.DataDir = dataDir
	return cfg
}

// String returns a human-readable description of the mode.
func (m ExecMode) String() string {
	switch m {
	case ExecModeSystem:
		return "system (root)"
	case ExecModeUser:
		return "user (non-root)"
	default:
		return "unknown"
	}
}

// StatePath returns the Mode State file path.
func (c *ExecModeConfig) StatePath() string { return filepath.Join(c.DataDir, StateFileName) }

// RegistryPath returns the supervisor registry file path.
func (c *ExecModeConfig) RegistryPath() string { return filepath.Join(c.DataDir, RegistryFileName) }

// SocketPath returns the control socket path.
func (c *ExecModeConfig) SocketPath() string { return filepath.Join(c.DataDir, SocketFileName) }

// ModesDir returns the built-in allow-list directory.
func (c *ExecModeConfig) ModesDir() string { return filepath.Join(c.DataDir, modesDirName) }

// CustomModesDir returns the custom allow-list directory.
func (c *ExecModeConfig) CustomModesDir() string {
	return filepath.Join(c.DataDir, modesDirName, customDirName)
}

// HostsDir returns the block table directory.
func (c *ExecModeConfig) HostsDir() string { return filepath.Join(c.DataDir, hostsDirName) }

// CustomHostsDir returns the custom block table directory.
func (c *ExecModeConfig) CustomHostsDir() string {
	return filepath.Join(c.DataDir, hostsDirName, customDirName)
}

// LogsDir returns the log directory.
func (c *ExecModeConfig) LogsDir() string { return filepath.Join(c.DataDir, logsDirName) }

// ActivityDBPath returns the analytics database path.
func (c *ExecModeConfig) ActivityDBPath() string { return filepath.Join(c.DataDir, ActivityDBName) }

// EnsureDirs creates the data directory tree.
func (c *ExecModeConfig) EnsureDirs() error {
	for _, dir := range []string{c.DataDir, c.CustomModesDir(), c.CustomHostsDir(), c.LogsDir()} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}
	return nil
}

// GetRealUserHome returns the real user's home directory, even when running under sudo.
// Under sudo, os.UserHomeDir() returns /var/root, so we use SUDO_USER to find the real user.
func GetRealUserHome() string {
	// Check if running under sudo
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	// Fall back to default
	home, _ := os.UserHomeDir()
	return home
}
