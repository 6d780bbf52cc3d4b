package domain

import (
	"context"
	"time"
)

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// FindByCmdline returns PIDs whose command line contains any of the patterns.
	FindByCmdline(patterns []string) ([]int, error)

	// Names returns the distinct names of all processes owned by the current user.
	Names(ctx context.Context) ([]string, error)

	// Terminate asks a process to exit (SIGTERM).
	Terminate(pid int) error

	// Kill terminates a process by PID (SIGKILL).
	Kill(pid int) error

	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// AppManager observes and politely quits user-facing applications by display name.
type AppManager interface {
	// ListForeground returns display names of running foreground apps.
	ListForeground(ctx context.Context) ([]string, error)

	// Quit asks every app with this display name to quit gracefully.
	Quit(ctx context.Context, name string) error
}

// ModeReader exposes the currently active mode ("" when inactive).
type ModeReader interface {
	Current() string
}

// StateStore persists the single Mode State value.
type StateStore interface {
	ModeReader

	// Get returns the active mode, or "" when inactive or absent.
	Get() (string, error)

	// Set records mode as active (last write wins).
	Set(mode string) error

	// Clear writes the empty value.
	Clear() error

	// Path returns the state file location.
	Path() string
}

// ModeStore provides the allow-list and block table for each mode.
// Reads are never cached so edits apply on the next tick.
type ModeStore interface {
	// AllowList returns the apps permitted by a mode, or ErrModeNotFound.
	AllowList(name string) ([]string, error)

	// BlockTable returns the mode's hostname block table; nil when the mode has none.
	BlockTable(name string) (*BlockTable, error)

	// Exists reports whether an allow-list definition exists.
	Exists(name string) bool

	// List returns all mode names.
	List() ([]string, error)

	// Save writes a mode definition.
	Save(def ModeDefinition) error

	// Delete removes a custom mode definition.
	Delete(name string) error
}

// NetworkBlocker applies and reverts hostname redirection.
type NetworkBlocker interface {
	// Apply replaces the OS hosts file with minimal entries plus the table and flushes the resolver cache.
	Apply(ctx context.Context, table *BlockTable) error

	// Revert restores the minimal default hosts file and flushes the resolver cache.
	Revert(ctx context.Context) error
}

// PrivilegedRunner runs commands with elevated privilege.
type PrivilegedRunner interface {
	// Run executes name with args as root, feeding stdin when non-nil.
	// Returns ErrInsufficientPrivilege when escalation fails or times out.
	Run(ctx context.Context, stdin []byte, name string, args ...string) error

	// IsElevated reports whether the current process already runs as root.
	IsElevated() bool
}

// LoopSweeper terminates stale background loop processes matched by command line.
type LoopSweeper interface {
	// Sweep requests graceful exit of every match, waits up to grace, then force-kills survivors.
	Sweep(ctx context.Context, grace time.Duration) (terminated int, killed int, err error)
}

// LoopRunner starts and stops the in-process enforcement loops.
type LoopRunner interface {
	// StartLoops starts the enforcer (and optionally the monitor) for mode, replacing running loops.
	StartLoops(mode, sessionID string, withMonitor bool)

	// StopLoops cancels all loops and waits for them to return or ctx to expire.
	StopLoops(ctx context.Context) int

	// Loops lists running loops.
	Loops() []LoopInfo
}

// ActivitySink receives Activity Monitor samples.
type ActivitySink interface {
	Record(sample ActivitySample) error
}

// TabSource lists open tab titles of a browser.
type TabSource interface {
	Browser() string
	Titles(ctx context.Context) ([]string, error)
}

// Enforcer runs one allow-list enforcement pass.
type Enforcer interface {
	Tick(ctx context.Context) TickResult
}

// SupervisorRegistry provides supervisor discovery.
// Implementation: JSON file next to the Mode State file.
type SupervisorRegistry interface {
	// Register saves the supervisor record.
	Register(s Supervisor) error

	// Get returns the registered supervisor, or nil when none.
	Get() (*Supervisor, error)

	// UpdateHeartbeat updates timestamp and current mode for liveness checks.
	UpdateHeartbeat(mode, sessionID string) error

	// IsAlive reports whether the registered supervisor PID is running.
	IsAlive() bool

	// Clear removes the registry file.
	Clear() error

	// GetRegistryPath returns the registry file path (for tests).
	GetRegistryPath() string
}

// KeyProvider abstracts the source of encryption keys.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}

// SecretStore provides encrypted persistent storage for secrets.
type SecretStore interface {
	// GetSecret retrieves a secret by key.
	GetSecret(key string) (string, error)

	// SetSecret stores a secret.
	SetSecret(key, value string) error

	// DeleteSecret removes a secret; deleting a missing key is not an error.
	DeleteSecret(key string) error

	// Close releases resources (e.g., database connection).
	Close() error
}
