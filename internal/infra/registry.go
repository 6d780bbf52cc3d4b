package infra

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/eliteGoblin/focusd/focusmode/internal/domain"
)

// FileRegistry implements domain.SupervisorRegistry using a JSON file in the data directory.
type FileRegistry struct {
	path           string
	processManager domain.ProcessManager
}

// NewFileRegistry creates a registry at path.
func NewFileRegistry(path string, pm domain.ProcessManager) *FileRegistry {
	return &FileRegistry{
		path:           path,
		processManager: pm,
	}
}

// GetRegistryPath returns the registry file path.
func (r *FileRegistry) GetRegistryPath() string {
	return r.path
}

// Register saves the supervisor record.
func (r *FileRegistry) Register(s domain.Supervisor) error {
	return withFileLock(r.path, func() error {
		now := time.Now().Unix()
		if s.StartedAt == 0 {
			s.StartedAt = now
		}
		s.LastHeartbeat = now

		// Auto-detect and store execution mode
		if os.Geteuid() == 0 {
			s.ExecMode = string(ExecModeSystem)
		} else {
			s.ExecMode = string(ExecModeUser)
		}
		return r.atomicWrite(&s)
	})
}

// Get returns the registered supervisor, or nil when none.
func (r *FileRegistry) Get() (*domain.Supervisor, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var s domain.Supervisor
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateHeartbeat updates timestamp and current mode for liveness checks.
func (r *FileRegistry) UpdateHeartbeat(mode, sessionID string) error {
	return withFileLock(r.path, func() error {
		s, err := r.Get()
		if err != nil {
			return err
		}
		if s == nil {
			return fmt.Errorf("supervisor not registered")
		}

		s.Mode = mode
		s.SessionID = sessionID
		s.LastHeartbeat = time.Now().Unix()
		return r.atomicWrite(s)
	})
}

// IsAlive reports whether the registered supervisor PID is running.
func (r *FileRegistry) IsAlive() bool {
	s, err := r.Get()
	if err != nil || s == nil || s.PID == 0 {
		return false
	}
	return r.processManager.IsRunning(s.PID)
}

// Clear removes registry file.
func (r *FileRegistry) Clear() error {
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (r *FileRegistry) atomicWrite(s *domain.Supervisor) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return atomicWriteFile(r.path, data, 0600)
}

// withFileLock runs fn while holding an exclusive flock on path + ".lock".
func withFileLock(path string, fn func() error) error {
	lockFile, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	defer lockFile.Close()

	if err := unix.Flock(int(lockFile.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = unix.Flock(int(lockFile.Fd()), unix.LOCK_UN) }()

	return fn()
}

// atomicWriteFile writes data to a temp file and renames it over path.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	// Unique per process to avoid races between writers
	tmpPath := fmt.Sprintf("%s.%d.tmp", path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, perm); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Ensure FileRegistry implements domain.SupervisorRegistry.
var _ domain.SupervisorRegistry = (*FileRegistry)(nil)
