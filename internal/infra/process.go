// Package infra implements infrastructure concerns (process, filesystem, registry).
package infra

import (
	"context"
	"os"
	"strings"
	"syscall"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/eliteGoblin/focusd/focusmode/internal/domain"
)

// ProcessManagerImpl implements domain.ProcessManager using gopsutil.
type ProcessManagerImpl struct {
	uid int32
}

// NewProcessManager creates a new process manager scoped to the current user.
func NewProcessManager() domain.ProcessManager {
	return &ProcessManagerImpl{uid: int32(os.Getuid())}
}

// FindByCmdline returns PIDs whose command line contains any of the patterns.
func (pm *ProcessManagerImpl) FindByCmdline(patterns []string) ([]int, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}

	var found []int
	for _, p := range procs {
		cmdline, err := p.Cmdline()
		if err != nil || cmdline == "" {
			continue // Process may have exited
		}
		for _, pattern := range patterns {
			if pattern != "" && strings.Contains(cmdline, pattern) {
				found = append(found, int(p.Pid))
				break
			}
		}
	}
	return found, nil
}

// Names returns the distinct names of all processes owned by the current user.
func (pm *ProcessManagerImpl) Names(ctx context.Context) ([]string, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var names []string
	for _, p := range procs {
		if !pm.ownedByUser(ctx, p) {
			continue
		}
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names, nil
}

func (pm *ProcessManagerImpl) ownedByUser(ctx context.Context, p *process.Process) bool {
	uids, err := p.UidsWithContext(ctx)
	if err != nil || len(uids) == 0 {
		return false
	}
	return uids[0] == pm.uid
}

// Terminate sends SIGTERM to a process.
func (pm *ProcessManagerImpl) Terminate(pid int) error {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return err
	}
	return p.Terminate()
}

// Kill terminates a process by PID using SIGKILL.
func (pm *ProcessManagerImpl) Kill(pid int) error {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return err
	}
	return p.Kill()
}

// IsRunning checks if a PID exists and is running.
func (pm *ProcessManagerImpl) IsRunning(pid int) bool {
	// On Unix, FindProcess always succeeds
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// Send signal 0 to check if process exists
	err = proc.Signal(syscall.Signal(0))
	return err == nil
}

// GetCurrentPID returns the current process PID.
func (pm *ProcessManagerImpl) GetCurrentPID() int {
	return os.Getpid()
}

// Ensure ProcessManagerImpl implements domain.ProcessManager.
var _ domain.ProcessManager = (*ProcessManagerImpl)(nil)
