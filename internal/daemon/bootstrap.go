package daemon

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// readyPollInterval is how often WaitReady probes the control socket.
const readyPollInterval = 100 * time.Millisecond

// StartDaemon spawns `focusmode daemon` detached from the calling process.
// The command line stays recognizable for recovery sweeps.
func StartDaemon(dataDir, configPath string) error {
	executable, err := os.Executable()
	if err != nil {
		return err
	}
	return StartDaemonWithPath(executable, dataDir, configPath)
}

// StartDaemonWithPath spawns the daemon from a specific binary.
func StartDaemonWithPath(binaryPath, dataDir, configPath string) error {
	cmd := exec.Command(binaryPath, DaemonArgs(dataDir, configPath)...)

	// Detach from parent process
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true, // Create new session (detach from terminal)
	}

	// No stdin/stdout/stderr - fully detached
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start supervisor: %w", err)
	}
	return cmd.Process.Release()
}

// DaemonArgs returns the arguments of the hidden daemon command.
func DaemonArgs(dataDir, configPath string) []string {
	args := []string{"daemon", "--data-dir", dataDir}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	return args
}

// HealthChecker probes a supervisor.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// WaitReady polls until the supervisor answers or ctx expires.
func WaitReady(ctx context.Context, hc HealthChecker) error {
	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	for {
		if err := hc.Health(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("supervisor did not become ready: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// EnsureRunning spawns a supervisor when none answers and waits until it does.
// It reports whether a new supervisor was started.
func EnsureRunning(ctx context.Context, hc HealthChecker, spawn func() error, timeout time.Duration) (bool, error) {
	if err := hc.Health(ctx); err == nil {
		return false, nil
	}
	if err := spawn(); err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := WaitReady(ctx, hc); err != nil {
		return true, err
	}
	return true, nil
}
