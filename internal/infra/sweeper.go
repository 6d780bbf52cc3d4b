package infra

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focusmode/internal/domain"
)

// DefaultLoopPatterns match background loops left by earlier sessions:
// stray supervisors and the legacy shell loops.
var DefaultLoopPatterns = []string{
	"focusmode daemon",
	"kill_looper.sh",
	"monitor_active_programs.sh",
}

const sweepPollInterval = 100 * time.Millisecond

// PatternSweeper implements domain.LoopSweeper by command-line pattern matching.
// The calling process is never a target.
type PatternSweeper struct {
	pm       domain.ProcessManager
	patterns []string
	exclude  map[int]struct{}
	logger   *zap.Logger
}

// NewPatternSweeper creates a sweeper for the default patterns plus extra.
// exclude lists additional PIDs to leave alone (e.g. the live supervisor).
func NewPatternSweeper(pm domain.ProcessManager, extra []string, exclude []int, logger *zap.Logger) *PatternSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	patterns := append(append([]string(nil), DefaultLoopPatterns...), extra...)
	ex := map[int]struct{}{pm.GetCurrentPID(): {}}
	for _, pid := range exclude {
		ex[pid] = struct{}{}
	}
	return &PatternSweeper{pm: pm, patterns: patterns, exclude: ex, logger: logger}
}

// Sweep sends SIGTERM to every match, waits up to grace, then SIGKILLs survivors.
func (s *PatternSweeper) Sweep(ctx context.Context, grace time.Duration) (terminated int, killed int, err error) {
	pids, err := s.pm.FindByCmdline(s.patterns)
	if err != nil {
		return 0, 0, err
	}

	var targets []int
	for _, pid := range pids {
		if _, skip := s.exclude[pid]; skip {
			continue
		}
		targets = append(targets, pid)
	}
	if len(targets) == 0 {
		return 0, 0, nil
	}

	for _, pid := range targets {
		if err := s.pm.Terminate(pid); err != nil {
			s.logger.Debug("terminate failed", zap.Int("pid", pid), zap.Error(err))
		}
	}

	survivors := s.waitForExit(ctx, targets, grace)
	terminated = len(targets) - len(survivors)

	for _, pid := range survivors {
		if err := s.pm.Kill(pid); err != nil {
			s.logger.Warn("failed to kill stale loop", zap.Int("pid", pid), zap.Error(err))
			continue
		}
		killed++
	}

	s.logger.Info("stale loops swept",
		zap.Int("terminated", terminated),
		zap.Int("killed", killed))
	return terminated, killed, nil
}

// waitForExit polls until all pids are gone, grace elapses, or ctx ends.
func (s *PatternSweeper) waitForExit(ctx context.Context, pids []int, grace time.Duration) []int {
	deadline := time.NewTimer(grace)
	defer deadline.Stop()
	ticker := time.NewTicker(sweepPollInterval)
	defer ticker.Stop()

	for {
		alive := s.alive(pids)
		if len(alive) == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return alive
		case <-deadline.C:
			return s.alive(pids)
		case <-ticker.C:
		}
	}
}

func (s *PatternSweeper) alive(pids []int) []int {
	var out []int
	for _, pid := range pids {
		if s.pm.IsRunning(pid) {
			out = append(out, pid)
		}
	}
	return out
}

var _ domain.LoopSweeper = (*PatternSweeper)(nil)
