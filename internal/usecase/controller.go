package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focusmode/internal/domain"
)

// SessionRecorder records activation session boundaries for analytics.
type SessionRecorder interface {
	StartSession(sessionID, mode string, at time.Time) error
	EndSession(sessionID string, at time.Time) error
}

// ControllerConfig bounds the activation and teardown steps.
type ControllerConfig struct {
	GracePeriod time.Duration // wait between SIGTERM and SIGKILL for stale loops
	StepTimeout time.Duration // upper bound for each privileged or OS step
}

// networkStepCalls is the number of privileged calls one network step may
// make: the hosts file write plus up to two resolver flushes.
const networkStepCalls = 3

// Controller implements activation, deactivation and status.
// Network, loops, sweeper and sessions are optional (nil disables the step).
type Controller struct {
	mu       sync.Mutex
	state    domain.StateStore
	modes    domain.ModeStore
	network  domain.NetworkBlocker
	loops    domain.LoopRunner
	sweeper  domain.LoopSweeper
	sessions SessionRecorder
	cfg      ControllerConfig
	logger   *zap.Logger

	sessionID   string
	activatedAt time.Time
}

// ControllerDeps groups the collaborators of a Controller.
type ControllerDeps struct {
	State    domain.StateStore
	Modes    domain.ModeStore
	Network  domain.NetworkBlocker
	Loops    domain.LoopRunner
	Sweeper  domain.LoopSweeper
	Sessions SessionRecorder
}

// NewController creates a new activation/deactivation controller.
func NewController(deps ControllerDeps, cfg ControllerConfig, logger *zap.Logger) *Controller {
	return &Controller{
		state:    deps.State,
		modes:    deps.Modes,
		network:  deps.Network,
		loops:    deps.Loops,
		sweeper:  deps.Sweeper,
		sessions: deps.Sessions,
		cfg:      cfg,
		logger:   logger,
	}
}

// Activate makes mode the active mode. It succeeds without privilege: the
// network step then reports insufficient_privilege and enforcement still starts.
// Only a Mode State write failure is returned as an error.
func (c *Controller) Activate(ctx context.Context, mode string, opts domain.ActivationOptions) (domain.ActivationResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := domain.ActivationResult{Mode: mode}
	if !c.modes.Exists(mode) {
		result.Outcome = domain.OutcomeModeNotFound
		return result, nil
	}

	if err := c.state.Set(mode); err != nil {
		return result, fmt.Errorf("failed to persist mode state: %w", err)
	}

	c.sessionID = uuid.NewString()
	c.activatedAt = time.Now()
	result.SessionID = c.sessionID
	if c.sessions != nil {
		if err := c.sessions.StartSession(c.sessionID, mode, c.activatedAt); err != nil {
			c.logger.Warn("failed to record session start", zap.Error(err))
		}
	}

	result.Network = c.applyNetwork(ctx, mode, opts.BlockNetwork)

	if c.loops != nil {
		c.loops.StartLoops(mode, c.sessionID, opts.Monitor)
	}

	result.Outcome = domain.OutcomeOK
	if result.Network.Status == domain.StepInsufficientPrivilege {
		result.Outcome = domain.OutcomeInsufficientPrivilege
	}

	c.logger.Info("mode activated",
		zap.String("mode", mode),
		zap.String("session_id", c.sessionID),
		zap.String("outcome", string(result.Outcome)),
		zap.String("network", string(result.Network.Status)))
	return result, nil
}

func (c *Controller) applyNetwork(ctx context.Context, mode string, enabled bool) domain.StepReport {
	report := domain.StepReport{Step: domain.StepNetwork}
	if !enabled || c.network == nil {
		report.Status = domain.StepSkipped
		report.Detail = "network blocking disabled"
		return report
	}

	table, err := c.modes.BlockTable(mode)
	if err != nil {
		report.Status = domain.StepFailed
		report.Detail = err.Error()
		return report
	}
	if table.Len() == 0 {
		report.Status = domain.StepSkipped
		report.Detail = "mode has no block table"
		return report
	}

	err = c.bounded(ctx, c.networkTimeout(), func(ctx context.Context) error {
		return c.network.Apply(ctx, table)
	})
	return networkReport(err, fmt.Sprintf("%d hosts blocked", table.Len()))
}

// Deactivate tears everything down regardless of the current Mode State.
// It is idempotent and always returns a report; each step is bounded so a hung
// step cannot hold up the others.
func (c *Controller) Deactivate(ctx context.Context) domain.DeactivationReport {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	var report domain.DeactivationReport
	previous := c.state.Current()

	// 1. Clearing Mode State is the authoritative stop signal.
	stateStep := domain.StepReport{Step: domain.StepState, Status: domain.StepOK}
	if err := c.bounded(ctx, c.cfg.StepTimeout, func(context.Context) error { return c.state.Clear() }); err != nil {
		stateStep.Status = domain.StepFailed
		stateStep.Detail = err.Error()
	} else if previous != "" {
		stateStep.Detail = "cleared " + previous
	}
	report.Steps = append(report.Steps, stateStep)

	// 2. Loops owned by this process.
	loopStep := domain.StepReport{Step: domain.StepLoops, Status: domain.StepSkipped}
	if c.loops != nil {
		stopCtx, cancel := context.WithTimeout(ctx, c.cfg.StepTimeout)
		stopped := c.loops.StopLoops(stopCtx)
		cancel()
		loopStep.Status = domain.StepOK
		loopStep.Detail = fmt.Sprintf("%d stopped", stopped)
		if remaining := len(c.loops.Loops()); remaining > 0 {
			loopStep.Status = domain.StepPartial
			loopStep.Detail = fmt.Sprintf("%d stopped, %d still running", stopped, remaining)
		}
	}
	report.Steps = append(report.Steps, loopStep)

	// 3. Stale loops from other processes: SIGTERM, grace, SIGKILL.
	sweepStep := domain.StepReport{Step: domain.StepStaleLoops, Status: domain.StepSkipped}
	if c.sweeper != nil {
		var terminated, killed int
		err := c.bounded(ctx, c.cfg.GracePeriod+c.cfg.StepTimeout, func(ctx context.Context) error {
			var err error
			terminated, killed, err = c.sweeper.Sweep(ctx, c.cfg.GracePeriod)
			return err
		})
		if err != nil {
			sweepStep.Status = domain.StepFailed
			sweepStep.Detail = err.Error()
		} else {
			sweepStep.Status = domain.StepOK
			sweepStep.Detail = fmt.Sprintf("%d terminated, %d killed", terminated, killed)
		}
	}
	report.Steps = append(report.Steps, sweepStep)

	// 4. Network revert is safe even if nothing was applied.
	netStep := domain.StepReport{Step: domain.StepNetwork, Status: domain.StepSkipped, Detail: "network blocking disabled"}
	if c.network != nil {
		err := c.bounded(ctx, c.networkTimeout(), func(ctx context.Context) error {
			return c.network.Revert(ctx)
		})
		netStep = networkReport(err, "hosts file restored")
	}
	report.Steps = append(report.Steps, netStep)

	if c.sessions != nil && c.sessionID != "" {
		if err := c.sessions.EndSession(c.sessionID, time.Now()); err != nil {
			c.logger.Warn("failed to record session end", zap.Error(err))
		}
	}
	c.sessionID = ""
	c.activatedAt = time.Time{}

	report.DurationMs = time.Since(start).Milliseconds()
	c.logger.Info("mode deactivated",
		zap.String("previous_mode", previous),
		zap.Int64("duration_ms", report.DurationMs))
	return report
}

// Status reports Mode State plus whatever this process knows about its loops.
func (c *Controller) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	mode := c.state.Current()
	st := domain.Status{Active: mode != "", Mode: mode}
	if !st.Active {
		return st
	}
	st.SessionID = c.sessionID
	st.ActivatedAt = c.activatedAt
	if c.loops != nil {
		st.Loops = c.loops.Loops()
	}
	return st
}

// ResumeSession adopts an active mode found at startup without re-applying it.
func (c *Controller) ResumeSession(mode string, withMonitor bool) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sessionID = uuid.NewString()
	c.activatedAt = time.Now()
	if c.sessions != nil {
		if err := c.sessions.StartSession(c.sessionID, mode, c.activatedAt); err != nil {
			c.logger.Warn("failed to record session start", zap.Error(err))
		}
	}
	if c.loops != nil {
		c.loops.StartLoops(mode, c.sessionID, withMonitor)
	}
	c.logger.Info("mode resumed", zap.String("mode", mode), zap.String("session_id", c.sessionID))
	return c.sessionID
}

// bounded runs fn with a deadline and returns when fn does or the deadline
// passes, whichever is first. fn keeps running in the background after a
// timeout; it must honour ctx to actually stop.
// networkTimeout gives each privileged call of the network step a full StepTimeout.
func (c *Controller) networkTimeout() time.Duration {
	return networkStepCalls * c.cfg.StepTimeout
}

func (c *Controller) bounded(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("step timed out after %s: %w", timeout, ctx.Err())
	}
}

func networkReport(err error, okDetail string) domain.StepReport {
	report := domain.StepReport{Step: domain.StepNetwork}
	switch {
	case err == nil:
		report.Status = domain.StepOK
		report.Detail = okDetail
	case errors.Is(err, domain.ErrInsufficientPrivilege), errors.Is(err, context.DeadlineExceeded):
		// A hung escalation prompt is treated as missing privilege.
		report.Status = domain.StepInsufficientPrivilege
		report.Detail = err.Error()
	case errors.Is(err, domain.ErrResolverFlush):
		report.Status = domain.StepPartial
		report.Detail = err.Error()
	default:
		report.Status = domain.StepFailed
		report.Detail = err.Error()
	}
	return report
}
