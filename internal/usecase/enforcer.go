// Package usecase contains application business logic.
package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focusmode/internal/domain"
	"github.com/eliteGoblin/focusd/focusmode/internal/policy"
)

// DefaultQueryTimeout bounds a single OS query (app listing or one quit request).
const DefaultQueryTimeout = 5 * time.Second

// ProcessEnforcer implements domain.Enforcer: one pass comparing running apps
// against the active mode's allow-list.
type ProcessEnforcer struct {
	state        domain.ModeReader
	modes        domain.ModeStore
	apps         domain.AppManager
	essential    *policy.EssentialSet
	queryTimeout time.Duration
	logger       *zap.Logger
}

// NewProcessEnforcer creates a new enforcer.
func NewProcessEnforcer(
	state domain.ModeReader,
	modes domain.ModeStore,
	apps domain.AppManager,
	essential *policy.EssentialSet,
	logger *zap.Logger,
) *ProcessEnforcer {
	return &ProcessEnforcer{
		state:        state,
		modes:        modes,
		apps:         apps,
		essential:    essential,
		queryTimeout: DefaultQueryTimeout,
		logger:       logger,
	}
}

// Tick runs one enforcement pass. It never returns an error: failures are
// recorded in the result and the caller simply ticks again.
func (e *ProcessEnforcer) Tick(ctx context.Context) (result domain.TickResult) {
	start := time.Now()
	result.ExecutedAt = start
	defer func() { result.DurationMs = time.Since(start).Milliseconds() }()

	// 1. Mode State is read first; empty means we should not be enforcing.
	mode := e.state.Current()
	result.Mode = mode
	if mode == "" {
		return skip(result, domain.SkipInactive)
	}

	// 2. Allow-list is read fresh every tick.
	names, err := e.modes.AllowList(mode)
	if err != nil {
		if errors.Is(err, domain.ErrModeNotFound) {
			e.logger.Warn("allow-list missing, skipping tick", zap.String("mode", mode))
		} else {
			e.logger.Warn("failed to read allow-list, skipping tick", zap.String("mode", mode), zap.Error(err))
		}
		result.Errors = append(result.Errors, err)
		return skip(result, domain.SkipMissingConfig)
	}

	// 3-4. Could not observe the system means no action, never "everything is disallowed".
	running, err := e.listApps(ctx)
	if err != nil {
		e.logger.Debug("app enumeration failed, skipping tick", zap.Error(err))
		result.Errors = append(result.Errors, err)
		return skip(result, domain.SkipNoObservation)
	}
	if len(running) == 0 {
		return skip(result, domain.SkipNoObservation)
	}
	result.Observed = len(running)

	// 5. Polite quit for every app neither essential nor allowed.
	for _, name := range policy.Targets(running, policy.NewAllowList(names), e.essential) {
		result.Targeted = append(result.Targeted, name)
		if err := e.quit(ctx, name); err != nil {
			e.logger.Warn("quit request failed",
				zap.String("mode", mode),
				zap.String("app", name),
				zap.Error(err))
			result.Failed = append(result.Failed, name)
			result.Errors = append(result.Errors, err)
			continue
		}
		e.logger.Info("quit requested",
			zap.String("mode", mode),
			zap.String("app", name))
	}

	return result
}

func (e *ProcessEnforcer) listApps(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.queryTimeout)
	defer cancel()
	return e.apps.ListForeground(ctx)
}

func (e *ProcessEnforcer) quit(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, e.queryTimeout)
	defer cancel()
	return e.apps.Quit(ctx, name)
}

func skip(r domain.TickResult, reason domain.SkipReason) domain.TickResult {
	r.Skipped = true
	r.SkipReason = reason
	return r
}

// Ensure ProcessEnforcer implements domain.Enforcer.
var _ domain.Enforcer = (*ProcessEnforcer)(nil)
