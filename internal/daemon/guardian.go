package daemon

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focusmode/internal/domain"
)

// StatusSource reports the engine status.
type StatusSource interface {
	Status() domain.Status
}

// GuardianConfig holds guardian configuration.
type GuardianConfig struct {
	GuardInterval     time.Duration // How often to check loop liveness
	HeartbeatInterval time.Duration // How often to update the registry heartbeat
}

// DefaultGuardianConfig returns default guardian configuration.
func DefaultGuardianConfig() GuardianConfig {
	return GuardianConfig{
		GuardInterval:     10 * time.Second,
		HeartbeatInterval: 30 * time.Second,
	}
}

// Guardian keeps the supervisor's loops alive and its registry entry fresh.
// A loop that died while its mode is still active is restarted.
type Guardian struct {
	config   GuardianConfig
	loops    *LoopSupervisor
	registry domain.SupervisorRegistry
	status   StatusSource
	metrics  *Metrics
	logger   *zap.Logger
}

// NewGuardian creates a new guardian.
func NewGuardian(
	config GuardianConfig,
	loops *LoopSupervisor,
	registry domain.SupervisorRegistry,
	status StatusSource,
	metrics *Metrics,
	logger *zap.Logger,
) *Guardian {
	return &Guardian{
		config:   config,
		loops:    loops,
		registry: registry,
		status:   status,
		metrics:  metrics,
		logger:   logger,
	}
}

// Run blocks until ctx is canceled.
func (g *Guardian) Run(ctx context.Context) error {
	guardTicker := time.NewTicker(g.config.GuardInterval)
	heartbeatTicker := time.NewTicker(g.config.HeartbeatInterval)

	defer func() {
		guardTicker.Stop()
		heartbeatTicker.Stop()
	}()

	g.heartbeat()

	for {
		select {
		case <-ctx.Done():
			g.logger.Info("guardian stopping")
			return ctx.Err()

		case <-guardTicker.C:
			if n := g.loops.Guard(); n > 0 {
				g.logger.Info("loops restarted", zap.Int("count", n))
			}

		case <-heartbeatTicker.C:
			g.heartbeat()
		}
	}
}

func (g *Guardian) heartbeat() {
	st := g.status.Status()
	g.metrics.SetActive(st.Active)
	if err := g.registry.UpdateHeartbeat(st.Mode, st.SessionID); err != nil {
		g.logger.Warn("failed to update heartbeat", zap.Error(err))
	}
}
