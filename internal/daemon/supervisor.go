package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eliteGoblin/focusd/focusmode/internal/domain"
)

// Controller is the engine plus crash-recovery entry point used by the supervisor.
type Controller interface {
	Engine
	ResumeSession(mode string, withMonitor bool) string
}

// SupervisorConfig holds supervisor process settings.
type SupervisorConfig struct {
	SocketPath     string
	ExecMode       string
	AppVersion     string
	MonitorEnabled bool
	Guardian       GuardianConfig
}

// Supervisor is the long-lived `focusmode daemon` process: control server,
// loop guardian and heartbeat, until a deactivate request or ctx ends it.
type Supervisor struct {
	config     SupervisorConfig
	holder     *ModeHolder
	controller Controller
	loops      *LoopSupervisor
	registry   domain.SupervisorRegistry
	metrics    *Metrics
	server     *Server
	guardian   *Guardian
	logger     *zap.Logger
}

// NewSupervisor wires the control server and guardian around controller.
func NewSupervisor(
	config SupervisorConfig,
	holder *ModeHolder,
	controller Controller,
	loops *LoopSupervisor,
	registry domain.SupervisorRegistry,
	metrics *Metrics,
	logger *zap.Logger,
) *Supervisor {
	return &Supervisor{
		config:     config,
		holder:     holder,
		controller: controller,
		loops:      loops,
		registry:   registry,
		metrics:    metrics,
		server:     NewServer(controller, metrics, ServerOptions{SocketPath: config.SocketPath}, logger),
		guardian:   NewGuardian(config.Guardian, loops, registry, controller, metrics, logger),
		logger:     logger,
	}
}

// Run blocks until ctx is canceled or a deactivate request was answered.
func (s *Supervisor) Run(ctx context.Context) error {
	if s.registry.IsAlive() {
		if existing, err := s.registry.Get(); err == nil && existing != nil && existing.PID != os.Getpid() {
			return fmt.Errorf("supervisor already running (pid %d)", existing.PID)
		}
	}

	if err := s.registry.Register(domain.Supervisor{
		PID:        os.Getpid(),
		Mode:       s.holder.Current(),
		SocketPath: s.config.SocketPath,
		AppVersion: s.config.AppVersion,
		ExecMode:   s.config.ExecMode,
	}); err != nil {
		s.logger.Error("failed to register supervisor", zap.Error(err))
		return err
	}
	defer func() {
		if err := s.registry.Clear(); err != nil {
			s.logger.Warn("failed to clear supervisor registry", zap.Error(err))
		}
	}()

	s.logger.Info("supervisor started",
		zap.Int("pid", os.Getpid()),
		zap.String("socket", s.config.SocketPath),
		zap.String("exec_mode", s.config.ExecMode))

	// A non-empty Mode State at startup means a previous supervisor died mid-session.
	if mode := s.holder.Current(); mode != "" {
		sessionID := s.controller.ResumeSession(mode, s.config.MonitorEnabled)
		s.metrics.SetActive(true)
		s.logger.Info("resumed enforcement", zap.String("mode", mode), zap.String("session_id", sessionID))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.server.Serve(gctx)
	})
	g.Go(func() error {
		return s.guardian.Run(gctx)
	})
	g.Go(func() error {
		select {
		case <-s.server.Deactivated():
			s.logger.Info("deactivated, supervisor exiting")
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	err := g.Wait()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), loopStopTimeout)
	defer stopCancel()
	s.loops.StopLoops(stopCtx)

	if errors.Is(err, context.Canceled) {
		err = nil
	}
	s.logger.Info("supervisor stopped")
	return err
}
