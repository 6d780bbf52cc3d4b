package daemon

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focusmode/internal/domain"
)

// loopStopTimeout bounds how long StartLoops waits for replaced loops to return.
const loopStopTimeout = 5 * time.Second

// Sampler takes one Activity Monitor observation.
type Sampler interface {
	Sample(ctx context.Context) domain.ActivitySample
}

// MonitorFactory builds a Sampler bound to an activation session.
type MonitorFactory func(sessionID string) Sampler

// LoopConfig holds loop intervals.
type LoopConfig struct {
	EnforcerInterval time.Duration
	MonitorInterval  time.Duration
}

// LoopSupervisor owns the enforcement and monitor goroutines of the supervisor.
// At most one loop per role exists; starting loops replaces the running ones.
type LoopSupervisor struct {
	mu         sync.Mutex
	config     LoopConfig
	holder     *ModeHolder
	enforcer   domain.Enforcer
	newMonitor MonitorFactory
	metrics    *Metrics
	logger     *zap.Logger
	loops      map[domain.LoopRole]*loopHandle
}

type loopHandle struct {
	info      domain.LoopInfo
	sessionID string
	cancel    context.CancelFunc
	done      chan struct{}
	crashed   bool // written before done is closed
}

func (h *loopHandle) finished() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// NewLoopSupervisor creates a loop registry. newMonitor may be nil when
// activity monitoring is disabled.
func NewLoopSupervisor(
	config LoopConfig,
	holder *ModeHolder,
	enforcer domain.Enforcer,
	newMonitor MonitorFactory,
	metrics *Metrics,
	logger *zap.Logger,
) *LoopSupervisor {
	return &LoopSupervisor{
		config:     config,
		holder:     holder,
		enforcer:   enforcer,
		newMonitor: newMonitor,
		metrics:    metrics,
		logger:     logger,
		loops:      make(map[domain.LoopRole]*loopHandle),
	}
}

// StartLoops stops whatever is running and starts the enforcer, plus the
// monitor when requested, for mode.
func (s *LoopSupervisor) StartLoops(mode, sessionID string, withMonitor bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.loops) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), loopStopTimeout)
		s.stopLocked(ctx)
		cancel()
	}

	s.spawnLocked(domain.LoopEnforcer, mode, sessionID, 0)
	if withMonitor && s.newMonitor != nil {
		s.spawnLocked(domain.LoopMonitor, mode, sessionID, 0)
	}
	s.metrics.SetLoops(s.runningLocked())
}

// StopLoops cancels every loop and waits for them to return or ctx to expire.
// Loops that did not return in time stay listed until they do.
func (s *LoopSupervisor) StopLoops(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	stopped := s.stopLocked(ctx)
	s.metrics.SetLoops(s.runningLocked())
	return stopped
}

// Loops lists running loops sorted by role.
func (s *LoopSupervisor) Loops() []domain.LoopInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.LoopInfo
	for _, h := range s.loops {
		if !h.finished() {
			out = append(out, h.info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Role < out[j].Role })
	return out
}

// Guard restarts loops that died while their mode is still active and
// forgets loops that exited normally. It returns the number restarted.
func (s *LoopSupervisor) Guard() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.holder.Current()
	restarted := 0
	for role, h := range s.loops {
		if !h.finished() {
			continue
		}
		delete(s.loops, role)
		if !h.crashed || current == "" || current != h.info.Mode {
			continue
		}
		s.logger.Warn("loop died, restarting",
			zap.String("role", string(role)),
			zap.String("mode", h.info.Mode),
			zap.Int("restarts", h.info.Restarts+1))
		s.spawnLocked(role, h.info.Mode, h.sessionID, h.info.Restarts+1)
		restarted++
	}
	s.metrics.SetLoops(s.runningLocked())
	return restarted
}

func (s *LoopSupervisor) stopLocked(ctx context.Context) int {
	for _, h := range s.loops {
		h.cancel()
	}

	stopped := 0
	for role, h := range s.loops {
		select {
		case <-h.done:
			delete(s.loops, role)
			stopped++
		case <-ctx.Done():
			s.logger.Warn("loop did not stop in time", zap.String("role", string(role)))
		}
	}
	return stopped
}

func (s *LoopSupervisor) runningLocked() int {
	n := 0
	for _, h := range s.loops {
		if !h.finished() {
			n++
		}
	}
	return n
}

func (s *LoopSupervisor) spawnLocked(role domain.LoopRole, mode, sessionID string, restarts int) {
	var (
		interval time.Duration
		body     func(context.Context)
	)
	switch role {
	case domain.LoopEnforcer:
		interval = s.config.EnforcerInterval
		body = func(ctx context.Context) {
			s.metrics.ObserveTick(s.enforcer.Tick(ctx))
		}
	case domain.LoopMonitor:
		interval = s.config.MonitorInterval
		sampler := s.newMonitor(sessionID)
		body = func(ctx context.Context) {
			s.metrics.ObserveSample(sampler.Sample(ctx))
		}
	default:
		panic(fmt.Sprintf("unknown loop role %q", role))
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &loopHandle{
		info: domain.LoopInfo{
			Role:      role,
			Mode:      mode,
			StartedAt: time.Now(),
			Restarts:  restarts,
		},
		sessionID: sessionID,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	s.loops[role] = h

	go func() {
		defer close(h.done)
		defer func() {
			if r := recover(); r != nil {
				h.crashed = true
				s.logger.Error("loop panicked",
					zap.String("role", string(role)),
					zap.String("mode", mode),
					zap.Any("panic", r))
			}
		}()
		s.run(ctx, h, interval, body)
	}()

	s.logger.Info("loop started",
		zap.String("role", string(role)),
		zap.String("mode", mode),
		zap.Duration("interval", interval))
}

// run ticks immediately, then every interval, until ctx is canceled or
// Mode State moves away from the loop's mode.
func (s *LoopSupervisor) run(ctx context.Context, h *loopHandle, interval time.Duration, body func(context.Context)) {
	changes, unsubscribe := s.holder.Subscribe()
	defer unsubscribe()

	if s.holder.Current() != h.info.Mode {
		return
	}
	body(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case mode := <-changes:
			if mode != h.info.Mode {
				s.logger.Info("mode changed, loop exiting",
					zap.String("role", string(h.info.Role)),
					zap.String("mode", h.info.Mode),
					zap.String("new_mode", mode))
				return
			}
		case <-ticker.C:
			body(ctx)
		}
	}
}

var _ domain.LoopRunner = (*LoopSupervisor)(nil)
