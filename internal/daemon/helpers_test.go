package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focusmode/internal/domain"
	"github.com/eliteGoblin/focusd/focusmode/internal/infra"
)

const defaultTestTimeout = 5 * time.Second

// newTestHolder returns a holder backed by a real state file in a temp dir.
func newTestHolder(t *testing.T, initial string) *ModeHolder {
	t.Helper()
	store := infra.NewFileStateStore(filepath.Join(t.TempDir(), infra.StateFileName))
	if initial != "" {
		require.NoError(t, store.Set(initial))
	}
	holder, err := NewModeHolder(store)
	require.NoError(t, err)
	return holder
}

// shortSocketPath keeps unix socket paths under the platform length limit.
func shortSocketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "fmd")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, infra.SocketFileName)
}

// countingEnforcer counts ticks and can be told to panic on the next one.
type countingEnforcer struct {
	ticks      atomic.Int32
	panicsLeft atomic.Int32
}

func (e *countingEnforcer) Tick(ctx context.Context) domain.TickResult {
	e.ticks.Add(1)
	if e.panicsLeft.Load() > 0 {
		e.panicsLeft.Add(-1)
		panic("enforcer exploded")
	}
	return domain.TickResult{Mode: "social", Targeted: []string{"Messages"}}
}

// countingSampler counts samples.
type countingSampler struct {
	samples atomic.Int32
}

func (s *countingSampler) Sample(ctx context.Context) domain.ActivitySample {
	s.samples.Add(1)
	return domain.ActivitySample{Processes: []string{"Terminal"}}
}

// mockRegistry is an in-memory SupervisorRegistry.
type mockRegistry struct {
	mu         sync.Mutex
	supervisor *domain.Supervisor
	heartbeats int
	lastMode   string
	cleared    bool
}

func (r *mockRegistry) Register(s domain.Supervisor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.supervisor = &s
	r.cleared = false
	return nil
}

func (r *mockRegistry) Get() (*domain.Supervisor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.supervisor, nil
}

func (r *mockRegistry) UpdateHeartbeat(mode, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.heartbeats++
	r.lastMode = mode
	return nil
}

func (r *mockRegistry) IsAlive() bool { return false }

func (r *mockRegistry) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.supervisor = nil
	r.cleared = true
	return nil
}

func (r *mockRegistry) GetRegistryPath() string { return "/tmp/supervisor.json" }

func (r *mockRegistry) Heartbeats() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.heartbeats
}

func (r *mockRegistry) Cleared() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cleared
}

// fakeController drives a ModeHolder and LoopSupervisor like the real controller.
type fakeController struct {
	mu          sync.Mutex
	holder      *ModeHolder
	loops       *LoopSupervisor
	known       map[string]bool
	sessionID   string
	deactivates int
	resumed     string
}

func (c *fakeController) Activate(ctx context.Context, mode string, opts domain.ActivationOptions) (domain.ActivationResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.known[mode] {
		return domain.ActivationResult{Mode: mode, Outcome: domain.OutcomeModeNotFound}, nil
	}
	if err := c.holder.Set(mode); err != nil {
		return domain.ActivationResult{}, err
	}
	c.sessionID = "session-" + mode
	c.loops.StartLoops(mode, c.sessionID, opts.Monitor)
	return domain.ActivationResult{
		Mode:      mode,
		Outcome:   domain.OutcomeOK,
		SessionID: c.sessionID,
		Network:   domain.StepReport{Step: domain.StepNetwork, Status: domain.StepSkipped},
	}, nil
}

func (c *fakeController) Deactivate(ctx context.Context) domain.DeactivationReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deactivates++
	_ = c.holder.Clear()
	c.loops.StopLoops(ctx)
	c.sessionID = ""
	return domain.DeactivationReport{Steps: []domain.StepReport{
		{Step: domain.StepState, Status: domain.StepOK},
		{Step: domain.StepNetwork, Status: domain.StepOK},
	}}
}

func (c *fakeController) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	mode := c.holder.Current()
	return domain.Status{Active: mode != "", Mode: mode, SessionID: c.sessionID, Loops: c.loops.Loops()}
}

func (c *fakeController) ResumeSession(mode string, withMonitor bool) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resumed = mode
	c.sessionID = "resumed"
	c.loops.StartLoops(mode, c.sessionID, withMonitor)
	return c.sessionID
}

func (c *fakeController) Resumed() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resumed
}

type daemonFixture struct {
	holder   *ModeHolder
	enforcer *countingEnforcer
	sampler  *countingSampler
	loops    *LoopSupervisor
	metrics  *Metrics
	ctrl     *fakeController
}

func newDaemonFixture(t *testing.T, initial string) *daemonFixture {
	t.Helper()
	f := &daemonFixture{
		holder:   newTestHolder(t, initial),
		enforcer: &countingEnforcer{},
		sampler:  &countingSampler{},
		metrics:  NewMetrics(),
	}
	f.loops = NewLoopSupervisor(
		LoopConfig{EnforcerInterval: 10 * time.Millisecond, MonitorInterval: 10 * time.Millisecond},
		f.holder,
		f.enforcer,
		func(string) Sampler { return f.sampler },
		f.metrics,
		zap.NewNop(),
	)
	f.ctrl = &fakeController{
		holder: f.holder,
		loops:  f.loops,
		known:  map[string]bool{"social": true, "productivity": true},
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
		defer cancel()
		f.loops.StopLoops(ctx)
	})
	return f
}
