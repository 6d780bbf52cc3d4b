package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/focusmode/internal/domain"
)

// mockState implements domain.StateStore in memory.
type mockState struct {
	mu       sync.Mutex
	mode     string
	setErr   error
	clearErr error
}

func (m *mockState) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

func (m *mockState) Get() (string, error) { return m.Current(), nil }

func (m *mockState) Set(mode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.mode = mode
	return nil
}

func (m *mockState) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clearErr != nil {
		return m.clearErr
	}
	m.mode = ""
	return nil
}

func (m *mockState) Path() string { return "/tmp/current_mode" }

// mockModeStore implements domain.ModeStore from maps.
type mockModeStore struct {
	allow   map[string][]string
	tables  map[string]*domain.BlockTable
	readErr error
}

func newMockModeStore() *mockModeStore {
	return &mockModeStore{
		allow:  make(map[string][]string),
		tables: make(map[string]*domain.BlockTable),
	}
}

func (m *mockModeStore) AllowList(name string) ([]string, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	names, ok := m.allow[name]
	if !ok {
		return nil, domain.ErrModeNotFound
	}
	return names, nil
}

func (m *mockModeStore) BlockTable(name string) (*domain.BlockTable, error) {
	return m.tables[name], nil
}

func (m *mockModeStore) Exists(name string) bool {
	_, ok := m.allow[name]
	return ok
}

func (m *mockModeStore) List() ([]string, error) {
	var out []string
	for n := range m.allow {
		out = append(out, n)
	}
	return out, nil
}

func (m *mockModeStore) Save(def domain.ModeDefinition) error {
	m.allow[def.Name] = def.AllowList
	m.tables[def.Name] = def.BlockTable
	return nil
}

func (m *mockModeStore) Delete(name string) error {
	delete(m.allow, name)
	return nil
}

// mockAppManager returns a fixed app list and records quit requests.
type mockAppManager struct {
	mu       sync.Mutex
	running  []string
	listErr  error
	quitErr  map[string]error
	quitted  []string
	listCall int
}

func (m *mockAppManager) ListForeground(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCall++
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]string(nil), m.running...), nil
}

func (m *mockAppManager) Quit(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quitted = append(m.quitted, name)
	if err, ok := m.quitErr[strings.ToLower(name)]; ok {
		return err
	}
	return nil
}

func (m *mockAppManager) Quitted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.quitted...)
}

// mockNetwork records applies and reverts; hang blocks until ctx ends and
// delay makes Apply take that long, as a slow escalation would.
type mockNetwork struct {
	mu       sync.Mutex
	applyErr error
	revertEr error
	hang     bool
	delay    time.Duration
	applied  []*domain.BlockTable
	reverts  int
	content  string
}

func (m *mockNetwork) Apply(ctx context.Context, table *domain.BlockTable) error {
	if m.hang {
		<-ctx.Done()
		return ctx.Err()
	}
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applyErr != nil {
		return m.applyErr
	}
	m.applied = append(m.applied, table)
	m.content = "blocked"
	return nil
}

func (m *mockNetwork) Revert(ctx context.Context) error {
	if m.hang {
		<-ctx.Done()
		return ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reverts++
	if m.revertEr != nil {
		return m.revertEr
	}
	m.content = "minimal"
	return nil
}

// mockLoops is an in-memory LoopRunner.
type mockLoops struct {
	mu      sync.Mutex
	running []domain.LoopInfo
	starts  int
}

func (m *mockLoops) StartLoops(mode, sessionID string, withMonitor bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
	// Starting replaces whatever was running.
	m.running = []domain.LoopInfo{{Role: domain.LoopEnforcer, Mode: mode, StartedAt: time.Now()}}
	if withMonitor {
		m.running = append(m.running, domain.LoopInfo{Role: domain.LoopMonitor, Mode: mode, StartedAt: time.Now()})
	}
}

func (m *mockLoops) StopLoops(ctx context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.running)
	m.running = nil
	return n
}

func (m *mockLoops) Loops() []domain.LoopInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.LoopInfo(nil), m.running...)
}

// mockSweeper counts sweeps.
type mockSweeper struct {
	calls      int
	terminated int
	killed     int
	err        error
}

func (m *mockSweeper) Sweep(ctx context.Context, grace time.Duration) (int, int, error) {
	m.calls++
	return m.terminated, m.killed, m.err
}

// mockSessions records session boundaries.
type mockSessions struct {
	started []string
	ended   []string
}

func (m *mockSessions) StartSession(id, mode string, at time.Time) error {
	m.started = append(m.started, id)
	return nil
}

func (m *mockSessions) EndSession(id string, at time.Time) error {
	m.ended = append(m.ended, id)
	return nil
}

// mockSink collects samples.
type mockSink struct {
	samples []domain.ActivitySample
	err     error
}

func (m *mockSink) Record(s domain.ActivitySample) error {
	m.samples = append(m.samples, s)
	return m.err
}

// mockTabs is a TabSource with fixed output.
type mockTabs struct {
	browser string
	titles  []string
	err     error
}

func (m *mockTabs) Browser() string { return m.browser }

func (m *mockTabs) Titles(ctx context.Context) ([]string, error) { return m.titles, m.err }

// mockLister is a ProcessLister with fixed output.
type mockLister struct {
	names []string
	err   error
}

func (m *mockLister) Names(ctx context.Context) ([]string, error) { return m.names, m.err }

var errBoom = errors.New("boom")

var (
	_ domain.StateStore     = (*mockState)(nil)
	_ domain.ModeStore      = (*mockModeStore)(nil)
	_ domain.AppManager     = (*mockAppManager)(nil)
	_ domain.NetworkBlocker = (*mockNetwork)(nil)
	_ domain.LoopRunner     = (*mockLoops)(nil)
	_ domain.LoopSweeper    = (*mockSweeper)(nil)
	_ domain.ActivitySink   = (*mockSink)(nil)
	_ domain.TabSource      = (*mockTabs)(nil)
	_ SessionRecorder       = (*mockSessions)(nil)
)
