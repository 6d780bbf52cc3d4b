package infra

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/focusmode/internal/domain"
)

// mockProcessManager is a test double for ProcessManager
type mockProcessManager struct {
	mu          sync.Mutex
	runningPIDs map[int]bool
	cmdlines    map[int]string
	names       []string
	terminated  []int
	killedPIDs  []int
	// ignoreTerm keeps a PID running after SIGTERM
	ignoreTerm map[int]bool
}

func newMockProcessManager() *mockProcessManager {
	return &mockProcessManager{
		runningPIDs: make(map[int]bool),
		cmdlines:    make(map[int]string),
		ignoreTerm:  make(map[int]bool),
	}
}

func (m *mockProcessManager) FindByCmdline(patterns []string) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found []int
	for pid, cmd := range m.cmdlines {
		if !m.runningPIDs[pid] {
			continue
		}
		for _, p := range patterns {
			if strings.Contains(cmd, p) {
				found = append(found, pid)
				break
			}
		}
	}
	return found, nil
}

func (m *mockProcessManager) Names(ctx context.Context) ([]string, error) {
	return m.names, nil
}

func (m *mockProcessManager) Terminate(pid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.terminated = append(m.terminated, pid)
	if !m.ignoreTerm[pid] {
		delete(m.runningPIDs, pid)
	}
	return nil
}

func (m *mockProcessManager) Kill(pid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.killedPIDs = append(m.killedPIDs, pid)
	delete(m.runningPIDs, pid)
	return nil
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runningPIDs[pid]
}

func (m *mockProcessManager) GetCurrentPID() int {
	return os.Getpid()
}

func (m *mockProcessManager) SetRunning(pid int, running bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runningPIDs[pid] = running
}

func (m *mockProcessManager) addProcess(pid int, cmdline string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runningPIDs[pid] = true
	m.cmdlines[pid] = cmdline
}

// mockCommandRunner records commands instead of executing them.
type mockCommandRunner struct {
	mu       sync.Mutex
	calls    []string
	stdins   [][]byte
	outputs  map[string][]byte
	failures map[string]error
}

func newMockCommandRunner() *mockCommandRunner {
	return &mockCommandRunner{
		outputs:  make(map[string][]byte),
		failures: make(map[string]error),
	}
}

func (m *mockCommandRunner) key(name string, args ...string) string {
	return strings.TrimSpace(name + " " + strings.Join(args, " "))
}

func (m *mockCommandRunner) Run(ctx context.Context, stdin []byte, name string, args ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.key(name, args...)
	m.calls = append(m.calls, k)
	m.stdins = append(m.stdins, stdin)
	return m.failureFor(k)
}

func (m *mockCommandRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.key(name, args...)
	m.calls = append(m.calls, k)
	if err := m.failureFor(k); err != nil {
		return nil, err
	}
	for prefix, out := range m.outputs {
		if strings.HasPrefix(k, prefix) {
			return out, nil
		}
	}
	return nil, nil
}

// failureFor matches on command prefix so callers can fail "sudo -n" for any args.
func (m *mockCommandRunner) failureFor(k string) error {
	for prefix, err := range m.failures {
		if strings.HasPrefix(k, prefix) {
			return err
		}
	}
	return nil
}

func (m *mockCommandRunner) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// mockSecretStore is an in-memory SecretStore.
type mockSecretStore struct {
	secrets map[string]string
}

func newMockSecretStore() *mockSecretStore {
	return &mockSecretStore{secrets: make(map[string]string)}
}

func (m *mockSecretStore) GetSecret(key string) (string, error) {
	v, ok := m.secrets[key]
	if !ok {
		return "", domain.ErrSecretNotFound
	}
	return v, nil
}

func (m *mockSecretStore) SetSecret(key, value string) error {
	m.secrets[key] = value
	return nil
}

func (m *mockSecretStore) DeleteSecret(key string) error {
	delete(m.secrets, key)
	return nil
}

func (m *mockSecretStore) Close() error { return nil }

var _ domain.ProcessManager = (*mockProcessManager)(nil)
var _ CommandRunner = (*mockCommandRunner)(nil)
var _ domain.SecretStore = (*mockSecretStore)(nil)

const defaultTestTimeout = 5 * time.Second
