package daemon

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focusmode/internal/domain"
)

func newTestSupervisor(t *testing.T, f *daemonFixture, registry *mockRegistry) (*Supervisor, *Client) {
	t.Helper()
	socket := shortSocketPath(t)
	s := NewSupervisor(SupervisorConfig{
		SocketPath:     socket,
		ExecMode:       "user",
		AppVersion:     "test",
		MonitorEnabled: true,
		Guardian: GuardianConfig{
			GuardInterval:     20 * time.Millisecond,
			HeartbeatInterval: 20 * time.Millisecond,
		},
	}, f.holder, f.ctrl, f.loops, registry, f.metrics, zap.NewNop())
	return s, NewClient(socket, defaultTestTimeout)
}

func TestSupervisor_ResumesPersistedMode(t *testing.T) {
	f := newDaemonFixture(t, "social")
	registry := &mockRegistry{}
	s, client := newTestSupervisor(t, f, registry)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return client.Health(context.Background()) == nil },
		defaultTestTimeout, 10*time.Millisecond)

	st, err := client.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Active)
	assert.Equal(t, "resumed", st.SessionID)
	assert.Equal(t, "social", f.ctrl.Resumed())

	sup, err := registry.Get()
	require.NoError(t, err)
	require.NotNil(t, sup)
	assert.Equal(t, os.Getpid(), sup.PID)
	assert.Equal(t, "social", sup.Mode)

	cancel()
	require.NoError(t, <-done)
	assert.True(t, registry.Cleared())
	assert.Empty(t, f.loops.Loops())
	assert.Equal(t, "social", f.holder.Current(), "a signal stop keeps Mode State for the next supervisor")
}

func TestSupervisor_ExitsAfterDeactivate(t *testing.T) {
	f := newDaemonFixture(t, "")
	registry := &mockRegistry{}
	s, client := newTestSupervisor(t, f, registry)

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	require.Eventually(t, func() bool { return client.Health(context.Background()) == nil },
		defaultTestTimeout, 10*time.Millisecond)
	assert.Empty(t, f.ctrl.Resumed(), "nothing to resume from an empty state")

	_, err := client.Activate(context.Background(), "productivity", domain.ActivationOptions{Monitor: true})
	require.NoError(t, err)

	report, err := client.Deactivate(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, report.Steps)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(defaultTestTimeout):
		t.Fatal("supervisor did not exit after deactivate")
	}
	assert.Empty(t, f.holder.Current())
	assert.True(t, registry.Cleared())
	assert.ErrorIs(t, client.Health(context.Background()), domain.ErrSupervisorUnavailable)
}
