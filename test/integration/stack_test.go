//go:build integration

package integration

import (
	"context"
	"os"
	"runtime"
	"time"

	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focusmode/internal/daemon"
	"github.com/eliteGoblin/focusd/focusmode/internal/domain"
	"github.com/eliteGoblin/focusd/focusmode/internal/infra"
	"github.com/eliteGoblin/focusd/focusmode/internal/policy"
	"github.com/eliteGoblin/focusd/focusmode/internal/usecase"
	"github.com/eliteGoblin/focusd/focusmode/test/fixtures"
)

const (
	tickInterval = 20 * time.Millisecond
	waitTimeout  = 5 * time.Second
)

// stack is a complete in-process supervisor over a temp data directory.
// Only the desktop and the privileged runner are fakes.
type stack struct {
	root     string
	dir      *fixtures.DataDir
	desktop  *fixtures.FakeDesktop
	runner   *fixtures.FileRunner
	holder   *daemon.ModeHolder
	registry *infra.FileRegistry
	client   *daemon.Client

	cancel context.CancelFunc
	done   chan error
}

func newStack(apps ...string) *stack {
	// os.MkdirTemp("", ...) keeps the socket path short.
	root, err := os.MkdirTemp("", "fmi")
	Expect(err).NotTo(HaveOccurred())
	dir, err := fixtures.NewDataDir(root)
	Expect(err).NotTo(HaveOccurred())

	return &stack{
		root:     root,
		dir:      dir,
		desktop:  fixtures.NewFakeDesktop(apps...),
		runner:   &fixtures.FileRunner{},
		registry: infra.NewFileRegistry(dir.Paths.RegistryPath(), infra.NewProcessManager()),
		client:   daemon.NewClient(dir.Paths.SocketPath(), waitTimeout),
	}
}

// start runs the supervisor until stop or a deactivate request.
func (s *stack) start() {
	logger := zap.NewNop()
	var err error
	s.holder, err = daemon.NewModeHolder(infra.NewFileStateStore(s.dir.Paths.StatePath()))
	Expect(err).NotTo(HaveOccurred())

	modes := s.dir.Modes()
	metrics := daemon.NewMetrics()
	enforcer := usecase.NewProcessEnforcer(s.holder, modes, s.desktop, policy.NewEssentialSet(), logger)
	loops := daemon.NewLoopSupervisor(daemon.LoopConfig{
		EnforcerInterval: tickInterval,
		MonitorInterval:  tickInterval,
	}, s.holder, enforcer, nil, metrics, logger)

	noFlush := func(string) (string, error) { return "", os.ErrNotExist }
	var network domain.NetworkBlocker = infra.NewHostsFileBlockerWithDeps(s.dir.HostsPath, s.runner, runtime.GOOS, noFlush, logger)

	controller := usecase.NewController(usecase.ControllerDeps{
		State:   s.holder,
		Modes:   modes,
		Network: network,
		Loops:   loops,
	}, usecase.ControllerConfig{GracePeriod: 100 * time.Millisecond, StepTimeout: time.Second}, logger)

	supervisor := daemon.NewSupervisor(daemon.SupervisorConfig{
		SocketPath: s.dir.Paths.SocketPath(),
		ExecMode:   string(s.dir.Paths.Mode),
		AppVersion: "integration",
		Guardian: daemon.GuardianConfig{
			GuardInterval:     tickInterval,
			HeartbeatInterval: tickInterval,
		},
	}, s.holder, controller, loops, s.registry, metrics, logger)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan error, 1)
	go func() { s.done <- supervisor.Run(ctx) }()

	Eventually(func() error { return s.client.Health(context.Background()) }, waitTimeout, 10*time.Millisecond).
		Should(Succeed())
}

// stop cancels the supervisor (a signal stop) and waits for it.
func (s *stack) stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	Eventually(s.done, waitTimeout).Should(Receive(BeNil()))
	s.cancel = nil
}

func (s *stack) cleanup() {
	if s == nil {
		return
	}
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	os.RemoveAll(s.root)
}

// waitExit waits for a supervisor that stops on its own (after deactivate).
func (s *stack) waitExit() {
	Eventually(s.done, waitTimeout).Should(Receive(BeNil()))
	s.cancel()
	s.cancel = nil
}
