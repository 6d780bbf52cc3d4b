// Package main is the CLI entry point for focusmode.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/focusmode/internal/config"
	"github.com/eliteGoblin/focusd/focusmode/internal/daemon"
	"github.com/eliteGoblin/focusd/focusmode/internal/domain"
	"github.com/eliteGoblin/focusd/focusmode/internal/infra"
	"github.com/eliteGoblin/focusd/focusmode/internal/policy"
	"github.com/eliteGoblin/focusd/focusmode/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "focusmode",
	Short: "Focus modes - only the apps you allow keep running",
	Long: `focusmode activates a named focus mode. While a mode is active a
background supervisor politely quits every application that is neither in
the mode's allow-list nor essential to the system, blocks the mode's
distracting websites through the hosts file, and records which programs
and browser tabs you actually used.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

// Hidden daemon command - spawned by activate
var daemonCmd = &cobra.Command{
	Use:    "daemon",
	Hidden: true,
	RunE:   runDaemon,
}

var (
	dataDirFlag string
	configFlag  string
	jsonOutput  bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "State directory (default ~/.focusmode, /var/lib/focusmode as root)")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default <data-dir>/config.yaml)")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(daemonCmd)
}

// app bundles the resolved paths and configuration for one command.
type app struct {
	paths      *infra.ExecModeConfig
	cfg        *config.Config
	configPath string
}

func loadApp() (*app, error) {
	paths := infra.DetectExecMode()
	if dataDirFlag != "" {
		paths = infra.NewExecModeConfigWithDataDir(dataDirFlag)
	}

	configPath := configFlag
	if configPath == "" {
		configPath = filepath.Join(paths.DataDir, config.FileName)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return &app{paths: paths, cfg: cfg, configPath: configPath}, nil
}

func (a *app) modes() *infra.FileModeStore {
	return infra.NewFileModeStore(a.paths)
}

// seedModes creates the data directory and any missing built-in mode, so
// activate and list work before init has been run. Existing files are kept.
func (a *app) seedModes() ([]string, error) {
	if err := a.paths.EnsureDirs(); err != nil {
		return nil, err
	}
	return infra.SeedBuiltins(a.modes(), policy.NewRegistry())
}

func (a *app) client(timeout time.Duration) *daemon.Client {
	return daemon.NewClient(a.paths.SocketPath(), timeout)
}

// networkBlocker returns nil when network blocking is disabled in config.
// The returned close func releases the vault.
func (a *app) networkBlocker(logger *zap.Logger) (domain.NetworkBlocker, func()) {
	if !a.cfg.Network.Enabled {
		return nil, func() {}
	}
	var secrets domain.SecretStore
	vault, err := infra.OpenVault(a.paths.DataDir)
	if err != nil {
		logger.Warn("vault unavailable, using passwordless sudo", zap.Error(err))
	} else {
		secrets = vault
	}
	runner := infra.NewSudoRunner(secrets, a.cfg.Network.PrivilegeTimeout, logger)
	closeFn := func() {
		if vault != nil {
			vault.Close()
		}
	}
	return infra.NewHostsFileBlocker(a.cfg.Network.HostsFile, runner, logger), closeFn
}

func (a *app) controllerConfig() usecase.ControllerConfig {
	return usecase.ControllerConfig{
		GracePeriod: a.cfg.Teardown.GracePeriod,
		StepTimeout: a.cfg.Teardown.StepTimeout,
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	if err := a.paths.EnsureDirs(); err != nil {
		return err
	}

	logger := createLogger(a.paths.LogsDir())
	defer func() { _ = logger.Sync() }()

	// Initialize infrastructure
	pm := infra.NewProcessManager()
	holder, err := daemon.NewModeHolder(infra.NewFileStateStore(a.paths.StatePath()))
	if err != nil {
		logger.Error("failed to read mode state", zap.Error(err))
		return err
	}
	modes := a.modes()
	apps := infra.NewAppManager()
	essential := policy.NewEssentialSet(a.cfg.Essential.Extra...)
	enforcer := usecase.NewProcessEnforcer(holder, modes, apps, essential, logger)
	metrics := daemon.NewMetrics()

	network, closeVault := a.networkBlocker(logger)
	defer closeVault()

	var sessions usecase.SessionRecorder
	var newMonitor daemon.MonitorFactory
	store, err := infra.NewActivityStore(a.paths.ActivityDBPath())
	if err != nil {
		logger.Warn("activity store unavailable", zap.Error(err))
	} else {
		defer store.Close()
		sessions = store
	}
	if a.cfg.Monitor.Enabled {
		sinks := []domain.ActivitySink{}
		if store != nil {
			sinks = append(sinks, store)
		}
		activityLog, err := infra.NewActivityLog(a.paths.LogsDir())
		if err != nil {
			logger.Warn("activity log unavailable", zap.Error(err))
		} else {
			defer activityLog.Close()
			sinks = append(sinks, activityLog)
		}
		tabs := infra.NewTabSources(a.cfg.Monitor.Browsers, apps)
		newMonitor = func(sessionID string) daemon.Sampler {
			return usecase.NewActivityMonitor(holder, sessionID, pm, tabs, sinks, logger)
		}
	}

	loops := daemon.NewLoopSupervisor(daemon.LoopConfig{
		EnforcerInterval: a.cfg.Enforcer.Interval,
		MonitorInterval:  a.cfg.Monitor.Interval,
	}, holder, enforcer, newMonitor, metrics, logger)

	controller := usecase.NewController(usecase.ControllerDeps{
		State:    holder,
		Modes:    modes,
		Network:  network,
		Loops:    loops,
		Sweeper:  infra.NewPatternSweeper(pm, a.cfg.Supervisor.ExtraPatterns, nil, logger),
		Sessions: sessions,
	}, a.controllerConfig(), logger)

	supervisor := daemon.NewSupervisor(daemon.SupervisorConfig{
		SocketPath:     a.paths.SocketPath(),
		ExecMode:       string(a.paths.Mode),
		AppVersion:     Version,
		MonitorEnabled: a.cfg.Monitor.Enabled,
		Guardian: daemon.GuardianConfig{
			GuardInterval:     a.cfg.Supervisor.GuardInterval,
			HeartbeatInterval: a.cfg.Supervisor.HeartbeatInterval,
		},
	}, holder, controller, loops, infra.NewFileRegistry(a.paths.RegistryPath(), pm), metrics, logger)

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
	}()

	return supervisor.Run(ctx)
}

func createLogger(logsDir string) *zap.Logger {
	zapConfig := zap.NewProductionConfig()
	zapConfig.OutputPaths = []string{filepath.Join(logsDir, infra.DaemonLogName)}
	zapConfig.ErrorOutputPaths = []string{filepath.Join(logsDir, infra.DaemonLogName)}
	zapConfig.EncoderConfig.TimeKey = "time"
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapConfig.Build()
	if err != nil {
		// Fallback to stdout if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

// cliLogger is used by one-shot commands.
func cliLogger() *zap.Logger {
	logger, err := zap.NewDevelopment(zap.IncreaseLevel(zapcore.WarnLevel))
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("focusmode %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
