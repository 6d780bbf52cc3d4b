package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focusmode/internal/daemon"
	"github.com/eliteGoblin/focusd/focusmode/internal/domain"
	"github.com/eliteGoblin/focusd/focusmode/internal/infra"
	"github.com/eliteGoblin/focusd/focusmode/internal/policy"
	"github.com/eliteGoblin/focusd/focusmode/internal/usecase"
)

const (
	// requestTimeout bounds a single control API call.
	requestTimeout = 10 * time.Second
	// spawnTimeout bounds waiting for a freshly spawned supervisor.
	spawnTimeout = 5 * time.Second
	// deactivateTimeout bounds waiting for the supervisor's teardown report.
	deactivateTimeout = 30 * time.Second
)

var activateCmd = &cobra.Command{
	Use:   "activate <mode>",
	Short: "Activate a focus mode",
	Long: `Activates a mode: starts the supervisor if needed, records the mode,
blocks the mode's websites and starts quitting apps not in its allow-list.
Without administrator rights website blocking is skipped; app enforcement
still runs.`,
	Args: cobra.ExactArgs(1),
	RunE: runActivate,
}

var deactivateCmd = &cobra.Command{
	Use:   "deactivate",
	Short: "Deactivate the current mode",
	Long: `Stops enforcement, restores the hosts file and terminates any stale
enforcement processes. Safe to run at any time, even when nothing is active.`,
	Args: cobra.NoArgs,
	RunE: runDeactivate,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active mode",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one enforcement pass now",
	Long: `Runs a single enforcement pass for the active mode in the foreground.
With --dry-run, only reports which apps would be asked to quit.`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

var (
	noNetwork  bool
	noMonitor  bool
	statusJSON bool
	dryRun     bool
)

func init() {
	activateCmd.Flags().BoolVar(&noNetwork, "no-network", false, "Do not block websites")
	activateCmd.Flags().BoolVar(&noMonitor, "no-monitor", false, "Do not record activity")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output status as JSON")
	scanCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report targets without quitting them")

	rootCmd.AddCommand(activateCmd)
	rootCmd.AddCommand(deactivateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(scanCmd)
}

func runActivate(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	if _, err := a.seedModes(); err != nil {
		return err
	}
	mode := policy.NormalizeModeName(args[0])
	if !a.modes().Exists(mode) {
		return fmt.Errorf("%w: %q (run 'focusmode list' to see available modes)", domain.ErrModeNotFound, args[0])
	}

	ctx := cmd.Context()
	client := a.client(requestTimeout)
	started, err := daemon.EnsureRunning(ctx, client, func() error {
		return daemon.StartDaemon(a.paths.DataDir, configFlag)
	}, spawnTimeout)
	if err != nil {
		return fmt.Errorf("failed to start supervisor: %w", err)
	}
	if started {
		fmt.Println("Supervisor started.")
	}

	res, err := client.Activate(ctx, mode, domain.ActivationOptions{
		BlockNetwork: a.cfg.Network.Enabled && !noNetwork,
		Monitor:      a.cfg.Monitor.Enabled && !noMonitor,
	})
	if err != nil {
		return err
	}

	switch res.Outcome {
	case domain.OutcomeModeNotFound:
		return fmt.Errorf("%w: %q", domain.ErrModeNotFound, mode)
	case domain.OutcomeInsufficientPrivilege:
		fmt.Printf("Mode %q activated.\n", res.Mode)
		fmt.Println("Warning: website blocking skipped (administrator rights required).")
		fmt.Println("         Run 'focusmode password set' or activate with sudo.")
	default:
		fmt.Printf("Mode %q activated.\n", res.Mode)
		fmt.Printf("Websites: %s", res.Network.Status)
		if res.Network.Detail != "" {
			fmt.Printf(" (%s)", res.Network.Detail)
		}
		fmt.Println()
	}
	return nil
}

// runDeactivate never fails: every step is reported and the command exits 0.
func runDeactivate(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	logger := cliLogger()
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	report, err := a.client(deactivateTimeout).Deactivate(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrSupervisorUnavailable) {
			logger.Warn("supervisor deactivate failed, tearing down locally", zap.Error(err))
		}
		report = deactivateLocally(ctx, a, logger)
	}
	printReport(report)

	// Local sweep for loops the supervisor could not see (older processes, legacy scripts).
	sweeper := infra.NewPatternSweeper(infra.NewProcessManager(), a.cfg.Supervisor.ExtraPatterns, nil, logger)
	terminated, killed, err := sweeper.Sweep(ctx, a.cfg.Teardown.GracePeriod)
	if err != nil {
		fmt.Printf("  %-12s %s (%v)\n", "local_sweep", domain.StepFailed, err)
	} else if terminated > 0 {
		fmt.Printf("  %-12s %s (%d terminated, %d killed)\n", "local_sweep", domain.StepOK, terminated, killed)
	}
	fmt.Println("Focus mode deactivated.")
	return nil
}

// deactivateLocally runs the controller's teardown without any loops of its own.
func deactivateLocally(ctx context.Context, a *app, logger *zap.Logger) domain.DeactivationReport {
	network, closeVault := a.networkBlocker(logger)
	defer closeVault()

	controller := usecase.NewController(usecase.ControllerDeps{
		State:   infra.NewFileStateStore(a.paths.StatePath()),
		Modes:   a.modes(),
		Network: network,
		Sweeper: infra.NewPatternSweeper(infra.NewProcessManager(), a.cfg.Supervisor.ExtraPatterns, nil, logger),
	}, a.controllerConfig(), logger)
	report := controller.Deactivate(ctx)

	registry := infra.NewFileRegistry(a.paths.RegistryPath(), infra.NewProcessManager())
	if !registry.IsAlive() {
		_ = registry.Clear()
	}
	return report
}

func printReport(report domain.DeactivationReport) {
	for _, step := range report.Steps {
		line := fmt.Sprintf("  %-12s %s", step.Step, step.Status)
		if step.Detail != "" {
			line += " (" + step.Detail + ")"
		}
		fmt.Println(line)
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	supervisorUp := true
	st, err := a.client(requestTimeout).Status(cmd.Context())
	if err != nil {
		supervisorUp = false
		mode, _ := infra.NewFileStateStore(a.paths.StatePath()).Get()
		st = domain.Status{Active: mode != "", Mode: mode}
	}

	if statusJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			domain.Status
			Supervisor bool `json:"supervisor"`
		}{st, supervisorUp})
	}

	fmt.Println("\n=== focusmode Status ===")
	if !st.Active {
		fmt.Println("Status: INACTIVE")
		fmt.Println("\nRun 'focusmode activate <mode>' to start.")
		fmt.Println("========================")
		return nil
	}

	fmt.Printf("Mode: %s\n", st.Mode)
	switch {
	case !supervisorUp:
		fmt.Println("Status: ACTIVE (enforcer not running)")
		fmt.Println("        Run 'focusmode activate " + st.Mode + "' to resume or 'focusmode deactivate'.")
	case len(st.Loops) == 0:
		fmt.Println("Status: ACTIVE (no loops running)")
	default:
		fmt.Println("Status: ACTIVE")
	}
	if !st.ActivatedAt.IsZero() {
		fmt.Printf("Active for: %s\n", time.Since(st.ActivatedAt).Round(time.Second))
	}
	for _, l := range st.Loops {
		fmt.Printf("  - %s (since %s, restarts %d)\n", l.Role, l.StartedAt.Format(time.Kitchen), l.Restarts)
	}
	fmt.Println("========================")
	return nil
}

// dryRunApps lists apps but never quits them.
type dryRunApps struct {
	domain.AppManager
}

func (dryRunApps) Quit(ctx context.Context, name string) error { return nil }

func runScan(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	logger := cliLogger()
	defer func() { _ = logger.Sync() }()

	var apps domain.AppManager = infra.NewAppManager()
	if dryRun {
		apps = dryRunApps{apps}
	}
	enforcer := usecase.NewProcessEnforcer(
		infra.NewFileStateStore(a.paths.StatePath()),
		a.modes(),
		apps,
		policy.NewEssentialSet(a.cfg.Essential.Extra...),
		logger,
	)

	fmt.Println("\n=== Running Enforcement Pass ===")
	result := enforcer.Tick(cmd.Context())
	if result.Skipped {
		fmt.Printf("Skipped: %s\n", describeSkip(result.SkipReason))
		fmt.Println("================================")
		return nil
	}

	fmt.Printf("Mode: %s\n", result.Mode)
	fmt.Printf("Running apps: %d\n", result.Observed)
	if len(result.Targeted) == 0 {
		fmt.Println("\nEverything running is allowed.")
	} else {
		verb := "Asked to quit"
		if dryRun {
			verb = "Would quit"
		}
		fmt.Printf("\n%s: %s\n", verb, strings.Join(result.Targeted, ", "))
	}
	if len(result.Failed) > 0 {
		fmt.Printf("Failed: %s\n", strings.Join(result.Failed, ", "))
	}
	fmt.Println("================================")
	return nil
}

func describeSkip(reason domain.SkipReason) string {
	switch reason {
	case domain.SkipInactive:
		return "no mode is active"
	case domain.SkipMissingConfig:
		return "the active mode has no allow-list file"
	case domain.SkipNoObservation:
		return "could not list running apps"
	default:
		return string(reason)
	}
}
