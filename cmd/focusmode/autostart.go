package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/focusmode/internal/infra"
)

var autostartCmd = &cobra.Command{
	Use:   "autostart",
	Short: "Start the supervisor at login",
	Long: `Registers the supervisor with launchd (macOS) or systemd (Linux) so it
starts at login and is restarted if it crashes. A supervisor started this way
resumes the mode that was active before.`,
}

var autostartInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install or refresh the login service",
	Args:  cobra.NoArgs,
	RunE:  runAutostartInstall,
}

var autostartUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the login service",
	Args:  cobra.NoArgs,
	RunE:  runAutostartUninstall,
}

var autostartStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the login service is installed",
	Args:  cobra.NoArgs,
	RunE:  runAutostartStatus,
}

func init() {
	autostartCmd.AddCommand(autostartInstallCmd)
	autostartCmd.AddCommand(autostartUninstallCmd)
	autostartCmd.AddCommand(autostartStatusCmd)
	rootCmd.AddCommand(autostartCmd)
}

func autostartManager() (*infra.AutostartManager, error) {
	a, err := loadApp()
	if err != nil {
		return nil, err
	}
	return infra.NewAutostartManager(a.paths, runtime.GOOS), nil
}

func executablePath() (string, error) {
	path, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(path)
}

func runAutostartInstall(cmd *cobra.Command, args []string) error {
	m, err := autostartManager()
	if err != nil {
		return err
	}
	execPath, err := executablePath()
	if err != nil {
		return fmt.Errorf("failed to resolve executable: %w", err)
	}

	if m.IsInstalled() && !m.NeedsUpdate(execPath) {
		fmt.Printf("Already installed: %s\n", m.Path())
		return nil
	}
	if err := m.Install(cmd.Context(), execPath); err != nil {
		return fmt.Errorf("failed to install login service: %w", err)
	}
	fmt.Printf("Installed %s\n", m.Path())
	return nil
}

func runAutostartUninstall(cmd *cobra.Command, args []string) error {
	m, err := autostartManager()
	if err != nil {
		return err
	}
	if err := m.Uninstall(cmd.Context()); err != nil {
		return err
	}
	fmt.Println("Login service removed.")
	return nil
}

func runAutostartStatus(cmd *cobra.Command, args []string) error {
	m, err := autostartManager()
	if err != nil {
		return err
	}
	if !m.IsInstalled() {
		fmt.Println("Login service: not installed")
		return nil
	}
	fmt.Printf("Login service: installed (%s)\n", m.Path())
	if execPath, err := executablePath(); err == nil && m.NeedsUpdate(execPath) {
		fmt.Println("Outdated: run 'focusmode autostart install' to refresh.")
	}
	return nil
}
