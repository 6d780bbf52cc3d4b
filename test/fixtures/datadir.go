// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/eliteGoblin/focusd/focusmode/internal/domain"
	"github.com/eliteGoblin/focusd/focusmode/internal/infra"
	"github.com/eliteGoblin/focusd/focusmode/internal/policy"
)

// OSHostsFileName is the stand-in for /etc/hosts inside a DataDir root.
const OSHostsFileName = "etc_hosts"

// DataDir is a throwaway focusmode data directory with the built-in modes
// seeded and a private hosts file standing in for the OS one.
type DataDir struct {
	Paths     *infra.ExecModeConfig
	HostsPath string
}

// NewDataDir creates the directory layout under root.
// Keep root short: the control socket lives inside it.
func NewDataDir(root string) (*DataDir, error) {
	paths := infra.NewExecModeConfigWithDataDir(root)
	if err := paths.EnsureDirs(); err != nil {
		return nil, err
	}
	if _, err := infra.SeedBuiltins(infra.NewFileModeStore(paths), policy.NewRegistry()); err != nil {
		return nil, err
	}

	// The mode block tables already live in <root>/hosts.
	hostsPath := filepath.Join(root, OSHostsFileName)
	if err := os.WriteFile(hostsPath, infra.FormatHosts(runtime.GOOS, nil), 0644); err != nil {
		return nil, err
	}
	return &DataDir{Paths: paths, HostsPath: hostsPath}, nil
}

// Modes returns a mode store reading this directory.
func (d *DataDir) Modes() *infra.FileModeStore {
	return infra.NewFileModeStore(d.Paths)
}

// AddMode writes a custom mode.
func (d *DataDir) AddMode(name string, apps, sites []string) error {
	return d.Modes().Save(domain.ModeDefinition{
		Name:       name,
		AllowList:  apps,
		BlockTable: policy.ExpandBlockedSites(sites),
		Custom:     true,
	})
}

// RemoveAllowList deletes a mode's allow-list file behind the store's back.
func (d *DataDir) RemoveAllowList(name string) error {
	return os.Remove(filepath.Join(d.Paths.CustomModesDir(), name+".txt"))
}

// StateContent returns the raw Mode State file content ("" when absent).
func (d *DataDir) StateContent() string {
	data, err := os.ReadFile(d.Paths.StatePath())
	if err != nil {
		return ""
	}
	return string(data)
}

// HostsContent returns the current hosts file content.
func (d *DataDir) HostsContent() string {
	data, err := os.ReadFile(d.HostsPath)
	if err != nil {
		return ""
	}
	return string(data)
}

// HostsTable parses the current hosts file.
func (d *DataDir) HostsTable() (*domain.BlockTable, error) {
	f, err := os.Open(d.HostsPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return infra.ParseHosts(f)
}
