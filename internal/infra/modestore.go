package infra

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/eliteGoblin/focusd/focusmode/internal/domain"
	"github.com/eliteGoblin/focusd/focusmode/internal/policy"
)

const (
	allowListExt = ".txt"
	hostsSuffix  = "_hosts"
)

// FileModeStore implements domain.ModeStore over the modes/ and hosts/ directories.
// Built-in definitions are looked up before custom ones. Nothing is cached.
type FileModeStore struct {
	paths *ExecModeConfig
}

// NewFileModeStore creates a mode store rooted at the config's data directory.
func NewFileModeStore(paths *ExecModeConfig) *FileModeStore {
	return &FileModeStore{paths: paths}
}

func (s *FileModeStore) allowListPaths(name string) []string {
	return []string{
		filepath.Join(s.paths.ModesDir(), name+allowListExt),
		filepath.Join(s.paths.CustomModesDir(), name+allowListExt),
	}
}

func (s *FileModeStore) hostsPaths(name string) []string {
	return []string{
		filepath.Join(s.paths.HostsDir(), name+hostsSuffix),
		filepath.Join(s.paths.CustomHostsDir(), name+hostsSuffix),
	}
}

// AllowList returns the apps permitted by a mode, or ErrModeNotFound.
func (s *FileModeStore) AllowList(name string) ([]string, error) {
	if err := policy.ValidateModeName(name); err != nil {
		return nil, err
	}

	for _, p := range s.allowListPaths(name) {
		data, err := os.ReadFile(p)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read allow-list %s: %w", p, err)
		}
		return parseAllowList(data), nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrModeNotFound, name)
}

// parseAllowList splits newline-separated names, skipping blanks and # comments.
func parseAllowList(data []byte) []string {
	var names []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	return names
}

// BlockTable returns the mode's hostname block table; nil when the mode has none.
func (s *FileModeStore) BlockTable(name string) (*domain.BlockTable, error) {
	if err := policy.ValidateModeName(name); err != nil {
		return nil, err
	}

	for _, p := range s.hostsPaths(name) {
		f, err := os.Open(p)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to open block table %s: %w", p, err)
		}
		table, err := ParseHosts(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to parse block table %s: %w", p, err)
		}
		return table, nil
	}
	return nil, nil
}

// Exists reports whether an allow-list definition exists.
func (s *FileModeStore) Exists(name string) bool {
	if policy.ValidateModeName(name) != nil {
		return false
	}
	for _, p := range s.allowListPaths(name) {
		if _, err := os.Stat(p); err == nil {
			return true
		}
	}
	return false
}

// List returns all mode names, built-in and custom, sorted and deduplicated.
func (s *FileModeStore) List() ([]string, error) {
	seen := make(map[string]struct{})
	for _, dir := range []string{s.paths.ModesDir(), s.paths.CustomModesDir()} {
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), allowListExt) {
				continue
			}
			seen[strings.TrimSuffix(e.Name(), allowListExt)] = struct{}{}
		}
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// Save writes a mode definition. Custom definitions go under custom/.
func (s *FileModeStore) Save(def domain.ModeDefinition) error {
	if err := policy.ValidateModeName(def.Name); err != nil {
		return err
	}

	modesDir, hostsDir := s.paths.ModesDir(), s.paths.HostsDir()
	if def.Custom {
		modesDir, hostsDir = s.paths.CustomModesDir(), s.paths.CustomHostsDir()
	}
	for _, dir := range []string{modesDir, hostsDir} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	allow := strings.Join(def.AllowList, "\n") + "\n"
	if err := atomicWriteFile(filepath.Join(modesDir, def.Name+allowListExt), []byte(allow), 0600); err != nil {
		return fmt.Errorf("failed to write allow-list: %w", err)
	}

	// An empty table means the mode blocks nothing; a table left by an earlier
	// save would otherwise still be applied.
	hostsPath := filepath.Join(hostsDir, def.Name+hostsSuffix)
	if def.BlockTable.Len() == 0 {
		if err := os.Remove(hostsPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove block table: %w", err)
		}
		return nil
	}
	if err := atomicWriteFile(hostsPath, FormatBlockTable(def.BlockTable), 0600); err != nil {
		return fmt.Errorf("failed to write block table: %w", err)
	}
	return nil
}

// Delete removes a custom mode definition. Built-in modes cannot be deleted.
func (s *FileModeStore) Delete(name string) error {
	if err := policy.ValidateModeName(name); err != nil {
		return err
	}

	allowPath := filepath.Join(s.paths.CustomModesDir(), name+allowListExt)
	if _, err := os.Stat(allowPath); os.IsNotExist(err) {
		return fmt.Errorf("%w: custom mode %s", domain.ErrModeNotFound, name)
	}
	if err := os.Remove(allowPath); err != nil {
		return err
	}
	hostsPath := filepath.Join(s.paths.CustomHostsDir(), name+hostsSuffix)
	if err := os.Remove(hostsPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// SeedBuiltins writes each built-in definition that does not exist yet.
// Returns the names that were written.
func SeedBuiltins(store domain.ModeStore, registry *policy.Registry) ([]string, error) {
	var written []string
	for _, p := range registry.GetAll() {
		if store.Exists(p.ID()) {
			continue
		}
		if err := store.Save(policy.ToDefinition(p)); err != nil {
			return written, err
		}
		written = append(written, p.ID())
	}
	return written, nil
}

var _ domain.ModeStore = (*FileModeStore)(nil)
