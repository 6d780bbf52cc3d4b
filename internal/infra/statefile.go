package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/eliteGoblin/focusd/focusmode/internal/domain"
)

// FileStateStore implements domain.StateStore as a single-line text file.
// An absent file and an empty file both mean "inactive".
type FileStateStore struct {
	path string
}

// NewFileStateStore creates a state store at path.
func NewFileStateStore(path string) *FileStateStore {
	return &FileStateStore{path: path}
}

// Path returns the state file location.
func (s *FileStateStore) Path() string {
	return s.path
}

// Get returns the active mode, or "" when inactive or absent.
func (s *FileStateStore) Get() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read mode state: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Current implements domain.ModeReader. A read error counts as inactive.
func (s *FileStateStore) Current() string {
	mode, err := s.Get()
	if err != nil {
		return ""
	}
	return mode
}

// Set records mode as active. Concurrent writers serialize on the lock; last write wins.
func (s *FileStateStore) Set(mode string) error {
	return s.write(strings.TrimSpace(mode))
}

// Clear writes the empty value.
func (s *FileStateStore) Clear() error {
	return s.write("")
}

func (s *FileStateStore) write(value string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	return withFileLock(s.path, func() error {
		if err := atomicWriteFile(s.path, []byte(value), 0600); err != nil {
			return fmt.Errorf("failed to write mode state: %w", err)
		}
		return nil
	})
}

var (
	_ domain.StateStore = (*FileStateStore)(nil)
	_ domain.ModeReader = (*FileStateStore)(nil)
)
