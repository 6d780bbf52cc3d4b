package infra

import (
	"path/filepath"
	"testing"

	"github.com/eliteGoblin/focusd/focusmode/internal/domain"
)

func TestFileRegistry_RegisterAndGet(t *testing.T) {
	registryPath := filepath.Join(t.TempDir(), RegistryFileName)
	pm := newMockProcessManager()
	registry := NewFileRegistry(registryPath, pm)

	sup := domain.Supervisor{
		PID:        12345,
		SocketPath: "/tmp/focusmode.sock",
		AppVersion: "v1.2.3",
	}
	if err := registry.Register(sup); err != nil {
		t.Fatalf("failed to register supervisor: %v", err)
	}

	got, err := registry.Get()
	if err != nil {
		t.Fatalf("failed to get: %v", err)
	}
	if got.PID != 12345 {
		t.Errorf("expected PID 12345, got %d", got.PID)
	}
	if got.SocketPath != "/tmp/focusmode.sock" {
		t.Errorf("unexpected socket path %q", got.SocketPath)
	}
	if got.LastHeartbeat == 0 || got.StartedAt == 0 {
		t.Error("expected timestamps to be set")
	}
	if got.ExecMode == "" {
		t.Error("expected exec mode to be detected")
	}
}

func TestFileRegistry_GetMissing(t *testing.T) {
	registry := NewFileRegistry(filepath.Join(t.TempDir(), RegistryFileName), newMockProcessManager())

	got, err := registry.Get()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Error("expected nil supervisor when file is missing")
	}
}

func TestFileRegistry_UpdateHeartbeat(t *testing.T) {
	registry := NewFileRegistry(filepath.Join(t.TempDir(), RegistryFileName), newMockProcessManager())

	if err := registry.UpdateHeartbeat("social", "abc"); err == nil {
		t.Error("expected error when not registered")
	}

	if err := registry.Register(domain.Supervisor{PID: 1}); err != nil {
		t.Fatal(err)
	}
	if err := registry.UpdateHeartbeat("social", "abc"); err != nil {
		t.Fatalf("failed to update heartbeat: %v", err)
	}

	got, _ := registry.Get()
	if got.Mode != "social" || got.SessionID != "abc" {
		t.Errorf("expected mode social/abc, got %s/%s", got.Mode, got.SessionID)
	}
}

func TestFileRegistry_IsAlive(t *testing.T) {
	pm := newMockProcessManager()
	registry := NewFileRegistry(filepath.Join(t.TempDir(), RegistryFileName), pm)

	if registry.IsAlive() {
		t.Error("expected not alive before registration")
	}

	registry.Register(domain.Supervisor{PID: 12346})
	pm.SetRunning(12346, true)
	if !registry.IsAlive() {
		t.Error("expected supervisor to be alive")
	}

	pm.SetRunning(12346, false)
	if registry.IsAlive() {
		t.Error("expected supervisor to be dead")
	}
}

func TestFileRegistry_Clear(t *testing.T) {
	registry := NewFileRegistry(filepath.Join(t.TempDir(), RegistryFileName), newMockProcessManager())

	registry.Register(domain.Supervisor{PID: 12345})

	if err := registry.Clear(); err != nil {
		t.Fatalf("failed to clear: %v", err)
	}
	// Clearing twice is fine
	if err := registry.Clear(); err != nil {
		t.Fatalf("second clear failed: %v", err)
	}

	got, err := registry.Get()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Error("expected nil entry after clear")
	}
}
