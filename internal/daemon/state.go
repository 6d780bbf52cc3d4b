// Package daemon implements the focusmode supervisor process.
package daemon

import (
	"sync"

	"github.com/eliteGoblin/focusd/focusmode/internal/domain"
)

// ModeHolder is the supervisor's in-memory copy of Mode State.
// Every change is persisted to the backing store first and only then
// published to subscribers, so the file never lags behind what loops see.
type ModeHolder struct {
	mu      sync.RWMutex
	store   domain.StateStore
	current string
	nextID  int
	subs    map[int]chan string
}

// NewModeHolder loads the persisted value from store.
func NewModeHolder(store domain.StateStore) (*ModeHolder, error) {
	mode, err := store.Get()
	if err != nil {
		return nil, err
	}
	return &ModeHolder{
		store:   store,
		current: mode,
		subs:    make(map[int]chan string),
	}, nil
}

// Current returns the active mode without touching the file.
func (h *ModeHolder) Current() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Get returns the active mode.
func (h *ModeHolder) Get() (string, error) {
	return h.Current(), nil
}

// Set persists mode and notifies subscribers.
func (h *ModeHolder) Set(mode string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.store.Set(mode); err != nil {
		return err
	}
	h.current = mode
	h.publish(mode)
	return nil
}

// Clear persists the empty value and notifies subscribers.
// The in-memory value is cleared even if the write fails: the supervisor
// must stop enforcing regardless.
func (h *ModeHolder) Clear() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	err := h.store.Clear()
	h.current = ""
	h.publish("")
	return err
}

// Path returns the backing file path.
func (h *ModeHolder) Path() string {
	return h.store.Path()
}

// Subscribe returns a channel that receives the latest mode after every change.
// Only the most recent value is kept for slow readers. Call cancel to unsubscribe.
func (h *ModeHolder) Subscribe() (<-chan string, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan string, 1)
	h.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
	return ch, cancel
}

// publish must be called with h.mu held.
func (h *ModeHolder) publish(mode string) {
	for _, ch := range h.subs {
		select {
		case <-ch:
		default:
		}
		ch <- mode
	}
}

var _ domain.StateStore = (*ModeHolder)(nil)
