package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focusmode/internal/domain"
)

// ProcessLister lists running process names for sampling.
type ProcessLister interface {
	Names(ctx context.Context) ([]string, error)
}

// ActivityMonitor samples running processes and browser tabs into its sinks.
// It is read-only: it never terminates anything and never consults the allow-list.
type ActivityMonitor struct {
	state        domain.ModeReader
	sessionID    string
	processes    ProcessLister
	tabs         []domain.TabSource
	sinks        []domain.ActivitySink
	queryTimeout time.Duration
	logger       *zap.Logger
}

// NewActivityMonitor creates a monitor for one activation session.
func NewActivityMonitor(
	state domain.ModeReader,
	sessionID string,
	processes ProcessLister,
	tabs []domain.TabSource,
	sinks []domain.ActivitySink,
	logger *zap.Logger,
) *ActivityMonitor {
	return &ActivityMonitor{
		state:        state,
		sessionID:    sessionID,
		processes:    processes,
		tabs:         tabs,
		sinks:        sinks,
		queryTimeout: DefaultQueryTimeout,
		logger:       logger,
	}
}

// Sample takes one observation and hands it to every sink. Query failures
// degrade to empty results; sink failures are logged and otherwise ignored.
func (m *ActivityMonitor) Sample(ctx context.Context) domain.ActivitySample {
	sample := domain.ActivitySample{
		SessionID: m.sessionID,
		Mode:      m.state.Current(),
		Tabs:      make(map[string][]string),
		TakenAt:   time.Now(),
	}

	qctx, cancel := context.WithTimeout(ctx, m.queryTimeout)
	names, err := m.processes.Names(qctx)
	cancel()
	if err != nil {
		m.logger.Debug("process sampling failed", zap.Error(err))
	}
	sample.Processes = names

	for _, src := range m.tabs {
		qctx, cancel := context.WithTimeout(ctx, m.queryTimeout)
		titles, err := src.Titles(qctx)
		cancel()
		if err != nil {
			m.logger.Debug("tab sampling failed", zap.String("browser", src.Browser()), zap.Error(err))
			continue
		}
		if len(titles) > 0 {
			sample.Tabs[src.Browser()] = titles
		}
	}

	for _, sink := range m.sinks {
		if err := sink.Record(sample); err != nil {
			m.logger.Warn("failed to record activity sample", zap.Error(err))
		}
	}
	return sample
}
