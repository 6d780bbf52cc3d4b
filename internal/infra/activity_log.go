package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/focusmode/internal/domain"
)

const activityTimeLayout = "2006-01-02 15:04:05"

// ActivityLog appends human-readable activity lines to the process and tab logs.
// Lines look like "2006-01-02 15:04:05 <text>".
type ActivityLog struct {
	processes *zap.Logger
	tabs      *zap.Logger
	closers   []*os.File
}

// NewActivityLog opens (appending) both activity logs under logsDir.
func NewActivityLog(logsDir string) (*ActivityLog, error) {
	if err := os.MkdirAll(logsDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	procFile, err := openAppend(filepath.Join(logsDir, ProcessActivityName))
	if err != nil {
		return nil, err
	}
	tabFile, err := openAppend(filepath.Join(logsDir, TabActivityName))
	if err != nil {
		procFile.Close()
		return nil, err
	}

	return &ActivityLog{
		processes: newLineLogger(procFile),
		tabs:      newLineLogger(tabFile),
		closers:   []*os.File{procFile, tabFile},
	}, nil
}

func openAppend(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f, nil
}

// newLineLogger builds a zap logger that writes only "<time> <message>".
func newLineLogger(f *os.File) *zap.Logger {
	encCfg := zapcore.EncoderConfig{
		TimeKey:          "time",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       zapcore.TimeEncoderOfLayout(activityTimeLayout),
		ConsoleSeparator: " ",
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(f), zapcore.InfoLevel)
	return zap.New(core)
}

// Record writes one line for the process sample and one per browser with tabs.
func (l *ActivityLog) Record(sample domain.ActivitySample) error {
	if len(sample.Processes) > 0 {
		l.processes.Info("Active programs: " + strings.Join(sample.Processes, ", "))
	}

	browsers := make([]string, 0, len(sample.Tabs))
	for b := range sample.Tabs {
		browsers = append(browsers, b)
	}
	sort.Strings(browsers)
	for _, b := range browsers {
		titles := sample.Tabs[b]
		if len(titles) == 0 {
			continue
		}
		l.tabs.Info(fmt.Sprintf("%s tabs: %s", b, strings.Join(titles, " | ")))
	}
	return nil
}

// Close flushes and closes both log files.
func (l *ActivityLog) Close() error {
	_ = l.processes.Sync()
	_ = l.tabs.Sync()
	var lastErr error
	for _, f := range l.closers {
		if err := f.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

var _ domain.ActivitySink = (*ActivityLog)(nil)
