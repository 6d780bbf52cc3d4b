package infra

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focusmode/internal/domain"
)

// flushCommand is one resolver cache invalidation step. Alternatives are tried in
// order until one is installed; a step with no installed alternative is skipped.
type flushCommand struct {
	alternatives [][]string
}

func flushCommandsFor(goos string) []flushCommand {
	switch goos {
	case "darwin":
		return []flushCommand{
			{alternatives: [][]string{{"dscacheutil", "-flushcache"}}},
			{alternatives: [][]string{{"killall", "-HUP", "mDNSResponder"}}},
		}
	case "linux":
		return []flushCommand{
			{alternatives: [][]string{
				{"resolvectl", "flush-caches"},
				{"systemd-resolve", "--flush-caches"},
			}},
		}
	default:
		return nil
	}
}

// HostsFileBlocker implements domain.NetworkBlocker by rewriting the OS hosts file.
type HostsFileBlocker struct {
	hostsPath string
	goos      string
	runner    domain.PrivilegedRunner
	flushes   []flushCommand
	lookPath  func(string) (string, error)
	logger    *zap.Logger
}

// NewHostsFileBlocker creates a blocker writing to hostsPath through runner.
func NewHostsFileBlocker(hostsPath string, runner domain.PrivilegedRunner, logger *zap.Logger) *HostsFileBlocker {
	return NewHostsFileBlockerWithDeps(hostsPath, runner, runtime.GOOS, exec.LookPath, logger)
}

// NewHostsFileBlockerWithDeps creates a blocker with injectable dependencies (for testing).
func NewHostsFileBlockerWithDeps(hostsPath string, runner domain.PrivilegedRunner, goos string, lookPath func(string) (string, error), logger *zap.Logger) *HostsFileBlocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HostsFileBlocker{
		hostsPath: hostsPath,
		goos:      goos,
		runner:    runner,
		flushes:   flushCommandsFor(goos),
		lookPath:  lookPath,
		logger:    logger,
	}
}

// Apply replaces the hosts file with the minimal entries plus table, then flushes the resolver cache.
func (b *HostsFileBlocker) Apply(ctx context.Context, table *domain.BlockTable) error {
	if err := b.write(ctx, FormatHosts(b.goos, table)); err != nil {
		return err
	}
	b.logger.Info("hosts file updated",
		zap.String("path", b.hostsPath),
		zap.Int("blocked_hosts", table.Len()))
	return b.flush(ctx)
}

// Revert restores the minimal default hosts file, then flushes the resolver cache.
func (b *HostsFileBlocker) Revert(ctx context.Context) error {
	if err := b.write(ctx, FormatHosts(b.goos, nil)); err != nil {
		return err
	}
	b.logger.Info("hosts file reverted", zap.String("path", b.hostsPath))
	return b.flush(ctx)
}

func (b *HostsFileBlocker) write(ctx context.Context, content []byte) error {
	if err := b.runner.Run(ctx, content, "tee", b.hostsPath); err != nil {
		return fmt.Errorf("failed to write %s: %w", b.hostsPath, err)
	}
	return nil
}

// flush runs every available invalidation step. It only runs after a successful
// write, so every failure, privilege or timeout included, is ErrResolverFlush:
// the block is in place and only cached lookups may outlive it.
func (b *HostsFileBlocker) flush(ctx context.Context) error {
	var errs []error
	for _, step := range b.flushes {
		argv := b.firstInstalled(step)
		if argv == nil {
			continue
		}
		if err := b.runner.Run(ctx, nil, argv[0], argv[1:]...); err != nil {
			b.logger.Warn("resolver flush failed", zap.Strings("command", argv), zap.Error(err))
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %v", domain.ErrResolverFlush, errors.Join(errs...))
}

func (b *HostsFileBlocker) firstInstalled(step flushCommand) []string {
	for _, argv := range step.alternatives {
		if _, err := b.lookPath(argv[0]); err == nil {
			return argv
		}
	}
	return nil
}

var _ domain.NetworkBlocker = (*HostsFileBlocker)(nil)
