package infra

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focusmode/internal/domain"
)

// SudoPasswordKey is the vault key holding the saved elevated-privilege password.
const SudoPasswordKey = "sudo_password"

// SudoRunner implements domain.PrivilegedRunner.
// As root it runs commands directly. Otherwise it uses "sudo -S" fed from the
// saved vault password, or "sudo -n" when no password is saved.
type SudoRunner struct {
	cmd     CommandRunner
	secrets domain.SecretStore // may be nil
	timeout time.Duration
	euid    func() int
	logger  *zap.Logger
}

// NewSudoRunner creates a privileged runner. secrets may be nil.
func NewSudoRunner(secrets domain.SecretStore, timeout time.Duration, logger *zap.Logger) *SudoRunner {
	return NewSudoRunnerWithDeps(&RealCommandRunner{}, secrets, timeout, os.Geteuid, logger)
}

// NewSudoRunnerWithDeps creates a runner with injectable dependencies (for testing).
func NewSudoRunnerWithDeps(cmd CommandRunner, secrets domain.SecretStore, timeout time.Duration, euid func() int, logger *zap.Logger) *SudoRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SudoRunner{cmd: cmd, secrets: secrets, timeout: timeout, euid: euid, logger: logger}
}

// IsElevated reports whether the current process already runs as root.
func (r *SudoRunner) IsElevated() bool {
	return r.euid() == 0
}

// Run executes name with args as root, feeding stdin when non-nil.
func (r *SudoRunner) Run(ctx context.Context, stdin []byte, name string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if r.IsElevated() {
		return r.cmd.Run(ctx, stdin, name, args...)
	}

	password := r.savedPassword()
	var err error
	if password != "" {
		// -k makes sudo ignore cached credentials and always read the first
		// line as the password; otherwise it would reach the command's stdin.
		input := append([]byte(password+"\n"), stdin...)
		sudoArgs := append([]string{"-k", "-S", "-p", "", name}, args...)
		err = r.cmd.Run(ctx, input, "sudo", sudoArgs...)
	} else {
		sudoArgs := append([]string{"-n", name}, args...)
		err = r.cmd.Run(ctx, stdin, "sudo", sudoArgs...)
	}

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s timed out after %s", domain.ErrInsufficientPrivilege, name, r.timeout)
		}
		return fmt.Errorf("%w: %s: %v", domain.ErrInsufficientPrivilege, name, err)
	}
	return nil
}

// VerifyPassword checks password against sudo without running anything else.
func (r *SudoRunner) VerifyPassword(ctx context.Context, password string) bool {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	// -k ignores cached credentials so the password is really checked
	return r.cmd.Run(ctx, []byte(password+"\n"), "sudo", "-k", "-S", "-p", "", "true") == nil
}

func (r *SudoRunner) savedPassword() string {
	if r.secrets == nil {
		return ""
	}
	password, err := r.secrets.GetSecret(SudoPasswordKey)
	if err != nil {
		if !errors.Is(err, domain.ErrSecretNotFound) {
			r.logger.Warn("failed to read saved password", zap.Error(err))
		}
		return ""
	}
	return password
}

var _ domain.PrivilegedRunner = (*SudoRunner)(nil)
