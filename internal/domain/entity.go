// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"errors"
	"time"
)

var (
	// ErrModeNotFound is returned when no allow-list definition exists for a mode.
	ErrModeNotFound = errors.New("mode not found")

	// ErrInvalidModeName is returned for names that are not safe to use as file names.
	ErrInvalidModeName = errors.New("invalid mode name")

	// ErrInsufficientPrivilege is returned when an elevated operation cannot be performed.
	ErrInsufficientPrivilege = errors.New("insufficient privilege")

	// ErrSecretNotFound is returned when a secret has never been stored.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrSupervisorUnavailable is returned when no supervisor answers on the control socket.
	ErrSupervisorUnavailable = errors.New("supervisor unavailable")

	// ErrResolverFlush is returned when the hosts file was written but the resolver cache was not invalidated.
	ErrResolverFlush = errors.New("resolver cache flush failed")
)

// HostEntry is one line of a hostname block table: an address and the names mapped to it.
type HostEntry struct {
	Address   string
	Hostnames []string
}

// BlockTable maps blocked hostnames to a non-routable address.
type BlockTable struct {
	Entries []HostEntry
}

// Len returns the number of hostnames in the table.
func (t *BlockTable) Len() int {
	if t == nil {
		return 0
	}
	n := 0
	for _, e := range t.Entries {
		n += len(e.Hostnames)
	}
	return n
}

// ModeDefinition is a named policy: the apps allowed while active and the hosts to block.
type ModeDefinition struct {
	Name       string
	AllowList  []string
	BlockTable *BlockTable
	Custom     bool // Stored under the custom/ subdirectory
}

// TickResult captures what happened during a single enforcer tick.
type TickResult struct {
	Mode       string
	Observed   int      // Number of distinct running apps seen
	Targeted   []string // Apps that received a termination request
	Failed     []string // Apps whose termination request errored
	Skipped    bool
	SkipReason SkipReason
	Errors     []error
	ExecutedAt time.Time
	DurationMs int64
}

// SkipReason explains why a tick took no action.
type SkipReason string

const (
	SkipNone          SkipReason = ""
	SkipInactive      SkipReason = "inactive"
	SkipMissingConfig SkipReason = "missing_config"
	SkipNoObservation SkipReason = "no_observation"
)

// StepStatus is the outcome of a single activation or teardown step.
type StepStatus string

const (
	StepOK                    StepStatus = "ok"
	StepSkipped               StepStatus = "skipped"
	StepInsufficientPrivilege StepStatus = "insufficient_privilege"
	StepPartial               StepStatus = "partial"
	StepFailed                StepStatus = "failed"
)

// StepReport describes one step of an activation or deactivation flow.
type StepReport struct {
	Step   string     `json:"step"`
	Status StepStatus `json:"status"`
	Detail string     `json:"detail,omitempty"`
}

// Step names used in reports.
const (
	StepState      = "state"
	StepNetwork    = "network"
	StepLoops      = "loops"
	StepStaleLoops = "stale_loops"
)

// ActivationOutcome is the caller-visible result of an activation.
type ActivationOutcome string

const (
	OutcomeOK                    ActivationOutcome = "ok"
	OutcomeInsufficientPrivilege ActivationOutcome = "insufficient_privilege"
	OutcomeModeNotFound          ActivationOutcome = "mode_not_found"
)

// ActivationOptions tunes a single activation.
type ActivationOptions struct {
	BlockNetwork bool
	Monitor      bool
}

// ActivationResult is returned by the activation controller.
type ActivationResult struct {
	Mode      string            `json:"mode"`
	Outcome   ActivationOutcome `json:"outcome"`
	SessionID string            `json:"session_id,omitempty"`
	Network   StepReport        `json:"network"`
}

// DeactivationReport lists what each teardown step achieved.
type DeactivationReport struct {
	Steps      []StepReport `json:"steps"`
	DurationMs int64        `json:"duration_ms"`
}

// Step returns the report for a named step, or nil.
func (r *DeactivationReport) Step(name string) *StepReport {
	for i := range r.Steps {
		if r.Steps[i].Step == name {
			return &r.Steps[i]
		}
	}
	return nil
}

// LoopRole identifies a background loop run by the supervisor.
type LoopRole string

const (
	LoopEnforcer LoopRole = "enforcer"
	LoopMonitor  LoopRole = "monitor"
)

// LoopInfo describes a running loop.
type LoopInfo struct {
	Role      LoopRole  `json:"role"`
	Mode      string    `json:"mode"`
	StartedAt time.Time `json:"started_at"`
	Restarts  int       `json:"restarts"`
}

// Status is the externally visible engine status.
type Status struct {
	Active      bool       `json:"active"`
	Mode        string     `json:"mode,omitempty"`
	SessionID   string     `json:"session_id,omitempty"`
	ActivatedAt time.Time  `json:"activated_at,omitempty"`
	Loops       []LoopInfo `json:"loops,omitempty"`
}

// Supervisor is the registered supervisor daemon process.
type Supervisor struct {
	PID           int    `json:"pid"`
	SessionID     string `json:"session_id,omitempty"`
	Mode          string `json:"mode,omitempty"`
	SocketPath    string `json:"socket_path"`
	StartedAt     int64  `json:"started_at"`
	LastHeartbeat int64  `json:"last_heartbeat"`
	AppVersion    string `json:"app_version,omitempty"`
	ExecMode      string `json:"exec_mode,omitempty"` // "user" or "system"
}

// ActivitySample is one Activity Monitor observation.
type ActivitySample struct {
	SessionID string
	Mode      string
	Processes []string
	Tabs      map[string][]string // browser -> tab titles
	TakenAt   time.Time
}

// ActivityCount is an aggregated analytics row.
type ActivityCount struct {
	Kind    string // "process" or "tab"
	Subject string
	Samples int
}
