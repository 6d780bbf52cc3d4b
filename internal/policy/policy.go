// Package policy decides which running apps a mode allows and defines the built-in modes.
package policy

import (
	"strings"
	"time"
)

// DefaultTickInterval is how often the enforcer compares running apps to the allow-list.
const DefaultTickInterval = time.Second

// DefaultMonitorInterval is how often the activity monitor samples.
const DefaultMonitorInterval = time.Minute

// AllowList is a set of app display names, matched case-insensitively and exactly.
type AllowList struct {
	names map[string]struct{}
}

// NewAllowList builds an allow-list, ignoring blank entries.
func NewAllowList(names []string) AllowList {
	a := AllowList{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		a.names[strings.ToLower(n)] = struct{}{}
	}
	return a
}

// Allows reports whether name is on the list. No prefix or substring matching:
// "Code" does not allow "Xcode".
func (a AllowList) Allows(name string) bool {
	_, ok := a.names[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Len returns the number of distinct names.
func (a AllowList) Len() int {
	return len(a.names)
}

// Targets returns the running apps that must receive a termination request:
// everything neither essential nor allowed. Duplicate names are reported once,
// in first-seen order.
func Targets(running []string, allow AllowList, essential *EssentialSet) []string {
	seen := make(map[string]struct{}, len(running))
	var targets []string
	for _, name := range running {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		// Essential check comes first and cannot be overridden by the allow-list.
		if essential.Contains(name) {
			continue
		}
		if allow.Allows(name) {
			continue
		}
		targets = append(targets, name)
	}
	return targets
}
