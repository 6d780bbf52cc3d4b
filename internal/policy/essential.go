package policy

import (
	"os"
	"path/filepath"
	"strings"
)

// baseEssential lists processes that are never terminated, whatever the mode says:
// shells and terminals, window managers and desktop shells, file managers,
// and the host tooling that drives enforcement.
var baseEssential = []string{
	// macOS session
	"Finder",
	"Dock",
	"SystemUIServer",
	"WindowServer",
	"loginwindow",
	"ControlCenter",
	"NotificationCenter",
	"Spotlight",
	"System Events",
	"System Settings",
	"System Preferences",
	"launchd",

	// Terminals and shells
	"Terminal",
	"iTerm2",
	"gnome-terminal-server",
	"konsole",
	"alacritty",
	"kitty",
	"bash",
	"zsh",
	"sh",
	"fish",
	"login",
	"sudo",

	// Linux session
	"systemd",
	"dbus-daemon",
	"Xorg",
	"Xwayland",
	"gnome-shell",
	"kwin_x11",
	"kwin_wayland",
	"plasmashell",
	"xfwm4",
	"xfce4-panel",
	"nautilus",
	"dolphin",
	"thunar",
	"pipewire",
	"pulseaudio",

	// Host tooling
	"focusmode",
	"Python",
	"python3",
	"osascript",
}

// EssentialSet is the fixed set of process names that enforcement never touches.
// It can only grow: configuration may add names but never remove one.
type EssentialSet struct {
	names map[string]struct{}
}

// NewEssentialSet returns the base set plus the running executable's own name and extra.
func NewEssentialSet(extra ...string) *EssentialSet {
	s := &EssentialSet{names: make(map[string]struct{}, len(baseEssential)+len(extra)+1)}
	for _, n := range baseEssential {
		s.add(n)
	}
	if exe, err := os.Executable(); err == nil {
		s.add(filepath.Base(exe))
	}
	for _, n := range extra {
		s.add(n)
	}
	return s
}

func (s *EssentialSet) add(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	s.names[strings.ToLower(name)] = struct{}{}
}

// Contains reports whether name is essential (case-insensitive).
func (s *EssentialSet) Contains(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.names[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Names returns the essential names in lower case.
func (s *EssentialSet) Names() []string {
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	return out
}
