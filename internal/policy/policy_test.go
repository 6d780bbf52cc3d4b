package policy

import (
	"reflect"
	"testing"
)

func TestAllowList_CaseInsensitive(t *testing.T) {
	allow := NewAllowList([]string{"Slack"})

	for _, name := range []string{"Slack", "slack", "SLACK", " Slack "} {
		if !allow.Allows(name) {
			t.Errorf("expected %q to be allowed", name)
		}
	}
}

func TestAllowList_ExactMatchOnly(t *testing.T) {
	allow := NewAllowList([]string{"Code", "Notes"})

	for _, name := range []string{"Xcode", "Code Helper", "Sticky Notes", "Cod"} {
		if allow.Allows(name) {
			t.Errorf("expected %q not to be allowed", name)
		}
	}
}

func TestAllowList_IgnoresBlankEntries(t *testing.T) {
	allow := NewAllowList([]string{"", "  ", "Terminal"})
	if allow.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", allow.Len())
	}
}

func TestTargets_SocialScenario(t *testing.T) {
	allow := NewAllowList([]string{"Terminal", "Finder"})
	essential := &EssentialSet{names: map[string]struct{}{}}

	got := Targets([]string{"Terminal", "Messages", "Finder"}, allow, essential)

	if !reflect.DeepEqual(got, []string{"Messages"}) {
		t.Errorf("expected [Messages], got %v", got)
	}
}

func TestTargets_EssentialNeverTargeted(t *testing.T) {
	essential := NewEssentialSet()
	running := []string{"Finder", "Dock", "zsh", "Terminal", "focusmode", "Spotify"}

	tests := []struct {
		name  string
		allow []string
	}{
		{name: "empty allow-list", allow: nil},
		{name: "unrelated allow-list", allow: []string{"Slack"}},
		{name: "allow-list naming essentials", allow: []string{"Finder", "Spotify"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			targets := Targets(running, NewAllowList(tt.allow), essential)
			for _, target := range targets {
				if essential.Contains(target) {
					t.Errorf("essential process %q was targeted", target)
				}
			}
		})
	}
}

func TestTargets_DeduplicatesCaseInsensitively(t *testing.T) {
	essential := &EssentialSet{names: map[string]struct{}{}}
	got := Targets([]string{"Messages", "messages", "MESSAGES", ""}, NewAllowList(nil), essential)

	if !reflect.DeepEqual(got, []string{"Messages"}) {
		t.Errorf("expected single Messages target, got %v", got)
	}
}

func TestTargets_EmptyRunningSet(t *testing.T) {
	got := Targets(nil, NewAllowList([]string{"Terminal"}), NewEssentialSet())
	if len(got) != 0 {
		t.Errorf("expected no targets, got %v", got)
	}
}

func TestEssentialSet_ExtraOnlyAdds(t *testing.T) {
	base := NewEssentialSet()
	extended := NewEssentialSet("MyLauncher")

	if !extended.Contains("mylauncher") {
		t.Error("expected extra name to be essential")
	}
	for _, n := range base.Names() {
		if !extended.Contains(n) {
			t.Errorf("extended set lost base name %q", n)
		}
	}
}

func TestEssentialSet_NilIsEmpty(t *testing.T) {
	var s *EssentialSet
	if s.Contains("Finder") {
		t.Error("nil set should contain nothing")
	}
}
