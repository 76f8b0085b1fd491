package orchestrator

import (
	"reflect"
	"sort"
	"testing"
)

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		pattern, name string
		want          bool
	}{
		{"users", "users", true},
		{"users", "orders", false},
		{"user*", "users", true},
		{"user*", "user", true},
		{"*_log", "audit_log", true},
		{"*_log", "audit_logs", false},
		{"us?rs", "users", true},
		{"us?rs", "usrs", false},
		{"*", "anything", true},
		{"t??", "tab", true},
		{"t??", "ta", false},
	}
	for _, tt := range tests {
		if got := matchPattern(tt.pattern, tt.name); got != tt.want {
			t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.pattern, tt.name, got, tt.want)
		}
	}
}

func TestResolveSelection_EmptyIncludeKeepsAll(t *testing.T) {
	all := []string{"users", "orders", "audit_log"}
	got := ResolveSelection(all, nil, nil)
	sort.Strings(got)
	want := []string{"audit_log", "orders", "users"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestResolveSelection_IncludeAndExclude(t *testing.T) {
	all := []string{"users", "orders", "audit_log", "audit_errors"}
	got := ResolveSelection(all, []string{"audit_*"}, []string{"audit_errors"})
	sort.Strings(got)
	want := []string{"audit_log"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestUnmatchedPatterns(t *testing.T) {
	all := []string{"users", "orders"}
	got := UnmatchedPatterns(all, []string{"users", "nonexistent_*"})
	if len(got) != 1 || got[0] != "nonexistent_*" {
		t.Errorf("got %v, want [nonexistent_*]", got)
	}
}
