package builtins

import (
	"errors"
	"testing"

	"sipbacktest/internal/strategy"
)

func TestParse(t *testing.T) {
	tests := []struct {
		spec string
		want string
	}{
		{"day:1", "day-1"},
		{" Day:15 ", "day-15"},
		{"last", "last-day"},
		{"lowest", "lowest-close"},
		{"HIGHEST", "highest-close"},
		{"calendar:11", "calendar-11-open"},
	}
	for _, tt := range tests {
		p, err := Parse(tt.spec)
		if err != nil {
			t.Errorf("Parse(%q): %v", tt.spec, err)
			continue
		}
		if p.Name() != tt.want {
			t.Errorf("Parse(%q).Name() = %q, want %q", tt.spec, p.Name(), tt.want)
		}
	}
}

func TestParseErrors(t *testing.T) {
	for _, spec := range []string{"", "day", "day:x", "day:0", "calendar:40", "last:3", "weekly"} {
		if _, err := Parse(spec); !errors.Is(err, strategy.ErrInvalidInput) {
			t.Errorf("Parse(%q) error = %v, want ErrInvalidInput", spec, err)
		}
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	entries := r.Entries()
	if len(entries) != len(DefaultSpecs) {
		t.Fatalf("DefaultRegistry has %d entries, want %d", len(entries), len(DefaultSpecs))
	}
	for i, e := range entries {
		if e.Label != DefaultSpecs[i].Label {
			t.Errorf("entry %d label = %q, want %q", i, e.Label, DefaultSpecs[i].Label)
		}
	}
	if p, ok := r.Get("Day 11 at open"); !ok || p.Name() != "calendar-11-open" {
		t.Errorf("Get(Day 11 at open) = %v, %v", p, ok)
	}
}

func TestNewRegistryDuplicateLabel(t *testing.T) {
	_, err := NewRegistry([][2]string{{"A", "day:1"}, {"B", "last"}, {"A", "lowest"}})
	var ie *strategy.InputError
	if !errors.As(err, &ie) || ie.Field != "label" {
		t.Errorf("NewRegistry error = %v, want InputError on label", err)
	}
}
