package strategy

import (
	"testing"
	"time"

	"sipbacktest/internal/domain"
)

// stubPolicy buys at the close of the month's first bar, or declines every
// month when decline is set.
type stubPolicy struct {
	name    string
	decline bool
}

func (s *stubPolicy) Name() string { return s.name }

func (s *stubPolicy) Select(m MonthBucket) (Selection, bool) {
	if s.decline || m.Len() == 0 {
		return Selection{}, false
	}
	return Selection{Date: m.Bars[0].Date(), Price: m.Bars[0].Close}, true
}

// bar builds a daily bar dated y-m-d with open == close == price unless
// overridden by the caller.
func bar(y int, m time.Month, d int, price float64) domain.Bar {
	return domain.Bar{
		Symbol:    "002958",
		Timestamp: time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Open:      price,
		High:      price,
		Low:       price,
		Close:     price,
	}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	s := &stubPolicy{name: "first"}

	r.Register("First day", s)

	got, ok := r.Get("First day")
	if !ok {
		t.Fatal("Get returned false for registered policy")
	}
	if got.Name() != "first" {
		t.Errorf("Get returned policy with Name() = %q, want %q", got.Name(), "first")
	}
}

func TestRegistryGet_NotFound(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("nonexistent")
	if ok {
		t.Error("Get returned true for unregistered policy")
	}
}

func TestRegistryListAndEntries(t *testing.T) {
	r := NewRegistry()
	r.Register("beta", &stubPolicy{name: "b"})
	r.Register("alpha", &stubPolicy{name: "a"})
	r.Register("beta", &stubPolicy{name: "b2"})

	names := r.List()
	if len(names) != 2 {
		t.Fatalf("List returned %d names, want 2", len(names))
	}
	// List returns sorted names.
	if names[0] != "alpha" || names[1] != "beta" {
		t.Errorf("List returned %v, want [alpha beta]", names)
	}

	// Entries keeps registration order; re-registering replaces in place.
	entries := r.Entries()
	if len(entries) != 2 || entries[0].Label != "beta" || entries[1].Label != "alpha" {
		t.Fatalf("Entries returned %+v, want [beta alpha]", entries)
	}
	if entries[0].Policy.Name() != "b2" {
		t.Errorf("Entries()[0].Policy.Name() = %q, want %q", entries[0].Policy.Name(), "b2")
	}
}
