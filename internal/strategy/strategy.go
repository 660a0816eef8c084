// Package strategy implements the periodic-investment backtest engine: the
// monthly partition of a daily price series, the TimingPolicy abstraction
// that picks one purchase per month, and the metrics derived from the
// resulting position history.
package strategy

import (
	"sort"
	"time"
)

// Selection is a policy's pick within one month: the purchase date and the
// price paid.
type Selection struct {
	Date  time.Time
	Price float64
}

// TimingPolicy is the interface that all within-month purchase timing rules
// must implement.
type TimingPolicy interface {
	// Name returns a stable identifier for the policy, e.g. "day-15".
	Name() string

	// Select picks the purchase for one month. The second return value is
	// false when the policy declines, which only happens for an empty month.
	Select(month MonthBucket) (Selection, bool)
}

// Entry pairs a display label with a policy.
type Entry struct {
	Label  string
	Policy TimingPolicy
}

// Registry holds a labelled collection of policies for lookup and
// enumeration. Entries keeps registration order.
type Registry struct {
	policies map[string]TimingPolicy
	order    []string
}

// NewRegistry creates an empty policy Registry.
func NewRegistry() *Registry {
	return &Registry{
		policies: make(map[string]TimingPolicy),
	}
}

// Register adds a policy under label. Registering an existing label replaces
// the policy but keeps its original position.
func (r *Registry) Register(label string, p TimingPolicy) {
	if _, ok := r.policies[label]; !ok {
		r.order = append(r.order, label)
	}
	r.policies[label] = p
}

// Get retrieves a policy by label. The second return value indicates whether
// the label was found.
func (r *Registry) Get(label string) (TimingPolicy, bool) {
	p, ok := r.policies[label]
	return p, ok
}

// List returns a sorted slice of all registered labels.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.policies))
	for name := range r.policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Entries returns the registered policies in registration order.
func (r *Registry) Entries() []Entry {
	entries := make([]Entry, 0, len(r.order))
	for _, label := range r.order {
		entries = append(entries, Entry{Label: label, Policy: r.policies[label]})
	}
	return entries
}
