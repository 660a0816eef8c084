package builtins

import (
	"strconv"
	"strings"

	"sipbacktest/internal/strategy"
)

// Parse builds a policy from its textual form:
//
//	day:<n>        FixedOrdinalDay(n)
//	last           LastTradingDay
//	lowest         LowestClose
//	highest        HighestClose
//	calendar:<d>   CalendarDayOrNextOpen(d)
func Parse(spec string) (strategy.TimingPolicy, error) {
	kind, arg, hasArg := strings.Cut(strings.ToLower(strings.TrimSpace(spec)), ":")
	switch kind {
	case "last":
		if hasArg {
			break
		}
		return LastTradingDay{}, nil
	case "lowest":
		if hasArg {
			break
		}
		return LowestClose{}, nil
	case "highest":
		if hasArg {
			break
		}
		return HighestClose{}, nil
	case "day", "calendar":
		n, err := strconv.Atoi(strings.TrimSpace(arg))
		if !hasArg || err != nil {
			return nil, strategy.NewInputError("policy", "%q needs an integer argument", spec)
		}
		if kind == "day" {
			return NewFixedOrdinalDay(n)
		}
		return NewCalendarDayOrNextOpen(n)
	}
	return nil, strategy.NewInputError("policy", "unknown policy %q", spec)
}

// DefaultSpecs is the stock comparison set: three fixed schedules, the
// hindsight best and worst cases, and the 11th-of-month open schedule.
var DefaultSpecs = []struct {
	Label string
	Spec  string
}{
	{"Day 1", "day:1"},
	{"Day 15", "day:15"},
	{"Last day", "last"},
	{"Lowest close (ideal)", "lowest"},
	{"Highest close (worst)", "highest"},
	{"Day 11 at open", "calendar:11"},
}

// NewRegistry parses each (label, spec) pair into a Registry, in order.
// Labels must be unique.
func NewRegistry(specs [][2]string) (*strategy.Registry, error) {
	r := strategy.NewRegistry()
	for _, s := range specs {
		if _, dup := r.Get(s[0]); dup {
			return nil, strategy.NewInputError("label", "duplicate strategy label %q", s[0])
		}
		p, err := Parse(s[1])
		if err != nil {
			return nil, err
		}
		r.Register(s[0], p)
	}
	return r, nil
}

// DefaultRegistry returns a Registry holding DefaultSpecs.
func DefaultRegistry() *strategy.Registry {
	specs := make([][2]string, len(DefaultSpecs))
	for i, s := range DefaultSpecs {
		specs[i] = [2]string{s.Label, s.Spec}
	}
	r, err := NewRegistry(specs)
	if err != nil {
		panic(err) // DefaultSpecs is static
	}
	return r
}
