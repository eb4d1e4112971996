package domain

import (
	"time"

	"github.com/rs/zerolog"

	"leccap/internal/util"
)

// FilterSpec holds the three independent match dimensions for one course.
// All three empty means accept everything.
type FilterSpec struct {
	TitleFilters   []string
	SectionFilters []string
	TimeFilters    []string
	// Tolerance is the time filter window. Nil selects util.DefaultTolerance;
	// a zero window asks for an exact minute.
	Tolerance *time.Duration
}

// NewFilterSpec builds a FilterSpec, turning missing lists into empty ones.
// tolerance is taken as given, so 0 means exact time matches.
func NewFilterSpec(titles, sections, times []string, tolerance time.Duration) FilterSpec {
	return FilterSpec{
		TitleFilters:   orEmpty(titles),
		SectionFilters: orEmpty(sections),
		TimeFilters:    orEmpty(times),
		Tolerance:      &tolerance,
	}
}

// Window returns the effective time filter window.
func (s FilterSpec) Window() time.Duration {
	if s.Tolerance == nil {
		return util.DefaultTolerance
	}
	return *s.Tolerance
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// AcceptsAll reports whether no filter list has entries.
func (s FilterSpec) AcceptsAll() bool {
	return len(s.TitleFilters) == 0 && len(s.SectionFilters) == 0 && len(s.TimeFilters) == 0
}

// Filter decides which recordings of a course are kept.
type Filter struct {
	spec  FilterSpec
	times util.TimeMatcher
}

// NewFilter binds spec to a time matcher using spec.Window().
func NewFilter(spec FilterSpec, logger zerolog.Logger) Filter {
	return Filter{spec: spec, times: util.NewTimeMatcher(spec.Window(), logger)}
}

// Accept reports whether rec passes the filter: no filters are set, or the
// title matches, or the section matches, or the time of day is close to a
// time filter.
//
// A date without a time of day, or with a malformed one that has to be
// compared, is returned as an error.
func (f Filter) Accept(rec RecordingDescriptor) (bool, error) {
	clock, err := rec.Clock()
	if err != nil {
		return false, err
	}
	return f.accept(rec, clock)
}

func (f Filter) accept(rec RecordingDescriptor, clock string) (bool, error) {
	if f.spec.AcceptsAll() {
		return true, nil
	}
	if _, ok := util.FindContained(rec.Title, f.spec.TitleFilters, false); ok {
		return true, nil
	}
	if _, ok := util.FindContained(rec.Section, f.spec.SectionFilters, false); ok {
		return true, nil
	}
	return f.times.IsAnyClose(&clock, f.spec.TimeFilters)
}
