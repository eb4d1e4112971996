package util

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ClockLayout is the 12-hour wall-clock format used by recording dates and
// time filters, e.g. "10:30 AM".
const ClockLayout = "3:04 PM"

// TimeSeparator precedes the time of day inside a recording date label.
const TimeSeparator = "•"

// DefaultTolerance is the time filter window when none is configured.
const DefaultTolerance = 10 * time.Minute

// ErrNoTimeSeparator is returned when a date label carries no time of day.
var ErrNoTimeSeparator = errors.New("date has no time separator")

// ParseClock parses a "3:04 PM" wall-clock string on the zero date.
//
// The meridiem is matched case-insensitively.
func ParseClock(s string) (time.Time, error) {
	t, err := time.Parse(ClockLayout, strings.ToUpper(strings.TrimSpace(s)))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return t, nil
}

// ExtractClock returns the trimmed text after the first TimeSeparator in a
// recording date label such as "Mon 1/8 • 10:30 AM".
func ExtractClock(date string) (string, error) {
	_, after, ok := strings.Cut(date, TimeSeparator)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNoTimeSeparator, date)
	}
	return strings.TrimSpace(after), nil
}

// TimeMatcher decides whether a time of day lies within Tolerance of any
// reference time.
//
// Times are compared on the same day: 11:58 PM and 12:02 AM are almost a day
// apart, not four minutes.
type TimeMatcher struct {
	Tolerance time.Duration
	Logger    zerolog.Logger
}

// NewTimeMatcher returns a matcher with the given window. A negative tolerance
// selects DefaultTolerance.
func NewTimeMatcher(tolerance time.Duration, logger zerolog.Logger) TimeMatcher {
	if tolerance < 0 {
		tolerance = DefaultTolerance
	}
	return TimeMatcher{Tolerance: tolerance, Logger: logger}
}

// IsAnyClose reports whether clock is within the tolerance of any candidate.
//
// A nil clock or nil candidates yield false. A malformed clock is returned as
// an error; malformed candidates are logged and skipped.
func (m TimeMatcher) IsAnyClose(clock *string, candidates []string) (bool, error) {
	if clock == nil || candidates == nil {
		return false, nil
	}
	t1, err := ParseClock(*clock)
	if err != nil {
		return false, err
	}
	for _, c := range candidates {
		t2, err := ParseClock(c)
		if err != nil {
			m.Logger.Warn().Str("time", c).Err(err).Msg("time filter formatted improperly, ignoring")
			continue
		}
		d := t2.Sub(t1)
		if d < 0 {
			d = -d
		}
		if d <= m.Tolerance {
			return true, nil
		}
	}
	return false, nil
}
