package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"leccap/internal/util"
)

// ErrNoCourseList marks a year whose listing page carries no course list,
// typically because no courses were recorded that year.
var ErrNoCourseList = errors.New("no course list")

// CourseEntry is one course as displayed on a year listing page.
type CourseEntry struct {
	Name string
	Href string
}

// CourseMap maps folded course keys to course page hrefs. Keys keep insertion
// order and are never overwritten.
type CourseMap struct {
	keys  []string
	hrefs map[string]string
}

// NewCourseMap returns an empty CourseMap.
func NewCourseMap() *CourseMap {
	return &CourseMap{hrefs: make(map[string]string)}
}

// InsertIfAbsent records href for key unless key is already present. It
// reports whether the insert happened.
func (m *CourseMap) InsertIfAbsent(key, href string) bool {
	if _, ok := m.hrefs[key]; ok {
		return false
	}
	m.keys = append(m.keys, key)
	m.hrefs[key] = href
	return true
}

// Get returns the href recorded for key.
func (m *CourseMap) Get(key string) (string, bool) {
	href, ok := m.hrefs[key]
	return href, ok
}

// Keys returns keys in insertion order.
func (m *CourseMap) Keys() []string {
	return append([]string(nil), m.keys...)
}

// Len returns the number of resolved courses.
func (m *CourseMap) Len() int {
	return len(m.keys)
}

// ResolveCourses matches one year's listing against the desired course keys
// and inserts the first hit per key into into. Keys already present win.
// It returns how many courses were newly recorded.
func ResolveCourses(listing []CourseEntry, keys []string, into *CourseMap, logger zerolog.Logger) int {
	added := 0
	for _, entry := range listing {
		name := entry.Name
		key, ok := util.FindContained(&name, keys, false)
		if !ok {
			continue
		}
		if into.InsertIfAbsent(key, entry.Href) {
			logger.Info().Str("course", key).Str("listed_as", entry.Name).Msg("found course")
			added++
		}
	}
	return added
}

type courseLister interface {
	ListCourses(ctx context.Context, year int) ([]CourseEntry, error)
}

// ResolveYears lists every year in order and merges the matches so the
// earliest year a course appears in wins. A year without a course list counts
// as zero results; other listing failures are collected and the scan goes on.
func ResolveYears(ctx context.Context, lister courseLister, years []int, keys []string, timeout time.Duration, logger zerolog.Logger) (*CourseMap, []error) {
	m := NewCourseMap()
	var errs []error
	for _, year := range years {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		logger.Info().Int("year", year).Msg("listing courses")
		listing, err := listYear(ctx, lister, year, timeout)
		if errors.Is(err, ErrNoCourseList) {
			logger.Info().Int("year", year).Msg("no courses found")
			continue
		}
		if err != nil {
			logger.Warn().Int("year", year).Err(err).Msg("course listing failed")
			errs = append(errs, fmt.Errorf("year %d: %w", year, err))
			continue
		}
		ResolveCourses(listing, keys, m, logger.With().Int("year", year).Logger())
	}
	return m, errs
}

func listYear(ctx context.Context, lister courseLister, year int, timeout time.Duration) ([]CourseEntry, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return lister.ListCourses(ctx, year)
}
