package domain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"leccap/internal/util"
)

type recordingSource interface {
	courseLister
	Recordings(ctx context.Context, href string) ([]RecordingDescriptor, error)
}

type launcherAPI interface {
	// Start runs the downloader over the link file in dir without waiting
	// and returns the process group id.
	Start(ctx context.Context, dir string) (int, error)
}

// CourseJob is one configured course: its folded key and filters.
type CourseJob struct {
	Key    string
	Filter FilterSpec
}

// RunOptions configures a full harvest run.
type RunOptions struct {
	Years          []int
	Courses        []CourseJob
	OutputDir      string
	LinksFile      string
	ListingTimeout time.Duration
	// ScriptTimeout bounds the recording extraction of each course.
	ScriptTimeout time.Duration
	Download      bool
	Sanitizer     util.Sanitizer
	OnProgress    func(done, total int)
}

// CourseResult reports what happened to one resolved course.
type CourseResult struct {
	Key      string
	Href     string
	Dir      string
	Accepted int
	Rejected int
	Invalid  int
	// Skipped is set when recording extraction exceeded ScriptTimeout.
	Skipped bool
	PGID    int
	Err     error
}

// Summary aggregates a run.
type Summary struct {
	Resolved   int
	Courses    []CourseResult
	YearErrors []error
}

// Failed counts courses that were skipped or failed, plus failed years.
func (s Summary) Failed() int {
	n := len(s.YearErrors)
	for _, c := range s.Courses {
		if c.Skipped || c.Err != nil {
			n++
		}
	}
	return n
}

// Accepted counts links written across all courses.
func (s Summary) Accepted() int {
	n := 0
	for _, c := range s.Courses {
		n += c.Accepted
	}
	return n
}

// Runner resolves configured courses across years, writes one link file per
// course and hands each to the downloader.
type Runner struct {
	source   recordingSource
	launcher launcherAPI
	opts     RunOptions
	logger   zerolog.Logger
}

// NewRunner wires a Runner. launcher may be nil when opts.Download is false.
func NewRunner(source recordingSource, launcher launcherAPI, opts RunOptions, logger zerolog.Logger) *Runner {
	return &Runner{source: source, launcher: launcher, opts: opts, logger: logger}
}

// Run processes courses one at a time. Per-course failures are recorded in
// the summary and never stop the run.
func (r *Runner) Run(ctx context.Context) Summary {
	keys := make([]string, len(r.opts.Courses))
	jobs := make(map[string]CourseJob, len(r.opts.Courses))
	for i, job := range r.opts.Courses {
		keys[i] = job.Key
		jobs[job.Key] = job
	}

	courses, yearErrs := ResolveYears(ctx, r.source, r.opts.Years, keys, r.opts.ListingTimeout, r.logger)
	summary := Summary{Resolved: courses.Len(), YearErrors: yearErrs}

	resolved := courses.Keys()
	for i, key := range resolved {
		href, _ := courses.Get(key)
		res := r.runCourse(ctx, jobs[key], href)
		summary.Courses = append(summary.Courses, res)
		if r.opts.OnProgress != nil {
			r.opts.OnProgress(i+1, len(resolved))
		}
	}
	return summary
}

func (r *Runner) runCourse(ctx context.Context, job CourseJob, href string) CourseResult {
	res := CourseResult{
		Key:  job.Key,
		Href: href,
		Dir:  filepath.Join(r.opts.OutputDir, strings.ReplaceAll(job.Key, " ", "")),
	}
	logger := r.logger.With().Str("course", job.Key).Logger()
	logger.Info().Str("href", href).Str("dir", res.Dir).Msg("working on course")

	if err := os.MkdirAll(res.Dir, 0o755); err != nil {
		res.Err = err
		return res
	}

	recs, timedOut, err := r.recordings(ctx, href)
	if timedOut {
		logger.Warn().Dur("timeout", r.opts.ScriptTimeout).Msg("timed out getting links, ignoring course")
		res.Skipped = true
		return res
	}
	if err != nil {
		logger.Error().Err(err).Msg("getting links failed")
		res.Err = err
		return res
	}

	ext := NewPipeline(r.opts.Sanitizer, logger).Extract(recs, NewFilter(job.Filter, logger))
	res.Accepted, res.Rejected, res.Invalid = len(ext.Links), ext.Rejected, len(ext.Invalid)

	linksPath := filepath.Join(res.Dir, r.opts.LinksFile)
	if err := WriteLinkFile(linksPath, ext.Links); err != nil {
		res.Err = err
		return res
	}
	logger.Info().Int("accepted", res.Accepted).Int("rejected", res.Rejected).Str("path", linksPath).Msg("links saved")

	if !r.opts.Download || r.launcher == nil {
		return res
	}
	pgid, err := r.launcher.Start(ctx, res.Dir)
	if err != nil {
		res.Err = fmt.Errorf("start downloader: %w", err)
		return res
	}
	res.PGID = pgid
	logger.Info().Int("pgid", pgid).Str("kill", fmt.Sprintf("kill -9 -%d", pgid)).Msg("downloading videos")
	return res
}

func (r *Runner) recordings(ctx context.Context, href string) ([]RecordingDescriptor, bool, error) {
	if r.opts.ScriptTimeout <= 0 {
		recs, err := r.source.Recordings(ctx, href)
		return recs, false, err
	}
	cctx, cancel := context.WithTimeout(ctx, r.opts.ScriptTimeout)
	defer cancel()
	recs, err := r.source.Recordings(cctx, href)
	if err == nil {
		return recs, false, nil
	}
	// The course budget ran out while the run itself is still live.
	timedOut := ctx.Err() == nil && (errors.Is(cctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded))
	return nil, timedOut, err
}
