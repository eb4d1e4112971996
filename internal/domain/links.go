package domain

import (
	"bufio"
	"fmt"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	"leccap/internal/util"
)

// AcceptedLink is a recording that passed its course filter, with
// filename-safe labels.
type AcceptedLink struct {
	Section  string
	Title    string
	Time     string
	URL      string
	FileName string
}

// Line renders the link as "<filename> <url>", the format the downloader reads.
func (l AcceptedLink) Line() string {
	return l.FileName + " " + l.URL
}

// Extraction is the outcome of filtering one course's recordings.
type Extraction struct {
	Links []AcceptedLink
	// Rejected counts recordings the filter turned down.
	Rejected int
	// Invalid holds one error per recording that could not be evaluated.
	Invalid []error
}

// Pipeline turns recording descriptors into accepted download links.
type Pipeline struct {
	sanitizer util.Sanitizer
	logger    zerolog.Logger
}

// NewPipeline returns a Pipeline that names files with sanitizer.
func NewPipeline(sanitizer util.Sanitizer, logger zerolog.Logger) Pipeline {
	return Pipeline{sanitizer: sanitizer, logger: logger}
}

// Extract applies filter to recs in order. Recordings whose date carries no
// usable time of day are logged and left out.
func (p Pipeline) Extract(recs []RecordingDescriptor, filter Filter) Extraction {
	var out Extraction
	for i, rec := range recs {
		clock, err := rec.Clock()
		if err == nil {
			var ok bool
			ok, err = filter.accept(rec, clock)
			if err == nil && !ok {
				out.Rejected++
				continue
			}
		}
		if err != nil {
			p.logger.Warn().Int("index", i).Str("url", rec.URL).Err(err).Msg("skipping recording")
			out.Invalid = append(out.Invalid, fmt.Errorf("recording %d: %w", i, err))
			continue
		}
		out.Links = append(out.Links, p.accepted(rec, clock))
	}
	return out
}

func (p Pipeline) accepted(rec RecordingDescriptor, clock string) AcceptedLink {
	l := AcceptedLink{
		Section: p.sanitizer.Sanitize(rec.Section),
		Title:   p.sanitizer.Sanitize(rec.Title),
		Time:    p.sanitizer.Sanitize(&clock),
		URL:     rec.URL,
	}
	l.FileName = fmt.Sprintf("%s_%s_%s.mp4", l.Section, l.Title, l.Time)
	return l
}

// WriteLinkFile atomically replaces path with one newline-terminated line per
// link.
func WriteLinkFile(path string, links []AcceptedLink) error {
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending link file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	w := bufio.NewWriter(pending)
	for _, l := range links {
		if _, err := w.WriteString(l.Line() + "\n"); err != nil {
			return fmt.Errorf("write link file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write link file: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace link file: %w", err)
	}
	return nil
}
