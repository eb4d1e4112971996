package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/sync/errgroup"

	"leccap/internal/domain"
)

const (
	playerPrefix = "/leccap/player/r/"
	productPath  = "/leccap/viewer/api/product/"
)

// ErrNoRecordings is returned when a course page carries no recordings data.
var ErrNoRecordings = errors.New("no recordings data on course page")

var recordingsAssign = regexp.MustCompile(`\brecordings\s*=\s*\[`)

type pageRecording struct {
	Title     *string `json:"title"`
	FileUnder *string `json:"fileUnder"`
	Date      string  `json:"date"`
	URL       string  `json:"url"`
}

type product struct {
	MediaPrefix string `json:"mediaPrefix"`
	SiteKey     string `json:"sitekey"`
	Info        struct {
		MovieExportedName string `json:"movie_exported_name"`
		MovieType         string `json:"movie_type"`
	} `json:"info"`
}

// MediaURL builds the downloadable file URL from a product lookup.
func (p product) MediaURL() string {
	return "https:" + p.MediaPrefix + p.SiteKey + "/" + p.Info.MovieExportedName + "." + p.Info.MovieType
}

// Recordings loads the course page at href and resolves every recording to
// its media URL. Page order is kept. Any failed lookup fails the course.
func (s *Session) Recordings(ctx context.Context, href string) ([]domain.RecordingDescriptor, error) {
	status, body, err := s.net.GetBytes(ctx, s.resolve(href), nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("course page: unexpected status %d", status)
	}
	entries, err := extractRecordings(body)
	if err != nil {
		return nil, err
	}

	out := make([]domain.RecordingDescriptor, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, e := range entries {
		i, e := i, e
		g.Go(func() error {
			if err := s.limiter.Wait(gctx); err != nil {
				return limiterError(gctx, err)
			}
			media, err := s.lookupMedia(gctx, strings.TrimPrefix(e.URL, playerPrefix))
			if err != nil {
				return fmt.Errorf("recording %q: %w", e.URL, err)
			}
			out[i] = domain.RecordingDescriptor{Title: e.Title, Section: e.FileUnder, Date: e.Date, URL: media}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	s.logger.Debug().Str("course", href).Int("recordings", len(out)).Msg("recordings resolved")
	return out, nil
}

// limiterError reports a wait the deadline cannot cover as the deadline
// itself; rate.Limiter does not wrap context.DeadlineExceeded.
func limiterError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if _, ok := ctx.Deadline(); ok {
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return err
}

func (s *Session) lookupMedia(ctx context.Context, key string) (string, error) {
	u := s.resolve(productPath) + "?" + url.Values{"rk": {key}}.Encode()
	status, body, err := s.net.GetBytes(ctx, u, map[string]string{"Accept": "application/json"})
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("product lookup: unexpected status %d", status)
	}
	var p product
	if err := json.Unmarshal(body, &p); err != nil {
		return "", fmt.Errorf("product lookup: %w", err)
	}
	if p.SiteKey == "" || p.Info.MovieExportedName == "" {
		return "", fmt.Errorf("product lookup: incomplete product for %q", key)
	}
	return p.MediaURL(), nil
}

// extractRecordings finds the inline `recordings = [...]` assignment in the
// page scripts and decodes the array literal.
func extractRecordings(body []byte) ([]pageRecording, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse course page: %w", err)
	}
	var found []pageRecording
	var decodeErr error
	findFirst(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.DataAtom != atom.Script || n.FirstChild == nil {
			return false
		}
		src := n.FirstChild.Data
		loc := recordingsAssign.FindStringIndex(src)
		if loc == nil {
			return false
		}
		dec := json.NewDecoder(strings.NewReader(src[loc[1]-1:]))
		if err := dec.Decode(&found); err != nil {
			decodeErr = fmt.Errorf("decode recordings: %w", err)
		}
		return true
	})
	if decodeErr != nil {
		return nil, decodeErr
	}
	if found == nil {
		return nil, ErrNoRecordings
	}
	return found, nil
}
