// Package portal talks to the lecture capture portal over HTTP using the
// cookies of a browser session the user logged into manually.
package portal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"leccap/internal/domain"
	"leccap/internal/netx"
)

// LoggedInTitle is the page title fragment shown once the user is signed in.
const LoggedInTitle = "Lecture Recordings"

var (
	// ErrLoginTimeout is returned when no logged-in session appears in time.
	ErrLoginTimeout = errors.New("login timeout")
	// ErrNoCourseList aliases the domain sentinel so callers can match either.
	ErrNoCourseList = domain.ErrNoCourseList
)

// Options configures a Session.
type Options struct {
	BaseURL     string
	CookiesFile string
	// Concurrency bounds in-flight media lookups per course page.
	Concurrency int
	// RequestsPerSecond throttles media lookups; zero disables throttling.
	RequestsPerSecond float64
	// PollInterval re-checks the portal while waiting for login even when the
	// cookie file does not change.
	PollInterval time.Duration
	HTTP         netx.Options
}

// Session is the authenticated portal client.
type Session struct {
	net         *netx.Client
	base        *url.URL
	cookiesFile string
	concurrency int
	limiter     *rate.Limiter
	poll        time.Duration
	logger      zerolog.Logger
}

// NewSession builds a Session. Cookies are loaded by WaitForLogin.
func NewSession(opts Options, logger zerolog.Logger) (*Session, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", opts.BaseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpOpts := opts.HTTP
	httpOpts.Jar = jar
	if httpOpts.UserAgent == "" {
		httpOpts.UserAgent = "leccap/1"
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	conc := opts.Concurrency
	if conc <= 0 {
		conc = 1
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = 5 * time.Second
	}
	return &Session{
		net:         netx.NewClient(httpOpts),
		base:        base,
		cookiesFile: opts.CookiesFile,
		concurrency: conc,
		limiter:     rate.NewLimiter(limit, conc),
		poll:        poll,
		logger:      logger,
	}, nil
}

func (s *Session) resolve(ref string) string {
	u, err := s.base.Parse(ref)
	if err != nil {
		return s.base.String() + ref
	}
	return u.String()
}

// LoadCookies installs the cookie file into the session jar. Cookies for
// other hosts are ignored.
func (s *Session) LoadCookies() (int, error) {
	cookies, err := ReadCookieFile(s.cookiesFile)
	if err != nil {
		return 0, err
	}
	host := s.base.Hostname()
	kept := cookies[:0]
	for _, c := range cookies {
		if c.Domain == "" || host == c.Domain || strings.HasSuffix(host, "."+c.Domain) {
			kept = append(kept, c)
		}
	}
	s.net.Jar().SetCookies(s.base, kept)
	return len(kept), nil
}

// LoggedIn reports whether the portal landing page shows the signed-in title.
func (s *Session) LoggedIn(ctx context.Context) (bool, error) {
	status, body, err := s.net.GetBytes(ctx, s.resolve("/leccap"), nil)
	if err != nil {
		return false, err
	}
	if status != http.StatusOK {
		return false, nil
	}
	title, err := pageTitle(body)
	if err != nil {
		return false, err
	}
	return strings.Contains(title, LoggedInTitle), nil
}

// WaitForLogin blocks until the portal accepts the session cookies or timeout
// elapses. The cookie file is re-read whenever it is created or rewritten, so
// the user can sign in and export cookies while this waits.
func (s *Session) WaitForLogin(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	// Watch the directory: the file may not exist yet and editors replace it.
	if err := watcher.Add(filepath.Dir(s.cookiesFile)); err != nil {
		return fmt.Errorf("watch %s: %w", s.cookiesFile, err)
	}
	target := filepath.Clean(s.cookiesFile)

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	prompted := false
	for {
		if ok := s.checkLogin(ctx); ok {
			s.logger.Info().Str("event", "portal.logged_in").Msg("login detected")
			return nil
		}
		if !prompted {
			s.logger.Info().
				Str("event", "portal.await_login").
				Str("cookies_file", s.cookiesFile).
				Dur("timeout", timeout).
				Msg("sign in to the portal in your browser and export its cookies")
			prompted = true
		}
	wait:
		for {
			select {
			case <-ctx.Done():
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return ErrLoginTimeout
				}
				return ctx.Err()
			case ev, ok := <-watcher.Events:
				if !ok {
					return ErrLoginTimeout
				}
				if filepath.Clean(ev.Name) == target && (ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
					break wait
				}
			case werr, ok := <-watcher.Errors:
				if ok {
					s.logger.Warn().Err(werr).Str("event", "portal.watcher_error").Msg("cookie watcher error")
				}
			case <-ticker.C:
				break wait
			}
		}
	}
}

func (s *Session) checkLogin(ctx context.Context) bool {
	n, err := s.LoadCookies()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Err(err).Str("event", "portal.cookies_invalid").Msg("cannot load cookie file")
		}
		return false
	}
	ok, err := s.LoggedIn(ctx)
	if err != nil && ctx.Err() == nil {
		s.logger.Warn().Err(err).Str("event", "portal.login_check_failed").Msg("login check failed")
	}
	s.logger.Debug().Int("cookies", n).Bool("logged_in", ok).Msg("login check")
	return ok
}
