package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"leccap/internal/cli"
	"leccap/internal/config"
	"leccap/internal/domain"
	"leccap/internal/download"
	"leccap/internal/log"
	"leccap/internal/metrics"
	"leccap/internal/netx"
	"leccap/internal/portal"
	"leccap/internal/procgroup"
	"leccap/internal/util"
)

var version = "dev"

var (
	newRunID = func() string {
		id, err := uuid.NewV7()
		if err != nil {
			return uuid.NewString()
		}
		return id.String()
	}
	newPortal = func(cfg config.Config, logger zerolog.Logger) (portalAPI, error) {
		return portal.NewSession(portal.Options{
			BaseURL:           cfg.BaseURL,
			CookiesFile:       cfg.CookiesFile,
			Concurrency:       cfg.RequestConcurrency,
			RequestsPerSecond: cfg.RequestsPerSecond,
			HTTP: netx.Options{
				Timeout: 45 * time.Second,
				Retry:   netx.RetryOptions{Retries: 3, BaseDelay: 300 * time.Millisecond, MaxDelay: 2 * time.Second},
			},
		}, logger)
	}
	newLauncher = func(cfg config.Config, logger zerolog.Logger) launcherAPI {
		return &download.Launcher{
			Command:   cfg.Download.Command,
			LinksFile: cfg.Download.LinksFile,
			LogFile:   cfg.Download.LogFile,
			Logger:    logger,
		}
	}
	loadConfigFn           = config.Load
	exitFn                 = cli.Exit
	logOutput    io.Writer = nil
	stdout       io.Writer = os.Stdout
)

type portalAPI interface {
	WaitForLogin(ctx context.Context, timeout time.Duration) error
	ListCourses(ctx context.Context, year int) ([]domain.CourseEntry, error)
	Recordings(ctx context.Context, href string) ([]domain.RecordingDescriptor, error)
}

type launcherAPI interface {
	Start(ctx context.Context, dir string) (int, error)
	Wait(ctx context.Context) error
}

func execute(ctx context.Context, args []string, cfgLoader func(path string) (config.Config, error)) int {
	opts, err := cli.ParseArgs(args, version, stdout)
	if errors.Is(err, cli.ErrHelp) {
		return 0
	}
	log.Configure(log.Config{Level: opts.LogLevel, Output: logOutput})
	ctx = log.ContextWithRunID(ctx, newRunID())
	logger := cli.NewLogger(log.FromContext(ctx))
	if err != nil {
		logger.Error(formatError(err))
		return 1
	}

	resolvedCfg, err := filepath.Abs(opts.ConfigPath)
	if err != nil {
		logger.Error(formatError(err))
		return 1
	}
	cfg, err := cfgLoader(resolvedCfg)
	if err != nil {
		logger.Error(formatError(err))
		return 1
	}
	if opts.LogLevel == "" && cfg.LogLevel != "" {
		log.Configure(log.Config{Level: cfg.LogLevel, Output: logOutput})
		logger = cli.NewLogger(log.FromContext(ctx))
	}
	// Keep output paths deterministic for logs and downstream tooling.
	outputDir, _ := filepath.Abs(cfg.OutputDir)

	session, err := newPortal(cfg, log.WithComponent(ctx, "portal"))
	if err != nil {
		logger.Error(formatError(err))
		return 1
	}
	logger.Info("Waiting for login: sign in at " + cfg.BaseURL + "/leccap and export cookies to " + cfg.CookiesFile)
	if err := session.WaitForLogin(ctx, cfg.LoginTimeout); err != nil {
		if errors.Is(err, portal.ErrLoginTimeout) {
			logger.Error("Login timeout occurred. Please restart.")
		} else {
			logger.Error(formatError(err))
		}
		return 1
	}

	startDownloads := cfg.DownloadEnabled() && !opts.NoDownload
	launcher := newLauncher(cfg, log.WithComponent(ctx, "download"))
	progress := cli.NewProgress("courses")
	runner := domain.NewRunner(session, launcher, domain.RunOptions{
		Years:          cfg.Years(),
		Courses:        courseJobs(cfg),
		OutputDir:      outputDir,
		LinksFile:      cfg.Download.LinksFile,
		ListingTimeout: cfg.ListingTimeout,
		ScriptTimeout:  cfg.ScriptTimeout,
		Download:       startDownloads,
		Sanitizer:      util.NewSanitizer(cfg.FileNameChars),
		OnProgress:     progress.Update,
	}, log.WithComponent(ctx, "runner"))

	started := time.Now()
	summary := runner.Run(ctx)
	progress.Stop()
	took := time.Since(started)

	for _, err := range summary.YearErrors {
		logger.Failure(formatError(err))
	}
	for _, c := range summary.Courses {
		switch {
		case c.Skipped:
			logger.Failure(c.Key + " -> timed out getting links, ignored")
		case c.Err != nil:
			logger.Failure(c.Key + " -> " + formatError(c.Err))
		case c.PGID > 0:
			logger.Success(fmt.Sprintf("%s: %d links, downloading (stop with `%s`)", c.Key, c.Accepted, procgroup.KillHint(c.PGID)))
		default:
			logger.Success(fmt.Sprintf("%s: %d links saved to %s", c.Key, c.Accepted, c.Dir))
		}
	}
	if summary.Resolved < len(cfg.Courses) {
		logger.Warn(fmt.Sprintf("Found %d of %d configured courses", summary.Resolved, len(cfg.Courses)))
	}

	if cfg.MetricsTextfile != "" {
		m := metrics.NewRun()
		m.Observe(summary, took, time.Now())
		if err := m.WriteTextfile(cfg.MetricsTextfile); err != nil {
			logger.Warn("Writing metrics failed: " + formatError(err))
		}
	}

	logger.Info(fmt.Sprintf("Completed. courses=%d links=%d failed=%d", len(summary.Courses), summary.Accepted(), summary.Failed()))
	if startDownloads && opts.Wait {
		logger.Info("Waiting for downloads to finish (Ctrl-C stops them)")
		if err := launcher.Wait(ctx); err != nil {
			logger.Warn("Downloads stopped: " + formatError(err))
		}
	}
	if summary.Failed() > 0 {
		return 2
	}
	return 0
}

func courseJobs(cfg config.Config) []domain.CourseJob {
	jobs := make([]domain.CourseJob, 0, len(cfg.Courses))
	for _, c := range cfg.Courses {
		jobs = append(jobs, domain.CourseJob{
			Key: c.Key,
			Filter: domain.NewFilterSpec(
				c.Filters.TitleFilters,
				c.Filters.SectionFilters,
				c.Filters.TimeFilters,
				cfg.Tolerance(c),
			),
		})
	}
	return jobs
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	exitCode := execute(ctx, os.Args[1:], loadConfigFn)
	stop()
	exitFn(exitCode)
}

func formatError(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
