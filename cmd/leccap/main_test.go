package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leccap/internal/config"
	"leccap/internal/domain"
	"leccap/internal/portal"
	"leccap/internal/util"
)

func TestFormatError(t *testing.T) {
	if got := formatError(nil); got != "" {
		t.Fatalf("want empty string, got %q", got)
	}
	if got := formatError(errors.New("boom")); got != "boom" {
		t.Fatalf("want boom, got %q", got)
	}
}

type fakePortal struct {
	loginErr error
	listings map[int][]domain.CourseEntry
	listErr  map[int]error
	recs     map[string][]domain.RecordingDescriptor
}

func (f *fakePortal) WaitForLogin(context.Context, time.Duration) error { return f.loginErr }

func (f *fakePortal) ListCourses(_ context.Context, year int) ([]domain.CourseEntry, error) {
	if err := f.listErr[year]; err != nil {
		return nil, err
	}
	if l, ok := f.listings[year]; ok {
		return l, nil
	}
	return nil, portal.ErrNoCourseList
}

func (f *fakePortal) Recordings(_ context.Context, href string) ([]domain.RecordingDescriptor, error) {
	return f.recs[href], nil
}

type fakeLauncher struct {
	dirs    []string
	waited  bool
	waitErr error
}

func (f *fakeLauncher) Start(_ context.Context, dir string) (int, error) {
	f.dirs = append(f.dirs, dir)
	return 4242, nil
}

func (f *fakeLauncher) Wait(context.Context) error {
	f.waited = true
	return f.waitErr
}

type harness struct {
	portal   *fakePortal
	launcher *fakeLauncher
	logs     *bytes.Buffer
}

func setup(t *testing.T, p *fakePortal) *harness {
	t.Helper()
	h := &harness{portal: p, launcher: &fakeLauncher{}, logs: &bytes.Buffer{}}

	oldPortal, oldLauncher, oldOut, oldStdout, oldRunID := newPortal, newLauncher, logOutput, stdout, newRunID
	t.Cleanup(func() {
		newPortal, newLauncher, logOutput, stdout, newRunID = oldPortal, oldLauncher, oldOut, oldStdout, oldRunID
	})
	newPortal = func(config.Config, zerolog.Logger) (portalAPI, error) { return h.portal, nil }
	newLauncher = func(config.Config, zerolog.Logger) launcherAPI { return h.launcher }
	logOutput = h.logs
	stdout = &bytes.Buffer{}
	newRunID = func() string { return "run-1" }
	return h
}

func baseConfig(t *testing.T) config.Config {
	return config.Config{
		StartYear:      2023,
		EndYear:        2024,
		OutputDir:      t.TempDir(),
		ListingTimeout: time.Second,
		ScriptTimeout:  time.Second,
		Download:       config.Download{LinksFile: "links.txt", LogFile: "download_output.txt"},
		Courses: config.CourseList{
			{Key: "eecs 281", Filters: config.Filters{SectionFilters: []string{"lec"}}},
		},
	}
}

func loader(cfg config.Config) func(string) (config.Config, error) {
	return func(string) (config.Config, error) { return cfg, nil }
}

func eecsPortal() *fakePortal {
	return &fakePortal{
		listings: map[int][]domain.CourseEntry{
			2024: {{Name: "EECS 281 Data Structures", Href: "/leccap/site/abc"}},
		},
		recs: map[string][]domain.RecordingDescriptor{
			"/leccap/site/abc": {
				{Title: util.Ptr("Lecture 1"), Section: util.Ptr("Lec A"), Date: "Mon 1/8 • 10:30 AM", URL: "http://x/1.mp4"},
				{Title: util.Ptr("Discussion"), Section: util.Ptr("Disc"), Date: "Tue 1/9 • 2:00 PM", URL: "http://x/2.mp4"},
			},
		},
	}
}

func TestExecuteHelp(t *testing.T) {
	setup(t, &fakePortal{})
	assert.Equal(t, 0, execute(context.Background(), []string{"--help"}, loader(config.Config{})))
}

func TestExecuteBadFlag(t *testing.T) {
	h := setup(t, &fakePortal{})
	assert.Equal(t, 1, execute(context.Background(), []string{"--bogus"}, loader(config.Config{})))
	assert.Contains(t, h.logs.String(), "unknown flag")
}

func TestExecuteConfigError(t *testing.T) {
	setup(t, &fakePortal{})
	code := execute(context.Background(), []string{"--config", "x.yaml"}, func(string) (config.Config, error) {
		return config.Config{}, errors.New("bad config")
	})
	assert.Equal(t, 1, code)
}

func TestExecuteLoginTimeout(t *testing.T) {
	h := setup(t, &fakePortal{loginErr: portal.ErrLoginTimeout})
	code := execute(context.Background(), nil, loader(baseConfig(t)))
	assert.Equal(t, 1, code)
	assert.Contains(t, h.logs.String(), "Login timeout")
	assert.Empty(t, h.launcher.dirs)
}

func TestExecuteSuccess(t *testing.T) {
	h := setup(t, eecsPortal())
	cfg := baseConfig(t)
	cfg.MetricsTextfile = filepath.Join(t.TempDir(), "leccap.prom")

	code := execute(context.Background(), []string{"--wait"}, loader(cfg))
	require.Equal(t, 0, code, h.logs.String())

	dir := filepath.Join(cfg.OutputDir, "eecs281")
	b, err := os.ReadFile(filepath.Join(dir, "links.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Lec_A_Lecture_1_10.30_AM.mp4 http://x/1.mp4\n", string(b))
	assert.Equal(t, []string{dir}, h.launcher.dirs)
	assert.True(t, h.launcher.waited)
	assert.Contains(t, h.logs.String(), "kill -9 -4242")
	assert.Contains(t, h.logs.String(), "run-1")

	prom, err := os.ReadFile(cfg.MetricsTextfile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `leccap_recordings_total{result="accepted"} 1`)
}

func TestExecuteNoDownload(t *testing.T) {
	h := setup(t, eecsPortal())
	code := execute(context.Background(), []string{"--no-download", "--wait"}, loader(baseConfig(t)))
	assert.Equal(t, 0, code)
	assert.Empty(t, h.launcher.dirs)
	assert.False(t, h.launcher.waited)
}

func TestExecutePartialFailure(t *testing.T) {
	p := eecsPortal()
	p.listErr = map[int]error{2023: errors.New("status 500")}
	h := setup(t, p)

	code := execute(context.Background(), nil, loader(baseConfig(t)))
	assert.Equal(t, 2, code)
	assert.True(t, strings.Contains(h.logs.String(), "year 2023"), h.logs.String())
}

func TestCourseJobsUsesCourseTolerance(t *testing.T) {
	five := 5
	cfg := baseConfig(t)
	cfg.Courses = append(cfg.Courses, config.Course{Key: "math 217", Filters: config.Filters{TimeToleranceMinutes: &five}})
	jobs := courseJobs(cfg)
	require.Len(t, jobs, 2)
	assert.Equal(t, util.DefaultTolerance, jobs[0].Filter.Window())
	assert.Equal(t, 5*time.Minute, jobs[1].Filter.Window())
	assert.Equal(t, []string{}, jobs[1].Filter.TitleFilters)
}

func TestExecuteWaitInterruptedStillReportsRun(t *testing.T) {
	h := setup(t, eecsPortal())
	h.launcher.waitErr = context.Canceled

	code := execute(context.Background(), []string{"--wait"}, loader(baseConfig(t)))
	assert.Equal(t, 0, code)
	assert.True(t, h.launcher.waited)
	assert.Contains(t, h.logs.String(), "Downloads stopped: context canceled")
}
