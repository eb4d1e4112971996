package domain

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leccap/internal/util"
)

type fakeSource struct {
	fakeLister
	recs    map[string][]RecordingDescriptor
	recErrs map[string]error
	block   map[string]bool
	// opaque pages wait for the deadline and then fail with an error that
	// does not wrap it.
	opaque map[string]bool
}

func (f *fakeSource) Recordings(ctx context.Context, href string) ([]RecordingDescriptor, error) {
	if f.block[href] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.opaque[href] {
		<-ctx.Done()
		return nil, errors.New("script gave up")
	}
	if err := f.recErrs[href]; err != nil {
		return nil, err
	}
	return f.recs[href], nil
}

type fakeLauncher struct {
	dirs []string
	err  error
}

func (f *fakeLauncher) Start(ctx context.Context, dir string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.dirs = append(f.dirs, dir)
	return 4242, nil
}

func newTestSource() *fakeSource {
	return &fakeSource{
		fakeLister: fakeLister{byYear: map[int][]CourseEntry{
			2023: {
				{Name: "EECS 281 Data Structures", Href: "/281"},
				{Name: "EECS 370 Architecture", Href: "/370"},
				{Name: "MATH 217", Href: "/217"},
			},
		}},
		recs: map[string][]RecordingDescriptor{
			"/281": {
				{Title: util.Ptr("Lec 1"), Section: util.Ptr("Disc A"), Date: "Mon • 10:00 AM", URL: "http://x/1.mp4"},
				{Title: util.Ptr("Lec 2"), Section: util.Ptr("Disc B"), Date: "Tue • 10:00 AM", URL: "http://x/2.mp4"},
			},
		},
		recErrs: map[string]error{"/217": errors.New("page broke")},
		block:   map[string]bool{"/370": true},
	}
}

func TestRunnerRun(t *testing.T) {
	out := t.TempDir()
	src := newTestSource()
	launcher := &fakeLauncher{}
	var progress []int
	opts := RunOptions{
		Years: []int{2023},
		Courses: []CourseJob{
			{Key: "eecs 281", Filter: NewFilterSpec(nil, []string{"disc a"}, nil, 10*time.Minute)},
			{Key: "eecs 370", Filter: NewFilterSpec(nil, nil, nil, 10*time.Minute)},
			{Key: "math 217", Filter: NewFilterSpec(nil, nil, nil, 10*time.Minute)},
		},
		OutputDir:     out,
		LinksFile:     "links.txt",
		ScriptTimeout: 20 * time.Millisecond,
		Download:      true,
		OnProgress:    func(done, total int) { progress = append(progress, done, total) },
	}
	summary := NewRunner(src, launcher, opts, zerolog.Nop()).Run(context.Background())

	require.Equal(t, 3, summary.Resolved)
	require.Len(t, summary.Courses, 3)
	assert.Equal(t, 2, summary.Failed())
	assert.Equal(t, 1, summary.Accepted())
	assert.Equal(t, []int{1, 3, 2, 3, 3, 3}, progress)

	first := summary.Courses[0]
	assert.Equal(t, filepath.Join(out, "eecs281"), first.Dir)
	assert.Equal(t, 1, first.Accepted)
	assert.Equal(t, 1, first.Rejected)
	assert.Equal(t, 4242, first.PGID)
	b, err := os.ReadFile(filepath.Join(first.Dir, "links.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Disc_A_Lec_1_10.00_AM.mp4 http://x/1.mp4\n", string(b))

	assert.True(t, summary.Courses[1].Skipped)
	assert.Error(t, summary.Courses[2].Err)
	assert.Equal(t, []string{first.Dir}, launcher.dirs)
}

func TestRunnerWithoutDownload(t *testing.T) {
	src := newTestSource()
	launcher := &fakeLauncher{}
	opts := RunOptions{
		Years:     []int{2023},
		Courses:   []CourseJob{{Key: "eecs 281", Filter: NewFilterSpec(nil, nil, nil, 0)}},
		OutputDir: t.TempDir(),
		LinksFile: "links.txt",
	}
	summary := NewRunner(src, launcher, opts, zerolog.Nop()).Run(context.Background())
	require.Len(t, summary.Courses, 1)
	assert.Equal(t, 2, summary.Courses[0].Accepted)
	assert.Zero(t, summary.Failed())
	assert.Empty(t, launcher.dirs)
}

func TestRunnerLauncherFailure(t *testing.T) {
	src := newTestSource()
	opts := RunOptions{
		Years:     []int{2023},
		Courses:   []CourseJob{{Key: "eecs 281", Filter: NewFilterSpec(nil, nil, nil, 0)}},
		OutputDir: t.TempDir(),
		LinksFile: "links.txt",
		Download:  true,
	}
	summary := NewRunner(src, &fakeLauncher{err: errors.New("no sh")}, opts, zerolog.Nop()).Run(context.Background())
	require.Len(t, summary.Courses, 1)
	assert.ErrorContains(t, summary.Courses[0].Err, "start downloader")
	assert.FileExists(t, filepath.Join(summary.Courses[0].Dir, "links.txt"))
}

func TestRunnerSkipsOnCourseDeadlineWhateverTheError(t *testing.T) {
	src := newTestSource()
	src.block = nil
	src.opaque = map[string]bool{"/370": true}
	opts := RunOptions{
		Years:         []int{2023},
		Courses:       []CourseJob{{Key: "eecs 370", Filter: NewFilterSpec(nil, nil, nil, 0)}},
		OutputDir:     t.TempDir(),
		LinksFile:     "links.txt",
		ScriptTimeout: 20 * time.Millisecond,
	}
	summary := NewRunner(src, nil, opts, zerolog.Nop()).Run(context.Background())
	require.Len(t, summary.Courses, 1)
	assert.True(t, summary.Courses[0].Skipped)
	assert.NoError(t, summary.Courses[0].Err)
}

func TestRunnerCanceledRunIsNotASkip(t *testing.T) {
	src := newTestSource()
	ctx, cancel := context.WithCancel(context.Background())
	src.recErrs = map[string]error{"/281": context.Canceled}
	cancel()
	opts := RunOptions{
		Courses:       []CourseJob{{Key: "eecs 281", Filter: NewFilterSpec(nil, nil, nil, 0)}},
		OutputDir:     t.TempDir(),
		LinksFile:     "links.txt",
		ScriptTimeout: time.Second,
	}
	r := NewRunner(src, nil, opts, zerolog.Nop())
	res := r.runCourse(ctx, opts.Courses[0], "/281")
	assert.False(t, res.Skipped)
	assert.ErrorIs(t, res.Err, context.Canceled)
}
