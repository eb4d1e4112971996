// Package download starts the external downloader for a course directory.
package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"leccap/internal/procgroup"
)

// LinksFileEnv names the environment variable carrying the link file name.
const LinksFileEnv = "LECCAP_LINKS_FILE"

// Launcher runs Command through the shell in a course directory, detached in
// its own process group with output sent to LogFile.
type Launcher struct {
	Command   string
	LinksFile string
	LogFile   string
	// Shell defaults to "sh".
	Shell  string
	Logger zerolog.Logger

	wg     sync.WaitGroup
	mu     sync.Mutex
	groups map[int]struct{}
}

// Start launches the downloader in dir and returns its process group id
// without waiting for it to finish.
func (l *Launcher) Start(ctx context.Context, dir string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if l.Command == "" {
		return 0, errors.New("download command is empty")
	}
	shell := l.Shell
	if shell == "" {
		shell = "sh"
	}
	out, err := os.OpenFile(filepath.Join(dir, l.LogFile), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open download log: %w", err)
	}
	// The child holds its own descriptor once started.
	defer out.Close()

	// Not tied to ctx: downloads outlive the run.
	cmd := exec.Command(shell, "-c", l.Command)
	cmd.Dir = dir
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.Env = append(os.Environ(), LinksFileEnv+"="+l.LinksFile)

	pgid, err := procgroup.Start(cmd)
	if err != nil {
		return 0, fmt.Errorf("start downloader: %w", err)
	}
	l.Logger.Debug().Str("dir", dir).Int("pgid", pgid).Str("command", l.Command).Msg("downloader started")

	l.mu.Lock()
	if l.groups == nil {
		l.groups = make(map[int]struct{})
	}
	l.groups[pgid] = struct{}{}
	l.mu.Unlock()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		err := cmd.Wait()
		l.mu.Lock()
		delete(l.groups, pgid)
		l.mu.Unlock()
		ev := l.Logger.Debug()
		if err != nil {
			ev = l.Logger.Warn().Err(err)
		}
		ev.Str("dir", dir).Int("pgid", pgid).Msg("downloader exited")
	}()
	return pgid, nil
}

// Wait blocks until every downloader started by l has exited. If ctx ends
// first, every still running process group is killed and ctx.Err() is
// returned once they are reaped.
func (l *Launcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}

	l.mu.Lock()
	for pgid := range l.groups {
		if err := procgroup.Kill(pgid); err != nil {
			l.Logger.Warn().Err(err).Int("pgid", pgid).Msg("cannot stop downloader")
			continue
		}
		l.Logger.Info().Int("pgid", pgid).Msg("downloader stopped")
	}
	l.mu.Unlock()
	<-done
	return ctx.Err()
}
