package cli

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
)

// Progress renders an in-place "label: done/total" line on a terminal and
// stays silent otherwise.
type Progress struct {
	mu       sync.Mutex
	out      io.Writer
	label    string
	enabled  bool
	rendered bool
}

// NewProgress creates a progress line on stdout.
func NewProgress(label string) *Progress {
	return &Progress{out: os.Stdout, label: label, enabled: isTerminal(os.Stdout)}
}

// Update refreshes the in-place progress line.
//
// If total is not known, it leaves output unchanged.
func (p *Progress) Update(done, total int) {
	if !p.enabled || total <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "\r%s: %d/%d", p.label, done, total)
	p.rendered = true
}

// Stop finalizes progress rendering by printing a trailing newline.
func (p *Progress) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.rendered {
		return
	}
	fmt.Fprintln(p.out)
	p.rendered = false
}

func isTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
