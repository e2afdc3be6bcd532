package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// writerIsTTY reports whether w is backed by a terminal. Plain writers
// such as *bytes.Buffer are not.
func writerIsTTY(w io.Writer) bool {
	type fder interface {
		Fd() uintptr
	}
	if f, ok := w.(fder); ok {
		return isatty.IsTerminal(f.Fd())
	}
	return false
}

// ProgressBar renders a byte-count progress bar for downloads.
// Example: [=========>          ] 45% 12 MB / 27 MB fetching tool
type ProgressBar struct {
	mu          sync.Mutex
	total       int64
	current     int64
	description string
	width       int
	writer      io.Writer
}

// NewProgress creates a progress bar over total bytes. A zero total
// renders as an indeterminate counter.
func NewProgress(total int64, description string) *ProgressBar {
	return &ProgressBar{
		total:       total,
		description: description,
		width:       30,
		writer:      os.Stdout,
	}
}

// SetWriter redirects output, useful for testing.
func (p *ProgressBar) SetWriter(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writer = w
}

// Add advances the bar by n bytes and redraws it.
func (p *ProgressBar) Add(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current += n
	if p.total > 0 && p.current > p.total {
		p.current = p.total
	}
	p.render()
}

// Finish completes the bar and moves to the next line.
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.total > 0 {
		p.current = p.total
	}
	p.render()
	if writerIsTTY(p.writer) {
		fmt.Fprintln(p.writer)
	}
}

func (p *ProgressBar) render() {
	// Non-terminal output gets no redraws, just silence. Callers print
	// a summary line when done.
	if !writerIsTTY(p.writer) {
		return
	}

	if p.total <= 0 {
		fmt.Fprintf(p.writer, "\r%s %s", FormatSize(p.current), p.description)
		return
	}

	percent := int(p.current * 100 / p.total)
	filled := int(p.current * int64(p.width) / p.total)
	if filled > p.width {
		filled = p.width
	}

	bar := strings.Repeat("=", filled)
	if filled < p.width {
		bar += ">" + strings.Repeat(" ", p.width-filled-1)
	}
	fmt.Fprintf(p.writer, "\r[%s] %3d%% %s / %s %s",
		bar, percent, FormatSize(p.current), FormatSize(p.total), p.description)
}

// Spinner shows activity for operations without a known length.
type Spinner struct {
	mu          sync.Mutex
	description string
	writer      io.Writer
	frames      []string
	frame       int
	stop        chan struct{}
	done        sync.WaitGroup
	running     bool
}

// NewSpinner creates a spinner with the given description.
func NewSpinner(description string) *Spinner {
	return &Spinner{
		description: description,
		writer:      os.Stdout,
		frames:      []string{"|", "/", "-", "\\"},
	}
}

// SetWriter redirects output, useful for testing.
func (s *Spinner) SetWriter(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writer = w
}

// Start begins animating. No-op when the writer is not a terminal.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || !writerIsTTY(s.writer) {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done.Add(1)

	go func() {
		defer s.done.Done()
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.mu.Lock()
				fmt.Fprintf(s.writer, "\r%s %s", s.frames[s.frame%len(s.frames)], s.description)
				s.frame++
				s.mu.Unlock()
			}
		}
	}()
}

// Stop halts the spinner and clears its line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.mu.Unlock()

	s.done.Wait()

	s.mu.Lock()
	fmt.Fprintf(s.writer, "\r%s\r", strings.Repeat(" ", len(s.description)+2))
	s.mu.Unlock()
}
