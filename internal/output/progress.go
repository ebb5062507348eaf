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

// writerIsTTY returns true if the given writer exposes an Fd() method
// (e.g. *os.File) and that fd is a terminal. Falls back to false for
// plain io.Writer values such as *bytes.Buffer.
func writerIsTTY(w io.Writer) bool {
	type fder interface {
		Fd() uintptr
	}
	if f, ok := w.(fder); ok {
		return isatty.IsTerminal(f.Fd())
	}
	return false
}

// renderBar draws a fixed-width bar for fraction in [0, 1].
// Example: [=========>          ]  45%
func renderBar(fraction float64, width int) string {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	filled := int(fraction * float64(width))

	var bar strings.Builder
	bar.WriteString("[")
	for i := 0; i < width; i++ {
		switch {
		case i < filled-1:
			bar.WriteString("=")
		case i == filled-1:
			bar.WriteString(">")
		default:
			bar.WriteString(" ")
		}
	}
	bar.WriteString("]")

	return fmt.Sprintf("%s %3d%%", bar.String(), int(fraction*100))
}

// Spinner displays an animated spinner with a message.
// Example: |  Adding https://example.com/org/tools.git (3s elapsed)
type Spinner struct {
	message    string
	running    bool
	chars      []string
	mu         sync.Mutex
	writer     io.Writer
	ticker     *time.Ticker
	done       chan struct{}
	startTime  time.Time
	showTiming bool
	width      int // longest line drawn, for clearing
}

// NewSpinner creates a new spinner with a message. It does not start until
// Start is called.
func NewSpinner(message string) *Spinner {
	return &Spinner{
		message: message,
		chars:   []string{"|", "/", "-", "\\"},
		writer:  os.Stdout,
		done:    make(chan struct{}),
	}
}

// WithElapsed makes the spinner append the time since Start to its message.
// It returns the spinner for chaining.
func (s *Spinner) WithElapsed() *Spinner {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.showTiming = true
	return s
}

// SetWriter sets the output writer (useful for testing).
func (s *Spinner) SetWriter(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writer = w
}

// Start begins the spinner animation.
// On a non-TTY writer the animation goroutine is not started; the message
// is printed once instead so that non-interactive output stays clean.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	s.running = true
	s.startTime = time.Now()

	if !writerIsTTY(s.writer) {
		fmt.Fprintf(s.writer, "%s...\n", s.message)
		return
	}

	s.ticker = time.NewTicker(100 * time.Millisecond)

	go func() {
		idx := 0
		for {
			select {
			case <-s.ticker.C:
				s.mu.Lock()
				if !s.running {
					s.mu.Unlock()
					return
				}
				s.draw(s.chars[idx])
				idx = (idx + 1) % len(s.chars)
				s.mu.Unlock()

			case <-s.done:
				return
			}
		}
	}()
}

// draw writes one animation frame. Must be called with lock held.
func (s *Spinner) draw(frame string) {
	line := fmt.Sprintf("%s  %s", frame, s.formatMessage())
	if pad := s.width - len(line); pad > 0 {
		line += strings.Repeat(" ", pad)
	} else {
		s.width = len(line)
	}
	fmt.Fprintf(s.writer, "\r%s", line)
}

// formatMessage returns the spinner message with optional timing information.
// Must be called with lock held.
func (s *Spinner) formatMessage() string {
	if !s.showTiming {
		return s.message
	}
	elapsed := time.Since(s.startTime)
	return fmt.Sprintf("%s (%ds elapsed)", s.message, int(elapsed.Seconds()))
}

// Stop stops the spinner animation and clears the line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.running = false
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.done)

	// Clear the line only on a TTY; on non-TTY the \r does not overwrite.
	if writerIsTTY(s.writer) {
		fmt.Fprintf(s.writer, "\r%s\r", strings.Repeat(" ", s.width))
	}
}

// UpdateMessage updates the spinner message while it's running. On a
// non-TTY writer the new message is printed on its own line.
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.message == message {
		return
	}
	s.message = message
	if s.running && !writerIsTTY(s.writer) {
		fmt.Fprintf(s.writer, "%s...\n", message)
	}
}

// StopWithMessage stops the spinner and displays a final message.
func (s *Spinner) StopWithMessage(message string) {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.writer, message)
}

// Indicator shows the operation the orchestrator currently has in flight.
// Each Show replaces the displayed operation; Clear removes it.
type Indicator struct {
	mu      sync.Mutex
	writer  io.Writer
	spinner *Spinner
}

// NewIndicator returns an Indicator writing to w.
func NewIndicator(w io.Writer) *Indicator {
	return &Indicator{writer: w}
}

// Show displays message with a bar for fraction, starting the spinner when
// nothing is displayed yet.
func (i *Indicator) Show(title, message string, fraction float64) {
	i.mu.Lock()
	defer i.mu.Unlock()

	text := fmt.Sprintf("%s %s %s", title, renderBar(fraction, 20), message)
	if i.spinner != nil {
		i.spinner.UpdateMessage(text)
		return
	}

	i.spinner = NewSpinner(text).WithElapsed()
	i.spinner.SetWriter(i.writer)
	i.spinner.Start()
}

// Clear stops the spinner. It is safe to call when nothing is displayed.
func (i *Indicator) Clear() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.spinner == nil {
		return
	}
	i.spinner.Stop()
	i.spinner = nil
}
