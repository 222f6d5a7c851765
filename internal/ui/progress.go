package ui

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
)

// ProgressBar renders run progress on stderr. One unit per resource type
// job; the bar shows count, rate, and remaining time.
type ProgressBar struct {
	bar       *progressbar.ProgressBar
	total     int64
	current   int64
	startTime time.Time
}

// NewProgressBar creates a progress bar over a known number of jobs.
// Rendering is throttled to one update per 500ms.
func NewProgressBar(total int64, description string) *ProgressBar {
	return newProgressBar(total, description, os.Stderr, true)
}

// NewProgressBarWithWriter creates a progress bar writing to the given
// writer. Used by tests to capture output.
func NewProgressBarWithWriter(total int64, description string, writer io.Writer) *ProgressBar {
	return newProgressBar(total, description, writer, false)
}

func newProgressBar(total int64, description string, writer io.Writer, renderBlank bool) *ProgressBar {
	bar := progressbar.NewOptions64(
		total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(500*time.Millisecond),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWriter(writer),
		progressbar.OptionSetRenderBlankState(renderBlank),
		progressbar.OptionEnableColorCodes(false),
	)

	return &ProgressBar{
		bar:       bar,
		total:     total,
		current:   0,
		startTime: time.Now(),
	}
}

// Add advances the bar by the given number of completed jobs.
// Safe to call from concurrent workers; the underlying bar locks.
func (p *ProgressBar) Add(amount int64) error {
	p.current += amount
	return p.bar.Add64(amount)
}

// Set moves the bar to an absolute position
func (p *ProgressBar) Set(value int64) error {
	p.current = value
	return p.bar.Set64(value)
}

// Finish completes the bar and moves to a fresh line
func (p *ProgressBar) Finish() error {
	return p.bar.Finish()
}

// Clear removes the bar from the terminal
func (p *ProgressBar) Clear() error {
	return p.bar.Clear()
}

// GetPercentage returns completion as 0-100
func (p *ProgressBar) GetPercentage() float64 {
	if p.total == 0 {
		return 0
	}
	return (float64(p.current) / float64(p.total)) * 100
}

// GetElapsedTime returns the time since the bar was created
func (p *ProgressBar) GetElapsedTime() time.Duration {
	return time.Since(p.startTime)
}

// Spinner marks an operation of unknown duration, such as waiting on an
// external service
type Spinner struct {
	description string
	startTime   time.Time
	active      bool
}

// NewSpinner creates a spinner with a description of the pending operation
func NewSpinner(description string) *Spinner {
	return &Spinner{
		description: description,
		startTime:   time.Now(),
		active:      false,
	}
}

// Start announces the operation
func (s *Spinner) Start() {
	s.active = true
	s.startTime = time.Now()
	fmt.Printf("%s...\n", s.description)
}

// Stop reports the outcome with elapsed time
func (s *Spinner) Stop(success bool) {
	s.active = false
	elapsed := time.Since(s.startTime)

	if success {
		fmt.Printf("✓ %s (completed in %v)\n", s.description, elapsed.Round(time.Millisecond))
	} else {
		fmt.Printf("✗ %s (failed after %v)\n", s.description, elapsed.Round(time.Millisecond))
	}
}

// UpdateMessage replaces the description while the spinner is running
func (s *Spinner) UpdateMessage(message string) {
	s.description = message
	if s.active {
		fmt.Printf("\r%s... (%v elapsed)", message, time.Since(s.startTime).Round(time.Second))
	}
}

// IsActive reports whether the spinner is between Start and Stop
func (s *Spinner) IsActive() bool {
	return s.active
}
