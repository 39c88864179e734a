package worker

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Progress reports bulk fetch progress to a terminal as tasks complete
// and produces the final summary line. It always tracks counts; when
// enabled is false it writes nothing.
type Progress struct {
	mu        sync.Mutex
	out       io.Writer
	enabled   bool
	startTime time.Time
	total     int
	completed int
	failed    int
}

// NewProgress creates a reporter for a batch of total tasks. A total of
// zero means the batch size is not known yet; the bar stays silent until
// an Update supplies one.
func NewProgress(total int, enabled bool) *Progress {
	return &Progress{
		out:       os.Stderr,
		enabled:   enabled,
		startTime: time.Now(),
		total:     total,
	}
}

// Update records the completion of one task and redraws the bar. Its
// signature matches ProgressFunc so it can be handed straight to a Pool.
func (p *Progress) Update(completed, total, failed int) {
	p.mu.Lock()
	p.completed = completed
	if total > 0 {
		p.total = total
	}
	p.failed = failed
	line := p.line()
	p.mu.Unlock()

	if p.enabled && line != "" {
		fmt.Fprint(p.out, "\r"+line)
	}
}

// Callback returns Update as a ProgressFunc.
func (p *Progress) Callback() ProgressFunc {
	return p.Update
}

// Done redraws the final state of the bar and terminates the line.
func (p *Progress) Done() {
	if !p.enabled {
		return
	}

	p.mu.Lock()
	line := p.line()
	p.mu.Unlock()

	if line == "" {
		return
	}
	fmt.Fprint(p.out, "\r"+line+"\n")
}

// Summary returns the one-line outcome of the batch.
func (p *Progress) Summary() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.startTime)
	succeeded := p.completed - p.failed

	var rate float64
	if elapsed > 0 {
		rate = float64(p.completed) / elapsed.Seconds()
	}

	return fmt.Sprintf("Downloaded %d/%d tiles (%d failed) in %s (%.1f tiles/sec)",
		succeeded, p.total, p.failed, formatDuration(elapsed), rate)
}

// line renders the current bar. Callers hold p.mu. A batch with no
// known size renders nothing; the bar math needs a positive total.
func (p *Progress) line() string {
	if p.total <= 0 {
		return ""
	}

	const width = 30
	frac := float64(p.completed) / float64(p.total)
	if frac > 1 {
		frac = 1
	}
	filled := int(frac * width)

	var b strings.Builder
	b.WriteString("[")
	b.WriteString(strings.Repeat("=", filled))
	b.WriteString(strings.Repeat(" ", width-filled))
	fmt.Fprintf(&b, "] %d/%d tiles", p.completed, p.total)

	if p.failed > 0 {
		fmt.Fprintf(&b, " (%d failed)", p.failed)
	}

	elapsed := time.Since(p.startTime)
	if p.completed > 0 && elapsed > 0 {
		rate := float64(p.completed) / elapsed.Seconds()
		fmt.Fprintf(&b, " %.1f tiles/sec", rate)
		if p.completed < p.total && rate > 0 {
			remaining := time.Duration(float64(p.total-p.completed) / rate * float64(time.Second))
			fmt.Fprintf(&b, " eta %s", formatDuration(remaining))
		}
	}

	// Trailing spaces cover leftovers of a longer previous line.
	b.WriteString("    ")
	return b.String()
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%.0fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
