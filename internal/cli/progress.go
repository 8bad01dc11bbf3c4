// Package cli holds terminal presentation helpers for the command line
// front end.
package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// ProgressMode selects how batch progress renders.
type ProgressMode string

const (
	// ProgressAuto redraws a live bar on a terminal and falls back to
	// one line per item otherwise.
	ProgressAuto ProgressMode = "auto"
	// ProgressPlain always prints one line per item.
	ProgressPlain ProgressMode = "plain"
	// ProgressOff suppresses progress output entirely.
	ProgressOff ProgressMode = "off"
)

// Meter tracks batch scan progress and renders it to out. Step may be
// called from multiple goroutines.
type Meter struct {
	mu     sync.Mutex
	out    io.Writer
	name   string
	total  int
	done   int
	failed int
	start  time.Time
	live   bool
	off    bool
}

// NewMeter builds a meter for total items. tty reports whether out is
// an interactive terminal; only then does auto mode redraw in place.
func NewMeter(out io.Writer, name string, total int, mode ProgressMode, tty bool) *Meter {
	m := &Meter{out: out, name: name, total: total, start: time.Now()}
	switch mode {
	case ProgressOff:
		m.off = true
	case ProgressPlain:
	default:
		m.live = tty
	}
	return m
}

// Step records one finished item and redraws the meter.
func (m *Meter) Step(label string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.done++
	if !ok {
		m.failed++
	}
	if m.off {
		return
	}
	if m.live {
		fmt.Fprint(m.out, "\r\033[K"+m.line(label))
		return
	}
	fmt.Fprintln(m.out, m.line(label))
}

// Finish clears any live bar and prints the closing summary.
func (m *Meter) Finish() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.off {
		return
	}
	if m.live {
		fmt.Fprint(m.out, "\r\033[K")
	}
	fmt.Fprintf(m.out, "%s done: %d ok, %d failed (%v)\n",
		m.name, m.done-m.failed, m.failed, time.Since(m.start).Round(time.Millisecond))
}

func (m *Meter) line(label string) string {
	var b strings.Builder
	b.WriteString(m.name)

	if m.total > 0 {
		const width = 20
		filled := width * m.done / m.total
		if filled > width {
			filled = width
		}
		b.WriteString(" [")
		b.WriteString(strings.Repeat("#", filled))
		b.WriteString(strings.Repeat(".", width-filled))
		fmt.Fprintf(&b, "] %d/%d (%.1f%%)", m.done, m.total,
			float64(m.done)/float64(m.total)*100)

		if m.done > 0 && m.done < m.total {
			rate := float64(m.done) / time.Since(m.start).Seconds()
			eta := time.Duration(float64(m.total-m.done) / rate * float64(time.Second))
			fmt.Fprintf(&b, " ETA %v", eta.Round(time.Second))
		}
	} else {
		fmt.Fprintf(&b, " %d", m.done)
	}

	if label != "" {
		b.WriteString(" - ")
		b.WriteString(label)
	}
	return b.String()
}
