package domain

import (
	"strings"
	"sync"
)

// DefaultDiagnosticsLimit is the number of bytes a Diagnostics buffer keeps
// when no explicit limit is configured.
const DefaultDiagnosticsLimit = 64 * 1024

// Diagnostics is a bounded, per-node text buffer collecting script output
// and error traces for display. When the limit is exceeded the oldest bytes
// are discarded. Diagnostics is safe for concurrent use and implements
// io.Writer so evaluators can stream printed output into it.
type Diagnostics struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

// NewDiagnostics creates a buffer keeping at most limit bytes. A
// non-positive limit selects DefaultDiagnosticsLimit.
func NewDiagnostics(limit int) *Diagnostics {
	if limit <= 0 {
		limit = DefaultDiagnosticsLimit
	}
	return &Diagnostics{limit: limit}
}

// Write appends p, trimming from the front to stay within the limit.
func (d *Diagnostics) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.buf = append(d.buf, p...)
	if over := len(d.buf) - d.limit; over > 0 {
		d.buf = append(d.buf[:0], d.buf[over:]...)
	}
	return len(p), nil
}

// Line appends s followed by a newline unless s already ends with one.
func (d *Diagnostics) Line(s string) {
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	_, _ = d.Write([]byte(s))
}

// String returns the buffered text.
func (d *Diagnostics) String() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return string(d.buf)
}

// Len returns the number of buffered bytes.
func (d *Diagnostics) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buf)
}

// Reset discards the buffered text.
func (d *Diagnostics) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buf = d.buf[:0]
}

// SetLimit changes the byte limit, trimming buffered text that no longer
// fits. A non-positive limit selects DefaultDiagnosticsLimit.
func (d *Diagnostics) SetLimit(limit int) {
	if limit <= 0 {
		limit = DefaultDiagnosticsLimit
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.limit = limit
	if over := len(d.buf) - d.limit; over > 0 {
		d.buf = append(d.buf[:0], d.buf[over:]...)
	}
}
