// Package report provides the text surfaces a run writes to: the progress
// stream shown while plugins sync, and the persistent diff log.
package report

import (
	"io"
	"regexp"
	"sync"

	"github.com/fatih/color"
)

// Sink receives lines of text.
type Sink interface {
	Append(lines ...string)
}

// Surface is a Sink that can be finalized.
type Surface interface {
	Sink
	Close() error
}

var markerPattern = regexp.MustCompile(`^\[\d+/\d+\] `)

// Progress writes progress lines to a writer, highlighting [i/N] markers.
type Progress struct {
	mu     sync.Mutex
	w      io.Writer
	marker *color.Color
	closed bool
}

// NewProgress creates a progress surface writing to w.
func NewProgress(w io.Writer) *Progress {
	return &Progress{
		w:      w,
		marker: color.New(color.Bold, color.FgCyan),
	}
}

// Append writes each line followed by a newline.
func (p *Progress) Append(lines ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, line := range lines {
		if markerPattern.MatchString(line) {
			line = p.marker.Sprint(line)
		}
		_, _ = io.WriteString(p.w, line+"\n")
	}
}

// Close marks the surface finished. It is safe to call more than once.
func (p *Progress) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (p *Progress) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Buffer is an in-memory Surface used by tests and dry runs.
type Buffer struct {
	mu     sync.Mutex
	lines  []string
	closes int
}

// Append records lines.
func (b *Buffer) Append(lines ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, lines...)
}

// Close counts the call.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closes++
	return nil
}

// Lines returns a copy of every recorded line.
func (b *Buffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.lines...)
}

// Closes returns how many times Close was called.
func (b *Buffer) Closes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closes
}
