// Package testhelpers routes logs of the code under test to the test log.
package testhelpers

import (
	"io"
	"strings"
	"sync"
	"testing"
)

// Writer writes each log line with t.Log so that logs only show up for failing or verbose tests.
type Writer struct {
	t    *testing.T
	mu   sync.Mutex
	done bool
}

// NewWriter creates a Writer for t. Writing after t has finished panics, which exposes batch goroutines and
// listeners that outlive their test.
func NewWriter(t *testing.T) io.Writer {
	w := &Writer{t: t, mu: sync.Mutex{}, done: false}
	t.Cleanup(func() {
		w.mu.Lock()
		w.done = true
		w.mu.Unlock()
	})
	return w
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		panic("testhelpers: log written after the test finished, stop background work with t.Cleanup or t.Context")
	}
	if line := strings.TrimSuffix(string(p), "\n"); line != "" {
		w.t.Log(line)
	}
	return len(p), nil
}
