package serial

import (
	"bytes"
	"errors"
	"sync"
)

// ErrClosed is returned by FakePort after Close.
var ErrClosed = errors.New("serial: port closed")

// FakePort is a test double that serves scripted inbound bytes and records
// everything written to it. It is safe for concurrent use.
type FakePort struct {
	mu sync.Mutex

	// Script contains inbound chunks. Each call to Buffered first appends
	// the next chunk (if any) to the receive queue, so one chunk arrives
	// per poll cycle.
	Script [][]byte
	index  int

	inbound []byte

	// Written contains the payload of every successful Write call.
	Written [][]byte

	// Flushes and Discards count calls to Flush and Discard.
	Flushes  int
	Discards int

	// Closed tracks if Close was called.
	Closed bool

	// Errors, if set, are returned by the corresponding method.
	BufferedError error
	ReadError     error
	WriteError    error
	FlushError    error
}

// NewFakePort creates a FakePort with the given inbound script.
func NewFakePort(script ...[]byte) *FakePort {
	return &FakePort{Script: script}
}

// Push appends bytes to the receive queue immediately.
func (f *FakePort) Push(p []byte) {
	f.mu.Lock()
	f.inbound = append(f.inbound, p...)
	f.mu.Unlock()
}

// Buffered delivers the next scripted chunk and reports the queue length.
func (f *FakePort) Buffered() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Closed {
		return 0, ErrClosed
	}
	if f.index < len(f.Script) {
		f.inbound = append(f.inbound, f.Script[f.index]...)
		f.index++
	}
	if f.BufferedError != nil {
		return 0, f.BufferedError
	}
	return len(f.inbound), nil
}

// ReadLine returns the queued bytes up to and including the first '\n'.
// With no terminator queued it returns everything, as a timed-out read would.
func (f *FakePort) ReadLine() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Closed {
		return nil, ErrClosed
	}
	if f.ReadError != nil {
		return nil, f.ReadError
	}

	n := len(f.inbound)
	if i := bytes.IndexByte(f.inbound, '\n'); i >= 0 {
		n = i + 1
	}
	line := make([]byte, n)
	copy(line, f.inbound[:n])
	f.inbound = f.inbound[n:]
	return line, nil
}

// Write records p.
func (f *FakePort) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Closed {
		return 0, ErrClosed
	}
	if f.WriteError != nil {
		return 0, f.WriteError
	}
	f.Written = append(f.Written, append([]byte(nil), p...))
	return len(p), nil
}

// Flush counts the call.
func (f *FakePort) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FlushError != nil {
		return f.FlushError
	}
	f.Flushes++
	return nil
}

// Discard empties the receive queue.
func (f *FakePort) Discard() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.inbound = nil
	f.Discards++
	return nil
}

// Close marks the port as closed.
func (f *FakePort) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// Pending returns the number of queued bytes without delivering script chunks.
func (f *FakePort) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inbound)
}

// Lines returns every written payload as a string.
func (f *FakePort) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, len(f.Written))
	for i, w := range f.Written {
		out[i] = string(w)
	}
	return out
}
