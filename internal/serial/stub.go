//go:build !linux

package serial

import (
	"errors"
	"time"
)

var errUnsupported = errors.New("serial: not supported on this platform (requires Linux)")

// RealPort is not available on non-Linux platforms.
type RealPort struct{}

// Open returns an error on non-Linux platforms.
func Open(device string, baud int, readTimeout time.Duration) (*RealPort, error) {
	return nil, errUnsupported
}

func (p *RealPort) Buffered() (int, error)    { return 0, errUnsupported }
func (p *RealPort) ReadLine() ([]byte, error) { return nil, errUnsupported }
func (p *RealPort) Write([]byte) (int, error) { return 0, errUnsupported }
func (p *RealPort) Flush() error              { return errUnsupported }
func (p *RealPort) Discard() error            { return errUnsupported }
func (p *RealPort) Close() error              { return nil }
