// Package serial provides the character-stream link to the device with
// hardware abstraction.
// The real implementation drives a Linux tty through termios ioctls.
// The fake implementation allows testing without hardware.
package serial

import "time"

// Port is a line-oriented serial link.
type Port interface {
	// Buffered returns the number of received bytes not yet read.
	Buffered() (int, error)

	// ReadLine returns bytes up to and including the next '\n', or whatever
	// arrived before the read timeout elapsed. It may return an empty slice.
	ReadLine() ([]byte, error)

	// Write sends raw bytes.
	Write(p []byte) (int, error)

	// Flush blocks until all written bytes have been transmitted.
	Flush() error

	// Discard drops all received bytes not yet read.
	Discard() error

	// Close releases the port.
	Close() error
}

// Link defaults for the volcano monitor board.
const (
	DefaultDevice      = "/dev/ttyUSB0"
	DefaultBaud        = 115200
	DefaultReadTimeout = time.Second
)

// maxLineLength bounds a single ReadLine when the device never sends '\n'.
const maxLineLength = 4096
