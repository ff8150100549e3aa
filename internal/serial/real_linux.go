//go:build linux

package serial

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// RealPort is a tty opened in raw 8N1 mode.
type RealPort struct {
	fd     int
	device string
}

var baudRates = map[int]uint32{
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
	230400: unix.B230400,
	460800: unix.B460800,
	921600: unix.B921600,
}

// Open opens device at the given baud rate. Reads return after readTimeout
// if no byte arrives (rounded to tenths of a second, max 25.5s).
func Open(device string, baud int, readTimeout time.Duration) (*RealPort, error) {
	speed, ok := baudRates[baud]
	if !ok {
		return nil, fmt.Errorf("unsupported baud rate %d", baud)
	}

	fd, err := unix.Open(device, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", device, err)
	}

	if err := configure(fd, speed, readTimeout); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("configure %s: %w", device, err)
	}

	// O_NONBLOCK was only needed so open does not wait for carrier.
	if err := unix.SetNonblock(fd, false); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("set blocking %s: %w", device, err)
	}

	return &RealPort{fd: fd, device: device}, nil
}

func configure(fd int, speed uint32, readTimeout time.Duration) error {
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("get termios: %w", err)
	}

	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON | unix.IXOFF
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB | unix.CRTSCTS | unix.CBAUD
	t.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL | speed
	t.Ispeed = speed
	t.Ospeed = speed

	deci := readTimeout / (100 * time.Millisecond)
	if deci < 1 {
		deci = 1
	}
	if deci > 255 {
		deci = 255
	}
	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME] = uint8(deci)

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		return fmt.Errorf("set termios: %w", err)
	}
	return nil
}

// Buffered returns the kernel input queue length.
func (p *RealPort) Buffered() (int, error) {
	n, err := unix.IoctlGetInt(p.fd, unix.TIOCINQ)
	if err != nil {
		return 0, fmt.Errorf("query input queue: %w", err)
	}
	return n, nil
}

// ReadLine reads one byte at a time so bytes never leave the kernel queue
// ahead of the line they belong to; Buffered stays an exact backlog count.
func (p *RealPort) ReadLine() ([]byte, error) {
	var line []byte
	var b [1]byte
	for len(line) < maxLineLength {
		n, err := unix.Read(p.fd, b[:])
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return line, fmt.Errorf("read %s: %w", p.device, err)
		}
		if n == 0 {
			// VTIME elapsed.
			return line, nil
		}
		line = append(line, b[0])
		if b[0] == '\n' {
			return line, nil
		}
	}
	return line, nil
}

// Write sends all of buf.
func (p *RealPort) Write(buf []byte) (int, error) {
	written := 0
	for written < len(buf) {
		n, err := unix.Write(p.fd, buf[written:])
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return written, fmt.Errorf("write %s: %w", p.device, err)
		}
		written += n
	}
	return written, nil
}

// Flush waits until the output queue has been transmitted (tcdrain).
func (p *RealPort) Flush() error {
	if err := unix.IoctlSetInt(p.fd, unix.TCSBRK, 1); err != nil {
		return fmt.Errorf("drain %s: %w", p.device, err)
	}
	return nil
}

// Discard drops the input queue (tcflush TCIFLUSH).
func (p *RealPort) Discard() error {
	if err := unix.IoctlSetInt(p.fd, unix.TCFLSH, unix.TCIFLUSH); err != nil {
		return fmt.Errorf("flush input %s: %w", p.device, err)
	}
	return nil
}

// Close releases the tty.
func (p *RealPort) Close() error {
	if err := unix.Close(p.fd); err != nil {
		return fmt.Errorf("close %s: %w", p.device, err)
	}
	return nil
}
