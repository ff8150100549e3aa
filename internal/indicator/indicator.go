// Package indicator drives an alarm output line that mirrors the controller mode.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package indicator

import "github.com/sweeney/volcano-manager/internal/control"

// Line is a single digital output.
type Line interface {
	// Set drives the line high when active is true, low otherwise.
	Set(active bool) error

	// Close drives the line low and releases it.
	Close() error
}

// DefaultChip is the GPIO chip used when none is configured.
const DefaultChip = "gpiochip0"

// ForMode reports whether the indicator should be lit in mode m.
func ForMode(m control.Mode) bool {
	return m == control.ModeActive
}
