// Package control contains the disaster/safe decision logic.
// This package has NO external dependencies (no serial, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package control

import "time"

// Decision thresholds. These are fixed for this version of the manager.
const (
	// EscalateThreshold: a risk strictly greater than this is danger.
	EscalateThreshold = 0.7
	// DeescalateThreshold: a risk strictly less than this is a safe signal.
	DeescalateThreshold = 0.3
	// DebounceCount is the number of consecutive safe signals required
	// while ACTIVE before returning to PASSIVE.
	DebounceCount = 10
)

// DefaultDeviceMode is used when a reading omits the device mode.
const DefaultDeviceMode = "UNKNOWN"

// Mode is the manager's decision state.
type Mode string

const (
	ModePassive Mode = "PASSIVE"
	ModeActive  Mode = "ACTIVE"
)

// Command is sent to the device on a mode transition.
type Command string

const (
	CommandEscalate   Command = "ESCALATE"
	CommandDeescalate Command = "DEESCALATE"
)

// Wire returns the line sent over the link, without terminator.
func (c Command) Wire() string {
	switch c {
	case CommandEscalate:
		return "MODE_DISASTER"
	case CommandDeescalate:
		return "MODE_SAFE"
	}
	return ""
}

// Reading is one decoded telemetry sample from the device.
type Reading struct {
	Temperature float64
	Risk        float64
	DeviceMode  string
}

// State is the controller's mutable state.
// SafeStreak is only ever nonzero while Mode is ModeActive.
type State struct {
	Mode       Mode
	SafeStreak int
}

// InitialState is the state at process start.
func InitialState() State {
	return State{Mode: ModePassive}
}

// Event is a mode transition to be reported.
type Event struct {
	Timestamp time.Time
	Command   Command
	From      Mode
	To        Mode
	Reading   Reading
}

// Counts tracks controller activity since startup.
type Counts struct {
	Readings      int
	Escalations   int
	Deescalations int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    Counts
}
