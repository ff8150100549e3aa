// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/volcano-manager/internal/control"
)

// Topic is the MQTT topic for mode transition events.
const Topic = "hazard/volcano/manager/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "hazard/volcano/manager/system"

// System event names.
const (
	EventStartup       = "STARTUP"
	EventShutdown      = "SHUTDOWN"
	EventHeartbeat     = "HEARTBEAT"
	EventOffline       = "OFFLINE"
	EventReconnected   = "RECONNECTED"
	EventCommandFailed = "COMMAND_FAILED"
)

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a mode transition event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event control.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM" (shutdown), transmit error (command failed)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Manager ManagerPayload `json:"manager"`
}

// ManagerPayload contains the transition details.
type ManagerPayload struct {
	Timestamp string         `json:"timestamp"`
	Event     string         `json:"event"`
	Command   string         `json:"command"`
	From      string         `json:"from"`
	To        string         `json:"to"`
	Reading   ReadingPayload `json:"reading"`
}

// ReadingPayload is the reading that triggered a transition.
type ReadingPayload struct {
	Temperature float64 `json:"temp"`
	Risk        float64 `json:"risk"`
	Mode        string  `json:"mode"`
}

// FormatPayload creates the JSON payload for a transition event.
func FormatPayload(event control.Event) ([]byte, error) {
	payload := Payload{
		Manager: ManagerPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(event.Command),
			Command:   event.Command.Wire(),
			From:      string(event.From),
			To:        string(event.To),
			Reading: ReadingPayload{
				Temperature: event.Reading.Temperature,
				Risk:        event.Reading.Risk,
				Mode:        event.Reading.DeviceMode,
			},
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED, COMMAND_FAILED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
// A zero Timestamp is omitted.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Event:  event.Event,
			Reason: event.Reason,
		},
	}
	if !event.Timestamp.IsZero() {
		payload.System.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(payload)
}
