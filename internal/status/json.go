package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/volcano-manager/internal/control"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Session       string       `json:"session"`
	Mode          string       `json:"mode"`
	SafeStreak    int          `json:"safe_streak"`
	SafeTarget    int          `json:"safe_target"`
	LastCommand   string       `json:"last_command,omitempty"`
	LastReading   *ReadingJSON `json:"last_reading,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"counts"`
	Link          LinkJSON     `json:"link"`
	Config        ConfigJSON   `json:"config"`
}

// ReadingJSON is the JSON representation of the last reading.
type ReadingJSON struct {
	Temperature float64 `json:"temp"`
	Risk        float64 `json:"risk"`
	Mode        string  `json:"mode"`
	ReceivedAt  string  `json:"received_at"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of controller counts.
type CountsJSON struct {
	Readings      int `json:"readings"`
	Escalations   int `json:"escalations"`
	Deescalations int `json:"deescalations"`
}

// LinkJSON is the JSON representation of link statistics.
type LinkJSON struct {
	Polls           int `json:"polls"`
	Overflows       int `json:"overflows"`
	Dropped         int `json:"dropped"`
	Faults          int `json:"faults"`
	Commands        int `json:"commands"`
	CommandFailures int `json:"command_failures"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Device       string `json:"device"`
	Baud         int    `json:"baud"`
	HeartbeatMs  int64  `json:"heartbeat_ms"`
	Broker       string `json:"broker"`
	HTTPAddr     string `json:"http_addr"`
	IndicatorPin *int   `json:"indicator_pin,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	mode := string(snap.State.Mode)
	if mode == "" {
		mode = "UNKNOWN"
	}

	inner := StatusInner{
		Session:       snap.SessionID,
		Mode:          mode,
		SafeStreak:    snap.State.SafeStreak,
		SafeTarget:    control.DebounceCount,
		LastCommand:   string(snap.LastCommand),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Readings:      snap.Counts.Readings,
			Escalations:   snap.Counts.Escalations,
			Deescalations: snap.Counts.Deescalations,
		},
		Link: LinkJSON{
			Polls:           snap.Link.Polls,
			Overflows:       snap.Link.Overflows,
			Dropped:         snap.Link.Dropped,
			Faults:          snap.Link.Faults,
			Commands:        snap.Link.Commands,
			CommandFailures: snap.Link.CommandFailures,
		},
		Config: ConfigJSON{
			Device:       snap.Config.Device,
			Baud:         snap.Config.Baud,
			HeartbeatMs:  snap.Config.HeartbeatMs,
			Broker:       snap.Config.Broker,
			HTTPAddr:     snap.Config.HTTPAddr,
			IndicatorPin: snap.Config.IndicatorPin,
		},
	}
	if snap.LastReading != nil {
		inner.LastReading = &ReadingJSON{
			Temperature: snap.LastReading.Temperature,
			Risk:        snap.LastReading.Risk,
			Mode:        snap.LastReading.DeviceMode,
			ReceivedAt:  snap.LastReadingAt.UTC().Format(time.RFC3339),
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
