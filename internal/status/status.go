// Package status provides a thread-safe status tracker for the volcano-manager daemon.
// It is read by the HTTP handlers, the websocket stream and lifecycle publishing.
package status

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/volcano-manager/internal/control"
	"github.com/sweeney/volcano-manager/internal/link"
)

// Config contains daemon configuration for display.
type Config struct {
	Device       string
	Baud         int
	HeartbeatMs  int64
	Broker       string
	HTTPAddr     string
	IndicatorPin *int // nil when no indicator is driven
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and stays valid after the lock is released.
type Snapshot struct {
	SessionID     string
	State         control.State
	LastReading   *control.Reading
	LastReadingAt time.Time
	LastCommand   control.Command
	Counts        control.Counts
	Link          link.Stats
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
// Each tracker gets a fresh session id so restarts are distinguishable downstream.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			SessionID: uuid.NewString(),
			State:     control.InitialState(),
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets controller state, counters, and link statistics.
// Called from runLoop after every poll.
func (t *Tracker) Update(state control.State, counts control.Counts, stats link.Stats) {
	t.mu.Lock()
	t.snap.State = state
	t.snap.Counts = counts
	t.snap.Link = stats
	t.mu.Unlock()
}

// RecordReading stores the most recently decoded reading.
func (t *Tracker) RecordReading(r control.Reading, at time.Time) {
	t.mu.Lock()
	t.snap.LastReading = &r
	t.snap.LastReadingAt = at
	t.mu.Unlock()
}

// RecordCommand stores the most recently issued command.
func (t *Tracker) RecordCommand(cmd control.Command) {
	t.mu.Lock()
	t.snap.LastCommand = cmd
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	if s.LastReading != nil {
		r := *s.LastReading
		s.LastReading = &r
	}
	s.Now = time.Now()
	return s
}
