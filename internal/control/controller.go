package control

import "time"

// Next computes the successor of s for reading r. It returns the command to
// send, or nil when the reading causes no transition.
func Next(s State, r Reading) (State, *Command) {
	switch s.Mode {
	case ModeActive:
		if r.Risk >= DeescalateThreshold {
			// No neutral zone once active: anything not low resets the streak.
			s.SafeStreak = 0
			return s, nil
		}
		s.SafeStreak++
		if s.SafeStreak < DebounceCount {
			return s, nil
		}
		return State{Mode: ModePassive}, commandPtr(CommandDeescalate)

	default:
		// Escalation is immediate, no debounce on entry.
		if r.Risk > EscalateThreshold {
			return State{Mode: ModeActive}, commandPtr(CommandEscalate)
		}
		return State{Mode: ModePassive}, nil
	}
}

func commandPtr(c Command) *Command {
	return &c
}

// Controller owns the decision state for the lifetime of the process.
type Controller struct {
	state         State
	counts        Counts
	startTime     time.Time
	lastHeartbeat time.Time
}

// NewController creates a controller in the initial PASSIVE state.
// The startTime is used for calculating uptime in heartbeat events.
func NewController(startTime time.Time) *Controller {
	return &Controller{
		state:         InitialState(),
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Process applies one reading and returns the transition event, if any.
func (c *Controller) Process(r Reading, now time.Time) *Event {
	prev := c.state.Mode
	next, cmd := Next(c.state, r)
	c.state = next
	c.counts.Readings++

	if cmd == nil {
		return nil
	}

	switch *cmd {
	case CommandEscalate:
		c.counts.Escalations++
	case CommandDeescalate:
		c.counts.Deescalations++
	}

	return &Event{
		Timestamp: now,
		Command:   *cmd,
		From:      prev,
		To:        next.Mode,
		Reading:   r,
	}
}

// State returns the current state.
func (c *Controller) State() State {
	return c.state
}

// Counts returns a copy of the activity counters.
func (c *Controller) Counts() Counts {
	return c.counts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed,
// or if interval is <= 0 (disabled).
func (c *Controller) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if now.Sub(c.lastHeartbeat) < interval {
		return nil
	}

	c.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(c.startTime),
		Counts:    c.counts,
	}
}
