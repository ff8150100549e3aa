// Package link keeps the host's view of the device stream current and turns
// raw lines into readings.
package link

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/volcano-manager/internal/control"
	"github.com/sweeney/volcano-manager/internal/serial"
)

// HighWatermark is the unread byte count above which the receive queue is
// discarded without being decoded.
const HighWatermark = 100

// PollInterval is the pause between poll cycles.
const PollInterval = 50 * time.Millisecond

// Outcome classifies a poll cycle.
type Outcome int

const (
	OutcomeIdle     Outcome = iota // nothing buffered
	OutcomeOverflow                // backlog discarded
	OutcomeReading                 // a reading was decoded
	OutcomeDropped                 // line was noise
	OutcomeFault                   // unexpected error handling the line
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIdle:
		return "idle"
	case OutcomeOverflow:
		return "overflow"
	case OutcomeReading:
		return "reading"
	case OutcomeDropped:
		return "dropped"
	case OutcomeFault:
		return "fault"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Stats counts link activity since startup.
type Stats struct {
	Polls           int
	Readings        int
	Overflows       int
	Dropped         int
	Faults          int
	Commands        int
	CommandFailures int
}

// TransmitError reports a command that may not have reached the device.
type TransmitError struct {
	Command control.Command
	Op      string
	Err     error
}

func (e *TransmitError) Error() string {
	return fmt.Sprintf("transmit %s: %s: %v", e.Command.Wire(), e.Op, e.Err)
}

func (e *TransmitError) Unwrap() error {
	return e.Err
}

// Reader owns the serial port for the poll loop. Not safe for concurrent use.
type Reader struct {
	port   serial.Port
	logger zerolog.Logger
	stats  Stats
}

// NewReader creates a Reader over port.
func NewReader(port serial.Port, logger zerolog.Logger) *Reader {
	return &Reader{
		port:   port,
		logger: logger.With().Str("component", "link").Logger(),
	}
}

// Settle discards whatever the device sent before we were listening, then
// waits delay so a board reset on open can finish booting.
func (r *Reader) Settle(ctx context.Context, delay time.Duration) error {
	if err := r.port.Discard(); err != nil {
		return fmt.Errorf("discard stale input: %w", err)
	}
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Poll runs one cycle of the backlog policy. A non-nil error is only
// returned with OutcomeFault; decode noise is reported as OutcomeDropped.
func (r *Reader) Poll() (control.Reading, Outcome, error) {
	r.stats.Polls++

	n, err := r.port.Buffered()
	if err != nil {
		r.stats.Faults++
		return control.Reading{}, OutcomeFault, fmt.Errorf("query backlog: %w", err)
	}

	if n > HighWatermark {
		if err := r.port.Discard(); err != nil {
			r.stats.Faults++
			return control.Reading{}, OutcomeFault, fmt.Errorf("discard backlog: %w", err)
		}
		r.stats.Overflows++
		r.logger.Debug().Int("bytes", n).Msg("backlog over watermark, input discarded")
		return control.Reading{}, OutcomeOverflow, nil
	}

	if n == 0 {
		return control.Reading{}, OutcomeIdle, nil
	}

	raw, err := r.port.ReadLine()
	if err != nil {
		r.stats.Faults++
		return control.Reading{}, OutcomeFault, fmt.Errorf("read line: %w", err)
	}

	reading, err := DecodeLine(raw)
	if err != nil {
		var decodeErr *DecodeError
		if errors.As(err, &decodeErr) {
			r.stats.Dropped++
			r.logger.Debug().Str("line", decodeErr.Line).Err(decodeErr.Kind).Msg("dropped line")
			return control.Reading{}, OutcomeDropped, nil
		}
		r.stats.Faults++
		return control.Reading{}, OutcomeFault, err
	}

	r.stats.Readings++
	return reading, OutcomeReading, nil
}

// Send writes the command line and flushes it to the device immediately.
// Failed commands are not retried.
func (r *Reader) Send(cmd control.Command) error {
	wire := cmd.Wire()
	if wire == "" {
		r.stats.CommandFailures++
		return &TransmitError{Command: cmd, Op: "encode", Err: fmt.Errorf("unknown command %q", string(cmd))}
	}

	if _, err := r.port.Write([]byte(wire + "\n")); err != nil {
		r.stats.CommandFailures++
		return &TransmitError{Command: cmd, Op: "write", Err: err}
	}
	if err := r.port.Flush(); err != nil {
		r.stats.CommandFailures++
		return &TransmitError{Command: cmd, Op: "flush", Err: err}
	}

	r.stats.Commands++
	return nil
}

// Stats returns a copy of the link counters.
func (r *Reader) Stats() Stats {
	return r.stats
}

// Close releases the port.
func (r *Reader) Close() error {
	return r.port.Close()
}
