// Command volcano-manager reads hazard telemetry from a serial-attached sensor
// node and switches the node between safe and disaster modes.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/volcano-manager/internal/config"
	"github.com/sweeney/volcano-manager/internal/console"
	"github.com/sweeney/volcano-manager/internal/control"
	"github.com/sweeney/volcano-manager/internal/indicator"
	"github.com/sweeney/volcano-manager/internal/link"
	"github.com/sweeney/volcano-manager/internal/mqtt"
	"github.com/sweeney/volcano-manager/internal/serial"
	"github.com/sweeney/volcano-manager/internal/status"
	"github.com/sweeney/volcano-manager/internal/web"
)

func main() {
	if err := config.LoadEnvFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(os.Getenv(config.EnvConfigPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(cfg.Logging, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("fatal")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	printer := console.New(os.Stdout)
	printer.Notice("--- Volcano Manager Started ---")

	port, err := serial.Open(cfg.Serial.Device, cfg.Serial.Baud, cfg.Serial.ReadTimeout)
	if err != nil {
		return fmt.Errorf("connect %s: %w", cfg.Serial.Device, err)
	}
	reader := link.NewReader(port, logger)
	defer reader.Close()
	printer.Notice(fmt.Sprintf("Connected to sensor node on %s", cfg.Serial.Device))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	settleCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = reader.Settle(settleCtx, cfg.Serial.SettleDelay)
	stop()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info().Msg("interrupted during settle")
			return nil
		}
		return fmt.Errorf("settle: %w", err)
	}

	tracker := status.NewTracker(time.Now(), status.Config{
		Device:       cfg.Serial.Device,
		Baud:         cfg.Serial.Baud,
		HeartbeatMs:  cfg.MQTT.Heartbeat.Milliseconds(),
		Broker:       cfg.MQTT.Broker,
		HTTPAddr:     cfg.HTTP.Addr,
		IndicatorPin: indicatorPin(cfg),
	})

	deps := loopDeps{
		link:      reader,
		tracker:   tracker,
		printer:   printer,
		logger:    logger,
		heartbeat: cfg.MQTT.Heartbeat,
	}

	if cfg.MQTTEnabled() {
		publisher := mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID, logger)
		defer publisher.Close()
		deps.publisher = publisher
		deps.mqttStatus = publisher
	}

	if cfg.IndicatorEnabled() {
		line, err := indicator.NewRealLine(cfg.Indicator.Chip, cfg.Indicator.Pin)
		if err != nil {
			// The indicator is a convenience; monitoring continues without it.
			logger.Warn().Err(err).Int("pin", cfg.Indicator.Pin).Msg("indicator unavailable")
		} else {
			defer line.Close()
			deps.indicator = line
		}
	}

	if cfg.HTTPEnabled() {
		srv := web.New(cfg.HTTP.Addr, tracker, logger)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Info().Str("addr", cfg.HTTP.Addr).Msg("http status server listening")
	}

	logger.Info().
		Str("device", cfg.Serial.Device).
		Int("baud", cfg.Serial.Baud).
		Str("broker", cfg.MQTT.Broker).
		Dur("heartbeat", cfg.MQTT.Heartbeat).
		Msg("started")
	printer.Notice("System ready. Monitoring data stream...")

	ticker := time.NewTicker(link.PollInterval)
	defer ticker.Stop()

	return runLoop(deps, time.Now, ticker.C, sigCh)
}

// loopDeps carries everything the poll loop touches. publisher, mqttStatus
// and indicator are nil when the corresponding feature is disabled.
type loopDeps struct {
	link       *link.Reader
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	printer    *console.Printer
	indicator  indicator.Line
	logger     zerolog.Logger
	heartbeat  time.Duration
}

func runLoop(d loopDeps, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	controller := control.NewController(now())

	d.sync(controller)
	d.publishStatus(mqtt.EventStartup, "", now())

	for {
		select {
		case s := <-sig:
			d.logger.Info().Str("signal", s.String()).Msg("shutting down")
			d.printer.Notice("Stopping manager...")
			d.sync(controller)
			d.publishStatus(mqtt.EventShutdown, signalName(s), now())
			return nil

		case <-tick:
			d.poll(controller, now)

			if hb := controller.CheckHeartbeat(now(), d.heartbeat); hb != nil {
				d.logger.Info().
					Dur("uptime", hb.Uptime).
					Int("readings", hb.Counts.Readings).
					Int("escalations", hb.Counts.Escalations).
					Int("deescalations", hb.Counts.Deescalations).
					Msg("heartbeat")
				d.sync(controller)
				d.publishStatus(mqtt.EventHeartbeat, "", hb.Timestamp)
			}

			d.sync(controller)
		}
	}
}

// poll runs one link cycle and feeds any reading through the controller.
func (d *loopDeps) poll(controller *control.Controller, now func() time.Time) {
	reading, outcome, err := d.link.Poll()
	switch outcome {
	case link.OutcomeFault:
		d.logger.Warn().Err(err).Msg("link fault, line dropped")
		return
	case link.OutcomeReading:
	default:
		return
	}

	t := now()
	d.printer.Reading(reading)
	d.tracker.RecordReading(reading, t)

	prev := controller.State()
	event := controller.Process(reading, t)

	if prev.Mode == control.ModeActive && reading.Risk < control.DeescalateThreshold {
		streak := controller.State().SafeStreak
		if event != nil {
			streak = control.DebounceCount
		}
		d.printer.SafeSignal(streak)
	}

	if event != nil {
		d.transition(*event)
	}
}

// transition announces a mode change and sends the command. A failed send
// is reported and not retried; the controller has already changed mode.
func (d *loopDeps) transition(e control.Event) {
	d.printer.Transition(e)
	d.logger.Info().
		Str("command", string(e.Command)).
		Str("from", string(e.From)).
		Str("to", string(e.To)).
		Float64("risk", e.Reading.Risk).
		Msg("mode change")
	d.tracker.RecordCommand(e.Command)

	if err := d.link.Send(e.Command); err != nil {
		d.logger.Error().Err(err).Str("command", string(e.Command)).Msg("command not delivered")
		if d.publisher != nil {
			failed := mqtt.SystemEvent{
				Timestamp: e.Timestamp,
				Event:     mqtt.EventCommandFailed,
				Reason:    err.Error(),
			}
			if err := d.publisher.PublishSystem(failed); err != nil {
				d.logger.Warn().Err(err).Msg("failed to publish command failure")
			}
		}
	}

	if d.indicator != nil {
		if err := d.indicator.Set(indicator.ForMode(e.To)); err != nil {
			d.logger.Warn().Err(err).Msg("indicator update failed")
		}
	}

	if d.publisher != nil {
		if err := d.publisher.Publish(e); err != nil {
			d.logger.Warn().Err(err).Msg("publish error")
		}
	}
}

// sync copies controller and link state into the tracker for HTTP consumers.
func (d *loopDeps) sync(controller *control.Controller) {
	d.tracker.Update(controller.State(), controller.Counts(), d.link.Stats())
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
}

// publishStatus sends a retained lifecycle event carrying a full status snapshot.
func (d *loopDeps) publishStatus(event, reason string, ts time.Time) {
	if d.publisher == nil {
		return
	}
	snap := d.tracker.Snapshot()
	err := d.publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  ts,
		Event:      event,
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		d.logger.Warn().Err(err).Str("event", event).Msg("failed to publish system event")
		return
	}
	d.logger.Debug().Str("event", event).Msg("published system event")
}

// indicatorPin returns the configured line, or nil when the indicator is off.
func indicatorPin(cfg *config.Config) *int {
	if !cfg.IndicatorEnabled() {
		return nil
	}
	pin := cfg.Indicator.Pin
	return &pin
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
