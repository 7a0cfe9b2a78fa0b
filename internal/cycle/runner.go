// Package cycle runs an RT-PCR program on the block: it sequences the holds
// and drives each one with a cooperative polling loop that reads the sensor,
// applies the actuator decision, talks to the acquisition host, and sleeps a
// fixed interval between ticks.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/thermal-cycler/internal/config"
	"github.com/sweeney/thermal-cycler/internal/control"
	"github.com/sweeney/thermal-cycler/internal/hardware"
	"github.com/sweeney/thermal-cycler/internal/mqtt"
	"github.com/sweeney/thermal-cycler/internal/protocol"
	"github.com/sweeney/thermal-cycler/internal/status"
)

// Board is the part of the hardware a run needs.
type Board interface {
	hardware.Sensor
	hardware.Outputs
}

// Options are the optional collaborators of a Runner.
type Options struct {
	// Now and Sleep default to time.Now and time.Sleep.
	Now   func() time.Time
	Sleep func(time.Duration)
	// Publisher mirrors run events to MQTT; nil disables it.
	Publisher mqtt.Publisher
	// Tracker receives live state for the status server; nil disables it.
	Tracker *status.Tracker
	// RunID identifies the run; a random UUID is used when empty.
	RunID string
}

// Runner owns the board, the host link and the clock for one program run.
// It is single-threaded: one hold at a time, one tick at a time.
type Runner struct {
	cfg   config.Config
	board Board
	link  protocol.Link

	now     func() time.Time
	sleep   func(time.Duration)
	pub     mqtt.Publisher
	tracker *status.Tracker
	runID   string

	runStart time.Time
	step     string
	cycle    int
	fan      bool
}

// NewRunner creates a Runner. The configuration is copied and not re-read.
func NewRunner(cfg config.Config, board Board, link protocol.Link, opts Options) *Runner {
	r := &Runner{
		cfg:     cfg,
		board:   board,
		link:    link,
		now:     opts.Now,
		sleep:   opts.Sleep,
		pub:     opts.Publisher,
		tracker: opts.Tracker,
		runID:   opts.RunID,
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.sleep == nil {
		r.sleep = time.Sleep
	}
	if r.runID == "" {
		r.runID = uuid.NewString()
	}
	return r
}

// RunID returns the identifier attached to status and MQTT output.
func (r *Runner) RunID() string {
	return r.runID
}

// RunHold drives a single hold to completion. It returns early only if ctx is
// cancelled or the hardware fails; either way the outputs are left safe.
func (r *Runner) RunHold(ctx context.Context, spec control.HoldSpec) error {
	if r.runStart.IsZero() {
		r.runStart = r.now()
	}
	timing := control.Timing{LogInterval: r.cfg.Control.LogInterval, RunStart: r.runStart}
	hold := control.NewHold(spec, r.cfg.ControlGains(), r.cfg.Control.MaxPWM, timing, r.now())

	if r.tracker != nil {
		r.tracker.BeginHold(r.step, r.cycle, spec.Setpoint)
	}

	for {
		if err := ctx.Err(); err != nil {
			r.safe()
			return err
		}

		temp, err := r.board.ReadTemperature()
		if err != nil {
			if r.tracker != nil {
				r.tracker.CountReadError()
			}
			r.safe()
			return fmt.Errorf("read temperature: %w", err)
		}

		acked := false
		if hold.AwaitingAck() {
			acked, err = r.pollAck()
			if err != nil {
				r.safe()
				return err
			}
		}

		out := hold.Process(control.Input{Time: r.now(), Temperature: temp, Acked: acked})

		if err := r.apply(out); err != nil {
			r.safe()
			return err
		}
		for _, ev := range out.Events {
			if err := r.report(ev); err != nil {
				r.safe()
				return err
			}
		}
		if r.tracker != nil {
			r.tracker.Update(temp, out.Drive.Out1, r.fan, hold.State(), hold.Phase())
		}

		if out.Done {
			return nil
		}
		r.sleep(r.cfg.Control.Interval)
	}
}

// pollAck drains the inbound lines available this tick and reports whether
// one of them acknowledged the capture.
func (r *Runner) pollAck() (bool, error) {
	acked := false
	for {
		line, ok, err := r.link.Poll()
		if err != nil {
			return false, fmt.Errorf("poll host: %w", err)
		}
		if !ok {
			return acked, nil
		}
		if protocol.IsAck(line) {
			acked = true
			continue
		}
		log.Printf("host: ignoring %q while awaiting capture ack", line)
	}
}

// apply writes one tick's drive and LED levels to the board.
func (r *Runner) apply(out control.Output) error {
	if err := r.board.SetHeater(out.Drive.Out1, out.Drive.Out2); err != nil {
		return fmt.Errorf("set heater: %w", err)
	}
	switch out.Drive.Fan {
	case control.FanOn, control.FanOff:
		on := out.Drive.Fan == control.FanOn
		if err := r.board.SetFan(on); err != nil {
			return fmt.Errorf("set fan: %w", err)
		}
		r.fan = on
	}
	if out.LEDs != nil {
		if err := r.board.SetLEDs(*out.LEDs); err != nil {
			return fmt.Errorf("set leds: %w", err)
		}
		if r.tracker != nil {
			r.tracker.SetLEDs(*out.LEDs)
		}
	}
	return nil
}

// report forwards one hold event to the host, the log, MQTT and the tracker.
func (r *Runner) report(ev control.Event) error {
	switch ev.Type {
	case control.EventTelemetry:
		if err := r.send(protocol.Telemetry(ev.Elapsed, ev.Temperature)); err != nil {
			return err
		}
	case control.EventCaptureRequest:
		line, err := protocol.CaptureRequest(ev.Channel)
		if err != nil {
			return err
		}
		if err := r.send(line); err != nil {
			return err
		}
		log.Printf("capture: requested %s frame at %.2f °C", ev.Channel, ev.Temperature)
	case control.EventCaptureAck:
		log.Printf("capture: host acknowledged %s frame", ev.Channel)
	case control.EventSetpointReached:
		log.Printf("hold: reached %.1f °C (measured %.2f °C)", ev.Setpoint, ev.Temperature)
	case control.EventHoldComplete:
		log.Printf("hold: %.1f °C complete", ev.Setpoint)
	}

	if r.tracker != nil {
		r.tracker.CountEvent(ev.Type)
	}
	r.publish(mqtt.RunEvent{
		Timestamp:   ev.Timestamp,
		Type:        string(ev.Type),
		Setpoint:    ev.Setpoint,
		Temperature: ev.Temperature,
		Elapsed:     ev.Elapsed,
		Channel:     ev.Channel,
	})
	return nil
}

// send writes one protocol line to the host.
func (r *Runner) send(line string) error {
	if err := r.link.Send(line); err != nil {
		return fmt.Errorf("send %q: %w", line, err)
	}
	return nil
}

// publish mirrors an event to MQTT. Failures are logged and never abort the run.
func (r *Runner) publish(ev mqtt.RunEvent) {
	if r.pub == nil {
		return
	}
	ev.RunID = r.runID
	ev.Step = r.step
	ev.Cycle = r.cycle
	if ev.Timestamp.IsZero() {
		ev.Timestamp = r.now()
	}
	if err := r.pub.Publish(ev); err != nil {
		log.Printf("publish error: %v", err)
	}
}

// safe drives every output to its idle level, best effort.
func (r *Runner) safe() {
	errs := []error{
		r.board.SetHeater(0, 0),
		r.board.SetFan(false),
		r.board.SetLEDs(control.LEDLevels{}),
	}
	r.fan = false
	if err := errors.Join(errs...); err != nil {
		log.Printf("safe shutdown: %v", err)
	}
}
