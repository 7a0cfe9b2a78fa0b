package cycle

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sweeney/thermal-cycler/internal/config"
	"github.com/sweeney/thermal-cycler/internal/control"
	"github.com/sweeney/thermal-cycler/internal/mqtt"
	"github.com/sweeney/thermal-cycler/internal/protocol"
)

// Step names as they appear in "L," lines.
const (
	StepReverseTranscription = "Reverse Transcription"
	StepHotStart             = "Hot Start"
	StepCycling              = "Cycling"
	StepDenature             = "Denature"
	StepAnneal               = "Anneal"
)

// MinStepTime is the shortest reverse transcription or hot start that is run
// at all; anything at or below it skips the step.
const MinStepTime = 10 * time.Millisecond

// Run executes the whole program: reverse transcription, hot start, then the
// denature/anneal cycles, and finally the end marker. A step that fails or is
// cancelled ends the run with the outputs safe and no end marker.
func (r *Runner) Run(ctx context.Context) (err error) {
	r.runStart = r.now()
	r.step, r.cycle = "", 0
	if r.tracker != nil {
		r.tracker.StartRun(r.runID, r.runStart)
	}
	log.Printf("run %s: started", r.runID)
	r.publish(mqtt.RunEvent{Type: mqtt.EventRunStart})

	defer func() {
		end := r.now()
		if r.tracker != nil {
			r.tracker.FinishRun(end, err)
		}
		if err != nil {
			log.Printf("run %s: aborted after %v: %v", r.runID, end.Sub(r.runStart), err)
			r.publish(mqtt.RunEvent{Timestamp: end, Type: mqtt.EventRunAborted, Reason: err.Error()})
			return
		}
		log.Printf("run %s: complete in %v", r.runID, end.Sub(r.runStart))
		r.publish(mqtt.RunEvent{Timestamp: end, Type: mqtt.EventRunEnd})
	}()

	p := r.cfg.Program

	if p.ReverseTranscription.Time > MinStepTime {
		if err := r.namedStep(ctx, StepReverseTranscription, p.ReverseTranscription); err != nil {
			return err
		}
	}
	if p.HotStart.Time > MinStepTime {
		if err := r.namedStep(ctx, StepHotStart, p.HotStart); err != nil {
			return err
		}
	}

	if p.Cycles > 0 {
		if err := r.cycling(ctx); err != nil {
			return err
		}
	}

	return r.send(protocol.EndMessage)
}

// namedStep runs a single-shot step bracketed by START and END markers.
func (r *Runner) namedStep(ctx context.Context, name string, step config.StepConfig) error {
	r.step, r.cycle = name, 0
	if err := r.stepStart(name); err != nil {
		return err
	}
	spec := control.HoldSpec{Setpoint: step.Temp, Duration: step.Time}
	if err := r.RunHold(ctx, spec); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return r.stepEnd(name)
}

// cycling runs the denature/anneal repetitions.
func (r *Runner) cycling(ctx context.Context) error {
	p := r.cfg.Program
	ch := r.cfg.Channels

	r.step, r.cycle = StepCycling, 0
	if err := r.stepStart(StepCycling); err != nil {
		return err
	}

	anneal := control.HoldSpec{
		Setpoint:   p.Anneal.Temp,
		Duration:   p.Anneal.Time,
		CaptureFAM: ch.FAM,
		CaptureCY5: ch.CY5,
	}
	denature := control.HoldSpec{Setpoint: p.Denature.Temp, Duration: p.Denature.Time}

	for n := 1; n <= p.Cycles; n++ {
		r.step, r.cycle = StepCycling, n
		if err := r.send(protocol.Cycle(n)); err != nil {
			return err
		}
		log.Printf("cycle %d/%d", n, p.Cycles)
		r.publish(mqtt.RunEvent{Type: mqtt.EventCycle})

		if err := r.cycleStep(ctx, StepDenature, n, denature); err != nil {
			return err
		}
		if err := r.cycleStep(ctx, StepAnneal, n, anneal); err != nil {
			return err
		}
	}

	r.step, r.cycle = StepCycling, 0
	return r.stepEnd(StepCycling)
}

func (r *Runner) cycleStep(ctx context.Context, name string, n int, spec control.HoldSpec) error {
	r.step = name
	if err := r.send(protocol.StepCycle(name, n)); err != nil {
		return err
	}
	r.publish(mqtt.RunEvent{Type: mqtt.EventStepStart, Setpoint: spec.Setpoint})
	if err := r.RunHold(ctx, spec); err != nil {
		return fmt.Errorf("%s %d: %w", name, n, err)
	}
	return nil
}

func (r *Runner) stepStart(name string) error {
	log.Printf("step: %s start", name)
	r.publish(mqtt.RunEvent{Type: mqtt.EventStepStart})
	return r.send(protocol.StepStart(name))
}

func (r *Runner) stepEnd(name string) error {
	log.Printf("step: %s end", name)
	r.publish(mqtt.RunEvent{Type: mqtt.EventStepEnd})
	return r.send(protocol.StepEnd(name))
}
