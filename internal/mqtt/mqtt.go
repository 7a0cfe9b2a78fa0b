// Package mqtt mirrors run progress to an MQTT broker, with an abstraction
// for testing. The serial host protocol remains the primary output; MQTT is
// an optional side channel for dashboards.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/thermal-cycler/internal/control"
)

// TopicEvents carries run milestones: steps, cycles, captures.
const TopicEvents = "lab/thermal-cycler/events"

// TopicTelemetry carries periodic temperature samples.
const TopicTelemetry = "lab/thermal-cycler/telemetry"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "lab/thermal-cycler/system"

// Run event types not produced by a hold.
const (
	EventRunStart   = "RUN_START"
	EventRunEnd     = "RUN_END"
	EventRunAborted = "RUN_ABORTED"
	EventStepStart  = "STEP_START"
	EventStepEnd    = "STEP_END"
	EventCycle      = "CYCLE"
)

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a run event to the broker.
	// Returns error if publishing fails (should not abort the run).
	Publish(event RunEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// RunEvent is one milestone or telemetry sample of a run.
type RunEvent struct {
	Timestamp   time.Time
	RunID       string
	Type        string
	Step        string
	Cycle       int
	Setpoint    float32
	Temperature float32
	// Elapsed is run-relative time; set on telemetry.
	Elapsed time.Duration
	Channel control.Channel
	Reason  string
}

// IsTelemetry reports whether the event belongs on the telemetry topic.
func (e RunEvent) IsTelemetry() bool {
	return e.Type == string(control.EventTelemetry)
}

// Topic returns the topic the event is published on.
func (e RunEvent) Topic() string {
	if e.IsTelemetry() {
		return TopicTelemetry
	}
	return TopicEvents
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "OFFLINE"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Cycler CyclerPayload `json:"cycler"`
}

// CyclerPayload contains the run event details.
type CyclerPayload struct {
	Timestamp      string  `json:"timestamp"`
	RunID          string  `json:"run_id"`
	Event          string  `json:"event"`
	Step           string  `json:"step,omitempty"`
	Cycle          int     `json:"cycle,omitempty"`
	Setpoint       float32 `json:"setpoint"`
	Temperature    float32 `json:"temperature"`
	ElapsedSeconds float64 `json:"elapsed_seconds,omitempty"`
	Channel        string  `json:"channel,omitempty"`
	Reason         string  `json:"reason,omitempty"`
}

// FormatPayload creates the JSON payload for a run event.
func FormatPayload(event RunEvent) ([]byte, error) {
	payload := Payload{
		Cycler: CyclerPayload{
			Timestamp:      event.Timestamp.UTC().Format(time.RFC3339Nano),
			RunID:          event.RunID,
			Event:          event.Type,
			Step:           event.Step,
			Cycle:          event.Cycle,
			Setpoint:       event.Setpoint,
			Temperature:    event.Temperature,
			ElapsedSeconds: event.Elapsed.Seconds(),
			Channel:        string(event.Channel),
			Reason:         event.Reason,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT) that don't carry a full status snapshot.
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
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	inner := SystemPayloadInner{
		Event:  event.Event,
		Reason: event.Reason,
	}
	if !event.Timestamp.IsZero() {
		inner.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(SystemPayload{System: inner})
}

// willPayload is registered with the broker as the last will.
func willPayload() []byte {
	data, _ := FormatSystemPayload(SystemEvent{Event: "OFFLINE", Reason: "CONNECTION_LOST"})
	return data
}
