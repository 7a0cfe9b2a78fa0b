package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/thermal-cycler/internal/control"
)

func TestFormatPayloadCapture(t *testing.T) {
	event := RunEvent{
		Timestamp:   time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		RunID:       "5d1f",
		Type:        string(control.EventCaptureRequest),
		Step:        "Anneal",
		Cycle:       3,
		Setpoint:    55,
		Temperature: 55.25,
		Channel:     control.ChannelFAM,
	}

	payload, err := FormatPayload(event)
	require.NoError(t, err)

	var parsed Payload
	require.NoError(t, json.Unmarshal(payload, &parsed))

	assert.Equal(t, "2026-02-02T22:18:12Z", parsed.Cycler.Timestamp)
	assert.Equal(t, "CAPTURE_REQUEST", parsed.Cycler.Event)
	assert.Equal(t, "5d1f", parsed.Cycler.RunID)
	assert.Equal(t, "FAM", parsed.Cycler.Channel)
	assert.Equal(t, "Anneal", parsed.Cycler.Step)
	assert.Equal(t, 3, parsed.Cycler.Cycle)
}

func TestFormatPayloadTelemetryExactJSON(t *testing.T) {
	event := RunEvent{
		Timestamp:   time.Date(2026, 2, 2, 22, 18, 12, 500000000, time.UTC),
		RunID:       "r1",
		Type:        string(control.EventTelemetry),
		Step:        "Hot Start",
		Setpoint:    100,
		Temperature: 99.5,
		Elapsed:     12 * time.Second,
	}

	payload, err := FormatPayload(event)
	require.NoError(t, err)

	want := `{"cycler":{"timestamp":"2026-02-02T22:18:12.5Z","run_id":"r1","event":"TELEMETRY","step":"Hot Start","setpoint":100,"temperature":99.5,"elapsed_seconds":12}}`
	assert.Equal(t, want, string(payload))
}

func TestFormatPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	event := RunEvent{
		Timestamp: time.Date(2026, 2, 3, 3, 18, 12, 0, loc),
		Type:      EventRunStart,
	}

	payload, err := FormatPayload(event)
	require.NoError(t, err)

	var parsed Payload
	require.NoError(t, json.Unmarshal(payload, &parsed))
	assert.Equal(t, "2026-02-02T22:18:12Z", parsed.Cycler.Timestamp, "timestamp not converted to UTC")
}

func TestRunEventTopic(t *testing.T) {
	tests := []struct {
		eventType string
		want      string
	}{
		{string(control.EventTelemetry), TopicTelemetry},
		{string(control.EventCaptureRequest), TopicEvents},
		{string(control.EventSetpointReached), TopicEvents},
		{EventStepStart, TopicEvents},
		{EventRunEnd, TopicEvents},
	}

	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			assert.Equal(t, tt.want, RunEvent{Type: tt.eventType}.Topic())
		})
	}
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "lab/thermal-cycler/events", TopicEvents)
	assert.Equal(t, "lab/thermal-cycler/telemetry", TopicTelemetry)
	assert.Equal(t, "lab/thermal-cycler/system", TopicSystem)
}

func TestFormatSystemPayloadExactJSON(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 10, 30, 0, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	payload, err := FormatSystemPayload(event)
	require.NoError(t, err)

	want := `{"system":{"timestamp":"2026-02-03T10:30:00Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	assert.Equal(t, want, string(payload))
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"status":{"event":"STARTUP"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "STARTUP", RawPayload: raw})
	require.NoError(t, err)
	assert.Equal(t, string(raw), string(payload))
}

func TestWillPayloadFormat(t *testing.T) {
	assert.Equal(t, `{"system":{"event":"OFFLINE","reason":"CONNECTION_LOST"}}`, string(willPayload()))
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()

	require.NoError(t, f.Publish(RunEvent{Timestamp: time.Now(), Type: EventStepStart, Step: "Hot Start"}))
	require.NoError(t, f.Publish(RunEvent{Timestamp: time.Now(), Type: string(control.EventTelemetry)}))

	require.Len(t, f.Events, 2)
	assert.Equal(t, "Hot Start", f.Events[0].Step)
	assert.Len(t, f.Payloads, 2)
	assert.Equal(t, []string{EventStepStart, "TELEMETRY"}, f.EventTypes())
}

func TestFakePublisherError(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("broker down")
	f.PublishSystemError = errors.New("broker down")

	assert.Error(t, f.Publish(RunEvent{Type: EventRunStart}))
	assert.Error(t, f.PublishSystem(SystemEvent{Event: "STARTUP"}))
	assert.Empty(t, f.Events, "failed publishes should not be recorded")
	assert.Empty(t, f.SystemEvents, "failed publishes should not be recorded")
}

func TestFakePublisherPublishSystem(t *testing.T) {
	f := NewFakePublisher()

	require.NoError(t, f.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: "STARTUP", Retained: true}))

	require.Len(t, f.SystemEvents, 1)
	assert.True(t, f.SystemEvents[0].Retained, "retained flag should be recorded")
	assert.Len(t, f.SystemPayloads, 1)
}

func TestFakePublisherReset(t *testing.T) {
	f := NewFakePublisher()
	f.Publish(RunEvent{Type: EventRunStart})
	f.PublishSystem(SystemEvent{Event: "STARTUP"})
	f.Connected = true
	f.Close()

	f.Reset()

	assert.Empty(t, f.Events)
	assert.Empty(t, f.Payloads)
	assert.Empty(t, f.SystemEvents)
	assert.Empty(t, f.SystemPayloads)
	assert.False(t, f.Closed)
	assert.False(t, f.Connected)

	assert.NoError(t, f.Publish(RunEvent{Type: EventRunEnd}), "publisher should be reusable after reset")
}

var (
	_ Publisher        = (*FakePublisher)(nil)
	_ Publisher        = (*RealPublisher)(nil)
	_ Publisher        = (*QueuedPublisher)(nil)
	_ ConnectionStatus = (*FakePublisher)(nil)
	_ ConnectionStatus = (*RealPublisher)(nil)
	_ ConnectionStatus = (*QueuedPublisher)(nil)
)
