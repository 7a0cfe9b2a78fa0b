// Package status provides a thread-safe status tracker for the thermal-cycler daemon.
// The run loop writes to it; HTTP handlers, metrics and MQTT snapshots read it.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/thermal-cycler/internal/control"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	IntervalMs    int64
	LogIntervalMs int64
	MaxPWM        int
	Cycles        int
	FAM           bool
	CY5           bool
	HostPort      string
	Broker        string
	HTTPAddr      string
	HeartbeatMs   int64
	Simulated     bool
}

// Counts are running totals for the current run.
type Counts struct {
	Holds      int
	Cycles     int
	Captures   int
	Acks       int
	Telemetry  int
	ReadErrors int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and stays valid after the lock is released.
type Snapshot struct {
	RunID    string
	Running  bool
	Finished bool
	Err      string
	RunStart time.Time
	RunEnd   time.Time

	Step     string
	Cycle    int
	Setpoint float32

	Temperature float32
	Heater      uint8
	Fan         bool
	LEDs        control.LEDLevels
	HoldState   control.State
	Phase       control.CapturePhase

	Counts        Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// RunElapsed returns how long the current or last run has taken.
func (s Snapshot) RunElapsed() time.Duration {
	if s.RunStart.IsZero() {
		return 0
	}
	if s.Running || s.RunEnd.IsZero() {
		return s.Now.Sub(s.RunStart)
	}
	return s.RunEnd.Sub(s.RunStart)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// StartRun resets per-run state and marks a run as in progress.
func (t *Tracker) StartRun(id string, at time.Time) {
	t.mu.Lock()
	t.snap.RunID = id
	t.snap.Running = true
	t.snap.Finished = false
	t.snap.Err = ""
	t.snap.RunStart = at
	t.snap.RunEnd = time.Time{}
	t.snap.Step = ""
	t.snap.Cycle = 0
	t.snap.Setpoint = 0
	t.snap.HoldState = ""
	t.snap.Phase = control.CaptureNone
	t.snap.Counts = Counts{}
	t.mu.Unlock()
}

// FinishRun marks the run as over. A nil err means it completed.
func (t *Tracker) FinishRun(at time.Time, err error) {
	t.mu.Lock()
	t.snap.Running = false
	t.snap.Finished = err == nil
	if err != nil {
		t.snap.Err = err.Error()
	}
	t.snap.RunEnd = at
	t.snap.Heater = 0
	t.snap.Fan = false
	t.snap.LEDs = control.LEDLevels{}
	t.mu.Unlock()
}

// BeginHold records the step now being held.
func (t *Tracker) BeginHold(step string, cycle int, setpoint float32) {
	t.mu.Lock()
	t.snap.Step = step
	if cycle > t.snap.Counts.Cycles {
		t.snap.Counts.Cycles = cycle
	}
	t.snap.Cycle = cycle
	t.snap.Setpoint = setpoint
	t.snap.HoldState = control.StateSeeking
	t.snap.Phase = control.CaptureNone
	t.snap.Counts.Holds++
	t.mu.Unlock()
}

// Update records the outcome of one control tick.
// Called from the run loop on every tick.
func (t *Tracker) Update(temp float32, heater uint8, fan bool, state control.State, phase control.CapturePhase) {
	t.mu.Lock()
	t.snap.Temperature = temp
	t.snap.Heater = heater
	t.snap.Fan = fan
	t.snap.HoldState = state
	t.snap.Phase = phase
	t.mu.Unlock()
}

// SetLEDs records the illumination levels.
func (t *Tracker) SetLEDs(levels control.LEDLevels) {
	t.mu.Lock()
	t.snap.LEDs = levels
	t.mu.Unlock()
}

// CountEvent bumps the counter matching a hold event.
func (t *Tracker) CountEvent(e control.EventType) {
	t.mu.Lock()
	switch e {
	case control.EventCaptureRequest:
		t.snap.Counts.Captures++
	case control.EventCaptureAck:
		t.snap.Counts.Acks++
	case control.EventTelemetry:
		t.snap.Counts.Telemetry++
	}
	t.mu.Unlock()
}

// CountReadError bumps the sensor error counter.
func (t *Tracker) CountReadError() {
	t.mu.Lock()
	t.snap.Counts.ReadErrors++
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
