package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Run           RunJSON      `json:"run"`
	Block         BlockJSON    `json:"block"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// RunJSON describes the current or last run.
type RunJSON struct {
	ID             string  `json:"id,omitempty"`
	State          string  `json:"state"`
	Error          string  `json:"error,omitempty"`
	Step           string  `json:"step,omitempty"`
	Cycle          int     `json:"cycle"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	HoldState      string  `json:"hold_state,omitempty"`
	CapturePhase   string  `json:"capture_phase"`
}

// BlockJSON is the thermal block and its actuators.
type BlockJSON struct {
	Temperature float32 `json:"temperature"`
	Setpoint    float32 `json:"setpoint"`
	HeaterDuty  uint8   `json:"heater_duty"`
	Fan         bool    `json:"fan"`
	LEDFAM      uint8   `json:"led_fam"`
	LEDCY5      uint8   `json:"led_cy5"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of run counts.
type CountsJSON struct {
	Holds      int `json:"holds"`
	Cycles     int `json:"cycles"`
	Captures   int `json:"captures"`
	Acks       int `json:"acks"`
	Telemetry  int `json:"telemetry"`
	ReadErrors int `json:"read_errors"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	IntervalMs    int64  `json:"interval_ms"`
	LogIntervalMs int64  `json:"log_interval_ms"`
	MaxPWM        int    `json:"max_pwm"`
	Cycles        int    `json:"cycles"`
	FAM           bool   `json:"fam"`
	CY5           bool   `json:"cy5"`
	HostPort      string `json:"host_port"`
	Broker        string `json:"broker"`
	HTTPAddr      string `json:"http_addr"`
	HeartbeatMs   int64  `json:"heartbeat_ms"`
	Simulated     bool   `json:"simulated,omitempty"`
}

// RunState summarises the run as IDLE, RUNNING, COMPLETE or FAILED.
func (s Snapshot) RunState() string {
	switch {
	case s.Running:
		return "RUNNING"
	case s.Finished:
		return "COMPLETE"
	case s.Err != "":
		return "FAILED"
	}
	return "IDLE"
}

func buildInner(snap Snapshot) StatusInner {
	return StatusInner{
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Run: RunJSON{
			ID:             snap.RunID,
			State:          snap.RunState(),
			Error:          snap.Err,
			Step:           snap.Step,
			Cycle:          snap.Cycle,
			ElapsedSeconds: snap.RunElapsed().Truncate(time.Millisecond).Seconds(),
			HoldState:      string(snap.HoldState),
			CapturePhase:   snap.Phase.String(),
		},
		Block: BlockJSON{
			Temperature: snap.Temperature,
			Setpoint:    snap.Setpoint,
			HeaterDuty:  snap.Heater,
			Fan:         snap.Fan,
			LEDFAM:      snap.LEDs.FAM,
			LEDCY5:      snap.LEDs.CY5,
		},
		MQTT: MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Holds:      snap.Counts.Holds,
			Cycles:     snap.Counts.Cycles,
			Captures:   snap.Counts.Captures,
			Acks:       snap.Counts.Acks,
			Telemetry:  snap.Counts.Telemetry,
			ReadErrors: snap.Counts.ReadErrors,
		},
		Config: ConfigJSON{
			IntervalMs:    snap.Config.IntervalMs,
			LogIntervalMs: snap.Config.LogIntervalMs,
			MaxPWM:        snap.Config.MaxPWM,
			Cycles:        snap.Config.Cycles,
			FAM:           snap.Config.FAM,
			CY5:           snap.Config.CY5,
			HostPort:      snap.Config.HostPort,
			Broker:        snap.Config.Broker,
			HTTPAddr:      snap.Config.HTTPAddr,
			HeartbeatMs:   snap.Config.HeartbeatMs,
			Simulated:     snap.Config.Simulated,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
