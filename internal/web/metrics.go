package web

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweeney/thermal-cycler/internal/status"
)

const namespace = "thermal_cycler"

// collector exposes tracker snapshots as Prometheus metrics. Values are read
// at scrape time.
type collector struct {
	tracker *status.Tracker

	temperature *prometheus.Desc
	setpoint    *prometheus.Desc
	heater      *prometheus.Desc
	fan         *prometheus.Desc
	led         *prometheus.Desc
	running     *prometheus.Desc
	cycle       *prometheus.Desc
	runCounts   *prometheus.Desc
	mqtt        *prometheus.Desc
	uptime      *prometheus.Desc
}

func newCollector(tracker *status.Tracker) *collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &collector{
		tracker:     tracker,
		temperature: desc("block_temperature_celsius", "Last measured block temperature."),
		setpoint:    desc("block_setpoint_celsius", "Setpoint of the active hold."),
		heater:      desc("heater_duty", "Heater PWM duty, 0-255."),
		fan:         desc("fan_on", "1 while the cooling fan is on."),
		led:         desc("led_level", "Illumination level, 0-255.", "channel"),
		running:     desc("run_active", "1 while a program is running."),
		cycle:       desc("run_cycle", "Current 1-based cycle, 0 outside cycling."),
		runCounts:   desc("run_events", "Per-run event counts.", "kind"),
		mqtt:        desc("mqtt_connected", "1 while the MQTT mirror is connected."),
		uptime:      desc("uptime_seconds", "Seconds since the daemon started."),
	}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.temperature
	ch <- c.setpoint
	ch <- c.heater
	ch <- c.fan
	ch <- c.led
	ch <- c.running
	ch <- c.cycle
	ch <- c.runCounts
	ch <- c.mqtt
	ch <- c.uptime
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.tracker.Snapshot()

	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}

	gauge(c.temperature, float64(snap.Temperature))
	gauge(c.setpoint, float64(snap.Setpoint))
	gauge(c.heater, float64(snap.Heater))
	gauge(c.fan, boolToFloat(snap.Fan))
	gauge(c.led, float64(snap.LEDs.FAM), "FAM")
	gauge(c.led, float64(snap.LEDs.CY5), "CY5")
	gauge(c.running, boolToFloat(snap.Running))
	gauge(c.cycle, float64(snap.Cycle))
	gauge(c.runCounts, float64(snap.Counts.Holds), "holds")
	gauge(c.runCounts, float64(snap.Counts.Captures), "captures")
	gauge(c.runCounts, float64(snap.Counts.Acks), "acks")
	gauge(c.runCounts, float64(snap.Counts.Telemetry), "telemetry")
	gauge(c.runCounts, float64(snap.Counts.ReadErrors), "read_errors")
	gauge(c.mqtt, boolToFloat(snap.MQTTConnected))
	gauge(c.uptime, snap.Uptime().Seconds())
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
