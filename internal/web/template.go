package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/thermal-cycler/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"duration": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"celsius": func(v float32) string {
		return fmt.Sprintf("%.2f °C", v)
	},
	"orDash": func(s string) string {
		if s == "" {
			return "-"
		}
		return s
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="2">
<title>Thermal Cycler</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.failed { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Thermal Cycler{{if .Config.Simulated}} (simulated){{end}}</h1>

<h2>Run</h2>
<table>
<tr><th>State</th><td id="run-state" class="{{if eq .RunState "RUNNING"}}on{{else if eq .RunState "FAILED"}}failed{{else}}off{{end}}">{{.RunState}}</td></tr>
{{if .Err}}<tr><th>Error</th><td class="failed">{{.Err}}</td></tr>{{end}}
<tr><th>Run ID</th><td>{{orDash .RunID}}</td></tr>
<tr><th>Step</th><td id="step">{{orDash .Step}}{{if .Cycle}} ({{.Cycle}}/{{.Config.Cycles}}){{end}}</td></tr>
<tr><th>Hold</th><td>{{orDash (printf "%s" .HoldState)}}</td></tr>
<tr><th>Capture</th><td>{{.Phase}}</td></tr>
<tr><th>Elapsed</th><td>{{duration .RunElapsed}}</td></tr>
</table>

<h2>Block</h2>
<table>
<tr><th>Temperature</th><td id="temperature">{{celsius .Temperature}}</td></tr>
<tr><th>Setpoint</th><td>{{celsius .Setpoint}}</td></tr>
<tr><th>Heater duty</th><td>{{.Heater}} / {{.Config.MaxPWM}}</td></tr>
<tr><th>Fan</th><td class="{{if .Fan}}on{{else}}off{{end}}">{{if .Fan}}ON{{else}}OFF{{end}}</td></tr>
<tr><th>FAM LED</th><td>{{.LEDs.FAM}}</td></tr>
<tr><th>CY5 LED</th><td>{{.LEDs.CY5}}</td></tr>
</table>

<h2>Counts</h2>
<table>
<tr><th>Holds</th><td>{{.Counts.Holds}}</td></tr>
<tr><th>Cycles</th><td>{{.Counts.Cycles}}</td></tr>
<tr><th>Captures</th><td>{{.Counts.Captures}}</td></tr>
<tr><th>Acks</th><td>{{.Counts.Acks}}</td></tr>
<tr><th>Sensor errors</th><td>{{.Counts.ReadErrors}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>Host port</th><td>{{.Config.HostPort}}</td></tr>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{orDash .Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{duration .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Tick</th><td>{{.Config.IntervalMs}}ms</td></tr>
<tr><th>Telemetry</th><td>{{if eq .Config.LogIntervalMs 0}}disabled{{else}}{{.Config.LogIntervalMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has methods but the template needs plain fields.
	data := struct {
		status.Snapshot
		Uptime     time.Duration
		RunElapsed time.Duration
		RunState   string
	}{
		Snapshot:   snap,
		Uptime:     snap.Uptime(),
		RunElapsed: snap.RunElapsed(),
		RunState:   snap.RunState(),
	}
	return indexTmpl.Execute(w, data)
}
