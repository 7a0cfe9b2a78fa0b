package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/thermal-cycler/internal/control"
	"github.com/sweeney/thermal-cycler/internal/status"
)

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		IntervalMs:    100,
		LogIntervalMs: 1000,
		MaxPWM:        75,
		Cycles:        40,
		FAM:           true,
		CY5:           true,
		HostPort:      "/dev/ttyACM0",
		Broker:        "tcp://192.168.1.200:1883",
		HTTPAddr:      ":8080",
	}
	tr := status.NewTracker(start, cfg)
	srv := New(":0", tr)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, tr
}

func getBody(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err, "GET %s", url)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func getStatus(t *testing.T, url string) (*http.Response, status.StatusJSON) {
	t.Helper()
	resp, body := getBody(t, url)
	var sj status.StatusJSON
	require.NoError(t, json.Unmarshal([]byte(body), &sj), "decode JSON")
	return resp, sj
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.StartRun("run-42", time.Now())
	tr.BeginHold("Anneal", 3, 55)
	tr.Update(55.25, 12, false, control.StateCapturing, control.CaptureAwaitingCY5Ack)
	tr.SetMQTTConnected(true)

	resp, sj := getStatus(t, ts.URL+"/index.json")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	assert.Equal(t, "run-42", sj.Status.Run.ID)
	assert.Equal(t, "RUNNING", sj.Status.Run.State)
	assert.Equal(t, "Anneal", sj.Status.Run.Step)
	assert.Equal(t, 3, sj.Status.Run.Cycle)
	assert.Equal(t, "AWAITING_CY5_ACK", sj.Status.Run.CapturePhase)
	assert.Equal(t, float32(55.25), sj.Status.Block.Temperature)
	assert.True(t, sj.Status.MQTT.Connected)
	assert.Equal(t, "tcp://192.168.1.200:1883", sj.Status.MQTT.Broker)
	assert.Equal(t, int64(100), sj.Status.Config.IntervalMs)
}

func TestJSONNetworkInfo(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.SetNetwork(&status.NetworkInfo{
		Type:   "wifi",
		IP:     "192.168.1.42",
		Status: "connected",
		SSID:   "MyNet",
	})

	_, sj := getStatus(t, ts.URL+"/index.json")

	require.NotNil(t, sj.Status.Network, "expected Network in JSON")
	assert.Equal(t, "192.168.1.42", sj.Status.Network.IP)
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.StartRun("run-7", time.Now())
	tr.BeginHold("Denature", 2, 100)
	tr.Update(98.5, 75, true, control.StateSeeking, control.CaptureNone)

	resp, body := getBody(t, ts.URL+"/")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html"),
		"Content-Type: got %q", resp.Header.Get("Content-Type"))
	for _, want := range []string{"RUNNING", "run-7", "Denature (2/40)", "98.50 °C", "100.00 °C", "75 / 75"} {
		assert.Contains(t, body, want)
	}
}

func TestHTMLEndpointIndexHTML(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, body := getBody(t, ts.URL+"/index.html")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "IDLE", "idle daemon should report IDLE")
}

func TestHTMLShowsFailure(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.StartRun("run-8", time.Now())
	tr.FinishRun(time.Now(), errors.New("read temperature: adc nack"))

	_, body := getBody(t, ts.URL+"/")
	assert.Contains(t, body, "FAILED")
	assert.Contains(t, body, "adc nack")
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, _ := getBody(t, ts.URL+"/nonexistent")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMethodNotAllowed(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/index.json", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.StartRun("run-9", time.Now())
	tr.BeginHold("Anneal", 5, 55)
	tr.Update(55.5, 20, true, control.StateHolding, control.CaptureNone)
	tr.SetLEDs(control.LEDLevels{FAM: 255})
	tr.CountEvent(control.EventCaptureRequest)

	// One request first so the request counter has a sample.
	getBody(t, ts.URL+"/index.json")

	resp, body := getBody(t, ts.URL+"/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	for _, want := range []string{
		"thermal_cycler_block_temperature_celsius 55.5",
		"thermal_cycler_block_setpoint_celsius 55",
		"thermal_cycler_heater_duty 20",
		"thermal_cycler_fan_on 1",
		`thermal_cycler_led_level{channel="FAM"} 255`,
		`thermal_cycler_led_level{channel="CY5"} 0`,
		"thermal_cycler_run_active 1",
		"thermal_cycler_run_cycle 5",
		`thermal_cycler_run_events{kind="captures"} 1`,
		`thermal_cycler_http_requests_total{code="200",method="get"} 1`,
	} {
		assert.Contains(t, body, want)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr := newTestServer(t)

	_, sj := getStatus(t, ts.URL+"/index.json")
	assert.Equal(t, "IDLE", sj.Status.Run.State)

	tr.StartRun("run-10", time.Now())
	tr.FinishRun(time.Now(), nil)
	tr.SetMQTTConnected(true)

	_, sj = getStatus(t, ts.URL+"/index.json")
	assert.Equal(t, "COMPLETE", sj.Status.Run.State)
	assert.True(t, sj.Status.MQTT.Connected, "expected MQTT connected after update")
}
