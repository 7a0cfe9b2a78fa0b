package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/thermal-cycler/internal/config"
	"github.com/sweeney/thermal-cycler/internal/cycle"
	"github.com/sweeney/thermal-cycler/internal/hardware"
	"github.com/sweeney/thermal-cycler/internal/mqtt"
	"github.com/sweeney/thermal-cycler/internal/protocol"
	"github.com/sweeney/thermal-cycler/internal/status"
)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env. If pi-helper changes its var names, this test fails
// and we update the constants, not the other way around.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		assert.Equal(t, canonical, got, "env var constant")
	}
}

func TestReadNetworkInfoAllSet(t *testing.T) {
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "LabNet")

	info := readNetworkInfo()
	require.NotNil(t, info)
	assert.Equal(t, status.NetworkInfo{
		Type:       "wifi",
		IP:         "192.168.1.100",
		Status:     "connected",
		Gateway:    "192.168.1.1",
		WifiStatus: "connected",
		SSID:       "LabNet",
	}, *info)
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	t.Setenv(envNetworkStatus, "")
	assert.Nil(t, readNetworkInfo(), "expected nil when NETWORK_STATUS is unset")
}

func TestApplyOverrides(t *testing.T) {
	cfg := config.Default()
	cfg.MQTT.Broker = "tcp://from-file:1883"

	applyOverrides(cfg, map[string]bool{"port": true, "http": true}, "/dev/ttyUSB0", "ignored", "")

	assert.Equal(t, "/dev/ttyUSB0", cfg.Host.Port)
	assert.Empty(t, cfg.HTTP.Addr, "explicit empty -http should disable the server")
	assert.Equal(t, "tcp://from-file:1883", cfg.MQTT.Broker, "unset -broker should keep the file value")
}

func TestSignalName(t *testing.T) {
	tests := []struct {
		sig  os.Signal
		want string
	}{
		{syscall.SIGINT, "SIGINT"},
		{syscall.SIGTERM, "SIGTERM"},
		{syscall.SIGHUP, "UNKNOWN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, signalName(tt.sig), "signalName(%v)", tt.sig)
	}
}

func TestEchoLink(t *testing.T) {
	var buf bytes.Buffer
	host := protocol.NewFakeHost(false, 0)
	link := &echoLink{Link: host, w: &buf}

	require.NoError(t, link.Send("C,1"))
	assert.Equal(t, "C,1\n", buf.String())
	assert.Equal(t, []string{"C,1"}, host.Sent)
}

func TestOpenBoardSimulated(t *testing.T) {
	clock := hardware.NewSimClock(time.Now())
	board, err := openBoard(*config.Default(), true, clock.Now)
	require.NoError(t, err)
	defer board.Close()

	temp, err := board.ReadTemperature()
	require.NoError(t, err)
	assert.Equal(t, float32(25), temp, "simulated block should start at ambient")
}

func TestOpenLinkSimulated(t *testing.T) {
	link, err := openLink(*config.Default(), true)
	require.NoError(t, err)
	assert.IsType(t, &echoLink{}, link, "expected echoing fake host")
}

func TestRunWritesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := config.Default()
	cfg.Program.Cycles = 7

	require.NoError(t, run(*cfg, options{writeCfg: path}))

	loaded, err := config.Load(path)
	require.NoError(t, err, "load written config")
	assert.Equal(t, 7, loaded.Program.Cycles)
}

// testRig wires a short program to fakes on a virtual clock. The fake block
// tracks the active setpoint so every hold settles immediately.
type testRig struct {
	cfg     config.Config
	board   *hardware.FakeBoard
	host    *protocol.FakeHost
	tracker *status.Tracker
	clock   *hardware.SimClock
	pub     *mqtt.FakePublisher
}

func newTestRig(t *testing.T, cycles int) *testRig {
	t.Helper()
	cfg := *config.Default()
	cfg.Program.ReverseTranscription.Time = 0
	cfg.Program.HotStart.Time = 0
	cfg.Program.Cycles = cycles

	clock := hardware.NewSimClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	tracker := status.NewTracker(clock.Now(), status.Config{})
	board := hardware.NewFakeBoard(nil)
	board.TemperatureFunc = func() float32 { return tracker.Snapshot().Setpoint }

	return &testRig{
		cfg:     cfg,
		board:   board,
		host:    protocol.NewFakeHost(true, 1),
		tracker: tracker,
		clock:   clock,
		pub:     mqtt.NewFakePublisher(),
	}
}

func (r *testRig) runner(sleep func(time.Duration), publisher mqtt.Publisher) *cycle.Runner {
	if sleep == nil {
		sleep = r.clock.Sleep
	}
	return cycle.NewRunner(r.cfg, r.board, r.host, cycle.Options{
		Now:       r.clock.Now,
		Sleep:     sleep,
		Publisher: publisher,
		Tracker:   r.tracker,
	})
}

func TestExecuteCompletes(t *testing.T) {
	rig := newTestRig(t, 1)
	rig.pub.Connected = true

	err := execute(context.Background(), rig.runner(nil, rig.pub), rig.pub, rig.pub, rig.tracker, rig.clock.Now)
	require.NoError(t, err)

	require.Len(t, rig.pub.SystemEvents, 2)
	assert.Equal(t, "STARTUP", rig.pub.SystemEvents[0].Event)
	assert.Equal(t, "RUN_COMPLETE", rig.pub.SystemEvents[1].Event)

	var parsed status.StatusJSON
	require.NoError(t, json.Unmarshal(rig.pub.SystemPayloads[1], &parsed))
	assert.Equal(t, "COMPLETE", parsed.Status.Run.State)
	assert.True(t, parsed.Status.MQTT.Connected, "expected MQTT connected in snapshot")

	require.NotEmpty(t, rig.host.Sent)
	assert.Equal(t, "E", rig.host.Sent[len(rig.host.Sent)-1])
}

func TestExecuteSignalIsCleanShutdown(t *testing.T) {
	rig := newTestRig(t, 3)

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	ticks := 0
	sleep := func(d time.Duration) {
		ticks++
		if ticks == 10 {
			cancel(signalError{syscall.SIGTERM})
		}
		rig.clock.Sleep(d)
	}

	err := execute(ctx, rig.runner(sleep, rig.pub), rig.pub, nil, rig.tracker, rig.clock.Now)
	require.NoError(t, err, "signal shutdown should not be an error")

	require.NotEmpty(t, rig.pub.SystemEvents)
	last := rig.pub.SystemEvents[len(rig.pub.SystemEvents)-1]
	assert.Equal(t, "SHUTDOWN", last.Event)
	assert.Equal(t, "SIGTERM", last.Reason)

	out, _ := rig.board.LastHeater()
	assert.Equal(t, hardware.HeaterWrite{}, out, "heater should be off after shutdown")
	assert.False(t, rig.board.Fan, "fan should be off after shutdown")
}

func TestExecuteFailureIsReturned(t *testing.T) {
	rig := newTestRig(t, 1)
	rig.board.ReadError = errors.New("adc nack")

	err := execute(context.Background(), rig.runner(nil, rig.pub), rig.pub, nil, rig.tracker, rig.clock.Now)
	require.Error(t, err)

	require.NotEmpty(t, rig.pub.SystemEvents)
	last := rig.pub.SystemEvents[len(rig.pub.SystemEvents)-1]
	assert.Equal(t, "RUN_FAILED", last.Event)
	assert.Equal(t, err.Error(), last.Reason)
}

func TestExecuteWithoutPublisher(t *testing.T) {
	rig := newTestRig(t, 1)

	err := execute(context.Background(), rig.runner(nil, nil), nil, nil, rig.tracker, rig.clock.Now)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETE", rig.tracker.Snapshot().RunState())
}

func TestHeartbeatLoop(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkIP, "10.0.0.5")

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tracker := status.NewTracker(start, status.Config{HeartbeatMs: 60000})
	pub := mqtt.NewFakePublisher()

	ctx, cancel := context.WithCancel(context.Background())
	tick := make(chan time.Time)
	done := make(chan struct{})
	go func() {
		heartbeatLoop(ctx, tick, pub, pub, tracker, func() time.Time { return start })
		close(done)
	}()

	tick <- start.Add(time.Minute)
	tick <- start.Add(2 * time.Minute)
	cancel()
	<-done

	require.Len(t, pub.SystemEvents, 2)
	for i, ev := range pub.SystemEvents {
		assert.Equal(t, "HEARTBEAT", ev.Event, "event %d", i)
		assert.True(t, ev.Retained, "event %d should be retained", i)
	}

	var parsed status.StatusJSON
	require.NoError(t, json.Unmarshal(pub.SystemPayloads[0], &parsed))
	require.NotNil(t, parsed.Status.Network, "heartbeat should carry refreshed network info")
	assert.Equal(t, "10.0.0.5", parsed.Status.Network.IP)
	assert.Equal(t, int64(60000), parsed.Status.Config.HeartbeatMs)
}
