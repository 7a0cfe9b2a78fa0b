// Command thermal-cycler runs an RT-PCR program on the heater block, reporting
// progress to the acquisition host over serial and mirroring it to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/thermal-cycler/internal/config"
	"github.com/sweeney/thermal-cycler/internal/cycle"
	"github.com/sweeney/thermal-cycler/internal/hardware"
	"github.com/sweeney/thermal-cycler/internal/mqtt"
	"github.com/sweeney/thermal-cycler/internal/protocol"
	"github.com/sweeney/thermal-cycler/internal/status"
	"github.com/sweeney/thermal-cycler/internal/web"
)

// options are the command-line settings that are not part of the config file.
type options struct {
	configPath string
	simulate   bool
	fast       bool
	printTemp  bool
	writeCfg   string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "/etc/thermal-cycler.yaml", "Configuration file (defaults are used if missing)")
	flag.BoolVar(&opts.simulate, "simulate", false, "Run against a simulated block and an auto-acknowledging host")
	flag.BoolVar(&opts.fast, "fast", false, "With -simulate, run on a virtual clock instead of wall time")
	flag.BoolVar(&opts.printTemp, "print-temp", false, "Print the block temperature and exit")
	flag.StringVar(&opts.writeCfg, "write-config", "", "Write the effective configuration to this file and exit")
	port := flag.String("port", "", "Serial port of the acquisition host (overrides config)")
	broker := flag.String("broker", "", "MQTT broker address, empty to disable (overrides config)")
	httpAddr := flag.String("http", "", "HTTP status address, empty to disable (overrides config)")

	flag.Parse()

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	applyOverrides(cfg, set, *port, *broker, *httpAddr)

	if err := run(*cfg, opts); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// applyOverrides copies explicitly set flags over the loaded configuration.
func applyOverrides(cfg *config.Config, set map[string]bool, port, broker, httpAddr string) {
	if set["port"] {
		cfg.Host.Port = port
	}
	if set["broker"] {
		cfg.MQTT.Broker = broker
	}
	if set["http"] {
		cfg.HTTP.Addr = httpAddr
	}
}

func run(cfg config.Config, opts options) error {
	if opts.writeCfg != "" {
		if err := cfg.Save(opts.writeCfg); err != nil {
			return err
		}
		log.Printf("wrote configuration to %s", opts.writeCfg)
		return nil
	}

	now, sleep := time.Now, time.Sleep
	if opts.simulate && opts.fast {
		clock := hardware.NewSimClock(time.Now())
		now, sleep = clock.Now, clock.Sleep
	}

	// Initialize the board
	board, err := openBoard(cfg, opts.simulate, now)
	if err != nil {
		return fmt.Errorf("init board: %w", err)
	}
	defer board.Close()

	// Print temperature mode
	if opts.printTemp {
		temp, err := board.ReadTemperature()
		if err != nil {
			return fmt.Errorf("read temperature: %w", err)
		}
		fmt.Printf("%.2f\n", temp)
		return nil
	}

	// Initialize the host link
	link, err := openLink(cfg, opts.simulate)
	if err != nil {
		return fmt.Errorf("open host link: %w", err)
	}
	defer link.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		IntervalMs:    cfg.Control.Interval.Milliseconds(),
		LogIntervalMs: cfg.Control.LogInterval.Milliseconds(),
		MaxPWM:        cfg.Control.MaxPWM,
		Cycles:        cfg.Program.Cycles,
		FAM:           cfg.Channels.FAM,
		CY5:           cfg.Channels.CY5,
		HostPort:      hostPortLabel(cfg, opts.simulate),
		Broker:        cfg.MQTT.Broker,
		HTTPAddr:      cfg.HTTP.Addr,
		HeartbeatMs:   cfg.MQTT.Heartbeat.Milliseconds(),
		Simulated:     opts.simulate,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Initialize MQTT
	var publisher mqtt.Publisher
	var mqttStatus mqtt.ConnectionStatus
	if cfg.MQTT.Broker != "" {
		// The queue keeps broker round trips off the control tick.
		q := mqtt.NewQueuedPublisher(mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID), 0)
		defer q.Close()
		publisher, mqttStatus = q, q
	}

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP.Addr)
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case s := <-sigCh:
			log.Printf("received %v, stopping run", s)
			cancel(signalError{s})
		case <-ctx.Done():
		}
	}()

	if publisher != nil && cfg.MQTT.Heartbeat > 0 {
		ticker := time.NewTicker(cfg.MQTT.Heartbeat)
		defer ticker.Stop()
		go heartbeatLoop(ctx, ticker.C, publisher, mqttStatus, tracker, time.Now)
	}

	runner := cycle.NewRunner(cfg, board, link, cycle.Options{
		Now:       now,
		Sleep:     sleep,
		Publisher: publisher,
		Tracker:   tracker,
	})

	log.Printf("started: run=%s cycles=%d interval=%v max_pwm=%d host=%s broker=%q simulate=%v",
		runner.RunID(), cfg.Program.Cycles, cfg.Control.Interval, cfg.Control.MaxPWM,
		hostPortLabel(cfg, opts.simulate), cfg.MQTT.Broker, opts.simulate)

	return execute(ctx, runner, publisher, mqttStatus, tracker, now)
}

// execute runs the program between STARTUP and a closing lifecycle event.
// Cancellation by signal is a clean exit; any other failure is returned.
func execute(ctx context.Context, runner *cycle.Runner, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, now func() time.Time) error {
	publishSystem(publisher, mqttStatus, tracker, now, "STARTUP", "")

	err := runner.Run(ctx)

	switch {
	case err == nil:
		publishSystem(publisher, mqttStatus, tracker, now, "RUN_COMPLETE", "")
		return nil
	case errors.Is(err, context.Canceled):
		reason := "CANCELLED"
		var sig signalError
		if errors.As(context.Cause(ctx), &sig) {
			reason = signalName(sig.Signal)
		}
		publishSystem(publisher, mqttStatus, tracker, now, "SHUTDOWN", reason)
		return nil
	default:
		publishSystem(publisher, mqttStatus, tracker, now, "RUN_FAILED", err.Error())
		return err
	}
}

// heartbeatLoop publishes a retained status snapshot on every tick until ctx
// is done.
func heartbeatLoop(ctx context.Context, tick <-chan time.Time, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, now func() time.Time) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			// Refresh network info for heartbeat
			if net := readNetworkInfo(); net != nil {
				tracker.SetNetwork(net)
			}
			snap := tracker.Snapshot()
			log.Printf("heartbeat: uptime=%v run=%s step=%s cycle=%d temp=%.2f",
				snap.Uptime().Truncate(time.Second), snap.RunState(), snap.Step, snap.Cycle, snap.Temperature)
			publishSystem(publisher, mqttStatus, tracker, now, "HEARTBEAT", "")
		}
	}
}

func publishSystem(publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, now func() time.Time, event, reason string) {
	if publisher == nil {
		return
	}
	if mqttStatus != nil {
		tracker.SetMQTTConnected(mqttStatus.IsConnected())
	}
	snap := tracker.Snapshot()
	ev := mqtt.SystemEvent{
		Timestamp:  now(),
		Event:      event,
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := publisher.PublishSystem(ev); err != nil {
		log.Printf("failed to publish %s event: %v", event, err)
	} else {
		log.Printf("published %s event", event)
	}
}

func openBoard(cfg config.Config, simulate bool, now func() time.Time) (hardware.Board, error) {
	if simulate {
		return hardware.NewSimBoard(hardware.DefaultSimConfig(), now), nil
	}
	return hardware.NewRealBoard(cfg.Pins())
}

func openLink(cfg config.Config, simulate bool) (protocol.Link, error) {
	if simulate {
		return &echoLink{Link: protocol.NewFakeHost(true, simulatedAckTicks), w: os.Stdout}, nil
	}
	return protocol.OpenSerial(cfg.Host.Port, cfg.Host.BaudRate)
}

// simulatedAckTicks is how long the simulated host takes to capture a frame.
const simulatedAckTicks = 5

func hostPortLabel(cfg config.Config, simulate bool) string {
	if simulate {
		return "simulated"
	}
	return cfg.Host.Port
}

// echoLink copies every outbound protocol line to w.
type echoLink struct {
	protocol.Link
	w io.Writer
}

func (l *echoLink) Send(line string) error {
	fmt.Fprintln(l.w, line)
	return l.Link.Send(line)
}

// signalError records which signal cancelled the run.
type signalError struct {
	os.Signal
}

func (e signalError) Error() string {
	return "received " + e.Signal.String()
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
