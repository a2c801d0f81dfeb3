package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sweeney/coffee-relay/internal/actuator"
	"github.com/sweeney/coffee-relay/internal/config"
	"github.com/sweeney/coffee-relay/internal/gpio"
	"github.com/sweeney/coffee-relay/internal/mqtt"
	"github.com/sweeney/coffee-relay/internal/schedule"
	"github.com/sweeney/coffee-relay/internal/status"
	"github.com/sweeney/coffee-relay/internal/telemetry"
	"github.com/sweeney/coffee-relay/internal/web"
)

// eventBuffer bounds schedule events queued for MQTT between loop iterations.
const eventBuffer = 64

// shutdownTimeout bounds waiting for background tasks and the HTTP server.
const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay daemon",
	Long:  "Open the relay GPIO line, serve the HTTP API and publish events to MQTT until SIGINT or SIGTERM.",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	relay := actuator.New(gpio.NewRealPin(cfg.Chip, cfg.Pin), logger)

	tracker := status.NewTracker(time.Now(), statusConfig(cfg))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	events := make(chan schedule.Event, eventBuffer)
	notifiers := schedule.Notifiers{tracker, forwardTo(events, logger)}

	var metrics *telemetry.Metrics
	if cfg.MetricsEnabled {
		metrics = telemetry.New()
		notifiers = append(notifiers, metrics)
	}

	runner := schedule.New(relay, cfg.OnDuration,
		schedule.WithNotifier(notifiers),
		schedule.WithLogger(logger),
	)

	d := &daemon{
		relay:   runner,
		tracker: tracker,
		now:     time.Now,
		log:     logger,
	}

	if cfg.Broker != "" {
		publisher, err := mqtt.NewRealPublisher(cfg.Broker, cfg.ClientID, logger)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer publisher.Close()
		d.publisher = publisher
		d.mqttStatus = publisher
	}

	if cfg.Autostart != "" {
		auto, err := schedule.NewAutostart(cfg.Autostart, runner, time.Local, logger)
		if err != nil {
			return err
		}
		auto.Start()
		defer auto.Stop()
		d.nextAutostart = auto.Next
	}

	srv := web.New(cfg.HTTPAddr, runner, tracker, web.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		Metrics:        metrics,
		Logger:         logger,
	})
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
		}
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	d.startup()
	logger.Info().
		Str("http", cfg.HTTPAddr).
		Str("chip", cfg.Chip).
		Int("pin", cfg.Pin).
		Dur("on_duration", cfg.OnDuration).
		Str("broker", cfg.Broker).
		Dur("heartbeat", cfg.Heartbeat).
		Str("autostart", cfg.Autostart).
		Msg("started")

	var heartbeat <-chan time.Time
	if cfg.Heartbeat > 0 {
		ticker := time.NewTicker(cfg.Heartbeat)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return d.runLoop(events, heartbeat, sigCh)
}

func statusConfig(cfg *config.Config) status.Config {
	return status.Config{
		Chip:         cfg.Chip,
		Pin:          cfg.Pin,
		OnDurationMs: cfg.OnDuration.Milliseconds(),
		HeartbeatMs:  cfg.Heartbeat.Milliseconds(),
		Broker:       cfg.Broker,
		HTTPAddr:     cfg.HTTPAddr,
		Autostart:    cfg.Autostart,
	}
}

// forwardTo queues events for the run loop. The runner calls it with its lock
// held, so a full queue drops the event rather than block.
func forwardTo(ch chan<- schedule.Event, logger zerolog.Logger) schedule.Notifier {
	return schedule.NotifierFunc(func(ev schedule.Event) {
		select {
		case ch <- ev:
		default:
			logger.Warn().Str("event", string(ev.Type)).Msg("event queue full, dropping")
		}
	})
}

// relayRunner is the part of schedule.Runner the daemon loop drives.
type relayRunner interface {
	Stop() error
	Status() actuator.State
	Snapshot() schedule.Snapshot
	Close(ctx context.Context) error
}

// daemon owns the publishing side of the process: lifecycle events, relay
// events and heartbeats. A nil publisher disables MQTT.
type daemon struct {
	relay         relayRunner
	publisher     mqtt.Publisher
	mqttStatus    mqtt.ConnectionStatus
	tracker       *status.Tracker
	nextAutostart func() time.Time
	now           func() time.Time
	log           zerolog.Logger
}

// refresh pulls live state into the tracker and returns a snapshot.
func (d *daemon) refresh() status.Snapshot {
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
	if d.nextAutostart != nil {
		d.tracker.SetNextAutostart(d.nextAutostart())
	}
	d.tracker.Update(d.relay.Status(), d.relay.Snapshot())
	return d.tracker.Snapshot()
}

func (d *daemon) publishSystem(event, reason string, retained bool) {
	if d.publisher == nil {
		return
	}
	snap := d.refresh()
	ev := mqtt.SystemEvent{
		Timestamp:  d.now(),
		Event:      event,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := d.publisher.PublishSystem(ev); err != nil {
		d.log.Error().Err(err).Str("event", event).Msg("failed to publish system event")
		return
	}
	d.log.Debug().Str("event", event).Msg("published system event")
}

func (d *daemon) startup() {
	d.publishSystem("STARTUP", "", true)
}

func (d *daemon) publish(ev schedule.Event) {
	if d.nextAutostart != nil {
		d.tracker.SetNextAutostart(d.nextAutostart())
	}
	if d.publisher == nil {
		return
	}
	if err := d.publisher.Publish(ev); err != nil {
		// Don't crash on publish failure
		d.log.Error().Err(err).Str("event", string(ev.Type)).Msg("publish error")
	}
}

// drain publishes events already queued without waiting for more.
func (d *daemon) drain(events <-chan schedule.Event) {
	for {
		select {
		case ev := <-events:
			d.publish(ev)
		default:
			return
		}
	}
}

// shutdown refuses new starts, forces the relay off and releases the pin.
func (d *daemon) shutdown(reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := d.relay.Close(ctx); err != nil {
		d.log.Error().Err(err).Msg("background tasks did not exit")
	}
	if err := d.relay.Stop(); err != nil {
		d.log.Error().Err(err).Msg("failed to switch relay off on shutdown")
	}
	d.publishSystem("SHUTDOWN", reason, true)
}

func (d *daemon) runLoop(events <-chan schedule.Event, heartbeat <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			d.log.Info().Stringer("signal", s).Msg("shutting down")
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			d.drain(events)
			d.shutdown(signalName)
			d.drain(events)
			return nil

		case ev := <-events:
			d.log.Debug().Str("event", string(ev.Type)).Uint64("generation", ev.Generation).Msg("relay event")
			d.publish(ev)

		case <-heartbeat:
			if net := readNetworkInfo(); net != nil {
				d.tracker.SetNetwork(net)
			}
			d.publishSystem("HEARTBEAT", "", false)
		}
	}
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
