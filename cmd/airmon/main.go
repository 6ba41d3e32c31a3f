package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/afroash/airmon/internal/config"
	"github.com/afroash/airmon/internal/filter"
	"github.com/afroash/airmon/internal/gas"
	"github.com/afroash/airmon/internal/metrics"
	"github.com/afroash/airmon/internal/models"
	"github.com/afroash/airmon/internal/netmgr"
	"github.com/afroash/airmon/internal/publish"
	"github.com/afroash/airmon/internal/sensor"
	"github.com/afroash/airmon/internal/server"
	"github.com/afroash/airmon/internal/storage"
)

const version = "v0.3.0"

func main() {
	configPath := flag.String("config", "", "path to config file (defaults when empty)")
	simulate := flag.Bool("simulate", false, "use simulated sensors")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *simulate {
		cfg.Gas.Source = "simulated"
		cfg.DHT.Source = "simulated"
	}

	logger := cfg.Logging.NewLogger(os.Stdout)
	logger.Info().
		Str("version", version).
		Str("hostname", cfg.Device.Hostname).
		Str("room_id", cfg.Device.RoomID).
		Msg("Starting air monitor")
	logger.Debug().Str("config", cfg.String()).Msg("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Air monitor failed")
	}
}

// run wires the monitor and blocks until ctx is cancelled or the API fails
func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	device := models.NewDeviceInfo(cfg.Device.Hostname, cfg.Device.RoomID, version)

	climate, err := openClimate(cfg.DHT)
	if err != nil {
		return fmt.Errorf("open DHT sensor: %w", err)
	}

	// Gas sensor: warm up and calibrate before the network comes up
	estimator := gas.NewEstimator(openAnalog(cfg.Gas), gas.ResistanceModel{
		VRef:           cfg.Gas.VRef,
		ADCBits:        cfg.Gas.ADCBits,
		LoadResistance: cfg.Gas.LoadResistance,
	}, logger.With().Str("component", "gas").Logger())
	target, _ := gas.ParseGas(cfg.Gas.Target)

	var comparator gas.Comparator
	if cfg.Gas.Threshold.Chip != "" {
		pin, err := gas.OpenThresholdPin(cfg.Gas.Threshold.Chip, cfg.Gas.Threshold.Offset)
		if err != nil {
			logger.Warn().Err(err).Str("chip", cfg.Gas.Threshold.Chip).Msg("Gas threshold line unavailable")
		} else {
			comparator = pin
			defer pin.Close()
		}
	}

	logger.Info().Dur("warmup", cfg.Gas.WarmUp).Msg("Warming up gas sensor")
	estimator.WarmUp(cfg.Gas.WarmUp)
	err = estimator.Calibrate(cfg.Gas.CalibrationSamples, cfg.Gas.CalibrationInterval)
	metrics.ObserveCalibration(estimator.Baseline(), err)
	if err != nil {
		// estimates stay invalid until /mq/recalibrate succeeds
		logger.Error().Err(err).Msg("Initial calibration failed")
	} else {
		logger.Info().Float64("r0", estimator.Baseline()).Msg("Gas sensor calibrated")
	}

	store := server.NewSnapshotStore()
	gate := &sync.Mutex{}

	// Optional reading history
	var history sensor.HistoryWriter
	var historical server.HistoricalStore
	if cfg.History.Enabled {
		if err := os.MkdirAll(filepath.Dir(cfg.History.Path), 0755); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
		db, err := storage.NewSQLiteStore(cfg.History.Path, logger.With().Str("component", "storage").Logger())
		if err != nil {
			return fmt.Errorf("open history store: %w", err)
		}
		defer db.Close()

		if stats, err := db.GetStorageStats(); err == nil {
			logger.Info().
				Int64("readings", stats.TotalReadings).
				Float64("size_mb", stats.DatabaseSizeMB).
				Msg("History store ready")
		}

		writer := storage.NewDBWriter(db, storage.DBWriterConfig{
			BatchSize:   cfg.History.BatchSize,
			FlushPeriod: cfg.History.FlushPeriod,
			QueueSize:   cfg.History.QueueSize,
		}, logger)
		defer writer.Stop()

		cleaner := storage.NewRetentionCleaner(db, storage.RetentionCleanerConfig{
			RetentionDays: cfg.History.RetentionDays,
			CleanupPeriod: cfg.History.CleanupPeriod,
		}, logger)
		defer cleaner.Stop()

		history = writer
		historical = db
	}

	// MQTT publishing; no broker means Tick is a no-op
	var broker publish.Broker
	if cfg.MQTT.Broker != "" {
		broker = publish.NewPahoBroker(cfg.MQTT.Broker, cfg.MQTT.Port, cfg.MQTT.KeepAlive, cfg.MQTT.ConnectTimeout,
			logger.With().Str("component", "mqtt").Logger())
	}
	scheduler := publish.NewScheduler(publish.Config{
		Broker:   cfg.MQTT.Broker,
		Topic:    cfg.MQTT.Topic,
		RoomID:   cfg.Device.RoomID,
		Interval: cfg.MQTT.Interval,
	}, broker, store, device.UptimeMillis, logger.With().Str("component", "mqtt").Logger())
	defer scheduler.Close()

	monitor := sensor.NewMonitor(sensor.Components{
		Climate:    climate,
		Gas:        estimator,
		Filter:     filter.New(cfg.Gas.FilterWindow),
		Sink:       store,
		Display:    sensor.NewConsoleDisplay(logger.With().Str("component", "display").Logger()),
		History:    history,
		Publisher:  scheduler,
		Comparator: comparator,
		Gate:       gate,
		Clock:      device.UptimeSeconds,
	}, sensor.MonitorConfig{
		Interval:         cfg.Device.Interval,
		Target:           target,
		RoomID:           cfg.Device.RoomID,
		DiagnosticsEvery: cfg.Device.DiagnosticsEvery,
		ClientID:         cfg.MQTT.ClientID,
		Username:         cfg.MQTT.Username,
		Password:         cfg.MQTT.Password,
	}, logger.With().Str("component", "monitor").Logger())
	defer monitor.Close()

	// The API opens only once the manager has a link
	var httpServer *server.Server
	manager := netmgr.NewManager(
		netmgr.NewHostRadio(cfg.WiFi.Interface),
		netmgr.NewMDNSAnnouncer(logger.With().Str("component", "mdns").Logger()),
		netmgr.APIOpenerFunc(func(ctx context.Context) error { return httpServer.Open(ctx) }),
		logger.With().Str("component", "net").Logger(),
	)
	defer manager.Close()
	scheduler.SetLink(manager)

	stream := server.NewStream(store, manager, logger.With().Str("component", "stream").Logger(), cfg.HTTP.AllowedOrigins...)
	api := server.NewAPIHandler(server.Deps{
		State:     store,
		Network:   manager,
		Baseline:  monitor,
		Publisher: scheduler,
		History:   historical,
		Stream:    stream,
		Device:    device,
		Gate:      gate,
	}, cfg.Device.RoomID, cfg.HTTP.Port, logger.With().Str("component", "api").Logger())
	httpServer = server.NewServer(fmt.Sprintf(":%d", cfg.HTTP.Port), api.Router(cfg.CORSEnabled()),
		cfg.HTTP.ReadTimeout, cfg.HTTP.WriteTimeout, logger.With().Str("component", "http").Logger())

	state := manager.Begin(ctx, netConfig(cfg))
	logger.Info().Str("state", state.String()).Str("mode", manager.Mode()).Msg("Network ready")

	go stream.Run(ctx, store)

	runErr := make(chan error, 1)
	go func() { runErr <- monitor.Run(ctx) }()

	var apiErr error
	select {
	case <-ctx.Done():
	case apiErr = <-httpServer.Errors():
		stop()
	}
	<-runErr

	logger.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Close(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP shutdown error")
	}

	logger.Info().Dur("uptime", device.Uptime()).Msg("Air monitor stopped")
	if apiErr != nil {
		return fmt.Errorf("HTTP API: %w", apiErr)
	}
	return nil
}

func openClimate(cfg config.DHTConfig) (sensor.Hygrometer, error) {
	if cfg.Source == "simulated" {
		return sensor.NewSimulatedHygrometer(), nil
	}
	return sensor.NewDHTReader(cfg.Source, cfg.Pin, cfg.MaxRetries)
}

func openAnalog(cfg config.GasConfig) gas.AnalogReader {
	switch {
	case cfg.Source == "simulated":
		return gas.NewSimulatedReader(1200, cfg.ADCBits)
	case cfg.IIOPath != "":
		return gas.NewIIOReaderPath(cfg.IIOPath)
	default:
		return gas.NewIIOReader(cfg.IIODevice, cfg.IIOChannel)
	}
}

func netConfig(cfg *config.Config) netmgr.Config {
	address := func(a config.AddressConfig) netmgr.Address {
		return netmgr.Address{IP: a.IP, Gateway: a.Gateway, Netmask: a.Netmask, DNS: a.DNS}
	}
	return netmgr.Config{
		Hostname:       cfg.Device.Hostname,
		SSID:           cfg.WiFi.SSID,
		Password:       cfg.WiFi.Password,
		Static:         address(cfg.WiFi.Static),
		StationTimeout: cfg.WiFi.StationTimeout,
		FallbackAP:     cfg.APEnabled(),
		APSSID:         cfg.WiFi.FallbackAP.SSID,
		APPassword:     cfg.WiFi.FallbackAP.Password,
		AP:             address(cfg.WiFi.FallbackAP.Address),
		HTTPPort:       cfg.HTTP.Port,
	}
}
