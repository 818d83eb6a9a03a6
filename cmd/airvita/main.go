package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/madankumar045/airvitaweb/internal/airquality"
	"github.com/madankumar045/airvitaweb/internal/airquality/providers"
	httpapi "github.com/madankumar045/airvitaweb/internal/api/http"
	"github.com/madankumar045/airvitaweb/internal/config"
	"github.com/madankumar045/airvitaweb/internal/device"
	"github.com/madankumar045/airvitaweb/internal/location"
	"github.com/madankumar045/airvitaweb/internal/logging"
	"github.com/madankumar045/airvitaweb/internal/metrics"
	"github.com/madankumar045/airvitaweb/internal/publish"
	"github.com/madankumar045/airvitaweb/internal/scheduler"
	"github.com/madankumar045/airvitaweb/internal/store"
)

var version = "dev"

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg := logging.New(cfg.AppEnv, cfg.LogLevel, version)
	slog.SetDefault(lg)

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	readings := store.NewReadings(openHistory(cfg, lg))
	defer func() {
		if err := readings.Close(); err != nil {
			lg.Error("close history", "error", err)
		}
	}()

	if cfg.WAQIToken == "" {
		lg.Warn("WAQI_TOKEN not set; geo acquisitions will fail with not_configured")
	}
	provider := providers.NewWAQIProvider(httpClient, cfg.WAQIBaseURL, cfg.WAQIToken)

	m := metrics.New()

	opts := []airquality.Option{
		airquality.WithLogger(lg),
		airquality.WithObserver(m),
		airquality.WithConfig(airquality.Config{
			LocateTimeout:  cfg.LocateTimeout,
			FetchTimeout:   cfg.ProviderTimeout,
			PersistTimeout: cfg.PersistTimeout,
			Retry: airquality.BackoffConfig{
				MaxRetries:      cfg.AcquireMaxRetries,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		}),
	}

	// Device path: simulated readings, BLE discovery, bbolt pairing slot.
	pairing, err := store.OpenPairing(cfg.PairingDBPath)
	if err != nil {
		lg.Warn("pairing store unavailable; device path disabled", "path", cfg.PairingDBPath, "error", err)
	} else {
		defer pairing.Close()
		pairer := device.NewBLEPairer(device.Options{
			Adapter:     cfg.BLEAdapter,
			NamePrefix:  cfg.BLENamePrefix,
			ScanTimeout: cfg.BLEScanTimeout,
		}, lg)
		opts = append(opts, airquality.WithDevice(providers.NewSimulatedDevice(cfg.DeviceSimLatency, nil), pairing, pairer))
	}

	if cfg.MQTTBroker != "" {
		sink := publish.NewMQTTSink(publish.Options{
			Broker:      cfg.MQTTBroker,
			Port:        cfg.MQTTPort,
			ClientID:    cfg.MQTTClientID,
			TopicPrefix: cfg.MQTTTopicPrefix,
		}, lg)
		connectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := sink.Connect(connectCtx); err != nil {
			lg.Warn("mqtt connect failed; readings will be published once it reconnects", "error", err)
		}
		cancel()
		defer sink.Disconnect()
		opts = append(opts, airquality.WithSinks(sink))
	}

	// Core service orchestrating resolvers, provider, device and store.
	service := airquality.NewService(readings, provider, opts...)

	geoIP, err := location.OpenGeoIP(cfg.GeoIPDBPath)
	if err != nil {
		lg.Warn("geoip disabled", "error", err)
		geoIP = nil
	} else {
		defer geoIP.Close()
	}

	// Scheduler that periodically acquires watch locations.
	sched := scheduler.New(cfg.WatchLocations, cfg.WatchInterval, cfg.LocateTimeout+cfg.ProviderTimeout, service, lg)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}

	app := fiber.New(fiber.Config{
		AppName:               "airvita",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.LocateTimeout + cfg.ProviderTimeout + 5*time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	httpapi.RegisterRoutes(app, service, httpapi.Deps{
		GeoIP:    geoIP,
		Geocoder: location.NewGeocoder(cfg.GeocoderAPIKey),
		Metrics:  m,
		History:  readings,
	})

	go func() {
		lg.Info("listening", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			lg.Error("fiber server stopped", "error", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	// No new acquisitions past this point, then drain.
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		lg.Error("error during shutdown", "error", err)
	}
	if err := service.Close(shutdownCtx); err != nil {
		lg.Warn("background writes did not finish", "error", err)
	}
}

// openHistory picks the history backend. A sqlite failure degrades to memory.
func openHistory(cfg *config.AppConfig, lg *slog.Logger) store.HistoryBackend {
	if cfg.HistoryBackend == config.BackendSQLite {
		h, err := store.OpenSQLite(cfg.SQLitePath, lg)
		if err == nil {
			lg.Info("history backend: sqlite", "path", cfg.SQLitePath)
			return h
		}
		lg.Warn("sqlite unavailable; falling back to memory history", "path", cfg.SQLitePath, "error", err)
	}
	lg.Info("history backend: memory", "max_entries", cfg.HistoryMaxEntries)
	return store.NewMemoryHistory(cfg.HistoryMaxEntries)
}
