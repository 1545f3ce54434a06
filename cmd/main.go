package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/domdfcoding/statsbackend/internal/backend"
	"github.com/domdfcoding/statsbackend/internal/config"
	"github.com/domdfcoding/statsbackend/internal/domains/energy"
	"github.com/domdfcoding/statsbackend/internal/domains/rainfall"
	"github.com/domdfcoding/statsbackend/internal/domains/temperature"
	"github.com/domdfcoding/statsbackend/internal/influx"
	"github.com/domdfcoding/statsbackend/internal/models"
	"github.com/domdfcoding/statsbackend/internal/publisher"
	"github.com/domdfcoding/statsbackend/internal/scheduler"
	"github.com/domdfcoding/statsbackend/internal/server"
	middleware "github.com/domdfcoding/statsbackend/internal/server/middlewares"
	"github.com/domdfcoding/statsbackend/internal/store"
)

// Command statsbackend serves home sensor statistics to Grafana.
//
// The service retrieves raw sensor time series from InfluxDB, reshapes
// them into daily statistics per domain (energy, rainfall, temperature),
// persists the processed data on disk, and exposes HTTP endpoints for
// Grafana dashboards. Refreshes run on a cron schedule; daily summaries
// can optionally be republished over MQTT for Home Assistant.
//
// Usage:
//
//	statsbackend [flags]
//
// The flags are:
//
//	-config string
//	      path to config file (default "config.yaml")
func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := newLogger(cfg.Logging)
	logger.WithFields(logrus.Fields{
		"port": cfg.Server.Port,
	}).Info("Starting statistics backend")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := influx.Connect(ctx, influx.Config{
		URL:     cfg.InfluxDB.URL,
		Token:   cfg.InfluxDB.Token,
		Org:     cfg.InfluxDB.Org,
		Bucket:  cfg.InfluxDB.Bucket,
		Timeout: cfg.InfluxDB.Timeout,
	})
	if err != nil {
		logger.Fatalf("Failed to connect to InfluxDB: %v", err)
	}
	defer client.Close()

	registry := buildRegistry(cfg, client, logger)

	var pub *publisher.Publisher
	if cfg.MQTT.Enabled {
		pub, err = publisher.New(cfg.MQTT, logger)
		if err != nil {
			logger.Fatalf("Failed to connect to MQTT broker: %v", err)
		}
		defer pub.Close()
	}

	srv, err := server.New(registry, logger, server.Config{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		CacheSize:      cfg.Server.CacheSize,
		RateLimit:      cfg.Server.RateLimit,
		RateLimitBurst: cfg.Server.RateLimitBurst,
	})
	if err != nil {
		logger.Fatalf("Failed to set up server: %v", err)
	}

	var summaryPublisher scheduler.SummaryPublisher
	if pub != nil {
		summaryPublisher = pub
	}
	sched := scheduler.NewScheduler(ctx, registry, summaryPublisher, middleware.PurgeCache, logger, cfg.Scheduler.Spec)

	errChan := make(chan error, 1)

	// Bootstrap processed data in a goroutine; the first run can fetch
	// years of history.
	go sched.Bootstrap()

	if err := sched.Start(); err != nil {
		logger.Fatalf("Failed to start scheduler: %v", err)
	}

	go handleShutdown(ctx, cancel, srv, sched, logger)

	go func() {
		if err := srv.Start(); err != nil {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	if err := <-errChan; err != nil {
		logger.WithError(err).Info("Service stopped")
	}
}

func newLogger(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		logger.SetLevel(level)
	}
	return logger
}

func buildRegistry(cfg *config.Config, client *influx.Client, logger *logrus.Logger) *backend.Registry {
	dataDir := cfg.Data.Dir
	bucket := cfg.InfluxDB.Bucket

	energyBackend := energy.New(energy.Config{
		Bucket:        bucket,
		CurrentTopic:  cfg.Domains.Energy.CurrentTopic,
		VoltageSource: cfg.Domains.Energy.VoltageSource,
		StartDate:     config.MustParseDate(cfg.Domains.Energy.StartDate),
	}, client, store.New[models.DailyEnergy](dataDir, "daily_energy"), logger, nil)

	rainfallBackend := rainfall.New(rainfall.Config{
		Bucket:     bucket,
		Topic:      cfg.Domains.Rainfall.Topic,
		MinDailyMM: cfg.Domains.Rainfall.MinDailyMM,
		StartDate:  config.MustParseDate(cfg.Domains.Rainfall.StartDate),
	}, client, store.New[models.DailyRainfall](dataDir, "daily_rainfall"), logger, nil)

	temperatureBackend := temperature.New(temperature.Config{
		Bucket:    bucket,
		Topic:     cfg.Domains.Temperature.Topic,
		Latitude:  cfg.Domains.Temperature.Latitude,
		Longitude: cfg.Domains.Temperature.Longitude,
		MinValid:  cfg.Domains.Temperature.MinValid,
		StartDate: config.MustParseDate(cfg.Domains.Temperature.StartDate),
	}, client, store.New[models.DailyTemperature](dataDir, "daily_temperatures"), logger, nil, nil)

	return backend.NewRegistry(logger, energyBackend, rainfallBackend, temperatureBackend)
}

// Handle graceful shutdown.
func handleShutdown(ctx context.Context, cancel context.CancelFunc, srv *server.Server, sched *scheduler.Scheduler, logger *logrus.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		logger.Println("Context canceled, initiating shutdown")
	case sig := <-sigChan:
		logger.Printf("Received signal %v, initiating shutdown", sig)
	}

	sched.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	logger.Println("Gracefully stopping server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}
	logger.Println("Server stopped")
}
