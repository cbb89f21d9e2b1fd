package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nyumuharon/hospital-system/internal/pharmacy"
	"github.com/nyumuharon/hospital-system/pkg/config"
	"github.com/nyumuharon/hospital-system/pkg/database"
	"github.com/nyumuharon/hospital-system/pkg/interfaces"
	"github.com/nyumuharon/hospital-system/pkg/logger"
	"github.com/nyumuharon/hospital-system/pkg/monitoring"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("pharmacy-service", cfg.LogLevel)
	log.Info("Starting Pharmacy Service")

	// Initialize monitoring
	var (
		metrics    *monitoring.MetricsCollector
		health     *monitoring.HealthManager
		middleware *monitoring.MonitoringMiddleware
		tracing    *monitoring.TracingManager
	)
	if cfg.Monitoring.Enabled {
		metrics = monitoring.NewMetricsCollector("pharmacy-service")
		health = monitoring.NewHealthManager("pharmacy-service", "1.0.0")

		if cfg.Monitoring.TracingEnabled {
			tracing, err = monitoring.NewTracingManager(&monitoring.TracingConfig{
				ServiceName:    "pharmacy-service",
				ServiceVersion: "1.0.0",
				JaegerEndpoint: cfg.Monitoring.JaegerEndpoint,
				Environment:    "development",
				SamplingRate:   cfg.Monitoring.SamplingRate,
			})
			if err != nil {
				log.WithError(err).Fatal("Failed to initialize tracing")
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tracing.Shutdown(ctx); err != nil {
					log.WithError(err).Error("Failed to shut down tracing")
				}
			}()
		}

		middleware = monitoring.NewMonitoringMiddleware(metrics, tracing, log)
	}

	// Initialize storage
	var (
		catalog       interfaces.CatalogRepository
		prescriptions interfaces.PrescriptionRepository
		tx            interfaces.TxManager
	)
	switch cfg.Storage.Driver {
	case "postgres":
		db, err := database.NewConnection(&cfg.Database, log)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to database")
		}
		defer db.Close()

		if err := db.InitSchema(context.Background()); err != nil {
			log.WithError(err).Fatal("Failed to initialize database schema")
		}

		store := pharmacy.NewPostgresStore(db)
		catalog, prescriptions, tx = store, store, store

		if health != nil {
			health.RegisterChecker("database", monitoring.NewDatabaseHealthChecker(db.DB))
		}
	default:
		store := pharmacy.NewMemoryStore()
		catalog, prescriptions, tx = store, store, store
	}

	// Seed demo inventory
	if cfg.Seed.Demo {
		if err := pharmacy.SeedCatalog(context.Background(), catalog); err != nil {
			log.WithError(err).Fatal("Failed to seed catalog")
		}
		log.Info("Demo inventory seeded")
	}

	// Initialize service
	service := pharmacy.NewService(catalog, prescriptions, tx, log, metrics)
	if cfg.Monitoring.Enabled {
		service.SetMonitoring(health, middleware)
	}

	// Start server in goroutine
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		if err := service.Start(addr); err != nil {
			log.WithError(err).Fatal("Failed to start HTTP server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down Pharmacy Service")

	if err := service.Stop(); err != nil {
		log.WithError(err).Error("Failed to shutdown server gracefully")
	}

	log.Info("Pharmacy Service stopped")
}
