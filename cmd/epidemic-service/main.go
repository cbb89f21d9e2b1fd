package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nyumuharon/hospital-system/internal/epidemic"
	"github.com/nyumuharon/hospital-system/pkg/config"
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
	log := logger.New("epidemic-service", cfg.LogLevel)
	log.Info("Starting Epidemic Service")

	if cfg.AI.APIKey == "" {
		log.Warn("No AI API key configured, analysis will return the fail-safe report")
	}

	// Initialize monitoring
	var (
		metrics    *monitoring.MetricsCollector
		health     *monitoring.HealthManager
		middleware *monitoring.MonitoringMiddleware
		tracing    *monitoring.TracingManager
	)
	if cfg.Monitoring.Enabled {
		metrics = monitoring.NewMetricsCollector("epidemic-service")
		health = monitoring.NewHealthManager("epidemic-service", "1.0.0")

		// The analyzer degrades to the fail-safe report without a key;
		// surface that on /health instead of failing.
		apiKeySet := cfg.AI.APIKey != ""
		health.RegisterChecker("analyzer", monitoring.NewCustomHealthChecker(func(ctx context.Context) monitoring.HealthCheck {
			if !apiKeySet {
				return monitoring.HealthCheck{
					Status:  monitoring.HealthStatusDegraded,
					Message: "AI API key not configured, analysis runs in fallback mode",
				}
			}
			return monitoring.HealthCheck{
				Status:  monitoring.HealthStatusHealthy,
				Message: "Analyzer configured",
			}
		}))

		if cfg.Monitoring.TracingEnabled {
			tracing, err = monitoring.NewTracingManager(&monitoring.TracingConfig{
				ServiceName:    "epidemic-service",
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

	// Initialize storage and analyzer
	records := epidemic.NewMemorySymptomStore()
	analyzer := epidemic.NewGeminiAnalyzer(cfg.AI, log, metrics)

	// Seed demo intake records
	if cfg.Seed.Demo {
		if err := epidemic.SeedSymptoms(context.Background(), records); err != nil {
			log.WithError(err).Fatal("Failed to seed symptom records")
		}
		log.Info("Demo symptom records seeded")
	}

	// Initialize service
	service := epidemic.NewService(records, analyzer, log, metrics)
	if cfg.Monitoring.Enabled {
		service.SetMonitoring(health, middleware)
	}

	// Start server in goroutine
	port := cfg.Server.Port
	if os.Getenv("PORT") == "" {
		// The pharmacy service owns the default port; run one above it
		// unless explicitly configured.
		port = cfg.Server.Port + 1
	}
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, port)
	go func() {
		if err := service.Start(addr); err != nil {
			log.WithError(err).Fatal("Failed to start HTTP server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down Epidemic Service")

	if err := service.Stop(); err != nil {
		log.WithError(err).Error("Failed to shutdown server gracefully")
	}

	log.Info("Epidemic Service stopped")
}
