package epidemic

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/nyumuharon/hospital-system/pkg/interfaces"
	"github.com/nyumuharon/hospital-system/pkg/logger"
	"github.com/nyumuharon/hospital-system/pkg/monitoring"
	"github.com/nyumuharon/hospital-system/pkg/types"
)

// Service implements symptom intake and epidemic risk analysis
type Service struct {
	records    interfaces.SymptomRepository
	analyzer   interfaces.RiskAnalyzer
	logger     *logger.Logger
	metrics    *monitoring.MetricsCollector
	health     *monitoring.HealthManager
	middleware *monitoring.MonitoringMiddleware
	server     *http.Server
}

// NewService creates a new epidemic service
func NewService(
	records interfaces.SymptomRepository,
	analyzer interfaces.RiskAnalyzer,
	log *logger.Logger,
	metrics *monitoring.MetricsCollector,
) *Service {
	return &Service{
		records:  records,
		analyzer: analyzer,
		logger:   log,
		metrics:  metrics,
	}
}

// SetMonitoring attaches the health manager and HTTP monitoring
// middleware used when the server starts
func (s *Service) SetMonitoring(health *monitoring.HealthManager, middleware *monitoring.MonitoringMiddleware) {
	s.health = health
	s.middleware = middleware
}

// AddSymptomRecord validates and stores an intake record
func (s *Service) AddSymptomRecord(ctx context.Context, record *types.SymptomRecord) error {
	if record == nil {
		return types.NewValidationError(types.ErrCodeInvalidInput, "request body is required", nil)
	}
	if strings.TrimSpace(record.PatientID) == "" {
		return types.NewValidationError(types.ErrCodeInvalidInput, "patient id is required", nil)
	}
	if len(record.Symptoms) == 0 {
		return types.NewValidationError(types.ErrCodeInvalidInput, "at least one symptom is required", nil)
	}
	if record.Timestamp == "" {
		record.Timestamp = time.Now().UTC().Format("2006-01-02")
	}

	if err := s.records.AddRecord(ctx, record); err != nil {
		return fmt.Errorf("failed to store symptom record: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"patient_id": record.PatientID,
		"symptoms":   len(record.Symptoms),
		"location":   record.Location,
	}).Info("Symptom record added")
	return nil
}

// ListSymptomRecords returns all intake records
func (s *Service) ListSymptomRecords(ctx context.Context) ([]*types.SymptomRecord, error) {
	return s.records.ListRecords(ctx)
}

// AnalyzeRisk runs the risk analyzer over the given records, or over
// all stored records when none are supplied. The analyzer boundary
// guarantees a report comes back even when the external service is
// unreachable; the only error paths here are repository failures.
func (s *Service) AnalyzeRisk(ctx context.Context, records []*types.SymptomRecord) (*types.EpidemicReport, error) {
	if len(records) == 0 {
		stored, err := s.records.ListRecords(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load symptom records: %w", err)
		}
		records = stored
	}

	report := s.analyzer.Analyze(ctx, records)

	s.logger.WithFields(map[string]interface{}{
		"risk_level": report.RiskLevel,
		"outbreaks":  report.DetectedOutbreaks,
		"records":    len(records),
	}).Info("Risk analysis completed")
	return report, nil
}

// Start starts the HTTP server on the given address and blocks until
// the server stops
func (s *Service) Start(addr string) error {
	router := mux.NewRouter()
	s.setupRoutes(router)

	var handler http.Handler = router
	if s.middleware != nil {
		handler = s.middleware.HTTPMiddleware(router)
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.WithField("addr", addr).Info("Epidemic service starting")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the HTTP server
func (s *Service) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Epidemic service stopping")
	return s.server.Shutdown(ctx)
}
