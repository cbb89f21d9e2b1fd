package epidemic

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nyumuharon/hospital-system/pkg/types"
)

// analysisRequest optionally carries ad-hoc records to analyze instead
// of the stored intake database
type analysisRequest struct {
	Records []*types.SymptomRecord `json:"records"`
}

// setupRoutes configures HTTP routes for the epidemic service
func (s *Service) setupRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/symptoms", s.listSymptomsHandler).Methods("GET")
	api.HandleFunc("/symptoms", s.addSymptomHandler).Methods("POST")
	api.HandleFunc("/analysis", s.analyzeHandler).Methods("POST")

	if s.health != nil {
		router.HandleFunc("/health", s.health.HTTPHandler()).Methods("GET")
	} else {
		router.HandleFunc("/health", s.basicHealthHandler).Methods("GET")
	}
	if s.metrics != nil {
		router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}

	s.logger.Info("Epidemic service routes configured")
}

// listSymptomsHandler returns all intake records
func (s *Service) listSymptomsHandler(w http.ResponseWriter, r *http.Request) {
	records, err := s.ListSymptomRecords(r.Context())
	if err != nil {
		s.writeDomainError(w, "Failed to list symptom records", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}

// addSymptomHandler stores a new intake record
func (s *Service) addSymptomHandler(w http.ResponseWriter, r *http.Request) {
	var record types.SymptomRecord
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := s.AddSymptomRecord(r.Context(), &record); err != nil {
		s.writeDomainError(w, "Failed to add symptom record", err)
		return
	}

	s.writeJSONResponse(w, http.StatusCreated, &record)
}

// analyzeHandler runs the risk analysis. The body is optional; without
// one the stored intake records are analyzed.
func (s *Service) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	var req analysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	report, err := s.AnalyzeRisk(r.Context(), req.Records)
	if err != nil {
		s.writeDomainError(w, "Failed to run analysis", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, report)
}

// basicHealthHandler is used when no health manager is attached
func (s *Service) basicHealthHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// writeDomainError maps a service error to its HTTP representation
func (s *Service) writeDomainError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch types.TypeOf(err) {
	case types.ErrorTypeValidation:
		status = http.StatusBadRequest
	case types.ErrorTypeNotFound:
		status = http.StatusNotFound
	case types.ErrorTypeConflict:
		status = http.StatusConflict
	}

	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}

	var he *types.HospitalError
	if errors.As(err, &he) {
		response["code"] = he.Code
		response["details"] = he.Message
	} else if err != nil {
		response["details"] = err.Error()
	}

	if status >= 500 {
		s.logger.WithError(err).Error(message)
	} else {
		s.logger.WithError(err).Warn(message)
	}

	s.writeJSONResponse(w, status, response)
}

// writeJSONResponse writes a JSON response
func (s *Service) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Errorf("Failed to encode JSON response: %v", err)
	}
}

// writeErrorResponse writes an error response
func (s *Service) writeErrorResponse(w http.ResponseWriter, statusCode int, message string, err error) {
	s.logger.WithError(err).Warn(message)

	response := map[string]interface{}{
		"error":  message,
		"status": statusCode,
	}

	if err != nil {
		response["details"] = err.Error()
	}

	s.writeJSONResponse(w, statusCode, response)
}
