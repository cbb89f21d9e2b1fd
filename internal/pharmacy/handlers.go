package pharmacy

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/nyumuharon/hospital-system/pkg/types"
)

// setupRoutes configures HTTP routes for the pharmacy service
func (s *Service) setupRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/v1").Subrouter()

	// Prescription routes; the literal paths must be registered before
	// the {id} routes so mux does not swallow them.
	api.HandleFunc("/prescriptions/pending", s.listPendingHandler).Methods("GET")
	api.HandleFunc("/prescriptions/dispensed", s.listDispensedHandler).Methods("GET")
	api.HandleFunc("/prescriptions", s.createPrescriptionHandler).Methods("POST")
	api.HandleFunc("/prescriptions/{id}", s.getPrescriptionHandler).Methods("GET")
	api.HandleFunc("/prescriptions/{id}/can-dispense", s.canDispenseHandler).Methods("GET")
	api.HandleFunc("/prescriptions/{id}/dispense", s.dispenseHandler).Methods("POST")

	// Catalog routes
	api.HandleFunc("/drugs/low-stock", s.listLowStockHandler).Methods("GET")
	api.HandleFunc("/drugs", s.listDrugsHandler).Methods("GET")
	api.HandleFunc("/drugs/{id}", s.getDrugHandler).Methods("GET")
	api.HandleFunc("/drugs/{id}/restock", s.restockHandler).Methods("POST")

	// Health and metrics
	if s.health != nil {
		router.HandleFunc("/health", s.health.HTTPHandler()).Methods("GET")
	} else {
		router.HandleFunc("/health", s.basicHealthHandler).Methods("GET")
	}
	if s.metrics != nil {
		router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}

	s.logger.Info("Pharmacy service routes configured")
}

// createPrescriptionHandler handles prescription creation
func (s *Service) createPrescriptionHandler(w http.ResponseWriter, r *http.Request) {
	var req types.PrescriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	prescription, err := s.CreatePrescription(r.Context(), &req)
	if err != nil {
		s.writeDomainError(w, "Failed to create prescription", err)
		return
	}

	s.writeJSONResponse(w, http.StatusCreated, prescription)
}

// getPrescriptionHandler handles prescription retrieval
func (s *Service) getPrescriptionHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	prescription, err := s.GetPrescription(r.Context(), vars["id"])
	if err != nil {
		s.writeDomainError(w, "Failed to get prescription", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, prescription)
}

// canDispenseHandler reports whether a prescription could currently be
// dispensed, without mutating anything
func (s *Service) canDispenseHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	ok, err := s.CanDispense(r.Context(), vars["id"])
	if err != nil {
		s.writeDomainError(w, "Failed to check prescription", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"prescription_id": vars["id"],
		"can_dispense":    ok,
	})
}

// dispenseHandler handles the atomic dispense transition
func (s *Service) dispenseHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	prescription, err := s.DispensePrescription(r.Context(), vars["id"])
	if err != nil {
		s.writeDomainError(w, "Failed to dispense prescription", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, prescription)
}

// listPendingHandler returns the pending queue oldest first
func (s *Service) listPendingHandler(w http.ResponseWriter, r *http.Request) {
	pending, err := s.ListPendingPrescriptions(r.Context())
	if err != nil {
		s.writeDomainError(w, "Failed to list pending prescriptions", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"prescriptions": pending,
		"count":         len(pending),
	})
}

// listDispensedHandler returns recently dispensed prescriptions
func (s *Service) listDispensedHandler(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			s.writeErrorResponse(w, http.StatusBadRequest, "Invalid limit parameter", err)
			return
		}
		limit = parsed
	}

	dispensed, err := s.ListDispensedPrescriptions(r.Context(), limit)
	if err != nil {
		s.writeDomainError(w, "Failed to list dispensed prescriptions", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"prescriptions": dispensed,
		"count":         len(dispensed),
	})
}

// listDrugsHandler returns the full catalog
func (s *Service) listDrugsHandler(w http.ResponseWriter, r *http.Request) {
	drugs, err := s.ListDrugs(r.Context())
	if err != nil {
		s.writeDomainError(w, "Failed to list drugs", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"drugs": drugs,
		"count": len(drugs),
	})
}

// getDrugHandler returns a single catalog drug
func (s *Service) getDrugHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	drug, err := s.GetDrug(r.Context(), vars["id"])
	if err != nil {
		s.writeDomainError(w, "Failed to get drug", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, drug)
}

// listLowStockHandler returns drugs below their reorder threshold
func (s *Service) listLowStockHandler(w http.ResponseWriter, r *http.Request) {
	drugs, err := s.ListLowStockDrugs(r.Context())
	if err != nil {
		s.writeDomainError(w, "Failed to list low stock drugs", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"drugs": drugs,
		"count": len(drugs),
	})
}

// restockHandler adds stock to a catalog drug
func (s *Service) restockHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req types.RestockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	drug, err := s.RestockDrug(r.Context(), vars["id"], req.Quantity)
	if err != nil {
		s.writeDomainError(w, "Failed to restock drug", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, drug)
}

// basicHealthHandler is used when no health manager is attached
func (s *Service) basicHealthHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// statusFromError maps the error taxonomy onto HTTP status codes
func statusFromError(err error) int {
	switch types.TypeOf(err) {
	case types.ErrorTypeValidation:
		return http.StatusBadRequest
	case types.ErrorTypeNotFound:
		return http.StatusNotFound
	case types.ErrorTypeConflict, types.ErrorTypeInsufficientStock:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError maps a service error to its HTTP representation
func (s *Service) writeDomainError(w http.ResponseWriter, message string, err error) {
	status := statusFromError(err)

	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}

	var he *types.HospitalError
	if errors.As(err, &he) {
		response["code"] = he.Code
		response["details"] = he.Message
		if len(he.Details) > 0 {
			response["context"] = he.Details
		}
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
