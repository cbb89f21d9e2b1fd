package pharmacy

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/nyumuharon/hospital-system/pkg/interfaces"
	"github.com/nyumuharon/hospital-system/pkg/logger"
	"github.com/nyumuharon/hospital-system/pkg/monitoring"
	"github.com/nyumuharon/hospital-system/pkg/types"
)

// Service implements the drug catalog and prescription workflow
type Service struct {
	catalog       interfaces.CatalogRepository
	prescriptions interfaces.PrescriptionRepository
	tx            interfaces.TxManager
	logger        *logger.Logger
	metrics       *monitoring.MetricsCollector
	health        *monitoring.HealthManager
	middleware    *monitoring.MonitoringMiddleware
	server        *http.Server
}

// NewService creates a new pharmacy service
func NewService(
	catalog interfaces.CatalogRepository,
	prescriptions interfaces.PrescriptionRepository,
	tx interfaces.TxManager,
	log *logger.Logger,
	metrics *monitoring.MetricsCollector,
) *Service {
	return &Service{
		catalog:       catalog,
		prescriptions: prescriptions,
		tx:            tx,
		logger:        log,
		metrics:       metrics,
	}
}

// GetDrug returns the catalog drug with the given id
func (s *Service) GetDrug(ctx context.Context, drugID string) (*types.Drug, error) {
	if strings.TrimSpace(drugID) == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "drug id is required", nil)
	}
	return s.catalog.GetDrugByID(ctx, drugID)
}

// ListDrugs returns the full catalog
func (s *Service) ListDrugs(ctx context.Context) ([]*types.Drug, error) {
	return s.catalog.ListDrugs(ctx)
}

// ListLowStockDrugs returns drugs below their reorder threshold
func (s *Service) ListLowStockDrugs(ctx context.Context) ([]*types.Drug, error) {
	low, err := s.catalog.ListLowStock(ctx)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordLowStockCount(len(low))
	}
	return low, nil
}

// HasSufficientStock reports whether the drug exists and has at least
// quantity units in stock. Unknown drug ids report false.
func (s *Service) HasSufficientStock(ctx context.Context, drugID string, quantity int) (bool, error) {
	drug, err := s.catalog.GetDrugByID(ctx, drugID)
	if err != nil {
		if types.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return drug.StockQuantity >= quantity, nil
}

// RestockDrug adds quantity units to a drug's stock and returns the
// updated drug
func (s *Service) RestockDrug(ctx context.Context, drugID string, quantity int) (*types.Drug, error) {
	if strings.TrimSpace(drugID) == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "drug id is required", nil)
	}
	if quantity <= 0 {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "restock quantity must be positive",
			map[string]interface{}{"quantity": quantity})
	}

	if err := s.catalog.IncrementStock(ctx, drugID, quantity); err != nil {
		return nil, err
	}

	drug, err := s.catalog.GetDrugByID(ctx, drugID)
	if err != nil {
		return nil, err
	}

	s.logger.StockChange(ctx, drugID, quantity, drug.StockQuantity, drug.IsLowStock())
	if s.metrics != nil {
		s.metrics.RecordStockLevel(drugID, drug.StockQuantity)
	}
	return drug, nil
}

// CreatePrescription validates the request, snapshots drug names and
// the total cost from current catalog prices, and stores a PENDING
// prescription. Stock is not touched at creation time.
func (s *Service) CreatePrescription(ctx context.Context, req *types.PrescriptionRequest) (*types.Prescription, error) {
	if err := validatePrescriptionRequest(req); err != nil {
		return nil, err
	}

	lineItems := make([]types.LineItem, 0, len(req.Items))
	var totalCost float64
	for _, item := range req.Items {
		drug, err := s.catalog.GetDrugByID(ctx, item.DrugID)
		if err != nil {
			if types.IsNotFound(err) {
				return nil, types.NewValidationError(types.ErrCodeInvalidInput,
					"unknown drug id: "+item.DrugID,
					map[string]interface{}{"drug_id": item.DrugID})
			}
			return nil, err
		}
		lineItems = append(lineItems, types.LineItem{
			DrugID:   drug.ID,
			DrugName: drug.Name,
			Quantity: item.Quantity,
		})
		totalCost += drug.UnitPrice * float64(item.Quantity)
	}

	prescription := &types.Prescription{
		ID:             uuid.New().String(),
		PatientID:      req.PatientID,
		PatientName:    req.PatientName,
		PrescriberID:   req.PrescriberID,
		PrescriberName: req.PrescriberName,
		LineItems:      lineItems,
		Status:         types.StatusPending,
		TotalCost:      totalCost,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.prescriptions.CreatePrescription(ctx, prescription); err != nil {
		return nil, fmt.Errorf("failed to store prescription: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"prescription_id": prescription.ID,
		"patient_id":      prescription.PatientID,
		"items":           len(lineItems),
		"total_cost":      totalCost,
	}).Info("Prescription created")

	if s.metrics != nil {
		s.metrics.RecordPrescriptionCreated()
	}
	return prescription, nil
}

// GetPrescription returns the prescription with the given id
func (s *Service) GetPrescription(ctx context.Context, prescriptionID string) (*types.Prescription, error) {
	if strings.TrimSpace(prescriptionID) == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "prescription id is required", nil)
	}
	return s.prescriptions.GetPrescriptionByID(ctx, prescriptionID)
}

// CanDispense reports whether the prescription is PENDING and every
// line item is covered by current stock. It never mutates state.
func (s *Service) CanDispense(ctx context.Context, prescriptionID string) (bool, error) {
	prescription, err := s.prescriptions.GetPrescriptionByID(ctx, prescriptionID)
	if err != nil {
		return false, err
	}
	if prescription.Status != types.StatusPending {
		return false, nil
	}

	for _, item := range prescription.LineItems {
		ok, err := s.HasSufficientStock(ctx, item.DrugID, item.Quantity)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// DispensePrescription atomically re-validates every line item against
// current stock, applies all decrements, and flips the status to
// DISPENSED. Any failure rolls the whole transaction back: stock is
// untouched and the prescription stays PENDING. A prescription that is
// already DISPENSED is rejected with AlreadyDispensed and no stock
// change.
func (s *Service) DispensePrescription(ctx context.Context, prescriptionID string) (*types.Prescription, error) {
	if strings.TrimSpace(prescriptionID) == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "prescription id is required", nil)
	}

	var dispensed *types.Prescription
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		prescription, err := s.prescriptions.GetPrescriptionByID(ctx, prescriptionID)
		if err != nil {
			return err
		}

		if prescription.Status == types.StatusDispensed {
			return types.NewConflictError(types.ErrCodeAlreadyDispensed,
				"prescription already dispensed: "+prescriptionID)
		}

		// Re-validate before any decrement so a failing item is
		// reported without partial stock mutation even on backends
		// without snapshot rollback.
		for _, item := range prescription.LineItems {
			drug, err := s.catalog.GetDrugByID(ctx, item.DrugID)
			if err != nil {
				return err
			}
			if drug.StockQuantity < item.Quantity {
				return types.NewInsufficientStockError(types.ErrCodeInsufficientStock,
					"insufficient stock for drug "+item.DrugID,
					map[string]interface{}{
						"drug_id":   item.DrugID,
						"requested": item.Quantity,
						"available": drug.StockQuantity,
					})
			}
		}

		for _, item := range prescription.LineItems {
			if err := s.catalog.DecrementStock(ctx, item.DrugID, item.Quantity); err != nil {
				return err
			}
		}

		if err := s.prescriptions.UpdateStatus(ctx, prescriptionID, types.StatusDispensed); err != nil {
			return err
		}

		dispensed, err = s.prescriptions.GetPrescriptionByID(ctx, prescriptionID)
		return err
	})

	if err != nil {
		s.logger.Dispense(ctx, prescriptionID, false, string(types.TypeOf(err)), nil)
		if s.metrics != nil {
			s.metrics.RecordDispenseAttempt(dispenseOutcome(err))
		}
		return nil, err
	}

	s.logger.Dispense(ctx, prescriptionID, true, "dispensed", map[string]interface{}{
		"items": len(dispensed.LineItems),
	})
	if s.metrics != nil {
		s.metrics.RecordDispenseAttempt("dispensed")
		for _, item := range dispensed.LineItems {
			if drug, err := s.catalog.GetDrugByID(ctx, item.DrugID); err == nil {
				s.metrics.RecordStockLevel(drug.ID, drug.StockQuantity)
			}
		}
	}
	return dispensed, nil
}

func dispenseOutcome(err error) string {
	switch types.TypeOf(err) {
	case types.ErrorTypeInsufficientStock:
		return "insufficient_stock"
	case types.ErrorTypeConflict:
		return "already_dispensed"
	case types.ErrorTypeNotFound:
		return "not_found"
	default:
		return "error"
	}
}

// ListPendingPrescriptions returns the pending queue oldest first
func (s *Service) ListPendingPrescriptions(ctx context.Context) ([]*types.Prescription, error) {
	return s.prescriptions.ListPending(ctx)
}

// ListDispensedPrescriptions returns recently dispensed prescriptions,
// most recent first
func (s *Service) ListDispensedPrescriptions(ctx context.Context, limit int) ([]*types.Prescription, error) {
	return s.prescriptions.ListDispensed(ctx, limit)
}

func validatePrescriptionRequest(req *types.PrescriptionRequest) error {
	if req == nil {
		return types.NewValidationError(types.ErrCodeInvalidInput, "request body is required", nil)
	}
	if strings.TrimSpace(req.PatientID) == "" {
		return types.NewValidationError(types.ErrCodeInvalidInput, "patient id is required", nil)
	}
	if strings.TrimSpace(req.PrescriberID) == "" {
		return types.NewValidationError(types.ErrCodeInvalidInput, "prescriber id is required", nil)
	}
	if len(req.Items) == 0 {
		return types.NewValidationError(types.ErrCodeInvalidInput, "at least one line item is required", nil)
	}

	seen := make(map[string]bool, len(req.Items))
	for i, item := range req.Items {
		if strings.TrimSpace(item.DrugID) == "" {
			return types.NewValidationError(types.ErrCodeInvalidInput,
				fmt.Sprintf("item %d: drug id is required", i), nil)
		}
		if item.Quantity <= 0 {
			return types.NewValidationError(types.ErrCodeInvalidInput,
				fmt.Sprintf("item %d: quantity must be positive", i),
				map[string]interface{}{"drug_id": item.DrugID, "quantity": item.Quantity})
		}
		if seen[item.DrugID] {
			return types.NewValidationError(types.ErrCodeInvalidInput,
				"duplicate drug in prescription: "+item.DrugID, nil)
		}
		seen[item.DrugID] = true
	}
	return nil
}

// SetMonitoring attaches the health manager and HTTP monitoring
// middleware used when the server starts
func (s *Service) SetMonitoring(health *monitoring.HealthManager, middleware *monitoring.MonitoringMiddleware) {
	s.health = health
	s.middleware = middleware
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
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.WithField("addr", addr).Info("Pharmacy service starting")
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

	s.logger.Info("Pharmacy service stopping")
	return s.server.Shutdown(ctx)
}
