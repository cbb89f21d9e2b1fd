package interfaces

import (
	"context"

	"github.com/nyumuharon/hospital-system/pkg/types"
)

// PharmacyService defines the interface for the drug catalog and
// prescription workflow
type PharmacyService interface {
	// Catalog operations
	GetDrug(ctx context.Context, drugID string) (*types.Drug, error)
	ListDrugs(ctx context.Context) ([]*types.Drug, error)
	ListLowStockDrugs(ctx context.Context) ([]*types.Drug, error)
	HasSufficientStock(ctx context.Context, drugID string, quantity int) (bool, error)
	RestockDrug(ctx context.Context, drugID string, quantity int) (*types.Drug, error)

	// Prescription workflow
	CreatePrescription(ctx context.Context, req *types.PrescriptionRequest) (*types.Prescription, error)
	GetPrescription(ctx context.Context, prescriptionID string) (*types.Prescription, error)
	CanDispense(ctx context.Context, prescriptionID string) (bool, error)
	DispensePrescription(ctx context.Context, prescriptionID string) (*types.Prescription, error)
	ListPendingPrescriptions(ctx context.Context) ([]*types.Prescription, error)
	ListDispensedPrescriptions(ctx context.Context, limit int) ([]*types.Prescription, error)

	// Service management
	Start(addr string) error
	Stop() error
}

// CatalogRepository defines the interface for drug catalog persistence
type CatalogRepository interface {
	CreateDrug(ctx context.Context, drug *types.Drug) error
	GetDrugByID(ctx context.Context, id string) (*types.Drug, error)
	ListDrugs(ctx context.Context) ([]*types.Drug, error)
	ListLowStock(ctx context.Context) ([]*types.Drug, error)

	// DecrementStock rejects any decrement that would drive stock below
	// zero. Both mutations must be called inside a TxManager transaction
	// when combined with other writes.
	DecrementStock(ctx context.Context, id string, quantity int) error
	IncrementStock(ctx context.Context, id string, quantity int) error
}

// PrescriptionRepository defines the interface for prescription persistence
type PrescriptionRepository interface {
	CreatePrescription(ctx context.Context, p *types.Prescription) error
	GetPrescriptionByID(ctx context.Context, id string) (*types.Prescription, error)
	UpdateStatus(ctx context.Context, id string, status types.PrescriptionStatus) error
	ListPending(ctx context.Context) ([]*types.Prescription, error)
	ListDispensed(ctx context.Context, limit int) ([]*types.Prescription, error)
}

// TxManager runs a function inside a single atomic transaction spanning
// the catalog and prescription repositories. If fn returns an error the
// transaction is rolled back and no partial writes are visible.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
