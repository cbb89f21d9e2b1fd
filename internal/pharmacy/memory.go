package pharmacy

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nyumuharon/hospital-system/pkg/types"
)

// txKey marks a context as running inside a MemoryStore transaction so
// that repository methods skip their own locking.
type txKey struct{}

func inTx(ctx context.Context) bool {
	return ctx.Value(txKey{}) != nil
}

// MemoryStore is an in-memory implementation of the catalog and
// prescription repositories. A single RWMutex guards both collections,
// which makes the store one consistency boundary: a dispense holds the
// write lock for the whole re-validate/decrement/flip sequence.
type MemoryStore struct {
	mu            sync.RWMutex
	drugs         map[string]*types.Drug
	prescriptions map[string]*types.Prescription
	order         []string // prescription ids in creation order
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		drugs:         make(map[string]*types.Drug),
		prescriptions: make(map[string]*types.Prescription),
	}
}

// WithTransaction runs fn while holding the store's write lock. If fn
// returns an error, all drug and prescription state is restored to its
// pre-transaction snapshot, so partial writes are never observable.
func (s *MemoryStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	drugSnap := make(map[string]*types.Drug, len(s.drugs))
	for id, d := range s.drugs {
		copied := *d
		drugSnap[id] = &copied
	}
	rxSnap := make(map[string]*types.Prescription, len(s.prescriptions))
	for id, p := range s.prescriptions {
		copied := *p
		copied.LineItems = append([]types.LineItem(nil), p.LineItems...)
		rxSnap[id] = &copied
	}
	orderSnap := append([]string(nil), s.order...)

	if err := fn(context.WithValue(ctx, txKey{}, struct{}{})); err != nil {
		s.drugs = drugSnap
		s.prescriptions = rxSnap
		s.order = orderSnap
		return err
	}
	return nil
}

func (s *MemoryStore) rlock(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

func (s *MemoryStore) wlock(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// CreateDrug adds a drug to the catalog
func (s *MemoryStore) CreateDrug(ctx context.Context, drug *types.Drug) error {
	defer s.wlock(ctx)()

	if _, exists := s.drugs[drug.ID]; exists {
		return types.NewConflictError(types.ErrCodeInvalidInput, "drug already exists: "+drug.ID)
	}

	copied := *drug
	s.drugs[drug.ID] = &copied
	return nil
}

// GetDrugByID returns a copy of the drug with the given id
func (s *MemoryStore) GetDrugByID(ctx context.Context, id string) (*types.Drug, error) {
	defer s.rlock(ctx)()

	drug, ok := s.drugs[id]
	if !ok {
		return nil, types.NewNotFoundError(types.ErrCodeDrugNotFound, "drug not found: "+id)
	}

	copied := *drug
	return &copied, nil
}

// ListDrugs returns all catalog drugs sorted by id
func (s *MemoryStore) ListDrugs(ctx context.Context) ([]*types.Drug, error) {
	defer s.rlock(ctx)()

	drugs := make([]*types.Drug, 0, len(s.drugs))
	for _, d := range s.drugs {
		copied := *d
		drugs = append(drugs, &copied)
	}

	sort.Slice(drugs, func(i, j int) bool { return drugs[i].ID < drugs[j].ID })
	return drugs, nil
}

// ListLowStock returns drugs strictly below their reorder threshold,
// most depleted first
func (s *MemoryStore) ListLowStock(ctx context.Context) ([]*types.Drug, error) {
	defer s.rlock(ctx)()

	var low []*types.Drug
	for _, d := range s.drugs {
		if d.IsLowStock() {
			copied := *d
			low = append(low, &copied)
		}
	}

	sort.Slice(low, func(i, j int) bool {
		if low[i].StockQuantity != low[j].StockQuantity {
			return low[i].StockQuantity < low[j].StockQuantity
		}
		return low[i].ID < low[j].ID
	})
	return low, nil
}

// DecrementStock subtracts quantity from a drug's stock. A decrement
// that would drive stock below zero is rejected and leaves the drug
// untouched.
func (s *MemoryStore) DecrementStock(ctx context.Context, id string, quantity int) error {
	defer s.wlock(ctx)()

	drug, ok := s.drugs[id]
	if !ok {
		return types.NewNotFoundError(types.ErrCodeDrugNotFound, "drug not found: "+id)
	}

	if drug.StockQuantity < quantity {
		return types.NewInsufficientStockError(types.ErrCodeInsufficientStock,
			"insufficient stock for drug "+id,
			map[string]interface{}{
				"drug_id":   id,
				"requested": quantity,
				"available": drug.StockQuantity,
			})
	}

	drug.StockQuantity -= quantity
	drug.UpdatedAt = time.Now().UTC()
	return nil
}

// IncrementStock adds quantity to a drug's stock
func (s *MemoryStore) IncrementStock(ctx context.Context, id string, quantity int) error {
	defer s.wlock(ctx)()

	drug, ok := s.drugs[id]
	if !ok {
		return types.NewNotFoundError(types.ErrCodeDrugNotFound, "drug not found: "+id)
	}

	drug.StockQuantity += quantity
	drug.UpdatedAt = time.Now().UTC()
	return nil
}

// CreatePrescription stores a new prescription
func (s *MemoryStore) CreatePrescription(ctx context.Context, p *types.Prescription) error {
	defer s.wlock(ctx)()

	if _, exists := s.prescriptions[p.ID]; exists {
		return types.NewConflictError(types.ErrCodeInvalidInput, "prescription already exists: "+p.ID)
	}

	copied := *p
	copied.LineItems = append([]types.LineItem(nil), p.LineItems...)
	s.prescriptions[p.ID] = &copied
	s.order = append(s.order, p.ID)
	return nil
}

// GetPrescriptionByID returns a copy of the prescription with the given id
func (s *MemoryStore) GetPrescriptionByID(ctx context.Context, id string) (*types.Prescription, error) {
	defer s.rlock(ctx)()

	p, ok := s.prescriptions[id]
	if !ok {
		return nil, types.NewNotFoundError(types.ErrCodePrescriptionNotFound, "prescription not found: "+id)
	}

	copied := *p
	copied.LineItems = append([]types.LineItem(nil), p.LineItems...)
	return &copied, nil
}

// UpdateStatus sets the status of a prescription. Moving to DISPENSED
// stamps the dispense time.
func (s *MemoryStore) UpdateStatus(ctx context.Context, id string, status types.PrescriptionStatus) error {
	defer s.wlock(ctx)()

	p, ok := s.prescriptions[id]
	if !ok {
		return types.NewNotFoundError(types.ErrCodePrescriptionNotFound, "prescription not found: "+id)
	}

	p.Status = status
	if status == types.StatusDispensed {
		now := time.Now().UTC()
		p.DispensedAt = &now
	}
	return nil
}

// ListPending returns pending prescriptions oldest first
func (s *MemoryStore) ListPending(ctx context.Context) ([]*types.Prescription, error) {
	defer s.rlock(ctx)()

	var pending []*types.Prescription
	for _, id := range s.order {
		p := s.prescriptions[id]
		if p.Status != types.StatusPending {
			continue
		}
		copied := *p
		copied.LineItems = append([]types.LineItem(nil), p.LineItems...)
		pending = append(pending, &copied)
	}
	return pending, nil
}

// ListDispensed returns dispensed prescriptions most recent first,
// bounded by limit (limit <= 0 means no bound)
func (s *MemoryStore) ListDispensed(ctx context.Context, limit int) ([]*types.Prescription, error) {
	defer s.rlock(ctx)()

	var dispensed []*types.Prescription
	for _, id := range s.order {
		p := s.prescriptions[id]
		if p.Status != types.StatusDispensed {
			continue
		}
		copied := *p
		copied.LineItems = append([]types.LineItem(nil), p.LineItems...)
		dispensed = append(dispensed, &copied)
	}

	sort.SliceStable(dispensed, func(i, j int) bool {
		ti, tj := dispensed[i].DispensedAt, dispensed[j].DispensedAt
		if ti == nil || tj == nil {
			return tj == nil && ti != nil
		}
		return ti.After(*tj)
	})

	if limit > 0 && len(dispensed) > limit {
		dispensed = dispensed[:limit]
	}
	return dispensed, nil
}
