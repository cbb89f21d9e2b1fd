package pharmacy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyumuharon/hospital-system/pkg/logger"
	"github.com/nyumuharon/hospital-system/pkg/types"
)

func setupTestService(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()

	store := NewMemoryStore()
	require.NoError(t, SeedCatalog(context.Background(), store))

	log := logger.New("pharmacy-test", "fatal")
	return NewService(store, store, store, log, nil), store
}

func singleItemRequest(drugID string, quantity int) *types.PrescriptionRequest {
	return &types.PrescriptionRequest{
		PatientID:      "p1",
		PatientName:    "John Doe",
		PrescriberID:   "u1",
		PrescriberName: "Dr. Sarah Bennett",
		Items: []types.PrescriptionRequestItem{
			{DrugID: drugID, Quantity: quantity},
		},
	}
}

func TestCreatePrescription(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	p, err := svc.CreatePrescription(ctx, singleItemRequest("d1", 3))
	require.NoError(t, err)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, types.StatusPending, p.Status)
	assert.Nil(t, p.DispensedAt)
	require.Len(t, p.LineItems, 1)
	assert.Equal(t, "Amoxicillin 500mg", p.LineItems[0].DrugName)
	assert.InDelta(t, 3*15.50, p.TotalCost, 1e-9)

	// Creation must not touch stock
	drug, err := svc.GetDrug(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 150, drug.StockQuantity)
}

func TestCreatePrescriptionValidation(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  *types.PrescriptionRequest
	}{
		{"nil request", nil},
		{"missing patient", &types.PrescriptionRequest{
			PrescriberID: "u1",
			Items:        []types.PrescriptionRequestItem{{DrugID: "d1", Quantity: 1}},
		}},
		{"missing prescriber", &types.PrescriptionRequest{
			PatientID: "p1",
			Items:     []types.PrescriptionRequestItem{{DrugID: "d1", Quantity: 1}},
		}},
		{"no items", &types.PrescriptionRequest{
			PatientID: "p1", PrescriberID: "u1",
		}},
		{"zero quantity", &types.PrescriptionRequest{
			PatientID: "p1", PrescriberID: "u1",
			Items: []types.PrescriptionRequestItem{{DrugID: "d1", Quantity: 0}},
		}},
		{"negative quantity", &types.PrescriptionRequest{
			PatientID: "p1", PrescriberID: "u1",
			Items: []types.PrescriptionRequestItem{{DrugID: "d1", Quantity: -2}},
		}},
		{"duplicate drug", &types.PrescriptionRequest{
			PatientID: "p1", PrescriberID: "u1",
			Items: []types.PrescriptionRequestItem{
				{DrugID: "d1", Quantity: 1},
				{DrugID: "d1", Quantity: 2},
			},
		}},
		{"unknown drug", singleItemRequest("d99", 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreatePrescription(ctx, tt.req)
			require.Error(t, err)
			assert.True(t, types.IsValidation(err))
		})
	}
}

func TestCostIsSnapshottedAtCreation(t *testing.T) {
	svc, store := setupTestService(t)
	ctx := context.Background()

	p, err := svc.CreatePrescription(ctx, singleItemRequest("d3", 2))
	require.NoError(t, err)
	assert.InDelta(t, 2*12.25, p.TotalCost, 1e-9)

	// A later price change must not affect the stored prescription
	store.mu.Lock()
	store.drugs["d3"].UnitPrice = 99.99
	store.mu.Unlock()

	got, err := svc.GetPrescription(ctx, p.ID)
	require.NoError(t, err)
	assert.InDelta(t, 2*12.25, got.TotalCost, 1e-9)
}

func TestDispenseSuccess(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	// d2 starts at 42 with threshold 100, already low stock
	p, err := svc.CreatePrescription(ctx, singleItemRequest("d2", 10))
	require.NoError(t, err)

	dispensed, err := svc.DispensePrescription(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusDispensed, dispensed.Status)
	require.NotNil(t, dispensed.DispensedAt)

	drug, err := svc.GetDrug(ctx, "d2")
	require.NoError(t, err)
	assert.Equal(t, 32, drug.StockQuantity)
	assert.True(t, drug.IsLowStock())
}

func TestDispenseInsufficientStock(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	// d5 has only 10 units
	p, err := svc.CreatePrescription(ctx, singleItemRequest("d5", 15))
	require.NoError(t, err)

	_, err = svc.DispensePrescription(ctx, p.ID)
	require.Error(t, err)
	assert.True(t, types.IsInsufficientStock(err))

	// Prescription stays PENDING, stock untouched
	got, err := svc.GetPrescription(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, got.Status)

	drug, err := svc.GetDrug(ctx, "d5")
	require.NoError(t, err)
	assert.Equal(t, 10, drug.StockQuantity)
}

func TestDispenseAllOrNothing(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	// First item is coverable, second is not: neither may be applied
	req := &types.PrescriptionRequest{
		PatientID:    "p2",
		PrescriberID: "u1",
		Items: []types.PrescriptionRequestItem{
			{DrugID: "d1", Quantity: 5},
			{DrugID: "d5", Quantity: 50},
		},
	}
	p, err := svc.CreatePrescription(ctx, req)
	require.NoError(t, err)

	_, err = svc.DispensePrescription(ctx, p.ID)
	require.Error(t, err)
	assert.True(t, types.IsInsufficientStock(err))

	d1, err := svc.GetDrug(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 150, d1.StockQuantity)

	d5, err := svc.GetDrug(ctx, "d5")
	require.NoError(t, err)
	assert.Equal(t, 10, d5.StockQuantity)

	got, err := svc.GetPrescription(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, got.Status)
}

func TestDispenseTwiceIsRejected(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	p, err := svc.CreatePrescription(ctx, singleItemRequest("d1", 2))
	require.NoError(t, err)

	_, err = svc.DispensePrescription(ctx, p.ID)
	require.NoError(t, err)

	_, err = svc.DispensePrescription(ctx, p.ID)
	require.Error(t, err)
	assert.True(t, types.IsConflict(err))

	// Second attempt must not decrement again
	drug, err := svc.GetDrug(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 148, drug.StockQuantity)
}

func TestDispenseUnknownPrescription(t *testing.T) {
	svc, _ := setupTestService(t)

	_, err := svc.DispensePrescription(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, types.IsNotFound(err))
}

func TestRestockEnablesRetry(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	p, err := svc.CreatePrescription(ctx, singleItemRequest("d5", 15))
	require.NoError(t, err)

	_, err = svc.DispensePrescription(ctx, p.ID)
	require.Error(t, err)

	drug, err := svc.RestockDrug(ctx, "d5", 40)
	require.NoError(t, err)
	assert.Equal(t, 50, drug.StockQuantity)

	dispensed, err := svc.DispensePrescription(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusDispensed, dispensed.Status)

	drug, err = svc.GetDrug(ctx, "d5")
	require.NoError(t, err)
	assert.Equal(t, 35, drug.StockQuantity)
}

func TestRestockValidation(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	_, err := svc.RestockDrug(ctx, "d1", 0)
	require.Error(t, err)
	assert.True(t, types.IsValidation(err))

	_, err = svc.RestockDrug(ctx, "d1", -5)
	require.Error(t, err)
	assert.True(t, types.IsValidation(err))

	_, err = svc.RestockDrug(ctx, "d99", 10)
	require.Error(t, err)
	assert.True(t, types.IsNotFound(err))
}

func TestCanDispense(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	ok, err := svc.CanDispense(ctx, "missing")
	require.Error(t, err)
	assert.False(t, ok)

	good, err := svc.CreatePrescription(ctx, singleItemRequest("d1", 5))
	require.NoError(t, err)
	ok, err = svc.CanDispense(ctx, good.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	short, err := svc.CreatePrescription(ctx, singleItemRequest("d5", 15))
	require.NoError(t, err)
	ok, err = svc.CanDispense(ctx, short.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	// Once dispensed it is no longer dispensable
	_, err = svc.DispensePrescription(ctx, good.ID)
	require.NoError(t, err)
	ok, err = svc.CanDispense(ctx, good.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasSufficientStockFailsClosed(t *testing.T) {
	svc, _ := setupTestService(t)

	ok, err := svc.HasSufficientStock(context.Background(), "d99", 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPendingQueueIsFIFO(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	first, err := svc.CreatePrescription(ctx, singleItemRequest("d1", 1))
	require.NoError(t, err)
	second, err := svc.CreatePrescription(ctx, singleItemRequest("d3", 1))
	require.NoError(t, err)
	third, err := svc.CreatePrescription(ctx, singleItemRequest("d6", 1))
	require.NoError(t, err)

	pending, err := svc.ListPendingPrescriptions(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, first.ID, pending[0].ID)
	assert.Equal(t, second.ID, pending[1].ID)
	assert.Equal(t, third.ID, pending[2].ID)

	// Dispensing removes from the pending queue
	_, err = svc.DispensePrescription(ctx, second.ID)
	require.NoError(t, err)

	pending, err = svc.ListPendingPrescriptions(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID)
	assert.Equal(t, third.ID, pending[1].ID)
}

func TestListDispensedLimit(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	var last string
	for i := 0; i < 3; i++ {
		p, err := svc.CreatePrescription(ctx, singleItemRequest("d6", 1))
		require.NoError(t, err)
		_, err = svc.DispensePrescription(ctx, p.ID)
		require.NoError(t, err)
		last = p.ID
	}

	dispensed, err := svc.ListDispensedPrescriptions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, dispensed, 2)
	assert.Equal(t, last, dispensed[0].ID)
}

func TestListLowStockDrugs(t *testing.T) {
	svc, _ := setupTestService(t)

	low, err := svc.ListLowStockDrugs(context.Background())
	require.NoError(t, err)

	// Seed data has exactly d2 (42/100) and d5 (10/20) below threshold,
	// ordered most depleted first
	require.Len(t, low, 2)
	assert.Equal(t, "d5", low[0].ID)
	assert.Equal(t, "d2", low[1].ID)
}
