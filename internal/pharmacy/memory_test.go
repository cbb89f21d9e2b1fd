package pharmacy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyumuharon/hospital-system/pkg/types"
)

func newTestDrug(id string, stock, threshold int) *types.Drug {
	now := time.Now().UTC()
	return &types.Drug{
		ID:               id,
		Name:             "Drug " + id,
		UnitPrice:        1.0,
		StockQuantity:    stock,
		ReorderThreshold: threshold,
		ExpiryDate:       "2030-01-01",
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestDecrementStockNeverGoesNegative(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.CreateDrug(ctx, newTestDrug("a", 5, 10)))

	err := store.DecrementStock(ctx, "a", 6)
	require.Error(t, err)
	assert.True(t, types.IsInsufficientStock(err))

	drug, err := store.GetDrugByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 5, drug.StockQuantity)

	// Draining to exactly zero is allowed
	require.NoError(t, store.DecrementStock(ctx, "a", 5))
	drug, err = store.GetDrugByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 0, drug.StockQuantity)
}

func TestLowStockIsStrictlyBelowThreshold(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.CreateDrug(ctx, newTestDrug("at", 10, 10)))
	require.NoError(t, store.CreateDrug(ctx, newTestDrug("below", 9, 10)))
	require.NoError(t, store.CreateDrug(ctx, newTestDrug("above", 11, 10)))

	low, err := store.ListLowStock(ctx)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "below", low[0].ID)
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.CreateDrug(ctx, newTestDrug("a", 10, 5)))
	require.NoError(t, store.CreateDrug(ctx, newTestDrug("b", 10, 5)))

	boom := errors.New("boom")
	err := store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := store.DecrementStock(ctx, "a", 3); err != nil {
			return err
		}
		if err := store.DecrementStock(ctx, "b", 4); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	a, err := store.GetDrugByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 10, a.StockQuantity)

	b, err := store.GetDrugByID(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 10, b.StockQuantity)
}

func TestWithTransactionCommits(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.CreateDrug(ctx, newTestDrug("a", 10, 5)))

	err := store.WithTransaction(ctx, func(ctx context.Context) error {
		return store.DecrementStock(ctx, "a", 3)
	})
	require.NoError(t, err)

	a, err := store.GetDrugByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 7, a.StockQuantity)
}

func TestStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.CreateDrug(ctx, newTestDrug("a", 10, 5)))

	drug, err := store.GetDrugByID(ctx, "a")
	require.NoError(t, err)
	drug.StockQuantity = 999

	again, err := store.GetDrugByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 10, again.StockQuantity)
}

func TestUpdateStatusStampsDispensedAt(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	p := &types.Prescription{
		ID:        "rx1",
		PatientID: "p1",
		Status:    types.StatusPending,
		LineItems: []types.LineItem{{DrugID: "a", DrugName: "Drug a", Quantity: 1}},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreatePrescription(ctx, p))

	require.NoError(t, store.UpdateStatus(ctx, "rx1", types.StatusDispensed))

	got, err := store.GetPrescriptionByID(ctx, "rx1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusDispensed, got.Status)
	require.NotNil(t, got.DispensedAt)
}
