package pharmacy

import (
	"context"
	"time"

	"github.com/nyumuharon/hospital-system/pkg/interfaces"
	"github.com/nyumuharon/hospital-system/pkg/types"
)

// demoDrugs is the demo inventory loaded at startup when seeding is
// enabled. Stock levels are chosen so the low-stock and insufficient
// stock paths are reachable out of the box (d2 sits below threshold,
// d5 has almost nothing left).
var demoDrugs = []types.Drug{
	{ID: "d1", Name: "Amoxicillin 500mg", StockQuantity: 150, UnitPrice: 15.50, ReorderThreshold: 50, ExpiryDate: "2025-12-01"},
	{ID: "d2", Name: "Ibuprofen 400mg", StockQuantity: 42, UnitPrice: 8.00, ReorderThreshold: 100, ExpiryDate: "2024-06-15"},
	{ID: "d3", Name: "Lisinopril 10mg", StockQuantity: 200, UnitPrice: 12.25, ReorderThreshold: 30, ExpiryDate: "2025-08-20"},
	{ID: "d4", Name: "Metformin 500mg", StockQuantity: 80, UnitPrice: 10.00, ReorderThreshold: 40, ExpiryDate: "2025-01-10"},
	{ID: "d5", Name: "Azithromycin 250mg", StockQuantity: 10, UnitPrice: 25.00, ReorderThreshold: 20, ExpiryDate: "2024-05-01"},
	{ID: "d6", Name: "Tamiflu 75mg", StockQuantity: 300, UnitPrice: 45.00, ReorderThreshold: 50, ExpiryDate: "2026-01-01"},
}

// SeedCatalog loads the demo inventory into the catalog. Drugs that
// already exist are left untouched so seeding is safe to re-run.
func SeedCatalog(ctx context.Context, catalog interfaces.CatalogRepository) error {
	now := time.Now().UTC()
	for _, d := range demoDrugs {
		drug := d
		drug.CreatedAt = now
		drug.UpdatedAt = now
		if err := catalog.CreateDrug(ctx, &drug); err != nil {
			if types.IsConflict(err) {
				continue
			}
			return err
		}
	}
	return nil
}
