package pharmacy

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nyumuharon/hospital-system/pkg/database"
	"github.com/nyumuharon/hospital-system/pkg/types"
)

// sqlTxKey carries the active *sql.Tx through a WithTransaction scope
type sqlTxKey struct{}

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// PostgresStore is a PostgreSQL implementation of the catalog and
// prescription repositories. Atomicity of dispense comes from running
// all statements on one transaction carried in the context.
type PostgresStore struct {
	db *database.DB
}

// NewPostgresStore creates a store backed by the given connection
func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(sqlTxKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db.DB
}

// WithTransaction runs fn inside a single database transaction
func (s *PostgresStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(sqlTxKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(context.WithValue(ctx, sqlTxKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CreateDrug adds a drug to the catalog
func (s *PostgresStore) CreateDrug(ctx context.Context, drug *types.Drug) error {
	query := `
		INSERT INTO drugs (id, name, unit_price, stock_quantity, reorder_threshold, expiry_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.q(ctx).ExecContext(ctx, query,
		drug.ID, drug.Name, drug.UnitPrice, drug.StockQuantity,
		drug.ReorderThreshold, drug.ExpiryDate, drug.CreatedAt, drug.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create drug: %w", err)
	}
	return nil
}

// GetDrugByID returns the drug with the given id
func (s *PostgresStore) GetDrugByID(ctx context.Context, id string) (*types.Drug, error) {
	query := `
		SELECT id, name, unit_price, stock_quantity, reorder_threshold, expiry_date, created_at, updated_at
		FROM drugs WHERE id = $1`

	var drug types.Drug
	err := s.q(ctx).QueryRowContext(ctx, query, id).Scan(
		&drug.ID, &drug.Name, &drug.UnitPrice, &drug.StockQuantity,
		&drug.ReorderThreshold, &drug.ExpiryDate, &drug.CreatedAt, &drug.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, types.NewNotFoundError(types.ErrCodeDrugNotFound, "drug not found: "+id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get drug: %w", err)
	}
	return &drug, nil
}

// ListDrugs returns all catalog drugs sorted by id
func (s *PostgresStore) ListDrugs(ctx context.Context) ([]*types.Drug, error) {
	query := `
		SELECT id, name, unit_price, stock_quantity, reorder_threshold, expiry_date, created_at, updated_at
		FROM drugs ORDER BY id`

	return s.queryDrugs(ctx, query)
}

// ListLowStock returns drugs strictly below their reorder threshold,
// most depleted first
func (s *PostgresStore) ListLowStock(ctx context.Context) ([]*types.Drug, error) {
	query := `
		SELECT id, name, unit_price, stock_quantity, reorder_threshold, expiry_date, created_at, updated_at
		FROM drugs WHERE stock_quantity < reorder_threshold
		ORDER BY stock_quantity, id`

	return s.queryDrugs(ctx, query)
}

func (s *PostgresStore) queryDrugs(ctx context.Context, query string, args ...interface{}) ([]*types.Drug, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query drugs: %w", err)
	}
	defer rows.Close()

	var drugs []*types.Drug
	for rows.Next() {
		var drug types.Drug
		if err := rows.Scan(
			&drug.ID, &drug.Name, &drug.UnitPrice, &drug.StockQuantity,
			&drug.ReorderThreshold, &drug.ExpiryDate, &drug.CreatedAt, &drug.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan drug: %w", err)
		}
		drugs = append(drugs, &drug)
	}
	return drugs, rows.Err()
}

// DecrementStock subtracts quantity from a drug's stock. The WHERE
// guard makes the decrement conditional so stock can never go negative
// even under concurrent transactions.
func (s *PostgresStore) DecrementStock(ctx context.Context, id string, quantity int) error {
	query := `
		UPDATE drugs
		SET stock_quantity = stock_quantity - $2, updated_at = $3
		WHERE id = $1 AND stock_quantity >= $2`

	result, err := s.q(ctx).ExecContext(ctx, query, id, quantity, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check decrement result: %w", err)
	}
	if affected == 0 {
		drug, getErr := s.GetDrugByID(ctx, id)
		if getErr != nil {
			return getErr
		}
		return types.NewInsufficientStockError(types.ErrCodeInsufficientStock,
			"insufficient stock for drug "+id,
			map[string]interface{}{
				"drug_id":   id,
				"requested": quantity,
				"available": drug.StockQuantity,
			})
	}
	return nil
}

// IncrementStock adds quantity to a drug's stock
func (s *PostgresStore) IncrementStock(ctx context.Context, id string, quantity int) error {
	query := `
		UPDATE drugs
		SET stock_quantity = stock_quantity + $2, updated_at = $3
		WHERE id = $1`

	result, err := s.q(ctx).ExecContext(ctx, query, id, quantity, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to increment stock: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check increment result: %w", err)
	}
	if affected == 0 {
		return types.NewNotFoundError(types.ErrCodeDrugNotFound, "drug not found: "+id)
	}
	return nil
}

// CreatePrescription stores a new prescription with its line items
func (s *PostgresStore) CreatePrescription(ctx context.Context, p *types.Prescription) error {
	return s.WithTransaction(ctx, func(ctx context.Context) error {
		query := `
			INSERT INTO prescriptions (id, patient_id, patient_name, prescriber_id, prescriber_name, status, total_cost, created_at, dispensed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

		_, err := s.q(ctx).ExecContext(ctx, query,
			p.ID, p.PatientID, p.PatientName, p.PrescriberID, p.PrescriberName,
			p.Status, p.TotalCost, p.CreatedAt, p.DispensedAt)
		if err != nil {
			return fmt.Errorf("failed to create prescription: %w", err)
		}

		itemQuery := `
			INSERT INTO prescription_items (prescription_id, drug_id, drug_name, quantity)
			VALUES ($1, $2, $3, $4)`
		for _, item := range p.LineItems {
			if _, err := s.q(ctx).ExecContext(ctx, itemQuery,
				p.ID, item.DrugID, item.DrugName, item.Quantity); err != nil {
				return fmt.Errorf("failed to create prescription item: %w", err)
			}
		}
		return nil
	})
}

// GetPrescriptionByID returns the prescription with the given id
func (s *PostgresStore) GetPrescriptionByID(ctx context.Context, id string) (*types.Prescription, error) {
	query := `
		SELECT id, patient_id, patient_name, prescriber_id, prescriber_name, status, total_cost, created_at, dispensed_at
		FROM prescriptions WHERE id = $1`

	var p types.Prescription
	err := s.q(ctx).QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.PatientID, &p.PatientName, &p.PrescriberID, &p.PrescriberName,
		&p.Status, &p.TotalCost, &p.CreatedAt, &p.DispensedAt)
	if err == sql.ErrNoRows {
		return nil, types.NewNotFoundError(types.ErrCodePrescriptionNotFound, "prescription not found: "+id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prescription: %w", err)
	}

	items, err := s.loadItems(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.LineItems = items
	return &p, nil
}

func (s *PostgresStore) loadItems(ctx context.Context, prescriptionID string) ([]types.LineItem, error) {
	query := `
		SELECT drug_id, drug_name, quantity
		FROM prescription_items WHERE prescription_id = $1 ORDER BY drug_id`

	rows, err := s.q(ctx).QueryContext(ctx, query, prescriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query prescription items: %w", err)
	}
	defer rows.Close()

	var items []types.LineItem
	for rows.Next() {
		var item types.LineItem
		if err := rows.Scan(&item.DrugID, &item.DrugName, &item.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan prescription item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateStatus sets the status of a prescription. Moving to DISPENSED
// stamps the dispense time.
func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status types.PrescriptionStatus) error {
	var dispensedAt *time.Time
	if status == types.StatusDispensed {
		now := time.Now().UTC()
		dispensedAt = &now
	}

	query := `UPDATE prescriptions SET status = $2, dispensed_at = COALESCE($3, dispensed_at) WHERE id = $1`

	result, err := s.q(ctx).ExecContext(ctx, query, id, status, dispensedAt)
	if err != nil {
		return fmt.Errorf("failed to update prescription status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check status update result: %w", err)
	}
	if affected == 0 {
		return types.NewNotFoundError(types.ErrCodePrescriptionNotFound, "prescription not found: "+id)
	}
	return nil
}

// ListPending returns pending prescriptions oldest first
func (s *PostgresStore) ListPending(ctx context.Context) ([]*types.Prescription, error) {
	query := `
		SELECT id, patient_id, patient_name, prescriber_id, prescriber_name, status, total_cost, created_at, dispensed_at
		FROM prescriptions WHERE status = 'PENDING' ORDER BY created_at`

	return s.queryPrescriptions(ctx, query)
}

// ListDispensed returns dispensed prescriptions most recent first,
// bounded by limit
func (s *PostgresStore) ListDispensed(ctx context.Context, limit int) ([]*types.Prescription, error) {
	query := `
		SELECT id, patient_id, patient_name, prescriber_id, prescriber_name, status, total_cost, created_at, dispensed_at
		FROM prescriptions WHERE status = 'DISPENSED' ORDER BY dispensed_at DESC`

	if limit > 0 {
		return s.queryPrescriptions(ctx, query+" LIMIT $1", limit)
	}
	return s.queryPrescriptions(ctx, query)
}

func (s *PostgresStore) queryPrescriptions(ctx context.Context, query string, args ...interface{}) ([]*types.Prescription, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query prescriptions: %w", err)
	}
	defer rows.Close()

	var prescriptions []*types.Prescription
	for rows.Next() {
		var p types.Prescription
		if err := rows.Scan(
			&p.ID, &p.PatientID, &p.PatientName, &p.PrescriberID, &p.PrescriberName,
			&p.Status, &p.TotalCost, &p.CreatedAt, &p.DispensedAt); err != nil {
			return nil, fmt.Errorf("failed to scan prescription: %w", err)
		}
		prescriptions = append(prescriptions, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, p := range prescriptions {
		items, err := s.loadItems(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		p.LineItems = items
	}
	return prescriptions, nil
}
