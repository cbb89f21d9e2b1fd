package database

import (
	"context"
	"fmt"
)

// schema holds the DDL for the pharmacy tables. Expiry dates are stored
// as text in YYYY-MM-DD form; they are informational and never compared
// as timestamps.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS drugs (
		id                TEXT PRIMARY KEY,
		name              TEXT NOT NULL,
		unit_price        NUMERIC(12,2) NOT NULL CHECK (unit_price >= 0),
		stock_quantity    INTEGER NOT NULL CHECK (stock_quantity >= 0),
		reorder_threshold INTEGER NOT NULL CHECK (reorder_threshold >= 0),
		expiry_date       TEXT NOT NULL,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS prescriptions (
		id              TEXT PRIMARY KEY,
		patient_id      TEXT NOT NULL,
		patient_name    TEXT NOT NULL,
		prescriber_id   TEXT NOT NULL,
		prescriber_name TEXT NOT NULL,
		status          TEXT NOT NULL CHECK (status IN ('PENDING', 'DISPENSED')),
		total_cost      NUMERIC(12,2) NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		dispensed_at    TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS prescription_items (
		prescription_id TEXT NOT NULL REFERENCES prescriptions(id),
		drug_id         TEXT NOT NULL REFERENCES drugs(id),
		drug_name       TEXT NOT NULL,
		quantity        INTEGER NOT NULL CHECK (quantity > 0),
		PRIMARY KEY (prescription_id, drug_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_prescriptions_status_created
		ON prescriptions (status, created_at)`,
}

// InitSchema creates the pharmacy tables if they do not exist
func (db *DB) InitSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}

	db.logger.Info("Database schema initialized")
	return nil
}
