package types

import "time"

// Drug represents a single catalog entry in the pharmacy inventory
type Drug struct {
	ID               string    `json:"id" db:"id"`
	Name             string    `json:"name" db:"name"`
	UnitPrice        float64   `json:"unit_price" db:"unit_price"`
	StockQuantity    int       `json:"stock_quantity" db:"stock_quantity"`
	ReorderThreshold int       `json:"reorder_threshold" db:"reorder_threshold"`
	ExpiryDate       string    `json:"expiry_date" db:"expiry_date"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// IsLowStock reports whether the drug is below its reorder threshold.
// The comparison is strictly less-than: a drug sitting exactly at its
// threshold is not considered low.
func (d *Drug) IsLowStock() bool {
	return d.StockQuantity < d.ReorderThreshold
}

// PrescriptionStatus represents the lifecycle state of a prescription
type PrescriptionStatus string

const (
	StatusPending   PrescriptionStatus = "PENDING"
	StatusDispensed PrescriptionStatus = "DISPENSED"
)

// LineItem is a single (drug, quantity) entry within a prescription.
// DrugName is a snapshot taken at creation time.
type LineItem struct {
	DrugID   string `json:"drug_id" db:"drug_id"`
	DrugName string `json:"drug_name" db:"drug_name"`
	Quantity int    `json:"quantity" db:"quantity"`
}

// Prescription is an ordered medication request tied to a patient and
// prescriber. Patient and prescriber names, line item names and the total
// cost are snapshots taken at creation time and never recomputed.
type Prescription struct {
	ID             string             `json:"id" db:"id"`
	PatientID      string             `json:"patient_id" db:"patient_id"`
	PatientName    string             `json:"patient_name" db:"patient_name"`
	PrescriberID   string             `json:"prescriber_id" db:"prescriber_id"`
	PrescriberName string             `json:"prescriber_name" db:"prescriber_name"`
	LineItems      []LineItem         `json:"line_items"`
	Status         PrescriptionStatus `json:"status" db:"status"`
	TotalCost      float64            `json:"total_cost" db:"total_cost"`
	CreatedAt      time.Time          `json:"created_at" db:"created_at"`
	DispensedAt    *time.Time         `json:"dispensed_at,omitempty" db:"dispensed_at"`
}

// PrescriptionRequest is the input for prescription creation. Item names
// are resolved against the catalog by the workflow, not supplied by the
// caller.
type PrescriptionRequest struct {
	PatientID      string                    `json:"patient_id"`
	PatientName    string                    `json:"patient_name"`
	PrescriberID   string                    `json:"prescriber_id"`
	PrescriberName string                    `json:"prescriber_name"`
	Items          []PrescriptionRequestItem `json:"items"`
}

// PrescriptionRequestItem is a requested (drug, quantity) pair
type PrescriptionRequestItem struct {
	DrugID   string `json:"drug_id"`
	Quantity int    `json:"quantity"`
}

// RestockRequest is the input for a stock replenishment
type RestockRequest struct {
	Quantity int `json:"quantity"`
}
