package interfaces

import (
	"context"

	"github.com/nyumuharon/hospital-system/pkg/types"
)

// EpidemicService defines the interface for symptom intake and epidemic
// risk analysis
type EpidemicService interface {
	// Symptom records
	AddSymptomRecord(ctx context.Context, record *types.SymptomRecord) error
	ListSymptomRecords(ctx context.Context) ([]*types.SymptomRecord, error)

	// Risk analysis
	AnalyzeRisk(ctx context.Context, records []*types.SymptomRecord) (*types.EpidemicReport, error)

	// Service management
	Start(addr string) error
	Stop() error
}

// SymptomRepository defines the interface for symptom record persistence
type SymptomRepository interface {
	AddRecord(ctx context.Context, record *types.SymptomRecord) error
	ListRecords(ctx context.Context) ([]*types.SymptomRecord, error)
}

// RiskAnalyzer produces an epidemic risk report from symptom records.
// Implementations never return an error: any failure degrades to a
// LOW-risk fallback report so callers always receive a usable result.
type RiskAnalyzer interface {
	Analyze(ctx context.Context, records []*types.SymptomRecord) *types.EpidemicReport
}
