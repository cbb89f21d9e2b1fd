package epidemic

import (
	"context"
	"sync"

	"github.com/nyumuharon/hospital-system/pkg/interfaces"
	"github.com/nyumuharon/hospital-system/pkg/types"
)

// MemorySymptomStore is an in-memory implementation of the symptom
// record repository. Records are append-only intake forms.
type MemorySymptomStore struct {
	mu      sync.RWMutex
	records []*types.SymptomRecord
}

// NewMemorySymptomStore creates an empty symptom store
func NewMemorySymptomStore() *MemorySymptomStore {
	return &MemorySymptomStore{}
}

// AddRecord appends a symptom record
func (s *MemorySymptomStore) AddRecord(ctx context.Context, record *types.SymptomRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *record
	copied.Symptoms = append([]string(nil), record.Symptoms...)
	s.records = append(s.records, &copied)
	return nil
}

// ListRecords returns all symptom records in intake order
func (s *MemorySymptomStore) ListRecords(ctx context.Context) ([]*types.SymptomRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*types.SymptomRecord, 0, len(s.records))
	for _, r := range s.records {
		copied := *r
		copied.Symptoms = append([]string(nil), r.Symptoms...)
		records = append(records, &copied)
	}
	return records, nil
}

// demoSymptoms simulates a database of recent intake forms. The North
// Wing fever/rash cluster gives the analyzer a pattern to find.
var demoSymptoms = []types.SymptomRecord{
	{PatientID: "p1", Symptoms: []string{"High Fever", "Cough", "Fatigue"}, Diagnosis: "Viral Infection", Timestamp: "2024-03-10", Location: "North Wing"},
	{PatientID: "p2", Symptoms: []string{"High Fever", "Rash", "Joint Pain"}, Diagnosis: "Undiagnosed", Timestamp: "2024-03-11", Location: "North Wing"},
	{PatientID: "p3", Symptoms: []string{"Fever", "Red Eyes", "Runny Nose"}, Diagnosis: "Flu", Timestamp: "2024-03-11", Location: "East Wing"},
	{PatientID: "p4", Symptoms: []string{"High Fever", "Rash", "Muscle Pain"}, Diagnosis: "Undiagnosed", Timestamp: "2024-03-12", Location: "North Wing"},
	{PatientID: "p5", Symptoms: []string{"Cough", "Shortness of breath"}, Diagnosis: "Bronchitis", Timestamp: "2024-03-12", Location: "West Wing"},
	{PatientID: "p6", Symptoms: []string{"High Fever", "Rash", "Bleeding gums"}, Diagnosis: "Undiagnosed", Timestamp: "2024-03-13", Location: "North Wing"},
}

// SeedSymptoms loads the demo intake records
func SeedSymptoms(ctx context.Context, repo interfaces.SymptomRepository) error {
	for _, r := range demoSymptoms {
		record := r
		if err := repo.AddRecord(ctx, &record); err != nil {
			return err
		}
	}
	return nil
}
