package types

// RiskLevel represents the severity of an epidemic risk assessment
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskModerate RiskLevel = "MODERATE"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// ValidRiskLevel reports whether the given level is one of the four
// defined severities.
func ValidRiskLevel(level RiskLevel) bool {
	switch level {
	case RiskLow, RiskModerate, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// SymptomRecord is a single patient intake record used as input for
// epidemic risk analysis
type SymptomRecord struct {
	PatientID string   `json:"patient_id"`
	Symptoms  []string `json:"symptoms"`
	Diagnosis string   `json:"diagnosis"`
	Timestamp string   `json:"timestamp"`
	Location  string   `json:"location"`
}

// EpidemicReport is the structured result of a risk analysis. The analyzer
// boundary guarantees a report is always produced; a failed analysis
// degrades to a LOW-risk report with an explanatory analysis string.
type EpidemicReport struct {
	RiskLevel         RiskLevel `json:"risk_level"`
	DetectedOutbreaks []string  `json:"detected_outbreaks"`
	Analysis          string    `json:"analysis"`
	Recommendations   []string  `json:"recommendations"`
	Timestamp         string    `json:"timestamp"`
}
