package epidemic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nyumuharon/hospital-system/pkg/config"
	"github.com/nyumuharon/hospital-system/pkg/logger"
	"github.com/nyumuharon/hospital-system/pkg/monitoring"
	"github.com/nyumuharon/hospital-system/pkg/types"
)

// GeminiAnalyzer produces epidemic risk reports by calling the Gemini
// generateContent API. It is a fail-safe boundary: every failure mode
// (missing key, transport error, bad status, malformed payload) is
// logged and converted into a LOW-risk fallback report, never an error.
type GeminiAnalyzer struct {
	cfg     config.AIConfig
	client  *http.Client
	logger  *logger.Logger
	metrics *monitoring.MetricsCollector
}

// NewGeminiAnalyzer creates a new analyzer from the AI configuration
func NewGeminiAnalyzer(cfg config.AIConfig, log *logger.Logger, metrics *monitoring.MetricsCollector) *GeminiAnalyzer {
	return &GeminiAnalyzer{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		logger:  log,
		metrics: metrics,
	}
}

// generateRequest is the generateContent request payload
type generateRequest struct {
	Contents         []content       `json:"contents"`
	GenerationConfig *generateConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateConfig struct {
	ResponseMimeType string          `json:"responseMimeType,omitempty"`
	ResponseSchema   json.RawMessage `json:"responseSchema,omitempty"`
}

// generateResponse is the subset of the generateContent response we read
type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// reportSchema constrains the model to the report shape
var reportSchema = json.RawMessage(`{
	"type": "OBJECT",
	"properties": {
		"risk_level": {"type": "STRING", "enum": ["LOW", "MODERATE", "HIGH", "CRITICAL"]},
		"detected_outbreaks": {"type": "ARRAY", "items": {"type": "STRING"}},
		"analysis": {"type": "STRING"},
		"recommendations": {"type": "ARRAY", "items": {"type": "STRING"}},
		"timestamp": {"type": "STRING"}
	},
	"required": ["risk_level", "detected_outbreaks", "analysis", "recommendations"]
}`)

// Analyze runs the risk analysis over the given intake records
func (a *GeminiAnalyzer) Analyze(ctx context.Context, records []*types.SymptomRecord) *types.EpidemicReport {
	start := time.Now()

	report, err := a.call(ctx, records)
	duration := time.Since(start)

	if err != nil {
		a.logger.ExternalCall(ctx, "gemini", "generateContent", duration.Milliseconds(), false,
			map[string]interface{}{"error": err.Error(), "records": len(records)})
		if a.metrics != nil {
			a.metrics.RecordAnalysisRequest("fallback", duration)
		}
		return fallbackReport()
	}

	a.logger.ExternalCall(ctx, "gemini", "generateContent", duration.Milliseconds(), true,
		map[string]interface{}{"risk_level": report.RiskLevel, "records": len(records)})
	if a.metrics != nil {
		a.metrics.RecordAnalysisRequest("success", duration)
	}
	return report
}

func (a *GeminiAnalyzer) call(ctx context.Context, records []*types.SymptomRecord) (*types.EpidemicReport, error) {
	if a.cfg.APIKey == "" {
		return nil, fmt.Errorf("api key not configured")
	}

	prompt, err := buildPrompt(records)
	if err != nil {
		return nil, fmt.Errorf("failed to build prompt: %w", err)
	}

	reqBody := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generateConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   reportSchema,
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", a.cfg.Endpoint, a.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", a.cfg.APIKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var genResp generateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty response from model")
	}

	var report types.EpidemicReport
	if err := json.Unmarshal([]byte(genResp.Candidates[0].Content.Parts[0].Text), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	if !types.ValidRiskLevel(report.RiskLevel) {
		return nil, fmt.Errorf("invalid risk level in report: %q", report.RiskLevel)
	}
	if report.Timestamp == "" {
		report.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	return &report, nil
}

// buildPrompt renders the intake records into the analysis prompt
func buildPrompt(records []*types.SymptomRecord) (string, error) {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`You are an advanced AI Epidemiology Assistant for a hospital.
Analyze the following list of recent patient intake records (symptoms, preliminary diagnosis, location, time).

External Environmental Context (Simulated):
- Season: Late Summer
- Recent heavy rainfall in the region.
- High mosquito activity reported by public health APIs.

Patient Data:
%s

Your Task:
1. Detect if there is a potential outbreak based on symptom clusters (e.g., Dengue, Measles, COVID-19, Flu).
2. Assign a Risk Level (LOW, MODERATE, HIGH, CRITICAL).
3. Provide specific analysis of why you think this is a pattern.
4. Suggest immediate recommendations for hospital management.

Return the response in strict JSON format matching the schema provided.`, data), nil
}

// fallbackReport is returned whenever the analysis cannot complete
func fallbackReport() *types.EpidemicReport {
	return &types.EpidemicReport{
		RiskLevel:         types.RiskLow,
		DetectedOutbreaks: []string{"Analysis Failed"},
		Analysis:          "Could not connect to AI service to perform analysis.",
		Recommendations:   []string{"Check internet connection", "Verify API Key"},
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
	}
}
