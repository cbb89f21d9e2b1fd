package epidemic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyumuharon/hospital-system/pkg/config"
	"github.com/nyumuharon/hospital-system/pkg/logger"
	"github.com/nyumuharon/hospital-system/pkg/types"
)

func testAnalyzer(endpoint, apiKey string) *GeminiAnalyzer {
	return NewGeminiAnalyzer(config.AIConfig{
		APIKey:         apiKey,
		Model:          "gemini-2.5-flash",
		Endpoint:       endpoint,
		TimeoutSeconds: 5,
	}, logger.New("epidemic-test", "fatal"), nil)
}

func testRecords() []*types.SymptomRecord {
	return []*types.SymptomRecord{
		{PatientID: "p1", Symptoms: []string{"High Fever", "Rash"}, Diagnosis: "Undiagnosed", Timestamp: "2024-03-11", Location: "North Wing"},
	}
}

// modelResponse wraps a report the way generateContent returns it: as
// JSON text inside the first candidate part
func modelResponse(t *testing.T, report types.EpidemicReport) []byte {
	t.Helper()

	text, err := json.Marshal(report)
	require.NoError(t, err)

	payload, err := json.Marshal(map[string]interface{}{
		"candidates": []map[string]interface{}{
			{"content": map[string]interface{}{
				"parts": []map[string]string{{"text": string(text)}},
			}},
		},
	})
	require.NoError(t, err)
	return payload
}

func TestAnalyzeSuccess(t *testing.T) {
	want := types.EpidemicReport{
		RiskLevel:         types.RiskHigh,
		DetectedOutbreaks: []string{"Dengue"},
		Analysis:          "Fever and rash cluster in the North Wing.",
		Recommendations:   []string{"Isolate affected ward"},
		Timestamp:         "2024-03-13T00:00:00Z",
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/models/gemini-2.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		assert.Contains(t, req.Contents[0].Parts[0].Text, "North Wing")

		w.Header().Set("Content-Type", "application/json")
		w.Write(modelResponse(t, want))
	}))
	defer server.Close()

	report := testAnalyzer(server.URL, "test-key").Analyze(context.Background(), testRecords())
	require.NotNil(t, report)
	assert.Equal(t, types.RiskHigh, report.RiskLevel)
	assert.Equal(t, []string{"Dengue"}, report.DetectedOutbreaks)
}

func TestAnalyzeFallbackWithoutAPIKey(t *testing.T) {
	report := testAnalyzer("http://unused", "").Analyze(context.Background(), testRecords())

	require.NotNil(t, report)
	assert.Equal(t, types.RiskLow, report.RiskLevel)
	assert.Equal(t, []string{"Analysis Failed"}, report.DetectedOutbreaks)
	assert.NotEmpty(t, report.Timestamp)
}

func TestAnalyzeFallbackOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	report := testAnalyzer(server.URL, "test-key").Analyze(context.Background(), testRecords())
	require.NotNil(t, report)
	assert.Equal(t, types.RiskLow, report.RiskLevel)
	assert.Equal(t, []string{"Analysis Failed"}, report.DetectedOutbreaks)
}

func TestAnalyzeFallbackOnMalformedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"not json at all"}]}}]}`))
	}))
	defer server.Close()

	report := testAnalyzer(server.URL, "test-key").Analyze(context.Background(), testRecords())
	require.NotNil(t, report)
	assert.Equal(t, types.RiskLow, report.RiskLevel)
}

func TestAnalyzeFallbackOnInvalidRiskLevel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(modelResponse(t, types.EpidemicReport{
			RiskLevel: "APOCALYPTIC",
			Analysis:  "made up severity",
		}))
	}))
	defer server.Close()

	report := testAnalyzer(server.URL, "test-key").Analyze(context.Background(), testRecords())
	require.NotNil(t, report)
	assert.Equal(t, types.RiskLow, report.RiskLevel)
	assert.Equal(t, []string{"Analysis Failed"}, report.DetectedOutbreaks)
}

func TestAnalyzeFallbackOnUnreachableEndpoint(t *testing.T) {
	report := testAnalyzer("http://127.0.0.1:1", "test-key").Analyze(context.Background(), testRecords())
	require.NotNil(t, report)
	assert.Equal(t, types.RiskLow, report.RiskLevel)
}

func TestAnalyzeFillsMissingTimestamp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(modelResponse(t, types.EpidemicReport{
			RiskLevel:         types.RiskModerate,
			DetectedOutbreaks: []string{"Flu"},
			Analysis:          "seasonal uptick",
			Recommendations:   []string{"Monitor"},
		}))
	}))
	defer server.Close()

	report := testAnalyzer(server.URL, "test-key").Analyze(context.Background(), testRecords())
	require.NotNil(t, report)
	assert.Equal(t, types.RiskModerate, report.RiskLevel)
	assert.NotEmpty(t, report.Timestamp)
}
