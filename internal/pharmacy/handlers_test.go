package pharmacy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyumuharon/hospital-system/pkg/logger"
	"github.com/nyumuharon/hospital-system/pkg/types"
)

func setupTestRouter(t *testing.T) (*mux.Router, *Service) {
	t.Helper()

	store := NewMemoryStore()
	require.NoError(t, SeedCatalog(context.Background(), store))

	svc := NewService(store, store, store, logger.New("pharmacy-test", "fatal"), nil)
	router := mux.NewRouter()
	svc.setupRoutes(router)
	return router, svc
}

func doJSON(t *testing.T, router *mux.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndDispenseOverHTTP(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := doJSON(t, router, "POST", "/api/v1/prescriptions", types.PrescriptionRequest{
		PatientID:    "p1",
		PatientName:  "John Doe",
		PrescriberID: "u1",
		Items: []types.PrescriptionRequestItem{
			{DrugID: "d1", Quantity: 2},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created types.Prescription
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, types.StatusPending, created.Status)

	rec = doJSON(t, router, "GET", fmt.Sprintf("/api/v1/prescriptions/%s/can-dispense", created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var check map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &check))
	assert.Equal(t, true, check["can_dispense"])

	rec = doJSON(t, router, "POST", fmt.Sprintf("/api/v1/prescriptions/%s/dispense", created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var dispensed types.Prescription
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dispensed))
	assert.Equal(t, types.StatusDispensed, dispensed.Status)

	// Second dispense conflicts
	rec = doJSON(t, router, "POST", fmt.Sprintf("/api/v1/prescriptions/%s/dispense", created.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHTTPStatusMapping(t *testing.T) {
	router, svc := setupTestRouter(t)
	ctx := context.Background()

	// Validation error
	rec := doJSON(t, router, "POST", "/api/v1/prescriptions", types.PrescriptionRequest{
		PatientID:    "p1",
		PrescriberID: "u1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown drug id rejects creation
	rec = doJSON(t, router, "POST", "/api/v1/prescriptions", types.PrescriptionRequest{
		PatientID:    "p1",
		PrescriberID: "u1",
		Items:        []types.PrescriptionRequestItem{{DrugID: "d99", Quantity: 1}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Not found
	rec = doJSON(t, router, "GET", "/api/v1/prescriptions/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, "GET", "/api/v1/drugs/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Insufficient stock maps to conflict
	p, err := svc.CreatePrescription(ctx, singleItemRequest("d5", 15))
	require.NoError(t, err)
	rec = doJSON(t, router, "POST", fmt.Sprintf("/api/v1/prescriptions/%s/dispense", p.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, types.ErrCodeInsufficientStock, body["code"])
}

func TestDrugEndpoints(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := doJSON(t, router, "GET", "/api/v1/drugs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Drugs []types.Drug `json:"drugs"`
		Count int          `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Equal(t, 6, listing.Count)

	rec = doJSON(t, router, "GET", "/api/v1/drugs/low-stock", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Equal(t, 2, listing.Count)
	assert.Equal(t, "d5", listing.Drugs[0].ID)
	assert.Equal(t, "d2", listing.Drugs[1].ID)

	rec = doJSON(t, router, "POST", "/api/v1/drugs/d5/restock", types.RestockRequest{Quantity: 40})
	require.Equal(t, http.StatusOK, rec.Code)
	var drug types.Drug
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &drug))
	assert.Equal(t, 50, drug.StockQuantity)

	rec = doJSON(t, router, "POST", "/api/v1/drugs/d5/restock", types.RestockRequest{Quantity: -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPendingAndDispensedListings(t *testing.T) {
	router, svc := setupTestRouter(t)
	ctx := context.Background()

	first, err := svc.CreatePrescription(ctx, singleItemRequest("d1", 1))
	require.NoError(t, err)
	_, err = svc.CreatePrescription(ctx, singleItemRequest("d3", 1))
	require.NoError(t, err)

	rec := doJSON(t, router, "GET", "/api/v1/prescriptions/pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Prescriptions []types.Prescription `json:"prescriptions"`
		Count         int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Equal(t, 2, listing.Count)
	assert.Equal(t, first.ID, listing.Prescriptions[0].ID)

	_, err = svc.DispensePrescription(ctx, first.ID)
	require.NoError(t, err)

	rec = doJSON(t, router, "GET", "/api/v1/prescriptions/dispensed?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Equal(t, 1, listing.Count)

	rec = doJSON(t, router, "GET", "/api/v1/prescriptions/dispensed?limit=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := doJSON(t, router, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
