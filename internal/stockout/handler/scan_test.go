package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockflow/stockflow-backend/internal/stockout/events"
	"github.com/stockflow/stockflow-backend/internal/stockout/handler"
	"github.com/stockflow/stockflow-backend/internal/stockout/repository"
	"github.com/stockflow/stockflow-backend/internal/stockout/service"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/testutil"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()

	var err error
	suite, err = testutil.NewIntegrationSuite(ctx, "../../../migrations")
	if err != nil {
		log.Fatalf("failed to create integration suite: %v", err)
	}

	code := m.Run()

	suite.Cleanup(ctx)
	testutil.TerminateContainer(ctx)
	os.Exit(code)
}

func skipShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}
}

func strPtr(s string) *string {
	return &s
}

// newTestRouter wires the real services against the suite database, with
// messaging and caching disabled.
func newTestRouter() chi.Router {
	log := logger.New("test", "test")

	unitRepo := repository.NewUnitRepository(suite.DB)
	requestRepo := repository.NewRequestRepository(suite.DB)
	processedRepo := repository.NewProcessedItemRepository(suite.DB)
	inventoryRepo := repository.NewInventoryRepository(suite.DB)
	referenceRepo := repository.NewReferenceRepository(suite.DB)
	completionRepo := repository.NewCompletionRepository(suite.DB, unitRepo, processedRepo, inventoryRepo)

	var publisher *events.StockOutEventPublisher

	resolver := service.NewResolverService(unitRepo, referenceRepo, nil, log)
	processor := service.NewProcessorService(resolver, requestRepo, processedRepo, publisher, log)
	completion := service.NewCompletionService(
		requestRepo, processedRepo, unitRepo, referenceRepo,
		completionRepo, inventoryRepo, resolver, publisher, log,
	)
	requests := service.NewRequestService(requestRepo, processedRepo, publisher, log)

	scanHandler := handler.NewScanHandler(resolver, processor, log)
	requestHandler := handler.NewRequestHandler(requests, processor, completion, log)

	r := chi.NewRouter()
	r.Get("/scan/{barcode}", scanHandler.Resolve)
	r.Route("/requests", func(r chi.Router) {
		r.Post("/", requestHandler.Create)
		r.Get("/{id}", requestHandler.Get)
		r.Get("/{id}/progress", requestHandler.Progress)
		r.Get("/{id}/audit-trail", requestHandler.AuditTrail)
		r.Post("/{id}/validate-scan", scanHandler.ValidateScan)
		r.Post("/{id}/process", scanHandler.ProcessScan)
		r.Post("/{id}/complete", requestHandler.Complete)
		r.Post("/{id}/reject", requestHandler.Reject)
	})
	return r
}

func doJSON(t *testing.T, router chi.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestScanEndpoints_FullFlow(t *testing.T) {
	skipShort(t)
	ctx := context.Background()
	router := newTestRouter()

	productID, err := suite.Fixtures.CreateProduct(ctx, "Flow Widget")
	require.NoError(t, err)
	_, err = suite.Fixtures.CreateBatchItem(ctx, testutil.BatchItemFixture{
		ProductID: productID, Barcode: strPtr("FLOW-001"), Quantity: 6,
	})
	require.NoError(t, err)
	_, err = suite.Fixtures.CreateBatchItem(ctx, testutil.BatchItemFixture{
		ProductID: productID, Barcode: strPtr("FLOW-002"), Quantity: 8,
	})
	require.NoError(t, err)

	// create the request over HTTP
	rec := doJSON(t, router, http.MethodPost, "/requests", map[string]interface{}{
		"product_id":         productID,
		"product_name":       "Flow Widget",
		"requested_quantity": 10,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decodeResponse(t, rec)
	created := resp.Data.(map[string]interface{})
	reqID := created["id"].(string)

	// resolve the first barcode
	rec = doJSON(t, router, http.MethodGet, "/scan/FLOW-001", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// dry-run validation accepts it
	rec = doJSON(t, router, http.MethodPost, "/requests/"+reqID+"/validate-scan",
		map[string]string{"barcode": "FLOW-001"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeResponse(t, rec)
	validation := resp.Data.(map[string]interface{})
	assert.Equal(t, true, validation["valid"])

	// record both scans
	rec = doJSON(t, router, http.MethodPost, "/requests/"+reqID+"/process",
		map[string]interface{}{"barcode": "FLOW-001", "quantity": 6})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/requests/"+reqID+"/process",
		map[string]interface{}{"barcode": "FLOW-002", "quantity": 4})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// progress reads 100 percent
	rec = doJSON(t, router, http.MethodGet, "/requests/"+reqID+"/progress", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeResponse(t, rec)
	progress := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(100), progress["percent"])

	// one audit snapshot per recorded scan
	rec = doJSON(t, router, http.MethodGet, "/requests/"+reqID+"/audit-trail", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeResponse(t, rec)
	audits := resp.Data.([]interface{})
	assert.Len(t, audits, 2)

	// complete; the scans are already persisted so the body is empty
	rec = doJSON(t, router, http.MethodPost, "/requests/"+reqID+"/complete",
		map[string]interface{}{"items": []interface{}{}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp = decodeResponse(t, rec)
	result := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(10), result["total_quantity"])
	assert.Equal(t, false, result["already_completed"])

	// a replayed completion is a 200 no-op
	rec = doJSON(t, router, http.MethodPost, "/requests/"+reqID+"/complete",
		map[string]interface{}{"items": []interface{}{}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp = decodeResponse(t, rec)
	result = resp.Data.(map[string]interface{})
	assert.Equal(t, true, result["already_completed"])
}

func TestScanEndpoints_UnknownBarcode(t *testing.T) {
	skipShort(t)
	router := newTestRouter()

	rec := doJSON(t, router, http.MethodGet, "/scan/NO-SUCH-CODE", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	resp := decodeResponse(t, rec)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestRequestEndpoints_RejectThenComplete(t *testing.T) {
	skipShort(t)
	ctx := context.Background()
	router := newTestRouter()

	productID, err := suite.Fixtures.CreateProduct(ctx, "Reject Widget")
	require.NoError(t, err)
	reqID, err := suite.Fixtures.CreateRequest(ctx, productID, "Reject Widget", 5)
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodPost, "/requests/"+reqID+"/reject", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// completing a rejected request conflicts
	rec = doJSON(t, router, http.MethodPost, "/requests/"+reqID+"/complete",
		map[string]interface{}{"items": []interface{}{}})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestRequestEndpoints_ValidationErrors(t *testing.T) {
	skipShort(t)
	router := newTestRouter()

	rec := doJSON(t, router, http.MethodPost, "/requests", map[string]interface{}{
		"product_id": "p1",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
}
