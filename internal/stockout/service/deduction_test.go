package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stockflow/stockflow-backend/internal/stockout/repository"
	"github.com/stockflow/stockflow-backend/internal/stockout/service"
)

func unit(id, productID string, quantity int) *repository.BatchItem {
	return &repository.BatchItem{ID: id, ProductID: productID, ProductName: "Widget", Quantity: quantity}
}

func request(id, productID string, requested int) *repository.StockOutRequest {
	return &repository.StockOutRequest{
		ID:                id,
		ProductID:         productID,
		ProductName:       "Widget",
		RequestedQuantity: requested,
		Status:            repository.RequestStatusPending,
	}
}

func TestMaxDeductible_BoundedByUnitQuantity(t *testing.T) {
	u := unit("u1", "p1", 3)
	got := service.MaxDeductible(u, 10, 0)
	assert.Equal(t, 3, got)
}

func TestMaxDeductible_BoundedByRemaining(t *testing.T) {
	u := unit("u1", "p1", 8)
	got := service.MaxDeductible(u, 4, 0)
	assert.Equal(t, 4, got)
}

func TestMaxDeductible_AccountsForQuantityAlreadyTakenFromUnit(t *testing.T) {
	u := unit("u1", "p1", 8)
	got := service.MaxDeductible(u, 10, 6)
	assert.Equal(t, 2, got)
}

func TestMaxDeductible_NeverNegative(t *testing.T) {
	u := unit("u1", "p1", 2)
	assert.Equal(t, 0, service.MaxDeductible(u, -1, 0))
	assert.Equal(t, 0, service.MaxDeductible(u, 5, 4))
}

func TestValidateScan_UnitNotFound(t *testing.T) {
	v := service.ValidateScan(nil, request("r1", "p1", 10), 0, 0)
	assert.False(t, v.Valid)
	assert.Equal(t, service.ReasonUnitNotFound, v.Reason)
}

func TestValidateScan_ProductMismatch(t *testing.T) {
	// Wrong product rejects regardless of available quantity
	u := unit("u1", "q1", 100)
	v := service.ValidateScan(u, request("r1", "p1", 10), 0, 0)
	assert.False(t, v.Valid)
	assert.Equal(t, service.ReasonProductMismatch, v.Reason)
}

func TestValidateScan_MismatchBeforeQuantityChecks(t *testing.T) {
	// An empty unit of the wrong product reports the mismatch, not the
	// empty quantity
	u := unit("u1", "q1", 0)
	v := service.ValidateScan(u, request("r1", "p1", 10), 0, 0)
	assert.Equal(t, service.ReasonProductMismatch, v.Reason)
}

func TestValidateScan_NoAvailableQuantity(t *testing.T) {
	u := unit("u1", "p1", 0)
	v := service.ValidateScan(u, request("r1", "p1", 10), 0, 0)
	assert.False(t, v.Valid)
	assert.Equal(t, service.ReasonNoAvailableStock, v.Reason)
}

func TestValidateScan_UnitAlreadyFullyConsumedByThisRequest(t *testing.T) {
	// The unit still has stock on paper, but this request took all of it;
	// the operator sees the per-unit reason, not the empty-unit one
	u := unit("u1", "p1", 5)
	v := service.ValidateScan(u, request("r1", "p1", 10), 5, 5)
	assert.False(t, v.Valid)
	assert.Equal(t, service.ReasonAlreadyProcessed, v.Reason)
}

func TestValidateScan_EmptyUnitBeforeConsumedCheck(t *testing.T) {
	// A fully empty unit reports no-available-stock even when this request
	// never touched it
	u := unit("u1", "p1", 0)
	v := service.ValidateScan(u, request("r1", "p1", 10), 3, 0)
	assert.False(t, v.Valid)
	assert.Equal(t, service.ReasonNoAvailableStock, v.Reason)
}

func TestValidateScan_NothingRemaining(t *testing.T) {
	// Request fully processed; any further matching scan is rejected
	u := unit("u1", "p1", 5)
	v := service.ValidateScan(u, request("r1", "p1", 10), 10, 0)
	assert.False(t, v.Valid)
	assert.Equal(t, service.ReasonNothingRemaining, v.Reason)
}

func TestValidateScan_CompletedRequest(t *testing.T) {
	u := unit("u1", "p1", 5)
	req := request("r1", "p1", 10)
	req.Status = repository.RequestStatusCompleted
	v := service.ValidateScan(u, req, 4, 0)
	assert.False(t, v.Valid)
	assert.Equal(t, service.ReasonRequestClosed, v.Reason)
}

func TestValidateScan_UsesMaintainedRemainingQuantity(t *testing.T) {
	// When the request carries remaining_quantity, the bound comes from it
	// directly instead of re-deriving from the processed total
	u := unit("u1", "p1", 8)
	req := request("r1", "p1", 10)
	remaining := 3
	req.RemainingQuantity = &remaining

	v := service.ValidateScan(u, req, 0, 0)
	assert.True(t, v.Valid)
	assert.Equal(t, 3, v.MaxQuantity)
}

func TestValidateScan_ReportsQuantityAlreadyTaken(t *testing.T) {
	u := unit("u1", "p1", 8)
	v := service.ValidateScan(u, request("r1", "p1", 10), 5, 5)
	assert.True(t, v.Valid)
	assert.Equal(t, 5, v.AlreadyProcessed)
	assert.Equal(t, 3, v.MaxQuantity)
}

func TestValidateScan_Valid(t *testing.T) {
	u := unit("u1", "p1", 6)
	v := service.ValidateScan(u, request("r1", "p1", 10), 0, 0)
	assert.True(t, v.Valid)
	assert.Empty(t, v.Reason)
	assert.Equal(t, 6, v.MaxQuantity)
	assert.Equal(t, u, v.Unit)
}

func TestValidateScan_RepeatScanStillAllowed(t *testing.T) {
	// Same barcode may be scanned again while deductible quantity remains
	u := unit("u1", "p1", 6)
	v := service.ValidateScan(u, request("r1", "p1", 10), 4, 4)
	assert.True(t, v.Valid)
	assert.Equal(t, 2, v.MaxQuantity)
}

func TestValidateScan_SecondUnitBoundedByRemaining(t *testing.T) {
	// Scenario: 10 requested, 6 already taken from another unit; the next
	// unit with 8 on hand may only contribute 4
	u2 := unit("u2", "p1", 8)
	v := service.ValidateScan(u2, request("r1", "p1", 10), 6, 0)
	assert.True(t, v.Valid)
	assert.Equal(t, 4, v.MaxQuantity)
}
