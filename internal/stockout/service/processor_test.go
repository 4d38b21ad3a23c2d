package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockflow/stockflow-backend/internal/stockout/repository"
	"github.com/stockflow/stockflow-backend/internal/stockout/service"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

type processorFixture struct {
	units     *fakeUnits
	requests  *fakeRequests
	processed *fakeProcessed
	events    *fakeEvents
	svc       *service.ProcessorService
}

func newProcessorFixture() *processorFixture {
	units := newFakeUnits()
	requests := newFakeRequests()
	processed := &fakeProcessed{}
	events := &fakeEvents{}

	resolver := service.NewResolverService(units, newFakeRefs(), newFakeCache(), testLogger())
	svc := service.NewProcessorService(resolver, requests, processed, events, testLogger())

	return &processorFixture{
		units:     units,
		requests:  requests,
		processed: processed,
		events:    events,
		svc:       svc,
	}
}

func (f *processorFixture) seedUnit(id, productID, barcode string, quantity int) *repository.BatchItem {
	u := unit(id, productID, quantity)
	u.Barcode = strPtr(barcode)
	f.units.add(u)
	return u
}

func TestProcessScan_RecordsItemAndProgress(t *testing.T) {
	f := newProcessorFixture()
	f.seedUnit("u1", "p1", "BC-001", 6)
	f.requests.add(request("r1", "p1", 10))

	result, err := f.svc.ProcessScan(context.Background(), service.ScanInput{
		StockOutID: "r1",
		Barcode:    "BC-001",
		Quantity:   6,
	})
	require.NoError(t, err)

	assert.Equal(t, 6, result.Item.Quantity)
	assert.Equal(t, "u1", result.Item.BatchItemID)
	assert.Equal(t, 60, result.Progress.Percent)
	assert.Equal(t, 4, result.Progress.Remaining)

	require.Len(t, f.processed.items, 1)
	require.Len(t, f.events.itemProcessed, 1)
	assert.Equal(t, []string{repository.RequestStatusInProgress}, f.requests.statusUpdates)
}

func TestProcessScan_SecondUnitBoundedByRemaining(t *testing.T) {
	// 10 requested: U1 contributes 6, then U2 (8 on hand) may only add 4
	f := newProcessorFixture()
	f.seedUnit("u1", "p1", "BC-001", 6)
	f.seedUnit("u2", "p1", "BC-002", 8)
	f.requests.add(request("r1", "p1", 10))

	_, err := f.svc.ProcessScan(context.Background(), service.ScanInput{
		StockOutID: "r1", Barcode: "BC-001", Quantity: 6,
	})
	require.NoError(t, err)

	_, err = f.svc.ProcessScan(context.Background(), service.ScanInput{
		StockOutID: "r1", Barcode: "BC-002", Quantity: 8,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quantity exceeds maximum allowed")

	result, err := f.svc.ProcessScan(context.Background(), service.ScanInput{
		StockOutID: "r1", Barcode: "BC-002", Quantity: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, 100, result.Progress.Percent)
	assert.Equal(t, repository.RequestStatusReadyForCompletion, f.requests.statusUpdates[len(f.requests.statusUpdates)-1])
}

func TestProcessScan_UnknownBarcodeNoMutation(t *testing.T) {
	f := newProcessorFixture()
	f.requests.add(request("r1", "p1", 10))

	_, err := f.svc.ProcessScan(context.Background(), service.ScanInput{
		StockOutID: "r1", Barcode: "GHOST", Quantity: 1,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.Empty(t, f.processed.items)
	assert.Empty(t, f.events.itemProcessed)
}

func TestProcessScan_ProductMismatchNoMutation(t *testing.T) {
	f := newProcessorFixture()
	f.seedUnit("u1", "q1", "BC-OTHER", 5)
	f.requests.add(request("r1", "p1", 10))

	_, err := f.svc.ProcessScan(context.Background(), service.ScanInput{
		StockOutID: "r1", Barcode: "BC-OTHER", Quantity: 1,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), service.ReasonProductMismatch)
	assert.Empty(t, f.processed.items)
}

func TestProcessScan_ZeroQuantityRejected(t *testing.T) {
	f := newProcessorFixture()
	f.seedUnit("u1", "p1", "BC-001", 6)
	f.requests.add(request("r1", "p1", 10))

	_, err := f.svc.ProcessScan(context.Background(), service.ScanInput{
		StockOutID: "r1", Barcode: "BC-001", Quantity: 0,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quantity must be greater than zero")
}

func TestProcessScan_StatusUpdateFailureDoesNotFailScan(t *testing.T) {
	f := newProcessorFixture()
	f.seedUnit("u1", "p1", "BC-001", 6)
	f.requests.add(request("r1", "p1", 10))
	f.requests.statusErr = errors.Internal("status update failed")

	result, err := f.svc.ProcessScan(context.Background(), service.ScanInput{
		StockOutID: "r1", Barcode: "BC-001", Quantity: 3,
	})
	require.NoError(t, err, "the processed item is already durable")
	assert.Equal(t, 3, result.Item.Quantity)
	require.Len(t, f.processed.items, 1)
}

func TestValidateScan_Endpoint(t *testing.T) {
	f := newProcessorFixture()
	f.seedUnit("u1", "p1", "BC-001", 6)
	f.requests.add(request("r1", "p1", 10))

	v, err := f.svc.ValidateScan(context.Background(), "r1", "BC-001")
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.Equal(t, 6, v.MaxQuantity)

	v, err = f.svc.ValidateScan(context.Background(), "r1", "GHOST")
	require.NoError(t, err, "unresolved barcode reports an invalid scan, not an error")
	assert.False(t, v.Valid)
	assert.Equal(t, service.ReasonUnitNotFound, v.Reason)
}

func TestProgress_FullyProcessedRequest(t *testing.T) {
	f := newProcessorFixture()
	f.seedUnit("u1", "p1", "BC-001", 10)
	f.requests.add(request("r1", "p1", 10))

	_, err := f.svc.ProcessScan(context.Background(), service.ScanInput{
		StockOutID: "r1", Barcode: "BC-001", Quantity: 10,
	})
	require.NoError(t, err)

	p, err := f.svc.Progress(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, 100, p.Percent)

	// Scenario: any further matching scan is rejected with nothing-more-needed
	v, err := f.svc.ValidateScan(context.Background(), "r1", "BC-001")
	require.NoError(t, err)
	assert.False(t, v.Valid)
}
