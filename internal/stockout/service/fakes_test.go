package service_test

import (
	"context"
	"sync"

	"github.com/stockflow/stockflow-backend/internal/stockout/repository"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New("test", "test")
}

func strPtr(s string) *string {
	return &s
}

// fakeUnits backs the resolver strategy chain in memory
type fakeUnits struct {
	byID       map[string]*repository.BatchItem
	byBarcode  map[string]*repository.BatchItem
	byJoin     map[string]*repository.BatchItem
	byFragment map[string]*repository.BatchItem

	barcodeCalls  int
	joinCalls     int
	fragmentCalls int
}

func newFakeUnits() *fakeUnits {
	return &fakeUnits{
		byID:       make(map[string]*repository.BatchItem),
		byBarcode:  make(map[string]*repository.BatchItem),
		byJoin:     make(map[string]*repository.BatchItem),
		byFragment: make(map[string]*repository.BatchItem),
	}
}

func (f *fakeUnits) add(item *repository.BatchItem) {
	f.byID[item.ID] = item
	if item.Barcode != nil {
		f.byBarcode[*item.Barcode] = item
	}
}

func (f *fakeUnits) GetByID(ctx context.Context, id string) (*repository.BatchItem, error) {
	if item, ok := f.byID[id]; ok {
		return item, nil
	}
	return nil, errors.NotFound("unit")
}

func (f *fakeUnits) GetByBarcode(ctx context.Context, barcode string) (*repository.BatchItem, error) {
	f.barcodeCalls++
	if item, ok := f.byBarcode[barcode]; ok {
		return item, nil
	}
	return nil, errors.NotFound("unit")
}

func (f *fakeUnits) LookupByBarcodeJoin(ctx context.Context, barcode string) (*repository.BatchItem, error) {
	f.joinCalls++
	if item, ok := f.byJoin[barcode]; ok {
		return item, nil
	}
	return nil, errors.NotFound("unit")
}

func (f *fakeUnits) SearchByBarcodeFragment(ctx context.Context, fragment string) (*repository.BatchItem, error) {
	f.fragmentCalls++
	if item, ok := f.byFragment[fragment]; ok {
		return item, nil
	}
	return nil, errors.NotFound("unit")
}

// fakeRefs resolves reference names and valid ID sets
type fakeRefs struct {
	warehouses map[string]string
	locations  map[string]string
}

func newFakeRefs() *fakeRefs {
	return &fakeRefs{
		warehouses: make(map[string]string),
		locations:  make(map[string]string),
	}
}

func (f *fakeRefs) WarehouseName(ctx context.Context, id string) (string, error) {
	if name, ok := f.warehouses[id]; ok {
		return name, nil
	}
	return "", errors.NotFound("warehouse")
}

func (f *fakeRefs) LocationCode(ctx context.Context, id string) (string, error) {
	if code, ok := f.locations[id]; ok {
		return code, nil
	}
	return "", errors.NotFound("location")
}

func (f *fakeRefs) ValidWarehouseIDs(ctx context.Context) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(f.warehouses))
	for id := range f.warehouses {
		out[id] = struct{}{}
	}
	return out, nil
}

func (f *fakeRefs) ValidLocationIDs(ctx context.Context) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(f.locations))
	for id := range f.locations {
		out[id] = struct{}{}
	}
	return out, nil
}

// fakeCache is an in-memory Cache
type fakeCache struct {
	mu    sync.Mutex
	store map[string]string

	gets    int
	sets    int
	deletes int
}

func newFakeCache() *fakeCache {
	return &fakeCache{store: make(map[string]string)}
}

func (c *fakeCache) Get(ctx context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	v, ok := c.store[key]
	return v, ok
}

func (c *fakeCache) Set(ctx context.Context, key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.store[key] = value
}

func (c *fakeCache) Delete(ctx context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes++
	delete(c.store, key)
}

func (c *fakeCache) Health() map[string]string { return map[string]string{"status": "healthy"} }
func (c *fakeCache) Close() error              { return nil }

// fakeRequests backs the request state surface
type fakeRequests struct {
	requests map[string]*repository.StockOutRequest
	details  map[string][]*repository.StockOutDetail

	statusUpdates    []string
	detailUpdates    []string
	inquiryCompleted []string
	statusErr        error
}

func newFakeRequests() *fakeRequests {
	return &fakeRequests{
		requests: make(map[string]*repository.StockOutRequest),
		details:  make(map[string][]*repository.StockOutDetail),
	}
}

func (f *fakeRequests) add(req *repository.StockOutRequest) {
	f.requests[req.ID] = req
	f.details[req.ID] = []*repository.StockOutDetail{{
		ID:         req.ID + "-detail",
		StockOutID: req.ID,
		ProductID:  req.ProductID,
		Quantity:   req.RequestedQuantity,
	}}
}

func (f *fakeRequests) GetByID(ctx context.Context, id string) (*repository.StockOutRequest, error) {
	if req, ok := f.requests[id]; ok {
		return req, nil
	}
	return nil, errors.NotFound("stock-out request")
}

func (f *fakeRequests) GetDetails(ctx context.Context, stockOutID string) ([]*repository.StockOutDetail, error) {
	return f.details[stockOutID], nil
}

func (f *fakeRequests) UpdateStatus(ctx context.Context, id, status string, remaining *int) error {
	if f.statusErr != nil {
		return f.statusErr
	}
	if req, ok := f.requests[id]; ok {
		req.Status = status
		if remaining != nil {
			r := *remaining
			req.RemainingQuantity = &r
		}
	}
	f.statusUpdates = append(f.statusUpdates, status)
	return nil
}

func (f *fakeRequests) UpdateDetailProcessed(ctx context.Context, detailID string, processedQuantity int, processedBy string) error {
	f.detailUpdates = append(f.detailUpdates, detailID)
	return nil
}

func (f *fakeRequests) MarkInquiryCompleted(ctx context.Context, inquiryID string) error {
	f.inquiryCompleted = append(f.inquiryCompleted, inquiryID)
	return nil
}

func (f *fakeRequests) Create(ctx context.Context, req *repository.StockOutRequest) error {
	if req.ID == "" {
		req.ID = "r-" + req.ProductID
	}
	if req.Status == "" {
		req.Status = repository.RequestStatusPending
	}
	f.add(req)
	return nil
}

func (f *fakeRequests) List(ctx context.Context, page, perPage int, status string) ([]*repository.StockOutRequest, int64, error) {
	var out []*repository.StockOutRequest
	for _, req := range f.requests {
		if status == "" || req.Status == status {
			out = append(out, req)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeRequests) Reject(ctx context.Context, id, rejectedBy string) error {
	req, ok := f.requests[id]
	if !ok {
		return errors.NotFound("stock-out request")
	}
	if req.Status == repository.RequestStatusCompleted || req.Status == repository.RequestStatusRejected {
		return errors.Conflict("request cannot be rejected in its current status")
	}
	req.Status = repository.RequestStatusRejected
	req.ProcessedBy = &rejectedBy
	return nil
}

// fakeProcessed backs the processed item surface
type fakeProcessed struct {
	items     []*repository.ProcessedItem
	audits    map[string][]*repository.ProcessedItemAudit
	createErr error
}

func (f *fakeProcessed) CreateWithAudit(ctx context.Context, item *repository.ProcessedItem, audit *repository.ProcessedItemAudit) error {
	if f.createErr != nil {
		return f.createErr
	}
	if item.ID == "" {
		item.ID = "pi-" + item.BatchItemID
	}
	f.items = append(f.items, item)
	if f.audits == nil {
		f.audits = make(map[string][]*repository.ProcessedItemAudit)
	}
	f.audits[item.StockOutID] = append(f.audits[item.StockOutID], audit)
	return nil
}

func (f *fakeProcessed) ListAuditsByStockOut(ctx context.Context, stockOutID string) ([]*repository.ProcessedItemAudit, error) {
	return f.audits[stockOutID], nil
}

func (f *fakeProcessed) ListByStockOut(ctx context.Context, stockOutID string) ([]*repository.ProcessedItem, error) {
	var out []*repository.ProcessedItem
	for _, it := range f.items {
		if it.StockOutID == stockOutID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *fakeProcessed) SumForStockOut(ctx context.Context, stockOutID string) (int, error) {
	total := 0
	for _, it := range f.items {
		if it.StockOutID == stockOutID {
			total += it.Quantity
		}
	}
	return total, nil
}

func (f *fakeProcessed) SumForUnit(ctx context.Context, stockOutID, batchItemID string) (int, error) {
	total := 0
	for _, it := range f.items {
		if it.StockOutID == stockOutID && it.BatchItemID == batchItemID {
			total += it.Quantity
		}
	}
	return total, nil
}

// fakeEvents records published events
type fakeEvents struct {
	itemProcessed    []*repository.ProcessedItem
	completed        []string
	rejected         []string
	deducted         []repository.Deduction
	reservationTypes []string
}

func (f *fakeEvents) PublishItemProcessed(ctx context.Context, item *repository.ProcessedItem, progress int) {
	f.itemProcessed = append(f.itemProcessed, item)
}

func (f *fakeEvents) PublishRequestCompleted(ctx context.Context, req *repository.StockOutRequest, totalQuantity, itemCount int, completedBy string) {
	f.completed = append(f.completed, req.ID)
}

func (f *fakeEvents) PublishRequestRejected(ctx context.Context, req *repository.StockOutRequest, rejectedBy string) {
	f.rejected = append(f.rejected, req.ID)
}

func (f *fakeEvents) PublishStockDeducted(ctx context.Context, d repository.Deduction, stockOutID string) {
	f.deducted = append(f.deducted, d)
}

func (f *fakeEvents) PublishReservationEvent(ctx context.Context, eventType string, res *repository.Reservation) {
	f.reservationTypes = append(f.reservationTypes, eventType)
}

// fakeCompletions records applied batches, simulating the transactional
// store. applyErr lets tests force rollback behavior.
type fakeCompletions struct {
	batches  []*repository.CompletionBatch
	applyErr error
}

func (f *fakeCompletions) ApplyCompletion(ctx context.Context, batch *repository.CompletionBatch) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	f.batches = append(f.batches, batch)
	return nil
}

// fakeSummaries records projection rebuilds
type fakeSummaries struct {
	rebuilt []string
}

func (f *fakeSummaries) RebuildSummary(ctx context.Context, productID string) error {
	f.rebuilt = append(f.rebuilt, productID)
	return nil
}
