package service

import (
	"context"

	"github.com/stockflow/stockflow-backend/internal/stockout/repository"
	"github.com/stockflow/stockflow-backend/pkg/actor"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// CompletionStore applies a completion batch atomically
type CompletionStore interface {
	ApplyCompletion(ctx context.Context, batch *repository.CompletionBatch) error
}

// ReferenceValidator exposes the known-valid warehouse and location ID
// sets used to scrub denormalized references
type ReferenceValidator interface {
	ValidWarehouseIDs(ctx context.Context) (map[string]struct{}, error)
	ValidLocationIDs(ctx context.Context) (map[string]struct{}, error)
}

// SummaryRebuilder refreshes the derived inventory summary projection
type SummaryRebuilder interface {
	RebuildSummary(ctx context.Context, productID string) error
}

// CompleteItem is one processed item submitted with a completion request.
// Items the operator scanned earlier are already persisted and are
// filtered out; items without a unit identity (legacy rows, empty
// BatchItemID and Barcode) deduct through the FIFO fallback.
type CompleteItem struct {
	BatchItemID string  `json:"batch_item_id"`
	ProductID   string  `json:"product_id" validate:"required"`
	Barcode     *string `json:"barcode,omitempty"`
	WarehouseID *string `json:"warehouse_id,omitempty"`
	LocationID  *string `json:"location_id,omitempty"`
	Quantity    int     `json:"quantity" validate:"required,gt=0"`
	Note        *string `json:"note,omitempty"`
}

// CompletionResult reports the outcome of a completion
type CompletionResult struct {
	StockOutID       string   `json:"stock_out_id"`
	AlreadyCompleted bool     `json:"already_completed"`
	ItemCount        int      `json:"item_count"`
	TotalQuantity    int      `json:"total_quantity"`
	Progress         Progress `json:"progress"`
}

// CompletionService finalizes a fulfillment request: it persists the
// genuinely-new processed items and deducts the consumed quantities from
// every dependent store in one transaction, then fans out the best-effort
// side effects.
type CompletionService struct {
	requests    RequestSource
	processed   ProcessedSource
	units       UnitSource
	refs        ReferenceValidator
	completions CompletionStore
	summaries   SummaryRebuilder
	resolver    *ResolverService
	events      EventPublisher
	logger      *logger.Logger
}

// NewCompletionService creates a new completion service
func NewCompletionService(
	requests RequestSource,
	processed ProcessedSource,
	units UnitSource,
	refs ReferenceValidator,
	completions CompletionStore,
	summaries SummaryRebuilder,
	resolver *ResolverService,
	events EventPublisher,
	log *logger.Logger,
) *CompletionService {
	return &CompletionService{
		requests:    requests,
		processed:   processed,
		units:       units,
		refs:        refs,
		completions: completions,
		summaries:   summaries,
		resolver:    resolver,
		events:      events,
		logger:      log.WithComponent("completion"),
	}
}

// Complete finalizes a request. Safe to retry: a second call with the
// same items inserts nothing, deducts nothing, and reports the request as
// already completed.
func (s *CompletionService) Complete(ctx context.Context, stockOutID string, items []CompleteItem) (*CompletionResult, error) {
	req, err := s.requests.GetByID(ctx, stockOutID)
	if err != nil {
		return nil, err
	}

	switch req.Status {
	case repository.RequestStatusCompleted:
		return s.alreadyCompleted(ctx, req)
	case repository.RequestStatusRejected:
		return nil, errors.Conflict("request has been rejected")
	}

	persisted, err := s.processed.ListByStockOut(ctx, stockOutID)
	if err != nil {
		return nil, err
	}

	incoming := dedupeItems(items)
	newItems := filterPersisted(incoming, persisted)
	s.scrubReferences(ctx, newItems)

	act := actor.FromContext(ctx)

	batch := &repository.CompletionBatch{
		StockOutID:  stockOutID,
		CompletedBy: act.ID,
	}
	for _, in := range newItems {
		item, audit := s.buildProcessedItem(ctx, req, in, act.ID)
		batch.Items = append(batch.Items, item)
		batch.Audits = append(batch.Audits, audit)
	}
	batch.Deductions = buildDeductions(persisted, batch.Items)

	if err := s.completions.ApplyCompletion(ctx, batch); err != nil {
		if errors.Is(err, repository.ErrNotCompletable) {
			// Lost a concurrent race; re-read to tell completed from rejected
			current, getErr := s.requests.GetByID(ctx, stockOutID)
			if getErr != nil {
				return nil, getErr
			}
			if current.Status == repository.RequestStatusCompleted {
				return s.alreadyCompleted(ctx, current)
			}
			return nil, errors.Conflict("request has been rejected")
		}
		return nil, err
	}

	allItems := append(append([]*repository.ProcessedItem{}, persisted...), batch.Items...)
	s.afterCommit(ctx, req, allItems, batch.Deductions, act.ID)

	total := 0
	for _, it := range allItems {
		total += it.Quantity
	}

	return &CompletionResult{
		StockOutID:    stockOutID,
		ItemCount:     len(allItems),
		TotalQuantity: total,
		Progress:      ComputeProgress(req.RequestedQuantity, total),
	}, nil
}

// alreadyCompleted builds the idempotent no-op result for a request that
// was completed before (or concurrently with) this call
func (s *CompletionService) alreadyCompleted(ctx context.Context, req *repository.StockOutRequest) (*CompletionResult, error) {
	total, err := s.processed.SumForStockOut(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	items, err := s.processed.ListByStockOut(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	return &CompletionResult{
		StockOutID:       req.ID,
		AlreadyCompleted: true,
		ItemCount:        len(items),
		TotalQuantity:    total,
		Progress:         ComputeProgress(req.RequestedQuantity, total),
	}, nil
}

// dedupeItems drops repeated submissions of the same unit within one
// call; the first occurrence wins. FIFO items (no unit identity) dedupe
// by product.
func dedupeItems(items []CompleteItem) []CompleteItem {
	seen := make(map[string]struct{}, len(items))
	out := make([]CompleteItem, 0, len(items))

	for _, it := range items {
		key := it.BatchItemID
		if key == "" {
			key = "product:" + it.ProductID
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, it)
	}
	return out
}

// filterPersisted drops incoming items whose unit already has a persisted
// processed item for this request. This is the mandatory idempotency
// guard against double submission and retried partial attempts.
func filterPersisted(incoming []CompleteItem, persisted []*repository.ProcessedItem) []CompleteItem {
	existing := make(map[string]struct{}, len(persisted))
	for _, p := range persisted {
		existing[p.BatchItemID] = struct{}{}
	}

	out := make([]CompleteItem, 0, len(incoming))
	for _, it := range incoming {
		if it.BatchItemID != "" {
			if _, ok := existing[it.BatchItemID]; ok {
				continue
			}
		}
		out = append(out, it)
	}
	return out
}

// scrubReferences nulls warehouse/location references that do not exist
// in the reference tables, rather than rejecting the item. Best-effort: a
// failed reference read leaves the items untouched.
func (s *CompletionService) scrubReferences(ctx context.Context, items []CompleteItem) {
	warehouses, err := s.refs.ValidWarehouseIDs(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to load warehouse reference set")
		return
	}
	locations, err := s.refs.ValidLocationIDs(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to load location reference set")
		return
	}

	for i := range items {
		if items[i].WarehouseID != nil {
			if _, ok := warehouses[*items[i].WarehouseID]; !ok {
				items[i].WarehouseID = nil
			}
		}
		if items[i].LocationID != nil {
			if _, ok := locations[*items[i].LocationID]; !ok {
				items[i].LocationID = nil
			}
		}
	}
}

// buildProcessedItem turns one submitted item into the persisted record
// plus its audit snapshot. The snapshot is filled from the live unit when
// it resolves; otherwise from the request's denormalized fields.
func (s *CompletionService) buildProcessedItem(ctx context.Context, req *repository.StockOutRequest, in CompleteItem, processedBy string) (*repository.ProcessedItem, *repository.ProcessedItemAudit) {
	item := &repository.ProcessedItem{
		StockOutID:  req.ID,
		BatchItemID: in.BatchItemID,
		ProductID:   in.ProductID,
		Barcode:     in.Barcode,
		WarehouseID: in.WarehouseID,
		LocationID:  in.LocationID,
		Quantity:    in.Quantity,
		ProcessedBy: processedBy,
	}
	audit := &repository.ProcessedItemAudit{
		ProductName: req.ProductName,
		Barcode:     in.Barcode,
		Note:        in.Note,
	}

	if in.BatchItemID == "" {
		return item, audit
	}

	unit, err := s.units.GetByID(ctx, in.BatchItemID)
	if err != nil {
		s.logger.Warn().Err(err).Str("batch_item_id", in.BatchItemID).Msg("audit snapshot falls back to request fields")
		return item, audit
	}

	audit.ProductName = unit.ProductName
	audit.BatchNumber = unit.BatchNumber
	audit.Floor = unit.Floor
	audit.Zone = unit.Zone
	if item.Barcode == nil {
		item.Barcode = unit.Barcode
		audit.Barcode = unit.Barcode
	}
	return item, audit
}

// buildDeductions derives the quantity outflows from the union of the
// already-persisted items and the genuinely-new ones, one deduction per
// unit. Units resolved by barcode deduct directly; items without a unit
// identity fall back to oldest-first consumption by product. An item
// never takes both paths.
func buildDeductions(persisted, newItems []*repository.ProcessedItem) []repository.Deduction {
	byKey := make(map[string]*repository.Deduction)
	var order []string

	add := func(it *repository.ProcessedItem) {
		useFIFO := it.BatchItemID == ""
		key := it.BatchItemID
		if useFIFO {
			key = "product:" + it.ProductID
		}

		if d, ok := byKey[key]; ok {
			d.Quantity += it.Quantity
			return
		}
		byKey[key] = &repository.Deduction{
			UnitID:      it.BatchItemID,
			ProductID:   it.ProductID,
			Barcode:     it.Barcode,
			WarehouseID: it.WarehouseID,
			LocationID:  it.LocationID,
			Quantity:    it.Quantity,
			UseFIFO:     useFIFO,
		}
		order = append(order, key)
	}

	for _, it := range persisted {
		add(it)
	}
	for _, it := range newItems {
		add(it)
	}

	out := make([]repository.Deduction, 0, len(order))
	for _, key := range order {
		out = append(out, *byKey[key])
	}
	return out
}

// afterCommit runs the best-effort side effects of a committed
// completion. Failures are logged and never unwind the completion.
func (s *CompletionService) afterCommit(ctx context.Context, req *repository.StockOutRequest, allItems []*repository.ProcessedItem, deductions []repository.Deduction, completedBy string) {
	total := 0
	for _, it := range allItems {
		total += it.Quantity
	}

	if details, err := s.requests.GetDetails(ctx, req.ID); err == nil {
		for _, d := range details {
			if d.ProductID != req.ProductID {
				continue
			}
			if err := s.requests.UpdateDetailProcessed(ctx, d.ID, total, completedBy); err != nil {
				s.logger.Warn().Err(err).Str("detail_id", d.ID).Msg("failed to update detail row after completion")
			}
		}
	} else {
		s.logger.Warn().Err(err).Str("stock_out_id", req.ID).Msg("failed to load detail rows after completion")
	}

	if req.InquiryID != nil {
		if err := s.requests.MarkInquiryCompleted(ctx, *req.InquiryID); err != nil {
			s.logger.Warn().Err(err).Str("inquiry_id", *req.InquiryID).Msg("failed to mark inquiry completed")
		}
	}

	s.events.PublishRequestCompleted(ctx, req, total, len(allItems), completedBy)

	rebuilt := make(map[string]struct{})
	for _, d := range deductions {
		s.events.PublishStockDeducted(ctx, d, req.ID)

		if d.Barcode != nil && *d.Barcode != "" {
			s.resolver.InvalidateUnit(ctx, *d.Barcode)
		}

		if _, ok := rebuilt[d.ProductID]; ok {
			continue
		}
		rebuilt[d.ProductID] = struct{}{}
		if err := s.summaries.RebuildSummary(ctx, d.ProductID); err != nil {
			s.logger.Warn().Err(err).Str("product_id", d.ProductID).Msg("failed to refresh inventory summary")
		}
	}
}
