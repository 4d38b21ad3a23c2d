package service

import (
	"context"

	"github.com/stockflow/stockflow-backend/internal/stockout/repository"
	"github.com/stockflow/stockflow-backend/pkg/actor"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// RequestSource is the request state surface the scan and completion
// services need
type RequestSource interface {
	GetByID(ctx context.Context, id string) (*repository.StockOutRequest, error)
	GetDetails(ctx context.Context, stockOutID string) ([]*repository.StockOutDetail, error)
	UpdateStatus(ctx context.Context, id, status string, remaining *int) error
	UpdateDetailProcessed(ctx context.Context, detailID string, processedQuantity int, processedBy string) error
	MarkInquiryCompleted(ctx context.Context, inquiryID string) error
}

// ProcessedSource is the processed item surface the scan and completion
// services need
type ProcessedSource interface {
	CreateWithAudit(ctx context.Context, item *repository.ProcessedItem, audit *repository.ProcessedItemAudit) error
	ListByStockOut(ctx context.Context, stockOutID string) ([]*repository.ProcessedItem, error)
	ListAuditsByStockOut(ctx context.Context, stockOutID string) ([]*repository.ProcessedItemAudit, error)
	SumForStockOut(ctx context.Context, stockOutID string) (int, error)
	SumForUnit(ctx context.Context, stockOutID, batchItemID string) (int, error)
}

// EventPublisher is the event surface. Implementations tolerate a nil
// receiver so messaging stays optional in degraded deployments.
type EventPublisher interface {
	PublishItemProcessed(ctx context.Context, item *repository.ProcessedItem, progress int)
	PublishRequestCompleted(ctx context.Context, req *repository.StockOutRequest, totalQuantity, itemCount int, completedBy string)
	PublishRequestRejected(ctx context.Context, req *repository.StockOutRequest, rejectedBy string)
	PublishStockDeducted(ctx context.Context, d repository.Deduction, stockOutID string)
	PublishReservationEvent(ctx context.Context, eventType string, res *repository.Reservation)
}

// ScanInput is one operator scan against a request
type ScanInput struct {
	StockOutID string  `json:"stock_out_id" validate:"required"`
	Barcode    string  `json:"barcode" validate:"required"`
	Quantity   int     `json:"quantity" validate:"required"`
	Note       *string `json:"note,omitempty"`
}

// ScanResult is the outcome of a recorded scan
type ScanResult struct {
	Item     *repository.ProcessedItem `json:"item"`
	Progress Progress                  `json:"progress"`
}

// ProcessorService records operator scans. A scan durably appends one
// processed item plus its audit snapshot; the actual quantity deduction
// happens later, at completion.
type ProcessorService struct {
	resolver  *ResolverService
	requests  RequestSource
	processed ProcessedSource
	events    EventPublisher
	logger    *logger.Logger
}

// NewProcessorService creates a new processor service
func NewProcessorService(resolver *ResolverService, requests RequestSource, processed ProcessedSource, events EventPublisher, log *logger.Logger) *ProcessorService {
	return &ProcessorService{
		resolver:  resolver,
		requests:  requests,
		processed: processed,
		events:    events,
		logger:    log.WithComponent("processor"),
	}
}

// ValidateScan resolves a barcode and reports whether a scan against the
// request would be accepted, without recording anything.
func (s *ProcessorService) ValidateScan(ctx context.Context, stockOutID, barcode string) (*ScanValidation, error) {
	req, err := s.requests.GetByID(ctx, stockOutID)
	if err != nil {
		return nil, err
	}

	unit, err := s.resolver.Resolve(ctx, barcode)
	if err != nil {
		if isNotFound(err) {
			return &ScanValidation{Reason: ReasonUnitNotFound}, nil
		}
		return nil, err
	}

	processedTotal, err := s.processed.SumForStockOut(ctx, stockOutID)
	if err != nil {
		return nil, err
	}
	takenFromUnit, err := s.processed.SumForUnit(ctx, stockOutID, unit.ID)
	if err != nil {
		return nil, err
	}

	v := ValidateScan(unit, req, processedTotal, takenFromUnit)
	return &v, nil
}

// ProcessScan validates and records one scan
func (s *ProcessorService) ProcessScan(ctx context.Context, input ScanInput) (*ScanResult, error) {
	req, err := s.requests.GetByID(ctx, input.StockOutID)
	if err != nil {
		return nil, err
	}

	unit, err := s.resolver.Resolve(ctx, input.Barcode)
	if err != nil {
		return nil, err
	}

	processedTotal, err := s.processed.SumForStockOut(ctx, input.StockOutID)
	if err != nil {
		return nil, err
	}
	takenFromUnit, err := s.processed.SumForUnit(ctx, input.StockOutID, unit.ID)
	if err != nil {
		return nil, err
	}

	v := ValidateScan(unit, req, processedTotal, takenFromUnit)
	if !v.Valid {
		return nil, errors.Conflict(v.Reason)
	}

	if input.Quantity <= 0 {
		return nil, errors.BadRequest("quantity must be greater than zero")
	}
	if input.Quantity > v.MaxQuantity {
		return nil, errors.BadRequest("quantity exceeds maximum allowed")
	}

	act := actor.FromContext(ctx)

	var detailID *string
	if details, err := s.requests.GetDetails(ctx, req.ID); err == nil {
		for _, d := range details {
			if d.ProductID == unit.ProductID {
				id := d.ID
				detailID = &id
				break
			}
		}
	}

	item := &repository.ProcessedItem{
		StockOutID:       req.ID,
		StockOutDetailID: detailID,
		BatchItemID:      unit.ID,
		ProductID:        unit.ProductID,
		Barcode:          unit.Barcode,
		WarehouseID:      unit.WarehouseID,
		LocationID:       unit.LocationID,
		Quantity:         input.Quantity,
		ProcessedBy:      act.ID,
	}
	audit := &repository.ProcessedItemAudit{
		ProductName:   unit.ProductName,
		BatchNumber:   unit.BatchNumber,
		WarehouseName: unit.WarehouseName,
		LocationCode:  unit.LocationCode,
		Floor:         unit.Floor,
		Zone:          unit.Zone,
		Barcode:       unit.Barcode,
		Note:          input.Note,
	}

	if err := s.processed.CreateWithAudit(ctx, item, audit); err != nil {
		return nil, err
	}

	progress := ComputeProgress(req.RequestedQuantity, processedTotal+input.Quantity)

	// Status advance is best-effort; the processed item rows remain the
	// source of truth and the next read recomputes progress from them.
	status := repository.RequestStatusInProgress
	if progress.Complete() {
		status = repository.RequestStatusReadyForCompletion
	}
	remaining := progress.Remaining
	if err := s.requests.UpdateStatus(ctx, req.ID, status, &remaining); err != nil {
		s.logger.Warn().Err(err).Str("stock_out_id", req.ID).Msg("failed to advance request status after scan")
	}

	s.events.PublishItemProcessed(ctx, item, progress.Percent)

	return &ScanResult{Item: item, Progress: progress}, nil
}

// Progress reports the current fulfillment position of a request
func (s *ProcessorService) Progress(ctx context.Context, stockOutID string) (*Progress, error) {
	req, err := s.requests.GetByID(ctx, stockOutID)
	if err != nil {
		return nil, err
	}

	processedTotal, err := s.processed.SumForStockOut(ctx, stockOutID)
	if err != nil {
		return nil, err
	}

	p := ComputeProgress(req.RequestedQuantity, processedTotal)
	return &p, nil
}
