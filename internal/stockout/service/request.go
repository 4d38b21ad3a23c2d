package service

import (
	"context"

	"github.com/stockflow/stockflow-backend/internal/stockout/repository"
	"github.com/stockflow/stockflow-backend/pkg/actor"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// RequestStore is the full request persistence surface used by the
// request lifecycle service
type RequestStore interface {
	RequestSource
	Create(ctx context.Context, req *repository.StockOutRequest) error
	List(ctx context.Context, page, perPage int, status string) ([]*repository.StockOutRequest, int64, error)
	Reject(ctx context.Context, id, rejectedBy string) error
}

// CreateRequestInput is the payload for creating a stock-out request
type CreateRequestInput struct {
	ProductID         string  `json:"product_id" validate:"required"`
	ProductName       string  `json:"product_name" validate:"required"`
	RequestedQuantity int     `json:"requested_quantity" validate:"required,gt=0"`
	InquiryID         *string `json:"inquiry_id,omitempty"`
}

// RequestService owns the stock-out request lifecycle outside of
// scanning and completion: creation, listing, rejection.
type RequestService struct {
	requests  RequestStore
	processed ProcessedSource
	events    EventPublisher
	logger    *logger.Logger
}

// NewRequestService creates a new request service
func NewRequestService(requests RequestStore, processed ProcessedSource, events EventPublisher, log *logger.Logger) *RequestService {
	return &RequestService{
		requests:  requests,
		processed: processed,
		events:    events,
		logger:    log.WithComponent("request"),
	}
}

// Create creates a pending stock-out request
func (s *RequestService) Create(ctx context.Context, input CreateRequestInput) (*repository.StockOutRequest, error) {
	act := actor.FromContext(ctx)

	req := &repository.StockOutRequest{
		ProductID:         input.ProductID,
		ProductName:       input.ProductName,
		RequestedQuantity: input.RequestedQuantity,
		RequesterID:       act.ID,
		InquiryID:         input.InquiryID,
	}

	if err := s.requests.Create(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// Get returns a request by ID
func (s *RequestService) Get(ctx context.Context, id string) (*repository.StockOutRequest, error) {
	return s.requests.GetByID(ctx, id)
}

// List lists requests with pagination, optionally filtered by status
func (s *RequestService) List(ctx context.Context, page, perPage int, status string) ([]*repository.StockOutRequest, int64, error) {
	return s.requests.List(ctx, page, perPage, status)
}

// Reject rejects a request that has not completed
func (s *RequestService) Reject(ctx context.Context, id string) (*repository.StockOutRequest, error) {
	act := actor.FromContext(ctx)

	if err := s.requests.Reject(ctx, id, act.ID); err != nil {
		return nil, err
	}

	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.events.PublishRequestRejected(ctx, req, act.ID)
	return req, nil
}

// ProcessedItems returns the processed items recorded for a request
func (s *RequestService) ProcessedItems(ctx context.Context, stockOutID string) ([]*repository.ProcessedItem, error) {
	if _, err := s.requests.GetByID(ctx, stockOutID); err != nil {
		return nil, err
	}
	return s.processed.ListByStockOut(ctx, stockOutID)
}

// AuditTrail returns the audit snapshots frozen at scan time for a
// request's processed items, oldest first
func (s *RequestService) AuditTrail(ctx context.Context, stockOutID string) ([]*repository.ProcessedItemAudit, error) {
	if _, err := s.requests.GetByID(ctx, stockOutID); err != nil {
		return nil, err
	}
	return s.processed.ListAuditsByStockOut(ctx, stockOutID)
}
