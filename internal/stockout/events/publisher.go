package events

import (
	"context"

	"github.com/stockflow/stockflow-backend/internal/stockout/repository"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/messaging"
)

// StockOutEventPublisher publishes stock-out and inventory events
type StockOutEventPublisher struct {
	stockout  *messaging.Publisher
	inventory *messaging.Publisher
	logger    *logger.Logger
}

// NewStockOutEventPublisher creates a new stock-out event publisher
func NewStockOutEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*StockOutEventPublisher, error) {
	stockout, err := messaging.NewPublisher(rmq, messaging.ExchangeStockOutEvents, "stockout-service", log)
	if err != nil {
		return nil, err
	}

	inventory, err := messaging.NewPublisher(rmq, messaging.ExchangeInventoryEvents, "stockout-service", log)
	if err != nil {
		return nil, err
	}

	return &StockOutEventPublisher{
		stockout:  stockout,
		inventory: inventory,
		logger:    log,
	}, nil
}

// PublishItemProcessed publishes an item processed event
func (p *StockOutEventPublisher) PublishItemProcessed(ctx context.Context, item *repository.ProcessedItem, progress int) {
	if p == nil {
		return
	}

	barcode := ""
	if item.Barcode != nil {
		barcode = *item.Barcode
	}

	data := messaging.ItemProcessedEvent{
		StockOutID:  item.StockOutID,
		BatchItemID: item.BatchItemID,
		ProductID:   item.ProductID,
		Barcode:     barcode,
		Quantity:    item.Quantity,
		ProcessedBy: item.ProcessedBy,
		Progress:    progress,
	}

	if err := p.stockout.Publish(ctx, messaging.EventItemProcessed, data); err != nil {
		p.logger.Error().Err(err).Str("stock_out_id", item.StockOutID).Msg("failed to publish item processed event")
	}
}

// PublishRequestCompleted publishes a request completed event
func (p *StockOutEventPublisher) PublishRequestCompleted(ctx context.Context, req *repository.StockOutRequest, totalQuantity, itemCount int, completedBy string) {
	if p == nil {
		return
	}

	data := messaging.RequestCompletedEvent{
		StockOutID:    req.ID,
		ProductID:     req.ProductID,
		TotalQuantity: totalQuantity,
		ItemCount:     itemCount,
		CompletedBy:   completedBy,
	}

	if err := p.stockout.Publish(ctx, messaging.EventRequestCompleted, data); err != nil {
		p.logger.Error().Err(err).Str("stock_out_id", req.ID).Msg("failed to publish request completed event")
	}
}

// PublishRequestRejected publishes a request rejected event
func (p *StockOutEventPublisher) PublishRequestRejected(ctx context.Context, req *repository.StockOutRequest, rejectedBy string) {
	if p == nil {
		return
	}

	data := messaging.RequestRejectedEvent{
		StockOutID:        req.ID,
		ProductID:         req.ProductID,
		RequestedQuantity: req.RequestedQuantity,
		RejectedBy:        rejectedBy,
	}

	if err := p.stockout.Publish(ctx, messaging.EventRequestRejected, data); err != nil {
		p.logger.Error().Err(err).Str("stock_out_id", req.ID).Msg("failed to publish request rejected event")
	}
}

// PublishStockDeducted publishes a stock deducted event for one unit.
// The projection consumer rebuilds the inventory summary on receipt.
func (p *StockOutEventPublisher) PublishStockDeducted(ctx context.Context, d repository.Deduction, stockOutID string) {
	if p == nil {
		return
	}

	barcode := ""
	if d.Barcode != nil {
		barcode = *d.Barcode
	}
	warehouseID := ""
	if d.WarehouseID != nil {
		warehouseID = *d.WarehouseID
	}
	locationID := ""
	if d.LocationID != nil {
		locationID = *d.LocationID
	}

	data := messaging.StockDeductedEvent{
		BatchItemID: d.UnitID,
		ProductID:   d.ProductID,
		Barcode:     barcode,
		WarehouseID: warehouseID,
		LocationID:  locationID,
		Quantity:    d.Quantity,
		StockOutID:  stockOutID,
	}

	if err := p.inventory.Publish(ctx, messaging.EventStockDeducted, data); err != nil {
		p.logger.Error().Err(err).Str("product_id", d.ProductID).Msg("failed to publish stock deducted event")
	}
}

// PublishReservationEvent publishes a reservation lifecycle event
func (p *StockOutEventPublisher) PublishReservationEvent(ctx context.Context, eventType string, res *repository.Reservation) {
	if p == nil {
		return
	}

	stockOutID := ""
	if res.StockOutID != nil {
		stockOutID = *res.StockOutID
	}

	data := messaging.ReservationEvent{
		ReservationID: res.ID,
		ProductID:     res.ProductID,
		WarehouseID:   res.WarehouseID,
		Quantity:      res.Quantity,
		Status:        res.Status,
		StockOutID:    stockOutID,
	}

	if err := p.stockout.Publish(ctx, eventType, data); err != nil {
		p.logger.Error().Err(err).Str("reservation_id", res.ID).Msg("failed to publish reservation event")
	}
}
