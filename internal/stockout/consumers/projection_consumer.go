package consumers

import (
	"context"

	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/messaging"
)

const projectionQueue = "stockout.inventory-projection"

// SummaryStore is the projection surface the consumer maintains
type SummaryStore interface {
	RebuildSummary(ctx context.Context, productID string) error
	RebuildSummaryAll(ctx context.Context) error
}

// ProjectionConsumer rebuilds the inventory summary read model from
// deduction events. The summary is derived state: it is recomputed from
// batch_items on every event rather than incrementally patched, so a
// missed event heals on the next one.
type ProjectionConsumer struct {
	consumer  *messaging.Consumer
	inventory SummaryStore
	logger    *logger.Logger
}

// NewProjectionConsumer creates the projection consumer
func NewProjectionConsumer(rmq *messaging.RabbitMQ, inventory SummaryStore, log *logger.Logger) (*ProjectionConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, projectionQueue, log)
	if err != nil {
		return nil, err
	}

	c := &ProjectionConsumer{
		consumer:  consumer,
		inventory: inventory,
		logger:    log.WithComponent("projection-consumer"),
	}

	if err := consumer.Subscribe(messaging.ExchangeInventoryEvents, "inventory.stock.*"); err != nil {
		return nil, err
	}
	consumer.RegisterHandler(messaging.EventStockDeducted, c.handleStockDeducted)

	return c, nil
}

// Start resyncs the whole projection, then begins consuming deduction
// events. The resync is best-effort: the summary is derived state and the
// event stream converges it anyway.
func (c *ProjectionConsumer) Start(ctx context.Context) error {
	if err := c.Resync(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("startup summary resync failed")
	}
	return c.consumer.Start(ctx)
}

// Resync recomputes the summary for every product from batch_items.
// Run at startup so events missed while the consumer was down cannot
// leave the projection stale.
func (c *ProjectionConsumer) Resync(ctx context.Context) error {
	return c.inventory.RebuildSummaryAll(ctx)
}

func (c *ProjectionConsumer) handleStockDeducted(ctx context.Context, event *messaging.Event) error {
	var data messaging.StockDeductedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	if err := c.inventory.RebuildSummary(ctx, data.ProductID); err != nil {
		return err
	}

	c.logger.Debug().
		Str("product_id", data.ProductID).
		Str("stock_out_id", data.StockOutID).
		Msg("inventory summary rebuilt")

	return nil
}
