package messaging

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types
const (
	// Stock-out events
	EventItemProcessed        = "stockout.item.processed"
	EventRequestCompleted     = "stockout.request.completed"
	EventRequestRejected      = "stockout.request.rejected"
	EventReservationCreated   = "stockout.reservation.created"
	EventReservationConverted = "stockout.reservation.converted"
	EventReservationReleased  = "stockout.reservation.released"

	// Inventory events
	EventStockDeducted = "inventory.stock.deducted"
)

// Exchange names
const (
	ExchangeStockOutEvents  = "stockout.events"
	ExchangeInventoryEvents = "inventory.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// ItemProcessedEvent is published after one scan event is durably recorded
type ItemProcessedEvent struct {
	StockOutID  string `json:"stock_out_id"`
	BatchItemID string `json:"batch_item_id"`
	ProductID   string `json:"product_id"`
	Barcode     string `json:"barcode"`
	Quantity    int    `json:"quantity"`
	ProcessedBy string `json:"processed_by"`
	Progress    int    `json:"progress"`
}

// RequestCompletedEvent is published when a fulfillment request is completed
type RequestCompletedEvent struct {
	StockOutID    string `json:"stock_out_id"`
	ProductID     string `json:"product_id"`
	TotalQuantity int    `json:"total_quantity"`
	ItemCount     int    `json:"item_count"`
	CompletedBy   string `json:"completed_by"`
}

// RequestRejectedEvent is published when a fulfillment request is rejected
type RequestRejectedEvent struct {
	StockOutID        string `json:"stock_out_id"`
	ProductID         string `json:"product_id"`
	RequestedQuantity int    `json:"requested_quantity"`
	RejectedBy        string `json:"rejected_by"`
}

// StockDeductedEvent is published for every unit whose on-hand quantity
// was decremented. The projection consumer rebuilds the inventory summary
// for the affected products on receipt.
type StockDeductedEvent struct {
	BatchItemID string `json:"batch_item_id"`
	ProductID   string `json:"product_id"`
	Barcode     string `json:"barcode,omitempty"`
	WarehouseID string `json:"warehouse_id,omitempty"`
	LocationID  string `json:"location_id,omitempty"`
	Quantity    int    `json:"quantity"`
	StockOutID  string `json:"stock_out_id"`
}

// ReservationEvent is published on reservation lifecycle transitions
type ReservationEvent struct {
	ReservationID string `json:"reservation_id"`
	ProductID     string `json:"product_id"`
	WarehouseID   string `json:"warehouse_id"`
	Quantity      int    `json:"quantity"`
	Status        string `json:"status"`
	StockOutID    string `json:"stock_out_id,omitempty"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), time.Now().Nanosecond()%10000)
}
