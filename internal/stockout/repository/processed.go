package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stockflow/stockflow-backend/pkg/database"
)

// ProcessedItem is an immutable record of one deduction event tying a
// stock-out request to one batch item. Created once per scan; never
// mutated or deleted.
type ProcessedItem struct {
	ID               string    `db:"id" json:"id"`
	StockOutID       string    `db:"stock_out_id" json:"stock_out_id"`
	StockOutDetailID *string   `db:"stock_out_detail_id" json:"stock_out_detail_id,omitempty"`
	BatchItemID      string    `db:"batch_item_id" json:"batch_item_id"`
	ProductID        string    `db:"product_id" json:"product_id"`
	Barcode          *string   `db:"barcode" json:"barcode,omitempty"`
	WarehouseID      *string   `db:"warehouse_id" json:"warehouse_id,omitempty"`
	LocationID       *string   `db:"location_id" json:"location_id,omitempty"`
	Quantity         int       `db:"quantity" json:"quantity"`
	ProcessedBy      string    `db:"processed_by" json:"processed_by"`
	ProcessedAt      time.Time `db:"processed_at" json:"processed_at"`
}

// ProcessedItemAudit is the tagged audit snapshot persisted alongside a
// processed item. It freezes the denormalized location/product/barcode
// detail at scan time, independent of later mutation of the source rows.
type ProcessedItemAudit struct {
	ProcessedItemID string  `db:"processed_item_id" json:"processed_item_id"`
	ProductName     string  `db:"product_name" json:"product_name"`
	BatchNumber     *string `db:"batch_number" json:"batch_number,omitempty"`
	WarehouseName   *string `db:"warehouse_name" json:"warehouse_name,omitempty"`
	LocationCode    *string `db:"location_code" json:"location_code,omitempty"`
	Floor           *string `db:"floor" json:"floor,omitempty"`
	Zone            *string `db:"zone" json:"zone,omitempty"`
	Barcode         *string `db:"barcode" json:"barcode,omitempty"`
	Note            *string `db:"note" json:"note,omitempty"`
}

// batch_item_id is NULL for legacy items deducted through the FIFO
// fallback; it reads back as "" so the service layer keeps a single
// empty-means-no-unit discriminator.
const processedItemColumns = `
	id, stock_out_id, stock_out_detail_id, COALESCE(batch_item_id::text, '') AS batch_item_id,
	product_id, barcode, warehouse_id, location_id, quantity, processed_by, processed_at
`

// ProcessedItemRepository handles processed item persistence
type ProcessedItemRepository struct {
	db *database.DB
}

// NewProcessedItemRepository creates a new processed item repository
func NewProcessedItemRepository(db *database.DB) *ProcessedItemRepository {
	return &ProcessedItemRepository{db: db}
}

// CreateWithAudit persists one processed item and its audit snapshot in a
// single transaction. The pair is durable together or not at all.
func (r *ProcessedItemRepository) CreateWithAudit(ctx context.Context, item *ProcessedItem, audit *ProcessedItemAudit) error {
	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := r.InsertTx(ctx, tx, item); err != nil {
			return err
		}
		audit.ProcessedItemID = item.ID
		return r.InsertAuditTx(ctx, tx, audit)
	})
}

// InsertTx inserts one processed item within a transaction
func (r *ProcessedItemRepository) InsertTx(ctx context.Context, tx *sqlx.Tx, item *ProcessedItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.ProcessedAt.IsZero() {
		item.ProcessedAt = time.Now().UTC()
	}

	// Legacy items carry no unit identity; the UUID column takes NULL,
	// never the empty string.
	var batchItemID *string
	if item.BatchItemID != "" {
		batchItemID = &item.BatchItemID
	}

	query := `
		INSERT INTO processed_items (
			id, stock_out_id, stock_out_detail_id, batch_item_id, product_id,
			barcode, warehouse_id, location_id, quantity, processed_by, processed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := tx.ExecContext(ctx, query,
		item.ID, item.StockOutID, item.StockOutDetailID, batchItemID,
		item.ProductID, item.Barcode, item.WarehouseID, item.LocationID,
		item.Quantity, item.ProcessedBy, item.ProcessedAt,
	)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// InsertAuditTx inserts the audit snapshot within a transaction
func (r *ProcessedItemRepository) InsertAuditTx(ctx context.Context, tx *sqlx.Tx, audit *ProcessedItemAudit) error {
	query := `
		INSERT INTO processed_item_audits (
			processed_item_id, product_name, batch_number, warehouse_name,
			location_code, floor, zone, barcode, note
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := tx.ExecContext(ctx, query,
		audit.ProcessedItemID, audit.ProductName, audit.BatchNumber,
		audit.WarehouseName, audit.LocationCode, audit.Floor, audit.Zone,
		audit.Barcode, audit.Note,
	)
	return err
}

// ListByStockOut lists the processed items recorded for a request
func (r *ProcessedItemRepository) ListByStockOut(ctx context.Context, stockOutID string) ([]*ProcessedItem, error) {
	var items []*ProcessedItem
	query := `
		SELECT ` + processedItemColumns + `
		FROM processed_items
		WHERE stock_out_id = $1
		ORDER BY processed_at
	`

	if err := r.db.SelectContext(ctx, &items, query, stockOutID); err != nil {
		return nil, err
	}
	return items, nil
}

// SumForStockOut returns the total processed quantity for a request
func (r *ProcessedItemRepository) SumForStockOut(ctx context.Context, stockOutID string) (int, error) {
	var total int
	query := `SELECT COALESCE(SUM(quantity), 0) FROM processed_items WHERE stock_out_id = $1`

	if err := r.db.GetContext(ctx, &total, query, stockOutID); err != nil {
		return 0, err
	}
	return total, nil
}

// SumForUnit returns the quantity already processed for one batch item
// within one request. Bounds repeat scans of the same barcode.
func (r *ProcessedItemRepository) SumForUnit(ctx context.Context, stockOutID, batchItemID string) (int, error) {
	var total int
	query := `
		SELECT COALESCE(SUM(quantity), 0)
		FROM processed_items
		WHERE stock_out_id = $1 AND batch_item_id = $2
	`

	if err := r.db.GetContext(ctx, &total, query, stockOutID, batchItemID); err != nil {
		return 0, err
	}
	return total, nil
}

// ListAuditsByStockOut returns the audit snapshots for a request's
// processed items, oldest first
func (r *ProcessedItemRepository) ListAuditsByStockOut(ctx context.Context, stockOutID string) ([]*ProcessedItemAudit, error) {
	var audits []*ProcessedItemAudit
	query := `
		SELECT a.processed_item_id, a.product_name, a.batch_number, a.warehouse_name,
		       a.location_code, a.floor, a.zone, a.barcode, a.note
		FROM processed_item_audits a
		JOIN processed_items pi ON pi.id = a.processed_item_id
		WHERE pi.stock_out_id = $1
		ORDER BY pi.processed_at
	`

	if err := r.db.SelectContext(ctx, &audits, query, stockOutID); err != nil {
		return nil, err
	}
	return audits, nil
}
