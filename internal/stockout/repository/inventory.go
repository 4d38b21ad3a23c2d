package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/stockflow/stockflow-backend/pkg/database"
)

// InventorySummaryRow is one row of the derived inventory read model.
// Rebuilt from batch_items by the projection consumer; business logic
// never writes it directly.
type InventorySummaryRow struct {
	ProductID     string `db:"product_id" json:"product_id"`
	ProductName   string `db:"product_name" json:"product_name"`
	TotalQuantity int    `db:"total_quantity" json:"total_quantity"`
	UnitCount     int    `db:"unit_count" json:"unit_count"`
	WarehouseID   string `db:"warehouse_id" json:"warehouse_id"`
}

// InventoryRepository maintains the dependent quantity stores that must
// reconcile with batch_items after every deduction: per-product outflow
// aggregates, per-location inventory, and the generic per-barcode record.
type InventoryRepository struct {
	db *database.DB
}

// NewInventoryRepository creates a new inventory repository
func NewInventoryRepository(db *database.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// DeductProcessedBatchTx deducts an outflow from the per-product aggregate.
// The aggregate is a derived store, so the deduction clamps at zero rather
// than failing - batch_items already enforced availability.
func (r *InventoryRepository) DeductProcessedBatchTx(ctx context.Context, tx *sqlx.Tx, productID string, warehouseID *string, quantity int) error {
	query := `
		UPDATE processed_batches
		SET quantity = GREATEST(quantity - $2, 0), updated_at = NOW()
		WHERE product_id = $1 AND ($3::uuid IS NULL OR warehouse_id = $3::uuid)
	`

	_, err := tx.ExecContext(ctx, query, productID, quantity, warehouseID)
	return err
}

// DeductLocationInventoryTx deducts from the per-(product, warehouse,
// location) inventory record. Clamped at zero for the same reason as the
// processed-batch aggregate.
func (r *InventoryRepository) DeductLocationInventoryTx(ctx context.Context, tx *sqlx.Tx, productID string, warehouseID, locationID *string, quantity int) error {
	if warehouseID == nil || locationID == nil {
		// No location identity on the scan; the location-level store has
		// nothing to reconcile against.
		return nil
	}

	query := `
		UPDATE location_inventory
		SET quantity = GREATEST(quantity - $4, 0), updated_at = NOW()
		WHERE product_id = $1 AND warehouse_id = $2 AND location_id = $3
	`

	_, err := tx.ExecContext(ctx, query, productID, *warehouseID, *locationID, quantity)
	return err
}

// DeductBarcodeInventoryTx deducts from the generic inventory-by-barcode
// record, creating it with quantity 0 when absent - the deduction already
// happened at the unit level, so a missing row starts (and stays) at zero.
func (r *InventoryRepository) DeductBarcodeInventoryTx(ctx context.Context, tx *sqlx.Tx, barcode, productID string, quantity int) error {
	query := `
		INSERT INTO inventory_by_barcode (barcode, product_id, quantity)
		VALUES ($1, $2, 0)
		ON CONFLICT (barcode)
		DO UPDATE SET quantity = GREATEST(inventory_by_barcode.quantity - $3, 0), updated_at = NOW()
	`

	_, err := tx.ExecContext(ctx, query, barcode, productID, quantity)
	return err
}

// RebuildSummary recomputes the inventory summary read model for one
// product from the authoritative batch_items rows.
func (r *InventoryRepository) RebuildSummary(ctx context.Context, productID string) error {
	query := `
		INSERT INTO inventory_summary (product_id, product_name, warehouse_id, total_quantity, unit_count, updated_at)
		SELECT product_id, MAX(product_name), COALESCE(warehouse_id, '00000000-0000-0000-0000-000000000000'), SUM(quantity), COUNT(*), NOW()
		FROM batch_items
		WHERE product_id = $1
		GROUP BY product_id, warehouse_id
		ON CONFLICT (product_id, warehouse_id)
		DO UPDATE SET
			product_name = EXCLUDED.product_name,
			total_quantity = EXCLUDED.total_quantity,
			unit_count = EXCLUDED.unit_count,
			updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query, productID)
	return err
}

// RebuildSummaryAll recomputes the summary for every product. Used by the
// projection consumer on startup and as the periodic fallback refresh.
func (r *InventoryRepository) RebuildSummaryAll(ctx context.Context) error {
	query := `
		INSERT INTO inventory_summary (product_id, product_name, warehouse_id, total_quantity, unit_count, updated_at)
		SELECT product_id, MAX(product_name), COALESCE(warehouse_id, '00000000-0000-0000-0000-000000000000'), SUM(quantity), COUNT(*), NOW()
		FROM batch_items
		GROUP BY product_id, warehouse_id
		ON CONFLICT (product_id, warehouse_id)
		DO UPDATE SET
			product_name = EXCLUDED.product_name,
			total_quantity = EXCLUDED.total_quantity,
			unit_count = EXCLUDED.unit_count,
			updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query)
	return err
}

// GetSummary reads the inventory summary read model
func (r *InventoryRepository) GetSummary(ctx context.Context) ([]*InventorySummaryRow, error) {
	var rows []*InventorySummaryRow
	query := `
		SELECT product_id, product_name, warehouse_id, total_quantity, unit_count
		FROM inventory_summary
		ORDER BY product_name
	`

	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}
	return rows, nil
}
