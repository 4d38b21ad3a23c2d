package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

// BatchItem is a physical, location-bound quantity of one product variant.
// Quantity only ever decreases through deduction; rows are zeroed, never
// deleted.
type BatchItem struct {
	ID          string     `db:"id" json:"id"`
	ProductID   string     `db:"product_id" json:"product_id"`
	ProductName string     `db:"product_name" json:"product_name"`
	Barcode     *string    `db:"barcode" json:"barcode,omitempty"`
	Quantity    int        `db:"quantity" json:"quantity"`
	BatchID     *string    `db:"batch_id" json:"batch_id,omitempty"`
	BatchNumber *string    `db:"batch_number" json:"batch_number,omitempty"`
	WarehouseID *string    `db:"warehouse_id" json:"warehouse_id,omitempty"`
	LocationID  *string    `db:"location_id" json:"location_id,omitempty"`
	Floor       *string    `db:"floor" json:"floor,omitempty"`
	Zone        *string    `db:"zone" json:"zone,omitempty"`
	Status      string     `db:"status" json:"status"`
	Color       *string    `db:"color" json:"color,omitempty"`
	Size        *string    `db:"size" json:"size,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`

	// Enrichment fields resolved from reference tables, not stored here
	WarehouseName *string `db:"warehouse_name" json:"warehouse_name,omitempty"`
	LocationCode  *string `db:"location_code" json:"location_code,omitempty"`
}

const batchItemColumns = `
	id, product_id, product_name, barcode, quantity, batch_id, batch_number,
	warehouse_id, location_id, floor, zone, status, color, size,
	created_at, updated_at
`

// UnitRepository handles batch item persistence
type UnitRepository struct {
	db *database.DB
}

// NewUnitRepository creates a new unit repository
func NewUnitRepository(db *database.DB) *UnitRepository {
	return &UnitRepository{db: db}
}

// Create creates a new batch item (stock receiving is out of scope for the
// fulfillment flow; this exists for seeding and the conversion tooling)
func (r *UnitRepository) Create(ctx context.Context, item *BatchItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.Status == "" {
		item.Status = "available"
	}

	query := `
		INSERT INTO batch_items (
			id, product_id, product_name, barcode, quantity, batch_id, batch_number,
			warehouse_id, location_id, floor, zone, status, color, size
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		item.ID, item.ProductID, item.ProductName, item.Barcode, item.Quantity,
		item.BatchID, item.BatchNumber, item.WarehouseID, item.LocationID,
		item.Floor, item.Zone, item.Status, item.Color, item.Size,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets a batch item by ID
func (r *UnitRepository) GetByID(ctx context.Context, id string) (*BatchItem, error) {
	var item BatchItem
	query := `SELECT ` + batchItemColumns + ` FROM batch_items WHERE id = $1`

	err := r.db.GetContext(ctx, &item, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("unit")
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// GetByBarcode gets a batch item by exact barcode match
func (r *UnitRepository) GetByBarcode(ctx context.Context, barcode string) (*BatchItem, error) {
	var item BatchItem
	query := `SELECT ` + batchItemColumns + ` FROM batch_items WHERE barcode = $1 ORDER BY created_at LIMIT 1`

	err := r.db.GetContext(ctx, &item, query, barcode)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("unit")
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// LookupByBarcodeJoin resolves a barcode through the raw join across the
// unit and product tables. Fallback path for rows missing from the
// denormalized product_name column.
func (r *UnitRepository) LookupByBarcodeJoin(ctx context.Context, barcode string) (*BatchItem, error) {
	var item BatchItem
	query := `
		SELECT bi.id, bi.product_id, COALESCE(p.name, bi.product_name) AS product_name,
		       bi.barcode, bi.quantity, bi.batch_id, bi.batch_number,
		       bi.warehouse_id, bi.location_id, bi.floor, bi.zone, bi.status,
		       bi.color, bi.size, bi.created_at, bi.updated_at
		FROM batch_items bi
		LEFT JOIN products p ON p.id = bi.product_id
		WHERE bi.barcode = $1
		ORDER BY bi.created_at
		LIMIT 1
	`

	err := r.db.GetContext(ctx, &item, query, barcode)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("unit")
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// SearchByBarcodeFragment finds the first unit whose barcode contains the
// given fragment. Tolerates scanner artifacts (prefix/suffix noise); the
// oldest matching unit wins.
func (r *UnitRepository) SearchByBarcodeFragment(ctx context.Context, fragment string) (*BatchItem, error) {
	var item BatchItem
	query := `
		SELECT ` + batchItemColumns + `
		FROM batch_items
		WHERE barcode ILIKE '%' || $1 || '%'
		ORDER BY created_at
		LIMIT 1
	`

	err := r.db.GetContext(ctx, &item, query, fragment)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("unit")
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListOldestAvailableTx returns units of a product with quantity
// remaining, oldest first, locked for the duration of the transaction.
// The FIFO fallback during completion consumes these in order; locationID
// narrows the candidates when the item carried location context.
func (r *UnitRepository) ListOldestAvailableTx(ctx context.Context, tx *sqlx.Tx, productID string, locationID *string) ([]*BatchItem, error) {
	var items []*BatchItem

	query := `
		SELECT id, product_id, quantity, barcode, warehouse_id, location_id
		FROM batch_items
		WHERE product_id = $1 AND quantity > 0
	`
	args := []interface{}{productID}

	if locationID != nil {
		query += ` AND location_id = $2`
		args = append(args, *locationID)
	}

	query += ` ORDER BY created_at ASC FOR UPDATE`

	if err := tx.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, err
	}
	return items, nil
}

// DeductQuantityTx decrements a unit's quantity inside a transaction.
// The decrement is conditional - it only applies when the current quantity
// covers it, so concurrent deductions can never drive the quantity
// negative or lose an update.
//
// Returns true when the decrement applied, false when the unit's current
// quantity was below the requested amount.
func (r *UnitRepository) DeductQuantityTx(ctx context.Context, tx *sqlx.Tx, unitID string, quantity int) (bool, error) {
	if quantity <= 0 {
		return false, errors.BadRequest("deduction quantity must be greater than zero")
	}

	query := `
		UPDATE batch_items
		SET quantity = quantity - $2, updated_at = NOW()
		WHERE id = $1 AND quantity >= $2
	`

	result, err := tx.ExecContext(ctx, query, unitID, quantity)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return false, appErr
		}
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// QuantityTx reads a unit's current quantity inside a transaction.
// Distinguishes "unit missing" from "unit present but short" after a
// conditional decrement did not apply.
func (r *UnitRepository) QuantityTx(ctx context.Context, tx *sqlx.Tx, unitID string) (int, error) {
	var quantity int
	err := tx.GetContext(ctx, &quantity, `SELECT quantity FROM batch_items WHERE id = $1`, unitID)
	if err == sql.ErrNoRows {
		return 0, errors.NotFound("unit")
	}
	if err != nil {
		return 0, err
	}
	return quantity, nil
}
