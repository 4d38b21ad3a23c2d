package testutil

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// FixtureFactory seeds domain rows for integration tests
type FixtureFactory struct {
	db      *sqlx.DB
	counter int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory(db *sqlx.DB) *FixtureFactory {
	return &FixtureFactory{db: db}
}

func (f *FixtureFactory) next() int {
	f.counter++
	return f.counter
}

// CreateProduct inserts a product and returns its ID
func (f *FixtureFactory) CreateProduct(ctx context.Context, name string) (string, error) {
	id := uuid.New().String()
	if name == "" {
		name = fmt.Sprintf("Product %d", f.next())
	}
	_, err := f.db.ExecContext(ctx,
		`INSERT INTO products (id, name) VALUES ($1, $2)`, id, name)
	return id, err
}

// CreateWarehouse inserts a warehouse and returns its ID
func (f *FixtureFactory) CreateWarehouse(ctx context.Context, name string) (string, error) {
	id := uuid.New().String()
	if name == "" {
		name = fmt.Sprintf("Warehouse %d", f.next())
	}
	_, err := f.db.ExecContext(ctx,
		`INSERT INTO warehouses (id, name) VALUES ($1, $2)`, id, name)
	return id, err
}

// CreateLocation inserts a location and returns its ID
func (f *FixtureFactory) CreateLocation(ctx context.Context, warehouseID, code string) (string, error) {
	id := uuid.New().String()
	if code == "" {
		code = fmt.Sprintf("LOC-%d", f.next())
	}
	_, err := f.db.ExecContext(ctx,
		`INSERT INTO locations (id, warehouse_id, code) VALUES ($1, $2, $3)`, id, warehouseID, code)
	return id, err
}

// BatchItemFixture describes a unit to seed
type BatchItemFixture struct {
	ProductID   string
	ProductName string
	Barcode     *string
	Quantity    int
	WarehouseID *string
	LocationID  *string
}

// CreateBatchItem inserts a batch item and returns its ID
func (f *FixtureFactory) CreateBatchItem(ctx context.Context, fx BatchItemFixture) (string, error) {
	id := uuid.New().String()
	if fx.ProductName == "" {
		fx.ProductName = fmt.Sprintf("Product %d", f.next())
	}
	_, err := f.db.ExecContext(ctx, `
		INSERT INTO batch_items (id, product_id, product_name, barcode, quantity, warehouse_id, location_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, fx.ProductID, fx.ProductName, fx.Barcode, fx.Quantity, fx.WarehouseID, fx.LocationID)
	return id, err
}

// CreateRequest inserts a stock-out request with one detail row and
// returns the request ID
func (f *FixtureFactory) CreateRequest(ctx context.Context, productID, productName string, quantity int) (string, error) {
	id := uuid.New().String()
	_, err := f.db.ExecContext(ctx, `
		INSERT INTO stock_out_requests (id, product_id, product_name, requested_quantity, remaining_quantity, status, requester_id)
		VALUES ($1, $2, $3, $4, $4, 'pending', 'test-user')`,
		id, productID, productName, quantity)
	if err != nil {
		return "", err
	}

	_, err = f.db.ExecContext(ctx, `
		INSERT INTO stock_out_details (id, stock_out_id, product_id, quantity, processed_quantity)
		VALUES ($1, $2, $3, $4, 0)`,
		uuid.New().String(), id, productID, quantity)
	return id, err
}
