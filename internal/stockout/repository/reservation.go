package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

// Reservation statuses
const (
	ReservationStatusActive    = "active"
	ReservationStatusConverted = "converted_to_stockout"
	ReservationStatusReleased  = "released"
)

// Reservation is a hold against future fulfillment. It carries no
// quantity-deduction side effects of its own.
type Reservation struct {
	ID          string    `db:"id" json:"id"`
	ProductID   string    `db:"product_id" json:"product_id"`
	ProductName string    `db:"product_name" json:"product_name"`
	WarehouseID string    `db:"warehouse_id" json:"warehouse_id"`
	Quantity    int       `db:"quantity" json:"quantity"`
	Status      string    `db:"status" json:"status"`
	StockOutID  *string   `db:"stock_out_id" json:"stock_out_id,omitempty"`
	CreatedBy   string    `db:"created_by" json:"created_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

const reservationColumns = `
	id, product_id, product_name, warehouse_id, quantity, status,
	stock_out_id, created_by, created_at, updated_at
`

// ReservationRepository handles reservation persistence
type ReservationRepository struct {
	db *database.DB
}

// NewReservationRepository creates a new reservation repository
func NewReservationRepository(db *database.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// Create creates a new reservation
func (r *ReservationRepository) Create(ctx context.Context, res *Reservation) error {
	if res.ID == "" {
		res.ID = uuid.New().String()
	}
	if res.Status == "" {
		res.Status = ReservationStatusActive
	}

	query := `
		INSERT INTO reservations (
			id, product_id, product_name, warehouse_id, quantity, status, stock_out_id, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		res.ID, res.ProductID, res.ProductName, res.WarehouseID,
		res.Quantity, res.Status, res.StockOutID, res.CreatedBy,
	).Scan(&res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets a reservation by ID
func (r *ReservationRepository) GetByID(ctx context.Context, id string) (*Reservation, error) {
	var res Reservation
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`

	err := r.db.GetContext(ctx, &res, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("reservation")
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// List lists reservations, optionally filtered by status
func (r *ReservationRepository) List(ctx context.Context, page, perPage int, status string) ([]*Reservation, int64, error) {
	var total int64
	var reservations []*Reservation

	countQuery := `SELECT COUNT(*) FROM reservations`
	args := []interface{}{}

	if status != "" {
		countQuery += ` WHERE status = $1`
		args = append(args, status)
	}

	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	query := `SELECT ` + reservationColumns + ` FROM reservations`

	if status != "" {
		query += ` WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = append(args, perPage, offset)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`
		args = append(args, perPage, offset)
	}

	if err := r.db.SelectContext(ctx, &reservations, query, args...); err != nil {
		return nil, 0, err
	}

	return reservations, total, nil
}

// Update updates a reservation's mutable fields while it is still active
func (r *ReservationRepository) Update(ctx context.Context, res *Reservation) error {
	query := `
		UPDATE reservations
		SET product_id = $2, product_name = $3, warehouse_id = $4, quantity = $5, updated_at = NOW()
		WHERE id = $1 AND status = $6
	`

	result, err := r.db.ExecContext(ctx, query,
		res.ID, res.ProductID, res.ProductName, res.WarehouseID, res.Quantity,
		ReservationStatusActive,
	)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.Conflict("only active reservations can be updated")
	}
	return nil
}

// Convert transitions an active reservation to converted_to_stockout and
// severs the placeholder stock_out link. The conditional status check makes
// the transition race-safe: only one caller wins.
func (r *ReservationRepository) Convert(ctx context.Context, id string) (*Reservation, error) {
	query := `
		UPDATE reservations
		SET status = $2, stock_out_id = NULL, updated_at = NOW()
		WHERE id = $1 AND status = $3
		RETURNING ` + reservationColumns

	var res Reservation
	err := r.db.GetContext(ctx, &res, query, id, ReservationStatusConverted, ReservationStatusActive)
	if err == sql.ErrNoRows {
		// Either missing or not active; report which
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, errors.Conflict("only active reservations can be converted")
	}
	if err != nil {
		return nil, err
	}

	return &res, nil
}

// Release transitions an active reservation to released
func (r *ReservationRepository) Release(ctx context.Context, id string) (*Reservation, error) {
	query := `
		UPDATE reservations
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
		RETURNING ` + reservationColumns

	var res Reservation
	err := r.db.GetContext(ctx, &res, query, id, ReservationStatusReleased, ReservationStatusActive)
	if err == sql.ErrNoRows {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, errors.Conflict("only active reservations can be released")
	}
	if err != nil {
		return nil, err
	}

	return &res, nil
}
