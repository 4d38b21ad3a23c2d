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

// Request statuses
const (
	RequestStatusPending            = "pending"
	RequestStatusInProgress         = "in_progress"
	RequestStatusReadyForCompletion = "ready_for_completion"
	RequestStatusCompleted          = "completed"
	RequestStatusRejected           = "rejected"
)

// StockOutRequest is a request to ship a quantity of a product out of
// inventory. remaining_quantity mirrors requested minus processed, clamped
// at zero.
type StockOutRequest struct {
	ID                string     `db:"id" json:"id"`
	ProductID         string     `db:"product_id" json:"product_id"`
	ProductName       string     `db:"product_name" json:"product_name"`
	RequestedQuantity int        `db:"requested_quantity" json:"requested_quantity"`
	RemainingQuantity *int       `db:"remaining_quantity" json:"remaining_quantity,omitempty"`
	Status            string     `db:"status" json:"status"`
	RequesterID       string     `db:"requester_id" json:"requester_id"`
	InquiryID         *string    `db:"inquiry_id" json:"inquiry_id,omitempty"`
	ProcessedAt       *time.Time `db:"processed_at" json:"processed_at,omitempty"`
	ProcessedBy       *string    `db:"processed_by" json:"processed_by,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// StockOutDetail is a per-product detail row of a request
type StockOutDetail struct {
	ID                string     `db:"id" json:"id"`
	StockOutID        string     `db:"stock_out_id" json:"stock_out_id"`
	ProductID         string     `db:"product_id" json:"product_id"`
	Quantity          int        `db:"quantity" json:"quantity"`
	ProcessedQuantity int        `db:"processed_quantity" json:"processed_quantity"`
	ProcessedBy       *string    `db:"processed_by" json:"processed_by,omitempty"`
	ProcessedAt       *time.Time `db:"processed_at" json:"processed_at,omitempty"`
}

const requestColumns = `
	id, product_id, product_name, requested_quantity, remaining_quantity,
	status, requester_id, inquiry_id, processed_at, processed_by,
	created_at, updated_at
`

// RequestRepository handles stock-out request persistence
type RequestRepository struct {
	db *database.DB
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *database.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create creates a new stock-out request with one detail row. Both rows
// land in one transaction; a request without its detail row cannot exist.
func (r *RequestRepository) Create(ctx context.Context, req *StockOutRequest) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.Status == "" {
		req.Status = RequestStatusPending
	}
	if req.RemainingQuantity == nil {
		remaining := req.RequestedQuantity
		req.RemainingQuantity = &remaining
	}

	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO stock_out_requests (
				id, product_id, product_name, requested_quantity, remaining_quantity,
				status, requester_id, inquiry_id
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING created_at, updated_at
		`

		err := tx.QueryRowxContext(ctx, query,
			req.ID, req.ProductID, req.ProductName, req.RequestedQuantity,
			req.RemainingQuantity, req.Status, req.RequesterID, req.InquiryID,
		).Scan(&req.CreatedAt, &req.UpdatedAt)
		if err != nil {
			if appErr := database.MapPQError(err); appErr != nil {
				return appErr
			}
			return err
		}

		detailQuery := `
			INSERT INTO stock_out_details (id, stock_out_id, product_id, quantity, processed_quantity)
			VALUES ($1, $2, $3, $4, 0)
		`
		_, err = tx.ExecContext(ctx, detailQuery, uuid.New().String(), req.ID, req.ProductID, req.RequestedQuantity)
		return err
	})
}

// GetByID gets a request by ID
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*StockOutRequest, error) {
	var req StockOutRequest
	query := `SELECT ` + requestColumns + ` FROM stock_out_requests WHERE id = $1`

	err := r.db.GetContext(ctx, &req, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("stock-out request")
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// List lists requests with pagination, optionally filtered by status
func (r *RequestRepository) List(ctx context.Context, page, perPage int, status string) ([]*StockOutRequest, int64, error) {
	var total int64
	var requests []*StockOutRequest

	countQuery := `SELECT COUNT(*) FROM stock_out_requests`
	args := []interface{}{}

	if status != "" {
		countQuery += ` WHERE status = $1`
		args = append(args, status)
	}

	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	query := `SELECT ` + requestColumns + ` FROM stock_out_requests`

	if status != "" {
		query += ` WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = append(args, perPage, offset)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`
		args = append(args, perPage, offset)
	}

	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

// UpdateStatus sets the request status and keeps remaining_quantity in sync
func (r *RequestRepository) UpdateStatus(ctx context.Context, id, status string, remaining *int) error {
	query := `
		UPDATE stock_out_requests
		SET status = $2,
		    remaining_quantity = COALESCE($3, remaining_quantity),
		    updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, status, remaining)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("stock-out request")
	}
	return nil
}

// Reject rejects a request that has not yet completed
func (r *RequestRepository) Reject(ctx context.Context, id, rejectedBy string) error {
	query := `
		UPDATE stock_out_requests
		SET status = $2, processed_at = NOW(), processed_by = $3, updated_at = NOW()
		WHERE id = $1 AND status NOT IN ($4, $5)
	`

	result, err := r.db.ExecContext(ctx, query, id, RequestStatusRejected, rejectedBy,
		RequestStatusCompleted, RequestStatusRejected)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.Conflict("request cannot be rejected in its current status")
	}
	return nil
}

// GetDetails gets the detail rows of a request
func (r *RequestRepository) GetDetails(ctx context.Context, stockOutID string) ([]*StockOutDetail, error) {
	var details []*StockOutDetail
	query := `
		SELECT id, stock_out_id, product_id, quantity, processed_quantity, processed_by, processed_at
		FROM stock_out_details
		WHERE stock_out_id = $1
		ORDER BY id
	`

	if err := r.db.SelectContext(ctx, &details, query, stockOutID); err != nil {
		return nil, err
	}
	return details, nil
}

// UpdateDetailProcessed records the total processed quantity on a detail row
func (r *RequestRepository) UpdateDetailProcessed(ctx context.Context, detailID string, processedQuantity int, processedBy string) error {
	query := `
		UPDATE stock_out_details
		SET processed_quantity = $2, processed_by = $3, processed_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, detailID, processedQuantity, processedBy)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("stock-out detail")
	}
	return nil
}

// MarkInquiryCompleted flips the linked customer inquiry to completed.
// Best-effort from the orchestrator's perspective; callers log failures.
func (r *RequestRepository) MarkInquiryCompleted(ctx context.Context, inquiryID string) error {
	query := `UPDATE customer_inquiries SET status = 'completed', updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, inquiryID)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("customer inquiry")
	}
	return nil
}
