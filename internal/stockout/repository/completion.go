package repository

import (
	"context"
	stderrors "errors"

	"github.com/jmoiron/sqlx"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

// Deduction describes one quantity outflow to apply during completion.
// Exactly one of the two paths applies per deduction: unit-identified
// (authoritative, barcode-resolved) or FIFO (legacy rows without barcode
// identity). An event never takes both.
type Deduction struct {
	UnitID      string
	ProductID   string
	Barcode     *string
	WarehouseID *string
	LocationID  *string
	Quantity    int
	UseFIFO     bool
}

// CompletionBatch is the atomic unit of work for completing a request:
// the genuinely-new processed items, their audit snapshots (parallel
// slice), and the deductions they imply.
type CompletionBatch struct {
	StockOutID  string
	CompletedBy string
	Items       []*ProcessedItem
	Audits      []*ProcessedItemAudit
	Deductions  []Deduction
}

// ErrNotCompletable reports that the conditional status flip did not
// apply: the request was already completed or rejected by the time the
// transaction ran. Callers re-read the request to tell the two apart.
var ErrNotCompletable = stderrors.New("request not completable")

// CompletionRepository executes the multi-table deduction of a completion
// as one database transaction. Either every processed item, audit row, and
// quantity decrement lands, or none do - the partial-application hazard
// (quantity deducted but event unrecorded, or vice versa) cannot occur.
type CompletionRepository struct {
	db        *database.DB
	units     *UnitRepository
	processed *ProcessedItemRepository
	inventory *InventoryRepository
}

// NewCompletionRepository creates a new completion repository
func NewCompletionRepository(db *database.DB, units *UnitRepository, processed *ProcessedItemRepository, inventory *InventoryRepository) *CompletionRepository {
	return &CompletionRepository{
		db:        db,
		units:     units,
		processed: processed,
		inventory: inventory,
	}
}

// ApplyCompletion persists the batch atomically. The conditional status
// flip runs first inside the transaction, so exactly one caller completes
// a request; a loser's inserts and decrements never commit.
func (r *CompletionRepository) ApplyCompletion(ctx context.Context, batch *CompletionBatch) error {
	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := r.markCompletedTx(ctx, tx, batch.StockOutID, batch.CompletedBy); err != nil {
			return err
		}

		// Append-only event rows next; the quantity decrements below
		// roll back with them on any failure.
		for i, item := range batch.Items {
			if err := r.processed.InsertTx(ctx, tx, item); err != nil {
				return err
			}
			if i < len(batch.Audits) && batch.Audits[i] != nil {
				batch.Audits[i].ProcessedItemID = item.ID
				if err := r.processed.InsertAuditTx(ctx, tx, batch.Audits[i]); err != nil {
					return err
				}
			}
		}

		for _, d := range batch.Deductions {
			if d.UseFIFO {
				if err := r.deductFIFO(ctx, tx, d); err != nil {
					return err
				}
			} else {
				if err := r.deductUnit(ctx, tx, d); err != nil {
					return err
				}
			}

			if err := r.inventory.DeductProcessedBatchTx(ctx, tx, d.ProductID, d.WarehouseID, d.Quantity); err != nil {
				return err
			}
			if err := r.inventory.DeductLocationInventoryTx(ctx, tx, d.ProductID, d.WarehouseID, d.LocationID, d.Quantity); err != nil {
				return err
			}
			if d.Barcode != nil && *d.Barcode != "" {
				if err := r.inventory.DeductBarcodeInventoryTx(ctx, tx, *d.Barcode, d.ProductID, d.Quantity); err != nil {
					return err
				}
			}
		}

		return nil
	})
}

// markCompletedTx flips the request to completed, conditional on it not
// already being completed or rejected.
func (r *CompletionRepository) markCompletedTx(ctx context.Context, tx *sqlx.Tx, stockOutID, completedBy string) error {
	query := `
		UPDATE stock_out_requests
		SET status = $2, remaining_quantity = 0,
		    processed_at = NOW(), processed_by = $3, updated_at = NOW()
		WHERE id = $1 AND status NOT IN ($2, $4)
	`

	result, err := tx.ExecContext(ctx, query, stockOutID,
		RequestStatusCompleted, completedBy, RequestStatusRejected)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotCompletable
	}
	return nil
}

// deductUnit applies a conditional decrement against one identified unit.
func (r *CompletionRepository) deductUnit(ctx context.Context, tx *sqlx.Tx, d Deduction) error {
	ok, err := r.units.DeductQuantityTx(ctx, tx, d.UnitID, d.Quantity)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	available, err := r.units.QuantityTx(ctx, tx, d.UnitID)
	if err != nil {
		return err
	}
	return errors.InsufficientInventory(d.ProductID, d.Quantity, available)
}

// deductFIFO consumes candidate units oldest-first until the needed
// quantity is exhausted. Candidates are locked for the duration of the
// transaction so concurrent completions serialize on them.
func (r *CompletionRepository) deductFIFO(ctx context.Context, tx *sqlx.Tx, d Deduction) error {
	candidates, err := r.units.ListOldestAvailableTx(ctx, tx, d.ProductID, d.LocationID)
	if err != nil {
		return err
	}

	remaining := d.Quantity
	available := 0
	for _, c := range candidates {
		available += c.Quantity
	}
	if available < remaining {
		return errors.InsufficientInventory(d.ProductID, d.Quantity, available)
	}

	for _, c := range candidates {
		if remaining <= 0 {
			break
		}

		take := remaining
		if take > c.Quantity {
			take = c.Quantity
		}

		ok, err := r.units.DeductQuantityTx(ctx, tx, c.ID, take)
		if err != nil {
			return err
		}
		if !ok {
			// Row moved under us despite the lock; treat as shortage
			// rather than guessing.
			return errors.InsufficientInventory(d.ProductID, d.Quantity, available)
		}

		remaining -= take
	}

	if remaining > 0 {
		return errors.InsufficientInventory(d.ProductID, d.Quantity, available)
	}
	return nil
}
