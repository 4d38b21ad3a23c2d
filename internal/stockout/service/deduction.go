package service

import (
	"github.com/stockflow/stockflow-backend/internal/stockout/repository"
)

// Scan rejection reasons, surfaced to the operator verbatim
const (
	ReasonUnitNotFound     = "no unit matches the scanned barcode"
	ReasonProductMismatch  = "scanned unit belongs to a different product"
	ReasonNoAvailableStock = "scanned unit has no available quantity"
	ReasonAlreadyProcessed = "scanned unit is already fully processed"
	ReasonRequestClosed    = "request is already finalized"
	ReasonNothingRemaining = "no remaining quantity to fulfill"
)

// ScanValidation is the outcome of validating a scan against a request.
// When Valid, MaxQuantity is the largest deduction the scan may record and
// AlreadyProcessed is what this request already took from the unit.
type ScanValidation struct {
	Valid            bool                  `json:"valid"`
	Reason           string                `json:"reason,omitempty"`
	Unit             *repository.BatchItem `json:"unit,omitempty"`
	MaxQuantity      int                   `json:"max_quantity"`
	AlreadyProcessed int                   `json:"already_processed"`
}

// MaxDeductible computes the largest quantity one scan of a unit may
// deduct: bounded by the unit's on-hand quantity net of what this request
// already took from it, and by what the request still needs.
func MaxDeductible(unit *repository.BatchItem, remaining, takenFromUnit int) int {
	unitHeadroom := unit.Quantity - takenFromUnit
	if unitHeadroom < 0 {
		unitHeadroom = 0
	}
	if remaining < 0 {
		remaining = 0
	}
	if unitHeadroom < remaining {
		return unitHeadroom
	}
	return remaining
}

// ValidateScan checks a resolved unit against a request's state. Checks
// run in a fixed order so the operator always sees the most specific
// failure first: missing unit, wrong product, empty unit, unit already
// consumed by this request, finalized request, exhausted request.
func ValidateScan(unit *repository.BatchItem, req *repository.StockOutRequest, processedTotal, takenFromUnit int) ScanValidation {
	if unit == nil {
		return ScanValidation{Reason: ReasonUnitNotFound}
	}

	if unit.ProductID != req.ProductID {
		return ScanValidation{Reason: ReasonProductMismatch, Unit: unit}
	}

	if unit.Quantity <= 0 {
		return ScanValidation{Reason: ReasonNoAvailableStock, Unit: unit}
	}

	if unit.Quantity-takenFromUnit <= 0 {
		return ScanValidation{Reason: ReasonAlreadyProcessed, Unit: unit, AlreadyProcessed: takenFromUnit}
	}

	if req.Status == repository.RequestStatusCompleted || req.Status == repository.RequestStatusRejected {
		return ScanValidation{Reason: ReasonRequestClosed, Unit: unit}
	}

	remaining := remainingFor(req, processedTotal)
	if remaining <= 0 {
		return ScanValidation{Reason: ReasonNothingRemaining, Unit: unit}
	}

	return ScanValidation{
		Valid:            true,
		Unit:             unit,
		MaxQuantity:      MaxDeductible(unit, remaining, takenFromUnit),
		AlreadyProcessed: takenFromUnit,
	}
}

// remainingFor prefers the request's maintained remaining_quantity; legacy
// rows without it fall back to recomputing from the processed ledger.
func remainingFor(req *repository.StockOutRequest, processedTotal int) int {
	if req.RemainingQuantity != nil && *req.RemainingQuantity >= 0 {
		return *req.RemainingQuantity
	}

	remaining := req.RequestedQuantity - processedTotal
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}
