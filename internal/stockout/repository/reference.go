package repository

import (
	"context"
	"database/sql"

	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

// Warehouse is warehouse reference data
type Warehouse struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Location is a storage location within a warehouse
type Location struct {
	ID          string  `db:"id" json:"id"`
	WarehouseID string  `db:"warehouse_id" json:"warehouse_id"`
	Code        string  `db:"code" json:"code"`
	Floor       *string `db:"floor" json:"floor,omitempty"`
	Zone        *string `db:"zone" json:"zone,omitempty"`
}

// ReferenceRepository resolves warehouse/location reference data used for
// enrichment and for validating denormalized references during completion.
type ReferenceRepository struct {
	db *database.DB
}

// NewReferenceRepository creates a new reference repository
func NewReferenceRepository(db *database.DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

// WarehouseName resolves a warehouse id to its display name
func (r *ReferenceRepository) WarehouseName(ctx context.Context, id string) (string, error) {
	var name string
	err := r.db.GetContext(ctx, &name, `SELECT name FROM warehouses WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return "", errors.NotFound("warehouse")
	}
	if err != nil {
		return "", err
	}
	return name, nil
}

// LocationCode resolves a location id to its code
func (r *ReferenceRepository) LocationCode(ctx context.Context, id string) (string, error) {
	var code string
	err := r.db.GetContext(ctx, &code, `SELECT code FROM locations WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return "", errors.NotFound("location")
	}
	if err != nil {
		return "", err
	}
	return code, nil
}

// ValidWarehouseIDs returns the set of known warehouse ids
func (r *ReferenceRepository) ValidWarehouseIDs(ctx context.Context) (map[string]struct{}, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM warehouses`); err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// ValidLocationIDs returns the set of known location ids
func (r *ReferenceRepository) ValidLocationIDs(ctx context.Context) (map[string]struct{}, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM locations`); err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}
