package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/stockflow/stockflow-backend/internal/stockout/repository"
	"github.com/stockflow/stockflow-backend/pkg/cache"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// UnitSource is the unit lookup surface the resolver needs
type UnitSource interface {
	GetByID(ctx context.Context, id string) (*repository.BatchItem, error)
	GetByBarcode(ctx context.Context, barcode string) (*repository.BatchItem, error)
	LookupByBarcodeJoin(ctx context.Context, barcode string) (*repository.BatchItem, error)
	SearchByBarcodeFragment(ctx context.Context, fragment string) (*repository.BatchItem, error)
}

// ReferenceSource resolves warehouse and location display names
type ReferenceSource interface {
	WarehouseName(ctx context.Context, id string) (string, error)
	LocationCode(ctx context.Context, id string) (string, error)
}

const unitCacheKeyPrefix = "stockout:unit:barcode:"

// ResolverService resolves a scanned barcode to a batch item. Lookup runs
// through an ordered strategy chain: cached result, exact barcode match,
// raw join across the product table, then fuzzy containment search for
// scans carrying scanner noise. The first hit wins and later strategies
// never run.
type ResolverService struct {
	units  UnitSource
	refs   ReferenceSource
	cache  cache.Cache
	logger *logger.Logger
}

// NewResolverService creates a new resolver service
func NewResolverService(units UnitSource, refs ReferenceSource, c cache.Cache, log *logger.Logger) *ResolverService {
	return &ResolverService{
		units:  units,
		refs:   refs,
		cache:  c,
		logger: log.WithComponent("resolver"),
	}
}

// Resolve resolves a scanned barcode to a unit, enriched with warehouse
// and location names where available.
func (s *ResolverService) Resolve(ctx context.Context, scanned string) (*repository.BatchItem, error) {
	code := strings.TrimSpace(scanned)
	if code == "" {
		// No I/O for the empty scan
		return nil, errors.NotFound("unit")
	}

	if item := s.fromCache(ctx, code); item != nil {
		return item, nil
	}

	item, err := s.lookup(ctx, code)
	if err != nil {
		return nil, err
	}

	s.enrich(ctx, item)
	s.toCache(ctx, code, item)

	return item, nil
}

// lookup runs the strategy chain in order. Only a definitive miss
// (NotFound) falls through to the next strategy; infrastructure errors
// stop the chain.
func (s *ResolverService) lookup(ctx context.Context, code string) (*repository.BatchItem, error) {
	item, err := s.units.GetByBarcode(ctx, code)
	if err == nil {
		return item, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	item, err = s.units.LookupByBarcodeJoin(ctx, code)
	if err == nil {
		s.logger.Debug().Str("barcode", code).Msg("barcode resolved through join fallback")
		return item, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	item, err = s.units.SearchByBarcodeFragment(ctx, code)
	if err == nil {
		s.logger.Info().Str("barcode", code).Str("unit_id", item.ID).Msg("barcode resolved through fuzzy search")
		return item, nil
	}
	return nil, err
}

// enrich fills warehouse and location display names. Best-effort: a
// failed reference lookup leaves the field nil.
func (s *ResolverService) enrich(ctx context.Context, item *repository.BatchItem) {
	if item.WarehouseID != nil && item.WarehouseName == nil {
		if name, err := s.refs.WarehouseName(ctx, *item.WarehouseID); err == nil {
			item.WarehouseName = &name
		}
	}
	if item.LocationID != nil && item.LocationCode == nil {
		if code, err := s.refs.LocationCode(ctx, *item.LocationID); err == nil {
			item.LocationCode = &code
		}
	}
}

func (s *ResolverService) fromCache(ctx context.Context, code string) *repository.BatchItem {
	if s.cache == nil {
		return nil
	}

	raw, ok := s.cache.Get(ctx, unitCacheKeyPrefix+code)
	if !ok {
		return nil
	}

	var item repository.BatchItem
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		s.logger.Warn().Err(err).Str("barcode", code).Msg("discarding malformed cached unit")
		s.cache.Delete(ctx, unitCacheKeyPrefix+code)
		return nil
	}
	return &item
}

func (s *ResolverService) toCache(ctx context.Context, code string, item *repository.BatchItem) {
	if s.cache == nil {
		return
	}

	raw, err := json.Marshal(item)
	if err != nil {
		return
	}
	s.cache.Set(ctx, unitCacheKeyPrefix+code, string(raw))
}

// InvalidateUnit drops the cached resolution for a barcode. Called after
// a deduction changes the unit's quantity.
func (s *ResolverService) InvalidateUnit(ctx context.Context, barcode string) {
	if s.cache == nil || barcode == "" {
		return
	}
	s.cache.Delete(ctx, unitCacheKeyPrefix+barcode)
}

func isNotFound(err error) bool {
	return errors.Is(err, errors.ErrNotFound)
}
