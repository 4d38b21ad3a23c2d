package service

import (
	"context"

	"github.com/stockflow/stockflow-backend/internal/stockout/repository"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// SummarySource reads the derived inventory summary projection
type SummarySource interface {
	GetSummary(ctx context.Context) ([]*repository.InventorySummaryRow, error)
}

// DashboardSummary is the read model served to dashboards. Derived and
// asynchronously rebuilt; never a second source of truth.
type DashboardSummary struct {
	Products      []*repository.InventorySummaryRow `json:"products"`
	TotalProducts int                               `json:"total_products"`
	TotalOnHand   int                               `json:"total_on_hand"`
}

// DashboardService serves the aggregate read model
type DashboardService struct {
	summaries SummarySource
	logger    *logger.Logger
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(summaries SummarySource, log *logger.Logger) *DashboardService {
	return &DashboardService{
		summaries: summaries,
		logger:    log.WithComponent("dashboard"),
	}
}

// Summary returns the current inventory summary projection
func (s *DashboardService) Summary(ctx context.Context) (*DashboardSummary, error) {
	rows, err := s.summaries.GetSummary(ctx)
	if err != nil {
		return nil, err
	}

	out := &DashboardSummary{
		Products:      rows,
		TotalProducts: len(rows),
	}
	for _, r := range rows {
		out.TotalOnHand += r.TotalQuantity
	}
	return out, nil
}
