package service

import (
	"context"

	"github.com/stockflow/stockflow-backend/internal/stockout/repository"
	"github.com/stockflow/stockflow-backend/pkg/actor"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/messaging"
)

// ReservationSource is the reservation persistence surface
type ReservationSource interface {
	Create(ctx context.Context, res *repository.Reservation) error
	GetByID(ctx context.Context, id string) (*repository.Reservation, error)
	List(ctx context.Context, page, perPage int, status string) ([]*repository.Reservation, int64, error)
	Update(ctx context.Context, res *repository.Reservation) error
	Convert(ctx context.Context, id string) (*repository.Reservation, error)
	Release(ctx context.Context, id string) (*repository.Reservation, error)
}

// CreateReservationInput is the payload for creating a reservation
type CreateReservationInput struct {
	ProductID   string `json:"product_id" validate:"required"`
	ProductName string `json:"product_name" validate:"required"`
	WarehouseID string `json:"warehouse_id" validate:"required"`
	Quantity    int    `json:"quantity" validate:"required,gt=0"`
}

// UpdateReservationInput is the payload for updating an active reservation
type UpdateReservationInput struct {
	WarehouseID string `json:"warehouse_id" validate:"required"`
	Quantity    int    `json:"quantity" validate:"required,gt=0"`
}

// ReservationService manages holds against future fulfillment. A
// reservation never touches on-hand quantities; conversion to an actual
// fulfillment request is an external collaborator's job.
type ReservationService struct {
	reservations ReservationSource
	events       EventPublisher
	logger       *logger.Logger
}

// NewReservationService creates a new reservation service
func NewReservationService(reservations ReservationSource, events EventPublisher, log *logger.Logger) *ReservationService {
	return &ReservationService{
		reservations: reservations,
		events:       events,
		logger:       log.WithComponent("reservation"),
	}
}

// Create creates an active reservation
func (s *ReservationService) Create(ctx context.Context, input CreateReservationInput) (*repository.Reservation, error) {
	act := actor.FromContext(ctx)

	res := &repository.Reservation{
		ProductID:   input.ProductID,
		ProductName: input.ProductName,
		WarehouseID: input.WarehouseID,
		Quantity:    input.Quantity,
		Status:      repository.ReservationStatusActive,
		CreatedBy:   act.ID,
	}

	if err := s.reservations.Create(ctx, res); err != nil {
		return nil, err
	}

	s.events.PublishReservationEvent(ctx, messaging.EventReservationCreated, res)
	return res, nil
}

// Get returns a reservation by ID
func (s *ReservationService) Get(ctx context.Context, id string) (*repository.Reservation, error) {
	return s.reservations.GetByID(ctx, id)
}

// List lists reservations with pagination, optionally filtered by status
func (s *ReservationService) List(ctx context.Context, page, perPage int, status string) ([]*repository.Reservation, int64, error) {
	return s.reservations.List(ctx, page, perPage, status)
}

// Update modifies an active reservation's warehouse and quantity
func (s *ReservationService) Update(ctx context.Context, id string, input UpdateReservationInput) (*repository.Reservation, error) {
	res, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	res.WarehouseID = input.WarehouseID
	res.Quantity = input.Quantity

	if err := s.reservations.Update(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// ConvertToStockOut transitions an active reservation to
// converted_to_stockout and severs any placeholder stock-out link
func (s *ReservationService) ConvertToStockOut(ctx context.Context, id string) (*repository.Reservation, error) {
	res, err := s.reservations.Convert(ctx, id)
	if err != nil {
		return nil, err
	}

	s.events.PublishReservationEvent(ctx, messaging.EventReservationConverted, res)
	return res, nil
}

// Release transitions an active reservation to released
func (s *ReservationService) Release(ctx context.Context, id string) (*repository.Reservation, error) {
	res, err := s.reservations.Release(ctx, id)
	if err != nil {
		return nil, err
	}

	s.events.PublishReservationEvent(ctx, messaging.EventReservationReleased, res)
	return res, nil
}
