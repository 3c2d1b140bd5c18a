package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/trainhub/scheduling-api/internal/models"
	"github.com/trainhub/scheduling-api/internal/repository"
	appErrors "github.com/trainhub/scheduling-api/pkg/errors"
	"github.com/trainhub/scheduling-api/pkg/events"
)

// BookingRepositoryInterface abstracts booking persistence.
type BookingRepositoryInterface interface {
	FindByID(ctx context.Context, id string) (*models.ResourceBooking, error)
	ListByResource(ctx context.Context, resourceID string) ([]models.ResourceBooking, error)
	ListByScheduleDay(ctx context.Context, scheduleDayID string) ([]models.ResourceBooking, error)
	Confirm(ctx context.Context, resourceID, scheduleDayID string, quantity int) (*models.ResourceBooking, error)
	Release(ctx context.Context, bookingID string) (*models.ResourceBooking, error)
}

// ResourceReader exposes read access to the resource registry.
type ResourceReader interface {
	FindByID(ctx context.Context, id string) (*models.Resource, error)
}

// ScheduleDayReader loads single schedule days.
type ScheduleDayReader interface {
	FindDayByID(ctx context.Context, id string) (*models.ScheduleDay, error)
}

// CacheInvalidator drops cached availability entries after a write.
type CacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// BookingService manages quantity-bounded resource bookings.
type BookingService struct {
	bookings  BookingRepositoryInterface
	resources ResourceReader
	days      ScheduleDayReader
	cache     CacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
	sink      events.Sink
	metrics   *MetricsService
}

// NewBookingService constructs the service. Cache may be nil.
func NewBookingService(
	bookings BookingRepositoryInterface,
	resources ResourceReader,
	days ScheduleDayReader,
	cache CacheInvalidator,
	logger *zap.Logger,
	sink events.Sink,
	metrics *MetricsService,
) *BookingService {
	if sink == nil {
		sink = events.NopSink{}
	}
	return &BookingService{
		bookings:  bookings,
		resources: resources,
		days:      days,
		cache:     cache,
		validator: validator.New(),
		logger:    logger,
		sink:      sink,
		metrics:   metrics,
	}
}

// RequestBookingRequest books quantity units of a resource for one schedule day.
type RequestBookingRequest struct {
	ResourceID    string `json:"resource_id" validate:"required"`
	ScheduleDayID string `json:"schedule_day_id" validate:"required"`
	Quantity      int    `json:"quantity" validate:"required,gt=0"`
}

// Request confirms a booking when the remaining quantity for the day covers
// it. The authoritative sum runs inside the repository transaction.
func (s *BookingService) Request(ctx context.Context, req RequestBookingRequest) (*models.ResourceBooking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "quantity must be a positive integer")
	}

	if _, err := s.resources.FindByID(ctx, req.ResourceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load resource")
	}
	if _, err := s.days.FindDayByID(ctx, req.ScheduleDayID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule day not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load schedule day")
	}

	booking, err := s.bookings.Confirm(ctx, req.ResourceID, req.ScheduleDayID, req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource or schedule day not found")
		case errors.Is(err, repository.ErrResourceUnavailable):
			return nil, appErrors.Clone(appErrors.ErrValidation, "resource is not available for booking")
		case errors.Is(err, repository.ErrCapacityExceeded):
			s.metrics.RecordBooking(OutcomeDenied)
			return nil, appErrors.Clone(appErrors.ErrCapacityExceeded, "requested quantity exceeds remaining resource units")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "confirm booking")
		}
	}

	s.invalidateAvailability(ctx, booking.ResourceID)
	s.metrics.RecordBooking(OutcomeGranted)
	s.sink.Publish(events.Event{
		Name:        models.EventBookingConfirmed,
		AggregateID: booking.ID,
		Payload: map[string]interface{}{
			"resource_id":     booking.ResourceID,
			"schedule_day_id": booking.ScheduleDayID,
			"quantity":        booking.Quantity,
		},
	})
	s.logger.Sugar().Infow("booking confirmed", "booking_id", booking.ID, "resource_id", booking.ResourceID, "quantity", booking.Quantity)
	return booking, nil
}

// Release frees a confirmed booking. Releasing twice is a state error and
// never credits availability a second time.
func (s *BookingService) Release(ctx context.Context, bookingID string) (*models.ResourceBooking, error) {
	booking, err := s.bookings.Release(ctx, bookingID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		case errors.Is(err, repository.ErrInvalidState):
			return nil, appErrors.Clone(appErrors.ErrState, "booking is not confirmed")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "release booking")
		}
	}

	s.invalidateAvailability(ctx, booking.ResourceID)
	s.metrics.RecordBooking(OutcomeReleased)
	s.sink.Publish(events.Event{
		Name:        models.EventBookingReleased,
		AggregateID: booking.ID,
		Payload: map[string]interface{}{
			"resource_id": booking.ResourceID,
			"quantity":    booking.Quantity,
		},
	})
	s.logger.Sugar().Infow("booking released", "booking_id", booking.ID, "resource_id", booking.ResourceID)
	return booking, nil
}

// Get loads a booking by ID.
func (s *BookingService) Get(ctx context.Context, bookingID string) (*models.ResourceBooking, error) {
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load booking")
	}
	return booking, nil
}

// ListByResource returns a resource's bookings, newest first.
func (s *BookingService) ListByResource(ctx context.Context, resourceID string) ([]models.ResourceBooking, error) {
	if _, err := s.resources.FindByID(ctx, resourceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load resource")
	}

	bookings, err := s.bookings.ListByResource(ctx, resourceID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list bookings")
	}
	return bookings, nil
}

// ListByScheduleDay returns the bookings attached to a schedule day.
func (s *BookingService) ListByScheduleDay(ctx context.Context, scheduleDayID string) ([]models.ResourceBooking, error) {
	bookings, err := s.bookings.ListByScheduleDay(ctx, scheduleDayID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list bookings")
	}
	return bookings, nil
}

func (s *BookingService) invalidateAvailability(ctx context.Context, resourceID string) {
	if s.cache == nil {
		return
	}
	pattern := fmt.Sprintf("availability:resource:%s:*", resourceID)
	if err := s.cache.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Sugar().Warnw("availability cache invalidation failed", "resource_id", resourceID, "error", err)
	}
}
