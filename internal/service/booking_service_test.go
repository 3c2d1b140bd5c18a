package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trainhub/scheduling-api/internal/models"
	"github.com/trainhub/scheduling-api/internal/repository"
	appErrors "github.com/trainhub/scheduling-api/pkg/errors"
)

type mockBookingRepo struct {
	bookings  map[string]models.ResourceBooking
	resources map[string]*models.Resource
	days      map[string]models.ScheduleDay
	nextID    int
}

func (m *mockBookingRepo) FindByID(ctx context.Context, id string) (*models.ResourceBooking, error) {
	if b, ok := m.bookings[id]; ok {
		return &b, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockBookingRepo) ListByResource(ctx context.Context, resourceID string) ([]models.ResourceBooking, error) {
	var list []models.ResourceBooking
	for _, b := range m.bookings {
		if b.ResourceID == resourceID {
			list = append(list, b)
		}
	}
	return list, nil
}

func (m *mockBookingRepo) ListByScheduleDay(ctx context.Context, scheduleDayID string) ([]models.ResourceBooking, error) {
	var list []models.ResourceBooking
	for _, b := range m.bookings {
		if b.ScheduleDayID == scheduleDayID {
			list = append(list, b)
		}
	}
	return list, nil
}

func (m *mockBookingRepo) confirmedOn(resourceID string, date time.Time) int {
	total := 0
	for _, b := range m.bookings {
		if b.ResourceID != resourceID || b.Status != models.BookingStatusConfirmed {
			continue
		}
		if day, ok := m.days[b.ScheduleDayID]; ok && day.DayDate.Equal(date) {
			total += b.Quantity
		}
	}
	return total
}

func (m *mockBookingRepo) Confirm(ctx context.Context, resourceID, scheduleDayID string, quantity int) (*models.ResourceBooking, error) {
	resource, ok := m.resources[resourceID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if !resource.Available {
		return nil, repository.ErrResourceUnavailable
	}
	day, ok := m.days[scheduleDayID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if quantity > resource.TotalQuantity-m.confirmedOn(resourceID, day.DayDate) {
		return nil, repository.ErrCapacityExceeded
	}
	m.nextID++
	booking := models.ResourceBooking{
		ID:            string(rune('a' + m.nextID)),
		ResourceID:    resourceID,
		ScheduleDayID: scheduleDayID,
		Quantity:      quantity,
		Status:        models.BookingStatusConfirmed,
	}
	if m.bookings == nil {
		m.bookings = make(map[string]models.ResourceBooking)
	}
	m.bookings[booking.ID] = booking
	return &booking, nil
}

func (m *mockBookingRepo) Release(ctx context.Context, bookingID string) (*models.ResourceBooking, error) {
	b, ok := m.bookings[bookingID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if b.Status != models.BookingStatusConfirmed {
		return nil, repository.ErrInvalidState
	}
	b.Status = models.BookingStatusReleased
	m.bookings[bookingID] = b
	return &b, nil
}

type mockResourceReader struct {
	resources map[string]*models.Resource
}

func (m *mockResourceReader) FindByID(ctx context.Context, id string) (*models.Resource, error) {
	if r, ok := m.resources[id]; ok {
		return r, nil
	}
	return nil, sql.ErrNoRows
}

type mockDayReader struct {
	days map[string]models.ScheduleDay
}

func (m *mockDayReader) FindDayByID(ctx context.Context, id string) (*models.ScheduleDay, error) {
	if d, ok := m.days[id]; ok {
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

type recordingInvalidator struct {
	patterns []string
}

func (r *recordingInvalidator) DeleteByPattern(ctx context.Context, pattern string) error {
	r.patterns = append(r.patterns, pattern)
	return nil
}

func newBookingFixture(total int, available bool) (*BookingService, *mockBookingRepo, *recordingSink, *recordingInvalidator) {
	date, _ := time.Parse(models.DateLayout, "2026-09-14")
	resource := &models.Resource{ID: "res-1", Name: "Projector", TotalQuantity: total, Available: available}
	days := map[string]models.ScheduleDay{
		"sd-1": {ID: "sd-1", ScheduleID: "sched-1", DayDate: date, StartTime: "09:00", EndTime: "12:00", RoomID: "room-1"},
		"sd-2": {ID: "sd-2", ScheduleID: "sched-2", DayDate: date, StartTime: "13:00", EndTime: "16:00", RoomID: "room-2"},
	}
	repo := &mockBookingRepo{
		bookings:  make(map[string]models.ResourceBooking),
		resources: map[string]*models.Resource{"res-1": resource},
		days:      days,
	}
	sink := &recordingSink{}
	invalidator := &recordingInvalidator{}
	svc := NewBookingService(
		repo,
		&mockResourceReader{resources: repo.resources},
		&mockDayReader{days: days},
		invalidator,
		zap.NewNop(),
		sink,
		nil,
	)
	return svc, repo, sink, invalidator
}

func TestBookingRequestQuantityValidation(t *testing.T) {
	svc, _, _, _ := newBookingFixture(5, true)

	for _, quantity := range []int{0, -3} {
		_, err := svc.Request(context.Background(), RequestBookingRequest{
			ResourceID: "res-1", ScheduleDayID: "sd-1", Quantity: quantity,
		})
		appErr := appErrors.FromError(err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	}
}

func TestBookingRequestWithinCapacity(t *testing.T) {
	svc, _, sink, invalidator := newBookingFixture(5, true)

	booking, err := svc.Request(context.Background(), RequestBookingRequest{
		ResourceID: "res-1", ScheduleDayID: "sd-1", Quantity: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusConfirmed, booking.Status)
	assert.Contains(t, sink.events, models.EventBookingConfirmed)
	assert.Contains(t, invalidator.patterns, "availability:resource:res-1:*")
}

func TestBookingRequestCapacityExceeded(t *testing.T) {
	svc, _, _, _ := newBookingFixture(5, true)

	_, err := svc.Request(context.Background(), RequestBookingRequest{
		ResourceID: "res-1", ScheduleDayID: "sd-1", Quantity: 3,
	})
	require.NoError(t, err)

	// 3 of 5 units already confirmed on the same date; 3 more cannot fit.
	_, err = svc.Request(context.Background(), RequestBookingRequest{
		ResourceID: "res-1", ScheduleDayID: "sd-2", Quantity: 3,
	})
	appErr := appErrors.FromError(err)
	assert.Equal(t, "CAPACITY_EXCEEDED", appErr.Code)

	// 2 remaining units can still be booked.
	_, err = svc.Request(context.Background(), RequestBookingRequest{
		ResourceID: "res-1", ScheduleDayID: "sd-2", Quantity: 2,
	})
	assert.NoError(t, err)
}

func TestBookingRequestUnavailableResource(t *testing.T) {
	svc, _, _, _ := newBookingFixture(5, false)

	_, err := svc.Request(context.Background(), RequestBookingRequest{
		ResourceID: "res-1", ScheduleDayID: "sd-1", Quantity: 1,
	})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestBookingReleaseIdempotence(t *testing.T) {
	svc, repo, sink, _ := newBookingFixture(5, true)
	repo.bookings["book-1"] = models.ResourceBooking{
		ID: "book-1", ResourceID: "res-1", ScheduleDayID: "sd-1", Quantity: 2, Status: models.BookingStatusConfirmed,
	}

	booking, err := svc.Release(context.Background(), "book-1")
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusReleased, booking.Status)
	assert.Contains(t, sink.events, models.EventBookingReleased)

	// Releasing again is a state error, not a double credit.
	_, err = svc.Release(context.Background(), "book-1")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrState.Code, appErr.Code)
}
