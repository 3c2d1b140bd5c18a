package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trainhub/scheduling-api/internal/models"
	appErrors "github.com/trainhub/scheduling-api/pkg/errors"
)

type mockQuantitySummer struct {
	reserved map[string]int
}

func (m *mockQuantitySummer) ConfirmedQuantity(ctx context.Context, resourceID string, date time.Time) (int, error) {
	return m.reserved[resourceID+date.Format(models.DateLayout)], nil
}

type memoryCache struct {
	values map[string]interface{}
	gets   int
	sets   int
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.gets++
	value, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	if out, ok := dest.(*int); ok {
		*out = value.(int)
	}
	return nil
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.sets++
	if m.values == nil {
		m.values = make(map[string]interface{})
	}
	m.values[key] = value
	return nil
}

func newAvailabilityFixture() (*AvailabilityService, *mockScheduleRepo, *mockQuantitySummer, *memoryCache) {
	schedules := &mockScheduleRepo{}
	summer := &mockQuantitySummer{reserved: make(map[string]int)}
	resources := &mockResourceReader{resources: map[string]*models.Resource{
		"res-1": {ID: "res-1", Name: "Projector", TotalQuantity: 5, Available: true},
		"res-2": {ID: "res-2", Name: "Broken kit", TotalQuantity: 5, Available: false},
	}}
	rooms := &mockRoomReader{rooms: map[string]models.Room{
		"room-1": {ID: "room-1", Name: "Lab A", Capacity: 12},
	}}
	cache := &memoryCache{}
	svc := NewAvailabilityService(schedules, summer, resources, rooms, cache, time.Minute, zap.NewNop(), nil)
	return svc, schedules, summer, cache
}

func TestAvailabilityRoomFree(t *testing.T) {
	svc, schedules, _, _ := newAvailabilityFixture()

	trainer := "trainer-1"
	date, _ := time.Parse(models.DateLayout, "2026-09-14")
	schedules.candidates = []models.AcceptedDay{{
		ScheduleID: "sched-1", TrainerID: &trainer, DayDate: date,
		StartTime: "09:00", EndTime: "12:00", RoomID: "room-1",
	}}

	free, err := svc.IsRoomFree(context.Background(), "room-1", "2026-09-14", "10:00", "11:00")
	require.NoError(t, err)
	assert.False(t, free)

	free, err = svc.IsRoomFree(context.Background(), "room-1", "2026-09-14", "12:00", "14:00")
	require.NoError(t, err)
	assert.True(t, free)

	_, err = svc.IsRoomFree(context.Background(), "room-1", "2026-09-14", "12:00", "11:00")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestAvailabilityTrainerFree(t *testing.T) {
	svc, schedules, _, _ := newAvailabilityFixture()

	trainer := "trainer-1"
	date, _ := time.Parse(models.DateLayout, "2026-09-14")
	schedules.candidates = []models.AcceptedDay{{
		ScheduleID: "sched-1", TrainerID: &trainer, DayDate: date,
		StartTime: "09:00", EndTime: "12:00", RoomID: "room-1",
	}}

	free, err := svc.IsTrainerFree(context.Background(), "trainer-1", "2026-09-14", "11:00", "13:00")
	require.NoError(t, err)
	assert.False(t, free)

	free, err = svc.IsTrainerFree(context.Background(), "trainer-2", "2026-09-14", "11:00", "13:00")
	require.NoError(t, err)
	assert.True(t, free)
}

func TestAvailabilityResourceQuantity(t *testing.T) {
	svc, _, summer, cache := newAvailabilityFixture()
	summer.reserved["res-12026-09-14"] = 3

	remaining, err := svc.ResourceAvailability(context.Background(), "res-1", "2026-09-14")
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)
	assert.Equal(t, 1, cache.sets)

	// Second read is served from cache.
	remaining, err = svc.ResourceAvailability(context.Background(), "res-1", "2026-09-14")
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)
	assert.Equal(t, 1, cache.sets)
}

func TestAvailabilityUnavailableResourceReportsZero(t *testing.T) {
	svc, _, _, _ := newAvailabilityFixture()

	remaining, err := svc.ResourceAvailability(context.Background(), "res-2", "2026-09-14")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}

func TestAvailabilityRoomFitsSeats(t *testing.T) {
	svc, _, _, _ := newAvailabilityFixture()

	fits, err := svc.RoomFitsSeats(context.Background(), "room-1", 10)
	require.NoError(t, err)
	assert.True(t, fits)

	fits, err = svc.RoomFitsSeats(context.Background(), "room-1", 20)
	require.NoError(t, err)
	assert.False(t, fits)
}
