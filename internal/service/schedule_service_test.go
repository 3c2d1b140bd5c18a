package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trainhub/scheduling-api/internal/models"
	"github.com/trainhub/scheduling-api/internal/repository"
	appErrors "github.com/trainhub/scheduling-api/pkg/errors"
	"github.com/trainhub/scheduling-api/pkg/events"
)

type mockScheduleRepo struct {
	schedules  map[string]models.SessionSchedule
	byCourse   map[string]string
	days       map[string][]models.ScheduleDay
	candidates []models.AcceptedDay
	acceptErr  error
	created    *models.SessionSchedule
	replaced   map[string][]models.ScheduleDay
}

func (m *mockScheduleRepo) FindByID(ctx context.Context, id string) (*models.SessionSchedule, error) {
	if s, ok := m.schedules[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockScheduleRepo) FindByCourse(ctx context.Context, courseID string) (*models.SessionSchedule, error) {
	if id, ok := m.byCourse[courseID]; ok {
		return m.FindByID(ctx, id)
	}
	return nil, sql.ErrNoRows
}

func (m *mockScheduleRepo) FindDetailByID(ctx context.Context, id string) (*models.ScheduleDetail, error) {
	sched, err := m.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.ScheduleDetail{SessionSchedule: *sched, Days: m.days[id]}, nil
}

func (m *mockScheduleRepo) ListDays(ctx context.Context, scheduleID string) ([]models.ScheduleDay, error) {
	return m.days[scheduleID], nil
}

func (m *mockScheduleRepo) FindConflictCandidates(ctx context.Context, date time.Time, roomID, trainerID, excludeScheduleID string) ([]models.AcceptedDay, error) {
	var out []models.AcceptedDay
	for _, c := range m.candidates {
		if c.ScheduleID == excludeScheduleID {
			continue
		}
		if !c.DayDate.Equal(date) {
			continue
		}
		sameTrainer := trainerID != "" && c.TrainerID != nil && *c.TrainerID == trainerID
		if c.RoomID == roomID || sameTrainer {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockScheduleRepo) Create(ctx context.Context, sched *models.SessionSchedule, days []models.ScheduleDay) error {
	if sched.ID == "" {
		sched.ID = "sched-new"
	}
	sched.Status = models.ScheduleStatusPending
	if m.schedules == nil {
		m.schedules = make(map[string]models.SessionSchedule)
	}
	m.schedules[sched.ID] = *sched
	m.created = sched
	return nil
}

func (m *mockScheduleRepo) ReplaceDays(ctx context.Context, scheduleID string, days []models.ScheduleDay) error {
	sched, ok := m.schedules[scheduleID]
	if !ok {
		return sql.ErrNoRows
	}
	if sched.Status != models.ScheduleStatusPending {
		return repository.ErrInvalidState
	}
	if m.replaced == nil {
		m.replaced = make(map[string][]models.ScheduleDay)
	}
	m.replaced[scheduleID] = days
	return nil
}

func (m *mockScheduleRepo) Accept(ctx context.Context, scheduleID string) (*models.ScheduleDetail, error) {
	if m.acceptErr != nil {
		return nil, m.acceptErr
	}
	sched, ok := m.schedules[scheduleID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if sched.Status != models.ScheduleStatusPending {
		return nil, repository.ErrInvalidState
	}
	sched.Status = models.ScheduleStatusAccepted
	m.schedules[scheduleID] = sched
	return &models.ScheduleDetail{SessionSchedule: sched, Days: m.days[scheduleID]}, nil
}

func (m *mockScheduleRepo) Reject(ctx context.Context, scheduleID, reason string) (*models.SessionSchedule, error) {
	sched, ok := m.schedules[scheduleID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if sched.Status != models.ScheduleStatusPending {
		return nil, repository.ErrInvalidState
	}
	sched.Status = models.ScheduleStatusRejected
	sched.RejectionReason = &reason
	m.schedules[scheduleID] = sched
	return &sched, nil
}

type mockCourseReader struct {
	courses map[string]models.Course
}

func (m *mockCourseReader) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

type mockTrainerReader struct {
	trainers map[string]models.Trainer
}

func (m *mockTrainerReader) FindByID(ctx context.Context, id string) (*models.Trainer, error) {
	if tr, ok := m.trainers[id]; ok {
		return &tr, nil
	}
	return nil, sql.ErrNoRows
}

type mockRoomReader struct {
	rooms map[string]models.Room
}

func (m *mockRoomReader) FindByID(ctx context.Context, id string) (*models.Room, error) {
	if r, ok := m.rooms[id]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

type recordingSink struct {
	events []string
}

func (s *recordingSink) Publish(evt events.Event) { s.events = append(s.events, evt.Name) }

func newScheduleFixture() (*ScheduleService, *mockScheduleRepo, *recordingSink) {
	repo := &mockScheduleRepo{
		schedules: make(map[string]models.SessionSchedule),
		byCourse:  make(map[string]string),
		days:      make(map[string][]models.ScheduleDay),
	}
	courses := &mockCourseReader{courses: map[string]models.Course{
		"course-1": {ID: "course-1", Title: "Go Fundamentals", TotalSeats: 10},
	}}
	trainers := &mockTrainerReader{trainers: map[string]models.Trainer{
		"trainer-1": {ID: "trainer-1", FullName: "Dana Ross", Active: true},
		"trainer-2": {ID: "trainer-2", FullName: "Inactive Person", Active: false},
	}}
	rooms := &mockRoomReader{rooms: map[string]models.Room{
		"room-1": {ID: "room-1", Name: "Lab A", Capacity: 12},
		"room-2": {ID: "room-2", Name: "Lab B", Capacity: 8},
	}}
	sink := &recordingSink{}
	svc := NewScheduleService(repo, courses, trainers, rooms, zap.NewNop(), sink, nil)
	return svc, repo, sink
}

func day(date, start, end, room string) ScheduleDayInput {
	return ScheduleDayInput{Date: date, StartTime: start, EndTime: end, RoomID: room}
}

func TestScheduleProposeSuccess(t *testing.T) {
	svc, repo, _ := newScheduleFixture()

	detail, err := svc.Propose(context.Background(), ProposeScheduleRequest{
		CourseID:  "course-1",
		TrainerID: "trainer-1",
		Days: []ScheduleDayInput{
			day("2026-09-14", "09:00", "12:00", "room-1"),
			day("2026-09-15", "09:00", "12:00", "room-1"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleStatusPending, detail.Status)
	assert.Len(t, detail.Days, 2)
	require.NotNil(t, repo.created)
	assert.Equal(t, "course-1", repo.created.CourseID)
}

func TestScheduleProposeValidation(t *testing.T) {
	svc, _, _ := newScheduleFixture()

	t.Run("empty days", func(t *testing.T) {
		_, err := svc.Propose(context.Background(), ProposeScheduleRequest{
			CourseID: "course-1", TrainerID: "trainer-1", Days: nil,
		})
		appErr := appErrors.FromError(err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	})

	t.Run("start not before end", func(t *testing.T) {
		_, err := svc.Propose(context.Background(), ProposeScheduleRequest{
			CourseID:  "course-1",
			TrainerID: "trainer-1",
			Days:      []ScheduleDayInput{day("2026-09-14", "12:00", "09:00", "room-1")},
		})
		appErr := appErrors.FromError(err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	})

	t.Run("inactive trainer", func(t *testing.T) {
		_, err := svc.Propose(context.Background(), ProposeScheduleRequest{
			CourseID:  "course-1",
			TrainerID: "trainer-2",
			Days:      []ScheduleDayInput{day("2026-09-14", "09:00", "12:00", "room-1")},
		})
		appErr := appErrors.FromError(err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	})

	t.Run("unknown course", func(t *testing.T) {
		_, err := svc.Propose(context.Background(), ProposeScheduleRequest{
			CourseID:  "missing",
			TrainerID: "trainer-1",
			Days:      []ScheduleDayInput{day("2026-09-14", "09:00", "12:00", "room-1")},
		})
		appErr := appErrors.FromError(err)
		assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
	})
}

func TestScheduleProposeRoomConflict(t *testing.T) {
	svc, repo, _ := newScheduleFixture()

	otherTrainer := "trainer-9"
	date, _ := time.Parse(models.DateLayout, "2026-09-14")
	repo.candidates = []models.AcceptedDay{{
		ScheduleID: "sched-accepted",
		TrainerID:  &otherTrainer,
		DayDate:    date,
		StartTime:  "10:00",
		EndTime:    "13:00",
		RoomID:     "room-1",
	}}

	_, err := svc.Propose(context.Background(), ProposeScheduleRequest{
		CourseID:  "course-1",
		TrainerID: "trainer-1",
		Days:      []ScheduleDayInput{day("2026-09-14", "09:00", "12:00", "room-1")},
	})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)

	var conflict *models.ScheduleConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, models.ConflictDimensionRoom, conflict.Day.Dimension)
	assert.Equal(t, "sched-accepted", conflict.Day.ScheduleID)
}

func TestScheduleProposeTrainerConflict(t *testing.T) {
	svc, repo, _ := newScheduleFixture()

	busyTrainer := "trainer-1"
	date, _ := time.Parse(models.DateLayout, "2026-09-14")
	repo.candidates = []models.AcceptedDay{{
		ScheduleID: "sched-accepted",
		TrainerID:  &busyTrainer,
		DayDate:    date,
		StartTime:  "10:00",
		EndTime:    "13:00",
		RoomID:     "room-2",
	}}

	_, err := svc.Propose(context.Background(), ProposeScheduleRequest{
		CourseID:  "course-1",
		TrainerID: "trainer-1",
		Days:      []ScheduleDayInput{day("2026-09-14", "09:00", "12:00", "room-1")},
	})
	var conflict *models.ScheduleConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, models.ConflictDimensionTrainer, conflict.Day.Dimension)
}

func TestScheduleProposeIntraBatchOverlap(t *testing.T) {
	svc, _, _ := newScheduleFixture()

	_, err := svc.Propose(context.Background(), ProposeScheduleRequest{
		CourseID:  "course-1",
		TrainerID: "trainer-1",
		Days: []ScheduleDayInput{
			day("2026-09-14", "09:00", "12:00", "room-1"),
			day("2026-09-14", "11:00", "13:00", "room-1"),
		},
	})
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrConflict.Code, appErr.Code)

	var conflict *models.ScheduleConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, 1, conflict.DayIndex)
}

func TestScheduleProposeBackToBackDaysAllowed(t *testing.T) {
	svc, _, _ := newScheduleFixture()

	_, err := svc.Propose(context.Background(), ProposeScheduleRequest{
		CourseID:  "course-1",
		TrainerID: "trainer-1",
		Days: []ScheduleDayInput{
			day("2026-09-14", "09:00", "12:00", "room-1"),
			day("2026-09-14", "12:00", "14:00", "room-1"),
		},
	})
	assert.NoError(t, err)
}

func TestScheduleAcceptLifecycle(t *testing.T) {
	svc, repo, sink := newScheduleFixture()
	repo.schedules["sched-1"] = models.SessionSchedule{ID: "sched-1", CourseID: "course-1", Status: models.ScheduleStatusPending}

	detail, err := svc.Accept(context.Background(), "sched-1")
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleStatusAccepted, detail.Status)
	assert.Contains(t, sink.events, models.EventScheduleAccepted)

	// Terminal states are immutable.
	_, err = svc.Accept(context.Background(), "sched-1")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrState.Code, appErr.Code)

	_, err = svc.Reject(context.Background(), "sched-1", RejectScheduleRequest{Reason: "late"})
	appErr = appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrState.Code, appErr.Code)
}

func TestScheduleAcceptConflictFromRepository(t *testing.T) {
	svc, repo, _ := newScheduleFixture()
	repo.acceptErr = &models.ScheduleConflictError{
		Message: "room already booked for this slot",
		Day:     models.ConflictDay{Dimension: models.ConflictDimensionRoom, RoomID: "room-1"},
	}

	_, err := svc.Accept(context.Background(), "sched-1")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestScheduleRejectRequiresReason(t *testing.T) {
	svc, repo, sink := newScheduleFixture()
	repo.schedules["sched-1"] = models.SessionSchedule{ID: "sched-1", CourseID: "course-1", Status: models.ScheduleStatusPending}

	_, err := svc.Reject(context.Background(), "sched-1", RejectScheduleRequest{})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	sched, err := svc.Reject(context.Background(), "sched-1", RejectScheduleRequest{Reason: "trainer unavailable"})
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleStatusRejected, sched.Status)
	require.NotNil(t, sched.RejectionReason)
	assert.Equal(t, "trainer unavailable", *sched.RejectionReason)
	assert.Contains(t, sink.events, models.EventScheduleRejected)
}

func TestScheduleEditDaysOnlyPending(t *testing.T) {
	svc, repo, _ := newScheduleFixture()
	trainerID := "trainer-1"
	repo.schedules["sched-1"] = models.SessionSchedule{ID: "sched-1", CourseID: "course-1", TrainerID: &trainerID, Status: models.ScheduleStatusAccepted}

	_, err := svc.EditDays(context.Background(), "sched-1", EditScheduleDaysRequest{
		Days: []ScheduleDayInput{day("2026-09-14", "09:00", "12:00", "room-1")},
	})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrState.Code, appErr.Code)

	repo.schedules["sched-2"] = models.SessionSchedule{ID: "sched-2", CourseID: "course-1", TrainerID: &trainerID, Status: models.ScheduleStatusPending}
	detail, err := svc.EditDays(context.Background(), "sched-2", EditScheduleDaysRequest{
		Days: []ScheduleDayInput{day("2026-09-14", "09:00", "12:00", "room-1")},
	})
	require.NoError(t, err)
	assert.Len(t, detail.Days, 1)
	assert.Len(t, repo.replaced["sched-2"], 1)
}
