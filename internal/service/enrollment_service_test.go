package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trainhub/scheduling-api/internal/models"
	"github.com/trainhub/scheduling-api/internal/repository"
	appErrors "github.com/trainhub/scheduling-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	enrollments map[string]models.Enrollment
	seats       map[string]*models.Course
	created     *models.Enrollment
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) ListByCourse(ctx context.Context, courseID string) ([]models.Enrollment, error) {
	var list []models.Enrollment
	for _, e := range m.enrollments {
		if e.CourseID == courseID {
			list = append(list, e)
		}
	}
	return list, nil
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = "enroll-new"
	}
	enrollment.Status = models.EnrollmentStatusPending
	if m.enrollments == nil {
		m.enrollments = make(map[string]models.Enrollment)
	}
	m.enrollments[enrollment.ID] = *enrollment
	m.created = enrollment
	return nil
}

func (m *mockEnrollmentRepo) Admit(ctx context.Context, enrollmentID string) (*models.AdmissionResult, error) {
	e, ok := m.enrollments[enrollmentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if e.Status != models.EnrollmentStatusPending {
		return nil, repository.ErrInvalidState
	}
	course := m.seats[e.CourseID]
	if course.ReservedSeats >= course.TotalSeats {
		return nil, repository.ErrCapacityExceeded
	}
	course.ReservedSeats++
	e.Status = models.EnrollmentStatusAccepted
	m.enrollments[enrollmentID] = e
	return &models.AdmissionResult{Enrollment: e, ReservedSeats: course.ReservedSeats, TotalSeats: course.TotalSeats}, nil
}

func (m *mockEnrollmentRepo) UpdateStatus(ctx context.Context, id string, from, to models.EnrollmentStatus) error {
	e, ok := m.enrollments[id]
	if !ok || e.Status != from {
		return repository.ErrInvalidState
	}
	e.Status = to
	m.enrollments[id] = e
	return nil
}

func (m *mockEnrollmentRepo) Cancel(ctx context.Context, enrollmentID string) (*models.AdmissionResult, error) {
	e, ok := m.enrollments[enrollmentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if e.Status != models.EnrollmentStatusAccepted {
		return nil, repository.ErrInvalidState
	}
	course := m.seats[e.CourseID]
	course.ReservedSeats--
	e.Status = models.EnrollmentStatusCancelled
	m.enrollments[enrollmentID] = e
	return &models.AdmissionResult{Enrollment: e, ReservedSeats: course.ReservedSeats, TotalSeats: course.TotalSeats}, nil
}

func newEnrollmentFixture(totalSeats, reserved int) (*EnrollmentService, *mockEnrollmentRepo, *recordingSink) {
	course := &models.Course{ID: "course-1", Title: "Go Fundamentals", TotalSeats: totalSeats, ReservedSeats: reserved}
	repo := &mockEnrollmentRepo{
		enrollments: make(map[string]models.Enrollment),
		seats:       map[string]*models.Course{"course-1": course},
	}
	courses := &mockCourseReader{courses: map[string]models.Course{"course-1": *course}}
	sink := &recordingSink{}
	svc := NewEnrollmentService(repo, courses, zap.NewNop(), sink, nil)
	return svc, repo, sink
}

func TestEnrollmentRequestAndAdmit(t *testing.T) {
	svc, repo, sink := newEnrollmentFixture(2, 0)

	enrollment, err := svc.Request(context.Background(), RequestEnrollmentRequest{CourseID: "course-1", ParticipantID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusPending, enrollment.Status)

	result, err := svc.Admit(context.Background(), enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusAccepted, result.Enrollment.Status)
	assert.Equal(t, 1, result.ReservedSeats)
	assert.Equal(t, 2, result.TotalSeats)
	assert.Contains(t, sink.events, models.EventEnrollmentAdmitted)
	assert.NotNil(t, repo.created)
}

func TestEnrollmentAdmitCapacityExceeded(t *testing.T) {
	svc, repo, sink := newEnrollmentFixture(1, 1)
	repo.enrollments["enroll-1"] = models.Enrollment{ID: "enroll-1", CourseID: "course-1", Status: models.EnrollmentStatusPending}

	_, err := svc.Admit(context.Background(), "enroll-1")
	appErr := appErrors.FromError(err)
	assert.Equal(t, "CAPACITY_EXCEEDED", appErr.Code)

	// Denied admissions leave the enrollment pending.
	assert.Equal(t, models.EnrollmentStatusPending, repo.enrollments["enroll-1"].Status)
	assert.Contains(t, sink.events, models.EventEnrollmentDenied)
}

func TestEnrollmentAdmitNotPending(t *testing.T) {
	svc, repo, _ := newEnrollmentFixture(5, 0)
	repo.enrollments["enroll-1"] = models.Enrollment{ID: "enroll-1", CourseID: "course-1", Status: models.EnrollmentStatusRejected}

	_, err := svc.Admit(context.Background(), "enroll-1")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrState.Code, appErr.Code)
}

func TestEnrollmentReject(t *testing.T) {
	svc, repo, _ := newEnrollmentFixture(5, 0)
	repo.enrollments["enroll-1"] = models.Enrollment{ID: "enroll-1", CourseID: "course-1", Status: models.EnrollmentStatusPending}

	enrollment, err := svc.Reject(context.Background(), "enroll-1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusRejected, enrollment.Status)

	_, err = svc.Reject(context.Background(), "enroll-1")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrState.Code, appErr.Code)
}

func TestEnrollmentCancelFreesSeat(t *testing.T) {
	svc, repo, sink := newEnrollmentFixture(2, 1)
	repo.enrollments["enroll-1"] = models.Enrollment{ID: "enroll-1", CourseID: "course-1", Status: models.EnrollmentStatusAccepted}

	result, err := svc.Cancel(context.Background(), "enroll-1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusCancelled, result.Enrollment.Status)
	assert.Equal(t, 0, result.ReservedSeats)
	assert.Contains(t, sink.events, models.EventEnrollmentCancelled)

	// A second cancel must not free another seat.
	_, err = svc.Cancel(context.Background(), "enroll-1")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrState.Code, appErr.Code)
	assert.Equal(t, 0, repo.seats["course-1"].ReservedSeats)
}

func TestEnrollmentRequestUnknownCourse(t *testing.T) {
	svc, _, _ := newEnrollmentFixture(2, 0)

	_, err := svc.Request(context.Background(), RequestEnrollmentRequest{CourseID: "missing", ParticipantID: "user-1"})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
