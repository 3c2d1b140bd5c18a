package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trainhub/scheduling-api/internal/models"
)

func enrollmentRow(id, courseID string, status models.EnrollmentStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "course_id", "participant_id", "status", "created_at", "updated_at"}).
		AddRow(id, courseID, "user-1", status, now, now)
}

func TestEnrollmentRepositoryAdmitSuccess(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM enrollments WHERE id = $1 FOR UPDATE`)).
		WithArgs("enroll-1").
		WillReturnRows(enrollmentRow("enroll-1", "course-1", models.EnrollmentStatusPending))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT total_seats, reserved_seats FROM courses WHERE id = $1 FOR UPDATE`)).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"total_seats", "reserved_seats"}).AddRow(10, 4))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE courses SET reserved_seats = reserved_seats + 1, updated_at = $2 WHERE id = $1`)).
		WithArgs("course-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE enrollments SET status = $2, updated_at = $3 WHERE id = $1`)).
		WithArgs("enroll-1", models.EnrollmentStatusAccepted, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := repo.Admit(context.Background(), "enroll-1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusAccepted, result.Enrollment.Status)
	assert.Equal(t, 5, result.ReservedSeats)
	assert.Equal(t, 10, result.TotalSeats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryAdmitCapacityExceeded(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM enrollments WHERE id = $1 FOR UPDATE`)).
		WithArgs("enroll-1").
		WillReturnRows(enrollmentRow("enroll-1", "course-1", models.EnrollmentStatusPending))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT total_seats, reserved_seats FROM courses WHERE id = $1 FOR UPDATE`)).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"total_seats", "reserved_seats"}).AddRow(10, 10))
	mock.ExpectRollback()

	_, err := repo.Admit(context.Background(), "enroll-1")
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryAdmitNotPending(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM enrollments WHERE id = $1 FOR UPDATE`)).
		WithArgs("enroll-1").
		WillReturnRows(enrollmentRow("enroll-1", "course-1", models.EnrollmentStatusCancelled))
	mock.ExpectRollback()

	_, err := repo.Admit(context.Background(), "enroll-1")
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCancelDecrementsOnce(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM enrollments WHERE id = $1 FOR UPDATE`)).
		WithArgs("enroll-1").
		WillReturnRows(enrollmentRow("enroll-1", "course-1", models.EnrollmentStatusAccepted))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT total_seats, reserved_seats FROM courses WHERE id = $1 FOR UPDATE`)).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"total_seats", "reserved_seats"}).AddRow(10, 4))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE courses SET reserved_seats = reserved_seats - 1, updated_at = $2 WHERE id = $1`)).
		WithArgs("course-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE enrollments SET status = $2, updated_at = $3 WHERE id = $1`)).
		WithArgs("enroll-1", models.EnrollmentStatusCancelled, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := repo.Cancel(context.Background(), "enroll-1")
	require.NoError(t, err)
	assert.Equal(t, 3, result.ReservedSeats)

	// A cancelled enrollment cannot be cancelled again.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM enrollments WHERE id = $1 FOR UPDATE`)).
		WithArgs("enroll-1").
		WillReturnRows(enrollmentRow("enroll-1", "course-1", models.EnrollmentStatusCancelled))
	mock.ExpectRollback()

	_, err = repo.Cancel(context.Background(), "enroll-1")
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateStatusGuard(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE enrollments SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`)).
		WithArgs("enroll-1", models.EnrollmentStatusPending, models.EnrollmentStatusRejected, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "enroll-1", models.EnrollmentStatusPending, models.EnrollmentStatusRejected)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.NoError(t, mock.ExpectationsWereMet())
}
