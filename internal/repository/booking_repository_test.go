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

func TestBookingRepositoryConfirmSuccess(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	date := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT total_quantity, available FROM resources WHERE id = $1 FOR UPDATE`)).
		WithArgs("res-1").
		WillReturnRows(sqlmock.NewRows([]string{"total_quantity", "available"}).AddRow(5, true))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT s.course_id, d.day_date FROM schedule_days d`)).
		WithArgs("sd-1").
		WillReturnRows(sqlmock.NewRows([]string{"course_id", "day_date"}).AddRow("course-1", date))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(SUM(b.quantity), 0) FROM resource_bookings b`)).
		WithArgs("res-1", date).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(2))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO resource_bookings`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	booking, err := repo.Confirm(context.Background(), "res-1", "sd-1", 3)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusConfirmed, booking.Status)
	assert.Equal(t, "course-1", booking.CourseID)
	assert.Equal(t, 3, booking.Quantity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryConfirmCapacityExceeded(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	date := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT total_quantity, available FROM resources WHERE id = $1 FOR UPDATE`)).
		WithArgs("res-1").
		WillReturnRows(sqlmock.NewRows([]string{"total_quantity", "available"}).AddRow(5, true))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT s.course_id, d.day_date FROM schedule_days d`)).
		WithArgs("sd-1").
		WillReturnRows(sqlmock.NewRows([]string{"course_id", "day_date"}).AddRow("course-1", date))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(SUM(b.quantity), 0) FROM resource_bookings b`)).
		WithArgs("res-1", date).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(3))
	mock.ExpectRollback()

	_, err := repo.Confirm(context.Background(), "res-1", "sd-1", 3)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryConfirmUnavailable(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT total_quantity, available FROM resources WHERE id = $1 FOR UPDATE`)).
		WithArgs("res-1").
		WillReturnRows(sqlmock.NewRows([]string{"total_quantity", "available"}).AddRow(5, false))
	mock.ExpectRollback()

	_, err := repo.Confirm(context.Background(), "res-1", "sd-1", 1)
	assert.ErrorIs(t, err, ErrResourceUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryReleaseTwice(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	now := time.Now()
	released := sqlmock.NewRows([]string{"id", "resource_id", "schedule_day_id", "course_id", "quantity", "status", "created_at", "updated_at"}).
		AddRow("book-1", "res-1", "sd-1", "course-1", 2, models.BookingStatusReleased, now, now)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM resource_bookings WHERE id = $1 FOR UPDATE`)).
		WithArgs("book-1").
		WillReturnRows(released)
	mock.ExpectRollback()

	_, err := repo.Release(context.Background(), "book-1")
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.NoError(t, mock.ExpectationsWereMet())
}
