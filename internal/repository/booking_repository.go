package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/trainhub/scheduling-api/internal/models"
)

// BookingRepository handles persistence of resource bookings and the
// quantity admission transaction.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs the repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `id, resource_id, schedule_day_id, course_id, quantity, status, created_at, updated_at`

// FindByID returns a booking by its ID.
func (r *BookingRepository) FindByID(ctx context.Context, id string) (*models.ResourceBooking, error) {
	query := fmt.Sprintf(`SELECT %s FROM resource_bookings WHERE id = $1`, bookingColumns)
	var booking models.ResourceBooking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		return nil, err
	}
	return &booking, nil
}

// ListByResource returns a resource's bookings, newest first.
func (r *BookingRepository) ListByResource(ctx context.Context, resourceID string) ([]models.ResourceBooking, error) {
	query := fmt.Sprintf(`SELECT %s FROM resource_bookings WHERE resource_id = $1 ORDER BY created_at DESC`, bookingColumns)
	var bookings []models.ResourceBooking
	if err := r.db.SelectContext(ctx, &bookings, query, resourceID); err != nil {
		return nil, fmt.Errorf("list resource bookings: %w", err)
	}
	return bookings, nil
}

// ListByScheduleDay returns the bookings attached to one schedule day.
func (r *BookingRepository) ListByScheduleDay(ctx context.Context, scheduleDayID string) ([]models.ResourceBooking, error) {
	query := fmt.Sprintf(`SELECT %s FROM resource_bookings WHERE schedule_day_id = $1 ORDER BY created_at ASC`, bookingColumns)
	var bookings []models.ResourceBooking
	if err := r.db.SelectContext(ctx, &bookings, query, scheduleDayID); err != nil {
		return nil, fmt.Errorf("list schedule day bookings: %w", err)
	}
	return bookings, nil
}

const confirmedQuantityQuery = `SELECT COALESCE(SUM(b.quantity), 0) FROM resource_bookings b
        JOIN schedule_days d ON d.id = b.schedule_day_id
        WHERE b.resource_id = $1 AND b.status = 'CONFIRMED' AND d.day_date = $2`

// ConfirmedQuantity sums confirmed booking quantities for a resource on a
// date. Advisory read; the authoritative sum runs again inside Confirm.
func (r *BookingRepository) ConfirmedQuantity(ctx context.Context, resourceID string, date time.Time) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, confirmedQuantityQuery, resourceID, date); err != nil {
		return 0, fmt.Errorf("sum confirmed bookings: %w", err)
	}
	return total, nil
}

// Confirm books quantity units of a resource for a schedule day atomically:
// the resource row is locked, the confirmed sum for the day's date
// re-computed, and the booking inserted CONFIRMED only if the remainder
// covers the request.
func (r *BookingRepository) Confirm(ctx context.Context, resourceID, scheduleDayID string, quantity int) (booking *models.ResourceBooking, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin confirm booking: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var resource struct {
		Total     int  `db:"total_quantity"`
		Available bool `db:"available"`
	}
	if err = tx.GetContext(ctx, &resource, `SELECT total_quantity, available FROM resources WHERE id = $1 FOR UPDATE`, resourceID); err != nil {
		return nil, err
	}
	if !resource.Available {
		err = ErrResourceUnavailable
		return nil, err
	}

	var day struct {
		CourseID string    `db:"course_id"`
		DayDate  time.Time `db:"day_date"`
	}
	const dayQuery = `SELECT s.course_id, d.day_date FROM schedule_days d
        JOIN session_schedules s ON s.id = d.schedule_id
        WHERE d.id = $1`
	if err = tx.GetContext(ctx, &day, dayQuery, scheduleDayID); err != nil {
		return nil, err
	}

	var reserved int
	if err = tx.GetContext(ctx, &reserved, confirmedQuantityQuery, resourceID, day.DayDate); err != nil {
		return nil, fmt.Errorf("sum confirmed bookings: %w", err)
	}
	if quantity > resource.Total-reserved {
		err = ErrCapacityExceeded
		return nil, err
	}

	now := time.Now().UTC()
	record := &models.ResourceBooking{
		ID:            uuid.NewString(),
		ResourceID:    resourceID,
		ScheduleDayID: scheduleDayID,
		CourseID:      day.CourseID,
		Quantity:      quantity,
		Status:        models.BookingStatusConfirmed,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	const insertQuery = `INSERT INTO resource_bookings (id, resource_id, schedule_day_id, course_id, quantity, status, created_at, updated_at)
        VALUES (:id, :resource_id, :schedule_day_id, :course_id, :quantity, :status, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertQuery, record); err != nil {
		return nil, fmt.Errorf("insert booking: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit confirm booking: %w", err)
	}
	return record, nil
}

// Release frees a confirmed booking. A second release of the same booking
// fails with ErrInvalidState and does not double-credit availability.
func (r *BookingRepository) Release(ctx context.Context, bookingID string) (booking *models.ResourceBooking, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin release booking: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current models.ResourceBooking
	lockQuery := fmt.Sprintf(`SELECT %s FROM resource_bookings WHERE id = $1 FOR UPDATE`, bookingColumns)
	if err = tx.GetContext(ctx, &current, lockQuery, bookingID); err != nil {
		return nil, err
	}
	if current.Status != models.BookingStatusConfirmed {
		err = ErrInvalidState
		return nil, err
	}

	now := time.Now().UTC()
	if _, err = tx.ExecContext(ctx, `UPDATE resource_bookings SET status = $2, updated_at = $3 WHERE id = $1`, bookingID, models.BookingStatusReleased, now); err != nil {
		return nil, fmt.Errorf("release booking: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit release booking: %w", err)
	}

	current.Status = models.BookingStatusReleased
	current.UpdatedAt = now
	return &current, nil
}
