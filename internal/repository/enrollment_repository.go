package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/trainhub/scheduling-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments and the seat
// admission transaction.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = `id, course_id, participant_id, status, created_at, updated_at`

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE id = $1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ListByCourse returns a course's enrollments ordered by creation time.
func (r *EnrollmentRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE course_id = $1 ORDER BY created_at ASC`, enrollmentColumns)
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, courseID); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return enrollments, nil
}

// Create persists a new pending enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	enrollment.UpdatedAt = now
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusPending
	}

	const query = `INSERT INTO enrollments (id, course_id, participant_id, status, created_at, updated_at)
        VALUES (:id, :course_id, :participant_id, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// Admit performs the check-and-increment seat admission atomically: the
// course row is locked, the seat bound re-checked, and the reserved count and
// enrollment status updated together. On capacity exhaustion the enrollment
// stays PENDING and ErrCapacityExceeded is returned.
func (r *EnrollmentRepository) Admit(ctx context.Context, enrollmentID string) (result *models.AdmissionResult, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin admit enrollment: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var enrollment models.Enrollment
	lockQuery := fmt.Sprintf(`SELECT %s FROM enrollments WHERE id = $1 FOR UPDATE`, enrollmentColumns)
	if err = tx.GetContext(ctx, &enrollment, lockQuery, enrollmentID); err != nil {
		return nil, err
	}
	if enrollment.Status != models.EnrollmentStatusPending {
		err = ErrInvalidState
		return nil, err
	}

	var seats struct {
		Total    int `db:"total_seats"`
		Reserved int `db:"reserved_seats"`
	}
	if err = tx.GetContext(ctx, &seats, `SELECT total_seats, reserved_seats FROM courses WHERE id = $1 FOR UPDATE`, enrollment.CourseID); err != nil {
		return nil, fmt.Errorf("lock course seats: %w", err)
	}
	if seats.Reserved >= seats.Total {
		err = ErrCapacityExceeded
		return nil, err
	}

	now := time.Now().UTC()
	if _, err = tx.ExecContext(ctx, `UPDATE courses SET reserved_seats = reserved_seats + 1, updated_at = $2 WHERE id = $1`, enrollment.CourseID, now); err != nil {
		return nil, fmt.Errorf("increment reserved seats: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `UPDATE enrollments SET status = $2, updated_at = $3 WHERE id = $1`, enrollmentID, models.EnrollmentStatusAccepted, now); err != nil {
		return nil, fmt.Errorf("admit enrollment: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit admit enrollment: %w", err)
	}

	enrollment.Status = models.EnrollmentStatusAccepted
	enrollment.UpdatedAt = now
	return &models.AdmissionResult{
		Enrollment:    enrollment,
		ReservedSeats: seats.Reserved + 1,
		TotalSeats:    seats.Total,
	}, nil
}

// UpdateStatus applies a guarded status transition. Returns ErrInvalidState
// when the enrollment is no longer in the expected state.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, from, to models.EnrollmentStatus) error {
	const query = `UPDATE enrollments SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, from, to, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	if affected == 0 {
		return ErrInvalidState
	}
	return nil
}

// Cancel gives an accepted seat back atomically: the enrollment and course
// rows are locked, the reserved count decremented, and the enrollment moved
// to its terminal CANCELLED state.
func (r *EnrollmentRepository) Cancel(ctx context.Context, enrollmentID string) (result *models.AdmissionResult, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin cancel enrollment: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var enrollment models.Enrollment
	lockQuery := fmt.Sprintf(`SELECT %s FROM enrollments WHERE id = $1 FOR UPDATE`, enrollmentColumns)
	if err = tx.GetContext(ctx, &enrollment, lockQuery, enrollmentID); err != nil {
		return nil, err
	}
	if enrollment.Status != models.EnrollmentStatusAccepted {
		err = ErrInvalidState
		return nil, err
	}

	var seats struct {
		Total    int `db:"total_seats"`
		Reserved int `db:"reserved_seats"`
	}
	if err = tx.GetContext(ctx, &seats, `SELECT total_seats, reserved_seats FROM courses WHERE id = $1 FOR UPDATE`, enrollment.CourseID); err != nil {
		return nil, fmt.Errorf("lock course seats: %w", err)
	}
	if seats.Reserved <= 0 {
		err = ErrInvalidState
		return nil, err
	}

	now := time.Now().UTC()
	if _, err = tx.ExecContext(ctx, `UPDATE courses SET reserved_seats = reserved_seats - 1, updated_at = $2 WHERE id = $1`, enrollment.CourseID, now); err != nil {
		return nil, fmt.Errorf("decrement reserved seats: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `UPDATE enrollments SET status = $2, updated_at = $3 WHERE id = $1`, enrollmentID, models.EnrollmentStatusCancelled, now); err != nil {
		return nil, fmt.Errorf("cancel enrollment: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit cancel enrollment: %w", err)
	}

	enrollment.Status = models.EnrollmentStatusCancelled
	enrollment.UpdatedAt = now
	return &models.AdmissionResult{
		Enrollment:    enrollment,
		ReservedSeats: seats.Reserved - 1,
		TotalSeats:    seats.Total,
	}, nil
}
