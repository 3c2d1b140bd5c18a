package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/trainhub/scheduling-api/internal/models"
)

// ScheduleRepository provides persistence for session schedules and their
// day lists, including the transactional accept/reject paths.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

const scheduleColumns = `id, course_id, trainer_id, status, rejection_reason, created_at, updated_at`
const dayColumns = `id, schedule_id, day_date, start_time, end_time, room_id, created_at`

// FindByID loads a schedule by id.
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*models.SessionSchedule, error) {
	query := fmt.Sprintf(`SELECT %s FROM session_schedules WHERE id = $1`, scheduleColumns)
	var sched models.SessionSchedule
	if err := r.db.GetContext(ctx, &sched, query, id); err != nil {
		return nil, err
	}
	return &sched, nil
}

// FindByCourse loads the schedule attached to a course.
func (r *ScheduleRepository) FindByCourse(ctx context.Context, courseID string) (*models.SessionSchedule, error) {
	query := fmt.Sprintf(`SELECT %s FROM session_schedules WHERE course_id = $1`, scheduleColumns)
	var sched models.SessionSchedule
	if err := r.db.GetContext(ctx, &sched, query, courseID); err != nil {
		return nil, err
	}
	return &sched, nil
}

// FindDetailByID loads a schedule with its ordered day list.
func (r *ScheduleRepository) FindDetailByID(ctx context.Context, id string) (*models.ScheduleDetail, error) {
	sched, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	days, err := r.ListDays(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.ScheduleDetail{SessionSchedule: *sched, Days: days}, nil
}

// ListDays returns a schedule's days ordered by date and start time.
func (r *ScheduleRepository) ListDays(ctx context.Context, scheduleID string) ([]models.ScheduleDay, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedule_days WHERE schedule_id = $1 ORDER BY day_date ASC, start_time ASC`, dayColumns)
	var days []models.ScheduleDay
	if err := r.db.SelectContext(ctx, &days, query, scheduleID); err != nil {
		return nil, fmt.Errorf("list schedule days: %w", err)
	}
	return days, nil
}

// FindDayByID loads a single schedule day.
func (r *ScheduleRepository) FindDayByID(ctx context.Context, id string) (*models.ScheduleDay, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedule_days WHERE id = $1`, dayColumns)
	var day models.ScheduleDay
	if err := r.db.GetContext(ctx, &day, query, id); err != nil {
		return nil, err
	}
	return &day, nil
}

const conflictCandidateQuery = `SELECT s.id AS schedule_id, s.trainer_id, d.day_date, d.start_time, d.end_time, d.room_id
        FROM schedule_days d
        JOIN session_schedules s ON s.id = d.schedule_id
        WHERE s.status = 'ACCEPTED' AND d.day_date = $1 AND s.id <> $2
        AND (d.room_id = $3 OR (s.trainer_id IS NOT NULL AND s.trainer_id = $4))`

// FindConflictCandidates returns days of accepted schedules on the given date
// that touch the same room or trainer, excluding the schedule under
// evaluation. Overlap per slot is decided by the caller.
func (r *ScheduleRepository) FindConflictCandidates(ctx context.Context, date time.Time, roomID, trainerID, excludeScheduleID string) ([]models.AcceptedDay, error) {
	return conflictCandidates(ctx, r.db, date, roomID, trainerID, excludeScheduleID)
}

func conflictCandidates(ctx context.Context, q sqlx.QueryerContext, date time.Time, roomID, trainerID, excludeScheduleID string) ([]models.AcceptedDay, error) {
	var candidates []models.AcceptedDay
	if err := sqlx.SelectContext(ctx, q, &candidates, conflictCandidateQuery, date, excludeScheduleID, roomID, trainerID); err != nil {
		return nil, fmt.Errorf("find conflict candidates: %w", err)
	}
	return candidates, nil
}

// Create stores a new pending schedule and its day batch atomically.
func (r *ScheduleRepository) Create(ctx context.Context, sched *models.SessionSchedule, days []models.ScheduleDay) (err error) {
	if sched.ID == "" {
		sched.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if sched.CreatedAt.IsZero() {
		sched.CreatedAt = now
	}
	sched.UpdatedAt = now
	sched.Status = models.ScheduleStatusPending

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create schedule: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertSchedule = `INSERT INTO session_schedules (id, course_id, trainer_id, status, rejection_reason, created_at, updated_at)
        VALUES (:id, :course_id, :trainer_id, :status, :rejection_reason, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertSchedule, sched); err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}

	if err = insertDays(ctx, tx, sched.ID, days); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create schedule: %w", err)
	}
	return nil
}

// ReplaceDays swaps a pending schedule's day batch atomically. Fails with
// ErrInvalidState once the schedule left PENDING.
func (r *ScheduleRepository) ReplaceDays(ctx context.Context, scheduleID string, days []models.ScheduleDay) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace days: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var status models.ScheduleStatus
	if err = tx.GetContext(ctx, &status, `SELECT status FROM session_schedules WHERE id = $1 FOR UPDATE`, scheduleID); err != nil {
		return err
	}
	if status != models.ScheduleStatusPending {
		err = ErrInvalidState
		return err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM schedule_days WHERE schedule_id = $1`, scheduleID); err != nil {
		return fmt.Errorf("clear schedule days: %w", err)
	}
	if err = insertDays(ctx, tx, scheduleID, days); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `UPDATE session_schedules SET updated_at = $2 WHERE id = $1`, scheduleID, time.Now().UTC()); err != nil {
		return fmt.Errorf("touch schedule: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace days: %w", err)
	}
	return nil
}

func insertDays(ctx context.Context, tx *sqlx.Tx, scheduleID string, days []models.ScheduleDay) error {
	now := time.Now().UTC()
	for i := range days {
		day := days[i]
		if day.ID == "" {
			day.ID = uuid.NewString()
		}
		day.ScheduleID = scheduleID
		if day.CreatedAt.IsZero() {
			day.CreatedAt = now
		}

		const query = `INSERT INTO schedule_days (id, schedule_id, day_date, start_time, end_time, room_id, created_at)
        VALUES (:id, :schedule_id, :day_date, :start_time, :end_time, :room_id, :created_at)`
		if _, err := tx.NamedExecContext(ctx, query, &day); err != nil {
			return fmt.Errorf("insert schedule day: %w", err)
		}
		days[i] = day
	}
	return nil
}

// Accept transitions a pending schedule to ACCEPTED after re-validating room
// and trainer conflicts under row locks. Competing accepts that touch the
// same rooms or trainer serialize on those locks, so two overlapping
// schedules can never both pass.
func (r *ScheduleRepository) Accept(ctx context.Context, scheduleID string) (detail *models.ScheduleDetail, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin accept schedule: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var sched models.SessionSchedule
	lockQuery := fmt.Sprintf(`SELECT %s FROM session_schedules WHERE id = $1 FOR UPDATE`, scheduleColumns)
	if err = tx.GetContext(ctx, &sched, lockQuery, scheduleID); err != nil {
		return nil, err
	}
	if sched.Status != models.ScheduleStatusPending {
		err = ErrInvalidState
		return nil, err
	}

	var days []models.ScheduleDay
	dayQuery := fmt.Sprintf(`SELECT %s FROM schedule_days WHERE schedule_id = $1 ORDER BY day_date ASC, start_time ASC`, dayColumns)
	if err = tx.SelectContext(ctx, &days, dayQuery, scheduleID); err != nil {
		return nil, fmt.Errorf("load schedule days: %w", err)
	}

	if err = lockRooms(ctx, tx, days); err != nil {
		return nil, err
	}
	if sched.TrainerID != nil {
		var trainerRow string
		if err = tx.GetContext(ctx, &trainerRow, `SELECT id FROM trainers WHERE id = $1 FOR UPDATE`, *sched.TrainerID); err != nil {
			return nil, fmt.Errorf("lock trainer: %w", err)
		}
	}

	trainerID := ""
	if sched.TrainerID != nil {
		trainerID = *sched.TrainerID
	}
	for i, day := range days {
		var candidates []models.AcceptedDay
		candidates, err = conflictCandidates(ctx, tx, day.DayDate, day.RoomID, trainerID, scheduleID)
		if err != nil {
			return nil, err
		}
		if conflict := classifyConflict(day, trainerID, candidates); conflict != nil {
			conflict.DayIndex = i
			err = conflict
			return nil, err
		}
	}

	now := time.Now().UTC()
	if _, err = tx.ExecContext(ctx, `UPDATE session_schedules SET status = $2, updated_at = $3 WHERE id = $1`, scheduleID, models.ScheduleStatusAccepted, now); err != nil {
		return nil, fmt.Errorf("accept schedule: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit accept schedule: %w", err)
	}

	sched.Status = models.ScheduleStatusAccepted
	sched.UpdatedAt = now
	return &models.ScheduleDetail{SessionSchedule: sched, Days: days}, nil
}

// Reject transitions a pending schedule to REJECTED with a reason.
func (r *ScheduleRepository) Reject(ctx context.Context, scheduleID, reason string) (sched *models.SessionSchedule, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin reject schedule: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current models.SessionSchedule
	lockQuery := fmt.Sprintf(`SELECT %s FROM session_schedules WHERE id = $1 FOR UPDATE`, scheduleColumns)
	if err = tx.GetContext(ctx, &current, lockQuery, scheduleID); err != nil {
		return nil, err
	}
	if current.Status != models.ScheduleStatusPending {
		err = ErrInvalidState
		return nil, err
	}

	now := time.Now().UTC()
	if _, err = tx.ExecContext(ctx, `UPDATE session_schedules SET status = $2, rejection_reason = $3, updated_at = $4 WHERE id = $1`, scheduleID, models.ScheduleStatusRejected, reason, now); err != nil {
		return nil, fmt.Errorf("reject schedule: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reject schedule: %w", err)
	}

	current.Status = models.ScheduleStatusRejected
	current.RejectionReason = &reason
	current.UpdatedAt = now
	return &current, nil
}

// RoomReferenced reports whether any pending or accepted schedule still uses
// the room.
func (r *ScheduleRepository) RoomReferenced(ctx context.Context, roomID string) (bool, error) {
	const query = `SELECT 1 FROM schedule_days d
        JOIN session_schedules s ON s.id = d.schedule_id
        WHERE d.room_id = $1 AND s.status IN ($2, $3) LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, roomID, models.ScheduleStatusPending, models.ScheduleStatusAccepted); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check room references: %w", err)
	}
	return true, nil
}

func lockRooms(ctx context.Context, tx *sqlx.Tx, days []models.ScheduleDay) error {
	seen := make(map[string]struct{}, len(days))
	var roomIDs []string
	for _, day := range days {
		if _, ok := seen[day.RoomID]; ok {
			continue
		}
		seen[day.RoomID] = struct{}{}
		roomIDs = append(roomIDs, day.RoomID)
	}
	if len(roomIDs) == 0 {
		return nil
	}

	placeholders := make([]string, len(roomIDs))
	args := make([]interface{}, len(roomIDs))
	for i, id := range roomIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf("SELECT id FROM rooms WHERE id IN (%s) ORDER BY id FOR UPDATE", strings.Join(placeholders, ","))

	var locked []string
	if err := tx.SelectContext(ctx, &locked, query, args...); err != nil {
		return fmt.Errorf("lock rooms: %w", err)
	}
	if len(locked) != len(roomIDs) {
		return sql.ErrNoRows
	}
	return nil
}

func classifyConflict(day models.ScheduleDay, trainerID string, candidates []models.AcceptedDay) *models.ScheduleConflictError {
	slot := day.Slot()
	for _, candidate := range candidates {
		if !slot.Overlaps(candidate.Slot()) {
			continue
		}
		conflict := models.ConflictDay{
			ScheduleID: candidate.ScheduleID,
			Date:       candidate.Slot().DateString(),
			StartTime:  candidate.StartTime,
			EndTime:    candidate.EndTime,
		}
		if candidate.RoomID == day.RoomID {
			conflict.Dimension = models.ConflictDimensionRoom
			conflict.RoomID = candidate.RoomID
			return &models.ScheduleConflictError{Message: "room already booked for this slot", Day: conflict}
		}
		if trainerID != "" && candidate.TrainerID != nil && *candidate.TrainerID == trainerID {
			conflict.Dimension = models.ConflictDimensionTrainer
			conflict.TrainerID = trainerID
			return &models.ScheduleConflictError{Message: "trainer already scheduled for this slot", Day: conflict}
		}
	}
	return nil
}
