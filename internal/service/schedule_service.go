package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/trainhub/scheduling-api/internal/models"
	"github.com/trainhub/scheduling-api/internal/repository"
	appErrors "github.com/trainhub/scheduling-api/pkg/errors"
	"github.com/trainhub/scheduling-api/pkg/events"
)

// ScheduleRepositoryInterface abstracts schedule persistence for the service.
type ScheduleRepositoryInterface interface {
	FindByID(ctx context.Context, id string) (*models.SessionSchedule, error)
	FindByCourse(ctx context.Context, courseID string) (*models.SessionSchedule, error)
	FindDetailByID(ctx context.Context, id string) (*models.ScheduleDetail, error)
	ListDays(ctx context.Context, scheduleID string) ([]models.ScheduleDay, error)
	FindConflictCandidates(ctx context.Context, date time.Time, roomID, trainerID, excludeScheduleID string) ([]models.AcceptedDay, error)
	Create(ctx context.Context, sched *models.SessionSchedule, days []models.ScheduleDay) error
	ReplaceDays(ctx context.Context, scheduleID string, days []models.ScheduleDay) error
	Accept(ctx context.Context, scheduleID string) (*models.ScheduleDetail, error)
	Reject(ctx context.Context, scheduleID, reason string) (*models.SessionSchedule, error)
}

// CourseReader exposes read access to the course registry.
type CourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// TrainerReader exposes read access to the trainer registry.
type TrainerReader interface {
	FindByID(ctx context.Context, id string) (*models.Trainer, error)
}

// RoomReader exposes read access to the room registry.
type RoomReader interface {
	FindByID(ctx context.Context, id string) (*models.Room, error)
}

// ScheduleService coordinates proposal, editing and the accept/reject
// lifecycle of session schedules.
type ScheduleService struct {
	schedules ScheduleRepositoryInterface
	courses   CourseReader
	trainers  TrainerReader
	rooms     RoomReader
	validator *validator.Validate
	logger    *zap.Logger
	sink      events.Sink
	metrics   *MetricsService
}

// NewScheduleService constructs the service.
func NewScheduleService(
	schedules ScheduleRepositoryInterface,
	courses CourseReader,
	trainers TrainerReader,
	rooms RoomReader,
	logger *zap.Logger,
	sink events.Sink,
	metrics *MetricsService,
) *ScheduleService {
	if sink == nil {
		sink = events.NopSink{}
	}
	return &ScheduleService{
		schedules: schedules,
		courses:   courses,
		trainers:  trainers,
		rooms:     rooms,
		validator: validator.New(),
		logger:    logger,
		sink:      sink,
		metrics:   metrics,
	}
}

// ScheduleDayInput is one proposed day on the wire.
type ScheduleDayInput struct {
	Date      string `json:"date" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	RoomID    string `json:"room_id" validate:"required"`
}

// ProposeScheduleRequest creates a pending schedule for a course.
type ProposeScheduleRequest struct {
	CourseID  string             `json:"course_id" validate:"required"`
	TrainerID string             `json:"trainer_id" validate:"required"`
	Days      []ScheduleDayInput `json:"days" validate:"required,min=1,dive"`
}

// EditScheduleDaysRequest replaces the day batch of a pending schedule.
type EditScheduleDaysRequest struct {
	Days []ScheduleDayInput `json:"days" validate:"required,min=1,dive"`
}

// RejectScheduleRequest carries the mandatory rejection reason.
type RejectScheduleRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// Propose validates a day batch against the proposal itself and every
// accepted schedule, then stores it PENDING.
func (s *ScheduleService) Propose(ctx context.Context, req ProposeScheduleRequest) (*models.ScheduleDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule proposal")
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load course")
	}

	if _, err := s.schedules.FindByCourse(ctx, course.ID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrState, "course already has a schedule")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "check existing schedule")
	}

	trainer, err := s.trainers.FindByID(ctx, req.TrainerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "trainer not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load trainer")
	}
	if !trainer.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "trainer is not active")
	}

	days, err := s.buildDays(ctx, req.Days)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNoConflict(ctx, days, trainer.ID, ""); err != nil {
		return nil, err
	}

	trainerID := trainer.ID
	sched := &models.SessionSchedule{
		CourseID:  course.ID,
		TrainerID: &trainerID,
	}
	if err := s.schedules.Create(ctx, sched, days); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "create schedule")
	}

	s.logger.Sugar().Infow("schedule proposed", "schedule_id", sched.ID, "course_id", course.ID, "days", len(days))
	return &models.ScheduleDetail{SessionSchedule: *sched, Days: days}, nil
}

// EditDays replaces the day batch of a schedule that is still PENDING. The
// new batch is re-validated exactly like a fresh proposal.
func (s *ScheduleService) EditDays(ctx context.Context, scheduleID string, req EditScheduleDaysRequest) (*models.ScheduleDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid day batch")
	}

	sched, err := s.schedules.FindByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load schedule")
	}
	if sched.Status != models.ScheduleStatusPending {
		return nil, appErrors.Clone(appErrors.ErrState, "only pending schedules can be edited")
	}

	days, err := s.buildDays(ctx, req.Days)
	if err != nil {
		return nil, err
	}
	trainerID := ""
	if sched.TrainerID != nil {
		trainerID = *sched.TrainerID
	}
	if err := s.ensureNoConflict(ctx, days, trainerID, sched.ID); err != nil {
		return nil, err
	}

	if err := s.schedules.ReplaceDays(ctx, sched.ID, days); err != nil {
		if errors.Is(err, repository.ErrInvalidState) {
			return nil, appErrors.Clone(appErrors.ErrState, "only pending schedules can be edited")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "replace schedule days")
	}

	s.logger.Sugar().Infow("schedule days replaced", "schedule_id", sched.ID, "days", len(days))
	return &models.ScheduleDetail{SessionSchedule: *sched, Days: days}, nil
}

// Accept finalises a pending schedule. Conflict checks run again inside the
// repository transaction under row locks; a detected collision surfaces as a
// conflict error naming the offending day.
func (s *ScheduleService) Accept(ctx context.Context, scheduleID string) (*models.ScheduleDetail, error) {
	detail, err := s.schedules.Accept(ctx, scheduleID)
	if err != nil {
		var conflict *models.ScheduleConflictError
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		case errors.Is(err, repository.ErrInvalidState):
			return nil, appErrors.Clone(appErrors.ErrState, "schedule is not pending")
		case errors.As(err, &conflict):
			s.metrics.RecordScheduleDecision(OutcomeConflict)
			return nil, appErrors.Wrap(conflict, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, conflict.Message)
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "accept schedule")
		}
	}

	s.metrics.RecordScheduleDecision(OutcomeAccepted)
	s.sink.Publish(events.Event{
		Name:        models.EventScheduleAccepted,
		AggregateID: detail.ID,
		Payload: map[string]interface{}{
			"course_id": detail.CourseID,
			"days":      len(detail.Days),
		},
	})
	s.logger.Sugar().Infow("schedule accepted", "schedule_id", detail.ID, "course_id", detail.CourseID)
	return detail, nil
}

// Reject moves a pending schedule to its terminal REJECTED state. The reason
// is mandatory and preserved on the record.
func (s *ScheduleService) Reject(ctx context.Context, scheduleID string, req RejectScheduleRequest) (*models.SessionSchedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "rejection reason is required")
	}

	sched, err := s.schedules.Reject(ctx, scheduleID, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		case errors.Is(err, repository.ErrInvalidState):
			return nil, appErrors.Clone(appErrors.ErrState, "schedule is not pending")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "reject schedule")
		}
	}

	s.metrics.RecordScheduleDecision(OutcomeRejected)
	s.sink.Publish(events.Event{
		Name:        models.EventScheduleRejected,
		AggregateID: sched.ID,
		Payload: map[string]interface{}{
			"course_id": sched.CourseID,
			"reason":    req.Reason,
		},
	})
	s.logger.Sugar().Infow("schedule rejected", "schedule_id", sched.ID, "reason", req.Reason)
	return sched, nil
}

// Get loads a schedule with its day list.
func (s *ScheduleService) Get(ctx context.Context, scheduleID string) (*models.ScheduleDetail, error) {
	detail, err := s.schedules.FindDetailByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load schedule")
	}
	return detail, nil
}

// GetByCourse loads the schedule attached to a course.
func (s *ScheduleService) GetByCourse(ctx context.Context, courseID string) (*models.ScheduleDetail, error) {
	sched, err := s.schedules.FindByCourse(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course has no schedule")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load course schedule")
	}
	days, err := s.schedules.ListDays(ctx, sched.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load schedule days")
	}
	return &models.ScheduleDetail{SessionSchedule: *sched, Days: days}, nil
}

// buildDays parses and validates the wire day batch. Each room must exist.
func (s *ScheduleService) buildDays(ctx context.Context, inputs []ScheduleDayInput) ([]models.ScheduleDay, error) {
	days := make([]models.ScheduleDay, 0, len(inputs))
	seenRooms := make(map[string]struct{}, len(inputs))
	for i, input := range inputs {
		slot, err := models.NewSlot(input.Date, input.StartTime, input.EndTime)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("day %d: %v", i+1, err))
		}
		if _, ok := seenRooms[input.RoomID]; !ok {
			if _, err := s.rooms.FindByID(ctx, input.RoomID); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("day %d: room not found", i+1))
				}
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load room")
			}
			seenRooms[input.RoomID] = struct{}{}
		}
		days = append(days, models.ScheduleDay{
			DayDate:   slot.Date,
			StartTime: slot.Start,
			EndTime:   slot.End,
			RoomID:    input.RoomID,
		})
	}
	return days, nil
}

// ensureNoConflict rejects a day batch when two of its own days collide or
// when any day overlaps an accepted schedule's room or trainer slot. This is
// the advisory pass; Accept repeats it under locks.
func (s *ScheduleService) ensureNoConflict(ctx context.Context, days []models.ScheduleDay, trainerID, excludeScheduleID string) error {
	for i := range days {
		for j := i + 1; j < len(days); j++ {
			if !days[i].Slot().Overlaps(days[j].Slot()) {
				continue
			}
			conflict := models.ConflictDay{
				Date:      days[i].Slot().DateString(),
				StartTime: days[i].StartTime,
				EndTime:   days[i].EndTime,
			}
			msg := "proposal days overlap for the assigned trainer"
			conflict.Dimension = models.ConflictDimensionTrainer
			conflict.TrainerID = trainerID
			if days[i].RoomID == days[j].RoomID {
				msg = "proposal days overlap in the same room"
				conflict.Dimension = models.ConflictDimensionRoom
				conflict.RoomID = days[i].RoomID
				conflict.TrainerID = ""
			}
			return s.conflictError(&models.ScheduleConflictError{Message: msg, Day: conflict, DayIndex: j})
		}
	}

	for i, day := range days {
		candidates, err := s.schedules.FindConflictCandidates(ctx, day.DayDate, day.RoomID, trainerID, excludeScheduleID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "check schedule conflicts")
		}
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
			msg := "trainer already scheduled for this slot"
			conflict.Dimension = models.ConflictDimensionTrainer
			conflict.TrainerID = trainerID
			if candidate.RoomID == day.RoomID {
				msg = "room already booked for this slot"
				conflict.Dimension = models.ConflictDimensionRoom
				conflict.RoomID = candidate.RoomID
				conflict.TrainerID = ""
			}
			return s.conflictError(&models.ScheduleConflictError{Message: msg, Day: conflict, DayIndex: i})
		}
	}
	return nil
}

func (s *ScheduleService) conflictError(conflict *models.ScheduleConflictError) error {
	s.metrics.RecordScheduleDecision(OutcomeConflict)
	return appErrors.Wrap(conflict, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, conflict.Message)
}
