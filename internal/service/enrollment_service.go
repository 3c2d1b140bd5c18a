package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/trainhub/scheduling-api/internal/models"
	"github.com/trainhub/scheduling-api/internal/repository"
	appErrors "github.com/trainhub/scheduling-api/pkg/errors"
	"github.com/trainhub/scheduling-api/pkg/events"
)

// EnrollmentRepositoryInterface abstracts enrollment persistence.
type EnrollmentRepositoryInterface interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.Enrollment, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Admit(ctx context.Context, enrollmentID string) (*models.AdmissionResult, error)
	UpdateStatus(ctx context.Context, id string, from, to models.EnrollmentStatus) error
	Cancel(ctx context.Context, enrollmentID string) (*models.AdmissionResult, error)
}

// EnrollmentService manages the seat admission ledger of courses.
type EnrollmentService struct {
	enrollments EnrollmentRepositoryInterface
	courses     CourseReader
	validator   *validator.Validate
	logger      *zap.Logger
	sink        events.Sink
	metrics     *MetricsService
}

// NewEnrollmentService constructs the service.
func NewEnrollmentService(
	enrollments EnrollmentRepositoryInterface,
	courses CourseReader,
	logger *zap.Logger,
	sink events.Sink,
	metrics *MetricsService,
) *EnrollmentService {
	if sink == nil {
		sink = events.NopSink{}
	}
	return &EnrollmentService{
		enrollments: enrollments,
		courses:     courses,
		validator:   validator.New(),
		logger:      logger,
		sink:        sink,
		metrics:     metrics,
	}
}

// RequestEnrollmentRequest registers a participant's interest in a course.
type RequestEnrollmentRequest struct {
	CourseID      string `json:"course_id" validate:"required"`
	ParticipantID string `json:"participant_id" validate:"required"`
}

// Request stores a new PENDING enrollment. No seat is reserved yet.
func (s *EnrollmentService) Request(ctx context.Context, req RequestEnrollmentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment request")
	}

	if _, err := s.courses.FindByID(ctx, req.CourseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load course")
	}

	enrollment := &models.Enrollment{
		CourseID:      req.CourseID,
		ParticipantID: req.ParticipantID,
	}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "create enrollment")
	}

	s.logger.Sugar().Infow("enrollment requested", "enrollment_id", enrollment.ID, "course_id", enrollment.CourseID)
	return enrollment, nil
}

// Admit grants a seat to a pending enrollment. The seat bound is enforced
// inside the repository transaction; exhaustion surfaces as a capacity error
// and leaves the enrollment PENDING.
func (s *EnrollmentService) Admit(ctx context.Context, enrollmentID string) (*models.AdmissionResult, error) {
	result, err := s.enrollments.Admit(ctx, enrollmentID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		case errors.Is(err, repository.ErrInvalidState):
			return nil, appErrors.Clone(appErrors.ErrState, "enrollment is not pending")
		case errors.Is(err, repository.ErrCapacityExceeded):
			s.metrics.RecordAdmission(OutcomeDenied)
			s.sink.Publish(events.Event{
				Name:        models.EventEnrollmentDenied,
				AggregateID: enrollmentID,
			})
			return nil, appErrors.Clone(appErrors.ErrCapacityExceeded, "course has no free seats")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "admit enrollment")
		}
	}

	s.metrics.RecordAdmission(OutcomeGranted)
	s.sink.Publish(events.Event{
		Name:        models.EventEnrollmentAdmitted,
		AggregateID: result.Enrollment.ID,
		Payload: map[string]interface{}{
			"course_id":      result.Enrollment.CourseID,
			"reserved_seats": result.ReservedSeats,
			"total_seats":    result.TotalSeats,
		},
	})
	s.logger.Sugar().Infow("enrollment admitted",
		"enrollment_id", result.Enrollment.ID,
		"course_id", result.Enrollment.CourseID,
		"reserved_seats", result.ReservedSeats,
		"total_seats", result.TotalSeats)
	return result, nil
}

// Reject declines a pending enrollment without touching seat counts.
func (s *EnrollmentService) Reject(ctx context.Context, enrollmentID string) (*models.Enrollment, error) {
	if _, err := s.enrollments.FindByID(ctx, enrollmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load enrollment")
	}

	if err := s.enrollments.UpdateStatus(ctx, enrollmentID, models.EnrollmentStatusPending, models.EnrollmentStatusRejected); err != nil {
		if errors.Is(err, repository.ErrInvalidState) {
			return nil, appErrors.Clone(appErrors.ErrState, "enrollment is not pending")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "reject enrollment")
	}

	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "reload enrollment")
	}

	s.logger.Sugar().Infow("enrollment rejected", "enrollment_id", enrollmentID)
	return enrollment, nil
}

// Cancel gives back the seat of an accepted enrollment. Cancelling anything
// other than an ACCEPTED enrollment is a state error, so a double cancel can
// never decrement the reserved count twice.
func (s *EnrollmentService) Cancel(ctx context.Context, enrollmentID string) (*models.AdmissionResult, error) {
	result, err := s.enrollments.Cancel(ctx, enrollmentID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		case errors.Is(err, repository.ErrInvalidState):
			return nil, appErrors.Clone(appErrors.ErrState, "only accepted enrollments can be cancelled")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "cancel enrollment")
		}
	}

	s.sink.Publish(events.Event{
		Name:        models.EventEnrollmentCancelled,
		AggregateID: result.Enrollment.ID,
		Payload: map[string]interface{}{
			"course_id":      result.Enrollment.CourseID,
			"reserved_seats": result.ReservedSeats,
		},
	})
	s.logger.Sugar().Infow("enrollment cancelled", "enrollment_id", result.Enrollment.ID, "course_id", result.Enrollment.CourseID)
	return result, nil
}

// ListByCourse returns a course's enrollments in request order.
func (s *EnrollmentService) ListByCourse(ctx context.Context, courseID string) ([]models.Enrollment, error) {
	if _, err := s.courses.FindByID(ctx, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load course")
	}

	enrollments, err := s.enrollments.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list enrollments")
	}
	return enrollments, nil
}
