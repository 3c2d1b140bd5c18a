package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/trainhub/scheduling-api/internal/models"
	appErrors "github.com/trainhub/scheduling-api/pkg/errors"
	"github.com/trainhub/scheduling-api/pkg/export"
)

// ExportService renders accepted schedules into printable hand-outs.
type ExportService struct {
	schedules ScheduleRepositoryInterface
	courses   CourseReader
	trainers  TrainerReader
	rooms     RoomReader
	renderer  *export.TimetablePDF
	logger    *zap.Logger
	enabled   bool
}

// NewExportService constructs the service.
func NewExportService(
	schedules ScheduleRepositoryInterface,
	courses CourseReader,
	trainers TrainerReader,
	rooms RoomReader,
	logger *zap.Logger,
	enabled bool,
) *ExportService {
	return &ExportService{
		schedules: schedules,
		courses:   courses,
		trainers:  trainers,
		rooms:     rooms,
		renderer:  export.NewTimetablePDF(),
		logger:    logger,
		enabled:   enabled,
	}
}

// Timetable renders the PDF timetable of an accepted schedule.
func (s *ExportService) Timetable(ctx context.Context, scheduleID string) ([]byte, error) {
	if !s.enabled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "exports are disabled")
	}

	detail, err := s.schedules.FindDetailByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load schedule")
	}
	if detail.Status != models.ScheduleStatusAccepted {
		return nil, appErrors.Clone(appErrors.ErrState, "only accepted schedules can be exported")
	}

	course, err := s.courses.FindByID(ctx, detail.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load course")
	}

	sheet := export.TimetableSheet{CourseTitle: course.Title}
	if detail.TrainerID != nil {
		if trainer, err := s.trainers.FindByID(ctx, *detail.TrainerID); err == nil {
			sheet.TrainerName = trainer.FullName
		}
	}

	roomNames := make(map[string]string, len(detail.Days))
	for _, day := range detail.Days {
		name, ok := roomNames[day.RoomID]
		if !ok {
			name = day.RoomID
			if room, err := s.rooms.FindByID(ctx, day.RoomID); err == nil {
				name = room.Name
			}
			roomNames[day.RoomID] = name
		}
		sheet.Days = append(sheet.Days, export.TimetableRow{
			Date:  day.Slot().DateString(),
			Start: day.StartTime,
			End:   day.EndTime,
			Room:  name,
		})
	}

	payload, err := s.renderer.Render(sheet)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render timetable")
	}

	s.logger.Sugar().Infow("timetable exported", "schedule_id", scheduleID, "bytes", len(payload))
	return payload, nil
}
