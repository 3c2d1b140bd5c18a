package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/trainhub/scheduling-api/internal/models"
	appErrors "github.com/trainhub/scheduling-api/pkg/errors"
)

// CourseService exposes read access to courses. Course authoring lives in an
// upstream system; this API only consumes the registry and mutates seat
// counts through the admission path.
type CourseService struct {
	courses CourseReader
}

// NewCourseService constructs the service.
func NewCourseService(courses CourseReader) *CourseService {
	return &CourseService{courses: courses}
}

// Get returns one course with its current seat counts.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load course")
	}
	return course, nil
}
