package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/trainhub/scheduling-api/internal/models"
)

// CourseRepository reads course rows. Courses are authored by an external
// collaborator; only the enrollment admission path mutates reserved seats,
// and it does so inside its own transaction.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindByID loads a course by id.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, title, start_date, end_date, total_seats, reserved_seats, status, created_at, updated_at FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}
