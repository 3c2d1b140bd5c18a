package models

import "time"

// CourseStatus represents the lifecycle of a training course.
type CourseStatus string

// Possible course statuses.
const (
	CourseStatusPlanned       CourseStatus = "PLANNED"
	CourseStatusInPreparation CourseStatus = "IN_PREPARATION"
	CourseStatusInProgress    CourseStatus = "IN_PROGRESS"
	CourseStatusCompleted     CourseStatus = "COMPLETED"
)

// Course is a training offering with finite seat capacity. ReservedSeats is
// mutated only by the enrollment admission path and always satisfies
// 0 <= reserved <= total.
type Course struct {
	ID            string       `db:"id" json:"id"`
	Title         string       `db:"title" json:"title"`
	StartDate     time.Time    `db:"start_date" json:"start_date"`
	EndDate       time.Time    `db:"end_date" json:"end_date"`
	TotalSeats    int          `db:"total_seats" json:"total_seats"`
	ReservedSeats int          `db:"reserved_seats" json:"reserved_seats"`
	Status        CourseStatus `db:"status" json:"status"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updated_at"`
}
