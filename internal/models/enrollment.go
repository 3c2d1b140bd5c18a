package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment request.
type EnrollmentStatus string

// Possible enrollment statuses. CANCELLED is the terminal state reached from
// ACCEPTED when a seat is given back.
const (
	EnrollmentStatusPending   EnrollmentStatus = "PENDING"
	EnrollmentStatusAccepted  EnrollmentStatus = "ACCEPTED"
	EnrollmentStatusRejected  EnrollmentStatus = "REJECTED"
	EnrollmentStatusCancelled EnrollmentStatus = "CANCELLED"
)

// Enrollment captures one participant's request for a seat on a course. The
// count of ACCEPTED enrollments for a course equals its reserved seats.
type Enrollment struct {
	ID            string           `db:"id" json:"id"`
	CourseID      string           `db:"course_id" json:"course_id"`
	ParticipantID string           `db:"participant_id" json:"participant_id"`
	Status        EnrollmentStatus `db:"status" json:"status"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updated_at"`
}

// AdmissionResult reports the outcome of a seat admission.
type AdmissionResult struct {
	Enrollment    Enrollment `json:"enrollment"`
	ReservedSeats int        `json:"reserved_seats"`
	TotalSeats    int        `json:"total_seats"`
}
