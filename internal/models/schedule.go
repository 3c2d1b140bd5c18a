package models

import "time"

// ScheduleStatus represents the lifecycle of a session schedule.
type ScheduleStatus string

// Possible schedule statuses. ACCEPTED and REJECTED are terminal.
const (
	ScheduleStatusPending  ScheduleStatus = "PENDING"
	ScheduleStatusAccepted ScheduleStatus = "ACCEPTED"
	ScheduleStatusRejected ScheduleStatus = "REJECTED"
)

// SessionSchedule is a course's day-by-day schedule proposal with one
// assigned trainer and an accept/reject lifecycle.
type SessionSchedule struct {
	ID              string         `db:"id" json:"id"`
	CourseID        string         `db:"course_id" json:"course_id"`
	TrainerID       *string        `db:"trainer_id" json:"trainer_id,omitempty"`
	Status          ScheduleStatus `db:"status" json:"status"`
	RejectionReason *string        `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// ScheduleDay is one calendar day of a session schedule bound to a room and
// time interval.
type ScheduleDay struct {
	ID         string    `db:"id" json:"id"`
	ScheduleID string    `db:"schedule_id" json:"schedule_id"`
	DayDate    time.Time `db:"day_date" json:"day_date"`
	StartTime  string    `db:"start_time" json:"start_time"`
	EndTime    string    `db:"end_time" json:"end_time"`
	RoomID     string    `db:"room_id" json:"room_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Slot returns the day's calendar slot for overlap comparison.
func (d ScheduleDay) Slot() Slot {
	return Slot{Date: d.DayDate, Start: d.StartTime, End: d.EndTime}
}

// ScheduleDetail combines a schedule with its ordered day list.
type ScheduleDetail struct {
	SessionSchedule
	Days []ScheduleDay `json:"days"`
}

// AcceptedDay is a conflict-check candidate: one day of an accepted schedule
// joined with the schedule's trainer.
type AcceptedDay struct {
	ScheduleID string    `db:"schedule_id"`
	TrainerID  *string   `db:"trainer_id"`
	DayDate    time.Time `db:"day_date"`
	StartTime  string    `db:"start_time"`
	EndTime    string    `db:"end_time"`
	RoomID     string    `db:"room_id"`
}

// Slot returns the candidate day's calendar slot.
func (a AcceptedDay) Slot() Slot {
	return Slot{Date: a.DayDate, Start: a.StartTime, End: a.EndTime}
}

// ConflictDay describes an existing accepted day that collides with a
// proposed one.
type ConflictDay struct {
	ScheduleID string `json:"schedule_id"`
	Date       string `json:"date"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	RoomID     string `json:"room_id,omitempty"`
	TrainerID  string `json:"trainer_id,omitempty"`
	Dimension  string `json:"dimension"`
}

// Conflict dimensions.
const (
	ConflictDimensionRoom    = "ROOM"
	ConflictDimensionTrainer = "TRAINER"
)

// ScheduleConflictError is returned when a proposed day collides with an
// accepted schedule's room or trainer slot, or with another day of the same
// proposal.
type ScheduleConflictError struct {
	Message  string      `json:"message"`
	Day      ConflictDay `json:"day"`
	DayIndex int         `json:"day_index"`
}

// Error implements the error interface for conflict errors.
func (e *ScheduleConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
