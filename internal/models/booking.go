package models

import "time"

// BookingStatus represents the lifecycle of a resource booking.
type BookingStatus string

// Possible booking statuses. Bookings confirm in one step; RELEASED is
// terminal and excluded from availability sums.
const (
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusReleased  BookingStatus = "RELEASED"
)

// ResourceBooking reserves N units of a resource for one schedule day. The
// course reference is denormalized for audit.
type ResourceBooking struct {
	ID            string        `db:"id" json:"id"`
	ResourceID    string        `db:"resource_id" json:"resource_id"`
	ScheduleDayID string        `db:"schedule_day_id" json:"schedule_day_id"`
	CourseID      string        `db:"course_id" json:"course_id"`
	Quantity      int           `db:"quantity" json:"quantity"`
	Status        BookingStatus `db:"status" json:"status"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}
