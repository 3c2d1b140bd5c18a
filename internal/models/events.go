package models

// Domain event names emitted on terminal lifecycle transitions.
const (
	EventScheduleAccepted    = "schedule.accepted"
	EventScheduleRejected    = "schedule.rejected"
	EventEnrollmentAdmitted  = "enrollment.admitted"
	EventEnrollmentDenied    = "enrollment.denied"
	EventEnrollmentCancelled = "enrollment.cancelled"
	EventBookingConfirmed    = "booking.confirmed"
	EventBookingReleased     = "booking.released"
)
