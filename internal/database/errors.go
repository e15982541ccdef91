package database

import "errors"

var (
	// ErrBookingConflict marks an appointment overlapping an active slot.
	// Distinct from storage errors so callers can offer alternate times.
	ErrBookingConflict = errors.New("time slot already booked")

	// ErrAppointmentFinished rejects status changes on appointments that
	// already ended (completed or cancelled).
	ErrAppointmentFinished = errors.New("appointment already finished")

	ErrInvalidTime = errors.New("invalid time, expected HH:MM")
)
