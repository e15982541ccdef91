package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AppointmentStatus string

const (
	StatusPending    AppointmentStatus = "pending"
	StatusConfirmed  AppointmentStatus = "confirmed"
	StatusInProgress AppointmentStatus = "in-progress"
	StatusCompleted  AppointmentStatus = "completed"
	StatusCancelled  AppointmentStatus = "cancelled"
	StatusNoShow     AppointmentStatus = "noshow"
)

// Active reports whether the appointment still occupies its slot.
// Cancelled and completed appointments do not block the schedule.
func (s AppointmentStatus) Active() bool {
	return s != StatusCancelled && s != StatusCompleted
}

// Appointment times are stored as a date string (2006-01-02) plus HH:MM
// start/end, matching how the schedule is keyed per doctor per day.
type Appointment struct {
	ID              uuid.UUID         `gorm:"type:uuid;primaryKey"`
	PatientID       uuid.UUID         `gorm:"type:uuid;not null;index"`
	DoctorID        uuid.UUID         `gorm:"type:uuid;not null;index:idx_appointments_schedule"`
	Date            string            `gorm:"type:varchar(10);not null;index:idx_appointments_schedule"`
	StartTime       string            `gorm:"type:varchar(5);not null"`
	EndTime         string            `gorm:"type:varchar(5);not null"`
	DurationMinutes int               `gorm:"not null;default:30"`
	Reason          string
	Status          AppointmentStatus `gorm:"type:varchar(12);not null;default:'pending'"`
	CreatedAt       time.Time
}

func (a *Appointment) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
