package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/medconnect/telemed/internal/models"
)

type BookAppointmentRequest struct {
	DoctorID        uuid.UUID `json:"doctor_id" binding:"required"`
	Date            string    `json:"date" binding:"required"`       // 2006-01-02
	StartTime       string    `json:"start_time" binding:"required"` // HH:MM
	DurationMinutes int       `json:"duration_minutes"`
	Reason          string    `json:"reason"`
}

type UpdateAppointmentStatusRequest struct {
	Status models.AppointmentStatus `json:"status" binding:"required"`
}

type AppointmentResponse struct {
	ID              uuid.UUID                `json:"id"`
	PatientID       uuid.UUID                `json:"patient_id"`
	DoctorID        uuid.UUID                `json:"doctor_id"`
	Date            string                   `json:"date"`
	StartTime       string                   `json:"start_time"`
	EndTime         string                   `json:"end_time"`
	DurationMinutes int                      `json:"duration_minutes"`
	Reason          string                   `json:"reason,omitempty"`
	Status          models.AppointmentStatus `json:"status"`
	CreatedAt       time.Time                `json:"created_at"`
}

func NewAppointmentResponse(a *models.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		PatientID:       a.PatientID,
		DoctorID:        a.DoctorID,
		Date:            a.Date,
		StartTime:       a.StartTime,
		EndTime:         a.EndTime,
		DurationMinutes: a.DurationMinutes,
		Reason:          a.Reason,
		Status:          a.Status,
		CreatedAt:       a.CreatedAt,
	}
}
