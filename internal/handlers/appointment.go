package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/medconnect/telemed/internal/database"
	"github.com/medconnect/telemed/internal/handlers/dto"
	"github.com/medconnect/telemed/internal/middleware"
	"github.com/medconnect/telemed/internal/models"
)

type AppointmentHandler struct {
	db *database.Database
}

func NewAppointmentHandler(db *database.Database) *AppointmentHandler {
	return &AppointmentHandler{db: db}
}

// Book creates an appointment for the calling patient. An overlapping
// active slot is a 409 with a BOOKING_CONFLICT code so clients can offer
// alternate times.
func (h *AppointmentHandler) Book(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)
	role := c.MustGet(middleware.UserRoleKey).(models.Role)

	if role != models.RolePatient {
		c.JSON(http.StatusForbidden, gin.H{"error": "only patients can book appointments"})
		return
	}

	var req dto.BookAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storageTimeout)
	defer cancel()

	doctor, err := h.db.GetUser(ctx, req.DoctorID)
	if err != nil || doctor.Role != models.RoleDoctor {
		c.JSON(http.StatusNotFound, gin.H{"error": "doctor not found"})
		return
	}

	duration := req.DurationMinutes
	if duration <= 0 {
		duration = 30
	}

	appt := &models.Appointment{
		PatientID:       userID,
		DoctorID:        req.DoctorID,
		Date:            req.Date,
		StartTime:       req.StartTime,
		DurationMinutes: duration,
		Reason:          req.Reason,
		Status:          models.StatusPending,
	}

	if err := h.db.BookAppointment(ctx, appt); err != nil {
		switch {
		case errors.Is(err, database.ErrBookingConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "time slot already booked", "code": "BOOKING_CONFLICT"})
		case errors.Is(err, database.ErrInvalidTime):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_time, expected HH:MM"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to book appointment"})
		}
		return
	}

	c.JSON(http.StatusCreated, dto.NewAppointmentResponse(appt))
}

// List returns the caller's appointments, doctor or patient side.
func (h *AppointmentHandler) List(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)
	role := c.MustGet(middleware.UserRoleKey).(models.Role)

	ctx, cancel := context.WithTimeout(c.Request.Context(), storageTimeout)
	defer cancel()

	appts, err := h.db.AppointmentsForUser(ctx, userID, role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch appointments"})
		return
	}

	result := make([]dto.AppointmentResponse, len(appts))
	for i := range appts {
		result[i] = dto.NewAppointmentResponse(&appts[i])
	}

	c.JSON(http.StatusOK, gin.H{"appointments": result})
}

// UpdateStatus changes an appointment's status. Patients may only cancel
// their own appointments; doctors may move theirs through the remaining
// states.
func (h *AppointmentHandler) UpdateStatus(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)
	role := c.MustGet(middleware.UserRoleKey).(models.Role)

	apptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid appointment id"})
		return
	}

	var req dto.UpdateAppointmentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storageTimeout)
	defer cancel()

	appt, err := h.db.GetAppointment(ctx, apptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "appointment not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch appointment"})
		return
	}

	switch role {
	case models.RolePatient:
		if appt.PatientID != userID {
			c.JSON(http.StatusForbidden, gin.H{"error": "not your appointment"})
			return
		}
		if req.Status != models.StatusCancelled {
			c.JSON(http.StatusForbidden, gin.H{"error": "patients can only cancel appointments"})
			return
		}
	case models.RoleDoctor:
		if appt.DoctorID != userID {
			c.JSON(http.StatusForbidden, gin.H{"error": "not your appointment"})
			return
		}
		switch req.Status {
		case models.StatusConfirmed, models.StatusInProgress, models.StatusCompleted,
			models.StatusCancelled, models.StatusNoShow:
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
	}

	if err := h.db.UpdateAppointmentStatus(ctx, apptID, req.Status); err != nil {
		if errors.Is(err, database.ErrAppointmentFinished) {
			c.JSON(http.StatusConflict, gin.H{"error": "appointment already finished"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "status updated"})
}
