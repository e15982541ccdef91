package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/medconnect/telemed/internal/models"
)

type ScheduleConflict struct {
	Conflict      bool
	AppointmentID uuid.UUID
}

// CheckScheduleConflict reports whether [startTime, startTime+duration)
// overlaps an active appointment for the doctor on that date. Intervals are
// half-open: touching endpoints do not conflict.
func (d *Database) CheckScheduleConflict(ctx context.Context, doctorID uuid.UUID, date, startTime string, durationMinutes int) (ScheduleConflict, error) {
	return d.checkConflict(d.db.WithContext(ctx), doctorID, date, startTime, durationMinutes)
}

func (d *Database) checkConflict(tx *gorm.DB, doctorID uuid.UUID, date, startTime string, durationMinutes int) (ScheduleConflict, error) {
	endTime, err := AddMinutes(startTime, durationMinutes)
	if err != nil {
		return ScheduleConflict{}, err
	}

	// HH:MM strings are zero-padded, so lexicographic comparison is
	// interval comparison.
	var existing models.Appointment
	err = tx.Where("doctor_id = ? AND date = ?", doctorID, date).
		Where("start_time < ? AND end_time > ?", endTime, startTime).
		Where("status NOT IN ?", []models.AppointmentStatus{models.StatusCancelled, models.StatusCompleted}).
		First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		return ScheduleConflict{}, nil
	}
	if err != nil {
		return ScheduleConflict{}, err
	}

	return ScheduleConflict{Conflict: true, AppointmentID: existing.ID}, nil
}

// BookAppointment inserts the appointment unless its slot overlaps an
// active one. The per doctor/date lock makes the conflict check and the
// insert one unit, so concurrent attempts for the same slot admit exactly
// one winner; losers get ErrBookingConflict.
func (d *Database) BookAppointment(ctx context.Context, appt *models.Appointment) error {
	endTime, err := AddMinutes(appt.StartTime, appt.DurationMinutes)
	if err != nil {
		return err
	}
	appt.EndTime = endTime
	if appt.Status == "" {
		appt.Status = models.StatusPending
	}

	mu := d.slots.Lock(appt.DoctorID.String() + "|" + appt.Date)
	defer mu.Unlock()

	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conflict, err := d.checkConflict(tx, appt.DoctorID, appt.Date, appt.StartTime, appt.DurationMinutes)
		if err != nil {
			return err
		}
		if conflict.Conflict {
			return ErrBookingConflict
		}

		return tx.Create(appt).Error
	})
}

func (d *Database) GetAppointment(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	var appt models.Appointment
	if err := d.db.WithContext(ctx).First(&appt, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &appt, nil
}

// CompleteAppointment applies the single status transition the realtime
// core owns: a doctor-ended consultation marks the visit completed.
func (d *Database) CompleteAppointment(ctx context.Context, id uuid.UUID) error {
	return d.db.WithContext(ctx).Model(&models.Appointment{}).
		Where("id = ?", id).
		Update("status", models.StatusCompleted).Error
}

// UpdateAppointmentStatus moves an appointment to a new status. Finished
// appointments no longer occupy their slot and stay as they ended;
// transitions out of them get ErrAppointmentFinished.
func (d *Database) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, status models.AppointmentStatus) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var appt models.Appointment
		if err := tx.First(&appt, "id = ?", id).Error; err != nil {
			return err
		}
		if !appt.Status.Active() && status != appt.Status {
			return ErrAppointmentFinished
		}

		return tx.Model(&models.Appointment{}).
			Where("id = ?", id).
			Update("status", status).Error
	})
}

// AppointmentsForUser lists appointments where the user is the doctor or
// the patient, newest date first.
func (d *Database) AppointmentsForUser(ctx context.Context, userID uuid.UUID, role models.Role) ([]models.Appointment, error) {
	var appts []models.Appointment
	column := "patient_id"
	if role == models.RoleDoctor {
		column = "doctor_id"
	}
	err := d.db.WithContext(ctx).Where(column+" = ?", userID).
		Order("date DESC, start_time DESC").
		Find(&appts).Error
	return appts, err
}

// AddMinutes returns an HH:MM time shifted forward by the given minutes.
func AddMinutes(hhmm string, minutes int) (string, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidTime, hhmm)
	}
	return t.Add(time.Duration(minutes)*time.Minute).Format("15:04"), nil
}
