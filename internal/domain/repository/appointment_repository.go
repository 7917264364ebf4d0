package repository

import (
	"context"
	"time"

	"clinic-booking/internal/domain/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AppointmentRepository queries are always scoped by clinic. "Active" means pending or confirmed.
type AppointmentRepository interface {
	Create(ctx context.Context, db *gorm.DB, appointment *entity.Appointment) error
	// FindByID looks an appointment up by id alone, for callers without tenant context.
	FindByID(ctx context.Context, db *gorm.DB, id uuid.UUID) (*entity.Appointment, error)
	FindByClinicAndID(ctx context.Context, db *gorm.DB, clinicID, id uuid.UUID) (*entity.Appointment, error)
	FindActiveByDate(ctx context.Context, db *gorm.DB, clinicID, doctorID uuid.UUID, date time.Time) ([]entity.Appointment, error)
	// FindOverlapping returns active appointments intersecting [startTime, endTime), skipping excludeID when set.
	FindOverlapping(ctx context.Context, db *gorm.DB, clinicID, doctorID uuid.UUID, date time.Time, startTime, endTime string, excludeID *uuid.UUID) ([]entity.Appointment, error)
	CountActiveByDate(ctx context.Context, db *gorm.DB, clinicID, doctorID uuid.UUID, date time.Time) (int64, error)
	CountActiveByPatientAndDate(ctx context.Context, db *gorm.DB, clinicID, patientID uuid.UUID, date time.Time) (int64, error)
	// Cancel flips a non-cancelled appointment to cancelled. 0 affected rows means it was already cancelled.
	Cancel(ctx context.Context, db *gorm.DB, id uuid.UUID, reason string, cancelledAt time.Time) (int64, error)
	// UpdateStatus moves id from one status to another, returning affected rows.
	UpdateStatus(ctx context.Context, db *gorm.DB, id uuid.UUID, from, to entity.AppointmentStatus, at time.Time) (int64, error)
	SaveSchedule(ctx context.Context, db *gorm.DB, appointment *entity.Appointment) error
}
