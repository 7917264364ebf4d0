package repository

import (
	"context"
	"errors"
	"time"

	"clinic-booking/internal/domain/entity"
	domainRepo "clinic-booking/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type appointmentRepository struct{}

func NewAppointmentRepository() domainRepo.AppointmentRepository {
	return &appointmentRepository{}
}

func (r *appointmentRepository) Create(ctx context.Context, db *gorm.DB, appointment *entity.Appointment) error {
	return db.WithContext(ctx).Omit(clause.Associations).Create(appointment).Error
}

func (r *appointmentRepository) FindByID(ctx context.Context, db *gorm.DB, id uuid.UUID) (*entity.Appointment, error) {
	return r.findOne(ctx, db, "id = ?", id)
}

func (r *appointmentRepository) FindByClinicAndID(ctx context.Context, db *gorm.DB, clinicID, id uuid.UUID) (*entity.Appointment, error) {
	return r.findOne(ctx, db, "clinic_id = ? AND id = ?", clinicID, id)
}

func (r *appointmentRepository) findOne(ctx context.Context, db *gorm.DB, query string, args ...interface{}) (*entity.Appointment, error) {
	var appointment entity.Appointment
	err := db.WithContext(ctx).
		Preload("Patient").
		Preload("Doctor.Clinic").
		Preload("ConsultationType").
		Where(query, args...).
		First(&appointment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &appointment, nil
}

func (r *appointmentRepository) FindActiveByDate(ctx context.Context, db *gorm.DB, clinicID, doctorID uuid.UUID, date time.Time) ([]entity.Appointment, error) {
	var appointments []entity.Appointment
	err := r.active(ctx, db, clinicID, doctorID, date).
		Order("start_time ASC").
		Find(&appointments).Error
	if err != nil {
		return nil, err
	}
	return appointments, nil
}

// FindOverlapping uses the half-open test existing.start < end AND existing.end > start.
// It covers a requested start inside an existing interval, a requested end inside one,
// and a requested interval containing one. HH:mm strings compare lexicographically.
func (r *appointmentRepository) FindOverlapping(ctx context.Context, db *gorm.DB, clinicID, doctorID uuid.UUID, date time.Time, startTime, endTime string, excludeID *uuid.UUID) ([]entity.Appointment, error) {
	query := r.active(ctx, db, clinicID, doctorID, date).
		Where("start_time < ? AND end_time > ?", endTime, startTime)
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}

	var appointments []entity.Appointment
	if err := query.Find(&appointments).Error; err != nil {
		return nil, err
	}
	return appointments, nil
}

// CountActiveByDate counts the doctor's active appointments for the day within the clinic.
// It backs the clinic's per-day booking cap.
func (r *appointmentRepository) CountActiveByDate(ctx context.Context, db *gorm.DB, clinicID, doctorID uuid.UUID, date time.Time) (int64, error) {
	var count int64
	err := r.active(ctx, db, clinicID, doctorID, date).Count(&count).Error
	return count, err
}

func (r *appointmentRepository) CountActiveByPatientAndDate(ctx context.Context, db *gorm.DB, clinicID, patientID uuid.UUID, date time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&entity.Appointment{}).
		Where("clinic_id = ? AND patient_id = ? AND date = ?", clinicID, patientID, date).
		Where("status IN ?", entity.ActiveAppointmentStatuses).
		Count(&count).Error
	return count, err
}

// Cancel atomically cancels an appointment ONLY if it's not already cancelled.
// Returns affected rows: 1 = success, 0 = already cancelled (prevents double-cancel race).
func (r *appointmentRepository) Cancel(ctx context.Context, db *gorm.DB, id uuid.UUID, reason string, cancelledAt time.Time) (int64, error) {
	result := db.WithContext(ctx).
		Model(&entity.Appointment{}).
		Where("id = ? AND status <> ?", id, entity.AppointmentStatusCancelled).
		Updates(map[string]interface{}{
			"status":              entity.AppointmentStatusCancelled,
			"cancellation_reason": reason,
			"cancelled_at":        cancelledAt,
		})
	return result.RowsAffected, result.Error
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, db *gorm.DB, id uuid.UUID, from, to entity.AppointmentStatus, at time.Time) (int64, error) {
	updates := map[string]interface{}{"status": to}
	switch to {
	case entity.AppointmentStatusConfirmed:
		updates["confirmed_at"] = at
	case entity.AppointmentStatusCompleted:
		updates["completed_at"] = at
	}

	result := db.WithContext(ctx).
		Model(&entity.Appointment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *appointmentRepository) SaveSchedule(ctx context.Context, db *gorm.DB, appointment *entity.Appointment) error {
	return db.WithContext(ctx).
		Model(appointment).
		Select("date", "start_time", "end_time", "status", "reschedule_count", "original_date", "original_time", "updated_at").
		Updates(appointment).Error
}

func (r *appointmentRepository) active(ctx context.Context, db *gorm.DB, clinicID, doctorID uuid.UUID, date time.Time) *gorm.DB {
	return db.WithContext(ctx).
		Model(&entity.Appointment{}).
		Where("clinic_id = ? AND doctor_id = ? AND date = ?", clinicID, doctorID, date).
		Where("status IN ?", entity.ActiveAppointmentStatuses)
}
