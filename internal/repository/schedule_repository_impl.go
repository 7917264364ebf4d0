package repository

import (
	"context"
	"errors"
	"time"

	"clinic-booking/internal/domain/entity"
	domainRepo "clinic-booking/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type availabilityRepository struct{}

func NewAvailabilityRepository() domainRepo.AvailabilityRepository {
	return &availabilityRepository{}
}

func (r *availabilityRepository) FindActiveByDoctor(ctx context.Context, db *gorm.DB, clinicID, doctorID uuid.UUID) ([]entity.Availability, error) {
	var windows []entity.Availability
	err := db.WithContext(ctx).
		Where("clinic_id = ? AND doctor_id = ? AND is_active = ?", clinicID, doctorID, true).
		Order("day_of_week ASC, start_time ASC").
		Find(&windows).Error
	if err != nil {
		return nil, err
	}
	return windows, nil
}

type blockedSlotRepository struct{}

func NewBlockedSlotRepository() domainRepo.BlockedSlotRepository {
	return &blockedSlotRepository{}
}

func (r *blockedSlotRepository) FindByDate(ctx context.Context, db *gorm.DB, clinicID, doctorID uuid.UUID, date time.Time) ([]entity.BlockedSlot, error) {
	var blocks []entity.BlockedSlot
	err := db.WithContext(ctx).
		Where("clinic_id = ? AND date = ?", clinicID, date).
		Where("doctor_id IS NULL OR doctor_id = ?", doctorID).
		Find(&blocks).Error
	if err != nil {
		return nil, err
	}
	return blocks, nil
}

func (r *blockedSlotRepository) ExistsIntersecting(ctx context.Context, db *gorm.DB, clinicID, doctorID uuid.UUID, date time.Time, startTime, endTime string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&entity.BlockedSlot{}).
		Where("clinic_id = ? AND date = ?", clinicID, date).
		Where("doctor_id IS NULL OR doctor_id = ?", doctorID).
		Where("(start_time IS NULL OR end_time IS NULL) OR (start_time < ? AND end_time > ?)", endTime, startTime).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

type consultationTypeRepository struct{}

func NewConsultationTypeRepository() domainRepo.ConsultationTypeRepository {
	return &consultationTypeRepository{}
}

func (r *consultationTypeRepository) FindActiveByID(ctx context.Context, db *gorm.DB, clinicID, id uuid.UUID) (*entity.ConsultationType, error) {
	var consultationType entity.ConsultationType
	err := db.WithContext(ctx).
		Where("id = ? AND clinic_id = ? AND is_active = ?", id, clinicID, true).
		First(&consultationType).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &consultationType, nil
}

type appointmentRulesRepository struct{}

func NewAppointmentRulesRepository() domainRepo.AppointmentRulesRepository {
	return &appointmentRulesRepository{}
}

func (r *appointmentRulesRepository) FindByClinicID(ctx context.Context, db *gorm.DB, clinicID uuid.UUID) (*entity.AppointmentRules, error) {
	var rules entity.AppointmentRules
	err := db.WithContext(ctx).Where("clinic_id = ?", clinicID).First(&rules).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rules, nil
}
