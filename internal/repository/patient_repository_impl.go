package repository

import (
	"context"
	"errors"

	"clinic-booking/internal/domain/entity"
	domainRepo "clinic-booking/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type patientRepository struct{}

func NewPatientRepository() domainRepo.PatientRepository {
	return &patientRepository{}
}

func (r *patientRepository) Create(ctx context.Context, db *gorm.DB, patient *entity.Patient) error {
	return db.WithContext(ctx).Create(patient).Error
}

func (r *patientRepository) Update(ctx context.Context, db *gorm.DB, patient *entity.Patient) error {
	return db.WithContext(ctx).Save(patient).Error
}

// FindByPhone returns the oldest patient with phone in the clinic. Duplicate rows
// from concurrent first bookings are possible, so the lookup is made deterministic.
func (r *patientRepository) FindByPhone(ctx context.Context, db *gorm.DB, clinicID uuid.UUID, phone string) (*entity.Patient, error) {
	var patient entity.Patient
	err := db.WithContext(ctx).
		Where("clinic_id = ? AND phone = ?", clinicID, phone).
		Order("created_at ASC").
		First(&patient).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &patient, nil
}
