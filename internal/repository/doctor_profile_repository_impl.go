package repository

import (
	"context"
	"errors"

	"clinic-booking/internal/domain/entity"
	domainRepo "clinic-booking/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type doctorProfileRepository struct{}

func NewDoctorProfileRepository() domainRepo.DoctorProfileRepository {
	return &doctorProfileRepository{}
}

func (r *doctorProfileRepository) FindActiveByID(ctx context.Context, db *gorm.DB, id uuid.UUID) (*entity.DoctorProfile, error) {
	return r.findActive(ctx, db, "id = ?", id)
}

func (r *doctorProfileRepository) FindActiveBySlug(ctx context.Context, db *gorm.DB, slug string) (*entity.DoctorProfile, error) {
	return r.findActive(ctx, db, "slug = ?", slug)
}

func (r *doctorProfileRepository) findActive(ctx context.Context, db *gorm.DB, query string, arg interface{}) (*entity.DoctorProfile, error) {
	var profile entity.DoctorProfile
	err := db.WithContext(ctx).
		Preload("Clinic").
		Where(query, arg).
		Where("is_active = ?", true).
		First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}
