package repository

import (
	"context"

	"clinic-booking/internal/domain/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DoctorProfileRepository interface {
	// FindActiveByID and FindActiveBySlug preload the owning clinic and return nil when absent.
	FindActiveByID(ctx context.Context, db *gorm.DB, id uuid.UUID) (*entity.DoctorProfile, error)
	FindActiveBySlug(ctx context.Context, db *gorm.DB, slug string) (*entity.DoctorProfile, error)
}
