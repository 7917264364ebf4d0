package repository

import (
	"context"
	"time"

	"clinic-booking/internal/domain/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AvailabilityRepository interface {
	FindActiveByDoctor(ctx context.Context, db *gorm.DB, clinicID, doctorID uuid.UUID) ([]entity.Availability, error)
}

type BlockedSlotRepository interface {
	// FindByDate returns the doctor's own blocks and clinic-wide blocks for date.
	FindByDate(ctx context.Context, db *gorm.DB, clinicID, doctorID uuid.UUID, date time.Time) ([]entity.BlockedSlot, error)
	// ExistsIntersecting reports a full-day block or a partial block intersecting [startTime, endTime).
	ExistsIntersecting(ctx context.Context, db *gorm.DB, clinicID, doctorID uuid.UUID, date time.Time, startTime, endTime string) (bool, error)
}

type ConsultationTypeRepository interface {
	FindActiveByID(ctx context.Context, db *gorm.DB, clinicID, id uuid.UUID) (*entity.ConsultationType, error)
}

type AppointmentRulesRepository interface {
	// FindByClinicID returns nil when the clinic has no rules row.
	FindByClinicID(ctx context.Context, db *gorm.DB, clinicID uuid.UUID) (*entity.AppointmentRules, error)
}
