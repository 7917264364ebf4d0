package repository

import (
	"context"

	"clinic-booking/internal/domain/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuditLogRepository interface {
	Create(ctx context.Context, db *gorm.DB, log *entity.AuditLog) error
	FindByAppointmentID(ctx context.Context, db *gorm.DB, appointmentID uuid.UUID) ([]entity.AuditLog, error)
}
