package service

import (
	"context"

	"clinic-booking/internal/domain/entity"
	"clinic-booking/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AuditService writes appointment audit rows. tx must be the transaction that
// performs the change being audited.
type AuditService interface {
	LogCreate(ctx context.Context, tx *gorm.DB, clinicID, appointmentID uuid.UUID, action string, newValue interface{}) error
	LogUpdate(ctx context.Context, tx *gorm.DB, clinicID, appointmentID uuid.UUID, action string, oldValue, newValue interface{}) error
	History(ctx context.Context, db *gorm.DB, appointmentID uuid.UUID) ([]entity.AuditLog, error)
}

type auditService struct {
	log       *logrus.Logger
	auditRepo repository.AuditLogRepository
}

func NewAuditService(log *logrus.Logger, auditRepo repository.AuditLogRepository) AuditService {
	return &auditService{
		log:       log,
		auditRepo: auditRepo,
	}
}

// LogCreate logs a create action
func (s *auditService) LogCreate(ctx context.Context, tx *gorm.DB, clinicID, appointmentID uuid.UUID, action string, newValue interface{}) error {
	return s.write(ctx, tx, clinicID, appointmentID, action, nil, newValue)
}

// LogUpdate logs an update action with old and new values
func (s *auditService) LogUpdate(ctx context.Context, tx *gorm.DB, clinicID, appointmentID uuid.UUID, action string, oldValue, newValue interface{}) error {
	return s.write(ctx, tx, clinicID, appointmentID, action, oldValue, newValue)
}

func (s *auditService) History(ctx context.Context, db *gorm.DB, appointmentID uuid.UUID) ([]entity.AuditLog, error) {
	return s.auditRepo.FindByAppointmentID(ctx, db, appointmentID)
}

func (s *auditService) write(ctx context.Context, tx *gorm.DB, clinicID, appointmentID uuid.UUID, action string, oldValue, newValue interface{}) error {
	auditLog := &entity.AuditLog{
		ClinicID:      clinicID,
		AppointmentID: &appointmentID,
		Action:        action,
		Metadata: entity.JSON{
			"entity":    "appointment",
			"entity_id": appointmentID.String(),
			"old_value": oldValue,
			"new_value": newValue,
		},
	}

	if err := s.auditRepo.Create(ctx, tx, auditLog); err != nil {
		s.log.Warnf("Failed to create audit log: %+v", err)
		return err
	}

	return nil
}
