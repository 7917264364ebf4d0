package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ConsultationMode string

const (
	ConsultationModeInPerson ConsultationMode = "in_person"
	ConsultationModeVideo    ConsultationMode = "video"
	ConsultationModePhone    ConsultationMode = "phone"
)

// ConsultationType drives slot length and the fee charged for a booking
type ConsultationType struct {
	ID              uuid.UUID        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ClinicID        uuid.UUID        `gorm:"type:uuid;not null;index" json:"clinic_id"`
	Name            string           `gorm:"type:varchar(255);not null" json:"name"`
	Mode            ConsultationMode `gorm:"type:varchar(20);not null;default:'in_person'" json:"mode"`
	Fee             decimal.Decimal  `gorm:"type:decimal(10,2);not null;default:0" json:"fee"`
	DurationMinutes int              `gorm:"not null" json:"duration_minutes"`
	IsActive        bool             `gorm:"not null;default:true" json:"is_active"`
	CreatedAt       time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ConsultationType) TableName() string {
	return "consultation_types"
}
