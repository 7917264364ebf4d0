package entity

import (
	"time"

	"github.com/google/uuid"
)

// Patient is keyed by phone number within a clinic. The same phone may exist
// in several clinics as separate rows; (clinic_id, phone) is indexed but not unique.
type Patient struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ClinicID  uuid.UUID `gorm:"type:uuid;not null;index:idx_patients_clinic_phone" json:"clinic_id"`
	FullName  string    `gorm:"type:varchar(255);not null" json:"full_name"`
	Phone     string    `gorm:"type:varchar(20);not null;index:idx_patients_clinic_phone" json:"phone"`
	Email     *string   `gorm:"type:varchar(255)" json:"email,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Patient) TableName() string {
	return "patients"
}
