package entity

import (
	"time"

	"github.com/google/uuid"
)

const DefaultAppointmentDuration = 30

// DoctorProfile holds a provider's identity and scheduling defaults
type DoctorProfile struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ClinicID        uuid.UUID `gorm:"type:uuid;not null;index" json:"clinic_id"`
	Slug            string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"slug"`
	FullName        string    `gorm:"type:varchar(255);not null" json:"full_name"`
	Specialization  string    `gorm:"type:varchar(100)" json:"specialization,omitempty"`
	DefaultDuration int       `gorm:"not null;default:30" json:"default_duration"`
	BufferTime      int       `gorm:"not null;default:0" json:"buffer_time"`
	IsActive        bool      `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Clinic Clinic `gorm:"foreignKey:ClinicID" json:"clinic,omitempty"`
}

func (DoctorProfile) TableName() string {
	return "doctor_profiles"
}

// SlotDuration returns the default consultation length in minutes.
func (d *DoctorProfile) SlotDuration() int {
	if d.DefaultDuration <= 0 {
		return DefaultAppointmentDuration
	}
	return d.DefaultDuration
}
