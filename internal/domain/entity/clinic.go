package entity

import (
	"time"

	"github.com/google/uuid"
)

// Clinic is the tenant boundary. Every scheduling query is scoped by its ID.
type Clinic struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Slug      string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"slug"`
	Timezone  string    `gorm:"type:varchar(64)" json:"timezone,omitempty"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Rules *AppointmentRules `gorm:"foreignKey:ClinicID" json:"rules,omitempty"`
}

func (Clinic) TableName() string {
	return "clinics"
}

// Location resolves the clinic's IANA timezone, falling back to def when unset or unknown.
func (c *Clinic) Location(def *time.Location) *time.Location {
	if c == nil || c.Timezone == "" {
		return def
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return def
	}
	return loc
}
