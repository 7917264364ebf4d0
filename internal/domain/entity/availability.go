package entity

import (
	"time"

	"github.com/google/uuid"
)

// Availability is a recurring weekly working window. DayOfWeek follows time.Weekday (0 = Sunday).
type Availability struct {
	ID        int       `gorm:"primaryKey;autoIncrement" json:"id"`
	ClinicID  uuid.UUID `gorm:"type:uuid;not null;index:idx_availability_doctor_day" json:"clinic_id"`
	DoctorID  uuid.UUID `gorm:"type:uuid;not null;index:idx_availability_doctor_day" json:"doctor_id"`
	DayOfWeek int       `gorm:"not null;index:idx_availability_doctor_day" json:"day_of_week"`
	StartTime string    `gorm:"type:varchar(5);not null" json:"start_time"`
	EndTime   string    `gorm:"type:varchar(5);not null" json:"end_time"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Availability) TableName() string {
	return "availabilities"
}

// Covers checks if the window applies to the weekday of date
func (a *Availability) Covers(date time.Time) bool {
	return a.IsActive && a.DayOfWeek == int(date.Weekday())
}
