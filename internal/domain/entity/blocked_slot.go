package entity

import (
	"time"

	"github.com/google/uuid"
)

// BlockedSlot excludes time from recurring availability.
// Nil StartTime/EndTime blocks the whole day; nil DoctorID blocks every doctor of the clinic.
type BlockedSlot struct {
	ID        int        `gorm:"primaryKey;autoIncrement" json:"id"`
	ClinicID  uuid.UUID  `gorm:"type:uuid;not null;index:idx_blocked_slots_clinic_date" json:"clinic_id"`
	DoctorID  *uuid.UUID `gorm:"type:uuid;index" json:"doctor_id,omitempty"`
	Date      time.Time  `gorm:"type:date;not null;index:idx_blocked_slots_clinic_date" json:"date"`
	StartTime *string    `gorm:"type:varchar(5)" json:"start_time,omitempty"`
	EndTime   *string    `gorm:"type:varchar(5)" json:"end_time,omitempty"`
	Reason    string     `gorm:"type:text" json:"reason,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (BlockedSlot) TableName() string {
	return "blocked_slots"
}

// IsFullDay reports whether the block covers the entire date
func (b *BlockedSlot) IsFullDay() bool {
	return b.StartTime == nil || b.EndTime == nil
}
