package entity

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentRules is the optional per-clinic booking policy.
// A nil pointer field means the corresponding limit is not enforced.
type AppointmentRules struct {
	ID                        int       `gorm:"primaryKey;autoIncrement" json:"id"`
	ClinicID                  uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"clinic_id"`
	RequirePayment            bool      `gorm:"not null;default:false" json:"require_payment"`
	MaxBookingsPerDay         *int      `json:"max_bookings_per_day,omitempty"`
	MaxBookingsPerPatient     *int      `json:"max_bookings_per_patient,omitempty"`
	AllowCancellation         bool      `gorm:"not null" json:"allow_cancellation"`
	CancellationWindowMinutes *int      `json:"cancellation_window_minutes,omitempty"`
	AllowRescheduling         bool      `gorm:"not null" json:"allow_rescheduling"`
	ReschedulingWindowMinutes *int      `json:"rescheduling_window_minutes,omitempty"`
	MaxReschedules            *int      `json:"max_reschedules,omitempty"`
	MinAdvanceBookingDays     *int      `json:"min_advance_booking_days,omitempty"`
	MaxAdvanceBookingDays     *int      `json:"max_advance_booking_days,omitempty"`
	CreatedAt                 time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                 time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (AppointmentRules) TableName() string {
	return "appointment_rules"
}

// PermissiveRules is what a clinic without a rules row gets: nothing is restricted.
func PermissiveRules() *AppointmentRules {
	return &AppointmentRules{
		AllowCancellation: true,
		AllowRescheduling: true,
	}
}

// InBookingWindow checks date against the min/max advance booking days relative to today
func (r *AppointmentRules) InBookingWindow(date, today time.Time) bool {
	if r.MinAdvanceBookingDays != nil && date.Before(today.AddDate(0, 0, *r.MinAdvanceBookingDays)) {
		return false
	}
	if r.MaxAdvanceBookingDays != nil && date.After(today.AddDate(0, 0, *r.MaxAdvanceBookingDays)) {
		return false
	}
	return true
}
