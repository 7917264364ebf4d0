package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AppointmentStatus represents the lifecycle state of an appointment
type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
)

// ActiveAppointmentStatuses are the statuses that occupy a slot
var ActiveAppointmentStatuses = []AppointmentStatus{
	AppointmentStatusPending,
	AppointmentStatusConfirmed,
}

// Appointment is a booked [StartTime, EndTime) interval on Date for a doctor.
// Rows are never deleted by the booking flows; cancellation is a status change.
type Appointment struct {
	ID                 uuid.UUID         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ClinicID           uuid.UUID         `gorm:"type:uuid;not null;index:idx_appointments_scope" json:"clinic_id"`
	DoctorID           uuid.UUID         `gorm:"type:uuid;not null;index:idx_appointments_scope" json:"doctor_id"`
	PatientID          uuid.UUID         `gorm:"type:uuid;not null;index" json:"patient_id"`
	ConsultationTypeID uuid.UUID         `gorm:"type:uuid;not null" json:"consultation_type_id"`
	BookingReference   string            `gorm:"type:varchar(50);uniqueIndex;not null" json:"booking_reference"`
	Date               time.Time         `gorm:"type:date;not null;index:idx_appointments_scope" json:"date"`
	StartTime          string            `gorm:"type:varchar(5);not null" json:"start_time"`
	EndTime            string            `gorm:"type:varchar(5);not null" json:"end_time"`
	Duration           int               `gorm:"not null" json:"duration"`
	Status             AppointmentStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	Fee                decimal.Decimal   `gorm:"type:decimal(10,2);not null;default:0" json:"fee"`
	ReasonForVisit     string            `gorm:"type:text" json:"reason_for_visit,omitempty"`
	RescheduleCount    int               `gorm:"not null;default:0" json:"reschedule_count"`
	OriginalDate       *time.Time        `gorm:"type:date" json:"original_date,omitempty"`
	OriginalTime       *string           `gorm:"type:varchar(5)" json:"original_time,omitempty"`
	CancellationReason string            `gorm:"type:text" json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time        `json:"cancelled_at,omitempty"`
	ConfirmedAt        *time.Time        `json:"confirmed_at,omitempty"`
	CompletedAt        *time.Time        `json:"completed_at,omitempty"`
	CreatedAt          time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time         `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Patient          Patient          `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
	Doctor           DoctorProfile    `gorm:"foreignKey:DoctorID" json:"doctor,omitempty"`
	ConsultationType ConsultationType `gorm:"foreignKey:ConsultationTypeID" json:"consultation_type,omitempty"`
}

func (Appointment) TableName() string {
	return "appointments"
}

// IsPending checks if appointment is awaiting payment
func (a *Appointment) IsPending() bool {
	return a.Status == AppointmentStatusPending
}

// IsConfirmed checks if appointment is confirmed
func (a *Appointment) IsConfirmed() bool {
	return a.Status == AppointmentStatusConfirmed
}

// IsCancelled checks if appointment is cancelled
func (a *Appointment) IsCancelled() bool {
	return a.Status == AppointmentStatusCancelled
}

// IsCompleted checks if appointment is completed
func (a *Appointment) IsCompleted() bool {
	return a.Status == AppointmentStatusCompleted
}

// IsActive reports whether the appointment still occupies its slot
func (a *Appointment) IsActive() bool {
	return a.IsPending() || a.IsConfirmed()
}

// Cancel marks the appointment cancelled at the given instant
func (a *Appointment) Cancel(reason string, at time.Time) {
	a.Status = AppointmentStatusCancelled
	a.CancellationReason = reason
	a.CancelledAt = &at
}

// MoveTo reschedules the appointment. The first move snapshots the
// originally booked date and time; later moves leave that snapshot alone.
func (a *Appointment) MoveTo(date time.Time, startTime, endTime string) {
	if a.OriginalDate == nil && a.OriginalTime == nil {
		originalDate := a.Date
		originalTime := a.StartTime
		a.OriginalDate = &originalDate
		a.OriginalTime = &originalTime
	}
	a.Date = date
	a.StartTime = startTime
	a.EndTime = endTime
	a.Status = AppointmentStatusConfirmed
	a.RescheduleCount++
}
