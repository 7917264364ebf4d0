package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Request DTOs

type PatientRequest struct {
	Name  string  `json:"name" validate:"required,min=2,max=255"`
	Phone string  `json:"phone" validate:"required,min=6,max=20"`
	Email *string `json:"email" validate:"omitempty,email"`
}

type BookAppointmentRequest struct {
	ConsultationTypeID uuid.UUID      `json:"consultation_type_id" validate:"required"`
	Date               string         `json:"date" validate:"required,datetime=2006-01-02"`
	Time               string         `json:"time" validate:"required,datetime=15:04"`
	ReasonForVisit     string         `json:"reason_for_visit" validate:"omitempty,max=1000"`
	Patient            PatientRequest `json:"patient" validate:"required"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=1000"`
}

type RescheduleAppointmentRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
	Time string `json:"time" validate:"required,datetime=15:04"`
}

// Response DTOs

type PatientResponse struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
	Phone    string    `json:"phone"`
	Email    *string   `json:"email,omitempty"`
}

type DoctorSummaryResponse struct {
	ID             uuid.UUID `json:"id"`
	Slug           string    `json:"slug"`
	FullName       string    `json:"full_name"`
	Specialization string    `json:"specialization,omitempty"`
}

type ConsultationTypeResponse struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	Mode            string          `json:"mode"`
	Fee             decimal.Decimal `json:"fee"`
	DurationMinutes int             `json:"duration_minutes"`
}

type AppointmentResponse struct {
	ID                 uuid.UUID                 `json:"id"`
	ClinicID           uuid.UUID                 `json:"clinic_id"`
	DoctorID           uuid.UUID                 `json:"doctor_id"`
	PatientID          uuid.UUID                 `json:"patient_id"`
	ConsultationTypeID uuid.UUID                 `json:"consultation_type_id"`
	BookingReference   string                    `json:"booking_reference"`
	Date               string                    `json:"date"`
	StartTime          string                    `json:"start_time"`
	EndTime            string                    `json:"end_time"`
	Duration           int                       `json:"duration"`
	Status             string                    `json:"status"`
	Fee                decimal.Decimal           `json:"fee"`
	ReasonForVisit     string                    `json:"reason_for_visit,omitempty"`
	RescheduleCount    int                       `json:"reschedule_count"`
	OriginalDate       *string                   `json:"original_date,omitempty"`
	OriginalTime       *string                   `json:"original_time,omitempty"`
	CancellationReason string                    `json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time                `json:"cancelled_at,omitempty"`
	ConfirmedAt        *time.Time                `json:"confirmed_at,omitempty"`
	CompletedAt        *time.Time                `json:"completed_at,omitempty"`
	Patient            *PatientResponse          `json:"patient,omitempty"`
	Doctor             *DoctorSummaryResponse    `json:"doctor,omitempty"`
	ConsultationType   *ConsultationTypeResponse `json:"consultation_type,omitempty"`
	CreatedAt          time.Time                 `json:"created_at"`
	UpdatedAt          time.Time                 `json:"updated_at"`
}
