package converter

import (
	"clinic-booking/internal/delivery/dto"
	"clinic-booking/internal/domain/entity"
	"clinic-booking/pkg/timeslot"

	"github.com/google/uuid"
)

// AppointmentToResponse converts an Appointment entity to AppointmentResponse DTO
func AppointmentToResponse(appointment *entity.Appointment) *dto.AppointmentResponse {
	if appointment == nil {
		return nil
	}

	response := &dto.AppointmentResponse{
		ID:                 appointment.ID,
		ClinicID:           appointment.ClinicID,
		DoctorID:           appointment.DoctorID,
		PatientID:          appointment.PatientID,
		ConsultationTypeID: appointment.ConsultationTypeID,
		BookingReference:   appointment.BookingReference,
		Date:               timeslot.FormatDate(appointment.Date),
		StartTime:          appointment.StartTime,
		EndTime:            appointment.EndTime,
		Duration:           appointment.Duration,
		Status:             string(appointment.Status),
		Fee:                appointment.Fee,
		ReasonForVisit:     appointment.ReasonForVisit,
		RescheduleCount:    appointment.RescheduleCount,
		OriginalTime:       appointment.OriginalTime,
		CancellationReason: appointment.CancellationReason,
		CancelledAt:        appointment.CancelledAt,
		ConfirmedAt:        appointment.ConfirmedAt,
		CompletedAt:        appointment.CompletedAt,
		CreatedAt:          appointment.CreatedAt,
		UpdatedAt:          appointment.UpdatedAt,
	}

	if appointment.OriginalDate != nil {
		originalDate := timeslot.FormatDate(*appointment.OriginalDate)
		response.OriginalDate = &originalDate
	}

	// Include relations if loaded
	if appointment.Patient.ID != uuid.Nil {
		response.Patient = &dto.PatientResponse{
			ID:       appointment.Patient.ID,
			FullName: appointment.Patient.FullName,
			Phone:    appointment.Patient.Phone,
			Email:    appointment.Patient.Email,
		}
	}
	if appointment.Doctor.ID != uuid.Nil {
		response.Doctor = &dto.DoctorSummaryResponse{
			ID:             appointment.Doctor.ID,
			Slug:           appointment.Doctor.Slug,
			FullName:       appointment.Doctor.FullName,
			Specialization: appointment.Doctor.Specialization,
		}
	}
	if appointment.ConsultationType.ID != uuid.Nil {
		response.ConsultationType = &dto.ConsultationTypeResponse{
			ID:              appointment.ConsultationType.ID,
			Name:            appointment.ConsultationType.Name,
			Mode:            string(appointment.ConsultationType.Mode),
			Fee:             appointment.ConsultationType.Fee,
			DurationMinutes: appointment.ConsultationType.DurationMinutes,
		}
	}

	return response
}
