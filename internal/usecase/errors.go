package usecase

import "errors"

// ErrorKind classifies booking failures independent of their message.
type ErrorKind string

const (
	KindNotFound         ErrorKind = "not_found"
	KindInvalidInput     ErrorKind = "invalid_input"
	KindSlotUnavailable  ErrorKind = "slot_unavailable"
	KindLimitExceeded    ErrorKind = "limit_exceeded"
	KindPolicyDenied     ErrorKind = "policy_denied"
	KindConflict         ErrorKind = "conflict"
	KindAlreadyCancelled ErrorKind = "already_cancelled"
)

// BookingError carries a kind and a message that is safe to show to patients.
type BookingError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *BookingError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *BookingError) Unwrap() error {
	return e.Err
}

// Is matches another BookingError with the same kind and message, so wrapped
// copies of a sentinel still satisfy errors.Is.
func (e *BookingError) Is(target error) bool {
	t, ok := target.(*BookingError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

func newBookingError(kind ErrorKind, message string) *BookingError {
	return &BookingError{Kind: kind, Message: message}
}

var (
	ErrDoctorNotFound           = newBookingError(KindNotFound, "Doctor not found or not accepting appointments.")
	ErrConsultationTypeNotFound = newBookingError(KindNotFound, "Consultation type not found or no longer offered.")
	ErrAppointmentNotFound      = newBookingError(KindNotFound, "Appointment not found.")

	ErrInvalidDate     = newBookingError(KindInvalidInput, "Invalid date format, use YYYY-MM-DD.")
	ErrInvalidTime     = newBookingError(KindInvalidInput, "Invalid time format, use HH:MM (24-hour).")
	ErrInvalidDuration = newBookingError(KindInvalidInput, "The appointment does not fit within the day.")
	ErrInvalidQuery    = newBookingError(KindInvalidInput, "A date is required for this availability mode.")
	ErrInvalidMode     = newBookingError(KindInvalidInput, "Unknown availability mode, use dates, slots, next or stats.")

	ErrSlotInPast           = newBookingError(KindSlotUnavailable, "This time slot is in the past. Please select a later time.")
	ErrOutsideBookingWindow = newBookingError(KindSlotUnavailable, "This date is outside the allowed booking window.")
	ErrOutsideWorkingHours  = newBookingError(KindSlotUnavailable, "The doctor is not available at this time.")
	ErrSlotBlocked          = newBookingError(KindSlotUnavailable, "This time slot is blocked. Please select another time.")
	ErrSlotAlreadyBooked    = newBookingError(KindSlotUnavailable, "This time slot is already booked. Please select another time.")
	ErrSlotJustTaken        = newBookingError(KindSlotUnavailable, "This time slot has just been booked. Please select another time.")

	ErrDoctorFullyBooked    = newBookingError(KindLimitExceeded, "The doctor is fully booked on this date. Please choose another day.")
	ErrPatientLimitExceeded = newBookingError(KindLimitExceeded, "You have reached the maximum number of bookings for this day.")

	ErrCancellationNotAllowed   = newBookingError(KindPolicyDenied, "This clinic does not allow online cancellation.")
	ErrCancellationWindowPassed = newBookingError(KindPolicyDenied, "It is too late to cancel this appointment.")
	ErrReschedulingNotAllowed   = newBookingError(KindPolicyDenied, "This clinic does not allow online rescheduling.")
	ErrReschedulingWindowPassed = newBookingError(KindPolicyDenied, "It is too late to reschedule this appointment.")
	ErrMaxReschedulesReached    = newBookingError(KindPolicyDenied, "This appointment has been rescheduled the maximum number of times.")
	ErrAppointmentCompleted     = newBookingError(KindPolicyDenied, "Completed appointments cannot be changed.")
	ErrAppointmentCancelled     = newBookingError(KindPolicyDenied, "Cancelled appointments cannot be rescheduled.")
	ErrAppointmentNotPending    = newBookingError(KindPolicyDenied, "Only pending appointments can be confirmed.")
	ErrAppointmentNotConfirmed  = newBookingError(KindPolicyDenied, "Only confirmed appointments can be completed.")

	ErrBookingConflict = newBookingError(KindConflict, "The schedule changed while your request was processed. Please try again.")

	ErrAppointmentAlreadyCancelled = newBookingError(KindAlreadyCancelled, "This appointment is already cancelled.")
)

// conflictError wraps a retryable transaction or lock failure.
func conflictError(err error) error {
	return &BookingError{Kind: KindConflict, Message: ErrBookingConflict.Message, Err: err}
}

// KindOf returns the kind of the first BookingError in err's chain, or "".
func KindOf(err error) ErrorKind {
	var bookingErr *BookingError
	if errors.As(err, &bookingErr) {
		return bookingErr.Kind
	}
	return ""
}

// IsRetryable reports whether the caller should retry the whole operation,
// starting again from the availability check.
func IsRetryable(err error) bool {
	return KindOf(err) == KindConflict
}
