package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"clinic-booking/internal/converter"
	"clinic-booking/internal/delivery/dto"
	"clinic-booking/internal/domain/entity"
	"clinic-booking/internal/domain/repository"
	"clinic-booking/internal/observability/metrics"
	"clinic-booking/internal/service"
	"clinic-booking/pkg/timeslot"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var bookingTracer = otel.Tracer("clinic-booking/internal/usecase")

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return bookingTracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal), trace.WithAttributes(attrs...))
}

const (
	operationBook       = "book"
	operationCancel     = "cancel"
	operationReschedule = "reschedule"
	operationConfirm    = "confirm"
	operationComplete   = "complete"
)

type BookingUsecase interface {
	BookAppointment(ctx context.Context, doctorSlug string, req *dto.BookAppointmentRequest) (*dto.AppointmentResponse, error)
}

type bookingUsecase struct {
	db                   *gorm.DB
	log                  *logrus.Logger
	defaultLoc           *time.Location
	now                  func() time.Time
	transactor           repository.Transactor
	slotUsecase          SlotUsecase
	slotLock             service.SlotLockService
	auditService         service.AuditService
	dispatcher           service.NotificationDispatcher
	metrics              *metrics.BookingMetrics
	doctorRepo           repository.DoctorProfileRepository
	consultationTypeRepo repository.ConsultationTypeRepository
	rulesRepo            repository.AppointmentRulesRepository
	blockedSlotRepo      repository.BlockedSlotRepository
	patientRepo          repository.PatientRepository
	appointmentRepo      repository.AppointmentRepository
}

func NewBookingUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	defaultLoc *time.Location,
	transactor repository.Transactor,
	slotUsecase SlotUsecase,
	slotLock service.SlotLockService,
	auditService service.AuditService,
	dispatcher service.NotificationDispatcher,
	m *metrics.BookingMetrics,
	doctorRepo repository.DoctorProfileRepository,
	consultationTypeRepo repository.ConsultationTypeRepository,
	rulesRepo repository.AppointmentRulesRepository,
	blockedSlotRepo repository.BlockedSlotRepository,
	patientRepo repository.PatientRepository,
	appointmentRepo repository.AppointmentRepository,
) BookingUsecase {
	if defaultLoc == nil {
		defaultLoc = time.UTC
	}
	return &bookingUsecase{
		db:                   db,
		log:                  log,
		defaultLoc:           defaultLoc,
		now:                  time.Now,
		transactor:           transactor,
		slotUsecase:          slotUsecase,
		slotLock:             slotLock,
		auditService:         auditService,
		dispatcher:           dispatcher,
		metrics:              m,
		doctorRepo:           doctorRepo,
		consultationTypeRepo: consultationTypeRepo,
		rulesRepo:            rulesRepo,
		blockedSlotRepo:      blockedSlotRepo,
		patientRepo:          patientRepo,
		appointmentRepo:      appointmentRepo,
	}
}

// BookAppointment turns a slot selection into an appointment.
//
// Flow:
// 1. Resolve doctor and consultation type, derive [time, time+duration)
// 2. Fast availability check outside any transaction
// 3. Per doctor-day Redis lock (optional)
// 4. Serializable transaction: overlap re-check, block re-check, daily limit,
//    patient upsert by phone, patient limit, insert, audit
// 5. Confirmation notification dispatched after commit
//
// Serialization failures and lock timeouts surface as a retryable conflict; callers
// retry from step 1.
func (u *bookingUsecase) BookAppointment(ctx context.Context, doctorSlug string, req *dto.BookAppointmentRequest) (resp *dto.AppointmentResponse, err error) {
	ctx, span := startSpan(ctx, "BookingUsecase.BookAppointment",
		attribute.String("booking.doctor_slug", doctorSlug),
		attribute.String("booking.date", req.Date),
		attribute.String("booking.time", req.Time),
	)
	defer span.End()
	defer func() {
		u.metrics.ObserveOperation(operationBook, outcomeOf(err))
		if err != nil {
			span.RecordError(err)
		}
	}()

	// Step 1: Resolve doctor, consultation type and the requested interval
	doctor, err := u.doctorRepo.FindActiveBySlug(ctx, u.db, doctorSlug)
	if err != nil {
		u.log.Warnf("Failed to find doctor %s: %+v", doctorSlug, err)
		return nil, err
	}
	if doctor == nil {
		return nil, ErrDoctorNotFound
	}
	clinicID := doctor.ClinicID

	consultationType, err := u.consultationTypeRepo.FindActiveByID(ctx, u.db, clinicID, req.ConsultationTypeID)
	if err != nil {
		u.log.Warnf("Failed to find consultation type %s: %+v", req.ConsultationTypeID, err)
		return nil, err
	}
	if consultationType == nil {
		return nil, ErrConsultationTypeNotFound
	}

	date, err := timeslot.ParseDate(req.Date)
	if err != nil {
		return nil, ErrInvalidDate
	}
	if _, err := timeslot.ParseClock(req.Time); err != nil {
		return nil, ErrInvalidTime
	}
	endTime, err := timeslot.AddMinutes(req.Time, consultationType.DurationMinutes)
	if err != nil {
		return nil, ErrInvalidDuration
	}

	// Step 2: Fast check, no locks held
	available, reason, err := u.slotUsecase.IsSlotAvailable(ctx, doctor.ID, date, req.Time, consultationType.DurationMinutes, nil)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, reasonError(reason)
	}

	rules, err := loadRules(ctx, u.db, u.rulesRepo, clinicID)
	if err != nil {
		u.log.Warnf("Failed to find appointment rules for clinic %s: %+v", clinicID, err)
		return nil, err
	}

	now := u.now()
	appointment := &entity.Appointment{
		ID:                 uuid.New(),
		ClinicID:           clinicID,
		DoctorID:           doctor.ID,
		ConsultationTypeID: consultationType.ID,
		BookingReference:   generateBookingReference(now),
		Date:               date,
		StartTime:          req.Time,
		EndTime:            endTime,
		Duration:           consultationType.DurationMinutes,
		Status:             entity.AppointmentStatusConfirmed,
		Fee:                consultationType.Fee,
		ReasonForVisit:     req.ReasonForVisit,
	}
	if rules.RequirePayment {
		appointment.Status = entity.AppointmentStatusPending
	} else {
		appointment.ConfirmedAt = &now
	}

	var patient *entity.Patient

	// Steps 3-4: lock, then the authoritative checks and the write
	txStart := time.Now()
	err = u.slotLock.WithSlotLock(ctx, clinicID, doctor.ID, date, func(lockCtx context.Context) error {
		return u.transactor.Serializable(lockCtx, func(tx *gorm.DB) error {
			overlapping, err := u.appointmentRepo.FindOverlapping(lockCtx, tx, clinicID, doctor.ID, date, req.Time, endTime, nil)
			if err != nil {
				return err
			}
			if len(overlapping) > 0 {
				return ErrSlotJustTaken
			}

			blocked, err := u.blockedSlotRepo.ExistsIntersecting(lockCtx, tx, clinicID, doctor.ID, date, req.Time, endTime)
			if err != nil {
				return err
			}
			if blocked {
				return ErrSlotBlocked
			}

			if rules.MaxBookingsPerDay != nil {
				count, err := u.appointmentRepo.CountActiveByDate(lockCtx, tx, clinicID, doctor.ID, date)
				if err != nil {
					return err
				}
				if count >= int64(*rules.MaxBookingsPerDay) {
					return ErrDoctorFullyBooked
				}
			}

			patient, err = u.upsertPatient(lockCtx, tx, clinicID, &req.Patient)
			if err != nil {
				return err
			}

			if rules.MaxBookingsPerPatient != nil {
				count, err := u.appointmentRepo.CountActiveByPatientAndDate(lockCtx, tx, clinicID, patient.ID, date)
				if err != nil {
					return err
				}
				if count >= int64(*rules.MaxBookingsPerPatient) {
					return ErrPatientLimitExceeded
				}
			}

			appointment.PatientID = patient.ID
			if err := u.appointmentRepo.Create(lockCtx, tx, appointment); err != nil {
				return err
			}

			return u.auditService.LogCreate(lockCtx, tx, clinicID, appointment.ID, entity.AuditActionAppointmentCreate, auditSnapshot(appointment))
		})
	})
	u.metrics.ObserveTransaction(operationBook, time.Since(txStart).Seconds())
	if err != nil {
		return nil, u.transactionError("book appointment", err)
	}

	appointment.Patient = *patient
	appointment.Doctor = *doctor
	appointment.ConsultationType = *consultationType

	// Step 5: Fire and forget
	u.dispatcher.Dispatch(newNotification(service.NotificationConfirmation, appointment))

	span.SetAttributes(attribute.String("booking.appointment_id", appointment.ID.String()))
	u.log.Infof("Appointment booked: id=%s, ref=%s, doctor=%s, date=%s, time=%s-%s, status=%s",
		appointment.ID, appointment.BookingReference, doctor.ID, req.Date, req.Time, endTime, appointment.Status)

	return converter.AppointmentToResponse(appointment), nil
}

// upsertPatient finds the patient by phone within the clinic and refreshes name and
// email, or creates one. Two first bookings racing on a new phone may both create;
// duplicates are tolerated and FindByPhone picks the oldest.
func (u *bookingUsecase) upsertPatient(ctx context.Context, tx *gorm.DB, clinicID uuid.UUID, req *dto.PatientRequest) (*entity.Patient, error) {
	patient, err := u.patientRepo.FindByPhone(ctx, tx, clinicID, req.Phone)
	if err != nil {
		return nil, err
	}

	if patient != nil {
		patient.FullName = req.Name
		if req.Email != nil {
			patient.Email = req.Email
		}
		if err := u.patientRepo.Update(ctx, tx, patient); err != nil {
			return nil, err
		}
		return patient, nil
	}

	patient = &entity.Patient{
		ID:       uuid.New(),
		ClinicID: clinicID,
		FullName: req.Name,
		Phone:    req.Phone,
		Email:    req.Email,
	}
	if err := u.patientRepo.Create(ctx, tx, patient); err != nil {
		return nil, err
	}
	return patient, nil
}

func (u *bookingUsecase) transactionError(action string, err error) error {
	return mapTransactionError(u.log, action, err)
}

// mapTransactionError keeps booking errors raised inside the transaction, turns
// retryable database and lock failures into a conflict, and passes the rest through.
func mapTransactionError(log *logrus.Logger, action string, err error) error {
	var bookingErr *BookingError
	if errors.As(err, &bookingErr) {
		return err
	}
	if errors.Is(err, repository.ErrTxConflict) || errors.Is(err, service.ErrSlotLockNotAcquired) {
		log.Infof("Retryable conflict on %s: %v", action, err)
		return conflictError(err)
	}
	log.Warnf("Failed to %s: %+v", action, err)
	return err
}

// reasonError maps a slot's unavailable reason to the message shown to the patient.
func reasonError(reason entity.UnavailableReason) error {
	switch reason {
	case entity.ReasonPast:
		return ErrSlotInPast
	case entity.ReasonOutsideBookingWindow:
		return ErrOutsideBookingWindow
	case entity.ReasonOutsideWorkingHours:
		return ErrOutsideWorkingHours
	case entity.ReasonBlocked:
		return ErrSlotBlocked
	default:
		return ErrSlotAlreadyBooked
	}
}

func outcomeOf(err error) string {
	if err == nil {
		return "success"
	}
	if kind := KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}

func auditSnapshot(a *entity.Appointment) map[string]interface{} {
	snapshot := map[string]interface{}{
		"status":           a.Status,
		"date":             timeslot.FormatDate(a.Date),
		"start_time":       a.StartTime,
		"end_time":         a.EndTime,
		"reschedule_count": a.RescheduleCount,
	}
	if a.BookingReference != "" {
		snapshot["booking_reference"] = a.BookingReference
	}
	return snapshot
}

func newNotification(kind service.NotificationKind, a *entity.Appointment) service.AppointmentNotification {
	msg := service.AppointmentNotification{
		Kind:             kind,
		AppointmentID:    a.ID,
		ClinicID:         a.ClinicID,
		BookingReference: a.BookingReference,
		PatientName:      a.Patient.FullName,
		PatientPhone:     a.Patient.Phone,
		DoctorName:       a.Doctor.FullName,
		Date:             timeslot.FormatDate(a.Date),
		StartTime:        a.StartTime,
		EndTime:          a.EndTime,
		Reason:           a.CancellationReason,
	}
	if a.Patient.Email != nil {
		msg.PatientEmail = *a.Patient.Email
	}
	return msg
}

// generateBookingReference generates a booking reference: BK-YYMMDDhhmmss-XXXXXX.
// The UTC creation time keeps references roughly sortable; the suffix is random.
func generateBookingReference(createdAt time.Time) string {
	timestamp := createdAt.UTC().Format("060102150405")
	randomBytes := make([]byte, 3)
	rand.Read(randomBytes)
	return fmt.Sprintf("BK-%s-%X", timestamp, randomBytes)
}
