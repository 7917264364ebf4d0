package usecase

import (
	"context"
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
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

type AppointmentUsecase interface {
	GetAppointment(ctx context.Context, id uuid.UUID) (*dto.AppointmentResponse, error)
	GetHistory(ctx context.Context, id uuid.UUID) (*dto.AuditLogListResponse, error)
	CancelAppointment(ctx context.Context, id uuid.UUID, req *dto.CancelAppointmentRequest) (*dto.AppointmentResponse, error)
	RescheduleAppointment(ctx context.Context, id uuid.UUID, req *dto.RescheduleAppointmentRequest) (*dto.AppointmentResponse, error)
	ConfirmAppointment(ctx context.Context, id uuid.UUID) (*dto.AppointmentResponse, error)
	CompleteAppointment(ctx context.Context, id uuid.UUID) (*dto.AppointmentResponse, error)
}

type appointmentUsecase struct {
	db              *gorm.DB
	log             *logrus.Logger
	defaultLoc      *time.Location
	now             func() time.Time
	transactor      repository.Transactor
	slotUsecase     SlotUsecase
	slotLock        service.SlotLockService
	auditService    service.AuditService
	dispatcher      service.NotificationDispatcher
	metrics         *metrics.BookingMetrics
	rulesRepo       repository.AppointmentRulesRepository
	blockedSlotRepo repository.BlockedSlotRepository
	appointmentRepo repository.AppointmentRepository
}

func NewAppointmentUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	defaultLoc *time.Location,
	transactor repository.Transactor,
	slotUsecase SlotUsecase,
	slotLock service.SlotLockService,
	auditService service.AuditService,
	dispatcher service.NotificationDispatcher,
	m *metrics.BookingMetrics,
	rulesRepo repository.AppointmentRulesRepository,
	blockedSlotRepo repository.BlockedSlotRepository,
	appointmentRepo repository.AppointmentRepository,
) AppointmentUsecase {
	if defaultLoc == nil {
		defaultLoc = time.UTC
	}
	return &appointmentUsecase{
		db:              db,
		log:             log,
		defaultLoc:      defaultLoc,
		now:             time.Now,
		transactor:      transactor,
		slotUsecase:     slotUsecase,
		slotLock:        slotLock,
		auditService:    auditService,
		dispatcher:      dispatcher,
		metrics:         m,
		rulesRepo:       rulesRepo,
		blockedSlotRepo: blockedSlotRepo,
		appointmentRepo: appointmentRepo,
	}
}

func (u *appointmentUsecase) GetAppointment(ctx context.Context, id uuid.UUID) (*dto.AppointmentResponse, error) {
	appointment, err := u.findAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	return converter.AppointmentToResponse(appointment), nil
}

func (u *appointmentUsecase) GetHistory(ctx context.Context, id uuid.UUID) (*dto.AuditLogListResponse, error) {
	if _, err := u.findAppointment(ctx, id); err != nil {
		return nil, err
	}

	logs, err := u.auditService.History(ctx, u.db, id)
	if err != nil {
		u.log.Warnf("Failed to find audit logs for appointment %s: %+v", id, err)
		return nil, err
	}

	return &dto.AuditLogListResponse{
		Logs:  converter.AuditLogsToResponses(logs),
		Total: len(logs),
	}, nil
}

// CancelAppointment voids an appointment. Guards run before any write; the status
// flip itself is conditional so a concurrent cancel is reported as AlreadyCancelled.
func (u *appointmentUsecase) CancelAppointment(ctx context.Context, id uuid.UUID, req *dto.CancelAppointmentRequest) (resp *dto.AppointmentResponse, err error) {
	ctx, span := startSpan(ctx, "AppointmentUsecase.CancelAppointment", attribute.String("booking.appointment_id", id.String()))
	defer span.End()
	defer func() {
		u.metrics.ObserveOperation(operationCancel, outcomeOf(err))
		if err != nil {
			span.RecordError(err)
		}
	}()

	appointment, err := u.findAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if appointment.IsCancelled() {
		return nil, ErrAppointmentAlreadyCancelled
	}
	if appointment.IsCompleted() {
		return nil, ErrAppointmentCompleted
	}

	rules, err := loadRules(ctx, u.db, u.rulesRepo, appointment.ClinicID)
	if err != nil {
		u.log.Warnf("Failed to find appointment rules for clinic %s: %+v", appointment.ClinicID, err)
		return nil, err
	}
	if !rules.AllowCancellation {
		return nil, ErrCancellationNotAllowed
	}
	if u.tooSoon(appointment, rules.CancellationWindowMinutes) {
		return nil, ErrCancellationWindowPassed
	}

	before := auditSnapshot(appointment)
	cancelledAt := u.now()
	err = u.transactor.Serializable(ctx, func(tx *gorm.DB) error {
		rows, err := u.appointmentRepo.Cancel(ctx, tx, id, req.Reason, cancelledAt)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrAppointmentAlreadyCancelled
		}

		appointment.Cancel(req.Reason, cancelledAt)
		return u.auditService.LogUpdate(ctx, tx, appointment.ClinicID, id, entity.AuditActionAppointmentCancel, before, auditSnapshot(appointment))
	})
	if err != nil {
		return nil, mapTransactionError(u.log, "cancel appointment", err)
	}

	u.dispatcher.Dispatch(newNotification(service.NotificationCancellation, appointment))

	u.log.Infof("Appointment cancelled: id=%s, ref=%s", id, appointment.BookingReference)
	return converter.AppointmentToResponse(appointment), nil
}

// RescheduleAppointment moves an appointment to a new date and time, keeping its
// duration. Availability is checked twice like a booking, ignoring the appointment's
// own current interval. The daily and patient limits are not re-applied.
func (u *appointmentUsecase) RescheduleAppointment(ctx context.Context, id uuid.UUID, req *dto.RescheduleAppointmentRequest) (resp *dto.AppointmentResponse, err error) {
	ctx, span := startSpan(ctx, "AppointmentUsecase.RescheduleAppointment",
		attribute.String("booking.appointment_id", id.String()),
		attribute.String("booking.date", req.Date),
		attribute.String("booking.time", req.Time),
	)
	defer span.End()
	defer func() {
		u.metrics.ObserveOperation(operationReschedule, outcomeOf(err))
		if err != nil {
			span.RecordError(err)
		}
	}()

	appointment, err := u.findAppointment(ctx, id)
	if err != nil {
		return nil, err
	}

	rules, err := loadRules(ctx, u.db, u.rulesRepo, appointment.ClinicID)
	if err != nil {
		u.log.Warnf("Failed to find appointment rules for clinic %s: %+v", appointment.ClinicID, err)
		return nil, err
	}
	if err := checkReschedulable(appointment, rules); err != nil {
		return nil, err
	}
	if u.tooSoon(appointment, rules.ReschedulingWindowMinutes) {
		return nil, ErrReschedulingWindowPassed
	}

	newDate, err := timeslot.ParseDate(req.Date)
	if err != nil {
		return nil, ErrInvalidDate
	}
	if _, err := timeslot.ParseClock(req.Time); err != nil {
		return nil, ErrInvalidTime
	}
	newEndTime, err := timeslot.AddMinutes(req.Time, appointment.Duration)
	if err != nil {
		return nil, ErrInvalidDuration
	}

	available, reason, err := u.slotUsecase.IsSlotAvailable(ctx, appointment.DoctorID, newDate, req.Time, appointment.Duration, &appointment.ID)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, reasonError(reason)
	}

	previousDate := timeslot.FormatDate(appointment.Date)
	previousTime := appointment.StartTime

	txStart := time.Now()
	err = u.slotLock.WithSlotLock(ctx, appointment.ClinicID, appointment.DoctorID, newDate, func(lockCtx context.Context) error {
		return u.transactor.Serializable(lockCtx, func(tx *gorm.DB) error {
			// Re-read inside the transaction: a concurrent cancel or reschedule may have won.
			current, err := u.appointmentRepo.FindByClinicAndID(lockCtx, tx, appointment.ClinicID, id)
			if err != nil {
				return err
			}
			if current == nil {
				return ErrAppointmentNotFound
			}
			if err := checkReschedulable(current, rules); err != nil {
				return err
			}

			overlapping, err := u.appointmentRepo.FindOverlapping(lockCtx, tx, current.ClinicID, current.DoctorID, newDate, req.Time, newEndTime, &current.ID)
			if err != nil {
				return err
			}
			if len(overlapping) > 0 {
				return ErrSlotJustTaken
			}

			blocked, err := u.blockedSlotRepo.ExistsIntersecting(lockCtx, tx, current.ClinicID, current.DoctorID, newDate, req.Time, newEndTime)
			if err != nil {
				return err
			}
			if blocked {
				return ErrSlotBlocked
			}

			before := auditSnapshot(current)
			current.MoveTo(newDate, req.Time, newEndTime)
			if err := u.appointmentRepo.SaveSchedule(lockCtx, tx, current); err != nil {
				return err
			}

			appointment = current
			return u.auditService.LogUpdate(lockCtx, tx, current.ClinicID, id, entity.AuditActionAppointmentReschedule, before, auditSnapshot(current))
		})
	})
	u.metrics.ObserveTransaction(operationReschedule, time.Since(txStart).Seconds())
	if err != nil {
		return nil, mapTransactionError(u.log, "reschedule appointment", err)
	}

	msg := newNotification(service.NotificationReschedule, appointment)
	msg.PreviousDate = previousDate
	msg.PreviousTime = previousTime
	u.dispatcher.Dispatch(msg)

	u.log.Infof("Appointment rescheduled: id=%s, from=%s %s, to=%s %s, count=%d",
		id, previousDate, previousTime, req.Date, req.Time, appointment.RescheduleCount)
	return converter.AppointmentToResponse(appointment), nil
}

// ConfirmAppointment moves a pending appointment to confirmed once payment is captured.
func (u *appointmentUsecase) ConfirmAppointment(ctx context.Context, id uuid.UUID) (resp *dto.AppointmentResponse, err error) {
	defer func() { u.metrics.ObserveOperation(operationConfirm, outcomeOf(err)) }()

	appointment, err := u.findAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if appointment.IsCancelled() {
		return nil, ErrAppointmentAlreadyCancelled
	}
	if !appointment.IsPending() {
		return nil, ErrAppointmentNotPending
	}

	if err := u.transition(ctx, appointment, entity.AppointmentStatusConfirmed, entity.AuditActionAppointmentConfirm, ErrAppointmentNotPending); err != nil {
		return nil, err
	}

	u.dispatcher.Dispatch(newNotification(service.NotificationConfirmation, appointment))

	u.log.Infof("Appointment confirmed: id=%s, ref=%s", id, appointment.BookingReference)
	return converter.AppointmentToResponse(appointment), nil
}

// CompleteAppointment marks a confirmed appointment as attended.
func (u *appointmentUsecase) CompleteAppointment(ctx context.Context, id uuid.UUID) (resp *dto.AppointmentResponse, err error) {
	defer func() { u.metrics.ObserveOperation(operationComplete, outcomeOf(err)) }()

	appointment, err := u.findAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if appointment.IsCancelled() {
		return nil, ErrAppointmentAlreadyCancelled
	}
	if !appointment.IsConfirmed() {
		return nil, ErrAppointmentNotConfirmed
	}

	if err := u.transition(ctx, appointment, entity.AppointmentStatusCompleted, entity.AuditActionAppointmentComplete, ErrAppointmentNotConfirmed); err != nil {
		return nil, err
	}

	u.log.Infof("Appointment completed: id=%s, ref=%s", id, appointment.BookingReference)
	return converter.AppointmentToResponse(appointment), nil
}

// transition applies a conditional status change; lost races return raceErr.
func (u *appointmentUsecase) transition(ctx context.Context, appointment *entity.Appointment, to entity.AppointmentStatus, action string, raceErr error) error {
	from := appointment.Status
	before := auditSnapshot(appointment)
	at := u.now()

	err := u.transactor.Serializable(ctx, func(tx *gorm.DB) error {
		rows, err := u.appointmentRepo.UpdateStatus(ctx, tx, appointment.ID, from, to, at)
		if err != nil {
			return err
		}
		if rows == 0 {
			return raceErr
		}

		appointment.Status = to
		switch to {
		case entity.AppointmentStatusConfirmed:
			appointment.ConfirmedAt = &at
		case entity.AppointmentStatusCompleted:
			appointment.CompletedAt = &at
		}
		return u.auditService.LogUpdate(ctx, tx, appointment.ClinicID, appointment.ID, action, before, auditSnapshot(appointment))
	})
	if err != nil {
		appointment.Status = from
		return mapTransactionError(u.log, "update appointment status", err)
	}
	return nil
}

func (u *appointmentUsecase) findAppointment(ctx context.Context, id uuid.UUID) (*entity.Appointment, error) {
	appointment, err := u.appointmentRepo.FindByID(ctx, u.db, id)
	if err != nil {
		u.log.Warnf("Failed to find appointment %s: %+v", id, err)
		return nil, err
	}
	if appointment == nil {
		return nil, ErrAppointmentNotFound
	}
	return appointment, nil
}

// tooSoon reports whether now plus the window is already past the appointment's
// current start, in clinic-local time. A nil window never blocks.
func (u *appointmentUsecase) tooSoon(appointment *entity.Appointment, windowMinutes *int) bool {
	if windowMinutes == nil {
		return false
	}
	loc := appointment.Doctor.Clinic.Location(u.defaultLoc)
	now := clinicNow(u.now, &appointment.Doctor.Clinic, u.defaultLoc)

	startMinute, err := timeslot.ParseClock(appointment.StartTime)
	if err != nil {
		return true
	}
	d := appointment.Date
	start := time.Date(d.Year(), d.Month(), d.Day(), startMinute/60, startMinute%60, 0, 0, loc)

	return now.Add(time.Duration(*windowMinutes) * time.Minute).After(start)
}

// checkReschedulable applies the status and count guards, in that order.
func checkReschedulable(appointment *entity.Appointment, rules *entity.AppointmentRules) error {
	switch {
	case appointment.IsCancelled():
		return ErrAppointmentCancelled
	case appointment.IsCompleted():
		return ErrAppointmentCompleted
	case !rules.AllowRescheduling:
		return ErrReschedulingNotAllowed
	case rules.MaxReschedules != nil && appointment.RescheduleCount >= *rules.MaxReschedules:
		return ErrMaxReschedulesReached
	}
	return nil
}
