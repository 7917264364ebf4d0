package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"clinic-booking/internal/delivery/dto"
	"clinic-booking/internal/domain/entity"
	"clinic-booking/internal/service"
	"clinic-booking/pkg/timeslot"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAppointment(t *testing.T) {
	f := newBookingFixture(t)
	booked := f.book(t, "2025-01-10", "10:00", "+628111")

	resp, err := f.appointments.GetAppointment(context.Background(), booked.ID)
	require.NoError(t, err)
	assert.Equal(t, booked.BookingReference, resp.BookingReference)
	require.NotNil(t, resp.Patient)
	assert.Equal(t, "+628111", resp.Patient.Phone)
	require.NotNil(t, resp.ConsultationType)

	_, err = f.appointments.GetAppointment(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestRescheduleAppointment_KeepsFirstOriginal(t *testing.T) {
	f := newBookingFixture(t)
	booked := f.book(t, "2025-01-10", "09:00", "+628111")

	first, err := f.appointments.RescheduleAppointment(context.Background(), booked.ID, &dto.RescheduleAppointmentRequest{Date: "2025-01-12", Time: "10:00"})
	require.NoError(t, err)
	assert.Equal(t, "2025-01-12", first.Date)
	assert.Equal(t, "10:00", first.StartTime)
	assert.Equal(t, "10:15", first.EndTime)
	assert.Equal(t, 1, first.RescheduleCount)
	require.NotNil(t, first.OriginalDate)
	require.NotNil(t, first.OriginalTime)
	assert.Equal(t, "2025-01-10", *first.OriginalDate)
	assert.Equal(t, "09:00", *first.OriginalTime)

	second, err := f.appointments.RescheduleAppointment(context.Background(), booked.ID, &dto.RescheduleAppointmentRequest{Date: "2025-01-15", Time: "11:00"})
	require.NoError(t, err)
	assert.Equal(t, "2025-01-15", second.Date)
	assert.Equal(t, "11:00", second.StartTime)
	assert.Equal(t, 2, second.RescheduleCount)
	assert.Equal(t, "2025-01-10", *second.OriginalDate)
	assert.Equal(t, "09:00", *second.OriginalTime)
	assert.Equal(t, string(entity.AppointmentStatusConfirmed), second.Status)

	msg := f.dispatcher.last()
	assert.Equal(t, service.NotificationReschedule, msg.Kind)
	assert.Equal(t, "2025-01-12", msg.PreviousDate)
	assert.Equal(t, "10:00", msg.PreviousTime)
	assert.Equal(t, "2025-01-15", msg.Date)

	assert.Equal(t, []string{
		entity.AuditActionAppointmentCreate,
		entity.AuditActionAppointmentReschedule,
		entity.AuditActionAppointmentReschedule,
	}, f.store.auditActions(booked.ID))

	// Both earlier slots are free again.
	for _, date := range []string{"2025-01-10", "2025-01-12"} {
		slots, err := f.slots.GenerateSlotsForDate(context.Background(), f.doctor.ID, mustDate(t, date), nil)
		require.NoError(t, err)
		for _, s := range slots {
			assert.True(t, s.Available, "%s %s", date, s.Time)
		}
	}
}

func TestRescheduleAppointment_MayOverlapItsOwnInterval(t *testing.T) {
	f := newBookingFixture(t)
	booked := f.book(t, "2025-01-10", "10:00", "+628111")

	resp, err := f.appointments.RescheduleAppointment(context.Background(), booked.ID, &dto.RescheduleAppointmentRequest{Date: "2025-01-10", Time: "10:05"})
	require.NoError(t, err)
	assert.Equal(t, "10:20", resp.EndTime)
}

func TestRescheduleAppointment_TargetTaken(t *testing.T) {
	f := newBookingFixture(t)
	booked := f.book(t, "2025-01-10", "10:00", "+628111")
	f.seedAppointment(t, "2025-01-11", "10:00", "10:15", entity.AppointmentStatusConfirmed)

	_, err := f.appointments.RescheduleAppointment(context.Background(), booked.ID, &dto.RescheduleAppointmentRequest{Date: "2025-01-11", Time: "10:10"})
	assert.ErrorIs(t, err, ErrSlotAlreadyBooked)

	f.appointments.slotUsecase = staleSlotUsecase{f.slots}
	_, err = f.appointments.RescheduleAppointment(context.Background(), booked.ID, &dto.RescheduleAppointmentRequest{Date: "2025-01-11", Time: "10:10"})
	assert.ErrorIs(t, err, ErrSlotJustTaken)

	stored := f.store.appointment(booked.ID)
	assert.Equal(t, "10:00", stored.StartTime)
	assert.Zero(t, stored.RescheduleCount)
	assert.Nil(t, stored.OriginalDate)
}

func TestRescheduleAppointment_Policies(t *testing.T) {
	tests := []struct {
		name    string
		rules   entity.AppointmentRules
		status  entity.AppointmentStatus
		count   int
		date    string
		start   string
		wantErr error
	}{
		{
			name:    "rescheduling disabled",
			rules:   entity.AppointmentRules{AllowCancellation: true},
			status:  entity.AppointmentStatusConfirmed,
			date:    "2025-01-10",
			start:   "10:00",
			wantErr: ErrReschedulingNotAllowed,
		},
		{
			name:    "max reschedules reached",
			rules:   entity.AppointmentRules{AllowCancellation: true, AllowRescheduling: true, MaxReschedules: intPtr(2)},
			status:  entity.AppointmentStatusConfirmed,
			count:   2,
			date:    "2025-01-10",
			start:   "10:00",
			wantErr: ErrMaxReschedulesReached,
		},
		{
			name:    "inside rescheduling window",
			rules:   entity.AppointmentRules{AllowCancellation: true, AllowRescheduling: true, ReschedulingWindowMinutes: intPtr(120)},
			status:  entity.AppointmentStatusConfirmed,
			date:    "2025-01-09",
			start:   "09:00",
			wantErr: ErrReschedulingWindowPassed,
		},
		{
			name:    "cancelled",
			rules:   *entity.PermissiveRules(),
			status:  entity.AppointmentStatusCancelled,
			date:    "2025-01-10",
			start:   "10:00",
			wantErr: ErrAppointmentCancelled,
		},
		{
			name:    "completed",
			rules:   *entity.PermissiveRules(),
			status:  entity.AppointmentStatusCompleted,
			date:    "2025-01-10",
			start:   "10:00",
			wantErr: ErrAppointmentCompleted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBookingFixture(t)
			f.setRules(tt.rules)
			end, err := timeslot.AddMinutes(tt.start, 15)
			require.NoError(t, err)
			a := f.seedAppointment(t, tt.date, tt.start, end, tt.status)
			f.store.mu.Lock()
			a.RescheduleCount = tt.count
			f.store.appointments[a.ID] = a
			f.store.mu.Unlock()

			_, err = f.appointments.RescheduleAppointment(context.Background(), a.ID, &dto.RescheduleAppointmentRequest{Date: "2025-01-13", Time: "11:00"})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, KindPolicyDenied, KindOf(err))
		})
	}
}

func TestRescheduleAppointment_InvalidTarget(t *testing.T) {
	f := newBookingFixture(t)
	booked := f.book(t, "2025-01-10", "10:00", "+628111")

	_, err := f.appointments.RescheduleAppointment(context.Background(), booked.ID, &dto.RescheduleAppointmentRequest{Date: "2025/01/12", Time: "10:00"})
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = f.appointments.RescheduleAppointment(context.Background(), booked.ID, &dto.RescheduleAppointmentRequest{Date: "2025-01-08", Time: "10:00"})
	assert.ErrorIs(t, err, ErrSlotInPast)

	_, err = f.appointments.RescheduleAppointment(context.Background(), uuid.New(), &dto.RescheduleAppointmentRequest{Date: "2025-01-12", Time: "10:00"})
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestCancelAppointment_Window(t *testing.T) {
	tests := []struct {
		name    string
		start   string
		end     string
		wantErr error
	}{
		{name: "thirty minutes ahead", start: "08:30", end: "08:45", wantErr: ErrCancellationWindowPassed},
		{name: "ninety minutes ahead", start: "09:30", end: "09:45"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBookingFixture(t)
			f.setRules(entity.AppointmentRules{AllowCancellation: true, AllowRescheduling: true, CancellationWindowMinutes: intPtr(60)})
			a := f.seedAppointment(t, "2025-01-09", tt.start, tt.end, entity.AppointmentStatusConfirmed)

			resp, err := f.appointments.CancelAppointment(context.Background(), a.ID, &dto.CancelAppointmentRequest{Reason: "Feeling better"})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, entity.AppointmentStatusConfirmed, f.store.appointment(a.ID).Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, string(entity.AppointmentStatusCancelled), resp.Status)
			assert.Equal(t, "Feeling better", resp.CancellationReason)
			assert.NotNil(t, resp.CancelledAt)
		})
	}
}

func TestCancelAppointment_SecondCancelReportsAlreadyCancelled(t *testing.T) {
	f := newBookingFixture(t)
	booked := f.book(t, "2025-01-10", "10:00", "+628111")

	_, err := f.appointments.CancelAppointment(context.Background(), booked.ID, &dto.CancelAppointmentRequest{Reason: "Conflict"})
	require.NoError(t, err)
	firstCancelledAt := f.store.appointment(booked.ID).CancelledAt
	require.NotNil(t, firstCancelledAt)
	assert.Equal(t, fixtureNow, *firstCancelledAt)

	f.now = fixtureNow.Add(30 * time.Minute)
	_, err = f.appointments.CancelAppointment(context.Background(), booked.ID, &dto.CancelAppointmentRequest{Reason: "Again"})
	assert.ErrorIs(t, err, ErrAppointmentAlreadyCancelled)
	assert.Equal(t, KindAlreadyCancelled, KindOf(err))

	stored := f.store.appointment(booked.ID)
	assert.Equal(t, entity.AppointmentStatusCancelled, stored.Status)
	assert.Equal(t, "Conflict", stored.CancellationReason)
	require.NotNil(t, stored.CancelledAt)
	assert.Equal(t, fixtureNow, *stored.CancelledAt)
	assert.Equal(t, []string{entity.AuditActionAppointmentCreate, entity.AuditActionAppointmentCancel}, f.store.auditActions(booked.ID))
	assert.Equal(t, []service.NotificationKind{service.NotificationConfirmation, service.NotificationCancellation}, f.dispatcher.kinds())

	// The slot is bookable again.
	f.book(t, "2025-01-10", "10:00", "+628222")
}

func TestCancelAppointment_ConcurrentCancelsSingleWinner(t *testing.T) {
	f := newBookingFixture(t)
	booked := f.book(t, "2025-01-10", "10:00", "+628111")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		already   int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.appointments.CancelAppointment(context.Background(), booked.ID, &dto.CancelAppointmentRequest{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrAppointmentAlreadyCancelled):
				already++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 4, already)
	assert.Len(t, f.store.auditActions(booked.ID), 2)
}

func TestCancelAppointment_Policies(t *testing.T) {
	f := newBookingFixture(t)
	f.setRules(entity.AppointmentRules{AllowRescheduling: true})
	a := f.seedAppointment(t, "2025-01-10", "10:00", "10:15", entity.AppointmentStatusConfirmed)

	_, err := f.appointments.CancelAppointment(context.Background(), a.ID, &dto.CancelAppointmentRequest{})
	assert.ErrorIs(t, err, ErrCancellationNotAllowed)

	completed := f.seedAppointment(t, "2025-01-10", "11:00", "11:15", entity.AppointmentStatusCompleted)
	_, err = f.appointments.CancelAppointment(context.Background(), completed.ID, &dto.CancelAppointmentRequest{})
	assert.ErrorIs(t, err, ErrAppointmentCompleted)

	_, err = f.appointments.CancelAppointment(context.Background(), uuid.New(), &dto.CancelAppointmentRequest{})
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestConfirmAndCompleteAppointment(t *testing.T) {
	f := newBookingFixture(t)
	f.setRules(entity.AppointmentRules{AllowCancellation: true, AllowRescheduling: true, RequirePayment: true})
	booked := f.book(t, "2025-01-10", "10:00", "+628111")
	require.Equal(t, string(entity.AppointmentStatusPending), booked.Status)

	_, err := f.appointments.CompleteAppointment(context.Background(), booked.ID)
	assert.ErrorIs(t, err, ErrAppointmentNotConfirmed)

	confirmed, err := f.appointments.ConfirmAppointment(context.Background(), booked.ID)
	require.NoError(t, err)
	assert.Equal(t, string(entity.AppointmentStatusConfirmed), confirmed.Status)
	assert.NotNil(t, confirmed.ConfirmedAt)

	_, err = f.appointments.ConfirmAppointment(context.Background(), booked.ID)
	assert.ErrorIs(t, err, ErrAppointmentNotPending)

	completed, err := f.appointments.CompleteAppointment(context.Background(), booked.ID)
	require.NoError(t, err)
	assert.Equal(t, string(entity.AppointmentStatusCompleted), completed.Status)
	assert.NotNil(t, completed.CompletedAt)

	assert.Equal(t, entity.AppointmentStatusCompleted, f.store.appointment(booked.ID).Status)
	assert.Equal(t, []string{
		entity.AuditActionAppointmentCreate,
		entity.AuditActionAppointmentConfirm,
		entity.AuditActionAppointmentComplete,
	}, f.store.auditActions(booked.ID))
}

func TestGetHistory(t *testing.T) {
	f := newBookingFixture(t)
	booked := f.book(t, "2025-01-10", "10:00", "+628111")
	_, err := f.appointments.CancelAppointment(context.Background(), booked.ID, &dto.CancelAppointmentRequest{Reason: "Travel"})
	require.NoError(t, err)

	history, err := f.appointments.GetHistory(context.Background(), booked.ID)
	require.NoError(t, err)
	require.Equal(t, 2, history.Total)
	assert.Equal(t, entity.AuditActionAppointmentCreate, history.Logs[0].Action)
	assert.Equal(t, entity.AuditActionAppointmentCancel, history.Logs[1].Action)
	assert.Contains(t, history.Logs[1].Metadata, "old_value")

	_, err = f.appointments.GetHistory(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}
