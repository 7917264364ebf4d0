package usecase

import (
	"context"
	"sort"
	"time"

	"clinic-booking/config"
	"clinic-booking/internal/converter"
	"clinic-booking/internal/delivery/dto"
	"clinic-booking/internal/domain/entity"
	"clinic-booking/internal/domain/repository"
	"clinic-booking/pkg/timeslot"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// availableDatesConcurrency bounds the per-day queries of GetAvailableDates.
const availableDatesConcurrency = 4

type SlotUsecase interface {
	GenerateSlotsForDate(ctx context.Context, doctorID uuid.UUID, date time.Time, consultationTypeID *uuid.UUID) ([]entity.Slot, error)
	GetAvailableDates(ctx context.Context, doctorID uuid.UUID, horizonDays int, consultationTypeID *uuid.UUID) ([]time.Time, error)
	FindNextAvailableSlot(ctx context.Context, doctorID uuid.UUID, consultationTypeID *uuid.UUID) (*entity.NextSlot, error)
	GetSlotStats(ctx context.Context, doctorID uuid.UUID, date time.Time) (*entity.SlotStats, error)
	IsSlotAvailable(ctx context.Context, doctorID uuid.UUID, date time.Time, startTime string, duration int, excludeID *uuid.UUID) (bool, entity.UnavailableReason, error)
	GetAvailability(ctx context.Context, doctorID uuid.UUID, query *dto.AvailabilityQuery) (*dto.AvailabilityResponse, error)
}

type slotUsecase struct {
	db                   *gorm.DB
	log                  *logrus.Logger
	cfg                  config.BookingConfig
	defaultLoc           *time.Location
	now                  func() time.Time
	doctorRepo           repository.DoctorProfileRepository
	availabilityRepo     repository.AvailabilityRepository
	blockedSlotRepo      repository.BlockedSlotRepository
	consultationTypeRepo repository.ConsultationTypeRepository
	rulesRepo            repository.AppointmentRulesRepository
	appointmentRepo      repository.AppointmentRepository
}

func NewSlotUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	cfg config.BookingConfig,
	defaultLoc *time.Location,
	doctorRepo repository.DoctorProfileRepository,
	availabilityRepo repository.AvailabilityRepository,
	blockedSlotRepo repository.BlockedSlotRepository,
	consultationTypeRepo repository.ConsultationTypeRepository,
	rulesRepo repository.AppointmentRulesRepository,
	appointmentRepo repository.AppointmentRepository,
) SlotUsecase {
	if defaultLoc == nil {
		defaultLoc = time.UTC
	}
	return &slotUsecase{
		db:                   db,
		log:                  log,
		cfg:                  cfg,
		defaultLoc:           defaultLoc,
		now:                  time.Now,
		doctorRepo:           doctorRepo,
		availabilityRepo:     availabilityRepo,
		blockedSlotRepo:      blockedSlotRepo,
		consultationTypeRepo: consultationTypeRepo,
		rulesRepo:            rulesRepo,
		appointmentRepo:      appointmentRepo,
	}
}

// doctorSchedule is everything about a doctor that does not depend on the date.
type doctorSchedule struct {
	doctor    *entity.DoctorProfile
	rules     *entity.AppointmentRules
	windows   []entity.Availability
	duration  int
	today     time.Time
	nowMinute int
}

type interval struct {
	start int
	end   int
}

// dayBookings is the per-date state a slot grid is checked against.
type dayBookings struct {
	fullDayBlock bool
	blocks       []interval
	appointments []interval
}

func (u *slotUsecase) GenerateSlotsForDate(ctx context.Context, doctorID uuid.UUID, date time.Time, consultationTypeID *uuid.UUID) ([]entity.Slot, error) {
	s, err := u.loadSchedule(ctx, doctorID, consultationTypeID)
	if err != nil {
		return nil, err
	}

	day, err := u.loadDay(ctx, s, date, nil)
	if err != nil {
		return nil, err
	}

	return u.buildSlots(s, date, day), nil
}

// GetAvailableDates returns the dates in [today, today+horizonDays) with at least one
// available slot. Days without a working window or outside the booking window are
// rejected before any per-day query runs.
func (u *slotUsecase) GetAvailableDates(ctx context.Context, doctorID uuid.UUID, horizonDays int, consultationTypeID *uuid.UUID) ([]time.Time, error) {
	if horizonDays <= 0 {
		horizonDays = u.cfg.DefaultHorizonDays
	}
	if horizonDays > u.cfg.MaxHorizonDays {
		horizonDays = u.cfg.MaxHorizonDays
	}

	s, err := u.loadSchedule(ctx, doctorID, consultationTypeID)
	if err != nil {
		return nil, err
	}

	candidates := make([]time.Time, 0, horizonDays)
	for i := 0; i < horizonDays; i++ {
		date := s.today.AddDate(0, 0, i)
		if !s.worksOn(date) || u.dayReason(s, date) != "" {
			continue
		}
		candidates = append(candidates, date)
	}

	hasSlot := make([]bool, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(availableDatesConcurrency)
	for i, date := range candidates {
		g.Go(func() error {
			day, err := u.loadDay(gctx, s, date, nil)
			if err != nil {
				return err
			}
			for _, slot := range u.buildSlots(s, date, day) {
				if slot.Available {
					hasSlot[i] = true
					break
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dates := make([]time.Time, 0, len(candidates))
	for i, date := range candidates {
		if hasSlot[i] {
			dates = append(dates, date)
		}
	}
	return dates, nil
}

// FindNextAvailableSlot scans forward day by day, bounded by the configured scan
// length, and returns nil when nothing is free.
func (u *slotUsecase) FindNextAvailableSlot(ctx context.Context, doctorID uuid.UUID, consultationTypeID *uuid.UUID) (*entity.NextSlot, error) {
	s, err := u.loadSchedule(ctx, doctorID, consultationTypeID)
	if err != nil {
		return nil, err
	}

	for i := 0; i < u.cfg.NextSlotScanDays; i++ {
		date := s.today.AddDate(0, 0, i)
		if !s.worksOn(date) || u.dayReason(s, date) != "" {
			continue
		}

		day, err := u.loadDay(ctx, s, date, nil)
		if err != nil {
			return nil, err
		}
		for _, slot := range u.buildSlots(s, date, day) {
			if slot.Available {
				return &entity.NextSlot{Date: date, Slot: slot}, nil
			}
		}
	}

	return nil, nil
}

// GetSlotStats counts one generation pass. Booked and blocked are read from the day's
// intervals rather than the slot reason, so bookings earlier today still count.
func (u *slotUsecase) GetSlotStats(ctx context.Context, doctorID uuid.UUID, date time.Time) (*entity.SlotStats, error) {
	s, err := u.loadSchedule(ctx, doctorID, nil)
	if err != nil {
		return nil, err
	}

	day, err := u.loadDay(ctx, s, date, nil)
	if err != nil {
		return nil, err
	}

	slots := u.buildSlots(s, date, day)
	stats := &entity.SlotStats{Date: date, Total: len(slots)}
	for _, slot := range slots {
		if slot.Available {
			stats.Available++
			continue
		}
		start, _ := timeslot.ParseClock(slot.Time)
		end := start + slot.Duration
		switch {
		case day.blocked(start, end):
			stats.Blocked++
		case day.booked(start, end):
			stats.Booked++
		}
	}
	return stats, nil
}

// IsSlotAvailable checks a single [startTime, startTime+duration) interval with the
// same rules as the slot grid. The interval must lie inside one working window but
// does not have to start on the grid. excludeID skips one appointment, used when an
// appointment is moved.
func (u *slotUsecase) IsSlotAvailable(ctx context.Context, doctorID uuid.UUID, date time.Time, startTime string, duration int, excludeID *uuid.UUID) (bool, entity.UnavailableReason, error) {
	start, err := timeslot.ParseClock(startTime)
	if err != nil {
		return false, "", ErrInvalidTime
	}
	end := start + duration
	if duration <= 0 || end > timeslot.MinutesPerDay-1 {
		return false, "", ErrInvalidDuration
	}

	s, err := u.loadSchedule(ctx, doctorID, nil)
	if err != nil {
		return false, "", err
	}

	if reason := u.dayReason(s, date); reason != "" {
		return false, reason, nil
	}
	if u.startsTooSoon(s, date, start) {
		return false, entity.ReasonPast, nil
	}
	if !s.covers(date, start, end) {
		return false, entity.ReasonOutsideWorkingHours, nil
	}

	day, err := u.loadDay(ctx, s, date, excludeID)
	if err != nil {
		return false, "", err
	}
	if day.blocked(start, end) {
		return false, entity.ReasonBlocked, nil
	}
	if day.booked(start, end) {
		return false, entity.ReasonBooked, nil
	}

	return true, "", nil
}

// GetAvailability serves the public query surface. The slot grid is filtered to
// available slots unless the caller asks for everything.
func (u *slotUsecase) GetAvailability(ctx context.Context, doctorID uuid.UUID, query *dto.AvailabilityQuery) (*dto.AvailabilityResponse, error) {
	response := &dto.AvailabilityResponse{Mode: query.Mode}

	switch query.Mode {
	case dto.AvailabilityModeDates:
		dates, err := u.GetAvailableDates(ctx, doctorID, query.Days, query.ConsultationTypeID)
		if err != nil {
			return nil, err
		}
		response.Dates = converter.DatesToResponse(dates)

	case dto.AvailabilityModeSlots:
		date, err := requireDate(query.Date)
		if err != nil {
			return nil, err
		}
		slots, err := u.GenerateSlotsForDate(ctx, doctorID, date, query.ConsultationTypeID)
		if err != nil {
			return nil, err
		}
		response.Slots = converter.SlotsToListResponse(date, slots, query.IncludeUnavailable)

	case dto.AvailabilityModeNext:
		next, err := u.FindNextAvailableSlot(ctx, doctorID, query.ConsultationTypeID)
		if err != nil {
			return nil, err
		}
		response.Next = converter.NextSlotToResponse(next)

	case dto.AvailabilityModeStats:
		date, err := requireDate(query.Date)
		if err != nil {
			return nil, err
		}
		stats, err := u.GetSlotStats(ctx, doctorID, date)
		if err != nil {
			return nil, err
		}
		response.Stats = converter.SlotStatsToResponse(stats)

	default:
		return nil, ErrInvalidMode
	}

	return response, nil
}

func requireDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, ErrInvalidQuery
	}
	date, err := timeslot.ParseDate(value)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return date, nil
}

// loadSchedule resolves the doctor, its clinic rules, its weekly windows, the slot
// duration and the clinic-local "now".
func (u *slotUsecase) loadSchedule(ctx context.Context, doctorID uuid.UUID, consultationTypeID *uuid.UUID) (*doctorSchedule, error) {
	doctor, err := u.doctorRepo.FindActiveByID(ctx, u.db, doctorID)
	if err != nil {
		u.log.Warnf("Failed to find doctor %s: %+v", doctorID, err)
		return nil, err
	}
	if doctor == nil {
		return nil, ErrDoctorNotFound
	}

	duration := doctor.SlotDuration()
	if consultationTypeID != nil {
		consultationType, err := u.consultationTypeRepo.FindActiveByID(ctx, u.db, doctor.ClinicID, *consultationTypeID)
		if err != nil {
			u.log.Warnf("Failed to find consultation type %s: %+v", *consultationTypeID, err)
			return nil, err
		}
		if consultationType == nil {
			return nil, ErrConsultationTypeNotFound
		}
		duration = consultationType.DurationMinutes
	}

	rules, err := loadRules(ctx, u.db, u.rulesRepo, doctor.ClinicID)
	if err != nil {
		u.log.Warnf("Failed to find appointment rules for clinic %s: %+v", doctor.ClinicID, err)
		return nil, err
	}

	windows, err := u.availabilityRepo.FindActiveByDoctor(ctx, u.db, doctor.ClinicID, doctor.ID)
	if err != nil {
		u.log.Warnf("Failed to find availability for doctor %s: %+v", doctor.ID, err)
		return nil, err
	}

	now := clinicNow(u.now, &doctor.Clinic, u.defaultLoc)
	return &doctorSchedule{
		doctor:    doctor,
		rules:     rules,
		windows:   windows,
		duration:  duration,
		today:     timeslot.DateOf(now),
		nowMinute: timeslot.MinuteOfDay(now),
	}, nil
}

func (u *slotUsecase) loadDay(ctx context.Context, s *doctorSchedule, date time.Time, excludeID *uuid.UUID) (*dayBookings, error) {
	clinicID := s.doctor.ClinicID

	blocks, err := u.blockedSlotRepo.FindByDate(ctx, u.db, clinicID, s.doctor.ID, date)
	if err != nil {
		u.log.Warnf("Failed to find blocked slots for doctor %s on %s: %+v", s.doctor.ID, timeslot.FormatDate(date), err)
		return nil, err
	}

	appointments, err := u.appointmentRepo.FindActiveByDate(ctx, u.db, clinicID, s.doctor.ID, date)
	if err != nil {
		u.log.Warnf("Failed to find appointments for doctor %s on %s: %+v", s.doctor.ID, timeslot.FormatDate(date), err)
		return nil, err
	}

	day := &dayBookings{}
	for _, block := range blocks {
		if block.IsFullDay() {
			day.fullDayBlock = true
			continue
		}
		start, startErr := timeslot.ParseClock(*block.StartTime)
		end, endErr := timeslot.ParseClock(*block.EndTime)
		if startErr != nil || endErr != nil {
			u.log.Warnf("Blocked slot %d has invalid times %q-%q, treating it as full day", block.ID, *block.StartTime, *block.EndTime)
			day.fullDayBlock = true
			continue
		}
		day.blocks = append(day.blocks, interval{start: start, end: end})
	}

	for _, appointment := range appointments {
		if excludeID != nil && appointment.ID == *excludeID {
			continue
		}
		start, startErr := timeslot.ParseClock(appointment.StartTime)
		end, endErr := timeslot.ParseClock(appointment.EndTime)
		if startErr != nil || endErr != nil {
			u.log.Warnf("Appointment %s has invalid times %q-%q", appointment.ID, appointment.StartTime, appointment.EndTime)
			continue
		}
		day.appointments = append(day.appointments, interval{start: start, end: end})
	}

	return day, nil
}

// buildSlots walks every window covering date and marks each candidate. The first
// matching reason wins: past or outside the booking window, then blocked, then booked.
func (u *slotUsecase) buildSlots(s *doctorSchedule, date time.Time, day *dayBookings) []entity.Slot {
	seen := make(map[int]struct{})
	starts := make([]int, 0)
	for _, window := range s.windows {
		if !window.Covers(date) {
			continue
		}
		w, ok := parseWindow(window)
		if !ok {
			u.log.Warnf("Availability %d has invalid window %q-%q", window.ID, window.StartTime, window.EndTime)
			continue
		}
		for _, start := range w.Starts(s.duration, s.doctor.BufferTime) {
			if _, dup := seen[start]; dup {
				continue
			}
			seen[start] = struct{}{}
			starts = append(starts, start)
		}
	}
	sort.Ints(starts)

	dayReason := u.dayReason(s, date)
	slots := make([]entity.Slot, 0, len(starts))
	for _, start := range starts {
		end := start + s.duration
		slot := entity.Slot{
			Time:     timeslot.FormatClock(start),
			EndTime:  timeslot.FormatClock(end),
			Duration: s.duration,
		}

		switch {
		case dayReason != "":
			slot.UnavailableReason = dayReason
		case u.startsTooSoon(s, date, start):
			slot.UnavailableReason = entity.ReasonPast
		case day.blocked(start, end):
			slot.UnavailableReason = entity.ReasonBlocked
		case day.booked(start, end):
			slot.UnavailableReason = entity.ReasonBooked
		default:
			slot.Available = true
		}

		slots = append(slots, slot)
	}

	return slots
}

// dayReason rejects whole dates: past days, and days outside the clinic's advance
// booking window or the global horizon.
func (u *slotUsecase) dayReason(s *doctorSchedule, date time.Time) entity.UnavailableReason {
	if date.Before(s.today) {
		return entity.ReasonPast
	}
	if !s.rules.InBookingWindow(date, s.today) {
		return entity.ReasonOutsideBookingWindow
	}
	if u.cfg.MaxHorizonDays > 0 && date.After(s.today.AddDate(0, 0, u.cfg.MaxHorizonDays)) {
		return entity.ReasonOutsideBookingWindow
	}
	return ""
}

// startsTooSoon reports a same-day start at or before now plus the minimum lead time.
func (u *slotUsecase) startsTooSoon(s *doctorSchedule, date time.Time, start int) bool {
	return date.Equal(s.today) && start <= s.nowMinute+u.cfg.MinLeadMinutes
}

func (s *doctorSchedule) worksOn(date time.Time) bool {
	for i := range s.windows {
		if s.windows[i].Covers(date) {
			return true
		}
	}
	return false
}

func (s *doctorSchedule) covers(date time.Time, start, end int) bool {
	for _, window := range s.windows {
		if !window.Covers(date) {
			continue
		}
		if w, ok := parseWindow(window); ok && w.Contains(start, end) {
			return true
		}
	}
	return false
}

func (d *dayBookings) blocked(start, end int) bool {
	if d.fullDayBlock {
		return true
	}
	for _, b := range d.blocks {
		if timeslot.Overlaps(start, end, b.start, b.end) {
			return true
		}
	}
	return false
}

func (d *dayBookings) booked(start, end int) bool {
	for _, a := range d.appointments {
		if timeslot.Overlaps(start, end, a.start, a.end) {
			return true
		}
	}
	return false
}

func parseWindow(a entity.Availability) (timeslot.Window, bool) {
	start, err := timeslot.ParseClock(a.StartTime)
	if err != nil {
		return timeslot.Window{}, false
	}
	end, err := timeslot.ParseClock(a.EndTime)
	if err != nil || end <= start {
		return timeslot.Window{}, false
	}
	return timeslot.Window{Start: start, End: end}, true
}

// loadRules returns the clinic's rules, or the permissive defaults when it has none.
func loadRules(ctx context.Context, db *gorm.DB, repo repository.AppointmentRulesRepository, clinicID uuid.UUID) (*entity.AppointmentRules, error) {
	rules, err := repo.FindByClinicID(ctx, db, clinicID)
	if err != nil {
		return nil, err
	}
	if rules == nil {
		return entity.PermissiveRules(), nil
	}
	return rules, nil
}

// clinicNow is the current wall-clock time in the clinic's timezone.
func clinicNow(now func() time.Time, clinic *entity.Clinic, defaultLoc *time.Location) time.Time {
	return now().In(clinic.Location(defaultLoc))
}
