package usecase

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"clinic-booking/config"
	"clinic-booking/internal/domain/entity"
	"clinic-booking/internal/service"
	"clinic-booking/pkg/timeslot"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"gorm.io/gorm"
)

// memStore backs every fake repository. Repositories ignore the *gorm.DB they are
// handed; the fake transactor provides isolation by running one transaction at a time.
type memStore struct {
	mu                sync.Mutex
	doctors           map[uuid.UUID]entity.DoctorProfile
	availabilities    []entity.Availability
	blocks            []entity.BlockedSlot
	consultationTypes map[uuid.UUID]entity.ConsultationType
	rules             map[uuid.UUID]entity.AppointmentRules
	patients          []entity.Patient
	appointments      map[uuid.UUID]entity.Appointment
	auditLogs         []entity.AuditLog
}

func newMemStore() *memStore {
	return &memStore{
		doctors:           make(map[uuid.UUID]entity.DoctorProfile),
		consultationTypes: make(map[uuid.UUID]entity.ConsultationType),
		rules:             make(map[uuid.UUID]entity.AppointmentRules),
		appointments:      make(map[uuid.UUID]entity.Appointment),
	}
}

type storeSnapshot struct {
	patients     []entity.Patient
	appointments map[uuid.UUID]entity.Appointment
	auditLogs    []entity.AuditLog
}

func (s *memStore) snapshot() storeSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	appointments := make(map[uuid.UUID]entity.Appointment, len(s.appointments))
	for id, a := range s.appointments {
		appointments[id] = a
	}
	return storeSnapshot{
		patients:     append([]entity.Patient(nil), s.patients...),
		appointments: appointments,
		auditLogs:    append([]entity.AuditLog(nil), s.auditLogs...),
	}
}

func (s *memStore) restore(snap storeSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patients = snap.patients
	s.appointments = snap.appointments
	s.auditLogs = snap.auditLogs
}

func (s *memStore) appointment(id uuid.UUID) entity.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appointments[id]
}

func (s *memStore) activeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.appointments {
		if a.IsActive() {
			n++
		}
	}
	return n
}

func (s *memStore) auditActions(id uuid.UUID) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var actions []string
	for _, l := range s.auditLogs {
		if l.AppointmentID != nil && *l.AppointmentID == id {
			actions = append(actions, l.Action)
		}
	}
	return actions
}

// fakeTransactor serializes transactions and rolls the store back when fn fails.
type fakeTransactor struct {
	mu      sync.Mutex
	store   *memStore
	failErr error
	delay   time.Duration
}

func (t *fakeTransactor) Serializable(ctx context.Context, fn func(tx *gorm.DB) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failErr != nil {
		return t.failErr
	}
	if t.delay > 0 {
		time.Sleep(t.delay)
	}
	snap := t.store.snapshot()
	if err := fn(nil); err != nil {
		t.store.restore(snap)
		return err
	}
	return nil
}

type fakeDoctorRepo struct{ store *memStore }

func (r *fakeDoctorRepo) FindActiveByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*entity.DoctorProfile, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	d, ok := r.store.doctors[id]
	if !ok || !d.IsActive {
		return nil, nil
	}
	return &d, nil
}

func (r *fakeDoctorRepo) FindActiveBySlug(_ context.Context, _ *gorm.DB, slug string) (*entity.DoctorProfile, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, d := range r.store.doctors {
		if d.Slug == slug && d.IsActive {
			return &d, nil
		}
	}
	return nil, nil
}

type fakeAvailabilityRepo struct{ store *memStore }

func (r *fakeAvailabilityRepo) FindActiveByDoctor(_ context.Context, _ *gorm.DB, clinicID, doctorID uuid.UUID) ([]entity.Availability, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []entity.Availability
	for _, a := range r.store.availabilities {
		if a.ClinicID == clinicID && a.DoctorID == doctorID && a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeBlockedSlotRepo struct{ store *memStore }

func (r *fakeBlockedSlotRepo) FindByDate(_ context.Context, _ *gorm.DB, clinicID, doctorID uuid.UUID, date time.Time) ([]entity.BlockedSlot, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []entity.BlockedSlot
	for _, b := range r.store.blocks {
		if b.ClinicID != clinicID || !b.Date.Equal(date) {
			continue
		}
		if b.DoctorID == nil || *b.DoctorID == doctorID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *fakeBlockedSlotRepo) ExistsIntersecting(ctx context.Context, db *gorm.DB, clinicID, doctorID uuid.UUID, date time.Time, startTime, endTime string) (bool, error) {
	blocks, _ := r.FindByDate(ctx, db, clinicID, doctorID, date)
	for _, b := range blocks {
		if b.IsFullDay() || (*b.StartTime < endTime && *b.EndTime > startTime) {
			return true, nil
		}
	}
	return false, nil
}

type fakeConsultationTypeRepo struct{ store *memStore }

func (r *fakeConsultationTypeRepo) FindActiveByID(_ context.Context, _ *gorm.DB, clinicID, id uuid.UUID) (*entity.ConsultationType, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	ct, ok := r.store.consultationTypes[id]
	if !ok || ct.ClinicID != clinicID || !ct.IsActive {
		return nil, nil
	}
	return &ct, nil
}

type fakeRulesRepo struct{ store *memStore }

func (r *fakeRulesRepo) FindByClinicID(_ context.Context, _ *gorm.DB, clinicID uuid.UUID) (*entity.AppointmentRules, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	rules, ok := r.store.rules[clinicID]
	if !ok {
		return nil, nil
	}
	return &rules, nil
}

type fakePatientRepo struct{ store *memStore }

func (r *fakePatientRepo) Create(_ context.Context, _ *gorm.DB, patient *entity.Patient) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.patients = append(r.store.patients, *patient)
	return nil
}

func (r *fakePatientRepo) Update(_ context.Context, _ *gorm.DB, patient *entity.Patient) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for i := range r.store.patients {
		if r.store.patients[i].ID == patient.ID {
			r.store.patients[i] = *patient
		}
	}
	return nil
}

func (r *fakePatientRepo) FindByPhone(_ context.Context, _ *gorm.DB, clinicID uuid.UUID, phone string) (*entity.Patient, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, p := range r.store.patients {
		if p.ClinicID == clinicID && p.Phone == phone {
			return &p, nil
		}
	}
	return nil, nil
}

type fakeAppointmentRepo struct{ store *memStore }

func (r *fakeAppointmentRepo) Create(_ context.Context, _ *gorm.DB, appointment *entity.Appointment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored := *appointment
	stored.Patient = entity.Patient{}
	stored.Doctor = entity.DoctorProfile{}
	stored.ConsultationType = entity.ConsultationType{}
	r.store.appointments[appointment.ID] = stored
	return nil
}

func (r *fakeAppointmentRepo) FindByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*entity.Appointment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	a, ok := r.store.appointments[id]
	if !ok {
		return nil, nil
	}
	a.Doctor = r.store.doctors[a.DoctorID]
	a.ConsultationType = r.store.consultationTypes[a.ConsultationTypeID]
	for _, p := range r.store.patients {
		if p.ID == a.PatientID {
			a.Patient = p
		}
	}
	return &a, nil
}

func (r *fakeAppointmentRepo) FindByClinicAndID(ctx context.Context, db *gorm.DB, clinicID, id uuid.UUID) (*entity.Appointment, error) {
	a, err := r.FindByID(ctx, db, id)
	if err != nil || a == nil || a.ClinicID != clinicID {
		return nil, err
	}
	return a, nil
}

func (r *fakeAppointmentRepo) active(clinicID, doctorID uuid.UUID, date time.Time) []entity.Appointment {
	var out []entity.Appointment
	for _, a := range r.store.appointments {
		if a.ClinicID == clinicID && a.DoctorID == doctorID && a.Date.Equal(date) && a.IsActive() {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out
}

func (r *fakeAppointmentRepo) FindActiveByDate(_ context.Context, _ *gorm.DB, clinicID, doctorID uuid.UUID, date time.Time) ([]entity.Appointment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.active(clinicID, doctorID, date), nil
}

func (r *fakeAppointmentRepo) FindOverlapping(_ context.Context, _ *gorm.DB, clinicID, doctorID uuid.UUID, date time.Time, startTime, endTime string, excludeID *uuid.UUID) ([]entity.Appointment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []entity.Appointment
	for _, a := range r.active(clinicID, doctorID, date) {
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		if a.StartTime < endTime && a.EndTime > startTime {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAppointmentRepo) CountActiveByDate(_ context.Context, _ *gorm.DB, clinicID, doctorID uuid.UUID, date time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return int64(len(r.active(clinicID, doctorID, date))), nil
}

func (r *fakeAppointmentRepo) CountActiveByPatientAndDate(_ context.Context, _ *gorm.DB, clinicID, patientID uuid.UUID, date time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var n int64
	for _, a := range r.store.appointments {
		if a.ClinicID == clinicID && a.PatientID == patientID && a.Date.Equal(date) && a.IsActive() {
			n++
		}
	}
	return n, nil
}

func (r *fakeAppointmentRepo) Cancel(_ context.Context, _ *gorm.DB, id uuid.UUID, reason string, cancelledAt time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	a, ok := r.store.appointments[id]
	if !ok || a.IsCancelled() {
		return 0, nil
	}
	a.Cancel(reason, cancelledAt)
	r.store.appointments[id] = a
	return 1, nil
}

func (r *fakeAppointmentRepo) UpdateStatus(_ context.Context, _ *gorm.DB, id uuid.UUID, from, to entity.AppointmentStatus, at time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	a, ok := r.store.appointments[id]
	if !ok || a.Status != from {
		return 0, nil
	}
	a.Status = to
	r.store.appointments[id] = a
	return 1, nil
}

func (r *fakeAppointmentRepo) SaveSchedule(_ context.Context, _ *gorm.DB, appointment *entity.Appointment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	a := r.store.appointments[appointment.ID]
	a.Date = appointment.Date
	a.StartTime = appointment.StartTime
	a.EndTime = appointment.EndTime
	a.Status = appointment.Status
	a.RescheduleCount = appointment.RescheduleCount
	a.OriginalDate = appointment.OriginalDate
	a.OriginalTime = appointment.OriginalTime
	r.store.appointments[appointment.ID] = a
	return nil
}

type fakeAuditLogRepo struct{ store *memStore }

func (r *fakeAuditLogRepo) Create(_ context.Context, _ *gorm.DB, log *entity.AuditLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	log.ID = int64(len(r.store.auditLogs) + 1)
	r.store.auditLogs = append(r.store.auditLogs, *log)
	return nil
}

func (r *fakeAuditLogRepo) FindByAppointmentID(_ context.Context, _ *gorm.DB, appointmentID uuid.UUID) ([]entity.AuditLog, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []entity.AuditLog
	for _, l := range r.store.auditLogs {
		if l.AppointmentID != nil && *l.AppointmentID == appointmentID {
			out = append(out, l)
		}
	}
	return out, nil
}

// recordingDispatcher captures notifications instead of delivering them.
type recordingDispatcher struct {
	mu   sync.Mutex
	sent []service.AppointmentNotification
}

func (d *recordingDispatcher) Dispatch(msg service.AppointmentNotification) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, msg)
	return true
}

func (d *recordingDispatcher) Stop() {}

func (d *recordingDispatcher) kinds() []service.NotificationKind {
	d.mu.Lock()
	defer d.mu.Unlock()
	kinds := make([]service.NotificationKind, len(d.sent))
	for i, msg := range d.sent {
		kinds[i] = msg.Kind
	}
	return kinds
}

func (d *recordingDispatcher) last() service.AppointmentNotification {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sent[len(d.sent)-1]
}

// failingSlotLock never obtains the lock.
type failingSlotLock struct{}

func (failingSlotLock) WithSlotLock(context.Context, uuid.UUID, uuid.UUID, time.Time, func(ctx context.Context) error) error {
	return service.ErrSlotLockNotAcquired
}

// bookingFixture wires the usecases over one store with a single clinic, doctor and
// consultation type. The clock is fixed at Thursday 2025-01-09 08:00 UTC.
type bookingFixture struct {
	store            *memStore
	transactor       *fakeTransactor
	dispatcher       *recordingDispatcher
	hook             *test.Hook
	now              time.Time
	clinic           entity.Clinic
	doctor           entity.DoctorProfile
	consultationType entity.ConsultationType

	slots        *slotUsecase
	booking      *bookingUsecase
	appointments *appointmentUsecase
}

var fixtureNow = time.Date(2025, 1, 9, 8, 0, 0, 0, time.UTC)

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()

	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	store := newMemStore()
	clinic := entity.Clinic{ID: uuid.New(), Name: "Sunrise Clinic", Slug: "sunrise", IsActive: true}
	doctor := entity.DoctorProfile{
		ID:              uuid.New(),
		ClinicID:        clinic.ID,
		Slug:            "dr-lee",
		FullName:        "Dr. Lee",
		DefaultDuration: 15,
		IsActive:        true,
		Clinic:          clinic,
	}
	consultationType := entity.ConsultationType{
		ID:              uuid.New(),
		ClinicID:        clinic.ID,
		Name:            "General consultation",
		Mode:            entity.ConsultationModeInPerson,
		Fee:             decimal.NewFromInt(150000),
		DurationMinutes: 15,
		IsActive:        true,
	}
	store.doctors[doctor.ID] = doctor
	store.consultationTypes[consultationType.ID] = consultationType

	// Every day, 09:00-17:00.
	for day := 0; day < 7; day++ {
		store.availabilities = append(store.availabilities, entity.Availability{
			ID:        day + 1,
			ClinicID:  clinic.ID,
			DoctorID:  doctor.ID,
			DayOfWeek: day,
			StartTime: "09:00",
			EndTime:   "17:00",
			IsActive:  true,
		})
	}

	f := &bookingFixture{
		store:            store,
		transactor:       &fakeTransactor{store: store},
		dispatcher:       &recordingDispatcher{},
		hook:             hook,
		now:              fixtureNow,
		clinic:           clinic,
		doctor:           doctor,
		consultationType: consultationType,
	}
	clock := func() time.Time { return f.now }

	cfg := config.BookingConfig{
		MinLeadMinutes:     0,
		DefaultHorizonDays: 14,
		MaxHorizonDays:     90,
		NextSlotScanDays:   30,
	}
	doctorRepo := &fakeDoctorRepo{store: store}
	availabilityRepo := &fakeAvailabilityRepo{store: store}
	blockedSlotRepo := &fakeBlockedSlotRepo{store: store}
	consultationTypeRepo := &fakeConsultationTypeRepo{store: store}
	rulesRepo := &fakeRulesRepo{store: store}
	patientRepo := &fakePatientRepo{store: store}
	appointmentRepo := &fakeAppointmentRepo{store: store}
	auditService := service.NewAuditService(log, &fakeAuditLogRepo{store: store})
	slotLock := service.NewNoopSlotLockService()

	f.slots = NewSlotUsecase(nil, log, cfg, time.UTC, doctorRepo, availabilityRepo, blockedSlotRepo,
		consultationTypeRepo, rulesRepo, appointmentRepo).(*slotUsecase)
	f.slots.now = clock

	f.booking = NewBookingUsecase(nil, log, time.UTC, f.transactor, f.slots, slotLock, auditService, f.dispatcher, nil,
		doctorRepo, consultationTypeRepo, rulesRepo, blockedSlotRepo, patientRepo, appointmentRepo).(*bookingUsecase)
	f.booking.now = clock

	f.appointments = NewAppointmentUsecase(nil, log, time.UTC, f.transactor, f.slots, slotLock, auditService, f.dispatcher, nil,
		rulesRepo, blockedSlotRepo, appointmentRepo).(*appointmentUsecase)
	f.appointments.now = clock

	return f
}

func (f *bookingFixture) setRules(rules entity.AppointmentRules) {
	rules.ClinicID = f.clinic.ID
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	f.store.rules[f.clinic.ID] = rules
}

func (f *bookingFixture) block(date, start, end string, doctorID *uuid.UUID) {
	d, _ := timeslot.ParseDate(date)
	b := entity.BlockedSlot{ID: len(f.store.blocks) + 1, ClinicID: f.clinic.ID, DoctorID: doctorID, Date: d, Reason: "test"}
	if start != "" {
		b.StartTime = &start
		b.EndTime = &end
	}
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	f.store.blocks = append(f.store.blocks, b)
}

func intPtr(v int) *int { return &v }

func mustDate(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := timeslot.ParseDate(value)
	if err != nil {
		t.Fatalf("parse date %q: %v", value, err)
	}
	return d
}

// seedAppointment stores an appointment for the fixture doctor without going through
// the booking flow.
func (f *bookingFixture) seedAppointment(t *testing.T, date, start, end string, status entity.AppointmentStatus) entity.Appointment {
	t.Helper()
	a := entity.Appointment{
		ID:                 uuid.New(),
		ClinicID:           f.clinic.ID,
		DoctorID:           f.doctor.ID,
		PatientID:          uuid.New(),
		ConsultationTypeID: f.consultationType.ID,
		BookingReference:   "BK-SEED-" + start,
		Date:               mustDate(t, date),
		StartTime:          start,
		EndTime:            end,
		Duration:           15,
		Status:             status,
	}
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	f.store.appointments[a.ID] = a
	return a
}

func (f *bookingFixture) setBuffer(minutes int) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	d := f.store.doctors[f.doctor.ID]
	d.BufferTime = minutes
	f.store.doctors[f.doctor.ID] = d
}
