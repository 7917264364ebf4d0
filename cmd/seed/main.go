package main

import (
	"flag"
	"fmt"
	"strings"

	"clinic-booking/config"
	"clinic-booking/internal/domain/entity"
	"clinic-booking/internal/infrastructure/database"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var specialties = []string{
	"General Practice",
	"Dermatology",
	"Cardiology",
	"Pediatrics",
	"Orthopedics",
	"Psychiatry",
}

// Usage: seed [-doctors N] [-patients N] [-timezone Asia/Jakarta]
func main() {
	doctors := flag.Int("doctors", 3, "doctors to create")
	patients := flag.Int("patients", 20, "patients to create")
	timezone := flag.String("timezone", "", "clinic timezone, empty uses APP_TIMEZONE")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewPostgresConnection(cfg.DB, log)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	var clinic *entity.Clinic
	err = db.Transaction(func(tx *gorm.DB) error {
		c, err := seedClinic(tx, *timezone)
		if err != nil {
			return fmt.Errorf("seed clinic: %w", err)
		}
		clinic = c
		if err := seedDoctors(tx, clinic.ID, *doctors); err != nil {
			return fmt.Errorf("seed doctors: %w", err)
		}
		if err := seedPatients(tx, clinic.ID, *patients); err != nil {
			return fmt.Errorf("seed patients: %w", err)
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Seed failed: %v", err)
	}

	log.WithFields(logrus.Fields{
		"clinic_id":   clinic.ID,
		"clinic_slug": clinic.Slug,
		"doctors":     *doctors,
		"patients":    *patients,
	}).Info("Seed complete")
}

func seedClinic(tx *gorm.DB, timezone string) (*entity.Clinic, error) {
	name := gofakeit.Company() + " Clinic"
	clinic := &entity.Clinic{
		ID:       uuid.New(),
		Name:     name,
		Slug:     slugify(name),
		Timezone: timezone,
		IsActive: true,
	}
	if err := tx.Create(clinic).Error; err != nil {
		return nil, err
	}

	maxPerDay, maxPerPatient := 24, 2
	cancelWindow, rescheduleWindow, maxReschedules := 120, 240, 2
	maxAdvance := 60
	rules := &entity.AppointmentRules{
		ClinicID:                  clinic.ID,
		MaxBookingsPerDay:         &maxPerDay,
		MaxBookingsPerPatient:     &maxPerPatient,
		AllowCancellation:         true,
		CancellationWindowMinutes: &cancelWindow,
		AllowRescheduling:         true,
		ReschedulingWindowMinutes: &rescheduleWindow,
		MaxReschedules:            &maxReschedules,
		MaxAdvanceBookingDays:     &maxAdvance,
	}
	if err := tx.Create(rules).Error; err != nil {
		return nil, err
	}

	consultationTypes := []entity.ConsultationType{
		{ID: uuid.New(), ClinicID: clinic.ID, Name: "General consultation", Mode: entity.ConsultationModeInPerson, Fee: decimal.NewFromInt(150000), DurationMinutes: 30, IsActive: true},
		{ID: uuid.New(), ClinicID: clinic.ID, Name: "Follow-up", Mode: entity.ConsultationModeInPerson, Fee: decimal.NewFromInt(100000), DurationMinutes: 15, IsActive: true},
		{ID: uuid.New(), ClinicID: clinic.ID, Name: "Video consultation", Mode: entity.ConsultationModeVideo, Fee: decimal.NewFromInt(120000), DurationMinutes: 20, IsActive: true},
	}
	if err := tx.Create(&consultationTypes).Error; err != nil {
		return nil, err
	}

	return clinic, nil
}

func seedDoctors(tx *gorm.DB, clinicID uuid.UUID, count int) error {
	for i := 0; i < count; i++ {
		name := "Dr. " + gofakeit.Name()
		doctor := &entity.DoctorProfile{
			ID:              uuid.New(),
			ClinicID:        clinicID,
			Slug:            slugify(name),
			FullName:        name,
			Specialization:  specialties[gofakeit.Number(0, len(specialties)-1)],
			DefaultDuration: 30,
			BufferTime:      gofakeit.Number(0, 2) * 5,
			IsActive:        true,
		}
		if err := tx.Create(doctor).Error; err != nil {
			return err
		}

		// Monday to Friday, with a lunch break.
		windows := make([]entity.Availability, 0, 10)
		for day := 1; day <= 5; day++ {
			windows = append(windows,
				entity.Availability{ClinicID: clinicID, DoctorID: doctor.ID, DayOfWeek: day, StartTime: "09:00", EndTime: "12:00", IsActive: true},
				entity.Availability{ClinicID: clinicID, DoctorID: doctor.ID, DayOfWeek: day, StartTime: "13:00", EndTime: "17:00", IsActive: true},
			)
		}
		if err := tx.Create(&windows).Error; err != nil {
			return err
		}
	}
	return nil
}

func seedPatients(tx *gorm.DB, clinicID uuid.UUID, count int) error {
	patients := make([]entity.Patient, 0, count)
	for i := 0; i < count; i++ {
		email := gofakeit.Email()
		patients = append(patients, entity.Patient{
			ID:       uuid.New(),
			ClinicID: clinicID,
			FullName: gofakeit.Name(),
			Phone:    gofakeit.Phone(),
			Email:    &email,
		})
	}
	if len(patients) == 0 {
		return nil
	}
	return tx.CreateInBatches(&patients, 100).Error
}

func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.NewReplacer(".", "", ",", "", "'", "", " ", "-").Replace(slug)
	return slug + "-" + uuid.NewString()[:6]
}
