package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/jwalitptl/clinic-platform/internal/config"
	"github.com/jwalitptl/clinic-platform/internal/repository"
)

// NewDB opens the pool and waits for the server to answer.
func NewDB(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := ping(ctx, db, 30); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(ctx context.Context, db *sqlx.DB, maxAttempts int) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
		}
	}
	return fmt.Errorf("database ping timeout: %w", err)
}

// NewStore wires every postgres repository onto db.
func NewStore(db *sqlx.DB) *repository.Store {
	base := NewBaseRepository(db)
	return &repository.Store{
		Users:         NewUserRepository(base),
		Referrals:     NewReferralRepository(base),
		Clinics:       NewClinicRepository(base),
		Relationships: NewRelationshipRepository(base),
		Protocols:     NewProtocolRepository(base),
		Prescriptions: NewPrescriptionRepository(base),
		Onboarding:    NewOnboardingRepository(base),
		Courses:       NewCourseRepository(base),
		Appointments:  NewAppointmentRepository(base),
		Subscriptions: NewSubscriptionRepository(base),
		Habits:        NewHabitRepository(base),
		Devices:       NewDeviceRepository(base),
		Outbox:        NewOutboxRepository(base),
		Audit:         NewAuditRepository(base),
		Ping:          db.PingContext,
		Close:         db.Close,
	}
}
