package app

import (
	"fmt"

	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/clinic-platform/internal/config"
	"github.com/jwalitptl/clinic-platform/internal/email"
	appointmentHandler "github.com/jwalitptl/clinic-platform/internal/handler/appointment"
	auditHandler "github.com/jwalitptl/clinic-platform/internal/handler/audit"
	authHandler "github.com/jwalitptl/clinic-platform/internal/handler/auth"
	clinicHandler "github.com/jwalitptl/clinic-platform/internal/handler/clinic"
	courseHandler "github.com/jwalitptl/clinic-platform/internal/handler/course"
	deviceHandler "github.com/jwalitptl/clinic-platform/internal/handler/device"
	habitHandler "github.com/jwalitptl/clinic-platform/internal/handler/habit"
	"github.com/jwalitptl/clinic-platform/internal/handler/health"
	metricsHandler "github.com/jwalitptl/clinic-platform/internal/handler/metrics"
	"github.com/jwalitptl/clinic-platform/internal/handler/mobile"
	onboardingHandler "github.com/jwalitptl/clinic-platform/internal/handler/onboarding"
	prescriptionHandler "github.com/jwalitptl/clinic-platform/internal/handler/prescription"
	protocolHandler "github.com/jwalitptl/clinic-platform/internal/handler/protocol"
	referralHandler "github.com/jwalitptl/clinic-platform/internal/handler/referral"
	relationshipHandler "github.com/jwalitptl/clinic-platform/internal/handler/relationship"
	subscriptionHandler "github.com/jwalitptl/clinic-platform/internal/handler/subscription"
	userHandler "github.com/jwalitptl/clinic-platform/internal/handler/user"
	"github.com/jwalitptl/clinic-platform/internal/repository"
	"github.com/jwalitptl/clinic-platform/internal/router"
	"github.com/jwalitptl/clinic-platform/internal/service/appointment"
	"github.com/jwalitptl/clinic-platform/internal/service/audit"
	authService "github.com/jwalitptl/clinic-platform/internal/service/auth"
	"github.com/jwalitptl/clinic-platform/internal/service/clinic"
	"github.com/jwalitptl/clinic-platform/internal/service/course"
	"github.com/jwalitptl/clinic-platform/internal/service/event"
	"github.com/jwalitptl/clinic-platform/internal/service/habit"
	"github.com/jwalitptl/clinic-platform/internal/service/notification"
	"github.com/jwalitptl/clinic-platform/internal/service/onboarding"
	"github.com/jwalitptl/clinic-platform/internal/service/prescription"
	"github.com/jwalitptl/clinic-platform/internal/service/protocol"
	"github.com/jwalitptl/clinic-platform/internal/service/referral"
	"github.com/jwalitptl/clinic-platform/internal/service/relationship"
	"github.com/jwalitptl/clinic-platform/internal/service/subscription"
	"github.com/jwalitptl/clinic-platform/pkg/auth"
	"github.com/jwalitptl/clinic-platform/pkg/metrics"
	"github.com/jwalitptl/clinic-platform/pkg/push"
	"github.com/jwalitptl/clinic-platform/pkg/security"
)

// Services holds one instance of every domain service.
type Services struct {
	Audit         *audit.Service
	Events        *event.Service
	Notifications *notification.Service
	Referrals     *referral.Service
	Auth          *authService.Service
	Subscriptions *subscription.Service
	Clinics       *clinic.Service
	Relationships *relationship.Service
	Protocols     *protocol.Service
	Prescriptions *prescription.Service
	Onboarding    *onboarding.Service
	Courses       *course.Service
	Appointments  *appointment.Service
	Habits        *habit.Service
}

func newServices(cfg *config.Config, store *repository.Store, jwtSvc auth.JWTService, mailer email.Service,
	notifier push.Notifier, m *metrics.Metrics, c *cache.Cache) (*Services, error) {
	encryptor, err := security.NewEncryptorFromKey(cfg.Security.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("invalid security.encryption_key: %w", err)
	}

	s := &Services{}
	s.Audit = audit.NewService(store.Audit)
	s.Events = event.NewService(store.Outbox)
	s.Notifications = notification.NewService(mailer, notifier, store.Devices, m)
	s.Referrals = referral.NewService(store.Users, store.Referrals, cfg.Referral)
	s.Auth = authService.NewService(store.Users, s.Referrals, jwtSvc, security.NewBcryptHasher(cfg.Security.BcryptCost),
		s.Notifications, s.Events, s.Audit, authService.Config{
			MaxLoginAttempts: cfg.Security.MaxLoginAttempts,
			LockoutDuration:  cfg.Security.LockoutDuration,
			AccessTTL:        cfg.JWT.AccessExpiry,
		})

	// plan limits gate every resource a doctor can create
	s.Subscriptions = subscription.NewService(store, s.Events, c)
	s.Clinics = clinic.NewService(store.Clinics, store.Users, s.Subscriptions, s.Events, c)
	s.Relationships = relationship.NewService(store.Relationships, store.Users, s.Subscriptions, s.Events, s.Auth)
	s.Protocols = protocol.NewService(store.Protocols, store.Prescriptions, store.Clinics, s.Subscriptions)
	s.Prescriptions = prescription.NewService(store, s.Notifications, s.Events, s.Audit)
	s.Protocols.WithReconciler(s.Prescriptions)
	s.Onboarding = onboarding.NewService(store, s.Auth, s.Relationships, s.Subscriptions,
		s.Notifications, s.Events, s.Audit, encryptor, cfg.Email.FrontendURL)
	s.Courses = course.NewService(store, s.Subscriptions)
	s.Appointments = appointment.NewService(store, s.Notifications, s.Events, s.Audit)
	s.Habits = habit.NewService(store)
	return s, nil
}

func (s *Services) handlers(ping health.Pinger, gatherer prometheus.Gatherer) router.Handlers {
	return router.Handlers{
		Health:       health.NewHandler(ping),
		Metrics:      metricsHandler.NewHandler(gatherer),
		Auth:         authHandler.NewHandler(s.Auth),
		Users:        userHandler.NewHandler(s.Auth),
		Referrals:    referralHandler.NewHandler(s.Referrals),
		Clinics:      clinicHandler.NewHandler(s.Clinics),
		Patients:     relationshipHandler.NewHandler(s.Relationships),
		Protocols:    protocolHandler.NewHandler(s.Protocols),
		Prescription: prescriptionHandler.NewHandler(s.Prescriptions),
		Onboarding:   onboardingHandler.NewHandler(s.Onboarding),
		Courses:      courseHandler.NewHandler(s.Courses),
		Appointments: appointmentHandler.NewHandler(s.Appointments),
		Subscription: subscriptionHandler.NewHandler(s.Subscriptions),
		Habits:       habitHandler.NewHandler(s.Habits),
		Devices:      deviceHandler.NewHandler(s.Notifications),
		Audit:        auditHandler.NewHandler(s.Audit),
		Mobile:       mobile.NewHandler(s.Auth, s.Relationships, s.Prescriptions, s.Habits),
	}
}
