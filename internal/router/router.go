package router

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-platform/internal/handler/appointment"
	"github.com/jwalitptl/clinic-platform/internal/handler/audit"
	"github.com/jwalitptl/clinic-platform/internal/handler/auth"
	"github.com/jwalitptl/clinic-platform/internal/handler/clinic"
	"github.com/jwalitptl/clinic-platform/internal/handler/course"
	"github.com/jwalitptl/clinic-platform/internal/handler/device"
	"github.com/jwalitptl/clinic-platform/internal/handler/habit"
	"github.com/jwalitptl/clinic-platform/internal/handler/health"
	metricsHandler "github.com/jwalitptl/clinic-platform/internal/handler/metrics"
	"github.com/jwalitptl/clinic-platform/internal/handler/mobile"
	"github.com/jwalitptl/clinic-platform/internal/handler/onboarding"
	"github.com/jwalitptl/clinic-platform/internal/handler/prescription"
	"github.com/jwalitptl/clinic-platform/internal/handler/protocol"
	"github.com/jwalitptl/clinic-platform/internal/handler/referral"
	"github.com/jwalitptl/clinic-platform/internal/handler/relationship"
	"github.com/jwalitptl/clinic-platform/internal/handler/subscription"
	"github.com/jwalitptl/clinic-platform/internal/handler/user"
	"github.com/jwalitptl/clinic-platform/internal/middleware"
	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/pkg/metrics"
	"github.com/jwalitptl/clinic-platform/pkg/validator"
)

// publicCacheAge is how long shared caches may keep public clinic and referral pages.
const publicCacheAge = 300

var validatorOnce sync.Once

// Handlers groups every HTTP handler the router mounts.
type Handlers struct {
	Health       *health.Handler
	Metrics      *metricsHandler.Handler
	Auth         *auth.Handler
	Users        *user.Handler
	Referrals    *referral.Handler
	Clinics      *clinic.Handler
	Patients     *relationship.Handler
	Protocols    *protocol.Handler
	Prescription *prescription.Handler
	Onboarding   *onboarding.Handler
	Courses      *course.Handler
	Appointments *appointment.Handler
	Subscription *subscription.Handler
	Habits       *habit.Handler
	Devices      *device.Handler
	Audit        *audit.Handler
	Mobile       *mobile.Handler
}

type RouterConfig struct {
	Mode           string
	RateLimit      rate.Limit
	RateBurst      int
	AllowedOrigins []string
	RequestTimeout time.Duration
	MaxBodySize    int64
}

type Router struct {
	engine *gin.Engine
	auth   *middleware.AuthMiddleware
	h      Handlers
}

func NewRouter(auth *middleware.AuthMiddleware, h Handlers, m *metrics.Metrics, config RouterConfig) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}

	validatorOnce.Do(func() {
		if err := validator.RegisterGin(); err != nil {
			log.Error().Err(err).Msg("failed to register custom validators")
		}
	})

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
		middleware.Metrics(m),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.CORS(middleware.DefaultCORSConfig(config.AllowedOrigins)),
		middleware.SizeLimit(config.MaxBodySize),
		middleware.Timeout(config.RequestTimeout),
		middleware.AuditClient(),
	)

	if config.RateLimit > 0 {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(rateLimiter.RateLimit())
	}

	return &Router{engine: engine, auth: auth, h: h}
}

// Setup mounts every route. Access is decided here by route group:
// public, any signed-in user, doctors, patients (mobile) and admins.
func (r *Router) Setup() *gin.Engine {
	r.h.Health.RegisterRoutes(r.engine)
	r.h.Metrics.RegisterRoutes(r.engine)

	api := r.engine.Group("/api/v1")

	// Public routes
	r.h.Auth.RegisterPublicRoutes(api.Group("", middleware.NoStore()))
	public := api.Group("/public")
	r.h.Clinics.RegisterPublicRoutes(public.Group("", middleware.PublicCache(publicCacheAge)))
	r.h.Referrals.RegisterPublicRoutes(public.Group("", middleware.PublicCache(publicCacheAge)))
	r.h.Onboarding.RegisterPublicRoutes(public.Group("", middleware.NoStore()))

	// Any authenticated user
	authed := api.Group("", r.auth.Authenticate(), middleware.NoStore())
	r.h.Auth.RegisterRoutes(authed)
	r.h.Referrals.RegisterRoutes(authed)
	r.h.Subscription.RegisterRoutes(authed)
	r.h.Patients.RegisterSharedRoutes(authed)
	r.h.Devices.RegisterRoutes(authed)

	doctor := authed.Group("", r.auth.RequireRole(model.RoleDoctor))
	r.h.Clinics.RegisterRoutes(doctor)
	r.h.Patients.RegisterRoutes(doctor)
	r.h.Protocols.RegisterRoutes(doctor)
	r.h.Prescription.RegisterRoutes(doctor)
	r.h.Onboarding.RegisterRoutes(doctor)
	r.h.Courses.RegisterRoutes(doctor)
	r.h.Appointments.RegisterRoutes(doctor)
	r.h.Subscription.RegisterDoctorRoutes(doctor)
	r.h.Habits.RegisterRoutes(doctor)

	patient := authed.Group("/mobile", r.auth.RequireRole(model.RolePatient))
	r.h.Mobile.RegisterRoutes(patient)
	r.h.Prescription.RegisterMobileRoutes(patient)
	r.h.Habits.RegisterMobileRoutes(patient)
	r.h.Courses.RegisterMobileRoutes(patient)
	r.h.Appointments.RegisterMobileRoutes(patient)
	r.h.Devices.RegisterRoutes(patient)

	admin := authed.Group("/admin", r.auth.RequireRole(model.RoleAdmin))
	r.h.Users.RegisterRoutes(admin)
	r.h.Subscription.RegisterAdminRoutes(admin)
	r.h.Audit.RegisterRoutes(admin)

	return r.engine
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
