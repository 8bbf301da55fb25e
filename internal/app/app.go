// Package app assembles storage, messaging, services and HTTP handlers from
// configuration. The api, worker and admin binaries all start here.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-platform/internal/config"
	"github.com/jwalitptl/clinic-platform/internal/email"
	"github.com/jwalitptl/clinic-platform/internal/middleware"
	"github.com/jwalitptl/clinic-platform/internal/repository"
	"github.com/jwalitptl/clinic-platform/internal/repository/memory"
	"github.com/jwalitptl/clinic-platform/internal/repository/postgres"
	"github.com/jwalitptl/clinic-platform/internal/router"
	jobs "github.com/jwalitptl/clinic-platform/internal/worker"
	"github.com/jwalitptl/clinic-platform/pkg/auth"
	"github.com/jwalitptl/clinic-platform/pkg/circuitbreaker"
	"github.com/jwalitptl/clinic-platform/pkg/logger"
	"github.com/jwalitptl/clinic-platform/pkg/messaging"
	"github.com/jwalitptl/clinic-platform/pkg/messaging/redis"
	"github.com/jwalitptl/clinic-platform/pkg/metrics"
	"github.com/jwalitptl/clinic-platform/pkg/push"
	"github.com/jwalitptl/clinic-platform/pkg/worker"
)

const metricsNamespace = "clinic"

type App struct {
	Config   *config.Config
	Logger   *logger.Logger
	Metrics  *metrics.Metrics
	Store    *repository.Store
	Broker   messaging.Broker
	JWT      auth.JWTService
	Services *Services

	gatherer prometheus.Gatherer
}

type Option func(*options)

type options struct {
	store    *repository.Store
	broker   messaging.Broker
	notifier push.Notifier
	registry *prometheus.Registry
	logger   *logger.Logger
}

// WithStore skips opening the configured database.
func WithStore(store *repository.Store) Option {
	return func(o *options) { o.store = store }
}

func WithBroker(b messaging.Broker) Option {
	return func(o *options) { o.broker = b }
}

func WithPushNotifier(n push.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithRegistry registers metrics on reg instead of the default registerer.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) { o.registry = reg }
}

func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New opens every backend named in cfg and builds the services on top of it.
// Close releases what New opened.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, Logger: o.logger}
	if a.Logger == nil {
		a.Logger = logger.NewLogger(&logger.Config{
			Level:      logger.ParseLevel(cfg.Log.Level),
			TimeFormat: time.RFC3339,
			Console:    cfg.Log.Console,
		})
	}

	if o.registry != nil {
		a.Metrics = metrics.New(metricsNamespace, o.registry)
		a.gatherer = o.registry
	} else {
		a.Metrics = metrics.New(metricsNamespace, nil)
		a.gatherer = prometheus.DefaultGatherer
	}

	var err error
	a.Store = o.store
	if a.Store == nil {
		if a.Store, err = openStore(ctx, cfg.Database); err != nil {
			return nil, err
		}
	}

	a.Broker = o.broker
	if a.Broker == nil {
		if a.Broker, err = openBroker(ctx, cfg.Redis, a.Logger); err != nil {
			a.Close()
			return nil, err
		}
	}

	notifier := o.notifier
	if notifier == nil && cfg.Push.Enabled {
		if notifier, err = push.NewFCMNotifier(ctx, cfg.Push.CredentialsFile); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.JWT = auth.NewJWTService(auth.Config{
		Secret:        cfg.JWT.Secret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.AccessExpiry,
		RefreshTTL:    cfg.JWT.RefreshExpiry,
		Issuer:        cfg.JWT.Issuer,
	})

	mailer, err := newMailer(cfg.Email, a.Logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Services, err = newServices(cfg, a.Store, a.JWT, mailer, notifier, a.Metrics,
		cache.New(cfg.Cache.DefaultTTL, cfg.Cache.CleanupInterval))
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (*repository.Store, error) {
	switch cfg.Driver {
	case "memory":
		return memory.NewStore(), nil
	default:
		db, err := postgres.NewDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return postgres.NewStore(db), nil
	}
}

// openBroker uses Redis when a URL is configured and an in-process broker otherwise.
func openBroker(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (messaging.Broker, error) {
	if cfg.URL == "" {
		log.Warn("redis.url not set, publishing events in-process")
		return messaging.NewMemoryBroker(), nil
	}
	broker, err := redis.NewRedisBroker(ctx, redis.Config{
		URL:          cfg.URL,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	}, log.ZL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return broker, nil
}

func newMailer(cfg config.EmailConfig, log *logger.Logger) (email.Service, error) {
	sender, err := email.NewSender(cfg, log.ZL)
	if err != nil {
		return nil, err
	}
	breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
		Name:             "email",
		MaxFailures:      5,
		HalfOpenRequests: 1,
		Timeout:          time.Minute,
		OnStateChange: func(name, from, to string) {
			log.Warn("circuit breaker state changed", "breaker", name, "from", from, "to", to)
		},
	})
	return email.NewService(email.NewRenderer(cfg.FrontendURL), sender, breaker), nil
}

// Router builds the HTTP router with every handler mounted.
func (a *App) Router() *router.Router {
	var limit rate.Limit
	if a.Config.RateLimit.Enabled {
		limit = rate.Limit(a.Config.RateLimit.RequestsPerSecond)
	}
	r := router.NewRouter(
		middleware.NewAuthMiddleware(a.JWT),
		a.Services.handlers(a.Store.Ping, a.gatherer),
		a.Metrics,
		router.RouterConfig{
			Mode:           a.Config.Server.Mode,
			RateLimit:      limit,
			RateBurst:      a.Config.RateLimit.Burst,
			AllowedOrigins: a.Config.Server.AllowedOrigins,
			RequestTimeout: a.Config.Server.WriteTimeout,
			MaxBodySize:    middleware.DefaultMaxBodySize,
		},
	)
	r.Setup()
	return r
}

// OutboxProcessor publishes the outbox to the broker.
func (a *App) OutboxProcessor() (*worker.OutboxProcessor, error) {
	cfg := a.Config.Outbox
	return worker.NewOutboxProcessor(a.Store.Outbox, a.Broker, worker.OutboxProcessorConfig{
		BatchSize:     cfg.BatchSize,
		PollInterval:  cfg.PollInterval,
		RetryAttempts: cfg.RetryAttempts,
		RetryDelay:    cfg.RetryDelay,
		Retention:     cfg.Retention,
	}, a.Logger, a.Metrics)
}

// Scheduler runs reminders, subscription expiry and audit cleanup.
func (a *App) Scheduler() (*jobs.Scheduler, error) {
	return jobs.NewScheduler(a.Config.Reminders, a.Services.Appointments, a.Services.Subscriptions,
		a.Services.Audit, a.Logger, a.Metrics)
}

func (a *App) Close() {
	if a.Broker != nil {
		if err := a.Broker.Close(); err != nil {
			a.Logger.Error(err, "failed to close broker")
		}
	}
	if a.Store != nil && a.Store.Close != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Error(err, "failed to close store")
		}
	}
}
