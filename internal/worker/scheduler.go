package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/jwalitptl/clinic-platform/internal/config"
	"github.com/jwalitptl/clinic-platform/pkg/logger"
	"github.com/jwalitptl/clinic-platform/pkg/metrics"
)

const (
	JobAppointmentReminders = "appointment_reminders"
	JobSubscriptionExpiry   = "subscription_expiry"
	JobAuditCleanup         = "audit_cleanup"

	auditCleanupInterval = 24 * time.Hour
	jobTimeout           = 5 * time.Minute
)

type Reminders interface {
	SendReminders(ctx context.Context, lead time.Duration) (int, error)
}

type Subscriptions interface {
	ExpirePeriods(ctx context.Context) (expired, renewed int, err error)
}

type AuditLogs interface {
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)
}

// Scheduler runs the periodic maintenance jobs on a gocron scheduler.
type Scheduler struct {
	cron    *gocron.Scheduler
	cfg     config.ReminderConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
	ctx     context.Context
	cancel  context.CancelFunc

	reminders     Reminders
	subscriptions Subscriptions
	audit         AuditLogs
}

func NewScheduler(cfg config.ReminderConfig, reminders Reminders, subscriptions Subscriptions, audit AuditLogs,
	log *logger.Logger, m *metrics.Metrics) (*Scheduler, error) {
	if cfg.Interval <= 0 {
		return nil, errors.New("reminder interval must be greater than 0")
	}
	if cfg.ExpiryInterval <= 0 {
		return nil, errors.New("expiry interval must be greater than 0")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:          gocron.NewScheduler(time.UTC),
		cfg:           cfg,
		logger:        log.WithFields(map[string]interface{}{"worker": "scheduler"}),
		metrics:       m,
		ctx:           ctx,
		cancel:        cancel,
		reminders:     reminders,
		subscriptions: subscriptions,
		audit:         audit,
	}
	s.cron.SingletonModeAll()

	if _, err := s.cron.Every(cfg.Interval).Tag(JobAppointmentReminders).Do(s.run(JobAppointmentReminders, s.sendReminders)); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to schedule %s: %w", JobAppointmentReminders, err)
	}
	if _, err := s.cron.Every(cfg.ExpiryInterval).Tag(JobSubscriptionExpiry).Do(s.run(JobSubscriptionExpiry, s.expireSubscriptions)); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to schedule %s: %w", JobSubscriptionExpiry, err)
	}
	if cfg.AuditRetention > 0 {
		if _, err := s.cron.Every(auditCleanupInterval).Tag(JobAuditCleanup).Do(s.run(JobAuditCleanup, s.cleanupAudit)); err != nil {
			cancel()
			return nil, fmt.Errorf("failed to schedule %s: %w", JobAuditCleanup, err)
		}
	}
	return s, nil
}

// Start runs every job once and then on its interval.
func (s *Scheduler) Start() {
	s.cron.StartAsync()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Jobs()))
}

// Stop cancels running jobs and waits for the scheduler to halt.
func (s *Scheduler) Stop() {
	s.cancel()
	s.cron.Stop()
	s.logger.Info("scheduler stopped")
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Start()
	<-ctx.Done()
	s.Stop()
	return nil
}

// RunJob executes the tagged job immediately, outside its schedule.
func (s *Scheduler) RunJob(name string) error {
	return s.cron.RunByTag(name)
}

func (s *Scheduler) run(name string, job func(ctx context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
		defer cancel()

		start := time.Now()
		status := "success"
		if err := job(ctx); err != nil {
			status = "error"
			s.logger.Error(err, "scheduled job failed", "job", name)
		}
		s.metrics.JobRuns.WithLabelValues(name, status).Inc()
		s.logger.Debug("scheduled job finished", "job", name, "status", status, "duration", time.Since(start).String())
	}
}

func (s *Scheduler) sendReminders(ctx context.Context) error {
	sent, err := s.reminders.SendReminders(ctx, s.cfg.LeadTime)
	if err != nil {
		return err
	}
	if sent > 0 {
		s.logger.Info("appointment reminders sent", "count", sent)
	}
	return nil
}

func (s *Scheduler) expireSubscriptions(ctx context.Context) error {
	expired, renewed, err := s.subscriptions.ExpirePeriods(ctx)
	if err != nil {
		return err
	}
	if expired+renewed > 0 {
		s.logger.Info("subscription periods rolled over", "expired", expired, "renewed", renewed)
	}
	return nil
}

func (s *Scheduler) cleanupAudit(ctx context.Context) error {
	deleted, err := s.audit.Cleanup(ctx, s.cfg.AuditRetention)
	if err != nil {
		return err
	}
	if deleted > 0 {
		s.logger.Info("audit logs cleaned up", "deleted", deleted)
	}
	return nil
}
