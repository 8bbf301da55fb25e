package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-platform/internal/email"
	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository"
	"github.com/jwalitptl/clinic-platform/internal/service"
	apperrors "github.com/jwalitptl/clinic-platform/pkg/errors"
	"github.com/jwalitptl/clinic-platform/pkg/metrics"
	"github.com/jwalitptl/clinic-platform/pkg/push"
)

const (
	channelEmail = "email"
	channelPush  = "push"
)

// Service fans user-facing notifications out to email and push. Delivery
// failures are logged; callers are never failed because of them.
type Service struct {
	emailSvc email.Service
	notifier push.Notifier
	devices  repository.DeviceRepository
	metrics  *metrics.Metrics
}

func NewService(emailSvc email.Service, notifier push.Notifier, devices repository.DeviceRepository, m *metrics.Metrics) *Service {
	if notifier == nil {
		notifier = push.Nop{}
	}
	return &Service{
		emailSvc: emailSvc,
		notifier: notifier,
		devices:  devices,
		metrics:  m,
	}
}

func (s *Service) observe(channel string, err error) {
	if s.metrics == nil {
		return
	}
	status := "sent"
	if err != nil {
		status = "failed"
	}
	s.metrics.NotificationsSent.WithLabelValues(channel, status).Inc()
}

func (s *Service) logFailure(err error, kind string, userID uuid.UUID) {
	if err != nil {
		log.Warn().Err(err).Str("notification", kind).Str("user_id", userID.String()).Msg("notification not delivered")
	}
}

func (s *Service) Welcome(ctx context.Context, user *model.User) {
	err := s.emailSvc.SendWelcome(ctx, user.Email, user.FullName())
	s.observe(channelEmail, err)
	s.logFailure(err, email.TemplateWelcome, user.ID)
}

func (s *Service) OnboardingInvite(ctx context.Context, inv *model.OnboardingInvite, doctorName, link string) {
	name := strings.TrimSpace(inv.FirstName + " " + inv.LastName)
	err := s.emailSvc.SendOnboardingInvite(ctx, inv.Email, name, doctorName, link, inv.ExpiresAt)
	s.observe(channelEmail, err)
	s.logFailure(err, email.TemplateOnboardingInvite, inv.ID)
}

func (s *Service) ProtocolAssigned(ctx context.Context, patient, doctor *model.User, protocol *model.Protocol, start time.Time) {
	err := s.emailSvc.SendProtocolAssigned(ctx, patient.Email, patient.FullName(), doctor.FullName(), protocol.Title, start)
	s.observe(channelEmail, err)
	s.logFailure(err, email.TemplateProtocolAssigned, patient.ID)

	s.Push(ctx, patient.ID, push.Notification{
		Title: "New protocol",
		Body:  fmt.Sprintf("%s assigned you %s", doctor.FullName(), protocol.Title),
		Data:  map[string]string{"type": model.EventPrescriptionAssigned, "protocol_id": protocol.ID.String()},
	})
}

// AppointmentReminder fails only when neither the email nor a push
// notification reached the patient.
func (s *Service) AppointmentReminder(ctx context.Context, patient, doctor *model.User, appt *model.Appointment) error {
	err := s.emailSvc.SendAppointmentReminder(ctx, patient.Email, patient.FullName(), doctor.FullName(), appt.StartsAt)
	s.observe(channelEmail, err)
	s.logFailure(err, email.TemplateAppointmentReminder, patient.ID)

	delivered := s.push(ctx, patient.ID, push.Notification{
		Title: "Upcoming appointment",
		Body:  fmt.Sprintf("With %s at %s", doctor.FullName(), appt.StartsAt.UTC().Format("Jan 2 15:04 MST")),
		Data:  map[string]string{"type": "appointment.reminder", "appointment_id": appt.ID.String()},
	})
	if err != nil && delivered > 0 {
		return nil
	}
	return err
}

func (s *Service) AppointmentCancelled(ctx context.Context, patient, doctor *model.User, appt *model.Appointment) {
	reason := ""
	if appt.CancelReason != nil {
		reason = *appt.CancelReason
	}
	err := s.emailSvc.SendAppointmentCancelled(ctx, patient.Email, patient.FullName(), doctor.FullName(), appt.StartsAt, reason)
	s.observe(channelEmail, err)
	s.logFailure(err, email.TemplateAppointmentCancelled, patient.ID)
}

// Push delivers n to every registered device of the user and drops tokens
// the provider reports as invalid.
func (s *Service) Push(ctx context.Context, userID uuid.UUID, n push.Notification) {
	s.push(ctx, userID, n)
}

// push returns the number of devices that accepted n.
func (s *Service) push(ctx context.Context, userID uuid.UUID, n push.Notification) int {
	if _, disabled := s.notifier.(push.Nop); disabled {
		return 0
	}
	devices, err := s.devices.ListByUser(ctx, userID)
	if err != nil {
		s.logFailure(err, "push", userID)
		return 0
	}
	if len(devices) == 0 {
		return 0
	}
	tokens := make([]string, 0, len(devices))
	for _, d := range devices {
		tokens = append(tokens, d.Token)
	}

	invalid, err := s.notifier.Send(ctx, tokens, n)
	s.observe(channelPush, err)
	if err != nil {
		s.logFailure(err, "push", userID)
		return 0
	}
	if len(invalid) > 0 {
		if err := s.devices.DeleteTokens(ctx, invalid); err != nil {
			log.Error().Err(err).Int("count", len(invalid)).Msg("failed to remove invalid device tokens")
		}
	}
	return len(tokens) - len(invalid)
}

func (s *Service) RegisterDevice(ctx context.Context, userID uuid.UUID, req *model.RegisterDeviceRequest) (*model.DeviceToken, error) {
	d := &model.DeviceToken{
		UserID:    userID,
		Token:     req.Token,
		Platform:  req.Platform,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.devices.Upsert(ctx, d); err != nil {
		return nil, apperrors.Internal(err)
	}
	return d, nil
}

func (s *Service) UnregisterDevice(ctx context.Context, userID uuid.UUID, token string) error {
	return service.FromRepo("device", s.devices.Delete(ctx, userID, token))
}

func (s *Service) ListDevices(ctx context.Context, userID uuid.UUID) ([]*model.DeviceToken, error) {
	devices, err := s.devices.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return devices, nil
}
