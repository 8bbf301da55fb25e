package email

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/clinic-platform/pkg/circuitbreaker"
)

// Service sends the platform's transactional emails.
type Service interface {
	SendWelcome(ctx context.Context, to, name string) error
	SendOnboardingInvite(ctx context.Context, to, name, doctorName, link string, expiresAt time.Time) error
	SendProtocolAssigned(ctx context.Context, to, name, doctorName, protocolTitle string, startDate time.Time) error
	SendAppointmentReminder(ctx context.Context, to, name, doctorName string, startsAt time.Time) error
	SendAppointmentCancelled(ctx context.Context, to, name, doctorName string, startsAt time.Time, reason string) error
}

type mailer struct {
	renderer *Renderer
	sender   Sender
	breaker  *circuitbreaker.CircuitBreaker
}

func NewService(renderer *Renderer, sender Sender, breaker *circuitbreaker.CircuitBreaker) Service {
	if breaker == nil {
		breaker = circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "email",
			MaxFailures: 5,
			Timeout:     time.Minute,
		})
	}
	return &mailer{renderer: renderer, sender: sender, breaker: breaker}
}

func (m *mailer) send(ctx context.Context, template, to, name string, data interface{}) error {
	msg, err := m.renderer.Render(template, to, name, data)
	if err != nil {
		return err
	}
	if err := m.breaker.Execute(func() error { return m.sender.Send(ctx, msg) }); err != nil {
		return fmt.Errorf("failed to send %s email: %w", template, err)
	}
	return nil
}

func (m *mailer) SendWelcome(ctx context.Context, to, name string) error {
	return m.send(ctx, TemplateWelcome, to, name, struct{ Name string }{name})
}

func (m *mailer) SendOnboardingInvite(ctx context.Context, to, name, doctorName, link string, expiresAt time.Time) error {
	return m.send(ctx, TemplateOnboardingInvite, to, name, struct {
		Name       string
		DoctorName string
		Link       string
		ExpiresAt  time.Time
	}{name, doctorName, link, expiresAt})
}

func (m *mailer) SendProtocolAssigned(ctx context.Context, to, name, doctorName, protocolTitle string, startDate time.Time) error {
	return m.send(ctx, TemplateProtocolAssigned, to, name, struct {
		Name          string
		DoctorName    string
		ProtocolTitle string
		StartDate     time.Time
	}{name, doctorName, protocolTitle, startDate})
}

func (m *mailer) SendAppointmentReminder(ctx context.Context, to, name, doctorName string, startsAt time.Time) error {
	return m.send(ctx, TemplateAppointmentReminder, to, name, struct {
		Name       string
		DoctorName string
		StartsAt   time.Time
	}{name, doctorName, startsAt})
}

func (m *mailer) SendAppointmentCancelled(ctx context.Context, to, name, doctorName string, startsAt time.Time, reason string) error {
	return m.send(ctx, TemplateAppointmentCancelled, to, name, struct {
		Name       string
		DoctorName string
		StartsAt   time.Time
		Reason     string
	}{name, doctorName, startsAt, reason})
}
