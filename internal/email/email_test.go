package email

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-platform/internal/config"
	"github.com/jwalitptl/clinic-platform/pkg/circuitbreaker"
)

type failingSender struct{ calls int }

func (f *failingSender) Send(context.Context, *Message) error {
	f.calls++
	return errors.New("smtp down")
}

func TestRenderer_AllTemplates(t *testing.T) {
	r := NewRenderer("https://app.example.com/")
	when := time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		template string
		data     interface{}
		subject  string
		contains string
	}{
		{TemplateWelcome, struct{ Name string }{"Ada"}, "Welcome to Clinic Platform", "https://app.example.com/login"},
		{TemplateOnboardingInvite, struct {
			Name, DoctorName, Link string
			ExpiresAt              time.Time
		}{"Ada", "Dr. Bo", "https://app.example.com/onboarding/tok", when}, "Dr. Bo invited you to Clinic Platform", "Mar 4, 2026"},
		{TemplateProtocolAssigned, struct {
			Name, DoctorName, ProtocolTitle string
			StartDate                       time.Time
		}{"Ada", "Dr. Bo", "Knee rehab", when}, "New protocol: Knee rehab", "Knee rehab"},
		{TemplateAppointmentReminder, struct {
			Name, DoctorName string
			StartsAt         time.Time
		}{"Ada", "Dr. Bo", when}, "Reminder: appointment with Dr. Bo", "09:30"},
		{TemplateAppointmentCancelled, struct {
			Name, DoctorName string
			StartsAt         time.Time
			Reason           string
		}{"Ada", "Dr. Bo", when, "sick"}, "Appointment cancelled", "Reason: sick"},
	}
	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			msg, err := r.Render(tt.template, "ada@example.com", "Ada", tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.subject, msg.Subject)
			assert.Contains(t, msg.Text, tt.contains)
			assert.Contains(t, msg.HTML, "<html>")
			assert.Equal(t, "ada@example.com", msg.To)
		})
	}
}

func TestRenderer_MissingData(t *testing.T) {
	r := NewRenderer("")
	_, err := r.Render(TemplateWelcome, "a@example.com", "A", struct{}{})
	assert.Error(t, err)
}

func TestService_SendsThroughLogSender(t *testing.T) {
	sender := NewLogSender(zerolog.Nop())
	svc := NewService(NewRenderer("https://app.example.com"), sender, nil)

	require.NoError(t, svc.SendWelcome(context.Background(), "ada@example.com", "Ada"))

	sent := sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Welcome to Clinic Platform", sent[0].Subject)
}

func TestService_BreakerOpensAfterFailures(t *testing.T) {
	sender := &failingSender{}
	breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{Name: "test", MaxFailures: 2, Timeout: time.Minute})
	svc := NewService(NewRenderer(""), sender, breaker)

	for i := 0; i < 2; i++ {
		assert.Error(t, svc.SendWelcome(context.Background(), "a@example.com", "A"))
	}
	err := svc.SendWelcome(context.Background(), "a@example.com", "A")
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Equal(t, 2, sender.calls)
}

func TestSendGridSender_CanceledContext(t *testing.T) {
	sender := NewSendGridSender(config.EmailConfig{
		SendGridAPIKey: "SG.test",
		FromName:       "Clinic",
		FromAddress:    "no-reply@example.com",
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sender.Send(ctx, &Message{To: "pat@example.com", Subject: "Hi", Text: "hello"})
	assert.ErrorIs(t, err, context.Canceled)
}
