package email

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/clinic-platform/internal/config"
)

// Sender delivers one rendered message.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// NewSender picks the delivery backend configured in cfg.Provider.
func NewSender(cfg config.EmailConfig, logger zerolog.Logger) (Sender, error) {
	switch cfg.Provider {
	case "smtp":
		return NewSMTPSender(cfg), nil
	case "sendgrid":
		return NewSendGridSender(cfg), nil
	case "log", "":
		return NewLogSender(logger), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}

type smtpSender struct {
	dialer   *gomail.Dialer
	fromName string
	from     string
}

func NewSMTPSender(cfg config.EmailConfig) Sender {
	return &smtpSender{
		dialer:   gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		fromName: cfg.FromName,
		from:     cfg.FromAddress,
	}
}

func (s *smtpSender) Send(_ context.Context, msg *Message) error {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.from, s.fromName)
	m.SetAddressHeader("To", msg.To, msg.ToName)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		m.AddAlternative("text/html", msg.HTML)
	}
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp delivery failed: %w", err)
	}
	return nil
}

type sendGridSender struct {
	client *sendgrid.Client
	from   *sgmail.Email
}

func NewSendGridSender(cfg config.EmailConfig) Sender {
	return &sendGridSender{
		client: sendgrid.NewSendClient(cfg.SendGridAPIKey),
		from:   sgmail.NewEmail(cfg.FromName, cfg.FromAddress),
	}
}

func (s *sendGridSender) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := sgmail.NewSingleEmail(s.from, msg.Subject, sgmail.NewEmail(msg.ToName, msg.To), msg.Text, msg.HTML)
	res, err := s.client.Send(m)
	if err != nil {
		return fmt.Errorf("sendgrid delivery failed: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid delivery failed with status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	logger zerolog.Logger

	mu   sync.Mutex
	sent []Message
}

func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg *Message) error {
	s.mu.Lock()
	s.sent = append(s.sent, *msg)
	s.mu.Unlock()

	s.logger.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Str("body", msg.Text).
		Msg("email")
	return nil
}

// Sent returns a copy of every message handed to the sender.
func (s *LogSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.sent))
	copy(out, s.sent)
	return out
}
