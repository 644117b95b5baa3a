// Package mail sends plain-text notification emails.
package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	gomail "github.com/wneessen/go-mail"
)

// Message is a plain-text email.
type Message struct {
	To      []string
	Subject string
	Text    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string //nolint:gosec // intentional: SMTP password loaded from env
	From     string
}

// New returns an SMTP sender when cfg.Host is set, otherwise a sender that
// only logs.
func New(cfg Config, log *slog.Logger) (Sender, error) {
	if cfg.Host == "" {
		log.Info("mail: no MAIL_HOST configured; emails will be logged")
		return &LogSender{log: log}, nil
	}
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}
	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return &SMTPSender{client: client, from: cfg.From}, nil
}

// SMTPSender sends through an SMTP relay.
type SMTPSender struct {
	client *gomail.Client
	from   string
}

// Send delivers m.
func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	msg, err := build(s.from, m)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func build(from string, m Message) (*gomail.Msg, error) {
	to := make([]string, 0, len(m.To))
	for _, addr := range m.To {
		if a := strings.TrimSpace(addr); a != "" {
			to = append(to, a)
		}
	}
	if len(to) == 0 {
		return nil, errors.New("build mail: no recipients")
	}
	msg := gomail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("set from: %w", err)
	}
	if err := msg.To(to...); err != nil {
		return nil, fmt.Errorf("set to: %w", err)
	}
	subject := m.Subject
	if subject == "" {
		subject = m.Text
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, m.Text)
	return msg, nil
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	log *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(log *slog.Logger) *LogSender { return &LogSender{log: log} }

// Send logs m.
func (s *LogSender) Send(_ context.Context, m Message) error {
	s.log.Info("mail", "to", strings.Join(m.To, ","), "subject", m.Subject, "text", m.Text)
	return nil
}
