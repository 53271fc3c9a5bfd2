// Package mailer turns account lifecycle events into the welcome and
// cancellation emails.
package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/smtp"

	"github.com/taskhub/accounts/config"
	"github.com/taskhub/accounts/internal/mq"
	"github.com/taskhub/accounts/internal/services"
)

// Mailer consumes account events and sends email over SMTP. Without a
// configured SMTP address it logs the composed message instead.
type Mailer struct {
	cfg    config.SMTPConfig
	logger *slog.Logger
}

func New(cfg config.SMTPConfig, logger *slog.Logger) *Mailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mailer{cfg: cfg, logger: logger}
}

// Handle is the mq.Handler for the account-events channel.
func (m *Mailer) Handle(ctx context.Context, msg mq.Message) error {
	var event services.AccountEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		// Malformed payloads are dropped, not redelivered forever.
		m.logger.Warn("dropping malformed account event", "id", msg.ID, "error", err)
		return nil
	}

	subject, body, ok := Compose(event)
	if !ok {
		m.logger.Warn("dropping account event of unknown type", "type", event.Type)
		return nil
	}

	return m.send(event.Email, subject, body)
}

// Compose builds the email subject and body for an event. The third
// return is false for event types the mailer does not handle.
func Compose(event services.AccountEvent) (subject, body string, ok bool) {
	switch event.Type {
	case services.EventAccountCreated:
		subject = "Thanks for joining in!"
		body = fmt.Sprintf("Welcome to the app, %s. Let me know how you get along with the app.", event.Name)
		return subject, body, true
	case services.EventAccountDeleted:
		subject = "Sorry to see you go!"
		body = fmt.Sprintf("Goodbye, %s. I hope to see you back sometime soon. Is there anything we could have done to keep you on board?", event.Name)
		return subject, body, true
	}
	return "", "", false
}

func (m *Mailer) send(to, subject, body string) error {
	if m.cfg.Addr == "" {
		m.logger.Info("smtp not configured, logging email", "to", to, "subject", subject, "body", body)
		return nil
	}

	message := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", m.cfg.From, to, subject, body)
	if err := smtp.SendMail(m.cfg.Addr, nil, m.cfg.From, []string{to}, []byte(message)); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	m.logger.Info("email sent", "to", to, "subject", subject)
	return nil
}
