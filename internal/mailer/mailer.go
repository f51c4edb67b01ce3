package mailer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	"github.com/outreachly/outreach-service/internal/database"
)

// Mailer delivers campaign mail over per-user SMTP settings. A fresh dialer
// per send keeps one user's transport fault from poisoning another's.
type Mailer struct {
	logger zerolog.Logger
}

// New creates a mailer
func New(logger zerolog.Logger) *Mailer {
	return &Mailer{logger: logger.With().Str("component", "mailer").Logger()}
}

// Send delivers one HTML message through the given SMTP configuration
func (m *Mailer) Send(ctx context.Context, cfg *database.SMTPConfiguration, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	from := cfg.Username
	if cfg.FromName != "" {
		from = msg.FormatAddress(cfg.Username, cfg.FromName)
	}
	msg.SetHeader("From", from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	dialer := gomail.NewDialer(cfg.Server, cfg.Port, cfg.Username, cfg.Password)
	if err := dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("smtp delivery to %s failed: %w", to, err)
	}

	m.logger.Debug().Str("to", to).Msg("Email delivered")
	return nil
}
