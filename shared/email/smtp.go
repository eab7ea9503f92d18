package email

import (
	"context"
	"fmt"
	"net/smtp"

	"weather-agent/internal/models"
	"weather-agent/shared/config"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPDispatcher mails each notification as an HTML message
type SMTPDispatcher struct {
	config   config.EmailConfig
	sendMail sendMailFunc
}

func NewSMTPDispatcher(cfg config.EmailConfig) *SMTPDispatcher {
	return &SMTPDispatcher{
		config:   cfg,
		sendMail: smtp.SendMail,
	}
}

func (d *SMTPDispatcher) Dispatch(ctx context.Context, n models.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := RenderHTML(n)
	if err != nil {
		return err
	}
	return d.SendHTML(Subject(n), body)
}

// SendHTML sends an email with custom HTML content
func (d *SMTPDispatcher) SendHTML(subject, htmlBody string) error {
	auth := smtp.PlainAuth("", d.config.Username, d.config.Password, d.config.SMTPServer)

	from := d.config.FromEmail
	if from == "" {
		from = d.config.Username
	}
	msg := buildMessage(from, d.config.ToEmail, subject, htmlBody)

	addr := fmt.Sprintf("%s:%d", d.config.SMTPServer, d.config.SMTPPort)
	if err := d.sendMail(addr, auth, from, []string{d.config.ToEmail}, msg); err != nil {
		return fmt.Errorf("failed to send email via %s: %w", addr, err)
	}
	return nil
}
