package smtp

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/catalog-reviews/internal/config"
)

const (
	codeSubject = "Your confirmation code"
	codeBody    = "Your confirmation code: %s\r\n\r\nExchange it together with your username for an access token."
)

// Mailer sends emails.
type Mailer interface {
	SendEmail(to, subject, body string) error
}

// SMTPMailer sends mail through a plain SMTP relay.
type SMTPMailer struct {
	host     string
	port     string
	from     string
	username string
	password string
	send     func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewMailer(cfg *config.Config) *SMTPMailer {
	return &SMTPMailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		from:     cfg.SMTPFrom,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		send:     smtp.SendMail,
	}
}

func (m *SMTPMailer) SendEmail(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", m.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", m.host, m.port)

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	return m.send(addr, auth, m.from, []string{to}, []byte(msg))
}

// Notify delivers a confirmation code by email.
func (m *SMTPMailer) Notify(_ context.Context, email, code string) error {
	if err := m.SendEmail(email, codeSubject, fmt.Sprintf(codeBody, code)); err != nil {
		return fmt.Errorf("send confirmation email: %w", err)
	}
	return nil
}
