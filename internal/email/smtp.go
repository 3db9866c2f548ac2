package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// SMTPDialer is satisfied by *gomail.Dialer.
type SMTPDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPConfig configures an SMTPTransport.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	FromAddr string
}

// SMTPTransport delivers over SMTP with gomail.
type SMTPTransport struct {
	dialer   SMTPDialer
	fromAddr string
}

// NewSMTPTransport dials cfg.Host for every message.
func NewSMTPTransport(cfg SMTPConfig) *SMTPTransport {
	return NewSMTPTransportWithDialer(
		gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		cfg.FromAddr,
	)
}

// NewSMTPTransportWithDialer uses d instead of a real SMTP connection.
func NewSMTPTransportWithDialer(d SMTPDialer, fromAddr string) *SMTPTransport {
	return &SMTPTransport{dialer: d, fromAddr: fromAddr}
}

func (t *SMTPTransport) Name() string { return "smtp" }

// Deliver sends m. gomail has no context support, so the send runs in its own
// goroutine and ctx only bounds how long the caller waits for it.
func (t *SMTPTransport) Deliver(ctx context.Context, m Message) (string, error) {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", t.fromAddr, m.FromName)
	msg.SetAddressHeader("To", m.To, m.ToName)
	msg.SetHeader("Subject", m.Subject)
	msg.SetBody("text/html", m.HTML)

	done := make(chan error, 1)
	go func() { done <- t.dialer.DialAndSend(msg) }()

	select {
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("smtp: %w", err)
		}
		return "", nil
	case <-ctx.Done():
		return "", fmt.Errorf("smtp: %w", ctx.Err())
	}
}
