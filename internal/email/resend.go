package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/resend/resend-go/v2"
)

// resendEmails is the slice of the Resend SDK this transport calls.
type resendEmails interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// ResendTransport delivers through the Resend API.
type ResendTransport struct {
	emails   resendEmails
	fromAddr string
}

// NewResendTransport returns a Transport backed by the Resend SDK.
func NewResendTransport(apiKey, fromAddr string) *ResendTransport {
	return &ResendTransport{
		emails:   resend.NewClient(apiKey).Emails,
		fromAddr: fromAddr,
	}
}

func (t *ResendTransport) Name() string { return "resend" }

// Deliver sends m and returns the Resend message id.
func (t *ResendTransport) Deliver(ctx context.Context, m Message) (string, error) {
	to := m.To
	if m.ToName != "" {
		to = formatFrom(m.ToName, m.To)
	}
	resp, err := t.emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    formatFrom(m.FromName, t.fromAddr),
		To:      []string{to},
		Subject: m.Subject,
		Html:    m.HTML,
	})
	if err != nil {
		return "", fmt.Errorf("resend: %w", err)
	}
	if resp == nil || resp.Id == "" {
		return "", errors.New("resend: response has no message id")
	}
	return resp.Id, nil
}
