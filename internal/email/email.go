// Package email sends templated transactional email. A Client renders one of
// the fixed templates from a flat parameter map and hands the result to a
// Transport (Resend, SMTP or a development logger).
package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
)

// Template names one of the fixed email templates.
type Template string

const (
	// TemplateReceiptReady is the rich email carrying the receipt link.
	TemplateReceiptReady Template = "receipt_ready"
	// TemplateDonationApproved is the fallback email with no receipt.
	TemplateDonationApproved Template = "donation_approved"
)

// Parameter keys. The first six are present on every send.
const (
	ParamToEmail    = "to_email"
	ParamToName     = "to_name"
	ParamDonorName  = "donor_name"
	ParamAmount     = "amount"
	ParamCampaign   = "campaign"
	ParamFromName   = "from_name"
	ParamReceiptURL = "receipt_url"
	ParamReceiptNo  = "receipt_no"
	ParamMessage    = "message"
)

var requiredParams = []string{
	ParamToEmail, ParamToName, ParamDonorName, ParamAmount, ParamCampaign, ParamFromName,
}

// Params is the flat key/value map a template is rendered from.
type Params map[string]string

// Result describes an accepted send.
type Result struct {
	Status string `json:"status"`
	ID     string `json:"id,omitempty"`
}

// Sender is the interface the dispatcher uses. Tests inject a stub that
// records calls without hitting the network.
type Sender interface {
	Send(ctx context.Context, tpl Template, p Params) (Result, error)
}

// Message is a rendered email ready for a Transport.
type Message struct {
	FromName string
	To       string
	ToName   string
	Subject  string
	HTML     string
}

// Transport delivers a rendered message and returns the provider's id for it.
type Transport interface {
	Name() string
	Deliver(ctx context.Context, m Message) (string, error)
}

// TransportError is returned for every failed send: missing configuration,
// bad parameters, render failures and provider rejections alike.
type TransportError struct {
	Transport string
	Template  Template
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("email: %s via %s: %v", e.Template, e.Transport, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ErrNotConfigured is wrapped by the TransportError of a Client built
// without a transport.
var ErrNotConfigured = errors.New("email transport not configured")

// ─── CLIENT ──────────────────────────────────────────────────────────────────

// Client is the Sender implementation used in production.
type Client struct {
	transport Transport
	log       *slog.Logger
}

// NewClient returns a Client delivering through t. A nil t yields a Client
// whose every Send fails with ErrNotConfigured.
func NewClient(t Transport, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{transport: t, log: log}
}

// Send renders tpl with p and delivers it.
func (c *Client) Send(ctx context.Context, tpl Template, p Params) (Result, error) {
	name := "none"
	if c.transport != nil {
		name = c.transport.Name()
	}
	fail := func(err error) (Result, error) {
		return Result{}, &TransportError{Transport: name, Template: tpl, Err: err}
	}

	if c.transport == nil {
		return fail(ErrNotConfigured)
	}
	if err := checkParams(tpl, p); err != nil {
		return fail(err)
	}

	subject, body, err := Render(tpl, p)
	if err != nil {
		return fail(err)
	}

	id, err := c.transport.Deliver(ctx, Message{
		FromName: p[ParamFromName],
		To:       p[ParamToEmail],
		ToName:   p[ParamToName],
		Subject:  subject,
		HTML:     body,
	})
	if err != nil {
		return fail(err)
	}

	c.log.Debug("email sent", "template", tpl, "transport", name, "id", id)
	return Result{Status: "sent", ID: id}, nil
}

func checkParams(tpl Template, p Params) error {
	var missing []string
	for _, k := range requiredParams {
		if strings.TrimSpace(p[k]) == "" {
			missing = append(missing, k)
		}
	}
	if tpl == TemplateReceiptReady && strings.TrimSpace(p[ParamReceiptURL]) == "" {
		missing = append(missing, ParamReceiptURL)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing params: %s", strings.Join(missing, ", "))
	}
	return nil
}

// formatFrom builds an RFC 5322 From header value, quoting name as needed.
func formatFrom(name, addr string) string {
	return (&mail.Address{Name: name, Address: addr}).String()
}
