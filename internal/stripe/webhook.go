package stripe

import (
	"fmt"

	"github.com/stripe/stripe-go/v82/webhook"
)

type webhookVerifier struct {
	secret string
}

// NewVerifier returns a Verifier backed by the stripe-go SDK. secret is the
// endpoint's STRIPE_WEBHOOK_SECRET.
func NewVerifier(secret string) Verifier {
	return &webhookVerifier{secret: secret}
}

// VerifyWebhook returns an error if the signature is invalid or the tolerance
// window (300 seconds by default in the Stripe SDK) has expired.
func (v *webhookVerifier) VerifyWebhook(payload []byte, sigHeader string) (Event, error) {
	ev, err := webhook.ConstructEvent(payload, sigHeader, v.secret)
	if err != nil {
		return Event{}, fmt.Errorf("stripe: webhook verification failed: %w", err)
	}
	return Event{
		ID:      ev.ID,
		Type:    string(ev.Type),
		DataRaw: ev.Data.Raw,
	}, nil
}
