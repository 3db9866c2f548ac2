// Package stripe verifies Stripe webhook deliveries and pulls out the fields
// the donation lifecycle needs. The api package depends on the Verifier
// interface; tests inject a stub.
package stripe

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nyashahama/community-donor-backend/internal/donation"
)

// Event types the webhook acts on.
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
)

// PaymentIntent metadata keys. The checkout page sets donation_id when it
// created the donation first; payment links and dashboard charges carry only
// campaign and donor_name.
const (
	MetadataDonationID = "donation_id"
	MetadataCampaign   = "campaign"
	MetadataDonorName  = "donor_name"
)

// Event is a verified Stripe webhook event. DataRaw contains the raw JSON of
// the event's data.object so handlers can unmarshal only what they need.
type Event struct {
	ID      string
	Type    string
	DataRaw json.RawMessage
}

// Verifier validates the Stripe-Signature header and returns the parsed event.
type Verifier interface {
	VerifyWebhook(payload []byte, sigHeader string) (Event, error)
}

// PaymentIntent is the subset of a payment_intent object the webhook uses.
// DonationID is uuid.Nil when the intent was not created for an existing
// donation.
type PaymentIntent struct {
	ID           string
	Status       string
	DonationID   uuid.UUID
	Amount       int64 // minor units
	Currency     string
	ReceiptEmail string
	Metadata     map[string]string
}

// ExtractPaymentIntent reads the PaymentIntent and its donation id from a
// payment_intent.* event. A missing donation_id is not an error; a malformed
// one is.
func ExtractPaymentIntent(event Event) (PaymentIntent, error) {
	var obj struct {
		ID           string            `json:"id"`
		Status       string            `json:"status"`
		Amount       int64             `json:"amount"`
		Currency     string            `json:"currency"`
		ReceiptEmail string            `json:"receipt_email"`
		Metadata     map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(event.DataRaw, &obj); err != nil {
		return PaymentIntent{}, fmt.Errorf("stripe: unmarshal payment intent: %w", err)
	}
	if obj.ID == "" {
		return PaymentIntent{}, fmt.Errorf("stripe: payment intent id is empty in event %s", event.ID)
	}

	pi := PaymentIntent{
		ID:           obj.ID,
		Status:       obj.Status,
		Amount:       obj.Amount,
		Currency:     obj.Currency,
		ReceiptEmail: obj.ReceiptEmail,
		Metadata:     obj.Metadata,
	}
	if raw := obj.Metadata[MetadataDonationID]; raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return PaymentIntent{}, fmt.Errorf("stripe: payment intent %s: invalid donation id %q: %w", obj.ID, raw, err)
		}
		pi.DonationID = id
	}
	return pi, nil
}

// Linked reports whether the intent belongs to an existing donation.
func (pi PaymentIntent) Linked() bool {
	return pi.DonationID != uuid.Nil
}

// DonationFields maps an unlinked, succeeded intent onto creation fields. The
// payment intent id becomes the transaction id, so a replayed event collides
// with the donation it already created.
func (pi PaymentIntent) DonationFields() donation.Fields {
	return donation.Fields{
		DonorName:       pi.Metadata[MetadataDonorName],
		Email:           pi.ReceiptEmail,
		Amount:          decimal.New(pi.Amount, -2),
		Campaign:        pi.Metadata[MetadataCampaign],
		PaymentMethod:   "stripe",
		TransactionID:   pi.ID,
		GatewaySupplied: true,
	}
}
