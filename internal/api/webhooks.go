package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/nyashahama/community-donor-backend/internal/donation"
	"github.com/nyashahama/community-donor-backend/internal/store"
	stripeinternal "github.com/nyashahama/community-donor-backend/internal/stripe"
)

// ─── POST /api/webhooks/stripe ────────────────────────────────────────────────

// handleStripeWebhook is the payment-gateway callback. It only moves the
// payment status; it never approves a donation or sends email.
//
// Stripe delivers events at-least-once and retries on non-2xx responses.
// Replays are safe because setting the current status again is a no-op.
//
// The only events we act on are:
//   - payment_intent.succeeded      → MarkCompleted, or Create when the intent
//     carries no donation_id (payment links, dashboard charges)
//   - payment_intent.payment_failed → MarkFailed
func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	// ── 1. Read and size-limit the body ───────────────────────────────────────
	// The signature check must run against the exact bytes Stripe signed.
	r.Body = http.MaxBytesReader(w, r.Body, 65536)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		respondErr(w, http.StatusBadRequest, "could not read request body")
		return
	}

	// ── 2. Verify the Stripe-Signature header ─────────────────────────────────
	event, err := s.stripe.VerifyWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		s.logger.Warn("webhook: invalid signature", "error", err, logField(r))
		respondErr(w, http.StatusBadRequest, "invalid webhook signature")
		return
	}

	// ── 3. Dispatch by event type ─────────────────────────────────────────────
	var handlerErr error
	switch event.Type {
	case stripeinternal.EventPaymentSucceeded:
		handlerErr = s.onPayment(r, event, donation.StatusCompleted)
	case stripeinternal.EventPaymentFailed:
		handlerErr = s.onPayment(r, event, donation.StatusFailed)
	default:
		// Unknown event type; ack so Stripe stops retrying.
		s.logger.Debug("webhook: unhandled event type", "type", event.Type, logField(r))
	}

	if handlerErr != nil {
		s.logger.Error("webhook: handler error",
			"event_id", event.ID,
			"type", event.Type,
			"error", handlerErr,
			logField(r),
		)
		// 500 so Stripe retries delivery.
		respondErr(w, http.StatusInternalServerError, "webhook handler failed")
		return
	}
	w.WriteHeader(http.StatusOK)
}

// onPayment applies the status for a payment_intent event. Events that can
// never succeed on retry (no donation id, unknown donation, disallowed
// transition) are logged and acknowledged.
func (s *Server) onPayment(r *http.Request, event stripeinternal.Event, to donation.Status) error {
	pi, err := stripeinternal.ExtractPaymentIntent(event)
	if err != nil {
		s.logger.Warn("webhook: unusable payment intent", "event_id", event.ID, "error", err, logField(r))
		return nil
	}

	if !pi.Linked() {
		return s.onUnlinkedPayment(r, event, pi, to)
	}

	mark := s.donations.MarkCompleted
	if to == donation.StatusFailed {
		mark = s.donations.MarkFailed
	}

	_, err = mark(r.Context(), pi.DonationID)
	switch {
	case errors.Is(err, donation.ErrNotFound), errors.Is(err, donation.ErrInvalidTransition):
		s.logger.Warn("webhook: payment status not applied",
			"event_id", event.ID,
			"payment_intent", pi.ID,
			"donation_id", pi.DonationID,
			"status", to,
			"error", err,
			logField(r),
		)
		return nil
	case err != nil:
		return fmt.Errorf("onPayment: set %s: %w", to, err)
	}

	s.logger.Info("webhook: payment status applied",
		"event_id", event.ID,
		"payment_intent", pi.ID,
		"donation_id", pi.DonationID,
		"status", to,
		logField(r),
	)
	return nil
}

// onUnlinkedPayment records a succeeded payment that no donation was created
// for beforehand. Replays hit the unique transaction id and are acked.
func (s *Server) onUnlinkedPayment(r *http.Request, event stripeinternal.Event, pi stripeinternal.PaymentIntent, to donation.Status) error {
	if to != donation.StatusCompleted {
		s.logger.Info("webhook: failed payment without donation, ignoring",
			"event_id", event.ID,
			"payment_intent", pi.ID,
			logField(r),
		)
		return nil
	}

	d, err := s.donations.Create(r.Context(), pi.DonationFields())
	switch {
	case errors.Is(err, store.ErrDuplicateTransaction):
		s.logger.Info("webhook: payment already recorded", "event_id", event.ID, "payment_intent", pi.ID, logField(r))
		return nil
	case errors.Is(err, donation.ErrInvalid):
		s.logger.Warn("webhook: payment cannot become a donation",
			"event_id", event.ID,
			"payment_intent", pi.ID,
			"error", err,
			logField(r),
		)
		return nil
	case err != nil:
		return fmt.Errorf("onUnlinkedPayment: create: %w", err)
	}

	s.logger.Info("webhook: donation recorded from payment",
		"event_id", event.ID,
		"payment_intent", pi.ID,
		"donation_id", d.ID,
		logField(r),
	)
	return nil
}
