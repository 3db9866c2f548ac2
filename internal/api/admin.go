package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nyashahama/community-donor-backend/internal/donation"
	"github.com/nyashahama/community-donor-backend/internal/receipt"
)

// donationResponse is the full admin view of a donation.
type donationResponse struct {
	ID            string          `json:"id"`
	DonorName     string          `json:"donor_name"`
	Email         string          `json:"email"`
	Phone         string          `json:"phone,omitempty"`
	Address       string          `json:"address,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Campaign      string          `json:"campaign"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	TransactionID string          `json:"transaction_id"`
	Status        donation.Status `json:"status"`
	Message       string          `json:"message,omitempty"`
	IsAnonymous   bool            `json:"is_anonymous"`
	Approved      bool            `json:"approved"`
	ApprovalSeq   int64           `json:"approval_seq"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func toDonationResponse(d donation.Donation) donationResponse {
	return donationResponse{
		ID:            d.ID.String(),
		DonorName:     d.DonorName,
		Email:         d.Email,
		Phone:         d.Phone,
		Address:       d.Address,
		Amount:        d.Amount,
		Campaign:      d.Campaign,
		PaymentMethod: d.PaymentMethod,
		TransactionID: d.TransactionID,
		Status:        d.Status,
		Message:       d.Message,
		IsAnonymous:   d.IsAnonymous,
		Approved:      d.Approved,
		ApprovalSeq:   d.ApprovalSeq,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

// ─── GET /api/admin/donations/{donationID} ────────────────────────────────────

func (s *Server) handleGetDonation(w http.ResponseWriter, r *http.Request) {
	id, ok := donationID(w, r)
	if !ok {
		return
	}
	d, err := s.donations.Get(r.Context(), id)
	if err != nil {
		s.respondDomainErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, toDonationResponse(d))
}

// ─── POST /api/admin/donations/{donationID}/{action} ──────────────────────────

type action func(ctx context.Context, id uuid.UUID) (donation.Donation, error)

// adminAction runs one lifecycle transition and returns the updated donation.
// Approve returns as soon as the write commits; delivery happens in the
// background and its progress is read from /dispatch.
func (s *Server) adminAction(name string, fn action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := donationID(w, r)
		if !ok {
			return
		}
		d, err := fn(r.Context(), id)
		if err != nil {
			s.respondDomainErr(w, r, err)
			return
		}
		s.logger.Info("admin: action applied",
			"action", name,
			"donation_id", id,
			"admin", adminSubject(r),
			logField(r),
		)
		respond(w, http.StatusOK, toDonationResponse(d))
	}
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.adminAction("approve", s.donations.Approve)(w, r)
}

func (s *Server) handleDisapprove(w http.ResponseWriter, r *http.Request) {
	s.adminAction("disapprove", s.donations.Disapprove)(w, r)
}

func (s *Server) handleMarkCompleted(w http.ResponseWriter, r *http.Request) {
	s.adminAction("complete", s.donations.MarkCompleted)(w, r)
}

func (s *Server) handleMarkFailed(w http.ResponseWriter, r *http.Request) {
	s.adminAction("fail", s.donations.MarkFailed)(w, r)
}

// handleResend answers 202: the delivery is queued, not performed.
func (s *Server) handleResend(w http.ResponseWriter, r *http.Request) {
	id, ok := donationID(w, r)
	if !ok {
		return
	}
	d, err := s.donations.Resend(r.Context(), id)
	if err != nil {
		s.respondDomainErr(w, r, err)
		return
	}
	s.logger.Info("admin: resend queued", "donation_id", id, "admin", adminSubject(r), logField(r))
	respond(w, http.StatusAccepted, toDonationResponse(d))
}

// ─── GET /api/admin/donations/{donationID}/dispatch ───────────────────────────

func (s *Server) handleDispatchStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := donationID(w, r)
	if !ok {
		return
	}
	v, err := s.donations.DispatchStatus(r.Context(), id)
	if err != nil {
		s.respondDomainErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, v)
}

// ─── GET /api/admin/donations/{donationID}/receipt.pdf ────────────────────────

// handleReceiptPDF renders the receipt on demand. It is the same document the
// pipeline publishes, minus the upload.
func (s *Server) handleReceiptPDF(w http.ResponseWriter, r *http.Request) {
	id, ok := donationID(w, r)
	if !ok {
		return
	}
	d, err := s.donations.Get(r.Context(), id)
	if err != nil {
		s.respondDomainErr(w, r, err)
		return
	}

	rec, err := s.composer.Compose(d)
	var verr *receipt.ValidationError
	if errors.As(err, &verr) {
		respondErr(w, http.StatusUnprocessableEntity, verr.Error())
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+rec.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(rec.PDF)))
	w.Header().Set("X-Receipt-No", rec.ReceiptNo)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rec.PDF)
}
