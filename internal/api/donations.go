package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nyashahama/community-donor-backend/internal/donation"
)

// ─── POST /api/donations ──────────────────────────────────────────────────────

type createDonationRequest struct {
	DonorName     string          `json:"donor_name"`
	Email         string          `json:"email"`
	Phone         string          `json:"phone"`
	Address       string          `json:"address"`
	Amount        decimal.Decimal `json:"amount"`
	Campaign      string          `json:"campaign"`
	PaymentMethod string          `json:"payment_method"`
	TransactionID string          `json:"transaction_id"`
	Message       string          `json:"message"`
	IsAnonymous   bool            `json:"is_anonymous"`
}

type createDonationResponse struct {
	ID            string          `json:"id"`
	TransactionID string          `json:"transaction_id"`
	Status        donation.Status `json:"status"`
}

// handleCreateDonation records a new, unapproved donation. Only the id,
// transaction id and payment status are echoed back.
func (s *Server) handleCreateDonation(w http.ResponseWriter, r *http.Request) {
	var req createDonationRequest
	if !decode(w, r, &req) {
		return
	}

	d, err := s.donations.Create(r.Context(), donation.Fields{
		DonorName:     req.DonorName,
		Email:         req.Email,
		Phone:         req.Phone,
		Address:       req.Address,
		Amount:        req.Amount,
		Campaign:      req.Campaign,
		PaymentMethod: req.PaymentMethod,
		TransactionID: req.TransactionID,
		Message:       req.Message,
		IsAnonymous:   req.IsAnonymous,
	})
	if err != nil {
		s.respondDomainErr(w, r, err)
		return
	}

	respond(w, http.StatusCreated, createDonationResponse{
		ID:            d.ID.String(),
		TransactionID: d.TransactionID,
		Status:        d.Status,
	})
}

// ─── GET /api/donations ───────────────────────────────────────────────────────

// handleListDonations returns approved donations, newest first, with
// anonymous donors redacted. ?limit and ?offset page through them.
func (s *Server) handleListDonations(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	offset, ok := queryInt(w, r, "offset")
	if !ok {
		return
	}

	list, err := s.donations.ListPublic(r.Context(), limit, offset)
	if err != nil {
		s.respondDomainErr(w, r, err)
		return
	}
	if list == nil {
		list = []donation.Public{}
	}
	respond(w, http.StatusOK, map[string]any{"donations": list})
}

// ─── GET /api/donations/summary ───────────────────────────────────────────────

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	totals, err := s.donations.Summary(r.Context())
	if err != nil {
		s.respondDomainErr(w, r, err)
		return
	}
	if totals == nil {
		totals = []donation.CampaignTotal{}
	}
	respond(w, http.StatusOK, map[string]any{
		"campaigns":    totals,
		"generated_at": time.Now().UTC(),
	})
}

// queryInt reads a non-negative integer query parameter; absent means 0.
func queryInt(w http.ResponseWriter, r *http.Request, key string) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		respondErr(w, http.StatusBadRequest, key+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}
