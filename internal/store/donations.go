package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nyashahama/community-donor-backend/internal/db"
	"github.com/nyashahama/community-donor-backend/internal/donation"
)

// ─── ERRORS ──────────────────────────────────────────────────────────────────

// ErrDuplicateTransaction is returned by CreateDonation when the transaction
// id is already recorded.
var ErrDuplicateTransaction = errors.New("store: transaction id already recorded")

// ─── READS ───────────────────────────────────────────────────────────────────

// GetDonation returns donation.ErrNotFound for an unknown id.
func (s *Store) GetDonation(ctx context.Context, id uuid.UUID) (donation.Donation, error) {
	row, err := s.q.GetDonation(ctx, id)
	if err != nil {
		return donation.Donation{}, notFound(err, "GetDonation")
	}
	return toDonation(row), nil
}

// ListApproved returns approved donations, newest first.
func (s *Store) ListApproved(ctx context.Context, limit, offset int) ([]donation.Donation, error) {
	rows, err := s.q.ListApprovedDonations(ctx, db.ListApprovedDonationsParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		return nil, fmt.Errorf("store: ListApproved: %w", err)
	}
	out := make([]donation.Donation, len(rows))
	for i, r := range rows {
		out[i] = toDonation(r)
	}
	return out, nil
}

// Summary aggregates approved donations per campaign, oldest campaign first.
func (s *Store) Summary(ctx context.Context) ([]donation.CampaignTotal, error) {
	rows, err := s.q.SummarizeApprovedDonations(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: Summary: %w", err)
	}
	out := make([]donation.CampaignTotal, len(rows))
	for i, r := range rows {
		out[i] = donation.CampaignTotal{Campaign: r.Campaign, Count: r.Count, Total: r.Total}
	}
	return out, nil
}

// ListUndispatched returns approved donations whose current approval event
// has no dispatch run, or whose run has been pending since before
// staleBefore. The worker's recovery poller feeds these back into the queue.
func (s *Store) ListUndispatched(ctx context.Context, staleBefore time.Time, limit int) ([]donation.Donation, error) {
	rows, err := s.q.ListUndispatchedDonations(ctx, db.ListUndispatchedDonationsParams{
		StaleBefore: staleBefore,
		Limit:       int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("store: ListUndispatched: %w", err)
	}
	out := make([]donation.Donation, len(rows))
	for i, r := range rows {
		out[i] = toDonation(r)
	}
	return out, nil
}

// ─── WRITES ──────────────────────────────────────────────────────────────────

// CreateDonation inserts d. ID, Approved, ApprovalSeq and timestamps are
// assigned by the database.
func (s *Store) CreateDonation(ctx context.Context, d donation.Donation) (donation.Donation, error) {
	row, err := s.q.CreateDonation(ctx, db.CreateDonationParams{
		DonorName:     d.DonorName,
		Email:         d.Email,
		Phone:         d.Phone,
		Address:       d.Address,
		Amount:        d.Amount,
		Campaign:      d.Campaign,
		PaymentMethod: d.PaymentMethod,
		TransactionID: d.TransactionID,
		Status:        db.DonationStatus(d.Status),
		Message:       d.Message,
		IsAnonymous:   d.IsAnonymous,
	})
	if err != nil {
		if isConflict(err) {
			return donation.Donation{}, ErrDuplicateTransaction
		}
		return donation.Donation{}, fmt.Errorf("store: CreateDonation: %w", err)
	}
	return toDonation(row), nil
}

// SetApproval sets the approved flag. Moving from false to true increments
// ApprovalSeq, which keys a new dispatch run. changed is false when the flag
// already had the requested value; the row is then returned untouched.
func (s *Store) SetApproval(ctx context.Context, id uuid.UUID, approved bool) (d donation.Donation, changed bool, err error) {
	err = s.withTx(ctx, func(ctx context.Context, q db.Querier) error {
		cur, err := q.GetDonationForUpdate(ctx, id)
		if err != nil {
			return notFound(err, "SetApproval")
		}
		if cur.Approved == approved {
			d = toDonation(cur)
			return nil
		}

		seq := cur.ApprovalSeq
		if approved {
			seq++
		}
		row, err := q.SetDonationApproval(ctx, db.SetDonationApprovalParams{
			ID:          id,
			Approved:    approved,
			ApprovalSeq: seq,
		})
		if err != nil {
			return fmt.Errorf("store: SetApproval: update: %w", err)
		}
		d, changed = toDonation(row), true
		return nil
	})
	if err != nil {
		return donation.Donation{}, false, err
	}
	return d, changed, nil
}

// SetStatus moves the payment status to `to`, enforcing
// donation.Status.CanTransition. Setting the current status again returns
// the row unchanged.
func (s *Store) SetStatus(ctx context.Context, id uuid.UUID, to donation.Status) (donation.Donation, error) {
	var d donation.Donation
	err := s.withTx(ctx, func(ctx context.Context, q db.Querier) error {
		cur, err := q.GetDonationForUpdate(ctx, id)
		if err != nil {
			return notFound(err, "SetStatus")
		}
		from := donation.Status(cur.Status)
		if from == to {
			d = toDonation(cur)
			return nil
		}
		if !from.CanTransition(to) {
			return fmt.Errorf("%w: %s -> %s", donation.ErrInvalidTransition, from, to)
		}

		row, err := q.SetDonationStatus(ctx, db.SetDonationStatusParams{ID: id, Status: db.DonationStatus(to)})
		if err != nil {
			return fmt.Errorf("store: SetStatus: update: %w", err)
		}
		d = toDonation(row)
		return nil
	})
	if err != nil {
		return donation.Donation{}, err
	}
	return d, nil
}

// ─── MAPPING ─────────────────────────────────────────────────────────────────

func toDonation(r db.Donation) donation.Donation {
	return donation.Donation{
		ID:            r.ID,
		DonorName:     r.DonorName,
		Email:         r.Email,
		Phone:         r.Phone,
		Address:       r.Address,
		Amount:        r.Amount,
		Campaign:      r.Campaign,
		PaymentMethod: r.PaymentMethod,
		TransactionID: r.TransactionID,
		Status:        donation.Status(r.Status),
		Message:       r.Message,
		IsAnonymous:   r.IsAnonymous,
		Approved:      r.Approved,
		ApprovalSeq:   r.ApprovalSeq,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func notFound(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return donation.ErrNotFound
	}
	return fmt.Errorf("store: %s: %w", op, err)
}
