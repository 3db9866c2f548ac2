package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"github.com/nyashahama/community-donor-backend/internal/db"
	"github.com/nyashahama/community-donor-backend/internal/dispatch"
)

// DispatchStore is the Postgres dispatch.StatusStore.
type DispatchStore struct {
	s          *Store
	staleAfter time.Duration
	now        func() time.Time
}

var _ dispatch.StatusStore = (*DispatchStore)(nil)

// Dispatches returns a StatusStore on s. Pending runs not updated for
// staleAfter may be reclaimed; zero disables takeover.
func (s *Store) Dispatches(staleAfter time.Duration) *DispatchStore {
	return &DispatchStore{s: s, staleAfter: staleAfter, now: time.Now}
}

// Claim atomically:
//
//  1. Locks the existing dispatch row, if any.
//  2. Asks dispatch.Status.Claimable whether a run for seq may replace it.
//  3. Resets the row to a fresh pending run, incrementing runs.
//
// Two claims racing on a donation with no row both try to insert; the loser
// fails with a unique or serialization error and reports the winner's row as
// not claimed.
func (d *DispatchStore) Claim(ctx context.Context, donationID uuid.UUID, seq int64, force bool) (dispatch.Status, bool, error) {
	var (
		st      dispatch.Status
		claimed bool
	)
	now := d.now().UTC()

	err := d.s.withTx(ctx, func(ctx context.Context, q db.Querier) error {
		runs := int32(0)
		cur, err := q.GetDispatchForUpdate(ctx, donationID)
		switch {
		case err == nil:
			prev, err := toStatus(cur)
			if err != nil {
				return err
			}
			if !prev.Claimable(seq, force, now, d.staleAfter) {
				st = prev
				return nil
			}
			runs = cur.Runs
		case errors.Is(err, sql.ErrNoRows):
		default:
			return fmt.Errorf("store: Claim: lock dispatch: %w", err)
		}

		first := dispatch.Status{Stage: dispatch.StageStart, Outcome: dispatch.OutcomePending, UpdatedAt: now}
		history, err := historyJSON([]dispatch.Transition{first.Entry()})
		if err != nil {
			return err
		}
		row, err := q.UpsertDispatch(ctx, db.UpsertDispatchParams{
			DonationID:  donationID,
			ApprovalSeq: seq,
			Stage:       string(dispatch.StageStart),
			Outcome:     string(dispatch.OutcomePending),
			Runs:        runs + 1,
			History:     history,
			StartedAt:   now,
		})
		if err != nil {
			return fmt.Errorf("store: Claim: upsert dispatch: %w", err)
		}
		st, err = toStatus(row)
		if err != nil {
			return err
		}
		claimed = true
		return nil
	})

	if err != nil && isConflict(err) {
		cur, getErr := d.Get(ctx, donationID)
		if getErr != nil {
			return dispatch.Status{}, false, fmt.Errorf("store: Claim: after conflict: %w", getErr)
		}
		return cur, false, nil
	}
	if err != nil {
		return dispatch.Status{}, false, err
	}
	return st, claimed, nil
}

// Record writes st and appends its History entry. Writes from a run that has
// since been superseded match no row and are dropped.
func (d *DispatchStore) Record(ctx context.Context, st dispatch.Status) error {
	entry, err := json.Marshal(st.Entry())
	if err != nil {
		return fmt.Errorf("store: Record: marshal entry: %w", err)
	}
	// The query appends with ||, which needs a JSON array on the right.
	entry = append(append([]byte{'['}, entry...), ']')

	_, err = d.s.q.UpdateDispatch(ctx, db.UpdateDispatchParams{
		DonationID:  st.DonationID,
		ApprovalSeq: st.ApprovalSeq,
		Runs:        int32(st.Runs),
		Stage:       string(st.Stage),
		Outcome:     string(st.Outcome),
		ReceiptNo:   st.ReceiptNo,
		ReceiptUrl:  st.ReceiptURL,
		ArchivePath: st.ArchivePath,
		Error:       st.Error,
		Entry:       pqtype.NullRawMessage{RawMessage: entry, Valid: true},
		UpdatedAt:   st.UpdatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("store: Record: %w", err)
	}
	return nil
}

// Get returns dispatch.ErrNotFound for a donation never dispatched.
func (d *DispatchStore) Get(ctx context.Context, donationID uuid.UUID) (dispatch.Status, error) {
	row, err := d.s.q.GetDispatch(ctx, donationID)
	if errors.Is(err, sql.ErrNoRows) {
		return dispatch.Status{}, dispatch.ErrNotFound
	}
	if err != nil {
		return dispatch.Status{}, fmt.Errorf("store: GetDispatch: %w", err)
	}
	return toStatus(row)
}

// ─── MAPPING ─────────────────────────────────────────────────────────────────

func toStatus(r db.Dispatch) (dispatch.Status, error) {
	st := dispatch.Status{
		DonationID:  r.DonationID,
		ApprovalSeq: r.ApprovalSeq,
		Stage:       dispatch.Stage(r.Stage),
		Outcome:     dispatch.Outcome(r.Outcome),
		ReceiptNo:   r.ReceiptNo,
		ReceiptURL:  r.ReceiptUrl,
		ArchivePath: r.ArchivePath,
		Error:       r.Error,
		Runs:        int(r.Runs),
		StartedAt:   r.StartedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.History.Valid {
		if err := json.Unmarshal(r.History.RawMessage, &st.History); err != nil {
			return dispatch.Status{}, fmt.Errorf("store: decode dispatch history: %w", err)
		}
	}
	return st, nil
}

func historyJSON(h []dispatch.Transition) (pqtype.NullRawMessage, error) {
	b, err := json.Marshal(h)
	if err != nil {
		return pqtype.NullRawMessage{}, fmt.Errorf("store: encode dispatch history: %w", err)
	}
	return pqtype.NullRawMessage{RawMessage: b, Valid: true}, nil
}
