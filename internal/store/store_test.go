package store_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/nyashahama/community-donor-backend/internal/db"
	"github.com/nyashahama/community-donor-backend/internal/dispatch"
	"github.com/nyashahama/community-donor-backend/internal/donation"
	"github.com/nyashahama/community-donor-backend/internal/store"
)

// ─── TEST INFRASTRUCTURE ──────────────────────────────────────────────────────

// openTestDB returns a migrated *sql.DB from DATABASE_URL. Skips if the env
// var is not set so the suite still passes without a Postgres instance.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping store integration tests")
	}
	pool, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if err := pool.PingContext(context.Background()); err != nil {
		pool.Close()
		t.Fatalf("ping: %v", err)
	}
	if err := db.Migrate(pool); err != nil {
		pool.Close()
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	return pool
}

func newStore(t *testing.T) (*store.Store, *sql.DB) {
	pool := openTestDB(t)
	return store.New(pool, db.New(pool)), pool
}

// seedDonation inserts a completed donation and deletes it when the test ends.
func seedDonation(t *testing.T, st *store.Store, pool *sql.DB, campaign string) donation.Donation {
	t.Helper()
	ctx := context.Background()
	d, err := st.CreateDonation(ctx, donation.Donation{
		DonorName:     "Anita Shah",
		Email:         "anita@example.com",
		Amount:        decimal.RequireFromString("2500.00"),
		Campaign:      campaign,
		PaymentMethod: "UPI",
		TransactionID: donation.NewTransactionID(time.Now()),
		Status:        donation.StatusCompleted,
	})
	if err != nil {
		t.Fatalf("seed donation: %v", err)
	}
	t.Cleanup(func() { _, _ = pool.ExecContext(ctx, "DELETE FROM donations WHERE id=$1", d.ID) })
	return d
}

// ─── Donations ────────────────────────────────────────────────────────────────

func TestCreateDonation_RoundTrip(t *testing.T) {
	st, pool := newStore(t)
	ctx := context.Background()

	d := seedDonation(t, st, pool, "Education Support")
	if d.ID == uuid.Nil {
		t.Fatal("expected id to be assigned")
	}
	if d.Approved || d.ApprovalSeq != 0 {
		t.Errorf("new donation should be unapproved, got approved=%v seq=%d", d.Approved, d.ApprovalSeq)
	}

	got, err := st.GetDonation(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetDonation: %v", err)
	}
	if !got.Amount.Equal(decimal.NewFromInt(2500)) {
		t.Errorf("amount: got %s", got.Amount)
	}
	if got.Status != donation.StatusCompleted {
		t.Errorf("status: got %s", got.Status)
	}
}

func TestCreateDonation_DuplicateTransactionID(t *testing.T) {
	st, pool := newStore(t)
	ctx := context.Background()

	d := seedDonation(t, st, pool, "Education Support")
	dup := d
	dup.ID = uuid.Nil
	_, err := st.CreateDonation(ctx, dup)
	if !errors.Is(err, store.ErrDuplicateTransaction) {
		t.Errorf("expected ErrDuplicateTransaction, got %v", err)
	}
}

func TestGetDonation_NotFound(t *testing.T) {
	st, _ := newStore(t)
	_, err := st.GetDonation(context.Background(), uuid.New())
	if !errors.Is(err, donation.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSetApproval_BumpsSeqOnlyOnEdge(t *testing.T) {
	st, pool := newStore(t)
	ctx := context.Background()
	d := seedDonation(t, st, pool, "Education Support")

	got, changed, err := st.SetApproval(ctx, d.ID, true)
	if err != nil || !changed || !got.Approved || got.ApprovalSeq != 1 {
		t.Fatalf("first approve: %+v changed=%v err=%v", got, changed, err)
	}

	got, changed, err = st.SetApproval(ctx, d.ID, true)
	if err != nil || changed || got.ApprovalSeq != 1 {
		t.Fatalf("redundant approve: seq=%d changed=%v err=%v", got.ApprovalSeq, changed, err)
	}

	if _, _, err := st.SetApproval(ctx, d.ID, false); err != nil {
		t.Fatalf("disapprove: %v", err)
	}
	got, _, err = st.SetApproval(ctx, d.ID, true)
	if err != nil || got.ApprovalSeq != 2 {
		t.Fatalf("re-approve: seq=%d err=%v", got.ApprovalSeq, err)
	}
}

func TestSetStatus_Transitions(t *testing.T) {
	st, pool := newStore(t)
	ctx := context.Background()
	d := seedDonation(t, st, pool, "Education Support")

	if _, err := st.SetStatus(ctx, d.ID, donation.StatusCompleted); err != nil {
		t.Errorf("same status should be a no-op, got %v", err)
	}
	_, err := st.SetStatus(ctx, d.ID, donation.StatusFailed)
	if !errors.Is(err, donation.ErrInvalidTransition) {
		t.Errorf("completed -> failed: expected ErrInvalidTransition, got %v", err)
	}
}

func TestSummaryAndListApproved(t *testing.T) {
	st, pool := newStore(t)
	ctx := context.Background()
	campaign := "Summary " + uuid.NewString()

	a := seedDonation(t, st, pool, campaign)
	seedDonation(t, st, pool, campaign) // never approved

	if _, _, err := st.SetApproval(ctx, a.ID, true); err != nil {
		t.Fatalf("approve: %v", err)
	}

	totals, err := st.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	var found bool
	for _, ct := range totals {
		if ct.Campaign == campaign {
			found = true
			if ct.Count != 1 || !ct.Total.Equal(decimal.NewFromInt(2500)) {
				t.Errorf("campaign total: got %+v", ct)
			}
		}
	}
	if !found {
		t.Error("approved campaign missing from summary")
	}

	list, err := st.ListApproved(ctx, 500, 0)
	if err != nil {
		t.Fatalf("ListApproved: %v", err)
	}
	for _, d := range list {
		if !d.Approved {
			t.Errorf("unapproved donation %s listed", d.ID)
		}
	}
}

// ─── Dispatches ───────────────────────────────────────────────────────────────

func TestDispatchStore_ClaimIsIdempotent(t *testing.T) {
	st, pool := newStore(t)
	ctx := context.Background()
	d := seedDonation(t, st, pool, "Education Support")
	ds := st.Dispatches(time.Minute)

	first, ok, err := ds.Claim(ctx, d.ID, 1, false)
	if err != nil || !ok {
		t.Fatalf("first claim: ok=%v err=%v", ok, err)
	}
	if first.Runs != 1 || first.Outcome != dispatch.OutcomePending {
		t.Errorf("claimed status: %+v", first)
	}

	if _, ok, err := ds.Claim(ctx, d.ID, 1, false); err != nil || ok {
		t.Fatalf("second claim while pending: ok=%v err=%v", ok, err)
	}

	first.Stage = dispatch.StageSendingRichEmail
	first.Outcome = dispatch.OutcomeSent
	first.ReceiptURL = "https://cdn.example/r.pdf"
	first.UpdatedAt = time.Now()
	if err := ds.Record(ctx, first); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if _, ok, _ := ds.Claim(ctx, d.ID, 1, false); ok {
		t.Error("sent run re-claimed without force")
	}
	forced, ok, err := ds.Claim(ctx, d.ID, 1, true)
	if err != nil || !ok || forced.Runs != 2 || forced.ReceiptURL != "" {
		t.Errorf("forced claim: %+v ok=%v err=%v", forced, ok, err)
	}
}

func TestDispatchStore_RecordAndGet(t *testing.T) {
	st, pool := newStore(t)
	ctx := context.Background()
	d := seedDonation(t, st, pool, "Education Support")
	ds := st.Dispatches(time.Minute)

	if _, err := ds.Get(ctx, d.ID); !errors.Is(err, dispatch.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	claimed, _, err := ds.Claim(ctx, d.ID, 1, false)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	claimed.Stage = dispatch.StageSendingSimpleEmail
	claimed.Outcome = dispatch.OutcomeDegraded
	claimed.Error = "asset: http upload: status 500"
	claimed.UpdatedAt = time.Now()
	if err := ds.Record(ctx, claimed); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, err := ds.Get(ctx, d.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Stage != dispatch.StageSendingSimpleEmail || got.Outcome != dispatch.OutcomeDegraded {
		t.Errorf("got %s/%s", got.Stage, got.Outcome)
	}
	if len(got.History) != 2 {
		t.Errorf("history: got %d entries", len(got.History))
	}

	// A record from an older run must not overwrite.
	stale := claimed
	stale.Runs = 0
	stale.Outcome = dispatch.OutcomeFailed
	_ = ds.Record(ctx, stale)
	got, _ = ds.Get(ctx, d.ID)
	if got.Outcome != dispatch.OutcomeDegraded {
		t.Errorf("superseded record overwrote status: %s", got.Outcome)
	}
}

func TestListUndispatched(t *testing.T) {
	st, pool := newStore(t)
	ctx := context.Background()
	d := seedDonation(t, st, pool, "Education Support")

	if _, _, err := st.SetApproval(ctx, d.ID, true); err != nil {
		t.Fatalf("approve: %v", err)
	}

	contains := func() bool {
		list, err := st.ListUndispatched(ctx, time.Now().Add(-time.Minute), 1000)
		if err != nil {
			t.Fatalf("ListUndispatched: %v", err)
		}
		for _, x := range list {
			if x.ID == d.ID {
				return true
			}
		}
		return false
	}

	if !contains() {
		t.Fatal("approved donation without a dispatch should be listed")
	}
	if _, _, err := st.Dispatches(time.Minute).Claim(ctx, d.ID, 1, false); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if contains() {
		t.Error("freshly claimed donation should not be listed")
	}
}
