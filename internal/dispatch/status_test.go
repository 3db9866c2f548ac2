package dispatch_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nyashahama/community-donor-backend/internal/dispatch"
)

func TestStatusClaimable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fresh := now.Add(-10 * time.Second)
	old := now.Add(-time.Hour)

	tests := []struct {
		name  string
		prev  dispatch.Status
		seq   int64
		force bool
		want  bool
	}{
		{"newer event", dispatch.Status{ApprovalSeq: 1, Outcome: dispatch.OutcomeSent}, 2, false, true},
		{"older event", dispatch.Status{ApprovalSeq: 2, Outcome: dispatch.OutcomeFailed}, 1, false, false},
		{"older event forced", dispatch.Status{ApprovalSeq: 2, Outcome: dispatch.OutcomeSent}, 1, true, false},
		{"sent", dispatch.Status{ApprovalSeq: 1, Outcome: dispatch.OutcomeSent}, 1, false, false},
		{"sent forced", dispatch.Status{ApprovalSeq: 1, Outcome: dispatch.OutcomeSent}, 1, true, true},
		{"degraded", dispatch.Status{ApprovalSeq: 1, Outcome: dispatch.OutcomeDegraded}, 1, false, false},
		{"degraded forced", dispatch.Status{ApprovalSeq: 1, Outcome: dispatch.OutcomeDegraded}, 1, true, true},
		{"failed", dispatch.Status{ApprovalSeq: 1, Outcome: dispatch.OutcomeFailed}, 1, false, true},
		{"pending fresh", dispatch.Status{ApprovalSeq: 1, Outcome: dispatch.OutcomePending, UpdatedAt: fresh}, 1, false, false},
		{"pending fresh forced", dispatch.Status{ApprovalSeq: 1, Outcome: dispatch.OutcomePending, UpdatedAt: fresh}, 1, true, false},
		{"pending stale", dispatch.Status{ApprovalSeq: 1, Outcome: dispatch.OutcomePending, UpdatedAt: old}, 1, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.prev.Claimable(tt.seq, tt.force, now, time.Minute); got != tt.want {
				t.Errorf("Claimable = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatusClaimable_NoStaleTakeoverWhenDisabled(t *testing.T) {
	prev := dispatch.Status{ApprovalSeq: 1, Outcome: dispatch.OutcomePending, UpdatedAt: time.Unix(0, 0)}
	if prev.Claimable(1, false, time.Now(), 0) {
		t.Error("zero staleAfter must never take over a pending run")
	}
}

func TestMemoryStore_ClaimRecordGet(t *testing.T) {
	ctx := context.Background()
	s := dispatch.NewMemoryStore(time.Minute)
	id := uuid.New()

	if _, err := s.Get(ctx, id); !errors.Is(err, dispatch.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	st, ok, err := s.Claim(ctx, id, 1, false)
	if err != nil || !ok {
		t.Fatalf("first claim: ok=%v err=%v", ok, err)
	}
	if st.Outcome != dispatch.OutcomePending || st.Stage != dispatch.StageStart || st.Runs != 1 {
		t.Errorf("claimed status: got %+v", st)
	}

	if _, ok, _ := s.Claim(ctx, id, 1, false); ok {
		t.Error("second claim on a pending run should be refused")
	}

	st.Outcome = dispatch.OutcomeSent
	st.Stage = dispatch.StageSendingRichEmail
	if err := s.Record(ctx, st); err != nil {
		t.Fatalf("Record: %v", err)
	}
	got, err := s.Get(ctx, id)
	if err != nil || got.Outcome != dispatch.OutcomeSent {
		t.Errorf("Get after Record: %+v, %v", got, err)
	}
	if len(got.History) != 2 || got.History[0].Stage != dispatch.StageStart || got.History[1].Outcome != dispatch.OutcomeSent {
		t.Errorf("history: got %+v", got.History)
	}
}

func TestMemoryStore_RecordFromSupersededRunIgnored(t *testing.T) {
	ctx := context.Background()
	s := dispatch.NewMemoryStore(time.Minute)
	id := uuid.New()

	old, _, _ := s.Claim(ctx, id, 1, false)
	if _, ok, _ := s.Claim(ctx, id, 2, false); !ok {
		t.Fatal("newer approval event should claim")
	}

	old.Outcome = dispatch.OutcomeFailed
	_ = s.Record(ctx, old)

	got, _ := s.Get(ctx, id)
	if got.ApprovalSeq != 2 || got.Outcome != dispatch.OutcomePending {
		t.Errorf("superseded run overwrote status: %+v", got)
	}
}
