package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a process-local StatusStore for tests and the CLI.
type MemoryStore struct {
	mu         sync.Mutex
	statuses   map[uuid.UUID]Status
	staleAfter time.Duration
	now        func() time.Time
}

// NewMemoryStore returns an empty MemoryStore. Pending runs older than
// staleAfter may be reclaimed; zero disables takeover.
func NewMemoryStore(staleAfter time.Duration) *MemoryStore {
	return &MemoryStore{
		statuses:   make(map[uuid.UUID]Status),
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

func (m *MemoryStore) Claim(_ context.Context, donationID uuid.UUID, seq int64, force bool) (Status, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	prev, found := m.statuses[donationID]
	if found && !prev.Claimable(seq, force, now, m.staleAfter) {
		return prev, false, nil
	}

	st := Status{
		DonationID:  donationID,
		ApprovalSeq: seq,
		Stage:       StageStart,
		Outcome:     OutcomePending,
		Runs:        prev.Runs + 1,
		StartedAt:   now,
		UpdatedAt:   now,
	}
	st.History = []Transition{st.Entry()}
	m.statuses[donationID] = st
	return st, true, nil
}

func (m *MemoryStore) Record(_ context.Context, st Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.statuses[st.DonationID]
	if !ok || cur.ApprovalSeq != st.ApprovalSeq || cur.Runs != st.Runs {
		// A newer run owns the record.
		return nil
	}
	st.History = append(append([]Transition(nil), cur.History...), st.Entry())
	m.statuses[st.DonationID] = st
	return nil
}

func (m *MemoryStore) Get(_ context.Context, donationID uuid.UUID) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.statuses[donationID]
	if !ok {
		return Status{}, ErrNotFound
	}
	return st, nil
}
