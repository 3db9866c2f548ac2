package lifecycle_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nyashahama/community-donor-backend/internal/donation"
)

// memRepo is an in-memory lifecycle.Repository.
type memRepo struct {
	mu  sync.Mutex
	ds  map[uuid.UUID]donation.Donation
	seq int
	at  map[uuid.UUID]int
}

func newMemRepo() *memRepo {
	return &memRepo{ds: map[uuid.UUID]donation.Donation{}, at: map[uuid.UUID]int{}}
}

func (m *memRepo) CreateDonation(_ context.Context, d donation.Donation) (donation.Donation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.ID = uuid.New()
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt
	m.ds[d.ID] = d
	m.at[d.ID] = m.seq
	m.seq++
	return d, nil
}

func (m *memRepo) GetDonation(_ context.Context, id uuid.UUID) (donation.Donation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.ds[id]
	if !ok {
		return donation.Donation{}, donation.ErrNotFound
	}
	return d, nil
}

func (m *memRepo) ordered() []donation.Donation {
	out := make([]donation.Donation, 0, len(m.ds))
	for _, d := range m.ds {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return m.at[out[i].ID] < m.at[out[j].ID] })
	return out
}

func (m *memRepo) ListApproved(_ context.Context, limit, offset int) ([]donation.Donation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []donation.Donation
	for _, d := range m.ordered() {
		if d.Approved {
			out = append(out, d)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRepo) Summary(context.Context) ([]donation.CampaignTotal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return summarize(m.ordered()), nil
}

func (m *memRepo) SetApproval(_ context.Context, id uuid.UUID, approved bool) (donation.Donation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.ds[id]
	if !ok {
		return donation.Donation{}, false, donation.ErrNotFound
	}
	if d.Approved == approved {
		return d, false, nil
	}
	d.Approved = approved
	if approved {
		d.ApprovalSeq++
	}
	d.UpdatedAt = time.Now()
	m.ds[id] = d
	return d, true, nil
}

func (m *memRepo) SetStatus(_ context.Context, id uuid.UUID, to donation.Status) (donation.Donation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.ds[id]
	if !ok {
		return donation.Donation{}, donation.ErrNotFound
	}
	if !d.Status.CanTransition(to) {
		return donation.Donation{}, donation.ErrInvalidTransition
	}
	d.Status = to
	m.ds[id] = d
	return d, nil
}

// summarize mirrors the SQL aggregate: approved donations per campaign, in
// first-seen order.
func summarize(ds []donation.Donation) []donation.CampaignTotal {
	index := make(map[string]int)
	var out []donation.CampaignTotal
	for _, d := range ds {
		if !d.Approved {
			continue
		}
		i, ok := index[d.Campaign]
		if !ok {
			i = len(out)
			index[d.Campaign] = i
			out = append(out, donation.CampaignTotal{Campaign: d.Campaign, Total: decimal.Zero})
		}
		out[i].Count++
		out[i].Total = out[i].Total.Add(d.Amount)
	}
	return out
}
