// Package lifecycle is the state-transition surface for donations: creation,
// payment status changes, approval and the public read side. Approval is the
// only operation that triggers receipt delivery, and it never waits for it.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nyashahama/community-donor-backend/internal/dispatch"
	"github.com/nyashahama/community-donor-backend/internal/donation"
	"github.com/nyashahama/community-donor-backend/internal/worker"
)

// ─── DEPENDENCIES ────────────────────────────────────────────────────────────

// Repository is the donation persistence the service needs. *store.Store
// satisfies it.
type Repository interface {
	CreateDonation(ctx context.Context, d donation.Donation) (donation.Donation, error)
	GetDonation(ctx context.Context, id uuid.UUID) (donation.Donation, error)
	ListApproved(ctx context.Context, limit, offset int) ([]donation.Donation, error)
	Summary(ctx context.Context) ([]donation.CampaignTotal, error)
	SetApproval(ctx context.Context, id uuid.UUID, approved bool) (donation.Donation, bool, error)
	SetStatus(ctx context.Context, id uuid.UUID, to donation.Status) (donation.Donation, error)
}

// StatusReader reads dispatch results. dispatch.StatusStore satisfies it.
type StatusReader interface {
	Get(ctx context.Context, donationID uuid.UUID) (dispatch.Status, error)
}

// Metrics counts lifecycle actions.
type Metrics interface {
	Lifecycle(action string)
}

type nopMetrics struct{}

func (nopMetrics) Lifecycle(string) {}

// ─── ERRORS ──────────────────────────────────────────────────────────────────

// ErrNotApproved is returned by Resend for a donation that is not approved.
var ErrNotApproved = errors.New("lifecycle: donation is not approved")

// Actions reported to Metrics.
const (
	ActionCreate     = "create"
	ActionComplete   = "complete"
	ActionFail       = "fail"
	ActionApprove    = "approve"
	ActionDisapprove = "disapprove"
	ActionResend     = "resend"
)

// ─── SERVICE ─────────────────────────────────────────────────────────────────

// Config tunes the service.
type Config struct {
	// CompleteOnSubmit creates donations as completed instead of pending, for
	// intake channels where submission means the money has been received.
	CompleteOnSubmit bool

	// MaxPageSize caps public listings. Default: 100.
	MaxPageSize int
}

// Service implements the lifecycle operations.
type Service struct {
	repo     Repository
	queue    worker.Enqueuer
	statuses StatusReader
	metrics  Metrics
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

// New constructs a Service. metrics may be nil.
func New(repo Repository, queue worker.Enqueuer, statuses StatusReader, metrics Metrics, cfg Config, logger *slog.Logger) *Service {
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = 100
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Service{
		repo:     repo,
		queue:    queue,
		statuses: statuses,
		metrics:  metrics,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Create validates f and stores a new, unapproved donation. A transaction id
// is generated when f has none. Gateway-supplied records may lack donor
// contact details and are stored as completed.
func (s *Service) Create(ctx context.Context, f donation.Fields) (donation.Donation, error) {
	f = f.Normalize()
	if err := f.Validate(); err != nil {
		return donation.Donation{}, err
	}

	txn := f.TransactionID
	if txn == "" {
		txn = donation.NewTransactionID(s.now())
	}
	status := donation.StatusPending
	if s.cfg.CompleteOnSubmit || f.GatewaySupplied {
		// Gateways only push records for payments that already succeeded.
		status = donation.StatusCompleted
	}

	d, err := s.repo.CreateDonation(ctx, donation.Donation{
		DonorName:     f.DonorName,
		Email:         f.Email,
		Phone:         f.Phone,
		Address:       f.Address,
		Amount:        f.Amount,
		Campaign:      f.Campaign,
		PaymentMethod: f.PaymentMethod,
		TransactionID: txn,
		Status:        status,
		Message:       f.Message,
		IsAnonymous:   f.IsAnonymous,
	})
	if err != nil {
		return donation.Donation{}, fmt.Errorf("lifecycle: create: %w", err)
	}

	s.metrics.Lifecycle(ActionCreate)
	s.logger.Info("lifecycle: donation created",
		"donation_id", d.ID,
		"transaction_id", d.TransactionID,
		"status", d.Status,
		"gateway", f.GatewaySupplied,
	)
	return d, nil
}

// Get returns a donation with full donor details, for admin use.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (donation.Donation, error) {
	return s.repo.GetDonation(ctx, id)
}

// MarkCompleted records a successful payment. It does not notify anyone.
func (s *Service) MarkCompleted(ctx context.Context, id uuid.UUID) (donation.Donation, error) {
	return s.setStatus(ctx, id, donation.StatusCompleted, ActionComplete)
}

// MarkFailed records a failed payment. It does not notify anyone.
func (s *Service) MarkFailed(ctx context.Context, id uuid.UUID) (donation.Donation, error) {
	return s.setStatus(ctx, id, donation.StatusFailed, ActionFail)
}

func (s *Service) setStatus(ctx context.Context, id uuid.UUID, to donation.Status, action string) (donation.Donation, error) {
	d, err := s.repo.SetStatus(ctx, id, to)
	if err != nil {
		return donation.Donation{}, err
	}
	s.metrics.Lifecycle(action)
	s.logger.Info("lifecycle: status set", "donation_id", id, "status", to)
	return d, nil
}

// Approve marks the donation approved and queues receipt delivery for the
// snapshot just written. It returns once the write has committed; delivery
// problems never surface here.
//
// Approving an already-approved donation writes nothing and queues the same
// approval event again, which the dispatcher ignores unless the previous run
// failed.
func (s *Service) Approve(ctx context.Context, id uuid.UUID) (donation.Donation, error) {
	d, changed, err := s.repo.SetApproval(ctx, id, true)
	if err != nil {
		return donation.Donation{}, err
	}
	s.metrics.Lifecycle(ActionApprove)
	log := s.logger.With("donation_id", id, "approval_seq", d.ApprovalSeq)
	log.Info("lifecycle: approved", "changed", changed, "status", d.Status)

	if err := s.queue.Enqueue(ctx, dispatch.Request{Donation: d}); err != nil {
		// The recovery poller lists approved donations with no dispatch run.
		log.Warn("lifecycle: enqueue failed, leaving to poller", "error", err)
	}
	return d, nil
}

// Disapprove hides the donation from public listings. An email already sent
// or in flight is not recalled.
func (s *Service) Disapprove(ctx context.Context, id uuid.UUID) (donation.Donation, error) {
	d, changed, err := s.repo.SetApproval(ctx, id, false)
	if err != nil {
		return donation.Donation{}, err
	}
	s.metrics.Lifecycle(ActionDisapprove)
	s.logger.Info("lifecycle: disapproved", "donation_id", id, "changed", changed)
	return d, nil
}

// Resend forces a new delivery for the current approval event.
func (s *Service) Resend(ctx context.Context, id uuid.UUID) (donation.Donation, error) {
	d, err := s.repo.GetDonation(ctx, id)
	if err != nil {
		return donation.Donation{}, err
	}
	if !d.Approved {
		return donation.Donation{}, ErrNotApproved
	}
	if err := s.queue.Enqueue(ctx, dispatch.Request{Donation: d, Force: true}); err != nil {
		return donation.Donation{}, fmt.Errorf("lifecycle: resend: %w", err)
	}
	s.metrics.Lifecycle(ActionResend)
	s.logger.Info("lifecycle: resend queued", "donation_id", id, "approval_seq", d.ApprovalSeq)
	return d, nil
}

// ─── READ SIDE ───────────────────────────────────────────────────────────────

// ListPublic returns approved donations with anonymous donors redacted.
func (s *Service) ListPublic(ctx context.Context, limit, offset int) ([]donation.Public, error) {
	if limit <= 0 || limit > s.cfg.MaxPageSize {
		limit = s.cfg.MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	ds, err := s.repo.ListApproved(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]donation.Public, 0, len(ds))
	for _, d := range ds {
		// Repositories already filter; this keeps the invariant local.
		if !d.Approved {
			continue
		}
		out = append(out, donation.Project(d))
	}
	return out, nil
}

// Summary returns per-campaign totals over approved donations.
func (s *Service) Summary(ctx context.Context) ([]donation.CampaignTotal, error) {
	return s.repo.Summary(ctx)
}

// DispatchView is the admin-facing delivery badge.
type DispatchView struct {
	Stage     dispatch.Stage   `json:"stage"`
	Outcome   dispatch.Outcome `json:"outcome"`
	Timestamp time.Time        `json:"timestamp"`
	Approved  bool             `json:"approved"`

	// Detail is the full stored status; nil before the first run starts.
	Detail *dispatch.Status `json:"detail,omitempty"`
}

// DispatchStatus reports where delivery of the donation's receipt stands. An
// approved donation whose run has not started yet reports Start/pending.
// dispatch.ErrNotFound is returned for a donation never approved.
func (s *Service) DispatchStatus(ctx context.Context, id uuid.UUID) (DispatchView, error) {
	d, err := s.repo.GetDonation(ctx, id)
	if err != nil {
		return DispatchView{}, err
	}

	st, err := s.statuses.Get(ctx, id)
	switch {
	case err == nil && st.ApprovalSeq >= d.ApprovalSeq:
		return DispatchView{
			Stage:     st.Stage,
			Outcome:   st.Outcome,
			Timestamp: st.UpdatedAt,
			Approved:  d.Approved,
			Detail:    &st,
		}, nil
	case err != nil && !errors.Is(err, dispatch.ErrNotFound):
		return DispatchView{}, err
	}

	// No run for the current approval event yet.
	if d.ApprovalSeq == 0 {
		return DispatchView{}, dispatch.ErrNotFound
	}
	return DispatchView{
		Stage:     dispatch.StageStart,
		Outcome:   dispatch.OutcomePending,
		Timestamp: d.UpdatedAt,
		Approved:  d.Approved,
	}, nil
}
