// Package dispatch delivers a donor's receipt after approval. A run composes
// the receipt, publishes it and sends the "receipt ready" email; when the
// receipt cannot be composed or published it falls back once to a plain
// "donation approved" email. Every stage change is logged and persisted, and
// nothing is returned as an error to whoever triggered the approval.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/nyashahama/community-donor-backend/internal/asset"
	"github.com/nyashahama/community-donor-backend/internal/donation"
	"github.com/nyashahama/community-donor-backend/internal/email"
	"github.com/nyashahama/community-donor-backend/internal/receipt"
)

// ─── COLLABORATORS ───────────────────────────────────────────────────────────

// Composer builds the receipt for a donation snapshot. *receipt.Composer
// satisfies it.
type Composer interface {
	Compose(d donation.Donation) (receipt.Receipt, error)
}

// Metrics observes stage transitions and finished runs.
type Metrics interface {
	Transition(stage Stage)
	Finished(outcome Outcome, stage Stage, elapsed time.Duration)
}

// Events is told about every finished run.
type Events interface {
	DispatchFinished(ctx context.Context, st Status) error
}

type nopMetrics struct{}

func (nopMetrics) Transition(Stage) {}
func (nopMetrics) Finished(Outcome, Stage, time.Duration) {}

type nopEvents struct{}

func (nopEvents) DispatchFinished(context.Context, Status) error { return nil }

// ─── CONFIG ──────────────────────────────────────────────────────────────────

// Config is built once at process start.
type Config struct {
	// FromName is the sender display name passed to every template.
	FromName string

	// PublishTimeout bounds a single Publisher.Publish call. Default: 20s.
	PublishTimeout time.Duration

	// EmailTimeout bounds a single Sender.Send call. Default: 20s.
	EmailTimeout time.Duration
}

const (
	defaultCallTimeout = 20 * time.Second
	recordTimeout      = 5 * time.Second
)

// Deps are the dispatcher's collaborators. Metrics and Events may be nil.
type Deps struct {
	Composer  Composer
	Publisher asset.Publisher
	Sender    email.Sender
	Store     StatusStore

	// Archive receives the rendered receipt when publishing fails. The zero
	// value disables it.
	Archive asset.Archive

	Metrics Metrics
	Events  Events
}

// ─── DISPATCHER ──────────────────────────────────────────────────────────────

// Dispatcher runs the delivery state machine. It holds no per-run state and
// is safe for concurrent use; runs for different donations never interact.
type Dispatcher struct {
	deps   Deps
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a Dispatcher.
func New(deps Deps, cfg Config, logger *slog.Logger) *Dispatcher {
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaultCallTimeout
	}
	if cfg.EmailTimeout <= 0 {
		cfg.EmailTimeout = defaultCallTimeout
	}
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	if deps.Events == nil {
		deps.Events = nopEvents{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{deps: deps, cfg: cfg, logger: logger, now: time.Now}
}

// Request asks for one delivery of the snapshot Donation. Force re-sends even
// when this approval event already ended sent or degraded.
type Request struct {
	Donation donation.Donation
	Force    bool
}

// run carries the mutable state of one pipeline execution.
type run struct {
	d       *Dispatcher
	snap    donation.Donation
	st      Status
	log     *slog.Logger
	started time.Time
}

// Run executes the pipeline for req and returns the final status. When the
// run is refused because the same approval event was already handled, the
// stored status is returned unchanged.
//
//  1. Claim (donation id, approval seq) in the status store.
//  2. Compose the receipt. Failure → simple email.
//  3. Publish it. Failure → archive the bytes, simple email.
//  4. Send the receipt-ready email with the URL → sent, or failed.
//  5. Simple email → degraded, or failed.
//
// Run works only from req.Donation and never re-reads the donation, so a
// disapproval that lands mid-run does not stop delivery.
func (d *Dispatcher) Run(ctx context.Context, req Request) Status {
	snap := req.Donation
	log := d.logger.With("donation_id", snap.ID, "approval_seq", snap.ApprovalSeq)

	// ── 1. Claim ──────────────────────────────────────────────────────────────
	st, claimed, err := d.deps.Store.Claim(ctx, snap.ID, snap.ApprovalSeq, req.Force)
	if err != nil {
		log.Error("dispatch: claim failed", "error", err)
		return Status{DonationID: snap.ID, ApprovalSeq: snap.ApprovalSeq, Stage: StageStart, Error: err.Error()}
	}
	if !claimed {
		log.Info("dispatch: already handled, skipping",
			"stage", st.Stage,
			"outcome", st.Outcome,
			"stored_seq", st.ApprovalSeq,
		)
		return st
	}

	r := &run{d: d, snap: snap, st: st, log: log.With("run", st.Runs), started: d.now()}
	r.log.Info("dispatch: starting", "stage", StageStart, "force", req.Force, "status", snap.Status)
	d.deps.Metrics.Transition(StageStart)

	// ── 2. Compose ────────────────────────────────────────────────────────────
	r.enter(ctx, StageComposingReceipt)
	rec, err := d.deps.Composer.Compose(snap)
	if err != nil {
		r.fallback(err)
		return r.sendSimple(ctx)
	}
	r.st.ReceiptNo = rec.ReceiptNo

	// ── 3. Publish ────────────────────────────────────────────────────────────
	r.enter(ctx, StagePublishingAsset)
	link, err := r.publish(ctx, rec)
	if err != nil {
		r.fallback(err)
		r.archive(rec)
		return r.sendSimple(ctx)
	}
	r.st.ReceiptURL = link

	// ── 4. Rich email ─────────────────────────────────────────────────────────
	r.enter(ctx, StageSendingRichEmail)
	p := r.params()
	p[email.ParamReceiptURL] = link
	p[email.ParamReceiptNo] = rec.ReceiptNo
	if err := r.send(ctx, email.TemplateReceiptReady, p); err != nil {
		// A URL exists but was never communicated. No downgrade below this.
		r.log.Error("dispatch: receipt published but email failed",
			"stage", StageSendingRichEmail,
			"receipt_url", link,
			"error", err,
		)
		return r.finish(ctx, OutcomeFailed, err)
	}
	return r.finish(ctx, OutcomeSent, nil)
}

func (r *run) publish(ctx context.Context, rec receipt.Receipt) (string, error) {
	pctx, cancel := context.WithTimeout(ctx, r.d.cfg.PublishTimeout)
	defer cancel()

	link, err := r.d.deps.Publisher.Publish(pctx, asset.Upload{
		Filename:    rec.Filename,
		ContentType: "application/pdf",
		Body:        rec.PDF,
		Base64:      rec.Base64,
	})
	if err != nil {
		return "", err
	}
	if !usableURL(link) {
		return "", &asset.UploadError{Op: "publish", Err: fmt.Errorf("unusable url %q", link)}
	}
	return link, nil
}

func (r *run) archive(rec receipt.Receipt) {
	if !r.d.deps.Archive.Enabled() || len(rec.PDF) == 0 {
		return
	}
	p, err := r.d.deps.Archive.Save(asset.Upload{Filename: rec.Filename, Body: rec.PDF})
	if err != nil {
		r.log.Error("dispatch: archive unpublished receipt", "error", err)
		return
	}
	r.st.ArchivePath = p
	r.log.Info("dispatch: unpublished receipt archived", "path", p)
}

func (r *run) sendSimple(ctx context.Context) Status {
	r.enter(ctx, StageSendingSimpleEmail)
	if err := r.send(ctx, email.TemplateDonationApproved, r.params()); err != nil {
		r.log.Error("dispatch: fallback email failed", "stage", StageSendingSimpleEmail, "error", err)
		return r.finish(ctx, OutcomeFailed, err)
	}
	return r.finish(ctx, OutcomeDegraded, nil)
}

func (r *run) send(ctx context.Context, tpl email.Template, p email.Params) error {
	ectx, cancel := context.WithTimeout(ctx, r.d.cfg.EmailTimeout)
	defer cancel()

	res, err := r.d.deps.Sender.Send(ectx, tpl, p)
	if err != nil {
		return err
	}
	r.log.Debug("dispatch: email accepted", "template", tpl, "status", res.Status, "id", res.ID)
	return nil
}

func (r *run) params() email.Params {
	s := r.snap
	p := email.Params{
		email.ParamToEmail:   s.Email,
		email.ParamToName:    s.DonorName,
		email.ParamDonorName: s.DonorName,
		email.ParamAmount:    s.Amount.String(),
		email.ParamCampaign:  s.Campaign,
		email.ParamFromName:  r.d.cfg.FromName,
	}
	if s.Message != "" {
		p[email.ParamMessage] = s.Message
	}
	return p
}

// fallback records why the run left the receipt path.
func (r *run) fallback(err error) {
	r.st.Error = err.Error()

	attrs := []any{"stage", r.st.Stage, "error", err}
	var verr *receipt.ValidationError
	var uerr *asset.UploadError
	switch {
	case errors.As(err, &verr):
		attrs = append(attrs, "kind", "validation", "field", verr.Field)
	case errors.As(err, &uerr):
		attrs = append(attrs, "kind", "upload", "status_code", uerr.StatusCode)
	case errors.Is(err, context.DeadlineExceeded):
		attrs = append(attrs, "kind", "timeout")
	}
	r.log.Warn("dispatch: falling back to simple email", attrs...)
}

func (r *run) enter(ctx context.Context, stage Stage) {
	r.st.Stage = stage
	r.st.UpdatedAt = r.d.now()
	r.log.Info("dispatch: transition", "stage", stage)
	r.d.deps.Metrics.Transition(stage)
	r.record(ctx)
}

func (r *run) finish(ctx context.Context, outcome Outcome, err error) Status {
	r.st.Outcome = outcome
	r.st.UpdatedAt = r.d.now()
	if err != nil {
		r.st.Error = err.Error()
	}
	r.record(ctx)

	elapsed := r.d.now().Sub(r.started)
	r.d.deps.Metrics.Finished(outcome, r.st.Stage, elapsed)

	evCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := r.d.deps.Events.DispatchFinished(evCtx, r.st); err != nil {
		r.log.Warn("dispatch: publish event", "error", err)
	}

	r.log.Info("dispatch: finished",
		"stage", r.st.Stage,
		"outcome", outcome,
		"receipt_no", r.st.ReceiptNo,
		"duration", elapsed,
	)
	return r.st
}

// record persists the current status. It survives cancellation of ctx so a
// run that timed out still leaves its last stage behind.
func (r *run) record(ctx context.Context) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := r.d.deps.Store.Record(rctx, r.st); err != nil {
		r.log.Error("dispatch: record status", "stage", r.st.Stage, "error", err)
	}
}

func usableURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "https" || u.Scheme == "http") && u.Host != ""
}
