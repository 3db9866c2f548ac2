// Package worker runs receipt delivery in the background. The lifecycle
// service holds a worker.Enqueuer and calls Enqueue after an approval commits;
// it never waits on the concrete Runner.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nyashahama/community-donor-backend/internal/dispatch"
	"github.com/nyashahama/community-donor-backend/internal/donation"
)

// ─── ENQUEUER INTERFACE ───────────────────────────────────────────────────────

// Enqueuer is the narrow interface callers use to hand off a delivery. The
// concrete implementation is *Runner. In tests, any struct with an Enqueue
// method satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, req dispatch.Request) error
}

// ErrQueueFull is returned by Enqueue when the in-process channel is full.
var ErrQueueFull = errors.New("worker: queue is full")

// Dispatcher runs one delivery. *dispatch.Dispatcher satisfies it.
type Dispatcher interface {
	Run(ctx context.Context, req dispatch.Request) dispatch.Status
}

// Source lists approved donations whose current approval event has no
// finished or in-flight run. *store.Store satisfies it.
type Source interface {
	ListUndispatched(ctx context.Context, staleBefore time.Time, limit int) ([]donation.Donation, error)
}

// ─── RUNNER ───────────────────────────────────────────────────────────────────

// RunnerConfig holds tuning parameters for the Runner. Zero fields take the
// values from DefaultRunnerConfig.
type RunnerConfig struct {
	// Workers is the number of concurrent delivery goroutines. Default: 3.
	Workers int

	// PollInterval is how often the recovery poller looks for approvals that
	// never reached the channel, e.g. after a restart. Default: 30s.
	PollInterval time.Duration

	// JobTimeout bounds one whole delivery run. Default: 2 minutes.
	JobTimeout time.Duration

	// StaleAfter is how long a pending run may go without a status write
	// before the poller hands it out again. Default: 10 minutes.
	StaleAfter time.Duration

	// PollBatch caps how many donations one poll enqueues. Default: 50.
	PollBatch int
}

// DefaultRunnerConfig returns production defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Workers:      3,
		PollInterval: 30 * time.Second,
		JobTimeout:   2 * time.Minute,
		StaleAfter:   10 * time.Minute,
		PollBatch:    50,
	}
}

// Runner manages a pool of delivery goroutines fed by an in-process channel
// (fast path, used right after an approval) and by a database poller
// (recovery path). Deliveries are never retried automatically; a failed run
// stays failed until an admin approves or resends again.
type Runner struct {
	dispatcher Dispatcher
	source     Source
	cfg        RunnerConfig
	logger     *slog.Logger
	now        func() time.Time

	queue chan dispatch.Request
	wg    sync.WaitGroup
}

// NewRunner constructs a Runner. source may be nil to disable the poller.
// Call Start to begin processing.
func NewRunner(d Dispatcher, source Source, cfg RunnerConfig, logger *slog.Logger) *Runner {
	def := DefaultRunnerConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = def.JobTimeout
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = def.StaleAfter
	}
	if cfg.PollBatch <= 0 {
		cfg.PollBatch = def.PollBatch
	}

	return &Runner{
		dispatcher: d,
		source:     source,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		// Buffer = Workers*2 so Enqueue never blocks under normal load.
		queue: make(chan dispatch.Request, cfg.Workers*2),
	}
}

// Enqueue pushes req onto the in-process channel. When the channel is full it
// returns ErrQueueFull instead of blocking the caller; the poller picks the
// donation up later unless req was forced.
func (r *Runner) Enqueue(_ context.Context, req dispatch.Request) error {
	select {
	case r.queue <- req:
		r.logger.Info("worker: enqueued delivery",
			"donation_id", req.Donation.ID,
			"approval_seq", req.Donation.ApprovalSeq,
			"force", req.Force,
		)
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the worker pool and the poller. It blocks until ctx is
// cancelled and every goroutine has returned, which includes waiting for
// in-flight deliveries to finish. Call it in a goroutine from
// main:
//
//	go runner.Start(ctx)
func (r *Runner) Start(ctx context.Context) {
	r.logger.Info("worker: starting", "workers", r.cfg.Workers, "poll_interval", r.cfg.PollInterval)

	for i := range r.cfg.Workers {
		r.wg.Add(1)
		go r.work(ctx, i)
	}

	if r.source != nil {
		r.wg.Add(1)
		go r.poll(ctx)
	}

	r.wg.Wait()
	r.logger.Info("worker: stopped")
}

func (r *Runner) work(ctx context.Context, id int) {
	defer r.wg.Done()
	log := r.logger.With("worker_id", id)
	log.Debug("worker: goroutine started")

	for {
		select {
		case <-ctx.Done():
			log.Debug("worker: goroutine stopping")
			return
		case req := <-r.queue:
			if ctx.Err() != nil {
				// Unclaimed, so the poller picks it up after restart.
				log.Info("worker: shutting down, leaving delivery queued",
					"donation_id", req.Donation.ID,
					"approval_seq", req.Donation.ApprovalSeq,
					"force", req.Force,
				)
				return
			}
			r.run(ctx, req, log)
		}
	}
}

// run executes one delivery. Cancelling ctx stops the worker from taking new
// requests but does not abort a run already in progress; only JobTimeout
// bounds it.
func (r *Runner) run(ctx context.Context, req dispatch.Request, log *slog.Logger) {
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.JobTimeout)
	defer cancel()

	st := r.dispatcher.Run(jobCtx, req)
	log.Debug("worker: delivery returned",
		"donation_id", req.Donation.ID,
		"stage", st.Stage,
		"outcome", st.Outcome,
	)
}

func (r *Runner) poll(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	// Run once immediately on startup to pick up anything from before restart.
	r.pollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.pollOnce(ctx)
		}
	}
}

func (r *Runner) pollOnce(ctx context.Context) {
	ds, err := r.source.ListUndispatched(ctx, r.now().Add(-r.cfg.StaleAfter), r.cfg.PollBatch)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Error("worker: poll failed", "error", err)
		}
		return
	}
	for _, d := range ds {
		select {
		case r.queue <- dispatch.Request{Donation: d}:
			r.logger.Debug("worker: poller enqueued delivery", "donation_id", d.ID, "approval_seq", d.ApprovalSeq)
		default:
			// Queue full; next poll cycle.
			return
		}
	}
}
