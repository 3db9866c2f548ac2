// Package api implements the HTTP layer for the donation service. Handlers are
// methods on *Server. Each handler file is responsible for one route group
// and only uses the dependencies it needs.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/nyashahama/community-donor-backend/internal/donation"
	"github.com/nyashahama/community-donor-backend/internal/lifecycle"
	"github.com/nyashahama/community-donor-backend/internal/receipt"
	stripeinternal "github.com/nyashahama/community-donor-backend/internal/stripe"
)

// Config holds values read from environment variables at startup.
type Config struct {
	// Env is "production", "staging", or "development".
	Env string

	// CORSAllowedOrigin is echoed in production. Outside production any
	// origin is allowed.
	CORSAllowedOrigin string

	// AdminJWTSecret verifies HS256 admin bearer tokens. Token issuance lives
	// in the admin console, not here.
	AdminJWTSecret string
}

// ─── DEPENDENCIES ────────────────────────────────────────────────────────────

// Lifecycle is the donation service the handlers drive. *lifecycle.Service
// satisfies it.
type Lifecycle interface {
	Create(ctx context.Context, f donation.Fields) (donation.Donation, error)
	Get(ctx context.Context, id uuid.UUID) (donation.Donation, error)
	MarkCompleted(ctx context.Context, id uuid.UUID) (donation.Donation, error)
	MarkFailed(ctx context.Context, id uuid.UUID) (donation.Donation, error)
	Approve(ctx context.Context, id uuid.UUID) (donation.Donation, error)
	Disapprove(ctx context.Context, id uuid.UUID) (donation.Donation, error)
	Resend(ctx context.Context, id uuid.UUID) (donation.Donation, error)
	ListPublic(ctx context.Context, limit, offset int) ([]donation.Public, error)
	Summary(ctx context.Context) ([]donation.CampaignTotal, error)
	DispatchStatus(ctx context.Context, id uuid.UUID) (lifecycle.DispatchView, error)
}

// Composer renders a receipt for admin download. *receipt.Composer satisfies
// it.
type Composer interface {
	Compose(d donation.Donation) (receipt.Receipt, error)
}

// Observer instruments the router. *metrics.Metrics satisfies it.
type Observer interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
}

// Pinger reports database reachability. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps are the Server's collaborators. Observer and DB may be nil.
type Deps struct {
	Lifecycle Lifecycle
	Composer  Composer
	Stripe    stripeinternal.Verifier
	Observer  Observer
	DB        Pinger
}

// ─── SERVER ──────────────────────────────────────────────────────────────────

// Server holds all shared dependencies.
type Server struct {
	donations Lifecycle
	composer  Composer
	stripe    stripeinternal.Verifier
	observer  Observer
	db        Pinger

	cfg    Config
	logger *slog.Logger
}

// NewServer constructs the Server and wires the chi router. The returned
// http.Handler is ready to pass to an http.Server.
func NewServer(deps Deps, cfg Config, logger *slog.Logger) http.Handler {
	s := &Server{
		donations: deps.Lifecycle,
		composer:  deps.Composer,
		stripe:    deps.Stripe,
		observer:  deps.Observer,
		db:        deps.DB,
		cfg:       cfg,
		logger:    logger,
	}
	return s.routes()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// ── Global middleware ─────────────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggerMiddleware)
	r.Use(middleware.Recoverer)
	if s.observer != nil {
		r.Use(s.observer.Middleware)
	}
	r.Use(s.corsMiddleware)
	r.Use(middleware.Timeout(30 * time.Second))

	// ── Ops ───────────────────────────────────────────────────────────────────
	r.Get("/healthz", s.handleHealthz)
	if s.observer != nil {
		r.Handle("/metrics", s.observer.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		// Public, no auth.
		r.Post("/donations", s.handleCreateDonation)
		r.Get("/donations", s.handleListDonations)
		r.Get("/donations/summary", s.handleSummary)

		// Payment gateway; the handler verifies the signature.
		r.Post("/webhooks/stripe", s.handleStripeWebhook)

		// Admin: bearer JWT with role=admin.
		r.Route("/admin/donations/{donationID}", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/", s.handleGetDonation)
			r.Post("/approve", s.handleApprove)
			r.Post("/disapprove", s.handleDisapprove)
			r.Post("/resend", s.handleResend)
			r.Post("/complete", s.handleMarkCompleted)
			r.Post("/fail", s.handleMarkFailed)
			r.Get("/dispatch", s.handleDispatchStatus)
			r.Get("/receipt.pdf", s.handleReceiptPDF)
		})
	})

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			s.logger.Warn("healthz: database unreachable", "error", err, logField(r))
			respondErr(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}
