package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nyashahama/community-donor-backend/internal/dispatch"
	"github.com/nyashahama/community-donor-backend/internal/donation"
	"github.com/nyashahama/community-donor-backend/internal/lifecycle"
	"github.com/nyashahama/community-donor-backend/internal/store"
)

// ─── CONTEXT KEYS ─────────────────────────────────────────────────────────────

type contextKey string

const ctxKeyAdmin contextKey = "admin_subject"

// RoleAdmin is the role claim required on admin routes.
const RoleAdmin = "admin"

// ─── ADMIN AUTH ───────────────────────────────────────────────────────────────

// requireAdmin validates the Authorization bearer token: HS256, signed with
// AdminJWTSecret, unexpired, carrying role=admin. The token subject is stored
// in the request context for audit logging.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	secret := []byte(s.cfg.AdminJWTSecret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			respondErr(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims := jwt.MapClaims{}
		tok, err := parser.ParseWithClaims(strings.TrimSpace(raw), claims, func(*jwt.Token) (any, error) {
			return secret, nil
		})
		if err != nil || !tok.Valid {
			respondErr(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		if role, _ := claims["role"].(string); role != RoleAdmin {
			respondErr(w, http.StatusForbidden, "admin role required")
			return
		}

		sub, _ := claims.GetSubject()
		ctx := context.WithValue(r.Context(), ctxKeyAdmin, sub)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func adminSubject(r *http.Request) string {
	sub, _ := r.Context().Value(ctxKeyAdmin).(string)
	return sub
}

// ─── CORS ─────────────────────────────────────────────────────────────────────

// corsMiddleware handles preflight OPTIONS requests and sets CORS headers.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		allowed := origin
		if s.cfg.Env == "production" {
			allowed = s.cfg.CORSAllowedOrigin
		}

		w.Header().Set("Access-Control-Allow-Origin", allowed)
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ─── LOGGER MIDDLEWARE ────────────────────────────────────────────────────────

// loggerMiddleware logs each request with method, path, status, and duration.
func (s *Server) loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// ─── RESPONSE HELPERS ─────────────────────────────────────────────────────────

// respond writes a JSON body with the given status code.
func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// respondErr writes a standard JSON error envelope.
func respondErr(w http.ResponseWriter, status int, message string) {
	respond(w, status, map[string]string{"error": message})
}

// respondInternalErr logs an unexpected error and returns a 500 to the client
// without leaking internal details.
func (s *Server) respondInternalErr(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("internal error",
		"error", err,
		"path", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()),
	)
	respondErr(w, http.StatusInternalServerError, "internal server error")
}

// respondDomainErr maps lifecycle and store sentinels to status codes and
// falls back to a 500.
func (s *Server) respondDomainErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, donation.ErrNotFound):
		respondErr(w, http.StatusNotFound, "donation not found")
	case errors.Is(err, dispatch.ErrNotFound):
		respondErr(w, http.StatusNotFound, "no receipt delivery for this donation")
	case errors.Is(err, donation.ErrInvalid):
		respondErr(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, donation.ErrInvalidTransition):
		respondErr(w, http.StatusConflict, "status change not allowed")
	case errors.Is(err, lifecycle.ErrNotApproved):
		respondErr(w, http.StatusConflict, "donation is not approved")
	case errors.Is(err, store.ErrDuplicateTransaction):
		respondErr(w, http.StatusConflict, "transaction id already recorded")
	default:
		s.respondInternalErr(w, r, err)
	}
}

// ─── REQUEST PARSING HELPERS ─────────────────────────────────────────────────

// decode JSON-decodes r.Body into dst. Returns false and writes 400 if the
// body is missing, malformed, or too large. Callers should return immediately
// on false.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB max
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondErr(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// donationID parses the {donationID} URL parameter. Returns false and writes
// 400 when it is not a UUID.
func donationID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "donationID"))
	if err != nil {
		respondErr(w, http.StatusBadRequest, "invalid donation id")
		return uuid.Nil, false
	}
	return id, true
}

// logField returns a slog.Attr using the request ID for correlation.
func logField(r *http.Request) slog.Attr {
	return slog.String("request_id", middleware.GetReqID(r.Context()))
}
