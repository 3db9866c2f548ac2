package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nyashahama/community-donor-backend/internal/api"
	"github.com/nyashahama/community-donor-backend/internal/dispatch"
	"github.com/nyashahama/community-donor-backend/internal/donation"
	"github.com/nyashahama/community-donor-backend/internal/lifecycle"
	"github.com/nyashahama/community-donor-backend/internal/receipt"
	"github.com/nyashahama/community-donor-backend/internal/store"
	stripeinternal "github.com/nyashahama/community-donor-backend/internal/stripe"
)

const testSecret = "test-admin-secret"

// ─── STUBS ────────────────────────────────────────────────────────────────────

// stubLifecycle satisfies api.Lifecycle with in-memory state.
type stubLifecycle struct {
	api.Lifecycle // embedded to panic on unimplemented methods

	donations map[uuid.UUID]donation.Donation
	created   []donation.Fields
	actions   []string
	public    []donation.Public
	totals    []donation.CampaignTotal
	view      lifecycle.DispatchView
	err       error

	listLimit, listOffset int
}

func newStubLifecycle() *stubLifecycle {
	return &stubLifecycle{donations: map[uuid.UUID]donation.Donation{}}
}

func (l *stubLifecycle) add(d donation.Donation) donation.Donation {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	l.donations[d.ID] = d
	return d
}

func (l *stubLifecycle) get(id uuid.UUID) (donation.Donation, error) {
	if l.err != nil {
		return donation.Donation{}, l.err
	}
	d, ok := l.donations[id]
	if !ok {
		return donation.Donation{}, donation.ErrNotFound
	}
	return d, nil
}

func (l *stubLifecycle) Create(_ context.Context, f donation.Fields) (donation.Donation, error) {
	l.created = append(l.created, f)
	if l.err != nil {
		return donation.Donation{}, l.err
	}
	return l.add(donation.Donation{
		DonorName:     f.DonorName,
		Amount:        f.Amount,
		TransactionID: "TXN1",
		Status:        donation.StatusPending,
	}), nil
}

func (l *stubLifecycle) Get(_ context.Context, id uuid.UUID) (donation.Donation, error) {
	return l.get(id)
}

func (l *stubLifecycle) record(action string, id uuid.UUID, mutate func(*donation.Donation)) (donation.Donation, error) {
	l.actions = append(l.actions, action)
	d, err := l.get(id)
	if err != nil {
		return d, err
	}
	mutate(&d)
	l.donations[id] = d
	return d, nil
}

func (l *stubLifecycle) MarkCompleted(_ context.Context, id uuid.UUID) (donation.Donation, error) {
	return l.record("complete", id, func(d *donation.Donation) { d.Status = donation.StatusCompleted })
}

func (l *stubLifecycle) MarkFailed(_ context.Context, id uuid.UUID) (donation.Donation, error) {
	return l.record("fail", id, func(d *donation.Donation) { d.Status = donation.StatusFailed })
}

func (l *stubLifecycle) Approve(_ context.Context, id uuid.UUID) (donation.Donation, error) {
	return l.record("approve", id, func(d *donation.Donation) {
		if !d.Approved {
			d.ApprovalSeq++
		}
		d.Approved = true
	})
}

func (l *stubLifecycle) Disapprove(_ context.Context, id uuid.UUID) (donation.Donation, error) {
	return l.record("disapprove", id, func(d *donation.Donation) { d.Approved = false })
}

func (l *stubLifecycle) Resend(_ context.Context, id uuid.UUID) (donation.Donation, error) {
	return l.record("resend", id, func(*donation.Donation) {})
}

func (l *stubLifecycle) ListPublic(_ context.Context, limit, offset int) ([]donation.Public, error) {
	l.listLimit, l.listOffset = limit, offset
	return l.public, l.err
}

func (l *stubLifecycle) Summary(context.Context) ([]donation.CampaignTotal, error) {
	return l.totals, l.err
}

func (l *stubLifecycle) DispatchStatus(_ context.Context, id uuid.UUID) (lifecycle.DispatchView, error) {
	if _, err := l.get(id); err != nil {
		return lifecycle.DispatchView{}, err
	}
	if l.view.Outcome == "" {
		return lifecycle.DispatchView{}, dispatch.ErrNotFound
	}
	return l.view, nil
}

// stubVerifier returns a fixed event or error.
type stubVerifier struct {
	event   stripeinternal.Event
	err     error
	payload []byte
	sig     string
}

func (v *stubVerifier) VerifyWebhook(payload []byte, sig string) (stripeinternal.Event, error) {
	v.payload, v.sig = payload, sig
	return v.event, v.err
}

type stubComposer struct {
	err error
}

func (c *stubComposer) Compose(d donation.Donation) (receipt.Receipt, error) {
	if c.err != nil {
		return receipt.Receipt{}, c.err
	}
	return receipt.Receipt{
		ReceiptNo: "ABC123",
		Filename:  "HOPE_Receipt_ABC123_Asha.pdf",
		PDF:       []byte("%PDF-1.3 stub"),
	}, nil
}

type stubPinger struct{ err error }

func (p stubPinger) PingContext(context.Context) error { return p.err }

// ─── HELPERS ─────────────────────────────────────────────────────────────────

type testDeps struct {
	life     *stubLifecycle
	verifier *stubVerifier
	composer *stubComposer
	handler  http.Handler
}

func newTestServer(t *testing.T, cfgOverrides ...func(*api.Config)) *testDeps {
	t.Helper()

	deps := &testDeps{
		life:     newStubLifecycle(),
		verifier: &stubVerifier{},
		composer: &stubComposer{},
	}
	cfg := api.Config{
		Env:               "development",
		CORSAllowedOrigin: "https://donate.example.org",
		AdminJWTSecret:    testSecret,
	}
	for _, fn := range cfgOverrides {
		fn(&cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	deps.handler = api.NewServer(api.Deps{
		Lifecycle: deps.life,
		Composer:  deps.composer,
		Stripe:    deps.verifier,
	}, cfg, logger)
	return deps
}

func adminToken(t *testing.T, secret, role string, ttl time.Duration) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "admin@example.org",
		"role": role,
		"exp":  time.Now().Add(ttl).Unix(),
	})
	s, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func adminHeaders(t *testing.T) map[string]string {
	return map[string]string{"Authorization": "Bearer " + adminToken(t, testSecret, "admin", time.Hour)}
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var bodyReader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		bodyReader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		bodyReader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(dst); err != nil {
		t.Fatalf("decode response body: %v (raw: %s)", err, rr.Body.String())
	}
}

// ─── GET /healthz ─────────────────────────────────────────────────────────────

func TestHealthz(t *testing.T) {
	deps := newTestServer(t)
	rr := doRequest(t, deps.handler, http.MethodGet, "/healthz", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestHealthz_DatabaseDown(t *testing.T) {
	h := api.NewServer(api.Deps{
		Lifecycle: newStubLifecycle(),
		DB:        stubPinger{err: errors.New("connection refused")},
	}, api.Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	rr := doRequest(t, h, http.MethodGet, "/healthz", nil, nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

// ─── POST /api/donations ──────────────────────────────────────────────────────

func TestCreateDonation_Created(t *testing.T) {
	deps := newTestServer(t)
	rr := doRequest(t, deps.handler, http.MethodPost, "/api/donations", map[string]any{
		"donor_name":   "Asha Rao",
		"email":        "asha@example.org",
		"amount":       "2500",
		"campaign":     "Clean Water",
		"is_anonymous": true,
	}, nil)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		ID            string `json:"id"`
		TransactionID string `json:"transaction_id"`
		Status        string `json:"status"`
	}
	decodeJSON(t, rr, &resp)
	if resp.ID == "" || resp.TransactionID != "TXN1" || resp.Status != "pending" {
		t.Errorf("response: %+v", resp)
	}

	f := deps.life.created[0]
	if !f.Amount.Equal(decimal.NewFromInt(2500)) || !f.IsAnonymous || f.GatewaySupplied {
		t.Errorf("fields passed to lifecycle: %+v", f)
	}
}

func TestCreateDonation_ValidationError(t *testing.T) {
	deps := newTestServer(t)
	deps.life.err = errors.Join(errors.New("x"), donation.ErrInvalid)

	rr := doRequest(t, deps.handler, http.MethodPost, "/api/donations",
		map[string]any{"donor_name": "A", "amount": 0}, nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
}

func TestCreateDonation_BadJSON(t *testing.T) {
	deps := newTestServer(t)
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"donor_name":`},
		{"unknown field", `{"approved": true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, deps.handler, http.MethodPost, "/api/donations", tt.body, nil)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rr.Code)
			}
		})
	}
	if len(deps.life.created) != 0 {
		t.Error("lifecycle should not be called for a bad body")
	}
}

// ─── GET /api/donations ───────────────────────────────────────────────────────

func TestListDonations(t *testing.T) {
	deps := newTestServer(t)
	deps.life.public = []donation.Public{{ID: "1", DonorName: donation.AnonymousName, Amount: decimal.NewFromInt(100)}}

	rr := doRequest(t, deps.handler, http.MethodGet, "/api/donations?limit=10&offset=20", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp struct {
		Donations []donation.Public `json:"donations"`
	}
	decodeJSON(t, rr, &resp)
	if len(resp.Donations) != 1 || resp.Donations[0].DonorName != donation.AnonymousName {
		t.Errorf("donations: %+v", resp.Donations)
	}
	if deps.life.listLimit != 10 || deps.life.listOffset != 20 {
		t.Errorf("paging: limit=%d offset=%d", deps.life.listLimit, deps.life.listOffset)
	}
}

func TestListDonations_EmptyIsArray(t *testing.T) {
	deps := newTestServer(t)
	rr := doRequest(t, deps.handler, http.MethodGet, "/api/donations", nil, nil)
	if !strings.Contains(rr.Body.String(), `"donations":[]`) {
		t.Errorf("expected empty array, got %s", rr.Body.String())
	}
}

func TestListDonations_BadLimit(t *testing.T) {
	deps := newTestServer(t)
	rr := doRequest(t, deps.handler, http.MethodGet, "/api/donations?limit=-1", nil, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestSummary(t *testing.T) {
	deps := newTestServer(t)
	deps.life.totals = []donation.CampaignTotal{{Campaign: "Clean Water", Count: 2, Total: decimal.NewFromInt(3000)}}

	rr := doRequest(t, deps.handler, http.MethodGet, "/api/donations/summary", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp struct {
		Campaigns []donation.CampaignTotal `json:"campaigns"`
	}
	decodeJSON(t, rr, &resp)
	if len(resp.Campaigns) != 1 || resp.Campaigns[0].Count != 2 {
		t.Errorf("campaigns: %+v", resp.Campaigns)
	}
}

// ─── ADMIN AUTH ───────────────────────────────────────────────────────────────

func TestAdmin_Auth(t *testing.T) {
	deps := newTestServer(t)
	d := deps.life.add(donation.Donation{DonorName: "Asha"})
	path := "/api/admin/donations/" + d.ID.String()

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer not.a.jwt", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + adminToken(t, "other", "admin", time.Hour), http.StatusUnauthorized},
		{"expired", "Bearer " + adminToken(t, testSecret, "admin", -time.Minute), http.StatusUnauthorized},
		{"wrong role", "Bearer " + adminToken(t, testSecret, "viewer", time.Hour), http.StatusForbidden},
		{"admin", "Bearer " + adminToken(t, testSecret, "admin", time.Hour), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := map[string]string{}
			if tt.header != "" {
				h["Authorization"] = tt.header
			}
			rr := doRequest(t, deps.handler, http.MethodGet, path, nil, h)
			if rr.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestAdmin_RejectsNoneAlgorithm(t *testing.T) {
	deps := newTestServer(t)
	d := deps.life.add(donation.Donation{DonorName: "Asha"})

	tok := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"role": "admin"})
	s, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	rr := doRequest(t, deps.handler, http.MethodGet, "/api/admin/donations/"+d.ID.String(), nil,
		map[string]string{"Authorization": "Bearer " + s})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
}

// ─── ADMIN ACTIONS ────────────────────────────────────────────────────────────

func TestAdmin_GetDonation(t *testing.T) {
	deps := newTestServer(t)
	d := deps.life.add(donation.Donation{DonorName: "Asha", Email: "asha@example.org", Amount: decimal.NewFromInt(2500)})

	rr := doRequest(t, deps.handler, http.MethodGet, "/api/admin/donations/"+d.ID.String(), nil, adminHeaders(t))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp struct {
		Email  string `json:"email"`
		Amount string `json:"amount"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Email != "asha@example.org" || resp.Amount != "2500" {
		t.Errorf("response: %+v", resp)
	}
}

func TestAdmin_Actions(t *testing.T) {
	tests := []struct {
		path   string
		action string
		want   int
	}{
		{"approve", "approve", http.StatusOK},
		{"disapprove", "disapprove", http.StatusOK},
		{"complete", "complete", http.StatusOK},
		{"fail", "fail", http.StatusOK},
		{"resend", "resend", http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			deps := newTestServer(t)
			d := deps.life.add(donation.Donation{DonorName: "Asha"})

			rr := doRequest(t, deps.handler, http.MethodPost,
				"/api/admin/donations/"+d.ID.String()+"/"+tt.path, nil, adminHeaders(t))
			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rr.Code, rr.Body.String())
			}
			if len(deps.life.actions) != 1 || deps.life.actions[0] != tt.action {
				t.Errorf("actions: %v", deps.life.actions)
			}
		})
	}
}

func TestAdmin_ApproveReturnsApprovedDonation(t *testing.T) {
	deps := newTestServer(t)
	d := deps.life.add(donation.Donation{DonorName: "Asha"})

	rr := doRequest(t, deps.handler, http.MethodPost, "/api/admin/donations/"+d.ID.String()+"/approve", nil, adminHeaders(t))
	var resp struct {
		Approved    bool  `json:"approved"`
		ApprovalSeq int64 `json:"approval_seq"`
	}
	decodeJSON(t, rr, &resp)
	if !resp.Approved || resp.ApprovalSeq != 1 {
		t.Errorf("response: %+v", resp)
	}
}

func TestAdmin_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", donation.ErrNotFound, http.StatusNotFound},
		{"invalid transition", donation.ErrInvalidTransition, http.StatusConflict},
		{"not approved", lifecycle.ErrNotApproved, http.StatusConflict},
		{"unexpected", errors.New("db gone"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := newTestServer(t)
			deps.life.err = tt.err
			rr := doRequest(t, deps.handler, http.MethodPost, "/api/admin/donations/"+uuid.NewString()+"/complete", nil, adminHeaders(t))
			if rr.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rr.Code)
			}
			if tt.want == http.StatusInternalServerError && strings.Contains(rr.Body.String(), "db gone") {
				t.Error("internal error detail leaked to client")
			}
		})
	}
}

func TestAdmin_InvalidID(t *testing.T) {
	deps := newTestServer(t)
	rr := doRequest(t, deps.handler, http.MethodPost, "/api/admin/donations/not-a-uuid/approve", nil, adminHeaders(t))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestAdmin_DispatchStatus(t *testing.T) {
	deps := newTestServer(t)
	d := deps.life.add(donation.Donation{DonorName: "Asha"})
	path := "/api/admin/donations/" + d.ID.String() + "/dispatch"

	rr := doRequest(t, deps.handler, http.MethodGet, path, nil, adminHeaders(t))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("before approval: expected 404, got %d", rr.Code)
	}

	deps.life.view = lifecycle.DispatchView{
		Stage:     dispatch.StageSendingSimpleEmail,
		Outcome:   dispatch.OutcomeDegraded,
		Timestamp: time.Now(),
	}
	rr = doRequest(t, deps.handler, http.MethodGet, path, nil, adminHeaders(t))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp struct {
		Stage   string `json:"stage"`
		Outcome string `json:"outcome"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Stage != string(dispatch.StageSendingSimpleEmail) || resp.Outcome != "degraded" {
		t.Errorf("response: %+v", resp)
	}
}

func TestAdmin_ReceiptPDF(t *testing.T) {
	deps := newTestServer(t)
	d := deps.life.add(donation.Donation{DonorName: "Asha", Amount: decimal.NewFromInt(10)})
	path := "/api/admin/donations/" + d.ID.String() + "/receipt.pdf"

	rr := doRequest(t, deps.handler, http.MethodGet, path, nil, adminHeaders(t))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type: %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "HOPE_Receipt_ABC123_Asha.pdf") {
		t.Errorf("Content-Disposition: %q", cd)
	}
	if !strings.HasPrefix(rr.Body.String(), "%PDF") {
		t.Error("body is not the rendered PDF")
	}

	deps.composer.err = &receipt.ValidationError{Field: "donor_name", Reason: "is empty"}
	rr = doRequest(t, deps.handler, http.MethodGet, path, nil, adminHeaders(t))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("validation failure: expected 422, got %d", rr.Code)
	}
}

// ─── POST /api/webhooks/stripe ────────────────────────────────────────────────

func paymentEvent(typ string, donationID uuid.UUID) stripeinternal.Event {
	raw, _ := json.Marshal(map[string]any{
		"id":       "pi_1",
		"object":   "payment_intent",
		"metadata": map[string]string{"donation_id": donationID.String()},
	})
	return stripeinternal.Event{ID: "evt_1", Type: typ, DataRaw: raw}
}

func TestStripeWebhook_InvalidSignature(t *testing.T) {
	deps := newTestServer(t)
	deps.verifier.err = errors.New("bad sig")

	rr := doRequest(t, deps.handler, http.MethodPost, "/api/webhooks/stripe", `{}`,
		map[string]string{"Stripe-Signature": "t=1,v1=abc"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if deps.verifier.sig != "t=1,v1=abc" || string(deps.verifier.payload) != `{}` {
		t.Error("verifier did not receive the raw body and signature header")
	}
}

func TestStripeWebhook_PaymentEvents(t *testing.T) {
	tests := []struct {
		typ    string
		status donation.Status
	}{
		{stripeinternal.EventPaymentSucceeded, donation.StatusCompleted},
		{stripeinternal.EventPaymentFailed, donation.StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			deps := newTestServer(t)
			d := deps.life.add(donation.Donation{DonorName: "Asha", Status: donation.StatusPending})
			deps.verifier.event = paymentEvent(tt.typ, d.ID)

			rr := doRequest(t, deps.handler, http.MethodPost, "/api/webhooks/stripe", `{}`, nil)
			if rr.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rr.Code)
			}
			if got := deps.life.donations[d.ID].Status; got != tt.status {
				t.Errorf("status: got %q, want %q", got, tt.status)
			}
			for _, a := range deps.life.actions {
				if a == "approve" || a == "resend" {
					t.Errorf("webhook must not trigger %s", a)
				}
			}
		})
	}
}

func TestStripeWebhook_UnknownDonationIsAcked(t *testing.T) {
	deps := newTestServer(t)
	deps.verifier.event = paymentEvent(stripeinternal.EventPaymentSucceeded, uuid.New())

	rr := doRequest(t, deps.handler, http.MethodPost, "/api/webhooks/stripe", `{}`, nil)
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
}

func TestStripeWebhook_StoreErrorRetries(t *testing.T) {
	deps := newTestServer(t)
	deps.life.err = errors.New("db gone")
	deps.verifier.event = paymentEvent(stripeinternal.EventPaymentSucceeded, uuid.New())

	rr := doRequest(t, deps.handler, http.MethodPost, "/api/webhooks/stripe", `{}`, nil)
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rr.Code)
	}
}

func unlinkedPaymentEvent(typ string) stripeinternal.Event {
	raw, _ := json.Marshal(map[string]any{
		"id":            "pi_link_1",
		"object":        "payment_intent",
		"amount":        250000,
		"currency":      "inr",
		"receipt_email": "asha@example.org",
		"metadata":      map[string]string{"campaign": "School Meals", "donor_name": "Asha Rao"},
	})
	return stripeinternal.Event{ID: "evt_3", Type: typ, DataRaw: raw}
}

func TestStripeWebhook_UnlinkedPaymentCreatesDonation(t *testing.T) {
	deps := newTestServer(t)
	deps.verifier.event = unlinkedPaymentEvent(stripeinternal.EventPaymentSucceeded)

	rr := doRequest(t, deps.handler, http.MethodPost, "/api/webhooks/stripe", `{}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(deps.life.created) != 1 {
		t.Fatalf("expected one donation created, got %d", len(deps.life.created))
	}
	f := deps.life.created[0]
	if !f.GatewaySupplied || f.TransactionID != "pi_link_1" || f.Campaign != "School Meals" {
		t.Errorf("created fields: %+v", f)
	}
	if !f.Amount.Equal(decimal.NewFromInt(2500)) {
		t.Errorf("amount: got %s, want 2500", f.Amount)
	}
}

func TestStripeWebhook_UnlinkedPaymentOutcomes(t *testing.T) {
	tests := []struct {
		name        string
		typ         string
		createErr   error
		wantCode    int
		wantCreates int
	}{
		{"replayed event", stripeinternal.EventPaymentSucceeded, store.ErrDuplicateTransaction, http.StatusOK, 1},
		{"unusable payment", stripeinternal.EventPaymentSucceeded, donation.ErrInvalid, http.StatusOK, 1},
		{"store failure", stripeinternal.EventPaymentSucceeded, errors.New("db gone"), http.StatusInternalServerError, 1},
		{"failed payment", stripeinternal.EventPaymentFailed, nil, http.StatusOK, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := newTestServer(t)
			deps.life.err = tt.createErr
			deps.verifier.event = unlinkedPaymentEvent(tt.typ)

			rr := doRequest(t, deps.handler, http.MethodPost, "/api/webhooks/stripe", `{}`, nil)
			if rr.Code != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, rr.Code)
			}
			if len(deps.life.created) != tt.wantCreates {
				t.Errorf("creates: got %d, want %d", len(deps.life.created), tt.wantCreates)
			}
		})
	}
}

func TestStripeWebhook_UnhandledTypeIsAcked(t *testing.T) {
	deps := newTestServer(t)
	deps.verifier.event = stripeinternal.Event{ID: "evt_2", Type: "charge.refunded", DataRaw: json.RawMessage(`{}`)}

	rr := doRequest(t, deps.handler, http.MethodPost, "/api/webhooks/stripe", `{}`, nil)
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
	if len(deps.life.actions) != 0 {
		t.Errorf("unexpected actions: %v", deps.life.actions)
	}
}

// ─── CORS ─────────────────────────────────────────────────────────────────────

func TestCORS(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"development", "http://localhost:3000"},
		{"production", "https://donate.example.org"},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			deps := newTestServer(t, func(c *api.Config) { c.Env = tt.env })
			rr := doRequest(t, deps.handler, http.MethodOptions, "/api/donations", nil,
				map[string]string{"Origin": "http://localhost:3000"})
			if rr.Code != http.StatusNoContent {
				t.Fatalf("expected 204, got %d", rr.Code)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("Allow-Origin: got %q, want %q", got, tt.want)
			}
		})
	}
}
