// Package donation defines the Donation entity shared by the lifecycle, the
// receipt pipeline and the persistence layer. It has no dependencies on any
// other internal package.
package donation

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jaevor/go-nanoid"
	"github.com/shopspring/decimal"
)

// ─── STATUS ──────────────────────────────────────────────────────────────────

// Status is the payment status set by a gateway callback or an admin. String
// values match the donation_status column.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Valid reports whether s is one of the three known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether a payment status may move from s to to.
// Setting the current status again is allowed and is a no-op. A failed
// payment may later complete when the gateway retries it.
func (s Status) CanTransition(to Status) bool {
	if s == to {
		return true
	}
	switch s {
	case StatusPending:
		return to == StatusCompleted || to == StatusFailed
	case StatusFailed:
		return to == StatusCompleted
	}
	return false
}

var (
	// ErrNotFound is returned by repositories for an unknown donation id.
	ErrNotFound = errors.New("donation: not found")

	// ErrInvalidTransition is returned when a status change is not allowed
	// from the donation's current status.
	ErrInvalidTransition = errors.New("donation: invalid status transition")
)

// ─── ENTITY ──────────────────────────────────────────────────────────────────

// Donation is the only entity the receipt pipeline touches. Address and Phone
// are optional and may be empty at receipt time.
type Donation struct {
	ID            uuid.UUID
	DonorName     string
	Email         string
	Phone         string
	Address       string
	Amount        decimal.Decimal
	Campaign      string
	PaymentMethod string
	TransactionID string
	Status        Status
	Message       string
	IsAnonymous   bool

	// Approved gates public visibility and triggers the notification pipeline.
	// It is independent of Status.
	Approved bool

	// ApprovalSeq counts false→true approval edges. Together with ID it keys a
	// single dispatch run, so re-approving after a disapproval is a new event
	// while a redundant approve is not.
	ApprovalSeq int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ─── CREATION ────────────────────────────────────────────────────────────────

// ErrInvalid wraps every validation failure returned by Validate.
var ErrInvalid = errors.New("donation: invalid")

// Fields are the donor-supplied values accepted at creation.
type Fields struct {
	DonorName     string
	Email         string
	Phone         string
	Address       string
	Amount        decimal.Decimal
	Campaign      string
	PaymentMethod string
	TransactionID string
	Message       string
	IsAnonymous   bool

	// GatewaySupplied marks a record pushed by a payment gateway, which may
	// arrive without donor contact details.
	GatewaySupplied bool
}

// Normalize trims whitespace from every free-text field.
func (f Fields) Normalize() Fields {
	f.DonorName = strings.TrimSpace(f.DonorName)
	f.Email = strings.TrimSpace(f.Email)
	f.Phone = strings.TrimSpace(f.Phone)
	f.Address = strings.TrimSpace(f.Address)
	f.Campaign = strings.TrimSpace(f.Campaign)
	f.PaymentMethod = strings.TrimSpace(f.PaymentMethod)
	f.TransactionID = strings.TrimSpace(f.TransactionID)
	f.Message = strings.TrimSpace(f.Message)
	return f
}

// Validate checks the creation invariants: amount > 0 and, unless the record
// came from a gateway, donor name and a parseable email.
func (f Fields) Validate() error {
	var errs []error

	if !f.Amount.IsPositive() {
		errs = append(errs, fmt.Errorf("%w: amount must be greater than zero", ErrInvalid))
	}
	if !f.GatewaySupplied {
		if f.DonorName == "" {
			errs = append(errs, fmt.Errorf("%w: donor name is required", ErrInvalid))
		}
		if f.Email == "" {
			errs = append(errs, fmt.Errorf("%w: email is required", ErrInvalid))
		} else if _, err := mail.ParseAddress(f.Email); err != nil {
			errs = append(errs, fmt.Errorf("%w: email %q is not a valid address", ErrInvalid, f.Email))
		}
	}
	if f.Campaign == "" {
		errs = append(errs, fmt.Errorf("%w: campaign is required", ErrInvalid))
	}

	return errors.Join(errs...)
}

// ─── TRANSACTION IDS ─────────────────────────────────────────────────────────

const txnAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var txnSuffix = mustASCII(txnAlphabet, 6)

func mustASCII(alphabet string, size int) func() string {
	gen, err := nanoid.CustomASCII(alphabet, size)
	if err != nil {
		panic(fmt.Sprintf("donation: nanoid generator: %v", err))
	}
	return gen
}

// NewTransactionID returns TXN<unix-millis><6-char suffix>, used when no
// external gateway supplied a transaction id.
func NewTransactionID(now time.Time) string {
	return fmt.Sprintf("TXN%d%s", now.UnixMilli(), txnSuffix())
}
