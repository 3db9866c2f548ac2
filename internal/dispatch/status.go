package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Stage is one step of the dispatch state machine. A finished run keeps the
// stage it ended in, so a degraded run reports SendingSimpleEmail.
type Stage string

const (
	StageStart              Stage = "Start"
	StageComposingReceipt   Stage = "ComposingReceipt"
	StagePublishingAsset    Stage = "PublishingAsset"
	StageSendingRichEmail   Stage = "SendingRichEmail"
	StageSendingSimpleEmail Stage = "SendingSimpleEmail"
)

// Outcome is the delivery result shown next to the approval badge.
type Outcome string

const (
	OutcomePending  Outcome = "pending"
	OutcomeSent     Outcome = "sent"
	OutcomeDegraded Outcome = "degraded"
	OutcomeFailed   Outcome = "failed"
)

// Terminal reports whether o ends a run.
func (o Outcome) Terminal() bool {
	return o == OutcomeSent || o == OutcomeDegraded || o == OutcomeFailed
}

// Status is the persisted record of the latest dispatch run for a donation.
type Status struct {
	DonationID  uuid.UUID `json:"donation_id"`
	ApprovalSeq int64     `json:"approval_seq"`
	Stage       Stage     `json:"stage"`
	Outcome     Outcome   `json:"outcome"`
	ReceiptNo   string    `json:"receipt_no,omitempty"`
	ReceiptURL  string    `json:"receipt_url,omitempty"`
	ArchivePath string    `json:"archive_path,omitempty"`
	Error       string    `json:"error,omitempty"`
	Runs        int       `json:"runs"`
	StartedAt   time.Time `json:"started_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// History lists every recorded transition of this run, oldest first. It
	// is maintained by the StatusStore.
	History []Transition `json:"history,omitempty"`
}

// Transition is one History entry.
type Transition struct {
	Stage   Stage     `json:"stage"`
	Outcome Outcome   `json:"outcome"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// Entry returns the History entry describing s as it is now.
func (s Status) Entry() Transition {
	return Transition{Stage: s.Stage, Outcome: s.Outcome, Error: s.Error, At: s.UpdatedAt}
}

// Claimable reports whether a new run for approval event seq may replace s.
//
//   - an older approval event never replaces a newer one
//   - a newer approval event always starts a run
//   - for the same event, a failed run may be retried and a pending run may be
//     taken over once it has gone stale
//   - sent and degraded runs are final unless force is set
func (s Status) Claimable(seq int64, force bool, now time.Time, staleAfter time.Duration) bool {
	if seq < s.ApprovalSeq {
		return false
	}
	if seq > s.ApprovalSeq {
		return true
	}
	stale := staleAfter > 0 && now.Sub(s.UpdatedAt) > staleAfter
	switch s.Outcome {
	case OutcomePending:
		return stale
	case OutcomeFailed:
		return true
	default:
		return force
	}
}

// ErrNotFound is returned by StatusStore.Get for a donation that was never
// dispatched.
var ErrNotFound = errors.New("dispatch: status not found")

// StatusStore persists one Status per donation.
type StatusStore interface {
	// Claim atomically starts a run for (donationID, seq) when the stored
	// status allows it. It returns the new pending status and true, or the
	// existing status and false.
	Claim(ctx context.Context, donationID uuid.UUID, seq int64, force bool) (Status, bool, error)
	// Record overwrites the stored status for st.DonationID when st belongs
	// to the same run (same ApprovalSeq and Runs).
	Record(ctx context.Context, st Status) error
	Get(ctx context.Context, donationID uuid.UUID) (Status, error)
}
