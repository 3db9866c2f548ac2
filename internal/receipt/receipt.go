// Package receipt composes the fixed-format donation receipt. Composition is
// split into a declarative Layout (what goes where) and a generic Render
// (how to draw it), so tests can assert on structure rather than pixels.
package receipt

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jaevor/go-nanoid"

	"github.com/nyashahama/community-donor-backend/internal/donation"
)

// Organization is the issuing organisation's identity block. It is built once
// from configuration.
type Organization struct {
	Name           string
	Address        string
	Contact        string
	RegistrationNo string
	TaxExemptionNo string
	PAN            string

	// FilePrefix starts every receipt filename, e.g. "HOPE".
	FilePrefix string
}

// Receipt is the output of Compose. PDF and Base64 carry the same bytes so a
// publisher can take whichever its target expects without re-rendering.
type Receipt struct {
	Document  Document
	ReceiptNo string
	Filename  string
	PDF       []byte
	Base64    string
}

// DataURI returns the receipt as a data: URI.
func (r Receipt) DataURI() string {
	return "data:application/pdf;base64," + r.Base64
}

// ValidationError reports a donation snapshot that cannot be turned into a
// receipt.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("receipt: invalid %s: %s", e.Field, e.Reason)
}

// Composer lays out and renders receipts for one organisation.
type Composer struct {
	org      Organization
	now      func() time.Time
	newToken func() string
}

// NewComposer returns a Composer. now supplies the receipt date; nil means
// time.Now.
func NewComposer(org Organization, now func() time.Time) *Composer {
	if now == nil {
		now = time.Now
	}
	return &Composer{org: org, now: now, newToken: randomToken}
}

// Compose builds the receipt for the snapshot d. Output is deterministic for
// the same snapshot and clock reading; only the date varies between calls.
func (c *Composer) Compose(d donation.Donation) (Receipt, error) {
	if strings.TrimSpace(d.DonorName) == "" {
		return Receipt{}, &ValidationError{Field: "donor_name", Reason: "is empty"}
	}
	if !d.Amount.IsPositive() {
		return Receipt{}, &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}

	receiptNo := ""
	if d.ID != uuid.Nil {
		receiptNo = Number(d.ID.String())
	}
	if receiptNo == "" {
		receiptNo = c.newToken()
	}

	doc := Layout(c.org, d, receiptNo, c.now())
	pdf, err := Render(doc)
	if err != nil {
		return Receipt{}, err
	}

	return Receipt{
		Document:  doc,
		ReceiptNo: receiptNo,
		Filename:  Filename(c.org.FilePrefix, receiptNo, d.DonorName),
		PDF:       pdf,
		Base64:    base64.StdEncoding.EncodeToString(pdf),
	}, nil
}

// ─── RECEIPT NUMBER ──────────────────────────────────────────────────────────

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var randomToken = func() func() string {
	gen, err := nanoid.CustomASCII(tokenAlphabet, 6)
	if err != nil {
		panic(fmt.Sprintf("receipt: nanoid generator: %v", err))
	}
	return gen
}()

// Number derives the display receipt number from a donation id: its last six
// alphanumeric characters, uppercased. It returns "" when id has none.
//
// This is a display identifier, not a sequenced number; two donations whose
// ids share a suffix get the same receipt number.
func Number(id string) string {
	var b []byte
	for i := 0; i < len(id); i++ {
		ch := id[i]
		if ('0' <= ch && ch <= '9') || ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') {
			b = append(b, ch)
		}
	}
	if len(b) > 6 {
		b = b[len(b)-6:]
	}
	return strings.ToUpper(string(b))
}

// ─── FILENAME ────────────────────────────────────────────────────────────────

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Filename returns <prefix>_Receipt_<receiptNo>_<donor>.pdf with spaces in the
// donor name turned into underscores and other URL-unsafe characters dropped.
func Filename(prefix, receiptNo, donorName string) string {
	donor := strings.Join(strings.Fields(donorName), "_")
	donor = unsafeFilename.ReplaceAllString(donor, "")
	if donor == "" {
		donor = "Donor"
	}
	if prefix == "" {
		prefix = "ORG"
	}
	prefix = unsafeFilename.ReplaceAllString(strings.ReplaceAll(prefix, " ", "_"), "")
	return fmt.Sprintf("%s_Receipt_%s_%s.pdf", prefix, receiptNo, donor)
}
