package receipt

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nyashahama/community-donor-backend/internal/amountwords"
	"github.com/nyashahama/community-donor-backend/internal/donation"
)

// ─── DOCUMENT MODEL ──────────────────────────────────────────────────────────

// Kind selects how the renderer draws an Element.
type Kind string

const (
	KindHeading   Kind = "heading"   // organisation name
	KindText      Kind = "text"      // centred single line
	KindTitle     Kind = "title"     // document title
	KindRule      Kind = "rule"      // horizontal separator
	KindField     Kind = "field"     // "Label: value", value may wrap
	KindAmountBox Kind = "amount"    // boxed numeric amount
	KindSignature Kind = "signature" // signature line with caption
	KindNote      Kind = "note"      // small footer text
)

// Position is a box on the page in millimetres from the top-left corner.
type Position struct {
	X, Y, W, H float64
}

// Element is one declarative entry of the receipt layout.
type Element struct {
	Kind     Kind
	Label    string
	Value    string
	Position Position
}

// Document is the page description handed to the renderer. Date is the only
// value not derived from the donation snapshot and is truncated to the day.
type Document struct {
	Title    string
	Date     time.Time
	Elements []Element
}

// Labels returns the labels of every KindField element in layout order.
func (d Document) Labels() []string {
	var out []string
	for _, e := range d.Elements {
		if e.Kind == KindField {
			out = append(out, e.Label)
		}
	}
	return out
}

// Field returns the value of the first field with the given label.
func (d Document) Field(label string) (string, bool) {
	for _, e := range d.Elements {
		if e.Kind == KindField && e.Label == label {
			return e.Value, true
		}
	}
	return "", false
}

// ─── LABELS ──────────────────────────────────────────────────────────────────

const (
	LabelRegistration = "Registration No"
	LabelTaxExemption = "80G Approval No"
	LabelPAN          = "PAN"
	LabelReceiptNo    = "Receipt No"
	LabelDate         = "Date"
	LabelDonorName    = "Received From"
	LabelAddress      = "Address"
	LabelPhone        = "Phone"
	LabelEmail        = "Email"
	LabelAmountWords  = "Sum Of"
	LabelPurpose      = "Towards"
	LabelPayment      = "Payment"
	LabelAmount       = "Amount"
	LabelSignature    = "Authorised Signatory"

	// NotProvided fills optional donor fields that are empty.
	NotProvided = "Not provided"

	Title = "DONATION RECEIPT"
)

// ─── LAYOUT ──────────────────────────────────────────────────────────────────

// A4 portrait in millimetres.
const (
	pageWidth    = 210.0
	marginX      = 15.0
	marginTop    = 15.0
	contentWidth = pageWidth - 2*marginX
	halfWidth    = contentWidth / 2
	lineHeight   = 7.0
	wrapChars    = 75 // approximate characters per wrapped value line at 10pt
)

// cursor stacks elements vertically.
type cursor struct {
	y   float64
	els []Element
}

func (c *cursor) add(kind Kind, label, value string, x, w, h float64) {
	c.els = append(c.els, Element{
		Kind:     kind,
		Label:    label,
		Value:    value,
		Position: Position{X: x, Y: c.y, W: w, H: h},
	})
}

// row places one full-width element and advances by its height plus gap.
func (c *cursor) row(kind Kind, label, value string, h, gap float64) {
	c.add(kind, label, value, marginX, contentWidth, h)
	c.y += h + gap
}

// pair places two half-width fields on the same line.
func (c *cursor) pair(l1, v1, l2, v2 string) {
	c.add(KindField, l1, v1, marginX, halfWidth, lineHeight)
	c.add(KindField, l2, v2, marginX+halfWidth, halfWidth, lineHeight)
	c.y += lineHeight + 1
}

// field places a full-width field sized for its wrapped value.
func (c *cursor) field(label, value string) {
	c.row(KindField, label, value, wrappedHeight(value), 1)
}

// Layout builds the fixed receipt layout for d. Field set and order do not
// depend on the donation, so every receipt has the same shape; only values
// and wrapped heights change.
func Layout(org Organization, d donation.Donation, receiptNo string, date time.Time) Document {
	y, m, day := date.Date()
	date = time.Date(y, m, day, 0, 0, 0, 0, date.Location())
	c := &cursor{y: marginTop}

	// Organisation identity.
	c.row(KindHeading, "", org.Name, 10, 1)
	c.row(KindText, "", org.Address, 5, 0)
	c.row(KindText, "", org.Contact, 5, 3)

	// Registration numbers.
	c.pair(LabelRegistration, orDash(org.RegistrationNo), LabelTaxExemption, orDash(org.TaxExemptionNo))
	c.row(KindField, LabelPAN, orDash(org.PAN), lineHeight, 2)
	c.row(KindRule, "", "", 0, 4)

	c.row(KindTitle, "", Title, 9, 4)
	c.pair(LabelReceiptNo, receiptNo, LabelDate, date.Format("02 Jan 2006"))
	c.y += 2

	// Donor.
	c.field(LabelDonorName, d.DonorName)
	c.field(LabelAddress, orNotProvided(d.Address))
	c.field(LabelPhone, orNotProvided(d.Phone))
	c.field(LabelEmail, orNotProvided(d.Email))

	// Amount and purpose.
	c.field(LabelAmountWords, amountwords.Rupees(d.Amount))
	c.field(LabelPurpose, d.Campaign)
	c.field(LabelPayment, paymentLine(d))
	c.y += 6

	// Boxed amount on the left, signature on the right, same baseline.
	boxH := 14.0
	c.add(KindAmountBox, LabelAmount, "Rs. "+FormatINR(d.Amount), marginX, 60, boxH)
	c.add(KindSignature, LabelSignature, org.Name, pageWidth-marginX-65, 65, boxH+10)
	c.y += boxH + 18

	c.row(KindNote, "", footerNote(org), 5, 0)

	return Document{Title: Title, Date: date, Elements: c.els}
}

func wrappedHeight(value string) float64 {
	lines := (len(value) + wrapChars - 1) / wrapChars
	if lines < 1 {
		lines = 1
	}
	return float64(lines) * lineHeight
}

func paymentLine(d donation.Donation) string {
	method := strings.TrimSpace(d.PaymentMethod)
	if method == "" {
		method = "Online"
	}
	if d.TransactionID == "" {
		return method
	}
	return fmt.Sprintf("%s (Txn %s)", method, d.TransactionID)
}

func footerNote(org Organization) string {
	if org.TaxExemptionNo != "" {
		return "Donations are eligible for deduction under section 80G. This is a computer generated receipt."
	}
	return "This is a computer generated receipt."
}

func orNotProvided(s string) string {
	if strings.TrimSpace(s) == "" {
		return NotProvided
	}
	return s
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// FormatINR formats amount with two decimals and Indian digit grouping,
// e.g. 1234567.5 → "12,34,567.50".
func FormatINR(amount decimal.Decimal) string {
	s := amount.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(s, ".")

	var grouped string
	if len(whole) <= 3 {
		grouped = whole
	} else {
		head, tail := whole[:len(whole)-3], whole[len(whole)-3:]
		var parts []string
		for len(head) > 2 {
			parts = append([]string{head[len(head)-2:]}, parts...)
			head = head[:len(head)-2]
		}
		if head != "" {
			parts = append([]string{head}, parts...)
		}
		grouped = strings.Join(parts, ",") + "," + tail
	}

	if amount.IsNegative() {
		grouped = "-" + grouped
	}
	return grouped + "." + frac
}
