package donation

import (
	"time"

	"github.com/shopspring/decimal"
)

// AnonymousName replaces the donor name in public projections of anonymous
// donations.
const AnonymousName = "Anonymous"

// Public is the projection served by public listing endpoints. It never
// carries donor contact details.
type Public struct {
	ID        string          `json:"id"`
	DonorName string          `json:"donor_name"`
	Amount    decimal.Decimal `json:"amount"`
	Campaign  string          `json:"campaign"`
	Message   string          `json:"message,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Project builds the public view of d, redacting identity when the donor asked
// to stay anonymous.
func Project(d Donation) Public {
	p := Public{
		ID:        d.ID.String(),
		DonorName: d.DonorName,
		Amount:    d.Amount,
		Campaign:  d.Campaign,
		Message:   d.Message,
		CreatedAt: d.CreatedAt,
	}
	if d.IsAnonymous {
		p.DonorName = AnonymousName
	}
	return p
}

// CampaignTotal is one row of the public per-campaign aggregate.
type CampaignTotal struct {
	Campaign string          `json:"campaign"`
	Count    int64           `json:"count"`
	Total    decimal.Decimal `json:"total"`
}
