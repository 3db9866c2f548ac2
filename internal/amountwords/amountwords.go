// Package amountwords spells currency amounts in English words using the
// Indian numbering convention (crore, lakh, thousand, hundred) for the legal
// text of donation receipts. It is pure and dependency-free apart from the
// decimal type used by Rupees.
package amountwords

import (
	"strings"

	"github.com/shopspring/decimal"
)

var ones = [...]string{
	"", "One", "Two", "Three", "Four", "Five", "Six", "Seven", "Eight", "Nine",
	"Ten", "Eleven", "Twelve", "Thirteen", "Fourteen", "Fifteen", "Sixteen",
	"Seventeen", "Eighteen", "Nineteen",
}

var tens = [...]string{
	"", "", "Twenty", "Thirty", "Forty", "Fifty", "Sixty", "Seventy", "Eighty", "Ninety",
}

// group is one step of the greedy decomposition, largest first.
type group struct {
	size uint64
	name string
}

var groups = [...]group{
	{10_000_000, "Crore"},
	{100_000, "Lakh"},
	{1_000, "Thousand"},
	{100, "Hundred"},
}

// Format returns n in words, e.g. 1234567 → "Twelve Lakh Thirty Four Thousand
// Five Hundred Sixty Seven". Zero is "Zero"; negative input is prefixed with
// "Minus". Quotients above 99 crore recurse, so 1,000,000,000 is
// "One Hundred Crore".
func Format(n int64) string {
	if n == 0 {
		return "Zero"
	}
	if n < 0 {
		// -(n+1) cannot overflow, unlike -n for math.MinInt64.
		return "Minus " + strings.TrimSpace(spell(uint64(-(n+1))+1))
	}
	return strings.TrimSpace(spell(uint64(n)))
}

// spell decomposes n > 0 into space-joined words. Lower groups with a zero
// quotient are skipped, so 1000000 yields "Ten Lakh".
func spell(n uint64) string {
	var parts []string
	for _, g := range groups {
		if n >= g.size {
			parts = append(parts, spell(n/g.size), g.name)
			n %= g.size
		}
	}
	if n > 0 {
		parts = append(parts, belowHundred(n))
	}
	return strings.Join(parts, " ")
}

func belowHundred(n uint64) string {
	if n < 20 {
		return ones[n]
	}
	if n%10 == 0 {
		return tens[n/10]
	}
	return tens[n/10] + " " + ones[n%10]
}

// Rupees renders the receipt sentence for amount: "Rupees Two Thousand Five
// Hundred Only", or with a paise clause when the amount has a fractional part
// ("Rupees Ten and Fifty Paise Only"). Amounts are rounded to two places.
func Rupees(amount decimal.Decimal) string {
	amount = amount.Round(2)
	whole := amount.Truncate(0)
	paise := amount.Sub(whole).Abs().Shift(2).IntPart()

	var b strings.Builder
	b.WriteString("Rupees ")
	b.WriteString(Format(whole.IntPart()))
	if paise > 0 {
		b.WriteString(" and ")
		b.WriteString(Format(paise))
		b.WriteString(" Paise")
	}
	b.WriteString(" Only")
	return b.String()
}
