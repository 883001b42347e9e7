package experiment

import (
	"github.com/shopspring/decimal"
)

// OccurrenceWindow admits a label array only when its positive fraction lies
// strictly inside (Min, Max). The comparison is exact, so a fraction equal to
// a bound is always rejected.
type OccurrenceWindow struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

func NewOccurrenceWindow(min, max float64) OccurrenceWindow {
	return OccurrenceWindow{
		Min: decimal.NewFromFloat(min),
		Max: decimal.NewFromFloat(max),
	}
}

// Admits reports whether min < positives/total < max.
func (w OccurrenceWindow) Admits(positives, total int) bool {
	if total <= 0 {
		return false
	}
	p := decimal.NewFromInt(int64(positives))
	n := decimal.NewFromInt(int64(total))
	return p.GreaterThan(w.Min.Mul(n)) && p.LessThan(w.Max.Mul(n))
}

// Fraction formats positives/total for logs.
func Fraction(positives, total int) string {
	if total <= 0 {
		return "0.0000"
	}
	return decimal.NewFromInt(int64(positives)).
		DivRound(decimal.NewFromInt(int64(total)), 4).
		StringFixed(4)
}
