package refunds

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Band maps a minimum lead time (calendar days before the tour) to a refund
// percentage. A cancellation gets the percentage of the first band whose
// MinDaysBefore it still satisfies.
type Band struct {
	MinDaysBefore int
	Percent       decimal.Decimal
}

// Policy is the refund step table. The concrete thresholds are business
// configuration (REFUND_POLICY env), not code; the table is validated to be
// monotonic: more lead time never yields a smaller percentage.
type Policy struct {
	bands       []Band // sorted by MinDaysBefore descending
	minLeadDays int
}

// DefaultPolicySpec is a stand-in table, not a business commitment.
const DefaultPolicySpec = "30:100,14:70,7:50,3:30"

func NewPolicy(bands []Band, minLeadDays int) (Policy, error) {
	if len(bands) == 0 {
		return Policy{}, fmt.Errorf("refund policy needs at least one band")
	}
	if minLeadDays < 0 {
		return Policy{}, fmt.Errorf("minimum cancellation lead days cannot be negative")
	}

	sorted := make([]Band, len(bands))
	copy(sorted, bands)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinDaysBefore > sorted[j].MinDaysBefore })

	for i, b := range sorted {
		if b.MinDaysBefore < 0 {
			return Policy{}, fmt.Errorf("band %d: negative day threshold", i)
		}
		if b.Percent.IsNegative() || b.Percent.GreaterThan(decimal.NewFromInt(100)) {
			return Policy{}, fmt.Errorf("band %d: percent %s outside 0..100", i, b.Percent)
		}
		if i > 0 {
			if b.MinDaysBefore == sorted[i-1].MinDaysBefore {
				return Policy{}, fmt.Errorf("duplicate day threshold %d", b.MinDaysBefore)
			}
			if b.Percent.GreaterThan(sorted[i-1].Percent) {
				return Policy{}, fmt.Errorf("policy not monotonic: %d days -> %s%% exceeds %d days -> %s%%",
					b.MinDaysBefore, b.Percent, sorted[i-1].MinDaysBefore, sorted[i-1].Percent)
			}
		}
	}

	return Policy{bands: sorted, minLeadDays: minLeadDays}, nil
}

// ParsePolicy reads a "minDays:percent,minDays:percent,..." spec.
func ParsePolicy(spec string, minLeadDays int) (Policy, error) {
	if strings.TrimSpace(spec) == "" {
		spec = DefaultPolicySpec
	}

	var bands []Band
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, ":", 2)
		if len(kv) != 2 {
			return Policy{}, fmt.Errorf("invalid refund policy entry %q", part)
		}
		days, err := strconv.Atoi(strings.TrimSpace(kv[0]))
		if err != nil {
			return Policy{}, fmt.Errorf("invalid refund policy days %q: %w", kv[0], err)
		}
		pct, err := decimal.NewFromString(strings.TrimSpace(kv[1]))
		if err != nil {
			return Policy{}, fmt.Errorf("invalid refund policy percent %q: %w", kv[1], err)
		}
		bands = append(bands, Band{MinDaysBefore: days, Percent: pct})
	}

	return NewPolicy(bands, minLeadDays)
}

// MinLeadDays is the smallest lead time at which a confirmed booking may
// still be cancelled.
func (p Policy) MinLeadDays() int { return p.minLeadDays }

// PercentFor returns the refund percentage for a cancellation daysBefore the
// tour date. Below every band the refund is zero.
func (p Policy) PercentFor(daysBefore int) decimal.Decimal {
	for _, b := range p.bands {
		if daysBefore >= b.MinDaysBefore {
			return b.Percent
		}
	}
	return decimal.Zero
}

// Quote is the computed refund offer for one booking.
type Quote struct {
	BookingID        string
	OriginalAmount   decimal.Decimal
	DaysBeforeTour   int
	RefundPercentage decimal.Decimal
	RefundAmount     decimal.Decimal
	Currency         string
}

// QuoteFor prices a cancellation: integer calendar-day difference, band
// percentage, amount rounded to 2dp.
func (p Policy) QuoteFor(bookingID string, original decimal.Decimal, currency string, tourDate, at time.Time) Quote {
	days := DaysBetween(at, tourDate)
	pct := p.PercentFor(days)
	amount := original.Mul(pct).Div(decimal.NewFromInt(100)).Round(2)

	return Quote{
		BookingID:        bookingID,
		OriginalAmount:   original,
		DaysBeforeTour:   days,
		RefundPercentage: pct,
		RefundAmount:     amount,
		Currency:         currency,
	}
}

// DaysBetween is the calendar-day difference from 'from' to 'to' (negative
// when 'to' is in the past).
func DaysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f).Hours() / 24)
}
