package refunds

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePolicyDefault(t *testing.T) {
	p, err := ParsePolicy("", 3)
	require.NoError(t, err)

	cases := []struct {
		days int
		want int64
	}{
		{45, 100},
		{30, 100},
		{29, 70},
		{14, 70},
		{10, 50},
		{7, 50},
		{3, 30},
		{2, 0},
		{0, 0},
		{-1, 0},
	}
	for _, tc := range cases {
		got := p.PercentFor(tc.days)
		assert.True(t, got.Equal(decimal.NewFromInt(tc.want)),
			"%d days: want %d%%, got %s", tc.days, tc.want, got)
	}
}

func TestParsePolicyRejectsNonMonotonic(t *testing.T) {
	// more lead time must never yield a smaller percentage
	_, err := ParsePolicy("30:50,14:70", 0)
	assert.Error(t, err)
}

func TestParsePolicyRejectsBadInput(t *testing.T) {
	for _, spec := range []string{
		"30:100,14",      // missing percent
		"x:100",          // bad days
		"30:abc",         // bad percent
		"30:100,30:70",   // duplicate threshold
		"30:101",         // percent above 100
		"-1:50",          // negative days
	} {
		_, err := ParsePolicy(spec, 0)
		assert.Error(t, err, "spec %q", spec)
	}
}

func TestQuoteForComputesAmount(t *testing.T) {
	p, err := ParsePolicy("30:100,14:70,7:50,3:30", 3)
	require.NoError(t, err)

	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	tour := now.AddDate(0, 0, 10) // 10 days out -> 50%

	q := p.QuoteFor("b1", decimal.RequireFromString("1500000.00"), "VND", tour, now)
	assert.Equal(t, 10, q.DaysBeforeTour)
	assert.True(t, q.RefundPercentage.Equal(decimal.NewFromInt(50)))
	assert.True(t, q.RefundAmount.Equal(decimal.RequireFromString("750000.00")), "got %s", q.RefundAmount)
	assert.Equal(t, "VND", q.Currency)
}

func TestQuoteForZeroBelowAllBands(t *testing.T) {
	p, err := ParsePolicy("", 3)
	require.NoError(t, err)

	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	q := p.QuoteFor("b1", decimal.NewFromInt(1000000), "VND", now.AddDate(0, 0, 1), now)
	assert.Equal(t, 1, q.DaysBeforeTour)
	assert.True(t, q.RefundAmount.IsZero())
}

func TestDaysBetweenUsesCalendarDays(t *testing.T) {
	// 23:00 to 01:00 next day is still one calendar day
	from := time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 2, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, 1, DaysBetween(from, to))

	assert.Equal(t, 0, DaysBetween(from, from))
	assert.Equal(t, -2, DaysBetween(to, to.AddDate(0, 0, -2)))
}
