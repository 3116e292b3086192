package refcode

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFormat(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	code := NewBookingNumber(now)
	assert.Len(t, code, 2+12+6)
	assert.Equal(t, "TK202501011200", code[:14])

	order := NewOrderNumber(now)
	assert.Equal(t, "DH202501011200", order[:14])
}

func TestExtract(t *testing.T) {
	cases := []struct {
		content string
		want    string
		ok      bool
	}{
		{"TK202501011200001234 thanh toan", "TK202501011200001234", true},
		{"chuyen tien tour TK202501011200001234", "TK202501011200001234", true},
		{"tk202501011200001234 lowercase", "TK202501011200001234", true},
		{"DH202503150930112233 don hang", "DH202503150930112233", true},
		{"noise TK123 too short", "", false},
		{"thanh toan khong co ma", "", false},
		{"", "", false},
	}

	for _, tc := range cases {
		got, ok := Extract(tc.content)
		require.Equal(t, tc.ok, ok, "content=%q", tc.content)
		assert.Equal(t, tc.want, got, "content=%q", tc.content)
	}
}

func TestPrefixChecks(t *testing.T) {
	assert.True(t, IsBooking("TK202501011200001234"))
	assert.False(t, IsOrder("TK202501011200001234"))
	assert.True(t, IsOrder("dh202501011200001234"))
}
