package refcode

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"
)

// Reference codes embedded in payment instructions and later recovered from
// bank-transfer free text. Bookings use TK, product orders use DH.
const (
	PrefixBooking = "TK"
	PrefixOrder   = "DH"
)

// codePattern matches a reference code anywhere inside transfer content.
// SePay forwards the content verbatim, so the code may be surrounded by
// arbitrary text ("TK202501011200001234 thanh toan tour").
var codePattern = regexp.MustCompile(`(?i)\b(TK|DH)(\d{10,18})\b`)

// New generates a reference code: prefix + minute-resolution timestamp +
// 6 random digits. Collisions are guarded by the unique index on the number
// column; callers retry on duplicate.
func New(prefix string, now time.Time) string {
	return prefix + now.Format("200601021504") + randomDigits(6)
}

func NewBookingNumber(now time.Time) string { return New(PrefixBooking, now) }

func NewOrderNumber(now time.Time) string { return New(PrefixOrder, now) }

// Extract scans free text for the first reference code and returns it
// upper-cased. ok is false when no code is present.
func Extract(content string) (code string, ok bool) {
	m := codePattern.FindStringSubmatch(content)
	if m == nil {
		return "", false
	}
	return strings.ToUpper(m[1]) + m[2], true
}

// IsBooking reports whether code carries the booking prefix.
func IsBooking(code string) bool {
	return strings.HasPrefix(strings.ToUpper(code), PrefixBooking)
}

// IsOrder reports whether code carries the order prefix.
func IsOrder(code string) bool {
	return strings.HasPrefix(strings.ToUpper(code), PrefixOrder)
}

func randomDigits(n int) string {
	max := big.NewInt(1)
	for i := 0; i < n; i++ {
		max.Mul(max, big.NewInt(10))
	}
	v, err := rand.Int(rand.Reader, max)
	if err != nil {
		// crypto/rand failing means the process is in much deeper trouble;
		// fall back to a time-derived value rather than panic.
		v = big.NewInt(time.Now().UnixNano() % 1_000_000)
	}
	return fmt.Sprintf("%0*d", n, v)
}
