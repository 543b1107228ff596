package domain

import (
	"math/rand/v2"
	"strings"
	"time"
)

// TicketAlphabet has 32 symbols; visually ambiguous characters
// (I, O, 0, 1) are excluded so tickets survive being read aloud or
// copied by hand.
const TicketAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// TicketLength is the fixed length of a customer-facing ticket.
const TicketLength = 16

// NewOrderID formats a human-readable order ID from the wall clock plus
// a random suffix: ORD-YYYYMMDDhhmmss-XXXX. No uniqueness check is
// performed; a one-second window would need two identical 4-letter
// suffixes to collide.
func NewOrderID(now time.Time) string {
	var b strings.Builder
	b.WriteString("ORD-")
	b.WriteString(now.Format("20060102150405"))
	b.WriteByte('-')
	for i := 0; i < 4; i++ {
		b.WriteByte(byte('A' + rand.IntN(26)))
	}
	return b.String()
}

// NewTicket draws a fresh 16-character ticket from TicketAlphabet.
// Collisions are not checked at generation time; at festival volumes
// the probability is negligible.
func NewTicket() string {
	var b strings.Builder
	b.Grow(TicketLength)
	for i := 0; i < TicketLength; i++ {
		b.WriteByte(TicketAlphabet[rand.IntN(len(TicketAlphabet))])
	}
	return b.String()
}

// ExtractTicketFromInput normalizes whatever a customer pastes into a
// lookup field — a full progress URL, a bare code, mixed case with
// stray punctuation — down to a candidate ticket. The function is
// idempotent: applying it to its own output changes nothing.
func ExtractTicketFromInput(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimRight(s, "/")
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.ToUpper(s)
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(TicketAlphabet, s[i]) >= 0 {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
