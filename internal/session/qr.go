package session

import "time"

// QRChallenge is a time-limited credential-bootstrap payload. At most one is
// live per tenant; a newer challenge supersedes (never merges with) the
// previous one, and the challenge is cleared on Ready or TTL expiry.
type QRChallenge struct {
	Code      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the challenge's TTL has elapsed.
func (q QRChallenge) Expired(now time.Time) bool {
	return now.After(q.ExpiresAt)
}

// Subscription callbacks. Callbacks run on the manager's event pump
// goroutine; they must not block.
type (
	QRCallback         func(QRChallenge)
	ReadyCallback      func()
	DisconnectCallback func(reason string)
)
