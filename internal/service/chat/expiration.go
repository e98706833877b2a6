package chat

import "time"

// ExpirationPolicy decides whether a session is still active given its last
// activity. It is pure and safe for concurrent use.
type ExpirationPolicy struct {
	idleWindow time.Duration
	now        func() time.Time
}

// NewExpirationPolicy builds a policy with the configured idle window.
func NewExpirationPolicy(idleWindow time.Duration) *ExpirationPolicy {
	return &ExpirationPolicy{idleWindow: idleWindow, now: time.Now}
}

// IsExpired reports whether the idle window has elapsed since the last
// activity. Expiry is strictly-after: a session whose window ends exactly
// now is still active.
func (p *ExpirationPolicy) IsExpired(lastActivityAt time.Time) bool {
	return p.now().After(lastActivityAt.Add(p.idleWindow))
}

// Remaining returns the time left before expiry, or zero once expired.
func (p *ExpirationPolicy) Remaining(lastActivityAt time.Time) time.Duration {
	remaining := lastActivityAt.Add(p.idleWindow).Sub(p.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IdleWindow exposes the configured window.
func (p *ExpirationPolicy) IdleWindow() time.Duration {
	return p.idleWindow
}
