package session

import "time"

// reconnectPolicy decides whether and when to retry after an unexpected
// disconnect. Jitter-free exponential doubling, capped.
type reconnectPolicy struct {
	base        time.Duration
	cap         time.Duration
	maxAttempts int
}

func defaultReconnectPolicy() reconnectPolicy {
	return reconnectPolicy{
		base:        time.Second,
		cap:         30 * time.Second,
		maxAttempts: 5,
	}
}

// delayFor returns the backoff before the given attempt (1-based):
// min(cap, base * 2^(attempt-1)).
func (p reconnectPolicy) delayFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.cap {
			return p.cap
		}
	}
	if delay > p.cap {
		return p.cap
	}
	return delay
}

// reconnectController owns the retry state for one tenant's session. All
// fields are guarded by the owning Manager's mutex; the inFlight flag is the
// only mutual exclusion the reconnect path needs — a disconnect arriving
// while an attempt is scheduled or running is dropped, not queued.
type reconnectController struct {
	policy   reconnectPolicy
	attempts int
	inFlight bool
	timer    *time.Timer
}

// schedule registers the next reconnect attempt and returns its delay.
// Returns ok=false when a retry is already in flight (caller ignores the
// disconnect) or when the attempt budget is exhausted (caller transitions to
// Failed). Must be called with the Manager's lock held.
func (c *reconnectController) schedule(run func()) (delay time.Duration, ok bool, exhausted bool) {
	if c.inFlight {
		return 0, false, false
	}
	if c.attempts >= c.policy.maxAttempts {
		return 0, false, true
	}

	c.attempts++
	c.inFlight = true
	delay = c.policy.delayFor(c.attempts)
	c.timer = time.AfterFunc(delay, run)
	return delay, true, false
}

// settle marks the in-flight attempt as finished so a later disconnect can
// schedule again. Must be called with the Manager's lock held.
func (c *reconnectController) settle() {
	c.inFlight = false
	c.timer = nil
}

// reset clears the counter after a successful Ready.
// Must be called with the Manager's lock held.
func (c *reconnectController) reset() {
	c.cancel()
	c.attempts = 0
}

// cancel stops a pending attempt, if any.
// Must be called with the Manager's lock held.
func (c *reconnectController) cancel() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.inFlight = false
}
