package security

import (
	"sync"
	"time"
)

// RateLimitWindow is the minimum interval between two submissions from the
// same client context.
const RateLimitWindow = 10 * time.Second

// IsLimited reports whether a submission made now would fall inside the
// cooldown that started at last. A zero last time is never limited.
func IsLimited(last time.Time) bool {
	return isLimitedAt(last, time.Now(), RateLimitWindow)
}

func isLimitedAt(last, now time.Time, window time.Duration) bool {
	if last.IsZero() {
		return false
	}
	return now.Sub(last) < window
}

// Cooldown tracks the last successful submission for one post session.
// It only pre-empts network calls; the server enforces its own limits.
type Cooldown struct {
	mu     sync.Mutex
	window time.Duration
	last   time.Time
	now    func() time.Time
}

// NewCooldown creates a cooldown with the given window. A non-positive
// window uses RateLimitWindow.
func NewCooldown(window time.Duration) *Cooldown {
	if window <= 0 {
		window = RateLimitWindow
	}
	return &Cooldown{window: window, now: time.Now}
}

// IsLimited reports whether the cooldown is still active.
func (c *Cooldown) IsLimited() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return isLimitedAt(c.last, c.now(), c.window)
}

// Remaining returns how long until the next submission is allowed.
func (c *Cooldown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last.IsZero() {
		return 0
	}
	left := c.window - c.now().Sub(c.last)
	if left < 0 {
		return 0
	}
	return left
}

// Record marks a successful submission at the current time.
func (c *Cooldown) Record() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = c.now()
}

// Last returns the time of the last recorded submission.
func (c *Cooldown) Last() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Reset forgets the last submission.
func (c *Cooldown) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = time.Time{}
}
