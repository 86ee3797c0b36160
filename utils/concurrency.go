package utils

import (
	"sync"
	"time"
)

// Cooldown rate limits an action per key, such as a user id.
type Cooldown struct {
	duration time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

func NewCooldown(d time.Duration) *Cooldown {
	return &Cooldown{duration: d, now: time.Now, last: make(map[string]time.Time)}
}

// CheckAndSet reports whether key is off cooldown and, if so, starts a new
// cooldown for it. When key is still locked it returns the time left.
func (c *Cooldown) CheckAndSet(key string) (bool, time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if last, ok := c.last[key]; ok {
		if elapsed := now.Sub(last); elapsed < c.duration {
			return false, c.duration - elapsed
		}
	}

	for k, t := range c.last {
		if now.Sub(t) >= c.duration {
			delete(c.last, k)
		}
	}
	c.last[key] = now
	return true, 0
}
