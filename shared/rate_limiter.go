package shared

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ActionRateLimiter spaces out consecutive detail-page visits for politeness
type ActionRateLimiter struct {
	minimumDelay time.Duration // Minimum delay between actions
	lastAction   time.Time     // Timestamp of the last action, zero before the first
	mutex        sync.Mutex
	actionCount  int64
	now          func() time.Time
}

// NewActionRateLimiter creates a new rate limiter with the specified minimum delay
func NewActionRateLimiter(minimumDelay time.Duration) *ActionRateLimiter {
	return &ActionRateLimiter{
		minimumDelay: minimumDelay,
		now:          time.Now,
	}
}

// Wait blocks until the minimum delay has elapsed since the last action or ctx is done
func (limiter *ActionRateLimiter) Wait(ctx context.Context) error {
	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()

	if !limiter.lastAction.IsZero() && limiter.minimumDelay > 0 {
		elapsed := limiter.now().Sub(limiter.lastAction)
		if elapsed < limiter.minimumDelay {
			remaining := limiter.minimumDelay - elapsed

			logrus.WithFields(logrus.Fields{
				"component":       "ActionRateLimiter",
				"elapsed_time":    elapsed,
				"minimum_delay":   limiter.minimumDelay,
				"remaining_delay": remaining,
				"action_count":    limiter.actionCount + 1,
			}).Debug("Enforcing rate limit delay")

			timer := time.NewTimer(remaining)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	limiter.lastAction = limiter.now()
	limiter.actionCount++
	return nil
}

// ActionCount returns the total number of actions let through
func (limiter *ActionRateLimiter) ActionCount() int64 {
	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()
	return limiter.actionCount
}
