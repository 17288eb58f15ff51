package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxIdleLimiters bounds the limiter map before idle limiters are pruned.
const maxIdleLimiters = 10000

// minThrottleDelay keeps a parked item from spinning on a nearly full bucket.
const minThrottleDelay = 10 * time.Millisecond

// ThrottledError reports that an item's key is over its limit. Queues park
// the item for Delay and redeliver it without counting a failed attempt.
type ThrottledError struct {
	Key   string
	Delay time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("key %q throttled for %s", e.Key, e.Delay)
}

// throttleDelay reports how long a throttled item should be parked.
func throttleDelay(err error) (time.Duration, bool) {
	var te *ThrottledError
	if !errors.As(err, &te) {
		return 0, false
	}
	return te.Delay, true
}

// KeyedThrottle holds one token bucket per key.
type KeyedThrottle struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewKeyedThrottle allows burst events per key, refilled at limit.
func NewKeyedThrottle(limit rate.Limit, burst int) *KeyedThrottle {
	if burst <= 0 {
		burst = 1
	}
	return &KeyedThrottle{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

// PerMinute allows at most n events per key in any minute: one token,
// refilled every minute/n.
func PerMinute(n int) *KeyedThrottle {
	if n <= 0 {
		n = 1
	}
	return NewKeyedThrottle(rate.Every(time.Minute/time.Duration(n)), 1)
}

// PerHour allows n events per key per hour with the given burst.
func PerHour(n, burst int) *KeyedThrottle {
	if n <= 0 {
		n = 1
	}
	return NewKeyedThrottle(rate.Every(time.Hour/time.Duration(n)), burst)
}

func (t *KeyedThrottle) limiter(key string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	if l, ok := t.limiters[key]; ok {
		return l
	}
	if len(t.limiters) >= maxIdleLimiters {
		t.prune()
	}
	l := rate.NewLimiter(t.limit, t.burst)
	t.limiters[key] = l
	return l
}

// prune drops limiters whose bucket has refilled; they carry no state.
func (t *KeyedThrottle) prune() {
	for key, l := range t.limiters {
		if l.Tokens() >= float64(t.burst) {
			delete(t.limiters, key)
		}
	}
}

// Allow reports whether key may proceed now, consuming a token if so.
func (t *KeyedThrottle) Allow(key string) bool {
	return t.limiter(key).Allow()
}

// Delay is how long key has to wait for its next token.
func (t *KeyedThrottle) Delay(key string) time.Duration {
	missing := 1 - t.limiter(key).Tokens()
	if missing <= 0 || t.limit <= 0 {
		return minThrottleDelay
	}
	d := time.Duration(missing / float64(t.limit) * float64(time.Second))
	if d < minThrottleDelay {
		return minThrottleDelay
	}
	return d
}

// Throttled wraps handler so items sharing a key are spaced out by throttle.
// An item over its key's limit is not run: the handler returns a
// *ThrottledError and the queue parks it, leaving the worker free for
// other keys.
func Throttled(throttle *KeyedThrottle, handler Handler) Handler {
	return func(ctx context.Context, item WorkItem) error {
		key := item.Key()
		if !throttle.Allow(key) {
			return &ThrottledError{Key: key, Delay: throttle.Delay(key)}
		}
		return handler(ctx, item)
	}
}
