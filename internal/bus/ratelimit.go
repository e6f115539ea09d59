package bus

import (
	"sync"

	"golang.org/x/time/rate"
)

// perSenderLimiter gives each distinct (channel, chat_id) pair its own
// token bucket, sized to rpm messages per minute with a burst equal to
// one minute's allowance — a brief flurry clears immediately, but
// sustained spam throttles down to the configured rate.
type perSenderLimiter struct {
	mu       sync.Mutex
	rpm      int
	limiters map[string]*rate.Limiter
}

func newPerSenderLimiter(rpm int) *perSenderLimiter {
	return &perSenderLimiter{rpm: rpm, limiters: make(map[string]*rate.Limiter)}
}

func (l *perSenderLimiter) Allow(channel, chatID string) bool {
	key := channel + ":" + chatID
	every := rate.Limit(float64(l.rpm) / 60.0)

	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(every, l.rpm)
		l.limiters[key] = lim
	}
	l.mu.Unlock()

	return lim.Allow()
}
