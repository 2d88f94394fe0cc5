package ratelimit

import (
	"sync"
	"time"
)

const (
	// MaxPerSecond and MaxPerMinute mirror the frame endpoint's serving
	// budget; crossing 80% / 90% of them flips the limiter into a
	// near-limit state before it starts rejecting outright.
	MaxPerSecond = 7
	MaxPerMinute = 300

	secondWindow = time.Second
	minuteWindow = time.Minute
)

// Decision classifies a single request attempt.
type Decision struct {
	Allowed   bool
	NearLimit bool
}

// Limiter tracks recent request timestamps at second and minute granularity.
// A near-limit check is served but not recorded, so approaching the cap does
// not itself consume budget. Check-and-record is atomic.
type Limiter struct {
	mu           sync.Mutex
	perSecond    int
	perMinute    int
	secondStamps []time.Time
	minuteStamps []time.Time
}

func New() *Limiter {
	return &Limiter{perSecond: MaxPerSecond, perMinute: MaxPerMinute}
}

// Check classifies the current attempt and, when fully allowed, records it
// in both windows.
func (l *Limiter) Check() Decision {
	return l.checkAt(time.Now())
}

func (l *Limiter) checkAt(now time.Time) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.secondStamps = prune(l.secondStamps, now, secondWindow)
	l.minuteStamps = prune(l.minuteStamps, now, minuteWindow)

	if len(l.secondStamps) >= l.perSecond || len(l.minuteStamps) >= l.perMinute {
		return Decision{Allowed: false}
	}

	if float64(len(l.secondStamps)) >= 0.8*float64(l.perSecond) ||
		float64(len(l.minuteStamps)) >= 0.9*float64(l.perMinute) {
		// Served, but not recorded: near-limit probes must not consume budget.
		return Decision{Allowed: true, NearLimit: true}
	}

	l.secondStamps = append(l.secondStamps, now)
	l.minuteStamps = append(l.minuteStamps, now)
	return Decision{Allowed: true}
}

func prune(stamps []time.Time, now time.Time, window time.Duration) []time.Time {
	i := 0
	for i < len(stamps) && now.Sub(stamps[i]) > window {
		i++
	}
	return stamps[i:]
}
