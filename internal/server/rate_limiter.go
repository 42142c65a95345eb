package server

import (
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// AdmitLimiter bounds admission attempts per participant. Each participant
// gets their own token bucket; a small burst covers honest retries while a
// flood of enter commands for one participant is rejected cheaply before the
// ledger is ever contacted.
type AdmitLimiter struct {
	mu       sync.Mutex
	limiters map[uuid.UUID]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func NewAdmitLimiter(perMinute int) *AdmitLimiter {
	if perMinute <= 0 {
		perMinute = 6
	}
	return &AdmitLimiter{
		limiters: make(map[uuid.UUID]*rate.Limiter),
		limit:    rate.Limit(float64(perMinute) / 60.0),
		burst:    2,
	}
}

// Allow reports whether the participant may attempt another admission now.
func (l *AdmitLimiter) Allow(pid uuid.UUID) bool {
	l.mu.Lock()
	lim, ok := l.limiters[pid]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[pid] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
