package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a per-user token bucket rate limiter. It tracks each user by
// chat user ID and automatically cleans up stale entries.
type Limiter struct {
	users map[int64]*visitor
	mu    sync.Mutex
	rps   rate.Limit
	burst int
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLimiter creates a new per-user rate limiter that allows rps requests per
// second with the given burst size. It starts a background goroutine that
// removes users not seen for 5 or more minutes, running every 3 minutes.
func NewLimiter(rps float64, burst int) *Limiter {
	l := &Limiter{
		users: make(map[int64]*visitor),
		rps:   rate.Limit(rps),
		burst: burst,
	}
	go l.cleanup()
	return l
}

// Allow reports whether a command from the given user should be handled. It
// creates a new token bucket for the user if one does not already exist.
func (l *Limiter) Allow(userID int64) bool {
	l.mu.Lock()
	v, exists := l.users[userID]
	if !exists {
		v = &visitor{
			limiter: rate.NewLimiter(l.rps, l.burst),
		}
		l.users[userID] = v
	}
	v.lastSeen = time.Now()
	l.mu.Unlock()

	return v.limiter.Allow()
}

// cleanup periodically removes users that have not been seen for 5 or more
// minutes. It runs in a loop every 3 minutes.
func (l *Limiter) cleanup() {
	for {
		time.Sleep(3 * time.Minute)

		l.mu.Lock()
		for id, v := range l.users {
			if time.Since(v.lastSeen) >= 5*time.Minute {
				delete(l.users, id)
			}
		}
		l.mu.Unlock()
	}
}
