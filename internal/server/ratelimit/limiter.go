// Package ratelimit throttles requests per client key with two sliding
// windows, one per minute and one per hour.
//
// A Limiter instance owns its key map; one instance is created per endpoint
// class (auth, api, upload, admin) and injected into the routes that use it.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	minute = time.Minute
	hour   = time.Hour

	// DefaultIdleTimeout is how long a key may stay silent before its
	// state is dropped by Sweep.
	DefaultIdleTimeout = 2 * time.Hour

	defaultSweepInterval = 10 * time.Minute
)

// KeyMode selects how a request is mapped to a client key.
type KeyMode int

const (
	KeyByIP KeyMode = iota
	KeyByAuthHeader
)

// Config holds the ceilings of one profile. A zero ceiling disables that
// window.
type Config struct {
	Name      string
	PerMinute int
	PerHour   int
	KeyMode   KeyMode
}

var (
	AuthProfile   = Config{Name: "auth", PerMinute: 10, PerHour: 100, KeyMode: KeyByIP}
	APIProfile    = Config{Name: "api", PerMinute: 60, PerHour: 1000, KeyMode: KeyByAuthHeader}
	UploadProfile = Config{Name: "upload", PerMinute: 30, PerHour: 200, KeyMode: KeyByAuthHeader}
	AdminProfile  = Config{Name: "admin", PerMinute: 5, PerHour: 50, KeyMode: KeyByAuthHeader}
)

// ExceededError is returned by Check when a window is full.
type ExceededError struct {
	Window     string
	RetryAfter time.Duration
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("Too many requests per %s", e.Window)
}

type entry struct {
	// ascending request times within the last hour
	times    []time.Time
	lastSeen time.Time
}

func (e *entry) prune(cutoff time.Time) {
	i := 0
	for i < len(e.times) && !e.times[i].After(cutoff) {
		i++
	}
	if i > 0 {
		e.times = append(e.times[:0], e.times[i:]...)
	}
}

func (e *entry) countAfter(cutoff time.Time) int {
	n := 0
	for j := len(e.times) - 1; j >= 0 && e.times[j].After(cutoff); j-- {
		n++
	}
	return n
}

// Limiter is safe for concurrent use; a single mutex guards the whole map.
type Limiter struct {
	cfg         Config
	idleTimeout time.Duration
	now         func() time.Time

	mu      sync.Mutex
	entries map[string]*entry

	stopOnce sync.Once
	stop     chan struct{}
}

func New(cfg Config) *Limiter {
	return &Limiter{
		cfg:         cfg,
		idleTimeout: DefaultIdleTimeout,
		now:         time.Now,
		entries:     make(map[string]*entry),
		stop:        make(chan struct{}),
	}
}

func (l *Limiter) Config() Config { return l.cfg }

// Check records a request for key, or rejects it with *ExceededError when
// the minute or the hour window already holds its ceiling. Rejected
// requests are not recorded.
func (l *Limiter) Check(key string) error {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &entry{}
		l.entries[key] = e
	}
	e.prune(now.Add(-hour))
	e.lastSeen = now

	if l.cfg.PerMinute > 0 && e.countAfter(now.Add(-minute)) >= l.cfg.PerMinute {
		return &ExceededError{Window: "minute", RetryAfter: minute}
	}
	if l.cfg.PerHour > 0 && len(e.times) >= l.cfg.PerHour {
		return &ExceededError{Window: "hour", RetryAfter: hour}
	}

	e.times = append(e.times, now)
	return nil
}

// Sweep drops every key idle for at least the idle timeout and returns how
// many were removed.
func (l *Limiter) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for k, e := range l.entries {
		if now.Sub(e.lastSeen) >= l.idleTimeout {
			delete(l.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Start runs Sweep periodically until ctx is done or Stop is called.
func (l *Limiter) Start(ctx context.Context) {
	go l.sweepLoop(ctx, defaultSweepInterval)
}

func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Limiter) sweepLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.Sweep()
		case <-l.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}
