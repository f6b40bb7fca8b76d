package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimitConfig bounds how much work a single client may request. Zero
// values disable the corresponding limit.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	RequestsPerDay    int
	MaxMBPerDay       int64
}

// RateLimitError reports an exhausted request rate window.
type RateLimitError struct {
	Window     string // minute or hour
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %d requests per %s, retry after %v",
		e.Limit, e.Window, e.RetryAfter.Round(time.Second))
}

// QuotaExceededError reports an exhausted daily quota.
type QuotaExceededError struct {
	Kind   string // requests or data
	Limit  int64
	Used   int64
	Resets time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily %s quota exceeded: %d of %d used, resets at %s",
		e.Kind, e.Used, e.Limit, e.Resets.UTC().Format(time.RFC3339))
}

// window counts events in a fixed interval starting at start.
type window struct {
	start time.Time
	count int64
}

func (w *window) roll(now time.Time, length time.Duration) {
	if now.Sub(w.start) >= length {
		w.start = now
		w.count = 0
	}
}

func (w *window) resets(length time.Duration) time.Time { return w.start.Add(length) }

type clientUsage struct {
	minute, hour, day window
	bytesToday        int64
}

// maxTrackedClients bounds the usage map; expired clients are pruned beyond it.
const maxTrackedClients = 4096

// RateLimiter tracks fixed-window request counts and daily upload volume
// per client.
type RateLimiter struct {
	mu      sync.Mutex
	cfg     RateLimitConfig
	clients map[string]*clientUsage
	now     func() time.Time
}

// NewRateLimiter creates a limiter for cfg.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{cfg: cfg, clients: make(map[string]*clientUsage), now: time.Now}
}

// Allow records a request of size bytes from client, or returns a
// *RateLimitError or *QuotaExceededError without recording it.
func (rl *RateLimiter) Allow(client string, size int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	u, ok := rl.clients[client]
	if !ok {
		if len(rl.clients) >= maxTrackedClients {
			rl.prune(now)
		}
		u = &clientUsage{
			minute: window{start: now},
			hour:   window{start: now},
			day:    window{start: now},
		}
		rl.clients[client] = u
	}
	u.minute.roll(now, time.Minute)
	u.hour.roll(now, time.Hour)
	if now.Sub(u.day.start) >= 24*time.Hour {
		u.day = window{start: now}
		u.bytesToday = 0
	}

	if lim := rl.cfg.RequestsPerMinute; lim > 0 && u.minute.count >= int64(lim) {
		return &RateLimitError{Window: "minute", Limit: lim, RetryAfter: u.minute.resets(time.Minute).Sub(now)}
	}
	if lim := rl.cfg.RequestsPerHour; lim > 0 && u.hour.count >= int64(lim) {
		return &RateLimitError{Window: "hour", Limit: lim, RetryAfter: u.hour.resets(time.Hour).Sub(now)}
	}
	if lim := int64(rl.cfg.RequestsPerDay); lim > 0 && u.day.count >= lim {
		return &QuotaExceededError{Kind: "requests", Limit: lim, Used: u.day.count, Resets: u.day.resets(24 * time.Hour)}
	}
	if lim := rl.cfg.MaxMBPerDay * 1024 * 1024; lim > 0 && u.bytesToday+size > lim {
		return &QuotaExceededError{Kind: "data", Limit: lim, Used: u.bytesToday, Resets: u.day.resets(24 * time.Hour)}
	}

	u.minute.count++
	u.hour.count++
	u.day.count++
	u.bytesToday += size
	return nil
}

// prune drops clients whose daily window has expired.
func (rl *RateLimiter) prune(now time.Time) {
	for id, u := range rl.clients {
		if now.Sub(u.day.start) >= 24*time.Hour {
			delete(rl.clients, id)
		}
	}
}

// Clients returns the number of tracked clients.
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}
