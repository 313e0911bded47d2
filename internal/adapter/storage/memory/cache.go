package memory

import (
	"context"
	"sync"
	"time"

	"qris-gateway/internal/core/domain"
	"qris-gateway/internal/core/ports"
)

type cachedRecord struct {
	rec       domain.IdempotencyRecord
	expiresAt time.Time
}

// IdempotencyCache implements ports.IdempotencyCache in process memory.
// Expired records are dropped lazily on read.
type IdempotencyCache struct {
	mu      sync.Mutex
	records map[string]cachedRecord
	now     func() time.Time
}

func NewIdempotencyCache() *IdempotencyCache {
	return &IdempotencyCache{records: make(map[string]cachedRecord), now: time.Now}
}

func (c *IdempotencyCache) Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.records[key]
	if !ok {
		return nil, nil
	}
	if !c.now().Before(r.expiresAt) {
		delete(c.records, key)
		return nil, nil
	}
	rec := r.rec
	return &rec, nil
}

// Set keeps the first live record for a key.
func (c *IdempotencyCache) Set(ctx context.Context, rec domain.IdempotencyRecord, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if r, ok := c.records[rec.Key]; ok && now.Before(r.expiresAt) {
		return nil
	}
	c.records[rec.Key] = cachedRecord{rec: rec, expiresAt: now.Add(ttl)}
	return nil
}

type window struct {
	id    int64
	count int64
	end   time.Time
}

// RateLimitStore implements ports.RateLimitStore with fixed-window
// counters held in a map. Stale windows are reclaimed by Sweep.
type RateLimitStore struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

func NewRateLimitStore() *RateLimitStore {
	return &RateLimitStore{windows: make(map[string]*window), now: time.Now}
}

func (s *RateLimitStore) Allow(ctx context.Context, key string, limit int64, win time.Duration) (*ports.RateLimitResult, error) {
	windowSecs := int64(win / time.Second)
	if windowSecs < 1 {
		windowSecs = 1
	}
	now := s.now()
	windowID := now.Unix() / windowSecs
	resetAt := (windowID + 1) * windowSecs

	s.mu.Lock()
	w, ok := s.windows[key]
	if !ok || w.id != windowID {
		w = &window{id: windowID, end: time.Unix(resetAt, 0)}
		s.windows[key] = w
	}
	w.count++
	count := w.count
	s.mu.Unlock()

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return &ports.RateLimitResult{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// Sweep deletes windows that have ended. It stops once budget has elapsed
// so a large map never holds the lock for long; the next sweep continues.
func (s *RateLimitStore) Sweep(budget time.Duration) int {
	start := time.Now()
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	removed, seen := 0, 0
	for key, w := range s.windows {
		if !now.Before(w.end) {
			delete(s.windows, key)
			removed++
		}
		seen++
		if budget > 0 && seen%64 == 0 && time.Since(start) > budget {
			break
		}
	}
	return removed
}

// RunSweeper sweeps on every interval until ctx is cancelled.
func (s *RateLimitStore) RunSweeper(ctx context.Context, interval, budget time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(budget)
		}
	}
}

// Len reports the number of tracked windows.
func (s *RateLimitStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// HealthCheck reports the in-memory backend as always reachable.
type HealthCheck struct{}

func (HealthCheck) Ping(ctx context.Context) error { return nil }
func (HealthCheck) Name() string                   { return "memory" }
