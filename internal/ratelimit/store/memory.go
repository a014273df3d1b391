package store

import (
	"context"
	"sync"
	"time"

	"greengate/internal/ratelimit/models"
)

type window struct {
	count   int
	startAt time.Time
}

// Memory is a fixed-window counter held in process memory. Counts reset when
// the window elapses; there is no sliding behavior, so a burst straddling a
// window boundary can briefly see up to 2x the limit. Acceptable for abuse
// throttling on low-value endpoints.
type Memory struct {
	mu      sync.Mutex
	entries map[string]window

	limit      int
	windowSize time.Duration
	now        func() time.Time
}

// NewMemory constructs a limiter allowing limit requests per windowSize.
func NewMemory(limit int, windowSize time.Duration) *Memory {
	return &Memory{
		entries:    make(map[string]window),
		limit:      limit,
		windowSize: windowSize,
		now:        time.Now,
	}
}

// Allow counts one request against key's current window.
func (m *Memory) Allow(_ context.Context, key string) (models.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	entry, ok := m.entries[key]
	if !ok || now.Sub(entry.startAt) >= m.windowSize {
		entry = window{count: 0, startAt: now}
	}

	resetAt := entry.startAt.Add(m.windowSize)
	if entry.count >= m.limit {
		m.entries[key] = entry
		return models.Result{
			Allowed:    false,
			Limit:      m.limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: resetAt.Sub(now),
		}, nil
	}

	entry.count++
	m.entries[key] = entry
	return models.Result{
		Allowed:   true,
		Limit:     m.limit,
		Remaining: m.limit - entry.count,
		ResetAt:   resetAt,
	}, nil
}

// Sweep drops windows that closed before now. Called opportunistically so
// the map does not grow without bound.
func (m *Memory) Sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for key, entry := range m.entries {
		if now.Sub(entry.startAt) >= m.windowSize {
			delete(m.entries, key)
		}
	}
}
