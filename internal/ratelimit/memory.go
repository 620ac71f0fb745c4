package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryWindow keeps per-key hit timestamps in process memory.
type MemoryWindow struct {
	rule Rule
	now  func() time.Time

	mu   sync.Mutex
	hits map[string][]time.Time
}

// NewMemoryWindow constructs a MemoryWindow. A nil now uses time.Now.
func NewMemoryWindow(rule Rule, now func() time.Time) *MemoryWindow {
	if now == nil {
		now = time.Now
	}
	return &MemoryWindow{
		rule: rule,
		now:  now,
		hits: make(map[string][]time.Time),
	}
}

// Allow implements Limiter.
func (w *MemoryWindow) Allow(ctx context.Context, key string) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}
	if !w.rule.enabled() {
		return Decision{Allowed: true}, nil
	}
	now := w.now()
	cutoff := now.Add(-w.rule.Window)

	w.mu.Lock()
	defer w.mu.Unlock()

	kept := w.hits[key][:0]
	for _, ts := range w.hits[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= w.rule.Limit {
		w.hits[key] = kept
		retry := kept[0].Add(w.rule.Window).Sub(now)
		if retry <= 0 {
			retry = time.Second
		}
		return Decision{Allowed: false, RetryAfter: retry}, nil
	}

	kept = append(kept, now)
	w.hits[key] = kept
	return Decision{Allowed: true, Remaining: w.rule.Limit - len(kept)}, nil
}

// Sweep drops keys whose hits have all left the window.
func (w *MemoryWindow) Sweep() {
	cutoff := w.now().Add(-w.rule.Window)
	w.mu.Lock()
	defer w.mu.Unlock()
	for key, ts := range w.hits {
		if len(ts) == 0 || !ts[len(ts)-1].After(cutoff) {
			delete(w.hits, key)
		}
	}
}

var _ Limiter = (*MemoryWindow)(nil)
