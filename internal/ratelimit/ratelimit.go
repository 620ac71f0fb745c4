// Package ratelimit bounds how many times a key may act within a rolling window.
package ratelimit

import (
	"context"
	"time"
)

// Rule is a sliding-window budget: at most Limit hits per Window.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter records a hit for key if the budget allows it.
// Rejected calls are not recorded against the budget.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

func (r Rule) enabled() bool {
	return r.Limit > 0 && r.Window > 0
}
