package symptoms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"medicare-backend/internal/shared/metrics"
	"medicare-backend/internal/shared/telemetry"
	"medicare-backend/internal/shared/util"
)

const (
	defaultAttempts  = 3
	defaultRetryBase = 500 * time.Millisecond
)

// RetryPolicy bounds provider attempts. Only retryable transport failures are
// retried; the delay doubles after each failed attempt.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	// Sleep waits for d or until ctx ends. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: defaultAttempts, BaseDelay: defaultRetryBase}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.Attempts <= 0 {
		p.Attempts = defaultAttempts
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.Sleep == nil {
		p.Sleep = sleepContext
	}
	return p
}

// Delay returns the wait before attempt n+1, for n >= 1.
func (p RetryPolicy) Delay(n int) time.Duration {
	return p.BaseDelay << (n - 1)
}

// invokeWithRetry calls fn until it succeeds, fails permanently, the attempt
// budget is spent, or ctx ends. It returns the number of attempts made.
func invokeWithRetry(ctx context.Context, p RetryPolicy, sessionID string, fn func(context.Context) (Analysis, error)) (Analysis, int, error) {
	p = p.normalized()
	var lastErr error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		a, err := callWithContext(ctx, fn)
		if err == nil {
			return a, attempt, nil
		}
		lastErr = err

		var transport *TransportError
		if !errors.As(err, &transport) || !transport.Retryable || attempt == p.Attempts {
			return Analysis{}, attempt, err
		}
		if ctx.Err() != nil {
			return Analysis{}, attempt, &TransportError{Err: ctx.Err()}
		}

		delay := p.Delay(attempt)
		metrics.IncLLMRetry()
		telemetry.Warn("llm.retry", map[string]any{
			"request_id": requestIDFromContext(ctx),
			"session_id": sessionID,
			"attempt":    attempt,
			"delay_ms":   delay.Milliseconds(),
			"error":      util.ErrorText(err, 500),
		})
		if err := p.Sleep(ctx, delay); err != nil {
			return Analysis{}, attempt, &TransportError{Err: err}
		}
	}
	return Analysis{}, p.Attempts, lastErr
}

// callWithContext returns when fn does or when ctx ends, whichever is first,
// so a provider that ignores cancellation cannot hold the session open.
func callWithContext(ctx context.Context, fn func(context.Context) (Analysis, error)) (Analysis, error) {
	type result struct {
		a   Analysis
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("analyzer panic: %v", r)}
			}
		}()
		a, err := fn(ctx)
		ch <- result{a, err}
	}()
	select {
	case r := <-ch:
		return r.a, r.err
	case <-ctx.Done():
		return Analysis{}, &TransportError{Err: ctx.Err()}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
