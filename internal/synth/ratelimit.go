package synth

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RateLimiter is a token bucket that paces calls to a synthesis backend.
// The bucket starts full, so the first RequestsPerMinute calls go through
// without waiting.
type RateLimiter struct {
	mu sync.Mutex

	perMinute int
	tokens    float64
	last      time.Time
	now       func() time.Time

	calls  int64
	waited time.Duration
}

// RateLimiterStats reports limiter counters.
type RateLimiterStats struct {
	Calls  int64         `json:"calls" yaml:"calls"`
	Waited time.Duration `json:"waited" yaml:"waited"`
}

// NewRateLimiter creates a limiter allowing requestsPerMinute calls per minute.
// Returns nil when requestsPerMinute <= 0; a nil limiter never blocks.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	return &RateLimiter{
		perMinute: requestsPerMinute,
		tokens:    float64(requestsPerMinute),
		last:      time.Now(),
		now:       time.Now,
	}
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil {
		return nil
	}
	for {
		r.mu.Lock()
		r.refill()
		if r.tokens >= 1.0 {
			r.tokens--
			r.calls++
			r.mu.Unlock()
			return nil
		}
		wait := r.untilNextToken()
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
			r.mu.Lock()
			r.waited += wait
			r.mu.Unlock()
		}
	}
}

// Stats returns the number of calls admitted and total time spent waiting.
func (r *RateLimiter) Stats() RateLimiterStats {
	if r == nil {
		return RateLimiterStats{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return RateLimiterStats{Calls: r.calls, Waited: r.waited}
}

// refill must be called with mu held.
func (r *RateLimiter) refill() {
	now := r.now()
	elapsed := now.Sub(r.last).Seconds()
	r.last = now

	r.tokens += elapsed * r.perSecond()
	if ceiling := float64(r.perMinute); r.tokens > ceiling {
		r.tokens = ceiling
	}
}

func (r *RateLimiter) untilNextToken() time.Duration {
	missing := 1.0 - r.tokens
	return time.Duration(missing / r.perSecond() * float64(time.Second))
}

func (r *RateLimiter) perSecond() float64 {
	return float64(r.perMinute) / 60.0
}

// throttled paces every call to the wrapped Service.
type throttled struct {
	Service
	limiter *RateLimiter
}

// WithRateLimit returns svc with every Submit and Status call paced by l.
// A nil limiter returns svc unchanged.
func WithRateLimit(svc Service, l *RateLimiter) Service {
	if l == nil {
		return svc
	}
	return &throttled{Service: svc, limiter: l}
}

func (t *throttled) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return t.Service.Submit(ctx, req)
}

func (t *throttled) Status(ctx context.Context, taskID string) (*Task, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		// The task itself is fine; the check just never happened.
		return nil, fmt.Errorf("%w: %w", ErrTransient, err)
	}
	return t.Service.Status(ctx, taskID)
}
