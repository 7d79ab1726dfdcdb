package middleware

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"rpc-stack/backoff"
	"rpc-stack/message"
	"rpc-stack/rpcerr"
)

const (
	defaultRetryDelay = 500 * time.Millisecond
	// Retry-After hints at or above this are ignored in favour of the backoff.
	maxRetryAfter = 120 * time.Second
)

// RetryConfig configures RetryMiddleware.
type RetryConfig struct {
	// MaxAttempts counts the first call, so 3 means up to two retries.
	MaxAttempts int
	// Backoff defaults to a fixed 500ms delay.
	Backoff backoff.Strategy
	// Retryable defaults to DefaultRetryable.
	Retryable func(error) bool
	Logger    *zap.Logger
}

// DefaultRetryable retries transport failures and server side rate limiting.
func DefaultRetryable(err error) bool {
	switch rpcerr.KindOf(err) {
	case rpcerr.KindTransport, rpcerr.KindRateLimited:
		return true
	}
	return false
}

// RetryMiddleware re-issues a request that failed with a retryable error.
// It does not check idempotence: only put it in front of calls that are safe
// to repeat.
func RetryMiddleware(cfg RetryConfig) (Layer, error) {
	if cfg.MaxAttempts <= 0 {
		return nil, fmt.Errorf("retry max attempts must be positive, got %d", cfg.MaxAttempts)
	}
	if cfg.Backoff == nil {
		cfg.Backoff = backoff.Fixed(defaultRetryDelay)
	}
	if cfg.Retryable == nil {
		cfg.Retryable = DefaultRetryable
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return func(next Stage) Stage {
		return &retryStage{wrapped: wrapped{next}, cfg: cfg}
	}, nil
}

type retryStage struct {
	wrapped
	cfg RetryConfig
}

func (s *retryStage) Call(ctx context.Context, req *message.Request) (*message.Response, error) {
	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := s.delay(uint(attempt-1), lastErr)
			if _, ctxWillTimeout := getTimeLeft(ctx, delay); ctxWillTimeout {
				return nil, lastErr
			}
			s.cfg.Logger.Debug("retrying rpc call",
				zap.String("method", req.Method),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, rpcerr.Canceled(ctx.Err())
			}
		}

		resp, err := s.next.Call(ctx, req)
		if err == nil {
			return resp, nil
		}
		if !s.cfg.Retryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, exhausted(lastErr, s.cfg.MaxAttempts)
}

func (s *retryStage) delay(attempt uint, err error) time.Duration {
	if e, ok := err.(*rpcerr.Error); ok && e.Kind == rpcerr.KindRateLimited {
		if e.RetryAfter > 0 && e.RetryAfter < maxRetryAfter {
			return e.RetryAfter
		}
	}
	return s.cfg.Backoff.Duration(attempt)
}

// exhausted tags the last error with the attempt count. Its kind, code and
// message are left alone.
func exhausted(err error, attempts int) error {
	e, ok := err.(*rpcerr.Error)
	if !ok {
		return err
	}
	tagged := *e
	tagged.Attempts = attempts
	tagged.Exhausted = true
	return &tagged
}

// getTimeLeft will return the amount of time left in the context or the
// "max" duration passed in.  It will also return a boolean indicating
// whether the context will timeout.
func getTimeLeft(ctx context.Context, max time.Duration) (timeleft time.Duration, ctxWillTimeout bool) {
	ctxDeadline, ok := ctx.Deadline()
	if !ok {
		return max, false
	}
	now := time.Now()
	if ctxDeadline.After(now.Add(max)) {
		return max, false
	}
	return ctxDeadline.Sub(now), true
}
