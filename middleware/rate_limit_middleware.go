package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"rpc-stack/message"
	"rpc-stack/rpcerr"
)

// RateLimitStrategy selects how "Count per Per" is enforced.
type RateLimitStrategy int

const (
	// TokenBucket allows bursts of Count and refills Count tokens every Per.
	TokenBucket RateLimitStrategy = iota
	// FixedWindow allows Count calls per window; the window restarts on the
	// first call after it ends.
	FixedWindow
	// SlidingWindow allows at most Count calls in any span of length Per.
	SlidingWindow
)

func (s RateLimitStrategy) String() string {
	switch s {
	case TokenBucket:
		return "token_bucket"
	case FixedWindow:
		return "fixed_window"
	case SlidingWindow:
		return "sliding_window"
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// ParseRateLimitStrategy is the inverse of RateLimitStrategy.String.
func ParseRateLimitStrategy(name string) (RateLimitStrategy, error) {
	for _, s := range []RateLimitStrategy{TokenBucket, FixedWindow, SlidingWindow} {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown rate limit strategy %q", name)
}

// RateLimitConfig configures RateLimitMiddleware.
type RateLimitConfig struct {
	Count    int
	Per      time.Duration
	Strategy RateLimitStrategy
	// Queue is how many callers may wait for a grant at once. Zero rejects
	// any call that cannot be granted immediately.
	Queue  int
	Logger *zap.Logger
}

func (c RateLimitConfig) validate() error {
	if c.Count <= 0 {
		return fmt.Errorf("rate limit count must be positive, got %d", c.Count)
	}
	if c.Per <= 0 {
		return fmt.Errorf("rate limit period must be positive, got %v", c.Per)
	}
	if c.Strategy == TokenBucket && c.Per/time.Duration(c.Count) <= 0 {
		return fmt.Errorf("rate limit period %v is too short for %d tokens", c.Per, c.Count)
	}
	if c.Queue < 0 {
		return fmt.Errorf("rate limit queue must not be negative, got %d", c.Queue)
	}
	if _, err := ParseRateLimitStrategy(c.Strategy.String()); err != nil {
		return err
	}
	return nil
}

// RateLimitMiddleware bounds the throughput reaching the inner stage.
// Waiting callers are granted in arrival order.
func RateLimitMiddleware(cfg RateLimitConfig) (Layer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return func(next Stage) Stage {
		return &rateLimitStage{
			next:    next,
			logger:  cfg.Logger,
			grants:  newGrantor(cfg),
			queue:   int64(cfg.Queue),
			turn:    make(chan struct{}, 1),
			waiting: atomic.NewInt64(0),
		}
	}, nil
}

type rateLimitStage struct {
	next   Stage
	logger *zap.Logger

	mu     sync.Mutex // guards grants
	grants grantor

	queue   int64
	waiting *atomic.Int64
	// turn is held by the head of the wait queue. Blocked senders on a
	// channel are released in FIFO order.
	turn chan struct{}
}

func (s *rateLimitStage) Call(ctx context.Context, req *message.Request) (*message.Response, error) {
	if err := s.acquire(ctx); err != nil {
		s.logger.Debug("rate limited rpc call", zap.String("method", req.Method), zap.Error(err))
		return nil, err
	}
	return s.next.Call(ctx, req)
}

func (s *rateLimitStage) Ready() bool {
	if s.waiting.Load() > 0 {
		return false
	}
	s.mu.Lock()
	ok := s.grants.available(time.Now())
	s.mu.Unlock()
	return ok && s.next.Ready()
}

func (s *rateLimitStage) reserve() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grants.reserve(time.Now())
}

func (s *rateLimitStage) acquire(ctx context.Context) error {
	if s.queue == 0 {
		if s.reserve() > 0 {
			return rpcerr.Rejected("rate limit exceeded")
		}
		return nil
	}

	if s.waiting.Inc() > s.queue {
		s.waiting.Dec()
		return rpcerr.Rejected("rate limit exceeded: queue full")
	}
	defer s.waiting.Dec()

	select {
	case s.turn <- struct{}{}:
	case <-ctx.Done():
		return rpcerr.Canceled(ctx.Err())
	}
	defer func() { <-s.turn }()

	for {
		wait := s.reserve()
		if wait <= 0 {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return rpcerr.Canceled(ctx.Err())
		}
	}
}

// grantor decides when the next call may pass. It is not safe for concurrent
// use; rateLimitStage serializes access.
type grantor interface {
	// reserve records a grant and returns zero if one is available at now.
	// Otherwise it records nothing and returns the time until one is.
	reserve(now time.Time) time.Duration
	available(now time.Time) bool
}

func newGrantor(cfg RateLimitConfig) grantor {
	switch cfg.Strategy {
	case FixedWindow:
		return &fixedWindow{count: cfg.Count, per: cfg.Per}
	case SlidingWindow:
		return &slidingWindow{per: cfg.Per, grants: make([]time.Time, cfg.Count)}
	default:
		return &tokenBucket{rate.NewLimiter(rate.Every(cfg.Per/time.Duration(cfg.Count)), cfg.Count)}
	}
}

type tokenBucket struct {
	limiter *rate.Limiter
}

func (b *tokenBucket) reserve(now time.Time) time.Duration {
	r := b.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return delay
	}
	return 0
}

func (b *tokenBucket) available(now time.Time) bool {
	return b.limiter.TokensAt(now) >= 1
}

type fixedWindow struct {
	count int
	per   time.Duration
	start time.Time
	used  int
}

func (w *fixedWindow) roll(now time.Time) {
	if now.Sub(w.start) >= w.per {
		w.start = now
		w.used = 0
	}
}

func (w *fixedWindow) reserve(now time.Time) time.Duration {
	w.roll(now)
	if w.used < w.count {
		w.used++
		return 0
	}
	return w.start.Add(w.per).Sub(now)
}

func (w *fixedWindow) available(now time.Time) bool {
	return now.Sub(w.start) >= w.per || w.used < w.count
}

// slidingWindow keeps the time of the last len(grants) grants in a ring.
// Once full, next indexes the oldest one.
type slidingWindow struct {
	per    time.Duration
	grants []time.Time
	next   int
	filled int
}

func (w *slidingWindow) reserve(now time.Time) time.Duration {
	if w.filled == len(w.grants) {
		oldest := w.grants[w.next]
		if wait := oldest.Add(w.per).Sub(now); wait > 0 {
			return wait
		}
	} else {
		w.filled++
	}
	w.grants[w.next] = now
	w.next = (w.next + 1) % len(w.grants)
	return 0
}

func (w *slidingWindow) available(now time.Time) bool {
	return w.filled < len(w.grants) || !w.grants[w.next].Add(w.per).After(now)
}
