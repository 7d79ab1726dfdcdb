package middleware

import (
	"context"
	"fmt"

	"go.uber.org/atomic"
	"golang.org/x/sync/semaphore"

	"rpc-stack/message"
	"rpc-stack/rpcerr"
)

// ConcurrencyLimitMiddleware allows at most maxInFlight calls inside the inner
// stage at once. Callers beyond that wait, in arrival order, for a slot or for
// their context to end.
func ConcurrencyLimitMiddleware(maxInFlight int) (Layer, error) {
	if maxInFlight <= 0 {
		return nil, fmt.Errorf("concurrency limit must be positive, got %d", maxInFlight)
	}
	return func(next Stage) Stage {
		return &ConcurrencyLimitStage{
			next:     next,
			slots:    semaphore.NewWeighted(int64(maxInFlight)),
			max:      int64(maxInFlight),
			inFlight: atomic.NewInt64(0),
		}
	}, nil
}

// ConcurrencyLimitStage is the Stage produced by ConcurrencyLimitMiddleware.
type ConcurrencyLimitStage struct {
	next     Stage
	slots    *semaphore.Weighted
	max      int64
	inFlight *atomic.Int64
}

// Call waits for a slot and holds it until the inner call returns, panics
// included.
func (s *ConcurrencyLimitStage) Call(ctx context.Context, req *message.Request) (*message.Response, error) {
	if err := s.slots.Acquire(ctx, 1); err != nil {
		return nil, rpcerr.Canceled(err)
	}
	s.inFlight.Inc()
	defer func() {
		s.inFlight.Dec()
		s.slots.Release(1)
	}()
	return s.next.Call(ctx, req)
}

// Ready is false while every slot is taken.
func (s *ConcurrencyLimitStage) Ready() bool {
	return s.inFlight.Load() < s.max && s.next.Ready()
}

// InFlight returns how many calls currently hold a slot.
func (s *ConcurrencyLimitStage) InFlight() int64 {
	return s.inFlight.Load()
}
