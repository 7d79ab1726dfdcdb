package middleware

import (
	"context"
	"time"

	"rpc-stack/message"
	"rpc-stack/rpcerr"
)

type result struct {
	resp *message.Response
	err  error
}

// TimeOutMiddleware bounds each call to the given duration. The inner call
// sees a context with the deadline; the caller gets a canceled error as soon
// as it passes even if the inner stage ignores its context.
func TimeOutMiddleware(timeout time.Duration) Layer {
	return func(next Stage) Stage {
		return &timeoutStage{wrapped: wrapped{next}, timeout: timeout}
	}
}

type timeoutStage struct {
	wrapped
	timeout time.Duration
}

func (s *timeoutStage) Call(ctx context.Context, req *message.Request) (*message.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		resp, err := s.next.Call(ctx, req)
		done <- result{resp, err}
	}()

	select {
	case r := <-done:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, rpcerr.Canceled(ctx.Err())
	}
}
