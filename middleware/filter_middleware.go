package middleware

import (
	"context"
	"errors"
	"fmt"

	"rpc-stack/message"
	"rpc-stack/rpcerr"
)

// Predicate inspects a request; a non-nil error rejects it. Predicates must
// not modify the request.
type Predicate func(ctx context.Context, req *message.Request) error

// FilterMiddleware rejects requests failing pred without reaching the inner
// stage. Errors that are not already classified become rejections.
func FilterMiddleware(pred Predicate) Layer {
	return func(next Stage) Stage {
		return &filterStage{wrapped: wrapped{next}, pred: pred}
	}
}

type filterStage struct {
	wrapped
	pred Predicate
}

func (s *filterStage) Call(ctx context.Context, req *message.Request) (*message.Response, error) {
	if err := s.pred(ctx, req); err != nil {
		var classified *rpcerr.Error
		if errors.As(err, &classified) {
			return nil, err
		}
		return nil, rpcerr.Rejected(err.Error())
	}
	return s.next.Call(ctx, req)
}

// AllowMethods passes only the listed methods.
func AllowMethods(methods ...string) Predicate {
	allowed := toSet(methods)
	return func(_ context.Context, req *message.Request) error {
		if _, ok := allowed[req.Method]; !ok {
			return fmt.Errorf("method %q not allowed", req.Method)
		}
		return nil
	}
}

// DenyMethods rejects the listed methods.
func DenyMethods(methods ...string) Predicate {
	denied := toSet(methods)
	return func(_ context.Context, req *message.Request) error {
		if _, ok := denied[req.Method]; ok {
			return fmt.Errorf("method %q not allowed", req.Method)
		}
		return nil
	}
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// ShortCircuitFunc may answer a request locally. handled=false forwards the
// request to the inner stage.
type ShortCircuitFunc func(ctx context.Context, req *message.Request) (resp *message.Response, handled bool, err error)

// ShortCircuitMiddleware lets fn return early with a response or an error.
func ShortCircuitMiddleware(fn ShortCircuitFunc) Layer {
	return func(next Stage) Stage {
		return &shortCircuitStage{wrapped: wrapped{next}, fn: fn}
	}
}

type shortCircuitStage struct {
	wrapped
	fn ShortCircuitFunc
}

func (s *shortCircuitStage) Call(ctx context.Context, req *message.Request) (*message.Response, error) {
	resp, handled, err := s.fn(ctx, req)
	if !handled {
		return s.next.Call(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, rpcerr.Rejected("short circuit returned no response")
	}
	return resp, nil
}
