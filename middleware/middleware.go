// Package middleware holds the composition engine of the RPC pipeline and its
// built-in layers.
//
// A Stage turns a Request into a Response. A Layer wraps one Stage into
// another that adds behavior before the call, after it, or answers without
// calling the inner Stage at all. Layers are applied outermost first:
//
//	Chain(a, b, c)(transport)  ==  a(b(c(transport)))
//
// so for one request the call order is a → b → c → transport → c → b → a.
package middleware

import (
	"context"

	"rpc-stack/message"
)

// Stage is one request → response unit of the pipeline.
//
// Call MUST return a non-nil Response or a non-nil error and MUST be safe for
// concurrent use. Ready is a non-blocking hint: false means a call made now
// would have to wait (or be refused) for capacity.
type Stage interface {
	Call(ctx context.Context, req *message.Request) (*message.Response, error)
	Ready() bool
}

// StageFunc adapts a function into an always-ready Stage.
type StageFunc func(ctx context.Context, req *message.Request) (*message.Response, error)

// Call for StageFunc.
func (f StageFunc) Call(ctx context.Context, req *message.Request) (*message.Response, error) {
	return f(ctx, req)
}

// Ready for StageFunc.
func (f StageFunc) Ready() bool {
	return true
}

// Layer wraps an inner Stage. It must not change the inner Stage, and every
// call it does not answer itself goes to exactly one inner call (retry
// excepted, which issues a new attempt per retry).
type Layer func(next Stage) Stage

// Chain 将多个中间件组合成一个中间件
func Chain(layers ...Layer) Layer {
	return func(next Stage) Stage {
		for i := len(layers) - 1; i >= 0; i-- {
			next = layers[i](next)
		}
		return next
	}
}

// wrapped is embedded by layers that keep the inner Stage's readiness.
type wrapped struct {
	next Stage
}

func (w wrapped) Ready() bool {
	return w.next.Ready()
}
