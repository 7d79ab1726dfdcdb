package middleware

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/atomic"

	"rpc-stack/message"
)

// echoStage 模拟一个简单的 stage：直接返回成功响应
var echoStage = StageFunc(func(ctx context.Context, req *message.Request) (*message.Response, error) {
	return &message.Response{Result: json.RawMessage(`"ok"`)}, nil
})

// countingStage counts its calls and delegates the answer to fn.
type countingStage struct {
	calls *atomic.Int64
	fn    func(ctx context.Context, req *message.Request, n int64) (*message.Response, error)
	ready func() bool
}

func newCountingStage(fn func(ctx context.Context, req *message.Request, n int64) (*message.Response, error)) *countingStage {
	return &countingStage{calls: atomic.NewInt64(0), fn: fn}
}

func (s *countingStage) Call(ctx context.Context, req *message.Request) (*message.Response, error) {
	n := s.calls.Inc()
	return s.fn(ctx, req, n)
}

func (s *countingStage) Ready() bool {
	if s.ready != nil {
		return s.ready()
	}
	return true
}

func respond(v string) *message.Response {
	return &message.Response{Result: json.RawMessage(v)}
}

func request(method, params string) *message.Request {
	return message.NewRequest(method, json.RawMessage(params))
}

// recorder collects events from concurrently running stages.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}
