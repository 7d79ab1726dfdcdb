package middleware

import (
	"context"

	"rpc-stack/message"
	"rpc-stack/rpcerr"
)

// LoadShedMiddleware fails calls at once while the inner stage is not ready,
// instead of letting them queue.
func LoadShedMiddleware() Layer {
	return func(next Stage) Stage {
		return &loadShedStage{next: next}
	}
}

type loadShedStage struct {
	next Stage
}

func (s *loadShedStage) Call(ctx context.Context, req *message.Request) (*message.Response, error) {
	if !s.next.Ready() {
		return nil, rpcerr.Rejected("load shed: service not ready")
	}
	return s.next.Call(ctx, req)
}

// Ready is always true: a shedding stage answers every call without waiting.
func (s *loadShedStage) Ready() bool {
	return true
}
