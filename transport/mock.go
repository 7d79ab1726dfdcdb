package transport

import (
	"context"
	"encoding/json"

	"rpc-stack/message"
	"rpc-stack/rpcerr"
)

// MockFunc produces the reply for one request.
type MockFunc func(ctx context.Context, req *message.Request) (*message.Response, error)

// MockStage answers from a function instead of the network. It goes where
// an HTTPStage would, under the same layers.
type MockStage struct {
	fn MockFunc
}

func NewMock(fn MockFunc) *MockStage {
	return &MockStage{fn: fn}
}

func (s *MockStage) Call(ctx context.Context, req *message.Request) (*message.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, rpcerr.Canceled(err)
	}
	return s.fn(ctx, req)
}

func (s *MockStage) Ready() bool {
	return true
}

// MockResults answers each method with a fixed value, marshalled once up
// front. Unknown methods fail like a JSON-RPC server would.
func MockResults(results map[string]any) (MockFunc, error) {
	encoded := make(map[string]json.RawMessage, len(results))
	for method, v := range results {
		if raw, ok := v.(json.RawMessage); ok {
			encoded[method] = raw
			continue
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		encoded[method] = data
	}
	return func(_ context.Context, req *message.Request) (*message.Response, error) {
		result, ok := encoded[req.Method]
		if !ok {
			return nil, rpcerr.Application(-32601, "method not found", nil)
		}
		return &message.Response{Result: append(json.RawMessage(nil), result...)}, nil
	}, nil
}
