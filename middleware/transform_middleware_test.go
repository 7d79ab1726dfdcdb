package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpc-stack/message"
	"rpc-stack/rpcerr"
)

func TestPreProcessInjectsParams(t *testing.T) {
	var seen string
	inner := StageFunc(func(ctx context.Context, req *message.Request) (*message.Response, error) {
		seen = string(req.Params)
		return respond(`1`), nil
	})
	stage := PreProcessMiddleware(func(ctx context.Context, req *message.Request) (*message.Request, error) {
		req.Params = json.RawMessage(`["abc",{"commitment":"finalized"}]`)
		return req, nil
	})(inner)

	original := request("getBalance", `["abc"]`)
	_, err := stage.Call(context.Background(), original)
	require.NoError(t, err)
	assert.Equal(t, `["abc",{"commitment":"finalized"}]`, seen)
	assert.Equal(t, `["abc"]`, string(original.Params))
}

func TestPreProcessFailureRejects(t *testing.T) {
	inner := newCountingStage(func(ctx context.Context, req *message.Request, n int64) (*message.Response, error) {
		return respond(`1`), nil
	})
	stage := PreProcessMiddleware(func(ctx context.Context, req *message.Request) (*message.Request, error) {
		return nil, errors.New("bad params")
	})(inner)

	_, err := stage.Call(context.Background(), request("getBalance", `[]`))
	assert.True(t, rpcerr.IsRejected(err))
	assert.Equal(t, int64(0), inner.calls.Load())
}

func TestPostProcessOnlyOnSuccess(t *testing.T) {
	post := PostProcessMiddleware(func(ctx context.Context, req *message.Request, resp *message.Response) (*message.Response, error) {
		var v struct {
			Value int `json:"value"`
		}
		if err := json.Unmarshal(resp.Result, &v); err != nil {
			return nil, rpcerr.Decode(err)
		}
		return respond(fmt.Sprintf(`{"value":%d,"checked":true}`, v.Value)), nil
	})

	resp, err := post(StageFunc(func(ctx context.Context, req *message.Request) (*message.Response, error) {
		return respond(`{"value":5}`), nil
	})).Call(context.Background(), request("getBalance", `[]`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"value":5,"checked":true}`, string(resp.Result))

	failure := rpcerr.Transport(errors.New("connection reset"))
	_, err = post(StageFunc(func(ctx context.Context, req *message.Request) (*message.Response, error) {
		return nil, failure
	})).Call(context.Background(), request("getBalance", `[]`))
	assert.Same(t, failure, err)
}

func TestMapError(t *testing.T) {
	stage := MapErrorMiddleware(func(ctx context.Context, req *message.Request, err error) error {
		if rpcerr.KindOf(err) == rpcerr.KindApplication {
			return rpcerr.Transport(err)
		}
		return err
	})(StageFunc(func(ctx context.Context, req *message.Request) (*message.Response, error) {
		return nil, rpcerr.Application(-32005, "node is behind", nil)
	}))

	_, err := stage.Call(context.Background(), request("getSlot", `[]`))
	assert.Equal(t, rpcerr.KindTransport, rpcerr.KindOf(err))

	resp, err := MapErrorMiddleware(func(ctx context.Context, req *message.Request, err error) error {
		t.Fatal("called on success")
		return err
	})(echoStage).Call(context.Background(), request("getSlot", `[]`))
	require.NoError(t, err)
	assert.Equal(t, `"ok"`, string(resp.Result))
}
