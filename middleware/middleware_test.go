package middleware

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpc-stack/message"
)

func recordingLayer(name string, rec *recorder) Layer {
	return func(next Stage) Stage {
		return StageFunc(func(ctx context.Context, req *message.Request) (*message.Response, error) {
			rec.add(name + " pre")
			resp, err := next.Call(ctx, req)
			rec.add(name + " post")
			return resp, err
		})
	}
}

func TestChainOrder(t *testing.T) {
	rec := &recorder{}
	terminal := StageFunc(func(ctx context.Context, req *message.Request) (*message.Response, error) {
		rec.add("transport")
		return respond(`1`), nil
	})

	stage := Chain(recordingLayer("a", rec), recordingLayer("b", rec), recordingLayer("c", rec))(terminal)
	resp, err := stage.Call(context.Background(), request("getSlot", `[]`))
	require.NoError(t, err)
	assert.Equal(t, "1", string(resp.Result))

	assert.Equal(t, []string{
		"a pre", "b pre", "c pre",
		"transport",
		"c post", "b post", "a post",
	}, rec.snapshot())
}

func TestChainEmpty(t *testing.T) {
	stage := Chain()(echoStage)
	resp, err := stage.Call(context.Background(), request("getSlot", `[]`))
	require.NoError(t, err)
	assert.Equal(t, `"ok"`, string(resp.Result))
	assert.True(t, stage.Ready())
}

func TestChainDoesNotTouchInner(t *testing.T) {
	inner := newCountingStage(func(ctx context.Context, req *message.Request, n int64) (*message.Response, error) {
		return respond(`"inner"`), nil
	})
	_ = Chain(LoadShedMiddleware(), FilterMiddleware(DenyMethods("x")))(inner)

	resp, err := inner.Call(context.Background(), request("x", `[]`))
	require.NoError(t, err)
	assert.Equal(t, `"inner"`, string(resp.Result))
}

func TestWrappedReadiness(t *testing.T) {
	ready := false
	inner := newCountingStage(nil)
	inner.ready = func() bool { return ready }

	stage := FilterMiddleware(AllowMethods("a"))(inner)
	assert.False(t, stage.Ready())
	ready = true
	assert.True(t, stage.Ready())
}
