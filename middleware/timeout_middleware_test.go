package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpc-stack/message"
	"rpc-stack/rpcerr"
)

// 模拟一个慢 stage：睡 200ms，不理会 ctx
var slowStage = StageFunc(func(ctx context.Context, req *message.Request) (*message.Response, error) {
	time.Sleep(200 * time.Millisecond)
	return respond(`"ok"`), nil
})

func TestTimeoutPass(t *testing.T) {
	// 超时 500ms，stage 很快，应该正常返回
	stage := TimeOutMiddleware(500 * time.Millisecond)(echoStage)

	resp, err := stage.Call(context.Background(), request("getSlot", `[]`))
	require.NoError(t, err)
	assert.Equal(t, `"ok"`, string(resp.Result))
}

func TestTimeoutExceeded(t *testing.T) {
	// 超时 50ms，stage 需要 200ms，应该超时
	stage := TimeOutMiddleware(50 * time.Millisecond)(slowStage)

	start := time.Now()
	_, err := stage.Call(context.Background(), request("getSlot", `[]`))
	assert.Less(t, time.Since(start), 150*time.Millisecond)

	var e *rpcerr.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, rpcerr.KindCanceled, e.Kind)
	assert.Equal(t, "request timed out", e.Message)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestTimeoutPropagatesDeadline(t *testing.T) {
	var hasDeadline bool
	inner := StageFunc(func(ctx context.Context, req *message.Request) (*message.Response, error) {
		_, hasDeadline = ctx.Deadline()
		return respond(`1`), nil
	})
	_, err := TimeOutMiddleware(time.Second)(inner).Call(context.Background(), request("getSlot", `[]`))
	require.NoError(t, err)
	assert.True(t, hasDeadline)
}
