package middleware

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpc-stack/message"
	"rpc-stack/rpcerr"
)

func newRateLimited(t *testing.T, cfg RateLimitConfig, inner Stage) Stage {
	layer, err := RateLimitMiddleware(cfg)
	require.NoError(t, err)
	return layer(inner)
}

func TestRateLimitRejects(t *testing.T) {
	// rate=2 per hour, burst=2 → 前 2 个立刻放行，第 3 个被拒
	for _, strategy := range []RateLimitStrategy{TokenBucket, FixedWindow, SlidingWindow} {
		t.Run(strategy.String(), func(t *testing.T) {
			stage := newRateLimited(t, RateLimitConfig{Count: 2, Per: time.Hour, Strategy: strategy}, echoStage)
			req := request("getSlot", `[]`)

			for i := 0; i < 2; i++ {
				_, err := stage.Call(context.Background(), req)
				require.NoError(t, err, "request %d should pass", i)
			}

			_, err := stage.Call(context.Background(), req)
			require.Error(t, err)
			assert.True(t, rpcerr.IsRejected(err))
			assert.False(t, stage.Ready())
		})
	}
}

func TestFixedWindowResets(t *testing.T) {
	stage := newRateLimited(t, RateLimitConfig{Count: 2, Per: 50 * time.Millisecond, Strategy: FixedWindow}, echoStage)
	req := request("getSlot", `[]`)

	for i := 0; i < 2; i++ {
		_, err := stage.Call(context.Background(), req)
		require.NoError(t, err)
	}
	_, err := stage.Call(context.Background(), req)
	require.Error(t, err)

	time.Sleep(70 * time.Millisecond)
	assert.True(t, stage.Ready())
	_, err = stage.Call(context.Background(), req)
	assert.NoError(t, err)
}

func TestSlidingWindowBound(t *testing.T) {
	const (
		count = 3
		per   = 100 * time.Millisecond
		calls = 9
	)
	var (
		mu    sync.Mutex
		times []time.Time
	)
	inner := StageFunc(func(ctx context.Context, req *message.Request) (*message.Response, error) {
		mu.Lock()
		times = append(times, time.Now())
		mu.Unlock()
		return respond(`1`), nil
	})
	stage := newRateLimited(t, RateLimitConfig{Count: count, Per: per, Strategy: SlidingWindow, Queue: calls}, inner)

	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := stage.Call(context.Background(), request("getSlot", `[]`))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, times, calls)
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	for i := 0; i+count < len(times); i++ {
		gap := times[i+count].Sub(times[i])
		assert.True(t, gap >= per-10*time.Millisecond, "calls %d and %d only %v apart", i, i+count, gap)
	}
}

func TestRateLimitQueueIsFIFO(t *testing.T) {
	rec := &recorder{}
	inner := StageFunc(func(ctx context.Context, req *message.Request) (*message.Response, error) {
		rec.add(string(req.Params))
		return respond(`1`), nil
	})
	stage := newRateLimited(t, RateLimitConfig{Count: 1, Per: 30 * time.Millisecond, Strategy: SlidingWindow, Queue: 10}, inner)

	_, err := stage.Call(context.Background(), request("warmup", `[]`))
	require.NoError(t, err)

	var wg sync.WaitGroup
	want := []string{`[]`}
	for i := 0; i < 5; i++ {
		params := fmt.Sprintf("[%d]", i)
		want = append(want, params)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := stage.Call(context.Background(), request("getSlot", params))
			assert.NoError(t, err)
		}()
		time.Sleep(5 * time.Millisecond)
	}
	wg.Wait()

	assert.Equal(t, want, rec.snapshot())
}

func TestRateLimitQueueFullAndCancel(t *testing.T) {
	stage := newRateLimited(t, RateLimitConfig{Count: 1, Per: time.Hour, Strategy: TokenBucket, Queue: 1}, echoStage)
	req := request("getSlot", `[]`)

	_, err := stage.Call(context.Background(), req)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	waitErr := make(chan error, 1)
	go func() {
		_, err := stage.Call(ctx, req)
		waitErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	_, err = stage.Call(context.Background(), req)
	require.Error(t, err)
	assert.True(t, rpcerr.IsRejected(err))

	cancel()
	select {
	case err := <-waitErr:
		assert.Equal(t, rpcerr.KindCanceled, rpcerr.KindOf(err))
	case <-time.After(time.Second):
		t.Fatal("queued call did not observe cancellation")
	}

	// the queue position was released
	ctx, cancel = context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = stage.Call(ctx, req)
	assert.Equal(t, rpcerr.KindCanceled, rpcerr.KindOf(err))
}

func TestRateLimitConfigValidation(t *testing.T) {
	bad := []RateLimitConfig{
		{Count: 0, Per: time.Second},
		{Count: 1, Per: 0},
		{Count: 1, Per: time.Second, Queue: -1},
		{Count: 1, Per: time.Second, Strategy: RateLimitStrategy(9)},
		{Count: 10, Per: time.Nanosecond},
	}
	for _, cfg := range bad {
		_, err := RateLimitMiddleware(cfg)
		assert.Error(t, err, "%+v", cfg)
	}
}

func TestParseRateLimitStrategy(t *testing.T) {
	s, err := ParseRateLimitStrategy("sliding_window")
	require.NoError(t, err)
	assert.Equal(t, SlidingWindow, s)

	_, err = ParseRateLimitStrategy("leaky")
	assert.Error(t, err)
}
