package client

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"rpc-stack/message"
	"rpc-stack/middleware"
)

func benchMock(ctx context.Context, req *message.Request) (*message.Response, error) {
	return &message.Response{Result: json.RawMessage(`{"value":50}`)}, nil
}

// ---- 基准：不同层组合下的单次调用开销 ----

func BenchmarkMockNoLayers(b *testing.B) {
	c, err := NewBuilder().Mock(benchMock)
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Invoke[balance](ctx, c, "getBalance", "abc"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCacheHit(b *testing.B) {
	c, err := NewBuilder().Cache(middleware.CacheConfig{TTL: time.Minute}).Mock(benchMock)
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Invoke[balance](ctx, c, "getBalance", "abc"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFullPipelineParallel(b *testing.B) {
	c, err := NewBuilder().
		LoadShed().
		ConcurrencyLimit(64).
		Timeout(time.Second).
		Retry(middleware.RetryConfig{MaxAttempts: 3}).
		Cache(middleware.CacheConfig{TTL: time.Minute, Coalesce: true}).
		Mock(benchMock)
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = Invoke[balance](ctx, c, "getBalance", "abc")
		}
	})
}
