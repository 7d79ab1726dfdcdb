package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"rpc-stack/message"
	"rpc-stack/rpcerr"
)

// CacheConfig configures CacheMiddleware.
type CacheConfig struct {
	// TTL is how long a stored response stays fresh. Zero never expires.
	TTL time.Duration
	// Coalesce merges concurrent misses for the same key into one inner
	// call. Without it every miss calls the inner stage and the last one to
	// finish wins the cache slot.
	Coalesce bool
	// MaxEntries bounds the store, evicting the least recently used entry.
	// Zero is unbounded.
	MaxEntries int
	// Methods limits caching to these methods. Empty caches every method.
	Methods []string
	// Key defaults to (*message.Request).Key.
	Key    func(*message.Request) string
	Logger *zap.Logger
}

// CacheMiddleware answers repeated requests from stored responses. Only
// successful responses are stored.
func CacheMiddleware(cfg CacheConfig) (Layer, error) {
	if cfg.TTL < 0 {
		return nil, fmt.Errorf("cache ttl must not be negative, got %v", cfg.TTL)
	}
	if cfg.MaxEntries < 0 {
		return nil, fmt.Errorf("cache max entries must not be negative, got %d", cfg.MaxEntries)
	}
	if cfg.Key == nil {
		cfg.Key = (*message.Request).Key
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	var methods map[string]struct{}
	if len(cfg.Methods) > 0 {
		methods = make(map[string]struct{}, len(cfg.Methods))
		for _, m := range cfg.Methods {
			methods[m] = struct{}{}
		}
	}
	return func(next Stage) Stage {
		return &CacheStage{
			wrapped: wrapped{next},
			cfg:     cfg,
			methods: methods,
			store:   expirable.NewLRU[string, *message.Response](cfg.MaxEntries, nil, cfg.TTL),
		}
	}, nil
}

// CacheStage is the Stage produced by CacheMiddleware.
type CacheStage struct {
	wrapped
	cfg     CacheConfig
	methods map[string]struct{}
	store   *expirable.LRU[string, *message.Response]
	flight  singleflight.Group
}

// Call serves fresh entries without calling the inner stage.
func (s *CacheStage) Call(ctx context.Context, req *message.Request) (*message.Response, error) {
	if !s.cacheable(req) {
		return s.next.Call(ctx, req)
	}
	key := s.cfg.Key(req)
	if resp, ok := s.store.Get(key); ok {
		return resp.Clone(), nil
	}
	if !s.cfg.Coalesce {
		resp, err := s.next.Call(ctx, req)
		if err != nil {
			return nil, err
		}
		s.store.Add(key, resp.Clone())
		return resp, nil
	}

	// The shared call must outlive any single waiter giving up.
	shared := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(key, func() (any, error) {
		resp, err := s.next.Call(shared, req)
		if err != nil {
			return nil, err
		}
		s.store.Add(key, resp.Clone())
		return resp, nil
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		if r.Shared {
			s.cfg.Logger.Debug("coalesced rpc call", zap.String("method", req.Method))
		}
		return r.Val.(*message.Response).Clone(), nil
	case <-ctx.Done():
		return nil, rpcerr.Canceled(ctx.Err())
	}
}

// Len returns the number of stored entries, expired ones included until they
// are purged.
func (s *CacheStage) Len() int {
	return s.store.Len()
}

// Purge drops every stored entry.
func (s *CacheStage) Purge() {
	s.store.Purge()
}

func (s *CacheStage) cacheable(req *message.Request) bool {
	if s.methods == nil {
		return true
	}
	_, ok := s.methods[req.Method]
	return ok
}
