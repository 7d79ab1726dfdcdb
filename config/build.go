package config

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"rpc-stack/backoff"
	"rpc-stack/client"
	"rpc-stack/loadbalance"
	"rpc-stack/middleware"
	"rpc-stack/registry"
	"rpc-stack/transport"
)

// Build assembles the described pipeline. Parameter errors the validator
// does not catch, such as a rate below one call per nanosecond, surface here.
func (c *Config) Build(ctx context.Context, opts ...client.Option) (*client.Client, error) {
	httpOpts := []transport.HTTPOption{transport.WithTimeout(c.Transport.Timeout)}
	for k, v := range c.Transport.Headers {
		httpOpts = append(httpOpts, transport.WithHeader(k, v))
	}
	b := client.NewBuilder(append(opts, client.WithHTTPOptions(httpOpts...))...)

	var err error
	for i, l := range c.Layers {
		if lerr := c.addLayer(b, l); lerr != nil {
			err = multierr.Append(err, fmt.Errorf("layers[%d] (%s): %w", i, l.Type, lerr))
		}
	}
	if err = multierr.Append(b.Err(), err); err != nil {
		return nil, err
	}

	strategy := loadbalance.Strategy(c.Transport.Strategy)
	switch t := c.Transport; {
	case t.Mock != nil:
		fn, merr := transport.MockResults(t.Mock)
		if merr != nil {
			return nil, fmt.Errorf("transport.mock: %w", merr)
		}
		return b.Mock(fn)
	case len(t.Endpoints) > 0:
		return b.LoadBalance(strategy, t.Endpoints...)
	case t.Registry != nil:
		reg, rerr := registry.NewEtcdRegistry(t.Registry.Etcd)
		if rerr != nil {
			return nil, fmt.Errorf("transport.registry: %w", rerr)
		}
		// discovery happens once, the connection is not needed afterwards
		defer reg.Close()
		return b.Discover(ctx, reg, t.Registry.Service, strategy)
	default:
		return b.HTTP(t.URL)
	}
}

// NewLogger returns a production logger at log_level.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func (c *Config) addLayer(b *client.Builder, l LayerConfig) error {
	switch l.Type {
	case LayerRateLimit:
		strategy := middleware.TokenBucket
		if l.Strategy != "" {
			s, err := middleware.ParseRateLimitStrategy(l.Strategy)
			if err != nil {
				return err
			}
			strategy = s
		}
		b.RateLimit(middleware.RateLimitConfig{Count: l.Count, Per: l.Per, Strategy: strategy, Queue: l.Queue})
	case LayerConcurrencyLimit:
		b.ConcurrencyLimit(l.Max)
	case LayerLoadShed:
		b.LoadShed()
	case LayerTimeout:
		b.Timeout(l.Duration)
	case LayerRetry:
		strategy, err := l.Backoff.strategy()
		if err != nil {
			return err
		}
		b.Retry(middleware.RetryConfig{MaxAttempts: l.MaxAttempts, Backoff: strategy})
	case LayerCache:
		b.Cache(middleware.CacheConfig{TTL: l.TTL, Coalesce: l.Coalesce, MaxEntries: l.MaxEntries, Methods: l.Methods})
	case LayerFilter:
		if len(l.Allow) > 0 {
			b.Filter(middleware.AllowMethods(l.Allow...))
		} else {
			b.Filter(middleware.DenyMethods(l.Deny...))
		}
	case LayerLogging:
		b.Logging()
	case LayerMetrics:
		reg := c.Registerer
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		m, err := middleware.NewMetrics(reg, l.Namespace)
		if err != nil {
			return err
		}
		b.Metrics(m)
	default:
		return fmt.Errorf("unknown layer type %q", l.Type)
	}
	return nil
}

func (c *BackoffConfig) strategy() (backoff.Strategy, error) {
	if c == nil {
		return nil, nil
	}
	switch c.Type {
	case "exponential":
		var opts []backoff.ExponentialOption
		if c.Jitter {
			opts = append(opts, backoff.WithJitter())
		}
		return backoff.NewExponential(c.Base, c.Cap, opts...)
	default:
		delay := c.Delay
		if delay == 0 {
			delay = 500 * time.Millisecond
		}
		return backoff.Fixed(delay), nil
	}
}
