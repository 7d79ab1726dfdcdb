package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"rpc-stack/codec"
	"rpc-stack/loadbalance"
	"rpc-stack/middleware"
	"rpc-stack/registry"
	"rpc-stack/transport"
)

var (
	// ErrNoTerminal is returned when a pipeline is built without a terminal
	// stage.
	ErrNoTerminal = errors.New("client: pipeline has no terminal stage")

	errNoResponse = errors.New("stage returned neither response nor error")
)

type options struct {
	logger      *zap.Logger
	codec       codec.Codec
	httpOptions []transport.HTTPOption
}

// Option configures NewBuilder.
type Option func(*options)

// WithLogger is used by the logging layer, the retry and cache layers and the
// HTTP transport. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithCodec replaces the JSON codec used for params and results.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithHTTPOptions applies to every HTTP transport the builder creates.
func WithHTTPOptions(opts ...transport.HTTPOption) Option {
	return func(o *options) {
		o.httpOptions = append(o.httpOptions, opts...)
	}
}

// Builder collects layers in call order: the first added is the outermost
// and sees each request first and its response last.
//
//	NewBuilder().RateLimit(..).Retry(..).Cache(..).HTTP(url)
//	== RateLimit(Retry(Cache(http)))
//
// Invalid layer parameters are collected and reported by the terminal call.
type Builder struct {
	opts   options
	layers []middleware.Layer
	err    error
}

func NewBuilder(opts ...Option) *Builder {
	b := &Builder{opts: options{logger: zap.NewNop(), codec: codec.Default()}}
	for _, opt := range opts {
		opt(&b.opts)
	}
	return b
}

// Layer appends a custom layer.
func (b *Builder) Layer(l middleware.Layer) *Builder {
	if l == nil {
		b.err = multierr.Append(b.err, fmt.Errorf("layer %d: nil layer", len(b.layers)))
		return b
	}
	b.layers = append(b.layers, l)
	return b
}

func (b *Builder) tryLayer(name string, l middleware.Layer, err error) *Builder {
	if err != nil {
		b.err = multierr.Append(b.err, fmt.Errorf("%s: %w", name, err))
		return b
	}
	return b.Layer(l)
}

func (b *Builder) RateLimit(cfg middleware.RateLimitConfig) *Builder {
	if cfg.Logger == nil {
		cfg.Logger = b.opts.logger
	}
	l, err := middleware.RateLimitMiddleware(cfg)
	return b.tryLayer("rate limit", l, err)
}

func (b *Builder) ConcurrencyLimit(maxInFlight int) *Builder {
	l, err := middleware.ConcurrencyLimitMiddleware(maxInFlight)
	return b.tryLayer("concurrency limit", l, err)
}

// LoadShed rejects calls the next layer is not ready for. Put it right in
// front of a ConcurrencyLimit or RateLimit.
func (b *Builder) LoadShed() *Builder {
	return b.Layer(middleware.LoadShedMiddleware())
}

func (b *Builder) Timeout(d time.Duration) *Builder {
	if d <= 0 {
		b.err = multierr.Append(b.err, fmt.Errorf("timeout: must be positive, got %v", d))
		return b
	}
	return b.Layer(middleware.TimeOutMiddleware(d))
}

func (b *Builder) Retry(cfg middleware.RetryConfig) *Builder {
	if cfg.Logger == nil {
		cfg.Logger = b.opts.logger
	}
	l, err := middleware.RetryMiddleware(cfg)
	return b.tryLayer("retry", l, err)
}

func (b *Builder) Cache(cfg middleware.CacheConfig) *Builder {
	if cfg.Logger == nil {
		cfg.Logger = b.opts.logger
	}
	l, err := middleware.CacheMiddleware(cfg)
	return b.tryLayer("cache", l, err)
}

func (b *Builder) Filter(pred middleware.Predicate) *Builder {
	if pred == nil {
		return b.tryLayer("filter", nil, errors.New("nil predicate"))
	}
	return b.Layer(middleware.FilterMiddleware(pred))
}

func (b *Builder) ShortCircuit(fn middleware.ShortCircuitFunc) *Builder {
	if fn == nil {
		return b.tryLayer("short circuit", nil, errors.New("nil function"))
	}
	return b.Layer(middleware.ShortCircuitMiddleware(fn))
}

func (b *Builder) PreProcess(fn middleware.PreProcessFunc) *Builder {
	if fn == nil {
		return b.tryLayer("pre process", nil, errors.New("nil function"))
	}
	return b.Layer(middleware.PreProcessMiddleware(fn))
}

func (b *Builder) PostProcess(fn middleware.PostProcessFunc) *Builder {
	if fn == nil {
		return b.tryLayer("post process", nil, errors.New("nil function"))
	}
	return b.Layer(middleware.PostProcessMiddleware(fn))
}

func (b *Builder) MapError(fn middleware.MapErrorFunc) *Builder {
	if fn == nil {
		return b.tryLayer("map error", nil, errors.New("nil function"))
	}
	return b.Layer(middleware.MapErrorMiddleware(fn))
}

// Logging logs every call with the builder's logger.
func (b *Builder) Logging() *Builder {
	return b.Layer(middleware.LoggingMiddleware(b.opts.logger))
}

func (b *Builder) Metrics(m *middleware.Metrics) *Builder {
	if m == nil {
		return b.tryLayer("metrics", nil, errors.New("nil metrics"))
	}
	return b.Layer(middleware.MetricsMiddleware(m))
}

// Err returns the layer parameter errors collected so far.
func (b *Builder) Err() error {
	return b.err
}

// Build composes the layers around terminal.
func (b *Builder) Build(terminal middleware.Stage) (*Client, error) {
	err := b.err
	if terminal == nil {
		err = multierr.Append(err, ErrNoTerminal)
	}
	if err != nil {
		return nil, err
	}
	stage := middleware.Chain(b.layers...)(terminal)
	return newClient(stage, &b.opts), nil
}

// HTTP terminates the pipeline with a JSON-RPC over HTTP transport.
func (b *Builder) HTTP(url string, opts ...transport.HTTPOption) (*Client, error) {
	if url == "" {
		b.err = multierr.Append(b.err, errors.New("http: empty url"))
		return b.Build(nil)
	}
	return b.Build(b.httpStage(url, opts...))
}

func (b *Builder) httpStage(url string, opts ...transport.HTTPOption) *transport.HTTPStage {
	all := append([]transport.HTTPOption{transport.WithHTTPLogger(b.opts.logger)}, b.opts.httpOptions...)
	return transport.NewHTTP(url, append(all, opts...)...)
}

// Mock terminates the pipeline with fn instead of the network.
func (b *Builder) Mock(fn transport.MockFunc) (*Client, error) {
	if fn == nil {
		return b.Build(nil)
	}
	return b.Build(transport.NewMock(fn))
}

// LoadBalance terminates the pipeline with one HTTP transport per url,
// selected per call by strategy.
func (b *Builder) LoadBalance(strategy loadbalance.Strategy, urls ...string) (*Client, error) {
	instances := make([]registry.Instance, len(urls))
	for i, u := range urls {
		instances[i] = registry.Instance{URL: u, Weight: 1}
	}
	return b.balance(strategy, instances)
}

// Discover is LoadBalance over the instances reg lists for service at build
// time. The endpoint set does not change afterwards.
func (b *Builder) Discover(ctx context.Context, reg registry.Registry, service string, strategy loadbalance.Strategy) (*Client, error) {
	instances, err := reg.Discover(ctx, service)
	if err != nil {
		b.err = multierr.Append(b.err, fmt.Errorf("discover %s: %w", service, err))
		return b.Build(nil)
	}
	return b.balance(strategy, instances)
}

func (b *Builder) balance(strategy loadbalance.Strategy, instances []registry.Instance) (*Client, error) {
	endpoints := make([]loadbalance.Endpoint, 0, len(instances))
	for _, inst := range instances {
		endpoints = append(endpoints, loadbalance.Endpoint{
			Name:   inst.URL,
			Weight: inst.Weight,
			Stage:  b.httpStage(inst.URL),
		})
	}
	balancer, err := loadbalance.New(strategy, endpoints...)
	if err != nil {
		b.err = multierr.Append(b.err, fmt.Errorf("load balance: %w", err))
		return b.Build(nil)
	}
	return b.Build(loadbalance.NewStage(balancer))
}
