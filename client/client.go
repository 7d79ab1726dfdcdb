// Package client assembles pipelines and exposes them through the
// conventional one-call-per-method RPC client surface.
package client

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"rpc-stack/codec"
	"rpc-stack/message"
	"rpc-stack/middleware"
	"rpc-stack/rpcerr"
)

// Client issues calls through a composed pipeline. It is safe for
// concurrent use.
type Client struct {
	stage  middleware.Stage
	codec  codec.Codec
	logger *zap.Logger

	requests *atomic.Int64
	errors   *atomic.Int64
	elapsed  *atomic.Duration
}

// Stats is a snapshot of the calls made through a Client.
type Stats struct {
	Requests int64
	Errors   int64
	Elapsed  time.Duration // cumulative wall time spent in calls
}

func newClient(stage middleware.Stage, o *options) *Client {
	return &Client{
		stage:    stage,
		codec:    o.codec,
		logger:   o.logger,
		requests: atomic.NewInt64(0),
		errors:   atomic.NewInt64(0),
		elapsed:  atomic.NewDuration(0),
	}
}

// Call invokes method with the given positional params and decodes the
// result into reply. reply may be nil to discard the result.
func (c *Client) Call(ctx context.Context, method string, reply any, params ...any) error {
	raw, err := codec.EncodeParams(c.codec, params...)
	if err != nil {
		return rpcerr.Rejected("encode params: " + err.Error())
	}
	result, err := c.CallRaw(ctx, method, raw)
	if err != nil {
		return err
	}
	if reply == nil {
		return nil
	}
	if err := c.codec.Decode(result, reply); err != nil {
		return rpcerr.Decode(err)
	}
	return nil
}

// CallRaw sends already encoded params and returns the raw result.
// Errors are always *rpcerr.Error.
func (c *Client) CallRaw(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	req := message.NewRequest(method, params)

	start := time.Now()
	resp, err := c.stage.Call(ctx, req)
	c.requests.Inc()
	c.elapsed.Add(time.Since(start))
	if err != nil {
		c.errors.Inc()
		e := rpcerr.From(err)
		if rpcerr.IsPipelineOriginated(e) {
			c.logger.Debug("rpc call rejected locally", zap.String("method", method), zap.Error(e))
		}
		return nil, e
	}
	if resp == nil {
		c.errors.Inc()
		return nil, rpcerr.Decode(errNoResponse)
	}
	return resp.Result, nil
}

// Invoke is Call with a typed result.
func Invoke[T any](ctx context.Context, c *Client, method string, params ...any) (T, error) {
	var out T
	err := c.Call(ctx, method, &out, params...)
	return out, err
}

// Ready reports whether the outermost stage would take a call right now.
func (c *Client) Ready() bool {
	return c.stage.Ready()
}

// Stage returns the composed pipeline, e.g. to nest it inside another one.
func (c *Client) Stage() middleware.Stage {
	return c.stage
}

func (c *Client) Stats() Stats {
	return Stats{
		Requests: c.requests.Load(),
		Errors:   c.errors.Load(),
		Elapsed:  c.elapsed.Load(),
	}
}
