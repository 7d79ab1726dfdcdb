package middleware

import (
	"context"

	"rpc-stack/message"
	"rpc-stack/rpcerr"
)

// PreProcessFunc builds the request handed to the inner stage. It receives a
// copy and may change it freely.
type PreProcessFunc func(ctx context.Context, req *message.Request) (*message.Request, error)

// PostProcessFunc builds the response handed back to the caller.
type PostProcessFunc func(ctx context.Context, req *message.Request, resp *message.Response) (*message.Response, error)

// MapErrorFunc rewrites an error coming back from the inner stage.
type MapErrorFunc func(ctx context.Context, req *message.Request, err error) error

// PreProcessMiddleware transforms requests before delegating, e.g. to inject
// default parameters. A failing transform rejects the call.
func PreProcessMiddleware(fn PreProcessFunc) Layer {
	return func(next Stage) Stage {
		return &preProcessStage{wrapped: wrapped{next}, fn: fn}
	}
}

type preProcessStage struct {
	wrapped
	fn PreProcessFunc
}

func (s *preProcessStage) Call(ctx context.Context, req *message.Request) (*message.Response, error) {
	out, err := s.fn(ctx, req.Clone())
	if err != nil {
		if e, ok := err.(*rpcerr.Error); ok {
			return nil, e
		}
		return nil, rpcerr.Rejected(err.Error())
	}
	return s.next.Call(ctx, out)
}

// PostProcessMiddleware transforms successful responses. Errors pass through
// untouched.
func PostProcessMiddleware(fn PostProcessFunc) Layer {
	return func(next Stage) Stage {
		return &postProcessStage{wrapped: wrapped{next}, fn: fn}
	}
}

type postProcessStage struct {
	wrapped
	fn PostProcessFunc
}

func (s *postProcessStage) Call(ctx context.Context, req *message.Request) (*message.Response, error) {
	resp, err := s.next.Call(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.fn(ctx, req, resp)
}

// MapErrorMiddleware transforms errors. Successful responses pass through.
func MapErrorMiddleware(fn MapErrorFunc) Layer {
	return func(next Stage) Stage {
		return &mapErrorStage{wrapped: wrapped{next}, fn: fn}
	}
}

type mapErrorStage struct {
	wrapped
	fn MapErrorFunc
}

func (s *mapErrorStage) Call(ctx context.Context, req *message.Request) (*message.Response, error) {
	resp, err := s.next.Call(ctx, req)
	if err != nil {
		return nil, s.fn(ctx, req, err)
	}
	return resp, nil
}
