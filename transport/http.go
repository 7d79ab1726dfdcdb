// Package transport provides the terminal stages of a pipeline: a JSON-RPC
// over HTTP client and an in-process mock.
//
//	layers ──Call──→ HTTPStage ──POST {"jsonrpc":"2.0",...}──→ endpoint
//	       ←─Response / *rpcerr.Error──┘
package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"rpc-stack/codec"
	"rpc-stack/message"
	"rpc-stack/rpcerr"
)

// Version is reported in the client identification header.
const Version = "0.1.0"

const (
	ClientHeader   = "rpc-stack-client"
	defaultTimeout = 30 * time.Second
)

// HTTPStage sends each request as a JSON-RPC 2.0 POST to one URL.
type HTTPStage struct {
	url     string
	client  *http.Client
	headers http.Header
	logger  *zap.Logger
}

// HTTPOption configures NewHTTP.
type HTTPOption func(*HTTPStage)

// WithHTTPClient replaces the default client, e.g. to tune connection pooling.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPStage) {
		s.client = c
	}
}

// WithTimeout sets the timeout of the default client.
func WithTimeout(d time.Duration) HTTPOption {
	return func(s *HTTPStage) {
		s.client.Timeout = d
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) HTTPOption {
	return func(s *HTTPStage) {
		s.headers.Add(key, value)
	}
}

func WithHTTPLogger(logger *zap.Logger) HTTPOption {
	return func(s *HTTPStage) {
		s.logger = logger
	}
}

// NewHTTP returns the HTTP terminal stage for url.
func NewHTTP(url string, opts ...HTTPOption) *HTTPStage {
	s := &HTTPStage{
		url:     url,
		client:  &http.Client{Timeout: defaultTimeout},
		headers: make(http.Header),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// URL returns the endpoint this stage posts to.
func (s *HTTPStage) URL() string {
	return s.url
}

func (s *HTTPStage) Call(ctx context.Context, req *message.Request) (*message.Response, error) {
	body, err := codec.EncodeRequest(req)
	if err != nil {
		return nil, rpcerr.Decode(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, rpcerr.Transport(err)
	}
	for key, values := range s.headers {
		httpReq.Header[key] = append([]string(nil), values...)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(ClientHeader, "go/"+Version)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, rpcerr.Canceled(ctx.Err())
		}
		return nil, rpcerr.Transport(err)
	}
	defer CleanlyCloseBody(resp.Body)

	// Return an error for any non successful status code
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		s.logger.Debug("rpc endpoint returned error status",
			zap.String("url", s.url),
			zap.String("method", req.Method),
			zap.Int("status", resp.StatusCode),
			zap.Duration("retry_after", retryAfter),
		)
		return nil, rpcerr.HTTPStatus(resp.StatusCode, retryAfter)
	}

	out, err := codec.DecodeResponse(resp.Body)
	if err != nil && ctx.Err() != nil && rpcerr.KindOf(err) == rpcerr.KindDecode {
		// the body read was cut short by the caller
		return nil, rpcerr.Canceled(ctx.Err())
	}
	return out, err
}

// Ready is always true; the HTTP client queues internally.
func (s *HTTPStage) Ready() bool {
	return true
}

// CleanlyCloseBody drains and closes an HTTP response body to prevent
// HTTP/2 GOAWAY errors caused by closing bodies with unread data.
// See: https://github.com/golang/go/issues/46071
func CleanlyCloseBody(body io.ReadCloser) error {
	if body == nil {
		return nil
	}
	// Drain any remaining data to allow connection reuse
	_, _ = io.Copy(io.Discard, body)
	return body.Close()
}

// parseRetryAfter accepts delay-seconds or an HTTP date. Anything else, or a
// date in the past, means no hint.
func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
