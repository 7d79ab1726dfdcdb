// Package rpcerr classifies failures produced anywhere in an RPC pipeline.
//
// Every error surfaced by the client adapter is an *Error. The Kind tells
// whether the failure came from the network, the HTTP layer, the remote
// server, the response decoder, or from a local pipeline layer that refused
// the call.
package rpcerr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind enumerates the failure classes.
type Kind int

const (
	// KindCustom wraps an error that was not produced by this module.
	KindCustom Kind = iota
	// KindTransport is a network or connection failure.
	KindTransport
	// KindHTTPStatus is a non-2xx HTTP reply other than 429.
	KindHTTPStatus
	// KindRateLimited is a 429 reply, retryable.
	KindRateLimited
	// KindDecode is a response whose shape does not match what was expected.
	KindDecode
	// KindApplication is a JSON-RPC error object returned by the server.
	KindApplication
	// KindRejected is a local refusal: rate limited, shed, filtered out.
	KindRejected
	// KindCanceled is a caller cancellation or an expired deadline.
	KindCanceled
)

var kindNames = map[Kind]string{
	KindCustom:      "custom",
	KindTransport:   "transport",
	KindHTTPStatus:  "http_status",
	KindRateLimited: "rate_limited",
	KindDecode:      "decode",
	KindApplication: "application",
	KindRejected:    "rejected",
	KindCanceled:    "canceled",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a classified pipeline failure.
type Error struct {
	Kind    Kind
	Code    int    // HTTP status for KindHTTPStatus/KindRateLimited, JSON-RPC code for KindApplication
	Message string // Server supplied message or local rejection reason
	Data    any    // Optional JSON-RPC error data

	// RetryAfter is the server's Retry-After hint on a 429, zero when absent.
	RetryAfter time.Duration

	// Attempts and Exhausted are set by the retry layer when it gives up.
	Attempts  int
	Exhausted bool

	Cause error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	switch e.Kind {
	case KindHTTPStatus, KindRateLimited, KindApplication:
		fmt.Fprintf(&b, " (code %d)", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil && e.Cause.Error() != e.Message {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	if e.Exhausted {
		fmt.Fprintf(&b, " (after %d attempts)", e.Attempts)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Transport wraps a network failure.
func Transport(err error) *Error {
	return &Error{Kind: KindTransport, Cause: err}
}

// HTTPStatus reports a non-2xx reply. 429 is classified as KindRateLimited.
func HTTPStatus(code int, retryAfter time.Duration) *Error {
	if code == 429 {
		return &Error{Kind: KindRateLimited, Code: code, Message: "too many requests", RetryAfter: retryAfter}
	}
	return &Error{Kind: KindHTTPStatus, Code: code, Message: fmt.Sprintf("received status code %d", code)}
}

// Decode wraps a response decoding failure.
func Decode(err error) *Error {
	return &Error{Kind: KindDecode, Cause: err}
}

// Application reports a JSON-RPC error object.
func Application(code int, message string, data any) *Error {
	return &Error{Kind: KindApplication, Code: code, Message: message, Data: data}
}

// Rejected reports a local refusal by a pipeline layer.
func Rejected(reason string) *Error {
	return &Error{Kind: KindRejected, Message: reason}
}

// Canceled wraps a context error.
func Canceled(err error) *Error {
	msg := "request canceled"
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "request timed out"
	}
	return &Error{Kind: KindCanceled, Message: msg, Cause: err}
}

// From maps any error onto an *Error. Nil stays nil.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Canceled(err)
	}
	return &Error{Kind: KindCustom, Cause: err}
}

// KindOf returns the kind of err, KindCustom for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	return KindCustom
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRateLimited reports a server side 429.
func IsRateLimited(err error) bool {
	return Is(err, KindRateLimited)
}

// IsRejected reports a local pipeline rejection.
func IsRejected(err error) bool {
	return Is(err, KindRejected)
}

// IsPipelineOriginated tells local failures (rejections, cancellations) apart
// from those reported by the network or the server.
func IsPipelineOriginated(err error) bool {
	switch KindOf(err) {
	case KindRejected, KindCanceled:
		return true
	}
	return false
}
