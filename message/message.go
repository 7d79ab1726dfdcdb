// Package message defines the values that travel through an RPC pipeline.
//
// A Request enters the outermost layer and descends to the transport; the
// Response (or an error) climbs back through the same layers. Both are treated
// as immutable once inside the pipeline: layers that need a different value
// build a new one with Clone.
package message

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// emptyParams is what a call without parameters sends.
var emptyParams = json.RawMessage("[]")

// Request carries the data for a single RPC call.
type Request struct {
	Method string          // Remote method name, e.g. "getBalance"
	Params json.RawMessage // JSON array with the ordered call parameters
}

// NewRequest builds a Request from already encoded params. Nil or empty params
// become an empty JSON array.
func NewRequest(method string, params json.RawMessage) *Request {
	if len(params) == 0 {
		params = emptyParams
	}
	return &Request{Method: method, Params: params}
}

// Clone returns a deep copy of the request.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	return &Request{Method: r.Method, Params: cloneRaw(r.Params)}
}

// Key derives a deterministic identity for the request: identical method and
// params always give the same key.
func (r *Request) Key() string {
	sum := sha256.Sum256(r.Params)
	return r.Method + ":" + hex.EncodeToString(sum[:])
}

// Response carries the successful result of an RPC call.
type Response struct {
	Result json.RawMessage // The raw "result" member of the JSON-RPC reply
}

// Clone returns a deep copy of the response.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	return &Response{Result: cloneRaw(r.Result)}
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}
