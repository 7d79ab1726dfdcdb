package codec

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/gorilla/rpc/v2/json2"

	"rpc-stack/message"
	"rpc-stack/rpcerr"
)

var nullResult = json.RawMessage("null")

// EncodeRequest builds a JSON-RPC 2.0 request body for req.
func EncodeRequest(req *message.Request) ([]byte, error) {
	params := req.Params
	if len(params) == 0 {
		params = json.RawMessage("[]")
	}
	return json2.EncodeClientRequest(req.Method, params)
}

// DecodeResponse reads a JSON-RPC 2.0 reply. A server error object becomes an
// application error, a malformed body a decode error.
func DecodeResponse(r io.Reader) (*message.Response, error) {
	var result json.RawMessage
	err := json2.DecodeClientResponse(r, &result)
	if err == nil {
		return &message.Response{Result: result}, nil
	}
	if errors.Is(err, json2.ErrNullResult) {
		return &message.Response{Result: nullResult}, nil
	}
	var rpcErr *json2.Error
	if errors.As(err, &rpcErr) {
		return nil, rpcerr.Application(int(rpcErr.Code), rpcErr.Message, rpcErr.Data)
	}
	return nil, rpcerr.Decode(err)
}
