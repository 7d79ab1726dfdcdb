package codec

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpc-stack/message"
	"rpc-stack/rpcerr"
)

func TestJSONCodec(t *testing.T) {
	c := Default()
	assert.Equal(t, "json", c.Name())

	params, err := EncodeParams(c, "abc", 10)
	require.NoError(t, err)
	assert.JSONEq(t, `["abc",10]`, string(params))

	params, err = EncodeParams(c)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(params))

	var out []any
	require.NoError(t, c.Decode(params, &out))
	assert.Empty(t, out)
}

func TestEncodeRequest(t *testing.T) {
	body, err := EncodeRequest(message.NewRequest("getBalance", json.RawMessage(`["abc"]`)))
	require.NoError(t, err)

	var envelope struct {
		Version string          `json:"jsonrpc"`
		Method  string          `json:"method"`
		Params  json.RawMessage `json:"params"`
	}
	require.NoError(t, json.Unmarshal(body, &envelope))
	assert.Equal(t, "2.0", envelope.Version)
	assert.Equal(t, "getBalance", envelope.Method)
	assert.JSONEq(t, `["abc"]`, string(envelope.Params))
}

func TestDecodeResponse(t *testing.T) {
	resp, err := DecodeResponse(strings.NewReader(`{"jsonrpc":"2.0","id":1,"result":{"value":50}}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"value":50}`, string(resp.Result))

	resp, err = DecodeResponse(strings.NewReader(`{"jsonrpc":"2.0","id":1,"result":null}`))
	require.NoError(t, err)
	assert.Equal(t, "null", string(resp.Result))
}

func TestDecodeResponseErrors(t *testing.T) {
	_, err := DecodeResponse(strings.NewReader(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"Method not found"}}`))
	require.Error(t, err)
	e := rpcerr.From(err)
	assert.Equal(t, rpcerr.KindApplication, e.Kind)
	assert.Equal(t, -32601, e.Code)
	assert.Equal(t, "Method not found", e.Message)

	_, err = DecodeResponse(strings.NewReader(`<html>bad gateway</html>`))
	require.Error(t, err)
	assert.Equal(t, rpcerr.KindDecode, rpcerr.KindOf(err))
}
