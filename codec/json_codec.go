package codec

import (
	"encoding/json"
)

// JSONCodec uses Go's standard library encoding/json for serialization.
// JSON-RPC payloads are JSON by definition, there is no other wire format here.
type JSONCodec struct{}

func (c *JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (c *JSONCodec) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (c *JSONCodec) Name() string {
	return "json"
}

// EncodeParams marshals an ordered parameter list into a JSON array.
func EncodeParams(c Codec, params ...any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}
	data, err := c.Encode(params)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}
