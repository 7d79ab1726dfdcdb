// Package codec encodes call parameters and results, and frames them as
// JSON-RPC 2.0 messages.
package codec

// Codec turns call parameters into the wire params array and raw results
// back into caller values. Implementations must be safe for concurrent use.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Name() string // for logs
}

// Default returns the JSON codec.
func Default() Codec {
	return &JSONCodec{}
}
