// Package guard provides the gRPC wire codec.
package guard

import "encoding/json"

// jsonCodec carries admin messages as JSON frames. The admin API is a
// small internal surface; JSON keeps the wire types in one place with
// no generated code to regenerate.
type jsonCodec struct{}

// Name identifies the codec in content subtypes.
func (jsonCodec) Name() string { return "json" }

// Marshal encodes a message.
func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal decodes a message.
func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
