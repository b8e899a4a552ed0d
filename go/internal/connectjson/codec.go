// Package connectjson lets connect handlers and clients exchange plain Go
// structs as JSON.
package connectjson

import (
	"encoding/json"
	"fmt"

	"connectrpc.com/connect"
)

// Codec marshals messages with encoding/json. It registers under the "json"
// name, replacing connect's protobuf-only JSON codec.
type Codec struct{}

var _ connect.Codec = Codec{}

func (Codec) Name() string { return "json" }

func (Codec) Marshal(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", msg, err)
	}
	return data, nil
}

func (Codec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("unmarshal %T: %w", msg, err)
	}
	return nil
}

// WithCodec is the option every handler and client in this module passes.
func WithCodec() connect.Option {
	return connect.WithCodec(Codec{})
}
