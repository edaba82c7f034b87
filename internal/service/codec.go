package service

import (
	"encoding/json"

	"connectrpc.com/connect"
)

// jsonCodec replaces connect's protobuf-backed "json" codec so plain Go
// structs can travel as request and response messages.
type jsonCodec struct{}

// JSONCodec returns the codec shared by the insights handlers and clients.
func JSONCodec() connect.Codec {
	return jsonCodec{}
}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, msg)
}
