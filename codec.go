package xtap

import (
	"encoding/json"
)

// JSONCodec is the default JSON implementation.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error)   { return json.Marshal(v) }
func (JSONCodec) Unmarshal(b []byte, v any) error { return json.Unmarshal(b, v) }
func (JSONCodec) Name() string                    { return "json" }

// DecodeRecord unmarshals an encoded record with c (JSON when c is nil).
func DecodeRecord(c Codec, data []byte) (Record, error) {
	var r Record
	if c == nil {
		c = JSONCodec{}
	}
	if err := c.Unmarshal(data, &r); err != nil {
		return r, err
	}
	return r, nil
}
