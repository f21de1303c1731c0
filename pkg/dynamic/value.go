// Package dynamic wraps opaque, heterogeneous JSON payloads: agent inputs,
// outputs, and execution event payloads. Rather than fully decoding into
// Go structs, callers read and patch individual fields with gjson/sjson;
// downstream consumers only ever need a handful of named fields out of an
// otherwise opaque blob.
package dynamic

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Value is an opaque JSON document. The zero value represents JSON null.
type Value struct {
	raw json.RawMessage
}

// FromMap marshals a map into a Value.
func FromMap(m map[string]any) (Value, error) {
	if m == nil {
		return Value{raw: json.RawMessage("null")}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return Value{}, fmt.Errorf("marshal dynamic value: %w", err)
	}
	return Value{raw: b}, nil
}

// FromRaw wraps an already-encoded JSON document. An empty slice is treated
// as null.
func FromRaw(raw json.RawMessage) Value {
	if len(raw) == 0 {
		return Value{raw: json.RawMessage("null")}
	}
	return Value{raw: raw}
}

// IsNull reports whether the value is JSON null or unset.
func (v Value) IsNull() bool {
	return len(v.raw) == 0 || gjson.ParseBytes(v.raw).Type == gjson.Null
}

// MarshalJSON implements json.Marshaler so Value round-trips transparently
// inside larger structs (Execution, NodeExecutionState, event payloads).
func (v Value) MarshalJSON() ([]byte, error) {
	if len(v.raw) == 0 {
		return []byte("null"), nil
	}
	return v.raw, nil
}

// UnmarshalJSON implements json.Unmarshaler, storing the raw bytes verbatim.
func (v *Value) UnmarshalJSON(data []byte) error {
	cp := make(json.RawMessage, len(data))
	copy(cp, data)
	v.raw = cp
	return nil
}

// Raw returns the underlying JSON bytes.
func (v Value) Raw() json.RawMessage {
	if len(v.raw) == 0 {
		return json.RawMessage("null")
	}
	return v.raw
}

// Get reads a named field via a gjson path without decoding the rest of the
// document. Returns the zero gjson.Result (Exists() == false) if absent.
func (v Value) Get(path string) gjson.Result {
	return gjson.GetBytes(v.Raw(), path)
}

// Set patches a single field via an sjson path and returns the resulting
// Value, leaving the receiver untouched.
func (v Value) Set(path string, value any) (Value, error) {
	out, err := sjson.SetBytes(v.Raw(), path, value)
	if err != nil {
		return Value{}, fmt.Errorf("set dynamic value %q: %w", path, err)
	}
	return Value{raw: out}, nil
}

// AsMap fully decodes the value into a map, for callers that do need the
// whole document (e.g. merging node output into downstream node context).
func (v Value) AsMap() (map[string]any, error) {
	if v.IsNull() {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(v.Raw(), &m); err != nil {
		return nil, fmt.Errorf("decode dynamic value: %w", err)
	}
	return m, nil
}
