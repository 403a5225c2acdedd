package store

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/edirooss/lrustore/internal/apperr"
)

// KeyCodec encodes a caller-facing text key to the raw byte-string used as
// the RI/BS key, and decodes it back for Iter. Go strings are already byte
// sequences, so encoding is a validating identity transform unless a future
// codec needs something richer.
type KeyCodec interface {
	EncodeKey(text string) (string, error)
	DecodeKey(raw string) (string, error)
}

// UTF8KeyCodec is the default keyencoding: keys pass through as their UTF-8
// byte representation, validated on the way in.
type UTF8KeyCodec struct{}

func (UTF8KeyCodec) EncodeKey(text string) (string, error) {
	if !utf8.ValidString(text) {
		return "", apperr.BadArgument("key is not valid UTF-8")
	}
	return text, nil
}

func (UTF8KeyCodec) DecodeKey(raw string) (string, error) { return raw, nil }

// ValueCodec serializes/deserializes values that are not already byte
// slices. A value that is already []byte always passes through unchanged,
// regardless of codec, per the specification's pass-through rule.
type ValueCodec interface {
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, out interface{}) error
}

// JSONValueCodec is the default serialization: encoding/json.
type JSONValueCodec struct{}

func (JSONValueCodec) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }
func (JSONValueCodec) Unmarshal(data []byte, out interface{}) error {
	return json.Unmarshal(data, out)
}

// GobValueCodec is the pickling-style alternative the specification
// mentions the reference test suite uses: a self-describing binary codec
// whose Unmarshal is the exact inverse of Marshal.
type GobValueCodec struct{}

func (GobValueCodec) Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (GobValueCodec) Unmarshal(data []byte, out interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(out)
}

// RawValueCodec rejects anything that isn't already a []byte; it exists for
// configurations where the caller guarantees every value is pre-serialized.
type RawValueCodec struct{}

func (RawValueCodec) Marshal(v interface{}) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, apperr.BadArgument("raw codec: value is not []byte (got %T)", v)
	}
	return b, nil
}

func (RawValueCodec) Unmarshal(data []byte, out interface{}) error {
	p, ok := out.(*[]byte)
	if !ok {
		return apperr.BadArgument("raw codec: out is not *[]byte (got %T)", out)
	}
	*p = data
	return nil
}

// NewValueCodec resolves the "serialization" configuration option by name.
func NewValueCodec(name string) (ValueCodec, error) {
	switch name {
	case "", "json":
		return JSONValueCodec{}, nil
	case "gob":
		return GobValueCodec{}, nil
	case "raw":
		return RawValueCodec{}, nil
	default:
		return nil, fmt.Errorf("store: unknown serialization %q", name)
	}
}

// marshalValue applies the pass-through rule: a []byte value is stored
// verbatim; anything else goes through codec.
func marshalValue(codec ValueCodec, v interface{}) ([]byte, error) {
	if b, ok := v.([]byte); ok {
		return b, nil
	}
	return codec.Marshal(v)
}
