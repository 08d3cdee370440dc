// Package payload decodes broker frames into the string-keyed mapping the
// rest of the pipeline operates on.
//
// Frames are MessagePack-encoded; this package is the sole decoder
// boundary — every byte frame crossing into the pipeline passes through
// Decode. Values are carried as a tagged Value sum type rather than
// bare interface{} so downstream code can see, at the type level, which
// shapes a validator must be prepared to narrow.
package payload

import (
	"bytes"
	"unicode/utf8"

	"github.com/vmihailenco/msgpack/v5"
)

// Value is a MessagePack-decoded value: nil, bool, int64, float64,
// string, []byte, []Value, or map[string]Value.
type Value = interface{}

// Payload is a decoded frame: a mapping from text keys to arbitrary values.
type Payload map[string]Value

// Decode decodes a raw MessagePack frame into a Payload.
//
// It fails with ErrNotAMapping if the top-level decoded value is not a
// key-value container, and with ErrBadKeyType if any key is neither a
// text string nor a UTF-8 byte string.
func Decode(frame []byte) (Payload, error) {
	// Loose decoding is what makes Value actually be the int64/float64
	// sum type this package documents: the default interface{} decoder
	// narrows integers to int8/int16/uint8/... by magnitude, which both
	// breaks callers matching on int64 and makes small integer join
	// keys unhashable against join.Defragmenter's key switch.
	dec := msgpack.NewDecoder(bytes.NewReader(frame))
	dec.UseLooseInterfaceDecoding(true)

	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, ErrNotAMapping("failed to decode frame: " + err.Error())
	}
	return coerce(raw)
}

func coerce(raw interface{}) (Payload, error) {
	switch m := raw.(type) {
	case map[string]interface{}:
		out := make(Payload, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out, nil
	case map[interface{}]interface{}:
		out := make(Payload, len(m))
		for rawKey, v := range m {
			key, err := coerceKey(rawKey)
			if err != nil {
				return nil, err
			}
			out[key] = v
		}
		return out, nil
	default:
		return nil, ErrNotAMapping("top-level frame is not a mapping")
	}
}

func coerceKey(rawKey interface{}) (string, error) {
	switch k := rawKey.(type) {
	case string:
		return k, nil
	case []byte:
		if !utf8.Valid(k) {
			return "", ErrBadKeyType("byte-string key is not valid UTF-8")
		}
		return string(k), nil
	default:
		return "", ErrBadKeyType("key is neither text nor byte string")
	}
}
