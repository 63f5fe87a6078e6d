package storage

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Codec encodes one slot value to its physical storage representation and
// decodes it back. Implementations must round-trip any value they accept; a
// value of the wrong kind is rejected here, before it reaches the buffer.
// Nil passes through both directions so empty slots stay empty.
type Codec interface {
	Encode(v any) (any, error)
	Decode(raw any) (any, error)
}

type textCodec struct{}

func (textCodec) Encode(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	default:
		return nil, fmt.Errorf("text slot requires a string, got %T", v)
	}
}

func (textCodec) Decode(raw any) (any, error) {
	switch t := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	default:
		return nil, fmt.Errorf("unexpected storage type %T for text slot", raw)
	}
}

type integerCodec struct{}

func (integerCodec) Encode(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case int:
		return int64(t), nil
	case int64:
		return t, nil
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("integer slot requires an integer, got %q", t)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("integer slot requires an integer, got %T", v)
	}
}

func (integerCodec) Decode(raw any) (any, error) {
	switch t := raw.(type) {
	case nil:
		return nil, nil
	case int64:
		return t, nil
	default:
		return nil, fmt.Errorf("unexpected storage type %T for integer slot", raw)
	}
}

type realCodec struct{}

func (realCodec) Encode(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return nil, fmt.Errorf("real slot requires a number, got %q", t)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("real slot requires a number, got %T", v)
	}
}

func (realCodec) Decode(raw any) (any, error) {
	switch t := raw.(type) {
	case nil:
		return nil, nil
	case float64:
		return t, nil
	case int64:
		return float64(t), nil
	default:
		return nil, fmt.Errorf("unexpected storage type %T for real slot", raw)
	}
}

// jsonCodec stores values as JSON text. Decoded slots come back as
// json.RawMessage holding the stored document byte for byte, so a loaded
// value re-encodes to exactly what was read; staged appends can flush every
// slot without losing anything. Only json.RawMessage and []byte values are
// taken as raw documents; any other value, including a plain string, is
// marshaled.
type jsonCodec struct{}

func (jsonCodec) Encode(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		if !json.Valid(t) {
			return nil, fmt.Errorf("json slot requires valid JSON, got %q", string(t))
		}
		return string(t), nil
	case []byte:
		if !json.Valid(t) {
			return nil, fmt.Errorf("json slot requires valid JSON")
		}
		return string(t), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal json slot value: %w", err)
		}
		return string(data), nil
	}
}

func (jsonCodec) Decode(raw any) (any, error) {
	var data []byte
	switch t := raw.(type) {
	case nil:
		return nil, nil
	case string:
		data = []byte(t)
	case []byte:
		data = t
	default:
		return nil, fmt.Errorf("unexpected storage type %T for json slot", raw)
	}

	if !json.Valid(data) {
		return nil, fmt.Errorf("json slot holds invalid JSON %q", string(data))
	}
	return json.RawMessage(data), nil
}
