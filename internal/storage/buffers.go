package storage

import (
	"fmt"

	"github.com/runger/cyclebuf/internal/buffer"
)

// Slot type names accepted in buffer definitions.
const (
	SlotText    = "text"
	SlotInteger = "integer"
	SlotReal    = "real"
	SlotJSON    = "json"
	SlotRecord  = "record"
)

// Buffer ties a planned column layout to the codec that moves slot values in
// and out of their storage representation.
type Buffer struct {
	Spec  *buffer.Spec
	Codec Codec
}

// DefineBuffer plans the layout for a configured buffer and picks its codec.
// An empty slotType means text. Record slots hold references to other rows of
// the records table and are resolved in bulk when viewed.
func DefineBuffer(name string, capacity int, slotType string) (Buffer, error) {
	var (
		kind  buffer.SlotKind
		codec Codec
	)
	switch slotType {
	case "", SlotText:
		kind = buffer.SlotKind{Type: buffer.TypeText}
		codec = textCodec{}
	case SlotInteger:
		kind = buffer.SlotKind{Type: buffer.TypeInteger}
		codec = integerCodec{}
	case SlotReal:
		kind = buffer.SlotKind{Type: buffer.TypeReal}
		codec = realCodec{}
	case SlotJSON:
		kind = buffer.SlotKind{Type: buffer.TypeText}
		codec = jsonCodec{}
	case SlotRecord:
		kind = buffer.SlotKind{Type: buffer.TypeText, Ref: recordsTable, RefColumn: recordKeyColumn}
		codec = textCodec{}
	default:
		return Buffer{}, fmt.Errorf("unknown slot type %q", slotType)
	}

	spec, err := buffer.Plan(name, capacity, kind)
	if err != nil {
		return Buffer{}, fmt.Errorf("failed to plan buffer %q: %w", name, err)
	}
	return Buffer{Spec: spec, Codec: codec}, nil
}

// IsRef reports whether the buffer stores references to other records.
func (b Buffer) IsRef() bool {
	return b.Spec.Slot.IsRef()
}
