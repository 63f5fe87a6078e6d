// Package buffer implements fixed-capacity cycle buffers stored across a set
// of independently addressable record columns. A buffer of capacity N occupies
// N slot columns plus a pointer column (physical index of the oldest element)
// and a length column (number of valid elements). Appending a value retains
// "the last N items" without the record ever growing or needing cleanup.
//
// The package is storage-agnostic: it plans column layouts, computes logical
// views, stages in-memory appends, and emits engine-agnostic conditional
// assignments for atomic appends. Rendering those assignments into an actual
// database statement is the job of an execution engine such as
// internal/sqlite.
package buffer

import (
	"errors"
	"fmt"
	"regexp"
)

// ColumnType is the physical storage type of a slot column.
type ColumnType string

const (
	TypeText    ColumnType = "TEXT"
	TypeInteger ColumnType = "INTEGER"
	TypeReal    ColumnType = "REAL"
	TypeBlob    ColumnType = "BLOB"
)

// SlotKind is the prototype shared by every physical slot of a buffer.
// Slots must be nullable or carry a default so that records can be created
// with the buffer empty.
type SlotKind struct {
	Type ColumnType

	// Ref names the table this slot references. When set, slot columns hold
	// the referenced record's key rather than a value, and views can resolve
	// them in one bulk lookup.
	Ref string

	// RefColumn is the key column of the referenced table. Defaults to "id"
	// during planning when Ref is set.
	RefColumn string

	// Default is a SQL literal used as the column default. Empty means the
	// column is simply nullable.
	Default string

	// NotNull forbids NULL in slot columns. Requires Default, since empty
	// buffer positions must still hold a value.
	NotNull bool
}

// IsRef reports whether slot values are references to another record.
func (k SlotKind) IsRef() bool {
	return k.Ref != ""
}

// Spec is the immutable physical layout of one cycle buffer on a record type.
// Created once per record type by Plan.
type Spec struct {
	Name     string
	Capacity int
	Slot     SlotKind

	// SlotNames holds the capacity slot column names in physical order.
	SlotNames []string

	PointerColumn string
	LengthColumn  string

	// BackRefNames holds one distinct back-reference name per slot for
	// reference slots, so N columns pointing at the same target table do not
	// collide. Empty for plain value slots.
	BackRefNames []string
}

// ErrCapacity is returned by Plan when the requested capacity is below 1.
var ErrCapacity = errors.New("cycle buffer capacity must be at least 1")

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Plan derives the physical layout for a buffer named name with the given
// capacity. Column names are deterministic: name_0..name_{N-1} for slots,
// name_ptr and name_len for the control columns. Names become column names,
// so only identifiers are accepted.
func Plan(name string, capacity int, slot SlotKind) (*Spec, error) {
	if name == "" {
		return nil, errors.New("buffer name is required")
	}
	if !namePattern.MatchString(name) {
		return nil, fmt.Errorf("buffer name %q must contain only letters, digits, and underscores", name)
	}
	if capacity < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrCapacity, capacity)
	}
	if slot.IsRef() && slot.RefColumn == "" {
		slot.RefColumn = "id"
	}
	if slot.NotNull && slot.Default == "" {
		return nil, errors.New("non-null slots need a default value")
	}

	spec := &Spec{
		Name:          name,
		Capacity:      capacity,
		Slot:          slot,
		SlotNames:     make([]string, capacity),
		PointerColumn: name + "_ptr",
		LengthColumn:  name + "_len",
	}
	for i := 0; i < capacity; i++ {
		spec.SlotNames[i] = fmt.Sprintf("%s_%d", name, i)
	}

	if slot.IsRef() {
		spec.BackRefNames = make([]string, capacity)
		for i := 0; i < capacity; i++ {
			spec.BackRefNames[i] = fmt.Sprintf("%s_%d", name, i+1)
		}
	}

	return spec, nil
}

// Columns returns every column the buffer occupies, control columns first,
// in declaration order.
func (s *Spec) Columns() []string {
	cols := make([]string, 0, s.Capacity+2)
	cols = append(cols, s.PointerColumn, s.LengthColumn)
	cols = append(cols, s.SlotNames...)
	return cols
}
