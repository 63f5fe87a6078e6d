package buffer

// Conditional-assignment descriptors for the atomic append path.
//
// An append must write one slot, advance the pointer when the buffer is full,
// and bump-or-clamp the length, all in a single statement the storage engine
// evaluates against its current row image. The descriptors below express that
// statement without ever materializing the current pointer or length locally:
// each assignment names a column, a condition over the current control values,
// and the operand to assign in each branch. An engine renders the whole set
// into one conditional update (for SQL engines, CASE expressions inside one
// UPDATE), so concurrent appenders serialize at the engine's row granularity
// with no client-side read-modify-write.

// Operand selects the value one branch of a conditional assignment produces,
// evaluated against the engine's current row.
type Operand int

const (
	// OperandNewValue is the appended value, bound as a statement parameter.
	OperandNewValue Operand = iota
	// OperandCurrent is the assigned column's current value (no-op branch).
	OperandCurrent
	// OperandPointerNext is (pointer + 1) mod capacity.
	OperandPointerNext
	// OperandLengthNext is length + 1.
	OperandLengthNext
	// OperandCapacity is the literal buffer capacity.
	OperandCapacity
)

// CondKind enumerates the conditions an append needs.
type CondKind int

const (
	// CondSlotTarget holds when (pointer + length) mod capacity equals the
	// assignment's slot index. Exactly one slot assignment satisfies it per
	// append, since the modulo target is unique.
	CondSlotTarget CondKind = iota
	// CondBufferFull holds when length equals capacity.
	CondBufferFull
	// CondOverflow holds when length + 1 exceeds capacity.
	CondOverflow
)

// Condition is a predicate over the current pointer/length pair.
type Condition struct {
	Kind CondKind
	// Slot is the target slot index for CondSlotTarget; unused otherwise.
	Slot int
}

// Assignment is one engine-agnostic conditional column assignment:
// set Column to Then when When holds against the current row, to Else
// otherwise.
type Assignment struct {
	Column string
	When   Condition
	Then   Operand
	Else   Operand
}

// AppendAssignments returns the full set of conditional assignments that
// perform one append: one guarded write per slot column, the pointer advance,
// and the length clamp. Applied together as a single statement they have the
// same observable effect as State.Append followed by a flush.
func (s *Spec) AppendAssignments() []Assignment {
	out := make([]Assignment, 0, s.Capacity+2)
	for i, col := range s.SlotNames {
		out = append(out, Assignment{
			Column: col,
			When:   Condition{Kind: CondSlotTarget, Slot: i},
			Then:   OperandNewValue,
			Else:   OperandCurrent,
		})
	}
	out = append(out, Assignment{
		Column: s.PointerColumn,
		When:   Condition{Kind: CondBufferFull},
		Then:   OperandPointerNext,
		Else:   OperandCurrent,
	})
	out = append(out, Assignment{
		Column: s.LengthColumn,
		When:   Condition{Kind: CondOverflow},
		Then:   OperandCapacity,
		Else:   OperandLengthNext,
	})
	return out
}
