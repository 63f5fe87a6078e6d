package buffer

// State is the per-record, mutable state of one cycle buffer: the pointer and
// length control values plus the slot contents in physical order. Its
// lifecycle is tied to the owning record; a zero-length State is a valid
// empty buffer regardless of the pointer value.
//
// State carries no synchronization. Staged appends assume the caller owns the
// in-memory record exclusively; the concurrency-safe path is the conditional
// update emitted by Spec.AppendAssignments.
type State[T any] struct {
	Pointer int
	Length  int
	Slots   []T
}

// NewState returns an empty buffer state with the given capacity.
func NewState[T any](capacity int) *State[T] {
	return &State[T]{Slots: make([]T, capacity)}
}

// Capacity returns the number of physical slots.
func (s *State[T]) Capacity() int {
	return len(s.Slots)
}

// View returns the logical sequence, oldest first: Slots[(Pointer+i) mod N]
// for i in [0, Length). It is recomputed on every call and never aliases the
// slot storage. Length 0 yields nil.
func (s *State[T]) View() []T {
	n := len(s.Slots)
	if n == 0 || s.Length <= 0 {
		return nil
	}
	length := s.Length
	if length > n {
		length = n
	}
	ptr := mod(s.Pointer, n)
	out := make([]T, length)
	for i := range out {
		out[i] = s.Slots[(ptr+i)%n]
	}
	return out
}

// Append stages v in memory: writes slot (Pointer+Length) mod N, grows Length
// up to capacity, and advances Pointer past the evicted element when the
// buffer was already full. The caller must persist the full state (pointer,
// length, and all slots) for the append to become durable.
func (s *State[T]) Append(v T) {
	n := len(s.Slots)
	if n == 0 {
		return
	}
	target := (s.Pointer + s.Length) % n
	s.Slots[target] = v
	if s.Length == n {
		s.Pointer = (s.Pointer + 1) % n
	} else {
		s.Length++
	}
}

// Normalize clamps control values loaded from storage into their invariant
// ranges: pointer reduced mod capacity, length clamped to [0, capacity].
// Appends and views behave sensibly afterwards even if the stored pair was
// inconsistent.
func (s *State[T]) Normalize() {
	n := len(s.Slots)
	if n == 0 {
		s.Pointer, s.Length = 0, 0
		return
	}
	s.Pointer = mod(s.Pointer, n)
	if s.Length < 0 {
		s.Length = 0
	}
	if s.Length > n {
		s.Length = n
	}
}

// mod is the floored modulo, non-negative for any x when n > 0.
func mod(x, n int) int {
	m := x % n
	if m < 0 {
		m += n
	}
	return m
}
