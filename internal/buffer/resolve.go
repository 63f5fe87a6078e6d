package buffer

import (
	"context"
	"fmt"
)

// Lookup resolves a set of reference keys to their records in one round trip.
// Keys absent from the returned map are treated as dangling. Implementations
// typically wrap a single SELECT ... WHERE key IN (...) query.
type Lookup[K comparable, R any] func(ctx context.Context, keys []K) (map[K]R, error)

// ResolveView computes the logical sequence of a reference buffer and
// resolves every entry through one bulk lookup. The result has one element
// per logical position in oldest-first order; a nil element marks a dangling
// reference (the referenced record no longer exists), which is tolerated
// because buffer entries may outlive what they point at.
func ResolveView[K comparable, R any](ctx context.Context, st *State[K], lookup Lookup[K, R]) ([]*R, error) {
	keys := st.View()
	if len(keys) == 0 {
		return nil, nil
	}

	uniq := make([]K, 0, len(keys))
	seen := make(map[K]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		uniq = append(uniq, k)
	}

	records, err := lookup(ctx, uniq)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve buffer references: %w", err)
	}

	out := make([]*R, len(keys))
	for i, k := range keys {
		if rec, ok := records[k]; ok {
			rec := rec
			out[i] = &rec
		}
	}
	return out, nil
}
