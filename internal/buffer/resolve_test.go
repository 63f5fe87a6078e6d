package buffer

import (
	"context"
	"errors"
	"testing"
)

type user struct {
	ID   string
	Name string
}

func TestResolveView_OrderAndSingleLookup(t *testing.T) {
	t.Parallel()

	st := NewState[string](3)
	st.Append("u1")
	st.Append("u2")
	st.Append("u3")

	calls := 0
	lookup := func(ctx context.Context, keys []string) (map[string]user, error) {
		calls++
		out := make(map[string]user, len(keys))
		for _, k := range keys {
			out[k] = user{ID: k, Name: "name-" + k}
		}
		return out, nil
	}

	got, err := ResolveView(context.Background(), st, lookup)
	if err != nil {
		t.Fatalf("ResolveView() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("lookup called %d times, want 1", calls)
	}
	if len(got) != 3 {
		t.Fatalf("len(result) = %d, want 3", len(got))
	}
	for i, id := range []string{"u1", "u2", "u3"} {
		if got[i] == nil || got[i].ID != id {
			t.Errorf("result[%d] = %v, want user %s", i, got[i], id)
		}
	}
}

func TestResolveView_DanglingReferenceMarked(t *testing.T) {
	t.Parallel()

	st := NewState[string](3)
	st.Append("u1")
	st.Append("u2")
	st.Append("u3")

	// u2 no longer exists; its position must be a nil marker, not an error.
	lookup := func(ctx context.Context, keys []string) (map[string]user, error) {
		out := make(map[string]user)
		for _, k := range keys {
			if k == "u2" {
				continue
			}
			out[k] = user{ID: k}
		}
		return out, nil
	}

	got, err := ResolveView(context.Background(), st, lookup)
	if err != nil {
		t.Fatalf("ResolveView() error = %v", err)
	}
	if got[0] == nil || got[1] != nil || got[2] == nil {
		t.Errorf("result = [%v %v %v], want dangling marker only at index 1", got[0], got[1], got[2])
	}
}

func TestResolveView_EmptyBufferSkipsLookup(t *testing.T) {
	t.Parallel()

	st := NewState[string](3)
	lookup := func(ctx context.Context, keys []string) (map[string]user, error) {
		t.Fatal("lookup called for an empty buffer")
		return nil, nil
	}

	got, err := ResolveView(context.Background(), st, lookup)
	if err != nil {
		t.Fatalf("ResolveView() error = %v", err)
	}
	if got != nil {
		t.Errorf("result = %v, want nil", got)
	}
}

func TestResolveView_DeduplicatesKeys(t *testing.T) {
	t.Parallel()

	st := NewState[string](4)
	for _, k := range []string{"u1", "u1", "u2", "u1"} {
		st.Append(k)
	}

	var gotKeys []string
	lookup := func(ctx context.Context, keys []string) (map[string]user, error) {
		gotKeys = keys
		out := make(map[string]user, len(keys))
		for _, k := range keys {
			out[k] = user{ID: k}
		}
		return out, nil
	}

	resolved, err := ResolveView(context.Background(), st, lookup)
	if err != nil {
		t.Fatalf("ResolveView() error = %v", err)
	}
	if len(gotKeys) != 2 {
		t.Errorf("lookup keys = %v, want deduplicated to 2", gotKeys)
	}
	// Duplicate positions still resolve independently.
	if len(resolved) != 4 {
		t.Fatalf("len(result) = %d, want 4", len(resolved))
	}
	for i, want := range []string{"u1", "u1", "u2", "u1"} {
		if resolved[i] == nil || resolved[i].ID != want {
			t.Errorf("result[%d] = %v, want %s", i, resolved[i], want)
		}
	}
}

func TestResolveView_LookupErrorPropagates(t *testing.T) {
	t.Parallel()

	st := NewState[string](2)
	st.Append("u1")

	wantErr := errors.New("connection lost")
	lookup := func(ctx context.Context, keys []string) (map[string]user, error) {
		return nil, wantErr
	}

	_, err := ResolveView(context.Background(), st, lookup)
	if !errors.Is(err, wantErr) {
		t.Errorf("ResolveView() error = %v, want wrapped %v", err, wantErr)
	}
}
