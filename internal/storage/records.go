package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/runger/cyclebuf/internal/buffer"
	"github.com/runger/cyclebuf/internal/sqlite"
)

// ErrRecordNotFound is returned when a record is not found.
var ErrRecordNotFound = errors.New("record not found")

// ErrBufferNotFound is returned when a buffer name has no definition.
var ErrBufferNotFound = errors.New("buffer not defined")

// CreateRecord creates a new record with an empty state for every configured
// buffer. The record identity is generated.
func (s *SQLiteStore) CreateRecord(ctx context.Context, name string) (*Record, error) {
	if name == "" {
		return nil, errors.New("record name is required")
	}

	rec := &Record{
		RecordID:        uuid.NewString(),
		Name:            name,
		CreatedAtUnixMs: time.Now().UnixMilli(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO records (record_id, name, created_at_unix_ms)
		VALUES (?, ?, ?)
	`, rec.RecordID, rec.Name, rec.CreatedAtUnixMs)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, fmt.Errorf("record %q already exists", name)
		}
		return nil, fmt.Errorf("failed to create record: %w", err)
	}
	return rec, nil
}

// GetRecord looks a record up by name.
func (s *SQLiteStore) GetRecord(ctx context.Context, name string) (*Record, error) {
	if name == "" {
		return nil, errors.New("record name is required")
	}

	var rec Record
	err := s.db.QueryRowContext(ctx, `
		SELECT record_id, name, created_at_unix_ms FROM records WHERE name = ?
	`, name).Scan(&rec.RecordID, &rec.Name, &rec.CreatedAtUnixMs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return &rec, nil
}

// ListRecords returns all records, newest first.
func (s *SQLiteStore) ListRecords(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_id, name, created_at_unix_ms
		FROM records
		ORDER BY created_at_unix_ms DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.RecordID, &rec.Name, &rec.CreatedAtUnixMs); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	return out, nil
}

// DeleteRecord deletes a record by name. Buffers of other records keep any
// references to it; those become dangling and show up as missing entries in
// views rather than failing them.
func (s *SQLiteStore) DeleteRecord(ctx context.Context, name string) error {
	if name == "" {
		return errors.New("record name is required")
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// LoadBuffer reads a buffer's state off a record, decoding slot values
// through the buffer's codec. Control values are normalized on the way in so
// an inconsistent stored pointer/length pair cannot corrupt later appends.
func (s *SQLiteStore) LoadBuffer(ctx context.Context, recordID, bufferName string) (*buffer.State[any], error) {
	b, err := s.bufferFor(bufferName)
	if err != nil {
		return nil, err
	}

	st := buffer.NewState[any](b.Spec.Capacity)
	raw := make([]any, b.Spec.Capacity)
	dest := []any{&st.Pointer, &st.Length}
	for i := range raw {
		dest = append(dest, &raw[i])
	}

	err = s.db.QueryRowContext(ctx, s.selectStateSQL(b.Spec), recordID).Scan(dest...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to load buffer %s: %w", bufferName, err)
	}

	for i, r := range raw {
		v, err := b.Codec.Decode(r)
		if err != nil {
			return nil, fmt.Errorf("failed to decode slot %d of buffer %s: %w", i, bufferName, err)
		}
		st.Slots[i] = v
	}
	st.Normalize()
	return st, nil
}

// FlushBuffer persists a staged buffer state: pointer, length, and every
// slot column are written back in one statement. This is the explicit
// persist step staged appends require.
func (s *SQLiteStore) FlushBuffer(ctx context.Context, recordID, bufferName string, st *buffer.State[any]) error {
	b, err := s.bufferFor(bufferName)
	if err != nil {
		return err
	}
	if st.Capacity() != b.Spec.Capacity {
		return fmt.Errorf("state capacity %d does not match buffer %s capacity %d",
			st.Capacity(), bufferName, b.Spec.Capacity)
	}

	sets := make([]string, 0, b.Spec.Capacity+2)
	args := make([]any, 0, b.Spec.Capacity+3)
	sets = append(sets, quoted(b.Spec.PointerColumn)+" = ?", quoted(b.Spec.LengthColumn)+" = ?")
	args = append(args, st.Pointer, st.Length)
	for i, col := range b.Spec.SlotNames {
		encoded, err := b.Codec.Encode(st.Slots[i])
		if err != nil {
			return fmt.Errorf("failed to encode slot %d of buffer %s: %w", i, bufferName, err)
		}
		sets = append(sets, quoted(col)+" = ?")
		args = append(args, encoded)
	}
	args = append(args, recordID)

	query := fmt.Sprintf(`UPDATE records SET %s WHERE record_id = ?`, strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to flush buffer %s: %w", bufferName, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// AppendStaged appends value via the in-memory path: load, append, flush.
// This is a read-modify-write and assumes the caller owns the record for the
// duration; concurrent appenders must use AppendAtomic instead.
func (s *SQLiteStore) AppendStaged(ctx context.Context, recordID, bufferName string, value any) error {
	b, err := s.bufferFor(bufferName)
	if err != nil {
		return err
	}
	value = substituteKey(b, value)

	st, err := s.LoadBuffer(ctx, recordID, bufferName)
	if err != nil {
		return err
	}
	st.Append(value)
	return s.FlushBuffer(ctx, recordID, bufferName, st)
}

// AppendAtomic appends value as one conditional update executed by SQLite
// against the current row, with no prior read of pointer or length. Safe
// under concurrent appenders; a deleted record surfaces as
// ErrRecordNotFound, and no retry is attempted.
func (s *SQLiteStore) AppendAtomic(ctx context.Context, recordID, bufferName string, value any) error {
	b, err := s.bufferFor(bufferName)
	if err != nil {
		return err
	}

	encoded, err := b.Codec.Encode(substituteKey(b, value))
	if err != nil {
		return fmt.Errorf("failed to encode value for buffer %s: %w", bufferName, err)
	}

	target := sqlite.Target{Table: recordsTable, KeyColumn: recordKeyColumn, Key: recordID}
	if err := s.engine.AppendValue(ctx, target, b.Spec, encoded); err != nil {
		if errors.Is(err, sqlite.ErrRecordNotFound) {
			return ErrRecordNotFound
		}
		return err
	}
	return nil
}

// ViewBuffer returns the logical sequence of a buffer, oldest first.
// Reference buffers are resolved through one bulk lookup; entries whose
// target record was deleted come back with Missing set instead of failing
// the view.
func (s *SQLiteStore) ViewBuffer(ctx context.Context, recordID, bufferName string) ([]Entry, error) {
	b, err := s.bufferFor(bufferName)
	if err != nil {
		return nil, err
	}

	if !b.IsRef() {
		st, err := s.LoadBuffer(ctx, recordID, bufferName)
		if err != nil {
			return nil, err
		}
		view := st.View()
		entries := make([]Entry, len(view))
		for i, v := range view {
			entries[i] = Entry{Value: v}
		}
		return entries, nil
	}

	st, err := s.loadRefState(ctx, recordID, b)
	if err != nil {
		return nil, err
	}
	keys := st.View()
	resolved, err := buffer.ResolveView(ctx, st, s.lookupRecords)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, len(keys))
	for i, key := range keys {
		entries[i] = Entry{Value: key, Record: resolved[i], Missing: resolved[i] == nil}
	}
	return entries, nil
}

// bufferFor returns the definition registered for a buffer name.
func (s *SQLiteStore) bufferFor(name string) (Buffer, error) {
	b, ok := s.buffers[name]
	if !ok {
		return Buffer{}, fmt.Errorf("%w: %s", ErrBufferNotFound, name)
	}
	return b, nil
}

// loadRefState loads a reference buffer's state with string keys.
func (s *SQLiteStore) loadRefState(ctx context.Context, recordID string, b Buffer) (*buffer.State[string], error) {
	st := buffer.NewState[string](b.Spec.Capacity)
	slots := make([]sql.NullString, b.Spec.Capacity)
	dest := []any{&st.Pointer, &st.Length}
	for i := range slots {
		dest = append(dest, &slots[i])
	}

	err := s.db.QueryRowContext(ctx, s.selectStateSQL(b.Spec), recordID).Scan(dest...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to load buffer %s: %w", b.Spec.Name, err)
	}

	for i, slot := range slots {
		st.Slots[i] = slot.String
	}
	st.Normalize()
	return st, nil
}

// lookupRecords bulk-fetches records by identity in one query.
func (s *SQLiteStore) lookupRecords(ctx context.Context, keys []string) (map[string]Record, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(keys)), ", ")
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT record_id, name, created_at_unix_ms
		FROM records WHERE record_id IN (%s)
	`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to bulk-fetch records: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Record, len(keys))
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.RecordID, &rec.Name, &rec.CreatedAtUnixMs); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		out[rec.RecordID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	return out, nil
}

// selectStateSQL builds the state read for a buffer: control columns first,
// then slots in physical order.
func (s *SQLiteStore) selectStateSQL(spec *buffer.Spec) string {
	cols := make([]string, 0, spec.Capacity+2)
	for _, c := range spec.Columns() {
		cols = append(cols, quoted(c))
	}
	return fmt.Sprintf(`SELECT %s FROM records WHERE record_id = ?`, strings.Join(cols, ", "))
}

// substituteKey replaces a record value with its identity key for reference
// buffers, mirroring how the atomic path binds keys rather than full values.
func substituteKey(b Buffer, value any) any {
	if !b.IsRef() {
		return value
	}
	if rec, ok := value.(*Record); ok {
		return rec.RecordID
	}
	return value
}

// isDuplicateKeyError checks if the error indicates a unique constraint
// violation.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint violation")
}

func quoted(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
