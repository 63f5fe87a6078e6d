// Package sqlite executes cycle-buffer operations against a SQLite database.
// It renders the engine-agnostic conditional assignments emitted by
// internal/buffer into a single UPDATE statement built from CASE expressions,
// so an append is applied atomically against the current row image without a
// prior read, and allocates buffer columns on tables from a planned layout.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/runger/cyclebuf/internal/buffer"
)

// ErrRecordNotFound is returned when a conditional update matches no row,
// typically because the owning record was deleted.
var ErrRecordNotFound = errors.New("record not found")

// Engine applies cycle-buffer updates over an open database handle.
type Engine struct {
	db *sql.DB
}

// New returns an Engine over db. The Engine does not own the handle and
// never closes it.
func New(db *sql.DB) *Engine {
	return &Engine{db: db}
}

// Target identifies the record a conditional update is scoped to.
type Target struct {
	Table     string
	KeyColumn string
	Key       any
}

// AppendValue appends value to the record's buffer in one atomic UPDATE.
// The statement's CASE expressions evaluate against SQLite's current row
// image, so the slot target, pointer advance, and length clamp are all
// derived from state this process never read. Either all three effects
// apply or none do. There is no retry; a missing record surfaces as
// ErrRecordNotFound.
func (e *Engine) AppendValue(ctx context.Context, target Target, spec *buffer.Spec, value any) error {
	query, params := AppendSQL(target.Table, target.KeyColumn, spec)

	args := make([]any, 0, params+1)
	for i := 0; i < params; i++ {
		args = append(args, value)
	}
	args = append(args, target.Key)

	res, err := e.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to append to buffer %s: %w", spec.Name, err)
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

// AppendSQL renders the append assignments for spec into one UPDATE
// statement scoped by keyColumn. It returns the SQL and the number of value
// parameters preceding the final key parameter; the appended value is bound
// once per value parameter, the key last.
func AppendSQL(table, keyColumn string, spec *buffer.Spec) (string, int) {
	assigns := spec.AppendAssignments()
	parts := make([]string, 0, len(assigns))
	params := 0

	for _, a := range assigns {
		var sb strings.Builder
		sb.WriteString(quoteIdent(a.Column))
		sb.WriteString(" = CASE WHEN ")
		sb.WriteString(renderCondition(spec, a.When))
		sb.WriteString(" THEN ")
		sb.WriteString(renderOperand(spec, a.Column, a.Then, &params))
		sb.WriteString(" ELSE ")
		sb.WriteString(renderOperand(spec, a.Column, a.Else, &params))
		sb.WriteString(" END")
		parts = append(parts, sb.String())
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		quoteIdent(table), strings.Join(parts, ", "), quoteIdent(keyColumn))
	return query, params
}

func renderCondition(spec *buffer.Spec, c buffer.Condition) string {
	ptr := quoteIdent(spec.PointerColumn)
	length := quoteIdent(spec.LengthColumn)

	switch c.Kind {
	case buffer.CondSlotTarget:
		return fmt.Sprintf("(%s + %s) %% %d = %d", ptr, length, spec.Capacity, c.Slot)
	case buffer.CondBufferFull:
		return fmt.Sprintf("%s = %d", length, spec.Capacity)
	case buffer.CondOverflow:
		return fmt.Sprintf("%s + 1 > %d", length, spec.Capacity)
	}
	panic(fmt.Sprintf("sqlite: unknown condition kind %d", c.Kind))
}

func renderOperand(spec *buffer.Spec, column string, op buffer.Operand, params *int) string {
	switch op {
	case buffer.OperandNewValue:
		*params++
		return "?"
	case buffer.OperandCurrent:
		return quoteIdent(column)
	case buffer.OperandPointerNext:
		return fmt.Sprintf("(%s + 1) %% %d", quoteIdent(spec.PointerColumn), spec.Capacity)
	case buffer.OperandLengthNext:
		return quoteIdent(spec.LengthColumn) + " + 1"
	case buffer.OperandCapacity:
		return fmt.Sprintf("%d", spec.Capacity)
	}
	panic(fmt.Sprintf("sqlite: unknown operand %d", op))
}

// quoteIdent quotes an identifier for SQLite, doubling embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
