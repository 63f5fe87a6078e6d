package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/runger/cyclebuf/internal/buffer"
)

// ColumnDefs returns the DDL column definitions that allocate a buffer on a
// table: the pointer and length columns defaulted to zero so new records hold
// an empty buffer, then one column per slot in declaration order. Slot
// columns are nullable unless the slot kind says otherwise; reference slots
// gain a REFERENCES clause per slot.
func ColumnDefs(spec *buffer.Spec) []string {
	defs := make([]string, 0, spec.Capacity+2)
	defs = append(defs,
		fmt.Sprintf("%s INTEGER NOT NULL DEFAULT 0", quoteIdent(spec.PointerColumn)),
		fmt.Sprintf("%s INTEGER NOT NULL DEFAULT 0", quoteIdent(spec.LengthColumn)),
	)

	for _, name := range spec.SlotNames {
		var sb strings.Builder
		sb.WriteString(quoteIdent(name))
		sb.WriteString(" ")
		sb.WriteString(string(spec.Slot.Type))
		if spec.Slot.NotNull {
			sb.WriteString(" NOT NULL")
		}
		if spec.Slot.Default != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(spec.Slot.Default)
		}
		if spec.Slot.IsRef() {
			sb.WriteString(fmt.Sprintf(" REFERENCES %s(%s)",
				quoteIdent(spec.Slot.Ref), quoteIdent(spec.Slot.RefColumn)))
		}
		defs = append(defs, sb.String())
	}
	return defs
}

// EnsureColumns adds any missing buffer columns to an existing table. Column
// additions are idempotent: existing columns are left untouched, so a
// capacity increase in configuration allocates only the new slots.
func EnsureColumns(ctx context.Context, db *sql.DB, table string, spec *buffer.Spec) error {
	existing, err := tableColumns(ctx, db, table)
	if err != nil {
		return err
	}

	// PRAGMA table_info reports names unquoted; defs are keyed by position.
	names := spec.Columns()
	for i, def := range ColumnDefs(spec) {
		if existing[names[i]] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", quoteIdent(table), def)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to add buffer column %s: %w", names[i], err)
		}
	}
	return nil
}

func tableColumns(ctx context.Context, db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("failed to inspect table %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid      int
			name     string
			colType  string
			notNull  int
			dflt     sql.NullString
			primaryK int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &primaryK); err != nil {
			return nil, fmt.Errorf("failed to scan table info: %w", err)
		}
		cols[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read table info: %w", err)
	}
	return cols, nil
}
