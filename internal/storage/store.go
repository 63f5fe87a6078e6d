// Package storage provides SQLite-backed persistence for records carrying
// cycle buffers. It owns the records table, allocates buffer columns from
// planned layouts, and exposes both mutation modes: staged appends the caller
// flushes explicitly, and atomic appends pushed down to the database as one
// conditional update.
package storage

import (
	"context"

	"github.com/runger/cyclebuf/internal/buffer"
)

// Store defines the interface for all record and buffer operations.
type Store interface {
	// Records
	CreateRecord(ctx context.Context, name string) (*Record, error)
	GetRecord(ctx context.Context, name string) (*Record, error)
	ListRecords(ctx context.Context) ([]Record, error)
	DeleteRecord(ctx context.Context, name string) error

	// Buffers
	LoadBuffer(ctx context.Context, recordID, bufferName string) (*buffer.State[any], error)
	FlushBuffer(ctx context.Context, recordID, bufferName string, st *buffer.State[any]) error
	AppendStaged(ctx context.Context, recordID, bufferName string, value any) error
	AppendAtomic(ctx context.Context, recordID, bufferName string, value any) error
	ViewBuffer(ctx context.Context, recordID, bufferName string) ([]Entry, error)

	// Lifecycle
	Close() error
}

// Record is a row in the records table. Every configured buffer lives as a
// set of columns on this row.
type Record struct {
	RecordID        string
	Name            string
	CreatedAtUnixMs int64
}

// Entry is one logical position of a buffer view, oldest first.
// For plain value buffers only Value is set. For reference buffers Value
// holds the stored key and Record the resolved target; Missing marks a
// dangling reference whose target was deleted after the append.
type Entry struct {
	Value   any
	Record  *Record
	Missing bool
}
