// Package connector defines the capability interface (C1) that every
// source/target engine implements: connect, enumerate schema, stream rows
// for extraction, bulk-load rows for migration, execute DDL, and compute
// the aggregates the validator needs. Concrete engines self-register into
// a dialect-keyed registry, mirroring the RWMutex-guarded registry pattern
// used throughout this codebase's catalog-introspection code.
package connector

import (
	"context"
	"fmt"
	"sync"

	"dbxmigrate/internal/core"
)

// ChunkRequest describes one page of rows to stream from a table.
// Exactly one of (PKColumn set, After) or (PKColumn empty, Offset) applies:
// a single monotonic PK drives keyset pagination, otherwise the connector
// falls back to OFFSET/LIMIT.
type ChunkRequest struct {
	Table    string
	Columns  []string
	PKColumn string
	After    any
	Offset   int64
	Limit    int
}

// ChunkResult is one page of extracted/streamed rows.
type ChunkResult struct {
	Rows       []map[string]any
	NextAfter  any
	NextOffset int64
	Done       bool
}

// RowError records a single row's bulk-load failure without aborting the
// rest of the chunk; the migrator routes these to the DLQ. Row is the
// offending row's column->value map, carried so the DLQ entry is
// recoverable rather than just a key and an error string.
type RowError struct {
	RowKey string
	Row    map[string]any
	Err    error
}

// Connector is the capability surface every engine implements.
type Connector interface {
	// Connect establishes the underlying connection pool.
	Connect(ctx context.Context, dsn string) error
	// Close releases the connection pool.
	Close() error
	// ListTables introspects the catalog and returns a populated
	// core.Database (tables, columns, constraints, indexes).
	ListTables(ctx context.Context) (*core.Database, error)
	// RowCount returns the table's exact row count from SELECT COUNT(*).
	RowCount(ctx context.Context, table string) (int64, error)
	// StreamRows returns the next chunk of rows per req.
	StreamRows(ctx context.Context, req ChunkRequest) (*ChunkResult, error)
	// BulkLoad inserts rows into table, returning the count written and any
	// per-row failures (which do not abort the remaining rows in the batch).
	BulkLoad(ctx context.Context, table string, columns []string, rows []map[string]any) (int, []RowError, error)
	// ExecDDL runs a single DDL statement against the connector's database.
	ExecDDL(ctx context.Context, statement string) error
	// Aggregate computes a single scalar aggregate (e.g. "sum", "avg",
	// "count") over column, returning it as its string representation for
	// engine-neutral comparison.
	Aggregate(ctx context.Context, table, column, fn string) (string, error)
	// SampleHash draws a deterministic seeded sample of rows and returns a
	// per-row digest keyed by pkColumn's stringified value, for the
	// validator's L3 check. The caller compares the source and target maps
	// key-by-key so a mismatch can be reported as the specific diverging
	// primary keys rather than a single opaque sample-wide digest.
	SampleHash(ctx context.Context, table, pkColumn string, seed int64, sampleSize int) (map[string]string, error)
	// ToggleFK enables or disables foreign-key enforcement for the
	// connection's session, used by the migrator to load FK cycles.
	ToggleFK(ctx context.Context, enabled bool) error
}

// Factory constructs a new, unconnected Connector instance.
type Factory func() Connector

var (
	mu       sync.RWMutex
	registry = make(map[core.Dialect]Factory)
)

// Register installs a connector factory for a dialect. Called from each
// engine package's init().
func Register(d core.Dialect, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[d] = f
}

// New constructs a fresh, unconnected Connector for dialect d.
func New(d core.Dialect) (Connector, error) {
	mu.RLock()
	f, ok := registry[d]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("connector: no connector registered for dialect %q", d)
	}
	return f(), nil
}
