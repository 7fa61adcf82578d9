// Package migrate implements the data migrator (C7): orders the approved
// target tables by foreign-key dependency, loads each table in checkpointed,
// resumable chunks with time-adaptive chunk sizing, transforms every row via
// internal/canon on the way through, routes per-row failures to a DLQ
// instead of aborting the batch, and runs one dependency wave of tables at a
// time through a bounded worker pool.
package migrate

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"dbxmigrate/internal/artifact"
	"dbxmigrate/internal/canon"
	"dbxmigrate/internal/connector"
	"dbxmigrate/internal/core"
	"dbxmigrate/internal/events"
)

const (
	defaultChunkSize   = 1000
	minChunkSize       = 100
	maxChunkSize       = 20000
	defaultConcurrency = 4
	// targetChunkDuration is the per-chunk wall-clock time the AIMD sizer
	// aims for: faster than this, the next chunk grows; slower, it shrinks.
	targetChunkDuration = 2 * time.Second
)

// Migrator drives the migrate stage against one source/target connector pair.
type Migrator struct {
	Source      connector.Connector
	Target      connector.Connector
	ArtifactDir string
	RunID       string
	Logger      *zap.Logger
	Events      *events.Emitter
	Concurrency int64
}

// New builds a Migrator with the default worker concurrency.
func New(source, target connector.Connector, artifactDir, runID string, logger *zap.Logger) *Migrator {
	return &Migrator{
		Source:      source,
		Target:      target,
		ArtifactDir: artifactDir,
		RunID:       runID,
		Logger:      logger,
		Concurrency: defaultConcurrency,
	}
}

// tableJob binds an approved mapping to the synthesized target table it
// produced, so the migrator knows both the source columns to read and the
// target columns, primary key, and foreign keys to write against.
type tableJob struct {
	Mapping *core.TableMapping
	Target  *core.Table
}

// Run migrates every table named by mappings, whose synthesized target
// definitions are given by targetSchema (schemagen's Result.Tables).
func (m *Migrator) Run(ctx context.Context, mappings []*core.TableMapping, targetSchema map[string]*core.Table) error {
	jobs := make(map[string]*tableJob, len(mappings))
	deps := make(tableGraph, len(mappings))
	for _, tm := range mappings {
		t, ok := targetSchema[tm.TargetTable]
		if !ok {
			return &core.SchemaError{Table: tm.TargetTable, Err: fmt.Errorf("migrate: no synthesized target table for mapping")}
		}
		jobs[tm.TargetTable] = &tableJob{Mapping: tm, Target: t}

		var edges []string
		for _, con := range t.Constraints {
			if con.Type == core.ConstraintForeignKey {
				edges = append(edges, con.ReferencedTable)
			}
		}
		deps[tm.TargetTable] = edges
	}

	p := orderTables(deps)
	concurrency := m.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	sem := semaphore.NewWeighted(concurrency)

	for _, wave := range p.levels() {
		g, gctx := errgroup.WithContext(ctx)
		for _, name := range wave {
			name := name
			job := jobs[name]
			disableFK := p.FKDisabled[name]
			g.Go(func() error {
				if err := sem.Acquire(gctx, 1); err != nil {
					return err
				}
				defer sem.Release(1)
				return m.migrateTable(gctx, job, disableFK)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

func (m *Migrator) checkpointPath(table string) string {
	return filepath.Join(m.ArtifactDir, "checkpoints", m.RunID, table+".json")
}

func (m *Migrator) dlqPath(table string) string {
	return filepath.Join(m.ArtifactDir, "dlq", m.RunID, table+".csv")
}

func (m *Migrator) loadCheckpoint(table string) *core.Checkpoint {
	var cp core.Checkpoint
	if err := artifact.ReadJSON(m.checkpointPath(table), &cp); err != nil {
		return &core.Checkpoint{RunID: m.RunID, Table: table, Status: core.CheckpointPending, ChunkSize: defaultChunkSize}
	}
	return &cp
}

func (m *Migrator) saveCheckpoint(cp *core.Checkpoint) error {
	cp.UpdatedAt = time.Now()
	return artifact.WriteJSON(m.checkpointPath(cp.Table), cp)
}

func (m *Migrator) emit(kind events.Kind, table, message string) {
	if m.Events == nil {
		return
	}
	_ = m.Events.Emit(events.Event{Kind: kind, RunID: m.RunID, Stage: "migrate", Table: table, Message: message})
}

// migrateTable loads one table to completion (or until ctx is cancelled),
// resuming from its existing checkpoint when present.
func (m *Migrator) migrateTable(ctx context.Context, job *tableJob, disableFK bool) error {
	table := job.Target.Name
	sourceTable := job.Mapping.SourceTable

	cp := m.loadCheckpoint(table)
	if cp.Status == core.CheckpointComplete {
		m.emit(events.KindTableFinished, table, "already complete, skipping")
		return nil
	}
	if cp.ChunkSize <= 0 {
		cp.ChunkSize = defaultChunkSize
	}
	cp.Status = core.CheckpointRunning
	if err := m.saveCheckpoint(cp); err != nil {
		return &core.LoadError{Table: table, Err: err}
	}
	m.emit(events.KindTableStarted, table, fmt.Sprintf("resuming at %d rows copied", cp.RowsCopied))

	if disableFK {
		if err := m.Target.ToggleFK(ctx, false); err != nil {
			return &core.LoadError{Table: table, Err: fmt.Errorf("disable FK checks: %w", err)}
		}
		defer m.Target.ToggleFK(ctx, true)
	}

	dlq, err := artifact.NewDLQWriter(m.dlqPath(table))
	if err != nil {
		return &core.LoadError{Table: table, Err: err}
	}
	defer dlq.Close()

	sourceCols := make([]string, len(job.Mapping.Columns))
	targetCols := make([]string, len(job.Mapping.Columns))
	pkSourceColumn := ""
	for i, cm := range job.Mapping.Columns {
		sourceCols[i] = cm.Source
		targetCols[i] = cm.Target
		if cm.Role == core.RolePrimaryKey && pkSourceColumn == "" {
			pkSourceColumn = cm.Source
		}
	}

	var after any
	if cp.LastKey != "" && !cp.UsesOffset {
		after = restoreLastKey(cp.LastKey, cp.LastKeyKind)
	}

	for {
		if err := ctx.Err(); err != nil {
			return &core.Cancelled{Err: err}
		}

		req := connector.ChunkRequest{Table: sourceTable, Columns: sourceCols, Limit: cp.ChunkSize}
		if pkSourceColumn != "" && !cp.UsesOffset {
			req.PKColumn = pkSourceColumn
			req.After = after
		} else {
			req.Offset = cp.Offset
		}

		start := time.Now()
		res, err := m.Source.StreamRows(ctx, req)
		if err != nil {
			if req.PKColumn != "" {
				// Keyset pagination unsupported for this table shape; fall back
				// to OFFSET permanently. OFFSET pagination is fragile under
				// concurrent writes to the source (rows can shift between
				// pages), so the fallback is logged rather than silent.
				cp.UsesOffset = true
				m.Logger.Warn("pk keyset pagination unavailable, falling back to offset",
					zap.String("table", table), zap.Error(err))
				m.emit(events.KindWarning, table, fmt.Sprintf("falling back to OFFSET pagination: %v", err))
				continue
			}
			return &core.LoadError{Table: table, Err: fmt.Errorf("stream rows: %w", err)}
		}

		if len(res.Rows) > 0 {
			rows, transformErrs := m.transformRows(job, res.Rows)
			for _, re := range transformErrs {
				if err := dlq.WriteRow(re.RowKey, re.Err.Error(), marshalRawRow(re.Row), time.Now().Format(time.RFC3339Nano)); err != nil {
					return &core.LoadError{Table: table, Err: err}
				}
				cp.RowsErrored++
			}

			written, loadErrs, err := m.Target.BulkLoad(ctx, table, targetCols, rows)
			if err != nil {
				return &core.LoadError{Table: table, Err: fmt.Errorf("bulk load: %w", err)}
			}
			for _, re := range loadErrs {
				if err := dlq.WriteRow(re.RowKey, re.Err.Error(), marshalRawRow(re.Row), time.Now().Format(time.RFC3339Nano)); err != nil {
					return &core.LoadError{Table: table, Err: err}
				}
				cp.RowsErrored++
			}
			cp.RowsCopied += int64(written)
			m.emit(events.KindTableProgress, table, fmt.Sprintf("%d rows copied, %d errored", cp.RowsCopied, cp.RowsErrored))
		}

		cp.ChunkSize = adaptChunkSize(cp.ChunkSize, time.Since(start), len(res.Rows))

		if cp.UsesOffset {
			cp.Offset = res.NextOffset
		} else if pkSourceColumn != "" {
			after = res.NextAfter
			cp.LastKey, cp.LastKeyKind = encodeLastKey(after)
		}

		if err := m.saveCheckpoint(cp); err != nil {
			return &core.LoadError{Table: table, Err: err}
		}

		if res.Done {
			break
		}
	}

	cp.Status = core.CheckpointComplete
	if err := m.saveCheckpoint(cp); err != nil {
		return &core.LoadError{Table: table, Err: err}
	}
	m.emit(events.KindTableFinished, table, fmt.Sprintf("%d rows copied, %d errored", cp.RowsCopied, cp.RowsErrored))
	return nil
}

// transformRows converts every scanned source row into its target-ready
// shape: per-column canonical transforms applied, keyed by target column
// name. A row whose transform fails is excluded from the returned slice and
// reported instead, so the rest of the chunk still loads.
func (m *Migrator) transformRows(job *tableJob, rows []map[string]any) ([]map[string]any, []connector.RowError) {
	canonOf := make(map[string]core.Canonical, len(job.Mapping.Columns))
	targetOf := make(map[string]string, len(job.Mapping.Columns))
	for _, cm := range job.Mapping.Columns {
		canonOf[cm.Source] = cm.CanonicalType
		targetOf[cm.Source] = cm.Target
	}

	out := make([]map[string]any, 0, len(rows))
	var errs []connector.RowError
	for _, row := range rows {
		target := make(map[string]any, len(row))
		var rowErr error
		for src, val := range row {
			tgtName, ok := targetOf[src]
			if !ok {
				continue
			}
			tv, err := canon.Transform(canonOf[src], val)
			if err != nil {
				rowErr = fmt.Errorf("column %s: %w", src, err)
				break
			}
			target[tgtName] = tv
		}
		if rowErr != nil {
			errs = append(errs, connector.RowError{RowKey: rowKeyOf(job, row), Row: row, Err: rowErr})
			continue
		}
		out = append(out, target)
	}
	return out, errs
}

// marshalRawRow serializes a failed row's column->value map to JSON for the
// DLQ's raw_row column, so a failed row is recoverable and replayable
// rather than just an opaque key and error string. A row that fails to
// marshal (e.g. an unsupported driver-specific type) falls back to its Go
// %v representation instead of dropping the record.
func marshalRawRow(row map[string]any) string {
	if row == nil {
		return ""
	}
	b, err := json.Marshal(row)
	if err != nil {
		return fmt.Sprintf("%v", row)
	}
	return string(b)
}

// encodeLastKey captures a keyset cursor's Go type alongside its string form
// so a resumed run can restore the original type instead of always binding a
// string into the next chunk's "WHERE pk > ?" — an integer PK compared
// against a bound string literal errors on Postgres and MSSQL.
func encodeLastKey(v any) (key, kind string) {
	switch t := v.(type) {
	case int64:
		return strconv.FormatInt(t, 10), "int64"
	case int:
		return strconv.Itoa(t), "int64"
	case int32:
		return strconv.FormatInt(int64(t), 10), "int64"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), "float64"
	case []byte:
		return string(t), "string"
	case string:
		return t, "string"
	default:
		return fmt.Sprintf("%v", t), "string"
	}
}

// restoreLastKey reverses encodeLastKey. An unrecognized or missing kind
// falls back to the raw string, matching the previous behavior for
// checkpoints written before this field existed.
func restoreLastKey(key, kind string) any {
	switch kind {
	case "int64":
		if n, err := strconv.ParseInt(key, 10, 64); err == nil {
			return n
		}
	case "float64":
		if f, err := strconv.ParseFloat(key, 64); err == nil {
			return f
		}
	}
	return key
}

func rowKeyOf(job *tableJob, row map[string]any) string {
	for _, cm := range job.Mapping.Columns {
		if cm.Role == core.RolePrimaryKey {
			if v, ok := row[cm.Source]; ok {
				return fmt.Sprintf("%v", v)
			}
		}
	}
	return fmt.Sprintf("%v", row)
}

// adaptChunkSize sizes the next chunk from how long the last one took: after
// a chunk that finished within targetChunkDuration the size grows by half,
// after a slower one it is halved, both clamped to
// [minChunkSize, maxChunkSize].
func adaptChunkSize(current int, elapsed time.Duration, rowsReturned int) int {
	if rowsReturned == 0 {
		return current
	}
	if elapsed <= targetChunkDuration {
		next := current + current/2
		if next > maxChunkSize {
			return maxChunkSize
		}
		return next
	}
	next := current / 2
	if next < minChunkSize {
		return minChunkSize
	}
	return next
}
