// Package extract implements the extractor (C3): drives a connector to
// introspect a source database and writes the resulting SchemaArtifact to
// disk, one file per table, isolating per-table failures so one bad table
// never aborts the whole run.
package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"dbxmigrate/internal/artifact"
	"dbxmigrate/internal/connector"
	"dbxmigrate/internal/core"
)

// Extractor drives one Connector through a full-schema extraction.
type Extractor struct {
	Conn   connector.Connector
	Logger *zap.Logger
}

// New returns an Extractor for an already-connected connector.
func New(conn connector.Connector, logger *zap.Logger) *Extractor {
	return &Extractor{Conn: conn, Logger: logger}
}

// Run introspects the source and writes schemas/<runID>/<table>.json for
// every table, plus schemas/<runID>/_artifact.json summarizing the run.
// Per-table row-count lookups that fail are recorded as TableErr entries
// rather than aborting extraction.
func (e *Extractor) Run(ctx context.Context, runID string, sourceEngine core.Dialect, outDir string) (*core.SchemaArtifact, error) {
	db, err := e.Conn.ListTables(ctx)
	if err != nil {
		return nil, &core.SchemaError{Err: fmt.Errorf("list tables: %w", err)}
	}

	art := &core.SchemaArtifact{
		RunID:        runID,
		SourceEngine: sourceEngine,
		ExtractedAt:  time.Now(),
		Database:     db,
	}

	for _, t := range db.Tables {
		for _, col := range t.Columns {
			if err := core.ValidateRawType(col.RawType, &sourceEngine); err != nil {
				art.Errors = append(art.Errors, core.TableErr{Table: t.Name, Stage: "raw_type", Error: fmt.Sprintf("column %q: %v", col.Name, err)})
				if e.Logger != nil {
					e.Logger.Warn("raw type validation failed", zap.String("table", t.Name), zap.String("column", col.Name), zap.Error(err))
				}
			}
		}

		n, err := e.Conn.RowCount(ctx, t.Name)
		if err != nil {
			art.Errors = append(art.Errors, core.TableErr{Table: t.Name, Stage: "row_count", Error: err.Error()})
			if e.Logger != nil {
				e.Logger.Warn("row count failed", zap.String("table", t.Name), zap.Error(err))
			}
			continue
		}
		t.RowCountEstimate = n

		if err := artifact.WriteJSON(filepath.Join(outDir, t.Name+".json"), t); err != nil {
			art.Errors = append(art.Errors, core.TableErr{Table: t.Name, Stage: "write_artifact", Error: err.Error()})
		}
	}

	if err := artifact.WriteJSON(filepath.Join(outDir, "_artifact.json"), art); err != nil {
		return art, fmt.Errorf("extract: write run artifact: %w", err)
	}
	return art, nil
}
