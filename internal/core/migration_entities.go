package core

import "time"

// SchemaArtifact is the output of the extractor (C3): a snapshot of the
// source database's structure plus bookkeeping about the extraction run
// itself. It is written to schemas/<run_id>/ as one JSON file per table and
// reassembled here for in-process use.
type SchemaArtifact struct {
	RunID        string     `json:"runId"`
	SourceEngine Dialect    `json:"sourceEngine"`
	ExtractedAt  time.Time  `json:"extractedAt"`
	Database     *Database  `json:"database"`
	Errors       []TableErr `json:"errors,omitempty"`
}

// TableErr records a single table that failed extraction without aborting
// the rest of the run.
type TableErr struct {
	Table string `json:"table"`
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// ColumnMapping is one column's proposed or approved translation from the
// source schema to the MySQL target, produced by the proposer (C4) and
// promoted by the approval store (C5).
type ColumnMapping struct {
	Source          string          `json:"source"`
	SourceTypeRaw   string          `json:"sourceTypeRaw"`
	CanonicalType   Canonical       `json:"canonicalType"`
	CanonicalParams CanonicalParams `json:"canonicalParams,omitempty"`
	Target          string          `json:"target"`
	TargetType      string          `json:"targetType"`
	Role            ColumnRole      `json:"role"`
	TransformHint   string          `json:"transformHint,omitempty"`
	Warning         string          `json:"warning,omitempty"`
}

// TableMapping is the full per-table mapping document stored under
// mappings/<run_id>/{draft,approved}/<table>.json.
type TableMapping struct {
	SourceTable string          `json:"sourceTable"`
	TargetTable string          `json:"targetTable"`
	Columns     []ColumnMapping `json:"columns"`
	Approved    bool            `json:"approved"`
	ApprovedBy  string          `json:"approvedBy,omitempty"`
	ApprovedAt  *time.Time      `json:"approvedAt,omitempty"`
}

// FindColumn looks up a column mapping by source column name.
func (tm *TableMapping) FindColumn(source string) *ColumnMapping {
	for i := range tm.Columns {
		if tm.Columns[i].Source == source {
			return &tm.Columns[i]
		}
	}
	return nil
}

// CheckpointStatus is the lifecycle state of a table's migration checkpoint.
type CheckpointStatus string

const (
	CheckpointPending  CheckpointStatus = "pending"
	CheckpointRunning  CheckpointStatus = "running"
	CheckpointComplete CheckpointStatus = "complete"
	CheckpointFailed   CheckpointStatus = "failed"
)

// Checkpoint tracks migration progress for a single table so a run can
// resume after a crash or cancellation without re-copying committed rows.
type Checkpoint struct {
	RunID       string           `json:"runId"`
	Table       string           `json:"table"`
	Status      CheckpointStatus `json:"status"`
	LastKey     string           `json:"lastKey,omitempty"`
	LastKeyKind string           `json:"lastKeyKind,omitempty"`
	RowsCopied  int64            `json:"rowsCopied"`
	RowsErrored int64            `json:"rowsErrored"`
	ChunkSize   int              `json:"chunkSize"`
	UpdatedAt   time.Time        `json:"updatedAt"`
	UsesOffset  bool             `json:"usesOffset"`
	Offset      int64            `json:"offset,omitempty"`
}

// DLQRecord is one row that could not be loaded into the target, routed to
// the table's dead-letter CSV alongside the reason it was rejected.
type DLQRecord struct {
	Table     string    `json:"table"`
	RowKey    string    `json:"rowKey"`
	Reason    string    `json:"reason"`
	RawRow    string    `json:"rawRow"`
	Timestamp time.Time `json:"timestamp"`
}

// ValidationLevel identifies which of the three validation passes (C8)
// produced a ValidationResult.
type ValidationLevel string

const (
	ValidationL1RowCount  ValidationLevel = "L1_row_count"
	ValidationL2Aggregate ValidationLevel = "L2_aggregate"
	ValidationL3Sample    ValidationLevel = "L3_sample_hash"
)

// ValidationResult is the outcome of one validation level for one table.
type ValidationResult struct {
	Table       string          `json:"table"`
	Level       ValidationLevel `json:"level"`
	Passed      bool            `json:"passed"`
	SourceValue string          `json:"sourceValue,omitempty"`
	TargetValue string          `json:"targetValue,omitempty"`
	Detail      string          `json:"detail,omitempty"`
	CheckedAt   time.Time       `json:"checkedAt"`
}

// RunContext carries identity and configuration shared by every stage of a
// single pipeline invocation.
type RunContext struct {
	RunID       string    `json:"runId"`
	StartedAt   time.Time `json:"startedAt"`
	SourceKind  Dialect   `json:"sourceKind"`
	TargetKind  Dialect   `json:"targetKind"`
	ArtifactDir string    `json:"artifactDir"`
}
