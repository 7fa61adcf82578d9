// Package approve implements the approval store (C5): promotes a validated
// draft TableMapping to approved status via an atomic rename, the same
// write-then-publish idiom used elsewhere in this codebase for artifact
// writes. It additionally offers a human-editable TOML rendering of a
// draft mapping for manual review before promotion.
package approve

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"dbxmigrate/internal/artifact"
	"dbxmigrate/internal/core"
)

// Store manages draft/approved mapping documents under root.
type Store struct {
	root string
}

// New returns a Store rooted at mappings/<runID>.
func New(root string) *Store {
	return &Store{root: root}
}

func (s *Store) draftPath(table string) string    { return filepath.Join(s.root, "draft", table+".json") }
func (s *Store) approvedPath(table string) string { return filepath.Join(s.root, "approved", table+".json") }

// SaveDraft writes tm as the draft mapping for its source table.
func (s *Store) SaveDraft(tm *core.TableMapping) error {
	return artifact.WriteJSON(s.draftPath(tm.SourceTable), tm)
}

// LoadDraft reads back a draft mapping.
func (s *Store) LoadDraft(table string) (*core.TableMapping, error) {
	var tm core.TableMapping
	if err := artifact.ReadJSON(s.draftPath(table), &tm); err != nil {
		return nil, err
	}
	return &tm, nil
}

// Validate enforces the structural invariants an approved mapping must
// satisfy: a non-empty target table name, at least one column, a non-empty
// source, target and target type on every column, and no target column
// mapped twice. It does not parse target types, check column roles, or
// compare the mapping against the source table's columns.
func Validate(tm *core.TableMapping) error {
	if tm.TargetTable == "" {
		return &core.MappingError{Table: tm.SourceTable, Err: fmt.Errorf("target table name is empty")}
	}
	if len(tm.Columns) == 0 {
		return &core.MappingError{Table: tm.SourceTable, Err: fmt.Errorf("mapping has no columns")}
	}
	seen := make(map[string]bool, len(tm.Columns))
	for _, c := range tm.Columns {
		if c.Source == "" || c.Target == "" || c.TargetType == "" {
			return &core.MappingError{Table: tm.SourceTable, Err: fmt.Errorf("column mapping %+v has empty source/target/targetType", c)}
		}
		if seen[c.Target] {
			return &core.MappingError{Table: tm.SourceTable, Err: fmt.Errorf("target column %q mapped more than once", c.Target)}
		}
		seen[c.Target] = true
	}
	return nil
}

// Approve validates tm, marks it approved, and atomically promotes it from
// draft to approved via a rename (after re-writing the draft file with the
// approval stamp, so draft and approved agree byte-for-byte).
func Approve(s *Store, table, approvedBy string) (*core.TableMapping, error) {
	tm, err := s.LoadDraft(table)
	if err != nil {
		return nil, fmt.Errorf("approve: load draft %s: %w", table, err)
	}
	if err := Validate(tm); err != nil {
		return nil, err
	}

	now := time.Now()
	tm.Approved = true
	tm.ApprovedBy = approvedBy
	tm.ApprovedAt = &now

	if err := artifact.WriteJSON(s.draftPath(table), tm); err != nil {
		return nil, fmt.Errorf("approve: stamp draft %s: %w", table, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.approvedPath(table)), 0o755); err != nil {
		return nil, fmt.Errorf("approve: mkdir approved dir: %w", err)
	}
	if err := os.Rename(s.draftPath(table), s.approvedPath(table)); err != nil {
		return nil, fmt.Errorf("approve: promote %s: %w", table, err)
	}
	return tm, nil
}

// LoadApproved reads back a previously approved mapping.
func (s *Store) LoadApproved(table string) (*core.TableMapping, error) {
	var tm core.TableMapping
	if err := artifact.ReadJSON(s.approvedPath(table), &tm); err != nil {
		return nil, err
	}
	return &tm, nil
}

// tomlMapping is the human-editable TOML shape of a draft mapping, mirroring
// internal/parser/toml's table/column document style.
type tomlMapping struct {
	SourceTable string            `toml:"source_table"`
	TargetTable string            `toml:"target_table"`
	Columns     []tomlColumnEntry `toml:"columns"`
}

type tomlColumnEntry struct {
	Source        string `toml:"source"`
	SourceTypeRaw string `toml:"source_type_raw"`
	CanonicalType string `toml:"canonical_type"`
	Target        string `toml:"target"`
	TargetType    string `toml:"target_type"`
	Role          string `toml:"role"`
	TransformHint string `toml:"transform_hint,omitempty"`
	Warning       string `toml:"warning,omitempty"`
}

// RenderTOML converts tm to its TOML-editable form, for a reviewer to open,
// hand-edit target/target_type/transform_hint, and feed back to ParseTOML.
func RenderTOML(tm *core.TableMapping) (string, error) {
	tmDoc := tomlMapping{SourceTable: tm.SourceTable, TargetTable: tm.TargetTable}
	for _, c := range tm.Columns {
		tmDoc.Columns = append(tmDoc.Columns, tomlColumnEntry{
			Source:        c.Source,
			SourceTypeRaw: c.SourceTypeRaw,
			CanonicalType: string(c.CanonicalType),
			Target:        c.Target,
			TargetType:    c.TargetType,
			Role:          string(c.Role),
			TransformHint: c.TransformHint,
			Warning:       c.Warning,
		})
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(tmDoc); err != nil {
		return "", fmt.Errorf("approve: render toml: %w", err)
	}
	return buf.String(), nil
}

// ParseTOML parses a hand-edited TOML mapping document back into a
// TableMapping draft.
func ParseTOML(data []byte) (*core.TableMapping, error) {
	var doc tomlMapping
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return nil, fmt.Errorf("approve: parse toml: %w", err)
	}

	tm := &core.TableMapping{SourceTable: doc.SourceTable, TargetTable: doc.TargetTable}
	for _, c := range doc.Columns {
		tm.Columns = append(tm.Columns, core.ColumnMapping{
			Source:        c.Source,
			SourceTypeRaw: c.SourceTypeRaw,
			CanonicalType: core.Canonical(c.CanonicalType),
			Target:        c.Target,
			TargetType:    c.TargetType,
			Role:          core.ColumnRole(c.Role),
			TransformHint: c.TransformHint,
			Warning:       c.Warning,
		})
	}
	return tm, nil
}
