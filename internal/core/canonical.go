package core

import "strings"

// Canonical is the closed set of engine-neutral column types that every
// source/target type maps into during a migration. It is distinct from
// DataType, which only classifies a column for dialect-agnostic schema
// authoring; Canonical additionally distinguishes storage width and
// precision so a migrator can pick a lossless (or least-lossy) target type.
type Canonical string

const (
	CanonicalInt1        Canonical = "INT1"
	CanonicalInt2        Canonical = "INT2"
	CanonicalInt4        Canonical = "INT4"
	CanonicalInt8        Canonical = "INT8"
	CanonicalFloat4      Canonical = "FLOAT4"
	CanonicalFloat8      Canonical = "FLOAT8"
	CanonicalDecimal     Canonical = "DECIMAL"
	CanonicalBool        Canonical = "BOOL"
	CanonicalText        Canonical = "TEXT"
	CanonicalNText       Canonical = "NTEXT"
	CanonicalClob        Canonical = "CLOB"
	CanonicalBlob        Canonical = "BLOB"
	CanonicalDate        Canonical = "DATE"
	CanonicalTime        Canonical = "TIME"
	CanonicalDatetime    Canonical = "DATETIME"
	CanonicalDatetimeTZ  Canonical = "DATETIMETZ"
	CanonicalJSON        Canonical = "JSON"
	CanonicalUUID        Canonical = "UUID"
	CanonicalEnum        Canonical = "ENUM"
	CanonicalBinaryFixed Canonical = "BINARY_FIXED"
	CanonicalUnknown     Canonical = "UNKNOWN"
)

// CanonicalParams carries the length/precision/scale extracted from a
// source raw type alongside its Canonical classification, so a later
// FromCanonical call can reproduce a faithful target type instead of a
// generic dialect default. Zero value means "no parameters extracted."
type CanonicalParams struct {
	Length    int `json:"length,omitempty"`
	Precision int `json:"precision,omitempty"`
	Scale     int `json:"scale,omitempty"`
}

// HasLength reports whether Length was extracted from the source type.
func (p CanonicalParams) HasLength() bool { return p.Length > 0 }

// HasPrecision reports whether Precision was extracted from the source type.
func (p CanonicalParams) HasPrecision() bool { return p.Precision > 0 }

// AllCanonical returns every member of the closed Canonical enum, in
// declaration order, including UNKNOWN.
func AllCanonical() []Canonical {
	return []Canonical{
		CanonicalInt1, CanonicalInt2, CanonicalInt4, CanonicalInt8,
		CanonicalFloat4, CanonicalFloat8, CanonicalDecimal, CanonicalBool,
		CanonicalText, CanonicalNText, CanonicalClob, CanonicalBlob,
		CanonicalDate, CanonicalTime, CanonicalDatetime, CanonicalDatetimeTZ,
		CanonicalJSON, CanonicalUUID, CanonicalEnum, CanonicalBinaryFixed,
		CanonicalUnknown,
	}
}

// ValidCanonical reports whether c is a recognized canonical type.
func ValidCanonical(c string) bool {
	for _, k := range AllCanonical() {
		if strings.EqualFold(string(k), c) {
			return true
		}
	}
	return false
}

// ColumnRole classifies a column's participation in a table's key structure.
// It is derived from a TableSpec's columns/indexes, never stored redundantly.
type ColumnRole string

const (
	RolePrimaryKey ColumnRole = "primary_key"
	RoleUnique     ColumnRole = "unique"
	RoleIndexed    ColumnRole = "indexed"
	RoleNone       ColumnRole = "none"
)

// RoleOf derives the ColumnRole of column name within t from its existing
// PrimaryKey/Unique flags and index membership, rather than keeping a
// separate redundant field in sync.
func RoleOf(t *Table, name string) ColumnRole {
	col := t.FindColumn(name)
	if col != nil && col.PrimaryKey {
		return RolePrimaryKey
	}
	for _, c := range t.Constraints {
		if c.Type == ConstraintPrimaryKey && containsStr(c.Columns, name) {
			return RolePrimaryKey
		}
	}
	if col != nil && col.Unique {
		return RoleUnique
	}
	for _, c := range t.Constraints {
		if c.Type == ConstraintUnique && containsStr(c.Columns, name) {
			return RoleUnique
		}
	}
	for _, idx := range t.Indexes {
		for _, c := range idx.Columns {
			if c.Name == name {
				if idx.Unique {
					return RoleUnique
				}
				return RoleIndexed
			}
		}
	}
	return RoleNone
}

func containsStr(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
