package schemagen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbxmigrate/internal/core"
)

func sourceTable(name string, cols ...*core.Column) *core.Table {
	return &core.Table{Name: name, Columns: cols}
}

func approvedMapping(sourceTable, targetTable string, cols ...core.ColumnMapping) *core.TableMapping {
	return &core.TableMapping{SourceTable: sourceTable, TargetTable: targetTable, Columns: cols, Approved: true}
}

func TestGenerateBuildsCreateTableWithSynthesizedPrimaryKey(t *testing.T) {
	src := map[string]*core.Table{
		"customers": sourceTable("customers",
			&core.Column{Name: "id", Nullable: false, AutoIncrement: true},
			&core.Column{Name: "email", Nullable: false},
		),
	}
	tms := []*core.TableMapping{
		approvedMapping("customers", "customers",
			core.ColumnMapping{Source: "id", Target: "id", TargetType: "BIGINT", Role: core.RolePrimaryKey},
			core.ColumnMapping{Source: "email", Target: "email", TargetType: "VARCHAR(255)", Role: core.RoleNone},
		),
	}

	g := New()
	result, err := g.Generate(src, tms)
	require.NoError(t, err)
	require.Contains(t, result.Tables, "customers")

	tbl := result.Tables["customers"]
	pk := tbl.PrimaryKey()
	require.NotNil(t, pk)
	assert.Equal(t, []string{"id"}, pk.Columns)

	require.Len(t, result.CreateStatements, 1)
	assert.Contains(t, result.CreateStatements[0], "CREATE TABLE")
	assert.Contains(t, result.CreateStatements[0], "customers")
}

func TestGenerateDefersForeignKeysAcrossBatch(t *testing.T) {
	src := map[string]*core.Table{
		"customers": sourceTable("customers", &core.Column{Name: "id"}),
		"orders": sourceTable("orders",
			&core.Column{Name: "id"},
			&core.Column{Name: "customer_id"},
		),
	}
	src["orders"].Constraints = []*core.Constraint{
		{Type: core.ConstraintForeignKey, Columns: []string{"customer_id"}, ReferencedTable: "customers", ReferencedColumns: []string{"id"}},
	}

	tms := []*core.TableMapping{
		approvedMapping("customers", "customers",
			core.ColumnMapping{Source: "id", Target: "id", TargetType: "BIGINT", Role: core.RolePrimaryKey},
		),
		approvedMapping("orders", "orders",
			core.ColumnMapping{Source: "id", Target: "id", TargetType: "BIGINT", Role: core.RolePrimaryKey},
			core.ColumnMapping{Source: "customer_id", Target: "customer_id", TargetType: "BIGINT", Role: core.RoleNone},
		),
	}

	g := New()
	result, err := g.Generate(src, tms)
	require.NoError(t, err)

	require.Len(t, result.CreateStatements, 2)
	require.Len(t, result.ForeignKeyStatements, 1)
	assert.Contains(t, result.ForeignKeyStatements[0], "FOREIGN KEY")
	assert.Contains(t, result.ForeignKeyStatements[0], "customers")
}

func TestGenerateDropsForeignKeyOutsideBatch(t *testing.T) {
	src := map[string]*core.Table{
		"orders": sourceTable("orders", &core.Column{Name: "id"}, &core.Column{Name: "vendor_id"}),
	}
	src["orders"].Constraints = []*core.Constraint{
		{Type: core.ConstraintForeignKey, Columns: []string{"vendor_id"}, ReferencedTable: "vendors", ReferencedColumns: []string{"id"}},
	}
	tms := []*core.TableMapping{
		approvedMapping("orders", "orders",
			core.ColumnMapping{Source: "id", Target: "id", TargetType: "BIGINT", Role: core.RolePrimaryKey},
			core.ColumnMapping{Source: "vendor_id", Target: "vendor_id", TargetType: "BIGINT", Role: core.RoleNone},
		),
	}

	g := New()
	result, err := g.Generate(src, tms)
	require.NoError(t, err)
	assert.Empty(t, result.ForeignKeyStatements)
}

func TestGenerateRejectsUnapprovedMapping(t *testing.T) {
	g := New()
	_, err := g.Generate(map[string]*core.Table{}, []*core.TableMapping{{SourceTable: "x", TargetTable: "y", Approved: false}})
	require.Error(t, err)
	var mapErr *core.MappingError
	require.ErrorAs(t, err, &mapErr)
}
