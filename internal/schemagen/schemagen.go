// Package schemagen implements the schema generator (C6): turns a batch of
// approved TableMapping documents into target core.Table definitions, lets
// internal/core's own structural validation (constraint synthesis, FK
// existence, naming rules) run over the synthesized schema exactly as it
// would over a hand-written one, and renders CREATE TABLE / ADD FOREIGN KEY
// DDL for internal/apply to execute.
//
// Foreign keys are deferred until every table in the batch has been created,
// mirroring the pendingFKs pattern used for hand-authored migrations: a
// table created mid-batch may reference a sibling created later.
package schemagen

import (
	"fmt"
	"sort"

	"dbxmigrate/internal/apply"
	"dbxmigrate/internal/core"
)

// Generator builds and validates target schemas from approved mappings.
type Generator struct {
	analyzer *apply.StatementAnalyzer
}

// New returns a ready-to-use Generator.
func New() *Generator {
	return &Generator{analyzer: apply.NewStatementAnalyzer()}
}

// Result is the output of a Generate call.
type Result struct {
	// Tables holds the synthesized target tables, keyed by target table name.
	Tables map[string]*core.Table
	// CreateStatements are CREATE TABLE statements, one per table, in a
	// stable order derived from the input mappings.
	CreateStatements []string
	// ForeignKeyStatements are ALTER TABLE ... ADD CONSTRAINT ... FOREIGN KEY
	// statements, applied after every CreateStatement has run.
	ForeignKeyStatements []string
	// Preflight surfaces blocking/destructive/non-transactional warnings for
	// the full statement batch, via the same analyzer internal/apply uses for
	// hand-authored migrations.
	Preflight *apply.PreflightResult
}

// Generate builds the target MySQL schema for every approved mapping in tms.
// sourceTables must contain, keyed by source table name, the extracted
// core.Table each mapping was produced from (needed for nullability,
// comments, and foreign key translation that TableMapping itself does not
// carry).
func (g *Generator) Generate(sourceTables map[string]*core.Table, tms []*core.TableMapping) (*Result, error) {
	targetNameOf := make(map[string]string, len(tms))
	for _, tm := range tms {
		if !tm.Approved {
			return nil, &core.MappingError{Table: tm.SourceTable, Err: fmt.Errorf("mapping is not approved")}
		}
		targetNameOf[tm.SourceTable] = tm.TargetTable
	}

	tables := make(map[string]*core.Table, len(tms))
	order := make([]string, 0, len(tms))
	for _, tm := range tms {
		src, ok := sourceTables[tm.SourceTable]
		if !ok {
			return nil, &core.SchemaError{Table: tm.SourceTable, Err: fmt.Errorf("no extracted source table for mapping")}
		}
		t, err := g.buildTargetTable(src, tm, targetNameOf)
		if err != nil {
			return nil, err
		}
		tables[t.Name] = t
		order = append(order, t.Name)
	}

	db := &core.Database{Name: "dbxmigrate_target", Dialect: dialectPtr(core.DialectMySQL)}
	for _, name := range order {
		db.Tables = append(db.Tables, tables[name])
	}
	if err := db.Validate(); err != nil {
		return nil, &core.SchemaError{Err: fmt.Errorf("synthesized target schema is invalid: %w", err)}
	}

	res := &Result{Tables: tables}
	var allStatements []string

	for _, name := range order {
		create := g.createTableStatement(tables[name])
		res.CreateStatements = append(res.CreateStatements, create)
		allStatements = append(allStatements, create)
	}

	for _, name := range order {
		for _, fk := range foreignKeysOf(tables[name]) {
			stmt := foreignKeyStatement(name, fk)
			res.ForeignKeyStatements = append(res.ForeignKeyStatements, stmt)
			allStatements = append(allStatements, stmt)
		}
	}

	res.Preflight = g.analyzer.AnalyzeStatements(allStatements, true)
	return res, nil
}

// buildTargetTable synthesizes one target core.Table from tm, reading
// nullability, comments, and identity attributes from the source column, and
// translating any source foreign key whose referenced table is also part of
// this batch into a column-level reference shortcut that core's own
// synthesizeFKConstraints will turn into a Constraint during Validate.
func (g *Generator) buildTargetTable(src *core.Table, tm *core.TableMapping, targetNameOf map[string]string) (*core.Table, error) {
	t := &core.Table{
		Name: tm.TargetTable,
		Options: core.TableOptions{
			MySQL: &core.MySQLTableOptions{Engine: "InnoDB", Charset: "utf8mb4", Collate: "utf8mb4_unicode_ci"},
		},
	}

	colTargetName := make(map[string]string, len(tm.Columns))
	for _, cm := range tm.Columns {
		colTargetName[cm.Source] = cm.Target
	}

	var indexCols []string
	for _, cm := range tm.Columns {
		sc := src.FindColumn(cm.Source)
		if sc == nil {
			return nil, &core.MappingError{Table: tm.SourceTable, Err: fmt.Errorf("mapping references unknown source column %q", cm.Source)}
		}

		col := &core.Column{
			Name:     cm.Target,
			RawType:  cm.TargetType,
			Type:     core.NormalizeDataType(cm.TargetType),
			Nullable: sc.Nullable,
			Comment:  annotatedComment(sc.Comment, cm.Warning),
		}

		switch cm.Role {
		case core.RolePrimaryKey:
			col.PrimaryKey = true
			col.Nullable = false
			col.AutoIncrement = sc.AutoIncrement
		case core.RoleUnique:
			col.Unique = true
		case core.RoleIndexed:
			indexCols = append(indexCols, cm.Target)
		}

		t.Columns = append(t.Columns, col)
	}

	for _, con := range src.Constraints {
		if con.Type != core.ConstraintForeignKey {
			continue
		}
		targetRefTable, ok := targetNameOf[con.ReferencedTable]
		if !ok {
			// Referenced table isn't part of this migration batch; the FK
			// can't be recreated against it and is dropped with a note.
			continue
		}
		if len(con.Columns) != 1 || len(con.ReferencedColumns) != 1 {
			// Multi-column FKs aren't expressible via the column-level
			// shortcut; skip rather than guess at a synthesized Constraint.
			continue
		}
		targetCol := findColumnByName(t, colTargetName[con.Columns[0]])
		if targetCol == nil {
			continue
		}
		targetCol.References = fmt.Sprintf("%s.%s", targetRefTable, con.ReferencedColumns[0])
		targetCol.RefOnDelete = con.OnDelete
		targetCol.RefOnUpdate = con.OnUpdate
	}

	if len(indexCols) > 0 {
		sort.Strings(indexCols)
		idx := &core.Index{
			Name: fmt.Sprintf("idx_%s_%s", t.Name, indexCols[0]),
			Type: core.IndexTypeBTree,
		}
		for _, c := range indexCols {
			idx.Columns = append(idx.Columns, core.ColumnIndex{Name: c})
		}
		t.Indexes = append(t.Indexes, idx)
	}

	return t, nil
}

func annotatedComment(sourceComment, warning string) string {
	if warning == "" {
		return sourceComment
	}
	note := "lossy mapping: " + warning
	if sourceComment == "" {
		return note
	}
	return sourceComment + "; " + note
}

func findColumnByName(t *core.Table, name string) *core.Column {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func foreignKeysOf(t *core.Table) []*core.Constraint {
	var fks []*core.Constraint
	for _, c := range t.Constraints {
		if c.Type == core.ConstraintForeignKey {
			fks = append(fks, c)
		}
	}
	return fks
}

func dialectPtr(d core.Dialect) *core.Dialect { return &d }
