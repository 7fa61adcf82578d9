package schemagen

import (
	"fmt"
	"strconv"
	"strings"

	"dbxmigrate/internal/core"
)

// createTableStatement renders a single CREATE TABLE IF NOT EXISTS statement
// for t, including inline PRIMARY KEY / UNIQUE / CHECK constraints and
// secondary indexes. Foreign keys are rendered separately by
// foreignKeyStatement so they can be deferred until every table in the batch
// exists.
func (g *Generator) createTableStatement(t *core.Table) string {
	var lines []string
	for _, c := range t.Columns {
		lines = append(lines, "  "+columnDefinition(c))
	}
	for _, con := range t.Constraints {
		if con.Type == core.ConstraintForeignKey {
			continue
		}
		if line := constraintDefinition(con); line != "" {
			lines = append(lines, "  "+line)
		}
	}
	for _, idx := range t.Indexes {
		if line := indexDefinitionInline(idx); line != "" {
			lines = append(lines, "  "+line)
		}
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n)%s;",
		quoteIdent(t.Name), strings.Join(lines, ",\n"), tableOptionsClause(t))
}

// foreignKeyStatement renders the ALTER TABLE ... ADD CONSTRAINT ... FOREIGN
// KEY statement for one synthesized constraint.
func foreignKeyStatement(table string, con *core.Constraint) string {
	var sb strings.Builder
	sb.WriteString("ALTER TABLE ")
	sb.WriteString(quoteIdent(table))
	sb.WriteString(" ADD CONSTRAINT ")
	sb.WriteString(quoteIdent(con.Name))
	sb.WriteString(" FOREIGN KEY ")
	sb.WriteString(formatColumns(con.Columns))
	sb.WriteString(" REFERENCES ")
	sb.WriteString(quoteIdent(con.ReferencedTable))
	sb.WriteString(" ")
	sb.WriteString(formatColumns(con.ReferencedColumns))
	if del := strings.TrimSpace(string(con.OnDelete)); del != "" {
		sb.WriteString(" ON DELETE ")
		sb.WriteString(del)
	}
	if upd := strings.TrimSpace(string(con.OnUpdate)); upd != "" {
		sb.WriteString(" ON UPDATE ")
		sb.WriteString(upd)
	}
	sb.WriteString(";")
	return sb.String()
}

func columnDefinition(c *core.Column) string {
	parts := []string{quoteIdent(c.Name), c.RawType}

	if c.Nullable {
		parts = append(parts, "NULL")
	} else {
		parts = append(parts, "NOT NULL")
	}
	if c.AutoIncrement {
		parts = append(parts, "AUTO_INCREMENT")
	}
	if c.DefaultValue != nil {
		parts = append(parts, "DEFAULT", formatValue(*c.DefaultValue))
	}
	if c.OnUpdate != nil {
		parts = append(parts, "ON UPDATE", formatValue(*c.OnUpdate))
	}
	if comment := strings.TrimSpace(c.Comment); comment != "" {
		parts = append(parts, "COMMENT", quoteString(comment))
	}
	return strings.Join(parts, " ")
}

func constraintDefinition(c *core.Constraint) string {
	cols := formatColumns(c.Columns)
	switch c.Type {
	case core.ConstraintPrimaryKey:
		return fmt.Sprintf("PRIMARY KEY %s", cols)
	case core.ConstraintUnique:
		if c.Name != "" {
			return fmt.Sprintf("CONSTRAINT %s UNIQUE KEY %s", quoteIdent(c.Name), cols)
		}
		return fmt.Sprintf("UNIQUE KEY %s", cols)
	case core.ConstraintCheck:
		expr := strings.TrimSpace(c.CheckExpression)
		if expr == "" {
			return ""
		}
		if c.Name != "" {
			return fmt.Sprintf("CONSTRAINT %s CHECK (%s)", quoteIdent(c.Name), expr)
		}
		return fmt.Sprintf("CHECK (%s)", expr)
	default:
		return ""
	}
}

func indexDefinitionInline(idx *core.Index) string {
	name := strings.TrimSpace(idx.Name)
	if name == "" {
		return ""
	}
	cols := formatIndexColumns(idx.Columns)
	typ := strings.ToUpper(strings.TrimSpace(string(idx.Type)))
	switch {
	case idx.Unique:
		return fmt.Sprintf("UNIQUE KEY %s %s", quoteIdent(name), cols)
	case typ == "FULLTEXT":
		return fmt.Sprintf("FULLTEXT KEY %s %s", quoteIdent(name), cols)
	case typ == "SPATIAL":
		return fmt.Sprintf("SPATIAL KEY %s %s", quoteIdent(name), cols)
	default:
		return fmt.Sprintf("KEY %s %s", quoteIdent(name), cols)
	}
}

func tableOptionsClause(t *core.Table) string {
	var parts []string
	if o := t.Options.MySQL; o != nil {
		if o.Engine != "" {
			parts = append(parts, "ENGINE="+o.Engine)
		}
		if o.Charset != "" {
			parts = append(parts, "DEFAULT CHARSET="+o.Charset)
		}
		if o.Collate != "" {
			parts = append(parts, "COLLATE="+o.Collate)
		}
		if o.AutoIncrement != 0 {
			parts = append(parts, "AUTO_INCREMENT="+strconv.FormatUint(o.AutoIncrement, 10))
		}
	}
	if cmt := strings.TrimSpace(t.Comment); cmt != "" {
		parts = append(parts, "COMMENT="+quoteString(cmt))
	}
	if len(parts) == 0 {
		return ""
	}
	return " " + strings.Join(parts, " ")
}

func formatColumns(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
	}
	return "(" + strings.Join(quoted, ", ") + ")"
}

func formatIndexColumns(cols []core.ColumnIndex) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		s := quoteIdent(c.Name)
		if c.Length > 0 {
			s += fmt.Sprintf("(%d)", c.Length)
		}
		if c.Order == core.SortDesc {
			s += " DESC"
		}
		parts[i] = s
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func quoteIdent(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "`", "``")
	return "`" + name + "`"
}

func quoteString(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "'", "\\'")
	return "'" + value + "'"
}

// looksNumeric reports whether value can be emitted as a bare DEFAULT literal
// rather than a quoted string, matching MySQL's own numeric-literal grammar
// for DEFAULT clauses.
func looksNumeric(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func formatValue(v string) string {
	upper := strings.ToUpper(strings.TrimSpace(v))
	switch upper {
	case "CURRENT_TIMESTAMP", "NULL", "TRUE", "FALSE":
		return upper
	}
	if looksNumeric(v) {
		return v
	}
	return quoteString(v)
}
