// Package postgres implements the connector.Connector capability set for
// PostgreSQL as a migration source, built on pgx/v5's pool and its
// pgx.Rows-to-map scanning (no database/sql wrapper, unlike the MySQL
// connector, since pgx exposes richer native type decoding directly).
package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dbxmigrate/internal/canon"
	"dbxmigrate/internal/connector"
	"dbxmigrate/internal/core"
)

func init() {
	connector.Register(core.DialectPostgreSQL, New)
}

type Connector struct {
	pool *pgxpool.Pool
}

func New() connector.Connector {
	return &Connector{}
}

func (c *Connector) Connect(ctx context.Context, dsn string) error {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("postgres connector: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("postgres connector: ping: %w", err)
	}
	c.pool = pool
	return nil
}

func (c *Connector) Close() error {
	if c.pool != nil {
		c.pool.Close()
	}
	return nil
}

func (c *Connector) ListTables(ctx context.Context) (*core.Database, error) {
	d := core.DialectPostgreSQL
	db := &core.Database{Dialect: &d}

	rows, err := c.pool.Query(ctx, `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_schema NOT IN ('pg_catalog', 'information_schema') AND table_type = 'BASE TABLE'
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres connector: list tables: %w", err)
	}

	type tableRef struct{ schema, name string }
	var refs []tableRef
	for rows.Next() {
		var schema, name string
		if err := rows.Scan(&schema, &name); err != nil {
			rows.Close()
			return nil, err
		}
		refs = append(refs, tableRef{schema, name})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, ref := range refs {
		t := &core.Table{Name: ref.name, Schema: ref.schema}
		if err := c.introspectColumns(ctx, t); err != nil {
			return nil, fmt.Errorf("postgres connector: columns %s.%s: %w", ref.schema, ref.name, err)
		}
		if err := c.introspectIndexes(ctx, t); err != nil {
			return nil, fmt.Errorf("postgres connector: indexes %s.%s: %w", ref.schema, ref.name, err)
		}
		db.Tables = append(db.Tables, t)
	}
	return db, nil
}

func (c *Connector) introspectColumns(ctx context.Context, t *core.Table) error {
	rows, err := c.pool.Query(ctx, `
		SELECT column_name, data_type, udt_name, is_nullable, column_default,
		       character_maximum_length, numeric_precision, numeric_scale
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`, t.Schema, t.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name, dataType, udtName, nullable string
		var def *string
		var charLen, numPrecision, numScale *int
		if err := rows.Scan(&name, &dataType, &udtName, &nullable, &def, &charLen, &numPrecision, &numScale); err != nil {
			return err
		}
		rawType := dataType
		if dataType == "USER-DEFINED" || dataType == "ARRAY" {
			rawType = udtName
		}
		rawType = appendTypeParams(rawType, charLen, numPrecision, numScale)

		canonical, params, warning := canon.ToCanonical(core.DialectPostgreSQL, rawType)
		col := &core.Column{
			Name:            name,
			RawType:         rawType,
			Type:            core.NormalizeDataType(rawType),
			Nullable:        nullable == "YES",
			DefaultValue:    def,
			CanonicalType:   canonical,
			CanonicalParams: params,
		}
		if warning != "" {
			col.Comment = warning
		}
		t.Columns = append(t.Columns, col)
	}
	return rows.Err()
}

// appendTypeParams reconstructs the parenthesized length/precision/scale
// suffix information_schema.columns.data_type strips off, so downstream
// canon.ToCanonical can extract it via the same paren-parsing it uses for
// every other engine.
func appendTypeParams(rawType string, charLen, numPrecision, numScale *int) string {
	if charLen != nil {
		return fmt.Sprintf("%s(%d)", rawType, *charLen)
	}
	if numPrecision != nil && numScale != nil {
		return fmt.Sprintf("%s(%d,%d)", rawType, *numPrecision, *numScale)
	}
	return rawType
}

func (c *Connector) introspectIndexes(ctx context.Context, t *core.Table) error {
	rows, err := c.pool.Query(ctx, `
		SELECT i.relname, ix.indisunique, ix.indisprimary,
		       array_to_string(array_agg(a.attname ORDER BY x.ordinality), ',')
		FROM pg_index ix
		JOIN pg_class t2 ON t2.oid = ix.indrelid
		JOIN pg_namespace n ON n.oid = t2.relnamespace
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN unnest(ix.indkey) WITH ORDINALITY AS x(attnum, ordinality) ON true
		JOIN pg_attribute a ON a.attrelid = t2.oid AND a.attnum = x.attnum
		WHERE n.nspname = $1 AND t2.relname = $2
		GROUP BY i.relname, ix.indisunique, ix.indisprimary
	`, t.Schema, t.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var unique, isPrimary bool
		var cols string
		if err := rows.Scan(&name, &unique, &isPrimary, &cols); err != nil {
			return err
		}
		if isPrimary {
			for _, colName := range strings.Split(cols, ",") {
				if fc := t.FindColumn(colName); fc != nil {
					fc.PrimaryKey = true
				}
			}
			continue
		}
		idx := &core.Index{Name: name, Unique: unique, Type: core.IndexTypeBTree}
		for _, colName := range strings.Split(cols, ",") {
			idx.Columns = append(idx.Columns, core.ColumnIndex{Name: colName})
		}
		t.Indexes = append(t.Indexes, idx)
	}
	return rows.Err()
}

func (c *Connector) RowCount(ctx context.Context, table string) (int64, error) {
	var n int64
	err := c.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, quoteIdent(table))).Scan(&n)
	return n, err
}

func (c *Connector) StreamRows(ctx context.Context, req connector.ChunkRequest) (*connector.ChunkResult, error) {
	cols := "*"
	if len(req.Columns) > 0 {
		quoted := make([]string, len(req.Columns))
		for i, col := range req.Columns {
			quoted[i] = quoteIdent(col)
		}
		cols = strings.Join(quoted, ", ")
	}

	var query string
	var args []any
	if req.PKColumn != "" {
		if req.After == nil {
			query = fmt.Sprintf("SELECT %s FROM %s ORDER BY %s LIMIT $1", cols, quoteIdent(req.Table), quoteIdent(req.PKColumn))
			args = []any{req.Limit}
		} else {
			query = fmt.Sprintf("SELECT %s FROM %s WHERE %s > $1 ORDER BY %s LIMIT $2", cols, quoteIdent(req.Table), quoteIdent(req.PKColumn), quoteIdent(req.PKColumn))
			args = []any{req.After, req.Limit}
		}
	} else {
		query = fmt.Sprintf("SELECT %s FROM %s LIMIT $1 OFFSET $2", cols, quoteIdent(req.Table))
		args = []any{req.Limit, req.Offset}
	}

	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres connector: stream rows %s: %w", req.Table, err)
	}
	defer rows.Close()

	out, err := mapRows(rows)
	if err != nil {
		return nil, err
	}

	result := &connector.ChunkResult{Rows: out}
	if len(out) < req.Limit {
		result.Done = true
	}
	if req.PKColumn != "" && len(out) > 0 {
		result.NextAfter = out[len(out)-1][req.PKColumn]
	} else {
		result.NextOffset = req.Offset + int64(len(out))
	}
	return result, nil
}

func mapRows(rows pgx.Rows) ([]map[string]any, error) {
	fields := rows.FieldDescriptions()
	var out []map[string]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		m := make(map[string]any, len(fields))
		for i, f := range fields {
			m[string(f.Name)] = vals[i]
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (c *Connector) BulkLoad(ctx context.Context, table string, columns []string, rows []map[string]any) (int, []connector.RowError, error) {
	written := 0
	var failures []connector.RowError
	for _, row := range rows {
		quoted := make([]string, len(columns))
		placeholders := make([]string, len(columns))
		args := make([]any, len(columns))
		for i, col := range columns {
			quoted[i] = quoteIdent(col)
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args[i] = row[col]
		}
		stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quoteIdent(table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
		if _, err := c.pool.Exec(ctx, stmt, args...); err != nil {
			key := ""
			if len(columns) > 0 {
				key = fmt.Sprintf("%v", row[columns[0]])
			}
			failures = append(failures, connector.RowError{RowKey: key, Row: row, Err: err})
			continue
		}
		written++
	}
	return written, failures, nil
}

func (c *Connector) ExecDDL(ctx context.Context, statement string) error {
	_, err := c.pool.Exec(ctx, statement)
	return err
}

func (c *Connector) Aggregate(ctx context.Context, table, column, fn string) (string, error) {
	query := fmt.Sprintf("SELECT %s(%s) FROM %s", validAggFunc(fn), quoteIdent(column), quoteIdent(table))
	var result *string
	err := c.pool.QueryRow(ctx, query).Scan(&result)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", nil
	}
	return *result, nil
}

func (c *Connector) SampleHash(ctx context.Context, table, pkColumn string, seed int64, sampleSize int) (map[string]string, error) {
	query := fmt.Sprintf("SELECT * FROM %s TABLESAMPLE BERNOULLI(100) REPEATABLE (%d) LIMIT $1", quoteIdent(table), seed)
	rows, err := c.pool.Query(ctx, query, sampleSize)
	if err != nil {
		return nil, fmt.Errorf("postgres connector: sample hash %s: %w", table, err)
	}
	defer rows.Close()

	sampled, err := mapRows(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(sampled))
	for _, m := range sampled {
		h := sha256.Sum256([]byte(fmt.Sprintf("%v", m)))
		out[fmt.Sprintf("%v", m[pkColumn])] = hex.EncodeToString(h[:])
	}
	return out, nil
}

func (c *Connector) ToggleFK(ctx context.Context, enabled bool) error {
	mode := "IMMEDIATE"
	if !enabled {
		mode = "DEFERRED"
	}
	_, err := c.pool.Exec(ctx, fmt.Sprintf("SET CONSTRAINTS ALL %s", mode))
	return err
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func validAggFunc(fn string) string {
	switch strings.ToUpper(fn) {
	case "SUM", "AVG", "MIN", "MAX", "COUNT":
		return strings.ToUpper(fn)
	default:
		return "COUNT"
	}
}
