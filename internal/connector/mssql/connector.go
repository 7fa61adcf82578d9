// Package mssql implements the connector.Connector capability set for
// Microsoft SQL Server as a migration source. The catalog query joins
// sys.tables/sys.columns/sys.types the way
// xaas-cloud-genai-toolbox's mssql-list-tables tool does, reconstructing a
// full type string (including length/precision/scale) per column.
package mssql

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"
	"github.com/jmoiron/sqlx"

	"dbxmigrate/internal/canon"
	"dbxmigrate/internal/connector"
	"dbxmigrate/internal/core"
)

func init() {
	connector.Register(core.DialectMSSQL, New)
}

type Connector struct {
	db  *sql.DB
	sqx *sqlx.DB
}

func New() connector.Connector {
	return &Connector{}
}

func (c *Connector) Connect(ctx context.Context, dsn string) error {
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return fmt.Errorf("mssql connector: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("mssql connector: ping: %w", err)
	}
	c.db = db
	c.sqx = sqlx.NewDb(db, "sqlserver")
	return nil
}

func (c *Connector) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

const columnsQuery = `
SELECT
	s.name AS schema_name,
	t.name AS table_name,
	c.name AS column_name,
	CONCAT(
		UPPER(ty.name),
		CASE WHEN ty.name IN ('varchar','char','varbinary','binary','nvarchar','nchar')
			THEN CONCAT('(', IIF(c.max_length = -1, 'MAX', CAST(
				IIF(ty.name IN ('nvarchar','nchar'), c.max_length / 2, c.max_length) AS VARCHAR(10))), ')')
		WHEN ty.name IN ('decimal','numeric')
			THEN CONCAT('(', c.precision, ',', c.scale, ')')
		ELSE ''
		END
	) AS full_type,
	c.is_nullable,
	c.is_identity,
	ep.value AS column_comment
FROM sys.tables t
JOIN sys.schemas s ON s.schema_id = t.schema_id
JOIN sys.columns c ON c.object_id = t.object_id
JOIN sys.types ty ON ty.user_type_id = c.user_type_id
LEFT JOIN sys.extended_properties ep
	ON ep.major_id = t.object_id AND ep.minor_id = c.column_id AND ep.name = 'MS_Description'
WHERE t.is_ms_shipped = 0
ORDER BY s.name, t.name, c.column_id
`

func (c *Connector) ListTables(ctx context.Context) (*core.Database, error) {
	d := core.DialectMSSQL
	db := &core.Database{Dialect: &d}

	rows, err := c.sqx.QueryxContext(ctx, columnsQuery)
	if err != nil {
		return nil, fmt.Errorf("mssql connector: list tables: %w", err)
	}
	defer rows.Close()

	tables := make(map[string]*core.Table)
	var order []string
	for rows.Next() {
		var schemaName, tableName, columnName, fullType string
		var nullable, identity bool
		var comment sql.NullString
		if err := rows.Scan(&schemaName, &tableName, &columnName, &fullType, &nullable, &identity, &comment); err != nil {
			return nil, err
		}

		key := schemaName + "." + tableName
		t, ok := tables[key]
		if !ok {
			t = &core.Table{Name: tableName, Schema: schemaName}
			tables[key] = t
			order = append(order, key)
		}

		canonical, params, warning := canon.ToCanonical(core.DialectMSSQL, fullType)
		col := &core.Column{
			Name:            columnName,
			RawType:         fullType,
			Type:            core.NormalizeDataType(fullType),
			Nullable:        nullable,
			AutoIncrement:   identity,
			Comment:         comment.String,
			CanonicalType:   canonical,
			CanonicalParams: params,
		}
		if warning != "" {
			col.Comment = strings.TrimSpace(col.Comment + " [" + warning + "]")
		}
		t.Columns = append(t.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, key := range order {
		db.Tables = append(db.Tables, tables[key])
	}
	return db, nil
}

func (c *Connector) RowCount(ctx context.Context, table string) (int64, error) {
	var n int64
	row := c.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdent(table)))
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("mssql connector: row count %s: %w", table, err)
	}
	return n, nil
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
			query = fmt.Sprintf("SELECT TOP (@p1) %s FROM %s ORDER BY %s", cols, quoteIdent(req.Table), quoteIdent(req.PKColumn))
			args = []any{req.Limit}
		} else {
			query = fmt.Sprintf("SELECT TOP (@p2) %s FROM %s WHERE %s > @p1 ORDER BY %s", cols, quoteIdent(req.Table), quoteIdent(req.PKColumn), quoteIdent(req.PKColumn))
			args = []any{req.After, req.Limit}
		}
	} else {
		query = fmt.Sprintf("SELECT %s FROM %s ORDER BY (SELECT NULL) OFFSET @p2 ROWS FETCH NEXT @p1 ROWS ONLY", cols, quoteIdent(req.Table))
		args = []any{req.Limit, req.Offset}
	}

	rows, err := c.sqx.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("mssql connector: stream rows %s: %w", req.Table, err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		m := make(map[string]any)
		if err := rows.MapScan(m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
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

func (c *Connector) BulkLoad(ctx context.Context, table string, columns []string, rows []map[string]any) (int, []connector.RowError, error) {
	written := 0
	var failures []connector.RowError
	for _, row := range rows {
		quoted := make([]string, len(columns))
		placeholders := make([]string, len(columns))
		args := make([]any, len(columns))
		for i, col := range columns {
			quoted[i] = quoteIdent(col)
			placeholders[i] = fmt.Sprintf("@p%d", i+1)
			args[i] = row[col]
		}
		stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quoteIdent(table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
		if _, err := c.db.ExecContext(ctx, stmt, args...); err != nil {
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
	_, err := c.db.ExecContext(ctx, statement)
	return err
}

func (c *Connector) Aggregate(ctx context.Context, table, column, fn string) (string, error) {
	query := fmt.Sprintf("SELECT %s(%s) FROM %s", validAggFunc(fn), quoteIdent(column), quoteIdent(table))
	var result sql.NullString
	if err := c.db.QueryRowContext(ctx, query).Scan(&result); err != nil {
		return "", err
	}
	return result.String, nil
}

func (c *Connector) SampleHash(ctx context.Context, table, pkColumn string, seed int64, sampleSize int) (map[string]string, error) {
	query := fmt.Sprintf("SELECT TOP (@p1) * FROM %s TABLESAMPLE (%d ROWS) REPEATABLE (@p2)", quoteIdent(table), sampleSize)
	rows, err := c.sqx.QueryxContext(ctx, query, sampleSize, seed)
	if err != nil {
		return nil, fmt.Errorf("mssql connector: sample hash %s: %w", table, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		m := make(map[string]any)
		if err := rows.MapScan(m); err != nil {
			return nil, err
		}
		h := sha256.Sum256([]byte(fmt.Sprintf("%v", m)))
		out[fmt.Sprintf("%v", m[pkColumn])] = hex.EncodeToString(h[:])
	}
	return out, rows.Err()
}

func (c *Connector) ToggleFK(ctx context.Context, enabled bool) error {
	mode := "NOCHECK"
	if enabled {
		mode = "CHECK"
	}
	_, err := c.db.ExecContext(ctx, fmt.Sprintf("EXEC sp_MSforeachtable \"ALTER TABLE ? %s CONSTRAINT ALL\"", mode))
	return err
}

func quoteIdent(s string) string {
	return "[" + strings.ReplaceAll(s, "]", "]]") + "]"
}

func validAggFunc(fn string) string {
	switch strings.ToUpper(fn) {
	case "SUM", "AVG", "MIN", "MAX", "COUNT":
		return strings.ToUpper(fn)
	default:
		return "COUNT"
	}
}
