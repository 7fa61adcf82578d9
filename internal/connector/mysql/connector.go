// Package mysql implements the connector.Connector capability set for
// MySQL, MariaDB, and TiDB (they share a wire protocol and information_schema
// shape, so one implementation covers all three, distinguished only by
// detectDialect's SHOW VARIABLES probe).
package mysql

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"dbxmigrate/internal/canon"
	"dbxmigrate/internal/connector"
	"dbxmigrate/internal/core"
)

func init() {
	connector.Register(core.DialectMySQL, New)
	connector.Register(core.DialectMariaDB, New)
	connector.Register(core.DialectTiDB, New)
}

// introspectCtx bundles the context and pool that the table/column/index
// introspection helpers operate on.
type introspectCtx struct {
	ctx context.Context
	db  *sql.DB
}

type Connector struct {
	db  *sql.DB
	sqx *sqlx.DB
}

func New() connector.Connector {
	return &Connector{}
}

func (c *Connector) Connect(ctx context.Context, dsn string) error {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("mysql connector: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("mysql connector: ping: %w", err)
	}
	c.db = db
	c.sqx = sqlx.NewDb(db, "mysql")
	return nil
}

func (c *Connector) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *Connector) ListTables(ctx context.Context) (*core.Database, error) {
	dialect, version, err := detectDialect(ctx, c.db)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: detect dialect: %w", err)
	}

	db := &core.Database{Dialect: &dialect}
	ic := &introspectCtx{ctx: ctx, db: c.db}
	if err := introspectTables(ic, db); err != nil {
		return nil, fmt.Errorf("mysql connector: introspect tables (engine version %s): %w", version, err)
	}

	for _, t := range db.Tables {
		for _, col := range t.Columns {
			canonical, params, warning := canon.ToCanonical(dialect, col.RawType)
			col.CanonicalType = canonical
			col.CanonicalParams = params
			if warning != "" {
				col.Comment = strings.TrimSpace(col.Comment + " [" + warning + "]")
			}
		}
	}

	return db, nil
}

func (c *Connector) RowCount(ctx context.Context, table string) (int64, error) {
	var n int64
	row := c.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM `%s`", escapeIdent(table)))
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("mysql connector: row count %s: %w", table, err)
	}
	return n, nil
}

func (c *Connector) StreamRows(ctx context.Context, req connector.ChunkRequest) (*connector.ChunkResult, error) {
	cols := "*"
	if len(req.Columns) > 0 {
		quoted := make([]string, len(req.Columns))
		for i, col := range req.Columns {
			quoted[i] = "`" + escapeIdent(col) + "`"
		}
		cols = strings.Join(quoted, ", ")
	}

	var query string
	var args []any
	if req.PKColumn != "" {
		if req.After == nil {
			query = fmt.Sprintf("SELECT %s FROM `%s` ORDER BY `%s` LIMIT ?", cols, escapeIdent(req.Table), escapeIdent(req.PKColumn))
			args = []any{req.Limit}
		} else {
			query = fmt.Sprintf("SELECT %s FROM `%s` WHERE `%s` > ? ORDER BY `%s` LIMIT ?", cols, escapeIdent(req.Table), escapeIdent(req.PKColumn), escapeIdent(req.PKColumn))
			args = []any{req.After, req.Limit}
		}
	} else {
		query = fmt.Sprintf("SELECT %s FROM `%s` LIMIT ? OFFSET ?", cols, escapeIdent(req.Table))
		args = []any{req.Limit, req.Offset}
	}

	rows, err := c.sqx.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: stream rows %s: %w", req.Table, err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		m := make(map[string]any)
		if err := rows.MapScan(m); err != nil {
			return nil, fmt.Errorf("mysql connector: map scan %s: %w", req.Table, err)
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
	if len(rows) == 0 {
		return 0, nil, nil
	}

	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = "`" + escapeIdent(col) + "`"
		placeholders[i] = "?"
	}
	stmt := fmt.Sprintf("INSERT INTO `%s` (%s) VALUES (%s)", escapeIdent(table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))

	written := 0
	var failures []connector.RowError
	for _, row := range rows {
		args := make([]any, len(columns))
		for i, col := range columns {
			args[i] = row[col]
		}
		if _, err := c.db.ExecContext(ctx, stmt, args...); err != nil {
			failures = append(failures, connector.RowError{RowKey: rowKey(row, columns), Row: row, Err: err})
			continue
		}
		written++
	}
	return written, failures, nil
}

func (c *Connector) ExecDDL(ctx context.Context, statement string) error {
	if _, err := c.db.ExecContext(ctx, statement); err != nil {
		return fmt.Errorf("mysql connector: exec ddl: %w", err)
	}
	return nil
}

func (c *Connector) Aggregate(ctx context.Context, table, column, fn string) (string, error) {
	query := fmt.Sprintf("SELECT %s(`%s`) FROM `%s`", validAggFunc(fn), escapeIdent(column), escapeIdent(table))
	var result sql.NullString
	if err := c.db.QueryRowContext(ctx, query).Scan(&result); err != nil {
		return "", fmt.Errorf("mysql connector: aggregate %s(%s) on %s: %w", fn, column, table, err)
	}
	return result.String, nil
}

func (c *Connector) SampleHash(ctx context.Context, table, pkColumn string, seed int64, sampleSize int) (map[string]string, error) {
	query := fmt.Sprintf("SELECT * FROM `%s` ORDER BY RAND(?) LIMIT ?", escapeIdent(table))
	rows, err := c.sqx.QueryxContext(ctx, query, seed, sampleSize)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: sample hash %s: %w", table, err)
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
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Connector) ToggleFK(ctx context.Context, enabled bool) error {
	v := "0"
	if enabled {
		v = "1"
	}
	_, err := c.db.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = "+v)
	return err
}

func escapeIdent(s string) string {
	return strings.ReplaceAll(s, "`", "``")
}

func rowKey(row map[string]any, columns []string) string {
	if len(columns) == 0 {
		return ""
	}
	return fmt.Sprintf("%v", row[columns[0]])
}

func validAggFunc(fn string) string {
	switch strings.ToUpper(fn) {
	case "SUM", "AVG", "MIN", "MAX", "COUNT":
		return strings.ToUpper(fn)
	default:
		return "COUNT"
	}
}
