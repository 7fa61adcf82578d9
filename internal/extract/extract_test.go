package extract

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dbxmigrate/internal/connector"
	"dbxmigrate/internal/core"
)

// stubConnector implements connector.Connector, returning a fixed table list
// and failing RowCount for one named table.
type stubConnector struct {
	db          *core.Database
	failRowCnt  string
	rowCountErr error
}

func (s *stubConnector) Connect(context.Context, string) error { return nil }
func (s *stubConnector) Close() error                           { return nil }
func (s *stubConnector) ListTables(context.Context) (*core.Database, error) {
	return s.db, nil
}
func (s *stubConnector) RowCount(_ context.Context, table string) (int64, error) {
	if table == s.failRowCnt {
		return 0, s.rowCountErr
	}
	return 42, nil
}
func (s *stubConnector) StreamRows(context.Context, connector.ChunkRequest) (*connector.ChunkResult, error) {
	return &connector.ChunkResult{Done: true}, nil
}
func (s *stubConnector) BulkLoad(context.Context, string, []string, []map[string]any) (int, []connector.RowError, error) {
	return 0, nil, nil
}
func (s *stubConnector) ExecDDL(context.Context, string) error { return nil }
func (s *stubConnector) Aggregate(context.Context, string, string, string) (string, error) {
	return "", nil
}
func (s *stubConnector) SampleHash(context.Context, string, string, int64, int) (map[string]string, error) {
	return nil, nil
}
func (s *stubConnector) ToggleFK(context.Context, bool) error { return nil }

func twoTableDatabase() *core.Database {
	d := core.DialectPostgreSQL
	return &core.Database{
		Name:   "app",
		Dialect: &d,
		Tables: []*core.Table{
			{Name: "customers", Columns: []*core.Column{{Name: "id", RawType: "integer"}}},
			{Name: "orders", Columns: []*core.Column{{Name: "id", RawType: "integer"}}},
		},
	}
}

func TestRunWritesPerTableAndSummaryArtifacts(t *testing.T) {
	dir := t.TempDir()
	conn := &stubConnector{db: twoTableDatabase()}

	ex := New(conn, zap.NewNop())
	art, err := ex.Run(context.Background(), "run-1", core.DialectPostgreSQL, dir)
	require.NoError(t, err)
	assert.Equal(t, "run-1", art.RunID)
	assert.Empty(t, art.Errors)

	for _, name := range []string{"customers", "orders"} {
		b, err := os.ReadFile(filepath.Join(dir, name+".json"))
		require.NoError(t, err)
		var tbl core.Table
		require.NoError(t, json.Unmarshal(b, &tbl))
		assert.Equal(t, int64(42), tbl.RowCountEstimate)
	}

	_, err = os.Stat(filepath.Join(dir, "_artifact.json"))
	assert.NoError(t, err)
}

func TestRunIsolatesPerTableRowCountFailure(t *testing.T) {
	dir := t.TempDir()
	conn := &stubConnector{db: twoTableDatabase(), failRowCnt: "orders", rowCountErr: errors.New("permission denied")}

	ex := New(conn, zap.NewNop())
	art, err := ex.Run(context.Background(), "run-1", core.DialectPostgreSQL, dir)
	require.NoError(t, err)

	require.Len(t, art.Errors, 1)
	assert.Equal(t, "orders", art.Errors[0].Table)
	assert.Equal(t, "row_count", art.Errors[0].Stage)

	_, err = os.Stat(filepath.Join(dir, "customers.json"))
	assert.NoError(t, err, "unaffected table still written")
	_, err = os.Stat(filepath.Join(dir, "orders.json"))
	assert.Error(t, err, "failed table is not written")
}

func TestRunReturnsSchemaErrorWhenListTablesFails(t *testing.T) {
	conn := &stubConnector{}
	// ListTables returns (nil, nil) by default in this stub; simulate a
	// failure by wrapping it directly instead.
	_ = conn

	failing := &errorListConnector{err: errors.New("connection reset")}
	ex := New(failing, zap.NewNop())
	_, err := ex.Run(context.Background(), "run-1", core.DialectPostgreSQL, t.TempDir())
	var schemaErr *core.SchemaError
	require.ErrorAs(t, err, &schemaErr)
}

type errorListConnector struct{ err error }

func (e *errorListConnector) Connect(context.Context, string) error { return nil }
func (e *errorListConnector) Close() error                          { return nil }
func (e *errorListConnector) ListTables(context.Context) (*core.Database, error) {
	return nil, e.err
}
func (e *errorListConnector) RowCount(context.Context, string) (int64, error) { return 0, nil }
func (e *errorListConnector) StreamRows(context.Context, connector.ChunkRequest) (*connector.ChunkResult, error) {
	return nil, nil
}
func (e *errorListConnector) BulkLoad(context.Context, string, []string, []map[string]any) (int, []connector.RowError, error) {
	return 0, nil, nil
}
func (e *errorListConnector) ExecDDL(context.Context, string) error { return nil }
func (e *errorListConnector) Aggregate(context.Context, string, string, string) (string, error) {
	return "", nil
}
func (e *errorListConnector) SampleHash(context.Context, string, string, int64, int) (map[string]string, error) {
	return nil, nil
}
func (e *errorListConnector) ToggleFK(context.Context, bool) error { return nil }
