package mysql

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"dbxmigrate/internal/connector"
)

func setupMySQLContainer(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	c, err := tcmysql.Run(ctx, "mysql:8.0",
		tcmysql.WithDatabase("testdb"),
		tcmysql.WithUsername("root"),
		tcmysql.WithPassword("testpass"),
	)
	require.NoError(t, err, "failed to start MySQL container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(c); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := c.ConnectionString(ctx, "parseTime=true")
	require.NoError(t, err, "failed to get connection string")
	return dsn
}

func TestConnectorRoundTripsSchemaAndRowsAgainstRealMySQL(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	dsn := setupMySQLContainer(t)
	ctx := context.Background()

	conn := New()
	require.NoError(t, conn.Connect(ctx, dsn))
	defer conn.Close()

	require.NoError(t, conn.ExecDDL(ctx, "CREATE TABLE customers (id BIGINT PRIMARY KEY AUTO_INCREMENT, email VARCHAR(255) NOT NULL)"))

	db, err := conn.ListTables(ctx)
	require.NoError(t, err)
	require.Len(t, db.Tables, 1)
	assert.Equal(t, "customers", db.Tables[0].Name)

	written, failures, err := conn.BulkLoad(ctx, "customers", []string{"id", "email"}, []map[string]any{
		{"id": int64(1), "email": "a@example.com"},
		{"id": int64(2), "email": "b@example.com"},
	})
	require.NoError(t, err)
	assert.Empty(t, failures)
	assert.Equal(t, 2, written)

	n, err := conn.RowCount(ctx, "customers")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	chunk, err := conn.StreamRows(ctx, connector.ChunkRequest{Table: "customers", PKColumn: "id", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, chunk.Rows, 2)
	assert.True(t, chunk.Done)

	cnt, err := conn.Aggregate(ctx, "customers", "id", "count")
	require.NoError(t, err)
	assert.Equal(t, "2", cnt)

	hashes, err := conn.SampleHash(ctx, "customers", "id", 42, 2)
	require.NoError(t, err)
	assert.NotEmpty(t, hashes)

	require.NoError(t, conn.ToggleFK(ctx, false))
	require.NoError(t, conn.ToggleFK(ctx, true))
}

func TestConnectClosesCleanlyOnBadDSN(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	conn := New()
	err := conn.Connect(context.Background(), "invalid:user@tcp(127.0.0.1:1)/nope")
	assert.Error(t, err)
	assert.NoError(t, conn.Close())
}
