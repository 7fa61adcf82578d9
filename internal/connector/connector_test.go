package connector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbxmigrate/internal/core"
)

type nopConnector struct{}

func (nopConnector) Connect(context.Context, string) error { return nil }
func (nopConnector) Close() error                           { return nil }
func (nopConnector) ListTables(context.Context) (*core.Database, error) {
	return nil, nil
}
func (nopConnector) RowCount(context.Context, string) (int64, error) { return 0, nil }
func (nopConnector) StreamRows(context.Context, ChunkRequest) (*ChunkResult, error) {
	return nil, nil
}
func (nopConnector) BulkLoad(context.Context, string, []string, []map[string]any) (int, []RowError, error) {
	return 0, nil, nil
}
func (nopConnector) ExecDDL(context.Context, string) error { return nil }
func (nopConnector) Aggregate(context.Context, string, string, string) (string, error) {
	return "", nil
}
func (nopConnector) SampleHash(context.Context, string, string, int64, int) (map[string]string, error) {
	return nil, nil
}
func (nopConnector) ToggleFK(context.Context, bool) error { return nil }

func TestRegisterThenNewReturnsFactoryInstance(t *testing.T) {
	d := core.Dialect("test-dialect-register")
	Register(d, func() Connector { return nopConnector{} })

	c, err := New(d)
	require.NoError(t, err)
	assert.IsType(t, nopConnector{}, c)
}

func TestNewReturnsErrorForUnregisteredDialect(t *testing.T) {
	_, err := New(core.Dialect("never-registered"))
	assert.Error(t, err)
}
