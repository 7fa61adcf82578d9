package validate

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbxmigrate/internal/core"
)

func TestWriteReportRendersEveryResult(t *testing.T) {
	results := []core.ValidationResult{
		{Table: "orders", Level: core.ValidationL1RowCount, Passed: true, CheckedAt: time.Unix(0, 0)},
		{Table: "orders", Level: core.ValidationL2Aggregate, Passed: false, Detail: "mismatch", CheckedAt: time.Unix(0, 0)},
	}

	var buf bytes.Buffer
	err := WriteReport(&buf, "run-1", results)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "orders")
	assert.Contains(t, out, "PASS")
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "mismatch")
}

func TestAllPassedFalseOnAnyFailure(t *testing.T) {
	results := []core.ValidationResult{
		{Passed: true},
		{Passed: false},
	}
	assert.False(t, AllPassed(results))
}
