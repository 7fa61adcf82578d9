package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dbxmigrate/internal/core"
)

func TestToCanonicalPostgresKnownTypes(t *testing.T) {
	c, params, warn := ToCanonical(core.DialectPostgreSQL, "VARCHAR(255)")
	assert.Equal(t, core.CanonicalText, c)
	assert.Equal(t, 255, params.Length)
	assert.Empty(t, warn)

	c, params, warn = ToCanonical(core.DialectPostgreSQL, "TIMESTAMP WITH TIME ZONE")
	assert.Equal(t, core.CanonicalDatetimeTZ, c)
	assert.Zero(t, params)
	assert.Empty(t, warn)

	c, params, warn = ToCanonical(core.DialectPostgreSQL, "NUMERIC(18,4)")
	assert.Equal(t, core.CanonicalDecimal, c)
	assert.Equal(t, 18, params.Precision)
	assert.Equal(t, 4, params.Scale)
	assert.Empty(t, warn)
}

func TestToCanonicalPostgresUnknownTypeProducesUnknownWithWarning(t *testing.T) {
	c, _, warn := ToCanonical(core.DialectPostgreSQL, "POINT")
	assert.Equal(t, core.CanonicalUnknown, c)
	assert.NotEmpty(t, warn)
}

func TestToCanonicalMSSQLUnknownTypeProducesUnknownWithWarning(t *testing.T) {
	c, _, warn := ToCanonical(core.DialectMSSQL, "GEOGRAPHY")
	assert.Equal(t, core.CanonicalUnknown, c)
	assert.NotEmpty(t, warn)
}

func TestToCanonicalMySQLUnknownTypeProducesUnknownWithWarning(t *testing.T) {
	c, _, warn := ToCanonical(core.DialectMySQL, "GEOMETRY")
	assert.Equal(t, core.CanonicalUnknown, c)
	assert.NotEmpty(t, warn)
}

func TestToCanonicalUnregisteredDialectReturnsUnknown(t *testing.T) {
	c, params, warn := ToCanonical(core.Dialect("nonexistent"), "whatever")
	assert.Equal(t, core.CanonicalUnknown, c)
	assert.Zero(t, params)
	assert.NotEmpty(t, warn)
}

func TestFromCanonicalMySQLRoundTrip(t *testing.T) {
	target, warn := FromCanonical(core.DialectMySQL, core.CanonicalInt8, core.CanonicalParams{}, nil)
	assert.Equal(t, "BIGINT", target)
	assert.Empty(t, warn)
}

func TestFromCanonicalMySQLPreservesVarcharLength(t *testing.T) {
	target, warn := FromCanonical(core.DialectMySQL, core.CanonicalText, core.CanonicalParams{Length: 50}, nil)
	assert.Equal(t, "VARCHAR(50)", target)
	assert.Empty(t, warn)
}

func TestFromCanonicalMySQLMissingLengthDefaultsWithWarning(t *testing.T) {
	target, warn := FromCanonical(core.DialectMySQL, core.CanonicalText, core.CanonicalParams{}, nil)
	assert.Equal(t, "VARCHAR(255)", target)
	assert.NotEmpty(t, warn)
}

func TestFromCanonicalMySQLPreservesDecimalPrecisionAndScale(t *testing.T) {
	target, warn := FromCanonical(core.DialectMySQL, core.CanonicalDecimal, core.CanonicalParams{Precision: 18, Scale: 4}, nil)
	assert.Equal(t, "DECIMAL(18,4)", target)
	assert.Empty(t, warn)
}

func TestFromCanonicalMySQLUnknownFallsBackToLongtextWithWarning(t *testing.T) {
	target, warn := FromCanonical(core.DialectMySQL, core.CanonicalUnknown, core.CanonicalParams{}, nil)
	assert.Equal(t, "LONGTEXT", target)
	assert.NotEmpty(t, warn)
}

func TestCanonicalRoundTripPreservesVarcharLength(t *testing.T) {
	c, params, warn := ToCanonical(core.DialectPostgreSQL, "VARCHAR(50)")
	assert.Empty(t, warn)
	target, warn := FromCanonical(core.DialectMySQL, c, params, nil)
	assert.Equal(t, "VARCHAR(50)", target)
	assert.Empty(t, warn)
}

func TestCanonicalRoundTripPreservesDecimalPrecisionAndScale(t *testing.T) {
	c, params, warn := ToCanonical(core.DialectMSSQL, "DECIMAL(18,4)")
	assert.Empty(t, warn)
	target, warn := FromCanonical(core.DialectMySQL, c, params, nil)
	assert.Equal(t, "DECIMAL(18,4)", target)
	assert.Empty(t, warn)
}

func TestBaseTypeStripsLengthAndUnsignedModifiers(t *testing.T) {
	assert.Equal(t, "DECIMAL", baseType("DECIMAL(10,2)"))
	assert.Equal(t, "INT", baseType("INT UNSIGNED"))
}

func TestParamsOfExtractsCommaSeparatedArgs(t *testing.T) {
	assert.Equal(t, []string{"10", "2"}, paramsOf("DECIMAL(10,2)"))
	assert.Nil(t, paramsOf("TEXT"))
}

func TestLengthParamExtractsSingleArg(t *testing.T) {
	assert.Equal(t, 255, lengthParam("VARCHAR(255)"))
	assert.Equal(t, 0, lengthParam("TEXT"))
	assert.Equal(t, 0, lengthParam("DECIMAL(10,2)"))
}

func TestPrecisionScaleParamsExtractsTwoArgs(t *testing.T) {
	p, s := precisionScaleParams("DECIMAL(18,4)")
	assert.Equal(t, 18, p)
	assert.Equal(t, 4, s)

	p, s = precisionScaleParams("VARCHAR(255)")
	assert.Zero(t, p)
	assert.Zero(t, s)
}
