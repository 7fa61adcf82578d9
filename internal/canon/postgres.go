package canon

import (
	"strings"

	"dbxmigrate/internal/core"
)

func init() {
	// PostgreSQL is a source-only engine in this pipeline; only ToCanonical
	// is registered. FromCanonical/grammar are left unset so FromCanonical
	// falls back to its "no mapping registered" TEXT default if ever misused.
	RegisterEngine(core.DialectPostgreSQL, postgresToCanonical, nil, nil)
}

func postgresToCanonical(raw string) (core.Canonical, core.CanonicalParams, string) {
	base := baseType(raw)
	switch base {
	case "SMALLINT", "INT2", "SMALLSERIAL":
		return core.CanonicalInt2, core.CanonicalParams{}, ""
	case "INTEGER", "INT", "INT4", "SERIAL":
		return core.CanonicalInt4, core.CanonicalParams{}, ""
	case "BIGINT", "INT8", "BIGSERIAL":
		return core.CanonicalInt8, core.CanonicalParams{}, ""
	case "REAL", "FLOAT4":
		return core.CanonicalFloat4, core.CanonicalParams{}, ""
	case "DOUBLE PRECISION", "FLOAT8":
		return core.CanonicalFloat8, core.CanonicalParams{}, ""
	case "NUMERIC", "DECIMAL":
		p, s := precisionScaleParams(raw)
		return core.CanonicalDecimal, core.CanonicalParams{Precision: p, Scale: s}, ""
	case "BOOLEAN", "BOOL":
		return core.CanonicalBool, core.CanonicalParams{}, ""
	case "CHARACTER VARYING", "VARCHAR", "CHARACTER", "CHAR":
		return core.CanonicalText, core.CanonicalParams{Length: lengthParam(raw)}, ""
	case "TEXT", "CITEXT":
		return core.CanonicalText, core.CanonicalParams{}, ""
	case "BYTEA":
		return core.CanonicalBlob, core.CanonicalParams{}, ""
	case "DATE":
		return core.CanonicalDate, core.CanonicalParams{}, ""
	case "TIME", "TIME WITHOUT TIME ZONE":
		return core.CanonicalTime, core.CanonicalParams{}, ""
	case "TIME WITH TIME ZONE", "TIMETZ":
		return core.CanonicalTime, core.CanonicalParams{}, "PostgreSQL TIME WITH TIME ZONE has no MySQL equivalent; zone offset is dropped"
	case "TIMESTAMP", "TIMESTAMP WITHOUT TIME ZONE":
		return core.CanonicalDatetime, core.CanonicalParams{}, ""
	case "TIMESTAMP WITH TIME ZONE", "TIMESTAMPTZ":
		return core.CanonicalDatetimeTZ, core.CanonicalParams{}, ""
	case "JSON", "JSONB":
		return core.CanonicalJSON, core.CanonicalParams{}, ""
	case "UUID":
		return core.CanonicalUUID, core.CanonicalParams{}, ""
	default:
		if strings.HasPrefix(base, "ENUM") {
			return core.CanonicalEnum, core.CanonicalParams{}, ""
		}
		return core.CanonicalUnknown, core.CanonicalParams{}, "unrecognized PostgreSQL type " + raw + "; no canonical mapping, flagging for manual review"
	}
}
