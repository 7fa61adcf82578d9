package canon

import (
	"dbxmigrate/internal/core"
)

func init() {
	// MSSQL is a source-only engine in this pipeline; only ToCanonical is
	// registered, mirroring the PostgreSQL engine's registration.
	RegisterEngine(core.DialectMSSQL, mssqlToCanonical, nil, nil)
}

func mssqlToCanonical(raw string) (core.Canonical, core.CanonicalParams, string) {
	base := baseType(raw)
	switch base {
	case "TINYINT":
		return core.CanonicalInt1, core.CanonicalParams{}, ""
	case "SMALLINT":
		return core.CanonicalInt2, core.CanonicalParams{}, ""
	case "INT":
		return core.CanonicalInt4, core.CanonicalParams{}, ""
	case "BIGINT":
		return core.CanonicalInt8, core.CanonicalParams{}, ""
	case "REAL":
		return core.CanonicalFloat4, core.CanonicalParams{}, ""
	case "FLOAT":
		return core.CanonicalFloat8, core.CanonicalParams{}, ""
	case "DECIMAL", "NUMERIC":
		p, s := precisionScaleParams(raw)
		return core.CanonicalDecimal, core.CanonicalParams{Precision: p, Scale: s}, ""
	case "MONEY", "SMALLMONEY":
		return core.CanonicalDecimal, core.CanonicalParams{}, ""
	case "BIT":
		return core.CanonicalBool, core.CanonicalParams{}, ""
	case "CHAR", "VARCHAR":
		return core.CanonicalText, core.CanonicalParams{Length: lengthParam(raw)}, ""
	case "TEXT":
		return core.CanonicalText, core.CanonicalParams{}, ""
	case "NCHAR", "NVARCHAR":
		return core.CanonicalNText, core.CanonicalParams{Length: lengthParam(raw)}, ""
	case "NTEXT":
		return core.CanonicalNText, core.CanonicalParams{}, ""
	case "BINARY", "VARBINARY", "IMAGE":
		return core.CanonicalBlob, core.CanonicalParams{}, ""
	case "ROWVERSION", "TIMESTAMP":
		return core.CanonicalBinaryFixed, core.CanonicalParams{}, "MSSQL row-version column has no semantic target equivalent; copied as opaque bytes"
	case "DATE":
		return core.CanonicalDate, core.CanonicalParams{}, ""
	case "TIME":
		return core.CanonicalTime, core.CanonicalParams{}, ""
	case "DATETIME", "DATETIME2", "SMALLDATETIME":
		return core.CanonicalDatetime, core.CanonicalParams{}, ""
	case "DATETIMEOFFSET":
		return core.CanonicalDatetimeTZ, core.CanonicalParams{}, ""
	case "UNIQUEIDENTIFIER":
		return core.CanonicalUUID, core.CanonicalParams{}, ""
	case "XML":
		return core.CanonicalText, core.CanonicalParams{}, "MSSQL XML column mapped to TEXT; structure is not preserved"
	default:
		return core.CanonicalUnknown, core.CanonicalParams{}, "unrecognized MSSQL type " + raw + "; no canonical mapping, flagging for manual review"
	}
}
