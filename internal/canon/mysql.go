package canon

import (
	"regexp"
	"strconv"
	"strings"

	"dbxmigrate/internal/core"
)

// mysqlTargetGrammar is deliberately permissive: it only guards against
// obviously malformed LLM output (empty string, stray semicolons) since the
// real syntactic gate for generated DDL is schemagen's tidb parser pass.
var mysqlTargetGrammar = regexp.MustCompile(`(?i)^[A-Z][A-Z0-9_]*(\s*\([^;]*\))?(\s+(UNSIGNED|ZEROFILL))*$`)

func init() {
	RegisterEngine(core.DialectMySQL, mysqlToCanonical, mysqlFromCanonical, mysqlTargetGrammar)
	RegisterEngine(core.DialectMariaDB, mysqlToCanonical, mysqlFromCanonical, mysqlTargetGrammar)
	RegisterEngine(core.DialectTiDB, mysqlToCanonical, mysqlFromCanonical, mysqlTargetGrammar)
}

func mysqlToCanonical(raw string) (core.Canonical, core.CanonicalParams, string) {
	base := baseType(raw)
	switch base {
	case "TINYINT":
		if strings.Contains(strings.ToLower(raw), "tinyint(1)") {
			return core.CanonicalBool, core.CanonicalParams{}, ""
		}
		return core.CanonicalInt1, core.CanonicalParams{}, ""
	case "SMALLINT":
		return core.CanonicalInt2, core.CanonicalParams{}, ""
	case "MEDIUMINT", "INT", "INTEGER":
		return core.CanonicalInt4, core.CanonicalParams{}, ""
	case "BIGINT":
		return core.CanonicalInt8, core.CanonicalParams{}, ""
	case "FLOAT":
		return core.CanonicalFloat4, core.CanonicalParams{}, ""
	case "DOUBLE", "DOUBLE PRECISION", "REAL":
		return core.CanonicalFloat8, core.CanonicalParams{}, ""
	case "DECIMAL", "NUMERIC":
		p, s := precisionScaleParams(raw)
		return core.CanonicalDecimal, core.CanonicalParams{Precision: p, Scale: s}, ""
	case "BOOL", "BOOLEAN":
		return core.CanonicalBool, core.CanonicalParams{}, ""
	case "CHAR", "VARCHAR":
		return core.CanonicalText, core.CanonicalParams{Length: lengthParam(raw)}, ""
	case "TINYTEXT", "TEXT", "MEDIUMTEXT", "LONGTEXT":
		return core.CanonicalText, core.CanonicalParams{}, ""
	case "BINARY", "VARBINARY":
		return core.CanonicalBinaryFixed, core.CanonicalParams{Length: lengthParam(raw)}, ""
	case "TINYBLOB", "BLOB", "MEDIUMBLOB", "LONGBLOB":
		return core.CanonicalBlob, core.CanonicalParams{}, ""
	case "DATE":
		return core.CanonicalDate, core.CanonicalParams{}, ""
	case "TIME":
		return core.CanonicalTime, core.CanonicalParams{}, ""
	case "DATETIME", "TIMESTAMP":
		return core.CanonicalDatetime, core.CanonicalParams{}, ""
	case "JSON":
		return core.CanonicalJSON, core.CanonicalParams{}, ""
	case "ENUM":
		return core.CanonicalEnum, core.CanonicalParams{}, ""
	default:
		return core.CanonicalUnknown, core.CanonicalParams{}, "unrecognized MySQL type " + raw + "; no canonical mapping, flagging for manual review"
	}
}

func mysqlFromCanonical(c core.Canonical, params core.CanonicalParams, enumValues []string) (string, string) {
	switch c {
	case core.CanonicalInt1:
		return "TINYINT", ""
	case core.CanonicalInt2:
		return "SMALLINT", ""
	case core.CanonicalInt4:
		return "INT", ""
	case core.CanonicalInt8:
		return "BIGINT", ""
	case core.CanonicalFloat4:
		return "FLOAT", ""
	case core.CanonicalFloat8:
		return "DOUBLE", ""
	case core.CanonicalDecimal:
		if params.HasPrecision() {
			return "DECIMAL(" + strconv.Itoa(params.Precision) + "," + strconv.Itoa(params.Scale) + ")", ""
		}
		return "DECIMAL(65,30)", "precision/scale not supplied; using maximum DECIMAL(65,30)"
	case core.CanonicalBool:
		return "TINYINT(1)", ""
	case core.CanonicalText:
		if params.HasLength() {
			if params.Length > 65535 {
				return "LONGTEXT", ""
			}
			return "VARCHAR(" + strconv.Itoa(params.Length) + ")", ""
		}
		return "VARCHAR(255)", "length not supplied; defaulted to VARCHAR(255)"
	case core.CanonicalNText:
		return "TEXT", ""
	case core.CanonicalClob:
		return "LONGTEXT", ""
	case core.CanonicalBlob:
		return "LONGBLOB", ""
	case core.CanonicalDate:
		return "DATE", ""
	case core.CanonicalTime:
		return "TIME", ""
	case core.CanonicalDatetime:
		return "DATETIME", ""
	case core.CanonicalDatetimeTZ:
		return "DATETIME", "MySQL has no timezone-aware datetime; UTC normalization required at load time"
	case core.CanonicalJSON:
		return "JSON", ""
	case core.CanonicalUUID:
		return "CHAR(36)", ""
	case core.CanonicalEnum:
		if len(enumValues) == 0 {
			return "ENUM()", "enum with no declared values"
		}
		return "ENUM(" + quotedList(enumValues) + ")", ""
	case core.CanonicalBinaryFixed:
		if params.HasLength() {
			return "BINARY(" + strconv.Itoa(params.Length) + ")", ""
		}
		return "BINARY(16)", "fixed width not supplied; defaulted to BINARY(16)"
	default:
		return "LONGTEXT", "unknown canonical type " + string(c) + "; defaulted to LONGTEXT"
	}
}

func quotedList(values []string) string {
	var sb strings.Builder
	for i, v := range values {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte('\'')
		sb.WriteString(strings.ReplaceAll(v, "'", "''"))
		sb.WriteByte('\'')
	}
	return sb.String()
}
