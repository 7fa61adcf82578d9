package canon

import (
	"encoding/json"
	"fmt"
	"time"

	"dbxmigrate/internal/core"
)

// RowTransform converts one scanned source value into a value the target
// driver (go-sql-driver/mysql) accepts for the given canonical type. The
// design note calls for a table keyed by (sourceCanonical, targetCanonical);
// since this pipeline's target is always MySQL, the table collapses to a
// single canonical-keyed dispatch, with the implicit target canonical
// fixed at MySQL's own canonical set.
type RowTransform func(v any) (any, error)

var transforms = map[core.Canonical]RowTransform{
	core.CanonicalBool:       transformBool,
	core.CanonicalDatetimeTZ: transformDatetimeTZ,
	core.CanonicalJSON:       transformJSON,
	core.CanonicalUUID:       transformUUID,
	core.CanonicalTime:       transformTime,
}

// Transform applies the registered RowTransform for c, or passes v through
// unchanged when no special handling is required.
func Transform(c core.Canonical, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if fn, ok := transforms[c]; ok {
		return fn(v)
	}
	return v, nil
}

func transformBool(v any) (any, error) {
	switch t := v.(type) {
	case bool:
		if t {
			return int64(1), nil
		}
		return int64(0), nil
	default:
		return v, nil
	}
}

// transformDatetimeTZ normalizes a timezone-aware timestamp to UTC, since
// MySQL DATETIME carries no zone information.
func transformDatetimeTZ(v any) (any, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	default:
		return v, nil
	}
}

func transformTime(v any) (any, error) {
	switch t := v.(type) {
	case time.Time:
		return t.Format("15:04:05"), nil
	default:
		return v, nil
	}
}

// transformJSON re-marshals the scanned value so the bytes written to
// MySQL's JSON column are canonical (sorted map keys, no driver-specific
// encoding quirks carried over from the source).
func transformJSON(v any) (any, error) {
	switch t := v.(type) {
	case []byte:
		var anyVal any
		if err := json.Unmarshal(t, &anyVal); err != nil {
			return nil, fmt.Errorf("canon: re-encode JSON value: %w", err)
		}
		out, err := json.Marshal(anyVal)
		if err != nil {
			return nil, err
		}
		return out, nil
	case string:
		return transformJSON([]byte(t))
	default:
		return v, nil
	}
}

func transformUUID(v any) (any, error) {
	switch t := v.(type) {
	case [16]byte:
		return fmt.Sprintf("%x-%x-%x-%x-%x", t[0:4], t[4:6], t[6:8], t[8:10], t[10:16]), nil
	default:
		return v, nil
	}
}
