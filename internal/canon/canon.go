// Package canon implements the canonical type system (C2): translating a
// source engine's raw column type into the closed core.Canonical enum, and
// translating a canonical type back into a concrete MySQL target type.
// Both directions are registered per engine, mirroring the
// Register/lookup + RWMutex registry already used by internal/connector.
package canon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"dbxmigrate/internal/core"
)

// ToCanonicalFunc maps a raw, engine-native type string to its canonical
// equivalent plus any length/precision/scale it carries. The returned
// warning is non-empty when the mapping is lossy or uncertain (e.g.
// falling back to CanonicalUnknown).
type ToCanonicalFunc func(rawType string) (core.Canonical, core.CanonicalParams, string)

// FromCanonicalFunc maps a canonical type and its extracted parameters to a
// concrete target type string for the given engine (MySQL in this
// repository). params is the zero value when the source carried none, in
// which case the implementation falls back to a dialect default. The
// warning mirrors ToCanonicalFunc's.
type FromCanonicalFunc func(c core.Canonical, params core.CanonicalParams, enumValues []string) (targetType string, warning string)

var (
	mu         sync.RWMutex
	toCanon    = make(map[core.Dialect]ToCanonicalFunc)
	fromCanon  = make(map[core.Dialect]FromCanonicalFunc)
	grammarRe  = make(map[core.Dialect]*regexp.Regexp)
)

// RegisterEngine installs the canonical-type conversion functions for a
// dialect. Called from each engine's init().
func RegisterEngine(d core.Dialect, to ToCanonicalFunc, from FromCanonicalFunc, targetGrammar *regexp.Regexp) {
	mu.Lock()
	defer mu.Unlock()
	if to != nil {
		toCanon[d] = to
	}
	if from != nil {
		fromCanon[d] = from
	}
	if targetGrammar != nil {
		grammarRe[d] = targetGrammar
	}
}

// ToCanonical converts rawType (as reported by the source engine's catalog)
// into the canonical type enum plus any length/precision/scale it carries.
// Unrecognized types map to CanonicalUnknown with a non-empty warning
// rather than erroring, per the extractor's per-table fault isolation.
func ToCanonical(d core.Dialect, rawType string) (core.Canonical, core.CanonicalParams, string) {
	mu.RLock()
	fn, ok := toCanon[d]
	mu.RUnlock()
	if !ok {
		return core.CanonicalUnknown, core.CanonicalParams{}, fmt.Sprintf("no canonical mapping registered for dialect %q", d)
	}
	return fn(rawType)
}

// FromCanonical converts a canonical type and its parameters into a
// concrete target type string for dialect d (MySQL in this repository).
func FromCanonical(d core.Dialect, c core.Canonical, params core.CanonicalParams, enumValues []string) (string, string) {
	mu.RLock()
	fn, ok := fromCanon[d]
	mu.RUnlock()
	if !ok {
		return "TEXT", fmt.Sprintf("no target mapping registered for dialect %q, defaulting to TEXT", d)
	}
	return fn(c, params, enumValues)
}

// ValidTargetType reports whether typeStr is syntactically valid for
// dialect d's DDL grammar (used to validate LLM-proposed target types
// before they are accepted, per the proposer's retry-on-violation loop).
func ValidTargetType(d core.Dialect, typeStr string) bool {
	mu.RLock()
	re, ok := grammarRe[d]
	mu.RUnlock()
	if !ok {
		return true
	}
	return re.MatchString(strings.TrimSpace(typeStr))
}

// baseType strips length/precision parens and trailing modifiers from a raw
// SQL type string. It is the canon package's own notion of a type's base
// name, used to dispatch ToCanonicalFunc switches; internal/core's
// normalizeRawTypeBase solves an adjacent but distinct problem (validating
// a raw type's base name against a per-dialect keyword set).
func baseType(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if idx := strings.IndexByte(s, '('); idx >= 0 {
		s = s[:idx]
	}
	s = strings.TrimSuffix(s, " UNSIGNED")
	s = strings.TrimSuffix(s, " ZEROFILL")
	return strings.TrimSpace(s)
}

// paramsOf extracts the comma-separated contents of the first parenthesized
// group in raw, e.g. "DECIMAL(10,2)" -> []string{"10", "2"}.
func paramsOf(raw string) []string {
	start := strings.IndexByte(raw, '(')
	end := strings.IndexByte(raw, ')')
	if start < 0 || end < 0 || end <= start {
		return nil
	}
	parts := strings.Split(raw[start+1:end], ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// lengthParam extracts a single-argument parenthesized length, e.g.
// "VARCHAR(255)" -> 255. Returns 0 if raw carries no such parameter.
func lengthParam(raw string) int {
	parts := paramsOf(raw)
	if len(parts) != 1 {
		return 0
	}
	n, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0
	}
	return n
}

// precisionScaleParams extracts a two-argument parenthesized
// precision/scale, e.g. "DECIMAL(18,4)" -> (18, 4). Returns zeros if raw
// carries no such parameters.
func precisionScaleParams(raw string) (precision, scale int) {
	parts := paramsOf(raw)
	if len(parts) != 2 {
		return 0, 0
	}
	p, err1 := strconv.Atoi(parts[0])
	s, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0
	}
	return p, s
}
