// Package propose implements the proposer (C4): builds a mapping request
// from an extracted TableSpec, calls an llm.Client, validates the response's
// structural invariants, and retries with feedback before falling back to
// the deterministic rule-based mapping.
package propose

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"dbxmigrate/internal/canon"
	"dbxmigrate/internal/core"
	"dbxmigrate/internal/llm"
)

const maxProposeAttempts = 3

// Proposer drives one llm.Client through the propose-validate-retry loop.
type Proposer struct {
	Primary  llm.Client
	Fallback llm.Client
	Logger   *zap.Logger
}

// New builds a Proposer. Primary may be nil, in which case Fallback (the
// rule-based client) is used directly.
func New(primary, fallback llm.Client, logger *zap.Logger) *Proposer {
	return &Proposer{Primary: primary, Fallback: fallback, Logger: logger}
}

// Propose builds a TableMapping draft for t.
func (p *Proposer) Propose(ctx context.Context, t *core.Table) (*core.TableMapping, error) {
	req := toMappingRequest(t)

	if p.Primary != nil {
		tm, err := p.proposeWithRetry(ctx, req, t)
		if err == nil {
			return tm, nil
		}
		if p.Logger != nil {
			p.Logger.Warn("primary llm proposer exhausted retries, falling back", zap.String("table", t.Name), zap.Error(err))
		}
	}

	resp, err := p.Fallback.ProposeMapping(ctx, req)
	if err != nil {
		return nil, &core.MappingError{Table: t.Name, Err: fmt.Errorf("fallback proposer failed: %w", err)}
	}
	tm := toTableMapping(t, resp)
	for i := range tm.Columns {
		if tm.Columns[i].Warning == "" {
			tm.Columns[i].Warning = "llm_fallback"
		}
	}
	return tm, nil
}

func (p *Proposer) proposeWithRetry(ctx context.Context, req llm.MappingRequest, t *core.Table) (*core.TableMapping, error) {
	var lastErr error
	for attempt := 0; attempt < maxProposeAttempts; attempt++ {
		resp, err := p.Primary.ProposeMapping(ctx, req)
		if err != nil {
			lastErr = err
			continue
		}

		if violation := validate(t, resp); violation != "" {
			lastErr = fmt.Errorf("validation: %s", violation)
			req.TargetHints = fmt.Sprintf("previous attempt violated: %s", violation)
			continue
		}
		return toTableMapping(t, resp), nil
	}
	return nil, fmt.Errorf("propose: %w", lastErr)
}

// validate checks that every source column is accounted for in resp, that
// each proposed target type is syntactically valid MySQL DDL, and that
// primary key columns remain NOT NULL (a PK column marked nullable in the
// extracted source schema is a metadata anomaly that must not silently
// propagate into the target mapping).
func validate(t *core.Table, resp *llm.MappingResponse) string {
	if len(resp.Columns) != len(t.Columns) {
		return fmt.Sprintf("expected %d columns, got %d", len(t.Columns), len(resp.Columns))
	}

	bySource := make(map[string]llm.ColumnProposal, len(resp.Columns))
	for _, c := range resp.Columns {
		bySource[c.Source] = c
	}

	for _, col := range t.Columns {
		proposal, ok := bySource[col.Name]
		if !ok {
			return fmt.Sprintf("column %q missing from proposal", col.Name)
		}
		if proposal.Target == "" || proposal.TargetType == "" {
			return fmt.Sprintf("column %q has empty target or targetType", col.Name)
		}
		if !canon.ValidTargetType(core.DialectMySQL, proposal.TargetType) {
			return fmt.Sprintf("column %q target type %q is not valid MySQL DDL syntax", col.Name, proposal.TargetType)
		}
		if core.RoleOf(t, col.Name) == core.RolePrimaryKey && col.Nullable {
			return fmt.Sprintf("column %q is a primary key but is marked nullable in the source schema", col.Name)
		}
	}
	return ""
}

func toMappingRequest(t *core.Table) llm.MappingRequest {
	req := llm.MappingRequest{SourceTable: t.Name}
	for _, col := range t.Columns {
		req.Columns = append(req.Columns, llm.ColumnDescriptor{
			Name:            col.Name,
			SourceTypeRaw:   col.RawType,
			CanonicalType:   string(col.CanonicalType),
			CanonicalParams: col.CanonicalParams,
			Nullable:        col.Nullable,
			Role:            string(core.RoleOf(t, col.Name)),
		})
	}
	return req
}

func toTableMapping(t *core.Table, resp *llm.MappingResponse) *core.TableMapping {
	tm := &core.TableMapping{SourceTable: t.Name, TargetTable: resp.TargetTable}
	for _, p := range resp.Columns {
		col := t.FindColumn(p.Source)
		role := core.RoleNone
		canonical := core.CanonicalUnknown
		var params core.CanonicalParams
		if col != nil {
			role = core.RoleOf(t, col.Name)
			canonical = col.CanonicalType
			params = col.CanonicalParams
		}
		tm.Columns = append(tm.Columns, core.ColumnMapping{
			Source:          p.Source,
			SourceTypeRaw:   colRawType(col),
			CanonicalType:   canonical,
			CanonicalParams: params,
			Target:          p.Target,
			TargetType:      p.TargetType,
			Role:            role,
			TransformHint:   p.TransformHint,
		})
	}
	return tm
}

func colRawType(c *core.Column) string {
	if c == nil {
		return ""
	}
	return c.RawType
}
