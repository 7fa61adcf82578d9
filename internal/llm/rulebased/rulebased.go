// Package rulebased implements internal/llm.Client purely from
// internal/canon's deterministic canonical->target mapping, so the pipeline
// can run end-to-end with no LLM provider configured.
package rulebased

import (
	"context"
	"strings"

	"dbxmigrate/internal/canon"
	"dbxmigrate/internal/core"
	"dbxmigrate/internal/llm"
)

// Client is the no-LLM fallback implementation.
type Client struct{}

// New returns a rule-based Client.
func New() *Client {
	return &Client{}
}

// ProposeMapping deterministically lower-cases each source column name for
// the target identifier and maps its canonical type straight through
// canon.FromCanonical; it never errors.
func (c *Client) ProposeMapping(ctx context.Context, req llm.MappingRequest) (*llm.MappingResponse, error) {
	resp := &llm.MappingResponse{TargetTable: strings.ToLower(req.SourceTable)}
	for _, col := range req.Columns {
		targetType, warning := canon.FromCanonical(core.DialectMySQL, core.Canonical(col.CanonicalType), col.CanonicalParams, nil)
		hint := ""
		if warning != "" {
			hint = warning
		}
		resp.Columns = append(resp.Columns, llm.ColumnProposal{
			Source:        col.Name,
			Target:        strings.ToLower(col.Name),
			TargetType:    targetType,
			TransformHint: hint,
		})
	}
	return resp, nil
}
