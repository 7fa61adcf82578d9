// Package llm defines the external LLM contract used to accelerate mapping
// proposals (C4). Only the contract matters to the rest of the pipeline;
// internal/llm/anthropic and internal/llm/rulebased are its two
// implementations, and the pipeline must succeed end-to-end with either.
package llm

import (
	"context"

	"dbxmigrate/internal/core"
)

// MappingRequest describes one table's columns for the proposer to ask a
// mapping for.
type MappingRequest struct {
	SourceTable string
	Columns     []ColumnDescriptor
	TargetHints string
}

// ColumnDescriptor is the minimal per-column context an LLM (or the
// rule-based fallback) needs to propose a target mapping.
type ColumnDescriptor struct {
	Name            string
	SourceTypeRaw   string
	CanonicalType   string
	CanonicalParams core.CanonicalParams
	Nullable        bool
	Role            string
}

// ColumnProposal is one proposed column mapping.
type ColumnProposal struct {
	Source        string
	Target        string
	TargetType    string
	TransformHint string
}

// MappingResponse is a full table mapping proposal.
type MappingResponse struct {
	TargetTable string
	Columns     []ColumnProposal
}

// Client is the contract the proposer depends on.
type Client interface {
	ProposeMapping(ctx context.Context, req MappingRequest) (*MappingResponse, error)
}
