// Package runregistry generates and tracks run IDs (C9), owns the
// <kind>/<run_id>/ artifact directory layout shared by every stage, and
// prunes completed runs past a configured age.
package runregistry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"dbxmigrate/internal/artifact"
	"dbxmigrate/internal/core"
)

// Registry owns the artifact root directory for every run.
type Registry struct {
	root string
}

// New returns a Registry rooted at dir (created if missing).
func New(dir string) (*Registry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("runregistry: mkdir %s: %w", dir, err)
	}
	return &Registry{root: dir}, nil
}

// NewRunID generates a YYYYMMDD-HHMMSS-<6 hex> run identifier.
func NewRunID(now time.Time) string {
	id := uuid.New()
	suffix := strings.ToLower(strings.ReplaceAll(id.String(), "-", ""))[:6]
	return fmt.Sprintf("%s-%s", now.Format("20060102-150405"), suffix)
}

// Dir returns the artifact root for kind (e.g. "schemas", "mappings",
// "ddl", "checkpoints", "dlq", "reports") under runID.
func (r *Registry) Dir(kind, runID string) string {
	return filepath.Join(r.root, kind, runID)
}

// StatePath returns the path of the run-level state file used for UI
// resumption.
func (r *Registry) StatePath(runID string) string {
	return filepath.Join(r.root, "runs", runID, "run_state.json")
}

// SaveState persists ctx as the run's resumable state document.
func (r *Registry) SaveState(ctx *core.RunContext) error {
	return artifact.WriteJSON(r.StatePath(ctx.RunID), ctx)
}

// LoadState reads back a previously saved RunContext.
func (r *Registry) LoadState(runID string) (*core.RunContext, error) {
	var rc core.RunContext
	if err := artifact.ReadJSON(r.StatePath(runID), &rc); err != nil {
		return nil, err
	}
	return &rc, nil
}

// Prune removes every run directory under root whose run_state.json is
// older than maxAge, returning the run IDs it removed.
func (r *Registry) Prune(maxAge time.Duration, now time.Time) ([]string, error) {
	runsDir := filepath.Join(r.root, "runs")
	entries, err := os.ReadDir(runsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("runregistry: read runs dir: %w", err)
	}

	var pruned []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		runID := e.Name()
		info, err := os.Stat(r.StatePath(runID))
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) <= maxAge {
			continue
		}
		for _, kind := range []string{"schemas", "mappings", "ddl", "checkpoints", "dlq", "reports", "runs"} {
			os.RemoveAll(r.Dir(kind, runID))
		}
		pruned = append(pruned, runID)
	}
	return pruned, nil
}
