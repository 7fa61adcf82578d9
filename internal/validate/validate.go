// Package validate implements the validator (C8): three escalating checks
// per migrated table (L1 row count, L2 aggregate, L3 seeded sample hash),
// short-circuiting at the first failure unless overridden, run across tables
// through the same bounded worker pool internal/migrate uses.
package validate

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"dbxmigrate/internal/connector"
	"dbxmigrate/internal/core"
)

const (
	defaultConcurrency = 4
	defaultSampleSize  = 200
	defaultAggFunc     = "sum"
	// maxDivergingKeys bounds how many diverging primary keys an L3 failure
	// detail lists, so a badly-drifted table doesn't produce an unbounded
	// ValidationResult.Detail string.
	maxDivergingKeys = 20
)

// Job describes one table to validate: its source/target identities and the
// numeric column L2 should aggregate over, if any.
type Job struct {
	SourceTable  string
	TargetTable  string
	NumericCol   string // source column name; empty skips L2.
	TargetCol    string // corresponding target column name.
	SourcePK     string // source primary key column name, for L3 per-key diffing.
	TargetPK     string // corresponding target primary key column name.
	Seeded       bool
	Seed         int64 // used when Seeded is false; ignored (derived from RunID and table) otherwise.
	SkipOnL1Fail bool  // when false (default), an L1 mismatch short-circuits L2/L3.
}

// Validator runs the three validation levels against a source/target
// connector pair.
type Validator struct {
	Source      connector.Connector
	Target      connector.Connector
	RunID       string
	Logger      *zap.Logger
	Concurrency int64
	SampleSize  int
}

// New builds a Validator with default concurrency and sample size.
func New(source, target connector.Connector, runID string, logger *zap.Logger) *Validator {
	return &Validator{
		Source:      source,
		Target:      target,
		RunID:       runID,
		Logger:      logger,
		Concurrency: defaultConcurrency,
		SampleSize:  defaultSampleSize,
	}
}

// Run validates every job concurrently (bounded by Concurrency) and returns
// every ValidationResult produced, in no particular order. An error is only
// returned for infrastructure failures (connector errors); a failed
// comparison is reported as a ValidationResult with Passed=false, not an
// error, so the caller sees every table's results even when some fail.
func (v *Validator) Run(ctx context.Context, jobs []Job) ([]core.ValidationResult, error) {
	concurrency := v.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	sem := semaphore.NewWeighted(concurrency)
	g, gctx := errgroup.WithContext(ctx)

	results := make([][]core.ValidationResult, len(jobs))
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			res, err := v.validateTable(gctx, job)
			results[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []core.ValidationResult
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}

func (v *Validator) validateTable(ctx context.Context, job Job) ([]core.ValidationResult, error) {
	var out []core.ValidationResult

	l1, err := v.checkRowCount(ctx, job)
	if err != nil {
		return out, err
	}
	out = append(out, l1)
	if !l1.Passed && !job.SkipOnL1Fail {
		return out, nil
	}

	if job.NumericCol != "" {
		l2, err := v.checkAggregate(ctx, job)
		if err != nil {
			return out, err
		}
		out = append(out, l2)
		if !l2.Passed && !job.SkipOnL1Fail {
			return out, nil
		}
	}

	l3, err := v.checkSampleHash(ctx, job)
	if err != nil {
		return out, err
	}
	out = append(out, l3)
	return out, nil
}

func (v *Validator) checkRowCount(ctx context.Context, job Job) (core.ValidationResult, error) {
	srcCount, err := v.Source.RowCount(ctx, job.SourceTable)
	if err != nil {
		return core.ValidationResult{}, &core.LoadError{Table: job.SourceTable, Err: fmt.Errorf("L1 row count (source): %w", err)}
	}
	tgtCount, err := v.Target.RowCount(ctx, job.TargetTable)
	if err != nil {
		return core.ValidationResult{}, &core.LoadError{Table: job.TargetTable, Err: fmt.Errorf("L1 row count (target): %w", err)}
	}

	res := core.ValidationResult{
		Table:       job.TargetTable,
		Level:       core.ValidationL1RowCount,
		Passed:      srcCount == tgtCount,
		SourceValue: fmt.Sprintf("%d", srcCount),
		TargetValue: fmt.Sprintf("%d", tgtCount),
		CheckedAt:   time.Now(),
	}
	if !res.Passed {
		res.Detail = fmt.Sprintf("source has %d rows, target has %d", srcCount, tgtCount)
	}
	return res, nil
}

func (v *Validator) checkAggregate(ctx context.Context, job Job) (core.ValidationResult, error) {
	srcVal, err := v.Source.Aggregate(ctx, job.SourceTable, job.NumericCol, defaultAggFunc)
	if err != nil {
		return core.ValidationResult{}, &core.LoadError{Table: job.SourceTable, Err: fmt.Errorf("L2 aggregate (source): %w", err)}
	}
	tgtVal, err := v.Target.Aggregate(ctx, job.TargetTable, job.TargetCol, defaultAggFunc)
	if err != nil {
		return core.ValidationResult{}, &core.LoadError{Table: job.TargetTable, Err: fmt.Errorf("L2 aggregate (target): %w", err)}
	}

	res := core.ValidationResult{
		Table:       job.TargetTable,
		Level:       core.ValidationL2Aggregate,
		Passed:      srcVal == tgtVal,
		SourceValue: srcVal,
		TargetValue: tgtVal,
		CheckedAt:   time.Now(),
	}
	if !res.Passed {
		res.Detail = fmt.Sprintf("%s(%s): source=%s target=%s", defaultAggFunc, job.NumericCol, srcVal, tgtVal)
	}
	return res, nil
}

func (v *Validator) checkSampleHash(ctx context.Context, job Job) (core.ValidationResult, error) {
	sampleSize := v.SampleSize
	if sampleSize <= 0 {
		sampleSize = defaultSampleSize
	}

	seed := job.Seed
	if job.Seeded {
		seed = deriveSeed(v.RunID, job.TargetTable)
	}

	srcHashes, err := v.Source.SampleHash(ctx, job.SourceTable, job.SourcePK, seed, sampleSize)
	if err != nil {
		return core.ValidationResult{}, &core.LoadError{Table: job.SourceTable, Err: fmt.Errorf("L3 sample hash (source): %w", err)}
	}
	tgtHashes, err := v.Target.SampleHash(ctx, job.TargetTable, job.TargetPK, seed, sampleSize)
	if err != nil {
		return core.ValidationResult{}, &core.LoadError{Table: job.TargetTable, Err: fmt.Errorf("L3 sample hash (target): %w", err)}
	}

	diverging := divergingKeys(srcHashes, tgtHashes)

	res := core.ValidationResult{
		Table:       job.TargetTable,
		Level:       core.ValidationL3Sample,
		Passed:      len(diverging) == 0,
		SourceValue: fmt.Sprintf("%d rows sampled", len(srcHashes)),
		TargetValue: fmt.Sprintf("%d rows sampled", len(tgtHashes)),
		CheckedAt:   time.Now(),
	}
	if !res.Passed {
		shown := diverging
		truncated := false
		if len(shown) > maxDivergingKeys {
			shown = shown[:maxDivergingKeys]
			truncated = true
		}
		detail := fmt.Sprintf("%d of %d sampled keys diverge (seed %d): %s", len(diverging), len(srcHashes), seed, strings.Join(shown, ", "))
		if truncated {
			detail += fmt.Sprintf(" (showing first %d)", maxDivergingKeys)
		}
		res.Detail = detail
	}
	return res, nil
}

// divergingKeys compares two pkValue->rowHash samples and returns the keys
// present in src (the sampled source rows) whose target hash is missing or
// different, in sorted order for deterministic output.
func divergingKeys(src, tgt map[string]string) []string {
	var keys []string
	for k, srcHash := range src {
		if tgtHash, ok := tgt[k]; !ok || tgtHash != srcHash {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// deriveSeed turns runID+table into a deterministic int64 seed via
// math/rand/v2's PCG generator, so re-running the same run against the same
// table reproduces the same sample without either side agreeing on a shared
// clock or counter.
func deriveSeed(runID, table string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(runID + "/" + table))
	sum := h.Sum64()
	pcg := rand.NewPCG(sum, sum>>32|1)
	return int64(rand.New(pcg).Uint64() >> 1)
}
