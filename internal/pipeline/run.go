// Package pipeline orchestrates the full load: staging, dimensions, facts,
// then data-quality checks, strictly in that order.
//
// Concurrent runs against the same warehouse are not coordinated; schedule
// one pipeline invocation at a time.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"ecomdw/internal/config"
	"ecomdw/internal/dims"
	"ecomdw/internal/facts"
	"ecomdw/internal/metrics"
	"ecomdw/internal/quality"
	"ecomdw/internal/staging"
	"ecomdw/internal/warehouse"
)

// Outcome classifies how a run ended.
type Outcome int

const (
	// OK means every stage completed and all quality checks passed.
	OK Outcome = iota
	// QualityFailed means the load completed but at least one quality
	// check reported violations.
	QualityFailed
	// Failed means a stage aborted with an error.
	Failed
)

// ExitCode maps the outcome to the process exit code contract: 0 success,
// 1 quality violations, 2 pipeline error.
func (o Outcome) ExitCode() int {
	switch o {
	case OK:
		return 0
	case QualityFailed:
		return 1
	default:
		return 2
	}
}

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case QualityFailed:
		return "quality_failed"
	default:
		return "failed"
	}
}

// Runner executes the pipeline stages.
type Runner struct {
	Repo warehouse.Repository
	Cfg  *config.Config

	// SkipStaging leaves current staging table contents in place, for
	// reloading the warehouse from an already-staged extract.
	SkipStaging bool

	// Stage seams, defaulted by New; tests replace them.
	stagingFn func(ctx context.Context) (map[string]int64, error)
	dimsFn    func(ctx context.Context) error
	factsFn   func(ctx context.Context) error
	qualityFn func(ctx context.Context) (bool, map[string]bool, error)
}

// New wires a Runner from the repository and configuration.
func New(repo warehouse.Repository, cfg *config.Config) *Runner {
	r := &Runner{Repo: repo, Cfg: cfg}
	r.stagingFn = staging.New(repo, cfg.DataDir).Load
	r.dimsFn = dims.New(repo, cfg.DateStart, cfg.DateEnd).LoadAll
	r.factsFn = facts.New(repo).LoadAll
	r.qualityFn = quality.New(repo).Run
	return r
}

// Run executes the stages in order. A stage error aborts the run with
// Outcome Failed; quality violations complete the run with QualityFailed.
func (r *Runner) Run(ctx context.Context) (Outcome, error) {
	if r.SkipStaging {
		log.Printf("stage=staging skipped=true")
	} else {
		_, err := r.step(ctx, "staging", func(ctx context.Context) (int64, error) {
			counts, err := r.stagingFn(ctx)
			if err != nil {
				return 0, err
			}
			var total int64
			for _, n := range counts {
				total += n
			}
			return total, nil
		}, "staging_rows")
		if err != nil {
			return Failed, fmt.Errorf("pipeline: staging: %w", err)
		}
	}

	if _, err := r.step(ctx, "dimensions", func(ctx context.Context) (int64, error) {
		return 0, r.dimsFn(ctx)
	}, ""); err != nil {
		return Failed, fmt.Errorf("pipeline: dimensions: %w (is staging loaded?)", err)
	}

	if _, err := r.step(ctx, "facts", func(ctx context.Context) (int64, error) {
		return 0, r.factsFn(ctx)
	}, ""); err != nil {
		return Failed, fmt.Errorf("pipeline: facts: %w (are dimensions loaded?)", err)
	}

	started := time.Now()
	passed, results, err := r.qualityFn(ctx)
	if err != nil {
		metrics.StepDone("quality", "error", time.Since(started), 0, "")
		return Failed, fmt.Errorf("pipeline: quality: %w", err)
	}
	status := "ok"
	if !passed {
		status = "violations"
	}
	metrics.StepDone("quality", status, time.Since(started), 0, "")
	log.Printf("stage=quality passed=%t checks=%d duration=%s",
		passed, len(results), time.Since(started).Round(time.Millisecond))

	if !passed {
		return QualityFailed, nil
	}
	return OK, nil
}

// step runs one stage with uniform logging and metrics.
func (r *Runner) step(ctx context.Context, name string, fn func(ctx context.Context) (int64, error), recordKind string) (int64, error) {
	started := time.Now()
	n, err := fn(ctx)
	if err != nil {
		metrics.StepDone(name, "error", time.Since(started), 0, "")
		return 0, err
	}
	metrics.StepDone(name, "ok", time.Since(started), n, recordKind)
	log.Printf("stage=%s duration=%s", name, time.Since(started).Round(time.Millisecond))
	return n, nil
}
