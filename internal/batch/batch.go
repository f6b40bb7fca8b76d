// Package batch rectifies many document photos with a bounded worker pool.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/flatdoc/internal/common"
	"github.com/MeKo-Tech/flatdoc/internal/rectify"
)

// ErrNoFiles is returned when discovery finds no input.
var ErrNoFiles = errors.New("no image files found")

// Result holds the result of batch processing.
type Result struct {
	Files []FileResult
	Stats common.RunStats
}

// Failed returns the number of results that were not written.
func (r *Result) Failed() int {
	n := 0
	for _, f := range r.Files {
		if f.Err != nil {
			n++
		}
	}
	return n
}

// FirstError returns the first real failure in input order, ignoring skipped
// files.
func (r *Result) FirstError() error {
	for _, f := range r.Files {
		if f.Err != nil && !errors.Is(f.Err, ErrSkipped) {
			if f.Page > 0 {
				return fmt.Errorf("%s page %d: %w", f.Input, f.Page, f.Err)
			}
			return fmt.Errorf("%s: %w", f.Input, f.Err)
		}
	}
	return nil
}

// Run discovers the images and PDFs named by paths and rectifies them. The result is
// returned even when files fail; without ContinueOnError the first failure
// is also returned as the error. A cancelled ctx returns ctx.Err().
func Run(ctx context.Context, paths []string, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid batch config: %w", err)
	}

	sources, err := discoverImageFiles(paths, cfg.Recursive, cfg.IncludePatterns, cfg.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(sources) == 0 {
		return nil, ErrNoFiles
	}

	r, err := rectify.New(cfg.Rectify)
	if err != nil {
		return nil, err
	}

	workers := cfg.workerCount(len(sources))
	slog.Info("batch starting", "files", len(sources), "workers", workers, "output_dir", cfg.OutputDir)

	stats := common.RunStats{Name: "batch", Workers: workers, MemoryBefore: common.GetMemoryStats()}
	timer := common.NewTimer()
	files := processFilesParallel(ctx, r, sources, cfg)
	stats.Duration = timer.Stop()
	stats.MemoryAfter = common.GetMemoryStats()

	res := &Result{Files: files, Stats: stats}
	res.Stats.Items = len(files)
	res.Stats.Failed = res.Failed()
	slog.Info("batch finished", "stats", res.Stats.String())

	if err := ctx.Err(); err != nil {
		return res, err
	}
	if !cfg.ContinueOnError {
		if err := res.FirstError(); err != nil {
			return res, err
		}
	}
	return res, nil
}
