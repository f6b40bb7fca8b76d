package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"sync"
	"time"

	"github.com/MeKo-Tech/flatdoc/internal/common"
	"github.com/MeKo-Tech/flatdoc/internal/rectify"
	"github.com/MeKo-Tech/flatdoc/internal/utils"
)

var (
	// ErrSkipped marks files that were not processed because an earlier file
	// failed and ContinueOnError is off.
	ErrSkipped = errors.New("skipped after an earlier failure")

	// ErrOverwriteInput is returned when the output path resolves to the input.
	ErrOverwriteInput = errors.New("output would overwrite the input file")
)

// FileResult is the outcome for one input image. A PDF contributes one
// result per page image.
type FileResult struct {
	Input    string
	Page     int // 1-based PDF page, 0 for image files
	Output   string
	Width    int // rectified size
	Height   int
	Source   utils.ImageMetadata
	Tilt     float64 // radians
	Duration time.Duration
	Err      error
}

// OK reports whether the file was rectified and written.
func (r FileResult) OK() bool { return r.Err == nil }

type fileJob struct {
	index int
	src   source
}

type fileResult struct {
	index   int
	results []FileResult
}

// processFile loads, rectifies and writes every image of one file. A file
// that cannot be loaded yields a single failed result.
func processFile(r *rectify.Rectifier, src source, cfg Config) []FileResult {
	timer := common.NewNamedTimer(src.path)
	pages, err := utils.LoadGrayscalePages(src.path, cfg.Pages)
	if err != nil {
		return []FileResult{{Input: src.path, Output: src.outputPath(cfg, ""), Err: err, Duration: timer.Stop()}}
	}

	results := make([]FileResult, len(pages))
	for i, page := range pages {
		if i > 0 {
			timer = common.NewNamedTimer(src.path + page.Label())
		}
		results[i] = processPage(r, src, page, cfg)
		results[i].Duration = timer.Stop()
		// the decoded page is no longer needed once written
		pages[i].Image = nil
	}
	return results
}

// processPage rectifies one loaded image and writes it.
func processPage(r *rectify.Rectifier, src source, page utils.GrayPage, cfg Config) FileResult {
	res := FileResult{Input: src.path, Page: page.Page, Output: src.outputPath(cfg, page.Label()), Source: page.Meta}
	if samePath(res.Input, res.Output) {
		res.Err = fmt.Errorf("%s: %w", res.Output, ErrOverwriteInput)
		return res
	}

	out, err := r.Process(page.Image)
	if err != nil {
		res.Err = err
		return res
	}
	res.Width, res.Height, res.Tilt = out.Image.Width, out.Image.Height, out.Tilt

	if err := utils.SaveGrayscale(res.Output, out.Image, cfg.Encode); err != nil {
		res.Err = err
		return res
	}
	slog.Debug("document rectified",
		"input", res.Input,
		"page", res.Page,
		"output", res.Output,
		"width", res.Width,
		"height", res.Height,
		"tilt_deg", res.Tilt*180/math.Pi)
	return res
}

// failed returns the first real failure among the results of one file.
func failed(results []FileResult) error {
	for _, r := range results {
		if r.Err != nil && !errors.Is(r.Err, ErrSkipped) {
			return r.Err
		}
	}
	return nil
}

func samePath(a, b string) bool {
	aa, errA := filepath.Abs(a)
	bb, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return aa == bb
}

// processFilesParallel runs sources through a worker pool. Results keep the
// input order, pages of a PDF in page order. Without ContinueOnError the
// first failure stops scheduling and every file not yet started is reported
// as ErrSkipped.
func processFilesParallel(ctx context.Context, r *rectify.Rectifier, sources []source, cfg Config) []FileResult {
	progress := cfg.Progress
	if progress == nil {
		progress = NoOpProgressCallback{}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan fileJob)
	results := make(chan fileResult, len(sources))
	workers := cfg.workerCount(len(sources))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-jobs:
					if !ok {
						return
					}
					if ctx.Err() != nil {
						results <- fileResult{index: job.index, results: []FileResult{{Input: job.src.path, Err: ErrSkipped}}}
						continue
					}
					res := processFile(r, job.src, cfg)
					results <- fileResult{index: job.index, results: res}
					if failed(res) != nil && !cfg.ContinueOnError {
						cancel()
					}
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, src := range sources {
			select {
			case <-ctx.Done():
				return
			case jobs <- fileJob{index: i, src: src}:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	progress.OnStart(len(sources))
	perFile := make([][]FileResult, len(sources))
	completed := 0
	for res := range results {
		perFile[res.index] = res.results
		completed++
		if err := failed(res.results); err != nil {
			progress.OnError(completed, fmt.Errorf("%s: %w", sources[res.index].path, err))
		}
		progress.OnProgress(completed, len(sources))
	}
	progress.OnComplete()

	out := make([]FileResult, 0, len(sources))
	for i, src := range sources {
		if perFile[i] == nil {
			perFile[i] = []FileResult{{Input: src.path, Err: ErrSkipped}}
		}
		out = append(out, perFile[i]...)
	}
	return out
}
