package benchmark

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/MeKo-Tech/flatdoc/internal/geometry"
	"github.com/MeKo-Tech/flatdoc/internal/grayscale"
	"github.com/MeKo-Tech/flatdoc/internal/rectify"
	"github.com/MeKo-Tech/flatdoc/internal/testutil"
)

// ScalingConfig selects the documents and worker counts of a scaling run.
type ScalingConfig struct {
	Scales     []int // multiples of the 300x400 synthetic photo
	Workers    []int
	Iterations int
	Rectify    rectify.Config // Workers is overridden per run
}

// DefaultScalingConfig covers photos from 300x400 to 1200x1600 on one to four
// workers.
func DefaultScalingConfig() ScalingConfig {
	return ScalingConfig{
		Scales:     []int{1, 2, 4},
		Workers:    []int{1, 2, 4},
		Iterations: 3,
		Rectify:    rectify.DefaultConfig(),
	}
}

// ScalingResult is one (document size, worker count) cell.
type ScalingResult struct {
	Result
	Width   int                      `json:"width"`
	Height  int                      `json:"height"`
	Workers int                      `json:"workers"`
	Stages  map[string]time.Duration `json:"stages_ns"` // mean per stage
	Speedup float64                  `json:"speedup"`   // relative to the first worker count
}

// ScalingDocument renders the perspective fixture enlarged by scale.
func ScalingDocument(scale int) *grayscale.Image {
	cfg := testutil.PerspectiveDocument().Config
	cfg.Width *= scale
	cfg.Height *= scale
	for i, p := range cfg.Corners {
		cfg.Corners[i] = geometry.Point{X: p.X * scale, Y: p.Y * scale}
	}
	return testutil.GenerateDocument(cfg)
}

// RunScaling rectifies every document size with every worker count.
func RunScaling(cfg ScalingConfig, progress io.Writer) ([]ScalingResult, error) {
	if cfg.Iterations <= 0 {
		return nil, fmt.Errorf("iterations must be positive, got %d", cfg.Iterations)
	}
	var out []ScalingResult
	for _, scale := range cfg.Scales {
		if scale <= 0 {
			return nil, fmt.Errorf("scale must be positive, got %d", scale)
		}
		img := ScalingDocument(scale)
		var base time.Duration
		for i, workers := range cfg.Workers {
			res, err := runCell(img, workers, cfg)
			if err != nil {
				return nil, err
			}
			if i == 0 {
				base = res.Average()
			}
			if avg := res.Average(); avg > 0 {
				res.Speedup = float64(base) / float64(avg)
			}
			if progress != nil {
				_, _ = fmt.Fprintln(progress, res.String())
			}
			out = append(out, res)
		}
	}
	return out, nil
}

func runCell(img *grayscale.Image, workers int, cfg ScalingConfig) (ScalingResult, error) {
	rc := cfg.Rectify
	rc.Workers = workers
	r, err := rectify.New(rc)
	if err != nil {
		return ScalingResult{}, err
	}

	var mu sync.Mutex
	totals := make(map[string]time.Duration)
	r = r.WithObserver(func(t rectify.StageTiming, _ error) {
		mu.Lock()
		totals[t.Stage] += t.Duration
		mu.Unlock()
	})

	name := fmt.Sprintf("rectify_%dx%d_w%d", img.Width, img.Height, workers)
	res := runBenchmark(Benchmark{Name: name, Func: func() error {
		_, err := r.Process(img)
		return err
	}}, cfg.Iterations)
	if res.Error != nil {
		return ScalingResult{}, fmt.Errorf("%s: %w", name, res.Error)
	}

	stages := make(map[string]time.Duration, len(totals))
	for stage, d := range totals {
		stages[stage] = d / time.Duration(res.Iterations)
	}
	return ScalingResult{
		Result:  res,
		Width:   img.Width,
		Height:  img.Height,
		Workers: workers,
		Stages:  stages,
	}, nil
}

// WriteCSV writes one row per result with a column per pipeline stage.
func WriteCSV(w io.Writer, results []ScalingResult) error {
	cw := csv.NewWriter(w)
	header := []string{"width", "height", "workers", "avg_ms", "speedup", "alloc_kb"}
	for _, s := range rectify.Stages {
		header = append(header, s+"_ms")
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range results {
		row := []string{
			strconv.Itoa(r.Width),
			strconv.Itoa(r.Height),
			strconv.Itoa(r.Workers),
			formatMS(r.Average()),
			strconv.FormatFloat(r.Speedup, 'f', 2, 64),
			strconv.FormatUint(r.AllocatedKB(), 10),
		}
		for _, s := range rectify.Stages {
			row = append(row, formatMS(r.Stages[s]))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatMS(d time.Duration) string {
	return strconv.FormatFloat(float64(d)/float64(time.Millisecond), 'f', 2, 64)
}
