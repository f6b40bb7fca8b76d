// Package rectify removes perspective distortion from a photographed
// document. The pipeline is strictly sequential; each stage parallelises
// over rows internally and any incomplete stage aborts the run.
package rectify

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/MeKo-Tech/flatdoc/internal/common"
	"github.com/MeKo-Tech/flatdoc/internal/corners"
	"github.com/MeKo-Tech/flatdoc/internal/filters"
	"github.com/MeKo-Tech/flatdoc/internal/geometry"
	"github.com/MeKo-Tech/flatdoc/internal/grayscale"
	"github.com/MeKo-Tech/flatdoc/internal/homography"
	"github.com/MeKo-Tech/flatdoc/internal/hough"
	"github.com/MeKo-Tech/flatdoc/internal/utils"
)

// Stage names used in errors, logs and metrics.
const (
	StageWorkingCopy = "working_copy"
	StagePreprocess  = "preprocess"
	StageHough       = "hough"
	StageCorners     = "corners"
	StageMask        = "mask"
	StageHomography  = "homography"
	StageWarp        = "warp"
	StageRotate      = "rotate"
	StageCrop        = "crop"
	StageCleanup     = "cleanup"
)

// Stages lists the stage names in execution order.
var Stages = []string{
	StageWorkingCopy, StagePreprocess, StageHough, StageCorners, StageMask,
	StageHomography, StageWarp, StageRotate, StageCrop, StageCleanup,
}

// ErrEmptyImage is returned for images without pixels.
var ErrEmptyImage = errors.New("rectify: empty input image")

// StageError reports which pipeline stage failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("rectify %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// StageTiming is the wall time of one stage.
type StageTiming struct {
	Stage    string
	Duration time.Duration
}

// Result is a successful rectification together with the intermediate
// geometry that produced it.
type Result struct {
	Image *grayscale.Image

	Lines      [hough.LineCount]hough.StraightLine // strongest Hough lines at original scale
	Corners    [4]geometry.Point                   // [TL, TR, BR, BL] in the input
	Boundaries [4]geometry.EquationLine            // [top, bottom, left, right]
	Size       homography.Size
	Target     [4]geometry.Point
	Homography homography.Matrix
	Tilt       float64 // radians, corrected by rotating by -Tilt
	Crop       Bounds

	Timings    []StageTiming
	DebugFiles []string
}

// StageObserver is called after every stage, with the stage error if it
// failed.
type StageObserver func(timing StageTiming, err error)

// Rectifier runs the document recovery pipeline. It holds no per-run state
// and may be shared between goroutines.
type Rectifier struct {
	cfg      Config
	observer StageObserver
}

// New creates a rectifier after validating cfg.
func New(cfg Config) (*Rectifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rectify config: %w", err)
	}
	return &Rectifier{cfg: cfg}, nil
}

// WithObserver returns a copy of r that reports finished stages to fn.
func (r *Rectifier) WithObserver(fn StageObserver) *Rectifier {
	c := *r
	c.observer = fn
	return &c
}

// Config returns the configuration the rectifier runs with.
func (r *Rectifier) Config() Config { return r.cfg }

// Apply rectifies img and returns only the corrected document.
func (r *Rectifier) Apply(img *grayscale.Image) (*grayscale.Image, error) {
	res, err := r.Process(img)
	if err != nil {
		return nil, err
	}
	return res.Image, nil
}

// Process rectifies img. img is not modified. On error no partial result is
// returned and the error is a *StageError.
func (r *Rectifier) Process(img *grayscale.Image) (*Result, error) {
	res := &Result{}
	out, err := r.run(img, res)
	if err != nil {
		documentsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	documentsTotal.WithLabelValues("ok").Inc()
	detectedTilt.Observe(math.Abs(res.Tilt) * 180 / math.Pi)
	res.Image = out
	return res, nil
}

// stage runs fn, records its timing and wraps a failure in a StageError.
func (r *Rectifier) stage(res *Result, name string, fn func() error) error {
	timer := common.NewNamedTimer(name)
	err := fn()
	d := timer.Stop()

	observeStage(name, d, err)
	timing := StageTiming{Stage: name, Duration: d}
	res.Timings = append(res.Timings, timing)
	if r.observer != nil {
		r.observer(timing, err)
	}
	if err != nil {
		slog.Debug("rectify stage failed", "stage", name, "duration", d, "error", err)
		return &StageError{Stage: name, Err: err}
	}
	slog.Debug("rectify stage", "stage", name, "duration", d)
	return nil
}

func (r *Rectifier) debugDump(res *Result, kind string, dump func() (string, error)) {
	if r.cfg.DebugDir == "" {
		return
	}
	path, err := dump()
	if err != nil {
		slog.Warn("debug dump failed", "kind", kind, "dir", r.cfg.DebugDir, "error", err)
		return
	}
	res.DebugFiles = append(res.DebugFiles, path)
}

func (r *Rectifier) run(img *grayscale.Image, res *Result) (*grayscale.Image, error) {
	if img.Empty() {
		return nil, &StageError{Stage: StageWorkingCopy, Err: ErrEmptyImage}
	}
	workers := r.cfg.Workers

	var (
		work  *grayscale.Image
		scale float64
		edges *grayscale.Image
		found corners.Result
	)
	// Detection runs on a downscaled copy; lines come back at full scale.
	err := r.stage(res, StageWorkingCopy, func() (err error) {
		work, scale, err = utils.WorkingCopy(img, r.cfg.WorkingHeight)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = r.stage(res, StagePreprocess, func() (err error) {
		edges, err = filters.Preprocess(work, r.cfg.filterOptions())
		return err
	})
	if err != nil {
		return nil, err
	}
	r.debugDump(res, "edges", func() (string, error) { return dumpEdgesPNG(r.cfg.DebugDir, edges) })

	err = r.stage(res, StageHough, func() (err error) {
		res.Lines, err = hough.DetectFourLines(edges, scale, r.cfg.Hough, workers)
		return err
	})
	if err != nil {
		return nil, err
	}

	// Pair the lines into top/bottom and left/right and intersect them
	err = r.stage(res, StageCorners, func() (err error) {
		found, err = corners.Find(res.Lines, img.Width, img.Height)
		return err
	})
	if err != nil {
		return nil, err
	}
	res.Corners, res.Boundaries = found.Corners, found.Lines
	r.debugDump(res, "overlay", func() (string, error) { return dumpOverlayPNG(r.cfg.DebugDir, img, res.Corners) })

	// Blank everything outside the quadrilateral on a copy of the input
	masked := img.Clone()
	err = r.stage(res, StageMask, func() error {
		return MaskBackground(masked, res.Boundaries, workers)
	})
	if err != nil {
		return nil, err
	}

	// Map the corners onto an upright rectangle of the document's size
	err = r.stage(res, StageHomography, func() (err error) {
		res.Size, err = homography.DocumentSize(res.Corners, r.cfg.sizeConfig())
		if err != nil {
			return err
		}
		res.Target = homography.TargetCorners(res.Corners, res.Size, img.Width, img.Height)
		res.Homography, err = homography.Solve(res.Corners, res.Target)
		return err
	})
	if err != nil {
		return nil, err
	}

	var warped, rotated, cropped, cleaned *grayscale.Image
	err = r.stage(res, StageWarp, func() (err error) {
		warped, err = Warp(masked, res.Homography, workers)
		return err
	})
	if err != nil {
		return nil, err
	}
	r.debugDump(res, "compare", func() (string, error) {
		return dumpComparePNG(r.cfg.DebugDir, masked, warped, res.Target)
	})

	// Level the mapped bottom edge
	err = r.stage(res, StageRotate, func() (err error) {
		res.Tilt = ResidualTilt(res.Homography, res.Corners)
		rotated, err = Rotate(warped, -res.Tilt, workers)
		return err
	})
	if err != nil {
		return nil, err
	}

	// Cut out the sheet and fill the remaining black specks
	err = r.stage(res, StageCrop, func() (err error) {
		res.Crop, err = ContentBounds(rotated)
		if err != nil {
			return err
		}
		cropped, err = cropTo(rotated, res.Crop, workers)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = r.stage(res, StageCleanup, func() (err error) {
		cleaned, err = filters.MedianCleanup(cropped, workers)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Debug("document rectified",
		"input", fmt.Sprintf("%dx%d", img.Width, img.Height),
		"output", fmt.Sprintf("%dx%d", cleaned.Width, cleaned.Height),
		"tilt_deg", res.Tilt*180/math.Pi)
	return cleaned, nil
}
