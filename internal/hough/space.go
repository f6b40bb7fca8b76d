// Package hough implements the (distance, angle) voting space used to find
// the four boundary lines of a document in a binary edge map.
package hough

import (
	"errors"
	"fmt"
	"math"

	"github.com/MeKo-Tech/flatdoc/internal/grayscale"
	"github.com/MeKo-Tech/flatdoc/internal/mempool"
	"github.com/MeKo-Tech/flatdoc/internal/parallel"
)

// ErrNoLine is returned when the accumulator holds no positive-distance votes.
var ErrNoLine = errors.New("hough: no line with votes left in accumulator")

// Params are the accumulator constants.
type Params struct {
	AngleStep  float64 // radians per angle bin
	AngleShift float64 // angle of the centre bin
	AngleSpan  float64 // total angular range covered

	// Suppression half-window is AngleBins/SuppressAngleDivisor angle bins by
	// DistanceBins/SuppressDistanceDivisor distance bins.
	SuppressAngleDivisor    int
	SuppressDistanceDivisor int
}

// DefaultParams returns 721 angle bins of 2π/1440 centred on π/4, so the
// covered range is [-π/4, 3π/4].
func DefaultParams() Params {
	return Params{
		AngleStep:               2 * math.Pi / 1440,
		AngleShift:              math.Pi / 4,
		AngleSpan:               math.Pi,
		SuppressAngleDivisor:    6,
		SuppressDistanceDivisor: 12,
	}
}

// StraightLine is an accumulator peak: x·cos(Angle) + y·sin(Angle) = Distance.
type StraightLine struct {
	Distance int
	Angle    float64
	Vote     int

	AngleIndex    int
	DistanceIndex int
}

func (l StraightLine) String() string {
	return fmt.Sprintf("d=%d θ=%.4f votes=%d", l.Distance, l.Angle, l.Vote)
}

// Space is a Hough accumulator for an image of fixed size.
type Space struct {
	Params       Params
	Width        int
	Height       int
	Diagonal     int
	AngleBins    int
	DistanceBins int

	votes []int32 // AngleBins x DistanceBins, angle-major
	cos   []float64
	sin   []float64
}

// NewSpace allocates an empty accumulator for a width x height edge map.
func NewSpace(width, height int, params Params) *Space {
	diag := int(math.Ceil(math.Hypot(float64(width), float64(height))))
	angleBins := int(math.Round(params.AngleSpan/params.AngleStep)) + 1
	s := &Space{
		Params:       params,
		Width:        width,
		Height:       height,
		Diagonal:     diag,
		AngleBins:    angleBins,
		DistanceBins: 2*diag + 1,
		cos:          make([]float64, angleBins),
		sin:          make([]float64, angleBins),
	}
	s.votes = make([]int32, s.AngleBins*s.DistanceBins)
	for i := range angleBins {
		theta := s.Angle(i)
		s.cos[i] = math.Cos(theta)
		s.sin[i] = math.Sin(theta)
	}
	return s
}

// Angle returns the angle in radians of bin i.
func (s *Space) Angle(i int) float64 {
	centre := (s.AngleBins - 1) / 2
	return float64(i-centre)*s.Params.AngleStep + s.Params.AngleShift
}

// Votes returns the count stored at (angle bin, distance bin).
func (s *Space) Votes(angleIdx, distIdx int) int {
	return int(s.votes[angleIdx*s.DistanceBins+distIdx])
}

// Reset zeroes every cell.
func (s *Space) Reset() {
	clear(s.votes)
}

// Fill adds one vote per angle bin for every 255 pixel of edges. Each worker
// accumulates its row band into a private partial space; partials are summed
// after the join.
func (s *Space) Fill(edges *grayscale.Image, workers int) error {
	if edges.Width != s.Width || edges.Height != s.Height {
		return fmt.Errorf("hough: edge map %dx%d does not match space %dx%d",
			edges.Width, edges.Height, s.Width, s.Height)
	}

	bands := parallel.Plan(0, edges.Height, workers)
	partials := make([][]int32, len(bands))
	err := parallel.ForBands(bands, func(b parallel.Band) {
		acc := mempool.GetInt32(len(s.votes))
		for y := b.Start; y < b.End; y++ {
			for x, v := range edges.Row(y) {
				if v != 255 {
					continue
				}
				s.vote(acc, x, y)
			}
		}
		partials[b.Index] = acc
	})
	if err != nil {
		return fmt.Errorf("hough fill: %w", err)
	}

	for _, acc := range partials {
		for i, c := range acc {
			s.votes[i] += c
		}
		mempool.PutInt32(acc)
	}
	return nil
}

func (s *Space) vote(acc []int32, x, y int) {
	fx, fy := float64(x), float64(y)
	for i := range s.AngleBins {
		rho := int(math.Ceil(fx*s.cos[i]+fy*s.sin[i])) + s.Diagonal
		acc[i*s.DistanceBins+rho]++
	}
}

type peak struct {
	vote  int32
	angle int
	dist  int
	found bool
}

// ExtractStrongestLine returns the cell with the most votes among positive
// distances. Ties go to the first cell in angle-major scan order. Angle rows
// are reduced in parallel and the per-band winners merged in band order, so
// the result does not depend on the worker count.
func (s *Space) ExtractStrongestLine(workers int) (StraightLine, error) {
	bands := parallel.Plan(0, s.AngleBins, workers)
	best := make([]peak, len(bands))
	err := parallel.ForBands(bands, func(b parallel.Band) {
		var p peak
		for a := b.Start; a < b.End; a++ {
			row := s.votes[a*s.DistanceBins : (a+1)*s.DistanceBins]
			for d := s.Diagonal + 1; d < s.DistanceBins; d++ {
				if !p.found || row[d] > p.vote {
					p = peak{vote: row[d], angle: a, dist: d, found: true}
				}
			}
		}
		best[b.Index] = p
	})
	if err != nil {
		return StraightLine{}, fmt.Errorf("hough extract: %w", err)
	}

	var winner peak
	for _, p := range best {
		if p.found && (!winner.found || p.vote > winner.vote) {
			winner = p
		}
	}
	if !winner.found || winner.vote == 0 {
		return StraightLine{}, ErrNoLine
	}
	return StraightLine{
		Distance:      winner.dist - s.Diagonal,
		Angle:         s.Angle(winner.angle),
		Vote:          int(winner.vote),
		AngleIndex:    winner.angle,
		DistanceIndex: winner.dist,
	}, nil
}

// Suppress zeroes the half-open window [-ka, ka) x [-kd, kd) around the bin
// of line, clipped to the accumulator.
func (s *Space) Suppress(line StraightLine) {
	ka := max(1, s.AngleBins/s.Params.SuppressAngleDivisor)
	kd := max(1, s.DistanceBins/s.Params.SuppressDistanceDivisor)

	a0, a1 := max(0, line.AngleIndex-ka), min(s.AngleBins, line.AngleIndex+ka)
	d0, d1 := max(0, line.DistanceIndex-kd), min(s.DistanceBins, line.DistanceIndex+kd)
	for a := a0; a < a1; a++ {
		clear(s.votes[a*s.DistanceBins+d0 : a*s.DistanceBins+d1])
	}
}
