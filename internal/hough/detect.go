package hough

import (
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/flatdoc/internal/grayscale"
)

// LineCount is the number of document boundary lines.
const LineCount = 4

// DetectFourLines fills a fresh accumulator from edges and extracts the four
// strongest lines, suppressing the neighbourhood of each one before looking
// for the next. Distances are rescaled by scale to the original image
// resolution as int(d*scale)+2.
func DetectFourLines(edges *grayscale.Image, scale float64, params Params, workers int) ([LineCount]StraightLine, error) {
	var lines [LineCount]StraightLine

	space := NewSpace(edges.Width, edges.Height, params)
	if err := space.Fill(edges, workers); err != nil {
		return lines, err
	}

	for i := range LineCount {
		line, err := space.ExtractStrongestLine(workers)
		if err != nil {
			return lines, fmt.Errorf("line %d: %w", i+1, err)
		}
		space.Suppress(line)

		slog.Debug("hough line", "index", i, "distance", line.Distance, "angle", line.Angle, "votes", line.Vote)
		line.Distance = int(float64(line.Distance)*scale) + 2
		lines[i] = line
	}
	return lines, nil
}
