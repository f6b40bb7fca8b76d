package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// SummaryFormats lists the formats FormatResults understands.
var SummaryFormats = []string{"text", "json", "csv"}

// CheckSummaryFormat reports an error for a format FormatResults rejects.
func CheckSummaryFormat(format string) error {
	if format == "" || slices.Contains(SummaryFormats, format) {
		return nil
	}
	return fmt.Errorf("unknown summary format %q (must be one of: %s)", format, strings.Join(SummaryFormats, ", "))
}

// FormatResults renders r as "text", "json" or "csv".
func (r *Result) FormatResults(format string) (string, error) {
	if err := CheckSummaryFormat(format); err != nil {
		return "", err
	}
	switch format {
	case "json":
		return formatJSON(r)
	case "csv":
		return formatCSV(r)
	default:
		return formatText(r), nil
	}
}

type jsonFile struct {
	Input      string  `json:"input"`
	Page       int     `json:"page,omitempty"`
	Output     string  `json:"output,omitempty"`
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
	TiltDeg    float64 `json:"tilt_deg"`
	DurationMS float64 `json:"duration_ms"`
	Error      string  `json:"error,omitempty"`
}

type jsonSummary struct {
	Files      []jsonFile `json:"files"`
	Total      int        `json:"total"`
	Failed     int        `json:"failed"`
	Workers    int        `json:"workers"`
	DurationMS float64    `json:"duration_ms"`
	PerSecond  float64    `json:"per_second"`
	AllocKB    uint64     `json:"alloc_kb"`
}

func formatJSON(r *Result) (string, error) {
	summary := jsonSummary{
		Files:      make([]jsonFile, len(r.Files)),
		Total:      len(r.Files),
		Failed:     r.Failed(),
		Workers:    r.Stats.Workers,
		DurationMS: millis(r.Stats.Duration),
		PerSecond:  r.Stats.Throughput(),
		AllocKB:    r.Stats.AllocatedKB(),
	}
	for i, f := range r.Files {
		jf := jsonFile{
			Input:      f.Input,
			Page:       f.Page,
			TiltDeg:    degrees(f.Tilt),
			DurationMS: millis(f.Duration),
		}
		if f.Err != nil {
			jf.Error = f.Err.Error()
		} else {
			jf.Output, jf.Width, jf.Height = f.Output, f.Width, f.Height
		}
		summary.Files[i] = jf
	}

	bts, err := json.MarshalIndent(summary, "", "  ")
	return string(bts), err
}

func formatCSV(r *Result) (string, error) {
	var output strings.Builder
	writer := csv.NewWriter(&output)
	rows := [][]string{{"input", "output", "width", "height", "tilt_deg", "duration_ms", "error", "page"}}
	for _, f := range r.Files {
		errText, out := "", f.Output
		if f.Err != nil {
			errText, out = f.Err.Error(), ""
		}
		rows = append(rows, []string{
			f.Input,
			out,
			strconv.Itoa(f.Width),
			strconv.Itoa(f.Height),
			strconv.FormatFloat(degrees(f.Tilt), 'f', 3, 64),
			strconv.FormatFloat(millis(f.Duration), 'f', 1, 64),
			errText,
			strconv.Itoa(f.Page),
		})
	}
	if err := writer.WriteAll(rows); err != nil {
		return "", err
	}
	return output.String(), nil
}

func formatText(r *Result) string {
	var output strings.Builder
	for _, f := range r.Files {
		input := f.Input
		if f.Page > 0 {
			input = fmt.Sprintf("%s[p%d]", f.Input, f.Page)
		}
		if f.Err != nil {
			fmt.Fprintf(&output, "FAIL %s: %v\n", input, f.Err)
			continue
		}
		fmt.Fprintf(&output, "ok   %s -> %s (%dx%d, tilt %.2f°, %v)\n",
			input, f.Output, f.Width, f.Height, degrees(f.Tilt), f.Duration.Round(time.Millisecond))
	}
	fmt.Fprintf(&output, "\nProcessing Statistics:\n")
	fmt.Fprintf(&output, "  Total documents: %d\n", len(r.Files))
	fmt.Fprintf(&output, "  Failed: %d\n", r.Failed())
	fmt.Fprintf(&output, "  Workers: %d\n", r.Stats.Workers)
	fmt.Fprintf(&output, "  Duration: %v\n", r.Stats.Duration.Round(time.Millisecond))
	fmt.Fprintf(&output, "  Throughput: %.1f documents/sec\n", r.Stats.Throughput())
	fmt.Fprintf(&output, "  Allocated: %d KB\n", r.Stats.AllocatedKB())
	return output.String()
}

func millis(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }

func degrees(rad float64) float64 { return rad * 180 / math.Pi }

// WriteSummary writes the formatted results to w.
func (r *Result) WriteSummary(w io.Writer, format string) error {
	out, err := r.FormatResults(format)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}
