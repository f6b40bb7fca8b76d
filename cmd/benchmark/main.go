package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/flatdoc/internal/benchmark"
	"github.com/MeKo-Tech/flatdoc/internal/filters"
)

func main() {
	var (
		scales     = flag.String("scales", "1,2,4", "Comma-separated document scales (1 = 300x400 photo)")
		workers    = flag.String("workers", "1,2,4", "Comma-separated worker counts")
		iterations = flag.Int("iterations", 3, "Number of iterations per benchmark")
		kernel     = flag.String("kernel", "sobel", "Gradient kernel (sobel, prewitt, scharr)")
		outputFile = flag.String("output", "", "Write results as CSV to this file (optional)")
		asJSON     = flag.Bool("json", false, "Print results as JSON instead of text")
	)
	flag.Parse()

	cfg := benchmark.DefaultScalingConfig()
	cfg.Iterations = *iterations

	var err error
	if cfg.Scales, err = parseInts(*scales); err != nil {
		log.Fatalf("Invalid -scales: %v", err)
	}
	if cfg.Workers, err = parseInts(*workers); err != nil {
		log.Fatalf("Invalid -workers: %v", err)
	}
	if cfg.Rectify.Kernel, err = filters.KernelByName(*kernel); err != nil {
		log.Fatalf("Invalid -kernel: %v", err)
	}

	var progress io.Writer = os.Stdout
	if *asJSON {
		progress = nil
	} else {
		fmt.Println("flatdoc Rectification Benchmark")
		fmt.Println("===============================")
		fmt.Printf("Running %d iterations per document size and worker count...\n\n", cfg.Iterations)
	}

	results, err := benchmark.RunScaling(cfg, progress)
	if err != nil {
		log.Fatalf("Benchmark failed: %v", err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			log.Fatalf("Failed to encode results: %v", err)
		}
	}

	if *outputFile != "" {
		if err := saveResultsToFile(*outputFile, results); err != nil {
			log.Printf("Failed to save results to file: %v", err)
		} else if !*asJSON {
			fmt.Printf("\nResults saved to: %s\n", *outputFile)
		}
	}
}

func parseInts(list string) ([]int, error) {
	var out []int
	for s := range strings.SplitSeq(list, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty list")
	}
	return out, nil
}

func saveResultsToFile(filename string, results []benchmark.ScalingResult) error {
	file, err := os.Create(filename) //nolint:gosec // G304: path given on the command line
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	return benchmark.WriteCSV(file, results)
}
