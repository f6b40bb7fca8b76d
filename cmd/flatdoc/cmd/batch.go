package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/flatdoc/internal/batch"
)

const (
	progressBar  = "bar"
	progressLog  = "log"
	progressNone = "none"
)

func newBatchCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <file|dir>...",
		Short: "Rectify many document photos in parallel",
		Long: `Rectify every supported image named on the command line or found in the
given directories. Files are processed by a pool of workers; the summary
lists every document in input order.

PDFs are rectified page by page: every image on the pages selected with
--pages is written as <name>_p<page><suffix>.<ext>, a second image on the
same page as <name>_p<page>_2<suffix>.<ext>.

Without --continue-on-error the first failure stops the run and the
remaining documents are reported as skipped.

Examples:
  flatdoc batch photos/
  flatdoc batch photos/ --recursive --output-dir flat/ --workers 8
  flatdoc batch a.jpg b.jpg --format tiff --summary json
  flatdoc batch scans/contract.pdf --pages 1-3
  flatdoc batch photos/ --include "*.jpg" --exclude "*_flat*" --summary csv --summary-file report.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBatch(cmd, args)
		},
	}

	f := cmd.Flags()
	f.String("output-dir", "", "directory for results (default next to each input)")
	f.Int("workers", 4, "documents processed concurrently")
	f.BoolP("recursive", "r", false, "descend into sub-directories")
	f.Bool("continue-on-error", false, "keep going after a document fails")
	f.StringSlice("include", nil, "only process files whose name matches one of these patterns")
	f.StringSlice("exclude", nil, "skip files whose name matches one of these patterns")
	f.String("pages", "", "PDF pages to rectify, e.g. 1,3-5 (default all)")
	f.Bool("keep-format", false, "write each result in its input format (WebP becomes PNG)")
	f.String("progress", progressBar, "progress reporting: bar, log or none")
	f.String("summary", "text", "summary format: text, json or csv")
	f.String("summary-file", "", "write the summary to this file instead of stdout")
	addRectifyFlags(f)
	addOutputFlags(f)
	return cmd
}

func (a *app) runBatch(cmd *cobra.Command, args []string) error {
	cfg := *a.cfg
	applyRectifyFlags(cmd, &cfg)
	applyOutputFlags(cmd, &cfg)

	flags := cmd.Flags()
	if flags.Changed("output-dir") {
		cfg.Batch.OutputDir, _ = flags.GetString("output-dir")
	}
	if flags.Changed("workers") {
		cfg.Batch.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("recursive") {
		cfg.Batch.Recursive, _ = flags.GetBool("recursive")
	}
	if flags.Changed("continue-on-error") {
		cfg.Batch.ContinueOnError, _ = flags.GetBool("continue-on-error")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	bc, err := cfg.ToBatchConfig()
	if err != nil {
		return err
	}
	bc.IncludePatterns, _ = flags.GetStringSlice("include")
	bc.ExcludePatterns, _ = flags.GetStringSlice("exclude")
	bc.Pages, _ = flags.GetString("pages")
	if keep, _ := flags.GetBool("keep-format"); keep {
		bc.Encode.Format = ""
	}

	progress, _ := flags.GetString("progress")
	switch progress {
	case progressBar:
		bc.Progress = batch.NewConsoleProgressCallback(cmd.ErrOrStderr(), "")
	case progressLog:
		bc.Progress = batch.NewLogProgressCallback(slog.Default(), slog.LevelInfo)
	case progressNone:
	default:
		return fmt.Errorf("invalid progress mode %q (must be bar, log or none)", progress)
	}

	summary, _ := flags.GetString("summary")
	if err := batch.CheckSummaryFormat(summary); err != nil {
		return err
	}

	res, runErr := batch.Run(cmd.Context(), args, bc)
	if res == nil {
		return runErr
	}

	summaryFile, _ := flags.GetString("summary-file")
	if err := writeSummary(cmd.OutOrStdout(), summaryFile, res, summary); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	if n := res.Failed(); n > 0 {
		return fmt.Errorf("%d of %d documents failed", n, len(res.Files))
	}
	return nil
}

func writeSummary(stdout io.Writer, path string, res *batch.Result, format string) (err error) {
	if path == "" {
		return res.WriteSummary(stdout, format)
	}
	f, err := os.Create(path) //nolint:gosec // G304: summary path is provided by the user
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err := res.WriteSummary(f, format); err != nil {
		return err
	}
	slog.Info("summary written", "path", path, "format", format)
	return nil
}
