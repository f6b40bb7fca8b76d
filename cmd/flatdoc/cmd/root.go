package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/flatdoc/internal/config"
	"github.com/MeKo-Tech/flatdoc/internal/version"
)

// skipConfigAnnotation marks commands that must run without a valid
// configuration, such as writing a fresh one.
const skipConfigAnnotation = "flatdoc/skip-config"

// app carries the state shared by one command tree.
type app struct {
	v       *viper.Viper
	loader  *config.Loader
	cfgFile string
	cfg     *config.Config
}

// NewRootCommand builds the flatdoc command tree with its own configuration
// state, so several trees can run in one process.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}
	a.loader = config.NewLoaderWith(a.v)

	rootCmd := &cobra.Command{
		Use:   "flatdoc",
		Short: "Perspective correction for photographed documents",
		Long: `flatdoc finds the sheet of paper in a photograph, undoes the perspective
distortion and writes a flat, upright, cropped grayscale scan.

This tool provides:
- Single image rectification with optional geometry output
- Parallel batch processing of files and directories
- An HTTP and WebSocket server

Examples:
  flatdoc flatten photo.jpg
  flatdoc batch photos/ --output-dir flat/ --recursive
  flatdoc serve --port 8080`,
		SilenceUsage:      true,
		PersistentPreRunE: a.initialize,
		RunE: func(cmd *cobra.Command, args []string) error {
			if v, _ := cmd.Flags().GetBool("version"); v {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Info().String())
				return nil
			}
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "",
		"config file (default is search in ., $HOME, $HOME/.config/flatdoc, /etc/flatdoc)")
	pf.BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.Flags().Bool("version", false, "print version information and exit")

	_ = a.v.BindPFlag("verbose", pf.Lookup("verbose"))
	_ = a.v.BindPFlag("log_level", pf.Lookup("log-level"))

	rootCmd.AddCommand(
		newFlattenCommand(a),
		newBatchCommand(a),
		newServeCommand(a),
		newConfigCommand(a),
		newVersionCommand(),
	)
	return rootCmd
}

// Execute runs the command tree and exits non-zero on failure. SIGINT and
// SIGTERM cancel the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// initialize loads the configuration and installs the JSON logger on stderr.
func (a *app) initialize(cmd *cobra.Command, _ []string) error {
	if cmd.Annotations[skipConfigAnnotation] == "true" {
		cfg := config.DefaultConfig()
		a.cfg = &cfg
		slog.SetDefault(newLogger(cmd.ErrOrStderr(), &cfg))
		return nil
	}

	var (
		cfg *config.Config
		err error
	)
	if a.cfgFile != "" {
		cfg, err = a.loader.LoadWithFile(a.cfgFile)
	} else {
		cfg, err = a.loader.Load()
	}
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	a.cfg = cfg
	slog.SetDefault(newLogger(cmd.ErrOrStderr(), cfg))
	return nil
}

func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel(cfg)}))
}

// logLevel maps the configuration to a slog level; verbose wins.
func logLevel(cfg *config.Config) slog.Level {
	if cfg.Verbose {
		return slog.LevelDebug
	}
	switch cfg.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Annotations: map[string]string{
			skipConfigAnnotation: "true",
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return writeJSON(cmd.OutOrStdout(), version.Info())
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Info().String())
			return err
		},
	}
	cmd.Flags().Bool("json", false, "print build information as JSON")
	return cmd
}
