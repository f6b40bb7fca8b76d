package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/flatdoc/internal/server"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and WebSocket server",
		Long: `Start an HTTP server that rectifies uploaded document photos.

The server provides the following endpoints:
  POST /v1/flatten     - Rectify an uploaded image (multipart field "image")
  GET  /v1/flatten/ws  - WebSocket session streaming stage progress
  GET  /health         - Health check endpoint
  GET  /metrics        - Prometheus metrics

Examples:
  flatdoc serve
  flatdoc serve --port 8080
  flatdoc serve --host 0.0.0.0 --port 3000 --rate-limit-enabled`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(cmd)
		},
	}

	f := cmd.Flags()
	f.StringP("host", "H", "localhost", "server host")
	f.IntP("port", "p", 8080, "server port")
	f.String("cors-origin", "*", "CORS allowed origins")
	f.Int("max-upload-size", 50, "maximum upload size in MB")
	f.Int("timeout", 30, "request timeout in seconds")
	f.Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	f.Int("max-concurrent", 0, "maximum simultaneous rectifications (0 = number of CPUs)")
	f.String("kernel", "sobel", "gradient kernel: sobel, prewitt or scharr")
	f.StringP("format", "f", "png", "default response format: png, jpeg, bmp or tiff")
	// Rate limiting flags
	f.Bool("rate-limit-enabled", false, "enable rate limiting")
	f.Int("requests-per-minute", 60, "maximum requests per minute per client")
	f.Int("requests-per-hour", 1000, "maximum requests per hour per client")
	f.Int("requests-per-day", 0, "maximum requests per day per client (0 = unlimited)")
	f.Int64("max-mb-per-day", 0, "maximum upload volume per day per client in MB (0 = unlimited)")
	return cmd
}

func (a *app) runServe(cmd *cobra.Command) error {
	cfg := *a.cfg
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("cors-origin") {
		cfg.Server.CORSOrigin, _ = flags.GetString("cors-origin")
	}
	if flags.Changed("max-upload-size") {
		cfg.Server.MaxUploadMB, _ = flags.GetInt("max-upload-size")
	}
	if flags.Changed("timeout") {
		cfg.Server.TimeoutSec, _ = flags.GetInt("timeout")
	}
	if flags.Changed("shutdown-timeout") {
		cfg.Server.ShutdownTimeout, _ = flags.GetInt("shutdown-timeout")
	}
	if flags.Changed("max-concurrent") {
		cfg.Server.MaxConcurrent, _ = flags.GetInt("max-concurrent")
	}
	if flags.Changed("kernel") {
		cfg.Rectify.Kernel, _ = flags.GetString("kernel")
	}
	if flags.Changed("format") {
		cfg.Output.Format, _ = flags.GetString("format")
	}
	if flags.Changed("rate-limit-enabled") {
		cfg.Server.RateLimit.Enabled, _ = flags.GetBool("rate-limit-enabled")
	}
	if flags.Changed("requests-per-minute") {
		cfg.Server.RateLimit.RequestsPerMinute, _ = flags.GetInt("requests-per-minute")
	}
	if flags.Changed("requests-per-hour") {
		cfg.Server.RateLimit.RequestsPerHour, _ = flags.GetInt("requests-per-hour")
	}
	if flags.Changed("requests-per-day") {
		cfg.Server.RateLimit.RequestsPerDay, _ = flags.GetInt("requests-per-day")
	}
	if flags.Changed("max-mb-per-day") {
		cfg.Server.RateLimit.MaxMBPerDay, _ = flags.GetInt64("max-mb-per-day")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	sc, err := cfg.ToServerConfig()
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", sc.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", sc.Addr(), err)
	}
	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	return serve(cmd.Context(), sc, shutdownTimeout, ln)
}

// serve runs the server on ln until ctx is cancelled, then shuts it down
// gracefully within shutdownTimeout.
func serve(ctx context.Context, sc server.Config, shutdownTimeout time.Duration, ln net.Listener) error {
	srv, err := server.NewServer(sc)
	if err != nil {
		_ = ln.Close()
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	timeout := time.Duration(sc.TimeoutSec) * time.Second
	httpServer := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
		// Responses may be written after the processing timeout expired.
		WriteTimeout: timeout + 5*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting flatdoc server", "addr", ln.Addr().String())
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("Shutdown requested", "reason", context.Cause(ctx))
	}

	slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
		return err
	}
	slog.Info("Graceful shutdown completed")
	return nil
}
