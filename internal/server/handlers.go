package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/flatdoc/internal/corners"
	"github.com/MeKo-Tech/flatdoc/internal/filters"
	"github.com/MeKo-Tech/flatdoc/internal/homography"
	"github.com/MeKo-Tech/flatdoc/internal/hough"
	"github.com/MeKo-Tech/flatdoc/internal/rectify"
	"github.com/MeKo-Tech/flatdoc/internal/utils"
	"github.com/MeKo-Tech/flatdoc/internal/version"
)

const formatJSON = "json"

// errTimeout is returned when rectification outlives the request timeout.
var errTimeout = errors.New("rectification timed out")

// inputErrors are caused by the uploaded photo or the configuration rather
// than by the server.
var inputErrors = []error{
	utils.ErrUnsupportedFormat,
	rectify.ErrEmptyImage,
	rectify.ErrNoContent,
	hough.ErrNoLine,
	corners.ErrCornerCount,
	homography.ErrAspectRatio,
	homography.ErrSingular,
	filters.ErrInvalidKernel,
}

// statusFor maps a rectification error to an HTTP status.
func statusFor(err error) int {
	if errors.Is(err, errTimeout) {
		return http.StatusGatewayTimeout
	}
	for _, target := range inputErrors {
		if errors.Is(err, target) {
			return http.StatusUnprocessableEntity
		}
	}
	return http.StatusInternalServerError
}

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// flattenHandler rectifies the multipart "image" field and answers with the
// encoded document, or its geometry for format=json.
func (s *Server) flattenHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	img, ok := s.parseImageRequest(w, r)
	if !ok {
		flattenRequestsTotal.WithLabelValues("http", "error").Inc()
		return
	}

	format := r.FormValue("format")
	opts := s.encode
	if format != "" && format != formatJSON {
		f, err := utils.ParseFormat(format)
		if err != nil {
			flattenRequestsTotal.WithLabelValues("http", "error").Inc()
			s.writeErrorResponse(w, err.Error(), "", http.StatusUnprocessableEntity)
			return
		}
		opts.Format = f
	}

	start := time.Now()
	res, err := s.process(r.Context(), nil, img)
	flattenDuration.WithLabelValues("http").Observe(time.Since(start).Seconds())
	if err != nil {
		flattenRequestsTotal.WithLabelValues("http", "error").Inc()
		s.writeProcessingError(w, err)
		return
	}
	flattenRequestsTotal.WithLabelValues("http", "ok").Inc()

	if format == formatJSON {
		writeJSON(w, http.StatusOK, newFlattenResponse(res))
		return
	}

	var buf bytes.Buffer
	if err := utils.EncodeGrayscale(&buf, res.Image, opts); err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("encoding failed: %v", err), "", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", opts.Format.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Flatdoc-Width", strconv.Itoa(res.Image.Width))
	w.Header().Set("X-Flatdoc-Height", strconv.Itoa(res.Image.Height))
	w.Header().Set("X-Flatdoc-Tilt", strconv.FormatFloat(newFlattenResponse(res).TiltDeg, 'f', 3, 64))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// parseImageRequest reads and decodes the uploaded photo. On failure the
// error response has been written.
func (s *Server) parseImageRequest(w http.ResponseWriter, r *http.Request) (image.Image, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes())

	if err := r.ParseMultipartForm(s.maxUploadBytes()); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "too large") {
			s.writeErrorResponse(w, "File too large", "", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, "Failed to parse form data", "", http.StatusBadRequest)
		}
		return nil, false
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, "No image file provided", "", http.StatusBadRequest)
		return nil, false
	}
	defer func() { _ = file.Close() }()
	uploadSizeBytes.Observe(float64(header.Size))

	img, _, err := utils.DecodeImage(file)
	if err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("Invalid image: %v", err), "", http.StatusUnprocessableEntity)
		return nil, false
	}
	return img, true
}

// process runs the rectifier under the request timeout. At most
// cap(s.slots) rectifications run at once; a run abandoned on timeout keeps
// its slot until it finishes. observe, when set, sees every finished stage.
func (s *Server) process(ctx context.Context, observe rectify.StageObserver, img image.Image) (*rectify.Result, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	select {
	case s.slots <- struct{}{}:
	case <-ctx.Done():
		slog.Warn("rectification not started", "in_flight", len(s.slots), "error", ctx.Err())
		return nil, fmt.Errorf("%w: no free worker: %w", errTimeout, ctx.Err())
	}
	rectificationsInFlight.Inc()

	var reached atomic.Value
	reached.Store("")
	r := s.rectifier.WithObserver(func(timing rectify.StageTiming, err error) {
		reached.Store(timing.Stage)
		if observe != nil {
			observe(timing, err)
		}
	})

	type outcome struct {
		res *rectify.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			rectificationsInFlight.Dec()
			<-s.slots
		}()
		res, err := r.Process(utils.ToGrayscale(img))
		done <- outcome{res, err}
	}()

	select {
	case o := <-done:
		return o.res, o.err
	case <-ctx.Done():
		slog.Warn("rectification abandoned",
			"last_stage", reached.Load(),
			"in_flight", len(s.slots),
			"error", ctx.Err())
		return nil, fmt.Errorf("%w: %w", errTimeout, ctx.Err())
	}
}

func (s *Server) writeProcessingError(w http.ResponseWriter, err error) {
	var stageErr *rectify.StageError
	stage := ""
	if errors.As(err, &stageErr) {
		stage = stageErr.Stage
	}
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("rectification failed", "stage", stage, "error", err)
	}
	s.writeErrorResponse(w, err.Error(), stage, status)
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message, stage string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{Success: false, Error: message, Stage: stage})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
