// Package server exposes the rectifier over HTTP and WebSocket.
package server

import (
	"fmt"
	"math"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/flatdoc/internal/geometry"
	"github.com/MeKo-Tech/flatdoc/internal/rectify"
	"github.com/MeKo-Tech/flatdoc/internal/utils"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	rectifier   *rectify.Rectifier
	encode      utils.EncodeOptions
	corsOrigin  string
	maxUploadMB int64
	timeout     time.Duration
	slots       chan struct{}
	rateLimiter *RateLimiter
}

// Config holds server configuration.
type Config struct {
	Host          string
	Port          int
	CORSOrigin    string
	MaxUploadMB   int64
	TimeoutSec    int
	MaxConcurrent int // simultaneous rectifications (0 = runtime.NumCPU())
	Rectify       rectify.Config
	Encode        utils.EncodeOptions
	RateLimit     RateLimitConfig
}

// Addr returns host:port.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Stage   string `json:"stage,omitempty"`
}

// Point is a pixel coordinate in a JSON response.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// FlattenResponse describes a rectification without the pixels. It is the
// body of format=json requests and the result message on the WebSocket.
type FlattenResponse struct {
	Success    bool               `json:"success"`
	Width      int                `json:"width"`
	Height     int                `json:"height"`
	Corners    []Point            `json:"corners"` // TL, TR, BR, BL in the input
	Target     []Point            `json:"target"`
	TiltDeg    float64            `json:"tilt_deg"`
	Homography [3][3]float64      `json:"homography"`
	Crop       rectify.Bounds     `json:"crop"`
	TimingsMS  map[string]float64 `json:"timings_ms"`
}

func points(ps [4]geometry.Point) []Point {
	out := make([]Point, len(ps))
	for i, p := range ps {
		out[i] = Point{X: p.X, Y: p.Y}
	}
	return out
}

func newFlattenResponse(res *rectify.Result) FlattenResponse {
	timings := make(map[string]float64, len(res.Timings))
	for _, st := range res.Timings {
		timings[st.Stage] = float64(st.Duration.Microseconds()) / 1000
	}
	return FlattenResponse{
		Success:    true,
		Width:      res.Image.Width,
		Height:     res.Image.Height,
		Corners:    points(res.Corners),
		Target:     points(res.Target),
		TiltDeg:    res.Tilt * 180 / math.Pi,
		Homography: res.Homography.Normalized(),
		Crop:       res.Crop,
		TimingsMS:  timings,
	}
}

// NewServer creates a new server instance.
func NewServer(config Config) (*Server, error) {
	r, err := rectify.New(config.Rectify)
	if err != nil {
		return nil, err
	}
	if config.Encode.Format == "" {
		config.Encode = utils.DefaultEncodeOptions()
	}
	if _, err := utils.ParseFormat(string(config.Encode.Format)); err != nil {
		return nil, fmt.Errorf("invalid output format: %w", err)
	}
	if config.MaxUploadMB <= 0 {
		return nil, fmt.Errorf("max upload size must be positive, got %d MB", config.MaxUploadMB)
	}
	if config.MaxConcurrent < 0 {
		return nil, fmt.Errorf("max concurrent rectifications must not be negative, got %d", config.MaxConcurrent)
	}
	if config.MaxConcurrent == 0 {
		config.MaxConcurrent = runtime.NumCPU()
	}

	s := &Server{
		rectifier:   r,
		encode:      config.Encode,
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: config.MaxUploadMB,
		timeout:     time.Duration(config.TimeoutSec) * time.Second,
		slots:       make(chan struct{}, config.MaxConcurrent),
	}
	if config.RateLimit.Enabled {
		s.rateLimiter = NewRateLimiter(config.RateLimit)
	}
	return s, nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/v1/flatten", s.corsMiddleware(s.rateLimitMiddleware(s.flattenHandler)))
	mux.HandleFunc("/v1/flatten/ws", s.rateLimitMiddleware(s.flattenWebSocketHandler))
}

// Handler returns a mux with all routes installed.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

func (s *Server) maxUploadBytes() int64 {
	return s.maxUploadMB * 1024 * 1024
}
