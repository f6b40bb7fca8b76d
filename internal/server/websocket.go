package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/flatdoc/internal/rectify"
	"github.com/MeKo-Tech/flatdoc/internal/utils"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsWriteWait  = 10 * time.Second
)

// WebSocket message types.
const (
	wsTypeConfig = "config"
	wsTypeStage  = "stage"
	wsTypeResult = "result"
	wsTypeError  = "error"
)

// WebSocketConfig is a text message that changes the output format for the
// following images on the connection.
type WebSocketConfig struct {
	Format      string `json:"format"`
	JPEGQuality int    `json:"jpeg_quality,omitempty"`
}

// WebSocketMessage is every JSON message the server sends. A result message
// is followed by one binary message with the encoded document.
type WebSocketMessage struct {
	Type       string           `json:"type"`
	Stage      string           `json:"stage,omitempty"`
	Index      int              `json:"index,omitempty"` // 1-based stage number
	Total      int              `json:"total,omitempty"`
	DurationMS float64          `json:"duration_ms,omitempty"`
	Format     string           `json:"format,omitempty"`
	Result     *FlattenResponse `json:"result,omitempty"`
	Error      string           `json:"error,omitempty"`
	Status     int              `json:"status,omitempty"`
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.corsOrigin == "*" || origin == s.corsOrigin
		},
	}
}

// flattenWebSocketHandler streams stage progress for every binary image
// message and answers with the rectified document.
func (s *Server) flattenWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()
	slog.Debug("websocket connection established", "remote_addr", r.RemoteAddr)

	conn.SetReadLimit(s.maxUploadBytes())
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			}
		}
	}()
	defer func() {
		close(done)
		wg.Wait()
	}()

	sess := &wsSession{server: s, conn: conn, encode: s.encode}
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket read failed", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()

		var werr error
		switch messageType {
		case websocket.TextMessage:
			werr = sess.configure(data)
		case websocket.BinaryMessage:
			werr = sess.flatten(r, data)
		}
		if werr != nil {
			slog.Debug("websocket write failed", "error", werr)
			return
		}
	}
}

// wsSession is the per-connection state. Data messages are written by one
// goroutine at a time.
type wsSession struct {
	server *Server
	conn   *websocket.Conn
	encode utils.EncodeOptions
}

func (c *wsSession) send(msg WebSocketMessage) error {
	websocketMessagesTotal.WithLabelValues("sent").Inc()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteJSON(msg)
}

func (c *wsSession) sendError(status int, stage string, err error) error {
	return c.send(WebSocketMessage{Type: wsTypeError, Stage: stage, Status: status, Error: err.Error()})
}

func (c *wsSession) configure(data []byte) error {
	var cfg WebSocketConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return c.sendError(http.StatusBadRequest, "", fmt.Errorf("invalid config message: %w", err))
	}
	f, err := utils.ParseFormat(cfg.Format)
	if err != nil {
		return c.sendError(http.StatusUnprocessableEntity, "", err)
	}
	c.encode.Format = f
	if cfg.JPEGQuality > 0 {
		c.encode.JPEGQuality = cfg.JPEGQuality
	}
	return c.send(WebSocketMessage{Type: wsTypeConfig, Format: string(f)})
}

func (c *wsSession) flatten(r *http.Request, data []byte) error {
	uploadSizeBytes.Observe(float64(len(data)))

	img, _, err := utils.DecodeImage(bytes.NewReader(data))
	if err != nil {
		flattenRequestsTotal.WithLabelValues("websocket", "error").Inc()
		return c.sendError(http.StatusUnprocessableEntity, "", err)
	}

	// Stage messages are sent from the observer, which runs on the
	// rectifying goroutine; the reader is blocked in process meanwhile.
	var sendErr error
	total := len(rectify.Stages)
	index := 0
	observe := func(timing rectify.StageTiming, err error) {
		index++
		if err != nil || sendErr != nil {
			return
		}
		sendErr = c.send(WebSocketMessage{
			Type:       wsTypeStage,
			Stage:      timing.Stage,
			Index:      index,
			Total:      total,
			DurationMS: float64(timing.Duration.Microseconds()) / 1000,
		})
	}

	start := time.Now()
	res, err := c.server.process(r.Context(), observe, img)
	flattenDuration.WithLabelValues("websocket").Observe(time.Since(start).Seconds())
	if errors.Is(err, errTimeout) {
		// The abandoned run may still invoke the observer; drop the connection.
		flattenRequestsTotal.WithLabelValues("websocket", "error").Inc()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()), time.Now().Add(wsWriteWait))
		return err
	}
	if sendErr != nil {
		return sendErr
	}
	if err != nil {
		flattenRequestsTotal.WithLabelValues("websocket", "error").Inc()
		var stageErr *rectify.StageError
		stage := ""
		if errors.As(err, &stageErr) {
			stage = stageErr.Stage
		}
		return c.sendError(statusFor(err), stage, err)
	}
	flattenRequestsTotal.WithLabelValues("websocket", "ok").Inc()

	var buf bytes.Buffer
	if err := utils.EncodeGrayscale(&buf, res.Image, c.encode); err != nil {
		return c.sendError(http.StatusInternalServerError, "", err)
	}
	resp := newFlattenResponse(res)
	if err := c.send(WebSocketMessage{Type: wsTypeResult, Format: string(c.encode.Format), Result: &resp}); err != nil {
		return err
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteMessage(websocket.BinaryMessage, buf.Bytes())
}
