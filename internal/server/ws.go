package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/voicesportstat/audio-gateway/internal/metrics"
	"github.com/voicesportstat/audio-gateway/internal/protocol"
	"github.com/voicesportstat/audio-gateway/internal/session"
)

// wsSender adapts a websocket connection to the session.Sender
// interface. Writes are serialized; gorilla connections allow only one
// concurrent writer.
type wsSender struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

func (s *wsSender) Send(event *protocol.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return websocket.ErrCloseSent
	}

	data, err := event.Encode()
	if err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame; the underlying connection is torn down by
// the read loop once the peer responds or the handler returns.
func (s *wsSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "recording complete"))
}

// WSHandler upgrades HTTP requests to websocket audio sessions and runs
// each connection's read loop.
type WSHandler struct {
	registry  *session.Registry
	logger    *slog.Logger
	metrics   *metrics.Metrics
	upgrader  websocket.Upgrader
	readLimit int64
}

// NewWSHandler creates the websocket ingestion handler. readLimit bounds
// a single inbound frame in bytes; <= 0 disables the limit.
func NewWSHandler(registry *session.Registry, logger *slog.Logger, m *metrics.Metrics, readLimit int64) *WSHandler {
	return &WSHandler{
		registry: registry,
		logger:   logger,
		metrics:  m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 8 * 1024,
			// Browser clients connect from arbitrary origins; access
			// control belongs to the deployment's edge, not here.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		readLimit: readLimit,
	}
}

// ServeHTTP handles one websocket connection for its whole lifetime. The
// read loop is the session's processing context: events are handled
// strictly in arrival order, one at a time.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		return
	}
	defer conn.Close()

	if h.readLimit > 0 {
		conn.SetReadLimit(h.readLimit)
	}

	sessionID := uuid.NewString()
	sender := &wsSender{conn: conn}

	sess, err := h.registry.Create(sessionID, sender)
	if err != nil {
		h.logger.Warn("Rejecting connection",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		_ = sender.Send(protocol.NewErrorEvent("Server at capacity, try again later"))
		return
	}

	h.logger.Info("Session connected",
		slog.String("session_id", sessionID),
		slog.String("remote_addr", r.RemoteAddr),
	)

	ctx := context.Background()

	// Finalization runs on every teardown path: explicit end_recording,
	// client disconnect, read error. Finalize is idempotent.
	defer func() {
		sess.Finalize(ctx)
		h.registry.Remove(sessionID)
		h.logger.Info("Session disconnected", slog.String("session_id", sessionID))
	}()

	if err := sender.Send(protocol.NewConnectionEvent(sessionID)); err != nil {
		h.logger.Warn("Failed to send connection event",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("WebSocket read error",
					slog.String("session_id", sessionID),
					slog.String("error", err.Error()),
				)
			}
			return
		}

		msg, err := protocol.ParseMessage(data)
		if err != nil {
			// Malformed events are recoverable: report and keep the
			// session alive.
			h.logger.Warn("Malformed client event",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()),
			)
			if h.metrics != nil {
				h.metrics.RecordProtocolError()
			}
			_ = sender.Send(protocol.NewErrorEvent("Invalid message format"))
			continue
		}

		sess.HandleMessage(ctx, msg)

		if sess.State() == session.StateClosed {
			return
		}
	}
}
