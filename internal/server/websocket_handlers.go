package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/matthew-graves/the-zyndicator/internal/store"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Scanning clients are phones on the local network and headless
		// scan runs without an Origin header.
		return true
	},
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// codeWebSocketHandler accepts code submissions over a websocket.
func (s *Server) codeWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	// Upgrade HTTP connection to WebSocket
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	// Increment active connections metric
	websocketConnections.Inc()
	defer websocketConnections.Dec()

	connID := uuid.NewString()
	log := slog.With("conn_id", connID, "remote_addr", getClientIP(r))
	log.Info("Scanner connected")
	defer log.Info("Scanner disconnected")

	s.handleWebSocketConnection(r.Context(), conn, log)
}

// handleWebSocketConnection processes messages from a WebSocket connection.
func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn, log *slog.Logger) {
	if s.maxMsgBytes > 0 {
		conn.SetReadLimit(s.maxMsgBytes)
	}
	// Set read deadline to prevent hanging connections
	_ = conn.SetReadDeadline(time.Now().Add(s.pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(s.pongWait))
		return nil
	})

	// Send ping messages to keep connection alive
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(s.pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	limiter := rate.NewLimiter(s.msgRate, s.msgBurst)
	for {
		// Read message from client
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error("WebSocket error", "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.pongWait))

		// Record message metric
		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(ctx, conn, limiter, log, data)
		}
	}
}

// handleWebSocketMessage decodes, validates and stores one code submission
// and writes exactly one status reply.
func (s *Server) handleWebSocketMessage(
	ctx context.Context,
	conn WebSocketConnWriter,
	limiter *rate.Limiter,
	log *slog.Logger,
	data []byte,
) {
	if limiter != nil && !limiter.Allow() {
		rateLimitHits.WithLabelValues("message").Inc()
		s.sendStatus(conn, StatusRateLimited, "rate limited", "")
		return
	}

	var msg CodeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendStatus(conn, StatusInvalid, "invalid: malformed message", "")
		return
	}
	msg.Payload = strings.TrimSpace(msg.Payload)
	if err := s.validate.Struct(msg); err != nil {
		s.sendStatus(conn, StatusInvalid, "invalid: "+describeValidation(err), "")
		return
	}

	code := msg.Payload
	start := time.Now()
	st, err := s.store.Add(ctx, code)
	storeAddDuration.Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, store.ErrEmptyCode), errors.Is(err, store.ErrInvalidCode):
		s.sendStatus(conn, StatusInvalid, "invalid: "+err.Error(), code)
	case err != nil:
		log.Error("Failed to write code", "code", code, "error", err)
		s.sendStatus(conn, string(store.StatusError), "write error", code)
	case st == store.StatusDuplicate:
		log.Info("Duplicate code", "code", code)
		s.sendStatus(conn, string(st), "duplicate: "+code, code)
	default:
		log.Info("Saved code", "code", code)
		s.sendStatus(conn, string(st), "saved: "+code, code)
	}
}

// describeValidation turns validator errors into a short reason.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "eq":
		return fmt.Sprintf("%s must be %q", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s longer than %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

// sendStatus writes a status reply over WebSocket.
func (s *Server) sendStatus(conn WebSocketConnWriter, status, payload, code string) {
	codesTotal.WithLabelValues(status).Inc()

	data, err := json.Marshal(StatusMessage{
		Event:   "status",
		Payload: payload,
		Status:  status,
		Code:    code,
	})
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}
