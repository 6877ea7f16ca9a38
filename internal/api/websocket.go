package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	apperrors "github.com/anilpdv/video-downloader/internal/errors"
	"github.com/anilpdv/video-downloader/internal/events"
	"github.com/anilpdv/video-downloader/internal/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The server binds to localhost for the desktop client, so any
		// origin the OS lets through is acceptable.
		return true
	},
}

// WSHandler streams job events to WebSocket clients. Each connection gets
// its own bridge subscription, so a stalled client sheds its own progress
// events without affecting anyone else.
type WSHandler struct {
	bridge *events.Bridge
	log    *logger.Logger
}

func NewWSHandler(bridge *events.Bridge) *WSHandler {
	return &WSHandler{
		bridge: bridge,
		log:    logger.Default().WithComponent("websocket"),
	}
}

// ServeWS handles GET /ws. An optional job_id query parameter narrows the
// stream to a single job; without it the client sees every job.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	requestID := logger.GetRequestID(r.Context())

	jobID := uuid.Nil
	if raw := r.URL.Query().Get("job_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			apperrors.WriteError(w, requestID, apperrors.BadRequest("invalid job_id"))
			return
		}
		jobID = id
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket upgrade failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	sub := h.bridge.Subscribe(jobID)

	go h.writePump(conn, sub)
	go h.readPump(conn, sub)
}

// writePump forwards bridge events to the connection and keeps it alive
// with pings. It owns all writes on the connection.
func (h *WSHandler) writePump(conn *websocket.Conn, sub *events.Subscription) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sub.Close()
		conn.Close()
	}()

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames and tears the subscription down when
// the peer goes away.
func (h *WSHandler) readPump(conn *websocket.Conn, sub *events.Subscription) {
	defer func() {
		sub.Close()
		conn.Close()
	}()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
