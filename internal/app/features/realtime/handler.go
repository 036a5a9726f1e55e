// internal/app/features/realtime/handler.go
package realtime

import (
	"net/http"

	"github.com/dalemusser/crewhub/internal/app/realtime"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler upgrades HTTP requests to WebSocket connections and hands
// them to the realtime service. Session validation happens upstream;
// the user id arrives with the join-room message and is trusted here.
type Handler struct {
	Service *realtime.Service
	Log     *zap.Logger

	// ReadLimit caps inbound message size; zero means the default.
	ReadLimit int64

	upgrader websocket.Upgrader
}

// NewHandler creates a WebSocket handler backed by the realtime service.
func NewHandler(svc *realtime.Service, logger *zap.Logger) *Handler {
	return &Handler{
		Service: svc,
		Log:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The app is served same-origin behind the session layer;
			// origin enforcement lives with it.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS handles GET /ws. Each connection gets a fresh connection id
// and its own read/write pumps; everything after the upgrade is the
// logical join/leave/heartbeat protocol.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	readLimit := h.ReadLimit
	if readLimit <= 0 {
		readLimit = defaultReadLimit
	}

	c := &client{
		id:        uuid.NewString(),
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		done:      make(chan struct{}),
		svc:       h.Service,
		log:       h.Log,
		readLimit: readLimit,
	}
	h.Service.Register(c.id, c)

	go c.writePump()
	go c.readPump()
}
