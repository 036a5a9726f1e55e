// internal/app/features/realtime/client.go
package realtime

import (
	"encoding/json"
	"time"

	"github.com/dalemusser/crewhub/internal/app/realtime"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Default cap on inbound message size. Client messages are small
	// JSON control frames; anything larger is abuse.
	defaultReadLimit = 1024

	// Outbound buffer per connection. When it fills, messages are
	// dropped rather than blocking the broadcaster.
	sendBuffer = 64
)

// inboundMessage is the logical client-to-server protocol: join-room,
// leave-room, and heartbeat (optionally carrying coordinates).
type inboundMessage struct {
	Type   string   `json:"type"`
	UserID string   `json:"user_id,omitempty"`
	Lat    *float64 `json:"lat,omitempty"`
	Lng    *float64 `json:"lng,omitempty"`
}

// client is one WebSocket connection. It implements realtime.Sender;
// outbound messages flow through the buffered send channel so the
// realtime core never blocks on a slow peer.
type client struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	svc       *realtime.Service
	log       *zap.Logger
	readLimit int64
	userID    string // set by join-room; only touched from readPump
}

// Send marshals and queues one outbound message. It never blocks: if
// the peer cannot keep up, or the connection is already closing, the
// message is dropped, matching the subsystem's best-effort delivery
// contract.
func (c *client) Send(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		c.log.Error("marshal outbound message failed", zap.Error(err))
		return
	}
	select {
	case <-c.done:
	case c.send <- b:
	default:
		c.log.Debug("dropping message for slow connection",
			zap.String("conn_id", c.id))
	}
}

// readPump reads inbound control messages until the connection dies,
// then reports the disconnect so presence and location state are
// cleaned up exactly once.
func (c *client) readPump() {
	defer func() {
		c.svc.Disconnect(c.id)
		close(c.done)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("websocket read error",
					zap.String("conn_id", c.id),
					zap.Error(err))
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Debug("ignoring malformed client message",
				zap.String("conn_id", c.id),
				zap.Error(err))
			continue
		}
		c.handle(msg)
	}
}

func (c *client) handle(msg inboundMessage) {
	switch msg.Type {
	case "join-room":
		if msg.UserID == "" {
			return
		}
		c.userID = msg.UserID
		c.svc.Join(c.id, msg.UserID)

	case "leave-room":
		userID := msg.UserID
		if userID == "" {
			userID = c.userID
		}
		if userID == "" {
			return
		}
		c.svc.Leave(c.id, userID)
		if userID == c.userID {
			c.userID = ""
		}

	case "heartbeat":
		if c.userID == "" {
			return
		}
		// A bad coordinate payload degrades to a presence-only
		// heartbeat; liveness still counts.
		c.svc.Heartbeat(c.userID, parseCoords(msg.Lat, msg.Lng))
	}
}

// parseCoords validates an optional coordinate pair. Both values must
// be present and within range, otherwise the heartbeat carries none.
func parseCoords(lat, lng *float64) *realtime.Coordinates {
	if lat == nil || lng == nil {
		return nil
	}
	if *lat < -90 || *lat > 90 || *lng < -180 || *lng > 180 {
		return nil
	}
	return &realtime.Coordinates{Lat: *lat, Lng: *lng}
}

// writePump drains the send channel to the peer and keeps the
// connection alive with periodic pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
