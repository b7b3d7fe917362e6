// internal/realtime/websocket.go
package realtime

import (
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// WebSocketConn wraps websocket.Conn so hub.go does not import websocket.
type WebSocketConn struct {
	Conn *websocket.Conn
}

func NewWebSocketConn(c *websocket.Conn) *WebSocketConn {
	return &WebSocketConn{Conn: c}
}

// Serve registers the connection for userID and blocks until it closes.
func (h *Hub) Serve(c *websocket.Conn, userID uuid.UUID) {
	client := &Client{
		ID:     uuid.New().String(),
		UserID: userID,
		Conn:   NewWebSocketConn(c),
		Send:   make(chan []byte, 256),
	}

	h.RegisterClient(client)
	defer h.UnregisterClient(client)

	go func() {
		for msg := range client.Send {
			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.WithError(err).WithField("user", userID).Debug("websocket write")
				return
			}
		}
	}()

	// read loop only keeps the connection alive
	for {
		var payload map[string]interface{}
		if err := c.ReadJSON(&payload); err != nil {
			log.WithField("user", userID).Debug("websocket closed")
			return
		}
	}
}
