package ws

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StatusSource provides the snapshot sent on connect and on status:get.
type StatusSource interface {
	Status() StatusPayload
}

// Handler upgrades connections, registers them with the hub and answers
// status requests.
type Handler struct {
	hub    *Hub
	status StatusSource
	log    *zap.SugaredLogger
}

func NewHandler(hub *Hub, status StatusSource, log *zap.SugaredLogger) *Handler {
	return &Handler{hub: hub, status: status, log: log}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("websocket upgrade failed", "error", err)
		return
	}

	client := newClient(h.hub, conn)
	h.hub.Register(client)
	go client.writePump()

	h.sendStatus(client)
	h.serveClient(client)
}

// serveClient answers client requests until the connection drops.
func (h *Handler) serveClient(c *Client) {
	defer h.hub.Unregister(c)
	defer c.conn.Close()

	for {
		_, msg, err := c.conn.ReadMessage()
		switch {
		case err == nil:
			h.handleMessage(c, msg)
		case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure):
			h.log.Warnw("websocket read failed", "error", err)
			return
		default:
			return
		}
	}
}

func (h *Handler) handleMessage(c *Client, msg []byte) {
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		h.log.Warnw("invalid message", "error", err)
		return
	}

	switch env.Type {
	case TypeStatusGet:
		h.sendStatus(c)
	default:
		h.log.Warnw("unknown message type", "type", env.Type)
	}
}

func (h *Handler) sendStatus(c *Client) {
	msg, err := NewEnvelope(TypeRunStatus, h.status.Status())
	if err != nil {
		h.log.Errorw("marshaling status", "error", err)
		return
	}
	if !h.hub.sendTo(c, msg) {
		h.log.Debugw("status not delivered, client gone or busy")
	}
}
