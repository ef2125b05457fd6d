// Package ws runs the WebSocket session: state pushes ride the hub's
// broadcast loop, while this handler owns the read side of each
// connection (command envelopes and heartbeats).
package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"uav-swarm/server"
	"uav-swarm/server/internal/net/proto"
	"uav-swarm/server/internal/telemetry"
)

// clientMessage is the envelope every inbound frame uses. Command frames
// carry an action name and its payload; heartbeats carry the client-sent
// timestamp for RTT measurement.
type clientMessage struct {
	Type    string          `json:"type"`
	Action  string          `json:"action,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	SentAt  int64           `json:"sentAt,omitempty"`
}

type commandAckMessage struct {
	Ver            int    `json:"ver"`
	Type           string `json:"type"`
	Action         string `json:"action"`
	Accepted       bool   `json:"accepted"`
	Reason         string `json:"reason,omitempty"`
	AffectedDrones []int  `json:"affectedDrones,omitempty"`
}

type heartbeatAckMessage struct {
	Ver        int    `json:"ver"`
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime"`
	RTTMillis  int64  `json:"rtt"`
}

// Handler upgrades connections and runs their read loop.
type Handler struct {
	hub      *server.Hub
	logger   telemetry.Logger
	upgrader websocket.Upgrader
}

func NewHandler(hub *server.Hub, logger telemetry.Logger) *Handler {
	return &Handler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Serve upgrades the request and pumps messages until the peer goes
// away.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.printf("upgrade failed: %v", err)
		return
	}

	sub := h.hub.Subscribe(conn)
	if err := h.hub.SendState(sub, time.Now()); err != nil {
		h.printf("failed to send initial state: %v", err)
		h.hub.Unsubscribe(sub)
		return
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			h.hub.Unsubscribe(sub)
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.printf("discarding malformed message: %v", err)
			continue
		}

		switch msg.Type {
		case "command":
			h.handleCommand(r, sub, msg)
		case "heartbeat":
			now := time.Now()
			rtt := h.hub.UpdateHeartbeat(sub, now, msg.SentAt)
			ack := heartbeatAckMessage{
				Ver:        server.ProtocolVersion,
				Type:       "heartbeat",
				ServerTime: now.UnixMilli(),
				ClientTime: msg.SentAt,
				RTTMillis:  rtt.Milliseconds(),
			}
			if err := h.hub.Send(sub, ack); err != nil {
				h.hub.Unsubscribe(sub)
				return
			}
		default:
			h.printf("unknown message type %q", msg.Type)
		}
	}
}

func (h *Handler) handleCommand(r *http.Request, sub *server.Subscriber, msg clientMessage) {
	ack := commandAckMessage{
		Ver:    server.ProtocolVersion,
		Type:   "command_ack",
		Action: msg.Action,
	}

	cmd, err := proto.DecodeCommand(msg.Action, msg.Payload)
	if err != nil {
		ack.Reason = err.Error()
		h.sendAck(sub, ack)
		return
	}

	affected, err := h.hub.EnqueueCommand(r.Context(), cmd)
	if err != nil {
		ack.Reason = err.Error()
		h.sendAck(sub, ack)
		return
	}

	ack.Accepted = true
	ack.AffectedDrones = affected
	h.sendAck(sub, ack)
}

func (h *Handler) sendAck(sub *server.Subscriber, ack commandAckMessage) {
	if err := h.hub.Send(sub, ack); err != nil {
		h.hub.Unsubscribe(sub)
	}
}

func (h *Handler) printf(format string, args ...any) {
	if h.logger == nil {
		return
	}
	h.logger.Printf(format, args...)
}
