package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"uav-swarm/server"
	"uav-swarm/server/internal/physics"
	"uav-swarm/server/internal/sim"
	"uav-swarm/server/internal/swarm"
	"uav-swarm/server/logging"
)

func dialTestServer(t *testing.T, numDrones int) (*websocket.Conn, *server.Hub) {
	t.Helper()
	cfg := server.WorldConfig{NumDrones: numDrones}.Normalized()
	engine := physics.NewKinematic(cfg.NumDrones, cfg.PhysicsHz, 2.0)
	world, err := swarm.NewWorld(cfg.SwarmConfig(), engine, logging.NopPublisher(), nil)
	if err != nil {
		t.Fatalf("failed to build world: %v", err)
	}
	loop := sim.NewLoop(cfg.LoopConfig(), world, logging.NopPublisher(), nil, nil)
	hub := server.NewHub(cfg, loop, world, nil, nil, nil)

	handler := NewHandler(hub, nil)
	ts := httptest.NewServer(http.HandlerFunc(handler.Serve))
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return conn, hub
}

func readMessage(t *testing.T, conn *websocket.Conn, dst any) {
	t.Helper()
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
}

func TestServeSendsInitialState(t *testing.T) {
	conn, _ := dialTestServer(t, 3)

	var state struct {
		Type   string             `json:"type"`
		Drones []swarm.DroneState `json:"drones"`
	}
	readMessage(t, conn, &state)
	if state.Type != "state" || len(state.Drones) != 3 {
		t.Fatalf("initial message = %+v, want state with three drones", state)
	}
}

func TestCommandEnvelopeIsAcknowledged(t *testing.T) {
	conn, hub := dialTestServer(t, 2)

	var state json.RawMessage
	readMessage(t, conn, &state)

	envelope := clientMessage{
		Type:    "command",
		Action:  "takeoff",
		Payload: json.RawMessage(`{"altitude": 1.5}`),
	}
	if err := conn.WriteJSON(envelope); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var ack commandAckMessage
	readMessage(t, conn, &ack)
	if !ack.Accepted || ack.Action != "takeoff" || len(ack.AffectedDrones) != 2 {
		t.Fatalf("ack = %+v, want accepted takeoff for two drones", ack)
	}
	if hub.Snapshot() == nil {
		t.Fatalf("hub lost its snapshot")
	}
}

func TestMalformedCommandIsRefusedNotFatal(t *testing.T) {
	conn, _ := dialTestServer(t, 1)

	var state json.RawMessage
	readMessage(t, conn, &state)

	envelope := clientMessage{Type: "command", Action: "warp"}
	if err := conn.WriteJSON(envelope); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var ack commandAckMessage
	readMessage(t, conn, &ack)
	if ack.Accepted {
		t.Fatalf("unknown action must be refused: %+v", ack)
	}

	// The session survives a refused command.
	if err := conn.WriteJSON(clientMessage{Type: "heartbeat", SentAt: time.Now().UnixMilli()}); err != nil {
		t.Fatalf("heartbeat write failed: %v", err)
	}
	var heartbeat heartbeatAckMessage
	readMessage(t, conn, &heartbeat)
	if heartbeat.Type != "heartbeat" {
		t.Fatalf("heartbeat ack = %+v", heartbeat)
	}
}

func TestHeartbeatEchoesClientTime(t *testing.T) {
	conn, _ := dialTestServer(t, 1)

	var state json.RawMessage
	readMessage(t, conn, &state)

	sentAt := time.Now().UnixMilli()
	if err := conn.WriteJSON(clientMessage{Type: "heartbeat", SentAt: sentAt}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var ack heartbeatAckMessage
	readMessage(t, conn, &ack)
	if ack.ClientTime != sentAt {
		t.Fatalf("clientTime = %d, want %d", ack.ClientTime, sentAt)
	}
	if ack.RTTMillis < 0 {
		t.Fatalf("rtt = %d, want non-negative", ack.RTTMillis)
	}
}
