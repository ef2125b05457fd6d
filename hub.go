package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"uav-swarm/server/internal/sim"
	"uav-swarm/server/internal/swarm"
	"uav-swarm/server/internal/telemetry"
	"uav-swarm/server/logging"
)

// Boundary-level rejections surfaced to HTTP/WebSocket callers.
var (
	ErrUnknownDrone  = errors.New("unknown drone id")
	ErrQueueFull     = errors.New("command queue full")
	ErrBadParameters = errors.New("bad command parameters")
)

// Hub is the seam between the transport layer and the control loop. It
// owns the WebSocket subscribers, forwards commands into the loop's
// queue, and serves the latest snapshot to readers on any goroutine.
type Hub struct {
	cfg     WorldConfig
	loop    *sim.Loop
	world   *swarm.World
	router  *logging.Router
	metrics *logging.Metrics
	logger  telemetry.Logger

	counters  *telemetryCounters
	startedAt time.Time

	mu          sync.Mutex
	subscribers map[uint64]*Subscriber
	nextID      atomic.Uint64
}

// Subscriber is one WebSocket consumer of state pushes. Writes are
// serialized by its own mutex so broadcasts and session replies never
// interleave.
type Subscriber struct {
	id   uint64
	conn *websocket.Conn
	mu   sync.Mutex

	lastHeartbeat time.Time
	lastRTT       time.Duration
}

// NewHub wires the hub around an already constructed loop and world.
// Router and metrics are optional; a nil logger silences operational
// messages.
func NewHub(cfg WorldConfig, loop *sim.Loop, world *swarm.World, router *logging.Router, metrics *logging.Metrics, logger telemetry.Logger) *Hub {
	return &Hub{
		cfg:         cfg.Normalized(),
		loop:        loop,
		world:       world,
		router:      router,
		metrics:     metrics,
		logger:      logger,
		counters:    newTelemetryCounters(),
		startedAt:   time.Now(),
		subscribers: make(map[uint64]*Subscriber),
	}
}

// Config returns the normalized world configuration.
func (h *Hub) Config() WorldConfig {
	return h.cfg
}

// Snapshot returns the latest published fleet view.
func (h *Hub) Snapshot() *swarm.Snapshot {
	return h.world.Snapshot()
}

// SetSpeedFactor adjusts the simulation speed multiplier and returns the
// clamped value.
func (h *Hub) SetSpeedFactor(factor int) int {
	return h.world.SetSpeedFactor(factor)
}

// RecordTickDuration feeds the loop's per-tick wall time into the
// diagnostics counters. Installed as the loop's after-step hook.
func (h *Hub) RecordTickDuration(elapsed time.Duration) {
	h.counters.RecordTickDuration(elapsed)
}

// EnqueueCommand validates a command against the current fleet, hands it
// to the control loop, and returns the drone ids it will affect. The
// affected list is resolved against the snapshot visible now; dispatch
// re-resolves against the live fleet when the command is drained.
func (h *Hub) EnqueueCommand(ctx context.Context, cmd swarm.Command) ([]int, error) {
	affected, err := h.resolveAffected(cmd)
	if err != nil {
		h.counters.RecordCommand(false)
		return nil, err
	}
	if err := h.loop.Enqueue(ctx, cmd); err != nil {
		h.counters.RecordCommand(false)
		if errors.Is(err, sim.ErrQueueFull) {
			return nil, ErrQueueFull
		}
		return nil, err
	}
	h.counters.RecordCommand(true)
	return affected, nil
}

// resolveAffected expands the command's target against the latest
// snapshot for the caller's response.
func (h *Hub) resolveAffected(cmd swarm.Command) ([]int, error) {
	snapshot := h.world.Snapshot()
	numDrones := 0
	if snapshot != nil {
		numDrones = len(snapshot.Drones)
	}

	switch cmd.Type {
	case swarm.CommandReset:
		// Fleet-wide regardless of target.
		return allIDs(numDrones), nil
	case swarm.CommandSpawn:
		if cmd.Spawn == nil || cmd.Spawn.NumDrones <= 0 {
			return nil, ErrBadParameters
		}
		return allIDs(cmd.Spawn.NumDrones), nil
	case swarm.CommandFormation:
		if cmd.Formation == nil {
			return nil, ErrBadParameters
		}
		return allIDs(numDrones), nil
	}

	if cmd.Target.All {
		return allIDs(numDrones), nil
	}
	if len(cmd.Target.IDs) == 0 {
		return nil, ErrUnknownDrone
	}
	for _, id := range cmd.Target.IDs {
		if id < 0 || id >= numDrones {
			return nil, ErrUnknownDrone
		}
	}
	return append([]int(nil), cmd.Target.IDs...), nil
}

func allIDs(n int) []int {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}
	return ids
}

// Subscribe registers a WebSocket connection for state pushes.
func (h *Hub) Subscribe(conn *websocket.Conn) *Subscriber {
	sub := &Subscriber{
		id:            h.nextID.Add(1),
		conn:          conn,
		lastHeartbeat: time.Now(),
	}
	h.mu.Lock()
	h.subscribers[sub.id] = sub
	h.mu.Unlock()
	return sub
}

// Unsubscribe drops a subscriber and closes its connection.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	_, ok := h.subscribers[sub.id]
	if ok {
		delete(h.subscribers, sub.id)
	}
	h.mu.Unlock()
	if ok {
		sub.conn.Close()
	}
}

// UpdateHeartbeat records the most recent heartbeat time and RTT for a
// subscriber, mirroring the client-sent milliseconds timestamp.
func (h *Hub) UpdateHeartbeat(sub *Subscriber, receivedAt time.Time, clientSent int64) time.Duration {
	if sub == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	sub.lastHeartbeat = receivedAt
	if clientSent > 0 {
		clientTime := time.UnixMilli(clientSent)
		if clientTime.Before(receivedAt.Add(5 * time.Second)) {
			rtt := receivedAt.Sub(clientTime)
			if rtt < 0 {
				rtt = 0
			}
			sub.lastRTT = rtt
		}
	}
	return sub.lastRTT
}

// SendState pushes the latest snapshot to one subscriber, outside the
// broadcast cadence.
func (h *Hub) SendState(sub *Subscriber, now time.Time) error {
	snapshot := h.world.Snapshot()
	if snapshot == nil {
		return nil
	}
	return h.Send(sub, stateMessage{
		Ver:        ProtocolVersion,
		Type:       "state",
		Drones:     snapshot.Drones,
		Timestamp:  snapshot.Timestamp,
		Tick:       snapshot.Tick,
		ServerTime: now.UnixMilli(),
	})
}

// Send marshals a payload and writes it to one subscriber.
func (h *Hub) Send(sub *Subscriber, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	sub.mu.Lock()
	defer sub.mu.Unlock()
	sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return sub.conn.WriteMessage(websocket.TextMessage, data)
}

// RunBroadcast pushes the latest snapshot to every subscriber at the
// stream cadence until the context is cancelled. Stale subscribers are
// pruned by heartbeat age.
func (h *Hub) RunBroadcast(ctx context.Context) {
	ticker := time.NewTicker(time.Second / streamRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			h.pruneStale(now)
			h.BroadcastState(now)
		}
	}
}

func (h *Hub) pruneStale(now time.Time) {
	var stale []*Subscriber
	h.mu.Lock()
	for id, sub := range h.subscribers {
		if now.Sub(sub.lastHeartbeat) > disconnectAfter {
			stale = append(stale, sub)
			delete(h.subscribers, id)
		}
	}
	h.mu.Unlock()

	for _, sub := range stale {
		if h.logger != nil {
			h.logger.Printf("disconnecting subscriber %d due to heartbeat timeout", sub.id)
		}
		sub.conn.Close()
	}
}

// BroadcastState sends the latest snapshot to every subscriber. Failed
// writes drop the subscriber.
func (h *Hub) BroadcastState(now time.Time) {
	snapshot := h.world.Snapshot()
	if snapshot == nil {
		return
	}
	msg := stateMessage{
		Ver:        ProtocolVersion,
		Type:       "state",
		Drones:     snapshot.Drones,
		Timestamp:  snapshot.Timestamp,
		Tick:       snapshot.Tick,
		ServerTime: now.UnixMilli(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		if h.logger != nil {
			h.logger.Printf("failed to marshal state message: %v", err)
		}
		return
	}

	h.mu.Lock()
	subs := make([]*Subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	sent := 0
	for _, sub := range subs {
		sub.mu.Lock()
		sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := sub.conn.WriteMessage(websocket.TextMessage, data)
		sub.mu.Unlock()
		if err != nil {
			if h.logger != nil {
				h.logger.Printf("failed to send update to subscriber %d: %v", sub.id, err)
			}
			h.Unsubscribe(sub)
			continue
		}
		sent++
	}
	if sent > 0 {
		h.counters.RecordBroadcast(len(data)*sent, len(snapshot.Drones)*sent)
	}
}

// DiagnosticsSnapshot assembles the diagnostics payload.
func (h *Hub) DiagnosticsSnapshot(now time.Time) DiagnosticsSnapshot {
	snapshot := h.world.Snapshot()

	h.mu.Lock()
	subs := make([]diagnosticsSubscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		subs = append(subs, diagnosticsSubscriber{
			ID:            sub.id,
			LastHeartbeat: sub.lastHeartbeat.UnixMilli(),
			RTTMillis:     sub.lastRTT.Milliseconds(),
		})
	}
	h.mu.Unlock()

	diag := DiagnosticsSnapshot{
		Ver:          ProtocolVersion,
		UptimeMillis: now.Sub(h.startedAt).Milliseconds(),
		SpeedFactor:  h.world.SpeedFactor(),
		QueueDepth:   h.loop.QueueDepth(),
		Subscribers:  subs,
		Telemetry:    h.counters.Snapshot(),
		Config:       h.cfg,
	}
	if snapshot != nil {
		diag.Tick = snapshot.Tick
		diag.SimTime = snapshot.Timestamp
		diag.NumDrones = len(snapshot.Drones)
	}
	if h.router != nil {
		stats := h.router.Stats()
		diag.LoggingQueued = stats.EventsTotal
		diag.LoggingDrops = stats.DroppedTotal
	}
	if h.metrics != nil {
		diag.Metrics = h.metrics.TelemetrySnapshot()
	}
	return diag
}
