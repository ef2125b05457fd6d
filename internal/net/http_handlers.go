// Package net maps the HTTP and WebSocket surface onto hub operations.
// Handlers are stateless translations; every decision that needs the live
// fleet belongs to the hub and the control loop behind it.
package net

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"uav-swarm/server"
	"uav-swarm/server/internal/net/proto"
	"uav-swarm/server/internal/net/ws"
	"uav-swarm/server/internal/swarm"
	"uav-swarm/server/internal/telemetry"
)

// Handler serves the REST API and hands /ws off to the session handler.
type Handler struct {
	hub    *server.Hub
	logger telemetry.Logger
	ws     *ws.Handler
}

// NewHandler builds the API surface around a hub.
func NewHandler(hub *server.Hub, logger telemetry.Logger) *Handler {
	return &Handler{
		hub:    hub,
		logger: logger,
		ws:     ws.NewHandler(hub, logger),
	}
}

// Register installs every route on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/", h.handleInfo)
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/diagnostics", h.handleDiagnostics)
	mux.HandleFunc("/state", h.handleState)
	mux.HandleFunc("/schema", h.handleSchema)
	mux.HandleFunc("/speed", h.handleSpeed)
	mux.HandleFunc("/ws", h.ws.Serve)

	mux.HandleFunc("/spawn", command(h, func(r proto.SpawnRequest) (swarm.Command, error) { return r.Command() }))
	mux.HandleFunc("/takeoff", command(h, func(r proto.TakeoffRequest) (swarm.Command, error) { return r.Command() }))
	mux.HandleFunc("/land", command(h, func(r proto.LandRequest) (swarm.Command, error) { return r.Command() }))
	mux.HandleFunc("/hover", command(h, func(r proto.HoverRequest) (swarm.Command, error) { return r.Command() }))
	mux.HandleFunc("/goto", command(h, func(r proto.GotoRequest) (swarm.Command, error) { return r.Command() }))
	mux.HandleFunc("/velocity", command(h, func(r proto.VelocityRequest) (swarm.Command, error) { return r.Command() }))
	mux.HandleFunc("/formation", command(h, func(r proto.FormationRequest) (swarm.Command, error) { return r.Command() }))
	mux.HandleFunc("/reset", command(h, func(r proto.ResetRequest) (swarm.Command, error) { return r.Command() }))
}

// command builds a POST handler that decodes one request shape, turns it
// into a fleet command, and enqueues it.
func command[R any](h *Handler, translate func(R) (swarm.Command, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var request R
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
				writeCommandError(w, http.StatusBadRequest, "malformed request body")
				return
			}
		}
		cmd, err := translate(request)
		if err != nil {
			writeCommandError(w, http.StatusBadRequest, err.Error())
			return
		}
		affected, err := h.hub.EnqueueCommand(r.Context(), cmd)
		if err != nil {
			status, message := commandErrorStatus(err)
			writeCommandError(w, status, message)
			return
		}
		writeJSON(w, http.StatusOK, proto.CommandResponse{
			Success:        true,
			Message:        string(cmd.Type) + " queued",
			AffectedDrones: affected,
		})
	}
}

func commandErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, server.ErrUnknownDrone):
		return http.StatusBadRequest, "unknown drone id"
	case errors.Is(err, server.ErrBadParameters):
		return http.StatusBadRequest, "bad command parameters"
	case errors.Is(err, server.ErrQueueFull):
		return http.StatusServiceUnavailable, "command queue full"
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":   "uav-swarm-server",
		"ver":    server.ProtocolVersion,
		"state":  "/state",
		"schema": "/schema",
		"stream": "/ws",
		"commands": []string{
			"/spawn", "/takeoff", "/land", "/hover",
			"/goto", "/velocity", "/formation", "/reset", "/speed",
		},
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("ok"))
}

func (h *Handler) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.hub.DiagnosticsSnapshot(time.Now()))
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	snapshot := h.hub.Snapshot()
	if snapshot == nil {
		http.Error(w, "no snapshot yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, proto.StateResponse{
		Drones:    snapshot.Drones,
		Timestamp: snapshot.Timestamp,
		Tick:      snapshot.Tick,
	})
}

func (h *Handler) handleSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, proto.CommandSchema())
}

func (h *Handler) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var request proto.SpeedRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeCommandError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if request.Factor < 1 {
		writeCommandError(w, http.StatusBadRequest, "speed factor must be at least 1")
		return
	}
	applied := h.hub.SetSpeedFactor(request.Factor)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "factor": applied})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "failed to encode", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func writeCommandError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, proto.CommandResponse{Success: false, Message: message})
}
