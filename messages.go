package server

import "uav-swarm/server/internal/swarm"

type stateMessage struct {
	Ver        int                `json:"ver"`
	Type       string             `json:"type"`
	Drones     []swarm.DroneState `json:"drones"`
	Timestamp  float64            `json:"timestamp"`
	Tick       uint64             `json:"t"`
	ServerTime int64              `json:"serverTime"`
}

type diagnosticsSubscriber struct {
	ID            uint64 `json:"id"`
	LastHeartbeat int64  `json:"lastHeartbeat"`
	RTTMillis     int64  `json:"rttMillis"`
}

// DiagnosticsSnapshot is the payload of the diagnostics endpoint.
type DiagnosticsSnapshot struct {
	Ver           int                     `json:"ver"`
	UptimeMillis  int64                   `json:"uptimeMillis"`
	Tick          uint64                  `json:"tick"`
	SimTime       float64                 `json:"simTime"`
	NumDrones     int                     `json:"numDrones"`
	SpeedFactor   int                     `json:"speedFactor"`
	QueueDepth    int                     `json:"queueDepth"`
	Subscribers   []diagnosticsSubscriber `json:"subscribers"`
	Telemetry     telemetrySnapshot       `json:"telemetry"`
	Metrics       map[string]uint64       `json:"metrics,omitempty"`
	LoggingQueued uint64                  `json:"loggingQueued"`
	LoggingDrops  uint64                  `json:"loggingDrops"`
	Config        WorldConfig             `json:"config"`
}
