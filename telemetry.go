package server

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

type telemetryCounters struct {
	bytesSent          atomic.Uint64
	dronesSent         atomic.Uint64
	lastBroadcastBytes atomic.Uint64
	lastBroadcastSize  atomic.Uint64
	tickDurationMillis atomic.Int64
	commandsAccepted   atomic.Uint64
	commandsRefused    atomic.Uint64
	debug              bool
}

type telemetrySnapshot struct {
	BytesSent        uint64 `json:"bytesSent"`
	DronesSent       uint64 `json:"dronesSent"`
	TickDuration     int64  `json:"tickDurationMillis"`
	CommandsAccepted uint64 `json:"commandsAccepted"`
	CommandsRefused  uint64 `json:"commandsRefused"`
}

func newTelemetryCounters() *telemetryCounters {
	t := &telemetryCounters{}
	if os.Getenv("DEBUG_TELEMETRY") == "1" {
		t.debug = true
	}
	return t
}

func (t *telemetryCounters) RecordBroadcast(bytes, drones int) {
	if bytes < 0 {
		bytes = 0
	}
	if drones < 0 {
		drones = 0
	}
	t.bytesSent.Add(uint64(bytes))
	t.dronesSent.Add(uint64(drones))
	t.lastBroadcastBytes.Store(uint64(bytes))
	t.lastBroadcastSize.Store(uint64(drones))
}

func (t *telemetryCounters) RecordTickDuration(duration time.Duration) {
	millis := duration.Milliseconds()
	if millis < 0 {
		millis = 0
	}
	t.tickDurationMillis.Store(millis)
	if t.debug {
		fmt.Printf(
			"[telemetry] tick=%dms bytes=%d totalBytes=%d drones=%d totalDrones=%d\n",
			millis,
			t.lastBroadcastBytes.Load(),
			t.bytesSent.Load(),
			t.lastBroadcastSize.Load(),
			t.dronesSent.Load(),
		)
	}
}

func (t *telemetryCounters) RecordCommand(accepted bool) {
	if accepted {
		t.commandsAccepted.Add(1)
		return
	}
	t.commandsRefused.Add(1)
}

func (t *telemetryCounters) Snapshot() telemetrySnapshot {
	return telemetrySnapshot{
		BytesSent:        t.bytesSent.Load(),
		DronesSent:       t.dronesSent.Load(),
		TickDuration:     t.tickDurationMillis.Load(),
		CommandsAccepted: t.commandsAccepted.Load(),
		CommandsRefused:  t.commandsRefused.Load(),
	}
}
