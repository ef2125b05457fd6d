package server

import "time"

const (
	ProtocolVersion = 1

	// writeWait bounds a single WebSocket write.
	writeWait = 10 * time.Second

	// streamRate is the cadence of WebSocket state pushes, Hz. Independent
	// of the control loop's internal cadences.
	streamRate = 20

	heartbeatInterval = 2 * time.Second
	disconnectAfter   = 3 * heartbeatInterval

	defaultNumDrones        = 5
	defaultPhysicsHz        = 240
	defaultControlHz        = 60
	defaultBatteryDrainRate = 0.5 // percent per minute
	defaultQueueCapacity    = 256
)
