package server

import (
	"time"

	"uav-swarm/server/internal/control"
	"uav-swarm/server/internal/sim"
	"uav-swarm/server/internal/swarm"
)

// WorldConfig captures the toggles used when bringing up a fleet.
type WorldConfig struct {
	NumDrones int `json:"numDrones"`
	PhysicsHz int `json:"physicsHz"`
	ControlHz int `json:"controlHz"`
	// BatteryDrainRate is charge lost per minute of non-idle flight,
	// percent.
	BatteryDrainRate float64 `json:"batteryDrainRate"`
	// QueueCapacity bounds the command buffer.
	QueueCapacity int `json:"queueCapacity"`
}

// Normalized returns a config with defaults applied.
func (cfg WorldConfig) Normalized() WorldConfig {
	normalized := cfg
	if normalized.NumDrones <= 0 {
		normalized.NumDrones = defaultNumDrones
	}
	if normalized.PhysicsHz <= 0 {
		normalized.PhysicsHz = defaultPhysicsHz
	}
	if normalized.ControlHz <= 0 {
		normalized.ControlHz = defaultControlHz
	}
	if normalized.BatteryDrainRate <= 0 {
		normalized.BatteryDrainRate = defaultBatteryDrainRate
	}
	if normalized.QueueCapacity <= 0 {
		normalized.QueueCapacity = defaultQueueCapacity
	}
	return normalized
}

// DefaultWorldConfig is the stock fleet: five drones at the standard
// cadences.
func DefaultWorldConfig() WorldConfig {
	return WorldConfig{
		NumDrones:        defaultNumDrones,
		PhysicsHz:        defaultPhysicsHz,
		ControlHz:        defaultControlHz,
		BatteryDrainRate: defaultBatteryDrainRate,
		QueueCapacity:    defaultQueueCapacity,
	}
}

// SwarmConfig translates the wire-facing config into orchestrator tuning.
func (cfg WorldConfig) SwarmConfig() swarm.Config {
	normalized := cfg.Normalized()
	return swarm.Config{
		NumDrones:        normalized.NumDrones,
		PhysicsHz:        normalized.PhysicsHz,
		ControlHz:        normalized.ControlHz,
		BatteryDrainRate: normalized.BatteryDrainRate,
		MaxVelocity:      control.DefaultMaxVelocity,
		Bounds:           control.DefaultBounds,
	}
}

// LoopConfig translates the wire-facing config into loop tuning.
func (cfg WorldConfig) LoopConfig() sim.LoopConfig {
	normalized := cfg.Normalized()
	return sim.LoopConfig{
		Interval:      time.Second / time.Duration(normalized.PhysicsHz),
		QueueCapacity: normalized.QueueCapacity,
	}
}
