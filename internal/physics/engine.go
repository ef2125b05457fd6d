package physics

import "uav-swarm/server/internal/geo"

// Action is the per-drone control input handed to the engine each step: a
// unit direction, a speed fraction in [0,1] of the engine's max speed, and
// a yaw rate in rad/s. A zero Action keeps the drone where it is.
type Action struct {
	Direction geo.Vec3
	Speed     float64
	YawRate   float64
}

// Kinematics is the rigid-body state the engine reports for one drone.
type Kinematics struct {
	Position geo.Vec3
	Velocity geo.Vec3
	Yaw      float64
}

// Engine is the physics collaborator seam. The orchestrator drives it from
// a single goroutine; implementations do not need to be safe for
// concurrent use. Implementations own gravity, rotor dynamics and ground
// contact — the swarm layer only reads the kinematics back.
type Engine interface {
	// Step advances the world by one physics timestep using one action per
	// drone. The returned slice is valid until the next call.
	Step(actions []Action) ([]Kinematics, error)
	// Reset restores the current fleet to its spawn layout.
	Reset() error
	// Respawn tears the world down and rebuilds it with n drones.
	Respawn(n int) error
	// States reports current kinematics without advancing time.
	States() []Kinematics
	// Time reports elapsed simulated seconds.
	Time() float64
	// Close releases engine resources. The engine is unusable afterwards.
	Close() error
}
