package swarm

import (
	"uav-swarm/server/internal/control"
	"uav-swarm/server/internal/geo"
)

// DroneMode is the single active behavior governing a drone.
type DroneMode string

const (
	ModeIdle     DroneMode = "idle"
	ModeTakeoff  DroneMode = "takeoff"
	ModeLanding  DroneMode = "landing"
	ModeHover    DroneMode = "hover"
	ModeGoto     DroneMode = "goto"
	ModeVelocity DroneMode = "velocity"
)

const (
	// landingArrivalAltitude ends a landing descent.
	landingArrivalAltitude = 0.15
	// arrivalDistance ends a takeoff climb.
	arrivalDistance = 0.1
	// landingTargetAltitude sits below the flight envelope so the
	// controller keeps pushing down until the arrival check fires.
	landingTargetAltitude = 0.05
	// minActionSpeed is the velocity magnitude below which the physics
	// action degenerates to zero instead of a normalized direction.
	minActionSpeed = 0.01
	// fullBattery is the charge every fresh drone starts with, percent.
	fullBattery = 100.0
)

// DroneState is the externally visible view of one drone. Copies of it are
// embedded in snapshots; the orchestrator never hands out its live drone.
type DroneState struct {
	ID       int       `json:"id"`
	Position geo.Vec3  `json:"position"`
	Velocity geo.Vec3  `json:"velocity"`
	Yaw      float64   `json:"yaw"`
	Battery  float64   `json:"battery"`
	Healthy  bool      `json:"healthy"`
	Mode     DroneMode `json:"mode"`
}

// drone is the orchestrator-owned record: the public state plus targets,
// the last computed control output, and the drone's controller.
type drone struct {
	state DroneState

	targetPosition geo.Vec3
	targetYaw      float64

	commandVelocity geo.Vec3
	commandYawRate  float64

	desiredVelocity geo.Vec3
	desiredYawRate  float64

	controller *control.PositionController
}

func newDrone(id int, position geo.Vec3, yaw float64) *drone {
	return &drone{
		state: DroneState{
			ID:       id,
			Position: position,
			Yaw:      yaw,
			Battery:  fullBattery,
			Healthy:  true,
			Mode:     ModeIdle,
		},
		controller: control.NewDefaultPositionController(),
	}
}

// anchor pins the drone's target to its current pose.
func (d *drone) anchor() {
	d.targetPosition = d.state.Position
	d.targetYaw = d.state.Yaw
}
