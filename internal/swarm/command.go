package swarm

import (
	"uav-swarm/server/internal/formation"
)

// CommandType identifies a fleet command variant.
type CommandType string

const (
	CommandTakeoff   CommandType = "takeoff"
	CommandLand      CommandType = "land"
	CommandHover     CommandType = "hover"
	CommandGoto      CommandType = "goto"
	CommandVelocity  CommandType = "velocity"
	CommandFormation CommandType = "formation"
	CommandReset     CommandType = "reset"
	CommandSpawn     CommandType = "spawn"
)

// Reject reasons surfaced with dropped commands.
const (
	RejectUnknownDrone   = "unknown_drone"
	RejectUnknownPattern = "unknown_pattern"
	RejectQueueFull      = "queue_full"
	RejectBadParameters  = "bad_parameters"
)

// Target selects which drones a command addresses. The id list is resolved
// against the live fleet at dispatch time, never at enqueue time.
type Target struct {
	All bool  `json:"all"`
	IDs []int `json:"ids,omitempty"`
}

// TargetAll addresses the whole fleet.
func TargetAll() Target {
	return Target{All: true}
}

// TargetDrone addresses a single drone.
func TargetDrone(id int) Target {
	return Target{IDs: []int{id}}
}

// Command is a tagged variant: Type selects which payload pointer is set.
// Commands without parameters (land, hover, reset) carry only Type and
// Target.
type Command struct {
	Type      CommandType       `json:"type"`
	Target    Target            `json:"target"`
	Takeoff   *TakeoffCommand   `json:"takeoff,omitempty"`
	Goto      *GotoCommand      `json:"goto,omitempty"`
	Velocity  *VelocityCommand  `json:"velocity,omitempty"`
	Formation *FormationCommand `json:"formation,omitempty"`
	Spawn     *SpawnCommand     `json:"spawn,omitempty"`
}

// TakeoffCommand raises the targeted drones to a hover altitude.
type TakeoffCommand struct {
	Altitude float64 `json:"altitude"`
}

// GotoCommand steers one drone to an absolute pose.
type GotoCommand struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Z   float64 `json:"z"`
	Yaw float64 `json:"yaw"`
}

// VelocityCommand puts one drone under direct velocity control.
type VelocityCommand struct {
	VX      float64 `json:"vx"`
	VY      float64 `json:"vy"`
	VZ      float64 `json:"vz"`
	YawRate float64 `json:"yawRate"`
}

// FormationCommand repositions the whole fleet into a geometric pattern.
type FormationCommand struct {
	Spec formation.Spec `json:"spec"`
}

// SpawnCommand tears down the fleet and creates a fresh one.
type SpawnCommand struct {
	NumDrones int `json:"numDrones"`
}
