// Package proto defines the JSON payloads of the HTTP and WebSocket API
// and their translation into fleet commands. The translation is pure and
// stateless; all validation that needs the live fleet happens downstream.
package proto

import (
	"encoding/json"
	"errors"
	"fmt"

	"uav-swarm/server/internal/formation"
	"uav-swarm/server/internal/geo"
	"uav-swarm/server/internal/swarm"
)

// ErrValidation marks request payloads the transport refuses before they
// reach the command queue.
var ErrValidation = errors.New("invalid request")

// TakeoffRequest raises drones to a hover altitude. A nil DroneIDs list
// addresses the whole fleet.
type TakeoffRequest struct {
	DroneIDs []int   `json:"droneIds,omitempty"`
	Altitude float64 `json:"altitude" jsonschema:"minimum=0"`
}

// LandRequest descends drones to the ground. A nil DroneIDs list
// addresses the whole fleet.
type LandRequest struct {
	DroneIDs []int `json:"droneIds,omitempty"`
}

// HoverRequest freezes drones at their current pose. A nil DroneIDs list
// addresses the whole fleet.
type HoverRequest struct {
	DroneIDs []int `json:"droneIds,omitempty"`
}

// GotoRequest steers a single drone to an absolute pose.
type GotoRequest struct {
	DroneID int     `json:"droneId" jsonschema:"minimum=0"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Z       float64 `json:"z"`
	Yaw     float64 `json:"yaw"`
}

// VelocityRequest puts a single drone under direct velocity control.
type VelocityRequest struct {
	DroneID int     `json:"droneId" jsonschema:"minimum=0"`
	VX      float64 `json:"vx"`
	VY      float64 `json:"vy"`
	VZ      float64 `json:"vz"`
	YawRate float64 `json:"yawRate"`
}

// FormationRequest repositions the whole fleet into a named pattern.
type FormationRequest struct {
	Pattern string  `json:"pattern" jsonschema:"enum=line,enum=circle,enum=grid,enum=v"`
	CenterX float64 `json:"centerX"`
	CenterY float64 `json:"centerY"`
	CenterZ float64 `json:"centerZ"`
	Spacing float64 `json:"spacing,omitempty"`
	Radius  float64 `json:"radius,omitempty"`
	Axis    string  `json:"axis,omitempty" jsonschema:"enum=x,enum=y"`
}

// SpawnRequest tears down the fleet and creates a fresh one.
type SpawnRequest struct {
	NumDrones int `json:"numDrones" jsonschema:"minimum=1"`
}

// ResetRequest re-initializes the current fleet in place.
type ResetRequest struct{}

// SpeedRequest sets the simulation speed multiplier.
type SpeedRequest struct {
	Factor int `json:"factor" jsonschema:"minimum=1,maximum=10"`
}

// CommandResponse reports the outcome of a command request.
type CommandResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message,omitempty"`
	AffectedDrones []int  `json:"affectedDrones,omitempty"`
}

// StateResponse carries one fleet snapshot.
type StateResponse struct {
	Drones    []swarm.DroneState `json:"drones"`
	Timestamp float64            `json:"timestamp"`
	Tick      uint64             `json:"tick"`
}

// target builds a swarm target from an optional id list.
func target(ids []int) swarm.Target {
	if len(ids) == 0 {
		return swarm.TargetAll()
	}
	return swarm.Target{IDs: append([]int(nil), ids...)}
}

// Command translates the request into a fleet command. A zero altitude
// takes the 1 meter default.
func (r TakeoffRequest) Command() (swarm.Command, error) {
	if r.Altitude < 0 {
		return swarm.Command{}, fmt.Errorf("%w: takeoff altitude must be positive", ErrValidation)
	}
	altitude := r.Altitude
	if altitude == 0 {
		altitude = 1.0
	}
	return swarm.Command{
		Type:    swarm.CommandTakeoff,
		Target:  target(r.DroneIDs),
		Takeoff: &swarm.TakeoffCommand{Altitude: altitude},
	}, nil
}

func (r LandRequest) Command() (swarm.Command, error) {
	return swarm.Command{Type: swarm.CommandLand, Target: target(r.DroneIDs)}, nil
}

func (r HoverRequest) Command() (swarm.Command, error) {
	return swarm.Command{Type: swarm.CommandHover, Target: target(r.DroneIDs)}, nil
}

func (r GotoRequest) Command() (swarm.Command, error) {
	if r.DroneID < 0 {
		return swarm.Command{}, fmt.Errorf("%w: droneId must be non-negative", ErrValidation)
	}
	return swarm.Command{
		Type:   swarm.CommandGoto,
		Target: swarm.TargetDrone(r.DroneID),
		Goto:   &swarm.GotoCommand{X: r.X, Y: r.Y, Z: r.Z, Yaw: r.Yaw},
	}, nil
}

func (r VelocityRequest) Command() (swarm.Command, error) {
	if r.DroneID < 0 {
		return swarm.Command{}, fmt.Errorf("%w: droneId must be non-negative", ErrValidation)
	}
	return swarm.Command{
		Type:     swarm.CommandVelocity,
		Target:   swarm.TargetDrone(r.DroneID),
		Velocity: &swarm.VelocityCommand{VX: r.VX, VY: r.VY, VZ: r.VZ, YawRate: r.YawRate},
	}, nil
}

func (r FormationRequest) Command() (swarm.Command, error) {
	pattern, ok := formation.ParsePattern(r.Pattern)
	if !ok {
		return swarm.Command{}, fmt.Errorf("%w: unknown formation pattern %q", ErrValidation, r.Pattern)
	}
	spacing := r.Spacing
	if spacing <= 0 {
		spacing = 1.0
	}
	radius := r.Radius
	if radius <= 0 {
		radius = 2.0
	}
	axis := formation.Axis(r.Axis)
	if axis == "" {
		axis = formation.AxisX
	}
	if axis != formation.AxisX && axis != formation.AxisY {
		return swarm.Command{}, fmt.Errorf("%w: unknown line axis %q", ErrValidation, r.Axis)
	}
	return swarm.Command{
		Type:   swarm.CommandFormation,
		Target: swarm.TargetAll(),
		Formation: &swarm.FormationCommand{
			Spec: formation.Spec{
				Pattern: pattern,
				Center:  geo.Vec3{X: r.CenterX, Y: r.CenterY, Z: r.CenterZ},
				Spacing: spacing,
				Radius:  radius,
				Axis:    axis,
			},
		},
	}, nil
}

func (r SpawnRequest) Command() (swarm.Command, error) {
	if r.NumDrones <= 0 {
		return swarm.Command{}, fmt.Errorf("%w: numDrones must be positive", ErrValidation)
	}
	return swarm.Command{
		Type:  swarm.CommandSpawn,
		Spawn: &swarm.SpawnCommand{NumDrones: r.NumDrones},
	}, nil
}

func (ResetRequest) Command() (swarm.Command, error) {
	return swarm.Command{Type: swarm.CommandReset, Target: swarm.TargetAll()}, nil
}

// DecodeCommand translates a WebSocket command envelope (action name plus
// raw payload) into a fleet command. Actions map 1:1 onto the REST
// routes.
func DecodeCommand(action string, payload json.RawMessage) (swarm.Command, error) {
	decode := func(dst any) error {
		if len(payload) == 0 {
			return nil
		}
		return json.Unmarshal(payload, dst)
	}

	var (
		cmd swarm.Command
		err error
	)
	switch action {
	case "takeoff":
		var request TakeoffRequest
		if err = decode(&request); err == nil {
			cmd, err = request.Command()
		}
	case "land":
		var request LandRequest
		if err = decode(&request); err == nil {
			cmd, err = request.Command()
		}
	case "hover":
		var request HoverRequest
		if err = decode(&request); err == nil {
			cmd, err = request.Command()
		}
	case "goto":
		var request GotoRequest
		if err = decode(&request); err == nil {
			cmd, err = request.Command()
		}
	case "velocity":
		var request VelocityRequest
		if err = decode(&request); err == nil {
			cmd, err = request.Command()
		}
	case "formation":
		var request FormationRequest
		if err = decode(&request); err == nil {
			cmd, err = request.Command()
		}
	case "spawn":
		var request SpawnRequest
		if err = decode(&request); err == nil {
			cmd, err = request.Command()
		}
	case "reset":
		cmd, err = ResetRequest{}.Command()
	default:
		return swarm.Command{}, fmt.Errorf("%w: unknown action %q", ErrValidation, action)
	}
	if err != nil {
		if !errors.Is(err, ErrValidation) {
			err = fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return swarm.Command{}, err
	}
	return cmd, nil
}
