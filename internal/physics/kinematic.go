package physics

import (
	"errors"
	"math"

	"uav-swarm/server/internal/geo"
)

const (
	// spawnSpacing separates drones in the initial grid layout, meters.
	spawnSpacing = 0.5
	// spawnAltitude keeps freshly spawned drones just above the ground.
	spawnAltitude = 0.1
)

// ErrClosed is returned by every method after Close.
var ErrClosed = errors.New("physics: engine closed")

// Kinematic is the built-in headless engine: a first-order integrator that
// treats the commanded velocity as achieved instantly. It has no
// aerodynamics; it exists so the server runs without an external physics
// backend and so tests are deterministic.
type Kinematic struct {
	dt       float64
	maxSpeed float64
	states   []Kinematics
	simTime  float64
	closed   bool
}

// NewKinematic builds an engine stepping at 1/physicsHz with n drones laid
// out in a spawn grid.
func NewKinematic(n, physicsHz int, maxSpeed float64) *Kinematic {
	if physicsHz <= 0 {
		physicsHz = 240
	}
	if maxSpeed <= 0 {
		maxSpeed = 2.0
	}
	k := &Kinematic{dt: 1.0 / float64(physicsHz), maxSpeed: maxSpeed}
	k.states = spawnGrid(n)
	return k
}

// spawnGrid lays n drones out in a near-square grid around the origin.
func spawnGrid(n int) []Kinematics {
	if n < 0 {
		n = 0
	}
	gridSize := int(math.Ceil(math.Sqrt(float64(n))))
	states := make([]Kinematics, n)
	for i := range states {
		row := i / gridSize
		col := i % gridSize
		states[i] = Kinematics{
			Position: geo.Vec3{
				X: (float64(col) - float64(gridSize)/2) * spawnSpacing,
				Y: (float64(row) - float64(gridSize)/2) * spawnSpacing,
				Z: spawnAltitude,
			},
		}
	}
	return states
}

func (k *Kinematic) Step(actions []Action) ([]Kinematics, error) {
	if k.closed {
		return nil, ErrClosed
	}
	if len(actions) != len(k.states) {
		return nil, errors.New("physics: action count does not match drone count")
	}
	for i, action := range actions {
		velocity := action.Direction.Scale(action.Speed * k.maxSpeed)
		state := &k.states[i]
		state.Velocity = velocity
		state.Position = state.Position.Add(velocity.Scale(k.dt))
		if state.Position.Z < 0 {
			state.Position.Z = 0
			state.Velocity.Z = 0
		}
		state.Yaw += action.YawRate * k.dt
	}
	k.simTime += k.dt
	return k.states, nil
}

func (k *Kinematic) Reset() error {
	if k.closed {
		return ErrClosed
	}
	k.states = spawnGrid(len(k.states))
	k.simTime = 0
	return nil
}

func (k *Kinematic) Respawn(n int) error {
	if k.closed {
		return ErrClosed
	}
	k.states = spawnGrid(n)
	k.simTime = 0
	return nil
}

func (k *Kinematic) States() []Kinematics {
	return k.states
}

func (k *Kinematic) Time() float64 {
	return k.simTime
}

func (k *Kinematic) Close() error {
	k.closed = true
	return nil
}

var _ Engine = (*Kinematic)(nil)
