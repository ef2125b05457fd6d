package control

import (
	"math"

	"uav-swarm/server/internal/geo"
)

// Gains bundles a proportional/integral/derivative gain triple.
type Gains struct {
	Kp float64 `json:"kp"`
	Ki float64 `json:"ki"`
	Kd float64 `json:"kd"`
}

// Default tuning for the fleet. Position axes share one triple; yaw has its
// own, softer derivative.
var (
	DefaultPositionGains = Gains{Kp: 2.0, Ki: 0.01, Kd: 0.5}
	DefaultYawGains      = Gains{Kp: 2.0, Ki: 0.0, Kd: 0.3}
)

const (
	// DefaultMaxVelocity caps each position axis output in m/s.
	DefaultMaxVelocity = 2.0
	// DefaultMaxYawRate caps the yaw rate output in rad/s.
	DefaultMaxYawRate = math.Pi
)

// PositionController tracks a 3D position and yaw setpoint with four
// independent PID loops.
type PositionController struct {
	pidX   *PID
	pidY   *PID
	pidZ   *PID
	pidYaw *PID
}

// NewPositionController builds a controller with the given gains and caps.
func NewPositionController(pos, yaw Gains, maxVelocity, maxYawRate float64) *PositionController {
	return &PositionController{
		pidX:   NewPID(pos.Kp, pos.Ki, pos.Kd, -maxVelocity, maxVelocity),
		pidY:   NewPID(pos.Kp, pos.Ki, pos.Kd, -maxVelocity, maxVelocity),
		pidZ:   NewPID(pos.Kp, pos.Ki, pos.Kd, -maxVelocity, maxVelocity),
		pidYaw: NewPID(yaw.Kp, yaw.Ki, yaw.Kd, -maxYawRate, maxYawRate),
	}
}

// NewDefaultPositionController builds a controller with the fleet tuning.
func NewDefaultPositionController() *PositionController {
	return NewPositionController(DefaultPositionGains, DefaultYawGains, DefaultMaxVelocity, DefaultMaxYawRate)
}

// Reset clears all four PID loops.
func (pc *PositionController) Reset() {
	pc.pidX.Reset()
	pc.pidY.Reset()
	pc.pidZ.Reset()
	pc.pidYaw.Reset()
}

// SetMaxVelocity re-limits the three position loops without resetting
// their accumulated integral.
func (pc *PositionController) SetMaxVelocity(maxVelocity float64) {
	pc.pidX.SetOutputLimits(-maxVelocity, maxVelocity)
	pc.pidY.SetOutputLimits(-maxVelocity, maxVelocity)
	pc.pidZ.SetOutputLimits(-maxVelocity, maxVelocity)
}

// ComputeControl returns the velocity vector and yaw rate steering the
// drone toward the target pose.
func (pc *PositionController) ComputeControl(currentPos, targetPos geo.Vec3, currentYaw, targetYaw, dt float64) (geo.Vec3, float64) {
	errX := targetPos.X - currentPos.X
	errY := targetPos.Y - currentPos.Y
	errZ := targetPos.Z - currentPos.Z

	// Wrap the yaw error into (-pi, pi] so the controller never chases the
	// long way around the circle.
	errYaw := WrapAngle(targetYaw - currentYaw)

	velocity := geo.Vec3{
		X: pc.pidX.Update(errX, dt),
		Y: pc.pidY.Update(errY, dt),
		Z: pc.pidZ.Update(errZ, dt),
	}
	yawRate := pc.pidYaw.Update(errYaw, dt)

	return velocity, yawRate
}

// WrapAngle normalizes an angle difference into (-pi, pi].
func WrapAngle(angle float64) float64 {
	return math.Atan2(math.Sin(angle), math.Cos(angle))
}
