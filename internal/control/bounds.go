package control

import "uav-swarm/server/internal/geo"

// Bounds describes the safe flight envelope. X and Y share one interval;
// Z has its own so targets never sit on the floor or above the ceiling.
type Bounds struct {
	MinXY float64
	MaxXY float64
	MinZ  float64
	MaxZ  float64
}

// DefaultBounds is the envelope every stored target is clamped into.
var DefaultBounds = Bounds{MinXY: -10.0, MaxXY: 10.0, MinZ: 0.1, MaxZ: 5.0}

// ClampPosition clamps pos into the envelope.
func (b Bounds) ClampPosition(pos geo.Vec3) geo.Vec3 {
	return geo.Vec3{
		X: geo.Clamp(pos.X, b.MinXY, b.MaxXY),
		Y: geo.Clamp(pos.Y, b.MinXY, b.MaxXY),
		Z: geo.Clamp(pos.Z, b.MinZ, b.MaxZ),
	}
}

// ClampVelocity scales vel down so its magnitude never exceeds maxVel.
// Direction is preserved.
func ClampVelocity(vel geo.Vec3, maxVel float64) geo.Vec3 {
	magnitude := vel.Length()
	if magnitude > maxVel && magnitude > 0 {
		return vel.Scale(maxVel / magnitude)
	}
	return vel
}
