package formation

import (
	"fmt"
	"math"

	"uav-swarm/server/internal/geo"
)

// Pattern enumerates the supported formation geometries.
type Pattern string

const (
	PatternLine   Pattern = "line"
	PatternCircle Pattern = "circle"
	PatternGrid   Pattern = "grid"
	PatternV      Pattern = "v"
)

// ParsePattern validates a wire-level pattern name.
func ParsePattern(raw string) (Pattern, bool) {
	switch Pattern(raw) {
	case PatternLine, PatternCircle, PatternGrid, PatternV:
		return Pattern(raw), true
	default:
		return "", false
	}
}

// Axis selects the direction of a line formation.
type Axis string

const (
	AxisX Axis = "x"
	AxisY Axis = "y"
)

// Spec is the pure input to the planner. It carries every parameter any
// pattern needs; patterns read only the fields they use.
type Spec struct {
	Pattern Pattern  `json:"pattern"`
	Center  geo.Vec3 `json:"center"`
	Spacing float64  `json:"spacing"`
	Radius  float64  `json:"radius"`
	Axis    Axis     `json:"axis"`
}

// DefaultVAngle is the half-angle of the V pattern in radians (30 degrees).
const DefaultVAngle = math.Pi / 6

// Positions generates n target positions for the spec. Output order is
// significant: position i is always assigned to drone i.
func Positions(spec Spec, n int) ([]geo.Vec3, error) {
	switch spec.Pattern {
	case PatternLine:
		return Line(spec.Center, n, spec.Spacing, spec.Axis)
	case PatternCircle:
		return Circle(spec.Center, n, spec.Radius), nil
	case PatternGrid:
		return Grid(spec.Center, n, spec.Spacing), nil
	case PatternV:
		return V(spec.Center, n, spec.Spacing, DefaultVAngle), nil
	default:
		return nil, fmt.Errorf("unknown formation pattern %q", spec.Pattern)
	}
}

// Line places n drones evenly along the chosen axis, centered on center.
func Line(center geo.Vec3, n int, spacing float64, axis Axis) ([]geo.Vec3, error) {
	if axis != AxisX && axis != AxisY {
		return nil, fmt.Errorf("invalid line axis %q", axis)
	}
	positions := make([]geo.Vec3, 0, n)
	startOffset := -float64(n-1) * spacing / 2.0
	for i := 0; i < n; i++ {
		pos := center
		offset := startOffset + float64(i)*spacing
		if axis == AxisX {
			pos.X += offset
		} else {
			pos.Y += offset
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

// Circle places n drones on a circle of the given radius in the XY plane.
func Circle(center geo.Vec3, n int, radius float64) []geo.Vec3 {
	positions := make([]geo.Vec3, 0, n)
	for i := 0; i < n; i++ {
		angle := 2 * math.Pi * float64(i) / float64(n)
		pos := center
		pos.X += radius * math.Cos(angle)
		pos.Y += radius * math.Sin(angle)
		positions = append(positions, pos)
	}
	return positions
}

// Grid places n drones in a near-square centered grid.
func Grid(center geo.Vec3, n int, spacing float64) []geo.Vec3 {
	cols := int(math.Ceil(math.Sqrt(float64(n))))
	rows := int(math.Ceil(float64(n) / float64(cols)))

	startX := -float64(cols-1) * spacing / 2.0
	startY := -float64(rows-1) * spacing / 2.0

	positions := make([]geo.Vec3, 0, n)
	for i := 0; i < n; i++ {
		row := i / cols
		col := i % cols
		pos := center
		pos.X += startX + float64(col)*spacing
		pos.Y += startY + float64(row)*spacing
		positions = append(positions, pos)
	}
	return positions
}

// V places drone 0 at the apex and alternates followers left and right,
// each pair stepping further back along -X and out along ±Y.
func V(center geo.Vec3, n int, spacing, angle float64) []geo.Vec3 {
	positions := make([]geo.Vec3, 0, n)
	if n <= 0 {
		return positions
	}
	positions = append(positions, center)
	for i := 1; i < n; i++ {
		pos := center
		side := -1.0
		if i%2 == 0 {
			side = 1.0
		}
		offsetBack := float64((i + 1) / 2)
		pos.X -= offsetBack * spacing * math.Cos(angle)
		pos.Y += side * offsetBack * spacing * math.Sin(angle)
		positions = append(positions, pos)
	}
	return positions
}
