package geo

import (
	"math"
	"testing"
)

func TestVec3Arithmetic(t *testing.T) {
	a := Vec3{X: 1, Y: 2, Z: 3}
	b := Vec3{X: -1, Y: 0.5, Z: 2}

	if got := a.Add(b); got != (Vec3{X: 0, Y: 2.5, Z: 5}) {
		t.Fatalf("add = %+v", got)
	}
	if got := a.Sub(b); got != (Vec3{X: 2, Y: 1.5, Z: 1}) {
		t.Fatalf("sub = %+v", got)
	}
	if got := a.Scale(2); got != (Vec3{X: 2, Y: 4, Z: 6}) {
		t.Fatalf("scale = %+v", got)
	}
}

func TestVec3Normalize(t *testing.T) {
	v := Vec3{X: 3, Y: 4, Z: 0}
	unit := v.Normalize()
	if math.Abs(unit.Length()-1.0) > 1e-12 {
		t.Fatalf("|normalized| = %v, want 1", unit.Length())
	}
	if (Vec3{}).Normalize() != (Vec3{}) {
		t.Fatalf("zero vector must normalize to zero")
	}
}

func TestVec3NormalizeSafe(t *testing.T) {
	tiny := Vec3{X: 1e-9}
	if tiny.NormalizeSafe(1e-6) != (Vec3{}) {
		t.Fatalf("sub-epsilon vector must collapse to zero")
	}
	v := Vec3{X: 0, Y: 0, Z: 2}
	if got := v.NormalizeSafe(1e-6); got != (Vec3{X: 0, Y: 0, Z: 1}) {
		t.Fatalf("normalizeSafe = %+v", got)
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(5, -1, 1); got != 1 {
		t.Fatalf("clamp high = %v", got)
	}
	if got := Clamp(-5, -1, 1); got != -1 {
		t.Fatalf("clamp low = %v", got)
	}
	if got := Clamp(0.25, -1, 1); got != 0.25 {
		t.Fatalf("clamp inside = %v", got)
	}
}
