package physics

import (
	"math"
	"testing"

	"uav-swarm/server/internal/geo"
)

func TestKinematicStepIntegratesVelocity(t *testing.T) {
	engine := NewKinematic(1, 240, 2.0)
	start := engine.States()[0].Position

	actions := []Action{{Direction: geo.Vec3{Z: 1}, Speed: 0.5}}
	var last []Kinematics
	var err error
	for i := 0; i < 240; i++ {
		last, err = engine.Step(actions)
		if err != nil {
			t.Fatalf("step %d failed: %v", i, err)
		}
	}
	// One simulated second at 1 m/s upward.
	climbed := last[0].Position.Z - start.Z
	if math.Abs(climbed-1.0) > 1e-6 {
		t.Fatalf("expected 1.0m climb, got %v", climbed)
	}
	if math.Abs(engine.Time()-1.0) > 1e-9 {
		t.Fatalf("expected 1.0s sim time, got %v", engine.Time())
	}
}

func TestKinematicGroundClamp(t *testing.T) {
	engine := NewKinematic(1, 240, 2.0)
	actions := []Action{{Direction: geo.Vec3{Z: -1}, Speed: 1.0}}
	for i := 0; i < 480; i++ {
		if _, err := engine.Step(actions); err != nil {
			t.Fatalf("step failed: %v", err)
		}
	}
	state := engine.States()[0]
	if state.Position.Z != 0 {
		t.Fatalf("expected drone held at ground, got z=%v", state.Position.Z)
	}
	if state.Velocity.Z != 0 {
		t.Fatalf("expected vertical velocity zeroed on ground, got %v", state.Velocity.Z)
	}
}

func TestKinematicRespawnRebuildsGrid(t *testing.T) {
	engine := NewKinematic(3, 240, 2.0)
	if _, err := engine.Step([]Action{{Direction: geo.Vec3{X: 1}, Speed: 1}, {}, {}}); err != nil {
		t.Fatalf("step failed: %v", err)
	}
	if err := engine.Respawn(8); err != nil {
		t.Fatalf("respawn failed: %v", err)
	}
	states := engine.States()
	if len(states) != 8 {
		t.Fatalf("expected 8 drones, got %d", len(states))
	}
	if engine.Time() != 0 {
		t.Fatalf("expected sim time reset, got %v", engine.Time())
	}
	for i, state := range states {
		if state.Position.Z != spawnAltitude {
			t.Fatalf("drone %d: expected spawn altitude, got %v", i, state.Position.Z)
		}
	}
}

func TestKinematicActionCountMismatch(t *testing.T) {
	engine := NewKinematic(2, 240, 2.0)
	if _, err := engine.Step([]Action{{}}); err == nil {
		t.Fatalf("expected error for mismatched action count")
	}
}

func TestKinematicClosed(t *testing.T) {
	engine := NewKinematic(1, 240, 2.0)
	if err := engine.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if _, err := engine.Step([]Action{{}}); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
