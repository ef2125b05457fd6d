package swarm

import (
	"context"
	"math"
	"testing"

	"uav-swarm/server/internal/physics"
	"uav-swarm/server/logging"
	"uav-swarm/server/logging/flight"
)

func newTestWorld(t *testing.T, n int) *World {
	t.Helper()
	cfg := Config{NumDrones: n}.normalized()
	engine := physics.NewKinematic(n, cfg.PhysicsHz, cfg.MaxVelocity)
	world, err := NewWorld(cfg, engine, logging.NopPublisher(), nil)
	if err != nil {
		t.Fatalf("failed to build world: %v", err)
	}
	return world
}

func stepWorld(t *testing.T, w *World, commands []Command) {
	t.Helper()
	if err := w.Step(context.Background(), commands); err != nil {
		t.Fatalf("step failed: %v", err)
	}
}

func TestLastCommandWinsWithinOneDrain(t *testing.T) {
	world := newTestWorld(t, 3)
	stepWorld(t, world, []Command{
		{Type: CommandTakeoff, Target: TargetAll(), Takeoff: &TakeoffCommand{Altitude: 1.0}},
		{Type: CommandLand, Target: TargetAll()},
	})
	for _, d := range world.drones {
		if d.state.Mode != ModeLanding {
			t.Fatalf("drone %d mode = %s, want landing", d.state.ID, d.state.Mode)
		}
	}
}

func TestGotoClampsTargetToBounds(t *testing.T) {
	world := newTestWorld(t, 1)
	stepWorld(t, world, []Command{
		{Type: CommandGoto, Target: TargetDrone(0), Goto: &GotoCommand{X: 100, Y: 0, Z: 1}},
	})
	target := world.drones[0].targetPosition
	if target.X != 10 {
		t.Fatalf("target x = %v, want clamped to 10", target.X)
	}
	if target.Z != 1 {
		t.Fatalf("target z = %v, want 1", target.Z)
	}
}

func TestTakeoffArrivalAnchorsHoverAtCurrentPosition(t *testing.T) {
	world := newTestWorld(t, 1)
	stepWorld(t, world, []Command{
		{Type: CommandTakeoff, Target: TargetDrone(0), Takeoff: &TakeoffCommand{Altitude: 1.0}},
	})
	for i := 0; i < 2400 && world.drones[0].state.Mode == ModeTakeoff; i++ {
		stepWorld(t, world, nil)
	}
	d := world.drones[0]
	if d.state.Mode != ModeHover {
		t.Fatalf("mode = %s, want hover after arrival", d.state.Mode)
	}
	// The anchor is pinned at the arrival control tick; the drone may
	// drift a hair before the loop exits, so compare distances.
	if d.state.Position.Sub(d.targetPosition).Length() > arrivalDistance {
		t.Fatalf("hover anchor %v too far from position %v", d.targetPosition, d.state.Position)
	}
}

func TestLandingArrivalEntersIdleAndStopsDrone(t *testing.T) {
	world := newTestWorld(t, 1)
	stepWorld(t, world, []Command{
		{Type: CommandTakeoff, Target: TargetDrone(0), Takeoff: &TakeoffCommand{Altitude: 1.0}},
	})
	for i := 0; i < 2400 && world.drones[0].state.Mode != ModeHover; i++ {
		stepWorld(t, world, nil)
	}
	stepWorld(t, world, []Command{{Type: CommandLand, Target: TargetDrone(0)}})
	for i := 0; i < 2400 && world.drones[0].state.Mode != ModeIdle; i++ {
		stepWorld(t, world, nil)
	}
	d := world.drones[0]
	if d.state.Mode != ModeIdle {
		t.Fatalf("mode = %s, want idle after landing", d.state.Mode)
	}
	if d.desiredVelocity.Length() != 0 {
		t.Fatalf("idle drone still has desired velocity %v", d.desiredVelocity)
	}
}

func TestBatteryDrainAfterTwoSimulatedMinutes(t *testing.T) {
	world := newTestWorld(t, 1)
	stepWorld(t, world, []Command{
		{Type: CommandVelocity, Target: TargetDrone(0), Velocity: &VelocityCommand{}},
	})
	steps := 120 * world.cfg.PhysicsHz
	for i := 0; i < steps; i++ {
		stepWorld(t, world, nil)
	}
	battery := world.drones[0].state.Battery
	if math.Abs(battery-99.0) > 1e-6 {
		t.Fatalf("battery = %v after 120s non-idle, want 99.0", battery)
	}
}

func TestIdleDronesDoNotDrainBattery(t *testing.T) {
	world := newTestWorld(t, 1)
	steps := 10 * world.cfg.PhysicsHz
	for i := 0; i < steps; i++ {
		stepWorld(t, world, nil)
	}
	if battery := world.drones[0].state.Battery; battery != fullBattery {
		t.Fatalf("idle battery = %v, want %v", battery, fullBattery)
	}
}

func TestHealthIsLatchFree(t *testing.T) {
	world := newTestWorld(t, 1)
	ctx := context.Background()
	d := world.drones[0]

	d.state.Position.X = 16
	world.updateHealth(ctx)
	if d.state.Healthy {
		t.Fatalf("drone at x=16 should be unhealthy")
	}

	d.state.Position.X = 0
	world.updateHealth(ctx)
	if !d.state.Healthy {
		t.Fatalf("drone back in bounds should recover health")
	}
}

func TestVelocityCommandClampsMagnitudeAndYawRate(t *testing.T) {
	world := newTestWorld(t, 1)
	stepWorld(t, world, []Command{
		{Type: CommandVelocity, Target: TargetDrone(0), Velocity: &VelocityCommand{VX: 10, VY: 0, VZ: 0, YawRate: 12}},
	})
	d := world.drones[0]
	if speed := d.commandVelocity.Length(); math.Abs(speed-world.cfg.MaxVelocity) > 1e-9 {
		t.Fatalf("stored speed = %v, want %v", speed, world.cfg.MaxVelocity)
	}
	if d.commandYawRate != world.cfg.MaxYawRate {
		t.Fatalf("stored yaw rate = %v, want %v", d.commandYawRate, world.cfg.MaxYawRate)
	}
}

func TestRespawnRebuildsFreshFleet(t *testing.T) {
	world := newTestWorld(t, 5)
	stepWorld(t, world, []Command{
		{Type: CommandSpawn, Target: TargetAll(), Spawn: &SpawnCommand{NumDrones: 3}},
		{Type: CommandTakeoff, Target: TargetAll(), Takeoff: &TakeoffCommand{Altitude: 1.0}},
	})
	stepWorld(t, world, []Command{
		{Type: CommandSpawn, Target: TargetAll(), Spawn: &SpawnCommand{NumDrones: 8}},
	})

	snapshot := world.Snapshot()
	if len(snapshot.Drones) != 8 || world.NumDrones() != 8 {
		t.Fatalf("fleet size = %d, want 8", len(snapshot.Drones))
	}
	for _, state := range snapshot.Drones {
		if state.Mode != ModeIdle {
			t.Fatalf("drone %d mode = %s, want idle after respawn", state.ID, state.Mode)
		}
		if state.Battery != fullBattery {
			t.Fatalf("drone %d battery = %v, want full after respawn", state.ID, state.Battery)
		}
	}
}

func TestAllTargetResolvesAtDispatchTime(t *testing.T) {
	world := newTestWorld(t, 3)
	// Spawn and takeoff drain in the same pass: "all" must see the new
	// eight drones, not the three that existed at enqueue time.
	stepWorld(t, world, []Command{
		{Type: CommandSpawn, Target: TargetAll(), Spawn: &SpawnCommand{NumDrones: 8}},
		{Type: CommandTakeoff, Target: TargetAll(), Takeoff: &TakeoffCommand{Altitude: 1.0}},
	})
	if len(world.drones) != 8 {
		t.Fatalf("fleet size = %d, want 8", len(world.drones))
	}
	for _, d := range world.drones {
		if d.state.Mode != ModeTakeoff {
			t.Fatalf("drone %d mode = %s, want takeoff", d.state.ID, d.state.Mode)
		}
	}
}

func TestRejectedCommandDoesNotAbortTheBatch(t *testing.T) {
	var rejected []flight.CommandRejectedPayload
	publisher := logging.PublisherFunc(func(_ context.Context, event logging.Event) {
		if event.Type == flight.EventCommandRejected {
			if payload, ok := event.Payload.(flight.CommandRejectedPayload); ok {
				rejected = append(rejected, payload)
			}
		}
	})

	cfg := Config{NumDrones: 2}.normalized()
	engine := physics.NewKinematic(2, cfg.PhysicsHz, cfg.MaxVelocity)
	world, err := NewWorld(cfg, engine, publisher, nil)
	if err != nil {
		t.Fatalf("failed to build world: %v", err)
	}

	stepWorld(t, world, []Command{
		{Type: CommandGoto, Target: TargetDrone(99), Goto: &GotoCommand{X: 1, Y: 1, Z: 1}},
		{Type: CommandTakeoff, Target: TargetAll(), Takeoff: &TakeoffCommand{Altitude: 1.0}},
	})

	if len(rejected) != 1 || rejected[0].Reason != RejectUnknownDrone {
		t.Fatalf("expected one unknown_drone rejection, got %+v", rejected)
	}
	for _, d := range world.drones {
		if d.state.Mode != ModeTakeoff {
			t.Fatalf("drone %d mode = %s, want takeoff despite earlier rejection", d.state.ID, d.state.Mode)
		}
	}
}

func TestUnknownFormationPatternIsRejected(t *testing.T) {
	world := newTestWorld(t, 3)
	stepWorld(t, world, []Command{
		{Type: CommandFormation, Target: TargetAll(), Formation: &FormationCommand{}},
	})
	for _, d := range world.drones {
		if d.state.Mode != ModeIdle {
			t.Fatalf("drone %d mode = %s, want idle after rejected formation", d.state.ID, d.state.Mode)
		}
	}
}

func TestSpeedFactorClampAndSubSteps(t *testing.T) {
	world := newTestWorld(t, 1)
	if got := world.SetSpeedFactor(25); got != maxSpeedFactor {
		t.Fatalf("speed factor = %d, want clamped to %d", got, maxSpeedFactor)
	}
	before := world.SimTime()
	stepWorld(t, world, nil)
	elapsed := world.SimTime() - before
	want := float64(maxSpeedFactor) * world.physicsDt
	if math.Abs(elapsed-want) > 1e-12 {
		t.Fatalf("one tick advanced %v, want %v", elapsed, want)
	}

	if got := world.SetSpeedFactor(0); got != minSpeedFactor {
		t.Fatalf("speed factor = %d, want clamped to %d", got, minSpeedFactor)
	}
}

func TestSnapshotIsolatedFromLiveState(t *testing.T) {
	world := newTestWorld(t, 2)
	snapshot := world.Snapshot()
	stepWorld(t, world, []Command{
		{Type: CommandTakeoff, Target: TargetAll(), Takeoff: &TakeoffCommand{Altitude: 1.0}},
	})
	if snapshot.Drones[0].Mode != ModeIdle {
		t.Fatalf("published snapshot mutated after step")
	}
	if world.Snapshot() == snapshot {
		t.Fatalf("step did not publish a new snapshot")
	}
}
