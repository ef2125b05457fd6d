package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"uav-swarm/server/internal/physics"
	"uav-swarm/server/internal/swarm"
	"uav-swarm/server/logging"
)

func newTestLoop(t *testing.T, n int) (*Loop, *swarm.World) {
	t.Helper()
	cfg := swarm.Config{NumDrones: n}
	engine := physics.NewKinematic(n, 240, 2.0)
	world, err := swarm.NewWorld(cfg, engine, logging.NopPublisher(), nil)
	if err != nil {
		t.Fatalf("failed to build world: %v", err)
	}
	loop := NewLoop(LoopConfig{QueueCapacity: 8}, world, logging.NopPublisher(), nil, nil)
	return loop, world
}

func TestLoopAppliesEnqueuedCommandsOnNextTick(t *testing.T) {
	loop, world := newTestLoop(t, 2)
	ctx := context.Background()

	if err := loop.Enqueue(ctx, swarm.Command{
		Type:    swarm.CommandTakeoff,
		Target:  swarm.TargetAll(),
		Takeoff: &swarm.TakeoffCommand{Altitude: 1.0},
	}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if err := loop.Advance(ctx); err != nil {
		t.Fatalf("advance failed: %v", err)
	}

	snapshot := world.Snapshot()
	for _, d := range snapshot.Drones {
		if d.Mode != swarm.ModeTakeoff {
			t.Fatalf("drone %d mode = %s, want takeoff", d.ID, d.Mode)
		}
	}
	if loop.QueueDepth() != 0 {
		t.Fatalf("queue not drained after tick")
	}
}

func TestLoopRejectsWhenQueueFull(t *testing.T) {
	loop, _ := newTestLoop(t, 1)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		if err := loop.Enqueue(ctx, swarm.Command{Type: swarm.CommandHover, Target: swarm.TargetAll()}); err != nil {
			t.Fatalf("enqueue %d failed: %v", i, err)
		}
	}
	err := loop.Enqueue(ctx, swarm.Command{Type: swarm.CommandHover, Target: swarm.TargetAll()})
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestLoopAfterStepSeesFreshSnapshot(t *testing.T) {
	loop, _ := newTestLoop(t, 1)
	ctx := context.Background()

	var ticks []uint64
	loop.SetAfterStep(func(snapshot *swarm.Snapshot, elapsed time.Duration) {
		if elapsed < 0 {
			t.Errorf("elapsed = %v, want non-negative", elapsed)
		}
		ticks = append(ticks, snapshot.Tick)
	})
	for i := 0; i < 3; i++ {
		if err := loop.Advance(ctx); err != nil {
			t.Fatalf("advance %d failed: %v", i, err)
		}
	}
	if len(ticks) != 3 || ticks[0] >= ticks[2] {
		t.Fatalf("after-step ticks = %v, want three increasing values", ticks)
	}
}

func TestLoopRunStopsOnCancel(t *testing.T) {
	loop, _ := newTestLoop(t, 1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- loop.Run(ctx)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop after cancel")
	}
}

func TestLoopRunStopsOnWorldFailure(t *testing.T) {
	cfg := swarm.Config{NumDrones: 1}
	engine := physics.NewKinematic(1, 240, 2.0)
	world, err := swarm.NewWorld(cfg, engine, logging.NopPublisher(), nil)
	if err != nil {
		t.Fatalf("failed to build world: %v", err)
	}
	loop := NewLoop(LoopConfig{Interval: time.Millisecond}, world, logging.NopPublisher(), nil, nil)

	// Closing the engine makes the next physics step fail.
	if err := engine.Close(); err != nil {
		t.Fatalf("engine close failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- loop.Run(context.Background())
	}()
	select {
	case err := <-done:
		if !errors.Is(err, physics.ErrClosed) {
			t.Fatalf("run returned %v, want wrapped physics.ErrClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop after physics failure")
	}
}
