package sim

import (
	"sync"
	"testing"

	"uav-swarm/server/internal/swarm"
)

func TestCommandBufferPreservesArrivalOrder(t *testing.T) {
	buffer := NewCommandBuffer(8)
	types := []swarm.CommandType{swarm.CommandTakeoff, swarm.CommandHover, swarm.CommandLand}
	for _, commandType := range types {
		if !buffer.Enqueue(swarm.Command{Type: commandType, Target: swarm.TargetAll()}) {
			t.Fatalf("enqueue %s refused", commandType)
		}
	}
	drained := buffer.Drain()
	if len(drained) != len(types) {
		t.Fatalf("drained %d commands, want %d", len(drained), len(types))
	}
	for i, cmd := range drained {
		if cmd.Type != types[i] {
			t.Fatalf("position %d = %s, want %s", i, cmd.Type, types[i])
		}
	}
	if buffer.Len() != 0 {
		t.Fatalf("buffer not empty after drain")
	}
}

func TestCommandBufferRefusesWhenFull(t *testing.T) {
	buffer := NewCommandBuffer(2)
	buffer.Enqueue(swarm.Command{Type: swarm.CommandHover})
	buffer.Enqueue(swarm.Command{Type: swarm.CommandHover})
	if buffer.Enqueue(swarm.Command{Type: swarm.CommandLand}) {
		t.Fatalf("full buffer accepted a third command")
	}
	if buffer.Dropped() != 1 {
		t.Fatalf("dropped = %d, want 1", buffer.Dropped())
	}
	// The refused command must not displace queued ones.
	drained := buffer.Drain()
	if len(drained) != 2 || drained[0].Type != swarm.CommandHover {
		t.Fatalf("unexpected drain after overflow: %+v", drained)
	}
}

func TestCommandBufferWrapsAround(t *testing.T) {
	buffer := NewCommandBuffer(2)
	for round := 0; round < 5; round++ {
		buffer.Enqueue(swarm.Command{Type: swarm.CommandTakeoff})
		buffer.Enqueue(swarm.Command{Type: swarm.CommandLand})
		drained := buffer.Drain()
		if len(drained) != 2 || drained[0].Type != swarm.CommandTakeoff || drained[1].Type != swarm.CommandLand {
			t.Fatalf("round %d drained %+v", round, drained)
		}
	}
}

func TestCommandBufferConcurrentProducers(t *testing.T) {
	buffer := NewCommandBuffer(1024)
	const producers = 8
	const perProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				buffer.Enqueue(swarm.Command{Type: swarm.CommandHover, Target: swarm.TargetAll()})
			}
		}()
	}
	wg.Wait()

	if got := len(buffer.Drain()); got != producers*perProducer {
		t.Fatalf("drained %d commands, want %d", got, producers*perProducer)
	}
}
