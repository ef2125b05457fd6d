package sim

import (
	"sync"

	"uav-swarm/server/internal/swarm"
)

// DefaultQueueCapacity bounds the command buffer when the caller does not
// choose a size.
const DefaultQueueCapacity = 256

// CommandBuffer is a bounded multiple-producer single-consumer FIFO.
// Producers enqueue from any goroutine without blocking; the control loop
// drains everything in one call per tick. When the ring is full the
// newest command is refused, never an older one, so dispatch order stays
// strictly first-in first-out.
type CommandBuffer struct {
	mu      sync.Mutex
	ring    []swarm.Command
	head    int
	count   int
	dropped uint64
}

// NewCommandBuffer builds a buffer holding up to capacity commands.
func NewCommandBuffer(capacity int) *CommandBuffer {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &CommandBuffer{ring: make([]swarm.Command, capacity)}
}

// Enqueue appends a command. It reports false when the ring is full; the
// command is counted as dropped and the caller surfaces the rejection.
func (b *CommandBuffer) Enqueue(cmd swarm.Command) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == len(b.ring) {
		b.dropped++
		return false
	}
	b.ring[(b.head+b.count)%len(b.ring)] = cmd
	b.count++
	return true
}

// Drain removes and returns every queued command in arrival order. It
// never blocks; an empty buffer yields nil.
func (b *CommandBuffer) Drain() []swarm.Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == 0 {
		return nil
	}
	drained := make([]swarm.Command, b.count)
	for i := 0; i < b.count; i++ {
		slot := (b.head + i) % len(b.ring)
		drained[i] = b.ring[slot]
		b.ring[slot] = swarm.Command{}
	}
	b.head = (b.head + b.count) % len(b.ring)
	b.count = 0
	return drained
}

// Len reports how many commands are waiting.
func (b *CommandBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Dropped reports how many commands were refused because the ring was
// full.
func (b *CommandBuffer) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
