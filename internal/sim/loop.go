package sim

import (
	"context"
	"errors"
	"time"

	"uav-swarm/server/internal/swarm"
	"uav-swarm/server/internal/telemetry"
	"uav-swarm/server/logging"
	"uav-swarm/server/logging/flight"
)

// Metric keys maintained by the loop.
const (
	MetricTicksTotal         = "sim_ticks_total"
	MetricTickDurationMicros = "sim_tick_duration_micros"
	MetricQueueDropped       = "sim_queue_dropped_total"
)

// ErrQueueFull is returned by Enqueue when the command buffer refuses a
// command.
var ErrQueueFull = errors.New("sim: command queue full")

// LoopConfig tunes the runner. Zero values take defaults matching a
// 240 Hz physics cadence.
type LoopConfig struct {
	// Interval between world steps in wall time.
	Interval time.Duration
	// QueueCapacity bounds the command buffer.
	QueueCapacity int
	// TickBudget is the wall time one step may take before the loop
	// publishes an overrun warning. Defaults to Interval.
	TickBudget time.Duration
}

func (c LoopConfig) normalized() LoopConfig {
	if c.Interval <= 0 {
		c.Interval = time.Second / 240
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = DefaultQueueCapacity
	}
	if c.TickBudget <= 0 {
		c.TickBudget = c.Interval
	}
	return c
}

// Loop drives a world at a fixed wall-clock cadence on one goroutine.
// Producers feed it through Enqueue; everything else stays on the loop
// goroutine.
type Loop struct {
	cfg       LoopConfig
	world     *swarm.World
	buffer    *CommandBuffer
	publisher logging.Publisher
	metrics   telemetry.Metrics
	logger    telemetry.Logger

	// afterStep runs on the loop goroutine after each successful step.
	afterStep func(*swarm.Snapshot, time.Duration)
}

// NewLoop builds a runner for the world.
func NewLoop(cfg LoopConfig, world *swarm.World, publisher logging.Publisher, metrics telemetry.Metrics, logger telemetry.Logger) *Loop {
	cfg = cfg.normalized()
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	return &Loop{
		cfg:       cfg,
		world:     world,
		buffer:    NewCommandBuffer(cfg.QueueCapacity),
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

// SetAfterStep installs a hook invoked after every successful step with
// the snapshot that step published and the wall time it took. Must be
// set before Run.
func (l *Loop) SetAfterStep(hook func(*swarm.Snapshot, time.Duration)) {
	l.afterStep = hook
}

// Enqueue hands a command to the loop. Safe from any goroutine; it never
// blocks. A full queue rejects the command.
func (l *Loop) Enqueue(ctx context.Context, cmd swarm.Command) error {
	if l.buffer.Enqueue(cmd) {
		return nil
	}
	flight.CommandRejected(ctx, l.publisher, 0, flight.CommandRejectedPayload{
		CommandType: string(cmd.Type),
		Reason:      swarm.RejectQueueFull,
		DroneID:     -1,
	})
	if l.metrics != nil {
		l.metrics.Add(MetricQueueDropped, 1)
	}
	return ErrQueueFull
}

// QueueDepth reports how many commands are waiting for the next tick.
func (l *Loop) QueueDepth() int {
	return l.buffer.Len()
}

// Run steps the world until the context is cancelled or the world
// reports a fatal error. It blocks; callers run it on a dedicated
// goroutine.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := l.tick(ctx); err != nil {
				if l.logger != nil {
					l.logger.Printf("sim loop stopping: %v", err)
				}
				return err
			}
		}
	}
}

// Advance runs exactly one tick. Exposed so tests and offline drivers can
// step the world without wall-clock pacing.
func (l *Loop) Advance(ctx context.Context) error {
	return l.tick(ctx)
}

func (l *Loop) tick(ctx context.Context) error {
	commands := l.buffer.Drain()
	started := time.Now()
	err := l.world.Step(ctx, commands)
	elapsed := time.Since(started)

	if l.metrics != nil {
		l.metrics.Add(MetricTicksTotal, 1)
		l.metrics.Store(MetricTickDurationMicros, uint64(elapsed.Microseconds()))
	}
	if err != nil {
		return err
	}

	if elapsed > l.cfg.TickBudget {
		snapshot := l.world.Snapshot()
		flight.TickBudgetOverrun(ctx, l.publisher, snapshot.Tick, flight.TickBudgetOverrunPayload{
			DurationMillis: elapsed.Milliseconds(),
			BudgetMillis:   l.cfg.TickBudget.Milliseconds(),
			Ratio:          float64(elapsed) / float64(l.cfg.TickBudget),
		})
	}
	if l.afterStep != nil {
		l.afterStep(l.world.Snapshot(), elapsed)
	}
	return nil
}
