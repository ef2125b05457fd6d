package swarm

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"uav-swarm/server/internal/control"
	"uav-swarm/server/internal/formation"
	"uav-swarm/server/internal/geo"
	"uav-swarm/server/internal/physics"
	"uav-swarm/server/internal/telemetry"
	"uav-swarm/server/logging"
	"uav-swarm/server/logging/flight"
	"uav-swarm/server/logging/lifecycle"
)

// Metric keys maintained by the orchestrator.
const (
	MetricCommandsApplied  = "swarm_commands_applied_total"
	MetricCommandsRejected = "swarm_commands_rejected_total"
	MetricFleetSize        = "swarm_fleet_size"
)

// Health limits. Drones beyond these are flagged unhealthy until they
// return; there is no latch.
const (
	healthMaxXY     = 15.0
	healthMaxZ      = 10.0
	minSpeedFactor  = 1
	maxSpeedFactor  = 10
	defaultMaxSpeed = 2.0
)

// Config carries the orchestrator's tuning. Zero values are replaced by
// normalized defaults.
type Config struct {
	NumDrones int
	PhysicsHz int
	ControlHz int
	// BatteryDrainRate is the charge lost per minute of non-idle flight,
	// in percent.
	BatteryDrainRate float64
	MaxVelocity      float64
	MaxYawRate       float64
	Bounds           control.Bounds
}

// normalized fills in defaults for unset fields.
func (c Config) normalized() Config {
	if c.NumDrones <= 0 {
		c.NumDrones = 5
	}
	if c.PhysicsHz <= 0 {
		c.PhysicsHz = 240
	}
	if c.ControlHz <= 0 {
		c.ControlHz = 60
	}
	if c.BatteryDrainRate <= 0 {
		c.BatteryDrainRate = 0.5
	}
	if c.MaxVelocity <= 0 {
		c.MaxVelocity = defaultMaxSpeed
	}
	if c.MaxYawRate <= 0 {
		c.MaxYawRate = math.Pi
	}
	if c.Bounds == (control.Bounds{}) {
		c.Bounds = control.DefaultBounds
	}
	return c
}

// World owns the fleet: every drone record, every controller, and the
// physics engine handle. All mutation happens on the single goroutine that
// calls Step; other goroutines interact only through published snapshots
// and the command queue upstream of Step.
type World struct {
	cfg       Config
	engine    physics.Engine
	publisher logging.Publisher
	metrics   telemetry.Metrics

	drones []*drone

	physicsDt   float64
	controlDt   float64
	simTime     float64
	lastControl float64
	stepCount   uint64
	tick        uint64

	speedFactor atomic.Int32
	latest      atomic.Pointer[Snapshot]
}

// NewWorld builds an orchestrator around an already spawned engine. The
// engine's current states seed the fleet; drone count follows cfg.
func NewWorld(cfg Config, engine physics.Engine, publisher logging.Publisher, metrics telemetry.Metrics) (*World, error) {
	cfg = cfg.normalized()
	if engine == nil {
		return nil, fmt.Errorf("swarm: physics engine is required")
	}
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	w := &World{
		cfg:         cfg,
		engine:      engine,
		publisher:   publisher,
		metrics:     metrics,
		physicsDt:   1.0 / float64(cfg.PhysicsHz),
		controlDt:   1.0 / float64(cfg.ControlHz),
		lastControl: math.Inf(-1),
	}
	w.speedFactor.Store(minSpeedFactor)
	if err := w.buildFleet(cfg.NumDrones); err != nil {
		return nil, err
	}
	w.publishSnapshot()
	return w, nil
}

// buildFleet replaces every drone record with a fresh one seeded from the
// engine's current kinematics.
func (w *World) buildFleet(n int) error {
	states := w.engine.States()
	if len(states) != n {
		return fmt.Errorf("swarm: engine reports %d drones, want %d", len(states), n)
	}
	w.drones = make([]*drone, n)
	for i, kin := range states {
		d := newDrone(i, kin.Position, kin.Yaw)
		d.controller.SetMaxVelocity(w.cfg.MaxVelocity)
		w.drones[i] = d
	}
	if w.metrics != nil {
		w.metrics.Store(MetricFleetSize, uint64(n))
	}
	return nil
}

// NumDrones reports the size of the current fleet generation. Only valid
// from the control goroutine; concurrent readers use Snapshot.
func (w *World) NumDrones() int {
	return len(w.drones)
}

// Snapshot returns the most recently published fleet view. Safe from any
// goroutine.
func (w *World) Snapshot() *Snapshot {
	return w.latest.Load()
}

// SetSpeedFactor sets how many physics sub-steps each Step call runs,
// clamped to [1,10]. Safe from any goroutine.
func (w *World) SetSpeedFactor(factor int) int {
	if factor < minSpeedFactor {
		factor = minSpeedFactor
	}
	if factor > maxSpeedFactor {
		factor = maxSpeedFactor
	}
	w.speedFactor.Store(int32(factor))
	return factor
}

// SpeedFactor reports the current sub-step multiplier.
func (w *World) SpeedFactor() int {
	return int(w.speedFactor.Load())
}

// SimTime reports the simulated clock. Control goroutine only.
func (w *World) SimTime() float64 {
	return w.simTime
}

// Step advances the world by one loop tick: apply the drained commands in
// arrival order, then run one physics sub-step per speed factor, then
// publish a snapshot. Only a physics engine failure is fatal; rejected
// commands are logged and dropped without touching the rest of the batch.
func (w *World) Step(ctx context.Context, commands []Command) error {
	w.tick++
	for _, cmd := range commands {
		if err := w.apply(ctx, cmd); err != nil {
			return err
		}
	}
	subSteps := int(w.speedFactor.Load())
	for i := 0; i < subSteps; i++ {
		if err := w.advance(ctx); err != nil {
			return err
		}
	}
	w.publishSnapshot()
	return nil
}

// advance runs one physics sub-step: control update when due, action
// conversion, the engine call, then time, battery, and health bookkeeping.
func (w *World) advance(ctx context.Context) error {
	if w.simTime-w.lastControl >= w.controlDt {
		w.updateControl(ctx)
		w.lastControl = w.simTime
	}

	actions := make([]physics.Action, len(w.drones))
	for i, d := range w.drones {
		actions[i] = w.toAction(d)
	}
	states, err := w.engine.Step(actions)
	if err != nil {
		return fmt.Errorf("swarm: physics step failed: %w", err)
	}
	if len(states) != len(w.drones) {
		return fmt.Errorf("swarm: physics step returned %d states for %d drones", len(states), len(w.drones))
	}
	for i, kin := range states {
		d := w.drones[i]
		d.state.Position = kin.Position
		d.state.Velocity = kin.Velocity
		d.state.Yaw = kin.Yaw
	}

	w.simTime += w.physicsDt
	w.stepCount++
	if w.stepCount%uint64(w.cfg.PhysicsHz) == 0 {
		w.drainBatteries(ctx)
	}
	w.updateHealth(ctx)
	return nil
}

// updateControl recomputes each drone's desired velocity and yaw rate.
// Arrival transitions happen here, before the controller runs, so a drone
// that just arrived is steered by its new mode this same tick.
func (w *World) updateControl(ctx context.Context) {
	for _, d := range w.drones {
		switch d.state.Mode {
		case ModeLanding:
			if d.state.Position.Z < landingArrivalAltitude {
				w.setMode(ctx, d, ModeIdle)
			}
		case ModeTakeoff:
			if d.state.Position.Sub(d.targetPosition).Length() < arrivalDistance {
				// Anchor the hover at the arrived position, not the
				// original target, so overshoot never accumulates.
				w.setMode(ctx, d, ModeHover)
				d.anchor()
			}
		}

		switch d.state.Mode {
		case ModeIdle:
			d.desiredVelocity = geo.Vec3{}
			d.desiredYawRate = 0
		case ModeVelocity:
			d.desiredVelocity = d.commandVelocity
			d.desiredYawRate = d.commandYawRate
		default:
			vel, yawRate := d.controller.ComputeControl(
				d.state.Position, d.targetPosition,
				d.state.Yaw, d.targetYaw,
				w.controlDt,
			)
			d.desiredVelocity = vel
			d.desiredYawRate = yawRate
		}
	}
}

// toAction converts a desired velocity into the engine's action shape: a
// unit direction plus a speed fraction of the configured max. Near-zero
// velocities become a zero action rather than a degenerate direction.
func (w *World) toAction(d *drone) physics.Action {
	speed := d.desiredVelocity.Length()
	if speed < minActionSpeed {
		return physics.Action{YawRate: d.desiredYawRate}
	}
	fraction := speed / w.cfg.MaxVelocity
	if fraction > 1 {
		fraction = 1
	}
	return physics.Action{
		Direction: d.desiredVelocity.Normalize(),
		Speed:     fraction,
		YawRate:   d.desiredYawRate,
	}
}

// drainBatteries applies one simulated second of battery drain to every
// non-idle drone, floored at zero.
func (w *World) drainBatteries(ctx context.Context) {
	perSecond := w.cfg.BatteryDrainRate / 60.0
	for _, d := range w.drones {
		if d.state.Mode == ModeIdle || d.state.Battery <= 0 {
			continue
		}
		d.state.Battery -= perSecond
		if d.state.Battery <= 0 {
			d.state.Battery = 0
			flight.BatteryDepleted(ctx, w.publisher, w.tick, d.state.ID)
		}
	}
}

// updateHealth recomputes every drone's health flag. The check is
// latch-free: a drone that returns inside the limits with charge left is
// healthy again immediately.
func (w *World) updateHealth(ctx context.Context) {
	for _, d := range w.drones {
		healthy, reason := w.checkHealth(d)
		if healthy == d.state.Healthy {
			continue
		}
		d.state.Healthy = healthy
		flight.HealthChanged(ctx, w.publisher, w.tick, d.state.ID, flight.HealthChangedPayload{
			Healthy: healthy,
			Reason:  reason,
		})
	}
}

func (w *World) checkHealth(d *drone) (bool, string) {
	pos := d.state.Position
	switch {
	case math.Abs(pos.X) > healthMaxXY || math.Abs(pos.Y) > healthMaxXY:
		return false, "out_of_bounds"
	case pos.Z < 0 || pos.Z > healthMaxZ:
		return false, "altitude"
	case d.state.Battery <= 0:
		return false, "battery"
	default:
		return true, ""
	}
}

// apply dispatches one command. Target resolution and validation happen
// here, against the live fleet, never at enqueue time.
func (w *World) apply(ctx context.Context, cmd Command) error {
	switch cmd.Type {
	case CommandReset:
		return w.applyReset(ctx)
	case CommandSpawn:
		return w.applySpawn(ctx, cmd)
	}

	ids, ok := w.resolveTarget(cmd.Target)
	if !ok {
		w.reject(ctx, cmd, RejectUnknownDrone, firstID(cmd.Target))
		return nil
	}

	switch cmd.Type {
	case CommandTakeoff:
		w.applyTakeoff(ctx, cmd, ids)
	case CommandLand:
		for _, id := range ids {
			d := w.drones[id]
			d.targetPosition = geo.Vec3{X: d.state.Position.X, Y: d.state.Position.Y, Z: landingTargetAltitude}
			d.targetYaw = d.state.Yaw
			w.setMode(ctx, d, ModeLanding)
		}
	case CommandHover:
		for _, id := range ids {
			d := w.drones[id]
			d.anchor()
			w.setMode(ctx, d, ModeHover)
		}
	case CommandGoto:
		w.applyGoto(ctx, cmd, ids)
	case CommandVelocity:
		w.applyVelocity(ctx, cmd, ids)
	case CommandFormation:
		w.applyFormation(ctx, cmd)
	default:
		w.reject(ctx, cmd, RejectBadParameters, firstID(cmd.Target))
		return nil
	}
	if w.metrics != nil {
		w.metrics.Add(MetricCommandsApplied, 1)
	}
	return nil
}

func (w *World) applyTakeoff(ctx context.Context, cmd Command, ids []int) {
	altitude := 1.0
	if cmd.Takeoff != nil {
		altitude = cmd.Takeoff.Altitude
	}
	for _, id := range ids {
		d := w.drones[id]
		target := geo.Vec3{X: d.state.Position.X, Y: d.state.Position.Y, Z: altitude}
		d.targetPosition = w.cfg.Bounds.ClampPosition(target)
		d.targetYaw = d.state.Yaw
		w.setMode(ctx, d, ModeTakeoff)
	}
}

func (w *World) applyGoto(ctx context.Context, cmd Command, ids []int) {
	if cmd.Goto == nil {
		w.reject(ctx, cmd, RejectBadParameters, firstID(cmd.Target))
		return
	}
	target := w.cfg.Bounds.ClampPosition(geo.Vec3{X: cmd.Goto.X, Y: cmd.Goto.Y, Z: cmd.Goto.Z})
	for _, id := range ids {
		d := w.drones[id]
		d.targetPosition = target
		d.targetYaw = cmd.Goto.Yaw
		w.setMode(ctx, d, ModeGoto)
	}
}

func (w *World) applyVelocity(ctx context.Context, cmd Command, ids []int) {
	if cmd.Velocity == nil {
		w.reject(ctx, cmd, RejectBadParameters, firstID(cmd.Target))
		return
	}
	velocity := control.ClampVelocity(
		geo.Vec3{X: cmd.Velocity.VX, Y: cmd.Velocity.VY, Z: cmd.Velocity.VZ},
		w.cfg.MaxVelocity,
	)
	yawRate := geo.Clamp(cmd.Velocity.YawRate, -w.cfg.MaxYawRate, w.cfg.MaxYawRate)
	for _, id := range ids {
		d := w.drones[id]
		d.commandVelocity = velocity
		d.commandYawRate = yawRate
		w.setMode(ctx, d, ModeVelocity)
	}
}

// applyFormation always repositions the whole fleet; the command's target
// field is ignored. Position i goes to drone i.
func (w *World) applyFormation(ctx context.Context, cmd Command) {
	if cmd.Formation == nil {
		w.reject(ctx, cmd, RejectBadParameters, -1)
		return
	}
	positions, err := formation.Positions(cmd.Formation.Spec, len(w.drones))
	if err != nil {
		w.reject(ctx, cmd, RejectUnknownPattern, -1)
		return
	}
	for i, d := range w.drones {
		d.targetPosition = w.cfg.Bounds.ClampPosition(positions[i])
		d.targetYaw = d.state.Yaw
		w.setMode(ctx, d, ModeGoto)
	}
}

// applyReset re-initializes every drone and controller in place. The drone
// count is unchanged. An engine reset failure is fatal.
func (w *World) applyReset(ctx context.Context) error {
	if err := w.engine.Reset(); err != nil {
		return fmt.Errorf("swarm: engine reset failed: %w", err)
	}
	w.resetClock()
	if err := w.buildFleet(len(w.drones)); err != nil {
		return err
	}
	lifecycle.FleetReset(ctx, w.publisher, w.tick, len(w.drones), nil)
	if w.metrics != nil {
		w.metrics.Add(MetricCommandsApplied, 1)
	}
	return nil
}

// applySpawn tears down the fleet and creates a fresh generation. An
// engine respawn failure is fatal.
func (w *World) applySpawn(ctx context.Context, cmd Command) error {
	if cmd.Spawn == nil || cmd.Spawn.NumDrones <= 0 {
		w.reject(ctx, cmd, RejectBadParameters, -1)
		return nil
	}
	previous := len(w.drones)
	if err := w.engine.Respawn(cmd.Spawn.NumDrones); err != nil {
		return fmt.Errorf("swarm: engine respawn failed: %w", err)
	}
	w.resetClock()
	if err := w.buildFleet(cmd.Spawn.NumDrones); err != nil {
		return err
	}
	lifecycle.FleetSpawned(ctx, w.publisher, w.tick, lifecycle.FleetSpawnedPayload{
		NumDrones: cmd.Spawn.NumDrones,
		Previous:  previous,
	}, nil)
	if w.metrics != nil {
		w.metrics.Add(MetricCommandsApplied, 1)
	}
	return nil
}

// resetClock restarts simulated time after a reset or respawn so battery
// and control cadences line up with the engine's fresh clock.
func (w *World) resetClock() {
	w.simTime = 0
	w.stepCount = 0
	w.lastControl = math.Inf(-1)
}

// resolveTarget expands "all" to the live fleet and validates explicit
// ids. A single out-of-range id rejects the whole command.
func (w *World) resolveTarget(target Target) ([]int, bool) {
	if target.All {
		ids := make([]int, len(w.drones))
		for i := range ids {
			ids[i] = i
		}
		return ids, true
	}
	if len(target.IDs) == 0 {
		return nil, false
	}
	for _, id := range target.IDs {
		if id < 0 || id >= len(w.drones) {
			return nil, false
		}
	}
	return target.IDs, true
}

func (w *World) reject(ctx context.Context, cmd Command, reason string, droneID int) {
	flight.CommandRejected(ctx, w.publisher, w.tick, flight.CommandRejectedPayload{
		CommandType: string(cmd.Type),
		Reason:      reason,
		DroneID:     droneID,
	})
	if w.metrics != nil {
		w.metrics.Add(MetricCommandsRejected, 1)
	}
}

// setMode transitions a drone, resetting its controller when it re-enters
// Idle so stale integrals never leak into the next flight.
func (w *World) setMode(ctx context.Context, d *drone, mode DroneMode) {
	if d.state.Mode == mode {
		return
	}
	from := d.state.Mode
	d.state.Mode = mode
	if mode == ModeIdle {
		d.controller.Reset()
		d.desiredVelocity = geo.Vec3{}
		d.desiredYawRate = 0
	}
	flight.ModeChanged(ctx, w.publisher, w.tick, d.state.ID, flight.ModeChangedPayload{
		From: string(from),
		To:   string(mode),
	})
}

// publishSnapshot copies the fleet into a fresh immutable snapshot and
// swaps it in for concurrent readers.
func (w *World) publishSnapshot() {
	snapshot := &Snapshot{
		Drones:    make([]DroneState, len(w.drones)),
		Timestamp: w.simTime,
		Tick:      w.tick,
	}
	for i, d := range w.drones {
		snapshot.Drones[i] = d.state
	}
	w.latest.Store(snapshot)
}

// Close releases the physics engine. Further Step calls will fail.
func (w *World) Close(ctx context.Context) error {
	lifecycle.WorldClosed(ctx, w.publisher, w.tick)
	return w.engine.Close()
}

func firstID(target Target) int {
	if len(target.IDs) > 0 {
		return target.IDs[0]
	}
	return -1
}
