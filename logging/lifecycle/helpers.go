package lifecycle

import (
	"context"

	"uav-swarm/server/logging"
)

const (
	// EventFleetSpawned is emitted when a fleet is created or respawned.
	EventFleetSpawned logging.EventType = "lifecycle.fleet_spawned"
	// EventFleetReset is emitted when the fleet is reset in place.
	EventFleetReset logging.EventType = "lifecycle.fleet_reset"
	// EventWorldClosed is emitted when the orchestrator releases the physics engine.
	EventWorldClosed logging.EventType = "lifecycle.world_closed"
)

// FleetSpawnedPayload captures the size of a new fleet generation.
type FleetSpawnedPayload struct {
	NumDrones int `json:"numDrones"`
	Previous  int `json:"previous"`
}

// FleetSpawned publishes a fleet spawn/respawn event.
func FleetSpawned(ctx context.Context, pub logging.Publisher, tick uint64, payload FleetSpawnedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventFleetSpawned,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindFleet},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}

// FleetReset publishes an in-place reset event.
func FleetReset(ctx context.Context, pub logging.Publisher, tick uint64, numDrones int, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventFleetReset,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindFleet},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  FleetSpawnedPayload{NumDrones: numDrones, Previous: numDrones},
		Extra:    extra,
	})
}

// WorldClosed publishes a shutdown event.
func WorldClosed(ctx context.Context, pub logging.Publisher, tick uint64) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventWorldClosed,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindWorld},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
	})
}
