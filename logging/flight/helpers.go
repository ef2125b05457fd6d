package flight

import (
	"context"

	"uav-swarm/server/logging"
)

const (
	// EventCommandRejected is emitted when the dispatcher drops a command.
	EventCommandRejected logging.EventType = "flight.command_rejected"
	// EventModeChanged is emitted on every drone mode transition.
	EventModeChanged logging.EventType = "flight.mode_changed"
	// EventBatteryDepleted is emitted once when a drone's battery reaches zero.
	EventBatteryDepleted logging.EventType = "flight.battery_depleted"
	// EventHealthChanged is emitted when a drone crosses the healthy boundary.
	EventHealthChanged logging.EventType = "flight.health_changed"
	// EventTickBudgetOverrun is emitted when a step exceeds the tick budget.
	EventTickBudgetOverrun logging.EventType = "flight.tick_budget_overrun"
)

// CommandRejectedPayload captures why a command was dropped at dispatch.
type CommandRejectedPayload struct {
	CommandType string `json:"commandType"`
	Reason      string `json:"reason"`
	DroneID     int    `json:"droneId"`
}

// CommandRejected publishes a dispatch-time rejection.
func CommandRejected(ctx context.Context, pub logging.Publisher, tick uint64, payload CommandRejectedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCommandRejected,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindCommand, ID: payload.CommandType},
		Severity: logging.SeverityWarn,
		Category: logging.CategoryFlight,
		Payload:  payload,
	})
}

// ModeChangedPayload captures a drone mode transition.
type ModeChangedPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ModeChanged publishes a mode transition for one drone.
func ModeChanged(ctx context.Context, pub logging.Publisher, tick uint64, droneID int, payload ModeChangedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventModeChanged,
		Tick:     tick,
		Actor:    logging.DroneRef(droneID),
		Severity: logging.SeverityDebug,
		Category: logging.CategoryFlight,
		Payload:  payload,
	})
}

// BatteryDepleted publishes a zero-battery event for one drone.
func BatteryDepleted(ctx context.Context, pub logging.Publisher, tick uint64, droneID int) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventBatteryDepleted,
		Tick:     tick,
		Actor:    logging.DroneRef(droneID),
		Severity: logging.SeverityWarn,
		Category: logging.CategoryFlight,
	})
}

// HealthChangedPayload records a health flip and its trigger.
type HealthChangedPayload struct {
	Healthy bool   `json:"healthy"`
	Reason  string `json:"reason,omitempty"`
}

// HealthChanged publishes a healthy/unhealthy transition for one drone.
func HealthChanged(ctx context.Context, pub logging.Publisher, tick uint64, droneID int, payload HealthChangedPayload) {
	if pub == nil {
		return
	}
	severity := logging.SeverityInfo
	if !payload.Healthy {
		severity = logging.SeverityWarn
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventHealthChanged,
		Tick:     tick,
		Actor:    logging.DroneRef(droneID),
		Severity: severity,
		Category: logging.CategoryFlight,
		Payload:  payload,
	})
}

// TickBudgetOverrunPayload captures timing details for a budget breach.
type TickBudgetOverrunPayload struct {
	DurationMillis int64   `json:"durationMillis"`
	BudgetMillis   int64   `json:"budgetMillis"`
	Ratio          float64 `json:"ratio"`
}

// TickBudgetOverrun publishes a warning when a step overruns its budget.
func TickBudgetOverrun(ctx context.Context, pub logging.Publisher, tick uint64, payload TickBudgetOverrunPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventTickBudgetOverrun,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindWorld},
		Severity: logging.SeverityWarn,
		Category: logging.CategoryFlight,
		Payload:  payload,
	})
}
