package swarm

// Snapshot is an immutable view of the fleet at a point in simulated time.
// Once published it is never mutated, so any number of readers may hold it
// without synchronization.
type Snapshot struct {
	Drones    []DroneState `json:"drones"`
	Timestamp float64      `json:"timestamp"`
	Tick      uint64       `json:"tick"`
}
