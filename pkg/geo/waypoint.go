package geo

import "time"

// DefaultAcceptanceRadius is how close a vehicle has to get to a waypoint
// before it counts as reached.
const DefaultAcceptanceRadius = 2.0

// Waypoint is a mission target: a coordinate plus how to approach it.
// Speed of zero means "keep the current speed".
type Waypoint struct {
	Coordinate       Coordinate
	Speed            float64
	AcceptanceRadius float64
	HoldTime         time.Duration
	Name             string
}

// NewWaypoint returns a waypoint at c with the default acceptance radius
// and no hold time.
func NewWaypoint(c Coordinate) Waypoint {
	return Waypoint{Coordinate: c, AcceptanceRadius: DefaultAcceptanceRadius}
}
