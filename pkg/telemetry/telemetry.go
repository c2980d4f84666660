// Package telemetry holds the current view of a vehicle's state as reported
// over the wire. A single ingestion goroutine applies updates; any number of
// readers take consistent snapshots or block until a predicate holds.
package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/openuav/missionkit/pkg/geo"
)

// ErrUnavailableTelemetry is returned when a field is read before the
// corresponding stream has delivered its first value.
var ErrUnavailableTelemetry = errors.New("telemetry not yet available")

// Battery is the most recent battery report.
type Battery struct {
	Voltage    float64
	Current    float64
	Percentage float64
	IsLow      bool
	IsCritical bool
}

// GPSInfo is the most recent GPS fix report.
type GPSInfo struct {
	FixType    int // 0-1: no fix, 2: 2D, 3: 3D
	Satellites int
	Quality    int
	Latitude   float64
	Longitude  float64
}

// LandedState mirrors the MAVLink extended system state.
type LandedState int

const (
	LandedStateUnknown LandedState = iota
	LandedStateOnGround
	LandedStateInAir
	LandedStateTakingOff
	LandedStateLanding
)

func (s LandedState) String() string {
	switch s {
	case LandedStateOnGround:
		return "on_ground"
	case LandedStateInAir:
		return "in_air"
	case LandedStateTakingOff:
		return "taking_off"
	case LandedStateLanding:
		return "landing"
	}
	return "unknown"
}

// Snapshot is a consistent copy of everything known about the vehicle at one
// generation. Has* flags distinguish "stream never delivered" from a zero
// value.
type Snapshot struct {
	Position    geo.Coordinate
	HasPosition bool

	Heading    float64
	HasHeading bool

	Velocity    geo.VectorNED
	HasVelocity bool

	Groundspeed float64
	Airspeed    float64
	ClimbRate   float64
	HasSpeeds   bool

	FlightMode    string
	HasFlightMode bool

	Landed    LandedState
	HasLanded bool

	Armed    bool
	HasArmed bool

	InAir    bool
	HasInAir bool

	Battery    Battery
	HasBattery bool

	GPS    GPSInfo
	HasGPS bool

	Home    geo.Coordinate
	HasHome bool

	Generation uint64
	UpdatedAt  time.Time
}

// Altitude returns the relative altitude from the position snapshot.
func (s Snapshot) Altitude() float64 { return s.Position.Alt }

// DistanceToHome returns the 3D distance from the current position to home,
// or ErrUnavailableTelemetry when either is unknown.
func (s Snapshot) DistanceToHome() (float64, error) {
	if !s.HasPosition || !s.HasHome {
		return 0, ErrUnavailableTelemetry
	}
	return s.Position.DistanceTo(s.Home), nil
}

// Reader is the read-only view handed to code that must not mutate state,
// such as the safety monitor.
type Reader interface {
	Snapshot() Snapshot
	WaitUntil(ctx context.Context, pred func(Snapshot) bool) (Snapshot, error)
}
