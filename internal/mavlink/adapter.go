// Package mavlink abstracts the MAVLink wire library behind a small adapter:
// subscribable telemetry updates plus awaitable commands. The concrete
// implementation rides on gomavlib; tests use the kinematic fake in mavtest.
package mavlink

import (
	"context"
	"errors"

	"github.com/openuav/missionkit/pkg/geo"
	"github.com/openuav/missionkit/pkg/telemetry"
)

var (
	// ErrCommandRejected is returned when the autopilot denies a command.
	ErrCommandRejected = errors.New("command rejected by vehicle")

	// ErrAckTimeout is returned when no command acknowledgement arrives in time.
	ErrAckTimeout = errors.New("no command acknowledgement received")

	// ErrNotConnected is returned for operations on a closed adapter.
	ErrNotConnected = errors.New("adapter is not connected")
)

// Update is one decoded telemetry message. Fields updated together on the
// wire arrive together in one value.
type Update interface{ isUpdate() }

// PositionUpdate carries a global position fix with relative altitude.
type PositionUpdate struct {
	Lat, Lon float64
	RelAlt   float64
}

// VelocityUpdate carries the NED velocity in m/s.
type VelocityUpdate struct {
	Velocity geo.VectorNED
}

// HeadingUpdate carries the compass heading in degrees.
type HeadingUpdate struct {
	Heading float64
}

// SpeedUpdate carries VFR HUD speeds in m/s.
type SpeedUpdate struct {
	Groundspeed float64
	Airspeed    float64
	ClimbRate   float64
}

// BatteryUpdate carries the battery report.
type BatteryUpdate struct {
	Voltage    float64
	Current    float64
	Percentage float64
}

// GPSUpdate carries the raw GPS fix quality.
type GPSUpdate struct {
	FixType    int
	Satellites int
	Lat, Lon   float64
}

// ModeUpdate carries the heartbeat-derived flight mode and armed flag.
type ModeUpdate struct {
	FlightMode string
	Armed      bool
}

// LandedUpdate carries the extended system state.
type LandedUpdate struct {
	Landed telemetry.LandedState
	InAir  bool
}

// HomeUpdate carries the autopilot's home position.
type HomeUpdate struct {
	Lat, Lon float64
	RelAlt   float64
}

func (PositionUpdate) isUpdate() {}
func (VelocityUpdate) isUpdate() {}
func (HeadingUpdate) isUpdate()  {}
func (SpeedUpdate) isUpdate()    {}
func (BatteryUpdate) isUpdate()  {}
func (GPSUpdate) isUpdate()      {}
func (ModeUpdate) isUpdate()     {}
func (LandedUpdate) isUpdate()   {}
func (HomeUpdate) isUpdate()     {}

// Adapter is what the vehicle control core needs from a MAVLink transport.
// Command methods block until the autopilot acknowledges or ctx expires,
// and are serialized internally: at most one command is on the wire at a
// time per adapter.
type Adapter interface {
	// Connect opens the endpoint and starts the decode loop. It returns
	// once frames can flow; callers wait for telemetry separately.
	Connect(ctx context.Context) error
	Close() error

	// Updates yields decoded telemetry until Close. The channel is owned
	// by the adapter and closed on shutdown.
	Updates() <-chan Update

	Arm(ctx context.Context) error
	Disarm(ctx context.Context, force bool) error
	Takeoff(ctx context.Context, altitude float64) error
	Land(ctx context.Context) error
	ReturnToLaunch(ctx context.Context) error
	Hold(ctx context.Context) error

	// GotoLocation streams a global position setpoint. yaw is a heading in
	// degrees; pass NaN to leave the heading to the autopilot.
	GotoLocation(ctx context.Context, c geo.Coordinate, yaw float64) error

	// SetVelocityNED streams a local NED velocity setpoint. yaw as above.
	SetVelocityNED(ctx context.Context, v geo.VectorNED, yaw float64) error

	SetMaximumSpeed(ctx context.Context, speed float64) error
	StartOrbit(ctx context.Context, center geo.Coordinate, radius, speed float64, clockwise bool) error
}
