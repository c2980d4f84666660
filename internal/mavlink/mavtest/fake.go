// Package mavtest provides an in-process Adapter backed by a small kinematic
// model. It flies straight lines at the commanded speed, which is all the
// control core's completion predicates need.
package mavtest

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/openuav/missionkit/internal/mavlink"
	"github.com/openuav/missionkit/pkg/geo"
	"github.com/openuav/missionkit/pkg/telemetry"
)

type action int

const (
	actionIdle action = iota
	actionTakeoff
	actionGoto
	actionVelocity
	actionOrbit
	actionLand
	actionRTL
)

const (
	tickInterval = 10 * time.Millisecond
	climbRate    = 2.0 // m/s
)

// Fake is a deterministic kinematic stand-in for a MAVLink vehicle.
type Fake struct {
	// Timescale stretches simulated time per real tick. 1 is real time;
	// tests usually run at 10-50x.
	Timescale float64

	// CommandErr, when set for a command name, is returned by that command
	// instead of executing it.
	CommandErr map[string]error

	mu         sync.Mutex
	pos        geo.Coordinate
	home       geo.Coordinate
	hasHome    bool
	heading    float64
	vel        geo.VectorNED
	armed      bool
	landed     telemetry.LandedState
	mode       string
	batteryPct float64
	voltage    float64
	gpsFix     int
	satellites int
	maxSpeed   float64

	act        action
	target     geo.Coordinate
	takeoffAlt float64
	velocitySP geo.VectorNED
	yawSP      float64
	orbit      orbitState

	updates chan mavlink.Update
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

type orbitState struct {
	center    geo.Coordinate
	radius    float64
	speed     float64
	clockwise bool
	angle     float64 // current angle from center, radians
}

// NewFake returns a fake on the ground at start with healthy battery and GPS.
func NewFake(start geo.Coordinate) *Fake {
	return &Fake{
		Timescale:  1,
		CommandErr: make(map[string]error),
		pos:        start,
		landed:     telemetry.LandedStateOnGround,
		mode:       "POSCTL",
		batteryPct: 100,
		voltage:    12.6,
		gpsFix:     3,
		satellites: 12,
		maxSpeed:   10,
		updates:    make(chan mavlink.Update, 256),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (f *Fake) Connect(ctx context.Context) error {
	go f.loop()
	return nil
}

func (f *Fake) Close() error {
	f.once.Do(func() {
		close(f.stop)
		<-f.done
		close(f.updates)
	})
	return nil
}

func (f *Fake) Updates() <-chan mavlink.Update { return f.updates }

// SetBattery overrides the reported battery percentage.
func (f *Fake) SetBattery(pct float64) {
	f.mu.Lock()
	f.batteryPct = pct
	f.mu.Unlock()
}

// SetGPS overrides the reported fix type and satellite count.
func (f *Fake) SetGPS(fixType, satellites int) {
	f.mu.Lock()
	f.gpsFix = fixType
	f.satellites = satellites
	f.mu.Unlock()
}

// Position returns the simulated position.
func (f *Fake) Position() geo.Coordinate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos
}

// Groundspeed returns the simulated horizontal speed.
func (f *Fake) Groundspeed() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.vel.GroundMagnitude()
}

func (f *Fake) fail(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.CommandErr[name]
}

func (f *Fake) Arm(ctx context.Context) error {
	if err := f.fail("arm"); err != nil {
		return err
	}
	f.mu.Lock()
	f.armed = true
	if !f.hasHome {
		f.home = f.pos
		f.hasHome = true
	}
	f.mu.Unlock()
	return nil
}

func (f *Fake) Disarm(ctx context.Context, force bool) error {
	if err := f.fail("disarm"); err != nil {
		return err
	}
	f.mu.Lock()
	f.armed = false
	f.act = actionIdle
	f.vel = geo.VectorNED{}
	f.mu.Unlock()
	return nil
}

func (f *Fake) Takeoff(ctx context.Context, altitude float64) error {
	if err := f.fail("takeoff"); err != nil {
		return err
	}
	f.mu.Lock()
	f.act = actionTakeoff
	f.takeoffAlt = altitude
	f.landed = telemetry.LandedStateTakingOff
	f.mu.Unlock()
	return nil
}

func (f *Fake) Land(ctx context.Context) error {
	if err := f.fail("land"); err != nil {
		return err
	}
	f.mu.Lock()
	f.act = actionLand
	f.landed = telemetry.LandedStateLanding
	f.mu.Unlock()
	return nil
}

func (f *Fake) ReturnToLaunch(ctx context.Context) error {
	if err := f.fail("rtl"); err != nil {
		return err
	}
	f.mu.Lock()
	f.act = actionRTL
	f.mode = "AUTO"
	f.mu.Unlock()
	return nil
}

func (f *Fake) Hold(ctx context.Context) error {
	if err := f.fail("hold"); err != nil {
		return err
	}
	f.mu.Lock()
	f.act = actionIdle
	f.vel = geo.VectorNED{}
	f.mu.Unlock()
	return nil
}

func (f *Fake) GotoLocation(ctx context.Context, c geo.Coordinate, yaw float64) error {
	if err := f.fail("goto"); err != nil {
		return err
	}
	f.mu.Lock()
	f.act = actionGoto
	f.target = c
	if !math.IsNaN(yaw) {
		f.heading = geo.NormalizeHeading(yaw)
	}
	f.mu.Unlock()
	return nil
}

func (f *Fake) SetVelocityNED(ctx context.Context, v geo.VectorNED, yaw float64) error {
	if err := f.fail("set_velocity"); err != nil {
		return err
	}
	f.mu.Lock()
	f.act = actionVelocity
	f.velocitySP = v
	if !math.IsNaN(yaw) {
		f.heading = geo.NormalizeHeading(yaw)
	} else if v.GroundMagnitude() > 0.1 {
		f.heading = v.Heading()
	}
	f.mu.Unlock()
	return nil
}

func (f *Fake) SetMaximumSpeed(ctx context.Context, speed float64) error {
	if err := f.fail("set_speed"); err != nil {
		return err
	}
	f.mu.Lock()
	f.maxSpeed = speed
	f.mu.Unlock()
	return nil
}

func (f *Fake) StartOrbit(ctx context.Context, center geo.Coordinate, radius, speed float64, clockwise bool) error {
	if err := f.fail("orbit"); err != nil {
		return err
	}
	f.mu.Lock()
	v := center.VectorTo(f.pos)
	angle := math.Atan2(v.East, v.North)
	f.act = actionOrbit
	f.orbit = orbitState{center: center, radius: radius, speed: speed, clockwise: clockwise, angle: angle}
	f.mu.Unlock()
	return nil
}

func (f *Fake) loop() {
	defer close(f.done)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.stop:
			return
		case <-ticker.C:
			f.step(tickInterval.Seconds() * f.Timescale)
			f.publish()
		}
	}
}

func (f *Fake) step(dt float64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.act {
	case actionTakeoff:
		f.pos.Alt += climbRate * dt
		f.vel = geo.VectorNED{Down: -climbRate}
		if f.pos.Alt >= f.takeoffAlt {
			f.pos.Alt = f.takeoffAlt
			f.vel = geo.VectorNED{}
			f.act = actionIdle
		}
		if f.pos.Alt > 0.3 {
			f.landed = telemetry.LandedStateInAir
		}

	case actionGoto:
		f.stepTowards(f.target, dt, actionIdle)

	case actionVelocity:
		f.vel = f.velocitySP
		f.pos = f.pos.OffsetBy(f.velocitySP.Scale(dt))

	case actionOrbit:
		o := &f.orbit
		dAngle := o.speed / o.radius * dt
		if !o.clockwise {
			dAngle = -dAngle
		}
		o.angle += dAngle
		offset := geo.VectorNED{
			North: o.radius * math.Cos(o.angle),
			East:  o.radius * math.Sin(o.angle),
			Down:  o.center.Alt - f.pos.Alt,
		}
		next := o.center.OffsetBy(offset)
		next.Alt = o.center.Alt
		f.vel = f.pos.VectorTo(next).Scale(1 / dt)
		f.pos = next

	case actionLand:
		f.pos.Alt -= climbRate * dt
		f.vel = geo.VectorNED{Down: climbRate}
		if f.pos.Alt <= 0 {
			f.pos.Alt = 0
			f.vel = geo.VectorNED{}
			f.landed = telemetry.LandedStateOnGround
			f.armed = false // autopilot disarms after touchdown
			f.act = actionIdle
		}

	case actionRTL:
		if !f.hasHome {
			f.act = actionIdle
			break
		}
		home := f.home
		home.Alt = f.pos.Alt
		if f.pos.GroundDistanceTo(f.home) > 0.5 {
			f.stepTowards(home, dt, actionRTL)
		} else {
			f.act = actionLand
			f.landed = telemetry.LandedStateLanding
		}

	default:
		f.vel = geo.VectorNED{}
	}
}

// stepTowards moves at most maxSpeed*dt towards target, switching to next
// once within a step of it.
func (f *Fake) stepTowards(target geo.Coordinate, dt float64, next action) {
	to := f.pos.VectorTo(target)
	dist := to.Magnitude()
	step := f.maxSpeed * dt
	if dist <= step {
		f.pos = target
		f.vel = geo.VectorNED{}
		f.act = next
		return
	}
	dir := to.Normalize()
	f.vel = dir.Scale(f.maxSpeed)
	f.pos = f.pos.OffsetBy(f.vel.Scale(dt))
	if dir.GroundMagnitude() > 0.1 {
		f.heading = dir.Heading()
	}
}

func (f *Fake) publish() {
	f.mu.Lock()
	landed := f.landed
	updates := []mavlink.Update{
		mavlink.PositionUpdate{Lat: f.pos.Lat, Lon: f.pos.Lon, RelAlt: f.pos.Alt},
		mavlink.VelocityUpdate{Velocity: f.vel},
		mavlink.HeadingUpdate{Heading: f.heading},
		mavlink.SpeedUpdate{
			Groundspeed: f.vel.GroundMagnitude(),
			Airspeed:    f.vel.GroundMagnitude(),
			ClimbRate:   -f.vel.Down,
		},
		mavlink.BatteryUpdate{Voltage: f.voltage, Current: 1.2, Percentage: f.batteryPct},
		mavlink.GPSUpdate{FixType: f.gpsFix, Satellites: f.satellites, Lat: f.pos.Lat, Lon: f.pos.Lon},
		mavlink.ModeUpdate{FlightMode: f.mode, Armed: f.armed},
		mavlink.LandedUpdate{
			Landed: landed,
			InAir:  landed == telemetry.LandedStateInAir || landed == telemetry.LandedStateTakingOff,
		},
	}
	if f.hasHome {
		updates = append(updates, mavlink.HomeUpdate{Lat: f.home.Lat, Lon: f.home.Lon, RelAlt: f.home.Alt})
	}
	f.mu.Unlock()

	for _, u := range updates {
		select {
		case f.updates <- u:
		default:
		}
	}
}
