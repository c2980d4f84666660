package vehicle

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/openuav/missionkit/pkg/geo"
	"github.com/openuav/missionkit/pkg/safety"
	"github.com/openuav/missionkit/pkg/telemetry"
)

// Command defaults. Timeouts apply per handle; on expiry the handle moves
// to TimedOut and the vehicle holds in place.
const (
	DefaultTolerance         = 2.0
	DefaultAltitudeTolerance = 0.5
	DefaultOrbitSpeed        = 5.0
	DefaultHeadingTolerance  = 2.0

	DefaultGotoTimeout    = 5 * time.Minute
	DefaultTakeoffTimeout = time.Minute
	DefaultLandTimeout    = 2 * time.Minute
	DefaultRTLTimeout     = 5 * time.Minute
	DefaultHeadingTimeout = 30 * time.Second

	takeoffAltSlack = 0.5 // meters below target that still counts as arrived
	rtlHomeRadius   = 2.0
)

type commandOptions struct {
	tolerance   float64
	speed       float64
	heading     float64
	timeout     time.Duration
	duration    time.Duration
	revolutions float64
	clockwise   bool
}

// CommandOption tunes a single command call.
type CommandOption func(*commandOptions)

func newCommandOptions() commandOptions {
	return commandOptions{
		speed:       math.NaN(),
		heading:     math.NaN(),
		revolutions: 1,
		clockwise:   true,
	}
}

func (o *commandOptions) apply(options []CommandOption) {
	for _, option := range options {
		option(o)
	}
}

// WithTolerance sets the arrival tolerance in meters.
func WithTolerance(meters float64) CommandOption {
	return func(o *commandOptions) { o.tolerance = meters }
}

// WithSpeed sets the travel speed in m/s for this command.
func WithSpeed(speed float64) CommandOption {
	return func(o *commandOptions) { o.speed = speed }
}

// WithHeading fixes the heading in degrees during the command; by default
// the autopilot chooses.
func WithHeading(deg float64) CommandOption {
	return func(o *commandOptions) { o.heading = geo.NormalizeHeading(deg) }
}

// WithCommandTimeout overrides the command's default timeout.
func WithCommandTimeout(timeout time.Duration) CommandOption {
	return func(o *commandOptions) { o.timeout = timeout }
}

// WithDuration bounds a velocity command; without it the command runs until
// cancelled.
func WithDuration(d time.Duration) CommandOption {
	return func(o *commandOptions) { o.duration = d }
}

// WithRevolutions sets how many full circles an orbit flies.
func WithRevolutions(n float64) CommandOption {
	return func(o *commandOptions) { o.revolutions = n }
}

// CounterClockwise reverses the orbit direction.
func CounterClockwise() CommandOption {
	return func(o *commandOptions) { o.clockwise = false }
}

// --- parameter validation (safety §limits, clamped when configured) ---

func (v *Vehicle) checkAltitude(name string, alt float64) (float64, error) {
	if !v.limits.EnableParameterValidation {
		return alt, nil
	}
	r := safety.ValidateAltitude(alt, v.limits)
	if r.OK {
		return alt, nil
	}
	if v.limits.AutoClampValues && !math.IsNaN(alt) && !math.IsInf(alt, 0) {
		clamped := safety.ClampAltitude(alt, v.limits)
		v.logger.Warn("altitude clamped", "requested", alt, "clamped", clamped)
		return clamped, nil
	}
	return 0, &ParameterValidationError{Parameter: name, Value: r.Value, Limit: r.Limit, Message: r.Message}
}

func (v *Vehicle) checkSpeed(name string, speed float64) (float64, error) {
	if !v.limits.EnableParameterValidation {
		return speed, nil
	}
	r := safety.ValidateSpeed(speed, v.limits)
	if r.OK {
		return speed, nil
	}
	if speed > 0 && !math.IsInf(speed, 0) && !math.IsNaN(speed) {
		// Finite positive but above the limit.
		if v.limits.AutoClampValues {
			clamped := safety.ClampSpeed(speed, v.limits)
			v.logger.Warn("speed clamped", "requested", speed, "clamped", clamped)
			return clamped, nil
		}
		return 0, &SpeedLimitExceededError{Speed: speed, Limit: v.limits.MaxSpeed}
	}
	return 0, &ParameterValidationError{Parameter: name, Value: r.Value, Limit: r.Limit, Message: r.Message}
}

func (v *Vehicle) checkVelocity(vel geo.VectorNED) (geo.VectorNED, error) {
	if !v.limits.EnableParameterValidation {
		return vel, nil
	}
	r := safety.ValidateVelocity(vel, v.limits)
	if r.OK {
		return vel, nil
	}
	if v.limits.AutoClampValues {
		clamped := safety.ClampVelocity(vel, v.limits)
		v.logger.Warn("velocity clamped", "requested", vel, "clamped", clamped)
		return clamped, nil
	}
	return geo.VectorNED{}, &ParameterValidationError{Parameter: "velocity", Value: r.Value, Limit: r.Limit, Message: r.Message}
}

func (v *Vehicle) checkCoordinate(c geo.Coordinate) error {
	if !v.limits.EnableParameterValidation {
		return nil
	}
	if r := safety.ValidateCoordinate(c); !r.OK {
		return &ParameterValidationError{Parameter: "coordinate", Message: r.Message}
	}
	return nil
}

func (v *Vehicle) checkTolerance(tolerance float64) error {
	if !v.limits.EnableParameterValidation {
		return nil
	}
	if r := safety.ValidateTolerance(tolerance); !r.OK {
		return &ParameterValidationError{Parameter: "tolerance", Value: r.Value, Limit: r.Limit, Message: r.Message}
	}
	return nil
}

func (v *Vehicle) checkTimeout(timeout time.Duration) error {
	if !v.limits.EnableParameterValidation || timeout == 0 {
		return nil
	}
	if r := safety.ValidateTimeout(timeout); !r.OK {
		return &ParameterValidationError{Parameter: "timeout", Value: r.Value, Limit: r.Limit, Message: r.Message}
	}
	return nil
}

// --- geofence pre-checks ---

func (v *Vehicle) fenceWaypoint(ctx context.Context, target geo.Coordinate) error {
	if v.fence == nil {
		return nil
	}
	snap := v.state.Snapshot()
	valid, reason, err := v.fence.ValidateWaypoint(ctx, snap.Position, target)
	if err != nil {
		return &GeofenceUnavailableError{Err: err}
	}
	if !valid {
		return &GeofenceViolationError{
			CurrentPosition: snap.Position,
			TargetPosition:  target,
			Reason:          reason,
		}
	}
	return nil
}

func (v *Vehicle) fenceSpeed(ctx context.Context, speed float64) error {
	if v.fence == nil {
		return nil
	}
	valid, err := v.fence.ValidateSpeed(ctx, speed)
	if err != nil {
		return &GeofenceUnavailableError{Err: err}
	}
	if !valid {
		snap := v.state.Snapshot()
		return &GeofenceViolationError{
			CurrentPosition: snap.Position,
			TargetPosition:  snap.Position,
			Reason:          fmt.Sprintf("speed %.1f m/s outside allowed band", speed),
		}
	}
	return nil
}

func (v *Vehicle) fenceTakeoff(ctx context.Context, lat, lon, alt float64) error {
	if v.fence == nil {
		return nil
	}
	valid, err := v.fence.ValidateTakeoff(ctx, lat, lon, alt)
	if err != nil {
		return &GeofenceUnavailableError{Err: err}
	}
	if !valid {
		snap := v.state.Snapshot()
		return &GeofenceViolationError{
			CurrentPosition: snap.Position,
			TargetPosition:  geo.Coordinate{Lat: lat, Lon: lon, Alt: alt},
			Reason:          fmt.Sprintf("takeoff to %.1f m not allowed here", alt),
		}
	}
	return nil
}

// --- commands ---

// Takeoff climbs to the given relative altitude. The handle completes when
// the vehicle is in the air within half a meter of the target.
func (v *Vehicle) Takeoff(ctx context.Context, altitude float64, options ...CommandOption) (*Handle, error) {
	o := newCommandOptions()
	o.apply(options)
	if o.timeout == 0 {
		o.timeout = DefaultTakeoffTimeout
	}

	alt, err := v.checkAltitude("altitude", altitude)
	if err != nil {
		return nil, err
	}
	if err := v.checkTimeout(o.timeout); err != nil {
		return nil, err
	}

	snap := v.state.Snapshot()
	if err := v.fenceTakeoff(ctx, snap.Position.Lat, snap.Position.Lon, alt); err != nil {
		return nil, err
	}

	h, err := v.acquire("takeoff", o.timeout)
	if err != nil {
		return nil, err
	}

	go func() {
		h.markRunning()
		sendCtx, cancel := context.WithTimeout(context.Background(), cancelActionTimeout)
		err := v.adapter.Takeoff(sendCtx, alt)
		cancel()
		if err != nil {
			h.finish(StatusFailed, &TakeoffError{Err: err})
			return
		}

		v.drive(h, driver{
			progress: func(s telemetry.Snapshot) map[string]any {
				return map[string]any{
					"current_altitude":   s.Altitude(),
					"target_altitude":    alt,
					"altitude_remaining": math.Max(0, alt-s.Altitude()),
				}
			},
			complete: func(s telemetry.Snapshot) bool {
				return s.HasInAir && s.InAir && s.Altitude() >= alt-takeoffAltSlack
			},
			onTimeout: func(s telemetry.Snapshot) error {
				return &TakeoffTimeoutError{CurrentAltitude: s.Altitude(), TargetAltitude: alt}
			},
		})
		if h.Succeeded() {
			v.events.emit(Event{Type: EventTakeoff, Command: "takeoff"})
		}
	}()
	return h, nil
}

// Land descends in place. The handle completes when the vehicle reports
// on-ground and disarmed. Land supersedes any running command.
func (v *Vehicle) Land(ctx context.Context, options ...CommandOption) (*Handle, error) {
	o := newCommandOptions()
	o.apply(options)
	if o.timeout == 0 {
		o.timeout = DefaultLandTimeout
	}
	if err := v.checkTimeout(o.timeout); err != nil {
		return nil, err
	}

	h, err := v.preempt("land", o.timeout)
	if err != nil {
		return nil, err
	}

	go func() {
		h.markRunning()
		sendCtx, cancel := context.WithTimeout(context.Background(), cancelActionTimeout)
		err := v.adapter.Land(sendCtx)
		cancel()
		if err != nil {
			h.finish(StatusFailed, &LandingError{Err: err})
			return
		}

		v.drive(h, driver{
			progress: func(s telemetry.Snapshot) map[string]any {
				return map[string]any{
					"current_altitude": s.Altitude(),
					"landed_state":     s.Landed.String(),
					"armed":            s.Armed,
				}
			},
			complete: func(s telemetry.Snapshot) bool {
				return s.HasLanded && s.Landed == telemetry.LandedStateOnGround && s.HasArmed && !s.Armed
			},
			onTimeout: func(s telemetry.Snapshot) error {
				return &LandingTimeoutError{CurrentAltitude: s.Altitude()}
			},
		})
		if h.Succeeded() {
			v.events.emit(Event{Type: EventLand, Command: "land"})
		}
	}()
	return h, nil
}

// ReturnToLaunch flies back to home and lands. The handle completes when
// the vehicle is on the ground within 2 m of home. Supersedes any running
// command.
func (v *Vehicle) ReturnToLaunch(ctx context.Context, options ...CommandOption) (*Handle, error) {
	o := newCommandOptions()
	o.apply(options)
	if o.timeout == 0 {
		o.timeout = DefaultRTLTimeout
	}
	if err := v.checkTimeout(o.timeout); err != nil {
		return nil, err
	}

	h, err := v.preempt("rtl", o.timeout)
	if err != nil {
		return nil, err
	}

	go func() {
		h.markRunning()
		sendCtx, cancel := context.WithTimeout(context.Background(), cancelActionTimeout)
		err := v.adapter.ReturnToLaunch(sendCtx)
		cancel()
		if err != nil {
			h.finish(StatusFailed, &NavigationError{Command: "rtl", Reason: "command rejected", Err: err})
			return
		}

		v.drive(h, driver{
			progress: func(s telemetry.Snapshot) map[string]any {
				distance, err := s.DistanceToHome()
				if err != nil {
					distance = math.NaN()
				}
				return map[string]any{
					"distance_to_home": distance,
					"current_altitude": s.Altitude(),
					"landed_state":     s.Landed.String(),
				}
			},
			complete: func(s telemetry.Snapshot) bool {
				if !s.HasLanded || s.Landed != telemetry.LandedStateOnGround || !s.HasHome {
					return false
				}
				return s.Position.GroundDistanceTo(s.Home) <= rtlHomeRadius
			},
			onTimeout: func(s telemetry.Snapshot) error {
				distance, _ := s.DistanceToHome()
				return &NavigationError{
					Command: "rtl",
					Reason:  fmt.Sprintf("timed out %.1f m from home", distance),
				}
			},
		})
	}()
	return h, nil
}

// Hold stops in place, cancelling any running command first.
func (v *Vehicle) Hold(ctx context.Context) error {
	if !v.connected.Load() {
		return ErrNotConnected
	}
	v.supersede()
	return v.adapter.Hold(ctx)
}

// Goto flies to the target coordinate. Default tolerance 2 m, timeout 5
// minutes. WithSpeed caps travel speed; WithHeading fixes the heading.
func (v *Vehicle) Goto(ctx context.Context, target geo.Coordinate, options ...CommandOption) (*Handle, error) {
	o := newCommandOptions()
	o.tolerance = DefaultTolerance
	o.apply(options)
	if o.timeout == 0 {
		o.timeout = DefaultGotoTimeout
	}
	return v.gotoCommand(ctx, "goto", target, o)
}

// SetAltitude climbs or descends in place to the given relative altitude,
// default tolerance 0.5 m.
func (v *Vehicle) SetAltitude(ctx context.Context, altitude float64, options ...CommandOption) (*Handle, error) {
	o := newCommandOptions()
	o.tolerance = DefaultAltitudeTolerance
	o.apply(options)
	if o.timeout == 0 {
		o.timeout = DefaultGotoTimeout
	}

	snap, err := v.state.Position()
	if err != nil {
		return nil, err
	}
	target := snap.Position
	target.Alt = altitude
	return v.gotoCommand(ctx, "set_altitude", target, o)
}

// MoveInDirection flies distance meters along a compass bearing at the
// current altitude.
func (v *Vehicle) MoveInDirection(ctx context.Context, bearing, distance float64, options ...CommandOption) (*Handle, error) {
	o := newCommandOptions()
	o.tolerance = DefaultTolerance
	o.apply(options)
	if o.timeout == 0 {
		o.timeout = DefaultGotoTimeout
	}

	snap, err := v.state.Position()
	if err != nil {
		return nil, err
	}

	rad := geo.NormalizeHeading(bearing) * math.Pi / 180
	offset := geo.VectorNED{North: distance * math.Cos(rad), East: distance * math.Sin(rad)}
	return v.gotoCommand(ctx, "move_in_direction", snap.Position.OffsetBy(offset), o)
}

// MoveInCurrentDirection flies distance meters along the current heading.
func (v *Vehicle) MoveInCurrentDirection(ctx context.Context, distance float64, options ...CommandOption) (*Handle, error) {
	snap := v.state.Snapshot()
	if !snap.HasHeading {
		return nil, telemetry.ErrUnavailableTelemetry
	}
	return v.MoveInDirection(ctx, snap.Heading, distance, options...)
}

// MoveTowards flies distance meters along the bearing to target, keeping
// the current altitude. It does not promise to arrive at target.
func (v *Vehicle) MoveTowards(ctx context.Context, target geo.Coordinate, distance float64, options ...CommandOption) (*Handle, error) {
	snap, err := v.state.Position()
	if err != nil {
		return nil, err
	}
	return v.MoveInDirection(ctx, snap.Position.BearingTo(target), distance, options...)
}

func (v *Vehicle) gotoCommand(ctx context.Context, name string, target geo.Coordinate, o commandOptions) (*Handle, error) {
	if err := v.checkCoordinate(target); err != nil {
		return nil, err
	}
	alt, err := v.checkAltitude("altitude", target.Alt)
	if err != nil {
		return nil, err
	}
	target.Alt = alt
	if err := v.checkTolerance(o.tolerance); err != nil {
		return nil, err
	}
	if err := v.checkTimeout(o.timeout); err != nil {
		return nil, err
	}

	speed := o.speed
	if !math.IsNaN(speed) {
		if speed, err = v.checkSpeed("speed", speed); err != nil {
			return nil, err
		}
		if err := v.fenceSpeed(ctx, speed); err != nil {
			return nil, err
		}
	}
	if err := v.fenceWaypoint(ctx, target); err != nil {
		return nil, err
	}

	h, err := v.acquire(name, o.timeout)
	if err != nil {
		return nil, err
	}

	tolerance := o.tolerance
	heading := o.heading

	go func() {
		h.markRunning()

		sendCtx, cancel := context.WithTimeout(context.Background(), cancelActionTimeout)
		defer cancel()
		if !math.IsNaN(speed) {
			if err := v.adapter.SetMaximumSpeed(sendCtx, speed); err != nil {
				h.finish(StatusFailed, &NavigationError{Command: name, Reason: "setting speed failed", Err: err})
				return
			}
		}

		v.drive(h, driver{
			// Position setpoints are re-streamed every cycle, as offboard
			// mode requires.
			tick: func(ctx context.Context, s telemetry.Snapshot) error {
				return v.adapter.GotoLocation(ctx, target, heading)
			},
			progress: func(s telemetry.Snapshot) map[string]any {
				return map[string]any{
					"distance":  s.Position.DistanceTo(target),
					"target":    target,
					"tolerance": tolerance,
				}
			},
			complete: func(s telemetry.Snapshot) bool {
				return s.HasPosition && s.Position.DistanceTo(target) <= tolerance
			},
			onTimeout: func(s telemetry.Snapshot) error {
				return &GotoTimeoutError{DistanceRemaining: s.Position.DistanceTo(target)}
			},
		})
	}()
	return h, nil
}

// SetHeading yaws in place to the given compass heading. Completes when the
// signed shortest difference is 2 degrees or less.
func (v *Vehicle) SetHeading(ctx context.Context, heading float64, options ...CommandOption) (*Handle, error) {
	o := newCommandOptions()
	o.apply(options)
	if o.timeout == 0 {
		o.timeout = DefaultHeadingTimeout
	}
	if math.IsNaN(heading) || math.IsInf(heading, 0) {
		return nil, &ParameterValidationError{Parameter: "heading", Message: "heading must be finite"}
	}
	if err := v.checkTimeout(o.timeout); err != nil {
		return nil, err
	}

	target := geo.NormalizeHeading(heading)
	h, err := v.acquire("set_heading", o.timeout)
	if err != nil {
		return nil, err
	}

	go func() {
		h.markRunning()
		v.drive(h, driver{
			// Zero velocity with a yaw target holds position while turning.
			tick: func(ctx context.Context, s telemetry.Snapshot) error {
				return v.adapter.SetVelocityNED(ctx, geo.VectorNED{}, target)
			},
			progress: func(s telemetry.Snapshot) map[string]any {
				return map[string]any{
					"current_heading": s.Heading,
					"target_heading":  target,
					"heading_diff":    geo.HeadingDifference(target, s.Heading),
				}
			},
			complete: func(s telemetry.Snapshot) bool {
				return s.HasHeading && math.Abs(geo.HeadingDifference(target, s.Heading)) <= DefaultHeadingTolerance
			},
			onTimeout: func(s telemetry.Snapshot) error {
				return &NavigationError{
					Command: "set_heading",
					Reason:  fmt.Sprintf("timed out %.1f degrees from target", geo.HeadingDifference(target, s.Heading)),
				}
			},
		})
	}()
	return h, nil
}

// PointAt yaws towards the given coordinate.
func (v *Vehicle) PointAt(ctx context.Context, target geo.Coordinate, options ...CommandOption) (*Handle, error) {
	snap, err := v.state.Position()
	if err != nil {
		return nil, err
	}
	return v.SetHeading(ctx, snap.Position.BearingTo(target), options...)
}

// SetVelocity streams an NED velocity setpoint. With WithDuration the
// handle completes after that long; without it the command runs until
// cancelled or superseded.
func (v *Vehicle) SetVelocity(ctx context.Context, vel geo.VectorNED, options ...CommandOption) (*Handle, error) {
	o := newCommandOptions()
	o.apply(options)

	vel, err := v.checkVelocity(vel)
	if err != nil {
		return nil, err
	}

	h, err := v.acquire("set_velocity", 0)
	if err != nil {
		return nil, err
	}

	duration := o.duration
	heading := o.heading

	go func() {
		h.markRunning()

		d := driver{
			tick: func(ctx context.Context, s telemetry.Snapshot) error {
				return v.adapter.SetVelocityNED(ctx, vel, heading)
			},
			progress: func(s telemetry.Snapshot) map[string]any {
				p := map[string]any{
					"elapsed":        h.Elapsed(),
					"duration":       duration,
					"time_remaining": time.Duration(0),
				}
				if duration > 0 {
					if remaining := duration - h.Elapsed(); remaining > 0 {
						p["time_remaining"] = remaining
					}
				}
				return p
			},
		}
		if duration > 0 {
			d.complete = func(s telemetry.Snapshot) bool { return h.Elapsed() >= duration }
		}
		v.drive(h, d)

		// A timed velocity command stops the vehicle when it completes.
		if h.Succeeded() {
			ctx, cancel := context.WithTimeout(context.Background(), cancelActionTimeout)
			if err := v.adapter.Hold(ctx); err != nil {
				v.logger.Warn("hold after velocity command failed", "error", err.Error())
			}
			cancel()
		}
	}()
	return h, nil
}

// SetGroundspeed sets the autopilot's maximum travel speed. Immediate, no
// handle.
func (v *Vehicle) SetGroundspeed(ctx context.Context, speed float64) error {
	if !v.connected.Load() {
		return ErrNotConnected
	}
	speed, err := v.checkSpeed("groundspeed", speed)
	if err != nil {
		return err
	}
	if err := v.fenceSpeed(ctx, speed); err != nil {
		return err
	}
	return v.adapter.SetMaximumSpeed(ctx, speed)
}

// Orbit circles the center coordinate at the given radius. Completion is
// by accumulated angular travel: the bearing from center to vehicle is
// unwrapped sign-preservingly and the handle completes once the total
// reaches revolutions full circles.
func (v *Vehicle) Orbit(ctx context.Context, center geo.Coordinate, radius float64, options ...CommandOption) (*Handle, error) {
	o := newCommandOptions()
	o.speed = DefaultOrbitSpeed
	o.apply(options)

	if err := v.checkCoordinate(center); err != nil {
		return nil, err
	}
	if radius <= 0 || math.IsNaN(radius) || math.IsInf(radius, 0) {
		return nil, &ParameterValidationError{Parameter: "radius", Value: radius, Message: "radius must be finite and positive"}
	}
	if o.revolutions <= 0 {
		return nil, &ParameterValidationError{Parameter: "revolutions", Value: o.revolutions, Message: "revolutions must be positive"}
	}
	speed, err := v.checkSpeed("speed", o.speed)
	if err != nil {
		return nil, err
	}
	if err := v.fenceWaypoint(ctx, center); err != nil {
		return nil, err
	}

	if o.timeout == 0 {
		// Twice the ideal circumference time plus margin.
		ideal := time.Duration(o.revolutions * 2 * math.Pi * radius / speed * float64(time.Second))
		o.timeout = 2*ideal + 30*time.Second
	}
	if err := v.checkTimeout(o.timeout); err != nil {
		return nil, err
	}

	h, err := v.acquire("orbit", o.timeout)
	if err != nil {
		return nil, err
	}

	revolutions := o.revolutions
	clockwise := o.clockwise

	go func() {
		h.markRunning()
		sendCtx, cancel := context.WithTimeout(context.Background(), cancelActionTimeout)
		err := v.adapter.StartOrbit(sendCtx, center, radius, speed, clockwise)
		cancel()
		if err != nil {
			h.finish(StatusFailed, &NavigationError{Command: "orbit", Reason: "command rejected", Err: err})
			return
		}

		var prevBearing float64
		var havePrev bool
		var travelled float64 // signed degrees around center

		completed := func() float64 { return math.Abs(travelled) / 360 }

		v.drive(h, driver{
			tick: func(ctx context.Context, s telemetry.Snapshot) error {
				if !s.HasPosition {
					return nil
				}
				bearing := center.BearingTo(s.Position)
				if havePrev {
					travelled += geo.HeadingDifference(bearing, prevBearing)
				}
				prevBearing = bearing
				havePrev = true
				return nil
			},
			progress: func(s telemetry.Snapshot) map[string]any {
				done := completed()
				return map[string]any{
					"revolutions_completed": done,
					"target_revolutions":    revolutions,
					"progress_percent":      math.Min(100, done/revolutions*100),
					"time_remaining":        h.TimeRemaining(),
				}
			},
			complete: func(s telemetry.Snapshot) bool {
				return completed() >= revolutions
			},
			onTimeout: func(s telemetry.Snapshot) error {
				return &NavigationError{
					Command: "orbit",
					Reason:  fmt.Sprintf("timed out after %.2f of %.2f revolutions", completed(), revolutions),
				}
			},
		})
	}()
	return h, nil
}

// Abort sets the abort flag, cancels the active command and either returns
// to launch or holds in place. Commands issued while the flag is set fail
// fast with AbortError; ResetAbort clears it.
func (v *Vehicle) Abort(ctx context.Context, rtl bool) error {
	if !v.connected.Load() {
		return ErrNotConnected
	}

	v.aborted.Store(true)
	v.logger.Warn("abort requested", "rtl", rtl)
	v.events.emit(Event{Type: EventAbort})
	v.supersede()

	if rtl {
		return v.adapter.ReturnToLaunch(ctx)
	}
	return v.adapter.Hold(ctx)
}

// ResetAbort clears the abort flag so new commands are accepted again.
func (v *Vehicle) ResetAbort() {
	v.aborted.Store(false)
}
