// Package vehicle is the control core: it turns high-level navigation
// intents into MAVLink commands and offboard setpoints, tracks their
// completion through telemetry predicates, and models every in-flight
// command as a cancellable, progress-observable Handle.
package vehicle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openuav/missionkit/internal/mavlink"
	"github.com/openuav/missionkit/pkg/geo"
	"github.com/openuav/missionkit/pkg/safety"
	"github.com/openuav/missionkit/pkg/telemetry"
)

// ErrNotConnected is returned for commands issued before Connect or after
// Disconnect.
var ErrNotConnected = errors.New("vehicle is not connected")

const (
	// DefaultConnectTimeout bounds the wait for the first position fix.
	DefaultConnectTimeout = 30 * time.Second

	// DefaultHeartbeatTimeout is the telemetry gap after which the link is
	// considered lost.
	DefaultHeartbeatTimeout = 5 * time.Second

	// progressInterval paces driver loops: progress updates, setpoint
	// re-sends and predicate checks.
	progressInterval = 250 * time.Millisecond

	// cancelActionTimeout bounds the hold issued when a command is
	// cancelled or times out.
	cancelActionTimeout = 5 * time.Second
)

// FenceValidator is the geofence pre-check consulted before navigation
// commands. pkg/geofence.Client implements it; tests supply fakes.
type FenceValidator interface {
	ValidateWaypoint(ctx context.Context, from, to geo.Coordinate) (valid bool, reason string, err error)
	ValidateSpeed(ctx context.Context, speed float64) (bool, error)
	ValidateTakeoff(ctx context.Context, lat, lon, alt float64) (bool, error)
}

// WithLogger sets the logger for the vehicle.
func WithLogger(logger *slog.Logger) func(*Vehicle) {
	return func(v *Vehicle) {
		v.logger = logger.With(slog.String("component", "vehicle"))
	}
}

// WithLimits sets the safety limits applied to every command.
func WithLimits(limits safety.Limits) func(*Vehicle) {
	return func(v *Vehicle) {
		v.limits = limits
	}
}

// WithFence attaches a geofence validator consulted before navigation
// commands.
func WithFence(fence FenceValidator) func(*Vehicle) {
	return func(v *Vehicle) {
		v.fence = fence
	}
}

// WithConnectTimeout overrides the wait for first telemetry during Connect.
func WithConnectTimeout(timeout time.Duration) func(*Vehicle) {
	return func(v *Vehicle) {
		v.connectTimeout = timeout
	}
}

// WithHeartbeatTimeout overrides the telemetry-gap watchdog threshold.
func WithHeartbeatTimeout(timeout time.Duration) func(*Vehicle) {
	return func(v *Vehicle) {
		v.heartbeatTimeout = timeout
	}
}

// Vehicle is one MAVLink vehicle under control. At most one navigation
// command runs at a time; Hold, Land, ReturnToLaunch and Abort supersede
// the active command, everything else is rejected with ErrCommandBusy.
type Vehicle struct {
	adapter mavlink.Adapter
	limits  safety.Limits
	fence   FenceValidator
	logger  *slog.Logger

	state   *telemetry.State
	monitor *safety.Monitor
	events  *events

	connectTimeout   time.Duration
	heartbeatTimeout time.Duration

	connected atomic.Bool
	aborted   atomic.Bool

	cmdMu  sync.Mutex
	active *Handle

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a vehicle over the given adapter with default limits. The
// vehicle is inert until Connect.
func New(adapter mavlink.Adapter, options ...func(*Vehicle)) *Vehicle {
	v := Vehicle{
		adapter:          adapter,
		limits:           safety.DefaultLimits(),
		logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		state:            telemetry.NewState(),
		events:           newEvents(),
		connectTimeout:   DefaultConnectTimeout,
		heartbeatTimeout: DefaultHeartbeatTimeout,
	}

	for _, option := range options {
		option(&v)
	}

	return &v
}

// Telemetry returns the read-only telemetry view.
func (v *Vehicle) Telemetry() telemetry.Reader { return v.state }

// Limits returns the active safety limits.
func (v *Vehicle) Limits() safety.Limits { return v.limits }

// OnEvent registers a callback for one event type. Callbacks run on the
// emitting goroutine and must not block.
func (v *Vehicle) OnEvent(t EventType, fn func(Event)) { v.events.on(t, fn) }

// Connected reports whether the link is up.
func (v *Vehicle) Connected() bool { return v.connected.Load() }

// Aborted reports whether the abort flag is set.
func (v *Vehicle) Aborted() bool { return v.aborted.Load() }

// Active returns the currently running handle, nil when idle.
func (v *Vehicle) Active() *Handle {
	v.cmdMu.Lock()
	defer v.cmdMu.Unlock()
	if v.active != nil && v.active.IsComplete() {
		return nil
	}
	return v.active
}

// Connect opens the link, starts telemetry ingestion, waits for the first
// position fix and launches the safety monitor.
func (v *Vehicle) Connect(ctx context.Context) error {
	if v.connected.Load() {
		return nil
	}

	if err := v.adapter.Connect(ctx); err != nil {
		return &ConnectionError{Err: err}
	}

	bg, cancel := context.WithCancel(context.Background())
	v.cancel = cancel

	v.wg.Add(2)
	go v.ingest(v.adapter.Updates())
	go v.watchdog(bg)

	waitCtx, waitCancel := context.WithTimeout(ctx, v.connectTimeout)
	defer waitCancel()
	if _, err := v.state.WaitUntil(waitCtx, func(s telemetry.Snapshot) bool { return s.HasPosition }); err != nil {
		cancel()
		v.adapter.Close()
		v.wg.Wait()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &ConnectionTimeoutError{Timeout: v.connectTimeout}
	}

	v.monitor = safety.NewMonitor(v.limits, v.state, failsafe{v}, safety.WithMonitorLogger(v.logger))
	for _, t := range []safety.ViolationType{
		safety.BatteryLow, safety.BatteryCritical,
		safety.SpeedTooHigh, safety.VerticalSpeedTooHigh, safety.GPSPoor,
	} {
		v.monitor.OnViolation(t, func(violation safety.Violation) {
			v.events.emit(Event{Type: EventSafetyViolation, Violation: &violation})
		})
	}
	v.monitor.Start(bg)

	v.connected.Store(true)
	v.logger.Info("vehicle connected")
	v.events.emit(Event{Type: EventConnect})
	return nil
}

// Disconnect cancels the active command, stops the monitor and closes the
// link. Safe to call more than once.
func (v *Vehicle) Disconnect() error {
	if !v.connected.Swap(false) {
		return nil
	}

	if h := v.Active(); h != nil {
		h.Cancel(false)
		select {
		case <-h.Done():
		case <-time.After(time.Second):
		}
	}

	v.monitor.Stop()
	err := v.adapter.Close()
	v.cancel()
	v.wg.Wait()

	v.logger.Info("vehicle disconnected")
	v.events.emit(Event{Type: EventDisconnect})
	return err
}

// ingest applies decoded wire updates to the telemetry store until the
// adapter closes its channel.
func (v *Vehicle) ingest(updates <-chan mavlink.Update) {
	defer v.wg.Done()

	for u := range updates {
		u := u
		v.state.Apply(func(s *telemetry.Snapshot) {
			switch u := u.(type) {
			case mavlink.PositionUpdate:
				s.Position.Lat = u.Lat
				s.Position.Lon = u.Lon
				s.Position.Alt = u.RelAlt
				s.HasPosition = true

			case mavlink.VelocityUpdate:
				s.Velocity = u.Velocity
				s.HasVelocity = true

			case mavlink.HeadingUpdate:
				s.Heading = u.Heading
				s.HasHeading = true

			case mavlink.SpeedUpdate:
				s.Groundspeed = u.Groundspeed
				s.Airspeed = u.Airspeed
				s.ClimbRate = u.ClimbRate
				s.HasSpeeds = true

			case mavlink.BatteryUpdate:
				s.Battery = telemetry.Battery{
					Voltage:    u.Voltage,
					Current:    u.Current,
					Percentage: u.Percentage,
					IsLow:      u.Percentage < v.limits.MinBatteryPercent,
					IsCritical: u.Percentage < v.limits.CriticalBatteryPercent,
				}
				s.HasBattery = true

			case mavlink.GPSUpdate:
				s.GPS = telemetry.GPSInfo{
					FixType:    u.FixType,
					Satellites: u.Satellites,
					Quality:    u.FixType,
					Latitude:   u.Lat,
					Longitude:  u.Lon,
				}
				s.HasGPS = true

			case mavlink.ModeUpdate:
				// Home is captured on the first fix after arming, unless
				// the autopilot has already reported one.
				if u.Armed && !s.Armed && !s.HasHome && s.HasPosition {
					s.Home = s.Position
					s.HasHome = true
				}
				s.FlightMode = u.FlightMode
				s.HasFlightMode = true
				s.Armed = u.Armed
				s.HasArmed = true

			case mavlink.LandedUpdate:
				s.Landed = u.Landed
				s.HasLanded = true
				s.InAir = u.InAir
				s.HasInAir = true

			case mavlink.HomeUpdate:
				s.Home = geo.Coordinate{Lat: u.Lat, Lon: u.Lon, Alt: u.RelAlt, Name: "home"}
				s.HasHome = true
			}
		})
	}
}

// watchdog fails the active command when telemetry stalls for longer than
// the heartbeat timeout.
func (v *Vehicle) watchdog(ctx context.Context) {
	defer v.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var tripped bool
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		snap := v.state.Snapshot()
		if snap.UpdatedAt.IsZero() || !v.connected.Load() {
			continue
		}

		gap := time.Since(snap.UpdatedAt)
		if gap <= v.heartbeatTimeout {
			tripped = false
			continue
		}
		if tripped {
			continue
		}
		tripped = true

		err := &HeartbeatLostError{Gap: gap}
		v.logger.Error("telemetry stream stalled", slog.Duration("gap", gap))
		v.events.emit(Event{Type: EventHeartbeatLost, Err: err})
		if h := v.Active(); h != nil {
			h.finish(StatusFailed, err)
		}
	}
}

// Arm runs the preflight suite and arms the vehicle. On a failed check no
// arm command is sent; the full result rides on PreflightCheckError.
func (v *Vehicle) Arm(ctx context.Context) error {
	return v.arm(ctx, false)
}

// ForceArm arms without preflight checks.
func (v *Vehicle) ForceArm(ctx context.Context) error {
	return v.arm(ctx, true)
}

func (v *Vehicle) arm(ctx context.Context, skipPreflight bool) error {
	if !v.connected.Load() {
		return ErrNotConnected
	}

	if v.limits.EnablePreflightChecks && !skipPreflight {
		result := safety.RunPreflight(v.limits, v.state.Snapshot(), true)
		for _, w := range result.Warnings {
			v.logger.Warn("preflight warning", slog.String("warning", w))
		}
		if !result.OK() {
			return &PreflightCheckError{Result: result}
		}
	}

	if err := v.adapter.Arm(ctx); err != nil {
		return &ArmError{Err: err}
	}

	v.state.Apply(func(s *telemetry.Snapshot) {
		if !s.HasHome && s.HasPosition {
			s.Home = s.Position
			s.HasHome = true
		}
	})

	v.logger.Info("vehicle armed")
	v.events.emit(Event{Type: EventArm})
	return nil
}

// Disarm disarms the vehicle. force uses the autopilot's forced-disarm
// path, which works even in the air.
func (v *Vehicle) Disarm(ctx context.Context, force bool) error {
	if !v.connected.Load() {
		return ErrNotConnected
	}
	if err := v.adapter.Disarm(ctx, force); err != nil {
		return err
	}
	v.logger.Info("vehicle disarmed")
	v.events.emit(Event{Type: EventDisarm})
	return nil
}

// acquire reserves the single active-command slot. Navigation commands
// fail with ErrCommandBusy while it is taken; superseding commands use
// preempt instead.
func (v *Vehicle) acquire(command string, timeout time.Duration) (*Handle, error) {
	if !v.connected.Load() {
		return nil, ErrNotConnected
	}
	if v.aborted.Load() {
		return nil, &AbortError{Command: command}
	}

	v.cmdMu.Lock()
	defer v.cmdMu.Unlock()

	if v.active != nil && !v.active.IsComplete() {
		return nil, ErrCommandBusy
	}

	h := newHandle(command, timeout)
	h.onFinish = v.handleFinished
	v.active = h
	v.logger.Info("command started",
		slog.String("command", command),
		slog.String("id", h.id.String()))
	return h, nil
}

// preempt takes the active-command slot for a superseding command: the new
// handle is installed while the slot holder is cancelled, so a concurrent
// caller can never grab the freed slot in between.
func (v *Vehicle) preempt(command string, timeout time.Duration) (*Handle, error) {
	if !v.connected.Load() {
		return nil, ErrNotConnected
	}
	if v.aborted.Load() {
		return nil, &AbortError{Command: command}
	}

	h := newHandle(command, timeout)
	h.onFinish = v.handleFinished

	v.cmdMu.Lock()
	old := v.active
	v.active = h
	v.cmdMu.Unlock()

	if old != nil && old.Cancel(false) {
		select {
		case <-old.Done():
		case <-time.After(time.Second):
			v.logger.Warn("superseded command did not finish in time",
				slog.String("command", old.command))
		}
	}

	v.logger.Info("command started",
		slog.String("command", command),
		slog.String("id", h.id.String()))
	return h, nil
}

func (v *Vehicle) handleFinished(h *Handle) {
	v.cmdMu.Lock()
	if v.active == h {
		v.active = nil
	}
	v.cmdMu.Unlock()

	result := h.result()
	v.logger.Info("command finished",
		slog.String("command", result.Command),
		slog.String("status", result.Status.String()),
		slog.Duration("duration", result.Duration))
	v.events.emit(Event{
		Type:    EventCommandComplete,
		Command: result.Command,
		Result:  &result,
		Err:     result.Err,
	})
}

// supersede cancels the active command without its cancel action and waits
// briefly for the driver to let go.
func (v *Vehicle) supersede() {
	v.cmdMu.Lock()
	h := v.active
	v.cmdMu.Unlock()

	if h == nil || !h.Cancel(false) {
		return
	}
	select {
	case <-h.Done():
	case <-time.After(time.Second):
		v.logger.Warn("superseded command did not finish in time",
			slog.String("command", h.command))
	}
}

// driver describes one command's behavior to the drive loop. All callbacks
// run on the driving goroutine with a fresh snapshot.
type driver struct {
	// tick runs every cycle, e.g. to re-send an offboard setpoint. A
	// non-nil error fails the handle.
	tick func(ctx context.Context, snap telemetry.Snapshot) error

	// progress builds the command-specific progress map.
	progress func(snap telemetry.Snapshot) map[string]any

	// complete is the completion predicate. nil means the command never
	// self-terminates.
	complete func(snap telemetry.Snapshot) bool

	// onTimeout builds the command-specific timeout error.
	onTimeout func(snap telemetry.Snapshot) error

	// cancelAction overrides the default hold-in-place cancel action.
	cancelAction func(ctx context.Context) error
}

// drive polls telemetry against the completion predicate, publishing
// progress at better than 2 Hz, until completion, timeout, cancellation or
// failure. It runs on its own goroutine per command.
func (v *Vehicle) drive(h *Handle, d driver) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	var timeoutCh <-chan time.Time
	if h.timeout > 0 {
		timer := time.NewTimer(h.timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	for {
		if h.IsComplete() {
			return
		}

		snap := v.state.Snapshot()

		if d.tick != nil {
			ctx, cancel := context.WithTimeout(context.Background(), progressInterval)
			err := d.tick(ctx, snap)
			cancel()
			if err != nil {
				h.finish(StatusFailed, &NavigationError{Command: h.command, Reason: "setpoint send failed", Err: err})
				return
			}
		}

		if d.progress != nil {
			h.setProgress(d.progress(snap))
		}

		if d.complete != nil && d.complete(snap) {
			h.finish(StatusCompleted, nil)
			return
		}

		select {
		case <-ticker.C:

		case <-h.done:
			return

		case <-h.cancelCh:
			v.finishCancelled(h, d)
			return

		case <-timeoutCh:
			last := v.state.Snapshot()
			var err error
			if d.onTimeout != nil {
				err = d.onTimeout(last)
			} else {
				err = &NavigationError{Command: h.command, Reason: "timed out"}
			}
			v.freeze(h.command)
			h.finish(StatusTimedOut, err)
			return
		}
	}
}

// finishCancelled runs the cancel action when requested and moves the
// handle to Cancelled. A failed cancel action does not block the terminal
// transition; its error is attached.
func (v *Vehicle) finishCancelled(h *Handle, d driver) {
	_, execAction := h.cancelling()

	var cancelErr error
	if execAction {
		action := d.cancelAction
		if action == nil {
			action = v.adapter.Hold
		}
		ctx, cancel := context.WithTimeout(context.Background(), cancelActionTimeout)
		cancelErr = action(ctx)
		cancel()
		if cancelErr != nil {
			v.logger.Warn("cancel action failed",
				slog.String("command", h.command),
				slog.String("error", cancelErr.Error()))
		}
	}

	var err error
	if v.aborted.Load() {
		err = &AbortError{Command: h.command}
	} else {
		err = &CommandCancelledError{Command: h.command, CancelErr: cancelErr}
	}
	h.finish(StatusCancelled, err)
}

// freeze holds the vehicle in place after a timeout.
func (v *Vehicle) freeze(command string) {
	ctx, cancel := context.WithTimeout(context.Background(), cancelActionTimeout)
	defer cancel()
	if err := v.adapter.Hold(ctx); err != nil {
		v.logger.Warn("hold after timeout failed",
			slog.String("command", command),
			slog.String("error", err.Error()))
	}
}

// failsafe lets the safety monitor trigger an RTL without depending on the
// vehicle type.
type failsafe struct{ v *Vehicle }

func (f failsafe) ReturnToLaunch(ctx context.Context) error {
	_, err := f.v.ReturnToLaunch(ctx)
	return err
}
