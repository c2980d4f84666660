package vehicle

import (
	"errors"
	"fmt"
	"time"

	"github.com/openuav/missionkit/pkg/geo"
	"github.com/openuav/missionkit/pkg/safety"
)

// ErrCommandBusy is returned when a navigation command is issued while
// another command is still running. Hold, Land, ReturnToLaunch and Abort
// supersede instead.
var ErrCommandBusy = errors.New("another command is already running")

// ConnectionError reports a failure to open the vehicle link.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	if e.Endpoint == "" {
		return fmt.Sprintf("connecting to vehicle: %v", e.Err)
	}
	return fmt.Sprintf("connecting to %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ConnectionTimeoutError reports that no telemetry arrived within the
// connect deadline.
type ConnectionTimeoutError struct {
	Timeout time.Duration
}

func (e *ConnectionTimeoutError) Error() string {
	return fmt.Sprintf("no telemetry received within %v", e.Timeout)
}

// HeartbeatLostError reports a telemetry gap exceeding the watchdog timeout
// while connected.
type HeartbeatLostError struct {
	Gap time.Duration
}

func (e *HeartbeatLostError) Error() string {
	return fmt.Sprintf("heartbeat lost, no telemetry for %v", e.Gap.Round(time.Millisecond))
}

// ArmError reports an arm command rejected by the vehicle.
type ArmError struct {
	Err error
}

func (e *ArmError) Error() string { return fmt.Sprintf("arming failed: %v", e.Err) }
func (e *ArmError) Unwrap() error { return e.Err }

// PreflightCheckError reports failed pre-arm checks. The full result is
// attached so callers can see which checks failed and why.
type PreflightCheckError struct {
	Result safety.PreflightResult
}

func (e *PreflightCheckError) Error() string {
	return fmt.Sprintf("preflight checks failed: %v", e.Result.FailedChecks())
}

// TakeoffError reports a takeoff that failed outright.
type TakeoffError struct {
	Err error
}

func (e *TakeoffError) Error() string { return fmt.Sprintf("takeoff failed: %v", e.Err) }
func (e *TakeoffError) Unwrap() error { return e.Err }

// TakeoffTimeoutError reports a takeoff that never reached its target
// altitude.
type TakeoffTimeoutError struct {
	CurrentAltitude float64
	TargetAltitude  float64
}

func (e *TakeoffTimeoutError) Error() string {
	return fmt.Sprintf("takeoff timed out at %.1f m of %.1f m", e.CurrentAltitude, e.TargetAltitude)
}

// LandingError reports a landing that failed outright.
type LandingError struct {
	Err error
}

func (e *LandingError) Error() string { return fmt.Sprintf("landing failed: %v", e.Err) }
func (e *LandingError) Unwrap() error { return e.Err }

// LandingTimeoutError reports a landing where the vehicle never reported
// on-ground.
type LandingTimeoutError struct {
	CurrentAltitude float64
}

func (e *LandingTimeoutError) Error() string {
	return fmt.Sprintf("landing timed out at %.1f m", e.CurrentAltitude)
}

// NavigationError is a generic navigation failure with a reason.
type NavigationError struct {
	Command string
	Reason  string
	Err     error
}

func (e *NavigationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %s: %v", e.Command, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s failed: %s", e.Command, e.Reason)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// GotoTimeoutError reports a goto that did not reach its target in time.
type GotoTimeoutError struct {
	DistanceRemaining float64
}

func (e *GotoTimeoutError) Error() string {
	return fmt.Sprintf("goto timed out with %.1f m remaining", e.DistanceRemaining)
}

// AbortError is returned for commands issued while the abort flag is set,
// and attached to handles cancelled by an abort.
type AbortError struct {
	Command string
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("%s rejected: vehicle is aborting", e.Command)
}

// CommandCancelledError is attached to a handle cancelled by the user. If
// the cancel action itself failed, CancelErr carries that failure.
type CommandCancelledError struct {
	Command   string
	CancelErr error
}

func (e *CommandCancelledError) Error() string {
	if e.CancelErr != nil {
		return fmt.Sprintf("%s cancelled (cancel action failed: %v)", e.Command, e.CancelErr)
	}
	return fmt.Sprintf("%s cancelled", e.Command)
}

// ParameterValidationError reports an out-of-range command parameter.
type ParameterValidationError struct {
	Parameter string
	Value     float64
	Limit     float64
	Message   string
}

func (e *ParameterValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Parameter, e.Message)
}

// SpeedLimitExceededError reports a speed parameter above the configured
// maximum.
type SpeedLimitExceededError struct {
	Speed float64
	Limit float64
}

func (e *SpeedLimitExceededError) Error() string {
	return fmt.Sprintf("speed %.1f m/s exceeds limit %.1f m/s", e.Speed, e.Limit)
}

// GeofenceViolationError reports a movement rejected by the geofence
// validator.
type GeofenceViolationError struct {
	CurrentPosition geo.Coordinate
	TargetPosition  geo.Coordinate
	Reason          string
}

func (e *GeofenceViolationError) Error() string {
	return fmt.Sprintf("geofence violation: %s", e.Reason)
}

// GeofenceUnavailableError reports that the geofence server did not reply
// in time.
type GeofenceUnavailableError struct {
	Err error
}

func (e *GeofenceUnavailableError) Error() string {
	return fmt.Sprintf("geofence unavailable: %v", e.Err)
}

func (e *GeofenceUnavailableError) Unwrap() error { return e.Err }
