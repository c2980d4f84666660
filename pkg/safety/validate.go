package safety

import (
	"fmt"
	"math"
	"time"

	"github.com/openuav/missionkit/pkg/geo"
)

const (
	// MinTolerance is the smallest position tolerance a command may use.
	MinTolerance = 0.1

	// MaxTimeout bounds per-command timeouts.
	MaxTimeout = time.Hour
)

// Result is the outcome of one parameter validation.
type Result struct {
	OK      bool
	Message string
	Value   float64
	Limit   float64
}

func ok(value float64) Result {
	return Result{OK: true, Value: value}
}

func fail(value, limit float64, format string, args ...any) Result {
	return Result{Message: fmt.Sprintf(format, args...), Value: value, Limit: limit}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ValidateCoordinate checks that c is finite and within WGS84 bounds.
func ValidateCoordinate(c geo.Coordinate) Result {
	if !c.Valid() {
		return fail(0, 0, "coordinate out of bounds: %v", c)
	}
	return ok(0)
}

// ValidateAltitude checks a relative altitude against the configured band.
func ValidateAltitude(alt float64, limits Limits) Result {
	if !finite(alt) {
		return fail(alt, limits.MaxAltitude, "altitude is not finite")
	}
	if alt < limits.MinAltitude {
		return fail(alt, limits.MinAltitude, "altitude %.1f m below minimum %.1f m", alt, limits.MinAltitude)
	}
	if alt > limits.MaxAltitude {
		return fail(alt, limits.MaxAltitude, "altitude %.1f m above maximum %.1f m", alt, limits.MaxAltitude)
	}
	return ok(alt)
}

// ValidateSpeed checks a scalar speed parameter.
func ValidateSpeed(speed float64, limits Limits) Result {
	if !finite(speed) || speed <= 0 {
		return fail(speed, limits.MaxSpeed, "speed must be finite and positive, got %v", speed)
	}
	if limits.EnableSpeedLimits && speed > limits.MaxSpeed {
		return fail(speed, limits.MaxSpeed, "speed %.1f m/s exceeds limit %.1f m/s", speed, limits.MaxSpeed)
	}
	return ok(speed)
}

// ValidateVelocity checks a velocity vector: finite components, horizontal
// magnitude within MaxSpeed, vertical component within MaxVerticalSpeed.
func ValidateVelocity(v geo.VectorNED, limits Limits) Result {
	if !finite(v.North) || !finite(v.East) || !finite(v.Down) {
		return fail(0, 0, "velocity components must be finite, got %v", v)
	}
	if !limits.EnableSpeedLimits {
		return ok(v.Magnitude())
	}
	if h := v.GroundMagnitude(); h > limits.MaxSpeed {
		return fail(h, limits.MaxSpeed, "horizontal speed %.1f m/s exceeds limit %.1f m/s", h, limits.MaxSpeed)
	}
	if d := math.Abs(v.Down); d > limits.MaxVerticalSpeed {
		return fail(d, limits.MaxVerticalSpeed, "vertical speed %.1f m/s exceeds limit %.1f m/s", d, limits.MaxVerticalSpeed)
	}
	return ok(v.Magnitude())
}

// ValidateTolerance checks a position tolerance.
func ValidateTolerance(tolerance float64) Result {
	if !finite(tolerance) || tolerance < MinTolerance {
		return fail(tolerance, MinTolerance, "tolerance must be at least %.1f m, got %v", MinTolerance, tolerance)
	}
	return ok(tolerance)
}

// ValidateTimeout checks a per-command timeout.
func ValidateTimeout(timeout time.Duration) Result {
	if timeout <= 0 {
		return fail(timeout.Seconds(), MaxTimeout.Seconds(), "timeout must be positive, got %v", timeout)
	}
	if timeout > MaxTimeout {
		return fail(timeout.Seconds(), MaxTimeout.Seconds(), "timeout %v exceeds maximum %v", timeout, MaxTimeout)
	}
	return ok(timeout.Seconds())
}

// ClampSpeed limits a speed to the configured maximum.
func ClampSpeed(speed float64, limits Limits) float64 {
	if speed > limits.MaxSpeed {
		return limits.MaxSpeed
	}
	return speed
}

// ClampVelocity scales the horizontal component uniformly so its magnitude
// does not exceed MaxSpeed, preserving direction, and clamps the vertical
// component independently.
func ClampVelocity(v geo.VectorNED, limits Limits) geo.VectorNED {
	if h := v.GroundMagnitude(); h > limits.MaxSpeed && h > 0 {
		scale := limits.MaxSpeed / h
		v.North *= scale
		v.East *= scale
	}
	if v.Down > limits.MaxVerticalSpeed {
		v.Down = limits.MaxVerticalSpeed
	} else if v.Down < -limits.MaxVerticalSpeed {
		v.Down = -limits.MaxVerticalSpeed
	}
	return v
}

// ClampAltitude limits an altitude to the configured band.
func ClampAltitude(alt float64, limits Limits) float64 {
	if alt < limits.MinAltitude {
		return limits.MinAltitude
	}
	if alt > limits.MaxAltitude {
		return limits.MaxAltitude
	}
	return alt
}
