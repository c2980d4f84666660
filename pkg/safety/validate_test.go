package safety

import (
	"math"
	"testing"
	"time"

	"github.com/openuav/missionkit/pkg/geo"
)

func TestValidateSpeed(t *testing.T) {
	limits := DefaultLimits() // MaxSpeed 10

	tests := []struct {
		name  string
		speed float64
		ok    bool
	}{
		{"at limit", 10, true},
		{"below limit", 5.5, true},
		{"above limit", 10.1, false},
		{"zero", 0, false},
		{"negative", -3, false},
		{"nan", math.NaN(), false},
		{"inf", math.Inf(1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidateSpeed(tt.speed, limits)
			if res.OK != tt.ok {
				t.Errorf("ValidateSpeed(%v) = %v (%s), want ok=%v", tt.speed, res.OK, res.Message, tt.ok)
			}
		})
	}

	// With speed limits disabled, anything finite and positive passes.
	limits.EnableSpeedLimits = false
	if res := ValidateSpeed(500, limits); !res.OK {
		t.Errorf("speed limits disabled, 500 m/s should pass: %s", res.Message)
	}
}

func TestValidateVelocity(t *testing.T) {
	limits := DefaultLimits() // MaxSpeed 10, MaxVerticalSpeed 3

	pass := []geo.VectorNED{
		{North: 6, East: 8}, // horizontal exactly 10
		{North: 1, East: 1, Down: 3},
		{Down: -3},
	}
	reject := []geo.VectorNED{
		{North: 8, East: 8},            // horizontal ~11.3
		{Down: 3.5},                    // vertical over
		{North: math.NaN()},            // not finite
		{North: 1, East: math.Inf(-1)}, // not finite
	}

	for i, v := range pass {
		if res := ValidateVelocity(v, limits); !res.OK {
			t.Errorf("velocity %d %v should pass: %s", i, v, res.Message)
		}
	}
	for i, v := range reject {
		if res := ValidateVelocity(v, limits); res.OK {
			t.Errorf("velocity %d %v should be rejected", i, v)
		}
	}
}

func TestValidateAltitude(t *testing.T) {
	limits := DefaultLimits() // 0..120

	if res := ValidateAltitude(50, limits); !res.OK {
		t.Errorf("50 m should pass: %s", res.Message)
	}
	if res := ValidateAltitude(121, limits); res.OK {
		t.Error("121 m should be rejected")
	}
	if res := ValidateAltitude(-1, limits); res.OK {
		t.Error("-1 m should be rejected")
	}
	if res := ValidateAltitude(math.NaN(), limits); res.OK {
		t.Error("NaN should be rejected")
	}
}

func TestValidateToleranceAndTimeout(t *testing.T) {
	if res := ValidateTolerance(0.05); res.OK {
		t.Error("tolerance below 0.1 m should be rejected")
	}
	if res := ValidateTolerance(2); !res.OK {
		t.Errorf("tolerance 2 m should pass: %s", res.Message)
	}

	if res := ValidateTimeout(0); res.OK {
		t.Error("zero timeout should be rejected")
	}
	if res := ValidateTimeout(2 * time.Hour); res.OK {
		t.Error("timeout over one hour should be rejected")
	}
	if res := ValidateTimeout(5 * time.Minute); !res.OK {
		t.Errorf("5 minute timeout should pass: %s", res.Message)
	}
}

func TestClampSpeed(t *testing.T) {
	limits := DefaultLimits()

	// Above limit clamps to exactly the limit; below is identity.
	for _, s := range []float64{10.01, 15, 1e6} {
		if got := ClampSpeed(s, limits); got != limits.MaxSpeed {
			t.Errorf("ClampSpeed(%v) = %v, want %v", s, got, limits.MaxSpeed)
		}
	}
	for _, s := range []float64{0, 3.7, 10} {
		if got := ClampSpeed(s, limits); got != s {
			t.Errorf("ClampSpeed(%v) = %v, want identity", s, got)
		}
	}
}

func TestClampVelocity(t *testing.T) {
	limits := DefaultLimits()

	v := geo.VectorNED{North: 30, East: 40, Down: 5} // horizontal 50
	clamped := ClampVelocity(v, limits)

	if h := clamped.GroundMagnitude(); math.Abs(h-limits.MaxSpeed) > 1e-9 {
		t.Errorf("clamped horizontal magnitude %v, want %v", h, limits.MaxSpeed)
	}

	// Direction preserved: components keep their 3:4 ratio.
	if math.Abs(clamped.North/clamped.East-0.75) > 1e-9 {
		t.Errorf("direction not preserved: %v", clamped)
	}

	if clamped.Down != limits.MaxVerticalSpeed {
		t.Errorf("down %v, want clamped to %v", clamped.Down, limits.MaxVerticalSpeed)
	}

	// Under the limits, identity.
	v = geo.VectorNED{North: 1, East: 2, Down: -1}
	if got := ClampVelocity(v, limits); got != v {
		t.Errorf("ClampVelocity(%v) = %v, want identity", v, got)
	}

	// Upwards clamps symmetrically.
	up := ClampVelocity(geo.VectorNED{Down: -20}, limits)
	if up.Down != -limits.MaxVerticalSpeed {
		t.Errorf("up clamp: %v, want %v", up.Down, -limits.MaxVerticalSpeed)
	}
}
