package geo

import (
	"math"
	"testing"
)

var (
	lakeWheeler = NewCoordinate(35.727436, -78.696587, 10)
	centennial  = NewCoordinate(35.770400, -78.674800, 30)
)

func TestDistanceSymmetry(t *testing.T) {
	pairs := [][2]Coordinate{
		{lakeWheeler, centennial},
		{lakeWheeler, lakeWheeler.OffsetBy(VectorNED{North: 500})},
		{NewCoordinate(0, 0, 0), NewCoordinate(0.01, 0.01, 100)},
		{NewCoordinate(-35, 150, 5), NewCoordinate(-35.001, 149.999, 50)},
	}

	for i, p := range pairs {
		ab := p[0].DistanceTo(p[1])
		ba := p[1].DistanceTo(p[0])
		if math.Abs(ab-ba) > 1e-6 {
			t.Errorf("pair %d: distance not symmetric: %.9f vs %.9f", i, ab, ba)
		}
	}
}

func TestDistanceTriangleInequality(t *testing.T) {
	a := lakeWheeler
	b := a.OffsetBy(VectorNED{North: 300, East: -120, Down: -15})
	c := a.OffsetBy(VectorNED{North: -80, East: 440, Down: 5})

	ab := a.DistanceTo(b)
	bc := b.DistanceTo(c)
	ac := a.DistanceTo(c)
	if ac > ab+bc+1e-6 {
		t.Errorf("triangle inequality violated: %.6f > %.6f + %.6f", ac, ab, bc)
	}
}

func TestOffsetVectorRoundTrip(t *testing.T) {
	offsets := []VectorNED{
		{North: 20},
		{East: 20},
		{North: -150, East: 75, Down: -12},
		{North: 700, East: -700},
		{North: 999, East: 10, Down: 40},
	}

	for i, v := range offsets {
		b := lakeWheeler.OffsetBy(v)
		got := lakeWheeler.OffsetBy(lakeWheeler.VectorTo(b))
		if d := got.DistanceTo(b); d > 1.0 {
			t.Errorf("offset %d: round trip error %.3f m", i, d)
		}
	}
}

func TestGroundDistanceIgnoresAltitude(t *testing.T) {
	a := NewCoordinate(35.72, -78.69, 0)
	b := NewCoordinate(35.72, -78.69, 120)
	if d := a.GroundDistanceTo(b); d > 1e-9 {
		t.Errorf("expected zero ground distance, got %.9f", d)
	}
	if d := a.DistanceTo(b); math.Abs(d-120) > 1e-9 {
		t.Errorf("expected 120 m 3D distance, got %.9f", d)
	}
}

func TestBearing(t *testing.T) {
	tests := []struct {
		name string
		to   VectorNED
		want float64
	}{
		{"north", VectorNED{North: 100}, 0},
		{"east", VectorNED{East: 100}, 90},
		{"south", VectorNED{North: -100}, 180},
		{"west", VectorNED{East: -100}, 270},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := lakeWheeler.BearingTo(lakeWheeler.OffsetBy(tt.to))
			if math.Abs(HeadingDifference(tt.want, got)) > 0.1 {
				t.Errorf("bearing to %s: expected %.1f, got %.3f", tt.name, tt.want, got)
			}
		})
	}

	if b := lakeWheeler.BearingTo(lakeWheeler); b != 0 {
		t.Errorf("bearing to self: expected 0, got %.3f", b)
	}
}

func TestCoordinateValid(t *testing.T) {
	valid := []Coordinate{
		{Lat: 0, Lon: 0},
		{Lat: 90, Lon: 180},
		{Lat: -90, Lon: -180, Alt: 1000},
	}
	invalid := []Coordinate{
		{Lat: 91, Lon: 0},
		{Lat: 0, Lon: -181},
		{Lat: math.NaN(), Lon: 0},
		{Lat: 0, Lon: math.Inf(1)},
		{Lat: 0, Lon: 0, Alt: math.NaN()},
	}

	for i, c := range valid {
		if !c.Valid() {
			t.Errorf("valid coordinate %d reported invalid: %v", i, c)
		}
	}
	for i, c := range invalid {
		if c.Valid() {
			t.Errorf("invalid coordinate %d reported valid: %v", i, c)
		}
	}
}

func TestVectorArithmetic(t *testing.T) {
	v := VectorNED{North: 3, East: -4, Down: 12}

	if got := v.Neg().Neg(); got != v {
		t.Errorf("double negation: expected %v, got %v", v, got)
	}
	if got := v.Add(v.Neg()); got != (VectorNED{}) {
		t.Errorf("v + (-v): expected zero, got %v", got)
	}
	if got := v.Sub(v); got != (VectorNED{}) {
		t.Errorf("v - v: expected zero, got %v", got)
	}
	if got := v.Scale(2).Magnitude(); math.Abs(got-2*v.Magnitude()) > 1e-9 {
		t.Errorf("scale(2) magnitude: expected %.6f, got %.6f", 2*v.Magnitude(), got)
	}
	if got := v.Magnitude(); math.Abs(got-13) > 1e-9 {
		t.Errorf("magnitude: expected 13, got %.9f", got)
	}
	if got := v.GroundMagnitude(); math.Abs(got-5) > 1e-9 {
		t.Errorf("ground magnitude: expected 5, got %.9f", got)
	}
}

func TestVectorNormalize(t *testing.T) {
	vs := []VectorNED{
		{North: 1},
		{North: 3, East: -4, Down: 12},
		{North: -0.001, East: 0.002, Down: 0.5},
	}
	for i, v := range vs {
		if m := v.Normalize().Magnitude(); math.Abs(m-1) > 1e-9 {
			t.Errorf("vector %d: normalized magnitude %.12f", i, m)
		}
	}

	if got := (VectorNED{}).Normalize(); got != (VectorNED{}) {
		t.Errorf("zero vector normalize: expected zero, got %v", got)
	}
}

func TestVectorRotate(t *testing.T) {
	north := VectorNED{North: 1}

	east := north.RotateByAngle(90)
	if math.Abs(east.East-1) > 1e-9 || math.Abs(east.North) > 1e-9 {
		t.Errorf("north rotated 90: expected east, got %v", east)
	}

	back := north.RotateByAngle(90).RotateByAngle(-90)
	if math.Abs(back.North-1) > 1e-9 || math.Abs(back.East) > 1e-9 {
		t.Errorf("rotate round trip: got %v", back)
	}

	withDown := VectorNED{North: 1, Down: 7}.RotateByAngle(45)
	if withDown.Down != 7 {
		t.Errorf("rotation must not touch down: got %v", withDown.Down)
	}
}

func TestVectorHeading(t *testing.T) {
	tests := []struct {
		v    VectorNED
		want float64
	}{
		{VectorNED{North: 1}, 0},
		{VectorNED{East: 1}, 90},
		{VectorNED{North: -1}, 180},
		{VectorNED{East: -1}, 270},
		{VectorNED{North: 1, East: 1}, 45},
		{VectorNED{}, 0},
	}
	for i, tt := range tests {
		if got := tt.v.Heading(); math.Abs(HeadingDifference(tt.want, got)) > 1e-9 {
			t.Errorf("case %d: expected heading %.1f, got %.6f", i, tt.want, got)
		}
	}
}

func TestHeadingDifference(t *testing.T) {
	tests := []struct {
		target, current, want float64
	}{
		{0, 0, 0},
		{90, 0, 90},
		{0, 90, -90},
		{350, 10, -20},
		{10, 350, 20},
		{180, 0, 180},
		{0, 180, 180}, // ties resolve to +180
	}
	for i, tt := range tests {
		if got := HeadingDifference(tt.target, tt.current); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("case %d: HeadingDifference(%.0f, %.0f) = %.3f, want %.3f",
				i, tt.target, tt.current, got, tt.want)
		}
	}
}
