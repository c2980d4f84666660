// Package geo provides the geometric primitives used across the library:
// WGS84 coordinates, local NED displacement vectors and waypoints.
package geo

import "math"

// VectorNED is a displacement in the local NED (North, East, Down) frame,
// in meters. Down is positive towards the ground.
type VectorNED struct {
	North float64
	East  float64
	Down  float64
}

// Add returns the component-wise sum of two vectors.
func (v VectorNED) Add(o VectorNED) VectorNED {
	return VectorNED{v.North + o.North, v.East + o.East, v.Down + o.Down}
}

// Sub returns the component-wise difference of two vectors.
func (v VectorNED) Sub(o VectorNED) VectorNED {
	return VectorNED{v.North - o.North, v.East - o.East, v.Down - o.Down}
}

// Neg returns the vector pointing in the opposite direction.
func (v VectorNED) Neg() VectorNED {
	return VectorNED{-v.North, -v.East, -v.Down}
}

// Scale multiplies every component by k.
func (v VectorNED) Scale(k float64) VectorNED {
	return VectorNED{v.North * k, v.East * k, v.Down * k}
}

// Magnitude returns the length of the vector in meters.
func (v VectorNED) Magnitude() float64 {
	return math.Sqrt(v.North*v.North + v.East*v.East + v.Down*v.Down)
}

// GroundMagnitude returns the length of the horizontal (North/East)
// component only.
func (v VectorNED) GroundMagnitude() float64 {
	return math.Hypot(v.North, v.East)
}

// Normalize returns a unit vector in the same direction. The zero vector
// normalizes to the zero vector.
func (v VectorNED) Normalize() VectorNED {
	m := v.Magnitude()
	if m == 0 {
		return VectorNED{}
	}
	return v.Scale(1 / m)
}

// Cross returns the cross product v x o.
func (v VectorNED) Cross(o VectorNED) VectorNED {
	return VectorNED{
		North: v.East*o.Down - v.Down*o.East,
		East:  v.Down*o.North - v.North*o.Down,
		Down:  v.North*o.East - v.East*o.North,
	}
}

// RotateByAngle rotates the horizontal component by angle degrees about the
// down axis (right-hand rule, so positive angles turn north towards east).
// The down component is unchanged.
func (v VectorNED) RotateByAngle(angle float64) VectorNED {
	rads := angle / 180 * math.Pi
	north := v.North*math.Cos(rads) - v.East*math.Sin(rads)
	east := v.North*math.Sin(rads) + v.East*math.Cos(rads)
	return VectorNED{North: north, East: east, Down: v.Down}
}

// Heading returns the compass bearing of the horizontal component in
// degrees, 0 = north, 90 = east. The zero vector has heading 0.
func (v VectorNED) Heading() float64 {
	if math.Abs(v.North) < 1e-12 && math.Abs(v.East) < 1e-12 {
		return 0
	}
	deg := math.Atan2(v.East, v.North) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return deg
}

// NormalizeHeading wraps a heading in degrees into [0, 360).
func NormalizeHeading(heading float64) float64 {
	h := math.Mod(heading, 360)
	if h < 0 {
		h += 360
	}
	return h
}

// HeadingDifference returns the signed shortest angular difference from
// current to target, in (-180, 180]. Positive means a clockwise turn.
func HeadingDifference(target, current float64) float64 {
	d := math.Mod(NormalizeHeading(target)-NormalizeHeading(current), 360)
	if d > 180 {
		d -= 360
	} else if d <= -180 {
		d += 360
	}
	return d
}
