package app

import (
	"errors"
	"fmt"
)

// Supported vehicle types. Rovers skip takeoff items and fly at ground
// level; "none" is a generic vehicle that executes the plan as written
// but never auto-RTLs on abort.
const (
	VehicleDrone = "drone"
	VehicleRover = "rover"
	VehicleNone  = "none"
)

// Config is the resolved command-line configuration.
type Config struct {
	Connection       string
	PlanPath         string
	VehicleType      string
	SafetyPath       string
	GeofenceEndpoint string
	LogDir           string
	SampleRate       float64
}

// Validate checks the configuration for required values and consistency.
func (c *Config) Validate() error {
	if c.Connection == "" {
		return errors.New("no MAVLink connection provided")
	}
	if c.PlanPath == "" {
		return errors.New("no mission plan provided")
	}
	switch c.VehicleType {
	case VehicleDrone, VehicleRover, VehicleNone:
	default:
		return fmt.Errorf("unknown vehicle type %q", c.VehicleType)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %g", c.SampleRate)
	}
	return nil
}
