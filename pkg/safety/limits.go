// Package safety validates command parameters against configured limits,
// runs pre-arm checks and monitors telemetry at runtime.
package safety

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Limits is the client-side safety configuration applied to every command.
type Limits struct {
	MaxSpeed               float64 `yaml:"maxSpeed"`
	MaxVerticalSpeed       float64 `yaml:"maxVerticalSpeed"`
	MinAltitude            float64 `yaml:"minAltitude"`
	MaxAltitude            float64 `yaml:"maxAltitude"`
	MinBatteryPercent      float64 `yaml:"minBatteryPercent"`
	CriticalBatteryPercent float64 `yaml:"criticalBatteryPercent"`
	RequireGPSFix          bool    `yaml:"requireGpsFix"`
	MinSatellites          int     `yaml:"minSatellites"`

	EnableSpeedLimits         bool `yaml:"enableSpeedLimits"`
	EnableBatteryFailsafe     bool `yaml:"enableBatteryFailsafe"`
	EnableParameterValidation bool `yaml:"enableParameterValidation"`
	EnablePreflightChecks     bool `yaml:"enablePreflightChecks"`
	AutoClampValues           bool `yaml:"autoClampValues"`
}

// DefaultLimits is the preset applied when nothing else is configured.
func DefaultLimits() Limits {
	return Limits{
		MaxSpeed:                  10,
		MaxVerticalSpeed:          3,
		MinAltitude:               0,
		MaxAltitude:               120,
		MinBatteryPercent:         20,
		CriticalBatteryPercent:    10,
		RequireGPSFix:             true,
		MinSatellites:             6,
		EnableSpeedLimits:         true,
		EnableBatteryFailsafe:     true,
		EnableParameterValidation: true,
		EnablePreflightChecks:     true,
	}
}

// RestrictiveLimits is a conservative preset for flights near people or
// structures.
func RestrictiveLimits() Limits {
	l := DefaultLimits()
	l.MaxSpeed = 5
	l.MaxVerticalSpeed = 1.5
	l.MaxAltitude = 50
	l.MinBatteryPercent = 30
	l.CriticalBatteryPercent = 20
	l.MinSatellites = 8
	return l
}

// PermissiveLimits relaxes the bounds for open test ranges.
func PermissiveLimits() Limits {
	l := DefaultLimits()
	l.MaxSpeed = 20
	l.MaxVerticalSpeed = 5
	l.MaxAltitude = 400
	l.MinBatteryPercent = 15
	l.CriticalBatteryPercent = 5
	l.MinSatellites = 5
	l.AutoClampValues = true
	return l
}

// DisabledLimits turns every check off. SITL only.
func DisabledLimits() Limits {
	return Limits{
		MaxSpeed:         1e9,
		MaxVerticalSpeed: 1e9,
		MaxAltitude:      1e9,
	}
}

// LoadLimits reads a limits preset from a YAML file.
func LoadLimits(path string) (Limits, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Limits{}, fmt.Errorf("reading safety limits: %w", err)
	}

	limits := DefaultLimits()
	if err := yaml.Unmarshal(data, &limits); err != nil {
		return Limits{}, fmt.Errorf("parsing safety limits: %w", err)
	}
	return limits, nil
}
