package geofence

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Vehicle types the validator knows about. Altitude bounds apply to copters
// only; rovers stay on the ground.
const (
	VehicleCopter = "copter"
	VehicleRover  = "rover"
)

// Config is the server-side geofence configuration.
type Config struct {
	VehicleType string  `yaml:"vehicleType"`
	MinSpeed    float64 `yaml:"minSpeed"`
	MaxSpeed    float64 `yaml:"maxSpeed"`
	MinAltitude float64 `yaml:"minAltitude"`
	MaxAltitude float64 `yaml:"maxAltitude"`

	// KML files, one or more polygons each.
	IncludeFences []string `yaml:"includeFences"`
	ExcludeFences []string `yaml:"excludeFences"`

	// CheckPaths also tests the from->to segment against fence edges.
	CheckPaths bool `yaml:"checkPaths"`
}

// LoadConfig reads a validator configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading geofence config: %w", err)
	}

	config := Config{VehicleType: VehicleCopter}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing geofence config: %w", err)
	}

	switch config.VehicleType {
	case VehicleCopter, VehicleRover:
	default:
		return nil, fmt.Errorf("unknown vehicle type %q", config.VehicleType)
	}
	return &config, nil
}

// Validator enforces the configured polygons and bounds.
type Validator struct {
	config  Config
	include []Polygon
	exclude []Polygon
}

// NewValidator builds a validator, loading every configured KML fence.
func NewValidator(config Config) (*Validator, error) {
	v := Validator{config: config}

	for _, path := range config.IncludeFences {
		polygons, err := ReadKML(path)
		if err != nil {
			return nil, fmt.Errorf("loading include fence: %w", err)
		}
		v.include = append(v.include, polygons...)
	}
	for _, path := range config.ExcludeFences {
		polygons, err := ReadKML(path)
		if err != nil {
			return nil, fmt.Errorf("loading exclude fence: %w", err)
		}
		v.exclude = append(v.exclude, polygons...)
	}

	return &v, nil
}

// NewValidatorWithFences builds a validator from in-memory polygons.
func NewValidatorWithFences(config Config, include, exclude []Polygon) *Validator {
	return &Validator{config: config, include: include, exclude: exclude}
}

// pointAllowed checks a point against every polygon: inside all includes
// (unbounded when none are configured) and outside all excludes.
func (v *Validator) pointAllowed(lat, lon float64) (bool, string) {
	for _, p := range v.include {
		if !p.Contains(lat, lon) {
			return false, "target outside include geofence"
		}
	}
	for _, p := range v.exclude {
		if p.Contains(lat, lon) {
			return false, "target inside exclude geofence"
		}
	}
	return true, ""
}

// ValidateWaypoint checks a movement from one point to another.
func (v *Validator) ValidateWaypoint(from, to Point, toAlt float64) (bool, string) {
	if allowed, reason := v.pointAllowed(to.Lat, to.Lon); !allowed {
		return false, reason
	}

	if v.config.VehicleType == VehicleCopter {
		if toAlt < v.config.MinAltitude || toAlt > v.config.MaxAltitude {
			return false, fmt.Sprintf("altitude %.1f m outside [%.1f, %.1f]",
				toAlt, v.config.MinAltitude, v.config.MaxAltitude)
		}
	}

	if v.config.CheckPaths {
		for _, p := range append(append([]Polygon(nil), v.include...), v.exclude...) {
			if p.IntersectsSegment(from, to) {
				return false, "path crosses geofence boundary"
			}
		}
	}
	return true, ""
}

// ValidateSpeed checks a requested speed against the configured band.
func (v *Validator) ValidateSpeed(speed float64) bool {
	return speed >= v.config.MinSpeed && speed <= v.config.MaxSpeed
}

// ValidateTakeoff checks a takeoff at the given point and target altitude.
func (v *Validator) ValidateTakeoff(lat, lon, alt float64) bool {
	if allowed, _ := v.pointAllowed(lat, lon); !allowed {
		return false
	}
	if v.config.VehicleType == VehicleCopter {
		return alt >= v.config.MinAltitude && alt <= v.config.MaxAltitude
	}
	return true
}
