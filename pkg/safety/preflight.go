package safety

import (
	"fmt"
	"sort"

	"github.com/openuav/missionkit/pkg/telemetry"
)

// Preflight check names.
const (
	CheckConfig     = "config"
	CheckGPS        = "gps"
	CheckBattery    = "battery"
	CheckConnection = "connection"
)

// CheckResult is the outcome of one named preflight check.
type CheckResult struct {
	Passed  bool
	Message string
}

// PreflightResult is the outcome of a full preflight suite run.
type PreflightResult struct {
	Checks   map[string]CheckResult
	Warnings []string
}

// OK reports whether every check passed.
func (r PreflightResult) OK() bool {
	for _, c := range r.Checks {
		if !c.Passed {
			return false
		}
	}
	return true
}

// FailedChecks returns the names of failed checks, sorted.
func (r PreflightResult) FailedChecks() []string {
	var failed []string
	for name, c := range r.Checks {
		if !c.Passed {
			failed = append(failed, name)
		}
	}
	sort.Strings(failed)
	return failed
}

// RunPreflight evaluates the pre-arm suite against the current telemetry.
// connected reports whether the link is up.
func RunPreflight(limits Limits, snap telemetry.Snapshot, connected bool) PreflightResult {
	result := PreflightResult{Checks: make(map[string]CheckResult)}

	result.Checks[CheckConfig] = checkConfig(limits)
	result.Checks[CheckConnection] = checkConnection(snap, connected)
	result.Checks[CheckGPS], result.Warnings = checkGPS(limits, snap, result.Warnings)
	result.Checks[CheckBattery] = checkBattery(limits, snap)

	return result
}

func checkConfig(limits Limits) CheckResult {
	switch {
	case limits.MaxSpeed <= 0:
		return CheckResult{Message: "maxSpeed must be positive"}
	case limits.MaxVerticalSpeed <= 0:
		return CheckResult{Message: "maxVerticalSpeed must be positive"}
	case limits.MaxAltitude <= limits.MinAltitude:
		return CheckResult{Message: "maxAltitude must be above minAltitude"}
	case limits.CriticalBatteryPercent > limits.MinBatteryPercent:
		return CheckResult{Message: "criticalBatteryPercent must not exceed minBatteryPercent"}
	}
	return CheckResult{Passed: true, Message: "limits consistent"}
}

func checkConnection(snap telemetry.Snapshot, connected bool) CheckResult {
	if !connected {
		return CheckResult{Message: "vehicle link is down"}
	}
	if !snap.HasPosition {
		return CheckResult{Message: "no position telemetry received"}
	}
	return CheckResult{Passed: true, Message: "link up, telemetry flowing"}
}

func checkGPS(limits Limits, snap telemetry.Snapshot, warnings []string) (CheckResult, []string) {
	if !snap.HasGPS {
		if limits.RequireGPSFix {
			return CheckResult{Message: "no GPS telemetry received"}, warnings
		}
		return CheckResult{Passed: true, Message: "GPS not required"},
			append(warnings, "arming without GPS telemetry")
	}

	if limits.RequireGPSFix && snap.GPS.FixType < 3 {
		return CheckResult{Message: fmt.Sprintf("no 3D fix (fix type %d)", snap.GPS.FixType)}, warnings
	}
	if snap.GPS.Satellites < limits.MinSatellites {
		msg := fmt.Sprintf("%d satellites, need %d", snap.GPS.Satellites, limits.MinSatellites)
		if limits.RequireGPSFix {
			return CheckResult{Message: msg}, warnings
		}
		warnings = append(warnings, msg)
	}
	return CheckResult{Passed: true, Message: fmt.Sprintf("%d satellites, fix type %d", snap.GPS.Satellites, snap.GPS.FixType)}, warnings
}

func checkBattery(limits Limits, snap telemetry.Snapshot) CheckResult {
	if !snap.HasBattery {
		return CheckResult{Message: "no battery telemetry received"}
	}
	if snap.Battery.Percentage < limits.MinBatteryPercent {
		return CheckResult{Message: fmt.Sprintf("battery %.0f%% below minimum %.0f%%",
			snap.Battery.Percentage, limits.MinBatteryPercent)}
	}
	return CheckResult{Passed: true, Message: fmt.Sprintf("battery %.0f%%", snap.Battery.Percentage)}
}
