package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openuav/missionkit/pkg/telemetry"
)

func healthySnapshot() telemetry.Snapshot {
	return telemetry.Snapshot{
		HasPosition: true,
		Battery:     telemetry.Battery{Percentage: 80, Voltage: 12.4},
		HasBattery:  true,
		GPS:         telemetry.GPSInfo{FixType: 3, Satellites: 11},
		HasGPS:      true,
	}
}

func TestPreflightAllPass(t *testing.T) {
	result := RunPreflight(DefaultLimits(), healthySnapshot(), true)

	assert.True(t, result.OK())
	assert.Empty(t, result.FailedChecks())
	require.Contains(t, result.Checks, CheckBattery)
	assert.True(t, result.Checks[CheckBattery].Passed)
}

func TestPreflightBatteryBelowMinimum(t *testing.T) {
	limits := DefaultLimits()
	limits.MinBatteryPercent = 95

	snap := healthySnapshot() // battery at 80%
	result := RunPreflight(limits, snap, true)

	assert.False(t, result.OK())
	assert.Contains(t, result.FailedChecks(), CheckBattery)
}

func TestPreflightNoFix(t *testing.T) {
	snap := healthySnapshot()
	snap.GPS.FixType = 1

	result := RunPreflight(DefaultLimits(), snap, true)
	assert.Contains(t, result.FailedChecks(), CheckGPS)
}

func TestPreflightGPSNotRequired(t *testing.T) {
	limits := DefaultLimits()
	limits.RequireGPSFix = false

	snap := healthySnapshot()
	snap.HasGPS = false

	result := RunPreflight(limits, snap, true)
	assert.True(t, result.Checks[CheckGPS].Passed)
	assert.NotEmpty(t, result.Warnings)
}

func TestPreflightDisconnected(t *testing.T) {
	result := RunPreflight(DefaultLimits(), healthySnapshot(), false)
	assert.Contains(t, result.FailedChecks(), CheckConnection)
}

func TestPreflightNoTelemetry(t *testing.T) {
	result := RunPreflight(DefaultLimits(), telemetry.Snapshot{}, true)

	assert.False(t, result.OK())
	failed := result.FailedChecks()
	assert.Contains(t, failed, CheckConnection)
	assert.Contains(t, failed, CheckBattery)
	assert.Contains(t, failed, CheckGPS)
}

func TestPreflightInconsistentConfig(t *testing.T) {
	limits := DefaultLimits()
	limits.CriticalBatteryPercent = 50
	limits.MinBatteryPercent = 20

	result := RunPreflight(limits, healthySnapshot(), true)
	assert.Contains(t, result.FailedChecks(), CheckConfig)
}
