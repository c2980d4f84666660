package safety

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openuav/missionkit/pkg/telemetry"
)

type fakeFailsafe struct {
	calls atomic.Int32
}

func (f *fakeFailsafe) ReturnToLaunch(ctx context.Context) error {
	f.calls.Add(1)
	return nil
}

func monitorState(battery float64, sats int) *telemetry.State {
	s := telemetry.NewState()
	s.Apply(func(snap *telemetry.Snapshot) {
		snap.Battery = telemetry.Battery{Percentage: battery, Voltage: 12.0}
		snap.HasBattery = true
		snap.GPS = telemetry.GPSInfo{FixType: 3, Satellites: sats}
		snap.HasGPS = true
		snap.Groundspeed = 1
		snap.HasSpeeds = true
	})
	return s
}

func TestMonitorBatteryLow(t *testing.T) {
	state := monitorState(15, 10) // below min 20, above critical 10

	m := NewMonitor(DefaultLimits(), state, nil, WithMonitorInterval(5*time.Millisecond))

	var low, critical atomic.Int32
	m.OnViolation(BatteryLow, func(Violation) { low.Add(1) })
	m.OnViolation(BatteryCritical, func(Violation) { critical.Add(1) })

	m.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	m.Stop()

	if low.Load() == 0 {
		t.Error("expected BatteryLow to fire")
	}
	if critical.Load() != 0 {
		t.Error("BatteryCritical must not fire at 15%")
	}
}

func TestMonitorMultipleCallbacksPerType(t *testing.T) {
	state := monitorState(15, 10)

	m := NewMonitor(DefaultLimits(), state, nil, WithMonitorInterval(5*time.Millisecond))

	var first, second atomic.Int32
	m.OnViolation(BatteryLow, func(Violation) { first.Add(1) })
	m.OnViolation(BatteryLow, func(Violation) { second.Add(1) })

	m.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	m.Stop()

	if first.Load() == 0 || second.Load() == 0 {
		t.Errorf("every registered callback must fire, got %d and %d", first.Load(), second.Load())
	}
}

func TestMonitorBatteryCriticalTriggersRTL(t *testing.T) {
	state := monitorState(5, 10)
	failsafe := &fakeFailsafe{}

	m := NewMonitor(DefaultLimits(), state, failsafe, WithMonitorInterval(5*time.Millisecond))

	var critical atomic.Int32
	m.OnViolation(BatteryCritical, func(Violation) { critical.Add(1) })

	m.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	m.Stop()

	if critical.Load() == 0 {
		t.Error("expected BatteryCritical to fire")
	}
	if got := failsafe.calls.Load(); got != 1 {
		t.Errorf("RTL failsafe fired %d times, want exactly once", got)
	}
}

func TestMonitorNoFailsafeWhenDisabled(t *testing.T) {
	state := monitorState(5, 10)
	failsafe := &fakeFailsafe{}

	limits := DefaultLimits()
	limits.EnableBatteryFailsafe = false

	m := NewMonitor(limits, state, failsafe, WithMonitorInterval(5*time.Millisecond))
	m.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	m.Stop()

	if failsafe.calls.Load() != 0 {
		t.Error("failsafe must not fire when disabled")
	}
}

func TestMonitorSpeedAndGPS(t *testing.T) {
	state := monitorState(80, 3) // sats below min 6
	state.Apply(func(snap *telemetry.Snapshot) {
		snap.Groundspeed = 12 // above max 10
		snap.ClimbRate = -4   // magnitude above max vertical 3
	})

	m := NewMonitor(DefaultLimits(), state, nil, WithMonitorInterval(5*time.Millisecond))

	var speed, vspeed, gps atomic.Int32
	m.OnViolation(SpeedTooHigh, func(Violation) { speed.Add(1) })
	m.OnViolation(VerticalSpeedTooHigh, func(Violation) { vspeed.Add(1) })
	m.OnViolation(GPSPoor, func(Violation) { gps.Add(1) })

	m.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	m.Stop()

	if speed.Load() == 0 {
		t.Error("expected SpeedTooHigh to fire")
	}
	if vspeed.Load() == 0 {
		t.Error("expected VerticalSpeedTooHigh to fire")
	}
	if gps.Load() == 0 {
		t.Error("expected GPSPoor to fire")
	}
}

func TestMonitorHealthyTelemetryIsQuiet(t *testing.T) {
	state := monitorState(95, 12)

	m := NewMonitor(DefaultLimits(), state, nil, WithMonitorInterval(5*time.Millisecond))

	var fired atomic.Int32
	for _, vt := range []ViolationType{BatteryLow, BatteryCritical, SpeedTooHigh, VerticalSpeedTooHigh, GPSPoor} {
		m.OnViolation(vt, func(Violation) { fired.Add(1) })
	}

	m.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	m.Stop()

	if fired.Load() != 0 {
		t.Errorf("no violations expected on healthy telemetry, got %d", fired.Load())
	}
}
