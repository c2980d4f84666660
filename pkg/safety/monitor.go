package safety

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/openuav/missionkit/pkg/telemetry"
)

// MonitorInterval is how often the monitor samples telemetry.
const MonitorInterval = 500 * time.Millisecond

// ViolationType identifies a class of runtime safety violation.
type ViolationType string

const (
	BatteryLow           ViolationType = "battery_low"
	BatteryCritical      ViolationType = "battery_critical"
	SpeedTooHigh         ViolationType = "speed_too_high"
	VerticalSpeedTooHigh ViolationType = "vertical_speed_too_high"
	GPSPoor              ViolationType = "gps_poor"
)

// Violation is one observed limit breach.
type Violation struct {
	Type    ViolationType
	Message string
	Value   float64
	Limit   float64
	At      time.Time
}

// Failsafe is what the monitor invokes when a critical violation demands
// action. The vehicle control core implements it.
type Failsafe interface {
	ReturnToLaunch(ctx context.Context) error
}

// WithMonitorLogger sets the logger for the monitor.
func WithMonitorLogger(logger *slog.Logger) func(*Monitor) {
	return func(m *Monitor) {
		m.logger = logger.With(slog.String("component", "safety-monitor"))
	}
}

// WithMonitorInterval overrides the sampling interval.
func WithMonitorInterval(interval time.Duration) func(*Monitor) {
	return func(m *Monitor) {
		m.interval = interval
	}
}

// Monitor samples telemetry on a fixed cycle and dispatches violations to
// registered callbacks. At most one callback per violation type fires per
// cycle. The monitor only reads telemetry; the one action it can take is
// the battery-critical RTL failsafe.
type Monitor struct {
	limits   Limits
	reader   telemetry.Reader
	failsafe Failsafe
	interval time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	callbacks map[ViolationType][]func(Violation)

	cancel context.CancelFunc
	done   chan struct{}

	rtlTriggered bool
}

// NewMonitor creates a monitor over the given telemetry reader. failsafe
// may be nil when no battery failsafe action is wanted.
func NewMonitor(limits Limits, reader telemetry.Reader, failsafe Failsafe, options ...func(*Monitor)) *Monitor {
	m := Monitor{
		limits:    limits,
		reader:    reader,
		failsafe:  failsafe,
		interval:  MonitorInterval,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		callbacks: make(map[ViolationType][]func(Violation)),
	}

	for _, option := range options {
		option(&m)
	}

	return &m
}

// OnViolation registers a callback for one violation type.
func (m *Monitor) OnViolation(t ViolationType, cb func(Violation)) {
	m.mu.Lock()
	m.callbacks[t] = append(m.callbacks[t], cb)
	m.mu.Unlock()
}

// Start launches the monitor loop. Call Stop to end it.
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.check(ctx)
			}
		}
	}()
}

// Stop ends the monitor loop and waits for it to exit.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
	m.cancel = nil
}

func (m *Monitor) check(ctx context.Context) {
	snap := m.reader.Snapshot()
	fired := make(map[ViolationType]bool)

	if snap.HasBattery {
		pct := snap.Battery.Percentage
		if pct < m.limits.CriticalBatteryPercent {
			m.emit(fired, Violation{
				Type:    BatteryCritical,
				Message: "battery critically low",
				Value:   pct,
				Limit:   m.limits.CriticalBatteryPercent,
			})
			if m.limits.EnableBatteryFailsafe && m.failsafe != nil && !m.rtlTriggered {
				m.rtlTriggered = true
				m.logger.Warn("battery critical, triggering return to launch",
					slog.Float64("percentage", pct))
				go func() {
					if err := m.failsafe.ReturnToLaunch(ctx); err != nil {
						m.logger.Error("battery failsafe RTL failed", slog.String("error", err.Error()))
					}
				}()
			}
		} else if pct < m.limits.MinBatteryPercent {
			m.emit(fired, Violation{
				Type:    BatteryLow,
				Message: "battery low",
				Value:   pct,
				Limit:   m.limits.MinBatteryPercent,
			})
		}
	}

	if snap.HasSpeeds && m.limits.EnableSpeedLimits {
		if snap.Groundspeed > m.limits.MaxSpeed {
			m.emit(fired, Violation{
				Type:    SpeedTooHigh,
				Message: "groundspeed above limit",
				Value:   snap.Groundspeed,
				Limit:   m.limits.MaxSpeed,
			})
		}
		if v := math.Abs(snap.ClimbRate); v > m.limits.MaxVerticalSpeed {
			m.emit(fired, Violation{
				Type:    VerticalSpeedTooHigh,
				Message: "vertical speed above limit",
				Value:   v,
				Limit:   m.limits.MaxVerticalSpeed,
			})
		}
	}

	if snap.HasGPS && snap.GPS.Satellites < m.limits.MinSatellites {
		m.emit(fired, Violation{
			Type:    GPSPoor,
			Message: "satellite count below minimum",
			Value:   float64(snap.GPS.Satellites),
			Limit:   float64(m.limits.MinSatellites),
		})
	}
}

// emit dispatches a violation to its callbacks, at most once per type per
// cycle.
func (m *Monitor) emit(fired map[ViolationType]bool, v Violation) {
	if fired[v.Type] {
		return
	}
	fired[v.Type] = true
	v.At = time.Now()

	m.logger.Warn(v.Message,
		slog.String("type", string(v.Type)),
		slog.Float64("value", v.Value),
		slog.Float64("limit", v.Limit))

	m.mu.Lock()
	cbs := append([]func(Violation){}, m.callbacks[v.Type]...)
	m.mu.Unlock()

	for _, cb := range cbs {
		cb(v)
	}
}
