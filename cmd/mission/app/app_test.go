package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openuav/missionkit/internal/mavlink/mavtest"
	"github.com/openuav/missionkit/pkg/geo"
	"github.com/openuav/missionkit/pkg/plan"
	"github.com/openuav/missionkit/pkg/vehicle"
)

var testOrigin = geo.Coordinate{Lat: 35.7275, Lon: -78.6960, Alt: 0}

func newTestVehicle(t *testing.T) *vehicle.Vehicle {
	t.Helper()

	fake := mavtest.NewFake(testOrigin)
	fake.Timescale = 40

	v := vehicle.New(fake)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, v.Connect(ctx))
	t.Cleanup(func() { v.Disconnect() })

	return v
}

func navItem(command int, offset geo.VectorNED) plan.Item {
	return plan.Item{
		Command: command,
		Waypoint: geo.Waypoint{
			Coordinate:       testOrigin.OffsetBy(offset),
			AcceptanceRadius: geo.DefaultAcceptanceRadius,
		},
	}
}

func TestFlyExecutesPlan(t *testing.T) {
	v := newTestVehicle(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	p := &plan.Plan{Items: []plan.Item{
		navItem(plan.CommandTakeoff, geo.VectorNED{Down: -10}),
		navItem(plan.CommandWaypoint, geo.VectorNED{North: 30, Down: -10}),
		{Command: plan.CommandReturnToLaunch},
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, fly(ctx, v, p, VehicleDrone, logger))

	snap := v.Telemetry().Snapshot()
	assert.False(t, snap.Armed)
	require.True(t, snap.HasHome)
	assert.Less(t, snap.Position.GroundDistanceTo(snap.Home), 3.0)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, ExitOK},
		{"plain failure", errors.New("boom"), ExitFailure},
		{"connection", &vehicle.ConnectionError{Err: errors.New("refused")}, ExitConnection},
		{"heartbeat wrapped", fmt.Errorf("mission: %w", &vehicle.HeartbeatLostError{Gap: time.Second}), ExitConnection},
		{"geofence down", &vehicle.GeofenceUnavailableError{Err: errors.New("no reply")}, ExitConnection},
		{"abort", &vehicle.AbortError{Command: "goto"}, ExitSafety},
		{"preflight", &vehicle.PreflightCheckError{}, ExitSafety},
		{"interrupted", fmt.Errorf("mission: %w", context.Canceled), ExitInterrupted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}
