package mission_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openuav/missionkit/internal/mavlink/mavtest"
	"github.com/openuav/missionkit/pkg/geo"
	"github.com/openuav/missionkit/pkg/mission"
	"github.com/openuav/missionkit/pkg/vehicle"
)

var testOrigin = geo.Coordinate{Lat: 35.7275, Lon: -78.6960}

func newTestVehicle(t *testing.T) *vehicle.Vehicle {
	t.Helper()
	fake := mavtest.NewFake(testOrigin)
	fake.Timescale = 20
	return vehicle.New(fake)
}

func TestEntryPointRun(t *testing.T) {
	v := newTestVehicle(t)

	var sawConnected bool
	err := mission.Run(context.Background(), v, func(ctx context.Context, v *vehicle.Vehicle) error {
		sawConnected = v.Connected()
		return nil
	})
	require.NoError(t, err)
	assert.True(t, sawConnected)
	assert.False(t, v.Connected()) // runner disconnected afterwards
}

func TestRunPropagatesMissionError(t *testing.T) {
	v := newTestVehicle(t)

	boom := errors.New("mission went wrong")
	err := mission.Run(context.Background(), v, func(ctx context.Context, v *vehicle.Vehicle) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, v.Connected())
}

func TestRunAbortsOnCancel(t *testing.T) {
	v := newTestVehicle(t)

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})

	go func() {
		<-started
		cancel()
	}()

	err := mission.Run(ctx, v, func(ctx context.Context, v *vehicle.Vehicle) error {
		close(started)
		<-ctx.Done() // mission winds down when the runner cancels it
		return ctx.Err()
	}, mission.WithAbortGrace(2*time.Second))

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, v.Connected())
}

func TestStateMachineTransitions(t *testing.T) {
	v := newTestVehicle(t)

	var order []string
	sm := mission.NewStateMachine()
	sm.AddState("first", func(ctx context.Context, v *vehicle.Vehicle) (string, error) {
		order = append(order, "first")
		return "second", nil
	}, mission.Initial())
	sm.AddState("second", func(ctx context.Context, v *vehicle.Vehicle) (string, error) {
		order = append(order, "second")
		return mission.Finished, nil
	})

	require.NoError(t, mission.Run(context.Background(), v, sm.Run))
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestStateMachineReentry(t *testing.T) {
	v := newTestVehicle(t)

	var visits int
	sm := mission.NewStateMachine()
	sm.AddState("again", func(ctx context.Context, v *vehicle.Vehicle) (string, error) {
		visits++
		if visits < 3 {
			return "again", nil
		}
		return mission.Finished, nil
	}, mission.Initial())

	require.NoError(t, mission.Run(context.Background(), v, sm.Run))
	assert.Equal(t, 3, visits)
}

func TestStateMachineUnknownState(t *testing.T) {
	v := newTestVehicle(t)

	sm := mission.NewStateMachine()
	sm.AddState("start", func(ctx context.Context, v *vehicle.Vehicle) (string, error) {
		return "nowhere", nil
	}, mission.Initial())

	err := mission.Run(context.Background(), v, sm.Run)
	assert.ErrorIs(t, err, mission.ErrInvalidState)
}

func TestStateMachineNoInitialState(t *testing.T) {
	v := newTestVehicle(t)

	sm := mission.NewStateMachine()
	sm.AddState("lonely", func(ctx context.Context, v *vehicle.Vehicle) (string, error) {
		return mission.Finished, nil
	})

	assert.Error(t, mission.Run(context.Background(), v, sm.Run))
}

func TestTimedState(t *testing.T) {
	v := newTestVehicle(t)

	var bodyRuns int
	sm := mission.NewStateMachine()
	sm.AddState("hold", func(ctx context.Context, v *vehicle.Vehicle) (string, error) {
		bodyRuns++
		return "end", nil
	}, mission.Initial(), mission.Timed(300*time.Millisecond))
	sm.AddState("end", func(ctx context.Context, v *vehicle.Vehicle) (string, error) {
		return mission.Finished, nil
	})

	start := time.Now()
	require.NoError(t, mission.Run(context.Background(), v, sm.Run))

	// The body runs once; the transition waits out the duration.
	assert.Equal(t, 1, bodyRuns)
	assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
}

func TestTimedLoopState(t *testing.T) {
	v := newTestVehicle(t)

	var bodyRuns int
	sm := mission.NewStateMachine()
	sm.AddState("sample", func(ctx context.Context, v *vehicle.Vehicle) (string, error) {
		bodyRuns++
		time.Sleep(50 * time.Millisecond)
		return "end", nil
	}, mission.Initial(), mission.Timed(300*time.Millisecond), mission.Loop())
	sm.AddState("end", func(ctx context.Context, v *vehicle.Vehicle) (string, error) {
		return mission.Finished, nil
	})

	require.NoError(t, mission.Run(context.Background(), v, sm.Run))
	assert.Greater(t, bodyRuns, 2)
}

func TestBackgroundTaskErrorTerminatesMission(t *testing.T) {
	v := newTestVehicle(t)

	boom := errors.New("sensor died")
	var stateCancelled atomic.Bool

	sm := mission.NewStateMachine()
	sm.AddBackground("sensor", func(ctx context.Context, v *vehicle.Vehicle) error {
		time.Sleep(50 * time.Millisecond)
		return boom
	})
	sm.AddState("wait", func(ctx context.Context, v *vehicle.Vehicle) (string, error) {
		select {
		case <-ctx.Done():
			stateCancelled.Store(true)
			return "", ctx.Err()
		case <-time.After(5 * time.Second):
			return mission.Finished, nil
		}
	}, mission.Initial())

	err := mission.Run(context.Background(), v, sm.Run)
	assert.ErrorIs(t, err, boom)
	assert.True(t, stateCancelled.Load())
}

func TestInitHooksRunBeforeFirstState(t *testing.T) {
	v := newTestVehicle(t)

	var order []string
	sm := mission.NewStateMachine()
	sm.OnInit(func(ctx context.Context, v *vehicle.Vehicle) error {
		order = append(order, "init")
		return nil
	})
	sm.AddState("start", func(ctx context.Context, v *vehicle.Vehicle) (string, error) {
		order = append(order, "start")
		return mission.Finished, nil
	}, mission.Initial())

	require.NoError(t, mission.Run(context.Background(), v, sm.Run))
	assert.Equal(t, []string{"init", "start"}, order)
}

func TestInitHookFailureStopsMission(t *testing.T) {
	v := newTestVehicle(t)

	boom := errors.New("bad calibration")
	sm := mission.NewStateMachine()
	sm.OnInit(func(ctx context.Context, v *vehicle.Vehicle) error { return boom })
	sm.AddState("never", func(ctx context.Context, v *vehicle.Vehicle) (string, error) {
		t.Fatal("state ran despite failed init hook")
		return mission.Finished, nil
	}, mission.Initial())

	err := mission.Run(context.Background(), v, sm.Run)
	assert.ErrorIs(t, err, boom)
}
