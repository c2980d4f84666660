// Package app runs a mission plan against a vehicle: it connects over
// MAVLink, flies the plan's items in order, records telemetry and command
// results to a flight log and prints a post-flight summary.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/openuav/missionkit/internal/flightlog"
	"github.com/openuav/missionkit/internal/mavlink"
	"github.com/openuav/missionkit/pkg/geofence"
	"github.com/openuav/missionkit/pkg/mission"
	"github.com/openuav/missionkit/pkg/plan"
	"github.com/openuav/missionkit/pkg/safety"
	"github.com/openuav/missionkit/pkg/vehicle"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitConnection  = 2
	ExitSafety      = 3
	ExitInterrupted = 130
)

// ExitCode maps a mission error to the process exit code. Connection
// problems, safety stops and operator interrupts each get their own code
// so wrapping scripts can tell them apart.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, context.Canceled) {
		return ExitInterrupted
	}

	var (
		connErr    *vehicle.ConnectionError
		connTimout *vehicle.ConnectionTimeoutError
		hbErr      *vehicle.HeartbeatLostError
		fenceDown  *vehicle.GeofenceUnavailableError
	)
	if errors.As(err, &connErr) || errors.As(err, &connTimout) ||
		errors.As(err, &hbErr) || errors.As(err, &fenceDown) {
		return ExitConnection
	}

	var (
		abortErr *vehicle.AbortError
		fenceErr *vehicle.GeofenceViolationError
		checkErr *vehicle.PreflightCheckError
		speedErr *vehicle.SpeedLimitExceededError
		paramErr *vehicle.ParameterValidationError
	)
	if errors.As(err, &abortErr) || errors.As(err, &fenceErr) ||
		errors.As(err, &checkErr) || errors.As(err, &speedErr) ||
		errors.As(err, &paramErr) {
		return ExitSafety
	}

	return ExitFailure
}

// Run executes the configured mission plan and blocks until it finishes,
// fails or ctx is cancelled. Cancellation aborts the vehicle before Run
// returns.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	p, err := plan.Read(config.PlanPath)
	if err != nil {
		return err
	}
	logger.Info("mission plan loaded",
		slog.String("path", config.PlanPath),
		slog.Int("items", len(p.Items)))

	limits := safety.DefaultLimits()
	if config.SafetyPath != "" {
		if limits, err = safety.LoadLimits(config.SafetyPath); err != nil {
			return err
		}
	}

	options := []func(*vehicle.Vehicle){
		vehicle.WithLogger(logger),
		vehicle.WithLimits(limits),
	}

	if config.GeofenceEndpoint != "" {
		fence := geofence.NewClient(config.GeofenceEndpoint, geofence.WithClientLogger(logger))
		defer func() {
			if err := fence.Close(); err != nil {
				logger.Warn("closing geofence client", slog.String("error", err.Error()))
			}
		}()

		if err := fence.Status(ctx); err != nil {
			return &vehicle.GeofenceUnavailableError{Err: err}
		}
		logger.Info("geofence validator online", slog.String("endpoint", config.GeofenceEndpoint))
		options = append(options, vehicle.WithFence(fence))
	}

	node := mavlink.NewNode(config.Connection, mavlink.WithLogger(logger))
	v := vehicle.New(node, options...)

	var (
		recorder  *flightlog.Recorder
		sessionID int64
		dbPath    string
	)
	if config.LogDir != "" {
		dbPath = filepath.Join(config.LogDir,
			fmt.Sprintf("flight_%s.sqlite", time.Now().UTC().Format("20060102_150405")))
		recorder = flightlog.New(dbPath)
		defer func() {
			if err := recorder.Close(); err != nil {
				logger.Warn("closing flight log", slog.String("error", err.Error()))
			}
		}()

		if sessionID, err = recorder.CreateSession(ctx, config.Connection, limits); err != nil {
			return fmt.Errorf("creating flight log session: %w", err)
		}
		logger.Info("recording flight log",
			slog.String("path", dbPath),
			slog.Int64("session", sessionID))

		v.OnEvent(vehicle.EventCommandComplete, func(e vehicle.Event) {
			if e.Result == nil {
				return
			}
			recordCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := recorder.RecordResult(recordCtx, sessionID, *e.Result); err != nil {
				logger.Warn("recording command result", slog.String("error", err.Error()))
			}
		})
	}

	// The telemetry sampler runs for the whole mission and is stopped,
	// and the recorder drained, before the summary is read back.
	samplerCtx, stopSampler := context.WithCancel(context.Background())
	var samplerWG sync.WaitGroup
	if recorder != nil {
		samplerWG.Add(1)
		go func() {
			defer samplerWG.Done()
			sample(samplerCtx, v, recorder, sessionID, config.SampleRate, logger)
		}()
	}

	runnerOptions := []func(*mission.Runner){mission.WithRunnerLogger(logger)}
	if config.VehicleType == VehicleDrone {
		runnerOptions = append(runnerOptions, mission.WithAbortRTL())
	}

	started := time.Now()
	missionErr := mission.Run(ctx, v, func(ctx context.Context, v *vehicle.Vehicle) error {
		return fly(ctx, v, p, config.VehicleType, logger)
	}, runnerOptions...)

	stopSampler()
	samplerWG.Wait()

	if recorder != nil {
		logSummary(logger, recorder, sessionID, dbPath, time.Since(started))
	}

	return missionErr
}

// sample records telemetry snapshots at the configured rate until ctx is
// cancelled.
func sample(ctx context.Context, v *vehicle.Vehicle, recorder *flightlog.Recorder, sessionID int64, rate float64, logger *slog.Logger) {
	ticker := time.NewTicker(time.Duration(float64(time.Second) / rate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !v.Connected() {
				continue
			}
			if err := recorder.RecordSnapshot(ctx, sessionID, v.Telemetry().Snapshot()); err != nil {
				logger.Warn("recording telemetry", slog.String("error", err.Error()))
			}
		}
	}
}

// fly executes the plan items in order: takeoff, waypoints with optional
// hold times, return to launch. Rovers skip takeoff items.
func fly(ctx context.Context, v *vehicle.Vehicle, p *plan.Plan, vehicleType string, logger *slog.Logger) error {
	if err := v.Arm(ctx); err != nil {
		return err
	}

	// run collapses the issue-then-wait pattern; its signature matches the
	// command methods so their results feed it directly.
	run := func(h *vehicle.Handle, err error) error {
		if err != nil {
			return err
		}
		_, err = h.Wait(ctx)
		return err
	}

	for i, item := range p.Items {
		switch item.Command {
		case plan.CommandTakeoff:
			if vehicleType == VehicleRover {
				continue
			}
			logger.Info("taking off", slog.Float64("altitude", item.Waypoint.Coordinate.Alt))
			if err := run(v.Takeoff(ctx, item.Waypoint.Coordinate.Alt)); err != nil {
				return err
			}

		case plan.CommandWaypoint:
			wp := item.Waypoint
			options := []vehicle.CommandOption{vehicle.WithTolerance(wp.AcceptanceRadius)}
			if wp.Speed > 0 {
				options = append(options, vehicle.WithSpeed(wp.Speed))
			}

			logger.Info("flying to waypoint",
				slog.Int("item", i),
				slog.String("target", wp.Coordinate.String()))
			if err := run(v.Goto(ctx, wp.Coordinate, options...)); err != nil {
				return err
			}

			if wp.HoldTime > 0 {
				logger.Info("holding at waypoint", slog.Duration("hold", wp.HoldTime))
				if err := v.Hold(ctx); err != nil {
					return err
				}
				select {
				case <-time.After(wp.HoldTime):
				case <-ctx.Done():
					return ctx.Err()
				}
			}

		case plan.CommandReturnToLaunch:
			logger.Info("returning to launch")
			if err := run(v.ReturnToLaunch(ctx)); err != nil {
				return err
			}
		}
	}

	return nil
}
