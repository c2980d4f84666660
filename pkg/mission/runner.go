// Package mission drives user missions over a connected vehicle: either a
// single entry-point function or a named-state machine with cooperative
// background tasks.
package mission

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/openuav/missionkit/pkg/vehicle"
)

// AbortGrace is how long the runner waits for a mission to wind down after
// an abort before giving up on it.
const AbortGrace = 30 * time.Second

// Func is a user mission: it receives the connected vehicle and drives the
// whole flight. Returning nil means mission success.
type Func func(ctx context.Context, v *vehicle.Vehicle) error

// WithRunnerLogger sets the logger for the runner.
func WithRunnerLogger(logger *slog.Logger) func(*Runner) {
	return func(r *Runner) {
		r.logger = logger.With(slog.String("component", "mission-runner"))
	}
}

// WithAbortRTL makes an abort return to launch instead of holding in
// place.
func WithAbortRTL() func(*Runner) {
	return func(r *Runner) {
		r.abortRTL = true
	}
}

// WithAbortGrace overrides the post-abort wait.
func WithAbortGrace(grace time.Duration) func(*Runner) {
	return func(r *Runner) {
		r.grace = grace
	}
}

// Runner owns one mission lifecycle: connect, run the mission, abort on
// ctx cancellation (typically wired to SIGINT/SIGTERM), disconnect.
type Runner struct {
	vehicle  *vehicle.Vehicle
	logger   *slog.Logger
	grace    time.Duration
	abortRTL bool
}

// NewRunner wraps a vehicle for mission execution. The vehicle must not be
// connected yet; the runner owns connect and disconnect.
func NewRunner(v *vehicle.Vehicle, options ...func(*Runner)) *Runner {
	r := Runner{
		vehicle: v,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		grace:   AbortGrace,
	}

	for _, option := range options {
		option(&r)
	}

	return &r
}

// Run connects the vehicle, invokes the mission and disconnects when it
// returns. Cancelling ctx aborts the vehicle and gives the mission a grace
// period to finish; if it does not, Run returns ctx's error anyway.
func (r *Runner) Run(ctx context.Context, fn Func) error {
	if err := r.vehicle.Connect(ctx); err != nil {
		return fmt.Errorf("connecting vehicle: %w", err)
	}
	defer func() {
		if err := r.vehicle.Disconnect(); err != nil {
			r.logger.Error("disconnect failed", slog.String("error", err.Error()))
		}
	}()

	// The mission gets its own context so an abort can let it finish
	// gracefully instead of yanking every in-flight call.
	missionCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- fn(missionCtx, r.vehicle)
	}()

	select {
	case err := <-errCh:
		return err

	case <-ctx.Done():
		r.logger.Warn("mission interrupted, aborting vehicle")
		abortCtx, abortCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := r.vehicle.Abort(abortCtx, r.abortRTL); err != nil {
			r.logger.Error("abort failed", slog.String("error", err.Error()))
		}
		abortCancel()
		cancel()

		select {
		case err := <-errCh:
			if err != nil {
				r.logger.Warn("mission ended after abort", slog.String("error", err.Error()))
			}
		case <-time.After(r.grace):
			r.logger.Error("mission did not stop within grace period",
				slog.Duration("grace", r.grace))
		}
		return ctx.Err()
	}
}

// Run is the entry-point shorthand: connect, run fn, disconnect.
func Run(ctx context.Context, v *vehicle.Vehicle, fn Func, options ...func(*Runner)) error {
	return NewRunner(v, options...).Run(ctx, fn)
}
