package mission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/openuav/missionkit/pkg/vehicle"
)

// Finished is the terminal sentinel a state handler returns to end the
// mission successfully.
const Finished = "__finished__"

// ErrInvalidState is returned when a handler names a state that was never
// added.
var ErrInvalidState = errors.New("unknown mission state")

// StateFunc handles one state: do work, return the name of the next state
// or Finished. Returning the current state's own name re-enters it
// immediately.
type StateFunc func(ctx context.Context, v *vehicle.Vehicle) (next string, err error)

// TaskFunc is a background task or init hook.
type TaskFunc func(ctx context.Context, v *vehicle.Vehicle) error

type state struct {
	fn       StateFunc
	duration time.Duration
	loop     bool
	initial  bool
}

// StateOption configures one state at registration.
type StateOption func(*state)

// Initial marks the state the machine starts in. Exactly one state must
// carry it.
func Initial() StateOption {
	return func(s *state) { s.initial = true }
}

// Timed keeps the machine in the state for at least d before following the
// declared transition.
func Timed(d time.Duration) StateOption {
	return func(s *state) { s.duration = d }
}

// Loop re-invokes a timed state's handler until its duration elapses,
// instead of running it once and waiting out the remainder.
func Loop() StateOption {
	return func(s *state) { s.loop = true }
}

// WithStateMachineLogger sets the logger for the machine.
func WithStateMachineLogger(logger *slog.Logger) func(*StateMachine) {
	return func(m *StateMachine) {
		m.logger = logger.With(slog.String("component", "state-machine"))
	}
}

// StateMachine runs named states against a vehicle, with init hooks before
// the first state and background tasks alongside. A background task error
// cancels the whole mission.
type StateMachine struct {
	logger *slog.Logger

	states     map[string]*state
	initial    string
	initHooks  []TaskFunc
	background []namedTask
}

type namedTask struct {
	name string
	fn   TaskFunc
}

// NewStateMachine returns an empty machine.
func NewStateMachine(options ...func(*StateMachine)) *StateMachine {
	m := StateMachine{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		states: make(map[string]*state),
	}

	for _, option := range options {
		option(&m)
	}

	return &m
}

// AddState registers a named state.
func (m *StateMachine) AddState(name string, fn StateFunc, options ...StateOption) {
	s := state{fn: fn}
	for _, option := range options {
		option(&s)
	}
	m.states[name] = &s
	if s.initial {
		m.initial = name
	}
}

// OnInit registers a hook run once before the first state, on the machine's
// goroutine.
func (m *StateMachine) OnInit(fn TaskFunc) {
	m.initHooks = append(m.initHooks, fn)
}

// AddBackground registers a task run concurrently with the state machine
// for the whole mission. An error from it terminates the mission.
func (m *StateMachine) AddBackground(name string, fn TaskFunc) {
	m.background = append(m.background, namedTask{name: name, fn: fn})
}

// Run drives the machine until a state returns Finished, a handler or
// background task fails, or ctx is cancelled. It satisfies mission.Func.
func (m *StateMachine) Run(ctx context.Context, v *vehicle.Vehicle) error {
	if m.initial == "" {
		return errors.New("no initial state configured")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Background tasks report the first error and cancel the mission.
	var wg sync.WaitGroup
	bgErr := make(chan error, len(m.background))
	for _, task := range m.background {
		task := task
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := task.fn(ctx, v); err != nil && !errors.Is(err, context.Canceled) {
				m.logger.Error("background task failed",
					slog.String("task", task.name),
					slog.String("error", err.Error()))
				bgErr <- fmt.Errorf("background task %s: %w", task.name, err)
				cancel()
			}
		}()
	}
	defer wg.Wait()

	for _, hook := range m.initHooks {
		if err := hook(ctx, v); err != nil {
			return fmt.Errorf("init hook: %w", err)
		}
	}

	current := m.initial
	for {
		select {
		case err := <-bgErr:
			return err
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		s, ok := m.states[current]
		if !ok {
			return fmt.Errorf("%w: %q", ErrInvalidState, current)
		}

		m.logger.Info("entering state", slog.String("state", current))
		next, err := m.runState(ctx, v, s)
		if err != nil {
			// Prefer the background failure when it triggered the
			// cancellation.
			select {
			case bgErr := <-bgErr:
				return bgErr
			default:
			}
			return fmt.Errorf("state %s: %w", current, err)
		}

		if next == Finished {
			m.logger.Info("mission finished", slog.String("state", current))
			return nil
		}
		current = next
	}
}

// runState executes one state, honoring timed and loop semantics: a timed
// state holds the machine for at least its duration, deferring the
// declared transition.
func (m *StateMachine) runState(ctx context.Context, v *vehicle.Vehicle, s *state) (string, error) {
	if s.duration <= 0 {
		return s.fn(ctx, v)
	}

	deadline := time.Now().Add(s.duration)

	next, err := s.fn(ctx, v)
	if err != nil {
		return "", err
	}

	for s.loop && time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if next, err = s.fn(ctx, v); err != nil {
			return "", err
		}
	}

	// Wait out the remainder for non-looping timed states.
	if remaining := time.Until(deadline); remaining > 0 {
		timer := time.NewTimer(remaining)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return next, nil
}
