package vehicle

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a command handle.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
	StatusCancelled
	StatusTimedOut
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	case StatusTimedOut:
		return "timed_out"
	}
	return "unknown"
}

// Terminal reports whether s is an absorbing state.
func (s Status) Terminal() bool { return s >= StatusCompleted }

// CommandResult is the resolved value of a finished command.
type CommandResult struct {
	ID       uuid.UUID
	Command  string
	Status   Status
	Duration time.Duration
	Details  map[string]any
	Err      error
}

// Handle represents one outstanding vehicle command. The control core owns
// the driving goroutine; user code observes progress, waits for completion
// and may request cancellation. Once terminal, the status never changes.
type Handle struct {
	id      uuid.UUID
	command string
	timeout time.Duration

	mu       sync.Mutex
	status   Status
	err      error
	progress map[string]any
	started  time.Time
	created  time.Time
	finished time.Time

	cancelRequested  bool
	execCancelAction bool

	done     chan struct{} // closed on terminal transition
	cancelCh chan struct{} // closed on first cancel request

	// onFinish runs once after the terminal transition, outside the lock.
	// The vehicle uses it to release the active slot and emit events.
	onFinish func(*Handle)
}

func newHandle(command string, timeout time.Duration) *Handle {
	return &Handle{
		id:       uuid.New(),
		command:  command,
		timeout:  timeout,
		progress: make(map[string]any),
		created:  time.Now(),
		done:     make(chan struct{}),
		cancelCh: make(chan struct{}),
	}
}

// ID returns the handle's unique identifier.
func (h *Handle) ID() uuid.UUID { return h.id }

// Command returns the command name, e.g. "goto".
func (h *Handle) Command() string { return h.command }

// Status returns the current lifecycle state.
func (h *Handle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// IsRunning reports whether the driver is active.
func (h *Handle) IsRunning() bool { return h.Status() == StatusRunning }

// IsComplete reports whether the handle reached a terminal state.
func (h *Handle) IsComplete() bool { return h.Status().Terminal() }

// Succeeded reports whether the command completed normally.
func (h *Handle) Succeeded() bool { return h.Status() == StatusCompleted }

// WasCancelled reports whether the handle ended by cancellation.
func (h *Handle) WasCancelled() bool { return h.Status() == StatusCancelled }

// TimedOut reports whether the handle ended by timeout.
func (h *Handle) TimedOut() bool { return h.Status() == StatusTimedOut }

// Err returns the terminal error, nil unless the handle failed, timed out
// or was cancelled.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Elapsed returns how long the command has been running, frozen once
// terminal.
func (h *Handle) Elapsed() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()

	start := h.started
	if start.IsZero() {
		start = h.created
	}
	if h.status.Terminal() {
		return h.finished.Sub(start)
	}
	return time.Since(start)
}

// TimeRemaining returns how long until the command times out, zero when no
// timeout is set or it has already passed.
func (h *Handle) TimeRemaining() time.Duration {
	if h.timeout <= 0 {
		return 0
	}
	if remaining := h.timeout - h.Elapsed(); remaining > 0 {
		return remaining
	}
	return 0
}

// Progress returns a copy of the command-specific progress map.
func (h *Handle) Progress() map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(map[string]any, len(h.progress))
	for k, v := range h.progress {
		out[k] = v
	}
	return out
}

// Done returns a channel closed when the handle becomes terminal.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the handle is terminal or ctx expires, and returns the
// command result. On ctx expiry the command keeps running; only Cancel
// stops it.
func (h *Handle) Wait(ctx context.Context) (CommandResult, error) {
	select {
	case <-h.done:
	case <-ctx.Done():
		return CommandResult{}, ctx.Err()
	}

	result := h.result()
	return result, result.Err
}

// Cancel requests cancellation. It returns false when the handle is already
// terminal, true otherwise; repeated calls are harmless. When
// executeCancelAction is true the driver runs the command's declared cancel
// action (navigation commands hold in place) before finishing.
func (h *Handle) Cancel(executeCancelAction bool) bool {
	h.mu.Lock()
	if h.status.Terminal() {
		h.mu.Unlock()
		return false
	}
	first := !h.cancelRequested
	h.cancelRequested = true
	if first {
		h.execCancelAction = executeCancelAction
	}
	h.mu.Unlock()

	if first {
		close(h.cancelCh)
	}
	return true
}

func (h *Handle) result() CommandResult {
	h.mu.Lock()
	defer h.mu.Unlock()

	details := make(map[string]any, len(h.progress))
	for k, v := range h.progress {
		details[k] = v
	}

	duration := h.finished.Sub(h.started)
	if h.started.IsZero() {
		duration = 0
	}
	return CommandResult{
		ID:       h.id,
		Command:  h.command,
		Status:   h.status,
		Duration: duration,
		Details:  details,
		Err:      h.err,
	}
}

// --- driver side ---

// markRunning moves Pending to Running when the first setpoint goes out.
func (h *Handle) markRunning() {
	h.mu.Lock()
	if h.status == StatusPending {
		h.status = StatusRunning
		h.started = time.Now()
	}
	h.mu.Unlock()
}

// setProgress replaces the progress map. Updates are ordered by the single
// driving goroutine.
func (h *Handle) setProgress(p map[string]any) {
	h.mu.Lock()
	if !h.status.Terminal() {
		h.progress = p
	}
	h.mu.Unlock()
}

// finish performs the terminal transition. The first call wins; later
// calls are ignored.
func (h *Handle) finish(status Status, err error) {
	h.mu.Lock()
	if h.status.Terminal() {
		h.mu.Unlock()
		return
	}
	h.status = status
	h.err = err
	h.finished = time.Now()
	if h.started.IsZero() {
		h.started = h.finished
	}
	onFinish := h.onFinish
	h.mu.Unlock()

	close(h.done)
	if onFinish != nil {
		onFinish(h)
	}
}

// cancelling reports whether cancellation has been requested, and whether
// the cancel action should run.
func (h *Handle) cancelling() (requested, execAction bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelRequested, h.execCancelAction
}
