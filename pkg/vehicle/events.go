package vehicle

import (
	"sync"
	"time"

	"github.com/openuav/missionkit/pkg/safety"
)

// EventType identifies one kind of vehicle lifecycle event.
type EventType string

const (
	EventConnect         EventType = "connect"
	EventDisconnect      EventType = "disconnect"
	EventArm             EventType = "arm"
	EventDisarm          EventType = "disarm"
	EventTakeoff         EventType = "takeoff"
	EventLand            EventType = "land"
	EventCommandComplete EventType = "command_complete"
	EventAbort           EventType = "abort"
	EventSafetyViolation EventType = "safety_violation"
	EventHeartbeatLost   EventType = "heartbeat_lost"
)

// Event is one vehicle lifecycle notification. Only the fields relevant to
// the type are populated: Result for command_complete, Violation for
// safety_violation, Err for heartbeat_lost and failed commands.
type Event struct {
	Type      EventType
	At        time.Time
	Command   string
	Result    *CommandResult
	Violation *safety.Violation
	Err       error
}

// events is the vehicle's callback registry. Callbacks run on the emitting
// goroutine and must not block.
type events struct {
	mu       sync.Mutex
	handlers map[EventType][]func(Event)
}

func newEvents() *events {
	return &events{handlers: make(map[EventType][]func(Event))}
}

func (e *events) on(t EventType, fn func(Event)) {
	e.mu.Lock()
	e.handlers[t] = append(e.handlers[t], fn)
	e.mu.Unlock()
}

func (e *events) emit(ev Event) {
	ev.At = time.Now()

	e.mu.Lock()
	fns := append([]func(Event){}, e.handlers[ev.Type]...)
	e.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
