package core

import (
	"sync"

	"github.com/spaghettifunk/inflight/engine/containers"
)

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01

	// Keyboard key pressed.
	/* Context usage:
	 * key := context.Data.(*KeyEvent)
	 */
	EVENT_CODE_KEY_PRESSED SystemEventCode = 0x02

	// Resized/resolution changed from the OS.
	/* Context usage:
	 * se := context.Data.(*SystemEvent)
	 * se.WindowWidth, se.WindowHeight
	 */
	EVENT_CODE_RESIZED SystemEventCode = 0x08

	// Display scale factor changed. Carries the new physical size too.
	/* Context usage:
	 * se := context.Data.(*SystemEvent)
	 * se.Scale, se.WindowWidth, se.WindowHeight
	 */
	EVENT_CODE_SCALE_CHANGED SystemEventCode = 0x09

	// The window asks for a new frame.
	EVENT_CODE_REDRAW_REQUESTED SystemEventCode = 0x0A

	// A shader source or binary changed on disk.
	/* Context usage:
	 * path := context.Data.(string)
	 */
	EVENT_CODE_SHADERS_CHANGED SystemEventCode = 0x0B

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

type EventContext struct {
	Type SystemEventCode
	Data interface{}
}

type SystemEvent struct {
	WindowWidth  uint32
	WindowHeight uint32
	Scale        float32
}

type KeyEvent struct {
	KeyCode int
}

// Should return true if handled.
type FnOnEvent func(context EventContext) bool

// EventSystem queues events posted from any goroutine and dispatches them on
// the goroutine that calls Dispatch.
type EventSystem struct {
	mu         sync.Mutex
	queue      *containers.RingQueue[EventContext]
	registered map[SystemEventCode][]FnOnEvent
}

func NewEventSystem(capacity int) *EventSystem {
	return &EventSystem{
		queue:      containers.NewRingQueue[EventContext](capacity),
		registered: make(map[SystemEventCode][]FnOnEvent),
	}
}

// Register adds a listener for code. Listeners run in registration order.
func (es *EventSystem) Register(code SystemEventCode, onEvent FnOnEvent) {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.registered[code] = append(es.registered[code], onEvent)
}

// Post queues an event for the next Dispatch. Safe for concurrent use.
func (es *EventSystem) Post(context EventContext) error {
	es.mu.Lock()
	defer es.mu.Unlock()
	if err := es.queue.Enqueue(context); err != nil {
		return ErrQueueFull
	}
	return nil
}

/**
 * Fires an event to listeners of the given code. If an event handler returns
 * TRUE, the event is considered handled and is not passed on to any more listeners.
 */
func (es *EventSystem) Fire(context EventContext) bool {
	es.mu.Lock()
	listeners := es.registered[context.Type]
	es.mu.Unlock()

	for _, onEvent := range listeners {
		if onEvent(context) {
			// Message has been handled, do not send to other listeners.
			return true
		}
	}
	return false
}

// Dispatch fires every queued event and returns how many were processed.
// Events posted by listeners during dispatch wait for the next call.
func (es *EventSystem) Dispatch() int {
	es.mu.Lock()
	pending := es.queue.Len()
	es.mu.Unlock()

	for i := 0; i < pending; i++ {
		es.mu.Lock()
		context, err := es.queue.Dequeue()
		es.mu.Unlock()
		if err != nil {
			return i
		}
		es.Fire(context)
	}
	return pending
}

func (es *EventSystem) Shutdown() {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.registered = make(map[SystemEventCode][]FnOnEvent)
	for !es.queue.IsEmpty() {
		_, _ = es.queue.Dequeue()
	}
}
