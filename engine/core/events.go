package core

import (
	"sync"

	"github.com/spaghettifunk/anima-viewer/engine/containers"
)

// System event codes delivered by the windowing layer and the asset watcher.
type SystemEventCode int

const (
	// Window close requested.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = iota + 1
	// Keyboard key pressed. Uses Key.
	EVENT_CODE_KEY_PRESSED
	// Keyboard key released. Uses Key.
	EVENT_CODE_KEY_RELEASED
	// Mouse button pressed. Uses Button, X, Y.
	EVENT_CODE_BUTTON_PRESSED
	// Mouse button released. Uses Button, X, Y.
	EVENT_CODE_BUTTON_RELEASED
	// Mouse moved. Uses X, Y.
	EVENT_CODE_MOUSE_MOVED
	// Mouse wheel. Uses Z (vertical scroll delta).
	EVENT_CODE_MOUSE_WHEEL
	// Framebuffer resized. Uses Width, Height.
	EVENT_CODE_RESIZED
	// A shader bytecode file changed on disk. Uses Path.
	EVENT_CODE_SHADER_CHANGED
)

func (c SystemEventCode) String() string {
	switch c {
	case EVENT_CODE_APPLICATION_QUIT:
		return "quit"
	case EVENT_CODE_KEY_PRESSED:
		return "key_pressed"
	case EVENT_CODE_KEY_RELEASED:
		return "key_released"
	case EVENT_CODE_BUTTON_PRESSED:
		return "button_pressed"
	case EVENT_CODE_BUTTON_RELEASED:
		return "button_released"
	case EVENT_CODE_MOUSE_MOVED:
		return "mouse_moved"
	case EVENT_CODE_MOUSE_WHEEL:
		return "mouse_wheel"
	case EVENT_CODE_RESIZED:
		return "resized"
	case EVENT_CODE_SHADER_CHANGED:
		return "shader_changed"
	default:
		return "unknown"
	}
}

type EventContext struct {
	Code   SystemEventCode
	Key    KeyCode
	Button Button
	X, Y   float64
	Z      float64
	Width  int
	Height int
	Path   string
}

const defaultEventQueueSize = 256

// EventQueue collects events from callbacks and watcher goroutines. The frame
// loop drains it once per iteration.
type EventQueue struct {
	mu      sync.Mutex
	queue   *containers.RingQueue[EventContext]
	dropped uint64
}

func NewEventQueue(size int) *EventQueue {
	if size <= 0 {
		size = defaultEventQueueSize
	}
	return &EventQueue{
		queue: containers.NewRingQueue[EventContext](size),
	}
}

// Push never blocks. When full, the oldest event is dropped.
func (q *EventQueue) Push(e EventContext) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.queue.Overwrite(e) {
		q.dropped++
	}
}

// Drain removes every pending event in arrival order.
func (q *EventQueue) Drain() []EventContext {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]EventContext, 0, q.queue.Len())
	for !q.queue.IsEmpty() {
		e, _ := q.queue.Dequeue()
		out = append(out, e)
	}
	return out
}

func (q *EventQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
