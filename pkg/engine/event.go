package engine

import (
	"sync"
	"time"
)

// EventKind identifies the type of engine event.
type EventKind string

const (
	EventRunStart   EventKind = "run_start"
	EventTaskStart  EventKind = "task_start"
	EventToolCall   EventKind = "tool_call"
	EventToolResult EventKind = "tool_result"
	EventTaskEnd    EventKind = "task_end"
	EventRunEnd     EventKind = "run_end"
	EventError      EventKind = "error"
)

// Event is an immutable notification of engine activity.
type Event struct {
	Kind      EventKind `json:"kind"`
	RunID     string    `json:"run_id"`
	Agent     string    `json:"agent,omitempty"`
	Task      string    `json:"task,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// RunStartData accompanies EventRunStart.
type RunStartData struct {
	Topic       string  `json:"topic"`
	Temperature float64 `json:"temperature"`
	NumResults  int     `json:"num_results"`
	Model       string  `json:"model"`
}

// TaskStartData accompanies EventTaskStart.
type TaskStartData struct {
	Index       int    `json:"index"`
	Description string `json:"description"`
}

// ToolData accompanies EventToolCall and EventToolResult.
type ToolData struct {
	Tool      string `json:"tool"`
	Arguments string `json:"arguments,omitempty"`
	Result    string `json:"result,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// TaskEndData accompanies EventTaskEnd.
type TaskEndData struct {
	Index    int           `json:"index"`
	Chars    int           `json:"chars"`
	Duration time.Duration `json:"duration"`
}

// RunEndData accompanies EventRunEnd.
type RunEndData struct {
	FileName     string        `json:"file_name"`
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
	Duration     time.Duration `json:"duration"`
}

// ErrorData accompanies EventError.
type ErrorData struct {
	Error string `json:"error"`
}

// Subscription receives events from an EventBus.
type Subscription struct {
	C  <-chan Event
	ch chan Event
}

// EventBus fans out events to all active subscribers. It is safe for
// concurrent use.
type EventBus struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// NewEventBus creates an EventBus ready for use.
func NewEventBus() *EventBus {
	return &EventBus{
		subs: make(map[*Subscription]struct{}),
	}
}

// Subscribe creates a subscription with the given channel buffer size. The
// caller reads from sub.C and eventually calls Unsubscribe.
func (b *EventBus) Subscribe(bufSize int) *Subscription {
	ch := make(chan Event, bufSize)
	sub := &Subscription{C: ch, ch: ch}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

// Unsubscribe removes the subscription and closes its channel.
func (b *EventBus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

// Publish sends an event to all subscribers. A subscriber whose buffer is
// full misses the event so a slow consumer cannot stall a run.
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		select {
		case sub.ch <- e:
		default:
		}
	}
}
