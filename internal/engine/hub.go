package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/borzov/photo-validation-service/pkg/schema"
)

// EventType identifies what a stream event reports.
type EventType string

const (
	EventValidationStarted   EventType = "validation_started"
	EventCheckStarted        EventType = "check_started"
	EventCheckCompleted      EventType = "check_completed"
	EventValidationCompleted EventType = "validation_completed"
)

// StreamEvent is one progress notification from a validation run.
// Consumers pull events from a channel; the engine never calls back into
// consumer code.
type StreamEvent struct {
	RequestID string          `json:"request_id"`
	EventType EventType       `json:"event_type"`
	Check     string          `json:"check,omitempty"`
	Outcome   *schema.Outcome `json:"outcome,omitempty"`
	Verdict   *schema.Verdict `json:"verdict,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// EventFilter restricts which events a subscriber receives. Zero value
// matches everything.
type EventFilter struct {
	RequestID  string
	EventTypes []EventType
}

const defaultChannelBuffer = 64

type subscriber struct {
	ch     chan StreamEvent
	filter EventFilter
}

// Hub is the in-memory outcome stream. Publishing never blocks the runner:
// a subscriber that cannot keep up loses events rather than stalling
// validation.
type Hub struct {
	mu   sync.RWMutex
	subs map[uint64]*subscriber
	seq  atomic.Uint64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]*subscriber)}
}

// Publish sends an event to all matching subscribers.
// Non-blocking: if a subscriber's channel is full the event is dropped.
func (h *Hub) Publish(ctx context.Context, event StreamEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		if !matchFilter(sub.filter, event) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			// backpressure: drop event for slow subscriber
		}
	}
	return nil
}

// Subscribe creates a new subscription filtered by the given EventFilter.
// Returns a receive-only channel and a cancel function.
func (h *Hub) Subscribe(ctx context.Context, filter EventFilter) (<-chan StreamEvent, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	id := h.seq.Add(1)
	ch := make(chan StreamEvent, defaultChannelBuffer)

	h.mu.Lock()
	h.subs[id] = &subscriber{ch: ch, filter: filter}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}

	return ch, cancel, nil
}

func matchFilter(f EventFilter, e StreamEvent) bool {
	if f.RequestID != "" && f.RequestID != e.RequestID {
		return false
	}
	if len(f.EventTypes) > 0 {
		found := false
		for _, t := range f.EventTypes {
			if t == e.EventType {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
