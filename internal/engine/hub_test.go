package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func publishAll(t *testing.T, hub *Hub, events ...StreamEvent) {
	t.Helper()
	for _, e := range events {
		require.NoError(t, hub.Publish(context.Background(), e))
	}
}

func collect(ch <-chan StreamEvent, n int) []StreamEvent {
	out := make([]StreamEvent, 0, n)
	for len(out) < n {
		select {
		case e := <-ch:
			out = append(out, e)
		case <-time.After(time.Second):
			return out
		}
	}
	return out
}

func TestHub_DeliversToSubscriber(t *testing.T) {
	hub := NewHub()
	ch, cancel, err := hub.Subscribe(context.Background(), EventFilter{})
	require.NoError(t, err)
	defer cancel()

	publishAll(t, hub,
		StreamEvent{RequestID: "r1", EventType: EventValidationStarted},
		StreamEvent{RequestID: "r1", EventType: EventValidationCompleted},
	)

	events := collect(ch, 2)
	require.Len(t, events, 2)
	assert.Equal(t, EventValidationStarted, events[0].EventType)
	assert.Equal(t, EventValidationCompleted, events[1].EventType)
}

func TestHub_FiltersByRequestID(t *testing.T) {
	hub := NewHub()
	ch, cancel, err := hub.Subscribe(context.Background(), EventFilter{RequestID: "mine"})
	require.NoError(t, err)
	defer cancel()

	publishAll(t, hub,
		StreamEvent{RequestID: "other", EventType: EventCheckStarted},
		StreamEvent{RequestID: "mine", EventType: EventCheckStarted},
	)

	events := collect(ch, 1)
	require.Len(t, events, 1)
	assert.Equal(t, "mine", events[0].RequestID)

	select {
	case e := <-ch:
		t.Fatalf("unexpected event for request %q", e.RequestID)
	default:
	}
}

func TestHub_FiltersByEventType(t *testing.T) {
	hub := NewHub()
	ch, cancel, err := hub.Subscribe(context.Background(), EventFilter{
		EventTypes: []EventType{EventValidationCompleted},
	})
	require.NoError(t, err)
	defer cancel()

	publishAll(t, hub,
		StreamEvent{RequestID: "r1", EventType: EventCheckStarted},
		StreamEvent{RequestID: "r1", EventType: EventCheckCompleted},
		StreamEvent{RequestID: "r1", EventType: EventValidationCompleted},
	)

	events := collect(ch, 1)
	require.Len(t, events, 1)
	assert.Equal(t, EventValidationCompleted, events[0].EventType)
}

func TestHub_CancelStopsDelivery(t *testing.T) {
	hub := NewHub()
	ch, cancel, err := hub.Subscribe(context.Background(), EventFilter{})
	require.NoError(t, err)

	cancel()
	publishAll(t, hub, StreamEvent{RequestID: "r1", EventType: EventCheckStarted})

	select {
	case <-ch:
		t.Fatal("cancelled subscriber must not receive events")
	default:
	}
}

func TestHub_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub()
	ch, cancel, err := hub.Subscribe(context.Background(), EventFilter{})
	require.NoError(t, err)
	defer cancel()

	// Overflow the subscriber buffer without ever draining it. Publish must
	// return promptly every time.
	for i := 0; i < defaultChannelBuffer+10; i++ {
		require.NoError(t, hub.Publish(context.Background(), StreamEvent{
			RequestID: "flood",
			EventType: EventCheckCompleted,
		}))
	}
	assert.Len(t, ch, defaultChannelBuffer)
}

func TestHub_PublishHonoursCancelledContext(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := hub.Publish(ctx, StreamEvent{EventType: EventCheckStarted})
	require.Error(t, err)
}
