package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubFanOut(t *testing.T) {
	hub := NewHub()
	now := time.Date(2026, 2, 10, 18, 0, 0, 0, time.UTC)

	a, cancelA := hub.Subscribe(42)
	defer cancelA()
	b, cancelB := hub.Subscribe(42)
	defer cancelB()
	other, cancelOther := hub.Subscribe(99)
	defer cancelOther()

	ev := NewEvent(EventSeatHeld, 42, []uint64{1, 2}, now)
	hub.Deliver(ev)

	for _, ch := range []<-chan Event{a, b} {
		select {
		case got := <-ch:
			assert.Equal(t, EventSeatHeld, got.Type)
			assert.Equal(t, uint64(42), got.ShowtimeID)
			assert.Equal(t, now.UnixMilli(), got.Version)
		default:
			t.Fatal("subscriber did not receive the event")
		}
	}

	select {
	case <-other:
		t.Fatal("subscriber of another showtime received the event")
	default:
	}
}

func TestHubDeliverNeverBlocks(t *testing.T) {
	hub := NewHub()
	now := time.Now().UTC()

	ch, cancel := hub.Subscribe(7)
	defer cancel()

	// Overfill the buffer; extra events are dropped for this
	// subscriber, not queued against the publisher.
	for i := 0; i < 100; i++ {
		hub.Deliver(NewEvent(EventCountdownTick, 7, nil, now))
	}

	received := 0
	for {
		select {
		case <-ch:
			received++
			continue
		default:
		}
		break
	}
	assert.Equal(t, 16, received)
}

func TestHubCancel(t *testing.T) {
	hub := NewHub()

	ch, cancel := hub.Subscribe(7)
	require.Equal(t, 1, hub.SubscriberCount(7))

	cancel()
	assert.Equal(t, 0, hub.SubscriberCount(7))

	// The channel is closed so a blocked reader wakes up.
	_, open := <-ch
	assert.False(t, open)

	// Cancelling twice is safe.
	cancel()

	// Delivering after cancel reaches nobody and does not panic.
	hub.Deliver(NewEvent(EventSeatReleased, 7, []uint64{1}, time.Now().UTC()))
}
