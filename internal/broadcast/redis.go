package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/observability"
)

const channelPrefix = "seatmap:"

// Publisher is the contract mutators use after a committed transition.
// Implementations must never block the caller on slow consumers.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Broadcaster bridges Redis pub/sub and the in-process Hub.  Publishing
// goes to the showtime's Redis channel so every API instance sees it;
// Run subscribes to all showtime channels and replays messages into the
// local hub.
type Broadcaster struct {
	rdb *redis.Client
	hub *Hub
	log observability.Logger
}

// NewBroadcaster wires a Broadcaster.  rdb may be nil in degraded
// setups; Publish then delivers to the local hub only.
func NewBroadcaster(rdb *redis.Client, hub *Hub, log observability.Logger) *Broadcaster {
	return &Broadcaster{rdb: rdb, hub: hub, log: log}
}

// Publish sends the event to the showtime's channel.  Errors are
// returned for logging but callers treat publishing as fire-and-forget;
// a lost event is recovered by the client refetching the seat map.
func (b *Broadcaster) Publish(ctx context.Context, ev Event) error {
	observability.BroadcastEvents.WithLabelValues(ev.Type).Inc()
	if b.rdb == nil {
		b.hub.Deliver(ev)
		return nil
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	channel := channelPrefix + strconv.FormatUint(ev.ShowtimeID, 10)
	if err := b.rdb.Publish(ctx, channel, body).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

// Run pattern-subscribes to every showtime channel and feeds received
// events into the hub until the context is cancelled.  When Redis is
// not configured it returns immediately; Publish already delivered
// locally.
func (b *Broadcaster) Run(ctx context.Context) error {
	if b.rdb == nil {
		<-ctx.Done()
		return nil
	}
	sub := b.rdb.PSubscribe(ctx, channelPrefix+"*")
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("redis subscription closed")
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.log.WithField("channel", msg.Channel).Warn("broadcast: dropping malformed event")
				continue
			}
			if ev.ShowtimeID == 0 {
				// Fall back to the channel name when the body lacks the ID.
				if id, err := strconv.ParseUint(strings.TrimPrefix(msg.Channel, channelPrefix), 10, 64); err == nil {
					ev.ShowtimeID = id
				}
			}
			b.hub.Deliver(ev)
		}
	}
}
