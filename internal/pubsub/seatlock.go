// Package pubsub fans seat-lock state changes out to every viewer of a
// trip over Redis pub/sub.  Delivery is best effort — the contract is
// "eventually, before the lock's TTL elapses" — so the broadcast is
// purely advisory: a viewer that misses an event re-queries the seat map
// and still sees the correct state.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

// Lock event actions.
const (
	ActionLocked   = "locked"
	ActionReleased = "released"
	ActionConsumed = "consumed" // a completed booking absorbed the lock
)

// SeatLockEvent is the JSON payload broadcast on a trip's channel.
type SeatLockEvent struct {
	TripID    uint64 `json:"trip_id"`
	SeatID    uint64 `json:"seat_id"`
	Holder    string `json:"holder"`
	Action    string `json:"action"`
	ExpiresAt string `json:"expires_at,omitempty"` // RFC3339 UTC, set for "locked"
}

// channelFor returns the Redis channel name for a trip.
func channelFor(tripID uint64) string {
	return fmt.Sprintf("seatlock:%d", tripID)
}

// Broadcaster publishes and subscribes seat-lock events.  A nil client
// degrades to a no-op publisher: direct reads remain authoritative, so
// the system stays correct with Redis down, just without live updates.
type Broadcaster struct {
	rdb *redis.Client
}

// NewBroadcaster wraps a Redis client, which may be nil.
func NewBroadcaster(rdb *redis.Client) *Broadcaster {
	return &Broadcaster{rdb: rdb}
}

// Publish sends the event to the trip's channel.  Errors are logged and
// returned but callers are expected to ignore them — a lost broadcast
// must never fail the lock operation that triggered it.
func (b *Broadcaster) Publish(ctx context.Context, ev SeatLockEvent) error {
	if b.rdb == nil {
		return nil
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal lock event: %w", err)
	}
	if err := b.rdb.Publish(ctx, channelFor(ev.TripID), body).Err(); err != nil {
		log.Printf("pubsub: publish to %s failed: %v", channelFor(ev.TripID), err)
		return err
	}
	return nil
}

// Subscribe returns a channel of decoded events for one trip plus a
// cancel function.  The goroutine exits when ctx is done or the
// subscription closes; undecodable payloads are logged and dropped.
func (b *Broadcaster) Subscribe(ctx context.Context, tripID uint64) (<-chan SeatLockEvent, func(), error) {
	if b.rdb == nil {
		return nil, nil, fmt.Errorf("pubsub disabled: no redis client")
	}
	sub := b.rdb.Subscribe(ctx, channelFor(tripID))
	// Force the subscription to be established before we hand it out.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", channelFor(tripID), err)
	}

	out := make(chan SeatLockEvent, 16)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				var ev SeatLockEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					log.Printf("pubsub: drop malformed lock event: %v", err)
					continue
				}
				select {
				case out <- ev:
				default:
					// Slow viewer: drop rather than block the reader loop.
					// The viewer re-syncs from the seat map on reconnect.
				}
			}
		}
	}()
	cancel := func() { _ = sub.Close() }
	return out, cancel, nil
}
