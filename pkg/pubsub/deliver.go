package pubsub

import (
	"context"

	"github.com/weiawesome/hybrid-relay/pkg/log"
)

// subscriberBuffer bounds the frames queued for one subscriber.
const subscriberBuffer = 100

// deliver hands event to a subscriber without blocking the bus. It returns
// false once ctx is done.
func deliver(ctx context.Context, ch chan<- *Event, event *Event, driver string) bool {
	select {
	case ch <- event:
		return true
	case <-ctx.Done():
		return false
	default:
		l := log.L()
		l.Warn().
			Str("driver", driver).
			Str("type", event.Type).
			Str("key", event.Key).
			Msg("subscriber buffer full, dropping cluster frame")
		return true
	}
}
