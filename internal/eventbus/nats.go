// Package eventbus provides a thin typed NATS wrapper used to announce
// pipeline lifecycle events. The catalog store remains the durable source
// of truth for run state and the Control API starts each run itself, so a
// dropped or unavailable NATS connection loses only the notification,
// never a run.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// SubjectRunQueued is published by the Control API's trigger endpoint
// whenever a pipeline run is created.
const SubjectRunQueued = "pipeline.run.queued"

// RunQueuedEvent is the payload published to SubjectRunQueued.
type RunQueuedEvent struct {
	RunID     string `json:"run_id"`
	ProductID string `json:"product_id"`
}

// Bus wraps a NATS connection for JSON pub/sub of pipeline lifecycle
// events. A nil *Bus is valid and treats every operation as a no-op, so
// callers can run with eventing disabled (no eventbus_url configured)
// without special-casing every call site.
type Bus struct {
	nc *nats.Conn
}

// Connect dials the given NATS URL. An empty url disables the bus: Connect
// returns a nil *Bus and a nil error, and every method becomes a no-op.
func Connect(url string) (*Bus, error) {
	if url == "" {
		return nil, nil
	}
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	return &Bus{nc: nc}, nil
}

// Close drains and closes the underlying connection.
func (b *Bus) Close() {
	if b == nil || b.nc == nil {
		return
	}
	_ = b.nc.Drain()
}

// Publish serializes v as JSON and publishes it to subject. A nil Bus
// silently drops the publish.
func Publish[T any](b *Bus, subject string, v T) error {
	if b == nil || b.nc == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling event for %s: %w", subject, err)
	}
	return b.nc.Publish(subject, data)
}

// Subscribe registers a handler that deserializes JSON messages of type T.
// Malformed messages are dropped rather than crashing the subscriber.
// A nil Bus returns a nil subscription and a nil error; the caller's
// handler is simply never invoked.
func Subscribe[T any](b *Bus, subject string, handler func(context.Context, T)) (*nats.Subscription, error) {
	if b == nil || b.nc == nil {
		return nil, nil
	}
	return b.nc.Subscribe(subject, func(msg *nats.Msg) {
		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			return
		}
		handler(context.Background(), v)
	})
}

// PublishRunQueued notifies subscribers that a new run is ready to be
// picked up. Called by the Control API's trigger handler right after the
// catalog row is committed.
func PublishRunQueued(b *Bus, runID, productID string) error {
	return Publish(b, SubjectRunQueued, RunQueuedEvent{RunID: runID, ProductID: productID})
}
