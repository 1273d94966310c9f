package eventbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect_EmptyURLDisablesBus(t *testing.T) {
	bus, err := Connect("")
	require.NoError(t, err)
	assert.Nil(t, bus)
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := Connect("nats://127.0.0.1:1")
	assert.Error(t, err)
}

func TestPublish_NilBusIsNoOp(t *testing.T) {
	err := Publish[RunQueuedEvent](nil, SubjectRunQueued, RunQueuedEvent{RunID: "r1"})
	assert.NoError(t, err)
}

func TestSubscribe_NilBusIsNoOp(t *testing.T) {
	sub, err := Subscribe[RunQueuedEvent](nil, SubjectRunQueued, func(_ context.Context, _ RunQueuedEvent) {
		t.Fatal("handler should never be invoked on a nil bus")
	})
	assert.NoError(t, err)
	assert.Nil(t, sub)
}

func TestPublishRunQueued_NilBusIsNoOp(t *testing.T) {
	err := PublishRunQueued(nil, "run-1", "product-1")
	assert.NoError(t, err)
}

func TestBus_Close_NilIsNoOp(t *testing.T) {
	var bus *Bus
	assert.NotPanics(t, func() { bus.Close() })
}
