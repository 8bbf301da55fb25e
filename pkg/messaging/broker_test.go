package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBroker_PublishSubscribe(t *testing.T) {
	b := NewMemoryBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := b.Subscribe(ctx, EventsChannel)
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), EventsChannel, Message{
		ID:      "1",
		Type:    "clinic.created",
		Payload: json.RawMessage(`{"slug":"sunrise"}`),
	}))

	select {
	case raw := <-msgs:
		var m Message
		require.NoError(t, json.Unmarshal(raw, &m))
		assert.Equal(t, "clinic.created", m.Type)
		assert.JSONEq(t, `{"slug":"sunrise"}`, string(m.Payload))
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

func TestMemoryBroker_UnsubscribeOnCancel(t *testing.T) {
	b := NewMemoryBroker()
	ctx, cancel := context.WithCancel(context.Background())

	msgs, err := b.Subscribe(ctx, EventsChannel)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-msgs:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
}
