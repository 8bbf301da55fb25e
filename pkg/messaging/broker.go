package messaging

import (
	"context"
	"encoding/json"
	"sync"
)

// EventsChannel carries every domain event published from the outbox.
const EventsChannel = "clinic.events"

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

type Message struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// MemoryBroker fans messages out to in-process subscribers. Used when Redis is not configured.
type MemoryBroker struct {
	mu     sync.RWMutex
	subs   map[string][]chan []byte
	closed bool
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[string][]chan []byte)}
}

func (b *MemoryBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[channel] {
		select {
		case ch <- payload:
		case <-ctx.Done():
			return ctx.Err()
		default:
			// slow subscriber, drop
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 100)

	b.mu.Lock()
	b.subs[channel] = append(b.subs[channel], ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[channel]
		for i, c := range subs {
			if c == ch {
				b.subs[channel] = append(subs[:i], subs[i+1:]...)
				close(ch)
				break
			}
		}
	}()

	return ch, nil
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
