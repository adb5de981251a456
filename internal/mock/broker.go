package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/miladsoleymani/dispatchmux/core"
)

// Broker is a test double for core.Broker that records publishes per
// queue and lets tests inject deliveries into subscribed handlers.
type Broker struct {
	mu           sync.Mutex
	published    map[string][][]byte
	declared     []string
	handlers     map[string]core.Handler
	PublishErr   error
	SubscribeErr error
	closed       bool
}

func NewBroker() *Broker {
	return &Broker{
		published: make(map[string][][]byte),
		handlers:  make(map[string]core.Handler),
	}
}

func (b *Broker) Publish(_ context.Context, queue string, msg core.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.PublishErr != nil {
		return b.PublishErr
	}
	payload := make([]byte, len(msg.Value()))
	copy(payload, msg.Value())
	b.published[queue] = append(b.published[queue], payload)
	return nil
}

func (b *Broker) Subscribe(ctx context.Context, queue string, handler core.Handler) error {
	b.mu.Lock()
	if b.SubscribeErr != nil {
		err := b.SubscribeErr
		b.mu.Unlock()
		return err
	}
	b.handlers[queue] = handler
	b.mu.Unlock()

	// Block until cancelled, like a real subscription loop.
	<-ctx.Done()
	return nil
}

func (b *Broker) DeclareQueue(_ context.Context, queue string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.declared = append(b.declared, queue)
	return nil
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Deliver feeds a payload to the handler subscribed on queue, as if it
// had been consumed from the bus.
func (b *Broker) Deliver(ctx context.Context, queue string, payload []byte) error {
	b.mu.Lock()
	h, ok := b.handlers[queue]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("mock: no handler subscribed on %q", queue)
	}
	return h(ctx, &RawMessage{V: payload})
}

// Published returns the payloads published to queue, in order.
func (b *Broker) Published(queue string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]byte, len(b.published[queue]))
	copy(out, b.published[queue])
	return out
}

// PublishedQueues returns every queue that received at least one publish.
func (b *Broker) PublishedQueues() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	queues := make([]string, 0, len(b.published))
	for q := range b.published {
		queues = append(queues, q)
	}
	return queues
}

// Subscribed reports whether a handler is attached to queue.
func (b *Broker) Subscribed(queue string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.handlers[queue]
	return ok
}

// Declared returns the queues declared through DeclareQueue, in order.
func (b *Broker) Declared() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.declared))
	copy(out, b.declared)
	return out
}

// IsClosed reports whether Close was called.
func (b *Broker) IsClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
