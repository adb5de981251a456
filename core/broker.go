package core

import "context"

// Broker defines the contract for message bus implementations.
// Each bus plugin must implement this interface.
//
// Subscribe blocks until the context is cancelled and must deliver
// messages from a single queue to the handler one at a time, in the
// order they were consumed. Publish must be safe for concurrent use
// and return only once the bus has accepted the message.
type Broker interface {
	Publish(ctx context.Context, queue string, msg Message) error
	Subscribe(ctx context.Context, queue string, handler Handler) error
	Close() error
}

// QueueDeclarer is implemented by brokers that materialize queues
// eagerly. The dispatcher declares every publisher queue through it
// before attaching consumers of the opposite direction, so a consumed
// message always has a valid publish path.
type QueueDeclarer interface {
	DeclareQueue(ctx context.Context, queue string) error
}

// Message is the broker-agnostic message abstraction.
// Implementations are provided by bus plugins.
type Message interface {
	Key() []byte
	Value() []byte
	Headers() map[string]string
	Ack() error
	Nack() error
}

// Handler is the handler used by broker subscriptions.
type Handler func(ctx context.Context, msg Message) error

// Payload is the Message value used for publishes originated by the
// dispatcher itself. Ack and Nack are no-ops: acknowledgement of an
// outgoing message is the publish call returning.
type Payload struct {
	K []byte
	V []byte
	H map[string]string
}

func (p *Payload) Key() []byte                { return p.K }
func (p *Payload) Value() []byte              { return p.V }
func (p *Payload) Headers() map[string]string { return p.H }
func (p *Payload) Ack() error                 { return nil }
func (p *Payload) Nack() error                { return nil }
