package core

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Router decides destinations for messages flowing through a
// dispatcher. Implementations are constructed with the dispatcher they
// route for and its configuration, live for the process lifetime, and
// publish through the dispatcher's Publish* operations.
//
// Route misses are the router's to log and swallow; only programming
// errors (unknown endpoints, broker failures) are returned.
type Router interface {
	DispatchInboundMessage(ctx context.Context, msg *UserMessage) error
	DispatchInboundEvent(ctx context.Context, ev *Event) error
	DispatchOutboundMessage(ctx context.Context, msg *UserMessage) error
}

// drainTimeout bounds the wait for in-flight dispatch tasks at shutdown.
const drainTimeout = 10 * time.Second

// Dispatcher attaches a worker to the transport and exposed queues of a
// message bus, runs consumed messages through the middleware stack and
// hands them to the router.
//
// For each transport name T it publishes to T.outbound and consumes
// T.inbound and T.event; for each exposed name E it publishes to
// E.inbound and E.event and consumes E.outbound.
type Dispatcher struct {
	broker Broker
	cfg    *Config
	stack  *MiddlewareStack
	router Router
	log    zerolog.Logger

	transportOutbound map[string]string
	exposedInbound    map[string]string
	exposedEvent      map[string]string

	mu      sync.Mutex
	started bool
	tasks   sync.WaitGroup
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger replaces the default stderr logger.
func WithLogger(log zerolog.Logger) Option {
	return func(d *Dispatcher) { d.log = log }
}

// NewDispatcher creates a dispatcher for the given broker and
// configuration. A middleware stack and router must be attached before
// Start; the root dispatchmux package wires both from configuration.
func NewDispatcher(b Broker, cfg *Config, opts ...Option) (*Dispatcher, error) {
	if b == nil {
		return nil, ErrNoBroker
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &Dispatcher{
		broker: b,
		cfg:    cfg,
		stack:  NewMiddlewareStack(),
		log:    zerolog.New(os.Stderr).With().Timestamp().Str("dispatcher", cfg.DispatcherName).Logger(),

		transportOutbound: make(map[string]string, len(cfg.TransportNames)),
		exposedInbound:    make(map[string]string, len(cfg.ExposedNames)),
		exposedEvent:      make(map[string]string, len(cfg.ExposedNames)),
	}
	for _, opt := range opts {
		opt(d)
	}

	for _, name := range cfg.TransportNames {
		d.transportOutbound[name] = name + ".outbound"
	}
	for _, name := range cfg.ExposedNames {
		d.exposedInbound[name] = name + ".inbound"
		d.exposedEvent[name] = name + ".event"
	}
	return d, nil
}

// Config returns the dispatcher configuration.
func (d *Dispatcher) Config() *Config { return d.cfg }

// Logger returns the dispatcher's logger for routers and middleware.
func (d *Dispatcher) Logger() zerolog.Logger { return d.log }

// SetMiddleware attaches the middleware stack. Must be called before Start.
func (d *Dispatcher) SetMiddleware(stack *MiddlewareStack) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stack = stack
}

// SetRouter attaches the routing logic. Must be called before Start.
func (d *Dispatcher) SetRouter(r Router) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.router = r
}

// Start declares publisher queues, attaches all consumers and blocks
// until the context is cancelled or a subscription fails. Publisher
// queues are declared before any consumer attaches so that a consumed
// message always has a valid publish path.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.router == nil {
		d.mu.Unlock()
		return ErrNoRouter
	}
	if d.started {
		d.mu.Unlock()
		return ErrAlreadyStarted
	}
	d.started = true
	d.mu.Unlock()

	d.log.Info().
		Str("router_class", d.cfg.RouterClass).
		Strs("transport_names", d.cfg.TransportNames).
		Strs("exposed_names", d.cfg.ExposedNames).
		Msg("starting dispatcher")

	if err := d.declarePublishers(ctx); err != nil {
		return err
	}

	type subscription struct {
		queue   string
		handler Handler
	}
	var subs []subscription
	for _, name := range d.cfg.TransportNames {
		subs = append(subs, subscription{
			queue:   name + ".inbound",
			handler: d.consumeUserMessage(name, d.DispatchInboundMessage),
		})
	}
	for _, name := range d.cfg.TransportNames {
		subs = append(subs, subscription{
			queue:   name + ".event",
			handler: d.consumeEvent(name),
		})
	}
	for _, name := range d.cfg.ExposedNames {
		subs = append(subs, subscription{
			queue:   name + ".outbound",
			handler: d.consumeUserMessage(name, d.DispatchOutboundMessage),
		})
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(subs))
	for _, sub := range subs {
		wg.Add(1)
		go func(queue string, h Handler) {
			defer wg.Done()
			if err := d.broker.Subscribe(ctx, queue, h); err != nil {
				errCh <- fmt.Errorf("dispatchmux: subscribe %q: %w", queue, err)
			}
		}(sub.queue, sub.handler)
	}
	go func() {
		wg.Wait()
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return d.shutdown()
	case err := <-errCh:
		if err != nil {
			return err
		}
		<-ctx.Done()
		return d.shutdown()
	}
}

// shutdown waits for in-flight dispatch tasks to drain, bounded by
// drainTimeout, then closes the broker.
func (d *Dispatcher) shutdown() error {
	done := make(chan struct{})
	go func() {
		d.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(drainTimeout):
		d.log.Warn().Msg("shutdown drain timed out with dispatch tasks in flight")
	}
	return d.broker.Close()
}

// declarePublishers materializes every publisher queue on brokers that
// support eager declaration. Strictly ordered: transport-side outbound
// first, then exposed-side inbound and event.
func (d *Dispatcher) declarePublishers(ctx context.Context) error {
	qd, ok := d.broker.(QueueDeclarer)
	if !ok {
		return nil
	}
	for _, name := range d.cfg.TransportNames {
		if err := qd.DeclareQueue(ctx, d.transportOutbound[name]); err != nil {
			return fmt.Errorf("dispatchmux: declare %q: %w", d.transportOutbound[name], err)
		}
	}
	for _, name := range d.cfg.ExposedNames {
		if err := qd.DeclareQueue(ctx, d.exposedInbound[name]); err != nil {
			return fmt.Errorf("dispatchmux: declare %q: %w", d.exposedInbound[name], err)
		}
	}
	for _, name := range d.cfg.ExposedNames {
		if err := qd.DeclareQueue(ctx, d.exposedEvent[name]); err != nil {
			return fmt.Errorf("dispatchmux: declare %q: %w", d.exposedEvent[name], err)
		}
	}
	return nil
}

// consumeUserMessage binds a queue to one of the user-message dispatch
// operations. Per-message errors never escape the task: the message is
// logged, acked and dropped. The handler always returns nil so the
// broker never redelivers.
func (d *Dispatcher) consumeUserMessage(endpoint string, dispatch func(context.Context, string, *UserMessage) error) Handler {
	return func(ctx context.Context, raw Message) error {
		d.tasks.Add(1)
		defer d.tasks.Done()
		defer d.recoverTask(endpoint)

		msg, err := DecodeUserMessage(raw.Value())
		if err != nil {
			d.log.Error().Err(err).Str("endpoint", endpoint).Msg("dropping undecodable message")
			return raw.Ack()
		}
		if err := dispatch(ctx, endpoint, msg); err != nil {
			d.log.Error().Err(err).
				Str("endpoint", endpoint).
				Str("message_id", msg.MessageID).
				Msg("dispatch failed, dropping message")
		}
		return raw.Ack()
	}
}

// consumeEvent binds a transport's event queue to the event dispatch
// operation, with the same error policy as consumeUserMessage.
func (d *Dispatcher) consumeEvent(endpoint string) Handler {
	return func(ctx context.Context, raw Message) error {
		d.tasks.Add(1)
		defer d.tasks.Done()
		defer d.recoverTask(endpoint)

		ev, err := DecodeEvent(raw.Value())
		if err != nil {
			d.log.Error().Err(err).Str("endpoint", endpoint).Msg("dropping undecodable event")
			return raw.Ack()
		}
		if err := d.DispatchInboundEvent(ctx, endpoint, ev); err != nil {
			d.log.Error().Err(err).
				Str("endpoint", endpoint).
				Str("user_message_id", ev.UserMessageID).
				Msg("event dispatch failed, dropping event")
		}
		return raw.Ack()
	}
}

func (d *Dispatcher) recoverTask(endpoint string) {
	if r := recover(); r != nil {
		buf := make([]byte, 4096)
		n := runtime.Stack(buf, false)
		d.log.Error().
			Str("endpoint", endpoint).
			Interface("panic", r).
			Bytes("stack", buf[:n]).
			Msg("panic in dispatch task")
	}
}

// DispatchInboundMessage runs the inbound consume chain for the
// endpoint and hands the result to the router.
func (d *Dispatcher) DispatchInboundMessage(ctx context.Context, endpoint string, msg *UserMessage) error {
	out, err := d.stack.ApplyConsume(ctx, DirectionInbound, msg, endpoint)
	if err != nil {
		return fmt.Errorf("dispatchmux: inbound middleware on %q: %w", endpoint, err)
	}
	if out == nil {
		return nil
	}
	return d.router.DispatchInboundMessage(ctx, out)
}

// DispatchInboundEvent runs the event consume chain for the endpoint
// and hands the result to the router.
func (d *Dispatcher) DispatchInboundEvent(ctx context.Context, endpoint string, ev *Event) error {
	out, err := d.stack.ApplyConsumeEvent(ctx, ev, endpoint)
	if err != nil {
		return fmt.Errorf("dispatchmux: event middleware on %q: %w", endpoint, err)
	}
	if out == nil {
		return nil
	}
	return d.router.DispatchInboundEvent(ctx, out)
}

// DispatchOutboundMessage runs the outbound consume chain for the
// endpoint and hands the result to the router.
func (d *Dispatcher) DispatchOutboundMessage(ctx context.Context, endpoint string, msg *UserMessage) error {
	out, err := d.stack.ApplyConsume(ctx, DirectionOutbound, msg, endpoint)
	if err != nil {
		return fmt.Errorf("dispatchmux: outbound middleware on %q: %w", endpoint, err)
	}
	if out == nil {
		return nil
	}
	return d.router.DispatchOutboundMessage(ctx, out)
}

// PublishInboundMessage runs the inbound publish chain and delivers the
// message to <endpoint>.inbound. The endpoint must be an exposed name.
func (d *Dispatcher) PublishInboundMessage(ctx context.Context, endpoint string, msg *UserMessage) error {
	queue, ok := d.exposedInbound[endpoint]
	if !ok {
		return fmt.Errorf("%w: %q is not an exposed name", ErrUnknownEndpoint, endpoint)
	}
	out, err := d.stack.ApplyPublish(ctx, DirectionInbound, msg, endpoint)
	if err != nil || out == nil {
		return err
	}
	return d.publishUserMessage(ctx, queue, out)
}

// PublishInboundEvent runs the event publish chain and delivers the
// event to <endpoint>.event. The endpoint must be an exposed name.
func (d *Dispatcher) PublishInboundEvent(ctx context.Context, endpoint string, ev *Event) error {
	queue, ok := d.exposedEvent[endpoint]
	if !ok {
		return fmt.Errorf("%w: %q is not an exposed name", ErrUnknownEndpoint, endpoint)
	}
	out, err := d.stack.ApplyPublishEvent(ctx, ev, endpoint)
	if err != nil || out == nil {
		return err
	}
	data, err := out.Encode()
	if err != nil {
		return err
	}
	if err := d.broker.Publish(ctx, queue, &Payload{K: []byte(out.UserMessageID), V: data}); err != nil {
		return fmt.Errorf("dispatchmux: publish event to %q: %w", queue, err)
	}
	return nil
}

// PublishOutboundMessage runs the outbound publish chain and delivers
// the message to <endpoint>.outbound. The endpoint must be a transport
// name.
func (d *Dispatcher) PublishOutboundMessage(ctx context.Context, endpoint string, msg *UserMessage) error {
	queue, ok := d.transportOutbound[endpoint]
	if !ok {
		return fmt.Errorf("%w: %q is not a transport name", ErrUnknownEndpoint, endpoint)
	}
	out, err := d.stack.ApplyPublish(ctx, DirectionOutbound, msg, endpoint)
	if err != nil || out == nil {
		return err
	}
	return d.publishUserMessage(ctx, queue, out)
}

func (d *Dispatcher) publishUserMessage(ctx context.Context, queue string, msg *UserMessage) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	if err := d.broker.Publish(ctx, queue, &Payload{K: []byte(msg.MessageID), V: data}); err != nil {
		return fmt.Errorf("dispatchmux: publish to %q: %w", queue, err)
	}
	return nil
}
