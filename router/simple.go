package router

import (
	"context"

	"github.com/miladsoleymani/dispatchmux/core"
)

// Simple maps transports to applications through static route_mappings.
// Inbound messages and events from a transport fan out to every exposed
// name mapped to it; outbound messages go back to the transport named
// in the message, optionally remapped through transport_mappings.
type Simple struct {
	d        *core.Dispatcher
	routes   map[string][]string
	outbound *SimpleOutbound
}

// NewSimple creates a Simple router. route_mappings is required.
func NewSimple(d *core.Dispatcher, cfg *core.Config) (*Simple, error) {
	if len(cfg.RouteMappings) == 0 {
		return nil, core.NewConfigError("route_mappings is required for the simple router")
	}
	return &Simple{
		d:        d,
		routes:   cfg.RouteMappings,
		outbound: NewSimpleOutbound(d, cfg.TransportMappings),
	}, nil
}

func (r *Simple) DispatchInboundMessage(ctx context.Context, msg *core.UserMessage) error {
	names, ok := r.routes[msg.TransportName]
	if !ok {
		logger := r.d.Logger()
		logger.Error().
			Str("transport_name", msg.TransportName).
			Str("message_id", msg.MessageID).
			Msg("no route mapping for inbound message")
		return nil
	}
	// Clone per destination so middleware never sees one instance twice.
	for _, name := range names {
		if err := r.d.PublishInboundMessage(ctx, name, msg.Copy()); err != nil {
			return err
		}
	}
	return nil
}

func (r *Simple) DispatchInboundEvent(ctx context.Context, ev *core.Event) error {
	names, ok := r.routes[ev.TransportName]
	if !ok {
		logger := r.d.Logger()
		logger.Error().
			Str("transport_name", ev.TransportName).
			Str("user_message_id", ev.UserMessageID).
			Msg("no route mapping for inbound event")
		return nil
	}
	for _, name := range names {
		if err := r.d.PublishInboundEvent(ctx, name, ev.Copy()); err != nil {
			return err
		}
	}
	return nil
}

func (r *Simple) DispatchOutboundMessage(ctx context.Context, msg *core.UserMessage) error {
	return r.outbound.Dispatch(ctx, msg)
}

// SimpleOutbound is the default outbound behavior shared by the routers
// that specialize inbound routing only: dispatch to the transport named
// in the message, remapped through transport_mappings when present.
type SimpleOutbound struct {
	d        *core.Dispatcher
	mappings map[string]string
}

// NewSimpleOutbound creates the helper. mappings may be nil.
func NewSimpleOutbound(d *core.Dispatcher, mappings map[string]string) *SimpleOutbound {
	return &SimpleOutbound{d: d, mappings: mappings}
}

// Dispatch publishes the message unchanged to its transport.
func (o *SimpleOutbound) Dispatch(ctx context.Context, msg *core.UserMessage) error {
	name := msg.TransportName
	if mapped, ok := o.mappings[name]; ok {
		name = mapped
	}
	return o.d.PublishOutboundMessage(ctx, name, msg)
}
