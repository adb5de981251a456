package router

import (
	"context"

	"github.com/miladsoleymani/dispatchmux/core"
)

// TransportToTransport connects transports to other transports:
// inbound messages from one transport are forwarded as outbound
// messages to the mapped transports.
//
// Events are discarded silently because transports cannot receive
// them, and outbound messages never arrive here because transports
// only originate inbound traffic.
type TransportToTransport struct {
	d      *core.Dispatcher
	routes map[string][]string
}

// NewTransportToTransport creates the router. route_mappings maps
// transport names to lists of destination transport names.
func NewTransportToTransport(d *core.Dispatcher, cfg *core.Config) (*TransportToTransport, error) {
	if len(cfg.RouteMappings) == 0 {
		return nil, core.NewConfigError("route_mappings is required for the transport router")
	}
	return &TransportToTransport{d: d, routes: cfg.RouteMappings}, nil
}

func (r *TransportToTransport) DispatchInboundMessage(ctx context.Context, msg *core.UserMessage) error {
	names, ok := r.routes[msg.TransportName]
	if !ok {
		logger := r.d.Logger()
		logger.Error().
			Str("transport_name", msg.TransportName).
			Str("message_id", msg.MessageID).
			Msg("no route mapping for inbound message")
		return nil
	}
	for _, name := range names {
		if err := r.d.PublishOutboundMessage(ctx, name, msg.Copy()); err != nil {
			return err
		}
	}
	return nil
}

func (r *TransportToTransport) DispatchInboundEvent(_ context.Context, _ *core.Event) error {
	return nil
}

func (r *TransportToTransport) DispatchOutboundMessage(_ context.Context, _ *core.UserMessage) error {
	return nil
}
