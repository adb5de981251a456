package router

import (
	"context"

	"github.com/miladsoleymani/dispatchmux/core"
)

// FromAddrMultiplex presents a pool of single-address transports as one
// exposed endpoint. Inbound traffic is rewritten to the single exposed
// name; outbound traffic is demultiplexed onto the transport selected
// by the message's from_addr.
//
// transport_name is rewritten in both directions, and exactly one
// exposed name is supported.
type FromAddrMultiplex struct {
	d        *core.Dispatcher
	exposed  string
	mappings map[string]string
}

// NewFromAddrMultiplex creates the router. fromaddr_mappings is
// required and exposed_names must contain exactly one entry.
func NewFromAddrMultiplex(d *core.Dispatcher, cfg *core.Config) (*FromAddrMultiplex, error) {
	if len(cfg.ExposedNames) != 1 {
		return nil, core.NewConfigError(
			"exactly one exposed name is allowed for the fromaddr multiplex router, got %d",
			len(cfg.ExposedNames))
	}
	if len(cfg.FromAddrMappings) == 0 {
		return nil, core.NewConfigError("fromaddr_mappings is required for the fromaddr multiplex router")
	}
	return &FromAddrMultiplex{
		d:        d,
		exposed:  cfg.ExposedNames[0],
		mappings: cfg.FromAddrMappings,
	}, nil
}

func (r *FromAddrMultiplex) DispatchInboundMessage(ctx context.Context, msg *core.UserMessage) error {
	msg.TransportName = r.exposed
	return r.d.PublishInboundMessage(ctx, r.exposed, msg)
}

func (r *FromAddrMultiplex) DispatchInboundEvent(ctx context.Context, ev *core.Event) error {
	ev.TransportName = r.exposed
	return r.d.PublishInboundEvent(ctx, r.exposed, ev)
}

func (r *FromAddrMultiplex) DispatchOutboundMessage(ctx context.Context, msg *core.UserMessage) error {
	name, ok := r.mappings[msg.FromAddr]
	if !ok {
		logger := r.d.Logger()
		logger.Error().
			Str("from_addr", msg.FromAddr).
			Str("message_id", msg.MessageID).
			Msg("no transport mapped for outbound from_addr")
		return nil
	}
	msg.TransportName = name
	return r.d.PublishOutboundMessage(ctx, name, msg)
}
