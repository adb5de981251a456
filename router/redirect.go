package router

import (
	"context"
	"fmt"

	"github.com/miladsoleymani/dispatchmux/core"
)

// RedirectOutbound sends outbound messages from an exposed endpoint to
// a different transport than the one named in the message. It routes
// outbound traffic only.
type RedirectOutbound struct {
	d        *core.Dispatcher
	mappings map[string]string
}

// NewRedirectOutbound creates the router. redirect_outbound maps
// exposed names to transport names.
func NewRedirectOutbound(d *core.Dispatcher, cfg *core.Config) (*RedirectOutbound, error) {
	if len(cfg.RedirectOutbound) == 0 {
		return nil, core.NewConfigError("redirect_outbound is required for the redirect outbound router")
	}
	return &RedirectOutbound{d: d, mappings: cfg.RedirectOutbound}, nil
}

func (r *RedirectOutbound) DispatchInboundMessage(_ context.Context, msg *core.UserMessage) error {
	return fmt.Errorf("dispatchmux: redirect outbound router does not route inbound message %s", msg.MessageID)
}

func (r *RedirectOutbound) DispatchInboundEvent(_ context.Context, ev *core.Event) error {
	return fmt.Errorf("dispatchmux: redirect outbound router does not route event for %s", ev.UserMessageID)
}

func (r *RedirectOutbound) DispatchOutboundMessage(ctx context.Context, msg *core.UserMessage) error {
	redirectTo, ok := r.mappings[msg.TransportName]
	if !ok {
		logger := r.d.Logger()
		logger.Error().
			Str("transport_name", msg.TransportName).
			Str("message_id", msg.MessageID).
			Msg("no redirect_outbound mapping for transport")
		return nil
	}
	return r.d.PublishOutboundMessage(ctx, redirectTo, msg)
}
