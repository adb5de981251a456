package router

import (
	"context"
	"regexp"
	"sort"

	"github.com/miladsoleymani/dispatchmux/core"
)

// ToAddr routes inbound messages on their to_addr: a message is
// delivered to every exposed name whose configured pattern matches the
// start of the address. Outbound messages use the default transport
// dispatch.
type ToAddr struct {
	d        *core.Dispatcher
	mappings []toAddrMapping
	outbound *SimpleOutbound
}

type toAddrMapping struct {
	name    string
	pattern *regexp.Regexp
}

// NewToAddr creates the router, compiling every toaddr_mappings
// pattern once. Patterns are anchored at the start of to_addr.
func NewToAddr(d *core.Dispatcher, cfg *core.Config) (*ToAddr, error) {
	if len(cfg.ToAddrMappings) == 0 {
		return nil, core.NewConfigError("toaddr_mappings is required for the toaddr router")
	}

	names := make([]string, 0, len(cfg.ToAddrMappings))
	for name := range cfg.ToAddrMappings {
		names = append(names, name)
	}
	sort.Strings(names)

	r := &ToAddr{d: d, outbound: NewSimpleOutbound(d, cfg.TransportMappings)}
	for _, name := range names {
		pattern, err := regexp.Compile("^(?:" + cfg.ToAddrMappings[name] + ")")
		if err != nil {
			return nil, core.NewConfigError("toaddr_mappings[%q]: invalid pattern: %v", name, err)
		}
		r.mappings = append(r.mappings, toAddrMapping{name: name, pattern: pattern})
	}
	return r, nil
}

func (r *ToAddr) DispatchInboundMessage(ctx context.Context, msg *core.UserMessage) error {
	matched := false
	for _, m := range r.mappings {
		if m.pattern.MatchString(msg.ToAddr) {
			matched = true
			if err := r.d.PublishInboundMessage(ctx, m.name, msg.Copy()); err != nil {
				return err
			}
		}
	}
	if !matched {
		logger := r.d.Logger()
		logger.Error().
			Str("to_addr", msg.ToAddr).
			Str("message_id", msg.MessageID).
			Msg("no toaddr mapping matched inbound message")
	}
	return nil
}

// DispatchInboundEvent drops events. Routing an event to wherever its
// user_message_id was originally dispatched needs a return-route store
// this router does not keep; until that is specified the hook only
// logs.
func (r *ToAddr) DispatchInboundEvent(_ context.Context, ev *core.Event) error {
	logger := r.d.Logger()
	logger.Debug().
		Str("user_message_id", ev.UserMessageID).
		Msg("toaddr router drops events")
	return nil
}

func (r *ToAddr) DispatchOutboundMessage(ctx context.Context, msg *core.UserMessage) error {
	return r.outbound.Dispatch(ctx, msg)
}
