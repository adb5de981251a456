package router

import (
	"context"
	"errors"
	"sort"

	"github.com/miladsoleymani/dispatchmux/core"
	"github.com/miladsoleymani/dispatchmux/kv"
)

// UserGrouping round-robin assigns each unique user to one of the
// configured groups and routes all their inbound messages to the
// application mapped to that group. Useful for A/B testing.
//
// Assignments and the round-robin counter live in the KV store under
// the dispatcher_name prefix, so multiple dispatcher processes sharing
// a store agree on assignments. Group names are iterated in sorted
// order to keep assignment deterministic across processes.
type UserGrouping struct {
	d      *core.Dispatcher
	prefix string
	groups map[string]string
	sorted []string
	store  kv.Store

	events   *Simple
	outbound *SimpleOutbound
}

// NewUserGrouping creates the router on the given KV store.
// group_mappings and dispatcher_name are required.
func NewUserGrouping(d *core.Dispatcher, cfg *core.Config, store kv.Store) (*UserGrouping, error) {
	if len(cfg.GroupMappings) == 0 {
		return nil, core.NewConfigError("group_mappings is required for the user grouping router")
	}
	if cfg.DispatcherName == "" {
		return nil, core.NewConfigError("dispatcher_name is required for the user grouping router")
	}

	sorted := make([]string, 0, len(cfg.GroupMappings))
	for name := range cfg.GroupMappings {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	r := &UserGrouping{
		d:        d,
		prefix:   cfg.DispatcherName,
		groups:   cfg.GroupMappings,
		sorted:   sorted,
		store:    store,
		outbound: NewSimpleOutbound(d, cfg.TransportMappings),
	}
	// Events fall through to simple routing when route_mappings is
	// configured.
	if len(cfg.RouteMappings) > 0 {
		r.events = &Simple{d: d, routes: cfg.RouteMappings, outbound: r.outbound}
	}
	return r, nil
}

func (r *UserGrouping) DispatchInboundMessage(ctx context.Context, msg *core.UserMessage) error {
	group, err := r.groupForUser(ctx, msg.User())
	if err != nil {
		logger := r.d.Logger()
		logger.Error().Err(err).
			Str("user", msg.User()).
			Str("message_id", msg.MessageID).
			Msg("group lookup failed, dropping message")
		return nil
	}
	app, ok := r.groups[group]
	if !ok {
		logger := r.d.Logger()
		logger.Error().
			Str("group", group).
			Str("message_id", msg.MessageID).
			Msg("stored group has no application mapping")
		return nil
	}
	return r.d.PublishInboundMessage(ctx, app, msg)
}

func (r *UserGrouping) DispatchInboundEvent(ctx context.Context, ev *core.Event) error {
	if r.events == nil {
		logger := r.d.Logger()
		logger.Error().
			Str("user_message_id", ev.UserMessageID).
			Msg("no route mapping for inbound event")
		return nil
	}
	return r.events.DispatchInboundEvent(ctx, ev)
}

func (r *UserGrouping) DispatchOutboundMessage(ctx context.Context, msg *core.UserMessage) error {
	return r.outbound.Dispatch(ctx, msg)
}

// groupForUser returns the user's group, assigning the next group in
// round-robin order on first sight. An assignment is stable until the
// KV entry is evicted.
func (r *UserGrouping) groupForUser(ctx context.Context, user string) (string, error) {
	userKey := kv.Key(r.prefix, "user", user)
	group, err := r.store.Get(ctx, userKey)
	if err == nil {
		return group, nil
	}
	if !errors.Is(err, kv.ErrNotFound) {
		return "", err
	}

	n, err := r.store.Incr(ctx, kv.Key(r.prefix, "round-robin"))
	if err != nil {
		return "", err
	}
	group = r.sorted[int((n-1)%int64(len(r.sorted)))]
	if err := r.store.Set(ctx, userKey, group); err != nil {
		return "", err
	}
	return group, nil
}
