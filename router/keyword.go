package router

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/miladsoleymani/dispatchmux/core"
	"github.com/miladsoleymani/dispatchmux/kv"
)

// ContentKeyword routes inbound messages on the first word of their
// content (the "keyword" in SMS campaigns). Outbound messages are
// demultiplexed onto transports by from_addr, and the transport name
// each outbound message carried is remembered in the KV store so that
// later delivery events can be returned to the application that sent
// the message.
type ContentKeyword struct {
	d        *core.Dispatcher
	prefix   string
	rules    []core.Rule
	fallback string
	// transport_mappings: from_addr -> transport name.
	transports map[string]string
	expiry     time.Duration
	store      kv.Store
}

// NewContentKeyword creates the router on the given KV store.
// Every rule must carry both app and keyword; keywords are lowercased
// at setup. The keyword_mappings convenience entries are appended
// after the rules list, in sorted application order.
func NewContentKeyword(d *core.Dispatcher, cfg *core.Config, store kv.Store) (*ContentKeyword, error) {
	if cfg.DispatcherName == "" {
		return nil, core.NewConfigError("dispatcher_name is required for the content keyword router")
	}
	if cfg.TransportMappings == nil {
		return nil, core.NewConfigError("transport_mappings is required for the content keyword router")
	}

	rules := make([]core.Rule, 0, len(cfg.Rules)+len(cfg.KeywordMappings))
	for _, rule := range cfg.Rules {
		if rule.App == "" || rule.Keyword == "" {
			return nil, core.NewConfigError(
				"rule %+v must contain values for both 'app' and 'keyword'", rule)
		}
		rule.Keyword = strings.ToLower(rule.Keyword)
		rules = append(rules, rule)
	}
	apps := make([]string, 0, len(cfg.KeywordMappings))
	for app := range cfg.KeywordMappings {
		apps = append(apps, app)
	}
	sort.Strings(apps)
	for _, app := range apps {
		rules = append(rules, core.Rule{
			App:     app,
			Keyword: strings.ToLower(cfg.KeywordMappings[app]),
		})
	}

	return &ContentKeyword{
		d:          d,
		prefix:     cfg.DispatcherName,
		rules:      rules,
		fallback:   cfg.FallbackApplication,
		transports: cfg.TransportMappings,
		expiry:     time.Duration(cfg.RoutingExpiry()) * time.Second,
		store:      store,
	}, nil
}

func (r *ContentKeyword) DispatchInboundMessage(ctx context.Context, msg *core.UserMessage) error {
	keyword := strings.ToLower(firstWord(msg.Content))
	matched := false
	for _, rule := range r.rules {
		if !ruleMatches(rule, keyword, msg) {
			continue
		}
		matched = true
		if err := r.d.PublishInboundMessage(ctx, rule.App, msg.Copy()); err != nil {
			return err
		}
	}
	if matched {
		return nil
	}
	if r.fallback != "" {
		// Sole consumer, no clone needed.
		return r.d.PublishInboundMessage(ctx, r.fallback, msg)
	}
	logger := r.d.Logger()
	logger.Error().
		Str("keyword", keyword).
		Str("message_id", msg.MessageID).
		Msg("message matched no keyword rule and no fallback is configured")
	return nil
}

// DispatchInboundEvent returns the event to the application that sent
// the message it reports on, using the recorded return route.
func (r *ContentKeyword) DispatchInboundEvent(ctx context.Context, ev *core.Event) error {
	name, err := r.store.Get(ctx, r.messageKey(ev.UserMessageID))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			logger := r.d.Logger()
			logger.Error().
				Str("user_message_id", ev.UserMessageID).
				Msg("no return route recorded for event")
		} else {
			logger := r.d.Logger()
			logger.Error().Err(err).
				Str("user_message_id", ev.UserMessageID).
				Msg("return route lookup failed, dropping event")
		}
		return nil
	}
	if err := r.d.PublishInboundEvent(ctx, name, ev); err != nil {
		logger := r.d.Logger()
		logger.Error().Err(err).
			Str("endpoint", name).
			Str("user_message_id", ev.UserMessageID).
			Msg("no publishing route for event")
	}
	return nil
}

// DispatchOutboundMessage publishes to the transport mapped to the
// message's from_addr and records the return route. The KV record is
// written only after the publish has been confirmed, and this method
// does not return until both completed, so an event consumed later
// always finds the record.
func (r *ContentKeyword) DispatchOutboundMessage(ctx context.Context, msg *core.UserMessage) error {
	name, ok := r.transports[msg.FromAddr]
	if !ok {
		logger := r.d.Logger()
		logger.Error().
			Str("from_addr", msg.FromAddr).
			Str("message_id", msg.MessageID).
			Msg("no transport mapped for outbound from_addr")
		return nil
	}
	if err := r.d.PublishOutboundMessage(ctx, name, msg); err != nil {
		return err
	}

	key := r.messageKey(msg.MessageID)
	if err := r.store.Set(ctx, key, msg.TransportName); err != nil {
		logger := r.d.Logger()
		logger.Error().Err(err).
			Str("message_id", msg.MessageID).
			Msg("failed to record return route")
		return nil
	}
	if err := r.store.Expire(ctx, key, r.expiry); err != nil {
		logger := r.d.Logger()
		logger.Error().Err(err).
			Str("message_id", msg.MessageID).
			Msg("failed to expire return route record")
	}
	return nil
}

func (r *ContentKeyword) messageKey(messageID string) string {
	return kv.Key(r.prefix, "message", messageID)
}

func ruleMatches(rule core.Rule, keyword string, msg *core.UserMessage) bool {
	return keyword == rule.Keyword &&
		(rule.ToAddr == "" || msg.ToAddr == rule.ToAddr) &&
		(rule.Prefix == "" || strings.HasPrefix(msg.FromAddr, rule.Prefix))
}

// firstWord returns the leading non-whitespace token of s, or the
// empty string when s is empty or blank.
func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
