package middleware

import (
	"context"

	"github.com/miladsoleymani/dispatchmux/core"
	"github.com/miladsoleymani/dispatchmux/kv"
)

// DefaultStorePrefix is the key prefix used by the storing middleware
// when none is configured.
const DefaultStorePrefix = "message_store"

// Storing persists every inbound and outbound message and every event
// to the KV store, keyed by id under the configured prefix. A storage
// failure drops the message from the pipeline; the dispatch task logs
// it.
//
// Failures are not stored; failure workers keep their own records.
type Storing struct {
	core.MiddlewareBase
	prefix string
	store  kv.Store
}

// NewStoring creates the storing middleware on the given store.
func NewStoring(prefix string, store kv.Store) *Storing {
	if prefix == "" {
		prefix = DefaultStorePrefix
	}
	return &Storing{prefix: prefix, store: store}
}

// NewStoringFromConfig builds the middleware from its configuration
// subtree: store_prefix and a redis connection block.
func NewStoringFromConfig(_ *core.Dispatcher, conf map[string]any) (core.Middleware, error) {
	redisConf := kv.RedisConfig{}
	if sub, ok := conf["redis"].(map[string]any); ok {
		redisConf.Host = stringOption(sub, "host", "")
		redisConf.Port = intOption(sub, "port", 0)
		redisConf.DB = intOption(sub, "db", 0)
		redisConf.Password = stringOption(sub, "password", "")
	}
	return NewStoring(stringOption(conf, "store_prefix", DefaultStorePrefix), kv.OpenRedis(redisConf)), nil
}

func (s *Storing) HandleInbound(ctx context.Context, msg *core.UserMessage, _ string) (*core.UserMessage, error) {
	if err := s.storeMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *Storing) HandleOutbound(ctx context.Context, msg *core.UserMessage, _ string) (*core.UserMessage, error) {
	if err := s.storeMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *Storing) HandleEvent(ctx context.Context, ev *core.Event, _ string) (*core.Event, error) {
	data, err := ev.Encode()
	if err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, kv.Key(s.prefix, "event", ev.EventID), string(data)); err != nil {
		return nil, err
	}
	return ev, nil
}

func (s *Storing) storeMessage(ctx context.Context, msg *core.UserMessage) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	return s.store.Set(ctx, kv.Key(s.prefix, "message", msg.MessageID), string(data))
}
