// Package middleware provides the dispatcher's middleware registry and
// the middlewares shipped with it. Middlewares listed in configuration
// are constructed at startup with the dispatcher handle and their
// configuration subtree, then assembled into the stack in declared
// order.
package middleware

import (
	"fmt"
	"sync"

	"github.com/miladsoleymani/dispatchmux/core"
)

// Factory creates a Middleware from its configuration subtree.
type Factory func(d *core.Dispatcher, conf map[string]any) (core.Middleware, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register adds a named middleware factory.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = factory
}

// Create instantiates a middleware by name.
func Create(name string, d *core.Dispatcher, conf map[string]any) (core.Middleware, error) {
	mu.RLock()
	f, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("dispatchmux: unknown middleware %q", name)
	}
	return f(d, conf)
}

// StackFromConfig builds the middleware stack declared in cfg.
func StackFromConfig(d *core.Dispatcher, cfg *core.Config) (*core.MiddlewareStack, error) {
	middlewares := make([]core.Middleware, 0, len(cfg.Middleware))
	for _, spec := range cfg.Middleware {
		mw, err := Create(spec.Name, d, spec.Config)
		if err != nil {
			return nil, err
		}
		middlewares = append(middlewares, mw)
	}
	return core.NewMiddlewareStack(middlewares...), nil
}

func init() {
	Register("logging", func(d *core.Dispatcher, _ map[string]any) (core.Middleware, error) {
		return NewLogging(d), nil
	})
	Register("storing", NewStoringFromConfig)
	Register("normalize_msisdn", NewNormalizeFromConfig)
}

func stringOption(conf map[string]any, key, fallback string) string {
	if conf == nil {
		return fallback
	}
	if v, ok := conf[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func intOption(conf map[string]any, key string, fallback int) int {
	if conf == nil {
		return fallback
	}
	if v, ok := conf[key].(int); ok {
		return v
	}
	return fallback
}
