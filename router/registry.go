// Package router implements the pluggable routing logic of the
// dispatcher: a registry of named router factories and the concrete
// routers they build.
package router

import (
	"fmt"
	"sync"

	"github.com/miladsoleymani/dispatchmux/core"
	"github.com/miladsoleymani/dispatchmux/kv"
)

// Factory creates a Router for the given dispatcher and configuration.
type Factory func(d *core.Dispatcher, cfg *core.Config) (core.Router, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register adds a named router factory. The routers in this package
// register themselves from init().
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = factory
}

// Create instantiates the router named by cfg's router_class.
func Create(name string, d *core.Dispatcher, cfg *core.Config) (core.Router, error) {
	mu.RLock()
	f, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("dispatchmux: unknown router class %q", name)
	}
	return f(d, cfg)
}

func init() {
	Register("simple", func(d *core.Dispatcher, cfg *core.Config) (core.Router, error) {
		return NewSimple(d, cfg)
	})
	Register("transport", func(d *core.Dispatcher, cfg *core.Config) (core.Router, error) {
		return NewTransportToTransport(d, cfg)
	})
	Register("toaddr", func(d *core.Dispatcher, cfg *core.Config) (core.Router, error) {
		return NewToAddr(d, cfg)
	})
	Register("fromaddr_multiplex", func(d *core.Dispatcher, cfg *core.Config) (core.Router, error) {
		return NewFromAddrMultiplex(d, cfg)
	})
	Register("user_grouping", func(d *core.Dispatcher, cfg *core.Config) (core.Router, error) {
		return NewUserGrouping(d, cfg, kv.OpenRedis(cfg.Redis))
	})
	Register("content_keyword", func(d *core.Dispatcher, cfg *core.Config) (core.Router, error) {
		return NewContentKeyword(d, cfg, kv.OpenRedis(cfg.Redis))
	})
	Register("redirect_outbound", func(d *core.Dispatcher, cfg *core.Config) (core.Router, error) {
		return NewRedirectOutbound(d, cfg)
	})
}
