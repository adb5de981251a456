// Package dispatchmux provides the top-level API for the DispatchMux
// message dispatcher. It wires a broker, configuration, middleware and
// router into a running dispatcher:
//
//	cfg, _ := dispatchmux.LoadConfig("dispatcher.yaml")
//	b, _ := broker.Create("rabbitmq", busCfg)
//	d, _ := dispatchmux.New(b, cfg)
//	d.Start(ctx)
package dispatchmux

import (
	"github.com/miladsoleymani/dispatchmux/core"
	"github.com/miladsoleymani/dispatchmux/middleware"
	"github.com/miladsoleymani/dispatchmux/router"
)

// Re-export core types at the package level for ergonomic usage.
type (
	Broker      = core.Broker
	Message     = core.Message
	Config      = core.Config
	Dispatcher  = core.Dispatcher
	Router      = core.Router
	Middleware  = core.Middleware
	UserMessage = core.UserMessage
	Event       = core.Event
)

// LoadConfig reads and validates a dispatcher configuration file.
func LoadConfig(path string) (*Config, error) {
	return core.LoadConfig(path)
}

// New creates a fully wired dispatcher: the middleware stack declared
// in the configuration and the router named by router_class.
func New(b Broker, cfg *Config, opts ...core.Option) (*Dispatcher, error) {
	if cfg.RouterClass == "" {
		return nil, core.NewConfigError("router_class is required")
	}
	d, err := core.NewDispatcher(b, cfg, opts...)
	if err != nil {
		return nil, err
	}
	stack, err := middleware.StackFromConfig(d, cfg)
	if err != nil {
		return nil, err
	}
	d.SetMiddleware(stack)
	r, err := router.Create(cfg.RouterClass, d, cfg)
	if err != nil {
		return nil, err
	}
	d.SetRouter(r)
	return d, nil
}
