package core

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/miladsoleymani/dispatchmux/kv"
)

// DefaultRoutingExpiry is how long return-route records are kept, in
// seconds (seven days).
const DefaultRoutingExpiry = 60 * 60 * 24 * 7

// Rule is a content-keyword routing rule. Keyword matching is
// case-insensitive; ToAddr is an exact match and Prefix a from_addr
// prefix match, both optional.
type Rule struct {
	App     string `yaml:"app"`
	Keyword string `yaml:"keyword"`
	ToAddr  string `yaml:"to_addr"`
	Prefix  string `yaml:"prefix"`
}

// MiddlewareSpec names a registered middleware and carries its
// configuration subtree.
type MiddlewareSpec struct {
	Name   string         `yaml:"name"`
	Config map[string]any `yaml:"config"`
}

// Config holds every recognized dispatcher option. Router-specific
// subtrees are only consulted by the router they belong to.
type Config struct {
	DispatcherName string   `yaml:"dispatcher_name"`
	TransportNames []string `yaml:"transport_names"`
	ExposedNames   []string `yaml:"exposed_names"`
	RouterClass    string   `yaml:"router_class"`

	Middleware []MiddlewareSpec `yaml:"middleware"`

	// Simple / TransportToTransport / UserGrouping fallback routing.
	RouteMappings     map[string][]string `yaml:"route_mappings"`
	TransportMappings map[string]string   `yaml:"transport_mappings"`

	// ToAddr router.
	ToAddrMappings map[string]string `yaml:"toaddr_mappings"`

	// FromAddrMultiplex router.
	FromAddrMappings map[string]string `yaml:"fromaddr_mappings"`

	// UserGrouping router.
	GroupMappings map[string]string `yaml:"group_mappings"`

	// ContentKeyword router.
	Rules               []Rule            `yaml:"rules"`
	KeywordMappings     map[string]string `yaml:"keyword_mappings"`
	FallbackApplication string            `yaml:"fallback_application"`
	ExpireRoutingMemory int               `yaml:"expire_routing_memory"`

	// RedirectOutbound router.
	RedirectOutbound map[string]string `yaml:"redirect_outbound"`

	Redis kv.RedisConfig `yaml:"redis_config"`
}

// LoadConfig reads a dispatcher configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dispatchmux: read config %q: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("dispatchmux: parse config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the options every dispatcher requires. Router-specific
// validation happens in the router's own setup.
func (c *Config) Validate() error {
	if len(c.TransportNames) == 0 {
		return NewConfigError("transport_names is required")
	}
	if len(c.ExposedNames) == 0 {
		return NewConfigError("exposed_names is required")
	}
	seen := make(map[string]bool, len(c.TransportNames)+len(c.ExposedNames))
	for _, name := range append(append([]string{}, c.TransportNames...), c.ExposedNames...) {
		if name == "" {
			return NewConfigError("endpoint names must not be empty")
		}
		if seen[name] {
			return NewConfigError("duplicate endpoint name %q", name)
		}
		seen[name] = true
	}
	return nil
}

// RoutingExpiry returns the configured return-route expiry, applying
// the seven day default.
func (c *Config) RoutingExpiry() int {
	if c.ExpireRoutingMemory > 0 {
		return c.ExpireRoutingMemory
	}
	return DefaultRoutingExpiry
}
