package core_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/miladsoleymani/dispatchmux/core"
)

const sampleConfig = `
dispatcher_name: keyword-dispatcher
transport_names:
  - smpp
exposed_names:
  - quiz
  - info
router_class: content_keyword
middleware:
  - name: logging
rules:
  - app: quiz
    keyword: PLAY
    prefix: "+27"
keyword_mappings:
  info: help
fallback_application: info
transport_mappings:
  "+111": smpp
expire_routing_memory: 3600
redis_config:
  host: redis.internal
  port: 6380
  db: 2
`

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dispatcher.yaml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := core.LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.RouterClass != "content_keyword" {
		t.Errorf("router_class = %q", cfg.RouterClass)
	}
	if len(cfg.Rules) != 1 || cfg.Rules[0].Keyword != "PLAY" || cfg.Rules[0].Prefix != "+27" {
		t.Errorf("rules = %+v", cfg.Rules)
	}
	if cfg.KeywordMappings["info"] != "help" {
		t.Errorf("keyword_mappings = %+v", cfg.KeywordMappings)
	}
	if cfg.TransportMappings["+111"] != "smpp" {
		t.Errorf("transport_mappings = %+v", cfg.TransportMappings)
	}
	if cfg.Redis.Addr() != "redis.internal:6380" || cfg.Redis.DB != 2 {
		t.Errorf("redis_config = %+v", cfg.Redis)
	}
	if cfg.RoutingExpiry() != 3600 {
		t.Errorf("routing expiry = %d", cfg.RoutingExpiry())
	}
	if len(cfg.Middleware) != 1 || cfg.Middleware[0].Name != "logging" {
		t.Errorf("middleware = %+v", cfg.Middleware)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := core.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  core.Config
		ok   bool
	}{
		{"valid", core.Config{TransportNames: []string{"t1"}, ExposedNames: []string{"a1"}}, true},
		{"no transports", core.Config{ExposedNames: []string{"a1"}}, false},
		{"no exposed", core.Config{TransportNames: []string{"t1"}}, false},
		{"duplicate name", core.Config{TransportNames: []string{"x"}, ExposedNames: []string{"x"}}, false},
		{"empty name", core.Config{TransportNames: []string{""}, ExposedNames: []string{"a1"}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Error("expected a config error")
			}
		})
	}
}

func TestRoutingExpiryDefault(t *testing.T) {
	cfg := core.Config{}
	if got := cfg.RoutingExpiry(); got != core.DefaultRoutingExpiry {
		t.Errorf("default expiry = %d, want %d", got, core.DefaultRoutingExpiry)
	}
}
