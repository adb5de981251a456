package middleware

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/miladsoleymani/dispatchmux/core"
	"github.com/miladsoleymani/dispatchmux/internal/mock"
)

func testDispatcher(t *testing.T) *core.Dispatcher {
	t.Helper()
	cfg := &core.Config{
		DispatcherName: "mw-dispatcher",
		TransportNames: []string{"smpp"},
		ExposedNames:   []string{"app"},
	}
	d, err := core.NewDispatcher(mock.NewBroker(), cfg, core.WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	return d
}

func TestCreateUnknownMiddleware(t *testing.T) {
	if _, err := Create("nope", testDispatcher(t), nil); err == nil {
		t.Error("expected error for unknown middleware")
	}
}

func TestStackFromConfig(t *testing.T) {
	d := testDispatcher(t)
	cfg := d.Config()
	cfg.Middleware = []core.MiddlewareSpec{
		{Name: "normalize_msisdn", Config: map[string]any{"country_code": "27"}},
		{Name: "logging"},
	}

	stack, err := StackFromConfig(d, cfg)
	if err != nil {
		t.Fatalf("stack: %v", err)
	}

	// The assembled stack applies declared middlewares in order: the
	// normalizer runs on consume, so from_addr comes out normalized.
	msg := core.NewUserMessage("smpp", "+27123", "0761234567", "hi")
	out, err := stack.ApplyConsume(context.Background(), core.DirectionInbound, msg, "smpp")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if out.FromAddr != "+27761234567" {
		t.Errorf("from_addr = %q, want normalized", out.FromAddr)
	}
}

func TestStackFromConfigBadMiddleware(t *testing.T) {
	d := testDispatcher(t)
	cfg := d.Config()
	cfg.Middleware = []core.MiddlewareSpec{{Name: "does_not_exist"}}
	if _, err := StackFromConfig(d, cfg); err == nil {
		t.Error("expected error for unregistered middleware")
	}
}

func TestRegisterCustomMiddleware(t *testing.T) {
	Register("custom_test", func(_ *core.Dispatcher, _ map[string]any) (core.Middleware, error) {
		return &core.MiddlewareBase{}, nil
	})
	mw, err := Create("custom_test", testDispatcher(t), nil)
	if err != nil || mw == nil {
		t.Errorf("Create = %v, %v", mw, err)
	}
}
