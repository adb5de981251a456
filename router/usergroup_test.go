package router_test

import (
	"context"
	"errors"
	"testing"

	"github.com/miladsoleymani/dispatchmux/core"
	"github.com/miladsoleymani/dispatchmux/kv"
	"github.com/miladsoleymani/dispatchmux/router"
)

func userGroupConfig() *core.Config {
	return &core.Config{
		DispatcherName: "ab-dispatcher",
		TransportNames: []string{"sms"},
		ExposedNames:   []string{"appA", "appB"},
		GroupMappings: map[string]string{
			"group-a": "appA",
			"group-b": "appB",
		},
	}
}

func dispatchFrom(t *testing.T, r *router.UserGrouping, user string) {
	t.Helper()
	msg := core.NewUserMessage("sms", "+999", user, "hi")
	if err := r.DispatchInboundMessage(context.Background(), msg); err != nil {
		t.Fatalf("dispatch from %s: %v", user, err)
	}
}

func TestUserGroupingConfigErrors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*core.Config)
	}{
		{"no group mappings", func(cfg *core.Config) { cfg.GroupMappings = nil }},
		{"no dispatcher name", func(cfg *core.Config) { cfg.DispatcherName = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := userGroupConfig()
			tc.mutate(cfg)
			d, _ := newDispatcher(t, cfg)

			var confErr *core.ConfigError
			if _, err := router.NewUserGrouping(d, cfg, kv.NewMemory()); err == nil {
				t.Fatal("expected config error")
			} else if !errors.As(err, &confErr) {
				t.Errorf("err = %v, want *core.ConfigError", err)
			}
		})
	}
}

func TestUserGroupingRoundRobinAssignment(t *testing.T) {
	cfg := userGroupConfig()
	d, mb := newDispatcher(t, cfg)
	store := kv.NewMemory()
	r, err := router.NewUserGrouping(d, cfg, store)
	if err != nil {
		t.Fatal(err)
	}

	// New users alternate between groups in sorted group order; a
	// returning user keeps their original assignment.
	dispatchFrom(t, r, "+100") // group-a
	dispatchFrom(t, r, "+200") // group-b
	dispatchFrom(t, r, "+300") // group-a
	dispatchFrom(t, r, "+100") // still group-a

	requirePublished(t, mb, "appA.inbound", 3)
	requirePublished(t, mb, "appB.inbound", 1)

	// The store records the group name under the dispatcher prefix.
	group, err := store.Get(context.Background(), "ab-dispatcher:user:+100")
	if err != nil {
		t.Fatalf("stored assignment: %v", err)
	}
	if group != "group-a" {
		t.Errorf("stored group = %q, want %q", group, "group-a")
	}
}

func TestUserGroupingReassignsAfterEviction(t *testing.T) {
	cfg := userGroupConfig()
	d, mb := newDispatcher(t, cfg)
	store := kv.NewMemory()
	r, err := router.NewUserGrouping(d, cfg, store)
	if err != nil {
		t.Fatal(err)
	}

	dispatchFrom(t, r, "+100") // group-a, counter now 1

	// Simulate store eviction: the user is assigned afresh and the
	// round-robin counter keeps advancing.
	store.Delete("ab-dispatcher:user:+100")
	dispatchFrom(t, r, "+100") // counter 2, group-b

	requirePublished(t, mb, "appA.inbound", 1)
	requirePublished(t, mb, "appB.inbound", 1)
}

func TestUserGroupingEventsUseRouteMappings(t *testing.T) {
	cfg := userGroupConfig()
	cfg.RouteMappings = map[string][]string{"sms": {"appA"}}
	d, mb := newDispatcher(t, cfg)
	r, err := router.NewUserGrouping(d, cfg, kv.NewMemory())
	if err != nil {
		t.Fatal(err)
	}

	ev := core.NewEvent(core.EventAck, "m1", "sms")
	if err := r.DispatchInboundEvent(context.Background(), ev); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	requirePublished(t, mb, "appA.event", 1)
}

func TestUserGroupingEventsDropWithoutRouteMappings(t *testing.T) {
	cfg := userGroupConfig()
	d, mb := newDispatcher(t, cfg)
	r, err := router.NewUserGrouping(d, cfg, kv.NewMemory())
	if err != nil {
		t.Fatal(err)
	}

	ev := core.NewEvent(core.EventAck, "m1", "sms")
	if err := r.DispatchInboundEvent(context.Background(), ev); err != nil {
		t.Fatalf("events without route mappings must drop silently, got %v", err)
	}
	if queues := mb.PublishedQueues(); len(queues) != 0 {
		t.Errorf("unexpected publishes: %v", queues)
	}
}

func TestUserGroupingOutbound(t *testing.T) {
	cfg := userGroupConfig()
	d, mb := newDispatcher(t, cfg)
	r, err := router.NewUserGrouping(d, cfg, kv.NewMemory())
	if err != nil {
		t.Fatal(err)
	}

	msg := core.NewUserMessage("sms", "+100", "+999", "reply")
	if err := r.DispatchOutboundMessage(context.Background(), msg); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	requirePublished(t, mb, "sms.outbound", 1)
}
