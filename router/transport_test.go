package router_test

import (
	"context"
	"testing"

	"github.com/miladsoleymani/dispatchmux/core"
	"github.com/miladsoleymani/dispatchmux/router"
)

func transportConfig() *core.Config {
	return &core.Config{
		DispatcherName: "bridge-dispatcher",
		TransportNames: []string{"sms_a", "sms_b", "sms_c"},
		ExposedNames:   []string{"unused"},
		RouteMappings:  map[string][]string{"sms_a": {"sms_b", "sms_c"}},
	}
}

func TestTransportToTransportInbound(t *testing.T) {
	cfg := transportConfig()
	d, mb := newDispatcher(t, cfg)
	rec := &instanceRecorder{}
	d.SetMiddleware(core.NewMiddlewareStack(rec))

	r, err := router.NewTransportToTransport(d, cfg)
	if err != nil {
		t.Fatal(err)
	}

	msg := core.NewUserMessage("sms_a", "+1", "+2", "forward me")
	if err := r.DispatchInboundMessage(context.Background(), msg); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	for _, queue := range []string{"sms_b.outbound", "sms_c.outbound"} {
		got := decodeMessage(t, requirePublished(t, mb, queue, 1)[0])
		if got.Content != "forward me" {
			t.Errorf("%s: content = %q", queue, got.Content)
		}
	}

	seen := rec.instances()
	if len(seen) != 2 || seen[0] == seen[1] {
		t.Errorf("fan-out published shared instances: %d seen", len(seen))
	}
}

func TestTransportToTransportDiscardsEvents(t *testing.T) {
	cfg := transportConfig()
	d, mb := newDispatcher(t, cfg)
	r, err := router.NewTransportToTransport(d, cfg)
	if err != nil {
		t.Fatal(err)
	}

	ev := core.NewEvent(core.EventAck, "m1", "sms_a")
	if err := r.DispatchInboundEvent(context.Background(), ev); err != nil {
		t.Fatalf("events must be discarded without error, got %v", err)
	}
	if queues := mb.PublishedQueues(); len(queues) != 0 {
		t.Errorf("discarded event was published: %v", queues)
	}
}

func TestTransportToTransportIgnoresOutbound(t *testing.T) {
	cfg := transportConfig()
	d, mb := newDispatcher(t, cfg)
	r, err := router.NewTransportToTransport(d, cfg)
	if err != nil {
		t.Fatal(err)
	}

	msg := core.NewUserMessage("sms_a", "+1", "+2", "reply")
	if err := r.DispatchOutboundMessage(context.Background(), msg); err != nil {
		t.Fatalf("outbound must be a no-op, got %v", err)
	}
	if queues := mb.PublishedQueues(); len(queues) != 0 {
		t.Errorf("outbound message was published: %v", queues)
	}
}
