package router_test

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/miladsoleymani/dispatchmux/core"
	"github.com/miladsoleymani/dispatchmux/internal/mock"
)

func newDispatcher(t *testing.T, cfg *core.Config) (*core.Dispatcher, *mock.Broker) {
	t.Helper()
	mb := mock.NewBroker()
	d, err := core.NewDispatcher(mb, cfg, core.WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	return d, mb
}

func decodeMessage(t *testing.T, payload []byte) *core.UserMessage {
	t.Helper()
	msg, err := core.DecodeUserMessage(payload)
	if err != nil {
		t.Fatalf("decode published message: %v", err)
	}
	return msg
}

func decodeEvent(t *testing.T, payload []byte) *core.Event {
	t.Helper()
	ev, err := core.DecodeEvent(payload)
	if err != nil {
		t.Fatalf("decode published event: %v", err)
	}
	return ev
}

func requirePublished(t *testing.T, mb *mock.Broker, queue string, want int) [][]byte {
	t.Helper()
	got := mb.Published(queue)
	if len(got) != want {
		t.Fatalf("published %d messages to %q, want %d", len(got), queue, want)
	}
	return got
}

// instanceRecorder captures every user-message instance that passes
// through the middleware stack, for fan-out independence checks.
type instanceRecorder struct {
	core.MiddlewareBase
	mu   sync.Mutex
	seen []*core.UserMessage
}

func (r *instanceRecorder) HandleInbound(_ context.Context, msg *core.UserMessage, _ string) (*core.UserMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, msg)
	return msg, nil
}

func (r *instanceRecorder) HandleOutbound(_ context.Context, msg *core.UserMessage, _ string) (*core.UserMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, msg)
	return msg, nil
}

func (r *instanceRecorder) instances() []*core.UserMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*core.UserMessage, len(r.seen))
	copy(out, r.seen)
	return out
}
