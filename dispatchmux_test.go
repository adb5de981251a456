package dispatchmux_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/miladsoleymani/dispatchmux"
	"github.com/miladsoleymani/dispatchmux/core"
	"github.com/miladsoleymani/dispatchmux/internal/mock"
)

const wiringConfig = `
dispatcher_name: wired
transport_names:
  - sms
exposed_names:
  - app
router_class: simple
middleware:
  - name: normalize_msisdn
    config:
      country_code: "27"
route_mappings:
  sms:
    - app
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dispatcher.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewWiresRouterAndMiddleware(t *testing.T) {
	cfg, err := dispatchmux.LoadConfig(writeConfig(t, wiringConfig))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	mb := mock.NewBroker()
	d, err := dispatchmux.New(mb, cfg, core.WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)

	// A message consumed from the transport runs through the configured
	// middleware and router and comes out on the application queue.
	msg := core.NewUserMessage("sms", "+27123", "0761234567", "hi")
	payload, _ := msg.Encode()
	if err := mb.Deliver(ctx, "sms.inbound", payload); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	published := mb.Published("app.inbound")
	if len(published) != 1 {
		t.Fatalf("published %d messages to app.inbound, want 1", len(published))
	}
	out, err := core.DecodeUserMessage(published[0])
	if err != nil {
		t.Fatal(err)
	}
	if out.FromAddr != "+27761234567" {
		t.Errorf("from_addr = %q, want normalized", out.FromAddr)
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
}

func TestNewRequiresRouterClass(t *testing.T) {
	cfg := &dispatchmux.Config{
		DispatcherName: "wired",
		TransportNames: []string{"sms"},
		ExposedNames:   []string{"app"},
	}
	if _, err := dispatchmux.New(mock.NewBroker(), cfg); err == nil {
		t.Error("expected config error without router_class")
	}
}

func TestNewUnknownRouterClass(t *testing.T) {
	cfg := &dispatchmux.Config{
		DispatcherName: "wired",
		TransportNames: []string{"sms"},
		ExposedNames:   []string{"app"},
		RouterClass:    "does_not_exist",
	}
	if _, err := dispatchmux.New(mock.NewBroker(), cfg); err == nil {
		t.Error("expected error for unknown router class")
	}
}
