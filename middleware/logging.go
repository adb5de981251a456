package middleware

import (
	"context"

	"github.com/miladsoleymani/dispatchmux/core"
)

// Logging logs every message passing through the stack. Messages are
// never transformed or dropped.
type Logging struct {
	core.MiddlewareBase
	d *core.Dispatcher
}

// NewLogging creates the logging middleware.
func NewLogging(d *core.Dispatcher) *Logging {
	return &Logging{d: d}
}

func (l *Logging) HandleInbound(_ context.Context, msg *core.UserMessage, endpoint string) (*core.UserMessage, error) {
	logger := l.d.Logger()
	logger.Info().
		Str("direction", string(core.DirectionInbound)).
		Str("endpoint", endpoint).
		Str("message_id", msg.MessageID).
		Str("from_addr", msg.FromAddr).
		Str("to_addr", msg.ToAddr).
		Msg("message")
	return msg, nil
}

func (l *Logging) HandleOutbound(_ context.Context, msg *core.UserMessage, endpoint string) (*core.UserMessage, error) {
	logger := l.d.Logger()
	logger.Info().
		Str("direction", string(core.DirectionOutbound)).
		Str("endpoint", endpoint).
		Str("message_id", msg.MessageID).
		Str("from_addr", msg.FromAddr).
		Str("to_addr", msg.ToAddr).
		Msg("message")
	return msg, nil
}

func (l *Logging) HandleEvent(_ context.Context, ev *core.Event, endpoint string) (*core.Event, error) {
	logger := l.d.Logger()
	logger.Info().
		Str("direction", string(core.DirectionEvent)).
		Str("endpoint", endpoint).
		Str("event_type", string(ev.EventType)).
		Str("user_message_id", ev.UserMessageID).
		Msg("event")
	return ev, nil
}

func (l *Logging) HandleFailure(_ context.Context, f *core.FailureMessage, endpoint string) (*core.FailureMessage, error) {
	logger := l.d.Logger()
	logger.Warn().
		Str("direction", string(core.DirectionFailure)).
		Str("endpoint", endpoint).
		Str("reason", f.Reason).
		Msg("failure")
	return f, nil
}
