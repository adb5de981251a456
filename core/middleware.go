package core

import "context"

// Direction tags which pipeline a message is flowing through.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
	DirectionEvent    Direction = "event"
	DirectionFailure  Direction = "failure"
)

// Middleware transforms messages as they pass through the dispatcher.
// The consume chain runs each handler in declared order on ingress; the
// publish chain runs them in reverse declared order on egress.
//
// A handler may return a transformed message, the input unchanged, or
// nil with a nil error to drop the message and suppress any further
// pipeline execution and the eventual publish. A non-nil error aborts
// the pipeline and is handled at the dispatch task boundary.
//
// Middleware instances are shared across concurrent dispatch tasks and
// must be stateless or internally synchronized.
type Middleware interface {
	HandleInbound(ctx context.Context, msg *UserMessage, endpoint string) (*UserMessage, error)
	HandleOutbound(ctx context.Context, msg *UserMessage, endpoint string) (*UserMessage, error)
	HandleEvent(ctx context.Context, ev *Event, endpoint string) (*Event, error)
	HandleFailure(ctx context.Context, f *FailureMessage, endpoint string) (*FailureMessage, error)
}

// MiddlewareBase is a pass-through Middleware. Embed it and override
// only the directions the middleware cares about.
type MiddlewareBase struct{}

func (MiddlewareBase) HandleInbound(_ context.Context, msg *UserMessage, _ string) (*UserMessage, error) {
	return msg, nil
}

func (MiddlewareBase) HandleOutbound(_ context.Context, msg *UserMessage, _ string) (*UserMessage, error) {
	return msg, nil
}

func (MiddlewareBase) HandleEvent(_ context.Context, ev *Event, _ string) (*Event, error) {
	return ev, nil
}

func (MiddlewareBase) HandleFailure(_ context.Context, f *FailureMessage, _ string) (*FailureMessage, error) {
	return f, nil
}

// MiddlewareStack applies an ordered middleware sequence to messages.
// Construction happens once at dispatcher startup; the stack itself is
// immutable afterwards.
type MiddlewareStack struct {
	middlewares []Middleware
}

// NewMiddlewareStack creates a stack from the given middlewares in
// declared order.
func NewMiddlewareStack(middlewares ...Middleware) *MiddlewareStack {
	return &MiddlewareStack{middlewares: middlewares}
}

// ApplyConsume runs the user-message consume chain for the given
// direction (inbound or outbound). A nil result with a nil error means
// the message was dropped.
func (s *MiddlewareStack) ApplyConsume(ctx context.Context, dir Direction, msg *UserMessage, endpoint string) (*UserMessage, error) {
	for i := 0; i < len(s.middlewares); i++ {
		var err error
		msg, err = s.handle(ctx, s.middlewares[i], dir, msg, endpoint)
		if err != nil || msg == nil {
			return nil, err
		}
	}
	return msg, nil
}

// ApplyPublish runs the user-message publish chain for the given
// direction, in reverse declared order.
func (s *MiddlewareStack) ApplyPublish(ctx context.Context, dir Direction, msg *UserMessage, endpoint string) (*UserMessage, error) {
	for i := len(s.middlewares) - 1; i >= 0; i-- {
		var err error
		msg, err = s.handle(ctx, s.middlewares[i], dir, msg, endpoint)
		if err != nil || msg == nil {
			return nil, err
		}
	}
	return msg, nil
}

// ApplyConsumeEvent runs the event consume chain in declared order.
func (s *MiddlewareStack) ApplyConsumeEvent(ctx context.Context, ev *Event, endpoint string) (*Event, error) {
	for i := 0; i < len(s.middlewares); i++ {
		var err error
		ev, err = s.middlewares[i].HandleEvent(ctx, ev, endpoint)
		if err != nil || ev == nil {
			return nil, err
		}
	}
	return ev, nil
}

// ApplyPublishEvent runs the event publish chain in reverse declared order.
func (s *MiddlewareStack) ApplyPublishEvent(ctx context.Context, ev *Event, endpoint string) (*Event, error) {
	for i := len(s.middlewares) - 1; i >= 0; i-- {
		var err error
		ev, err = s.middlewares[i].HandleEvent(ctx, ev, endpoint)
		if err != nil || ev == nil {
			return nil, err
		}
	}
	return ev, nil
}

// ApplyConsumeFailure runs the failure consume chain in declared order.
// The dispatcher core attaches no failure consumers itself; external
// failure workers share the stack through this entry point.
func (s *MiddlewareStack) ApplyConsumeFailure(ctx context.Context, f *FailureMessage, endpoint string) (*FailureMessage, error) {
	for i := 0; i < len(s.middlewares); i++ {
		var err error
		f, err = s.middlewares[i].HandleFailure(ctx, f, endpoint)
		if err != nil || f == nil {
			return nil, err
		}
	}
	return f, nil
}

func (s *MiddlewareStack) handle(ctx context.Context, mw Middleware, dir Direction, msg *UserMessage, endpoint string) (*UserMessage, error) {
	if dir == DirectionOutbound {
		return mw.HandleOutbound(ctx, msg, endpoint)
	}
	return mw.HandleInbound(ctx, msg, endpoint)
}
