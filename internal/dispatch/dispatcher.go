package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/teamflow/notification-worker/internal/domain"
)

// Handler processes the raw payload of one job kind.
type Handler interface {
	Kind() domain.JobKind
	Handle(ctx context.Context, payload []byte) error
}

// Dispatcher routes a queue message to the handler registered for its kind.
type Dispatcher struct {
	handlers map[domain.JobKind]Handler
}

func New() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[domain.JobKind]Handler),
	}
}

// Register adds a handler for its declared kind. Registering the same kind
// twice is a wiring bug, so it panics at startup rather than silently
// shadowing the earlier handler.
func (d *Dispatcher) Register(h Handler) {
	if _, exists := d.handlers[h.Kind()]; exists {
		panic(fmt.Sprintf("dispatch: handler for kind %q already registered", h.Kind()))
	}
	d.handlers[h.Kind()] = h
}

// Dispatch decodes the envelope, routes the body to the matching handler,
// and propagates the handler's outcome unchanged. The returned kind labels
// observability hooks even when the handler fails.
//
// A job with no registered handler and a body that is not valid JSON are
// both non-retryable: the pool acknowledges them as dropped, since
// redelivering a permanently-unroutable job would loop forever.
func (d *Dispatcher) Dispatch(ctx context.Context, body []byte) (domain.JobKind, error) {
	var env domain.JobEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", domain.NonRetryable(fmt.Errorf("%w: %w", domain.ErrMalformedJob, err))
	}

	h, ok := d.handlers[env.Kind]
	if !ok {
		return env.Kind, domain.NonRetryable(
			fmt.Errorf("%w: %q", domain.ErrUnknownJobKind, env.Kind))
	}

	return env.Kind, h.Handle(ctx, body)
}
