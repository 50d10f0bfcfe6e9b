package feed

import (
	"context"
	"errors"

	"github.com/gosuda/crewdeck/internal/domain"
)

// Sink receives outward messages in emission order per run. The UI sink,
// the history recorder and the notifier all implement it.
type Sink interface {
	Deliver(ctx context.Context, msg *domain.OutwardMessage) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, msg *domain.OutwardMessage) error

func (f SinkFunc) Deliver(ctx context.Context, msg *domain.OutwardMessage) error {
	return f(ctx, msg)
}

// FanoutSink delivers to every child sink and joins their errors, so one
// failing collaborator (say, history persistence) never starves the others.
type FanoutSink []Sink

func (s FanoutSink) Deliver(ctx context.Context, msg *domain.OutwardMessage) error {
	var errs []error
	for _, sink := range s {
		if err := sink.Deliver(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
