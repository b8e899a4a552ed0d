package events

import (
	"context"
	"errors"
)

// Sink receives committed draft events. Delivery is at-least-once, so
// implementations must tolerate seeing the same EventID twice.
type Sink interface {
	Publish(ctx context.Context, evt Envelope) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, evt Envelope) error

func (f SinkFunc) Publish(ctx context.Context, evt Envelope) error { return f(ctx, evt) }

// MultiSink publishes to every sink and joins their errors. Callers that
// retry should retry each member on its own, see Flatten.
type MultiSink []Sink

func (m MultiSink) Publish(ctx context.Context, evt Envelope) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Flatten returns the leaf sinks of s, expanding nested MultiSinks.
func Flatten(s Sink) []Sink {
	m, ok := s.(MultiSink)
	if !ok {
		return []Sink{s}
	}
	var out []Sink
	for _, inner := range m {
		out = append(out, Flatten(inner)...)
	}
	return out
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(context.Context, Envelope) error { return nil })
