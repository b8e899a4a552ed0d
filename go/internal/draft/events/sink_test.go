package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatten(t *testing.T) {
	a, b, c := Discard, SinkFunc(func(context.Context, Envelope) error { return nil }), Discard

	assert.Len(t, Flatten(a), 1)
	assert.Len(t, Flatten(MultiSink{a, MultiSink{b, MultiSink{c}}}), 3)
	assert.Empty(t, Flatten(MultiSink{}))
}

func TestMultiSink_JoinsErrors(t *testing.T) {
	errA := errors.New("a down")
	calls := 0
	ok := SinkFunc(func(context.Context, Envelope) error { calls++; return nil })
	bad := SinkFunc(func(context.Context, Envelope) error { calls++; return errA })

	err := MultiSink{bad, ok}.Publish(context.Background(), Envelope{})
	require.ErrorIs(t, err, errA)
	assert.Equal(t, 2, calls)
}
