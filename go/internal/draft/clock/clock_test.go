package clock

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClock() (*PickClock, *clockwork.FakeClock, chan engine.TurnToken) {
	fc := clockwork.NewFakeClock()
	fired := make(chan engine.TurnToken, 8)
	pc := New(fc, func(tok engine.TurnToken) { fired <- tok })
	return pc, fc, fired
}

// receive one token with a timeout so tests never hang
func recvToken(t *testing.T, ch <-chan engine.TurnToken, within time.Duration) engine.TurnToken {
	t.Helper()
	select {
	case tok := <-ch:
		return tok
	case <-time.After(within):
		t.Fatalf("timed out waiting for pick timeout")
		return engine.TurnToken{}
	}
}

func recvNoToken(t *testing.T, ch <-chan engine.TurnToken, within time.Duration) {
	t.Helper()
	select {
	case tok := <-ch:
		t.Fatalf("expected no timeout within %v, got %+v", within, tok)
	case <-time.After(within):
	}
}

func TestPickClock_FiresOnceAfterDuration(t *testing.T) {
	pc, fc, fired := newTestClock()

	tok, err := pc.Arm(1, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, pc.Remaining())

	fc.Advance(4 * time.Second)
	recvNoToken(t, fired, 50*time.Millisecond)
	assert.Equal(t, time.Second, pc.Remaining())

	fc.Advance(time.Second)
	assert.Equal(t, tok, recvToken(t, fired, time.Second))

	fc.Advance(10 * time.Second)
	recvNoToken(t, fired, 50*time.Millisecond)
	assert.Zero(t, pc.Remaining())
}

func TestPickClock_RearmSupersedesPrevious(t *testing.T) {
	pc, fc, fired := newTestClock()

	first, err := pc.Arm(1, 5*time.Second)
	require.NoError(t, err)
	second, err := pc.Arm(2, 5*time.Second)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Greater(t, second.Seq, first.Seq)

	fc.Advance(5 * time.Second)
	assert.Equal(t, second, recvToken(t, fired, time.Second))
	recvNoToken(t, fired, 50*time.Millisecond)
}

func TestPickClock_CancelledNeverFires(t *testing.T) {
	pc, fc, fired := newTestClock()

	tok, err := pc.Arm(1, 5*time.Second)
	require.NoError(t, err)
	pc.Cancel(tok)

	fc.Advance(time.Minute)
	recvNoToken(t, fired, 50*time.Millisecond)
}

func TestPickClock_CancelWithStaleTokenKeepsCurrent(t *testing.T) {
	pc, fc, fired := newTestClock()

	old, err := pc.Arm(1, 5*time.Second)
	require.NoError(t, err)
	current, err := pc.Arm(2, 5*time.Second)
	require.NoError(t, err)

	pc.Cancel(old)
	fc.Advance(5 * time.Second)
	assert.Equal(t, current, recvToken(t, fired, time.Second))
}

func TestPickClock_ArmFailures(t *testing.T) {
	pc, _, _ := newTestClock()

	_, err := pc.Arm(1, 0)
	require.ErrorIs(t, err, engine.ErrClockFailure)

	pc.Stop()
	_, err = pc.Arm(1, time.Second)
	require.ErrorIs(t, err, engine.ErrClockFailure)
	assert.True(t, engine.IsFatal(err))
}

func TestPickClock_StopDisarms(t *testing.T) {
	pc, fc, fired := newTestClock()

	_, err := pc.Arm(1, 5*time.Second)
	require.NoError(t, err)
	pc.Stop()

	fc.Advance(time.Minute)
	recvNoToken(t, fired, 50*time.Millisecond)
}
