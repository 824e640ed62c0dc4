package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	notifyFn  func(ctx context.Context, t Toast) error
	dismissFn func(ctx context.Context) error
	got       []Toast
}

func (f *fakeNotifier) Notify(ctx context.Context, t Toast) error {
	f.got = append(f.got, t)
	if f.notifyFn != nil {
		return f.notifyFn(ctx, t)
	}
	return nil
}

func (f *fakeNotifier) Dismiss(ctx context.Context) error {
	if f.dismissFn != nil {
		return f.dismissFn(ctx)
	}
	return nil
}

func TestFlashReplaceKeepsOnlyLatest(t *testing.T) {
	n := NewFlashNotifier(NewMemoryInbox(time.Minute), nil)
	ctx := WithInbox(context.Background(), "browser-1")

	require.NoError(t, Success(ctx, n, "Saved"))
	require.NoError(t, Replace(ctx, n, NewToast(LevelError, "Validation failed")))

	toasts, err := n.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, toasts, 1)
	assert.Equal(t, LevelError, toasts[0].Level)
	assert.Equal(t, "Validation failed", toasts[0].Message)

	again, err := n.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, again, "toasts are shown once")
}

func TestFlashWithoutInboxFallsBack(t *testing.T) {
	fb := &fakeNotifier{}
	n := NewFlashNotifier(NewMemoryInbox(time.Minute), fb)

	require.NoError(t, Warn(context.Background(), n, "No data to export"))
	require.Len(t, fb.got, 1)
	assert.Equal(t, "No data to export", fb.got[0].Message)
}

func TestFlashInboxesAreIsolated(t *testing.T) {
	n := NewFlashNotifier(NewMemoryInbox(time.Minute), nil)
	a := WithInbox(context.Background(), "a")
	b := WithInbox(context.Background(), "b")

	require.NoError(t, Info(a, n, "for a"))

	got, err := n.Pending(b)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = n.Pending(a)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRedisInbox(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	inbox := NewRedisInbox(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, inbox.Push(ctx, "sid", NewToast(LevelSuccess, "one")))
	require.NoError(t, inbox.Push(ctx, "sid", NewToast(LevelSuccess, "two")))
	assert.True(t, mr.TTL("toasts:sid") > 0)

	got, err := inbox.Drain(ctx, "sid")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "one", got[0].Message)
	assert.Equal(t, "two", got[1].Message)
	assert.False(t, mr.Exists("toasts:sid"))

	require.NoError(t, inbox.Push(ctx, "sid", NewToast(LevelSuccess, "three")))
	require.NoError(t, inbox.Clear(ctx, "sid"))
	got, err = inbox.Drain(ctx, "sid")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestProtectedNotifierOpensAndRecovers(t *testing.T) {
	boom := errors.New("redis down")
	failing := true
	inner := &fakeNotifier{notifyFn: func(context.Context, Toast) error {
		if failing {
			return boom
		}
		return nil
	}}
	fb := &fakeNotifier{}

	now := time.Unix(0, 0)
	p := NewProtectedNotifier(inner, fb, ProtectedNotifierConfig{FailureThreshold: 2, Cooldown: time.Second})
	p.now = func() time.Time { return now }

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, p.Notify(ctx, NewToast(LevelInfo, "x")), boom)
	}
	assert.Equal(t, "open", p.State())

	calls := len(inner.got)
	assert.ErrorIs(t, p.Notify(ctx, NewToast(LevelInfo, "y")), ErrCircuitOpen)
	assert.Equal(t, calls, len(inner.got), "open circuit must not reach the inbox")
	assert.Len(t, fb.got, 3, "every failed toast is logged")

	now = now.Add(2 * time.Second)
	failing = false
	assert.NoError(t, p.Notify(ctx, NewToast(LevelInfo, "z")))
	assert.Equal(t, "closed", p.State())
}
