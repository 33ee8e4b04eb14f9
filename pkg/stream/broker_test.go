package stream

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

func collect(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("timed out waiting for stream to terminate")
		}
	}
}

func TestBrokerStreamLifecycle(t *testing.T) {
	b := NewBroker(nopLogger{})
	id := b.Open()

	ch, _, err := b.Subscribe(id)
	require.NoError(t, err)

	b.Publish(id, "a")
	b.Publish(id, "b")
	b.Complete(id)

	events := collect(t, ch)
	require.Len(t, events, 3)
	assert.Equal(t, Event{Kind: KindToken, Content: "a"}, events[0])
	assert.Equal(t, Event{Kind: KindToken, Content: "b"}, events[1])
	assert.Equal(t, KindDone, events[2].Kind)
}

func TestBrokerBuffersBeforeSubscribe(t *testing.T) {
	b := NewBroker(nopLogger{})
	id := b.Open()

	// Fragments published before the consumer attaches must survive.
	b.Publish(id, "early")
	b.Publish(id, "tokens")

	ch, _, err := b.Subscribe(id)
	require.NoError(t, err)

	b.Complete(id)

	events := collect(t, ch)
	require.Len(t, events, 3)
	assert.Equal(t, "early", events[0].Content)
	assert.Equal(t, "tokens", events[1].Content)
	assert.Equal(t, KindDone, events[2].Kind)
}

func TestBrokerFailDeliversError(t *testing.T) {
	b := NewBroker(nopLogger{})
	id := b.Open()

	ch, _, err := b.Subscribe(id)
	require.NoError(t, err)

	b.Publish(id, "partial")
	b.Fail(id, errors.New("generation failed"))

	events := collect(t, ch)
	require.Len(t, events, 2)
	assert.Equal(t, KindError, events[1].Kind)
	assert.EqualError(t, events[1].Err, "generation failed")
}

func TestBrokerSubscribeUnknownStream(t *testing.T) {
	b := NewBroker(nopLogger{})

	_, _, err := b.Subscribe("no-such-stream")
	assert.ErrorIs(t, err, ErrChannelNotFound)
}

func TestBrokerSubscribeAfterCompleteNotFound(t *testing.T) {
	b := NewBroker(nopLogger{})
	id := b.Open()

	b.Publish(id, "unread")
	b.Complete(id)

	// Termination deregisters the channel at once; a late subscriber sees
	// the same not-found as for an id that never existed.
	_, _, err := b.Subscribe(id)
	assert.ErrorIs(t, err, ErrChannelNotFound)
}

func TestBrokerSubscribeAfterFailNotFound(t *testing.T) {
	b := NewBroker(nopLogger{})
	id := b.Open()

	b.Fail(id, errors.New("model offline"))

	_, _, err := b.Subscribe(id)
	assert.ErrorIs(t, err, ErrChannelNotFound)
}

func TestBrokerSecondSubscriberRejected(t *testing.T) {
	b := NewBroker(nopLogger{})
	id := b.Open()

	_, _, err := b.Subscribe(id)
	require.NoError(t, err)

	_, _, err = b.Subscribe(id)
	assert.ErrorIs(t, err, ErrAlreadySubscribed)

	b.Complete(id)
}

func TestBrokerDoubleCompleteIsSafe(t *testing.T) {
	b := NewBroker(nopLogger{})
	id := b.Open()

	ch, _, err := b.Subscribe(id)
	require.NoError(t, err)

	b.Complete(id)
	b.Complete(id)
	b.Fail(id, errors.New("late"))

	events := collect(t, ch)
	require.Len(t, events, 1)
	assert.Equal(t, KindDone, events[0].Kind)
}

func TestBrokerPublishAfterCompleteDropped(t *testing.T) {
	b := NewBroker(nopLogger{})
	id := b.Open()

	ch, _, err := b.Subscribe(id)
	require.NoError(t, err)

	b.Complete(id)
	b.Publish(id, "too late")

	events := collect(t, ch)
	require.Len(t, events, 1)
	assert.Equal(t, KindDone, events[0].Kind)
}

// waitClosed drains without inspecting events, failing unless the channel
// closes within the deadline.
func waitClosed(t *testing.T, ch <-chan Event) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("dispatcher did not shut down")
		}
	}
}

func TestBrokerReleaseStopsDispatcher(t *testing.T) {
	t.Run("mid delivery with unread backlog", func(t *testing.T) {
		b := NewBroker(nopLogger{})
		id := b.Open()

		ch, release, err := b.Subscribe(id)
		require.NoError(t, err)

		// Enough fragments to fill the outbound buffer and block the
		// dispatcher on a consumer that never reads.
		for i := 0; i < 40; i++ {
			b.Publish(id, "x")
		}
		b.Complete(id)

		release()
		waitClosed(t, ch)
	})

	t.Run("before any event", func(t *testing.T) {
		b := NewBroker(nopLogger{})
		id := b.Open()

		ch, release, err := b.Subscribe(id)
		require.NoError(t, err)

		release()
		waitClosed(t, ch)

		b.Complete(id)
	})

	t.Run("release is idempotent", func(t *testing.T) {
		b := NewBroker(nopLogger{})
		id := b.Open()

		ch, release, err := b.Subscribe(id)
		require.NoError(t, err)

		b.Complete(id)
		release()
		release()
		waitClosed(t, ch)
	})
}
