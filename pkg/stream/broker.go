package stream

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/noman-nawaz-dev/chatbot-backend/internal/pkg/logger"
)

// ErrChannelNotFound is returned when subscribing to an unknown or already
// terminated channel. This is an expected condition (late or retried
// subscribers), not a system fault.
var ErrChannelNotFound = errors.New("stream channel not found")

// ErrAlreadySubscribed is returned on a second Subscribe for the same
// channel; each channel supports at most one consumer.
var ErrAlreadySubscribed = errors.New("stream channel already has a subscriber")

type EventKind int

const (
	KindToken EventKind = iota
	KindDone
	KindError
)

// Event is one item observed by a subscriber: zero or more tokens followed
// by exactly one terminal Done or Error event.
type Event struct {
	Kind    EventKind
	Content string
	Err     error
}

// channel buffers published events until a subscriber drains them. The
// producer is never blocked by a slow consumer; a dispatcher goroutine
// (started on Subscribe) moves events from the buffer to the outbound chan.
type channel struct {
	mu           sync.Mutex
	cond         *sync.Cond
	buffer       []Event
	terminated   bool
	subscribed   bool
	unsubscribed bool
}

func newChannel() *channel {
	c := &channel{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

func (c *channel) push(ev Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.terminated {
		return false
	}
	if ev.Kind != KindToken {
		c.terminated = true
	}
	c.buffer = append(c.buffer, ev)
	c.cond.Signal()
	return true
}

// subscribe starts the dispatcher and returns the event channel plus a
// release func. The release func detaches the consumer and lets the
// dispatcher exit even when buffered events were never read.
func (c *channel) subscribe() (<-chan Event, func(), error) {
	c.mu.Lock()
	if c.subscribed {
		c.mu.Unlock()
		return nil, nil, ErrAlreadySubscribed
	}
	c.subscribed = true
	c.mu.Unlock()

	out := make(chan Event, 16)
	done := make(chan struct{})
	var once sync.Once
	release := func() {
		once.Do(func() {
			c.mu.Lock()
			c.unsubscribed = true
			c.mu.Unlock()
			close(done)
			c.cond.Signal()
		})
	}

	go c.dispatch(out, done)
	return out, release, nil
}

func (c *channel) dispatch(out chan<- Event, done <-chan struct{}) {
	defer close(out)
	for {
		c.mu.Lock()
		for len(c.buffer) == 0 && !c.unsubscribed {
			c.cond.Wait()
		}
		if c.unsubscribed {
			c.mu.Unlock()
			return
		}
		ev := c.buffer[0]
		c.buffer = c.buffer[1:]
		c.mu.Unlock()

		select {
		case out <- ev:
		case <-done:
			return
		}
		if ev.Kind != KindToken {
			return
		}
	}
}

// Broker bridges one background producer per turn to at most one live
// subscriber, keyed by an opaque stream id.
type Broker struct {
	mu       sync.Mutex
	channels map[string]*channel
	logger   logger.ILogger
}

func NewBroker(log logger.ILogger) *Broker {
	return &Broker{
		channels: make(map[string]*channel),
		logger:   log,
	}
}

// Open allocates and registers a channel, returning its id immediately so a
// caller can hand it to a client before any expensive work starts.
func (b *Broker) Open() string {
	id := uuid.NewString()

	b.mu.Lock()
	b.channels[id] = newChannel()
	b.mu.Unlock()

	b.logger.Debug("StreamBroker", "Channel opened", map[string]interface{}{"stream_id": id})
	return id
}

// Publish appends a content fragment. Safe to call before any subscriber
// attaches; fragments are buffered and delivered in publish order.
func (b *Broker) Publish(streamID, fragment string) {
	b.mu.Lock()
	ch, ok := b.channels[streamID]
	b.mu.Unlock()

	if !ok {
		b.logger.Warn("StreamBroker", "Publish on unknown channel, fragment dropped", map[string]interface{}{"stream_id": streamID})
		return
	}
	ch.push(Event{Kind: KindToken, Content: fragment})
}

// Subscribe attaches the single consumer for a channel. A channel that
// terminated before any consumer attached is gone from the registry, and
// subscribing to it reports not-found the same as an unknown id.
//
// The returned release func must be called when the consumer stops reading
// (client disconnect); it detaches the consumer so no dispatcher or buffer
// outlives the connection.
func (b *Broker) Subscribe(streamID string) (<-chan Event, func(), error) {
	b.mu.Lock()
	ch, ok := b.channels[streamID]
	b.mu.Unlock()

	if !ok {
		return nil, nil, ErrChannelNotFound
	}
	return ch.subscribe()
}

// Complete terminates the channel gracefully. Exactly one of Complete/Fail
// takes effect per channel; later calls are no-ops.
func (b *Broker) Complete(streamID string) {
	b.terminate(streamID, Event{Kind: KindDone})
}

// Fail terminates the channel with an error.
func (b *Broker) Fail(streamID string, err error) {
	b.terminate(streamID, Event{Kind: KindError, Err: err})
}

// terminate appends the terminal event and deregisters the channel in the
// same step. An attached consumer still drains the buffered replay; without
// one the events are discarded with the channel.
func (b *Broker) terminate(streamID string, ev Event) {
	b.mu.Lock()
	ch, ok := b.channels[streamID]
	if ok {
		delete(b.channels, streamID)
	}
	b.mu.Unlock()

	if !ok {
		return
	}
	ch.push(ev)
	b.logger.Debug("StreamBroker", "Channel terminated", map[string]interface{}{
		"stream_id": streamID,
		"errored":   ev.Kind == KindError,
	})
}
