package runner

import (
	"errors"
	"sync"

	"github.com/harmonia-ai/loom/core"
)

// ErrConsumerTooSlow reports that a consumer's buffer filled and its
// subscription was dropped so other consumers could continue.
var ErrConsumerTooSlow = errors.New("stream consumer too slow, subscription dropped")

// Subscription is a single bounded subscription to the broadcast stream.
type Subscription struct {
	ch      chan core.StreamPart
	mu      sync.Mutex
	err     error
	dropped bool
}

// Events returns the subscription's part channel. It closes when the stream
// ends or the subscription is dropped.
func (c *Subscription) Events() <-chan core.StreamPart { return c.ch }

// Err reports why the subscription ended early, if it did.
func (c *Subscription) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Subscription) drop(err error) {
	c.mu.Lock()
	if c.dropped {
		c.mu.Unlock()
		return
	}
	c.dropped = true
	c.err = err
	c.mu.Unlock()
	close(c.ch)
}

// broadcaster fans stream parts out to bounded consumers. Only the
// reassembler publishes; each consumer only reads its own channel. A consumer
// that falls behind its buffer bound is dropped rather than blocking others.
type broadcaster struct {
	mu        sync.Mutex
	consumers []*Subscription
	buffer    int
	closed    bool
}

func newBroadcaster(buffer int) *broadcaster {
	if buffer <= 0 {
		buffer = 256
	}
	return &broadcaster{buffer: buffer}
}

// subscribe adds a consumer receiving parts published after this call.
func (b *broadcaster) subscribe() *Subscription {
	c := &Subscription{ch: make(chan core.StreamPart, b.buffer)}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		c.dropped = true
		close(c.ch)
		return c
	}
	b.consumers = append(b.consumers, c)
	return c
}

// publish delivers the part to every live consumer without blocking.
func (b *broadcaster) publish(part core.StreamPart) {
	b.mu.Lock()
	consumers := append([]*Subscription(nil), b.consumers...)
	b.mu.Unlock()
	for _, c := range consumers {
		c.mu.Lock()
		dropped := c.dropped
		c.mu.Unlock()
		if dropped {
			continue
		}
		select {
		case c.ch <- part:
		default:
			c.drop(ErrConsumerTooSlow)
		}
	}
}

// close ends every subscription normally.
func (b *broadcaster) close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	consumers := b.consumers
	b.consumers = nil
	b.mu.Unlock()
	for _, c := range consumers {
		c.mu.Lock()
		if c.dropped {
			c.mu.Unlock()
			continue
		}
		c.dropped = true
		c.mu.Unlock()
		close(c.ch)
	}
}
