// Package bus decouples channel adapters from the therapy pipeline: the
// gateway consumes inbound user messages and publishes replies back to
// whatever channel they arrived on.
package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// InboundMessage is a user utterance arriving from a channel.
type InboundMessage struct {
	Channel string // "discord", "cli", "checkin"
	ChatID  string
	UserID  string
	Content string
}

// OutboundMessage is a reply (or proactive check-in) heading to a channel.
type OutboundMessage struct {
	Channel string
	ChatID  string
	Content string
}

const publishTimeout = 100 * time.Millisecond

// MessageBus is a bounded in/out queue pair. Publishing never blocks
// longer than publishTimeout; overflow is counted and dropped rather than
// stalling a channel adapter.
type MessageBus struct {
	inbound  chan InboundMessage
	outbound chan OutboundMessage
	closed   bool
	dropped  atomic.Uint64
	mu       sync.RWMutex
}

func New() *MessageBus {
	return &MessageBus{
		inbound:  make(chan InboundMessage, 100),
		outbound: make(chan OutboundMessage, 100),
	}
}

func (b *MessageBus) PublishInbound(msg InboundMessage) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	select {
	case b.inbound <- msg:
	default:
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case b.inbound <- msg:
		case <-timer.C:
			b.dropped.Add(1)
		}
	}
}

func (b *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	select {
	case msg, ok := <-b.inbound:
		if !ok {
			return InboundMessage{}, false
		}
		return msg, true
	case <-ctx.Done():
		return InboundMessage{}, false
	}
}

func (b *MessageBus) PublishOutbound(msg OutboundMessage) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	select {
	case b.outbound <- msg:
	default:
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case b.outbound <- msg:
		case <-timer.C:
			b.dropped.Add(1)
		}
	}
}

func (b *MessageBus) ConsumeOutbound(ctx context.Context) (OutboundMessage, bool) {
	select {
	case msg, ok := <-b.outbound:
		if !ok {
			return OutboundMessage{}, false
		}
		return msg, true
	case <-ctx.Done():
		return OutboundMessage{}, false
	}
}

func (b *MessageBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.inbound)
	close(b.outbound)
}

// Dropped reports how many messages overflowed the queues.
func (b *MessageBus) Dropped() uint64 {
	return b.dropped.Load()
}
