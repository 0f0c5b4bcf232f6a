package broadcast

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrClosed is returned by a Fanout that has been closed.
var ErrClosed = errors.New("fanout closed")

// DefaultBufferSize is the per-subscriber queue depth.
const DefaultBufferSize = 64

// LocalHub fans messages out to subscribers of the same process.
// A subscriber whose queue is full misses the message; publishers never block.
type LocalHub struct {
	logger     *zap.Logger
	bufferSize int

	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan Message
	closed bool
}

// NewLocalHub creates an empty hub.
//
// Precondition: logger must be non-nil.
func NewLocalHub(logger *zap.Logger, bufferSize int) *LocalHub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &LocalHub{
		logger:     logger,
		bufferSize: bufferSize,
		subs:       make(map[uint64]chan Message),
	}
}

// Publish enqueues msg on every subscriber's queue.
func (h *LocalHub) Publish(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	for id, ch := range h.subs {
		select {
		case ch <- msg:
		default:
			h.logger.Warn("subscriber queue full, dropping message",
				zap.Uint64("subscriber", id),
				zap.Stringer("kind", msg.Kind),
			)
		}
	}
	return nil
}

// Subscribe registers a new subscriber.
func (h *LocalHub) Subscribe(ctx context.Context) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}
	h.nextID++
	id := h.nextID
	ch := make(chan Message, h.bufferSize)
	h.subs[id] = ch

	return &Subscription{C: ch, close: func() { h.remove(id) }}, nil
}

// SubscriberCount returns the number of open subscriptions.
func (h *LocalHub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *LocalHub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

// Close closes every subscription. Further calls fail with ErrClosed.
func (h *LocalHub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
	return nil
}
