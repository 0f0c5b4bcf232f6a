package broadcast

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cory-johannsen/k6mud/internal/protocol"
)

// RedisFanout publishes messages on one Redis channel so that every server
// process sharing the Redis instance sees them.
type RedisFanout struct {
	client     *redis.Client
	channel    string
	logger     *zap.Logger
	bufferSize int
}

// NewRedisFanout creates a fan-out over client using the named channel.
//
// Precondition: client and logger must be non-nil; channel must be non-empty.
func NewRedisFanout(client *redis.Client, channel string, logger *zap.Logger) *RedisFanout {
	return &RedisFanout{
		client:     client,
		channel:    channel,
		logger:     logger,
		bufferSize: DefaultBufferSize,
	}
}

// WithBufferSize sets the per-subscription queue depth; n <= 0 keeps the default.
func (f *RedisFanout) WithBufferSize(n int) *RedisFanout {
	if n > 0 {
		f.bufferSize = n
	}
	return f
}

// Publish sends msg to the Redis channel.
func (f *RedisFanout) Publish(ctx context.Context, msg Message) error {
	data, err := protocol.EncodeEvent(toWire(msg))
	if err != nil {
		return fmt.Errorf("encoding broadcast: %w", err)
	}
	if err := f.client.Publish(ctx, f.channel, data).Err(); err != nil {
		return fmt.Errorf("publishing to %s: %w", f.channel, err)
	}
	return nil
}

// Subscribe opens a Redis subscription and decodes its payloads onto the
// returned Subscription.
//
// Postcondition: The subscription is active on the server when Subscribe returns.
func (f *RedisFanout) Subscribe(ctx context.Context) (*Subscription, error) {
	ps := f.client.Subscribe(ctx, f.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", f.channel, err)
	}

	out := make(chan Message, f.bufferSize)
	done := make(chan struct{})
	in := ps.Channel(redis.WithChannelSize(f.bufferSize))
	go func() {
		defer close(done)
		defer close(out)
		for raw := range in {
			ev, err := protocol.DecodeEvent([]byte(raw.Payload))
			if err != nil {
				f.logger.Warn("dropping undecodable broadcast", zap.Error(err))
				continue
			}
			msg, err := fromWire(ev)
			if err != nil {
				f.logger.Warn("dropping broadcast", zap.Error(err))
				continue
			}
			select {
			case out <- msg:
			default:
				f.logger.Warn("subscriber queue full, dropping message", zap.Stringer("kind", msg.Kind))
			}
		}
	}()

	var once sync.Once
	return &Subscription{C: out, close: func() {
		once.Do(func() {
			_ = ps.Close()
			<-done
		})
	}}, nil
}

// Ping checks connectivity to Redis.
func (f *RedisFanout) Ping(ctx context.Context) error {
	return f.client.Ping(ctx).Err()
}

// Close releases the Redis client.
func (f *RedisFanout) Close() error {
	return f.client.Close()
}
