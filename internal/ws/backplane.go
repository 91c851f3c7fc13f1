package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Envelope is one room-addressed message as it travels between instances.
type Envelope struct {
	Room      string          `json:"room"`
	Event     string          `json:"event"`
	ExcludeID string          `json:"excludeId,omitempty"`
	Data      json.RawMessage `json:"data"`
}

// Backplane fans an envelope out to every instance's local sockets,
// including the publishing instance.
type Backplane interface {
	Publish(ctx context.Context, env Envelope) error
	// Subscribe registers deliver and returns once messages will be
	// delivered. Delivery stops when ctx is done or the backplane closes.
	Subscribe(ctx context.Context, deliver func(Envelope)) error
	Close() error
}

// LocalBackplane delivers in-process; it serves a single instance.
type LocalBackplane struct {
	mu      sync.RWMutex
	deliver func(Envelope)
}

func NewLocalBackplane() *LocalBackplane {
	return &LocalBackplane{}
}

func (b *LocalBackplane) Publish(_ context.Context, env Envelope) error {
	b.mu.RLock()
	deliver := b.deliver
	b.mu.RUnlock()
	if deliver != nil {
		deliver(env)
	}
	return nil
}

func (b *LocalBackplane) Subscribe(_ context.Context, deliver func(Envelope)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deliver = deliver
	return nil
}

func (b *LocalBackplane) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deliver = nil
	return nil
}

// RedisBackplane shares envelopes between instances over a Redis pub/sub
// channel named "{prefix}:presence".
type RedisBackplane struct {
	rdb     *redis.Client
	channel string
	log     *slog.Logger

	mu sync.Mutex
	ps *redis.PubSub
}

func NewRedisBackplane(rdb *redis.Client, prefix string, log *slog.Logger) *RedisBackplane {
	if prefix == "" {
		prefix = "workday"
	}
	if log == nil {
		log = slog.Default()
	}
	return &RedisBackplane{rdb: rdb, channel: prefix + ":presence", log: log}
}

func (b *RedisBackplane) Publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, data).Err()
}

func (b *RedisBackplane) Subscribe(ctx context.Context, deliver func(Envelope)) error {
	ps := b.rdb.Subscribe(ctx, b.channel)
	// Wait for the subscription confirmation so nothing published after
	// Subscribe returns is missed.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return err
	}
	b.mu.Lock()
	if b.ps != nil {
		b.ps.Close()
	}
	b.ps = ps
	b.mu.Unlock()

	go func() {
		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				ps.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					b.log.Warn("dropping malformed presence envelope", "error", err)
					continue
				}
				deliver(env)
			}
		}
	}()
	return nil
}

func (b *RedisBackplane) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ps == nil {
		return nil
	}
	err := b.ps.Close()
	b.ps = nil
	if errors.Is(err, redis.ErrClosed) {
		return nil
	}
	return err
}
